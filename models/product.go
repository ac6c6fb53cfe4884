package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockOperation is the closed set of stock-adjustment modes.
type StockOperation string

const (
	StockAdd      StockOperation = "add"
	StockSubtract StockOperation = "subtract"
	StockSet      StockOperation = "set"
)

// IsValid reports whether op is a member of the operation set.
func (op StockOperation) IsValid() bool {
	switch op {
	case StockAdd, StockSubtract, StockSet:
		return true
	}
	return false
}

// Product is a sellable catalog item. StockQuantity never goes negative:
// every write goes through the product service's stock primitive, and the
// checkout path additionally holds a row lock across its check-then-write.
// Soft deletion flips IsActive; rows referenced by order items are never
// physically removed.
type Product struct {
	ID                uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name              string           `gorm:"type:varchar(200);not null" json:"name"`
	Slug              string           `gorm:"type:varchar(220);uniqueIndex;not null" json:"slug"`
	Description       string           `gorm:"type:text" json:"description,omitempty"`
	Price             decimal.Decimal  `gorm:"type:decimal(10,2);not null" json:"price"`
	ComparePrice      *decimal.Decimal `gorm:"type:decimal(10,2)" json:"compare_price,omitempty"`
	SKU               string           `gorm:"type:varchar(64);uniqueIndex;not null" json:"sku"`
	Barcode           *string          `gorm:"type:varchar(64);uniqueIndex" json:"barcode,omitempty"`
	StockQuantity     int              `gorm:"not null;default:0" json:"stock_quantity"`
	LowStockThreshold int              `gorm:"not null;default:10" json:"low_stock_threshold"`
	Weight            *decimal.Decimal `gorm:"type:decimal(8,3)" json:"weight,omitempty"`
	ImageURL          string           `gorm:"type:varchar(1024)" json:"image_url,omitempty"`
	CategoryID        uuid.UUID        `gorm:"type:uuid;not null;index" json:"category_id"`
	IsActive          bool             `gorm:"not null;default:true" json:"is_active"`
	IsFeatured        bool             `gorm:"not null;default:false" json:"is_featured"`
	CreatedAt         time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"autoUpdateTime" json:"updated_at"`

	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// IsLowStock reports whether the product sits at or below its threshold.
func (p *Product) IsLowStock() bool {
	return p.StockQuantity <= p.LowStockThreshold
}

// CreateProductRequest is the payload for creating a product. Price and
// compare-price consistency is validated by the product service so the
// error message can name the offending field.
type CreateProductRequest struct {
	Name              string           `json:"name" binding:"required,min=2,max=200"`
	Description       string           `json:"description"`
	Price             decimal.Decimal  `json:"price" binding:"required"`
	ComparePrice      *decimal.Decimal `json:"compare_price"`
	SKU               string           `json:"sku" binding:"required,min=2,max=64"`
	Barcode           *string          `json:"barcode" binding:"omitempty,max=64"`
	StockQuantity     int              `json:"stock_quantity" binding:"gte=0"`
	LowStockThreshold *int             `json:"low_stock_threshold" binding:"omitempty,gte=0"`
	Weight            *decimal.Decimal `json:"weight"`
	ImageURL          string           `json:"image_url"`
	CategoryID        uuid.UUID        `json:"category_id" binding:"required"`
	IsFeatured        bool             `json:"is_featured"`
}

// UpdateProductRequest carries partial updates; nil fields are untouched.
type UpdateProductRequest struct {
	Name              *string          `json:"name" binding:"omitempty,min=2,max=200"`
	Description       *string          `json:"description"`
	Price             *decimal.Decimal `json:"price"`
	ComparePrice      *decimal.Decimal `json:"compare_price"`
	Barcode           *string          `json:"barcode" binding:"omitempty,max=64"`
	LowStockThreshold *int             `json:"low_stock_threshold" binding:"omitempty,gte=0"`
	Weight            *decimal.Decimal `json:"weight"`
	ImageURL          *string          `json:"image_url"`
	CategoryID        *uuid.UUID       `json:"category_id"`
	IsActive          *bool            `json:"is_active"`
	IsFeatured        *bool            `json:"is_featured"`
}

// UpdateStockRequest adjusts a product's stock through the stock primitive.
type UpdateStockRequest struct {
	Quantity  int            `json:"quantity" binding:"gte=0"`
	Operation StockOperation `json:"operation" binding:"required,oneof=add subtract set"`
}

// BulkPriceUpdate is one entry of a bulk price change.
type BulkPriceUpdate struct {
	ProductID uuid.UUID       `json:"product_id" binding:"required"`
	Price     decimal.Decimal `json:"price" binding:"required"`
}

// BulkPriceUpdateRequest updates many product prices in one transaction.
type BulkPriceUpdateRequest struct {
	Updates []BulkPriceUpdate `json:"updates" binding:"required,min=1,dive"`
}

// ProductListFilter narrows product listings. ActiveOnly is explicit on
// every read path rather than an implicit query default.
type ProductListFilter struct {
	CategoryID *uuid.UUID
	Featured   *bool
	Search     string
	ActiveOnly bool
	Page       int
	Limit      int
}
