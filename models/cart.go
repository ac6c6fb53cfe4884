package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is a customer's wishlist of intended purchases. Exactly one cart
// exists per customer, created lazily on first add. Items never hold stock;
// inventory is only reserved at checkout.
type Cart struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CustomerID uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"customer_id"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	Items      []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
}

// Subtotal sums quantity × live product price across all lines. Items must
// be loaded with their products.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for i := range c.Items {
		total = total.Add(c.Items[i].LineTotal())
	}
	return total
}

// TotalItems is the number of units across all lines.
func (c *Cart) TotalItems() int {
	n := 0
	for i := range c.Items {
		n += c.Items[i].Quantity
	}
	return n
}

// CartItem is one (product, quantity) line. The cart_id+product_id pair is
// unique: adding the same product again increments the existing line.
type CartItem struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CartID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_item_product" json:"cart_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_item_product" json:"product_id"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

// LineTotal is quantity × current product price, zero when the product is
// not loaded.
func (i *CartItem) LineTotal() decimal.Decimal {
	if i.Product == nil {
		return decimal.Zero
	}
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// AddCartItemRequest adds quantity units of a product to the caller's cart.
type AddCartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required"`
}

// UpdateCartItemRequest sets (not adds) a line's quantity.
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}
