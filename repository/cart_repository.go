package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yashrajoria/storefront/models"
)

// CartRepository defines the interface for cart and cart-item data access.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	Create(ctx context.Context, cart *models.Cart) error
	FindByCustomerID(ctx context.Context, customerID uuid.UUID) (*models.Cart, error)
	FindItem(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	DeleteItems(ctx context.Context, cartID uuid.UUID) error
	DeleteItemsByProduct(ctx context.Context, productID uuid.UUID) error
}

// GormCartRepository implements CartRepository using GORM.
type GormCartRepository struct {
	db *gorm.DB
}

// NewGormCartRepository creates a new GormCartRepository.
func NewGormCartRepository(db *gorm.DB) CartRepository {
	return &GormCartRepository{db: db}
}

// WithTx rebinds the repository to a transaction handle.
func (r *GormCartRepository) WithTx(tx *gorm.DB) CartRepository {
	return &GormCartRepository{db: tx}
}

// Create inserts a new empty cart. The unique index on customer_id makes a
// second cart for the same customer a constraint violation.
func (r *GormCartRepository) Create(ctx context.Context, cart *models.Cart) error {
	return r.db.WithContext(ctx).Create(cart).Error
}

// FindByCustomerID retrieves the customer's cart with items and their
// products loaded.
func (r *GormCartRepository) FindByCustomerID(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("cart_items.created_at ASC")
		}).
		Preload("Items.Product").
		First(&cart, "customer_id = ?", customerID).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindItem retrieves one line by cart and product.
func (r *GormCartRepository) FindItem(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.WithContext(ctx).
		First(&item, "cart_id = ? AND product_id = ?", cartID, productID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem inserts a new cart line.
func (r *GormCartRepository) CreateItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// UpdateItemQuantity sets a line's quantity.
func (r *GormCartRepository) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	result := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		UpdateColumn("quantity", quantity)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteItem removes one line.
func (r *GormCartRepository) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.CartItem{}, "id = ?", itemID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteItems removes every line of a cart; the cart row itself is kept.
func (r *GormCartRepository) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.CartItem{}, "cart_id = ?", cartID).Error
}

// DeleteItemsByProduct removes a product from every cart. Used ahead of a
// physical product deletion so no line keeps a dangling reference.
func (r *GormCartRepository) DeleteItemsByProduct(ctx context.Context, productID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.CartItem{}, "product_id = ?", productID).Error
}
