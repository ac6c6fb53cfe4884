package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yashrajoria/storefront/models"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	WithTx(tx *gorm.DB) OrderRepository
	Create(ctx context.Context, order *models.Order) error
	Update(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDAndCustomer(ctx context.Context, id, customerID uuid.UUID) (*models.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	ExistsByOrderNumber(ctx context.Context, orderNumber string) (bool, error)
	FindByCustomer(ctx context.Context, customerID uuid.UUID, page, limit int) ([]models.Order, int64, error)
	List(ctx context.Context, filter models.OrderListFilter) ([]models.Order, int64, error)
	ListToday(ctx context.Context) ([]models.Order, error)
	SearchByOrderNumber(ctx context.Context, term string, page, limit int) ([]models.Order, int64, error)
	CountItemsByProduct(ctx context.Context, productID uuid.UUID) (int64, error)
}

// GormOrderRepository implements OrderRepository using GORM.
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository.
func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx rebinds the repository to a transaction handle.
func (r *GormOrderRepository) WithTx(tx *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: tx}
}

// Create inserts an order together with its items in one statement batch.
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// Update persists all fields of an existing order. Items are write-once and
// never saved back through this path.
func (r *GormOrderRepository) Update(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Items").Save(order).Error
}

// Delete physically removes an order; items go with it via the cascade
// constraint. Reserved for the administrative hard-delete path.
func (r *GormOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Order{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindByID retrieves an order with its items.
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUpdate retrieves an order with its items under an exclusive
// row lock. Status transitions read through this so concurrent transitions
// on the same order serialize and stock is never restored twice.
func (r *GormOrderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", id).
		Order("created_at ASC").
		Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDAndCustomer retrieves an order only if it belongs to the customer.
func (r *GormOrderRepository) FindByIDAndCustomer(ctx context.Context, id, customerID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND customer_id = ?", id, customerID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByOrderNumber retrieves an order by its unique number.
func (r *GormOrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "order_number = ?", orderNumber).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// ExistsByOrderNumber reports whether an order number is already taken.
func (r *GormOrderRepository) ExistsByOrderNumber(ctx context.Context, orderNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_number = ?", orderNumber).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByCustomer retrieves a customer's orders, newest first.
func (r *GormOrderRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID, page, limit int) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("customer_id = ?", customerID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Preload("Items").
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// List retrieves paginated orders matching the staff filter.
func (r *GormOrderRepository) List(ctx context.Context, filter models.OrderListFilter) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *filter.PaymentStatus)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := query.
		Preload("Items").
		Offset(offset).
		Limit(filter.Limit).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// ListToday returns orders created since UTC midnight, newest first.
func (r *GormOrderRepository) ListToday(ctx context.Context) ([]models.Order, error) {
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var orders []models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("created_at >= ?", start).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// SearchByOrderNumber finds orders whose number contains the term.
func (r *GormOrderRepository) SearchByOrderNumber(ctx context.Context, term string, page, limit int) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_number ILIKE ?", term+"%")

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Preload("Items").
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// CountItemsByProduct counts order items referencing a product. Used to
// refuse physical product deletion while order history depends on the row.
func (r *GormOrderRepository) CountItemsByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("product_id = ?", productID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
