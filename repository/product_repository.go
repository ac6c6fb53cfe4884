package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yashrajoria/storefront/models"
)

// ProductRepository defines the interface for product data access.
// FindByIDForUpdate is the row-lock entry point: every stock
// check-then-write on the cart and checkout paths goes through it inside a
// transaction so concurrent mutations of the same product serialize.
type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindBySlug(ctx context.Context, slug string) (*models.Product, error)
	FindBySKU(ctx context.Context, sku string) (*models.Product, error)
	FindByBarcode(ctx context.Context, barcode string) (*models.Product, error)
	List(ctx context.Context, filter models.ProductListFilter) ([]models.Product, int64, error)
	ListLowStock(ctx context.Context) ([]models.Product, error)
	UpdateStockQuantity(ctx context.Context, id uuid.UUID, quantity int) error
	UpdatePrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) error
}

// GormProductRepository implements ProductRepository using GORM.
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository.
func NewGormProductRepository(db *gorm.DB) ProductRepository {
	return &GormProductRepository{db: db}
}

// WithTx rebinds the repository to a transaction handle.
func (r *GormProductRepository) WithTx(tx *gorm.DB) ProductRepository {
	return &GormProductRepository{db: tx}
}

// Create inserts a new product.
func (r *GormProductRepository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// Update persists all fields of an existing product.
func (r *GormProductRepository) Update(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

// Delete physically removes a product row. The service layer refuses this
// while order items still reference the product.
func (r *GormProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindByID retrieves a product with its category.
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Preload("Category").
		First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDForUpdate retrieves a product under an exclusive row lock
// (SELECT ... FOR UPDATE). Only meaningful on a repository rebound to a
// transaction; the lock holds until that transaction commits or rolls back.
func (r *GormProductRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindBySlug retrieves a product by its unique slug.
func (r *GormProductRepository) FindBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "slug = ?", slug).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindBySKU retrieves a product by its unique SKU.
func (r *GormProductRepository) FindBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "sku = ?", sku).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByBarcode retrieves a product by its unique barcode.
func (r *GormProductRepository) FindByBarcode(ctx context.Context, barcode string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "barcode = ?", barcode).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// List retrieves paginated products matching the filter.
func (r *GormProductRepository) List(ctx context.Context, filter models.ProductListFilter) ([]models.Product, int64, error) {
	var products []models.Product
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Product{})
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.Featured != nil {
		query = query.Where("is_featured = ?", *filter.Featured)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("name ILIKE ? OR sku ILIKE ?", pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := query.
		Preload("Category").
		Offset(offset).
		Limit(filter.Limit).
		Order("created_at DESC").
		Find(&products).Error; err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// ListLowStock returns active products at or below their low-stock
// threshold, lowest first.
func (r *GormProductRepository) ListLowStock(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).
		Where("is_active = ? AND stock_quantity <= low_stock_threshold", true).
		Order("stock_quantity ASC").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// UpdateStockQuantity writes a product's stock level. Callers must have
// computed quantity through the stock primitive; this never does arithmetic
// of its own.
func (r *GormProductRepository) UpdateStockQuantity(ctx context.Context, id uuid.UUID, quantity int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumn("stock_quantity", quantity)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdatePrice writes a product's price.
func (r *GormProductRepository) UpdatePrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumn("price", price)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
