package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yashrajoria/storefront/models"
)

// CategoryRepository defines the interface for category data access.
type CategoryRepository interface {
	WithTx(tx *gorm.DB) CategoryRepository
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	FindBySlug(ctx context.Context, slug string) (*models.Category, error)
	List(ctx context.Context, activeOnly bool) ([]models.Category, error)
	CountChildren(ctx context.Context, parentID uuid.UUID, activeOnly bool) (int64, error)
	CountProducts(ctx context.Context, categoryID uuid.UUID, activeOnly bool) (int64, error)
	UpdateSortOrder(ctx context.Context, id uuid.UUID, sortOrder int) error
}

// GormCategoryRepository implements CategoryRepository using GORM.
type GormCategoryRepository struct {
	db *gorm.DB
}

// NewGormCategoryRepository creates a new GormCategoryRepository.
func NewGormCategoryRepository(db *gorm.DB) CategoryRepository {
	return &GormCategoryRepository{db: db}
}

// WithTx rebinds the repository to a transaction handle.
func (r *GormCategoryRepository) WithTx(tx *gorm.DB) CategoryRepository {
	return &GormCategoryRepository{db: tx}
}

// Create inserts a new category.
func (r *GormCategoryRepository) Create(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

// Update persists all fields of an existing category.
func (r *GormCategoryRepository) Update(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Save(category).Error
}

// Delete removes a category row. The service layer is responsible for the
// no-children/no-products check before calling this.
func (r *GormCategoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Category{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindByID retrieves a category by primary key.
func (r *GormCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// FindBySlug retrieves a category by its unique slug.
func (r *GormCategoryRepository) FindBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, "slug = ?", slug).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// List returns all categories ordered for tree assembly. Active filtering
// is explicit, never an implicit default.
func (r *GormCategoryRepository) List(ctx context.Context, activeOnly bool) ([]models.Category, error) {
	var categories []models.Category
	query := r.db.WithContext(ctx).Model(&models.Category{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Order("sort_order ASC, name ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// CountChildren counts categories whose parent is parentID.
func (r *GormCategoryRepository) CountChildren(ctx context.Context, parentID uuid.UUID, activeOnly bool) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.Category{}).Where("parent_id = ?", parentID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountProducts counts products assigned to the category.
func (r *GormCategoryRepository) CountProducts(ctx context.Context, categoryID uuid.UUID, activeOnly bool) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.Product{}).Where("category_id = ?", categoryID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateSortOrder sets a single category's position.
func (r *GormCategoryRepository) UpdateSortOrder(ctx context.Context, id uuid.UUID, sortOrder int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Category{}).
		Where("id = ?", id).
		UpdateColumn("sort_order", sortOrder)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
