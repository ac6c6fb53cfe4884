package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yashrajoria/storefront/cache"
	"github.com/yashrajoria/storefront/database"
	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/repository"
)

// CategoryService defines the interface for category catalog management.
type CategoryService interface {
	Create(ctx context.Context, req *models.CreateCategoryRequest) (*models.Category, *ServiceError)
	Update(ctx context.Context, id uuid.UUID, req *models.UpdateCategoryRequest) (*models.Category, *ServiceError)
	Delete(ctx context.Context, id uuid.UUID) *ServiceError
	Get(ctx context.Context, id uuid.UUID, activeOnly bool) (*models.Category, *ServiceError)
	Tree(ctx context.Context, activeOnly bool) ([]models.Category, *ServiceError)
	Reorder(ctx context.Context, req *models.ReorderCategoriesRequest) *ServiceError
}

// categoryServiceImpl implements CategoryService.
type categoryServiceImpl struct {
	categories repository.CategoryRepository
	tx         database.Transactor
	cache      *cache.Cache
	logger     *zap.Logger
}

// NewCategoryService creates a new CategoryService.
func NewCategoryService(
	categories repository.CategoryRepository,
	tx database.Transactor,
	c *cache.Cache,
	logger *zap.Logger,
) CategoryService {
	return &categoryServiceImpl{
		categories: categories,
		tx:         tx,
		cache:      c,
		logger:     logger,
	}
}

// Create adds a category, optionally under an active parent.
func (s *categoryServiceImpl) Create(ctx context.Context, req *models.CreateCategoryRequest) (*models.Category, *ServiceError) {
	if req.ParentID != nil {
		parent, err := s.categories.FindByID(ctx, *req.ParentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, &ServiceError{StatusCode: 400, Message: "Parent category not found"}
			}
			s.logger.Error("Failed to look up parent category", zap.Error(err))
			return nil, &ServiceError{StatusCode: 500, Message: "Failed to create category"}
		}
		if !parent.IsActive {
			return nil, &ServiceError{StatusCode: 400, Message: "Parent category is inactive"}
		}
	}

	slug := slugify(req.Name)
	if _, err := s.categories.FindBySlug(ctx, slug); err == nil {
		return nil, &ServiceError{StatusCode: 409, Message: "Category with this name already exists"}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("Failed to check category slug", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to create category"}
	}

	category := &models.Category{
		Name:        req.Name,
		Slug:        slug,
		Description: req.Description,
		ParentID:    req.ParentID,
		SortOrder:   req.SortOrder,
		IsActive:    true,
	}
	if err := s.categories.Create(ctx, category); err != nil {
		s.logger.Error("Failed to create category", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to create category"}
	}

	s.invalidateTree(ctx)
	s.logger.Info("Category created", zap.String("slug", category.Slug))
	return category, nil
}

// Update applies a partial update. The slug stays stable across renames so
// existing catalog URLs keep working.
func (s *categoryServiceImpl) Update(ctx context.Context, id uuid.UUID, req *models.UpdateCategoryRequest) (*models.Category, *ServiceError) {
	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Category not found"}
		}
		s.logger.Error("Failed to look up category", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to update category"}
	}

	if req.ParentID != nil {
		if *req.ParentID == category.ID {
			return nil, &ServiceError{StatusCode: 400, Message: "Category cannot be its own parent"}
		}
		parent, err := s.categories.FindByID(ctx, *req.ParentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, &ServiceError{StatusCode: 400, Message: "Parent category not found"}
			}
			s.logger.Error("Failed to look up parent category", zap.Error(err))
			return nil, &ServiceError{StatusCode: 500, Message: "Failed to update category"}
		}
		if !parent.IsActive {
			return nil, &ServiceError{StatusCode: 400, Message: "Parent category is inactive"}
		}
		category.ParentID = req.ParentID
	}

	if req.Name != nil {
		category.Name = *req.Name
	}
	if req.Description != nil {
		category.Description = *req.Description
	}
	if req.SortOrder != nil {
		category.SortOrder = *req.SortOrder
	}
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}

	if err := s.categories.Update(ctx, category); err != nil {
		s.logger.Error("Failed to update category", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to update category"}
	}

	s.invalidateTree(ctx)
	return category, nil
}

// Delete removes a category, refused while active products or active child
// categories still reference it.
func (s *categoryServiceImpl) Delete(ctx context.Context, id uuid.UUID) *ServiceError {
	if _, err := s.categories.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ServiceError{StatusCode: 404, Message: "Category not found"}
		}
		s.logger.Error("Failed to look up category", zap.Error(err))
		return &ServiceError{StatusCode: 500, Message: "Failed to delete category"}
	}

	children, err := s.categories.CountChildren(ctx, id, true)
	if err != nil {
		s.logger.Error("Failed to count child categories", zap.Error(err))
		return &ServiceError{StatusCode: 500, Message: "Failed to delete category"}
	}
	if children > 0 {
		return &ServiceError{StatusCode: 409, Message: "Cannot delete category with subcategories"}
	}

	products, err := s.categories.CountProducts(ctx, id, true)
	if err != nil {
		s.logger.Error("Failed to count category products", zap.Error(err))
		return &ServiceError{StatusCode: 500, Message: "Failed to delete category"}
	}
	if products > 0 {
		return &ServiceError{StatusCode: 409, Message: "Cannot delete category with products"}
	}

	if err := s.categories.Delete(ctx, id); err != nil {
		s.logger.Error("Failed to delete category", zap.Error(err))
		return &ServiceError{StatusCode: 500, Message: "Failed to delete category"}
	}

	s.invalidateTree(ctx)
	s.logger.Info("Category deleted", zap.String("id", id.String()))
	return nil
}

// Get retrieves one category. With activeOnly set, inactive categories are
// indistinguishable from missing ones.
func (s *categoryServiceImpl) Get(ctx context.Context, id uuid.UUID, activeOnly bool) (*models.Category, *ServiceError) {
	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Category not found"}
		}
		s.logger.Error("Failed to look up category", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to look up category"}
	}
	if activeOnly && !category.IsActive {
		return nil, &ServiceError{StatusCode: 404, Message: "Category not found"}
	}
	return category, nil
}

// Tree returns the nested category hierarchy, served from cache when warm.
func (s *categoryServiceImpl) Tree(ctx context.Context, activeOnly bool) ([]models.Category, *ServiceError) {
	key := cache.CategoryTreeKey(activeOnly)

	var cached []models.Category
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	flat, err := s.categories.List(ctx, activeOnly)
	if err != nil {
		s.logger.Error("Failed to list categories", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to list categories"}
	}

	tree := buildCategoryTree(flat)
	s.cache.Set(ctx, key, tree)
	return tree, nil
}

// Reorder repositions a batch of categories in one transaction; an unknown
// id rolls back the whole batch.
func (s *categoryServiceImpl) Reorder(ctx context.Context, req *models.ReorderCategoriesRequest) *ServiceError {
	var svcErr *ServiceError

	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		categories := s.categories.WithTx(tx)
		for _, o := range req.Orders {
			if err := categories.UpdateSortOrder(ctx, o.ID, o.SortOrder); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					svcErr = &ServiceError{StatusCode: 404, Message: "Category " + o.ID.String() + " not found"}
					return svcErr
				}
				return err
			}
		}
		return nil
	})
	if svcErr != nil {
		return svcErr
	}
	if err != nil {
		s.logger.Error("Failed to reorder categories", zap.Error(err))
		return &ServiceError{StatusCode: 500, Message: "Failed to reorder categories"}
	}

	s.invalidateTree(ctx)
	return nil
}

func (s *categoryServiceImpl) invalidateTree(ctx context.Context) {
	s.cache.Delete(ctx, cache.CategoryTreeKey(true), cache.CategoryTreeKey(false))
}

// buildCategoryTree nests a flat, sort-ordered category list. Children of
// categories filtered out upstream are dropped rather than promoted.
func buildCategoryTree(flat []models.Category) []models.Category {
	byParent := make(map[uuid.UUID][]models.Category)
	var topLevel []models.Category
	for _, c := range flat {
		if c.ParentID == nil {
			topLevel = append(topLevel, c)
		} else {
			byParent[*c.ParentID] = append(byParent[*c.ParentID], c)
		}
	}

	var attach func(c models.Category) models.Category
	attach = func(c models.Category) models.Category {
		kids := byParent[c.ID]
		if len(kids) == 0 {
			return c
		}
		c.Children = make([]models.Category, 0, len(kids))
		for _, k := range kids {
			c.Children = append(c.Children, attach(k))
		}
		return c
	}

	roots := make([]models.Category, 0, len(topLevel))
	for _, r := range topLevel {
		roots = append(roots, attach(r))
	}
	return roots
}
