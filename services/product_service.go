package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yashrajoria/storefront/cache"
	"github.com/yashrajoria/storefront/database"
	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/repository"
)

// ProductService defines the interface for product catalog management and
// the stock-adjustment primitive.
type ProductService interface {
	Create(ctx context.Context, req *models.CreateProductRequest) (*models.Product, *ServiceError)
	Update(ctx context.Context, id uuid.UUID, req *models.UpdateProductRequest) (*models.Product, *ServiceError)
	Delete(ctx context.Context, id uuid.UUID, hard bool) *ServiceError
	Get(ctx context.Context, id uuid.UUID, activeOnly bool) (*models.Product, *ServiceError)
	List(ctx context.Context, filter models.ProductListFilter) ([]models.Product, int64, *ServiceError)
	ListLowStock(ctx context.Context) ([]models.Product, *ServiceError)
	AdjustStock(ctx context.Context, id uuid.UUID, quantity int, op models.StockOperation) (*models.Product, *ServiceError)
	BulkUpdatePrices(ctx context.Context, req *models.BulkPriceUpdateRequest) (int, *ServiceError)
}

// productServiceImpl implements ProductService.
type productServiceImpl struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	carts      repository.CartRepository
	orders     repository.OrderRepository
	tx         database.Transactor
	cache      *cache.Cache
	logger     *zap.Logger
}

// NewProductService creates a new ProductService.
func NewProductService(
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	carts repository.CartRepository,
	orders repository.OrderRepository,
	tx database.Transactor,
	c *cache.Cache,
	logger *zap.Logger,
) ProductService {
	return &productServiceImpl{
		products:   products,
		categories: categories,
		carts:      carts,
		orders:     orders,
		tx:         tx,
		cache:      c,
		logger:     logger,
	}
}

// validatePricing enforces price > 0 and compare price strictly above price.
func validatePricing(price decimal.Decimal, comparePrice *decimal.Decimal) *ServiceError {
	if !price.GreaterThan(decimal.Zero) {
		return &ServiceError{StatusCode: 400, Message: "Price must be greater than 0"}
	}
	if comparePrice != nil && !comparePrice.GreaterThan(price) {
		return &ServiceError{StatusCode: 400, Message: "Compare price must be greater than price"}
	}
	return nil
}

// Create adds a product under an active category with a unique SKU,
// barcode and slug.
func (s *productServiceImpl) Create(ctx context.Context, req *models.CreateProductRequest) (*models.Product, *ServiceError) {
	if svcErr := validatePricing(req.Price, req.ComparePrice); svcErr != nil {
		return nil, svcErr
	}

	category, err := s.categories.FindByID(ctx, req.CategoryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 400, Message: "Invalid or inactive category"}
		}
		s.logger.Error("Failed to look up category", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to create product"}
	}
	if !category.IsActive {
		return nil, &ServiceError{StatusCode: 400, Message: "Invalid or inactive category"}
	}

	if _, err := s.products.FindBySKU(ctx, req.SKU); err == nil {
		return nil, &ServiceError{StatusCode: 409, Message: "SKU already exists"}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("Failed to check SKU", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to create product"}
	}

	if req.Barcode != nil && *req.Barcode != "" {
		if _, err := s.products.FindByBarcode(ctx, *req.Barcode); err == nil {
			return nil, &ServiceError{StatusCode: 409, Message: "Barcode already exists"}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("Failed to check barcode", zap.Error(err))
			return nil, &ServiceError{StatusCode: 500, Message: "Failed to create product"}
		}
	}

	slug := slugify(req.Name)
	if _, err := s.products.FindBySlug(ctx, slug); err == nil {
		return nil, &ServiceError{StatusCode: 409, Message: "Product with this name already exists"}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("Failed to check product slug", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to create product"}
	}

	threshold := 10
	if req.LowStockThreshold != nil {
		threshold = *req.LowStockThreshold
	}

	product := &models.Product{
		Name:              req.Name,
		Slug:              slug,
		Description:       req.Description,
		Price:             req.Price,
		ComparePrice:      req.ComparePrice,
		SKU:               req.SKU,
		Barcode:           req.Barcode,
		StockQuantity:     req.StockQuantity,
		LowStockThreshold: threshold,
		Weight:            req.Weight,
		ImageURL:          req.ImageURL,
		CategoryID:        req.CategoryID,
		IsActive:          true,
		IsFeatured:        req.IsFeatured,
	}
	if err := s.products.Create(ctx, product); err != nil {
		s.logger.Error("Failed to create product", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to create product"}
	}

	s.logger.Info("Product created", zap.String("sku", product.SKU))
	return product, nil
}

// Update applies a partial update. Stock is deliberately absent here: the
// only way to move StockQuantity is AdjustStock.
func (s *productServiceImpl) Update(ctx context.Context, id uuid.UUID, req *models.UpdateProductRequest) (*models.Product, *ServiceError) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Product not found"}
		}
		s.logger.Error("Failed to look up product", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to update product"}
	}

	price := product.Price
	if req.Price != nil {
		price = *req.Price
	}
	comparePrice := product.ComparePrice
	if req.ComparePrice != nil {
		comparePrice = req.ComparePrice
	}
	if svcErr := validatePricing(price, comparePrice); svcErr != nil {
		return nil, svcErr
	}

	if req.CategoryID != nil && *req.CategoryID != product.CategoryID {
		category, err := s.categories.FindByID(ctx, *req.CategoryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, &ServiceError{StatusCode: 400, Message: "Invalid or inactive category"}
			}
			s.logger.Error("Failed to look up category", zap.Error(err))
			return nil, &ServiceError{StatusCode: 500, Message: "Failed to update product"}
		}
		if !category.IsActive {
			return nil, &ServiceError{StatusCode: 400, Message: "Invalid or inactive category"}
		}
		product.CategoryID = *req.CategoryID
	}

	if req.Barcode != nil && *req.Barcode != "" &&
		(product.Barcode == nil || *req.Barcode != *product.Barcode) {
		if _, err := s.products.FindByBarcode(ctx, *req.Barcode); err == nil {
			return nil, &ServiceError{StatusCode: 409, Message: "Barcode already exists"}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("Failed to check barcode", zap.Error(err))
			return nil, &ServiceError{StatusCode: 500, Message: "Failed to update product"}
		}
	}

	product.Price = price
	product.ComparePrice = comparePrice
	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Barcode != nil {
		product.Barcode = req.Barcode
	}
	if req.LowStockThreshold != nil {
		product.LowStockThreshold = *req.LowStockThreshold
	}
	if req.Weight != nil {
		product.Weight = req.Weight
	}
	if req.ImageURL != nil {
		product.ImageURL = *req.ImageURL
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	if req.IsFeatured != nil {
		product.IsFeatured = *req.IsFeatured
	}

	// Category association may be stale after a category change; persist
	// columns only.
	product.Category = nil
	if err := s.products.Update(ctx, product); err != nil {
		s.logger.Error("Failed to update product", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to update product"}
	}

	s.cache.Delete(ctx, cache.ProductKey(id.String()))
	return product, nil
}

// Delete soft-deletes by default, preserving order history. A hard delete
// is refused while order items reference the product; cart lines holding
// it are dropped in the same transaction.
func (s *productServiceImpl) Delete(ctx context.Context, id uuid.UUID, hard bool) *ServiceError {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ServiceError{StatusCode: 404, Message: "Product not found"}
		}
		s.logger.Error("Failed to look up product", zap.Error(err))
		return &ServiceError{StatusCode: 500, Message: "Failed to delete product"}
	}

	if !hard {
		product.IsActive = false
		product.Category = nil
		if err := s.products.Update(ctx, product); err != nil {
			s.logger.Error("Failed to deactivate product", zap.Error(err))
			return &ServiceError{StatusCode: 500, Message: "Failed to delete product"}
		}
		s.cache.Delete(ctx, cache.ProductKey(id.String()))
		s.logger.Info("Product deactivated", zap.String("sku", product.SKU))
		return nil
	}

	refs, err := s.orders.CountItemsByProduct(ctx, id)
	if err != nil {
		s.logger.Error("Failed to count order references", zap.Error(err))
		return &ServiceError{StatusCode: 500, Message: "Failed to delete product"}
	}
	if refs > 0 {
		return &ServiceError{StatusCode: 409, Message: "Cannot delete a product referenced by orders"}
	}

	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.carts.WithTx(tx).DeleteItemsByProduct(ctx, id); err != nil {
			return err
		}
		return s.products.WithTx(tx).Delete(ctx, id)
	})
	if err != nil {
		s.logger.Error("Failed to delete product", zap.Error(err))
		return &ServiceError{StatusCode: 500, Message: "Failed to delete product"}
	}

	s.cache.Delete(ctx, cache.ProductKey(id.String()))
	s.logger.Info("Product deleted", zap.String("sku", product.SKU))
	return nil
}

// Get retrieves one product, served from cache when warm. With activeOnly
// set, inactive products are indistinguishable from missing ones.
func (s *productServiceImpl) Get(ctx context.Context, id uuid.UUID, activeOnly bool) (*models.Product, *ServiceError) {
	key := cache.ProductKey(id.String())

	var cached models.Product
	if s.cache.Get(ctx, key, &cached) {
		if activeOnly && !cached.IsActive {
			return nil, &ServiceError{StatusCode: 404, Message: "Product not found"}
		}
		return &cached, nil
	}

	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Product not found"}
		}
		s.logger.Error("Failed to look up product", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to look up product"}
	}

	s.cache.Set(ctx, key, product)
	if activeOnly && !product.IsActive {
		return nil, &ServiceError{StatusCode: 404, Message: "Product not found"}
	}
	return product, nil
}

// List retrieves paginated products matching the filter.
func (s *productServiceImpl) List(ctx context.Context, filter models.ProductListFilter) ([]models.Product, int64, *ServiceError) {
	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list products", zap.Error(err))
		return nil, 0, &ServiceError{StatusCode: 500, Message: "Failed to list products"}
	}
	return products, total, nil
}

// ListLowStock returns active products at or below their threshold.
func (s *productServiceImpl) ListLowStock(ctx context.Context) ([]models.Product, *ServiceError) {
	products, err := s.products.ListLowStock(ctx)
	if err != nil {
		s.logger.Error("Failed to list low-stock products", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to list low-stock products"}
	}
	return products, nil
}

// AdjustStock applies one stock operation under an exclusive row lock, so
// concurrent adjustments and checkouts on the same product serialize.
func (s *productServiceImpl) AdjustStock(ctx context.Context, id uuid.UUID, quantity int, op models.StockOperation) (*models.Product, *ServiceError) {
	if !op.IsValid() {
		return nil, &ServiceError{StatusCode: 400, Message: "Invalid stock operation"}
	}
	if quantity < 0 {
		return nil, &ServiceError{StatusCode: 400, Message: "Quantity cannot be negative"}
	}

	var svcErr *ServiceError
	var product *models.Product

	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		products := s.products.WithTx(tx)

		p, err := products.FindByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				svcErr = &ServiceError{StatusCode: 404, Message: "Product not found"}
				return svcErr
			}
			return err
		}

		next, ok := applyStockOperation(p.StockQuantity, quantity, op)
		if !ok {
			svcErr = &ServiceError{
				StatusCode: 400,
				Message:    fmt.Sprintf("Insufficient stock. Only %d available", p.StockQuantity),
			}
			return svcErr
		}

		if err := products.UpdateStockQuantity(ctx, p.ID, next); err != nil {
			return err
		}
		p.StockQuantity = next
		product = p
		return nil
	})
	if svcErr != nil {
		return nil, svcErr
	}
	if err != nil {
		s.logger.Error("Failed to adjust stock", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to adjust stock"}
	}

	s.cache.Delete(ctx, cache.ProductKey(id.String()))
	s.logger.Info("Stock adjusted",
		zap.String("sku", product.SKU),
		zap.String("operation", string(op)),
		zap.Int("stock", product.StockQuantity),
	)
	return product, nil
}

// BulkUpdatePrices changes many prices in one transaction. Any bad entry —
// unknown product, non-positive price, compare-price conflict — rolls back
// the whole batch; partial application is never acceptable.
func (s *productServiceImpl) BulkUpdatePrices(ctx context.Context, req *models.BulkPriceUpdateRequest) (int, *ServiceError) {
	var svcErr *ServiceError
	updated := 0

	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		products := s.products.WithTx(tx)
		for _, u := range req.Updates {
			if !u.Price.GreaterThan(decimal.Zero) {
				svcErr = &ServiceError{
					StatusCode: 400,
					Message:    fmt.Sprintf("Price must be greater than 0 for product %s", u.ProductID),
				}
				return svcErr
			}

			p, err := products.FindByID(ctx, u.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					svcErr = &ServiceError{
						StatusCode: 404,
						Message:    fmt.Sprintf("Product %s not found", u.ProductID),
					}
					return svcErr
				}
				return err
			}
			if p.ComparePrice != nil && !p.ComparePrice.GreaterThan(u.Price) {
				svcErr = &ServiceError{
					StatusCode: 400,
					Message:    fmt.Sprintf("Compare price must be greater than price for product %s", u.ProductID),
				}
				return svcErr
			}

			if err := products.UpdatePrice(ctx, u.ProductID, u.Price); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if svcErr != nil {
		return 0, svcErr
	}
	if err != nil {
		s.logger.Error("Failed to bulk update prices", zap.Error(err))
		return 0, &ServiceError{StatusCode: 500, Message: "Failed to bulk update prices"}
	}

	keys := make([]string, 0, len(req.Updates))
	for _, u := range req.Updates {
		keys = append(keys, cache.ProductKey(u.ProductID.String()))
	}
	s.cache.Delete(ctx, keys...)

	s.logger.Info("Bulk price update applied", zap.Int("updated", updated))
	return updated, nil
}
