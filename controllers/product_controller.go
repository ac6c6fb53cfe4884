package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/services"
)

// ProductController handles HTTP requests for product operations.
type ProductController struct {
	productService services.ProductService
}

// NewProductController creates a new ProductController.
func NewProductController(productService services.ProductService) *ProductController {
	return &ProductController{productService: productService}
}

// ListProducts handles GET /products with pagination and filters.
func (pc *ProductController) ListProducts(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)

	filter := models.ProductListFilter{
		Search:     ctx.Query("search"),
		ActiveOnly: ctx.DefaultQuery("active_only", "true") != "false",
		Page:       page,
		Limit:      limit,
	}
	if raw := ctx.Query("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID"})
			return
		}
		filter.CategoryID = &id
	}
	if raw := ctx.Query("featured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid featured flag"})
			return
		}
		filter.Featured = &featured
	}

	products, total, svcErr := pc.productService.List(ctx.Request.Context(), filter)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	totalPages := int64(0)
	if limit > 0 {
		totalPages = (total + int64(limit) - 1) / int64(limit)
	}

	ctx.JSON(http.StatusOK, gin.H{
		"products": products,
		"meta": gin.H{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": totalPages,
			"has_more":    total > int64(page*limit),
		},
	})
}

// GetProduct handles GET /products/:id.
func (pc *ProductController) GetProduct(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}
	activeOnly := ctx.DefaultQuery("active_only", "true") != "false"

	product, svcErr := pc.productService.Get(ctx.Request.Context(), id, activeOnly)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"product": product})
}

// ListLowStock handles GET /products/low-stock (staff).
func (pc *ProductController) ListLowStock(ctx *gin.Context) {
	products, svcErr := pc.productService.ListLowStock(ctx.Request.Context())
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

// CreateProduct handles POST /products.
func (pc *ProductController) CreateProduct(ctx *gin.Context) {
	var req models.CreateProductRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	product, svcErr := pc.productService.Create(ctx.Request.Context(), &req)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"product": product})
}

// UpdateProduct handles PUT /products/:id.
func (pc *ProductController) UpdateProduct(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	var req models.UpdateProductRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	product, svcErr := pc.productService.Update(ctx.Request.Context(), id, &req)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"product": product})
}

// UpdateStock handles PUT /products/:id/stock. The body carries a quantity
// and an operation (add, subtract, set); all stock arithmetic happens in
// the service under a row lock.
func (pc *ProductController) UpdateStock(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	var req models.UpdateStockRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	product, svcErr := pc.productService.AdjustStock(ctx.Request.Context(), id, req.Quantity, req.Operation)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"product": product})
}

// BulkUpdatePrices handles PUT /products/bulk-prices. All-or-nothing: one
// bad row rolls back the whole batch.
func (pc *ProductController) BulkUpdatePrices(ctx *gin.Context) {
	var req models.BulkPriceUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	updated, svcErr := pc.productService.BulkUpdatePrices(ctx.Request.Context(), &req)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Prices updated", "updated": updated})
}

// DeleteProduct handles DELETE /products/:id. Soft-deletes by default;
// ?hard=true removes the row when no order history references it.
func (pc *ProductController) DeleteProduct(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}
	hard := ctx.Query("hard") == "true"

	if svcErr := pc.productService.Delete(ctx.Request.Context(), id, hard); svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	if hard {
		ctx.JSON(http.StatusOK, gin.H{"message": "Product permanently deleted"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Product deactivated"})
}

// parsePaginationParams extracts and validates pagination parameters.
func parsePaginationParams(ctx *gin.Context) (int, int) {
	const MaxLimit = 100
	const DefaultPage = 1
	const DefaultLimit = 20

	pageInt := DefaultPage
	limitInt := DefaultLimit

	if p, err := strconv.Atoi(ctx.DefaultQuery("page", "1")); err == nil && p > 0 {
		pageInt = p
	}
	if l, err := strconv.Atoi(ctx.DefaultQuery("limit", "20")); err == nil && l > 0 {
		limitInt = l
		if limitInt > MaxLimit {
			limitInt = MaxLimit
		}
	}

	return pageInt, limitInt
}
