package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/services"
)

// CategoryController handles HTTP requests for category operations.
type CategoryController struct {
	categoryService services.CategoryService
}

// NewCategoryController creates a new CategoryController.
func NewCategoryController(categoryService services.CategoryService) *CategoryController {
	return &CategoryController{categoryService: categoryService}
}

// ListTree handles GET /categories. Inactive categories are hidden unless
// the caller passes active_only=false.
func (cc *CategoryController) ListTree(ctx *gin.Context) {
	activeOnly := ctx.DefaultQuery("active_only", "true") != "false"

	tree, svcErr := cc.categoryService.Tree(ctx.Request.Context(), activeOnly)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"categories": tree})
}

// GetCategory handles GET /categories/:id.
func (cc *CategoryController) GetCategory(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID"})
		return
	}
	activeOnly := ctx.DefaultQuery("active_only", "true") != "false"

	category, svcErr := cc.categoryService.Get(ctx.Request.Context(), id, activeOnly)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"category": category})
}

// CreateCategory handles POST /categories.
func (cc *CategoryController) CreateCategory(ctx *gin.Context) {
	var req models.CreateCategoryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	category, svcErr := cc.categoryService.Create(ctx.Request.Context(), &req)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"category": category})
}

// UpdateCategory handles PUT /categories/:id.
func (cc *CategoryController) UpdateCategory(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID"})
		return
	}

	var req models.UpdateCategoryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	category, svcErr := cc.categoryService.Update(ctx.Request.Context(), id, &req)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"category": category})
}

// DeleteCategory handles DELETE /categories/:id.
func (cc *CategoryController) DeleteCategory(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID"})
		return
	}

	if svcErr := cc.categoryService.Delete(ctx.Request.Context(), id); svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Category deleted"})
}

// ReorderCategories handles PUT /categories/reorder.
func (cc *CategoryController) ReorderCategories(ctx *gin.Context) {
	var req models.ReorderCategoriesRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if svcErr := cc.categoryService.Reorder(ctx.Request.Context(), &req); svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Categories reordered"})
}
