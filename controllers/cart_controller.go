package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yashrajoria/storefront/middleware"
	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/services"
)

// CartController handles HTTP requests for cart operations. Every handler
// acts on the authenticated caller's own cart.
type CartController struct {
	cartService services.CartService
}

// NewCartController creates a new CartController.
func NewCartController(cartService services.CartService) *CartController {
	return &CartController{cartService: cartService}
}

// GetCart handles GET /cart.
func (cc *CartController) GetCart(ctx *gin.Context) {
	userID, err := middleware.UserIDFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	cart, svcErr := cc.cartService.GetCart(ctx.Request.Context(), userID)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, cartResponse(cart))
}

// AddItem handles POST /cart/items.
func (cc *CartController) AddItem(ctx *gin.Context) {
	userID, err := middleware.UserIDFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.AddCartItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	cart, svcErr := cc.cartService.AddItem(ctx.Request.Context(), userID, &req)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, cartResponse(cart))
}

// UpdateItem handles PUT /cart/items/:productId.
func (cc *CartController) UpdateItem(ctx *gin.Context) {
	userID, err := middleware.UserIDFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	productID, err := uuid.Parse(ctx.Param("productId"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	var req models.UpdateCartItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	cart, svcErr := cc.cartService.UpdateItemQuantity(ctx.Request.Context(), userID, productID, req.Quantity)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, cartResponse(cart))
}

// RemoveItem handles DELETE /cart/items/:productId.
func (cc *CartController) RemoveItem(ctx *gin.Context) {
	userID, err := middleware.UserIDFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	productID, err := uuid.Parse(ctx.Param("productId"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	cart, svcErr := cc.cartService.RemoveItem(ctx.Request.Context(), userID, productID)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, cartResponse(cart))
}

// ClearCart handles DELETE /cart.
func (cc *CartController) ClearCart(ctx *gin.Context) {
	userID, err := middleware.UserIDFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	cart, svcErr := cc.cartService.ClearCart(ctx.Request.Context(), userID)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	if cart == nil {
		ctx.JSON(http.StatusOK, gin.H{"message": "Cart is already empty"})
		return
	}

	ctx.JSON(http.StatusOK, cartResponse(cart))
}

// ValidateCart handles GET /cart/validate, the non-mutating checkout
// pre-flight.
func (cc *CartController) ValidateCart(ctx *gin.Context) {
	userID, err := middleware.UserIDFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	valid, reason, svcErr := cc.cartService.ValidateForCheckout(ctx.Request.Context(), userID)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	if !valid {
		ctx.JSON(http.StatusOK, gin.H{"valid": false, "reason": reason})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"valid": true})
}

// cartResponse shapes the cart payload with its derived totals.
func cartResponse(cart *models.Cart) gin.H {
	return gin.H{
		"cart":        cart,
		"subtotal":    cart.Subtotal(),
		"total_items": cart.TotalItems(),
	}
}
