package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yashrajoria/storefront/middleware"
	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/services"
)

// OrderController handles HTTP requests for checkout and order lifecycle
// operations.
type OrderController struct {
	orderService services.OrderService
}

// NewOrderController creates a new OrderController.
func NewOrderController(orderService services.OrderService) *OrderController {
	return &OrderController{orderService: orderService}
}

// Checkout handles POST /orders: the cart-to-order pipeline.
func (oc *OrderController) Checkout(ctx *gin.Context) {
	userID, err := middleware.UserIDFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.CreateOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	order, svcErr := oc.orderService.CreateOrderFromCart(ctx.Request.Context(), userID, &req)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"order": order})
}

// ListMyOrders handles GET /orders: the caller's own order history.
func (oc *OrderController) ListMyOrders(ctx *gin.Context) {
	userID, err := middleware.UserIDFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	page, limit := parsePaginationParams(ctx)
	orders, total, svcErr := oc.orderService.GetCustomerOrders(ctx.Request.Context(), userID, page, limit)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"meta": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetOrder handles GET /orders/:id. Customers see their own orders; staff
// see any.
func (oc *OrderController) GetOrder(ctx *gin.Context) {
	userID, err := middleware.UserIDFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, svcErr := oc.orderService.GetOrder(ctx.Request.Context(), orderID, userID, middleware.RoleFromContext(ctx))
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"order": order})
}

// GetOrderByNumber handles GET /orders/number/:orderNumber.
func (oc *OrderController) GetOrderByNumber(ctx *gin.Context) {
	userID, err := middleware.UserIDFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	orderNumber := ctx.Param("orderNumber")
	if orderNumber == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Order number is required"})
		return
	}

	order, svcErr := oc.orderService.GetOrderByNumber(ctx.Request.Context(), orderNumber, userID, middleware.RoleFromContext(ctx))
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"order": order})
}

// CancelOrder handles POST /orders/:id/cancel, the customer-initiated
// cancellation.
func (oc *OrderController) CancelOrder(ctx *gin.Context) {
	userID, err := middleware.UserIDFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, svcErr := oc.orderService.CancelMyOrder(ctx.Request.Context(), orderID, userID)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Order cancelled", "order": order})
}

// ListToday handles GET /orders/today for daily staff operations.
func (oc *OrderController) ListToday(ctx *gin.Context) {
	orders, svcErr := oc.orderService.ListToday(ctx.Request.Context())
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

// Search handles GET /orders/search?q=<prefix> for quick staff lookup.
func (oc *OrderController) Search(ctx *gin.Context) {
	term := ctx.Query("q")
	page, limit := parsePaginationParams(ctx)

	orders, total, svcErr := oc.orderService.SearchByOrderNumber(ctx.Request.Context(), term, page, limit)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"meta": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// ListAll handles GET /orders/admin/all with status, payment status and
// date range filters. The manager 30-day window is applied in the service.
func (oc *OrderController) ListAll(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)
	filter := models.OrderListFilter{Page: page, Limit: limit}

	if raw := ctx.Query("status"); raw != "" {
		status := models.OrderStatus(raw)
		filter.Status = &status
	}
	if raw := ctx.Query("payment_status"); raw != "" {
		paymentStatus := models.PaymentStatus(raw)
		filter.PaymentStatus = &paymentStatus
	}
	if raw := ctx.Query("from"); raw != "" {
		from, err := parseTimeParam(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from date"})
			return
		}
		filter.From = &from
	}
	if raw := ctx.Query("to"); raw != "" {
		to, err := parseTimeParam(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to date"})
			return
		}
		filter.To = &to
	}

	orders, total, svcErr := oc.orderService.ListAll(ctx.Request.Context(), filter, middleware.RoleFromContext(ctx))
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"meta": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// UpdateStatus handles PUT /orders/:id/status.
func (oc *OrderController) UpdateStatus(ctx *gin.Context) {
	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req models.UpdateOrderStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	order, svcErr := oc.orderService.UpdateStatus(ctx.Request.Context(), orderID, req.Status, middleware.RoleFromContext(ctx))
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Order status updated", "order": order})
}

// UpdatePaymentStatus handles PUT /orders/:id/payment-status.
func (oc *OrderController) UpdatePaymentStatus(ctx *gin.Context) {
	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req models.UpdatePaymentStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	order, svcErr := oc.orderService.UpdatePaymentStatus(ctx.Request.Context(), orderID, req.PaymentStatus, middleware.RoleFromContext(ctx))
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Payment status updated", "order": order})
}

// Ship handles POST /orders/:id/ship.
func (oc *OrderController) Ship(ctx *gin.Context) {
	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req models.ShipOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	order, svcErr := oc.orderService.ShipOrder(ctx.Request.Context(), orderID, req.TrackingNumber)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Order marked as shipped", "order": order})
}

// SetNotes handles PUT /orders/:id/notes.
func (oc *OrderController) SetNotes(ctx *gin.Context) {
	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req models.AdminNotesRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	order, svcErr := oc.orderService.SetAdminNotes(ctx.Request.Context(), orderID, req.Notes)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Notes added", "order": order})
}

// Refund handles POST /orders/:id/refund.
func (oc *OrderController) Refund(ctx *gin.Context) {
	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req models.RefundOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	order, svcErr := oc.orderService.RefundOrder(ctx.Request.Context(), orderID, req.Reason)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Refund processed", "order": order})
}

// HardDelete handles DELETE /orders/:id. Irreversible; limited to
// cancelled or refunded orders.
func (oc *OrderController) HardDelete(ctx *gin.Context) {
	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	if svcErr := oc.orderService.HardDelete(ctx.Request.Context(), orderID); svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Order permanently deleted"})
}

// parseTimeParam accepts RFC3339 timestamps or bare dates.
func parseTimeParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
