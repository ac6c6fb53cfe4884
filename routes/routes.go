package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/yashrajoria/storefront/controllers"
	"github.com/yashrajoria/storefront/middleware"
	"github.com/yashrajoria/storefront/services"
)

// RegisterAuthRoutes sets up authentication routes.
func RegisterAuthRoutes(r *gin.Engine, tokens services.TokenIssuer, ac *controllers.AuthController) {
	auth := r.Group("/api/auth")
	auth.POST("/register", ac.Register)
	auth.POST("/login", ac.Login)
	auth.POST("/refresh", ac.Refresh)

	auth.GET("/me", middleware.Authenticate(tokens), ac.Me)
}

// RegisterCategoryRoutes sets up category routes. Reads are public; writes
// are manager and up, deletes and reordering admin only.
func RegisterCategoryRoutes(r *gin.Engine, tokens services.TokenIssuer, cc *controllers.CategoryController) {
	categories := r.Group("/api/categories")
	categories.GET("", cc.ListTree)
	categories.GET("/:id", cc.GetCategory)

	staff := categories.Group("")
	staff.Use(middleware.Authenticate(tokens))
	staff.POST("", middleware.RequirePermission(middleware.PermCatalogWrite), cc.CreateCategory)
	staff.PUT("/reorder", middleware.RequirePermission(middleware.PermCatalogDelete), cc.ReorderCategories)
	staff.PUT("/:id", middleware.RequirePermission(middleware.PermCatalogWrite), cc.UpdateCategory)
	staff.DELETE("/:id", middleware.RequirePermission(middleware.PermCatalogDelete), cc.DeleteCategory)
}

// RegisterProductRoutes sets up product routes.
func RegisterProductRoutes(r *gin.Engine, tokens services.TokenIssuer, pc *controllers.ProductController) {
	products := r.Group("/api/products")
	products.GET("", pc.ListProducts)

	staff := products.Group("")
	staff.Use(middleware.Authenticate(tokens))
	staff.GET("/low-stock", middleware.RequirePermission(middleware.PermOrderReadAny), pc.ListLowStock)
	staff.POST("", middleware.RequirePermission(middleware.PermCatalogWrite), pc.CreateProduct)
	staff.PUT("/bulk-prices", middleware.RequirePermission(middleware.PermCatalogDelete), pc.BulkUpdatePrices)
	staff.PUT("/:id/stock", middleware.RequirePermission(middleware.PermCatalogWrite), pc.UpdateStock)
	staff.PUT("/:id", middleware.RequirePermission(middleware.PermCatalogWrite), pc.UpdateProduct)
	staff.DELETE("/:id", middleware.RequirePermission(middleware.PermCatalogDelete), pc.DeleteProduct)

	products.GET("/:id", pc.GetProduct)
}

// RegisterCartRoutes sets up cart routes. Every cart operation requires an
// authenticated caller with a customer profile.
func RegisterCartRoutes(r *gin.Engine, tokens services.TokenIssuer, cc *controllers.CartController) {
	cart := r.Group("/api/cart")
	cart.Use(middleware.Authenticate(tokens), middleware.RequirePermission(middleware.PermCartUse))

	cart.GET("", cc.GetCart)
	cart.GET("/validate", cc.ValidateCart)
	cart.POST("/items", cc.AddItem)
	cart.PUT("/items/:productId", cc.UpdateItem)
	cart.DELETE("/items/:productId", cc.RemoveItem)
	cart.DELETE("", cc.ClearCart)
}

// RegisterOrderRoutes sets up checkout, customer order history and the
// staff lifecycle operations.
func RegisterOrderRoutes(r *gin.Engine, tokens services.TokenIssuer, oc *controllers.OrderController) {
	orders := r.Group("/api/orders")
	orders.Use(middleware.Authenticate(tokens))

	// Customer-facing operations.
	own := orders.Group("")
	own.Use(middleware.RequirePermission(middleware.PermOrderOwn))
	own.POST("", oc.Checkout)
	own.GET("", oc.ListMyOrders)
	own.GET("/number/:orderNumber", oc.GetOrderByNumber)
	own.POST("/:id/cancel", oc.CancelOrder)

	// Staff operations.
	orders.GET("/today", middleware.RequirePermission(middleware.PermOrderReadAny), oc.ListToday)
	orders.GET("/search", middleware.RequirePermission(middleware.PermOrderReadAny), oc.Search)
	orders.GET("/admin/all", middleware.RequirePermission(middleware.PermOrderListAll), oc.ListAll)

	orders.PUT("/:id/status", middleware.RequirePermission(middleware.PermOrderUpdateStatus), oc.UpdateStatus)
	orders.PUT("/:id/payment-status", middleware.RequirePermission(middleware.PermOrderUpdatePayment), oc.UpdatePaymentStatus)
	orders.POST("/:id/ship", middleware.RequirePermission(middleware.PermOrderUpdateStatus), oc.Ship)
	orders.PUT("/:id/notes", middleware.RequirePermission(middleware.PermOrderNotes), oc.SetNotes)
	orders.POST("/:id/refund", middleware.RequirePermission(middleware.PermOrderRefund), oc.Refund)
	orders.DELETE("/:id", middleware.RequirePermission(middleware.PermOrderHardDelete), oc.HardDelete)

	// Ownership (customer sees own, staff sees any) is decided in the
	// service, so this route only needs an authenticated caller.
	orders.GET("/:id", middleware.RequirePermission(middleware.PermOrderOwn), oc.GetOrder)
}
