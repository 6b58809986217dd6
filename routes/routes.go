package routes

import (
	"commerce-core/controllers"
	"commerce-core/middleware"
	"commerce-core/websocket"

	"github.com/gin-gonic/gin"
)

// Register wires the HTTP surface: public catalog reads, authenticated cart
// and order routes, admin routes, the Stripe webhook and the status feed.
func Register(
	r *gin.Engine,
	jwtSecret string,
	catalog *controllers.CatalogController,
	cart *controllers.CartController,
	orders *controllers.OrderController,
	webhookCtl *controllers.PaymentWebhookController,
	wsHandler *websocket.Handler,
) {
	auth := middleware.AuthMiddleware(jwtSecret)

	products := r.Group("/products")
	{
		products.GET("/", catalog.ListProducts)
		products.GET("/:id", catalog.GetProduct)
		products.GET("/:id/stock", catalog.GetStock)
	}

	cartRoutes := r.Group("/cart")
	cartRoutes.Use(auth)
	{
		cartRoutes.GET("/", cart.GetCart)
		cartRoutes.POST("/add", cart.AddLine)
		cartRoutes.DELETE("/remove/:product_id", cart.RemoveLine)
		cartRoutes.DELETE("/clear", cart.ClearCart)
	}

	orderRoutes := r.Group("/orders")
	orderRoutes.Use(auth)
	{
		orderRoutes.POST("/", orders.CreateOrder)
		orderRoutes.GET("/", orders.GetOrders)
		orderRoutes.GET("/:id", orders.GetOrderByID)
		orderRoutes.POST("/:id/cancel", orders.CancelOrder)
		orderRoutes.POST("/:id/confirm-payment", orders.ConfirmPayment)
		orderRoutes.GET("/:id/status/ws", wsHandler.ServeWS)
	}

	adminRoutes := r.Group("/admin")
	adminRoutes.Use(auth, middleware.AdminOnly())
	{
		adminRoutes.GET("/orders", orders.GetAllOrders)
		adminRoutes.PATCH("/orders/:id/status", orders.UpdateStatus)
		adminRoutes.POST("/orders/:id/cancel", orders.CancelOrder)
		adminRoutes.PUT("/products", catalog.UpsertProduct)
	}

	// Gateway callbacks authenticate by signature, not bearer token.
	r.POST("/webhooks/stripe", webhookCtl.StripeWebhook)
}
