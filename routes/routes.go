package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/AmanCH3/hamro-grocery-backend/controllers"
	"github.com/AmanCH3/hamro-grocery-backend/middleware"
)

// Controllers groups every handler the route table binds.
type Controllers struct {
	Auth    *controllers.AuthController
	Orders  *controllers.OrderController
	Payment *controllers.PaymentController
	Health  *controllers.HealthController
}

// Register sets up all API routes.
func Register(r *gin.Engine, c Controllers, tokens middleware.TokenValidator) {
	r.GET("/health", c.Health.Health)
	r.GET("/ready", c.Health.Ready)

	auth := middleware.AuthMiddleware(tokens)
	authLimit := middleware.RateLimitMiddleware(20, 10)
	paymentLimit := middleware.RateLimitMiddleware(30, 10)

	api := r.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.POST("/register", authLimit, c.Auth.Register)
	authRoutes.POST("/login", authLimit, c.Auth.Login)
	authRoutes.GET("/profile", auth, c.Auth.Profile)

	orderRoutes := api.Group("/orders", auth)
	orderRoutes.POST("", c.Orders.CreateOrder)
	orderRoutes.GET("", c.Orders.GetOrders)
	orderRoutes.GET("/:id", c.Orders.GetOrderByID)

	paymentRoutes := api.Group("/payment")
	paymentRoutes.POST("/initiate", auth, paymentLimit, c.Payment.InitiatePayment)
	paymentRoutes.POST("/verify", auth, c.Payment.VerifyPayment)
	// Gateway return URL; the browser arrives here without our token.
	paymentRoutes.GET("/verify", c.Payment.VerifyRedirect)

	adminRoutes := api.Group("/admin", auth, middleware.AdminOnly())
	adminRoutes.GET("/orders", c.Orders.GetAllOrders)
	adminRoutes.PATCH("/orders/:id/fulfil", c.Orders.FulfilOrder)
}
