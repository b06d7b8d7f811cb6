package handlers

import (
	"shop-svc/middleware"
	"shop-svc/models"

	"github.com/gin-gonic/gin"
)

type Routes struct {
	Health     *HealthHandler
	Auth       *AuthHandler
	Products   *ProductHandler
	Orders     *OrderHandler
	Payments   *PaymentHandler
	Newsletter *NewsletterHandler
	Admin      *AdminHandler
	Issuer     *middleware.TokenIssuer
}

func (rt Routes) Register(router gin.IRouter) {
	auth := middleware.AuthMiddleware(rt.Issuer)
	admin := middleware.RequireRole(models.RoleAdmin)

	router.GET("/health", rt.Health.HealthCheck)

	router.POST("/auth/register", rt.Auth.Register)
	router.POST("/auth/login", rt.Auth.Login)
	router.GET("/auth/profile", auth, rt.Auth.Profile)

	products := router.Group("/products")
	{
		products.GET("", rt.Products.GetProducts)
		products.GET("/:id", rt.Products.GetProduct)
		products.POST("", auth, admin, rt.Products.CreateProduct)
		products.PUT("/:id", auth, admin, rt.Products.UpdateProduct)
		products.DELETE("/:id", auth, admin, rt.Products.DeleteProduct)
	}

	orders := router.Group("/orders")
	{
		orders.POST("", auth, rt.Orders.CreateOrder)
		orders.POST("/guest", rt.Orders.CreateGuestOrder)
		orders.GET("/me", auth, rt.Orders.MyOrders)
		orders.GET("/:id", auth, rt.Orders.GetOrder)
		orders.GET("", auth, admin, rt.Orders.ListOrders)
		orders.PATCH("/:id/status", auth, admin, rt.Orders.UpdateOrderStatus)
		orders.DELETE("/:id", auth, admin, rt.Orders.DeleteOrder)
	}

	payment := router.Group("/payment")
	{
		payment.POST("/initialize", middleware.OptionalAuth(rt.Issuer), rt.Payments.Initialize)
		payment.GET("/callback", rt.Payments.Callback)
		payment.POST("/verify", rt.Payments.Verify)
		payment.GET("/verify/:reference", rt.Payments.VerifyByReference)
		payment.POST("/webhook", rt.Payments.Webhook)
	}

	router.GET("/payments/me", auth, rt.Payments.MyPayments)
	router.GET("/payments/:id", auth, rt.Payments.GetPayment)
	router.GET("/payments", auth, admin, rt.Payments.ListPayments)

	newsletter := router.Group("/newsletter")
	{
		newsletter.POST("/subscribe", rt.Newsletter.Subscribe)
		newsletter.DELETE("/unsubscribe", rt.Newsletter.Unsubscribe)
		newsletter.GET("/subscribers", auth, admin, rt.Newsletter.Subscribers)
	}

	users := router.Group("/admin/users", auth, admin)
	{
		users.GET("", rt.Admin.ListUsers)
		users.GET("/:id", rt.Admin.GetUser)
		users.DELETE("/:id", rt.Admin.DeleteUser)
	}
}
