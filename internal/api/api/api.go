package api

import (
	"github.com/gin-contrib/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wb-go/wbf/ginext"

	"memberhub/cmd/middleware"
	"memberhub/internal/service"
	"memberhub/pkg/auth"
)

type Routers struct {
	Service service.Service
	Tokens  *auth.TokenManager
	// RateLimit is requests per second shared across the API; zero
	// disables limiting.
	RateLimit float64
	RateBurst int
}

func NewRouters(r *Routers) *ginext.Engine {
	app := ginext.New("release")

	app.Use(middleware.LoggingMiddleware())
	app.Use(cors.Default())
	if r.RateLimit > 0 {
		app.Use(middleware.RateLimit(r.RateLimit, r.RateBurst))
	}

	app.GET("/metrics", func(c *ginext.Context) {
		promhttp.Handler().ServeHTTP(c.Writer, c.Request)
	})

	apiGroup := app.Group("/v1")

	apiGroup.POST("/auth/login", r.Service.Login)
	apiGroup.POST("/memberships/entries", r.Service.CreateEntry)
	apiGroup.POST("/memberships/entries/:id/confirm", r.Service.ConfirmEntry)

	public := apiGroup.Group("")
	public.Use(middleware.OptionalAuth(r.Tokens))
	public.GET("/events", r.Service.GetAllEvents)
	public.GET("/events/:id", r.Service.GetEvent)
	public.GET("/events/:id/status", r.Service.RegistrationStatus)

	authed := apiGroup.Group("")
	authed.Use(middleware.Auth(r.Tokens))
	authed.POST("/events/:id/register", r.Service.Register)
	authed.POST("/events/:id/registrations", r.Service.RegisterExternal)
	authed.POST("/events/:id/cancel", r.Service.Cancel)
	authed.PATCH("/registrations/:id/present", r.Service.SetPresent)
	authed.POST("/registrations/:id/cancel", r.Service.CancelRegistration)

	authed.POST("/payments", r.Service.CreatePayment)
	authed.DELETE("/payments", r.Service.DeletePayment)
	authed.GET("/payments/:id", r.Service.GetPayment)

	authed.GET("/food/products", r.Service.ListFoodProducts)
	authed.POST("/food/orders", r.Service.CreateFoodOrder)
	authed.GET("/food/orders/:id", r.Service.GetFoodOrder)
	authed.PATCH("/food/orders/:id", r.Service.UpdateFoodOrder)

	admin := apiGroup.Group("")
	admin.Use(middleware.Auth(r.Tokens), middleware.AdminOnly())
	admin.POST("/events", r.Service.CreateEvent)
	admin.POST("/members", r.Service.CreateMember)
	admin.POST("/payments/batches", r.Service.CreateBatch)
	admin.POST("/payments/batches/:id/process", r.Service.ProcessBatch)
	admin.GET("/memberships/entries", r.Service.ListEntries)
	admin.GET("/memberships/entries/:id", r.Service.GetEntry)
	admin.PATCH("/memberships/entries/:id/status", r.Service.UpdateEntryStatus)
	admin.POST("/food/events", r.Service.CreateFoodEvent)
	admin.GET("/food/events/:id/orders", r.Service.ListFoodOrders)
	admin.POST("/sales/orders", r.Service.CreateSalesOrder)
	admin.GET("/sales/orders/:id", r.Service.GetSalesOrder)
	admin.PATCH("/sales/orders/:id", r.Service.UpdateSalesOrder)
	admin.PATCH("/sales/orders/:id/items/:itemId", r.Service.UpdateSalesOrderItem)

	return app
}
