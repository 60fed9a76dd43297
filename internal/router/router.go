// Package router assembles the gin engine: middleware chain, route groups,
// and per-route RBAC.
package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/backoffice-api/internal/handler"
	"github.com/noah-isme/backoffice-api/internal/middleware"
	"github.com/noah-isme/backoffice-api/internal/models"
	"github.com/noah-isme/backoffice-api/internal/repository"
	"github.com/noah-isme/backoffice-api/internal/service"
	"github.com/noah-isme/backoffice-api/pkg/config"
	"github.com/noah-isme/backoffice-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/backoffice-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/backoffice-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler mounted by the router.
type Handlers struct {
	Auth     *handler.AuthHandler
	Products *handler.ProductHandler
	Dispatch *handler.DispatchHandler
	Breakage *handler.BreakageHandler
	Lookups  *handler.LookupHandler
	Exports  *handler.ExportHandler
	Metrics  *handler.MetricsHandler
}

// New builds the HTTP engine with the full middleware chain and route tree.
// The audit repository backs request-level audit trails on auth endpoints;
// domain mutations record their own entries at the service layer.
func New(cfg *config.Config, log *zap.Logger, auth *service.AuthService, metrics *service.MetricsService, audit *repository.UserRepository, h Handlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", middleware.Audit(audit, "auth.login", "sessions"), h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
		authGroup.POST("/forgot-password", h.Auth.ForgotPassword)
		authGroup.POST("/reset-password", h.Auth.ResetPassword)

		protected := authGroup.Group("")
		protected.Use(middleware.JWT(auth))
		protected.POST("/logout", h.Auth.Logout)
		protected.POST("/change-password", middleware.Audit(audit, "auth.change_password", "users"), h.Auth.ChangePassword)
		protected.GET("/me", h.Auth.Me)
	}

	// Export downloads authenticate via the signed token in the URL, so they
	// sit outside the JWT group.
	api.GET("/exports/download/:token", h.Exports.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(auth))

	products := secured.Group("/products")
	{
		products.GET("", h.Products.List)
		products.GET("/:id", h.Products.Get)
		products.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleManager), h.Products.Create)
		products.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleManager), h.Products.Update)
		products.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), h.Products.Delete)
	}

	dispatches := secured.Group("/dispatches")
	{
		dispatches.GET("", h.Dispatch.List)
		dispatches.GET("/:id", h.Dispatch.Get)
		dispatches.POST("", h.Dispatch.Create)
		dispatches.PUT("/:id", h.Dispatch.Update)
		dispatches.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleManager), h.Dispatch.Delete)
		dispatches.POST("/:id/acknowledge", h.Dispatch.AcknowledgeReceipt)
		dispatches.POST("/:id/returns", h.Dispatch.ReturnItems)
	}

	breakages := secured.Group("/breakages")
	{
		breakages.GET("", h.Breakage.List)
		breakages.GET("/assignable-items", h.Breakage.AssignableItems)
		breakages.GET("/:id", h.Breakage.Get)
		breakages.POST("", h.Breakage.Create)
		breakages.PUT("/:id", h.Breakage.Update)
		breakages.DELETE("/:id", h.Breakage.Delete)
		breakages.POST("/:id/review", middleware.RequireRoles(models.RoleAdmin, models.RoleManager), h.Breakage.Review)
		breakages.POST("/:id/replacement-dispatch", middleware.RequireRoles(models.RoleAdmin, models.RoleManager), h.Breakage.CreateReplacementDispatch)
	}

	lookups := secured.Group("/lookups")
	{
		lookups.GET("/stores", h.Lookups.Stores)
		lookups.GET("/categories", h.Lookups.Categories)
		lookups.GET("/suppliers", h.Lookups.Suppliers)
		lookups.GET("/users", h.Lookups.Users)
		lookups.GET("/form-data", h.Lookups.FormData)
	}

	exports := secured.Group("/exports")
	{
		exports.GET("", h.Exports.ListMine)
		exports.POST("", h.Exports.Request)
		exports.GET("/:id", h.Exports.Get)
	}

	secured.GET("/system/metrics", middleware.RequireRoles(models.RoleAdmin), h.Metrics.System)

	return r
}
