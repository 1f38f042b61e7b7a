// internal/router/router.go
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/tarksober/license-backend/internal/config"
	"github.com/tarksober/license-backend/internal/events"
	"github.com/tarksober/license-backend/internal/handlers"
	"github.com/tarksober/license-backend/internal/middleware"
	"github.com/tarksober/license-backend/internal/services"
	"github.com/tarksober/license-backend/internal/utils"
)

// Dependencies are the process-wide collaborators the routes are built on.
type Dependencies struct {
	DB        *gorm.DB
	Config    *config.Config
	Gateway   services.Gateway
	Cache     services.MethodsCache
	Publisher events.Publisher
	Logger    logrus.FieldLogger

	// Stop ends the rate limiters' cleanup loops. Optional.
	Stop <-chan struct{}
}

func Initialize(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	db := deps.DB

	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NewLoggingPublisher(logger)
	}

	cache := deps.Cache
	if cache == nil {
		cache = services.NewDBMethodsCache(db)
	}

	// Initialize services
	notificationService := services.NewNotificationService(publisher)
	productService := services.NewProductService(db)
	paymentService := services.NewPaymentService(db, cfg, deps.Gateway, cache, productService)
	webhookService := services.NewWebhookService(db, cfg, notificationService)
	licenseService := services.NewLicenseService(db, cfg, notificationService)

	// Initialize handlers
	productHandler := handlers.NewProductHandler(productService)
	paymentHandler := handlers.NewPaymentHandler(paymentService, cfg.Checkout.PublicBaseURL)
	webhookHandler := handlers.NewWebhookHandler(webhookService)
	licenseHandler := handlers.NewLicenseHandler(licenseService)
	verificationHandler := handlers.NewVerificationHandler(licenseService)
	userHandler := handlers.NewUserHandler(licenseService)

	verifier := utils.NewIdentityVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	publicLimiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimit.PublicPerSecond), cfg.RateLimit.PublicBurst)
	if deps.Stop != nil {
		go publicLimiter.Run(deps.Stop)
	}

	// Initialize Gin router
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		logger.WithError(err).Error("Invalid trusted proxies, ignoring forwarded headers")
		_ = r.SetTrustedProxies(nil)
	}

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(middleware.I18nMiddleware())

	// Health check
	r.GET("/health", handlers.Health)

	// Gateway return URL
	r.GET("/payment/return", paymentHandler.PaymentReturn)

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Gateway notifications are acknowledged unconditionally, so no limiter.
		v1.POST("/payment-webhook", webhookHandler.HandleNotification)
		v1.GET("/payment-webhook", webhookHandler.HandleNotification)

		public := v1.Group("")
		public.Use(publicLimiter.Middleware())
		{
			public.GET("/products", productHandler.GetProducts)
			public.GET("/payment-methods", paymentHandler.GetPaymentMethods)
			public.POST("/checkout", paymentHandler.CreateCheckout)
			public.POST("/collect-email", licenseHandler.CollectEmail)
			public.POST("/devices/activate", licenseHandler.ActivateDevice)
			public.GET("/premium-status", verificationHandler.PremiumStatus)
		}

		// Account routes
		protected := v1.Group("")
		protected.Use(publicLimiter.Middleware(), middleware.AuthRequired(verifier))
		{
			protected.POST("/devices/deactivate", licenseHandler.DeactivateDevice)
			protected.GET("/me/licenses", userHandler.MyLicenses)
			protected.POST("/me/link-account", userHandler.LinkAccount)
		}
	}

	return r
}
