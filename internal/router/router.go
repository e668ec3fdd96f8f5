package router

import (
	"context"
	"net/http"
	"time"

	"tokenguard/config"
	"tokenguard/internal/admin"
	"tokenguard/internal/handler"
	"tokenguard/internal/jobs"
	"tokenguard/internal/middleware"
	"tokenguard/internal/repository"
	"tokenguard/internal/service"
	"tokenguard/internal/settings"
	"tokenguard/internal/ws"
	"tokenguard/pkg/probe"
	"tokenguard/pkg/recaptcha"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Setup wires repositories, services and handlers. The returned scheduler is not started.
func Setup(cfg *config.Config, db *gorm.DB) (*gin.Engine, *jobs.Scheduler) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(cors.New(corsConfig(cfg)))
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow)))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	promotionRepo := repository.NewPromotionRepository(db)
	cacheRepo := repository.NewCacheRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	adminRepo := repository.NewAdminRepository(db)

	hub := ws.NewHub()

	// Services
	settingsSvc := settings.NewService(settingRepo)
	notifSvc := service.NewNotificationService(notificationRepo, hub)
	ledger := service.NewLedgerService(db, notifSvc)
	cacheSvc := service.NewCacheService(cacheRepo)
	authSvc := service.NewAuthService(cfg, userRepo, ledger, settingsSvc)
	analysisSvc := service.NewAnalysisService(settingsSvc, cacheSvc, ledger, analysisRepo)
	paymentSvc := service.NewPaymentService(cfg, settingsSvc, txRepo, ledger, auditRepo)
	promotionSvc := service.NewPromotionService(promotionRepo, auditRepo, settingsSvc)
	dashboardSvc := service.NewDashboardService(adminRepo, userRepo, settingsSvc)
	dispatcher := admin.NewDispatcher(admin.Deps{
		Settings:   settingsSvc,
		Probe:      probe.New(),
		Cache:      cacheSvc,
		Stats:      dashboardSvc,
		Promotions: promotionSvc,
		Ledger:     ledger,
		Payments:   paymentSvc,
	})

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, ledger, userRepo, auditRepo, settingsSvc, recaptcha.NewVerifier())
	googleOAuthHandler := handler.NewGoogleOAuthHandler(cfg, authSvc, ledger, auditRepo)
	widgetHandler := handler.NewWidgetHandler(settingsSvc)
	chatHandler := handler.NewChatHandler(analysisSvc)
	meHandler := handler.NewMeHandler(ledger, analysisSvc, paymentSvc)
	notificationHandler := handler.NewNotificationHandler(notifSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc, userRepo)
	webhookHandler := handler.NewPaymentWebhookHandler(paymentSvc)
	promotionHandler := handler.NewPromotionHandler(promotionSvc)
	adminHandler := handler.NewAdminHandler(dashboardSvc, settingsSvc, paymentSvc, analysisSvc, promotionSvc, auditRepo)
	adminActionsHandler := handler.NewAdminActionsHandler(dispatcher)

	authMw := middleware.AuthRequired(&cfg.JWT)
	authLimiter := middleware.NewInMemoryRateLimiter(10, time.Minute)
	authRate := middleware.RateLimitBy(authLimiter, func(c *gin.Context) string { return "auth:" + c.ClientIP() })

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "ws_clients": hub.ClientCount()})
	})

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authRate, authHandler.Register)
			authGroup.POST("/login", authRate, authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.PATCH("/change-password", authMw, authHandler.ChangePassword)
			authGroup.GET("/google", googleOAuthHandler.Redirect)
			authGroup.GET("/google/callback", googleOAuthHandler.Callback)
			authGroup.POST("/google/token", authRate, googleOAuthHandler.Token)
		}

		api.GET("/widget/config", widgetHandler.Config)
		api.POST("/chat", middleware.OptionalAuth(&cfg.JWT), chatHandler.Send)

		api.GET("/promotions", promotionHandler.List)
		api.POST("/promotions/:id/click", promotionHandler.Click)

		me := api.Group("/me", authMw)
		{
			me.GET("", authHandler.Me)
			me.GET("/dashboard", meHandler.Dashboard)
			me.GET("/transactions", meHandler.Transactions)
			me.GET("/analyses", chatHandler.History)
			me.GET("/updates", notificationHandler.Updates)
		}

		payments := api.Group("/payments", authMw)
		{
			payments.GET("/quote", paymentHandler.Quote)
			payments.POST("/stripe", paymentHandler.Stripe)
			payments.POST("/crypto", paymentHandler.Crypto)
		}

		webhooks := api.Group("/webhooks")
		{
			webhooks.POST("/stripe", webhookHandler.Stripe)
			webhooks.POST("/crypto", webhookHandler.Crypto)
		}

		adminGroup := api.Group("/admin", authMw, middleware.AdminRequired())
		{
			adminGroup.POST("/actions", adminActionsHandler.Handle)
			adminGroup.GET("/actions", adminActionsHandler.Actions)
			adminGroup.GET("/dashboard", adminHandler.Dashboard)
			adminGroup.GET("/settings", adminHandler.GetSettings)
			adminGroup.GET("/users", adminHandler.ListUsers)
			adminGroup.GET("/transactions", adminHandler.ListTransactions)
			adminGroup.GET("/transactions/export", adminHandler.ExportTransactions)
			adminGroup.GET("/analyses", adminHandler.ListAnalyses)
			adminGroup.GET("/promotions", adminHandler.ListPromotions)
			adminGroup.GET("/audit-logs", adminHandler.ListAuditLogs)
		}
	}

	r.GET("/ws/updates", ws.UpgradeUpdatesWS(&cfg.JWT, hub, func(userID uint) interface{} {
		acct, err := ledger.Account(context.Background(), userID)
		if err != nil {
			return nil
		}
		return gin.H{"type": "connected", "balance": acct.Balance}
	}))

	return r, jobs.NewScheduler(promotionSvc, cacheSvc)
}

func corsConfig(cfg *config.Config) cors.Config {
	c := cors.DefaultConfig()
	if len(cfg.Server.AllowedOrigins) == 0 || (len(cfg.Server.AllowedOrigins) == 1 && cfg.Server.AllowedOrigins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.Server.AllowedOrigins
	}
	c.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	c.AllowMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
	c.MaxAge = 12 * time.Hour
	return c
}
