package main

import (
	"context"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	"github.com/oscarfrank/saas-template-sub007/internal/activity"
	"github.com/oscarfrank/saas-template-sub007/internal/gateway"
	"github.com/oscarfrank/saas-template-sub007/internal/handler"
	"github.com/oscarfrank/saas-template-sub007/internal/middleware"
	"github.com/oscarfrank/saas-template-sub007/internal/model"
	"github.com/oscarfrank/saas-template-sub007/internal/outbox"
	"github.com/oscarfrank/saas-template-sub007/pkg/config"
	"github.com/oscarfrank/saas-template-sub007/pkg/database"
	"github.com/oscarfrank/saas-template-sub007/pkg/jwtutil"
	"github.com/oscarfrank/saas-template-sub007/pkg/logger"
	"github.com/oscarfrank/saas-template-sub007/prometheus"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting lending service...", zap.String("environment", cfg.Server.Env))

	// Initialize database
	if err := database.Initialize(&cfg.DB); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	if err := seedCurrencies(); err != nil {
		log.Fatal("Failed to seed currencies", zap.Error(err))
	}

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)
	log.Info("JWT utility initialized")

	// Build the payment gateway registry from the configuration snapshot
	gatewayConfig := gateway.Config{
		StripeEnabled:      cfg.Gateway.Stripe.Enabled,
		PaystackEnabled:    cfg.Gateway.Paystack.Enabled,
		FlutterwaveEnabled: cfg.Gateway.Flutterwave.Enabled,
		NGNPriority:        gateway.Provider(cfg.Gateway.NGNPriority),
	}
	registry := gateway.NewRegistry(gatewayConfig,
		gateway.NewStripeGateway(cfg.Gateway.Stripe.BaseURL, cfg.Gateway.Stripe.SecretKey),
		gateway.NewPaystackGateway(cfg.Gateway.Paystack.BaseURL, cfg.Gateway.Paystack.SecretKey),
		gateway.NewFlutterwaveGateway(cfg.Gateway.Flutterwave.BaseURL, cfg.Gateway.Flutterwave.SecretKey),
	)
	log.Info("Payment gateway registry initialized",
		zap.Any("enabled", gatewayConfig.EnabledProviders()),
		zap.String("ngn_priority", cfg.Gateway.NGNPriority))

	// Activity recording and unread counters
	counter := activity.NewCounter(database.GetDB(), log)
	recorder := activity.NewRecorder(database.GetDB(), counter, log)

	// Outbox dispatcher delivers committed domain events to their handlers
	dispatcher := outbox.NewDispatcher(database.GetDB(), log,
		cfg.Outbox.PollInterval, cfg.Outbox.BatchSize, cfg.Outbox.MaxAttempts)
	dispatcher.Register(model.EventLoanApproved, activity.LoanDecisionHandler(recorder, "loan approved"))
	dispatcher.Register(model.EventLoanRejected, activity.LoanDecisionHandler(recorder, "loan rejected"))
	dispatcher.Register(model.EventTransactionCompleted, activity.TransactionCompletedHandler(recorder))
	dispatcher.Start(context.Background())
	log.Info("Outbox dispatcher started")

	// Wire handler package dependencies
	handler.Initialize(registry, counter, recorder)

	// Initialize Echo framework
	e := echo.New()
	e.Validator = handler.NewValidator()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// Authentication routes - these don't belong under /api since they're for getting access to the API
	auth := e.Group("/auth")
	auth.POST("/register", handler.Register)
	auth.POST("/login", handler.Login)
	auth.GET("/verify", handler.VerifyEmail)

	// Provider webhook endpoints - authenticated by payload dedup, not JWT
	webhooks := e.Group("/webhooks")
	webhooks.POST("/stripe", handler.StripeWebhook)
	webhooks.POST("/paystack", handler.PaystackWebhook)
	webhooks.POST("/flutterwave", handler.FlutterwaveWebhook)

	// API routes - all require authentication
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)

	// Tenant management - doesn't require tenant context
	api.POST("/tenants", handler.CreateTenant)
	api.GET("/tenants", handler.ListUserTenants)
	api.GET("/dashboard", handler.Dashboard)

	// Tenant-scoped operations - the :tenant segment is resolved by ID first,
	// then by slug, and requires an active membership
	tenant := api.Group("/:tenant")
	tenant.Use(middleware.TenantResolver)

	tenant.GET("", handler.GetTenant)

	members := tenant.Group("/members")
	members.POST("", handler.AddUserToTenant, middleware.RequireOwner)
	members.DELETE("/:user_id", handler.RemoveUserFromTenant, middleware.RequireOwner)

	loans := tenant.Group("/loans")
	loans.POST("", handler.CreateLoan)
	loans.GET("", handler.ListLoans)
	loans.GET("/:id", handler.GetLoan)
	loans.POST("/:id/approve", handler.ApproveLoan, middleware.RequireOwner)
	loans.POST("/:id/reject", handler.RejectLoan, middleware.RequireOwner)

	transactions := tenant.Group("/transactions")
	transactions.POST("", handler.InitiatePayment)
	transactions.GET("", handler.ListTransactions)
	transactions.GET("/:id", handler.GetTransaction)
	transactions.POST("/:id/verify", handler.VerifyTransaction)

	activities := tenant.Group("/activities")
	activities.GET("", handler.ListActivities)
	activities.GET("/unread", handler.UnreadCount)
	activities.POST("/read", handler.MarkActivitiesRead)

	// Get server port from configuration
	port := cfg.Server.Port

	// Start server
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}

// seedCurrencies inserts the currencies the platform transacts in. Existing
// rows are left untouched so operators can disable a currency without the
// seed re-enabling it.
func seedCurrencies() error {
	currencies := []model.Currency{
		{Code: "USD", Name: "US Dollar", Symbol: "$", Active: true},
		{Code: "EUR", Name: "Euro", Symbol: "€", Active: true},
		{Code: "GBP", Name: "Pound Sterling", Symbol: "£", Active: true},
		{Code: "NGN", Name: "Nigerian Naira", Symbol: "₦", Active: true},
		{Code: "GHS", Name: "Ghanaian Cedi", Symbol: "₵", Active: true},
		{Code: "KES", Name: "Kenyan Shilling", Symbol: "KSh", Active: true},
	}

	return database.GetDB().
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(&currencies).Error
}
