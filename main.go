package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jbapex/financeiro-api/config"
	"github.com/jbapex/financeiro-api/handlers"
	"github.com/jbapex/financeiro-api/jobs"
	"github.com/jbapex/financeiro-api/middleware"
	"github.com/jbapex/financeiro-api/migration"
	"github.com/jbapex/financeiro-api/routes"
	"github.com/jbapex/financeiro-api/services"
	"github.com/jbapex/financeiro-api/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	settings, envLoaded := config.Load()
	log := config.InitLogger(settings)
	if !envLoaded {
		log.Info("No .env file found, using environment variables")
	}

	if settings.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
	if err := utils.SetLocation(settings.Timezone); err != nil {
		log.WithError(err).Warnf("unknown APP_TIMEZONE %q, using UTC", settings.Timezone)
	}

	db, err := config.InitDB(settings.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()
	log.Info("✅ Database connected successfully")

	if err := config.RunMigrations(db); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}

	if os.Getenv("DATA_ENCRYPTION_KEY") != "" {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		if _, err := migration.EncryptLegacyTokens(ctx, db, log); err != nil {
			log.WithError(err).Error("legacy token encryption failed")
		}
		cancel()
	}

	redisClient, err := config.InitRedis(settings.RedisURL)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, report cache disabled")
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Services
	cache := services.NewCacheService(redisClient)
	ai := services.NewClaudeAIService(settings.AnthropicAPIKey, log)
	categorizer := services.NewCategorizerService(db, ai, log)
	categories := services.NewCategoryService(db, categorizer)
	transactions := services.NewTransactionService(db, categories, categorizer)
	accounts := services.NewBankAccountService(db)
	recurring := services.NewRecurringService(db, log)
	reports := services.NewReportService(db, cache, accounts, recurring, log)
	installments := services.NewInstallmentService(db)
	budgets := services.NewBudgetService(db)
	products := services.NewProductService(db)
	auth := services.NewAuthService(db, settings.JWTSecret, settings.SuperAdminEmails)
	email := services.NewEmailService(settings.ResendAPIKey, settings.FromEmail, settings.FrontendURL)
	team := services.NewTeamService(db, auth, email, log)
	admin := services.NewAdminService(db)
	audit := services.NewAuditService(db, log)
	whatsapp := services.NewWhatsAppService(settings.WhatsAppAPIURL, settings.WhatsAppAPIToken)
	scheduled := services.NewScheduledReportService(db, reports, installments, whatsapp, log)
	advisor := services.NewAdvisorService(db, ai, reports, budgets, products, log)

	wsHandler := handlers.NewWSHandler(log)
	defer wsHandler.Close()
	notify := &handlers.Notifier{WS: wsHandler, Cache: cache, Audit: audit}

	h := &routes.Handlers{
		Auth:           &handlers.AuthHandler{Auth: auth, Audit: audit},
		User:           &handlers.UserHandler{Auth: auth, Admin: admin},
		Team:           &handlers.TeamHandler{Team: team, Notify: notify},
		Categories:     &handlers.CategoryHandler{Categories: categories, Notify: notify},
		Transactions:   &handlers.TransactionHandler{Transactions: transactions, Notify: notify},
		Contacts:       &handlers.ContactHandler{Contacts: services.NewContactService(db), Installments: installments, Notify: notify},
		Pipeline:       &handlers.PipelineHandler{Pipeline: services.NewPipelineService(db), Notify: notify},
		BankAccounts:   &handlers.BankAccountHandler{Accounts: accounts, Notify: notify},
		Installments:   &handlers.InstallmentHandler{Installments: installments, Notify: notify},
		Reconciliation: &handlers.ReconciliationHandler{Reconciliation: services.NewReconciliationService(db), Accounts: accounts, Notify: notify},
		Budgets:        &handlers.BudgetHandler{Budgets: budgets, Notify: notify},
		Reports:        &handlers.ReportHandler{Reports: reports},
		Recurring:      &handlers.RecurringHandler{Recurring: recurring, Notify: notify},
		Products:       &handlers.ProductHandler{Products: products, Notify: notify},
		Scheduled:      &handlers.ScheduledReportHandler{Scheduled: scheduled, Notify: notify},
		AI:             &handlers.AIHandler{Advisor: advisor},
		Admin:          &handlers.AdminHandler{DB: db, Admin: admin, Audit: audit, Log: log},
		WS:             wsHandler,
	}

	if settings.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log))

	log.Infof("🌍 CORS: Allowing origin %s", settings.FrontendURL)
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{settings.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.Setup(router, h, settings.JWTSecret, admin, log)

	router.GET("/health", func(c *gin.Context) {
		status, dbStatus := http.StatusOK, "ok"
		if err := db.PingContext(c.Request.Context()); err != nil {
			status, dbStatus = http.StatusServiceUnavailable, "down"
		}
		c.JSON(status, gin.H{
			"status":   dbStatus,
			"database": dbStatus,
			"cache":    cache.Enabled(),
			"time":     time.Now().Format(time.RFC3339),
		})
	})

	var runner *jobs.Runner
	if settings.EnableJobs {
		runner = &jobs.Runner{Recurring: recurring, Scheduled: scheduled, Team: team, Auth: auth, Log: log}
		if err := runner.Start(); err != nil {
			log.WithError(err).Fatal("Failed to schedule jobs")
		}
	}

	srv := &http.Server{
		Addr:              ":" + settings.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("🚀 Server starting on port %s...", settings.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	if runner != nil {
		runner.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Forced shutdown")
	}
}
