package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/handlers"
	"github.com/jbapex/financeiro-api/middleware"
	"github.com/jbapex/financeiro-api/models"
	"github.com/sirupsen/logrus"
)

// Handlers bundles every HTTP handler the router mounts.
type Handlers struct {
	Auth           *handlers.AuthHandler
	User           *handlers.UserHandler
	Team           *handlers.TeamHandler
	Categories     *handlers.CategoryHandler
	Transactions   *handlers.TransactionHandler
	Contacts       *handlers.ContactHandler
	Pipeline       *handlers.PipelineHandler
	BankAccounts   *handlers.BankAccountHandler
	Installments   *handlers.InstallmentHandler
	Reconciliation *handlers.ReconciliationHandler
	Budgets        *handlers.BudgetHandler
	Reports        *handlers.ReportHandler
	Recurring      *handlers.RecurringHandler
	Products       *handlers.ProductHandler
	Scheduled      *handlers.ScheduledReportHandler
	AI             *handlers.AIHandler
	Admin          *handlers.AdminHandler
	WS             *handlers.WSHandler
}

// Setup mounts the public and protected API under /api/v1. Self-service
// user routes sit behind TenantGuard only so viewers can still manage their
// own password and 2FA.
func Setup(router *gin.Engine, h *Handlers, jwtSecret string, tenants middleware.TenantLoader, log *logrus.Logger) {
	v1 := router.Group("/api/v1")
	v1.Use(middleware.NewRateLimiter(300, time.Minute).Middleware())

	authRequired := middleware.AuthMiddleware(jwtSecret)
	SetupAuthRoutes(v1, h, authRequired)

	authed := v1.Group("/")
	authed.Use(authRequired)
	SetupAdminRoutes(authed, h)

	member := authed.Group("/")
	member.Use(middleware.TenantGuard(tenants, log))
	member.GET("/ws", h.WS.HandleWS)
	SetupUserRoutes(member, h)

	protected := member.Group("/")
	protected.Use(middleware.RequireWrite())
	{
		SetupTeamRoutes(protected, h)
		SetupFinanceRoutes(protected, h)
		SetupCRMRoutes(protected, h)
		SetupReconciliationRoutes(protected, h)
		SetupBudgetRoutes(protected, h)
		SetupReportRoutes(protected, h)
		SetupRecurringRoutes(protected, h)
		SetupStockRoutes(protected, h)
		SetupWhatsAppRoutes(protected, h)
		SetupAIRoutes(protected, h)
	}
}

// SetupAuthRoutes sets up public authentication routes behind a stricter limiter.
func SetupAuthRoutes(rg *gin.RouterGroup, h *Handlers, authRequired gin.HandlerFunc) {
	auth := rg.Group("/auth")
	auth.Use(middleware.NewRateLimiter(10, time.Minute).Middleware())

	auth.POST("/signup", h.Auth.Signup)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/invitations/accept", h.Team.AcceptInvitation)
	auth.POST("/logout", authRequired, h.Auth.Logout)
}

func SetupUserRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.GET("/user/profile", h.User.GetProfile)
	rg.PUT("/user/profile", h.User.UpdateProfile)
	rg.POST("/user/password", h.User.ChangePassword)
	rg.POST("/user/2fa/setup", h.User.SetupTOTP)
	rg.POST("/user/2fa/verify", h.User.VerifyTOTP)
	rg.POST("/user/2fa/disable", h.User.DisableTOTP)
}

// SetupTeamRoutes sets up member and invitation management for owners and admins.
func SetupTeamRoutes(rg *gin.RouterGroup, h *Handlers) {
	team := rg.Group("/team")
	team.GET("/members", h.Team.GetMembers)

	managers := team.Group("/")
	managers.Use(middleware.RequireRole(models.RoleOwner, models.RoleAdmin))
	managers.PUT("/members/:id/role", h.Team.UpdateMemberRole)
	managers.DELETE("/members/:id", h.Team.RemoveMember)
	managers.GET("/invitations", h.Team.GetInvitations)
	managers.POST("/invitations", h.Team.InviteUser)
	managers.DELETE("/invitations/:id", h.Team.CancelInvitation)
}

func SetupFinanceRoutes(rg *gin.RouterGroup, h *Handlers) {
	fin := rg.Group("/")
	fin.Use(middleware.RequireModule(models.ModuleFinanceiro))

	fin.GET("/categories", h.Categories.List)
	fin.POST("/categories", h.Categories.Create)
	fin.POST("/categories/suggest", h.Categories.Suggest)
	fin.GET("/categories/:id", h.Categories.Get)
	fin.PUT("/categories/:id", h.Categories.Update)
	fin.DELETE("/categories/:id", h.Categories.Delete)

	fin.GET("/transactions", h.Transactions.List)
	fin.POST("/transactions", h.Transactions.Create)
	fin.GET("/transactions/summary", h.Transactions.Summary)
	fin.GET("/transactions/export", h.Transactions.Export)
	fin.POST("/transactions/import", h.Transactions.Import)
	fin.POST("/transactions/import/preview", h.Transactions.Preview)
	fin.GET("/transactions/:id", h.Transactions.Get)
	fin.PUT("/transactions/:id", h.Transactions.Update)
	fin.DELETE("/transactions/:id", h.Transactions.Delete)

	fin.GET("/bank-accounts", h.BankAccounts.List)
	fin.POST("/bank-accounts", h.BankAccounts.Create)
	fin.POST("/bank-accounts/transfer", h.Transactions.Transfer)
	fin.GET("/bank-accounts/:id", h.BankAccounts.Get)
	fin.GET("/bank-accounts/:id/balance", h.BankAccounts.Balance)
	fin.PUT("/bank-accounts/:id", h.BankAccounts.Update)
	fin.DELETE("/bank-accounts/:id", h.BankAccounts.Delete)

	fin.GET("/installments", h.Installments.List)
	fin.POST("/installments", h.Installments.Create)
	fin.GET("/installments/aging", h.Installments.Aging)
	fin.GET("/installments/:id", h.Installments.Get)
	fin.POST("/installments/:id/pay", h.Installments.Pay)
	fin.POST("/installments/:id/unpay", h.Installments.Unpay)
	fin.POST("/installments/:id/cancel", h.Installments.Cancel)
	fin.DELETE("/installments/group/:group_id", h.Installments.DeleteGroup)
}

func SetupCRMRoutes(rg *gin.RouterGroup, h *Handlers) {
	crm := rg.Group("/")
	crm.Use(middleware.RequireModule(models.ModuleCRM))

	crm.GET("/contacts", h.Contacts.List)
	crm.POST("/contacts", h.Contacts.Create)
	crm.GET("/contacts/:id", h.Contacts.Get)
	crm.GET("/contacts/:id/history", h.Contacts.History)
	crm.PUT("/contacts/:id", h.Contacts.Update)
	crm.DELETE("/contacts/:id", h.Contacts.Delete)

	crm.GET("/pipeline/board", h.Pipeline.Board)
	crm.POST("/pipeline/move", h.Pipeline.Move)
	crm.GET("/pipeline/stages", h.Pipeline.ListStages)
	crm.POST("/pipeline/stages", h.Pipeline.CreateStage)
	crm.PUT("/pipeline/stages/:id", h.Pipeline.UpdateStage)
	crm.DELETE("/pipeline/stages/:id", h.Pipeline.DeleteStage)
}

func SetupReconciliationRoutes(rg *gin.RouterGroup, h *Handlers) {
	rec := rg.Group("/reconciliation")
	rec.Use(middleware.RequireModule(models.ModuleConciliacao))

	rec.POST("/accounts/:id/import", h.Reconciliation.Import)
	rec.GET("/accounts/:id/lines", h.Reconciliation.List)
	rec.POST("/accounts/:id/auto-match", h.Reconciliation.AutoMatch)
	rec.GET("/lines/:line_id/suggestions", h.Reconciliation.Suggestions)
	rec.POST("/lines/:line_id/match", h.Reconciliation.Match)
	rec.POST("/lines/:line_id/create", h.Reconciliation.CreateTransaction)
	rec.POST("/lines/:line_id/ignore", h.Reconciliation.Ignore)
	rec.POST("/lines/:line_id/unmatch", h.Reconciliation.Unmatch)
}

func SetupBudgetRoutes(rg *gin.RouterGroup, h *Handlers) {
	b := rg.Group("/budgets")
	b.Use(middleware.RequireModule(models.ModuleOrcamento))

	b.GET("/:year/:month", h.Budgets.GetBudget)
	b.PUT("/:year/:month", h.Budgets.SaveBudget)
	b.POST("/:year/:month/copy-previous", h.Budgets.CopyPrevious)
}

func SetupReportRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.GET("/reports/dashboard", middleware.RequireModule(models.ModuleFinanceiro), h.Reports.Dashboard)

	r := rg.Group("/reports")
	r.Use(middleware.RequireModule(models.ModuleRelatorios))
	r.GET("/dre", h.Reports.DRE)
	r.GET("/cash-flow", h.Reports.CashFlow)
	r.GET("/by-category", h.Reports.ByCategory)
}

func SetupRecurringRoutes(rg *gin.RouterGroup, h *Handlers) {
	r := rg.Group("/recurring")
	r.Use(middleware.RequireModule(models.ModuleRecorrencias))

	r.GET("", h.Recurring.List)
	r.POST("", h.Recurring.Create)
	r.POST("/generate", h.Recurring.Generate)
	r.GET("/:id", h.Recurring.Get)
	r.GET("/:id/preview", h.Recurring.Preview)
	r.PUT("/:id", h.Recurring.Update)
	r.DELETE("/:id", h.Recurring.Delete)
}

func SetupStockRoutes(rg *gin.RouterGroup, h *Handlers) {
	p := rg.Group("/products")
	p.Use(middleware.RequireModule(models.ModuleEstoque))

	p.GET("", h.Products.List)
	p.POST("", h.Products.Create)
	p.GET("/low-stock", h.Products.LowStock)
	p.GET("/:id", h.Products.Get)
	p.PUT("/:id", h.Products.Update)
	p.DELETE("/:id", h.Products.Delete)
	p.GET("/:id/movements", h.Products.Movements)
	p.POST("/:id/movements", h.Products.AddMovement)
}

func SetupWhatsAppRoutes(rg *gin.RouterGroup, h *Handlers) {
	whatsapp := middleware.RequireModule(models.ModuleWhatsApp)
	rg.GET("/settings/whatsapp", whatsapp, h.Scheduled.GetWhatsAppSettings)
	rg.PUT("/settings/whatsapp", whatsapp, middleware.RequireRole(models.RoleOwner, models.RoleAdmin), h.Scheduled.SaveWhatsAppSettings)

	w := rg.Group("/scheduled-reports")
	w.Use(whatsapp)
	w.GET("", h.Scheduled.List)
	w.POST("", h.Scheduled.Create)
	w.GET("/:id", h.Scheduled.Get)
	w.PUT("/:id", h.Scheduled.Update)
	w.DELETE("/:id", h.Scheduled.Delete)
	w.GET("/:id/render", h.Scheduled.Render)
	w.POST("/:id/send", h.Scheduled.Send)
	w.GET("/:id/dispatches", h.Scheduled.Dispatches)
}

func SetupAIRoutes(rg *gin.RouterGroup, h *Handlers) {
	ai := rg.Group("/ai")
	ai.Use(middleware.RequireModule(models.ModuleIA))

	ai.POST("/chat", h.AI.Chat)
	ai.GET("/insights", h.AI.Insights)
	ai.GET("/conversations", h.AI.Conversations)
	ai.GET("/conversations/:id", h.AI.Conversation)
	ai.DELETE("/conversations/:id", h.AI.DeleteConversation)
}

// SetupAdminRoutes sets up the super-admin console. It skips TenantGuard so a
// super admin keeps access while their own tenant is suspended.
func SetupAdminRoutes(rg *gin.RouterGroup, h *Handlers) {
	admin := rg.Group("/admin")
	admin.Use(middleware.SuperAdminOnly())

	admin.GET("/metrics", h.Admin.Metrics)

	admin.GET("/tenants", h.Admin.ListTenants)
	admin.PUT("/tenants/:id/plan", h.Admin.SetTenantPlan)
	admin.PUT("/tenants/:id/modules", h.Admin.SetTenantModules)
	admin.PUT("/tenants/:id/status", h.Admin.SetTenantStatus)

	admin.GET("/plans", h.Admin.ListPlans)
	admin.POST("/plans", h.Admin.CreatePlan)
	admin.PUT("/plans/:id", h.Admin.UpdatePlan)
	admin.DELETE("/plans/:id", h.Admin.DeletePlan)

	admin.GET("/billing", h.Admin.ListInvoices)
	admin.POST("/billing/generate", h.Admin.GenerateInvoices)
	admin.POST("/billing/:id/pay", h.Admin.PayInvoice)
	admin.POST("/billing/:id/cancel", h.Admin.CancelInvoice)

	admin.POST("/maintenance/encrypt-tokens", h.Admin.EncryptTokens)
}
