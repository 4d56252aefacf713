package router

import (
	"time"

	"learnly/config"
	"learnly/internal/handler"
	"learnly/internal/middleware"
	"learnly/internal/rates"
	"learnly/internal/repository"
	"learnly/internal/service"
	"learnly/pkg/gateway"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Setup wires repositories, services and handlers and returns the engine
// plus the outbox worker for main to run.
func Setup(cfg *config.Config, db *gorm.DB, table *rates.Table) (*gin.Engine, *service.OutboxWorker) {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, 60*time.Second)))

	// Provider adapters are constructed here and injected; none of them
	// hold package-level state.
	registry := gateway.NewRegistry(verifyOrder(cfg),
		gateway.NewPaystackProvider(cfg.Providers.PaystackBaseURL, cfg.Providers.PaystackSecretKey, cfg.Providers.CallTimeout),
		gateway.NewKoraProvider(cfg.Providers.KoraBaseURL, cfg.Providers.KoraSecretKey, cfg.Providers.KoraWebhookSecret, cfg.Providers.CallTimeout),
		gateway.NewStripeProvider(cfg.Providers.StripeSecretKey, cfg.Providers.StripeWebhookSecret),
	)

	// Repositories
	affiliateRepo := repository.NewAffiliateRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	withdrawalRepo := repository.NewWithdrawalRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	// Services
	reconcileSvc := service.NewReconcileService(db, cfg, registry, table, outboxRepo)
	attributionSvc := service.NewAttributionService(db, cfg)
	withdrawalSvc := service.NewWithdrawalService(db, table)
	batchSvc := service.NewBatchService(db, withdrawalSvc)

	worker := service.NewOutboxWorker(outboxRepo, cfg.Outbox)
	worker.Register(service.AttributionHandler(attributionSvc))
	reconcileSvc.SetEnqueueHook(worker.Notify)

	// Handlers
	paymentHandler := handler.NewPaymentHandler(reconcileSvc)
	webhookHandler := handler.NewWebhookHandler(registry, reconcileSvc)
	affiliateHandler := handler.NewAffiliateHandler(affiliateRepo, commissionRepo, referralRepo, cfg.Referral.LinkBase)
	withdrawalHandler := handler.NewWithdrawalHandler(withdrawalSvc, withdrawalRepo)
	adminWithdrawalHandler := handler.NewAdminWithdrawalHandler(withdrawalSvc, withdrawalRepo, auditRepo)
	batchHandler := handler.NewBatchHandler(batchSvc, batchRepo)

	r.GET("/r/:code", affiliateHandler.TrackClick)

	api := r.Group("/api/v1")
	{
		api.POST("/payments/checkout", paymentHandler.InitializeCheckout)
		api.POST("/payments/verify", paymentHandler.Verify)
		api.POST("/webhooks/:provider", webhookHandler.Handle)

		authed := api.Group("")
		authed.Use(middleware.AuthRequired(&cfg.JWT))
		{
			authed.GET("/affiliate/profile", affiliateHandler.Profile)
			authed.GET("/affiliate/commissions", affiliateHandler.Commissions)
			authed.GET("/affiliate/referrals", affiliateHandler.Referrals)
			authed.POST("/withdrawals", withdrawalHandler.Create)
			authed.GET("/withdrawals", withdrawalHandler.List)
		}

		admin := api.Group("/admin")
		admin.Use(middleware.AuthRequired(&cfg.JWT), middleware.AdminRequired())
		{
			admin.GET("/withdrawals", adminWithdrawalHandler.List)
			admin.POST("/withdrawals/:id/approve", adminWithdrawalHandler.Approve)
			admin.POST("/withdrawals/:id/reject", adminWithdrawalHandler.Reject)
			admin.POST("/withdrawals/:id/pay", adminWithdrawalHandler.MarkPaid)
			admin.POST("/withdrawals/:id/fail", adminWithdrawalHandler.MarkFailed)
			admin.POST("/withdrawals/bulk-approve", adminWithdrawalHandler.BulkApprove)
			admin.POST("/withdrawals/bulk-reject", adminWithdrawalHandler.BulkReject)
			admin.GET("/withdrawals/:id/audit", adminWithdrawalHandler.Audit)

			admin.POST("/batches", batchHandler.Create)
			admin.GET("/batches", batchHandler.List)
			admin.POST("/batches/:id/withdrawals", batchHandler.AddWithdrawals)
			admin.POST("/batches/:id/finalize", batchHandler.Finalize)
			admin.POST("/batches/:id/process", batchHandler.MarkProcessing)
			admin.GET("/batches/:id/export", batchHandler.Export)
			admin.POST("/batches/:id/pay-all", batchHandler.MarkAllPaid)
		}
	}

	return r, worker
}

func verifyOrder(cfg *config.Config) []gateway.Name {
	var order []gateway.Name
	for _, s := range cfg.Providers.VerifyOrder {
		if name, err := gateway.ParseName(s); err == nil {
			order = append(order, name)
		}
	}
	return order
}
