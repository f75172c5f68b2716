package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gooms-backend/internal/accounting"
	"gooms-backend/internal/audit"
	"gooms-backend/internal/auth"
	"gooms-backend/internal/config"
	"gooms-backend/internal/dashboard"
	"gooms-backend/internal/database"
	"gooms-backend/internal/events"
	"gooms-backend/internal/export"
	"gooms-backend/internal/finance"
	"gooms-backend/internal/inventory"
	"gooms-backend/internal/logger"
	"gooms-backend/internal/metrics"
	"gooms-backend/internal/models"
	"gooms-backend/internal/production"
	"gooms-backend/internal/purchasing"
	"gooms-backend/internal/sales"
	"gooms-backend/internal/syncapi"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger is not configured yet
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	if err := database.Init(cfg, log); err != nil {
		log.Fatal("database init failed", zap.Error(err))
	}
	defer database.Close()

	ctx := context.Background()

	// ---- optional infrastructure ----

	var (
		blacklist auth.TokenBlacklist = auth.NewMemoryBlacklist()
		applied   syncapi.Cache       = syncapi.NewMemoryCache()
	)
	if cfg.Redis.Enabled {
		rdb, err := database.OpenRedis(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("redis init failed", zap.Error(err))
		}
		defer rdb.Close()
		blacklist = auth.NewRedisBlacklist(rdb)
		applied = syncapi.NewRedisCache(rdb)
		log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	} else {
		log.Warn("redis disabled, token blacklist and the applied sync action cache are kept in memory")
	}

	pub := events.FromConfig(cfg.Kafka, log)
	defer pub.Close()

	var uploader export.Uploader
	if cfg.Storage.Enabled {
		u, err := export.NewS3Uploader(ctx, cfg.Storage)
		if err != nil {
			log.Fatal("storage init failed", zap.Error(err))
		}
		uploader = u
	}

	var accountingSvc *accounting.Service
	if cfg.Accounting.Enabled {
		accountingSvc = accounting.NewService(accounting.NewClient(cfg.Accounting), cfg.Accounting.BatchSize, log)
	}

	m := metrics.New("gooms")
	syncHandler := syncapi.NewHandler(applied, cfg.Sync.IdempotencyTTL, pub, m)

	// ---- http ----

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: cfg.HTTP.BodyLimit,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "internal server error"
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
				msg = fe.Message
			}
			if code >= fiber.StatusInternalServerError {
				logger.FromCtx(c).Error("request failed",
					zap.String("path", c.Path()),
					zap.Int("status", code),
					zap.Error(err),
				)
			}
			return c.Status(code).JSON(fiber.Map{"error": msg})
		},
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.HTTP.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))
	app.Use(logger.Middleware(log))
	app.Use(m.Middleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", m.Handler())

	api := app.Group("/api", auth.JWTMiddleware(cfg.JWT, blacklist))

	// Public auth
	api.Post("/auth/register", auth.RegisterHandler())
	api.Post("/auth/bootstrap-admin", auth.BootstrapAdminHandler())
	api.Post("/auth/login", auth.LoginHandler(cfg.JWT))

	// Pending accounts may still see who they are and log out
	session := api.Group("", auth.RequireSession())
	session.Get("/auth/me", auth.MeHandler())
	session.Post("/auth/logout", auth.LogoutHandler(blacklist))

	var (
		anyRole    = auth.RequireRole()
		managers   = auth.RequireRole(models.RoleManager)
		producers  = auth.RequireRole(models.RoleManager, models.RoleProduction)
		sellers    = auth.RequireRole(models.RoleManager, models.RoleSales)
		bookkeeper = auth.RequireRole(models.RoleFinance)
		reporting  = auth.RequireRole(models.RoleManager, models.RoleFinance)
		adminsOnly = auth.RequireRole(models.RoleAdmin)
	)

	// Admin
	admin := api.Group("/admin", adminsOnly)
	admin.Get("/users", auth.ListUsersHandler())
	admin.Put("/users/:id/role", auth.SetUserRoleHandler(cfg.JWT, blacklist))
	api.Get("/audit-logs", adminsOnly, audit.ListAuditLogsHandler())
	api.Post("/audit-logs/:id/undo", adminsOnly, audit.UndoAuditLogHandler())

	// Catalog
	api.Get("/products", anyRole, inventory.ListProductsHandler())
	api.Get("/products/:id", anyRole, inventory.GetProductHandler())
	api.Post("/products", managers, inventory.CreateProductHandler())
	api.Put("/products/:id", managers, inventory.UpdateProductHandler())
	api.Delete("/products/:id", managers, inventory.DeleteProductHandler())

	api.Get("/locations", anyRole, inventory.ListLocationsHandler())
	api.Post("/locations", managers, inventory.CreateLocationHandler())
	api.Put("/locations/:id", managers, inventory.UpdateLocationHandler())

	// Inventory
	api.Get("/inventory/stock", anyRole, inventory.ListStockLevelsHandler())
	api.Get("/inventory/movements", anyRole, inventory.ListMovementsHandler())
	api.Post("/inventory/movements", producers, inventory.CreateMovementHandler(pub))
	api.Post("/inventory/transfers", producers, inventory.TransferHandler(pub))

	// Production
	api.Get("/production/batches", anyRole, production.ListBatchesHandler())
	api.Get("/production/batches/:id", anyRole, production.GetBatchHandler())
	api.Post("/production/batches", producers, production.CreateBatchHandler())
	api.Post("/production/batches/:id/start", producers, production.StartBatchHandler())
	api.Post("/production/batches/:id/complete", producers, production.CompleteBatchHandler(pub))
	api.Post("/production/batches/:id/cancel", producers, production.CancelBatchHandler())

	// Purchasing
	api.Get("/suppliers", anyRole, purchasing.ListSuppliersHandler())
	api.Post("/suppliers", managers, purchasing.CreateSupplierHandler())
	api.Put("/suppliers/:id", managers, purchasing.UpdateSupplierHandler())
	api.Delete("/suppliers/:id", managers, purchasing.DeleteSupplierHandler())

	api.Get("/purchase-orders", anyRole, purchasing.ListOrdersHandler())
	api.Get("/purchase-orders/:id", anyRole, purchasing.GetOrderHandler())
	api.Post("/purchase-orders", managers, purchasing.CreateOrderHandler())
	api.Post("/purchase-orders/:id/submit", managers, purchasing.SubmitOrderHandler())
	api.Post("/purchase-orders/:id/receive", producers, purchasing.ReceiveOrderHandler(pub))
	api.Post("/purchase-orders/:id/cancel", managers, purchasing.CancelOrderHandler())

	// Sales
	api.Get("/sales/projections", anyRole, sales.ListProjectionsHandler())
	api.Put("/sales/projections", sellers, sales.UpsertProjectionHandler())
	api.Delete("/sales/projections/:id", sellers, sales.DeleteProjectionHandler())
	api.Get("/sales", anyRole, sales.ListSalesHandler())
	api.Get("/sales/:id", anyRole, sales.GetSaleHandler())
	api.Post("/sales", sellers, sales.CreateSaleHandler(pub))

	// Finance
	api.Get("/finance/transactions", reporting, finance.ListTransactionsHandler())
	api.Post("/finance/transactions", bookkeeper, finance.CreateTransactionHandler())
	api.Put("/finance/transactions/:id", bookkeeper, finance.UpdateTransactionHandler())
	api.Delete("/finance/transactions/:id", bookkeeper, finance.DeleteTransactionHandler())
	api.Get("/finance/summary", reporting, finance.SummaryHandler())
	api.Get("/finance/kpis", reporting, finance.KPIHandler())
	api.Get("/finance/projection", reporting, finance.ProjectionHandler())
	api.Get("/finance/monthly", reporting, finance.MonthlySummaryHandler())
	api.Post("/accounting/sync", bookkeeper, accounting.SyncHandler(accountingSvc))

	// Dashboard and export
	api.Get("/dashboard/overview", anyRole, dashboard.OverviewHandler())
	api.Get("/dashboard/cash-chart", reporting, dashboard.CashChartHandler())
	api.Get("/export/:resource", reporting, export.ExportHandler(uploader, cfg.Storage.Prefix))

	// Offline replay; roles are checked per table
	api.Post("/sync/actions", syncHandler.Apply())

	// ---- run ----

	go func() {
		log.Info("server starting", zap.String("port", cfg.HTTP.Port), zap.String("env", cfg.App.Env))
		if err := app.Listen(":" + cfg.HTTP.Port); err != nil {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
}
