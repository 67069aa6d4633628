package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/stockflow/stockflow-backend/internal/inventory/events"
	"github.com/stockflow/stockflow-backend/internal/inventory/handler"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/config"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("inventory-service", cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ. The stock ledger stays functional without the
	// broker; events are dropped until it comes back.
	var publisher *events.InventoryEventPublisher
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to RabbitMQ, events disabled")
	} else {
		defer rmq.Close()
		publisher, err = events.NewInventoryEventPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
	}

	// Initialize repositories
	productRepo := repository.NewProductRepository(db)
	lotRepo := repository.NewLotRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	acceptanceRepo := repository.NewAcceptanceRepository(db)
	mappingRepo := repository.NewMappingRepository(db)

	// Initialize services
	scanService := service.NewScanService(productRepo, lotRepo, mappingRepo, log)
	reconcileService := service.NewReconcileService(
		db, scanService, productRepo, lotRepo, ledgerRepo, orderRepo,
		publisher, cfg.Stock.NegativePolicy, log,
	)
	catalogService := service.NewCatalogService(productRepo, lotRepo, locationRepo, acceptanceRepo, mappingRepo, log)
	orderService := service.NewOrderService(orderRepo, productRepo, lotRepo, cfg.Stock.OrderRetention, log)
	alertService := service.NewAlertService(productRepo, lotRepo, orderRepo, acceptanceRepo, cfg.Stock.ExpiryWarningDays, log)

	// Initialize handlers
	scanHandler := handler.NewScanHandler(scanService, log)
	stockHandler := handler.NewStockHandler(reconcileService, ledgerRepo, log)
	productHandler := handler.NewProductHandler(catalogService, log)
	lotHandler := handler.NewLotHandler(catalogService, log)
	orderHandler := handler.NewOrderHandler(orderService, reconcileService, log)
	alertHandler := handler.NewAlertHandler(alertService, log)
	dashboardHandler := handler.NewDashboardHandler(alertService, log)
	locationHandler := handler.NewLocationHandler(catalogService, log)
	mappingHandler := handler.NewMappingHandler(catalogService, log)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(httputil.ActorMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-User-ID", "X-User-Name", "X-User-Email"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]interface{}{
			"status":   "healthy",
			"service":  "inventory-service",
			"database": db.Health(r.Context()),
		}
		if rmq != nil {
			health["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, health)
	})

	// API routes
	r.Route("/api/v1/inventory", func(r chi.Router) {
		// Scan routes
		r.Post("/scan", scanHandler.Scan)
		r.Post("/scan/decode", scanHandler.Decode)
		r.Post("/scan/register", stockHandler.RegisterScan)

		// Stock movement routes
		r.Post("/withdrawals", stockHandler.Withdraw)
		r.Get("/withdrawals", stockHandler.ListWithdrawals)
		r.Post("/receipts", stockHandler.Receive)
		r.Get("/registrations", stockHandler.ListRegistrations)

		// Product routes
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Post("/", productHandler.Create)
			r.Get("/{id}", productHandler.Get)
			r.Put("/{id}", productHandler.Update)
			r.Delete("/{id}", productHandler.Delete)
			r.Get("/{id}/lots", productHandler.ListLots)
			r.Post("/{id}/lots", productHandler.CreateLot)
		})

		// Lot routes
		r.Route("/lots", func(r chi.Router) {
			r.Get("/{id}", lotHandler.Get)
			r.Put("/{id}", lotHandler.Update)
			r.Post("/{id}/discard", stockHandler.DiscardLot)
			r.Get("/{id}/acceptance-tests", lotHandler.ListAcceptanceTests)
			r.Post("/{id}/acceptance-tests", lotHandler.RecordAcceptanceTest)
		})

		// Purchase order routes
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orderHandler.List)
			r.Post("/", orderHandler.Create)
			r.Get("/completions", orderHandler.ListCompletionLogs)
			r.Get("/{id}", orderHandler.Get)
			r.Post("/{id}/deliver", orderHandler.MarkDelivered)
		})

		// Alert routes
		r.Route("/alerts", func(r chi.Router) {
			r.Get("/low-stock", alertHandler.LowStock)
			r.Get("/expired", alertHandler.Expired)
			r.Get("/expiring", alertHandler.Expiring)
			r.Get("/untested", alertHandler.Untested)
			r.Get("/failed", alertHandler.Failed)
			r.Get("/duplicate-names", alertHandler.DuplicateNames)
			r.Get("/missing-thresholds", alertHandler.MissingThresholds)
		})

		// Dashboard
		r.Get("/dashboard/stats", dashboardHandler.GetStats)

		// Location routes
		r.Route("/locations", func(r chi.Router) {
			r.Get("/", locationHandler.List)
			r.Post("/", locationHandler.Create)
			r.Delete("/{id}", locationHandler.Delete)
		})

		// Code mapping routes
		r.Route("/code-mappings", func(r chi.Router) {
			r.Get("/", mappingHandler.List)
			r.Post("/", mappingHandler.Create)
			r.Delete("/{id}", mappingHandler.Delete)
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
