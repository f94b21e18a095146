package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/solwatch/trigger-api/internal/aggregator"
	"github.com/solwatch/trigger-api/internal/auth"
	"github.com/solwatch/trigger-api/internal/config"
	"github.com/solwatch/trigger-api/internal/database"
	"github.com/solwatch/trigger-api/internal/executor"
	"github.com/solwatch/trigger-api/internal/market"
	"github.com/solwatch/trigger-api/internal/monitor"
	"github.com/solwatch/trigger-api/internal/notify"
	"github.com/solwatch/trigger-api/internal/orders"
	"github.com/solwatch/trigger-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the conditional order API server with graceful
// shutdown support. It wires the order services, the market data provider,
// the swap aggregator and the background monitor together.
func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(cfg.Auth.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	orderService := orders.NewService(db)
	orderHandlers := orders.NewGinHandlers(orderService)

	// Engine collaborators: market snapshots, swap aggregator, event sinks
	provider := market.NewHTTPProvider(cfg.Market)
	agg := aggregator.NewHTTPClient(cfg.Aggregator)

	eventsDB := notify.NewDatabase(db)
	sink := notify.MultiSink{notify.LogSink{}, notify.NewStoreSink(eventsDB)}

	pipeline := executor.New(agg, orderService.DB(), cfg.Aggregator)

	// Create and start the background monitor
	orderMonitor := monitor.New(cfg.Monitor, orderService.DB(), provider, pipeline, sink)
	orderMonitor.Start()
	monitorHandlers := monitor.NewGinHandlers(orderMonitor, orderService.DB(), eventsDB)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, cfg, authHandlers, orderHandlers, monitorHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Stop the monitor first so no execution starts mid-shutdown
	orderMonitor.Stop()

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Order routes: Protected by JWT authentication
// - Monitor routes: Protected by internal network authentication
func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	authHandlers *auth.GinHandlers,
	orderHandlers *orders.GinHandlers,
	monitorHandlers *monitor.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Order routes
		orderGroup := v1.Group("/orders")
		orderGroup.Use(middleware.JWTAuth(cfg.Auth.JWTSecret))
		{
			orderGroup.POST("", orderHandlers.CreateOrderHandler())
			orderGroup.GET("", orderHandlers.ListOrdersHandler())
			orderGroup.GET("/:order_id", orderHandlers.GetOrderHandler())
			orderGroup.POST("/:order_id/cancel", orderHandlers.CancelOrderHandler())
		}

		// Limit order routes (single price condition convenience surface)
		limitGroup := v1.Group("/limit-orders")
		limitGroup.Use(middleware.JWTAuth(cfg.Auth.JWTSecret))
		{
			limitGroup.POST("", orderHandlers.CreateLimitOrderHandler())
		}

		// Monitor control routes (should be protected by internal network)
		monitorGroup := v1.Group("/monitor")
		monitorGroup.Use(middleware.InternalAuth(cfg.Auth.JWTSecret))
		{
			monitorGroup.POST("/start", monitorHandlers.StartHandler())
			monitorGroup.POST("/stop", monitorHandlers.StopHandler())
			monitorGroup.GET("/status", monitorHandlers.StatusHandler())
		}
	}
}
