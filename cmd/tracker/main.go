// Tracker is the device gateway for Queclink GPS units. It terminates the
// devices' long-lived TCP connections, decodes the @Track ASCII protocol,
// persists positions to MongoDB, and delivers pending immobilizer commands
// back to devices on their own traffic.
//
// Usage:
//
//	tracker serve
//
// All configuration comes from TRACKER_-prefixed environment variables; see
// 'tracker serve --help'.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RodrigoCastroMoura/Tracker/internal/api/router"
	"github.com/RodrigoCastroMoura/Tracker/internal/cache"
	"github.com/RodrigoCastroMoura/Tracker/internal/config"
	"github.com/RodrigoCastroMoura/Tracker/internal/core/repository"
	"github.com/RodrigoCastroMoura/Tracker/internal/core/service"
	"github.com/RodrigoCastroMoura/Tracker/internal/engine"
	"github.com/RodrigoCastroMoura/Tracker/internal/lock"
	"github.com/RodrigoCastroMoura/Tracker/internal/logging"
	"github.com/RodrigoCastroMoura/Tracker/internal/notify"
	"github.com/RodrigoCastroMoura/Tracker/internal/protocol/server"
	"github.com/RodrigoCastroMoura/Tracker/internal/session"
)

const version = "1.2.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "tracker",
	Short:   "GPS tracker device gateway",
	Long:    `Gateway for Queclink GV50/GV300/GMT100 trackers: TCP protocol endpoint, MongoDB persistence, and an HTTP API for fleet operators.`,
	Version: version,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway",
	Long: `Start the device-facing TCP listener and the operator HTTP API.

Configuration is environment-only, prefixed TRACKER_:

  TRACKER_BIND_PORT         device TCP port (default 5023)
  TRACKER_API_PORT          operator HTTP port (default 8000)
  TRACKER_MONGO_URI         MongoDB connection string (required)
  TRACKER_REDIS_URL         Redis URL for control-state caching (optional)
  TRACKER_JWT_SECRET        HS256 secret for the operator API
  TRACKER_FCM_ENABLED       send vehicle alerts through FCM
  TRACKER_FCM_CREDENTIALS   service-account JSON for FCM`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logging.Initialize(cfg.LogLevel); err != nil {
		return err
	}
	defer logging.Sync()

	db, err := config.ConnectMongoDB(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	vehicleRepo := repository.NewMongoVehicleRepository(db)
	eventRepo := repository.NewMongoTrackEventRepository(db)
	controlCache := cache.NewControlCache(cfg.RedisURL, cfg.SessionTTL)

	var notifier notify.Notifier = notify.Nop{}
	if cfg.FCMEnabled {
		fcm, err := notify.NewFCM(cfg.FCMCredentials, cfg.FCMTopic)
		if err != nil {
			return fmt.Errorf("failed to initialize FCM: %w", err)
		}
		notifier = fcm
	}

	// One lock set serializes all vehicle writers per IMEI: the service's
	// telemetry updates and the engine's ack reconciliation.
	locks := lock.NewKeyed()
	tracking := service.NewTrackingService(vehicleRepo, eventRepo, controlCache, notifier, locks)
	eng := engine.New(vehicleRepo, controlCache, notifier, cfg.DefaultPassword, locks)
	registry := session.NewRegistry(cfg.SessionTTL, cfg.MaxConnections)

	tcpServer := server.NewTCPServer(server.Config{
		Host:           cfg.BindHost,
		Port:           cfg.BindPort,
		MaxConnections: cfg.MaxConnections,
		MaxFrameBytes:  cfg.MaxFrameBytes,
		IdleTimeout:    cfg.IdleTimeout,
		ShutdownGrace:  cfg.ShutdownGrace,
		MalformedLimit: cfg.MalformedLimit,
	}, registry, tracking, eng)
	if err := tcpServer.Start(); err != nil {
		return err
	}

	apiServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.BindHost, cfg.APIPort),
		Handler:      router.NewRouter(tracking, cfg.JWTSecret),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		logging.Info("HTTP API listening", zap.String("addr", apiServer.Addr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal("HTTP API failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logging.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logging.Warn("HTTP shutdown", zap.Error(err))
	}
	tcpServer.Stop()
	return nil
}
