package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"expediter/internal/api"
	"expediter/internal/broadcast"
	"expediter/internal/config"
	"expediter/internal/database"
	"expediter/internal/display"
	"expediter/internal/kitchen"
	"expediter/internal/logger"
	"expediter/internal/monitoring"
	"expediter/internal/scheduler"
)

var configFile = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.Initialize(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	events := broadcast.New(log.Named("broadcast"), metrics)
	sched := scheduler.New(log.Named("scheduler"), metrics)

	orders := database.NewOrderStore(db)
	menu := database.NewMenuStore(db)
	timers := kitchen.NewTimerService(orders, menu, sched, events, log.Named("kitchen"), metrics)

	// The scheduler registry is volatile; every countdown is re-derived from
	// durable timerEnd values each boot.
	sched.OnExpire(func(orderID uint) {
		if err := timers.ExpireTimer(context.Background(), orderID); err != nil {
			log.Error("expire pipeline failed", zap.Uint("order_id", orderID), zap.Error(err))
		}
	})

	// Reconcile before opening the listener so no command can race an order
	// the scheduler has not yet realized is expired.
	if err := timers.Reconcile(context.Background()); err != nil {
		log.Fatal("Boot reconciliation failed", zap.Error(err))
	}

	hub := display.NewHub(events, log.Named("display"))
	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.NewServer(timers, hub, log.Named("api"), cfg.JWTSecret).Router,
	}

	go startMetricsServer(cfg.MetricsAddr, log)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("API server shutdown error", zap.Error(err))
		}
		sched.Stop()
	}()

	log.Info("Starting API server", zap.String("addr", cfg.ListenAddr))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal("API server error", zap.Error(err))
	}
}

func startMetricsServer(addr string, log *zap.Logger) {
	gin.SetMode(gin.ReleaseMode)
	metricsRouter := gin.New()
	metricsRouter.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.Info("Starting metrics server", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, metricsRouter); err != nil {
		log.Warn("Metrics server error", zap.Error(err))
	}
}
