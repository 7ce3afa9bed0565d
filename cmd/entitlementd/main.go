// entitlementd runs the entitlement engine: the HTTP API for access
// resolution, seat enforcement, and subscription lifecycle operations, plus
// the scheduled lifecycle reconciler, with health probes and Prometheus
// metrics on a side port.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/dochieno/lawafrica-entitlements/pkg/api"
	"github.com/dochieno/lawafrica-entitlements/pkg/audit"
	"github.com/dochieno/lawafrica-entitlements/pkg/config"
	"github.com/dochieno/lawafrica-entitlements/pkg/entitlements"
	"github.com/dochieno/lawafrica-entitlements/pkg/institutions"
	"github.com/dochieno/lawafrica-entitlements/pkg/observability"
	"github.com/dochieno/lawafrica-entitlements/pkg/storage/postgres"
	"github.com/dochieno/lawafrica-entitlements/pkg/subscriptions"
)

var (
	runOnce   = flag.Bool("run-once", false, "Run one reconciliation pass and exit (for testing or backfill)")
	ensureDDL = flag.Bool("ensure-schema", true, "Create entitlement tables at startup if missing")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	cm, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL:  cfg.Database.URL,
		ReplicaURLs: postgres.SplitReplicaURLs(cfg.Database.ReplicaURLs),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: cfg.Database.MaxLifetime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer cm.Close()

	if *ensureDDL {
		if err := postgres.EnsureSchema(cm.Primary()); err != nil {
			log.Fatalf("Failed to ensure schema: %v", err)
		}
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	auditLogger, err := audit.NewDBLogger(cm.Primary())
	if err != nil {
		log.Fatalf("Failed to create audit logger: %v", err)
	}

	store := subscriptions.NewPostgresStore(cm.Primary(), auditLogger)
	reconciler := subscriptions.NewReconciler(cm.Primary(), store, auditLogger, logger, metrics,
		subscriptions.ReconcilerConfig{
			BatchSize: cfg.Reconciler.BatchSize,
			Interval:  cfg.Reconciler.Interval,
		})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run-once mode for testing or catching up after downtime.
	if *runOnce {
		stats, err := reconciler.ReconcileOnce(ctx)
		if err != nil {
			log.Fatalf("Reconciliation failed: %v", err)
		}
		logger.WithFields(map[string]interface{}{
			"run_id":       stats.RunID,
			"scanned":      stats.Scanned,
			"transitioned": stats.Transitioned,
		}).Info("reconciliation completed")
		return
	}

	institutionService := institutions.NewPostgresService(cm.Primary(), cfg.Seats.UnlimitedWhenZero)
	productStore := entitlements.NewProductStore(cm.Replica(),
		cfg.Entitlements.ProductCacheSize, cfg.Entitlements.ProductCacheTTL, metrics)
	resolver := entitlements.NewAccessResolver(institutionService, productStore, store,
		cfg.Entitlements.BundleProductName, metrics)

	apiServer := api.NewServer(logger, metrics, institutionService, resolver, store, auditLogger)
	apiSrv := &http.Server{
		Addr:         ":" + cfg.Server.HTTPPort,
		Handler:      apiServer.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Reconciler.Schedule, func() {
		reconciler.RunCycle(ctx)
	}); err != nil {
		log.Fatalf("Failed to schedule reconciliation: %v", err)
	}
	c.Start()

	healthChecker := observability.NewHealthChecker(cm.Primary())
	router := mux.NewRouter()
	router.HandleFunc("/healthz", healthChecker.Liveness).Methods(http.MethodGet)
	router.HandleFunc("/readyz", healthChecker.Readiness).Methods(http.MethodGet)
	if metrics != nil {
		router.Handle("/metrics", observability.Handler(registry)).Methods(http.MethodGet)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Observability.HealthPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		// Let any in-flight reconciliation batch commit before the servers
		// go away.
		<-c.Stop().Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := apiSrv.Shutdown(shutdownCtx); err != nil {
			srv.Shutdown(shutdownCtx)
			return err
		}
		return srv.Shutdown(shutdownCtx)
	})

	if metrics != nil {
		g.Go(func() error {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					metrics.UpdateDBStats(cm.Primary())
				}
			}
		})
	}

	logger.WithFields(map[string]interface{}{
		"schedule":    cfg.Reconciler.Schedule,
		"batch_size":  cfg.Reconciler.BatchSize,
		"http_port":   cfg.Server.HTTPPort,
		"health_port": cfg.Observability.HealthPort,
	}).Info("entitlementd started")

	if err := g.Wait(); err != nil {
		log.Fatalf("entitlementd failed: %v", err)
	}
	logger.Info("entitlementd stopped")
}
