package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/grantcue/grantcue/pkg/audit"
	"github.com/grantcue/grantcue/pkg/auth"
	"github.com/grantcue/grantcue/pkg/config"
	"github.com/grantcue/grantcue/pkg/middleware"
	"github.com/grantcue/grantcue/pkg/observability"
	"github.com/grantcue/grantcue/pkg/rbac"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Database not reachable: %v", err)
	}

	if err := rbac.Initialize(ctx, db); err != nil {
		log.Fatalf("Failed to initialize access control schema: %v", err)
	}
	log.Info("Access control schema ready")

	// Redis cache is optional; without it every resolution hits Postgres
	var cache *rbac.AccessCache
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Invalid redis URL: %v", err)
		}
		if cfg.Redis.Password != "" {
			opts.Password = cfg.Redis.Password
		}
		opts.DB = cfg.Redis.DB

		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("Redis not reachable: %v", err)
		}
		defer client.Close()

		cache = rbac.NewAccessCache(client, cfg.Access.CacheTTL)
		log.Info("Resolved-access cache enabled")
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	auditLogger, err := audit.NewDBLogger(db)
	if err != nil {
		log.Fatalf("Failed to initialize audit logger: %v", err)
	}
	defer auditLogger.Close()

	store := rbac.NewStore(db)
	resolver := rbac.NewResolver(store, logger,
		rbac.WithCache(cache),
		rbac.WithMetrics(metrics),
		rbac.WithTimeout(cfg.Access.ResolveTimeout),
	)

	tokenManager := auth.NewTokenManager(db)
	authMiddleware := middleware.NewAuthMiddleware(tokenManager, false)
	guard := rbac.NewGuard(resolver, auditLogger, metrics)
	handlers := rbac.NewHandlers(store, resolver, auditLogger)

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(authMiddleware.Handler)
	api.Use(middleware.OrgContextMiddleware(tokenManager))
	handlers.RegisterRoutes(api, guard)

	if cfg.Observability.MetricsEnabled {
		router.Handle("/metrics", observability.Handler(registry))
	}
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Infof("Starting GrantCue access service on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Graceful shutdown failed: %v", err)
	}
}
