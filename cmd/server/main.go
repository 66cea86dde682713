package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/quantdesk/position-engine/internal/engine"
	"github.com/quantdesk/position-engine/internal/fills"
	"github.com/quantdesk/position-engine/internal/metrics"
	"github.com/quantdesk/position-engine/internal/quotes"
	"github.com/quantdesk/position-engine/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	fillsDir := os.Getenv("FILLS_DIR")
	if fillsDir == "" {
		fillsDir = "data/fills"
	}
	quotesFile := os.Getenv("QUOTES_FILE")
	if quotesFile == "" {
		quotesFile = "data/quotes.csv"
	}

	refresh := 30 * time.Second
	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Error("invalid REFRESH_INTERVAL", "value", v, "err", err)
			os.Exit(1)
		}
		refresh = d
	}

	var cleanup []func()

	// --- Fill sources ---
	sources := []fills.Source{fills.NewDirSource(fillsDir)}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		sources = append(sources, fills.NewPostgresSource(pool))
		slog.Info("PostgreSQL fill ledger enabled")
	}

	// --- Quote loader ---
	var loader quotes.Loader = quotes.NewCSVLoader(quotesFile)

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		loader = quotes.NewCachedLoader(loader, rdb, 10*time.Second)
		slog.Info("Redis quote cache enabled")
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Engine + snapshot hub ---
	eng := engine.New(sources, loader)

	hub := server.NewHub()
	go hub.Run()

	svc := server.NewService(eng, hub)

	refreshCtx, stopRefresh := context.WithCancel(context.Background())
	defer stopRefresh()
	go svc.RunRefresher(refreshCtx, refresh)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for dashboard cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"position-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for refreshed position snapshots.
		r.Get("/ws", hub.HandleWS)

		// Position table queries.
		r.Get("/positions", svc.Positions)
		r.Get("/positions/export", svc.Export)
		r.Get("/scenarios", svc.Scenarios)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("position-engine listening", "port", port, "fills_dir", fillsDir, "quotes_file", quotesFile)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopRefresh()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down position-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("position-engine stopped")
}
