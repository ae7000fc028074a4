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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"headstart/internal/app"
	"headstart/internal/seedapi"
	"headstart/pkg/config"
	"headstart/pkg/logger"
	"headstart/pkg/middleware"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	shutdownTracing := middleware.InitTracing("headstart-seed-service", log)

	a, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.Fatalw("init", "err", err)
	}
	defer a.Close()

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.AccessLog(log))
	r.Use(middleware.Tracing())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	seedapi.New(a.Seeder, a.Runs, cfg.WebhookHashKey, log).Routes(r)

	// Seeding a large organization runs for minutes; only the read side is bounded.
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Infow("seed-service listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	if err := shutdownTracing(ctx); err != nil {
		log.Warnw("tracing shutdown", "err", err)
	}
	_ = log.Sync()
	fmt.Println("seed-service stopped")
}
