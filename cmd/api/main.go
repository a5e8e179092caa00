package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"findoc-backend/internal/bootstrap"
	"findoc-backend/internal/shared/config"
	"findoc-backend/internal/shared/server"
	"findoc-backend/internal/shared/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	defer telemetry.Sync()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	addr := server.Addr(cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return app.Janitor.Run(gctx) })
	if app.Pool != nil {
		// The in-process broker starts empty; jobs left PENDING by a previous run are sent again.
		if n, err := app.Jobs.Requeue(ctx, 0); err != nil {
			log.Printf("requeue pending jobs: %v", err)
		} else if n > 0 {
			log.Printf("requeued %d pending jobs", n)
		}
		log.Printf("running jobs in-process concurrency=%d", cfg.WorkerConcurrency)
		g.Go(func() error { return app.Pool.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
