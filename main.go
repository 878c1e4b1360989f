package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"postbase/config"
	"postbase/config/database"
	"postbase/internal/post/repository"
	"postbase/internal/post/service"
	"postbase/internal/post/store"
	"postbase/internal/search"
	"postbase/pkg/logger"
	"postbase/router"
	"postbase/socket"
)

func main() {
	logger.Init()
	defer logger.Log.Sync()

	cfg := config.Load()

	// Cancelled on SIGINT/SIGTERM; the flush worker does its final save
	// against this context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := store.NewStore()

	// Persistence is optional: without DATABASE_URL the store runs purely
	// in memory.
	flushDone := make(chan struct{})
	if cfg.DatabaseURL != "" {
		db := database.Connect(cfg.DatabaseURL)
		defer db.Close()

		repo := repository.NewPostRepository(db)
		if err := repo.EnsureSchema(); err != nil {
			logger.Sugar.Fatalf("Failed to prepare schema: %v", err)
		}
		if err := st.Hydrate(repo); err != nil {
			logger.Sugar.Fatalf("Failed to hydrate store: %v", err)
		}
		go func() {
			st.FlushWorker(ctx, repo, cfg.FlushInterval)
			close(flushDone)
		}()
	} else {
		close(flushDone)
	}

	idx := search.NewIndex(cfg.CursorSecret)
	hub := socket.NewHub(st.Get, cfg.LiveQueueSize)

	// Sink order fixes the per-document event order: index first, then
	// fan-out to viewers.
	st.OnMutation(idx.Apply)
	st.OnMutation(hub.Publish)
	go hub.Run()

	// Bootstrap generation; queries return IndexUnavailable until this
	// finishes.
	if err := idx.Reindex(ctx, st.Snapshot); err != nil {
		logger.Sugar.Fatalf("Bootstrap reindex failed: %v", err)
	}

	svc := service.NewPostService(st, idx, cfg.DefaultPageSize)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router.Setup(svc, hub, cfg.JWTSecret),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Sugar.Errorf("Server shutdown: %v", err)
		}
	}()

	logger.Sugar.Infof("postbase listening on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Sugar.Fatalf("Server stopped: %v", err)
	}

	// Wait for the final flush before exiting so the last interval of
	// writes reaches the database.
	<-flushDone
	logger.Sugar.Info("Shutdown complete")
}
