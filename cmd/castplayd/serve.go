package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"castplayd/internal/api"
	"castplayd/internal/logger"
	"castplayd/internal/session"
	"castplayd/internal/store"
	"castplayd/internal/telemetry"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the recording library over HTTP and WebSocket",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringP("listen", "l", "", "HTTP listen address")
	f.String("store", "", "Recording store backend (memory, file, sqlite, s3, redis, http)")
	f.String("dir", "", "Directory of the file store")
	f.String("db", "", "Database path of the sqlite store")
	bindFlags(map[string]string{
		"server.listen":     "listen",
		"store.backend":     "store",
		"store.file.dir":    "dir",
		"store.sqlite.path": "db",
	}, f)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := newLogger(cfg, os.Stdout)
	log.Infof("Starting castplayd %s...", version)
	log.Infof("Log level set to: %s", cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store, log)
	if err != nil {
		log.Errorf("Failed to open %s store: %v", cfg.Store.Backend, err)
		return err
	}
	defer st.Close()
	log.Infof("Using %s recording store", cfg.Store.Backend)

	sessionMgr := session.NewManager(log, st, session.Options{
		Player:           cfg.Player,
		EvictionInterval: cfg.Cache.EvictionInterval,
		Metrics:          telemetry.Default(),
	})
	sessionMgr.Start()

	if fs, ok := st.(*store.FileStore); ok {
		go watchFiles(ctx, fs, sessionMgr, log)
	}

	var limiter *api.RateLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = api.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
		go pruneLimiter(ctx, limiter)
	}

	server := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: api.New(sessionMgr, cfg.Server, limiter, log),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Server starting on %s", cfg.Server.Listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		sessionMgr.Stop()
		return fmt.Errorf("could not listen on %s: %w", cfg.Server.Listen, err)
	}
	log.Infof("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	sessionMgr.Stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server shutdown failed: %v", err)
		return err
	}

	log.Infof("Server exited gracefully")
	return nil
}

// watchFiles drops cached parses of recordings edited on disk.
func watchFiles(ctx context.Context, fs *store.FileStore, sm *session.SessionManager, log logger.Logger) {
	err := fs.Watch(ctx, func(id string) {
		sm.Invalidate(id)
	})
	if err != nil {
		log.Warnf("Recording directory is not watched, edits on disk need a restart: %v", err)
	}
}

func pruneLimiter(ctx context.Context, limiter *api.RateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Prune()
		}
	}
}
