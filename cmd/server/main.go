// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/quarrylabs/quarry-backend/internal/config"
	"github.com/quarrylabs/quarry-backend/internal/database"
	"github.com/quarrylabs/quarry-backend/internal/ledger"
	"github.com/quarrylabs/quarry-backend/internal/payments"
	"github.com/quarrylabs/quarry-backend/internal/router"
	"github.com/quarrylabs/quarry-backend/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close(db)

	if err := database.RunMigrations(db); err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}

	deps, err := buildDependencies(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to build dependencies")
	}

	stop := make(chan struct{})
	deps.Registry.StartSweeper(time.Minute, stop)

	r := router.Initialize(db, cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logrus.WithFields(logrus.Fields{
			"port":    cfg.Server.Port,
			"network": cfg.Solana.Network,
		}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server")
	close(stop)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Fatal("Server forced to shutdown")
	}

	logrus.Info("Server exited")
}

// buildDependencies selects the ledger and storage implementations from
// configuration. There is no silent fallback: a misconfigured RPC ledger
// fails here rather than degrading to the in-memory one.
func buildDependencies(cfg *config.Config) (router.Dependencies, error) {
	deps := router.Dependencies{
		Registry: payments.NewRegistry(cfg),
	}

	if cfg.Solana.UseMemory {
		mem := ledger.NewMemoryLedger()
		deps.Gateway = mem
		deps.Anchor = mem
		deps.Authority = mem.AuthorityAddress()
		logrus.Warn("Using in-memory ledger, attestations are not durable")
	} else {
		rpc, err := ledger.NewRPCClient(cfg.Solana)
		if err != nil {
			return deps, fmt.Errorf("failed to initialize RPC ledger: %w", err)
		}
		deps.Gateway = rpc
		deps.Anchor = rpc
		deps.Authority = rpc.AuthorityAddress()
	}

	if cfg.Storage.UseMemory {
		deps.ContentStore = storage.NewMemoryStore()
	} else {
		s3Store, err := storage.NewS3Store(cfg.Storage)
		if err != nil {
			return deps, fmt.Errorf("failed to initialize content store: %w", err)
		}
		deps.ContentStore = s3Store
	}

	return deps, nil
}
