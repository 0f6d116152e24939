package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/stockroom/internal/blob"
	"github.com/JonMunkholm/stockroom/internal/config"
	"github.com/JonMunkholm/stockroom/internal/core"
	_ "github.com/JonMunkholm/stockroom/internal/core/tables" // register schemas
	"github.com/JonMunkholm/stockroom/internal/logging"
	"github.com/JonMunkholm/stockroom/internal/store"
	"github.com/JonMunkholm/stockroom/internal/web"
)

func main() {
	// Overload lets .env win over variables already in the environment.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	backend, err := store.Open(ctx, store.Config{
		Driver:          cfg.Database.Driver,
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		slog.Error("failed to open record store", "driver", cfg.Database.Driver, "error", err,
			"hint", core.FormatUserError(err))
		os.Exit(1)
	}
	defer backend.Close()
	slog.Info("record store ready", "driver", backend.Driver())

	if err := bootstrapOwner(ctx, backend, cfg.Security); err != nil {
		slog.Error("failed to seed owner membership", "error", err)
		os.Exit(1)
	}

	archiveStore, err := blob.Open(ctx, blob.Config{
		Driver:    blob.Driver(cfg.Blob.Driver),
		FSRoot:    cfg.Blob.FSRoot,
		Bucket:    cfg.Blob.Bucket,
		Region:    cfg.Blob.Region,
		Endpoint:  cfg.Blob.Endpoint,
		PathStyle: cfg.Blob.PathStyle,

		AccessKeyID:     cfg.Blob.AccessKeyID,
		SecretAccessKey: cfg.Blob.SecretAccessKey,
	})
	if err != nil {
		slog.Error("failed to open source archive", "driver", cfg.Blob.Driver, "error", err)
		os.Exit(1)
	}
	var archive core.SourceArchive
	if archiveStore != nil {
		archive = archiveStore
		slog.Info("source archive ready", "driver", archiveStore.Driver())
	} else {
		slog.Info("source archive disabled")
	}

	service := core.NewService(backend, archive, core.ServiceConfig{
		PreviewTTL:    cfg.Import.PreviewTTL,
		PreviewRows:   cfg.Import.PreviewRows,
		ImportTimeout: cfg.Import.Timeout,
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWait:       cfg.Import.MaxWaitTime,
	})
	slog.Info("schemas registered", "count", core.SchemaCount())

	server := web.NewServer(service, cfg, healthCheck(backend))

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartPreviewJanitor(jobCtx, cfg.Import.JanitorInterval)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop taking requests first, then let running imports finish.
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown error", "error", err)
		}
		if err := service.Shutdown(shutdownCtx); err != nil {
			slog.Warn("imports did not finish in time", "error", err)
		} else {
			slog.Info("all imports finished")
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		cancelJobs()
		return
	}
	<-done
}

// bootstrapOwner seeds one owner membership when configured.
func bootstrapOwner(ctx context.Context, backend store.Backend, sec config.SecurityConfig) error {
	if sec.BootstrapTenantID == "" || sec.BootstrapOwnerID == "" {
		return nil
	}
	err := backend.UpsertMembership(ctx, core.Membership{
		UserID:    sec.BootstrapOwnerID,
		TenantID:  sec.BootstrapTenantID,
		Role:      core.RoleAdmin,
		IsOwner:   true,
		IsPrimary: true,
	})
	if err == nil {
		slog.Info("owner membership seeded", "tenant_id", sec.BootstrapTenantID, "user_id", sec.BootstrapOwnerID)
	}
	return err
}

// healthCheck pings backends that support it. The memory store is always
// healthy.
func healthCheck(backend store.Backend) web.HealthFunc {
	pinger, ok := backend.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return pinger.Ping
}
