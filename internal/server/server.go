package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-kratos/kratos/v2/middleware/recovery"
	kratoshttp "github.com/go-kratos/kratos/v2/transport/http"
	swaggerUI "github.com/tx7do/kratos-swagger-ui"

	_ "github.com/go-tangra/go-tangra-cpucaps/internal/codec"
	"github.com/go-tangra/go-tangra-cpucaps/internal/config"
	"github.com/go-tangra/go-tangra-cpucaps/internal/daemon"
	"github.com/go-tangra/go-tangra-cpucaps/internal/snapshot"
	"github.com/go-tangra/go-tangra-cpucaps/internal/store"
)

// NewHTTPServer builds the HTTP server with API-secret middleware, the
// service routes and, when enabled, the Swagger UI.
func NewHTTPServer(cfg *config.Config, h *Handler, openApiData []byte) *kratoshttp.Server {
	httpSrv := kratoshttp.NewServer(
		kratoshttp.Address(cfg.Listen),
		kratoshttp.Middleware(
			recovery.Recovery(),
			ApiSecretMiddleware(cfg.ApiSecret),
		),
	)
	RegisterHTTPServer(httpSrv, h)

	// Swagger UI is registered via HandlePrefix and bypasses the middleware chain.
	if cfg.EnableSwagger && len(openApiData) > 0 {
		swaggerUI.RegisterSwaggerUIServerWithOption(
			httpSrv,
			swaggerUI.WithTitle("CPU Capabilities"),
			swaggerUI.WithMemoryData(openApiData, "yaml"),
		)
		log.Printf("Swagger UI available at http://%s/docs/", cfg.Listen)
	}

	return httpSrv
}

// Run starts the HTTP server and blocks until the context is cancelled.
func Run(ctx context.Context, cfg *config.Config, cpu snapshot.Source, openApiData []byte) error {
	db, err := store.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	handler := NewHandler(cpu, db, snapshot.WithPlatform())
	httpSrv := NewHTTPServer(cfg, handler, openApiData)

	// Optional retention purge goroutine.
	if cfg.RetentionDays > 0 {
		go runPurgeLoop(ctx, db, cfg.RetentionDays, cfg.PurgeInterval)
	}

	// Optional periodic snapshot of the local CPU.
	if cfg.SnapshotInterval > 0 {
		go daemon.Run(ctx, handler.Recorder(), cfg.SnapshotInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Start(ctx)
	}()

	log.Printf("CPU capabilities API listening on %s (db: %s)", cfg.Listen, cfg.DatabasePath)
	if cfg.RetentionDays > 0 {
		log.Printf("Retention: %d days, purge interval: %s", cfg.RetentionDays, cfg.PurgeInterval)
	}
	if cfg.SnapshotInterval > 0 {
		log.Printf("Recording a snapshot every %s", cfg.SnapshotInterval)
	}

	select {
	case <-ctx.Done():
		log.Println("Shutting down...")
		return httpSrv.Stop(context.Background())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve HTTP on %s: %w", cfg.Listen, err)
		}
		return nil
	}
}

func runPurgeLoop(ctx context.Context, db *store.Store, retentionDays int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			olderThan := time.Duration(retentionDays) * 24 * time.Hour
			n, err := db.Purge(ctx, olderThan)
			if err != nil {
				log.Printf("Purge error: %v", err)
			} else if n > 0 {
				log.Printf("Purged %d snapshots older than %d days", n, retentionDays)
			}
		}
	}
}
