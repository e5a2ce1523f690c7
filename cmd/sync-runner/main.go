// Command sync-runner replicates changed customer records from an analytical
// warehouse into a Dataverse environment. Each invocation is one run: it
// resumes from the persisted watermark, pages through changes, posts them as
// atomic upsert batches and advances the watermark as pages commit.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nucleus/sync-core/internal/archive"
	"github.com/nucleus/sync-core/internal/config"
	"github.com/nucleus/sync-core/internal/connector/dataverse"
	httpx "github.com/nucleus/sync-core/internal/connector/http"
	"github.com/nucleus/sync-core/internal/connector/warehouse"
	"github.com/nucleus/sync-core/internal/engine"
	"github.com/nucleus/sync-core/internal/watermark"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg := config.LoadSyncConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Sync failed: %v", err)
	}
}

func run(ctx context.Context, cfg *config.SyncConfig) error {
	reader, err := warehouse.NewReader(&warehouse.Config{
		Driver: cfg.SourceDriver,
		DSN:    cfg.SourceDSN,
		Table:  cfg.SourceTable,
	})
	if err != nil {
		return fmt.Errorf("create warehouse reader: %w", err)
	}
	defer reader.Close()

	if err := reader.Ping(ctx); err != nil {
		return fmt.Errorf("warehouse unreachable: %w", err)
	}
	if v := reader.PostgresVersion(ctx); v != "" {
		log.Printf("Warehouse connected: %s", v)
	}

	store, closeStore, err := newWatermarkStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	tokens := dataverse.NewTokenSource(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, cfg.TargetURL)
	client := dataverse.NewClient(cfg.TargetURL, tokens, &httpx.ClientConfig{
		MaxRetries:  cfg.MaxRetries,
		BackoffBase: cfg.BackoffBase,
		RateLimit:   cfg.RateLimit,
	})

	if cfg.ArchiveBucket != "" {
		envelopes, err := newEnvelopeArchive(ctx, cfg)
		if err != nil {
			return err
		}
		client.Archive = envelopes
	}

	driver, err := engine.NewDriver(reader,
		&dataverse.Mapper{Entity: cfg.Entity, AlternateKey: cfg.AlternateKey},
		client, store, engine.Options{
			PageSize:         cfg.PageSize,
			BatchSize:        cfg.BatchSize,
			MaxRecordsPerRun: cfg.MaxRecordsPerRun,
			DefaultWatermark: cfg.DefaultWatermark,
		})
	if err != nil {
		return fmt.Errorf("create driver: %w", err)
	}

	res, err := driver.Run(ctx)
	if err != nil {
		return err
	}
	log.Printf("Run finished: %d records over %d pages, watermark %s",
		res.TotalRecords, res.PagesProcessed, res.FinalWatermark)
	return nil
}

// newWatermarkStore picks the Postgres control table when a DSN is
// configured, otherwise the local JSON file.
func newWatermarkStore(ctx context.Context, cfg *config.SyncConfig) (engine.WatermarkStore, func(), error) {
	if cfg.WatermarkDSN != "" {
		pg, err := watermark.NewPostgresStore(ctx, cfg.WatermarkDSN, cfg.WatermarkName, cfg.DefaultWatermark)
		if err != nil {
			return nil, nil, fmt.Errorf("create watermark store: %w", err)
		}
		return pg, pg.Close, nil
	}
	return watermark.NewFileStore(cfg.WatermarkFile, cfg.DefaultWatermark), func() {}, nil
}

// newEnvelopeArchive wires the best-effort envelope archive against the
// configured object store.
func newEnvelopeArchive(ctx context.Context, cfg *config.SyncConfig) (*archive.Store, error) {
	var store archive.ObjectStore
	if cfg.ArchiveEndpoint != "" {
		s3, err := archive.NewS3Client(&archive.S3Config{
			EndpointURL:     cfg.ArchiveEndpoint,
			AccessKeyID:     cfg.ArchiveAccessKey,
			SecretAccessKey: cfg.ArchiveSecretKey,
			UseSSL:          cfg.ArchiveUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("create archive client: %w", err)
		}
		if err := s3.Ping(ctx); err != nil {
			return nil, fmt.Errorf("archive store unreachable: %w", err)
		}
		store = s3
	} else {
		store = archive.NewLocalStore("")
	}

	runID := time.Now().UTC().Format("20060102T150405Z")
	return archive.NewStore(store, cfg.ArchiveBucket, cfg.ArchivePrefix, runID), nil
}
