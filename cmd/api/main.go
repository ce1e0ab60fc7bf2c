package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leadflow/lead-import/internal/bootstrap"
	"github.com/leadflow/lead-import/internal/config"
	domain "github.com/leadflow/lead-import/internal/domain/lead"
	infrafile "github.com/leadflow/lead-import/internal/infrastructure/file"
	"github.com/leadflow/lead-import/internal/infrastructure/redisnotify"
	"github.com/leadflow/lead-import/internal/infrastructure/repository"
	"github.com/leadflow/lead-import/internal/infrastructure/s3rows"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}
	logger := cfg.Logger()
	log := logrus.NewEntry(logger).WithField("service", "lead-import")

	ctx := context.Background()

	rowSets, err := newRowSetStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to create row set store: %v", err)
	}

	var changes bootstrap.ChangeBroker
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to reach redis: %v", err)
		}
		changes = redisnotify.NewBroker(client, log)
	}

	var stores bootstrap.Stores
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory stores; imports are lost on restart")
		stores = bootstrap.NewMemoryStores(rowSets, changes)
	default:
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to connect database: %v", err)
		}
		if cfg.AutoMigrate {
			if err := repository.Migrate(ctx, db); err != nil {
				log.Fatalf("failed to migrate database: %v", err)
			}
		}

		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to create pgx pool: %v", err)
		}
		defer pool.Close()

		stores = bootstrap.NewPostgresStores(db, pool, rowSets, changes)
	}

	server := bootstrap.NewHTTPServer(cfg, stores, log)
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	worker := bootstrap.NewSliceWorker(cfg, stores, log)
	worker.Start(workerCtx)

	go func() {
		if err := server.Start(cfg.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()
	log.WithFields(logrus.Fields{
		"addr":      cfg.Address(),
		"store":     cfg.StoreDriver,
		"row_store": cfg.RowStore,
	}).Info("lead import service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("graceful shutdown failed: %v", err)
	}
	worker.Wait()
}

func newRowSetStore(ctx context.Context, cfg *config.Configuration) (domain.RowSetStore, error) {
	if cfg.RowStore == "s3" {
		return s3rows.New(ctx, s3rows.Config{
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		})
	}
	return infrafile.NewLocalRowSetStore(cfg.RowStoreDir), nil
}
