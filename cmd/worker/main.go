package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"example.com/reporting/internal/blobstore"
	"example.com/reporting/internal/config"
	"example.com/reporting/internal/delivery"
	persistence "example.com/reporting/internal/persistence/postgres"
	"example.com/reporting/internal/queue"
	"example.com/reporting/internal/report"
)

const retryBatchSize = 50

func main() {
	cfg := config.Load()

	if !cfg.DurableQueueEnabled() {
		log.Fatal("worker requires KAFKA_BROKERS; fallback mode runs jobs inside the API process")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := persistence.NewRepository(pool)

	registry := queue.NewRegistry()
	registry.Register(report.QueueName, buildReportHandler(cfg, repo))

	producer := queue.NewKafkaQueue(cfg.KafkaBrokers)
	defer producer.Close()

	recorder := queue.NewFailureRecorder(pool)
	retries := queue.NewRetryManager(pool, producer, cfg.JobMaxRetries, cfg.JobRetryBaseDelay)
	go retries.Start(ctx, cfg.RetryPollInterval, retryBatchSize)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}
	go func() {
		log.Printf("worker metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	var wg sync.WaitGroup
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.WorkerGroupID,
		Topic:           report.QueueName,
		MinBytes:        1e3,
		MaxBytes:        10e6,
		CommitInterval:  0,
		RetentionTime:   24 * time.Hour,
		ReadLagInterval: -1,
	})

	proc := queue.NewProcessor(reader, registry, queue.WithFailureSink(recorder))

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer reader.Close()

		log.Printf("worker started (topic=%s, group=%s)", report.QueueName, cfg.WorkerGroupID)
		if err := proc.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("worker stopped with error: %v", err)
		}
	}()

	<-stop
	log.Println("worker shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}

	wg.Wait()
	retries.Wait()
}

func buildReportHandler(cfg config.Config, repo *persistence.Repository) *report.Handler {
	aggregator := report.NewAggregator(repo, repo)
	renderer := report.NewRenderer("WorkLoop")
	mailer := delivery.NewMailer(delivery.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})

	opts := []report.HandlerOption{report.WithRenderTimeout(cfg.RenderTimeout)}
	if cfg.UploadEnabled() {
		store, err := blobstore.New(blobstore.Config{
			Endpoint:  cfg.BlobEndpoint,
			AccessKey: cfg.BlobAccessKey,
			SecretKey: cfg.BlobSecretKey,
			Bucket:    cfg.BlobBucket,
			UseSSL:    cfg.BlobUseSSL,
		})
		if err != nil {
			log.Fatalf("failed to build blob storage client: %v", err)
		}
		opts = append(opts, report.WithUploader(store))
	}

	return report.NewHandler(aggregator, renderer, repo, mailer, cfg.DefaultClientEmail, opts...)
}
