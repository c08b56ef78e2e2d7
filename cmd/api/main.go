package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/reporting/internal/api"
	"example.com/reporting/internal/auth"
	"example.com/reporting/internal/blobstore"
	"example.com/reporting/internal/config"
	"example.com/reporting/internal/delivery"
	"example.com/reporting/internal/domain"
	persistence "example.com/reporting/internal/persistence/postgres"
	"example.com/reporting/internal/queue"
	"example.com/reporting/internal/report"
	httptransport "example.com/reporting/internal/transport/http"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := persistence.NewRepository(pool)
	service := domain.NewService(repo, repo, repo)

	var enqueuer queue.Enqueuer
	var inline *queue.InlineQueue

	if cfg.DurableQueueEnabled() {
		// Durable mode: jobs land on the broker, the worker process runs them.
		kq := queue.NewKafkaQueue(cfg.KafkaBrokers)
		defer kq.Close()
		enqueuer = kq
		log.Printf("durable job queue enabled (brokers=%v)", cfg.KafkaBrokers)
	} else {
		// Fallback mode: this process executes report jobs itself after
		// acknowledging the request.
		inline = queue.NewInlineQueue()
		inline.Register(report.QueueName, buildReportHandler(cfg, repo))
		enqueuer = inline
		log.Println("no broker configured, using in-process job execution")
	}

	handler := api.NewHandler(service, repo, repo, enqueuer, inline)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	// Simple CORS middleware for local dev
	cors := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "http://localhost:5173")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	// Basic request logger
	logger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("%s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, func(r *http.Request) bool {
		return r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
	})

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, authMiddleware.Wrap(logger(cors(mux))))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("report-service listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

// buildReportHandler assembles the full report pipeline for in-process
// execution. The worker binary does the same wiring for durable mode.
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
