// yieldpricer serves fixed-rate trade quotes over NATS. Pool-state
// snapshots stream in over JetStream; quote requests are answered on a
// request/reply subject and mirrored to an outbound stream.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"YieldPricer/internal/ingestion"
	"YieldPricer/internal/observability"
	"YieldPricer/internal/quote"
)

// Config holds all application configuration, loaded from environment
// variables.
type Config struct {
	// NATS
	NATSURL string

	// Channels
	SnapshotChanSize int
	PublishChanSize  int

	// HTTP metrics/health
	MetricsAddr string
}

func DefaultConfig() Config {
	return Config{
		NATSURL:          envOrDefault("PRICER_NATS_URL", "nats://localhost:4222"),
		SnapshotChanSize: envIntOrDefault("PRICER_SNAPSHOT_CHAN_SIZE", 1024),
		PublishChanSize:  envIntOrDefault("PRICER_PUBLISH_CHAN_SIZE", 1024),
		MetricsAddr:      envOrDefault("PRICER_METRICS_ADDR", ":9091"),
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("INFO: YieldPricer starting...")

	cfg := DefaultConfig()

	// --- Context with graceful shutdown ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- NATS ---
	nc, js, err := ingestion.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	defer nc.Close()
	log.Println("INFO: NATS connected")

	if err := ingestion.EnsureStreams(ctx, js); err != nil {
		log.Fatalf("FATAL: ensure streams: %v", err)
	}

	// --- Core wiring ---
	metrics := observability.NewMetrics()
	health := observability.NewHealthChecker()
	registry := ingestion.NewRegistry()

	svc := quote.NewService(registry, metrics, observability.NewLogger("quote"))

	snapChan := make(chan ingestion.RawSnapshot, cfg.SnapshotChanSize)
	publishChan := make(chan ingestion.PublishableQuote, cfg.PublishChanSize)

	// --- Snapshot consumer ---
	subscriber := ingestion.NewNATSSubscriber(js, snapChan)
	if err := subscriber.Subscribe(ctx, ingestion.DefaultSubjects()); err != nil {
		log.Fatalf("FATAL: subscribe snapshots: %v", err)
	}
	defer subscriber.Stop()

	go func() {
		if err := svc.RunSnapshotLoop(ctx, snapChan); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("WARN: snapshot loop exited: %v", err)
		}
	}()

	// --- Quote responder ---
	sub, err := svc.Serve(nc, publishChan)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	defer sub.Unsubscribe()
	log.Printf("INFO: serving quotes on %s", quote.RequestSubject)

	// --- Outbound quote publisher ---
	publisher := ingestion.NewQuotePublisher(js, publishChan)
	go func() {
		if err := publisher.Run(ctx, metrics.QuotesPublished.Inc, metrics.PublishErrors.Inc); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("WARN: publisher exited: %v", err)
		}
	}()

	// --- Metrics and health endpoints ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/healthz", health.LivenessHandler)
	metricsMux.HandleFunc("/readyz", health.ReadinessHandler)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		log.Printf("INFO: metrics listening on %s", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("WARN: metrics server: %v", err)
		}
	}()

	health.SetReady(true)
	log.Println("INFO: YieldPricer ready")

	// --- Wait for shutdown signal ---
	sig := <-sigChan
	log.Printf("INFO: received signal %s, shutting down...", sig)
	health.SetReady(false)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: metrics shutdown: %v", err)
	}

	log.Println("INFO: YieldPricer stopped")
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("WARN: invalid %s=%q, using default %d", key, v, defaultVal)
	}
	return defaultVal
}
