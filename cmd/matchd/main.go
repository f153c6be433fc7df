// matchd runs the matching engine. It is the single owner of all matchmaking
// state: sessions, the waiting queue, active pairs, blocked pairs, and retry
// bookkeeping. Gateways feed it commands over NATS and it answers on
// per-connection delivery subjects. Exactly one matchd instance runs at a
// time.
package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pairchat/server/internal/engine"
	"github.com/pairchat/server/internal/history"
	"github.com/pairchat/server/internal/messaging"
	"github.com/pairchat/server/internal/metrics"
)

func main() {
	log.Println("Starting pairchat matching engine...")

	cfg := engine.DefaultConfig()
	if v := os.Getenv("MAX_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxRetryAttempts = n
		}
	}
	if v := os.Getenv("RETRY_BASE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RetryBaseDelay = d
		}
	}
	if v := os.Getenv("WAITING_DEADLINE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.WaitingDeadline = d
		}
	}
	if v := os.Getenv("BLOCKED_PAIR_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.BlockedPairTTL = d
		}
	}
	if v := os.Getenv("SESSION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SessionTimeout = d
		}
	}
	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SweepInterval = d
		}
	}
	metricsAddr := ":9101"
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		metricsAddr = v
	}

	// NATS setup.
	natsConfig := messaging.DefaultNATSConfig()
	if v := os.Getenv("NATS_URL"); v != "" {
		natsConfig.URL = v
	}
	natsConfig.Name = "pairchat-matchd"

	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// Episode history is optional; without a database the engine runs with
	// a no-op recorder.
	var recorder engine.Recorder
	var store *history.Store
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		store, err = history.Open(dbURL)
		if err != nil {
			log.Fatalf("failed to open history store: %v", err)
		}
		recorder = store
		log.Printf("episode history enabled")
	}

	eng := engine.New(cfg, messaging.NewSink(natsClient), recorder)
	eng.Start()

	if err := natsClient.SubscribeCommands(eng.Dispatch); err != nil {
		log.Fatalf("failed to subscribe to commands: %v", err)
	}

	log.Printf("pairchat matching engine running")
	log.Printf("  nats_url:           %s", natsConfig.URL)
	log.Printf("  max_retry_attempts: %d", cfg.MaxRetryAttempts)
	log.Printf("  retry_base_delay:   %s", cfg.RetryBaseDelay)
	log.Printf("  waiting_deadline:   %s", cfg.WaitingDeadline)
	log.Printf("  blocked_pair_ttl:   %s", cfg.BlockedPairTTL)
	log.Printf("  session_timeout:    %s", cfg.SessionTimeout)
	log.Printf("  sweep_interval:     %s", cfg.SweepInterval)
	log.Printf("  metrics_addr:       %s", metricsAddr)

	// Metrics endpoint.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics server error: %v", err)
		}
	}()

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	eng.Stop()
	natsClient.Close()
	if store != nil {
		if err := store.Close(); err != nil {
			log.Printf("history store close error: %v", err)
		}
	}
}
