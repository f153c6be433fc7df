// chatd is the WebSocket gateway. It upgrades client connections, enforces
// rate limits, and shuttles messages between clients and the matching engine
// over NATS. It holds no matchmaking state of its own, so any number of
// chatd instances can sit behind a load balancer.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pairchat/server/internal/messaging"
	"github.com/pairchat/server/internal/metrics"
	"github.com/pairchat/server/internal/protocol"
	"github.com/pairchat/server/internal/ratelimit"
	"github.com/pairchat/server/internal/ws"
)

func main() {
	config := ws.DefaultServerConfig()

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		config.ListenAddr = addr
	}
	if v := os.Getenv("WORKER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.WorkerPoolSize = n
		}
	}
	if v := os.Getenv("MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.MaxConnections = n
		}
	}
	if v := os.Getenv("READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.ReadTimeout = d
		}
	}
	if v := os.Getenv("WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WriteTimeout = d
		}
	}
	metricsAddr := ":9100"
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		metricsAddr = v
	}

	// --- NATS ---
	natsConfig := messaging.DefaultNATSConfig()
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		natsConfig.URL = natsURL
	}
	natsConfig.Name = "pairchat-chatd"
	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// --- Redis (rate limiting only) ---
	redisAddr := "localhost:6379"
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		redisAddr = v
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	pingCancel()
	limiter := ratelimit.NewLimiter(rdb)

	log.Printf("pairchat gateway starting")
	log.Printf("  listen_addr:     %s", config.ListenAddr)
	log.Printf("  worker_pool:     %d", config.WorkerPoolSize)
	log.Printf("  max_connections: %d", config.MaxConnections)
	log.Printf("  read_timeout:    %s", config.ReadTimeout)
	log.Printf("  write_timeout:   %s", config.WriteTimeout)
	log.Printf("  nats_url:        %s", natsConfig.URL)
	log.Printf("  redis_addr:      %s", redisAddr)
	log.Printf("  metrics_addr:    %s", metricsAddr)

	// Declare server early so closures can capture it.
	var server *ws.Server

	dispatcher := ws.NewMessageDispatcher(nil)

	// forward publishes a client message to the engine as a command. The
	// parsed struct re-marshals with its original json tags, so the engine
	// sees the same payload the client sent.
	forward := func(conn *ws.Connection, cmdType string, msg interface{}) {
		cmd, err := protocol.NewCommand(cmdType, conn.ID, msg)
		if err != nil {
			log.Printf("[forward] build command type=%s conn=%s: %v", cmdType, conn.ID, err)
			return
		}
		if err := natsClient.PublishCommand(cmd); err != nil {
			log.Printf("[forward] publish type=%s conn=%s: %v", cmdType, conn.ID, err)
		}
	}

	// limited wraps a handler with a per-connection rate limit check. When
	// the limit is hit the client gets a rate_limited message with the
	// backoff and the command is dropped before it reaches the engine.
	limited := func(rule ratelimit.Rule, next ws.MessageHandler) ws.MessageHandler {
		return func(conn *ws.Connection, msg interface{}) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			allowed, err := limiter.Allow(ctx, conn.ID, rule)
			if err != nil {
				log.Printf("[ratelimit] check failed conn=%s: %v", conn.ID, err)
			}
			if !allowed {
				dispatcher.SendRateLimited(conn, limiter.RetryAfter(ctx, conn.ID, rule))
				return
			}
			next(conn, msg)
		}
	}

	dispatcher.Register(protocol.TypeReportLocation, func(conn *ws.Connection, msg interface{}) {
		forward(conn, protocol.TypeReportLocation, msg)
	})
	dispatcher.Register(protocol.TypeFindPartner, limited(ratelimit.RuleFindPartner, func(conn *ws.Connection, msg interface{}) {
		forward(conn, protocol.TypeFindPartner, msg)
	}))
	dispatcher.Register(protocol.TypeRetryConnection, limited(ratelimit.RuleFindPartner, func(conn *ws.Connection, msg interface{}) {
		forward(conn, protocol.TypeRetryConnection, msg)
	}))
	dispatcher.Register(protocol.TypeSendMessage, limited(ratelimit.RuleMessage, func(conn *ws.Connection, msg interface{}) {
		forward(conn, protocol.TypeSendMessage, msg)
	}))
	dispatcher.Register(protocol.TypeTyping, func(conn *ws.Connection, msg interface{}) {
		forward(conn, protocol.TypeTyping, msg)
	})
	dispatcher.Register(protocol.TypeStopTyping, func(conn *ws.Connection, msg interface{}) {
		forward(conn, protocol.TypeStopTyping, msg)
	})
	dispatcher.Register(protocol.TypeNewChat, func(conn *ws.Connection, msg interface{}) {
		forward(conn, protocol.TypeNewChat, msg)
	})

	server = ws.NewServer(config, dispatcher.Dispatch)
	dispatcher.SetServer(server)

	// Per-IP connect limiting happens before the upgrade completes.
	server.SetAcceptCheck(func(remoteIP string) bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		allowed, err := limiter.Allow(ctx, remoteIP, ratelimit.RuleConnect)
		if err != nil {
			log.Printf("[ratelimit] connect check failed ip=%s: %v", remoteIP, err)
		}
		return allowed
	})

	// On connect: subscribe to the per-connection delivery subject so engine
	// output reaches this client, then tell the engine the user arrived. The
	// subscription must exist before the connect command is published or the
	// session_created reply could be lost.
	server.SetOnConnect(func(conn *ws.Connection) {
		connID := conn.ID
		if err := natsClient.SubscribeUser(connID, func(data []byte) {
			if err := server.SendMessage(connID, data); err != nil {
				log.Printf("[deliver] send to conn=%s failed: %v", connID, err)
			}
		}); err != nil {
			log.Printf("[deliver] subscribe conn=%s failed: %v", connID, err)
		}

		cmd := protocol.Command{Type: protocol.CmdConnect, ConnID: connID}
		if err := natsClient.PublishCommand(cmd); err != nil {
			log.Printf("[connect] publish conn=%s failed: %v", connID, err)
		}
		metrics.WSConnections.Inc()
	})

	server.SetOnDisconnect(func(connID string) {
		cmd := protocol.Command{Type: protocol.CmdDisconnect, ConnID: connID, Reason: "disconnect"}
		if err := natsClient.PublishCommand(cmd); err != nil {
			log.Printf("[disconnect] publish conn=%s failed: %v", connID, err)
		}
		_ = natsClient.UnsubscribeUser(connID)
		metrics.WSConnections.Dec()
	})

	// Engine broadcasts (user counts) fan out to every local connection.
	if err := natsClient.SubscribeBroadcast(func(data []byte) {
		server.Connections().Broadcast(data)
	}); err != nil {
		log.Fatalf("failed to subscribe to broadcasts: %v", err)
	}

	// Metrics endpoint on its own listener.
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

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)
		if err := server.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		natsClient.Close()
		if err := rdb.Close(); err != nil {
			log.Printf("redis close error: %v", err)
		}
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
