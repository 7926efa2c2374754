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

	"github.com/veilchat/server/internal/ban"
	"github.com/veilchat/server/internal/hub"
	"github.com/veilchat/server/internal/identity"
	"github.com/veilchat/server/internal/messaging"
	"github.com/veilchat/server/internal/metrics"
	"github.com/veilchat/server/internal/moderation"
	"github.com/veilchat/server/internal/protocol"
	"github.com/veilchat/server/internal/ratelimit"
	"github.com/veilchat/server/internal/report"
	"github.com/veilchat/server/internal/ws"
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

	hubConfig := hub.DefaultConfig()
	if v := os.Getenv("MAX_QUEUE_WAIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			hubConfig.MaxQueueWait = d
		}
	}

	metricsAddr := ":9091"
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		metricsAddr = v
	}

	// --- Redis (bans, rate limits, trusted tiers) ---
	redisAddr := "localhost:6379"
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		redisAddr = v
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	pingCancel()

	banStore := ban.NewStore(redisClient)
	tierStore := identity.NewStore(redisClient)
	limiter := ratelimit.NewLimiter(redisClient)

	// --- NATS (outbound event bus) ---
	natsConfig := messaging.DefaultNATSConfig()
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		natsConfig.URL = natsURL
	}
	publisher, err := messaging.NewPublisher(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// --- PostgreSQL (abuse reports) ---
	var reportStore *report.Store
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := report.Open(dsn)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		migrationsDir := "migrations"
		if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
			migrationsDir = v
		}
		if err := report.Migrate(db, migrationsDir); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		reportStore = report.NewStore(db)
	} else {
		log.Printf("DATABASE_URL not set, report persistence disabled")
	}

	log.Printf("Veilchat server starting")
	log.Printf("  listen_addr:     %s", config.ListenAddr)
	log.Printf("  metrics_addr:    %s", metricsAddr)
	log.Printf("  worker_pool:     %d", config.WorkerPoolSize)
	log.Printf("  max_connections:  %d", config.MaxConnections)
	log.Printf("  read_timeout:    %s", config.ReadTimeout)
	log.Printf("  write_timeout:   %s", config.WriteTimeout)
	log.Printf("  max_queue_wait:  %s", hubConfig.MaxQueueWait)
	log.Printf("  nats_url:        %s", natsConfig.URL)
	log.Printf("  redis_addr:      %s", redisAddr)

	// Declare server early so closures can capture it.
	var server *ws.Server

	h := hub.New(hubConfig, hub.SenderFunc(func(connID string, data []byte) error {
		return server.Send(connID, data)
	}), moderation.NewFilter())
	h.SetBanService(banStore)
	h.SetTierResolver(tierStore)
	h.SetLimiter(ratelimit.NewHubLimiter(limiter))
	if reportStore != nil {
		h.SetReportStore(reportStore)
	}
	h.SetEventPublisher(publisher)

	dispatcher := ws.NewMessageDispatcher(nil)

	// -----------------------------------------------------------------------
	// reconnect_user — re-bind a stable identity to this connection
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeReconnectUser, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.ReconnectUserMsg)
		if !ok {
			return
		}
		h.ReconnectUser(conn.ID, m.UserID)
		log.Printf("reconnect_user conn=%s user=%s", conn.ID, m.UserID)
	})

	// -----------------------------------------------------------------------
	// join_queue — enter the matching queue
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeJoinQueue, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.JoinQueueMsg)
		if !ok {
			return
		}
		h.JoinQueue(context.Background(), conn.ID, conn.RemoteIP, m)
	})

	// -----------------------------------------------------------------------
	// send_message — relay a chat message to the partner
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeSendMessage, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.SendMessageMsg)
		if !ok {
			return
		}
		h.SendMessage(context.Background(), conn.ID, m)
	})

	// -----------------------------------------------------------------------
	// typing / stop_typing — relay typing indicators
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeTyping, func(conn *ws.Connection, msg interface{}) {
		h.Typing(conn.ID)
	})
	dispatcher.Register(protocol.TypeStopTyping, func(conn *ws.Connection, msg interface{}) {
		h.StopTyping(conn.ID)
	})

	// -----------------------------------------------------------------------
	// report_user — file an abuse report against the current partner
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeReportUser, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.ReportUserMsg)
		if !ok {
			return
		}
		h.ReportUser(context.Background(), conn.ID, m.Reason)
	})

	// -----------------------------------------------------------------------
	// leave_chat — end the current chat or cancel a pending queue entry
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeLeaveChat, func(conn *ws.Connection, msg interface{}) {
		h.LeaveChat(conn.ID)
		log.Printf("leave_chat conn=%s", conn.ID)
	})

	server = ws.NewServer(config, dispatcher.Dispatch)
	dispatcher.SetServer(server)

	server.SetOnConnect(func(connID string) {
		h.Register(connID)
	})
	server.SetOnDisconnect(func(connID string) {
		h.Disconnect(connID)
	})
	server.SetConnectGate(func(ip string) bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		ok, _ := limiter.Allow(ctx, ip, ratelimit.RuleConnect)
		return ok
	})

	h.Start()

	// Prometheus metrics endpoint on its own listener.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)
		h.Stop()
		publisher.Close()
		if err := server.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		if err := redisClient.Close(); err != nil {
			log.Printf("redis close error: %v", err)
		}
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
