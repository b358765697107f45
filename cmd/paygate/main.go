package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/terminal-bench/paygate/internal/artifact"
	"github.com/terminal-bench/paygate/internal/gateway"
	"github.com/terminal-bench/paygate/internal/policy"
	"github.com/terminal-bench/paygate/internal/session"
	"github.com/terminal-bench/paygate/pkg/messaging"
)

type Config struct {
	Port            string
	NATSUrl         string
	RedisURL        string
	PolicySource    string // "file" or "postgres"
	PolicyFile      string
	DatabaseURL     string
	JWTSecret       string
	SessionTTL      time.Duration
	RateLimitMax    int
	RateLimitWindow time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
}

func loadConfig() *Config {
	return &Config{
		Port:            getEnv("PORT", "8000"),
		NATSUrl:         getEnv("NATS_URL", ""),
		RedisURL:        getEnv("REDIS_URL", ""),
		PolicySource:    getEnv("POLICY_SOURCE", "file"),
		PolicyFile:      getEnv("POLICY_FILE", "policies.yaml"),
		DatabaseURL:     getEnv("DATABASE_URL", "postgres://paygate@localhost:5432/paygate?sslmode=disable"),
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret"),
		SessionTTL:      30 * time.Minute,
		RateLimitMax:    100,
		RateLimitWindow: time.Minute,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func main() {
	cfg := loadConfig()

	rows, err := loadPolicyRows(cfg)
	if err != nil {
		log.Fatalf("Failed to load policy table: %v", err)
	}
	store, err := policy.NewStore(rows, policy.BasketMerge{})
	if err != nil {
		log.Fatalf("Invalid policy table: %v", err)
	}
	log.Printf("Loaded %d policy rows from %s", store.Len(), cfg.PolicySource)

	var msgClient *messaging.Client
	if cfg.NATSUrl != "" {
		msgClient, err = messaging.NewClient(messaging.Config{
			URL:            cfg.NATSUrl,
			Name:           "paygate",
			ReconnectWait:  time.Second,
			MaxReconnects:  60,
			ConnectTimeout: 10 * time.Second,
		})
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer msgClient.Close()
	}

	var (
		sessions  session.Store
		artifacts session.ArtifactStore
	)
	mem := session.NewMemoryStore()
	sessions, artifacts = mem, mem
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		rs := session.NewRedisStore(redis.NewClient(opts), cfg.SessionTTL)
		sessions, artifacts = rs, rs
	}

	gw := gateway.NewGateway(gateway.Config{
		JWTSecret:       cfg.JWTSecret,
		RateLimitMax:    cfg.RateLimitMax,
		RateLimitWindow: cfg.RateLimitWindow,
	}, gateway.Deps{
		Policies:  store,
		Sessions:  sessions,
		Artifacts: artifacts,
		Builder:   artifact.NewBuilder(),
		MsgClient: msgClient,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      gw.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Printf("paygate starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("paygate stopped")
}

func loadPolicyRows(cfg *Config) ([]policy.Row, error) {
	if cfg.PolicySource == "postgres" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := policy.WaitPostgres(ctx, db, time.Second); err != nil {
			return nil, err
		}
		return policy.LoadPostgres(ctx, db)
	}
	return policy.LoadYAMLFile(cfg.PolicyFile)
}
