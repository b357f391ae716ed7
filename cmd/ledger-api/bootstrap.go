package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/DriveLedger/config"
	"github.com/BearBump/DriveLedger/internal/api/recordsapi"
	"github.com/BearBump/DriveLedger/internal/broker/kafka"
	"github.com/BearBump/DriveLedger/internal/cache/rediscache"
	"github.com/BearBump/DriveLedger/internal/cache/snapshot"
	"github.com/BearBump/DriveLedger/internal/events"
	"github.com/BearBump/DriveLedger/internal/services/ledger"
	"github.com/BearBump/DriveLedger/internal/storage/pgrecords"
	"github.com/joho/godotenv"
)

type ledgerAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     ledgerAPIOpts
	api      *recordsapi.API
	disp     *events.Dispatcher
	consumer *kafka.Consumer
	closeDB  func()
}

func mustBootstrapLedgerAPI() *ledgerAPIApp {
	_ = godotenv.Load()

	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config, %v", err))
	}

	httpAddr := cfg.Ledger.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.Ledger.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "ledger-api"
	}
	topic := cfg.Kafka.RecordChangedTopicName
	if topic == "" {
		topic = "record.changed"
	}
	if cfg.Ledger.JWTSecret == "" {
		panic("ledger.jwt_secret (or JWT_SECRET env var) is required")
	}

	snapshotTTL := time.Duration(cfg.Ledger.SnapshotTTLSeconds) * time.Second

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	snap := snapshot.New(rediscache.New(redisAddr), snapshotTTL)
	rl := rediscache.NewRateLimiter(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)

	reg := ledger.NewRegistry(st, snap, producer, topic)
	disp := events.New(reg)
	api := recordsapi.New(reg, disp, rl, int64(cfg.Ledger.WriteRateLimitPerMinute))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &ledgerAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: ledgerAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			topic:         topic,
			consumerGroup: consumerGroup,
			jwtSecret:     []byte(cfg.Ledger.JWTSecret),
		},
		api:      api,
		disp:     disp,
		consumer: consumer,
		closeDB:  st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgrecords.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgrecords.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *ledgerAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *ledgerAPIApp) Run() error {
	return runLedgerAPI(a.ctx, a.opts, a.api, a.disp, a.consumer)
}
