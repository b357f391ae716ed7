package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/DriveLedger/internal/api/recordsapi"
	"github.com/BearBump/DriveLedger/internal/events"
	"github.com/BearBump/DriveLedger/internal/identity"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

type ledgerAPIOpts struct {
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string
	jwtSecret     []byte

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

func runLedgerAPI(ctx context.Context, opts ledgerAPIOpts, api *recordsapi.API, disp *events.Dispatcher, consumer kafkaConsumer) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger.json"),
	))

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(opts.jwtSecret))
		api.Routes(r)
	})

	dispErr := make(chan error, 1)
	go func() {
		dispErr <- disp.Run(ctx)
	}()

	go func() {
		slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
		if err := consumer.Consume(ctx, disp.HandleRecordChanged(ctx)); err != nil && ctx.Err() == nil {
			slog.Error("kafka consumer stopped", "error", err.Error())
		}
	}()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, lis, r)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-dispErr:
		return err
	case err := <-httpErr:
		return err
	}
}

func runHTTPServer(ctx context.Context, lis net.Listener, handler http.Handler) error {
	srv := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	return srv.Serve(lis)
}
