package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BearBump/DriveLedger/internal/api/recordsapi"
	"github.com/BearBump/DriveLedger/internal/cache/snapshot"
	"github.com/BearBump/DriveLedger/internal/events"
	"github.com/BearBump/DriveLedger/internal/models"
	"github.com/BearBump/DriveLedger/internal/services/ledger"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct{}

func (r *fakeRepo) ListByOwner(ctx context.Context, ownerID string) ([]models.DeliveryRecord, error) {
	return []models.DeliveryRecord{}, nil
}
func (r *fakeRepo) UpsertRecord(ctx context.Context, rec models.DeliveryRecord) (models.DeliveryRecord, error) {
	return rec, nil
}
func (r *fakeRepo) DeleteRecord(ctx context.Context, ownerID, id string) error { return nil }

type fakeCache struct{}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}
func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}
func (c *fakeCache) Del(ctx context.Context, key string) error { return nil }

type fakeLimiter struct{}

func (l *fakeLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	return true, 1, nil
}

type fakeConsumer struct{}

func (c fakeConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRunLedgerAPI_SwaggerAndHealthServed(t *testing.T) {
	dir := t.TempDir()
	sw := filepath.Join(dir, "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))

	reg := ledger.NewRegistry(&fakeRepo{}, snapshot.New(&fakeCache{}, 0), nil, "record.changed")
	disp := events.New(reg)
	api := recordsapi.New(reg, disp, &fakeLimiter{}, 60)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)

	opts := ledgerAPIOpts{
		httpAddr:      "127.0.0.1:0",
		swaggerPath:   sw,
		topic:         "record.changed",
		consumerGroup: "g",
		jwtSecret:     []byte("test-secret"),
		onListen:      func(httpAddr string) { addrCh <- httpAddr },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLedgerAPI(ctx, opts, api, disp, fakeConsumer{})
	}()

	httpAddr := <-addrCh

	resp, err := http.Get("http://" + httpAddr + "/swagger.json")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	require.Contains(t, string(body), "\"swagger\"")

	resp, err = http.Get("http://" + httpAddr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	// records endpoints sit behind the identity middleware
	resp, err = http.Get("http://" + httpAddr + "/records")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	cancel()
	require.Error(t, <-errCh)
}

func TestRunLedgerAPI_MissingSwaggerFile(t *testing.T) {
	reg := ledger.NewRegistry(&fakeRepo{}, snapshot.New(&fakeCache{}, 0), nil, "record.changed")
	disp := events.New(reg)
	api := recordsapi.New(reg, disp, &fakeLimiter{}, 60)

	opts := ledgerAPIOpts{
		httpAddr:    "127.0.0.1:0",
		swaggerPath: "/nonexistent/swagger.json",
		jwtSecret:   []byte("test-secret"),
	}

	err := runLedgerAPI(context.Background(), opts, api, disp, fakeConsumer{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "swagger file not found")
}
