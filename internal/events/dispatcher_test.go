package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/DriveLedger/internal/broker/messages"
	"github.com/BearBump/DriveLedger/internal/cache/snapshot"
	"github.com/BearBump/DriveLedger/internal/identity"
	"github.com/BearBump/DriveLedger/internal/models"
	"github.com/BearBump/DriveLedger/internal/services/ledger"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu        sync.Mutex
	listOut   []models.DeliveryRecord
	listErr   error
	listCalls int
}

func (f *fakeRepo) ListByOwner(ctx context.Context, ownerID string) ([]models.DeliveryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.listOut, f.listErr
}

func (f *fakeRepo) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeRepo) UpsertRecord(ctx context.Context, rec models.DeliveryRecord) (models.DeliveryRecord, error) {
	return rec, nil
}

func (f *fakeRepo) DeleteRecord(ctx context.Context, ownerID, id string) error { return nil }

type fakeCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.m[key]
	return b, ok, nil
}
func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}
func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	return nil
}

func newFixture(repo *fakeRepo) (*ledger.Registry, *Dispatcher) {
	snap := snapshot.New(&fakeCache{m: map[string][]byte{}}, 0)
	reg := ledger.NewRegistry(repo, snap, nil, "")
	return reg, New(reg)
}

func TestDispatcher_SessionChangedSyncs(t *testing.T) {
	repo := &fakeRepo{listOut: []models.DeliveryRecord{{ID: "a", Date: "2026-08-29"}}}
	reg, d := newFixture(repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	sess := identity.Session{Namespace: "u1", OwnerID: "u1"}
	require.NoError(t, d.Dispatch(ctx, SessionChanged{Sess: sess, SignedIn: true}))

	require.Eventually(t, func() bool { return repo.calls() == 1 }, time.Second, 5*time.Millisecond)
	st, ok := reg.LookupOwner("u1")
	require.True(t, ok)
	require.Eventually(t, func() bool { return len(st.Records()) == 1 }, time.Second, 5*time.Millisecond)

	// Sign-out tears the store down.
	require.NoError(t, d.Dispatch(ctx, SessionChanged{Sess: sess, SignedIn: false}))
	require.Eventually(t, func() bool {
		_, ok := reg.LookupOwner("u1")
		return !ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestDispatcher_RemoteRecordChanged_SilentResyncOnlyForLiveStores(t *testing.T) {
	repo := &fakeRepo{listErr: errors.New("network")}
	reg, d := newFixture(repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	// Nobody is signed in with this owner: the ping is ignored.
	require.NoError(t, d.Dispatch(ctx, RemoteRecordChanged{OwnerID: "u1"}))
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, repo.calls())

	sess := identity.Session{Namespace: "u1", OwnerID: "u1"}
	st, _ := reg.ForSession(ctx, sess)

	require.NoError(t, d.Dispatch(ctx, RemoteRecordChanged{OwnerID: "u1"}))
	require.Eventually(t, func() bool { return repo.calls() == 1 }, time.Second, 5*time.Millisecond)

	// Transient network trouble on a realtime resync stays silent.
	require.Empty(t, st.Notices().List())
}

func TestDispatcher_AppForegroundedSignalsErrors(t *testing.T) {
	repo := &fakeRepo{listErr: errors.New("network")}
	reg, d := newFixture(repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	sess := identity.Session{Namespace: "u1", OwnerID: "u1"}
	st, _ := reg.ForSession(ctx, sess)

	require.NoError(t, d.Dispatch(ctx, AppForegrounded{Sess: sess}))
	require.Eventually(t, func() bool { return len(st.Notices().List()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestDispatcher_HandleRecordChanged(t *testing.T) {
	repo := &fakeRepo{}
	reg, d := newFixture(repo)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	_, _ = reg.ForSession(ctx, identity.Session{Namespace: "u1", OwnerID: "u1"})

	h := d.HandleRecordChanged(ctx)
	require.Error(t, h(nil, []byte("{broken")))

	b, _ := json.Marshal(messages.RecordChanged{OwnerID: "u1", RecordID: "r1", Action: messages.ActionUpserted})
	require.NoError(t, h(nil, b))
	require.Eventually(t, func() bool { return repo.calls() == 1 }, time.Second, 5*time.Millisecond)

	// Missing owner: acked and dropped, not retried forever.
	require.NoError(t, h(nil, []byte(`{}`)))
}
