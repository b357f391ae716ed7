package ledger

import (
	"context"
	"sync"

	"github.com/BearBump/DriveLedger/internal/cache/snapshot"
	"github.com/BearBump/DriveLedger/internal/identity"
)

// Registry hands out one Store per session namespace. Store lifecycle is
// tied to session presence, not to any single request.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store

	repo     Repository
	snap     *snapshot.Store
	producer Producer
	topic    string
}

func NewRegistry(repo Repository, snap *snapshot.Store, producer Producer, topic string) *Registry {
	return &Registry{
		stores:   make(map[string]*Store),
		repo:     repo,
		snap:     snap,
		producer: producer,
		topic:    topic,
	}
}

// ForSession returns the session's store, creating and priming it from the
// snapshot on first sight. Returns true when the store was just created
// (a session transition for the dispatcher).
func (g *Registry) ForSession(ctx context.Context, sess identity.Session) (*Store, bool) {
	g.mu.Lock()
	st, ok := g.stores[sess.Namespace]
	if !ok {
		st = NewStore(sess, g.repo, g.snap, g.producer, g.topic)
		g.stores[sess.Namespace] = st
	}
	g.mu.Unlock()

	if !ok {
		st.LoadInitial(ctx)
	}
	return st, !ok
}

// LookupOwner finds the live store of an authenticated owner, if any.
func (g *Registry) LookupOwner(ownerID string) (*Store, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.stores[ownerID]
	return st, ok
}

// Drop tears the session's store down and clears its snapshot (sign-out).
func (g *Registry) Drop(ctx context.Context, namespace string) {
	g.mu.Lock()
	st, ok := g.stores[namespace]
	delete(g.stores, namespace)
	g.mu.Unlock()

	if ok {
		_ = st.snap.Drop(ctx, namespace)
	}
}
