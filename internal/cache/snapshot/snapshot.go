package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BearBump/DriveLedger/internal/cache"
	"github.com/BearBump/DriveLedger/internal/models"
)

// Store keeps one serialized record list per namespace under a fixed key.
// It is a shadow copy of the remote store (or the only copy for signed-out
// namespaces), so reads never fail: absent or unparsable blobs load as empty.
type Store struct {
	c   cache.BytesCache
	ttl time.Duration
}

func New(c cache.BytesCache, ttl time.Duration) *Store {
	return &Store{c: c, ttl: ttl}
}

func key(namespace string) string {
	return fmt.Sprintf("records:%s:snapshot", namespace)
}

func (s *Store) Load(ctx context.Context, namespace string) []models.DeliveryRecord {
	b, ok, err := s.c.Get(ctx, key(namespace))
	if err != nil || !ok {
		return []models.DeliveryRecord{}
	}
	var recs []models.DeliveryRecord
	if json.Unmarshal(b, &recs) != nil {
		return []models.DeliveryRecord{}
	}
	if recs == nil {
		recs = []models.DeliveryRecord{}
	}
	return recs
}

// Save overwrites the blob. Best-effort: the in-memory set stays
// authoritative for the session even if the write fails.
func (s *Store) Save(ctx context.Context, namespace string, recs []models.DeliveryRecord) error {
	b, err := json.Marshal(recs)
	if err != nil {
		return err
	}
	return s.c.Set(ctx, key(namespace), b, s.ttl)
}

func (s *Store) Drop(ctx context.Context, namespace string) error {
	return s.c.Del(ctx, key(namespace))
}
