package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/BearBump/DriveLedger/internal/broker/messages"
	"github.com/BearBump/DriveLedger/internal/cache/snapshot"
	"github.com/BearBump/DriveLedger/internal/earnings"
	"github.com/BearBump/DriveLedger/internal/identity"
	"github.com/BearBump/DriveLedger/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Repository interface {
	ListByOwner(ctx context.Context, ownerID string) ([]models.DeliveryRecord, error)
	UpsertRecord(ctx context.Context, rec models.DeliveryRecord) (models.DeliveryRecord, error)
	DeleteRecord(ctx context.Context, ownerID, id string) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Store owns the in-memory record set for one session and reconciles it with
// the snapshot cache and, when the session is authenticated, the remote
// store. All operations take the same mutex: a realtime-triggered sync and a
// user-triggered upsert are serialized instead of racing on the set.
type Store struct {
	mu sync.Mutex

	sess     identity.Session
	repo     Repository
	snap     *snapshot.Store
	producer Producer
	topic    string
	notices  *Notices
	now      func() time.Time

	records []models.DeliveryRecord
}

func NewStore(sess identity.Session, repo Repository, snap *snapshot.Store, producer Producer, topic string) *Store {
	return &Store{
		sess:    sess,
		repo:    repo,
		snap:    snap,
		producer: producer,
		topic:   topic,
		notices: NewNotices(20),
		now:     time.Now,
	}
}

// WithClock overrides the store's clock. Tests only.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Session() identity.Session { return s.sess }

func (s *Store) Notices() *Notices { return s.notices }

// LoadInitial returns whatever the snapshot holds so a client has something
// to show before any network round-trip. Empty on first run, possibly stale.
func (s *Store) LoadInitial(ctx context.Context) []models.DeliveryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = s.snap.Load(ctx, s.sess.Namespace)
	sortByDateDesc(s.records)
	return copyRecords(s.records)
}

// SyncFromRemote replaces the in-memory set with the remote record set and
// refreshes the snapshot. No-op for signed-out sessions. On failure the
// prior state is left untouched; a notice is pushed only when signalErrors
// is set (realtime-triggered resyncs stay silent).
func (s *Store) SyncFromRemote(ctx context.Context, signalErrors bool) error {
	if !s.sess.Authenticated() {
		return nil
	}

	recs, err := s.repo.ListByOwner(ctx, s.sess.OwnerID)
	if err != nil {
		if signalErrors {
			s.notices.Add("Could not refresh your deliveries. Showing the last known data.")
		}
		return errors.Wrap(err, "sync from remote")
	}
	sortByDateDesc(recs)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = recs
	s.persistLocked(ctx)
	return nil
}

// Upsert computes earnings, assigns an identifier when absent and merges the
// record into the set. Authenticated sessions write to the remote store
// first; a remote failure is surfaced as a notice but the client-computed
// record is merged anyway, so the edit is never silently lost.
func (s *Store) Upsert(ctx context.Context, draft models.RecordDraft) (string, error) {
	rec, err := s.recordFromDraft(draft)
	if err != nil {
		return "", err
	}

	published := false
	if s.sess.Authenticated() {
		canonical, err := s.repo.UpsertRecord(ctx, rec)
		if err != nil {
			s.notices.Add("Saving to your account failed. The delivery was kept on this device.")
			slog.Warn("remote upsert failed", "record_id", rec.ID, "error", err.Error())
		} else {
			rec = canonical
			published = true
		}
	}

	s.mu.Lock()
	s.records = merge(rec, s.records)
	s.persistLocked(ctx)
	s.mu.Unlock()

	if published {
		s.publish(ctx, rec.ID, messages.ActionUpserted)
	}
	return rec.ID, nil
}

// Remove deletes the record locally regardless of the remote outcome; the
// remote delete is retried implicitly by the next successful sync.
func (s *Store) Remove(ctx context.Context, id string) {
	published := false
	if s.sess.Authenticated() {
		if err := s.repo.DeleteRecord(ctx, s.sess.OwnerID, id); err != nil {
			s.notices.Add("Deleting from your account failed. The delivery was removed on this device.")
			slog.Warn("remote delete failed", "record_id", id, "error", err.Error())
		} else {
			published = true
		}
	}

	s.mu.Lock()
	kept := s.records[:0:0]
	for _, r := range s.records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	s.records = kept
	s.persistLocked(ctx)
	s.mu.Unlock()

	if published {
		s.publish(ctx, id, messages.ActionDeleted)
	}
}

// Records returns a copy of the in-memory set, date-descending.
func (s *Store) Records() []models.DeliveryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRecords(s.records)
}

func (s *Store) recordFromDraft(draft models.RecordDraft) (models.DeliveryRecord, error) {
	date := draft.Date
	if date == "" {
		date = s.now().Format(models.DateLayout)
	}
	if !models.ValidDate(date) {
		return models.DeliveryRecord{}, errors.Errorf("invalid date %q", draft.Date)
	}

	id := draft.ID
	if id == "" {
		id = uuid.NewString()
	}

	return models.DeliveryRecord{
		ID:               id,
		OwnerID:          s.sess.OwnerID,
		Date:             date,
		Make:             draft.Make,
		Model:            draft.Model,
		Reg:              draft.Reg,
		Pickup:           draft.Pickup,
		Dropoff:          draft.Dropoff,
		Distance:         draft.Distance,
		Rate:             draft.Rate,
		FixedFee:         draft.FixedFee,
		TransportExpense: draft.TransportExpense,
		Earnings:         earnings.Compute(draft.Distance, draft.Rate, draft.FixedFee, draft.Earnings),
		Status:           models.NormalizeStatus(draft.Status),
		Notes:            draft.Notes,
	}, nil
}

func (s *Store) persistLocked(ctx context.Context) {
	if err := s.snap.Save(ctx, s.sess.Namespace, s.records); err != nil {
		slog.Warn("snapshot save failed", "namespace", s.sess.Namespace, "error", err.Error())
	}
}

func (s *Store) publish(ctx context.Context, recordID, action string) {
	if s.producer == nil || s.topic == "" {
		return
	}
	b, _ := json.Marshal(messages.RecordChanged{
		OwnerID:   s.sess.OwnerID,
		RecordID:  recordID,
		Action:    action,
		ChangedAt: s.now().UTC(),
	})
	if err := s.producer.Publish(ctx, s.topic, []byte(s.sess.OwnerID), b); err != nil {
		slog.Warn("publish record change", "record_id", recordID, "error", err.Error())
	}
}

// merge prepends the new record, drops any prior record with the same id and
// re-sorts. At most one record per id, date-descending, stable on ties.
func merge(rec models.DeliveryRecord, rest []models.DeliveryRecord) []models.DeliveryRecord {
	out := make([]models.DeliveryRecord, 0, len(rest)+1)
	out = append(out, rec)
	for _, r := range rest {
		if r.ID != rec.ID {
			out = append(out, r)
		}
	}
	sortByDateDesc(out)
	return out
}

func sortByDateDesc(recs []models.DeliveryRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Date > recs[j].Date
	})
}

func copyRecords(recs []models.DeliveryRecord) []models.DeliveryRecord {
	out := make([]models.DeliveryRecord, len(recs))
	copy(out, recs)
	return out
}
