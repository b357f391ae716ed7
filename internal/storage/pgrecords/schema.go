package pgrecords

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	// Most columns are nullable on purpose: rows written by older clients may
	// be partially populated, the read side applies the defaults.
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS delivery_records (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  record_date DATE NOT NULL,
  make TEXT NULL,
  model TEXT NULL,
  reg TEXT NULL,
  pickup TEXT NULL,
  dropoff TEXT NULL,
  distance NUMERIC NULL,
  rate NUMERIC NULL,
  fixed_fee NUMERIC NULL,
  transport_expense NUMERIC NULL,
  earnings NUMERIC NULL,
  status TEXT NULL,
  notes TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_records_owner_date ON delivery_records(owner_id, record_date DESC)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
