package pgrecords

import (
	"context"
	"time"

	"github.com/BearBump/DriveLedger/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// ErrNotOwned is returned when an upsert hits an id that belongs to another
// owner. Identifiers are unique per user and never change hands.
var ErrNotOwned = errors.New("record id owned by another user")

const recordColumns = `
  id, owner_id, record_date::text,
  make, model, reg, pickup, dropoff,
  distance::text, rate::text, fixed_fee::text, transport_expense::text, earnings::text,
  status, notes,
  created_at, updated_at`

func (s *Storage) ListByOwner(ctx context.Context, ownerID string) ([]models.DeliveryRecord, error) {
	rows, err := s.db.Query(ctx, `
SELECT`+recordColumns+`
FROM delivery_records
WHERE owner_id = $1
ORDER BY record_date DESC, id DESC
`, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "select records")
	}
	defer rows.Close()

	out := make([]models.DeliveryRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// UpsertRecord writes the record keyed by id and returns the canonical row.
// The conflict update only applies when the existing row belongs to the same
// owner; a cross-owner id collision yields ErrNotOwned.
func (s *Storage) UpsertRecord(ctx context.Context, rec models.DeliveryRecord) (models.DeliveryRecord, error) {
	now := time.Now().UTC()

	row := s.db.QueryRow(ctx, `
INSERT INTO delivery_records (
  id, owner_id, record_date,
  make, model, reg, pickup, dropoff,
  distance, rate, fixed_fee, transport_expense, earnings,
  status, notes, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$16)
ON CONFLICT (id) DO UPDATE SET
  record_date = EXCLUDED.record_date,
  make = EXCLUDED.make,
  model = EXCLUDED.model,
  reg = EXCLUDED.reg,
  pickup = EXCLUDED.pickup,
  dropoff = EXCLUDED.dropoff,
  distance = EXCLUDED.distance,
  rate = EXCLUDED.rate,
  fixed_fee = EXCLUDED.fixed_fee,
  transport_expense = EXCLUDED.transport_expense,
  earnings = EXCLUDED.earnings,
  status = EXCLUDED.status,
  notes = EXCLUDED.notes,
  updated_at = EXCLUDED.updated_at
WHERE delivery_records.owner_id = EXCLUDED.owner_id
RETURNING`+recordColumns+`
`, rec.ID, rec.OwnerID, rec.Date,
		rec.Make, rec.Model, rec.Reg, rec.Pickup, rec.Dropoff,
		rec.Distance.String(), rec.Rate.String(), rec.FixedFee.String(),
		rec.TransportExpense.String(), rec.Earnings.String(),
		rec.Status, rec.Notes, now)

	out, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DeliveryRecord{}, ErrNotOwned
	}
	if err != nil {
		return models.DeliveryRecord{}, err
	}
	return out, nil
}

func (s *Storage) DeleteRecord(ctx context.Context, ownerID, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM delivery_records WHERE id = $1 AND owner_id = $2`, id, ownerID)
	return errors.Wrap(err, "delete record")
}

// scanRecord is the single typed decode step between the wire row shape and
// the in-memory record: nullable strings default to "", numerics (read as
// text) coerce through ParseAmount, missing status becomes pending.
func scanRecord(row pgx.Row) (models.DeliveryRecord, error) {
	var rec models.DeliveryRecord
	var makeCol, model, reg, pickup, dropoff, notes, status *string
	var distance, rate, fixedFee, transportExpense, earningsCol *string
	if err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.Date,
		&makeCol, &model, &reg, &pickup, &dropoff,
		&distance, &rate, &fixedFee, &transportExpense, &earningsCol,
		&status, &notes,
		&rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rec, err
		}
		return rec, errors.Wrap(err, "scan record")
	}

	rec.Make = deref(makeCol)
	rec.Model = deref(model)
	rec.Reg = deref(reg)
	rec.Pickup = deref(pickup)
	rec.Dropoff = deref(dropoff)
	rec.Notes = deref(notes)
	rec.Status = models.NormalizeStatus(deref(status))

	rec.Distance = models.ParseAmount(deref(distance))
	rec.Rate = models.ParseAmount(deref(rate))
	rec.FixedFee = models.ParseAmount(deref(fixedFee))
	rec.TransportExpense = models.ParseAmount(deref(transportExpense))
	rec.Earnings = models.ParseAmount(deref(earningsCol))

	return rec, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
