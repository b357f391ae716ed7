package ledger

import (
	"github.com/BearBump/DriveLedger/internal/earnings"
	"github.com/BearBump/DriveLedger/internal/models"
)

// FilterRange returns records with from <= date <= to (ISO days compare
// lexicographically). Empty bounds are open ends. Ordering is preserved.
func (s *Store) FilterRange(from, to string) []models.DeliveryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.DeliveryRecord, 0)
	for _, r := range s.records {
		if from != "" && r.Date < from {
			continue
		}
		if to != "" && r.Date > to {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Today matches only the current calendar day of the store's clock, in its
// local zone.
func (s *Store) Today() []models.DeliveryRecord {
	day := s.now().Format(models.DateLayout)
	return s.FilterRange(day, day)
}

func (s *Store) Summary(from, to string) earnings.Summary {
	return earnings.Summarize(s.FilterRange(from, to))
}

func (s *Store) TodaySummary() earnings.Summary {
	return earnings.Summarize(s.Today())
}
