package earnings

import (
	"github.com/BearBump/DriveLedger/internal/models"
)

// Compute derives a job's income figure. A positive manual override is
// treated as authoritative and returned unchanged; otherwise the figure is
// distance * rate + fixedFee. The result is never negative.
func Compute(distance, rate, fixedFee, override models.Amount) models.Amount {
	if override.IsPositive() {
		return override
	}
	out := distance.Mul(rate).Add(fixedFee)
	if out.IsNegative() {
		return models.Amount{}
	}
	return out
}

// Summary aggregates a record set for dashboards. Transport expenses are
// reimbursed and count as income.
type Summary struct {
	Count            int           `json:"count"`
	Distance         models.Amount `json:"distance"`
	Earnings         models.Amount `json:"earnings"`
	TransportExpense models.Amount `json:"transport_expense"`
	TotalIncome      models.Amount `json:"total_income"`
}

func Summarize(recs []models.DeliveryRecord) Summary {
	var s Summary
	for _, r := range recs {
		s.Count++
		s.Distance = s.Distance.Add(r.Distance)
		s.Earnings = s.Earnings.Add(r.Earnings)
		s.TransportExpense = s.TransportExpense.Add(r.TransportExpense)
	}
	s.TotalIncome = s.Earnings.Add(s.TransportExpense)
	return s
}
