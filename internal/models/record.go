package models

import "time"

// Record statuses. Unknown values from the wire are normalized to pending.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusAborted   = "aborted"
	StatusCancelled = "cancelled"
)

// DateLayout is the calendar-day form records carry on the wire and in storage.
const DateLayout = "2006-01-02"

// DeliveryRecord is one delivery job entry. ID is assigned by the client
// before first persistence and never changes. Amounts are currency values;
// Distance is kilometers; Rate is currency per kilometer.
type DeliveryRecord struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id,omitempty"`

	Date    string `json:"date"`
	Make    string `json:"make"`
	Model   string `json:"model"`
	Reg     string `json:"reg"`
	Pickup  string `json:"pickup"`
	Dropoff string `json:"dropoff"`

	Distance         Amount `json:"distance"`
	Rate             Amount `json:"rate"`
	FixedFee         Amount `json:"fixed_fee"`
	TransportExpense Amount `json:"transport_expense"`
	Earnings         Amount `json:"earnings"`

	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// RecordDraft is what a client submits. Every field is optional on the wire;
// missing numerics decode to zero, missing strings to "".
type RecordDraft struct {
	ID      string `json:"id,omitempty"`
	Date    string `json:"date"`
	Make    string `json:"make"`
	Model   string `json:"model"`
	Reg     string `json:"reg"`
	Pickup  string `json:"pickup"`
	Dropoff string `json:"dropoff"`

	Distance         Amount `json:"distance"`
	Rate             Amount `json:"rate"`
	FixedFee         Amount `json:"fixed_fee"`
	TransportExpense Amount `json:"transport_expense"`
	Earnings         Amount `json:"earnings"`

	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// NormalizeStatus maps anything outside the four known statuses to pending.
func NormalizeStatus(s string) string {
	switch s {
	case StatusPending, StatusCompleted, StatusAborted, StatusCancelled:
		return s
	default:
		return StatusPending
	}
}

// ValidDate reports whether s is a well-formed calendar day.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
