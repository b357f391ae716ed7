package messages

import "time"

// Change actions carried on the record.changed topic.
const (
	ActionUpserted = "upserted"
	ActionDeleted  = "deleted"
)

// RecordChanged notifies other sessions of the same owner that the remote
// record set moved. Consumers resync from the store; the message is a ping,
// not a delta.
type RecordChanged struct {
	OwnerID   string    `json:"owner_id"`
	RecordID  string    `json:"record_id"`
	Action    string    `json:"action"`
	ChangedAt time.Time `json:"changed_at"`
}
