package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notice is a dismissible, human-readable failure message. Nothing in the
// reconciliation flow is fatal; this is how failures reach the user.
type Notice struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type Notices struct {
	mu    sync.Mutex
	items []Notice
	max   int
}

func NewNotices(max int) *Notices {
	if max <= 0 {
		max = 20
	}
	return &Notices{max: max}
}

func (n *Notices) Add(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, Notice{
		ID:        uuid.NewString(),
		Message:   message,
		CreatedAt: time.Now().UTC(),
	})
	if len(n.items) > n.max {
		n.items = n.items[len(n.items)-n.max:]
	}
}

func (n *Notices) List() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notice, len(n.items))
	copy(out, n.items)
	return out
}

// Dismiss removes one notice by id, or everything when id is empty.
func (n *Notices) Dismiss(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if id == "" {
		n.items = nil
		return
	}
	kept := n.items[:0:0]
	for _, it := range n.items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	n.items = kept
}
