package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/BearBump/DriveLedger/internal/broker/messages"
	"github.com/BearBump/DriveLedger/internal/identity"
	"github.com/BearBump/DriveLedger/internal/services/ledger"
	"github.com/pkg/errors"
)

// The three external happenings the reconciliation layer reacts to. Auth
// transitions, app-foreground pings and realtime change notifications all
// funnel through one dispatcher instead of three independent subscriptions.
type (
	SessionChanged struct {
		Sess     identity.Session
		SignedIn bool
	}

	AppForegrounded struct {
		Sess identity.Session
	}

	RemoteRecordChanged struct {
		OwnerID string
	}
)

type Event interface {
	isEvent()
}

func (SessionChanged) isEvent()      {}
func (AppForegrounded) isEvent()     {}
func (RemoteRecordChanged) isEvent() {}

// Dispatcher serializes events through a single Run loop, so resyncs never
// overlap each other.
type Dispatcher struct {
	reg *ledger.Registry
	ch  chan Event
}

func New(reg *ledger.Registry) *Dispatcher {
	return &Dispatcher{
		reg: reg,
		ch:  make(chan Event, 64),
	}
}

// Dispatch enqueues an event for the Run loop.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	select {
	case d.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleRecordChanged adapts a record.changed kafka message into an event.
// The message is a ping; the owner's store resyncs rather than applying it
// as a delta.
func (d *Dispatcher) HandleRecordChanged(ctx context.Context) func(key, value []byte) error {
	return func(_key, value []byte) error {
		var m messages.RecordChanged
		if err := json.Unmarshal(value, &m); err != nil {
			return errors.Wrap(err, "decode record change")
		}
		if m.OwnerID == "" {
			return nil
		}
		return d.Dispatch(ctx, RemoteRecordChanged{OwnerID: m.OwnerID})
	}
}

func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-d.ch:
			d.handle(ctx, ev)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case SessionChanged:
		if !e.SignedIn {
			d.reg.Drop(ctx, e.Sess.Namespace)
			return
		}
		st, _ := d.reg.ForSession(ctx, e.Sess)
		if err := st.SyncFromRemote(ctx, true); err != nil {
			slog.Warn("sync on session change", "namespace", e.Sess.Namespace, "error", err.Error())
		}

	case AppForegrounded:
		st, _ := d.reg.ForSession(ctx, e.Sess)
		if err := st.SyncFromRemote(ctx, true); err != nil {
			slog.Warn("sync on foreground", "namespace", e.Sess.Namespace, "error", err.Error())
		}

	case RemoteRecordChanged:
		st, ok := d.reg.LookupOwner(e.OwnerID)
		if !ok {
			return
		}
		if err := st.SyncFromRemote(ctx, false); err != nil {
			slog.Warn("sync on remote change", "owner", e.OwnerID, "error", err.Error())
		}
	}
}
