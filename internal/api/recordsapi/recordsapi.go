package recordsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BearBump/DriveLedger/internal/events"
	"github.com/BearBump/DriveLedger/internal/identity"
	"github.com/BearBump/DriveLedger/internal/models"
	"github.com/BearBump/DriveLedger/internal/services/ledger"
	"github.com/go-chi/chi/v5"
)

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type API struct {
	reg        *ledger.Registry
	disp       *events.Dispatcher
	rl         RateLimiter
	writeLimit int64
}

// New wires the HTTP surface. rl may be nil (no write rate limiting).
func New(reg *ledger.Registry, disp *events.Dispatcher, rl RateLimiter, writeLimitPerMinute int64) *API {
	return &API{reg: reg, disp: disp, rl: rl, writeLimit: writeLimitPerMinute}
}

// Routes registers the session-scoped endpoints. The identity middleware
// must already be applied on r.
func (a *API) Routes(r chi.Router) {
	r.Get("/records", a.listRecords)
	r.Get("/records/summary", a.summary)
	r.Post("/records", a.upsertRecord)
	r.Delete("/records/{id}", a.deleteRecord)

	r.Get("/notices", a.listNotices)
	r.Post("/notices/dismiss", a.dismissNotice)

	r.Post("/events/foreground", a.foreground)
	r.Post("/session/signout", a.signOut)
}

// store resolves the caller's session store, announcing a session change to
// the dispatcher the first time a session is seen.
func (a *API) store(r *http.Request) (*ledger.Store, identity.Session) {
	sess, _ := identity.FromContext(r.Context())
	st, created := a.reg.ForSession(r.Context(), sess)
	if created && sess.Authenticated() {
		if err := a.disp.Dispatch(r.Context(), events.SessionChanged{Sess: sess, SignedIn: true}); err != nil {
			slog.Warn("dispatch session change", "namespace", sess.Namespace, "error", err.Error())
		}
	}
	return st, sess
}

func (a *API) listRecords(w http.ResponseWriter, r *http.Request) {
	st, _ := a.store(r)

	q := r.URL.Query()
	var recs []models.DeliveryRecord
	switch {
	case q.Get("range") == "today":
		recs = st.Today()
	default:
		from, to := q.Get("from"), q.Get("to")
		if (from != "" && !models.ValidDate(from)) || (to != "" && !models.ValidDate(to)) {
			writeError(w, http.StatusBadRequest, "from/to must be YYYY-MM-DD")
			return
		}
		recs = st.FilterRange(from, to)
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs})
}

func (a *API) summary(w http.ResponseWriter, r *http.Request) {
	st, _ := a.store(r)
	q := r.URL.Query()
	if q.Get("range") == "today" {
		writeJSON(w, http.StatusOK, st.TodaySummary())
		return
	}
	from, to := q.Get("from"), q.Get("to")
	if (from != "" && !models.ValidDate(from)) || (to != "" && !models.ValidDate(to)) {
		writeError(w, http.StatusBadRequest, "from/to must be YYYY-MM-DD")
		return
	}
	writeJSON(w, http.StatusOK, st.Summary(from, to))
}

func (a *API) upsertRecord(w http.ResponseWriter, r *http.Request) {
	st, sess := a.store(r)
	if !a.allowWrite(w, r, sess) {
		return
	}

	var draft models.RecordDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	id, err := st.Upsert(r.Context(), draft)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Remote trouble surfaces via /notices, never as a request failure.
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (a *API) deleteRecord(w http.ResponseWriter, r *http.Request) {
	st, sess := a.store(r)
	if !a.allowWrite(w, r, sess) {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	st.Remove(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (a *API) listNotices(w http.ResponseWriter, r *http.Request) {
	st, _ := a.store(r)
	writeJSON(w, http.StatusOK, map[string]any{"notices": st.Notices().List()})
}

func (a *API) dismissNotice(w http.ResponseWriter, r *http.Request) {
	st, _ := a.store(r)
	var body struct {
		ID string `json:"id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	st.Notices().Dismiss(body.ID)
	writeJSON(w, http.StatusOK, map[string]bool{"dismissed": true})
}

func (a *API) foreground(w http.ResponseWriter, r *http.Request) {
	_, sess := a.store(r)
	if err := a.disp.Dispatch(r.Context(), events.AppForegrounded{Sess: sess}); err != nil {
		writeError(w, http.StatusServiceUnavailable, "try again")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
}

func (a *API) signOut(w http.ResponseWriter, r *http.Request) {
	sess, _ := identity.FromContext(r.Context())
	if err := a.disp.Dispatch(r.Context(), events.SessionChanged{Sess: sess, SignedIn: false}); err != nil {
		writeError(w, http.StatusServiceUnavailable, "try again")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
}

func (a *API) allowWrite(w http.ResponseWriter, r *http.Request, sess identity.Session) bool {
	if a.rl == nil || a.writeLimit <= 0 {
		return true
	}
	minuteKey := fmt.Sprintf("rl:write:%s:%s", sess.Namespace, time.Now().UTC().Format("200601021504"))
	allowed, n, err := a.rl.Allow(r.Context(), minuteKey, a.writeLimit, 70*time.Second)
	if err != nil {
		// Rate limiting is protection, not a dependency; let the write through.
		slog.Warn("ratelimit check failed", "error", err.Error())
		return true
	}
	if !allowed {
		slog.Warn("write rate limit exceeded", "namespace", sess.Namespace, "count", n)
		writeError(w, http.StatusTooManyRequests, "too many writes, slow down")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
