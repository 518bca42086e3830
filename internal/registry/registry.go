// Package registry enforces the one-active-session-per-initiator rule.
// It holds no question or answer logic; it is purely a uniqueness guard
// keyed by initiator identity.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/relatobot/internal/types"
)

// Resolver reports whether a channel still exists on the platform. The
// registry uses it to detect stale entries left behind by crashed or
// abandoned sessions.
type Resolver func(ctx context.Context, ch types.ChannelID) bool

// AlreadyActiveError is returned by TryAdmit when the initiator already has
// a live session. Channel references the existing session's channel so the
// caller can point the user at it.
type AlreadyActiveError struct {
	Initiator types.UserID
	Channel   types.ChannelID
}

func (e *AlreadyActiveError) Error() string {
	return fmt.Sprintf("initiator %s already has an active report session", e.Initiator)
}

// Registry maps initiator identity to the active session. All map access
// happens under one mutex, giving admission atomic check-and-insert
// semantics and release atomic remove.
type Registry struct {
	mu      sync.Mutex
	resolve Resolver
	active  map[types.UserID]*types.Session
}

// New creates an empty registry. resolve may be nil, in which case existing
// entries are always considered live.
func New(resolve Resolver) *Registry {
	return &Registry{
		resolve: resolve,
		active:  make(map[types.UserID]*types.Session),
	}
}

// TryAdmit creates and registers a session for the initiator. If an entry
// already exists and its channel still resolves, admission fails with
// *AlreadyActiveError. An existing entry whose channel no longer resolves
// is purged and admission proceeds.
func (r *Registry) TryAdmit(ctx context.Context, initiator types.UserID, initiatorName, targetLabel string) (*types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.active[initiator]; ok {
		if r.isLive(ctx, existing) {
			return nil, &AlreadyActiveError{Initiator: initiator, Channel: existing.Channel}
		}
		slog.Info("purging stale session entry", "initiator", string(initiator), "channel", string(existing.Channel))
		delete(r.active, initiator)
	}

	sess := &types.Session{
		ID:            types.NewSessionID(),
		Initiator:     initiator,
		InitiatorName: initiatorName,
		TargetLabel:   targetLabel,
		State:         types.StateActive,
		StartedAt:     time.Now(),
	}
	r.active[initiator] = sess
	return sess, nil
}

// isLive reports whether an entry should still block admission. Entries
// without a channel are mid-provisioning and count as live. Caller must
// hold the mutex.
func (r *Registry) isLive(ctx context.Context, sess *types.Session) bool {
	if sess.Channel == "" || r.resolve == nil {
		return true
	}
	return r.resolve(ctx, sess.Channel)
}

// SetChannel records the provisioned channel on the initiator's entry.
// No-op if the entry is gone.
func (r *Registry) SetChannel(initiator types.UserID, ch types.ChannelID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.active[initiator]; ok {
		sess.Channel = ch
	}
}

// Release removes the initiator's entry, but only if it still belongs to
// the given session. After a forced removal and re-admission the old session
// task's release must not evict the new entry, so identity is checked.
func (r *Registry) Release(initiator types.UserID, id types.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.active[initiator]; ok && sess.ID == id {
		delete(r.active, initiator)
	}
}

// ForceRelease removes an entry unconditionally, but only for privileged
// requesters. It does not touch the underlying channel or interrupt a
// running session task. Returns true if an entry was removed.
func (r *Registry) ForceRelease(initiator types.UserID, privileged bool) bool {
	if !privileged {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[initiator]; !ok {
		return false
	}
	delete(r.active, initiator)
	slog.Info("session entry force-released", "initiator", string(initiator))
	return true
}

// Info is an admission-time snapshot of an active session. Only fields the
// registry itself writes are included; state and answers belong to the
// owning session goroutine and are not readable from here.
type Info struct {
	ID            types.SessionID `json:"id"`
	Initiator     types.UserID    `json:"initiator"`
	InitiatorName string          `json:"initiator_name"`
	TargetLabel   string          `json:"target_label"`
	Channel       types.ChannelID `json:"channel,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
}

// List returns a snapshot of the active sessions.
func (r *Registry) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Info, 0, len(r.active))
	for _, sess := range r.active {
		out = append(out, Info{
			ID:            sess.ID,
			Initiator:     sess.Initiator,
			InitiatorName: sess.InitiatorName,
			TargetLabel:   sess.TargetLabel,
			Channel:       sess.Channel,
			StartedAt:     sess.StartedAt,
		})
	}
	return out
}

// PurgeStale removes entries whose channels no longer resolve and returns
// how many were removed. The sweeper calls this periodically.
func (r *Registry) PurgeStale(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int
	for initiator, sess := range r.active {
		if r.isLive(ctx, sess) {
			continue
		}
		delete(r.active, initiator)
		removed++
		slog.Info("purging stale session entry", "initiator", string(initiator), "channel", string(sess.Channel))
	}
	return removed
}
