// Package lifecycle provisions the scoped channel a session runs in and
// tears it down after the session reaches a terminal state.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/user/relatobot/internal/platform"
	"github.com/user/relatobot/internal/types"
)

// Kind classifies a provisioning failure.
type Kind string

const (
	// CategoryMissing means the configured channel category does not resolve.
	CategoryMissing Kind = "category_missing"
	// PermissionDenied means the platform refused the channel create.
	PermissionDenied Kind = "permission_denied"
	// ProvisionFailed covers every other create failure.
	ProvisionFailed Kind = "provision_failed"
)

// ProvisionError reports a failed channel open. The caller aborts session
// admission on any kind.
type ProvisionError struct {
	Kind Kind
	Err  error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provision channel (%s): %v", e.Kind, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// Manager opens and closes session channels.
type Manager struct {
	conn     platform.Conn
	category string
	grace    time.Duration
	errDest  types.ChannelID
}

// New creates a Manager. grace is how long a terminal session's channel
// lingers before deletion.
func New(conn platform.Conn, category string, grace time.Duration, errDest types.ChannelID) *Manager {
	return &Manager{conn: conn, category: category, grace: grace, errDest: errDest}
}

var unsafeNameChars = regexp.MustCompile(`[^\w \-]`)

// channelName builds the channel label from the target and today's date.
func channelName(targetLabel string, now time.Time) string {
	label := strings.TrimSpace(unsafeNameChars.ReplaceAllString(targetLabel, ""))
	if label == "" {
		label = "avaliado"
	}
	return fmt.Sprintf("relato %s %s", label, now.Format("2006-01-02"))
}

// Open creates a channel under the configured category, visible only to
// the initiator and the system identity. Failures come back as
// *ProvisionError with the cause distinguished.
func (m *Manager) Open(ctx context.Context, initiator types.UserID, targetLabel string) (types.ChannelID, error) {
	ch, err := m.conn.CreateChannel(ctx, channelName(targetLabel, time.Now()), platform.ChannelOptions{
		Category: m.category,
		Viewer:   initiator,
	})
	if err != nil {
		perr := &ProvisionError{Kind: ProvisionFailed, Err: err}
		switch {
		case errors.Is(err, platform.ErrNotFound):
			perr.Kind = CategoryMissing
		case errors.Is(err, platform.ErrPermissionDenied):
			perr.Kind = PermissionDenied
		}
		slog.Error("channel provisioning failed", "initiator", string(initiator), "kind", string(perr.Kind), "error", err)
		return "", perr
	}
	return ch, nil
}

// Close waits out the grace delay and deletes the channel. Deletion
// failures are escalated and logged, never retried; the registry slot has
// already been released by the time Close runs, so nothing blocks on it.
func (m *Manager) Close(ctx context.Context, ch types.ChannelID) {
	select {
	case <-time.After(m.grace):
	case <-ctx.Done():
	}

	if err := m.conn.DeleteChannel(ctx, ch); err != nil {
		slog.Error("channel teardown failed", "channel", string(ch), "error", err)
		if m.errDest != "" {
			if _, serr := m.conn.Send(ctx, m.errDest, fmt.Sprintf("⚠️ não foi possível excluir o canal %s: %v", ch, err)); serr != nil {
				slog.Error("escalate teardown failure failed", "error", serr)
			}
		}
	}
}
