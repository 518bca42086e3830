package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/user/relatobot/internal/platform"
	"github.com/user/relatobot/internal/types"
)

type lifecycleConn struct {
	createErr  error
	deleteErr  error
	created    []string
	viewers    []types.UserID
	categories []string
	deleted    []types.ChannelID
	escalated  []string
}

func (c *lifecycleConn) CreateChannel(ctx context.Context, name string, opts platform.ChannelOptions) (types.ChannelID, error) {
	if c.createErr != nil {
		return "", c.createErr
	}
	c.created = append(c.created, name)
	c.viewers = append(c.viewers, opts.Viewer)
	c.categories = append(c.categories, opts.Category)
	return types.ChannelID(fmt.Sprintf("ch%d", len(c.created))), nil
}

func (c *lifecycleConn) DeleteChannel(ctx context.Context, ch types.ChannelID) error {
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.deleted = append(c.deleted, ch)
	return nil
}

func (c *lifecycleConn) ChannelExists(ctx context.Context, ch types.ChannelID) bool { return true }

func (c *lifecycleConn) Send(ctx context.Context, ch types.ChannelID, text string) (types.MessageID, error) {
	c.escalated = append(c.escalated, text)
	return "m1", nil
}

func (c *lifecycleConn) SendChoices(ctx context.Context, ch types.ChannelID, prompt string, options []string) (types.MessageID, error) {
	return "", errors.New("not implemented")
}

func (c *lifecycleConn) SendFile(ctx context.Context, ch types.ChannelID, path string) error {
	return nil
}

func (c *lifecycleConn) DeleteMessage(ctx context.Context, ch types.ChannelID, id types.MessageID) error {
	return nil
}

func (c *lifecycleConn) Purge(ctx context.Context, ch types.ChannelID, limit int) error { return nil }

func (c *lifecycleConn) Notify(ctx context.Context, user types.UserID, text string) error { return nil }

func (c *lifecycleConn) Subscribe(ch types.ChannelID) (<-chan platform.Event, func()) {
	return nil, func() {}
}

func TestOpen(t *testing.T) {
	conn := &lifecycleConn{}
	m := New(conn, "reports", 0, "errors")

	ch, err := m.Open(context.Background(), "42", "Projeto X")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if ch == "" {
		t.Fatal("expected a channel id")
	}
	if conn.viewers[0] != "42" {
		t.Errorf("expected initiator as viewer, got %s", conn.viewers[0])
	}
	if conn.categories[0] != "reports" {
		t.Errorf("expected configured category, got %s", conn.categories[0])
	}
	name := conn.created[0]
	if !strings.HasPrefix(name, "relato Projeto X ") {
		t.Errorf("unexpected channel name: %q", name)
	}
}

func TestOpenErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"category missing", platform.ErrNotFound, CategoryMissing},
		{"permission denied", platform.ErrPermissionDenied, PermissionDenied},
		{"other failure", errors.New("network down"), ProvisionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &lifecycleConn{createErr: tt.err}
			m := New(conn, "reports", 0, "errors")

			_, err := m.Open(context.Background(), "42", "x")
			var perr *ProvisionError
			if !errors.As(err, &perr) {
				t.Fatalf("expected ProvisionError, got %v", err)
			}
			if perr.Kind != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, perr.Kind)
			}
			if !errors.Is(err, tt.err) {
				t.Error("expected wrapped cause to be preserved")
			}
		})
	}
}

func TestChannelName(t *testing.T) {
	now := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		label string
		want  string
	}{
		{"Projeto X", "relato Projeto X 2025-03-14"},
		{"a/b:c", "relato abc 2025-03-14"},
		{"???", "relato avaliado 2025-03-14"},
	}
	for _, tt := range tests {
		if got := channelName(tt.label, now); got != tt.want {
			t.Errorf("channelName(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}

func TestCloseDeletesAfterGrace(t *testing.T) {
	conn := &lifecycleConn{}
	m := New(conn, "", 20*time.Millisecond, "errors")

	start := time.Now()
	m.Close(context.Background(), "ch1")
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("close returned before the grace delay, took %s", elapsed)
	}
	if len(conn.deleted) != 1 || conn.deleted[0] != "ch1" {
		t.Fatalf("expected ch1 deleted, got %v", conn.deleted)
	}
	if len(conn.escalated) != 0 {
		t.Errorf("unexpected escalation: %v", conn.escalated)
	}
}

func TestCloseEscalatesDeleteFailure(t *testing.T) {
	conn := &lifecycleConn{deleteErr: errors.New("forbidden")}
	m := New(conn, "", 0, "errors")

	m.Close(context.Background(), "ch1")
	if len(conn.escalated) != 1 {
		t.Fatalf("expected one escalation, got %v", conn.escalated)
	}
	if !strings.Contains(conn.escalated[0], "ch1") {
		t.Errorf("escalation should name the channel: %q", conn.escalated[0])
	}
}

func TestCloseCancelledContextSkipsGrace(t *testing.T) {
	conn := &lifecycleConn{}
	m := New(conn, "", time.Hour, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		m.Close(ctx, "ch1")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not return promptly on cancelled context")
	}
}
