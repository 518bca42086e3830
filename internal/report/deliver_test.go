package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/user/relatobot/internal/platform"
	"github.com/user/relatobot/internal/types"
)

// deliveryConn fakes only the surface Deliver touches. sendErr injects a
// failure for a specific channel; SendFile records whether the artifact was
// on disk at send time.
type deliveryConn struct {
	sendErr     map[types.ChannelID]error
	sent        map[types.ChannelID][]string
	sendFileErr error
	filePath    string
	fileDest    types.ChannelID
	fileExisted bool
}

func newDeliveryConn() *deliveryConn {
	return &deliveryConn{
		sendErr: make(map[types.ChannelID]error),
		sent:    make(map[types.ChannelID][]string),
	}
}

func (c *deliveryConn) CreateChannel(ctx context.Context, name string, opts platform.ChannelOptions) (types.ChannelID, error) {
	return "", errors.New("not implemented")
}

func (c *deliveryConn) DeleteChannel(ctx context.Context, ch types.ChannelID) error { return nil }

func (c *deliveryConn) ChannelExists(ctx context.Context, ch types.ChannelID) bool { return true }

func (c *deliveryConn) Send(ctx context.Context, ch types.ChannelID, text string) (types.MessageID, error) {
	if err := c.sendErr[ch]; err != nil {
		return "", err
	}
	c.sent[ch] = append(c.sent[ch], text)
	return "m1", nil
}

func (c *deliveryConn) SendChoices(ctx context.Context, ch types.ChannelID, prompt string, options []string) (types.MessageID, error) {
	return "", errors.New("not implemented")
}

func (c *deliveryConn) SendFile(ctx context.Context, ch types.ChannelID, path string) error {
	c.filePath = path
	c.fileDest = ch
	if _, err := os.Stat(path); err == nil {
		c.fileExisted = true
	}
	return c.sendFileErr
}

func (c *deliveryConn) DeleteMessage(ctx context.Context, ch types.ChannelID, id types.MessageID) error {
	return nil
}

func (c *deliveryConn) Purge(ctx context.Context, ch types.ChannelID, limit int) error { return nil }

func (c *deliveryConn) Notify(ctx context.Context, user types.UserID, text string) error { return nil }

func (c *deliveryConn) Subscribe(ch types.ChannelID) (<-chan platform.Event, func()) {
	return nil, func() {}
}

func (c *deliveryConn) received(ch types.ChannelID, substr string) bool {
	for _, s := range c.sent[ch] {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

func testReport() *Report {
	return &Report{
		TargetLabel: "Projeto X",
		Reporter:    "alice",
		CompletedAt: time.Now(),
		Entries:     []Entry{{Prompt: "De uma nota", Value: "Bom"}},
	}
}

func TestDeliverPrimarySucceeds(t *testing.T) {
	conn := newDeliveryConn()
	d := NewDeliverer(conn, t.TempDir())

	outcome := d.Deliver(context.Background(), testReport(), "sess", "log", "fallback", "errors")
	if outcome != Delivered {
		t.Fatalf("expected delivered, got %s", outcome)
	}
	if !conn.received("log", "Relatório de Avaliação") {
		t.Error("report not sent to primary destination")
	}
	if !conn.received("sess", "Relatório concluído") {
		t.Error("session channel not notified of completion")
	}
	if len(conn.sent["errors"]) != 0 {
		t.Errorf("unexpected escalation: %v", conn.sent["errors"])
	}
}

func TestDeliverNoPrimaryConfigured(t *testing.T) {
	conn := newDeliveryConn()
	d := NewDeliverer(conn, t.TempDir())

	outcome := d.Deliver(context.Background(), testReport(), "sess", "", "fallback", "errors")
	if outcome != SkippedNoDestination {
		t.Fatalf("expected skipped, got %s", outcome)
	}
	if !conn.received("sess", "não está disponível") {
		t.Error("session channel not told the log is unavailable")
	}
	if !conn.received("errors", "not configured") {
		t.Error("missing escalation to error destination")
	}
	if conn.filePath != "" {
		t.Error("no fallback artifact should be attempted when primary is unset")
	}
}

func TestDeliverPrimaryNotFound(t *testing.T) {
	conn := newDeliveryConn()
	conn.sendErr["log"] = platform.ErrNotFound
	d := NewDeliverer(conn, t.TempDir())

	outcome := d.Deliver(context.Background(), testReport(), "sess", "log", "fallback", "errors")
	if outcome != SkippedNoDestination {
		t.Fatalf("expected skipped, got %s", outcome)
	}
	if conn.filePath != "" {
		t.Error("unresolvable primary must not trigger the fallback")
	}
}

func TestDeliverFallback(t *testing.T) {
	conn := newDeliveryConn()
	conn.sendErr["log"] = platform.ErrPermissionDenied
	workDir := t.TempDir()
	d := NewDeliverer(conn, workDir)

	outcome := d.Deliver(context.Background(), testReport(), "sess", "log", "fallback", "errors")
	if outcome != DeliveredViaFallback {
		t.Fatalf("expected fallback delivery, got %s", outcome)
	}
	if conn.fileDest != "fallback" {
		t.Errorf("artifact sent to %s, want fallback", conn.fileDest)
	}
	if !conn.fileExisted {
		t.Error("artifact must exist on disk while SendFile runs")
	}
	if _, err := os.Stat(conn.filePath); !os.IsNotExist(err) {
		t.Errorf("artifact must be removed after delivery, stat err: %v", err)
	}
	if !strings.HasPrefix(conn.filePath, workDir) {
		t.Errorf("artifact written outside work dir: %s", conn.filePath)
	}
	if !conn.received("errors", "delivery to log failed") {
		t.Error("primary failure not escalated")
	}
	if !conn.received("sess", "Relatório concluído") {
		t.Error("session channel not notified after fallback success")
	}
}

func TestDeliverFallbackRoutesToErrorDest(t *testing.T) {
	conn := newDeliveryConn()
	conn.sendErr["log"] = platform.ErrPermissionDenied
	d := NewDeliverer(conn, t.TempDir())

	// Fallback equal to the failed primary must be bypassed in favor of the
	// error destination.
	outcome := d.Deliver(context.Background(), testReport(), "sess", "log", "log", "errors")
	if outcome != DeliveredViaFallback {
		t.Fatalf("expected fallback delivery, got %s", outcome)
	}
	if conn.fileDest != "errors" {
		t.Errorf("artifact sent to %s, want the error destination", conn.fileDest)
	}
}

func TestDeliverBothFail(t *testing.T) {
	conn := newDeliveryConn()
	conn.sendErr["log"] = platform.ErrPermissionDenied
	conn.sendFileErr = errors.New("upload rejected")
	d := NewDeliverer(conn, t.TempDir())

	outcome := d.Deliver(context.Background(), testReport(), "sess", "log", "fallback", "errors")
	if outcome != Failed {
		t.Fatalf("expected failed, got %s", outcome)
	}
	if _, err := os.Stat(conn.filePath); !os.IsNotExist(err) {
		t.Errorf("artifact must be removed even when the fallback send fails, stat err: %v", err)
	}
	if !conn.received("sess", "erro ao salvar") {
		t.Error("session channel not told about the failure")
	}
}

func TestDeliverNoArtifactSurvives(t *testing.T) {
	conn := newDeliveryConn()
	conn.sendErr["log"] = platform.ErrPermissionDenied
	workDir := t.TempDir()
	d := NewDeliverer(conn, workDir)

	d.Deliver(context.Background(), testReport(), "sess", "log", "fallback", "errors")

	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	for _, e := range entries {
		t.Errorf("leftover artifact in work dir: %s", filepath.Join(workDir, e.Name()))
	}
}
