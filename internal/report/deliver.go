// internal/report/deliver.go
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/user/relatobot/internal/platform"
	"github.com/user/relatobot/internal/types"
)

// Outcome classifies how a delivery attempt ended.
type Outcome string

const (
	// Delivered means the primary destination accepted the report.
	Delivered Outcome = "delivered"
	// SkippedNoDestination means the primary destination is not configured
	// or does not resolve; no fallback is attempted.
	SkippedNoDestination Outcome = "skipped_no_destination"
	// DeliveredViaFallback means the primary send failed but the artifact
	// reached the secondary destination.
	DeliveredViaFallback Outcome = "delivered_via_fallback"
	// Failed means neither the primary nor the secondary send succeeded.
	Failed Outcome = "failed"
)

// Deliverer sends compiled reports. workDir holds fallback artifacts for
// the duration of a single delivery attempt; no file survives Deliver.
type Deliverer struct {
	conn    platform.Conn
	workDir string
}

// NewDeliverer creates a Deliverer writing fallback artifacts under workDir.
func NewDeliverer(conn platform.Conn, workDir string) *Deliverer {
	return &Deliverer{conn: conn, workDir: workDir}
}

// Deliver attempts the primary destination first. A missing destination
// degrades to a skipped delivery; any other send failure escalates to the
// error destination and routes through the fallback artifact. The session
// channel is notified of the result either way.
func (d *Deliverer) Deliver(ctx context.Context, rep *Report, sessionCh, primary, fallback, errDest types.ChannelID) Outcome {
	if primary == "" {
		d.notifySkipped(ctx, sessionCh)
		d.escalate(ctx, errDest, "report log destination not configured")
		return SkippedNoDestination
	}

	_, err := d.conn.Send(ctx, primary, rep.Render())
	if err == nil {
		d.notify(ctx, sessionCh, "🎉 Relatório concluído! Este canal será excluído em breve.")
		return Delivered
	}

	if errors.Is(err, platform.ErrNotFound) {
		d.notifySkipped(ctx, sessionCh)
		d.escalate(ctx, errDest, fmt.Sprintf("report log destination %s not found", primary))
		return SkippedNoDestination
	}

	slog.Error("primary report delivery failed", "destination", string(primary), "error", err)
	d.escalate(ctx, errDest, fmt.Sprintf("report delivery to %s failed: %v", primary, err))

	outcome := d.deliverFallback(ctx, rep, primary, fallback, errDest)
	switch outcome {
	case DeliveredViaFallback:
		d.notify(ctx, sessionCh, "🎉 Relatório concluído! Este canal será excluído em breve.")
	default:
		d.notify(ctx, sessionCh, "Ocorreu um erro ao salvar o relatório no log.")
	}
	return outcome
}

// deliverFallback serializes the report to a transient file and sends it to
// the secondary destination: the fallback channel if it differs from the
// failed primary, otherwise the error destination. The file is removed on
// every exit path, including serialization failure.
func (d *Deliverer) deliverFallback(ctx context.Context, rep *Report, primary, fallback, errDest types.ChannelID) Outcome {
	path := filepath.Join(d.workDir, rep.FallbackFilename(time.Now()))

	if err := os.WriteFile(path, []byte(rep.RenderFallback()), 0o644); err != nil {
		os.Remove(path)
		slog.Error("serialize fallback artifact failed", "path", path, "error", err)
		d.escalate(ctx, errDest, fmt.Sprintf("fallback artifact write failed: %v", err))
		return Failed
	}
	defer os.Remove(path)

	dest := fallback
	if dest == "" || dest == primary {
		dest = errDest
	}
	if dest == "" {
		slog.Error("no secondary destination for fallback artifact")
		return Failed
	}

	if err := d.conn.SendFile(ctx, dest, path); err != nil {
		slog.Error("fallback artifact delivery failed", "destination", string(dest), "error", err)
		d.escalate(ctx, errDest, fmt.Sprintf("fallback delivery to %s failed: %v", dest, err))
		return Failed
	}
	return DeliveredViaFallback
}

func (d *Deliverer) notifySkipped(ctx context.Context, sessionCh types.ChannelID) {
	d.notify(ctx, sessionCh, "O canal de log de relatórios não está disponível. O relatório foi concluído, mas não salvo no log.")
}

func (d *Deliverer) notify(ctx context.Context, ch types.ChannelID, text string) {
	if ch == "" {
		return
	}
	if _, err := d.conn.Send(ctx, ch, text); err != nil {
		slog.Warn("delivery notice failed", "channel", string(ch), "error", err)
	}
}

// escalate reports a delivery problem to the error destination. Degrades to
// a log line when none is configured.
func (d *Deliverer) escalate(ctx context.Context, errDest types.ChannelID, msg string) {
	if errDest == "" {
		slog.Warn("no error destination configured", "message", msg)
		return
	}
	if _, err := d.conn.Send(ctx, errDest, "⚠️ "+msg); err != nil {
		slog.Error("escalation to error destination failed", "destination", string(errDest), "error", err)
	}
}
