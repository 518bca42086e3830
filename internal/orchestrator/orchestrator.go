// Package orchestrator runs one goroutine per session through the full
// flow: registry admission, channel provisioning, the question loop, report
// delivery, and teardown. A weighted semaphore caps how many sessions run
// concurrently across all initiators.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/user/relatobot/internal/archive"
	"github.com/user/relatobot/internal/catalog"
	"github.com/user/relatobot/internal/engine"
	"github.com/user/relatobot/internal/lifecycle"
	"github.com/user/relatobot/internal/platform"
	"github.com/user/relatobot/internal/registry"
	"github.com/user/relatobot/internal/report"
	"github.com/user/relatobot/internal/types"
)

// Config carries the shared destinations and the concurrency cap.
type Config struct {
	Primary       types.ChannelID
	Fallback      types.ChannelID
	ErrorDest     types.ChannelID
	MaxConcurrent int64
}

// Orchestrator wires the registry, lifecycle manager, engine, and deliverer
// into the per-session flow.
type Orchestrator struct {
	conn platform.Conn
	reg  *registry.Registry
	life *lifecycle.Manager
	eng  *engine.Engine
	del  *report.Deliverer
	cat  *catalog.Catalog
	arch *archive.Store
	cfg  Config
	sem  *semaphore.Weighted
	wg   sync.WaitGroup
}

// New creates an Orchestrator. arch may be nil to disable archiving.
func New(conn platform.Conn, reg *registry.Registry, life *lifecycle.Manager, eng *engine.Engine, del *report.Deliverer, cat *catalog.Catalog, arch *archive.Store, cfg Config) *Orchestrator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	return &Orchestrator{
		conn: conn,
		reg:  reg,
		life: life,
		eng:  eng,
		del:  del,
		cat:  cat,
		arch: arch,
		cfg:  cfg,
		sem:  semaphore.NewWeighted(cfg.MaxConcurrent),
	}
}

// StartReport admits the initiator, provisions the session channel, and
// spawns the session task. Returns the channel so the caller can point the
// initiator at it. On admission failure the error is a
// *registry.AlreadyActiveError; on provisioning failure a
// *lifecycle.ProvisionError, with the registry slot released again.
func (o *Orchestrator) StartReport(ctx context.Context, initiator types.UserID, initiatorName, targetLabel string) (types.ChannelID, error) {
	sess, err := o.reg.TryAdmit(ctx, initiator, initiatorName, targetLabel)
	if err != nil {
		return "", err
	}

	ch, err := o.life.Open(ctx, initiator, targetLabel)
	if err != nil {
		o.reg.Release(initiator, sess.ID)
		return "", err
	}
	o.reg.SetChannel(initiator, ch)

	o.greet(ctx, ch, initiatorName, targetLabel)

	o.wg.Add(1)
	go o.runSession(ctx, sess)

	slog.Info("report session started",
		"session", string(sess.ID),
		"initiator", string(initiator),
		"target", targetLabel,
		"channel", string(ch),
	)
	return ch, nil
}

// ForceRelease unconditionally clears the initiator's registry entry. Only
// privileged requesters succeed. A session task already past admission
// keeps running; its own final release becomes a no-op.
func (o *Orchestrator) ForceRelease(initiator types.UserID, privileged bool) bool {
	return o.reg.ForceRelease(initiator, privileged)
}

// Sessions lists the currently admitted sessions.
func (o *Orchestrator) Sessions() []registry.Info {
	return o.reg.List()
}

// Stop waits for all in-flight session tasks to finish.
func (o *Orchestrator) Stop() {
	o.wg.Wait()
}

func (o *Orchestrator) greet(ctx context.Context, ch types.ChannelID, initiatorName, targetLabel string) {
	text := fmt.Sprintf("Olá %s! Este é o canal do seu relatório sobre %s. Por favor, responda às perguntas abaixo.", initiatorName, targetLabel)
	if _, err := o.conn.Send(ctx, ch, text); err != nil {
		slog.Warn("greeting failed", "channel", string(ch), "error", err)
	}
}

// runSession drives one session to a terminal state. The registry entry is
// released before channel teardown so a new report can start while the old
// channel waits out its grace period.
func (o *Orchestrator) runSession(ctx context.Context, sess *types.Session) {
	defer o.wg.Done()

	if err := o.sem.Acquire(ctx, 1); err != nil {
		slog.Warn("session aborted before start", "session", string(sess.ID), "error", err)
		sess.State = types.StateFailed
		o.reg.Release(sess.Initiator, sess.ID)
		return
	}
	defer o.sem.Release(1)

	state := o.eng.Run(ctx, sess)

	var outcome report.Outcome
	if state == types.StateCompleting {
		rep := report.Compile(sess, o.cat)
		outcome = o.del.Deliver(ctx, rep, sess.Channel, o.cfg.Primary, o.cfg.Fallback, o.cfg.ErrorDest)
		sess.State = types.StateCompleted
		o.archiveReport(sess, rep, outcome)
	} else {
		sess.State = types.StateFailed
	}

	o.reg.Release(sess.Initiator, sess.ID)
	o.life.Close(ctx, sess.Channel)

	slog.Info("report session finished",
		"session", string(sess.ID),
		"initiator", string(sess.Initiator),
		"state", string(sess.State),
		"outcome", string(outcome),
	)
}

func (o *Orchestrator) archiveReport(sess *types.Session, rep *report.Report, outcome report.Outcome) {
	if o.arch == nil {
		return
	}
	rec := &archive.Record{
		SessionID:   sess.ID,
		Initiator:   sess.Initiator,
		TargetLabel: sess.TargetLabel,
		Outcome:     outcome,
		CompletedAt: rep.CompletedAt,
		Entries:     rep.Entries,
	}
	if err := o.arch.Append(rec); err != nil {
		slog.Warn("archive append failed", "session", string(sess.ID), "error", err)
	}
}
