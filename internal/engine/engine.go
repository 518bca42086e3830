// Package engine drives one session through the question catalog, one
// question at a time. Within a session everything is strictly sequential;
// the only suspension points are the two answer waits, both time-bounded.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/user/relatobot/internal/catalog"
	"github.com/user/relatobot/internal/platform"
	"github.com/user/relatobot/internal/types"
)

// Config holds the per-question wait bounds. Tests shrink these.
type Config struct {
	// ChoiceWait bounds the wait for a button selection.
	ChoiceWait time.Duration
	// TextWait bounds the wait for a free-text message.
	TextWait time.Duration
	// Pause is the breather between questions.
	Pause time.Duration
	// PurgeLimit caps how many transient messages a cleanup removes.
	PurgeLimit int
}

// DefaultConfig mirrors the production wait bounds: 180s for choice
// questions, 600s for descriptive ones.
func DefaultConfig() Config {
	return Config{
		ChoiceWait: 180 * time.Second,
		TextWait:   600 * time.Second,
		Pause:      500 * time.Millisecond,
		PurgeLimit: 100,
	}
}

// Engine runs sessions against a fixed catalog over a platform connection.
type Engine struct {
	conn platform.Conn
	cat  *catalog.Catalog
	cfg  Config
}

// New creates an Engine.
func New(conn platform.Conn, cat *catalog.Catalog, cfg Config) *Engine {
	return &Engine{conn: conn, cat: cat, cfg: cfg}
}

// Run walks the catalog in index order, appending one answer per question,
// and returns the terminal-bound state: StateCompleting when every question
// resolved (answered or timed out), StateFailed only if the context was
// cancelled mid-session. An empty catalog completes immediately with zero
// answers.
func (e *Engine) Run(ctx context.Context, sess *types.Session) types.SessionState {
	events, cancel := e.conn.Subscribe(sess.Channel)
	defer cancel()

	for _, q := range e.cat.Questions() {
		var value string
		var ok bool

		switch q.Type {
		case types.QuestionMultipleChoice:
			value, ok = e.askChoice(ctx, sess, q, events)
		case types.QuestionDescriptive:
			value, ok = e.askText(ctx, sess, q, events)
		default:
			// Defensive: the loader drops these, but an unknown variant
			// must stay a logged data error, never a session failure.
			slog.Error("skipping question with unknown type", "session", string(sess.ID), "index", q.Index, "type", string(q.Type))
			continue
		}
		if !ok {
			sess.State = types.StateFailed
			return sess.State
		}

		sess.Answers = append(sess.Answers, types.Answer{
			QuestionIndex: q.Index,
			Value:         value,
			RespondedAt:   time.Now(),
		})

		select {
		case <-time.After(e.cfg.Pause):
		case <-ctx.Done():
			sess.State = types.StateFailed
			return sess.State
		}
	}

	e.cleanup(ctx, sess)
	e.notice(ctx, sess, "Todas as perguntas foram respondidas. Compilando o relatório...")

	sess.State = types.StateCompleting
	return sess.State
}

// askChoice presents the prompt with its options as buttons and waits for
// the initiator to pick one. Selections from anyone else get a private
// notice and neither resolve the wait nor reset its clock.
func (e *Engine) askChoice(ctx context.Context, sess *types.Session, q types.Question, events <-chan platform.Event) (string, bool) {
	promptID, err := e.conn.SendChoices(ctx, sess.Channel, "Pergunta: "+q.Prompt, q.Options)
	if err != nil {
		slog.Error("send choice question failed", "session", string(sess.ID), "index", q.Index, "error", err)
		return types.TimedOutAnswer, true
	}

	timer := time.NewTimer(e.cfg.ChoiceWait)
	defer timer.Stop()

	for {
		select {
		case ev, open := <-events:
			if !open {
				return "", false
			}
			sel := ev.Selection
			if sel == nil || sel.Prompt != promptID {
				continue
			}
			if sel.Author != sess.Initiator {
				if err := e.conn.Notify(ctx, sel.Author, "Apenas quem iniciou o relatório pode responder a esta pergunta."); err != nil {
					slog.Warn("notify rejected selection failed", "user", string(sel.Author), "error", err)
				}
				continue
			}
			if sel.Option < 0 || sel.Option >= len(q.Options) {
				continue
			}
			e.notice(ctx, sess, "Resposta registrada com sucesso!")
			return q.Options[sel.Option], true

		case <-timer.C:
			e.notice(ctx, sess, "Tempo esgotado para esta pergunta.")
			return types.TimedOutAnswer, true

		case <-ctx.Done():
			return "", false
		}
	}
}

// askText waits for the next message in the session channel authored by the
// initiator; everything else is ignored. On receipt the content becomes the
// answer verbatim and the channel gets a best-effort cleanup.
func (e *Engine) askText(ctx context.Context, sess *types.Session, q types.Question, events <-chan platform.Event) (string, bool) {
	if _, err := e.conn.Send(ctx, sess.Channel, "Pergunta: "+q.Prompt); err != nil {
		slog.Error("send text question failed", "session", string(sess.ID), "index", q.Index, "error", err)
		return types.TimedOutAnswer, true
	}

	timer := time.NewTimer(e.cfg.TextWait)
	defer timer.Stop()

	for {
		select {
		case ev, open := <-events:
			if !open {
				return "", false
			}
			msg := ev.Message
			if msg == nil || msg.Author != sess.Initiator {
				continue
			}
			e.notice(ctx, sess, "Resposta registrada com sucesso!")
			e.cleanup(ctx, sess)
			return msg.Text, true

		case <-timer.C:
			e.notice(ctx, sess, "Tempo esgotado para esta pergunta.")
			return types.TimedOutAnswer, true

		case <-ctx.Done():
			return "", false
		}
	}
}

// cleanup purges transient channel content. Best effort: failures are
// logged, never fatal.
func (e *Engine) cleanup(ctx context.Context, sess *types.Session) {
	if err := e.conn.Purge(ctx, sess.Channel, e.cfg.PurgeLimit); err != nil {
		slog.Warn("channel cleanup failed", "session", string(sess.ID), "channel", string(sess.Channel), "error", err)
	}
}

func (e *Engine) notice(ctx context.Context, sess *types.Session, text string) {
	if _, err := e.conn.Send(ctx, sess.Channel, text); err != nil {
		slog.Warn("send notice failed", "session", string(sess.ID), "error", err)
	}
}
