// Package report turns a completed session into a structured report and
// delivers it, falling back to a transient text artifact when the primary
// destination rejects the send.
package report

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/user/relatobot/internal/catalog"
	"github.com/user/relatobot/internal/types"
)

// Entry is one question/answer pair in catalog order.
type Entry struct {
	Prompt string `json:"prompt"`
	Value  string `json:"value"`
}

// Report is the compiled record for a completed session. It exists only
// transiently during delivery; nothing persists it except the archive.
type Report struct {
	TargetLabel string    `json:"target_label"`
	Reporter    string    `json:"reporter"`
	CompletedAt time.Time `json:"completed_at"`
	Entries     []Entry   `json:"entries"`
}

// Compile pairs the session's answers with their prompts in catalog order.
func Compile(sess *types.Session, cat *catalog.Catalog) *Report {
	entries := make([]Entry, 0, len(sess.Answers))
	for _, ans := range sess.Answers {
		entries = append(entries, Entry{
			Prompt: cat.Question(ans.QuestionIndex).Prompt,
			Value:  ans.Value,
		})
	}
	return &Report{
		TargetLabel: sess.TargetLabel,
		Reporter:    sess.InitiatorName,
		CompletedAt: time.Now(),
		Entries:     entries,
	}
}

// Render formats the report for the log destination.
func (r *Report) Render() string {
	var b strings.Builder
	b.WriteString("📋 Relatório de Avaliação\n")
	fmt.Fprintf(&b, "Avaliado: %s\n", r.TargetLabel)
	fmt.Fprintf(&b, "Relator: %s\n", r.Reporter)
	fmt.Fprintf(&b, "Data: %s\n", r.CompletedAt.Format("02/01/2006 15:04:05"))
	for _, e := range r.Entries {
		fmt.Fprintf(&b, "\n❓ Pergunta: %s\n✅ Resposta: %s\n", e.Prompt, e.Value)
	}
	return b.String()
}

// RenderFallback formats the flat-text fallback artifact: a title line,
// one line per metadata field, then Pergunta:/Resposta: pairs in order.
func (r *Report) RenderFallback() string {
	var b strings.Builder
	b.WriteString("Relatório de Avaliação\n")
	fmt.Fprintf(&b, "Avaliado: %s\n", r.TargetLabel)
	fmt.Fprintf(&b, "Relator: %s\n", r.Reporter)
	fmt.Fprintf(&b, "Data: %s\n", r.CompletedAt.Format("02/01/2006 15:04:05"))
	for _, e := range r.Entries {
		fmt.Fprintf(&b, "Pergunta: %s\nResposta: %s\n", e.Prompt, e.Value)
	}
	return b.String()
}

var unsafeChars = regexp.MustCompile(`[^\w \-]`)

// FallbackFilename derives the artifact name from the sanitized target
// label plus the given date, keeping only word characters, spaces, and
// hyphens.
func (r *Report) FallbackFilename(now time.Time) string {
	label := unsafeChars.ReplaceAllString(r.TargetLabel, "")
	label = strings.TrimSpace(label)
	if label == "" {
		label = "relatorio"
	}
	return fmt.Sprintf("%s %s.txt", label, now.Format("2006-01-02"))
}
