// Package catalog loads the ordered, immutable question set the daemon
// walks through for every report session.
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/user/relatobot/internal/types"
)

// Catalog is an immutable ordered sequence of questions.
type Catalog struct {
	questions []types.Question
}

// entry is the on-disk question record.
type entry struct {
	Type     string   `json:"type" yaml:"type"`
	Question string   `json:"question" yaml:"question"`
	Options  []string `json:"options,omitempty" yaml:"options,omitempty"`
}

// Empty returns a catalog with no questions.
func Empty() *Catalog {
	return &Catalog{}
}

// New builds a catalog from already-validated questions. Indexes are
// reassigned to match position.
func New(questions []types.Question) *Catalog {
	qs := make([]types.Question, len(questions))
	copy(qs, questions)
	for i := range qs {
		qs[i].Index = i
	}
	return &Catalog{questions: qs}
}

// Len returns the number of questions.
func (c *Catalog) Len() int {
	return len(c.questions)
}

// Questions returns the questions in order. The slice is a copy.
func (c *Catalog) Questions() []types.Question {
	out := make([]types.Question, len(c.questions))
	copy(out, c.questions)
	return out
}

// Question returns the question at index i.
func (c *Catalog) Question(i int) types.Question {
	return c.questions[i]
}

// Load reads a question definition file (JSON or YAML, by extension) and
// returns the catalog. A missing or unreadable file degrades to an empty
// catalog with a logged diagnostic; it never prevents startup. Individual
// malformed entries are dropped with a data-error log, yielding a partial
// catalog whose surviving questions are indexed densely.
func Load(path string) *Catalog {
	if path == "" {
		slog.Warn("no catalog path configured, starting with empty catalog")
		return Empty()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("catalog file unreadable, starting with empty catalog", "path", path, "error", err)
		return Empty()
	}

	questions, err := Parse(data, filepath.Ext(path))
	if err != nil {
		slog.Error("catalog file malformed, starting with empty catalog", "path", path, "error", err)
		return Empty()
	}
	return New(questions)
}

// Parse decodes and validates question entries. The format is chosen by
// extension: ".yaml"/".yml" for YAML, anything else JSON. Entries that fail
// validation are dropped and logged; a decode failure of the whole document
// is returned as an error.
func Parse(data []byte, ext string) ([]types.Question, error) {
	var entries []entry
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("decode yaml catalog: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("decode json catalog: %w", err)
		}
	}

	questions := make([]types.Question, 0, len(entries))
	for i, e := range entries {
		q, err := e.validate()
		if err != nil {
			slog.Error("dropping malformed catalog entry", "entry", i, "error", err)
			continue
		}
		q.Index = len(questions)
		questions = append(questions, q)
	}
	return questions, nil
}

func (e entry) validate() (types.Question, error) {
	if strings.TrimSpace(e.Question) == "" {
		return types.Question{}, fmt.Errorf("empty question text")
	}

	switch types.QuestionType(e.Type) {
	case types.QuestionMultipleChoice:
		if len(e.Options) == 0 {
			return types.Question{}, fmt.Errorf("multiple_choice question without options")
		}
		seen := make(map[string]bool, len(e.Options))
		for _, opt := range e.Options {
			if seen[opt] {
				return types.Question{}, fmt.Errorf("duplicate option %q", opt)
			}
			seen[opt] = true
		}
		return types.Question{
			Prompt:  e.Question,
			Type:    types.QuestionMultipleChoice,
			Options: append([]string(nil), e.Options...),
		}, nil

	case types.QuestionDescriptive:
		return types.Question{
			Prompt: e.Question,
			Type:   types.QuestionDescriptive,
		}, nil

	default:
		return types.Question{}, fmt.Errorf("unknown question type %q", e.Type)
	}
}
