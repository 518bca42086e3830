// Package archive keeps a local append-only log of delivered reports as
// JSONL. It is an operator convenience behind `relatobot report list`, not
// part of the delivery guarantee.
package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/relatobot/internal/report"
	"github.com/user/relatobot/internal/types"
)

// Record is one archived report with its delivery outcome.
type Record struct {
	SessionID   types.SessionID `json:"session_id"`
	Initiator   types.UserID    `json:"initiator"`
	TargetLabel string          `json:"target_label"`
	Outcome     report.Outcome  `json:"outcome"`
	CompletedAt time.Time       `json:"completed_at"`
	Entries     []report.Entry  `json:"entries"`
}

// Store is a JSONL-backed archive at a single file path.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a Store writing to the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the file path used by this store.
func (s *Store) Path() string {
	return s.path
}

// Append adds a record to the archive, creating the file on first use.
func (s *Store) Append(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal archive record: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open archive file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append archive record: %w", err)
	}
	return nil
}

// List returns up to limit most recent records, oldest first. A missing
// file yields an empty slice.
func (s *Store) List(limit int) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Record{}, nil
		}
		return nil, fmt.Errorf("open archive file: %w", err)
	}
	defer f.Close()

	var records []*Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal archive record: %w", err)
		}
		records = append(records, &rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan archive file: %w", err)
	}

	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}
