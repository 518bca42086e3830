package archive

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/relatobot/internal/report"
	"github.com/user/relatobot/internal/types"
)

func testRecord(label string) *Record {
	return &Record{
		SessionID:   types.NewSessionID(),
		Initiator:   "42",
		TargetLabel: label,
		Outcome:     report.Delivered,
		CompletedAt: time.Now().UTC().Truncate(time.Second),
		Entries: []report.Entry{
			{Prompt: "De uma nota", Value: "Bom"},
		},
	}
}

func TestAppendAndList(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "data", "reports.jsonl"))

	first := testRecord("alpha")
	second := testRecord("beta")
	if err := store.Append(first); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.Append(second); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	records, err := store.List(0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].TargetLabel != "alpha" || records[1].TargetLabel != "beta" {
		t.Errorf("records out of order: %s, %s", records[0].TargetLabel, records[1].TargetLabel)
	}
	if records[0].SessionID != first.SessionID {
		t.Errorf("session id not preserved")
	}
	if len(records[0].Entries) != 1 || records[0].Entries[0].Value != "Bom" {
		t.Errorf("entries not preserved: %+v", records[0].Entries)
	}
}

func TestListLimitKeepsMostRecent(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "reports.jsonl"))

	for i := 0; i < 5; i++ {
		if err := store.Append(testRecord(fmt.Sprintf("target-%d", i))); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	records, err := store.List(2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].TargetLabel != "target-3" || records[1].TargetLabel != "target-4" {
		t.Errorf("expected the two newest records, got %s, %s", records[0].TargetLabel, records[1].TargetLabel)
	}
}

func TestListMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "reports.jsonl"))

	records, err := store.List(10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty archive, got %d records", len(records))
	}
}
