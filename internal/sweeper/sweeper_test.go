package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/user/relatobot/internal/registry"
	"github.com/user/relatobot/internal/types"
)

func TestStartRejectsBadSchedule(t *testing.T) {
	s := New(registry.New(nil), "not a schedule")
	if err := s.Start(); err == nil {
		s.Stop()
		t.Fatal("expected error for invalid schedule")
	}
}

func TestSweepPurgesStaleEntries(t *testing.T) {
	reg := registry.New(func(ctx context.Context, ch types.ChannelID) bool { return false })
	if _, err := reg.TryAdmit(context.Background(), "42", "alice", "x"); err != nil {
		t.Fatalf("admission failed: %v", err)
	}
	reg.SetChannel("42", "gone")

	s := New(reg, "@every 10ms")
	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for len(reg.List()) > 0 {
		select {
		case <-deadline:
			t.Fatal("stale entry not swept")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
