package telegram

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/relatobot/internal/platform"
	"github.com/user/relatobot/internal/types"
)

// newOfflineAdapter builds an adapter without a Bot API connection, enough
// for the bookkeeping paths that never touch the wire.
func newOfflineAdapter() *Adapter {
	return &Adapter{
		admins:   map[int64]bool{1: true},
		channels: make(map[types.ChannelID]*channelState),
		byChat:   make(map[int64]types.ChannelID),
		subs:     make(map[types.ChannelID]map[int]chan platform.Event),
	}
}

func TestParseCallbackData(t *testing.T) {
	tests := []struct {
		data string
		want int
		ok   bool
	}{
		{"opt:0", 0, true},
		{"opt:3", 3, true},
		{"opt:-1", 0, false},
		{"opt:abc", 0, false},
		{"other:1", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseCallbackData(tt.data)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseCallbackData(%q) = (%d, %v), want (%d, %v)", tt.data, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		user tgbotapi.User
		want string
	}{
		{tgbotapi.User{FirstName: "Ana", LastName: "Silva"}, "Ana Silva"},
		{tgbotapi.User{FirstName: "Ana"}, "Ana"},
		{tgbotapi.User{UserName: "anasilva"}, "anasilva"},
	}
	for _, tt := range tests {
		if got := displayName(&tt.user); got != tt.want {
			t.Errorf("displayName(%+v) = %q, want %q", tt.user, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{errors.New("Forbidden: bot was blocked by the user"), platform.ErrPermissionDenied},
		{errors.New("Bad Request: not enough rights to send text messages"), platform.ErrPermissionDenied},
		{errors.New("Bad Request: chat not found"), platform.ErrNotFound},
	}
	for _, tt := range tests {
		if got := classify(tt.err); !errors.Is(got, tt.want) {
			t.Errorf("classify(%v) = %v, want wrapped %v", tt.err, got, tt.want)
		}
	}

	plain := errors.New("internal server error")
	got := classify(plain)
	if errors.Is(got, platform.ErrPermissionDenied) || errors.Is(got, platform.ErrNotFound) {
		t.Errorf("unknown error misclassified: %v", got)
	}
}

func TestCreateChannelRegistersChat(t *testing.T) {
	a := newOfflineAdapter()
	ctx := context.Background()

	ch, err := a.CreateChannel(ctx, "relato x", platform.ChannelOptions{Viewer: "12345"})
	if err != nil {
		t.Fatalf("create channel failed: %v", err)
	}
	if !a.ChannelExists(ctx, ch) {
		t.Fatal("channel not registered")
	}

	chatID, err := a.chatFor(ch)
	if err != nil {
		t.Fatalf("chatFor failed: %v", err)
	}
	if chatID != 12345 {
		t.Errorf("expected chat 12345, got %d", chatID)
	}
	if got, ok := a.channelForChat(12345); !ok || got != ch {
		t.Errorf("reverse lookup failed: %v %v", got, ok)
	}
}

func TestCreateChannelRejectsBadViewer(t *testing.T) {
	a := newOfflineAdapter()

	_, err := a.CreateChannel(context.Background(), "x", platform.ChannelOptions{Viewer: "not-a-number"})
	if !errors.Is(err, platform.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSubscribeAndDispatch(t *testing.T) {
	a := newOfflineAdapter()
	ctx := context.Background()

	ch, err := a.CreateChannel(ctx, "x", platform.ChannelOptions{Viewer: "1"})
	if err != nil {
		t.Fatalf("create channel failed: %v", err)
	}

	events, cancel := a.Subscribe(ch)
	ev := platform.Event{Message: &platform.Message{Channel: ch, Author: "1", ID: "m1", Text: "oi"}}
	a.dispatch(ch, ev)

	got := <-events
	if got.Message == nil || got.Message.Text != "oi" {
		t.Fatalf("unexpected event: %+v", got)
	}

	cancel()
	if _, open := <-events; open {
		t.Fatal("subscription channel should be closed after cancel")
	}
	// Cancel is idempotent.
	cancel()

	// Dispatch after cancel must not panic or block.
	a.dispatch(ch, ev)
}

func TestDeleteChannelClosesSubscriptions(t *testing.T) {
	a := newOfflineAdapter()
	ctx := context.Background()

	ch, err := a.CreateChannel(ctx, "x", platform.ChannelOptions{Viewer: "1"})
	if err != nil {
		t.Fatalf("create channel failed: %v", err)
	}
	events, _ := a.Subscribe(ch)

	if err := a.DeleteChannel(ctx, ch); err != nil {
		t.Fatalf("delete channel failed: %v", err)
	}
	if a.ChannelExists(ctx, ch) {
		t.Fatal("channel still registered after delete")
	}
	if _, open := <-events; open {
		t.Fatal("subscription should be closed by delete")
	}
	if err := a.DeleteChannel(ctx, ch); !errors.Is(err, platform.ErrNotFound) {
		t.Fatalf("second delete should report not found, got %v", err)
	}
}

func TestTrackUntrack(t *testing.T) {
	a := newOfflineAdapter()
	ctx := context.Background()

	ch, err := a.CreateChannel(ctx, "x", platform.ChannelOptions{Viewer: "1"})
	if err != nil {
		t.Fatalf("create channel failed: %v", err)
	}

	a.track(ch, 10)
	a.track(ch, 11)
	a.track(ch, 12)
	a.untrack(ch, 11)

	a.mu.Lock()
	got := append([]int(nil), a.channels[ch].messages...)
	a.mu.Unlock()
	if len(got) != 2 || got[0] != 10 || got[1] != 12 {
		t.Fatalf("unexpected tracked messages: %v", got)
	}

	// Untracking an unknown message or channel is a no-op.
	a.untrack(ch, 99)
	a.untrack("missing", 10)
}
