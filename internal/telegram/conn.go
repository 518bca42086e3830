// internal/telegram/conn.go
//
// platform.Conn implementation over the Bot API.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/user/relatobot/internal/platform"
	"github.com/user/relatobot/internal/types"
)

// CreateChannel registers a logical channel backed by the viewer's private
// chat. The category option has no Telegram counterpart and is ignored.
func (a *Adapter) CreateChannel(ctx context.Context, name string, opts platform.ChannelOptions) (types.ChannelID, error) {
	chatID, err := strconv.ParseInt(string(opts.Viewer), 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: viewer %q is not a telegram user id", platform.ErrNotFound, opts.Viewer)
	}

	chID := types.ChannelID(uuid.New().String())
	a.mu.Lock()
	a.channels[chID] = &channelState{chatID: chatID}
	a.byChat[chatID] = chID
	a.mu.Unlock()

	slog.Debug("logical channel registered", "channel", string(chID), "chat_id", chatID, "name", name)
	return chID, nil
}

// DeleteChannel removes the bot's tracked messages and unregisters the
// logical channel. Open subscriptions are closed.
func (a *Adapter) DeleteChannel(ctx context.Context, ch types.ChannelID) error {
	a.mu.Lock()
	state, ok := a.channels[ch]
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("%w: channel %s", platform.ErrNotFound, ch)
	}
	messages := state.messages
	delete(a.channels, ch)
	if a.byChat[state.chatID] == ch {
		delete(a.byChat, state.chatID)
	}
	subs := a.subs[ch]
	delete(a.subs, ch)
	a.mu.Unlock()

	for _, sub := range subs {
		close(sub)
	}

	var lastErr error
	for _, msgID := range messages {
		if _, err := a.bot.Request(tgbotapi.NewDeleteMessage(state.chatID, msgID)); err != nil {
			lastErr = err
		}
	}
	if lastErr != nil {
		return classify(fmt.Errorf("delete channel messages: %w", lastErr))
	}
	return nil
}

// ChannelExists reports whether the logical channel is still registered.
func (a *Adapter) ChannelExists(ctx context.Context, ch types.ChannelID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.channels[ch]
	return ok
}

// Send posts a text message to the channel's chat.
func (a *Adapter) Send(ctx context.Context, ch types.ChannelID, text string) (types.MessageID, error) {
	chatID, err := a.chatFor(ch)
	if err != nil {
		return "", err
	}

	sent, err := a.bot.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return "", classify(fmt.Errorf("send message: %w", err))
	}
	a.track(ch, sent.MessageID)
	return types.MessageID(strconv.Itoa(sent.MessageID)), nil
}

// SendChoices posts the prompt with one inline keyboard button per option.
func (a *Adapter) SendChoices(ctx context.Context, ch types.ChannelID, prompt string, options []string) (types.MessageID, error) {
	chatID, err := a.chatFor(ch)
	if err != nil {
		return "", err
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(options))
	for i, opt := range options {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(opt, "opt:"+strconv.Itoa(i)),
		))
	}

	msg := tgbotapi.NewMessage(chatID, prompt)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)

	sent, err := a.bot.Send(msg)
	if err != nil {
		return "", classify(fmt.Errorf("send choices: %w", err))
	}
	a.track(ch, sent.MessageID)
	return types.MessageID(strconv.Itoa(sent.MessageID)), nil
}

// SendFile uploads a document to the channel's chat.
func (a *Adapter) SendFile(ctx context.Context, ch types.ChannelID, path string) error {
	chatID, err := a.chatFor(ch)
	if err != nil {
		return err
	}
	if _, err := a.bot.Send(tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))); err != nil {
		return classify(fmt.Errorf("send document: %w", err))
	}
	return nil
}

// DeleteMessage removes one message from the channel's chat.
func (a *Adapter) DeleteMessage(ctx context.Context, ch types.ChannelID, id types.MessageID) error {
	chatID, err := a.chatFor(ch)
	if err != nil {
		return err
	}
	msgID, err := strconv.Atoi(string(id))
	if err != nil {
		return fmt.Errorf("%w: message %s", platform.ErrNotFound, id)
	}
	if _, err := a.bot.Request(tgbotapi.NewDeleteMessage(chatID, msgID)); err != nil {
		return classify(fmt.Errorf("delete message: %w", err))
	}
	a.untrack(ch, msgID)
	return nil
}

// Purge deletes up to limit tracked messages, newest first. Best effort:
// individual delete failures only surface as the returned error after the
// rest have been attempted.
func (a *Adapter) Purge(ctx context.Context, ch types.ChannelID, limit int) error {
	a.mu.Lock()
	state, ok := a.channels[ch]
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("%w: channel %s", platform.ErrNotFound, ch)
	}
	n := len(state.messages)
	if limit > 0 && n > limit {
		n = limit
	}
	victims := make([]int, n)
	copy(victims, state.messages[len(state.messages)-n:])
	state.messages = state.messages[:len(state.messages)-n]
	chatID := state.chatID
	a.mu.Unlock()

	var lastErr error
	for _, msgID := range victims {
		if _, err := a.bot.Request(tgbotapi.NewDeleteMessage(chatID, msgID)); err != nil {
			lastErr = err
		}
	}
	if lastErr != nil {
		return classify(fmt.Errorf("purge channel: %w", lastErr))
	}
	return nil
}

// Notify sends a private message directly to the user's chat.
func (a *Adapter) Notify(ctx context.Context, user types.UserID, text string) error {
	chatID, err := strconv.ParseInt(string(user), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: user %q is not a telegram user id", platform.ErrNotFound, user)
	}
	if _, err := a.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return classify(fmt.Errorf("notify user: %w", err))
	}
	return nil
}

// Subscribe returns a buffered stream of the channel's inbound events. The
// cancel func is idempotent and safe to combine with DeleteChannel.
func (a *Adapter) Subscribe(ch types.ChannelID) (<-chan platform.Event, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.subs[ch] == nil {
		a.subs[ch] = make(map[int]chan platform.Event)
	}
	id := a.nextSub
	a.nextSub++
	sub := make(chan platform.Event, 16)
	a.subs[ch][id] = sub

	cancel := func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if subs, ok := a.subs[ch]; ok {
			if s, ok := subs[id]; ok {
				delete(subs, id)
				close(s)
			}
		}
	}
	return sub, cancel
}

// dispatch fans an event out to the channel's subscribers. A slow consumer
// drops the event rather than blocking the update loop.
func (a *Adapter) dispatch(ch types.ChannelID, ev platform.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, sub := range a.subs[ch] {
		select {
		case sub <- ev:
		default:
			slog.Warn("dropping event for slow subscriber", "channel", string(ch))
		}
	}
}

func (a *Adapter) chatFor(ch types.ChannelID) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	state, ok := a.channels[ch]
	if !ok {
		return 0, fmt.Errorf("%w: channel %s", platform.ErrNotFound, ch)
	}
	return state.chatID, nil
}

func (a *Adapter) channelForChat(chatID int64) (types.ChannelID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ch, ok := a.byChat[chatID]
	return ch, ok
}

func (a *Adapter) track(ch types.ChannelID, msgID int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if state, ok := a.channels[ch]; ok {
		state.messages = append(state.messages, msgID)
	}
}

func (a *Adapter) untrack(ch types.ChannelID, msgID int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	state, ok := a.channels[ch]
	if !ok {
		return
	}
	for i, id := range state.messages {
		if id == msgID {
			state.messages = append(state.messages[:i], state.messages[i+1:]...)
			return
		}
	}
}

// classify maps Bot API error text onto the platform taxonomy. Unknown
// errors pass through unchanged.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "forbidden") || strings.Contains(msg, "not enough rights"):
		return fmt.Errorf("%w: %v", platform.ErrPermissionDenied, err)
	case strings.Contains(msg, "not found"):
		return fmt.Errorf("%w: %v", platform.ErrNotFound, err)
	}
	return err
}
