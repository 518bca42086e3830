// Package telegram adapts the platform boundary onto the Telegram Bot API:
// inline keyboards carry choice questions, callback queries come back as
// selections, and plain messages feed the free-text waits.
//
// Telegram bots cannot create chats, so a "scoped channel" maps to the
// initiator's private chat registered under a fresh logical channel ID.
// That chat is inherently visible only to the initiator and the bot, which
// satisfies the visibility contract; teardown deletes the bot's tracked
// messages instead of the chat itself.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/relatobot/internal/lifecycle"
	"github.com/user/relatobot/internal/platform"
	"github.com/user/relatobot/internal/registry"
	"github.com/user/relatobot/internal/types"
)

// ReportService is the slice of the orchestrator the command surface needs.
type ReportService interface {
	StartReport(ctx context.Context, initiator types.UserID, initiatorName, targetLabel string) (types.ChannelID, error)
	ForceRelease(initiator types.UserID, privileged bool) bool
}

// channelState tracks one logical channel: the backing chat and the
// messages eligible for purge, oldest first.
type channelState struct {
	chatID   int64
	messages []int
}

// Adapter bridges Telegram to the session orchestrator and implements
// platform.Conn.
type Adapter struct {
	bot     *tgbotapi.BotAPI
	service ReportService
	admins  map[int64]bool

	mu       sync.Mutex
	channels map[types.ChannelID]*channelState
	byChat   map[int64]types.ChannelID
	subs     map[types.ChannelID]map[int]chan platform.Event
	nextSub  int
}

var _ platform.Conn = (*Adapter)(nil)

// New creates a Telegram adapter. adminIDs are the user IDs allowed to run
// privileged commands.
func New(token string, adminIDs []int64) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &Adapter{
		bot:      bot,
		admins:   admins,
		channels: make(map[types.ChannelID]*channelState),
		byChat:   make(map[int64]types.ChannelID),
		subs:     make(map[types.ChannelID]map[int]chan platform.Event),
	}, nil
}

// SetService wires the orchestrator in after construction; the adapter has
// to exist first because the orchestrator's collaborators need the Conn.
func (a *Adapter) SetService(s ReportService) {
	a.service = s
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			switch {
			case update.CallbackQuery != nil:
				a.handleCallback(update.CallbackQuery)
			case update.Message != nil && update.Message.IsCommand():
				a.handleCommand(ctx, update.Message)
			case update.Message != nil && update.Message.Text != "":
				a.handleMessage(update.Message)
			}
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleCallback(cq *tgbotapi.CallbackQuery) {
	// Always ack so the client stops its spinner.
	if _, err := a.bot.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		slog.Warn("ack callback failed", "error", err)
	}

	if cq.Message == nil || cq.From == nil {
		return
	}
	option, ok := parseCallbackData(cq.Data)
	if !ok {
		return
	}

	chID, registered := a.channelForChat(cq.Message.Chat.ID)
	if !registered {
		return
	}

	a.dispatch(chID, platform.Event{Selection: &platform.Selection{
		Channel: chID,
		Author:  types.UserID(strconv.FormatInt(cq.From.ID, 10)),
		Prompt:  types.MessageID(strconv.Itoa(cq.Message.MessageID)),
		Option:  option,
	}})
}

func (a *Adapter) handleMessage(msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	chID, registered := a.channelForChat(msg.Chat.ID)
	if !registered {
		return
	}
	a.track(chID, msg.MessageID)

	a.dispatch(chID, platform.Event{Message: &platform.Message{
		Channel: chID,
		Author:  types.UserID(strconv.FormatInt(msg.From.ID, 10)),
		ID:      types.MessageID(strconv.Itoa(msg.MessageID)),
		Text:    msg.Text,
	}})
}

// parseCallbackData extracts the option index from "opt:<i>" callback data.
func parseCallbackData(data string) (int, bool) {
	rest, ok := strings.CutPrefix(data, "opt:")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		a.reply(chatID, "Olá! Eu sou o Relatobot. Use /report <avaliado> para iniciar um relatório de avaliação.")

	case "about":
		a.reply(chatID, fmt.Sprintf("Olá %s, eu sou o Relatobot! Posso ajudar você com relatórios de avaliação internos. Use /report para começar.", displayName(msg.From)))

	case "report":
		a.commandReport(ctx, msg)

	case "cancel":
		a.commandCancel(msg)

	case "say":
		if !a.admins[msg.From.ID] {
			a.reply(chatID, "Apenas administradores podem usar este comando.")
			return
		}
		if phrase := strings.TrimSpace(msg.CommandArguments()); phrase != "" {
			a.reply(chatID, phrase)
		}

	default:
		a.reply(chatID, "Comando desconhecido. Disponíveis: /report, /cancel, /about")
	}
}

// commandReport starts a questionnaire session about the given target.
func (a *Adapter) commandReport(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if a.service == nil {
		a.reply(chatID, "O serviço de relatórios não está disponível no momento.")
		return
	}

	target := strings.TrimSpace(msg.CommandArguments())
	if target == "" {
		a.reply(chatID, "Uso: /report <avaliado>")
		return
	}

	initiator := types.UserID(strconv.FormatInt(msg.From.ID, 10))
	_, err := a.service.StartReport(ctx, initiator, displayName(msg.From), target)
	if err == nil {
		return
	}

	var active *registry.AlreadyActiveError
	var provision *lifecycle.ProvisionError
	switch {
	case errors.As(err, &active):
		a.reply(chatID, "Já existe um relatório em andamento para você. Por favor, aguarde a conclusão do atual.")
	case errors.As(err, &provision):
		a.reply(chatID, "Não foi possível criar o canal do relatório. Tente novamente mais tarde.")
	default:
		slog.Error("start report failed", "initiator", string(initiator), "error", err)
		a.reply(chatID, "Ocorreu um erro ao iniciar o relatório.")
	}
}

// commandCancel force-releases another user's active report. Privileged.
func (a *Adapter) commandCancel(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if !a.admins[msg.From.ID] {
		a.reply(chatID, "Apenas administradores podem usar este comando.")
		return
	}
	if a.service == nil {
		a.reply(chatID, "O serviço de relatórios não está disponível no momento.")
		return
	}

	target := strings.TrimSpace(msg.CommandArguments())
	if target == "" {
		a.reply(chatID, "Uso: /cancel <id do usuário>")
		return
	}

	if a.service.ForceRelease(types.UserID(target), true) {
		a.reply(chatID, "Relatório ativo removido.")
	} else {
		a.reply(chatID, "Nenhum relatório ativo para esse usuário.")
	}
}

func (a *Adapter) reply(chatID int64, text string) {
	if _, err := a.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		slog.Warn("send reply failed", "chat_id", chatID, "error", err)
	}
}
