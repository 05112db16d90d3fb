package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	log "github.com/sirupsen/logrus"

	"spin-bot/internal/ledger"
	"spin-bot/internal/session"
)

// Gatekeeper reports the allow-listed channels a user has not joined yet.
type Gatekeeper interface {
	Missing(ctx context.Context, userID int64) []string
}

type Bot struct {
	Instance     *telego.Bot
	Messenger    Messenger
	Ledger       *ledger.Ledger
	Gate         Gatekeeper
	Sessions     session.Store
	AdminID      int64
	AnimationURL string
	// ReferralSpins is only shown in the invite text; the ledger owns the credit.
	ReferralSpins int64
}

func NewBot(instance *telego.Bot, messenger Messenger, l *ledger.Ledger, g Gatekeeper, sessions session.Store, adminID int64) *Bot {
	return &Bot{
		Instance:  instance,
		Messenger: messenger,
		Ledger:    l,
		Gate:      g,
		Sessions:  sessions,
		AdminID:   adminID,
	}
}

// Incoming is a text message reduced to what the dispatcher needs.
type Incoming struct {
	UserID   int64
	ChatID   int64
	Username string
	Text     string
}

// Callback is an inline button press.
type Callback struct {
	ID          string
	UserID      int64
	ChatID      int64
	Username    string
	MessageID   int
	MessageText string
	Data        string
}

// Start routes updates until ctx is cancelled or the channel closes.
func (b *Bot) Start(ctx context.Context, updates <-chan telego.Update) error {
	handler, err := th.NewBotHandler(b.Instance, updates)
	if err != nil {
		return fmt.Errorf("failed to create bot handler: %w", err)
	}

	// /start [token]
	handler.Handle(func(c *th.Context, update telego.Update) error {
		in, ok := incomingFrom(update.Message)
		if !ok {
			return nil
		}
		b.HandleStart(c.Context(), in, startArgument(in.Text))
		return nil
	}, th.CommandEqual("start"))

	handler.Handle(func(c *th.Context, update telego.Update) error {
		in, ok := incomingFrom(update.Message)
		if !ok {
			return nil
		}
		b.HandleText(c.Context(), in)
		return nil
	}, th.AnyMessageWithText())

	handler.Handle(func(c *th.Context, update telego.Update) error {
		b.HandleCallback(c.Context(), callbackFrom(update.CallbackQuery))
		return nil
	}, th.AnyCallbackQuery())

	go func() {
		<-ctx.Done()
		handler.Stop()
	}()

	log.Info("Bot handler started")
	handler.Start()
	return nil
}

func incomingFrom(m *telego.Message) (Incoming, bool) {
	if m == nil || m.From == nil {
		return Incoming{}, false
	}
	return Incoming{
		UserID:   m.From.ID,
		ChatID:   m.Chat.ID,
		Username: m.From.Username,
		Text:     m.Text,
	}, true
}

func callbackFrom(q *telego.CallbackQuery) Callback {
	cb := Callback{
		ID:       q.ID,
		UserID:   q.From.ID,
		ChatID:   q.From.ID,
		Username: q.From.Username,
		Data:     q.Data,
	}
	if q.Message != nil {
		cb.ChatID = q.Message.GetChat().ID
		cb.MessageID = q.Message.GetMessageID()
		if m, ok := q.Message.(*telego.Message); ok {
			cb.MessageText = m.Text
		}
	}
	return cb
}

// startArgument returns the deep-link payload of "/start <payload>".
func startArgument(text string) string {
	parts := strings.Fields(text)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func (b *Bot) isAdmin(userID int64) bool {
	return b.AdminID != 0 && userID == b.AdminID
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, markup telego.ReplyMarkup) {
	if err := b.Messenger.SendText(ctx, chatID, text, markup); err != nil {
		log.Errorf("Failed to send message to %d: %v", chatID, err)
	}
}

func (b *Bot) answer(ctx context.Context, callbackID, text string, alert bool) {
	if err := b.Messenger.AnswerCallback(ctx, callbackID, text, alert); err != nil {
		log.Warnf("Failed to answer callback %s: %v", callbackID, err)
	}
}
