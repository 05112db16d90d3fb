package bot

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"spin-bot/internal/ledger"
	"spin-bot/internal/models"
)

// Messenger is the outbound side of the Telegram API used by the dispatcher.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, markup telego.ReplyMarkup) error
	SendAnimation(ctx context.Context, chatID int64, url, caption string, markup telego.ReplyMarkup) error
	SendPhoto(ctx context.Context, chatID int64, png []byte, caption string) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
	ChannelExists(ctx context.Context, channel string) error
	BotUsername(ctx context.Context) string
}

// Gateway talks to Telegram. It is the Messenger of the dispatcher, the
// membership checker of the gate and the notifier of the ledger.
type Gateway struct {
	Instance *telego.Bot
	AdminID  int64

	mu       sync.Mutex
	username string
}

func NewGateway(instance *telego.Bot, adminID int64) *Gateway {
	return &Gateway{Instance: instance, AdminID: adminID}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ledger.ErrGatewayUnavailable, err)
}

func (g *Gateway) SendText(ctx context.Context, chatID int64, text string, markup telego.ReplyMarkup) error {
	params := tu.Message(tu.ID(chatID), text)
	if markup != nil {
		params = params.WithReplyMarkup(markup)
	}
	if _, err := g.Instance.SendMessage(ctx, params); err != nil {
		return unavailable(err)
	}
	return nil
}

func (g *Gateway) SendAnimation(ctx context.Context, chatID int64, url, caption string, markup telego.ReplyMarkup) error {
	params := tu.Animation(tu.ID(chatID), tu.FileFromURL(url)).WithCaption(caption)
	if markup != nil {
		params = params.WithReplyMarkup(markup)
	}
	if _, err := g.Instance.SendAnimation(ctx, params); err != nil {
		return unavailable(err)
	}
	return nil
}

func (g *Gateway) SendPhoto(ctx context.Context, chatID int64, png []byte, caption string) error {
	photo := tu.File(tu.NameReader(bytes.NewReader(png), "photo.png"))
	if _, err := g.Instance.SendPhoto(ctx, tu.Photo(tu.ID(chatID), photo).WithCaption(caption)); err != nil {
		return unavailable(err)
	}
	return nil
}

func (g *Gateway) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	params := tu.CallbackQuery(callbackID)
	params.Text = text
	params.ShowAlert = alert
	if err := g.Instance.AnswerCallbackQuery(ctx, params); err != nil {
		return unavailable(err)
	}
	return nil
}

func (g *Gateway) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	_, err := g.Instance.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
		Text:      text,
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// ChannelExists asks Telegram whether the bot can see the channel.
func (g *Gateway) ChannelExists(ctx context.Context, channel string) error {
	if _, err := g.Instance.GetChat(ctx, &telego.GetChatParams{ChatID: tu.Username(channel)}); err != nil {
		return unavailable(err)
	}
	return nil
}

func (g *Gateway) BotUsername(ctx context.Context) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.username == "" {
		if me, err := g.Instance.GetMe(ctx); err == nil {
			g.username = me.Username
		}
	}
	return g.username
}

// MemberStatus implements gate.MembershipChecker.
func (g *Gateway) MemberStatus(ctx context.Context, channel string, userID int64) (string, error) {
	member, err := g.Instance.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: tu.Username(channel),
		UserID: userID,
	})
	if err != nil {
		return "", unavailable(err)
	}
	return member.MemberStatus(), nil
}

// ReferralCredited implements ledger.Notifier.
func (g *Gateway) ReferralCredited(ctx context.Context, referrer, _ *models.Account, spins int64) error {
	return g.SendText(ctx, referrer.UserID, referralCreditedText(spins), nil)
}

func (g *Gateway) WithdrawalRequested(ctx context.Context, acc *models.Account, w *models.Withdrawal) error {
	return g.SendText(ctx, g.AdminID, withdrawalRequestText(acc, w), withdrawalActions(w.ID))
}

func (g *Gateway) WithdrawalResolved(ctx context.Context, w *models.Withdrawal) error {
	return g.SendText(ctx, w.UserID, withdrawalResolvedText(w), nil)
}

// WithdrawalReminder re-posts a request that is still pending, with its action buttons.
func (g *Gateway) WithdrawalReminder(ctx context.Context, w *models.Withdrawal) error {
	return g.SendText(ctx, g.AdminID, reminderText(w), withdrawalActions(w.ID))
}
