package bot

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"spin-bot/internal/ledger"
	"spin-bot/internal/session"
)

type intent int

const (
	intentNone intent = iota
	intentSpin
	intentBonus
	intentProfile
	intentWithdraw
	intentReferral
	intentAdminPanel
)

var intents = map[string]intent{
	labelSpin:     intentSpin,
	labelBonus:    intentBonus,
	labelProfile:  intentProfile,
	labelWithdraw: intentWithdraw,
	labelReferral: intentReferral,
	labelAdmin:    intentAdminPanel,
}

func route(text string) intent {
	return intents[text]
}

func (i intent) adminOnly() bool {
	return i == intentAdminPanel
}

var adminCallbacks = map[string]bool{
	cbAddChannel:    true,
	cbRemoveChannel: true,
	cbStats:         true,
	cbBack:          true,
	cbApprove:       true,
	cbReject:        true,
}

// authorize is the single admin check for both text and button actions.
func (b *Bot) authorize(userID int64, adminOnly bool) bool {
	return !adminOnly || b.isAdmin(userID)
}

// admitted runs the subscription gate. The admin is never gated.
func (b *Bot) admitted(ctx context.Context, userID, chatID int64, referralToken string) bool {
	if b.isAdmin(userID) {
		return true
	}
	missing := b.Gate.Missing(ctx, userID)
	if len(missing) == 0 {
		return true
	}
	b.send(ctx, chatID, textJoinChannels, joinPrompt(missing, referralToken))
	return false
}

// HandleStart handles "/start [token]".
func (b *Bot) HandleStart(ctx context.Context, in Incoming, token string) {
	if !b.admitted(ctx, in.UserID, in.ChatID, token) {
		return
	}
	b.enter(ctx, in.UserID, in.ChatID, in.Username, token)
}

func (b *Bot) enter(ctx context.Context, userID, chatID int64, username, token string) {
	_, created, err := b.Ledger.FirstContact(ctx, userID, username, token)
	if err != nil {
		log.Errorf("First contact of %d failed: %v", userID, err)
		b.send(ctx, chatID, textTryAgain, nil)
		return
	}
	if created {
		log.Debugf("Welcoming new account %d (token %q)", userID, token)
	}
	if err := b.Sessions.Clear(ctx, userID); err != nil {
		log.Warnf("Failed to clear session of %d: %v", userID, err)
	}
	b.send(ctx, chatID, textWelcome, mainMenu(b.isAdmin(userID)))
}

// HandleText dispatches a plain message. A pending prompt takes the message
// unless it is a menu label, in which case the prompt is dropped.
func (b *Bot) HandleText(ctx context.Context, in Incoming) {
	action := route(in.Text)
	log.Debugf("Text from %d routed to intent %d", in.UserID, action)

	state, err := b.Sessions.Get(ctx, in.UserID)
	if err != nil {
		log.Warnf("Failed to read session of %d: %v", in.UserID, err)
		state = session.StateNone
	}
	if state != session.StateNone {
		if err := b.Sessions.Clear(ctx, in.UserID); err != nil {
			log.Warnf("Failed to clear session of %d: %v", in.UserID, err)
		}
		if action == intentNone {
			b.answerPrompt(ctx, in, state)
			return
		}
	}

	if !b.authorize(in.UserID, action.adminOnly()) {
		b.send(ctx, in.ChatID, textNotAdmin, nil)
		return
	}
	if action == intentNone {
		b.send(ctx, in.ChatID, textUseMenu, nil)
		return
	}
	if !b.admitted(ctx, in.UserID, in.ChatID, "") {
		return
	}

	switch action {
	case intentSpin:
		b.spin(ctx, in)
	case intentBonus:
		b.bonus(ctx, in)
	case intentProfile:
		b.profile(ctx, in)
	case intentWithdraw:
		b.askWithdrawal(ctx, in)
	case intentReferral:
		b.referral(ctx, in)
	case intentAdminPanel:
		b.send(ctx, in.ChatID, textAdminPanel, adminPanel())
	}
}

func (b *Bot) answerPrompt(ctx context.Context, in Incoming, state session.State) {
	switch state {
	case session.StateAwaitingWithdrawAmount:
		b.withdraw(ctx, in)
	case session.StateAwaitingChannel:
		if !b.authorize(in.UserID, true) {
			b.send(ctx, in.ChatID, textNotAdmin, nil)
			return
		}
		b.addChannel(ctx, in)
	default:
		b.send(ctx, in.ChatID, textUseMenu, nil)
	}
}

func (b *Bot) spin(ctx context.Context, in Incoming) {
	res, err := b.Ledger.Spin(ctx, in.UserID)
	if err != nil {
		b.fail(in, "spin", err)
		b.send(ctx, in.ChatID, userMessage(err, b.Ledger.MinWithdrawal()), nil)
		return
	}
	text := spinText(res)
	if b.AnimationURL != "" {
		err := b.Messenger.SendAnimation(ctx, in.ChatID, b.AnimationURL, text, nil)
		if err == nil {
			return
		}
		log.Warnf("Spin animation for %d failed, falling back to text: %v", in.UserID, err)
	}
	b.send(ctx, in.ChatID, text, nil)
}

func (b *Bot) bonus(ctx context.Context, in Incoming) {
	res, err := b.Ledger.ClaimDailyBonus(ctx, in.UserID)
	if err != nil {
		b.fail(in, "bonus", err)
		b.send(ctx, in.ChatID, userMessage(err, b.Ledger.MinWithdrawal()), nil)
		return
	}
	b.send(ctx, in.ChatID, bonusText(res), nil)
}

func (b *Bot) profile(ctx context.Context, in Incoming) {
	acc, err := b.Ledger.Account(ctx, in.UserID)
	if err != nil {
		b.fail(in, "profile", err)
		b.send(ctx, in.ChatID, userMessage(err, b.Ledger.MinWithdrawal()), nil)
		return
	}
	b.send(ctx, in.ChatID, profileText(acc), nil)
}

func (b *Bot) askWithdrawal(ctx context.Context, in Incoming) {
	if _, err := b.Ledger.Account(ctx, in.UserID); err != nil {
		b.fail(in, "withdraw prompt", err)
		b.send(ctx, in.ChatID, userMessage(err, b.Ledger.MinWithdrawal()), nil)
		return
	}
	if err := b.Sessions.Set(ctx, in.UserID, session.StateAwaitingWithdrawAmount); err != nil {
		log.Errorf("Failed to store session of %d: %v", in.UserID, err)
		b.send(ctx, in.ChatID, textTryAgain, nil)
		return
	}
	b.send(ctx, in.ChatID, askAmountText(b.Ledger.MinWithdrawal()), nil)
}

func (b *Bot) withdraw(ctx context.Context, in Incoming) {
	w, err := b.Ledger.Withdraw(ctx, in.UserID, in.Text)
	if err != nil {
		b.fail(in, "withdraw", err)
		b.send(ctx, in.ChatID, userMessage(err, b.Ledger.MinWithdrawal()), nil)
		return
	}
	var balance int64
	if acc, err := b.Ledger.Account(ctx, in.UserID); err == nil {
		balance = acc.Balance
	}
	b.send(ctx, in.ChatID, withdrawAcceptedText(w, balance), nil)
}

func (b *Bot) referral(ctx context.Context, in Incoming) {
	invited, spins, err := b.Ledger.ReferralInfo(ctx, in.UserID)
	if err != nil {
		b.fail(in, "referral info", err)
		b.send(ctx, in.ChatID, textTryAgain, nil)
		return
	}
	link := referralLink(b.Messenger.BotUsername(ctx), in.UserID)
	info := referralInfoText(link, b.ReferralSpins, invited, spins)

	png, err := referralQR(link)
	if err == nil {
		err = b.Messenger.SendPhoto(ctx, in.ChatID, png, info)
	}
	if err != nil {
		log.Warnf("Referral QR for %d failed, sending text: %v", in.UserID, err)
		b.send(ctx, in.ChatID, info, nil)
	}
}

func (b *Bot) addChannel(ctx context.Context, in Incoming) {
	if err := ledger.ValidateChannel(in.Text); err != nil {
		b.send(ctx, in.ChatID, userMessage(err, 0), nil)
		return
	}
	if err := b.Messenger.ChannelExists(ctx, in.Text); err != nil {
		log.Warnf("Channel %s is not reachable: %v", in.Text, err)
		b.send(ctx, in.ChatID, textChannelMissing, nil)
		return
	}
	if err := b.Ledger.AddChannel(ctx, in.Text); err != nil {
		b.fail(in, "add channel", err)
		b.send(ctx, in.ChatID, userMessage(err, 0), nil)
		return
	}
	log.Infof("Channel %s added by %d", in.Text, in.UserID)
	b.send(ctx, in.ChatID, "✅ Kanal qo‘shildi: "+in.Text, nil)
}

// fail logs unexpected errors. Rule violations are expected and stay quiet.
func (b *Bot) fail(in Incoming, op string, err error) {
	if errors.Is(err, ledger.ErrGatewayUnavailable) || userMessage(err, 0) == textTryAgain {
		log.Errorf("%s for %d failed: %v", op, in.UserID, err)
	}
}

// HandleCallback dispatches an inline button press.
func (b *Bot) HandleCallback(ctx context.Context, cb Callback) {
	action, arg := parseCallback(cb.Data)
	log.Debugf("Callback %q from %d", cb.Data, cb.UserID)

	if !b.authorize(cb.UserID, adminCallbacks[action]) {
		b.answer(ctx, cb.ID, textNotAdmin, true)
		return
	}

	switch action {
	case cbCheckSubs:
		if missing := b.Gate.Missing(ctx, cb.UserID); len(missing) > 0 && !b.isAdmin(cb.UserID) {
			b.answer(ctx, cb.ID, textStillMissing, true)
			return
		}
		b.answer(ctx, cb.ID, "", false)
		b.enter(ctx, cb.UserID, cb.ChatID, cb.Username, arg)

	case cbAddChannel:
		if err := b.Sessions.Set(ctx, cb.UserID, session.StateAwaitingChannel); err != nil {
			log.Errorf("Failed to store session of %d: %v", cb.UserID, err)
			b.answer(ctx, cb.ID, textTryAgain, true)
			return
		}
		b.answer(ctx, cb.ID, "", false)
		b.send(ctx, cb.ChatID, textAskChannel, nil)

	case cbRemoveChannel:
		removed, err := b.Ledger.RemoveChannel(ctx)
		if err != nil {
			if !errors.Is(err, ledger.ErrEmptyList) {
				log.Errorf("Failed to remove channel: %v", err)
			}
			b.answer(ctx, cb.ID, userMessage(err, 0), true)
			return
		}
		log.Infof("Channel %s removed by %d", removed, cb.UserID)
		b.answer(ctx, cb.ID, "❌ Kanal o‘chirildi: "+removed, true)

	case cbStats:
		stats, err := b.Ledger.Stats(ctx)
		if err != nil {
			log.Errorf("Failed to load stats: %v", err)
			b.answer(ctx, cb.ID, textTryAgain, true)
			return
		}
		b.answer(ctx, cb.ID, "", false)
		b.send(ctx, cb.ChatID, statsText(stats), nil)

	case cbBack:
		b.answer(ctx, cb.ID, "", false)
		if err := b.Messenger.EditText(ctx, cb.ChatID, cb.MessageID, textAdminExit); err != nil {
			log.Warnf("Failed to edit admin panel: %v", err)
		}
		b.send(ctx, cb.ChatID, textWelcome, mainMenu(true))

	case cbApprove, cbReject:
		w, err := b.Ledger.ResolveWithdrawal(ctx, arg, action == cbApprove)
		if err != nil {
			if !errors.Is(err, ledger.ErrWithdrawalResolved) && !errors.Is(err, ledger.ErrWithdrawalNotFound) {
				log.Errorf("Failed to resolve withdrawal %s: %v", arg, err)
			}
			b.answer(ctx, cb.ID, userMessage(err, 0), true)
			return
		}
		log.Debugf("Withdrawal %s %s by %d", w.ID, w.Status, cb.UserID)
		b.answer(ctx, cb.ID, "", false)
		if err := b.Messenger.EditText(ctx, cb.ChatID, cb.MessageID, cb.MessageText+resolutionSuffix(w)); err != nil {
			log.Warnf("Failed to edit withdrawal message: %v", err)
		}

	default:
		b.answer(ctx, cb.ID, "", false)
	}
}
