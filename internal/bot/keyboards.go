package bot

import (
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"spin-bot/internal/ledger"
)

// Reply keyboard labels. Incoming text is matched against them exactly.
const (
	labelSpin     = "🎰 Spin"
	labelBonus    = "🎁 Bonus"
	labelProfile  = "👤 Profil"
	labelWithdraw = "💸 Pul yechish"
	labelReferral = "👥 Do‘stlarni taklif qilish"
	labelAdmin    = "⚙️ Admin panel"
)

// Callback data.
const (
	cbCheckSubs     = "check_subs"
	cbAddChannel    = "add_channel"
	cbRemoveChannel = "remove_channel"
	cbStats         = "stats"
	cbBack          = "back"
	cbApprove       = "approve"
	cbReject        = "reject"
)

func callbackData(action, arg string) string {
	if arg == "" {
		return action
	}
	return action + ":" + arg
}

// parseCallback splits "action:arg" data.
func parseCallback(data string) (action, arg string) {
	action, arg, _ = strings.Cut(data, ":")
	return action, arg
}

func mainMenu(isAdmin bool) *telego.ReplyKeyboardMarkup {
	rows := [][]telego.KeyboardButton{
		tu.KeyboardRow(tu.KeyboardButton(labelSpin), tu.KeyboardButton(labelBonus)),
		tu.KeyboardRow(tu.KeyboardButton(labelProfile), tu.KeyboardButton(labelWithdraw)),
		tu.KeyboardRow(tu.KeyboardButton(labelReferral)),
	}
	if isAdmin {
		rows = append(rows, tu.KeyboardRow(tu.KeyboardButton(labelAdmin)))
	}
	return tu.Keyboard(rows...).WithResizeKeyboard()
}

func adminPanel() *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("➕ Kanal qo‘shish").WithCallbackData(cbAddChannel)),
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("➖ Kanal o‘chirish").WithCallbackData(cbRemoveChannel)),
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("📊 Statistika").WithCallbackData(cbStats)),
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("⬅️ Orqaga").WithCallbackData(cbBack)),
	)
}

// joinPrompt lists the channels still to join. A valid referrer id rides along
// in the check button so it survives the detour; callback data is capped at
// 64 bytes, so anything else in the token is dropped.
func joinPrompt(missing []string, referralToken string) *telego.InlineKeyboardMarkup {
	var referrer string
	if id, ok := ledger.ParseReferralToken(referralToken); ok {
		referrer = strconv.FormatInt(id, 10)
	}

	rows := make([][]telego.InlineKeyboardButton, 0, len(missing)+1)
	for _, ch := range missing {
		rows = append(rows, tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("📢 "+ch).WithURL("https://t.me/"+strings.TrimPrefix(ch, "@")),
		))
	}
	rows = append(rows, tu.InlineKeyboardRow(
		tu.InlineKeyboardButton("✅ Tekshirish").WithCallbackData(callbackData(cbCheckSubs, referrer)),
	))
	return tu.InlineKeyboard(rows...)
}

func withdrawalActions(id string) *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(tu.InlineKeyboardRow(
		tu.InlineKeyboardButton("✅ To‘landi").WithCallbackData(callbackData(cbApprove, id)),
		tu.InlineKeyboardButton("❌ Rad etish").WithCallbackData(callbackData(cbReject, id)),
	))
}
