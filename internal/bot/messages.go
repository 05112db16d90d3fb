package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"spin-bot/internal/ledger"
	"spin-bot/internal/models"
)

var printer = message.NewPrinter(language.Russian)

// formatAmount renders an amount with digit grouping, e.g. "150 000 so‘m".
func formatAmount(v int64) string {
	return printer.Sprintf("%d so‘m", v)
}

const (
	textWelcome        = "Assalomu alaykum! Botga xush kelibsiz!"
	textJoinChannels   = "❗ Botdan foydalanish uchun quyidagi kanallarga obuna bo‘ling, so‘ng «Tekshirish» tugmasini bosing:"
	textStillMissing   = "❌ Siz hali barcha kanallarga obuna bo‘lmadingiz!"
	textNeedStart      = "Iltimos, /start buyrug‘ini bosing."
	textUseMenu        = "Iltimos, menyudan foydalaning."
	textNotAdmin       = "❌ Siz admin emassiz!"
	textAdminPanel     = "⚙️ Admin panelga xush kelibsiz!"
	textAdminExit      = "⚙️ Admin paneldan chiqdingiz!"
	textAskChannel     = "📝 @ bilan kanal username'ni kiriting (masalan: @mychannel)"
	textChannelMissing = "❌ Kanal topilmadi yoki botda ruxsat yo‘q!"
	textAlreadyHandled = "❗ Bu so‘rov allaqachon ko‘rib chiqilgan."
	textTryAgain       = "❌ Xatolik yuz berdi, qayta urining!"
	textNoSpinLuck     = "😔 Bu safar omad kulib boqmadi."
)

// userMessage maps a ledger error to the reason shown to the user.
func userMessage(err error, minWithdrawal int64) string {
	switch {
	case errors.Is(err, ledger.ErrInsufficientCredits):
		return "❌ Sizda spin qolmadi. Do‘stlaringizni taklif qilib spin oling!"
	case errors.Is(err, ledger.ErrAlreadyClaimedToday):
		return "⏳ Bugungi bonusni allaqachon oldingiz. Ertaga qayting!"
	case errors.Is(err, ledger.ErrInvalidAmount):
		return "❌ Noto‘g‘ri summa! Faqat musbat butun son kiriting."
	case errors.Is(err, ledger.ErrBelowMinimum):
		return "❌ Minimal yechib olish summasi " + formatAmount(minWithdrawal) + "."
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "❌ Balansingizda mablag‘ yetarli emas."
	case errors.Is(err, ledger.ErrEmptyList):
		return "❌ Hozircha kanal yo‘q"
	case errors.Is(err, ledger.ErrDuplicateChannel):
		return "❗ Bu kanal allaqachon qo‘shilgan!"
	case errors.Is(err, ledger.ErrInvalidChannelFormat):
		return "❌ Noto‘g‘ri format! @ bilan boshlang (masalan: @mychannel)"
	case errors.Is(err, ledger.ErrAccountNotFound):
		return textNeedStart
	case errors.Is(err, ledger.ErrWithdrawalResolved), errors.Is(err, ledger.ErrWithdrawalNotFound):
		return textAlreadyHandled
	default:
		return textTryAgain
	}
}

func spinText(res *ledger.SpinResult) string {
	head := textNoSpinLuck
	if res.Reward > 0 {
		head = "🎰 Siz " + formatAmount(res.Reward) + " yutdingiz!"
	}
	return fmt.Sprintf("%s\n💰 Balans: %s\n🔄 Qolgan spinlar: %d", head, formatAmount(res.Balance), res.SpinCredits)
}

func bonusText(res *ledger.BonusResult) string {
	return fmt.Sprintf("🎁 Kunlik bonus: +%s\n💰 Balans: %s", formatAmount(res.Amount), formatAmount(res.Balance))
}

func profileText(acc *models.Account) string {
	username := "Noma'lum"
	if acc.Username != "" {
		username = "@" + acc.Username
	}
	lastBonus := "—"
	if acc.LastBonusDate != nil {
		lastBonus = *acc.LastBonusDate
	}
	return fmt.Sprintf("📋 Sizning ID: %d\n👤 Username: %s\n💰 Balans: %s\n🎰 Spinlar: %d\n🎁 Oxirgi bonus: %s",
		acc.UserID, username, formatAmount(acc.Balance), acc.SpinCredits, lastBonus)
}

func askAmountText(minWithdrawal int64) string {
	return "💸 Yechib olmoqchi bo‘lgan summani kiriting (minimal " + formatAmount(minWithdrawal) + "):"
}

func withdrawAcceptedText(w *models.Withdrawal, balance int64) string {
	return fmt.Sprintf("✅ So‘rovingiz qabul qilindi! %s adminga yuborildi.\n💰 Qolgan balans: %s",
		formatAmount(w.Amount), formatAmount(balance))
}

func referralLink(botUsername string, userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", botUsername, userID)
}

// referralQR renders the invite link as a PNG QR code.
func referralQR(link string) ([]byte, error) {
	return qrcode.Encode(link, qrcode.Medium, 256)
}

func referralInfoText(link string, perReferral, invited, spins int64) string {
	return fmt.Sprintf("👥 Do‘stlaringizni taklif qiling va har bir do‘st uchun %d spin oling!\n\n🔗 Sizning havolangiz:\n%s\n\n👤 Taklif qilinganlar: %d\n🎰 Olingan spinlar: %d",
		perReferral, link, invited, spins)
}

func referralCreditedText(spins int64) string {
	return fmt.Sprintf("🎉 Havolangiz orqali yangi foydalanuvchi qo‘shildi! +%d spin.", spins)
}

func withdrawalRequestText(acc *models.Account, w *models.Withdrawal) string {
	who := fmt.Sprintf("%d", acc.UserID)
	if acc.Username != "" {
		who += " (@" + acc.Username + ")"
	}
	return fmt.Sprintf("💸 Yangi pul yechish so‘rovi!\n\n👤 Foydalanuvchi: %s\n💰 Summa: %s\n🆔 So‘rov: %s",
		who, formatAmount(w.Amount), w.ID)
}

func withdrawalResolvedText(w *models.Withdrawal) string {
	if w.Status == models.WithdrawalApproved {
		return "✅ " + formatAmount(w.Amount) + " miqdoridagi so‘rovingiz to‘landi!"
	}
	return "❌ " + formatAmount(w.Amount) + " miqdoridagi so‘rovingiz rad etildi. Mablag‘ balansingizga qaytarildi."
}

func resolutionSuffix(w *models.Withdrawal) string {
	if w.Status == models.WithdrawalApproved {
		return "\n\n✅ To‘landi"
	}
	return "\n\n❌ Rad etildi"
}

func statsText(s *models.Stats) string {
	channels := "Yo‘q"
	if len(s.Channels) > 0 {
		channels = strings.Join(s.Channels, ", ")
	}
	return fmt.Sprintf("📊 Foydalanuvchilar soni: %d ta\n💰 Jami balans: %s\n💸 Kutilayotgan so‘rovlar: %d (%s)\n📢 Kanallar: %s",
		s.Accounts, formatAmount(s.TotalBalance), s.PendingWithdrawals, formatAmount(s.PendingAmount), channels)
}

func reminderText(w *models.Withdrawal) string {
	return fmt.Sprintf("⏰ Eslatma: so‘rov %s (foydalanuvchi %d, %s) hali ham kutilmoqda.",
		w.ID, w.UserID, formatAmount(w.Amount))
}
