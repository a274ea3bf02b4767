// Package notify tells the charter owner about confirmed bookings.
package notify

import (
	"context"
	"fmt"
	"strings"

	"fishcharter/internal/domain"
	"fishcharter/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the part of tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramNotifier struct {
	bot    Sender
	chatID int64
	logger *zerolog.Logger
}

var _ domain.Notifier = (*TelegramNotifier)(nil)

// NewTelegram connects to the Bot API with token.
func NewTelegram(token string, chatID int64, debug bool, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram: %w", err)
	}
	bot.Debug = debug
	n := NewTelegramWithSender(bot, chatID, logger)
	n.logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifier ready")
	return n, nil
}

func NewTelegramWithSender(bot Sender, chatID int64, logger *zerolog.Logger) *TelegramNotifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "telegram").Logger()
	return &TelegramNotifier{bot: bot, chatID: chatID, logger: &l}
}

func (n *TelegramNotifier) NotifyConfirmed(ctx context.Context, booking *models.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, ConfirmedMessage(booking))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	n.logger.Debug().Str("booking_id", booking.ID).Msg("owner notified")
	return nil
}

// ConfirmedMessage renders the owner notification for a confirmed booking.
func ConfirmedMessage(b *models.Booking) string {
	var sb strings.Builder
	sb.WriteString("🎣 *New booking confirmed*\n\n")
	fmt.Fprintf(&sb, "*Service:* %s\n", escape(b.ServiceType))
	fmt.Fprintf(&sb, "*Date:* %s %s\n", escape(b.Date), escape(b.Time))
	fmt.Fprintf(&sb, "*People:* %d\n", b.NumberOfPeople)
	fmt.Fprintf(&sb, "*Customer:* %s\n", escape(b.CustomerName))
	fmt.Fprintf(&sb, "*Email:* %s\n", escape(b.Email))
	if b.Phone != "" {
		fmt.Fprintf(&sb, "*Phone:* %s\n", escape(b.Phone))
	}
	if b.Notes != "" {
		fmt.Fprintf(&sb, "*Notes:* %s\n", escape(b.Notes))
	}
	fmt.Fprintf(&sb, "\n*Total:* %s\n", b.TotalAmount)
	fmt.Fprintf(&sb, "*Paid:* %s\n", b.BookingFeePaid)
	fmt.Fprintf(&sb, "*Remaining:* %s\n", b.RemainingBalance)
	fmt.Fprintf(&sb, "*Payment:* `%s`", b.PaymentID)
	return sb.String()
}

// escape strips the legacy Markdown control characters from user input.
func escape(s string) string {
	return strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[").Replace(s)
}
