package notifier

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/semmidev/mudvault/internal/config"
	"github.com/semmidev/mudvault/internal/domain"
)

type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts run summaries to a chat.
type TelegramNotifier struct {
	bot          Sender
	chatID       int64
	onlyFailures bool
}

func NewTelegram(cfg *config.TelegramConfig) (*TelegramNotifier, error) {
	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", cfg.ChatID, err)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return NewTelegramWithSender(bot, chatID, cfg.OnlyFailures), nil
}

func NewTelegramWithSender(bot Sender, chatID int64, onlyFailures bool) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID, onlyFailures: onlyFailures}
}

func (t *TelegramNotifier) Notify(ctx context.Context, summary domain.RunSummary) error {
	if t.onlyFailures && summary.Succeeded() {
		return nil
	}

	msg := tgbotapi.NewMessage(t.chatID, FormatSummary(summary))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}

func FormatSummary(s domain.RunSummary) string {
	var b strings.Builder

	switch {
	case s.DryRun && s.Succeeded():
		fmt.Fprintf(&b, "🧪 Dry run for %s\n\n", s.Target)
	case s.Succeeded():
		fmt.Fprintf(&b, "✅ Backup of %s completed\n\n", s.Target)
	case s.Stage == domain.StageDone:
		fmt.Fprintf(&b, "⚠️ Backup of %s completed with errors\n\n", s.Target)
	default:
		fmt.Fprintf(&b, "❌ Backup of %s failed during %s\n\n", s.Target, s.FailedStage)
	}

	if s.Uploaded != "" {
		fmt.Fprintf(&b, "📁 File: %s\n", s.Uploaded)
	}
	if s.Stage == domain.StageDone {
		fmt.Fprintf(&b, "🗂 Kept: %d, deleted: %d\n", s.Kept, s.Deleted)
	}
	for _, f := range s.Failures {
		fmt.Fprintf(&b, "• %s: %v\n", f.Filename, f.Err)
	}
	if s.Err != nil && len(s.Failures) == 0 {
		fmt.Fprintf(&b, "Error: %v\n", s.Err)
	}
	if !s.Finished.IsZero() {
		fmt.Fprintf(&b, "🕐 Time: %s (%s)", s.Finished.UTC().Format("2006-01-02 15:04:05"), s.Finished.Sub(s.Started).Round(time.Second))
	}

	return strings.TrimRight(b.String(), "\n")
}
