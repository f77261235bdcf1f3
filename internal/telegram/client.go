// Package telegram sends optimization notifications via the Telegram Bot API.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/platewise/storepulse/internal/models"
)

// Notifier is the notification surface the optimization loop talks to.
type Notifier interface {
	AlertRuleTriggered(storeID string, rule models.OptimizationRule) error
	AnnounceWinner(storeID string, test *models.ABTest) error
	SendError(cycleErr error) error
	SendRecovery(failureCount int) error
}

// NopNotifier discards all notifications. Used when Telegram is disabled.
type NopNotifier struct{}

func (NopNotifier) AlertRuleTriggered(string, models.OptimizationRule) error { return nil }
func (NopNotifier) AnnounceWinner(string, *models.ABTest) error              { return nil }
func (NopNotifier) SendError(error) error                                    { return nil }
func (NopNotifier) SendRecovery(int) error                                   { return nil }

// Client sends notifications to a Telegram chat.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// AlertRuleTriggered notifies that an optimization rule fired.
func (c *Client) AlertRuleTriggered(storeID string, rule models.OptimizationRule) error {
	text := fmt.Sprintf("⚡ *Optimization rule triggered*\n🏪 %s\n📋 %s \\(%s\\)\n🔁 %d total triggers",
		escapeMarkdownV2(storeID),
		escapeMarkdownV2(rule.Name),
		escapeMarkdownV2(string(rule.Action)),
		rule.Performance.TotalTriggers)
	return c.sendMarkdownV2(text)
}

// AnnounceWinner notifies that an A/B test completed with a winner.
func (c *Client) AnnounceWinner(storeID string, test *models.ABTest) error {
	message := fmt.Sprintf("🏆 *A/B test completed*\n🏪 %s\n🧪 %s \\(%s\\)\n",
		escapeMarkdownV2(storeID),
		escapeMarkdownV2(test.Name),
		escapeMarkdownV2(string(test.Type)))

	if test.Results != nil {
		winnerName := test.Results.Winner
		for _, v := range test.Variants {
			if v.ID == test.Results.Winner {
				winnerName = v.Name
				break
			}
		}
		liftStr := escapeMarkdownV2(fmt.Sprintf("%+.1f%%", test.Results.Lift))
		confStr := escapeMarkdownV2(fmt.Sprintf("%.1f%%", test.Results.Confidence*100))
		message += fmt.Sprintf("🥇 %s\n📈 Lift: %s\n🎯 Confidence: %s\n",
			escapeMarkdownV2(winnerName), liftStr, confStr)
	}

	return c.sendMarkdownV2(message)
}

// SendError sends an optimization error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Optimization error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Optimization recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
