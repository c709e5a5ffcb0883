package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	// telegramPollSeconds is the long-poll window per GetUpdates call.
	telegramPollSeconds = 5
	// telegramRetryDelay throttles re-polling after a failed GetUpdates.
	telegramRetryDelay = time.Second
)

// TelegramConfig configures the Telegram approval channel.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// Telegram sends the prompt with Approve/Deny inline buttons and polls for
// the callback carrying the matching correlation token. Only the token
// path resolves a prompt: a free-text reply carries no binding to a
// particular request, and Telegram re-delivers unconfirmed updates, so
// honoring loose text would let a stale reply resolve a prompt the human
// never saw.
type Telegram struct {
	cfg         TelegramConfig
	logger      *slog.Logger
	apiEndpoint string // overridden in tests

	mu     sync.Mutex
	bot    *tgbotapi.BotAPI
	offset int            // next GetUpdates offset, persists across prompts
	msgIDs map[string]int // prompt id → delivered message id
}

func NewTelegram(cfg TelegramConfig, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{
		cfg:    cfg,
		logger: logger,
		msgIDs: make(map[string]int),
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Validate() error {
	if t.cfg.Token == "" {
		return fmt.Errorf("%w: telegram token is required", ErrMisconfigured)
	}
	if t.cfg.ChatID == 0 {
		return fmt.Errorf("%w: telegram chat_id is required", ErrMisconfigured)
	}
	return nil
}

func (t *Telegram) connect() (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		return t.bot, nil
	}
	endpoint := t.apiEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(t.cfg.Token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected", "username", bot.Self.UserName)
	return bot, nil
}

// RequestApproval delivers the prompt and long-polls for the button press
// scoped by the per-request correlation token embedded in the callback data.
func (t *Telegram) RequestApproval(ctx context.Context, p Prompt) (string, error) {
	bot, err := t.connect()
	if err != nil {
		return "", err
	}

	msg := tgbotapi.NewMessage(t.cfg.ChatID, p.Text())
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Approve", callbackData(p.ID, "approve")),
			tgbotapi.NewInlineKeyboardButtonData("Deny", callbackData(p.ID, "deny")),
		),
	)
	sent, err := bot.Send(msg)
	if err != nil {
		return "", fmt.Errorf("telegram send: %w", err)
	}

	t.mu.Lock()
	t.msgIDs[p.ID] = sent.MessageID
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.msgIDs, p.ID)
		t.mu.Unlock()
	}()

	return t.awaitReply(ctx, bot, p, sent.MessageID)
}

// awaitReply polls updates until the callback carrying this prompt's
// correlation token arrives. Consumed updates are confirmed before the
// decision is returned so Telegram never re-delivers them into the next
// prompt's wait.
func (t *Telegram) awaitReply(ctx context.Context, bot *tgbotapi.BotAPI, p Prompt, msgID int) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		u := tgbotapi.NewUpdate(t.nextOffset())
		u.Timeout = telegramPollSeconds
		updates, err := bot.GetUpdates(u)
		if err != nil {
			t.logger.Warn("telegram poll failed", "err", err)
			select {
			case <-time.After(telegramRetryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			continue
		}

		for _, update := range updates {
			t.advanceOffset(update.UpdateID)

			cq := update.CallbackQuery
			if cq == nil {
				continue
			}
			id, choice, ok := parseCallback(cq.Data)
			if !ok || id != p.ID {
				continue
			}
			ack := tgbotapi.NewCallback(cq.ID, "")
			_, _ = bot.Request(ack)
			t.confirmUpdates(bot)
			t.editMessage(bot, msgID, fmt.Sprintf("%s\n\nDecision: %s", p.Text(), choice))
			return choice, nil
		}
	}
}

func (t *Telegram) nextOffset() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.offset
}

func (t *Telegram) advanceOffset(updateID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if updateID >= t.offset {
		t.offset = updateID + 1
	}
}

// confirmUpdates issues a zero-wait GetUpdates at the advanced offset so
// Telegram marks everything consumed so far as confirmed.
func (t *Telegram) confirmUpdates(bot *tgbotapi.BotAPI) {
	u := tgbotapi.NewUpdate(t.nextOffset())
	u.Limit = 1
	if _, err := bot.GetUpdates(u); err != nil {
		t.logger.Warn("telegram confirm failed", "err", err)
	}
}

// Inform edits the delivered prompt (e.g. to mark it expired), falling back
// to a fresh message when the prompt was never delivered.
func (t *Telegram) Inform(p Prompt, text string) {
	t.mu.Lock()
	bot := t.bot
	msgID, ok := t.msgIDs[p.ID]
	t.mu.Unlock()
	if bot == nil {
		return
	}
	if ok {
		t.editMessage(bot, msgID, fmt.Sprintf("%s\n\n%s", p.Text(), text))
		return
	}
	if _, err := bot.Send(tgbotapi.NewMessage(t.cfg.ChatID, text)); err != nil {
		t.logger.Warn("telegram inform failed", "err", err)
	}
}

func (t *Telegram) editMessage(bot *tgbotapi.BotAPI, msgID int, text string) {
	edit := tgbotapi.NewEditMessageText(t.cfg.ChatID, msgID, text)
	if _, err := bot.Send(edit); err != nil {
		t.logger.Warn("telegram edit failed", "err", err)
	}
}

func callbackData(id, choice string) string {
	return "pay:" + id + ":" + choice
}

func parseCallback(data string) (id, choice string, ok bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != "pay" {
		return "", "", false
	}
	return parts[1], parts[2], true
}
