// Package channel delivers approval prompts to a human and collects the
// yes/no decision over telegram, webhook, or an interactive terminal.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

var (
	// ErrMisconfigured means the channel lacks required configuration.
	// Surfaced before any dispatch so misconfiguration never silently
	// falls through to a wrong channel.
	ErrMisconfigured = errors.New("channel misconfigured")

	// ErrUnknown means the configured channel type does not exist.
	ErrUnknown = errors.New("unknown channel")
)

// Prompt carries everything a human needs to decide on one request.
type Prompt struct {
	ID          string
	Amount      float64
	Merchant    string
	Description string
	Currency    string
	Reason      string
	ExpiresAt   time.Time
}

// Text renders the prompt as a human-readable message.
func (p Prompt) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Payment approval needed\n")
	fmt.Fprintf(&b, "Amount:      %.2f %s\n", p.Amount, p.Currency)
	fmt.Fprintf(&b, "Merchant:    %s\n", p.Merchant)
	if p.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", p.Description)
	}
	fmt.Fprintf(&b, "Policy:      %s\n", p.Reason)
	fmt.Fprintf(&b, "Expires:     %s", p.ExpiresAt.Local().Format(time.RFC3339))
	return b.String()
}

// Channel is a uniform capability over the supported notification
// mechanisms. RequestApproval delivers the prompt and blocks until a raw
// human reply arrives or ctx ends; the caller normalizes the reply and
// owns the timeout. Inform is a best-effort follow-up message (timeout
// notice, ambiguous-reply explanation) and may be a no-op where the
// mechanism cannot deliver it.
type Channel interface {
	Name() string
	Validate() error
	RequestApproval(ctx context.Context, p Prompt) (string, error)
	Inform(p Prompt, text string)
}

// Config selects and configures one channel. The choice is made once at
// construction, never re-dispatched per call.
type Config struct {
	Type     string         `yaml:"type"` // telegram | webhook | terminal
	Telegram TelegramConfig `yaml:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook"`
}

// New builds the configured channel. An unrecognized type returns
// ErrUnknown; callers fail closed to denial rather than guessing.
func New(cfg Config, logger *slog.Logger) (Channel, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Type {
	case "telegram":
		return NewTelegram(cfg.Telegram, logger), nil
	case "webhook":
		return NewWebhook(cfg.Webhook, logger), nil
	case "terminal":
		return NewTerminal(TerminalConfig{Logger: logger}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknown, cfg.Type)
	}
}
