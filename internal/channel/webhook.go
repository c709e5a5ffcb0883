package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	webhookTimeout    = 10 * time.Second
	webhookMaxRetries = 3
	defaultPollEvery  = 2 * time.Second
)

// WebhookConfig configures the generic HTTP approval endpoint.
type WebhookConfig struct {
	URL          string            `yaml:"url"`
	Headers      map[string]string `yaml:"headers"`
	PollInterval time.Duration     `yaml:"poll_interval"`
}

// Webhook POSTs an approval envelope to a remote endpoint. The endpoint
// answers either immediately with {"approved": bool} or with {"pollUrl"},
// which is re-polled until a decision arrives or the wait ends.
type Webhook struct {
	cfg    WebhookConfig
	client *http.Client
	logger *slog.Logger
}

func NewWebhook(cfg WebhookConfig, logger *slog.Logger) *Webhook {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollEvery
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Webhook{
		cfg:    cfg,
		client: &http.Client{Timeout: webhookTimeout},
		logger: logger,
	}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Validate() error {
	if w.cfg.URL == "" {
		return fmt.Errorf("%w: webhook url is required", ErrMisconfigured)
	}
	return nil
}

// envelope is the JSON body POSTed to the endpoint.
type envelope struct {
	Type      string          `json:"type"`
	Payment   envelopePayment `json:"payment"`
	Policy    envelopePolicy  `json:"policy"`
	Timestamp string          `json:"timestamp"`
	ExpiresAt string          `json:"expiresAt"`
}

type envelopePayment struct {
	Amount      float64 `json:"amount"`
	Merchant    string  `json:"merchant"`
	Description string  `json:"description"`
	Currency    string  `json:"currency"`
}

type envelopePolicy struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// webhookReply is the accepted response shape. Approved is a pointer so a
// missing field is distinguishable from an explicit false.
type webhookReply struct {
	Approved *bool  `json:"approved"`
	PollURL  string `json:"pollUrl"`
}

// RequestApproval delivers the envelope and waits for the decision.
// Network failures surface as errors; the orchestrator fails closed.
func (w *Webhook) RequestApproval(ctx context.Context, p Prompt) (string, error) {
	body, err := json.Marshal(envelope{
		Type: "approval_request",
		Payment: envelopePayment{
			Amount:      p.Amount,
			Merchant:    p.Merchant,
			Description: p.Description,
			Currency:    p.Currency,
		},
		Policy:    envelopePolicy{Action: "require_approval", Reason: p.Reason},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		ExpiresAt: p.ExpiresAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}

	reply, err := w.post(ctx, body)
	if err != nil {
		return "", err
	}

	if reply.Approved != nil {
		return verdict(*reply.Approved), nil
	}
	if reply.PollURL == "" {
		return "", fmt.Errorf("webhook returned neither approved nor pollUrl")
	}
	return w.poll(ctx, reply.PollURL)
}

// Inform is a no-op: the envelope already carries expiresAt, and the
// endpoint has no message to edit.
func (w *Webhook) Inform(p Prompt, text string) {}

// post delivers the envelope with retry on 5xx.
func (w *Webhook) post(ctx context.Context, body []byte) (*webhookReply, error) {
	var lastErr error
	for attempt := 0; attempt < webhookMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range w.cfg.Headers {
			req.Header.Set(k, v)
		}

		resp, err := w.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			reply, err := decodeReply(resp.Body)
			resp.Body.Close()
			return reply, err
		}
		resp.Body.Close()
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, fmt.Errorf("webhook rejected: HTTP %d", resp.StatusCode)
		}
		// 5xx — retry
		lastErr = fmt.Errorf("webhook server error: HTTP %d", resp.StatusCode)
	}
	return nil, fmt.Errorf("webhook failed after %d attempts: %w", webhookMaxRetries, lastErr)
}

// poll re-polls pollUrl until the endpoint reports a decision.
func (w *Webhook) poll(ctx context.Context, url string) (string, error) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", fmt.Errorf("create poll request: %w", err)
		}
		for k, v := range w.cfg.Headers {
			req.Header.Set(k, v)
		}

		resp, err := w.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("poll: %w", err)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			reply, err := decodeReply(resp.Body)
			resp.Body.Close()
			if err != nil {
				return "", err
			}
			if reply.Approved != nil {
				return verdict(*reply.Approved), nil
			}
		} else {
			resp.Body.Close()
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return "", fmt.Errorf("poll rejected: HTTP %d", resp.StatusCode)
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func decodeReply(r io.Reader) (*webhookReply, error) {
	var reply webhookReply
	if err := json.NewDecoder(r).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode webhook response: %w", err)
	}
	return &reply, nil
}

func verdict(approved bool) string {
	if approved {
		return "approve"
	}
	return "deny"
}
