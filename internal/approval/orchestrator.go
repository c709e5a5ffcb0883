package approval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/paygate/internal/channel"
	"github.com/openclaw/paygate/internal/model"
)

// Reply token sets. Anything outside both sets is a denial — the system
// fails closed on ambiguity and tells the human why.
var (
	affirmative = map[string]bool{
		"yes": true, "y": true, "approve": true, "approved": true,
		"ok": true, "accept": true, "confirm": true,
	}
	negative = map[string]bool{
		"no": true, "n": true, "deny": true, "denied": true,
		"reject": true, "rejected": true, "cancel": true,
	}
)

// NormalizeReply classifies a raw human reply. known is false when the
// reply matches neither token set.
func NormalizeReply(raw string) (approved, known bool) {
	token := strings.ToLower(strings.TrimSpace(raw))
	if affirmative[token] {
		return true, true
	}
	if negative[token] {
		return false, true
	}
	return false, false
}

// Orchestrator races a channel's human reply against a deadline timer and
// guarantees exactly one resolution per request.
type Orchestrator struct {
	registry *Registry
	logger   *slog.Logger
}

func NewOrchestrator(registry *Registry, logger *slog.Logger) *Orchestrator {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{registry: registry, logger: logger}
}

// Registry exposes the pending set for external resolvers and introspection.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Resolve dispatches the prompt through ch and waits for the first of:
// the human's reply, an external resolution, the timeout, or caller
// cancellation. The loser of the race hits the idempotent no-op path in
// Pending.Resolve and can never overturn the returned decision.
//
// ChannelMisconfigured surfaces before any dispatch.
func (o *Orchestrator) Resolve(ctx context.Context, req model.PaymentRequest, res model.PolicyResult, ch channel.Channel, timeout time.Duration) (bool, error) {
	if err := ch.Validate(); err != nil {
		return false, err
	}

	id := uuid.NewString()
	p := o.registry.Add(id, req, res)
	// Entry removal runs on every exit path of the wait.
	defer o.registry.Remove(id)

	prompt := channel.Prompt{
		ID:          id,
		Amount:      req.Amount,
		Merchant:    req.Merchant,
		Description: req.Description,
		Currency:    req.Currency,
		Reason:      res.Reason,
		ExpiresAt:   time.Now().Add(timeout),
	}

	waitCtx, cancelWait := context.WithCancel(ctx)
	defer cancelWait()

	go o.collectReply(waitCtx, ch, prompt, p)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-p.Done():
		o.logger.Info("approval resolved",
			"id", id, "state", string(out.State), "approved", out.Approved, "note", out.Note)
		return out.Approved, nil
	case <-timer.C:
		if p.Resolve(StateTimedOut, false, "no reply within deadline") {
			ch.Inform(prompt, "Approval request expired without a reply. The payment was denied.")
		}
		out := <-p.Done()
		o.logger.Info("approval resolved",
			"id", id, "state", string(out.State), "approved", out.Approved, "note", out.Note)
		return out.Approved, nil
	case <-ctx.Done():
		p.Resolve(StateExternallyResolved, false, "caller cancelled")
		out := <-p.Done()
		o.logger.Info("approval abandoned", "id", id, "state", string(out.State))
		return out.Approved, nil
	}
}

// collectReply runs the channel wait and funnels its verdict into the
// single-resolution handle.
func (o *Orchestrator) collectReply(ctx context.Context, ch channel.Channel, prompt channel.Prompt, p *Pending) {
	raw, err := ch.RequestApproval(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return // race already decided elsewhere
		}
		// Channel failure is a denial, not a crash.
		o.logger.Error("approval channel failed", "channel", ch.Name(), "err", err)
		p.Resolve(StateDenied, false, fmt.Sprintf("channel error: %v", err))
		return
	}

	approved, known := NormalizeReply(raw)
	switch {
	case !known:
		if p.Resolve(StateDenied, false, fmt.Sprintf("unrecognized reply %q", raw)) {
			ch.Inform(prompt, fmt.Sprintf("Reply %q was not understood; the payment was denied. Reply \"approve\" or \"deny\".", raw))
		}
	case approved:
		p.Resolve(StateApproved, true, "approved by human")
	default:
		p.Resolve(StateDenied, false, "denied by human")
	}
}
