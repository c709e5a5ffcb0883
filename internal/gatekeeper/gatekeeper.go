// Package gatekeeper composes the vault, policy, ledger, and approval
// orchestrator into the single entry point callers use.
package gatekeeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/paygate/internal/approval"
	"github.com/openclaw/paygate/internal/channel"
	"github.com/openclaw/paygate/internal/ledger"
	"github.com/openclaw/paygate/internal/model"
	"github.com/openclaw/paygate/internal/policy"
	"github.com/openclaw/paygate/internal/vault"
)

// Response is the caller-facing result. Credential is set only when
// Approved is true.
type Response struct {
	Approved   bool              `json:"approved"`
	Reason     string            `json:"reason"`
	Credential *model.Credential `json:"credential,omitempty"`
}

// Params wires a Gatekeeper. Channel may be nil (no channel configured or
// the configured type was unknown); approval-requiring requests then fail
// closed to denial.
type Params struct {
	Vault      *vault.Vault
	Ledger     *ledger.Ledger
	Policy     *policy.Config
	PolicyHash string
	Channel    channel.Channel
	Timeout    time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

// Gatekeeper is the façade. One RequestCredential call runs its policy
// check and, if needed, its approval wait to completion before returning.
type Gatekeeper struct {
	vault   *vault.Vault
	ledger  *ledger.Ledger
	orch    *approval.Orchestrator
	channel channel.Channel
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu         sync.RWMutex
	policy     *policy.Config
	policyHash string
}

func New(p Params) *Gatekeeper {
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Policy == nil {
		p.Policy = policy.DefaultConfig()
	}
	if p.Timeout <= 0 {
		p.Timeout = 120 * time.Second
	}
	return &Gatekeeper{
		vault:      p.Vault,
		ledger:     p.Ledger,
		orch:       approval.NewOrchestrator(approval.NewRegistry(), p.Logger),
		channel:    p.Channel,
		timeout:    p.Timeout,
		logger:     p.Logger,
		now:        p.Now,
		policy:     p.Policy,
		policyHash: p.PolicyHash,
	}
}

// RequestCredential gates access to the stored credential behind policy
// and, when required, a human decision.
func (g *Gatekeeper) RequestCredential(ctx context.Context, req model.PaymentRequest) (*Response, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = g.now()
	}

	pol := g.snapshotPolicy()
	if req.Currency == "" {
		req.Currency = pol.Currency
	}

	if !g.vault.Exists() {
		return &Response{Approved: false, Reason: "no credential available"}, nil
	}

	spend, err := g.spendSnapshot()
	if err != nil {
		return nil, err
	}

	res := policy.Evaluate(&req, pol, spend)
	g.logger.Info("policy evaluated",
		"request", req.ID,
		"amount", req.Amount,
		"merchant", req.Merchant,
		"decision", string(res.Decision),
		"reason", res.Reason,
	)

	switch res.Decision {
	case model.Deny:
		if err := g.record(req, res, false, ledger.ByAuto); err != nil {
			return nil, err
		}
		return &Response{Approved: false, Reason: res.Reason}, nil

	case model.AutoApprove:
		cred, err := g.vault.Reveal()
		if err != nil {
			return nil, err
		}
		if err := g.record(req, res, true, ledger.ByAuto); err != nil {
			return nil, err
		}
		return &Response{Approved: true, Reason: res.Reason, Credential: cred}, nil

	case model.RequireApproval:
		return g.resolveWithHuman(ctx, req, res)

	default:
		// Unreachable; fail closed anyway.
		return &Response{Approved: false, Reason: fmt.Sprintf("unknown decision %q", res.Decision)}, nil
	}
}

func (g *Gatekeeper) resolveWithHuman(ctx context.Context, req model.PaymentRequest, res model.PolicyResult) (*Response, error) {
	if g.channel == nil {
		g.logger.Warn("approval required but no channel configured, denying", "request", req.ID)
		if err := g.record(req, res, false, ledger.ByAuto); err != nil {
			return nil, err
		}
		return &Response{Approved: false, Reason: "approval required but no approval channel is configured"}, nil
	}

	approved, err := g.orch.Resolve(ctx, req, res, g.channel, g.timeout)
	if err != nil {
		// ChannelMisconfigured, surfaced before any dispatch.
		return nil, err
	}

	if !approved {
		if err := g.record(req, res, false, ledger.ByHuman); err != nil {
			return nil, err
		}
		return &Response{Approved: false, Reason: "payment was not approved"}, nil
	}

	cred, err := g.vault.Reveal()
	if err != nil {
		return nil, err
	}
	if err := g.record(req, res, true, ledger.ByHuman); err != nil {
		return nil, err
	}
	return &Response{Approved: true, Reason: "approved by human", Credential: cred}, nil
}

// GetPolicy returns a read-only snapshot of the active policy. The slices
// are copied so callers cannot reach through to the live config.
func (g *Gatekeeper) GetPolicy() policy.Config {
	return g.snapshotPolicy().Clone()
}

// PolicyHash returns the hash of the loaded policy document.
func (g *Gatekeeper) PolicyHash() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.policyHash
}

// SetPolicy swaps the active policy (hot reload).
func (g *Gatekeeper) SetPolicy(cfg *policy.Config, hash string) {
	g.mu.Lock()
	g.policy = cfg
	g.policyHash = hash
	g.mu.Unlock()
	g.logger.Info("policy reloaded", "hash", hash)
}

// HasCredential reports whether a credential is stored. Side-effect-free.
func (g *Gatekeeper) HasCredential() bool {
	return g.vault.Exists()
}

// Ledger exposes the decision history for introspection.
func (g *Gatekeeper) Ledger() *ledger.Ledger {
	return g.ledger
}

// Vault exposes the secret store for setup and purge flows.
func (g *Gatekeeper) Vault() *vault.Vault {
	return g.vault
}

// Pending lists in-flight approval requests.
func (g *Gatekeeper) Pending() []*approval.Pending {
	return g.orch.Registry().List()
}

// Evaluate runs the policy against current spend without touching the
// vault or the ledger (dry run).
func (g *Gatekeeper) Evaluate(req model.PaymentRequest) (model.PolicyResult, error) {
	if req.Currency == "" {
		req.Currency = g.snapshotPolicy().Currency
	}
	spend, err := g.spendSnapshot()
	if err != nil {
		return model.PolicyResult{}, err
	}
	return policy.Evaluate(&req, g.snapshotPolicy(), spend), nil
}

func (g *Gatekeeper) snapshotPolicy() *policy.Config {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.policy
}

func (g *Gatekeeper) spendSnapshot() (policy.Spend, error) {
	now := g.now()
	day, err := g.ledger.SpentToday(now)
	if err != nil {
		return policy.Spend{}, err
	}
	month, err := g.ledger.SpentThisMonth(now)
	if err != nil {
		return policy.Spend{}, err
	}
	return policy.Spend{Day: day, Month: month}, nil
}

// record appends the decision to the ledger. A failed append blocks the
// credential from being returned: spend accounting stays ahead of access.
func (g *Gatekeeper) record(req model.PaymentRequest, res model.PolicyResult, approved bool, by string) error {
	entry := ledger.Entry{
		ID:         uuid.NewString(),
		Timestamp:  g.now(),
		Request:    req,
		Result:     res,
		Approved:   approved,
		ApprovedBy: by,
		PolicyHash: g.PolicyHash(),
	}
	if err := g.ledger.Append(entry); err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}
