package gatekeeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/openclaw/paygate/internal/channel"
	"github.com/openclaw/paygate/internal/ledger"
	"github.com/openclaw/paygate/internal/model"
	"github.com/openclaw/paygate/internal/policy"
	"github.com/openclaw/paygate/internal/vault"
)

// scriptedChannel answers every approval prompt with a fixed reply.
type scriptedChannel struct {
	reply string
	block bool

	mu       sync.Mutex
	prompts  []channel.Prompt
	informed []string
}

func (c *scriptedChannel) Name() string    { return "scripted" }
func (c *scriptedChannel) Validate() error { return nil }

func (c *scriptedChannel) RequestApproval(ctx context.Context, p channel.Prompt) (string, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, p)
	c.mu.Unlock()
	if c.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return c.reply, nil
}

func (c *scriptedChannel) Inform(p channel.Prompt, text string) {
	c.mu.Lock()
	c.informed = append(c.informed, text)
	c.mu.Unlock()
}

func testCredential() *model.Credential {
	return &model.Credential{
		Cardholder: "Jordan Smith",
		Number:     "4111111111111111",
		ExpMonth:   12,
		ExpYear:    2030,
		CVV:        "123",
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestGatekeeper builds a gatekeeper over a temp-dir vault and ledger
// with a credential already stored.
func newTestGatekeeper(t *testing.T, cfg *policy.Config, ch channel.Channel, timeout time.Duration) *Gatekeeper {
	t.Helper()
	dir := t.TempDir()

	v := vault.New(
		filepath.Join(dir, "credential.enc"),
		&vault.FileBackend{Path: filepath.Join(dir, "vault.key")},
		nil,
		quietLogger(),
	)
	if err := v.Initialize(); err != nil {
		t.Fatalf("initialize vault: %v", err)
	}
	if err := v.Store(testCredential()); err != nil {
		t.Fatalf("store credential: %v", err)
	}

	return New(Params{
		Vault:      v,
		Ledger:     ledger.New(filepath.Join(dir, "ledger.json"), false),
		Policy:     cfg,
		PolicyHash: "sha256:test",
		Channel:    ch,
		Timeout:    timeout,
		Logger:     quietLogger(),
	})
}

func TestRequestCredentialAutoApprove(t *testing.T) {
	gk := newTestGatekeeper(t, policy.DefaultConfig(), nil, time.Second)

	resp, err := gk.RequestCredential(context.Background(), model.PaymentRequest{
		Amount:   25,
		Merchant: "store.com",
	})
	if err != nil {
		t.Fatalf("RequestCredential: %v", err)
	}
	if !resp.Approved {
		t.Fatalf("expected auto-approval, got denial: %s", resp.Reason)
	}
	if resp.Credential == nil || resp.Credential.Number != "4111111111111111" {
		t.Fatal("expected the stored credential back")
	}

	entries, err := gk.Ledger().List()
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(entries))
	}
	e := entries[0]
	if !e.Approved || e.ApprovedBy != ledger.ByAuto {
		t.Fatalf("entry = approved %v by %q, want approved by auto", e.Approved, e.ApprovedBy)
	}
	if e.PolicyHash != "sha256:test" {
		t.Fatalf("entry policy hash = %q", e.PolicyHash)
	}
}

func TestRequestCredentialHardBlock(t *testing.T) {
	ch := &scriptedChannel{reply: "yes"}
	gk := newTestGatekeeper(t, policy.DefaultConfig(), ch, time.Second)

	resp, err := gk.RequestCredential(context.Background(), model.PaymentRequest{
		Amount:   900,
		Merchant: "store.com",
	})
	if err != nil {
		t.Fatalf("RequestCredential: %v", err)
	}
	if resp.Approved || resp.Credential != nil {
		t.Fatal("expected a blocked request to never release the credential")
	}
	if len(ch.prompts) != 0 {
		t.Fatal("a hard block must not reach the approval channel")
	}

	entries, _ := gk.Ledger().List()
	if len(entries) != 1 || entries[0].Approved || entries[0].ApprovedBy != ledger.ByAuto {
		t.Fatalf("expected one auto denial entry, got %+v", entries)
	}
}

func TestRequestCredentialBlockedKeyword(t *testing.T) {
	gk := newTestGatekeeper(t, policy.DefaultConfig(), nil, time.Second)

	resp, err := gk.RequestCredential(context.Background(), model.PaymentRequest{
		Amount:      10,
		Merchant:    "store.com",
		Description: "Crypto Starter Pack",
	})
	if err != nil {
		t.Fatalf("RequestCredential: %v", err)
	}
	if resp.Approved {
		t.Fatal("expected a keyword match to deny even under the auto ceiling")
	}
}

func TestRequestCredentialHumanApproves(t *testing.T) {
	ch := &scriptedChannel{reply: "approve"}
	gk := newTestGatekeeper(t, policy.DefaultConfig(), ch, time.Second)

	resp, err := gk.RequestCredential(context.Background(), model.PaymentRequest{
		Amount:   75,
		Merchant: "store.com",
	})
	if err != nil {
		t.Fatalf("RequestCredential: %v", err)
	}
	if !resp.Approved || resp.Credential == nil {
		t.Fatalf("expected the credential after human approval, got: %s", resp.Reason)
	}
	if len(ch.prompts) != 1 {
		t.Fatalf("expected one prompt dispatch, got %d", len(ch.prompts))
	}
	if p := ch.prompts[0]; p.Amount != 75 || p.Merchant != "store.com" {
		t.Fatalf("prompt carried wrong details: %+v", p)
	}

	entries, _ := gk.Ledger().List()
	if len(entries) != 1 || !entries[0].Approved || entries[0].ApprovedBy != ledger.ByHuman {
		t.Fatalf("expected one human approval entry, got %+v", entries)
	}
}

func TestRequestCredentialHumanDenies(t *testing.T) {
	ch := &scriptedChannel{reply: "no"}
	gk := newTestGatekeeper(t, policy.DefaultConfig(), ch, time.Second)

	resp, err := gk.RequestCredential(context.Background(), model.PaymentRequest{
		Amount:   75,
		Merchant: "store.com",
	})
	if err != nil {
		t.Fatalf("RequestCredential: %v", err)
	}
	if resp.Approved || resp.Credential != nil {
		t.Fatal("expected denial without credential")
	}

	entries, _ := gk.Ledger().List()
	if len(entries) != 1 || entries[0].Approved || entries[0].ApprovedBy != ledger.ByHuman {
		t.Fatalf("expected one human denial entry, got %+v", entries)
	}
}

func TestRequestCredentialTimeoutDenies(t *testing.T) {
	ch := &scriptedChannel{block: true}
	gk := newTestGatekeeper(t, policy.DefaultConfig(), ch, 50*time.Millisecond)

	resp, err := gk.RequestCredential(context.Background(), model.PaymentRequest{
		Amount:   75,
		Merchant: "store.com",
	})
	if err != nil {
		t.Fatalf("RequestCredential: %v", err)
	}
	if resp.Approved {
		t.Fatal("expected timeout to deny")
	}

	entries, _ := gk.Ledger().List()
	if len(entries) != 1 || entries[0].Approved {
		t.Fatalf("expected one denial entry, got %+v", entries)
	}
	if entries[0].ApprovedBy != ledger.ByHuman {
		t.Fatalf("timeout denial attributed to %q, want human path", entries[0].ApprovedBy)
	}
}

func TestRequestCredentialNoChannelFailsClosed(t *testing.T) {
	gk := newTestGatekeeper(t, policy.DefaultConfig(), nil, time.Second)

	resp, err := gk.RequestCredential(context.Background(), model.PaymentRequest{
		Amount:   75,
		Merchant: "store.com",
	})
	if err != nil {
		t.Fatalf("RequestCredential: %v", err)
	}
	if resp.Approved {
		t.Fatal("expected denial when no channel is configured")
	}

	entries, _ := gk.Ledger().List()
	if len(entries) != 1 || entries[0].ApprovedBy != ledger.ByAuto {
		t.Fatalf("expected an auto denial entry, got %+v", entries)
	}
}

func TestRequestCredentialNoCredentialStored(t *testing.T) {
	dir := t.TempDir()
	v := vault.New(
		filepath.Join(dir, "credential.enc"),
		&vault.FileBackend{Path: filepath.Join(dir, "vault.key")},
		nil,
		quietLogger(),
	)
	if err := v.Initialize(); err != nil {
		t.Fatalf("initialize vault: %v", err)
	}
	gk := New(Params{
		Vault:  v,
		Ledger: ledger.New(filepath.Join(dir, "ledger.json"), false),
		Logger: quietLogger(),
	})

	resp, err := gk.RequestCredential(context.Background(), model.PaymentRequest{
		Amount:   10,
		Merchant: "store.com",
	})
	if err != nil {
		t.Fatalf("RequestCredential: %v", err)
	}
	if resp.Approved {
		t.Fatal("expected denial with no credential stored")
	}
	if resp.Reason != "no credential available" {
		t.Fatalf("reason = %q", resp.Reason)
	}

	entries, _ := gk.Ledger().List()
	if len(entries) != 0 {
		t.Fatal("a missing credential must not write ledger entries")
	}
}

func TestRequestCredentialDailyLimitAccumulates(t *testing.T) {
	cfg := policy.DefaultConfig()
	cfg.DailyLimit = 100
	gk := newTestGatekeeper(t, cfg, nil, time.Second)

	// Two auto-approvals consume 80 of the 100 daily limit.
	for i := 0; i < 2; i++ {
		resp, err := gk.RequestCredential(context.Background(), model.PaymentRequest{
			Amount:   40,
			Merchant: "store.com",
		})
		if err != nil {
			t.Fatalf("RequestCredential: %v", err)
		}
		if !resp.Approved {
			t.Fatalf("request %d: expected approval, got %s", i, resp.Reason)
		}
	}

	// 30 more would exceed it.
	resp, err := gk.RequestCredential(context.Background(), model.PaymentRequest{
		Amount:   30,
		Merchant: "store.com",
	})
	if err != nil {
		t.Fatalf("RequestCredential: %v", err)
	}
	if resp.Approved {
		t.Fatal("expected the daily limit to deny the third request")
	}
}

func TestDeniedRequestsDoNotCountAsSpend(t *testing.T) {
	cfg := policy.DefaultConfig()
	cfg.DailyLimit = 100
	gk := newTestGatekeeper(t, cfg, nil, time.Second)

	// A denied request (keyword) must not consume the limit.
	if resp, err := gk.RequestCredential(context.Background(), model.PaymentRequest{
		Amount:      40,
		Merchant:    "store.com",
		Description: "gift card bundle",
	}); err != nil || resp.Approved {
		t.Fatalf("setup denial failed: resp=%+v err=%v", resp, err)
	}

	resp, err := gk.RequestCredential(context.Background(), model.PaymentRequest{
		Amount:   90,
		Merchant: "store.com",
	})
	if err != nil {
		t.Fatalf("RequestCredential: %v", err)
	}
	if !resp.Approved {
		t.Fatalf("denied spend counted against the limit: %s", resp.Reason)
	}
}

func TestSetPolicyHotReload(t *testing.T) {
	gk := newTestGatekeeper(t, policy.DefaultConfig(), nil, time.Second)

	strict := policy.DefaultConfig()
	strict.BlockAbove = 5
	gk.SetPolicy(strict, "sha256:strict")

	if gk.PolicyHash() != "sha256:strict" {
		t.Fatalf("policy hash = %q", gk.PolicyHash())
	}
	resp, err := gk.RequestCredential(context.Background(), model.PaymentRequest{
		Amount:   10,
		Merchant: "store.com",
	})
	if err != nil {
		t.Fatalf("RequestCredential: %v", err)
	}
	if resp.Approved {
		t.Fatal("expected the reloaded policy to block the request")
	}
}

func TestGetPolicySnapshotIsIsolated(t *testing.T) {
	gk := newTestGatekeeper(t, policy.DefaultConfig(), nil, time.Second)

	snap := gk.GetPolicy()
	for i := range snap.BlockedKeywords {
		snap.BlockedKeywords[i] = "store"
	}
	snap.BlockedMerchants = append(snap.BlockedMerchants, "store.com")

	resp, err := gk.RequestCredential(context.Background(), model.PaymentRequest{
		Amount:   25,
		Merchant: "store.com",
	})
	if err != nil {
		t.Fatalf("RequestCredential: %v", err)
	}
	if !resp.Approved {
		t.Fatalf("mutating the snapshot changed the active policy: %s", resp.Reason)
	}
}

func TestEvaluateDryRunWritesNothing(t *testing.T) {
	gk := newTestGatekeeper(t, policy.DefaultConfig(), nil, time.Second)

	res, err := gk.Evaluate(model.PaymentRequest{Amount: 25, Merchant: "store.com"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Decision != model.AutoApprove {
		t.Fatalf("decision = %q", res.Decision)
	}

	entries, _ := gk.Ledger().List()
	if len(entries) != 0 {
		t.Fatal("a dry run must not write ledger entries")
	}
}

func TestRequestCredentialGeneratesID(t *testing.T) {
	gk := newTestGatekeeper(t, policy.DefaultConfig(), nil, time.Second)

	if _, err := gk.RequestCredential(context.Background(), model.PaymentRequest{
		Amount:   25,
		Merchant: "store.com",
	}); err != nil {
		t.Fatalf("RequestCredential: %v", err)
	}
	entries, _ := gk.Ledger().List()
	if len(entries) != 1 || entries[0].Request.ID == "" {
		t.Fatal("expected a generated request id in the ledger")
	}
	if entries[0].Request.SubmittedAt.IsZero() {
		t.Fatal("expected a populated submission time")
	}
}

func TestRequestCredentialCallerCancellation(t *testing.T) {
	ch := &scriptedChannel{block: true}
	gk := newTestGatekeeper(t, policy.DefaultConfig(), ch, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	resp, err := gk.RequestCredential(ctx, model.PaymentRequest{
		Amount:   75,
		Merchant: "store.com",
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("RequestCredential: %v", err)
		}
		return
	}
	if resp.Approved {
		t.Fatal("expected denial on cancellation")
	}
}
