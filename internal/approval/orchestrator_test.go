package approval

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openclaw/paygate/internal/channel"
	"github.com/openclaw/paygate/internal/model"
)

// fakeChannel scripts the human side of the conversation.
type fakeChannel struct {
	validateErr error
	reply       string
	replyErr    error
	delay       time.Duration
	block       bool // never reply

	mu         sync.Mutex
	dispatched int
	informed   []string
}

func (c *fakeChannel) Name() string    { return "fake" }
func (c *fakeChannel) Validate() error { return c.validateErr }

func (c *fakeChannel) RequestApproval(ctx context.Context, p channel.Prompt) (string, error) {
	c.mu.Lock()
	c.dispatched++
	c.mu.Unlock()

	if c.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return c.reply, c.replyErr
}

func (c *fakeChannel) Inform(p channel.Prompt, text string) {
	c.mu.Lock()
	c.informed = append(c.informed, text)
	c.mu.Unlock()
}

func (c *fakeChannel) informedText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.informed, "\n")
}

func (c *fakeChannel) dispatchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatched
}

func testRequest() model.PaymentRequest {
	return model.PaymentRequest{
		ID:       "req-1",
		Amount:   75,
		Merchant: "store.com",
	}
}

func testResult() model.PolicyResult {
	return model.PolicyResult{Decision: model.RequireApproval, Reason: "over ceiling"}
}

func TestResolveAffirmativeReply(t *testing.T) {
	o := NewOrchestrator(NewRegistry(), nil)
	ch := &fakeChannel{reply: "yes"}

	approved, err := o.Resolve(context.Background(), testRequest(), testResult(), ch, time.Second)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !approved {
		t.Fatal("expected approval for affirmative reply")
	}
}

func TestResolveNegativeReply(t *testing.T) {
	o := NewOrchestrator(NewRegistry(), nil)
	ch := &fakeChannel{reply: "Deny"}

	approved, err := o.Resolve(context.Background(), testRequest(), testResult(), ch, time.Second)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if approved {
		t.Fatal("expected denial for negative reply")
	}
}

func TestResolveAmbiguousReplyFailsClosed(t *testing.T) {
	o := NewOrchestrator(NewRegistry(), nil)
	ch := &fakeChannel{reply: "maybe later"}

	approved, err := o.Resolve(context.Background(), testRequest(), testResult(), ch, time.Second)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if approved {
		t.Fatal("expected denial for ambiguous reply")
	}
	if !strings.Contains(ch.informedText(), "not understood") {
		t.Fatalf("expected the human to be told why, informed: %q", ch.informedText())
	}
}

func TestResolveTimeout(t *testing.T) {
	o := NewOrchestrator(NewRegistry(), nil)
	ch := &fakeChannel{block: true}

	start := time.Now()
	approved, err := o.Resolve(context.Background(), testRequest(), testResult(), ch, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if approved {
		t.Fatal("expected denial on timeout")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout did not bound the wait: %v", elapsed)
	}
	if !strings.Contains(ch.informedText(), "expired") {
		t.Fatalf("expected expiry notice, informed: %q", ch.informedText())
	}
}

func TestResolveChannelErrorDenies(t *testing.T) {
	o := NewOrchestrator(NewRegistry(), nil)
	ch := &fakeChannel{replyErr: context.DeadlineExceeded}

	approved, err := o.Resolve(context.Background(), testRequest(), testResult(), ch, time.Second)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if approved {
		t.Fatal("expected denial when the channel fails")
	}
}

func TestResolveMisconfiguredChannelNeverDispatches(t *testing.T) {
	o := NewOrchestrator(NewRegistry(), nil)
	ch := &fakeChannel{validateErr: channel.ErrMisconfigured, reply: "yes"}

	_, err := o.Resolve(context.Background(), testRequest(), testResult(), ch, time.Second)
	if err == nil {
		t.Fatal("expected ChannelMisconfigured error")
	}
	if ch.dispatchCount() != 0 {
		t.Fatal("misconfiguration must surface before any dispatch")
	}
}

func TestResolveExternalResolution(t *testing.T) {
	reg := NewRegistry()
	o := NewOrchestrator(reg, nil)
	ch := &fakeChannel{block: true}

	go func() {
		// Wait for the pending entry to appear, then resolve externally.
		for i := 0; i < 200; i++ {
			if pending := reg.List(); len(pending) == 1 {
				reg.Resolve(pending[0].ID, true, "resolved by operator")
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	approved, err := o.Resolve(context.Background(), testRequest(), testResult(), ch, 5*time.Second)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !approved {
		t.Fatal("expected external resolution to approve")
	}
}

func TestResolveCallerCancellation(t *testing.T) {
	o := NewOrchestrator(NewRegistry(), nil)
	ch := &fakeChannel{block: true}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	approved, err := o.Resolve(ctx, testRequest(), testResult(), ch, time.Minute)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if approved {
		t.Fatal("expected denial on caller cancellation")
	}
}

func TestPendingRemovedAfterResolution(t *testing.T) {
	reg := NewRegistry()
	o := NewOrchestrator(reg, nil)
	ch := &fakeChannel{reply: "yes"}

	if _, err := o.Resolve(context.Background(), testRequest(), testResult(), ch, time.Second); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(reg.List()) != 0 {
		t.Fatal("expected the pending set to be empty after resolution")
	}
	// A late external signal must be a no-op on the removed entry.
	if reg.Resolve("anything", true, "late") {
		t.Fatal("expected late resolution of a removed entry to be rejected")
	}
}

func TestNormalizeReply(t *testing.T) {
	cases := []struct {
		in       string
		approved bool
		known    bool
	}{
		{"yes", true, true},
		{"  YES  ", true, true},
		{"y", true, true},
		{"approve", true, true},
		{"Approved", true, true},
		{"ok", true, true},
		{"no", false, true},
		{"N", false, true},
		{"deny", false, true},
		{"REJECT", false, true},
		{"cancel", false, true},
		{"", false, false},
		{"sure thing", false, false},
		{"yes please", false, false},
	}
	for _, tc := range cases {
		approved, known := NormalizeReply(tc.in)
		if approved != tc.approved || known != tc.known {
			t.Errorf("NormalizeReply(%q) = (%v, %v), want (%v, %v)",
				tc.in, approved, known, tc.approved, tc.known)
		}
	}
}
