package channel

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewSelectsChannel(t *testing.T) {
	cases := []struct {
		typ  string
		name string
	}{
		{"telegram", "telegram"},
		{"webhook", "webhook"},
		{"terminal", "terminal"},
	}
	for _, tc := range cases {
		ch, err := New(Config{Type: tc.typ}, nil)
		if err != nil {
			t.Fatalf("New(%q): %v", tc.typ, err)
		}
		if ch.Name() != tc.name {
			t.Errorf("New(%q).Name() = %q", tc.typ, ch.Name())
		}
	}
}

func TestNewUnknownType(t *testing.T) {
	for _, typ := range []string{"", "sms", "carrier-pigeon"} {
		if _, err := New(Config{Type: typ}, nil); !errors.Is(err, ErrUnknown) {
			t.Errorf("New(%q) error = %v, want ErrUnknown", typ, err)
		}
	}
}

func TestPromptText(t *testing.T) {
	p := Prompt{
		ID:          "req-1",
		Amount:      75.5,
		Merchant:    "store.com",
		Description: "office chair",
		Currency:    "USD",
		Reason:      "over ceiling",
		ExpiresAt:   time.Now().Add(time.Minute),
	}
	text := p.Text()
	for _, want := range []string{"75.50 USD", "store.com", "office chair", "over ceiling"} {
		if !strings.Contains(text, want) {
			t.Errorf("prompt text missing %q:\n%s", want, text)
		}
	}

	p.Description = ""
	if strings.Contains(p.Text(), "Description") {
		t.Error("empty description should be omitted from the prompt")
	}
}

func TestTerminalReadsReply(t *testing.T) {
	var out strings.Builder
	term := NewTerminal(TerminalConfig{
		In:  strings.NewReader("approve\n"),
		Out: &out,
	})

	reply, err := term.RequestApproval(context.Background(), Prompt{Amount: 75, Currency: "USD", Merchant: "store.com"})
	if err != nil {
		t.Fatalf("RequestApproval: %v", err)
	}
	if reply != "approve" {
		t.Fatalf("reply = %q, want approve", reply)
	}
	if !strings.Contains(out.String(), "store.com") {
		t.Errorf("prompt not written to the terminal:\n%s", out.String())
	}
}

func TestTerminalTrimsWhitespace(t *testing.T) {
	term := NewTerminal(TerminalConfig{
		In:  strings.NewReader("  deny  \n"),
		Out: &strings.Builder{},
	})
	reply, err := term.RequestApproval(context.Background(), Prompt{})
	if err != nil {
		t.Fatalf("RequestApproval: %v", err)
	}
	if reply != "deny" {
		t.Fatalf("reply = %q, want deny", reply)
	}
}

func TestTerminalContextCancellation(t *testing.T) {
	// A reader that never produces a line.
	blocked := make(chan struct{})
	t.Cleanup(func() { close(blocked) })
	term := NewTerminal(TerminalConfig{
		In:  blockingReader{wait: blocked},
		Out: &strings.Builder{},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := term.RequestApproval(ctx, Prompt{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline, got %v", err)
	}
}

func TestTerminalEOFIsError(t *testing.T) {
	term := NewTerminal(TerminalConfig{
		In:  strings.NewReader(""),
		Out: &strings.Builder{},
	})
	if _, err := term.RequestApproval(context.Background(), Prompt{}); err == nil {
		t.Fatal("expected an error on EOF without input")
	}
}

type blockingReader struct {
	wait <-chan struct{}
}

func (r blockingReader) Read(p []byte) (int, error) {
	<-r.wait
	return 0, context.Canceled
}
