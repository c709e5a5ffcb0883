package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Terminal asks for the decision on an interactive terminal. The human
// must type an explicit reply; an empty line reads as no reply.
type Terminal struct {
	in     io.Reader
	out    io.Writer
	logger *slog.Logger
}

type TerminalConfig struct {
	In     io.Reader
	Out    io.Writer
	Logger *slog.Logger
}

func NewTerminal(cfg TerminalConfig) *Terminal {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stderr
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Terminal{in: cfg.In, out: cfg.Out, logger: cfg.Logger}
}

func (t *Terminal) Name() string { return "terminal" }

// Validate always passes: the terminal needs no configuration.
func (t *Terminal) Validate() error { return nil }

// RequestApproval prints the prompt and reads one line. The read runs in a
// goroutine because stdin cannot be cancelled; on ctx expiry the late line,
// if any, is discarded.
func (t *Terminal) RequestApproval(ctx context.Context, p Prompt) (string, error) {
	fmt.Fprintln(t.out)
	fmt.Fprintln(t.out, p.Text())
	fmt.Fprint(t.out, `Type "approve" to allow, "deny" to refuse: `)

	lineCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		reader := bufio.NewReader(t.in)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			errCh <- err
			return
		}
		lineCh <- strings.TrimSpace(line)
	}()

	select {
	case line := <-lineCh:
		return line, nil
	case err := <-errCh:
		return "", fmt.Errorf("read reply: %w", err)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Inform prints the follow-up to the terminal.
func (t *Terminal) Inform(p Prompt, text string) {
	fmt.Fprintf(t.out, "\n%s\n", text)
}
