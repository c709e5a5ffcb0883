package mcp

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/openclaw/paygate/internal/gatekeeper"
	"github.com/openclaw/paygate/internal/policy"
)

// Reloader watches the policy document and hot-swaps it into the
// gatekeeper while the server runs.
type Reloader struct {
	watcher    *fsnotify.Watcher
	gk         *gatekeeper.Gatekeeper
	policyPath string
}

// NewReloader creates a file watcher for the policy document. A missing
// file is not an error; the reloader simply has nothing to watch.
func NewReloader(gk *gatekeeper.Gatekeeper, policyPath string) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	if _, err := os.Stat(policyPath); err == nil {
		if err := watcher.Add(policyPath); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watch %q: %w", policyPath, err)
		}
	}

	return &Reloader{watcher: watcher, gk: gk, policyPath: policyPath}, nil
}

// Run watches for file changes and reloads policy. Blocks until ctx is
// cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	// Debounce: wait 500ms after the last write before reloading.
	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, r.reload)
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "file watcher error: %v\n", err)
		}
	}
}

func (r *Reloader) reload() {
	cfg, hash, err := policy.LoadWithHash(r.policyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hot-reload failed: %v\n", err)
		return
	}
	r.gk.SetPolicy(cfg, hash)
	fmt.Fprintln(os.Stderr, "hot-reload: policy reloaded")
}
