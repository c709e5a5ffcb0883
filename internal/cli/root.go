package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/openclaw/paygate/internal/config"
	"github.com/openclaw/paygate/internal/gatekeeper"
)

var rootCmd = &cobra.Command{
	Use:   "paygate",
	Short: "Policy-gated vault for an agent's payment credential",
	Long: "Keeps a payment card encrypted at rest and releases it to autonomous agents\n" +
		"only when spending policy allows — or a human approves.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger logs to stderr; stdout belongs to the MCP transport when serving.
func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// buildGatekeeper wires a gatekeeper from the on-disk configuration.
func buildGatekeeper(logger *slog.Logger) (*gatekeeper.Gatekeeper, *config.Config, error) {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return nil, nil, err
	}
	gk, err := gatekeeper.FromConfig(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return gk, cfg, nil
}
