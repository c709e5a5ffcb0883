package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openclaw/paygate/internal/config"
	paymcp "github.com/openclaw/paygate/internal/mcp"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP tool server for agent integration",
	Long: "Runs paygate as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes the tools: payment_request, payment_check, payment_policy, payment_status.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	gk, _, err := buildGatekeeper(logger)
	if err != nil {
		return fmt.Errorf("wire gatekeeper: %w", err)
	}
	if err := gk.Vault().Initialize(); err != nil {
		return fmt.Errorf("initialize vault: %w", err)
	}

	srv := paymcp.New(gk, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
		cancel()
	}()

	reloader, err := paymcp.NewReloader(gk, config.PolicyPath())
	if err != nil {
		logger.Warn("policy hot-reload unavailable", "err", err)
	} else {
		go reloader.Run(ctx)
	}

	fmt.Fprintln(os.Stderr, "paygate MCP server listening on stdio")
	return srv.Run(ctx)
}
