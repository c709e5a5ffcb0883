// Package mcp exposes the gatekeeper as an MCP tool server over stdio, the
// surface autonomous agents call into.
package mcp

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/openclaw/paygate/internal/gatekeeper"
)

const serverVersion = "0.1.0"

// Server wraps the MCP SDK server around the gatekeeper.
type Server struct {
	mcpServer *mcpsdk.Server
	gk        *gatekeeper.Gatekeeper
	logger    *slog.Logger
}

// New creates an MCP server around an already-wired gatekeeper.
func New(gk *gatekeeper.Gatekeeper, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{gk: gk, logger: logger}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "paygate",
			Version: serverVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds the paygate tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "payment_request",
		Description: "Request the stored payment credential for a purchase. The request is checked against spending policy and may wait for human approval. Denied requests return the reason.",
	}, s.handleRequest)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "payment_check",
		Description: "Check what the spending policy would decide for a purchase without requesting the credential (dry run, nothing is logged).",
	}, s.handleCheck)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "payment_policy",
		Description: "Return the active spending policy: limits, ceilings, and merchant lists.",
	}, s.handlePolicy)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "payment_status",
		Description: "Report whether a credential is stored, how many decisions are logged, and the active policy hash.",
	}, s.handleStatus)
}
