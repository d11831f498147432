// Package mcpserver exposes the read-only action subset over the Model
// Context Protocol. Every tool call builds a contract.Request with
// source identity "mcp" and goes through dispatch — the permission
// table, not this package, is what keeps MCP callers read-only.
package mcpserver

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/ddsgate/internal/contract"
	"github.com/ppiankov/ddsgate/internal/dispatch"
)

const sourceMCP = "mcp"

// Server wraps the MCP SDK server around the dispatcher.
type Server struct {
	mcpServer  *mcpsdk.Server
	dispatcher *dispatch.Dispatcher
	userID     string
}

// New creates an MCP server routing tool calls through d under the mcp
// source identity. userID is recorded on every audit entry.
func New(d *dispatch.Dispatcher, userID string) *Server {
	s := &Server{dispatcher: d, userID: userID}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "ddsgate",
			Version: "0.1.0",
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds the read-only ddsgate tools.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "dds_status",
		Description: "Summarize proposal and execution state.",
	}, s.handleStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "dds_list",
		Description: "List change proposals, optionally only those awaiting approval.",
	}, s.handleList)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "dds_exec_status",
		Description: "Show recent execution outcomes, optionally for one proposal id.",
	}, s.handleExecStatus)
}

// call routes one action through dispatch and converts the response.
func (s *Server) call(ctx context.Context, action contract.Action, payload map[string]any) (ActionOutput, error) {
	resp := s.dispatcher.Dispatch(ctx, contract.NewRequest(action, payload, sourceMCP, s.userID))
	out := ActionOutput{
		Status:  resp.Status,
		Message: resp.Message,
		AuditID: resp.AuditID,
	}
	if !resp.OK() {
		return out, fmt.Errorf("%s: %s", action, resp.Message)
	}
	return out, nil
}
