package mcpserver

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/ddsgate/internal/contract"
)

// StatusInput has no parameters.
type StatusInput struct{}

// ListInput defines parameters for the dds_list tool.
type ListInput struct {
	ProposedOnly bool `json:"proposed_only,omitempty" jsonschema:"only list proposals awaiting approval"`
}

// ExecStatusInput defines parameters for the dds_exec_status tool.
type ExecStatusInput struct {
	DDSID string `json:"dds_id,omitempty" jsonschema:"proposal id to query, omit for recent executions"`
}

// ActionOutput is the shared result shape: the dispatch outcome plus
// the audit id tying the call to the audit log.
type ActionOutput struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	AuditID string `json:"audit_id"`
}

func (s *Server) handleStatus(ctx context.Context, req *mcpsdk.CallToolRequest, input StatusInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	out, err := s.call(ctx, contract.ActionSystemStatus, nil)
	return nil, out, err
}

func (s *Server) handleList(ctx context.Context, req *mcpsdk.CallToolRequest, input ListInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	action := contract.ActionDDSList
	if input.ProposedOnly {
		action = contract.ActionDDSListProposed
	}
	out, err := s.call(ctx, action, nil)
	return nil, out, err
}

func (s *Server) handleExecStatus(ctx context.Context, req *mcpsdk.CallToolRequest, input ExecStatusInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	payload := map[string]any{}
	if input.DDSID != "" {
		payload["dds_id"] = input.DDSID
	}
	out, err := s.call(ctx, contract.ActionExecStatus, payload)
	return nil, out, err
}
