// Package dispatch is the single entry point for every system action.
// All callers — CLI, chat, MCP — build a contract.Request and go
// through Dispatch; the guard chain runs strictly in order, fails
// closed, and every request leaves exactly one audit entry regardless
// of outcome.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ppiankov/ddsgate/internal/audit"
	"github.com/ppiankov/ddsgate/internal/config"
	"github.com/ppiankov/ddsgate/internal/contract"
	"github.com/ppiankov/ddsgate/internal/proposal"
	"github.com/ppiankov/ddsgate/internal/report"
)

// traceableKeys are the only payload fields ever copied into an audit
// entry. Everything else — free text, secrets — stays out of the log.
var traceableKeys = map[string]bool{
	"dds_id":      true,
	"proposal_id": true,
	"todo_id":     true,
	"name":        true,
	"project":     true,
}

// Executor runs one proposal. Satisfied by *engine.Engine.
type Executor interface {
	Execute(ctx context.Context, id string) (report.Report, error)
}

// handler serves one action. The returned string is the caller-facing
// message on success.
type handler func(ctx context.Context, req contract.Request) (string, error)

// Deps holds everything a dispatcher needs. Projects, Mailbox,
// Summarizer, and Tasks may be nil; the corresponding actions then
// report unavailability.
type Deps struct {
	Config    *config.Config
	Proposals *proposal.Store
	Reports   *report.Log
	Audit     *audit.Log
	Executor  Executor

	Projects   ProjectDirectory
	Mailbox    MailboxReader
	Summarizer Summarizer
	Tasks      TaskSource
}

// Dispatcher routes requests through the guard chain to handlers.
type Dispatcher struct {
	deps     Deps
	handlers map[contract.Action]handler
}

// New builds a dispatcher and verifies the handler table covers the
// whole action enum. A gap is a construction error, not a runtime
// surprise.
func New(deps Deps) (*Dispatcher, error) {
	if deps.Config == nil || deps.Proposals == nil || deps.Reports == nil || deps.Audit == nil {
		return nil, fmt.Errorf("dispatch: config, proposals, reports, and audit are required")
	}
	d := &Dispatcher{deps: deps}
	d.handlers = map[contract.Action]handler{
		contract.ActionSystemStatus:    d.handleSystemStatus,
		contract.ActionProjectList:     d.handleProjectList,
		contract.ActionProjectInfo:     d.handleProjectInfo,
		contract.ActionProjectSummary:  d.handleProjectSummary,
		contract.ActionInbox:           d.handleInbox,
		contract.ActionDDSList:         d.handleDDSList,
		contract.ActionDDSListProposed: d.handleDDSListProposed,
		contract.ActionExecStatus:      d.handleExecStatus,
		contract.ActionTodoList:        d.handleTodoList,
		contract.ActionDDSNew:          d.handleDDSNew,
		contract.ActionDDSApprove:      d.handleDDSApprove,
		contract.ActionDDSReject:       d.handleDDSReject,
		contract.ActionExecute:         d.handleExecute,
		contract.ActionTodoToDDS:       d.handleTodoToDDS,
	}
	for _, a := range contract.All() {
		if _, ok := d.handlers[a]; !ok {
			return nil, fmt.Errorf("dispatch: no handler registered for action %q", a)
		}
	}
	return d, nil
}

// Dispatch runs the guard chain and, if every guard passes, the action
// handler. It never returns an error: every outcome is a Response, and
// every outcome is audited.
func (d *Dispatcher) Dispatch(ctx context.Context, req contract.Request) contract.Response {
	start := time.Now()
	auditID := contract.NewAuditID()

	finish := func(level audit.Level, status, msg, errDetail string) contract.Response {
		entry := audit.Entry{
			AuditID:        auditID,
			Source:         req.Source,
			UserID:         req.UserID,
			Action:         string(req.Action),
			Level:          level,
			PayloadKeys:    payloadKeys(req.Payload),
			PayloadSummary: payloadSummary(req.Payload),
			Status:         status,
			ReadOnly:       req.Action.ReadOnly(),
			DurationMS:     time.Since(start).Milliseconds(),
			ErrorDetail:    errDetail,
		}
		// An unrecordable audit entry must not silently pass: the
		// response degrades to an error.
		if err := d.deps.Audit.Record(entry); err != nil {
			return contract.Response{
				Status:   contract.StatusError,
				Message:  fmt.Sprintf("audit log unavailable: %v", err),
				Action:   req.Action,
				ReadOnly: req.Action.ReadOnly(),
				AuditID:  auditID,
			}
		}
		return contract.Response{
			Status:   status,
			Message:  msg,
			Action:   req.Action,
			ReadOnly: req.Action.ReadOnly(),
			AuditID:  auditID,
		}
	}
	reject := func(msg string) contract.Response {
		return finish(audit.LevelGuardReject, contract.StatusError, msg, msg)
	}

	// 1. Closed action enum.
	if !req.Action.Valid() {
		return reject(fmt.Sprintf("unknown action %q", req.Action))
	}
	// 2. User allow-list. Empty list means authentication is disabled.
	if !d.deps.Config.UserAllowed(req.UserID) {
		return reject(fmt.Sprintf("user %q is not authorized", req.UserID))
	}
	// 3. Per-source permission.
	if err := d.deps.Config.Permissions.Check(req.Source, req.Action); err != nil {
		return reject(err.Error())
	}
	// 4. Payload schema.
	if err := contract.ValidatePayload(req.Action, req.Payload); err != nil {
		return reject(err.Error())
	}
	// 5. Handler must exist.
	h, ok := d.handlers[req.Action]
	if !ok {
		msg := fmt.Sprintf("no handler for action %q", req.Action)
		return finish(audit.LevelError, contract.StatusError, msg, msg)
	}
	// 6. Handler execution.
	msg, err := h(ctx, req)
	if err != nil {
		return finish(audit.LevelError, contract.StatusError, err.Error(), err.Error())
	}
	level := audit.LevelInfo
	if req.Action.Mutating() {
		level = audit.LevelDecision
	}
	return finish(level, contract.StatusOK, msg, "")
}

func payloadKeys(payload map[string]any) []string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func payloadSummary(payload map[string]any) map[string]string {
	sum := map[string]string{}
	for k, v := range payload {
		if traceableKeys[k] {
			sum[k] = fmt.Sprintf("%v", v)
		}
	}
	return sum
}
