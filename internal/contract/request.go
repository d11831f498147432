package contract

import (
	"time"

	"github.com/google/uuid"
)

// Request is the typed envelope every caller must construct to invoke a
// system action. Source identifies the calling interface (cli, chat,
// mcp); UserID identifies the end user for the audit trail.
type Request struct {
	Action    Action         `json:"action"`
	Payload   map[string]any `json:"payload,omitempty"`
	Source    string         `json:"source"`
	UserID    string         `json:"user_id"`
	Timestamp string         `json:"timestamp"`
}

// NewRequest builds a Request with the current UTC timestamp.
func NewRequest(action Action, payload map[string]any, source, userID string) Request {
	return Request{
		Action:    action,
		Payload:   payload,
		Source:    source,
		UserID:    userID,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// Response is returned by dispatch for every request, pass or fail.
type Response struct {
	Status   string `json:"status"` // "ok" or "error"
	Message  string `json:"message"`
	Action   Action `json:"action,omitempty"`
	ReadOnly bool   `json:"read_only"`
	AuditID  string `json:"audit_id"`
}

// OK reports whether the response carries a successful outcome.
func (r Response) OK() bool { return r.Status == StatusOK }

// Response status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// NewAuditID returns a unique audit identifier for one dispatched
// request/response pair.
func NewAuditID() string {
	return "AUD-" + uuid.New().String()
}
