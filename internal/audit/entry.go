// Package audit persists one immutable record per dispatched request in
// an append-only, hash-chained JSONL log. Entries are written regardless
// of outcome — guard rejects and handler errors included — and are never
// edited or deleted.
package audit

// Level classifies the severity of an audit entry.
type Level string

const (
	// LevelInfo is a successful read-only action.
	LevelInfo Level = "info"
	// LevelDecision is a successful mutating action.
	LevelDecision Level = "decision"
	// LevelGuardReject is a request stopped by the guard chain before
	// reaching a handler.
	LevelGuardReject Level = "guard_reject"
	// LevelError is a handler failure or a missing handler.
	LevelError Level = "error"
)

// Entry is one line in the audit log. All fields are concrete types
// except PayloadSummary, which holds only whitelisted identifier fields
// — never raw payloads or secrets.
type Entry struct {
	AuditID        string            `json:"audit_id"`
	Timestamp      string            `json:"timestamp"`
	Source         string            `json:"source"`
	UserID         string            `json:"user_id"`
	Action         string            `json:"action"`
	Level          Level             `json:"level"`
	PayloadKeys    []string          `json:"payload_keys"`
	PayloadSummary map[string]string `json:"payload_summary"`
	Status         string            `json:"status"`
	ReadOnly       bool              `json:"read_only"`
	DurationMS     int64             `json:"duration_ms"`
	ErrorDetail    string            `json:"error_detail,omitempty"`
	PrevHash       string            `json:"prev_hash"`
}
