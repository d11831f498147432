// Package proposal models DDS change proposals and their durable store.
// A proposal is the unit of governed change: it is created as proposed,
// gains approval by a human decision, and is only ever executed from the
// approved state. Proposals are never deleted — rejection and failure
// are terminal but retained for audit.
package proposal

// Status is the lifecycle state of a proposal.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusProposed Status = "proposed"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExecuted Status = "executed"
	StatusFailed   Status = "failed"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusProposed, StatusApproved, StatusRejected, StatusExecuted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is an absorbing state.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusExecuted, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether a status edit moves the lifecycle
// forward. Status never moves backward; executed is never reverted even
// if a later re-run fails — idempotency lives in the last-execution
// record, not in status rollback.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusDraft:
		return to == StatusProposed
	case StatusProposed:
		return to == StatusApproved || to == StatusRejected || to == StatusFailed
	case StatusApproved:
		return to == StatusExecuted || to == StatusFailed || to == StatusRejected
	default:
		return false
	}
}

// Kind tags what an executable proposal does when executed.
type Kind string

const (
	KindCodeChange Kind = "code_change"
	KindCodeFix    Kind = "code_fix"
	KindTouchFile  Kind = "touch_file"
	KindNoop       Kind = "noop"
)

// SupportedVersion is the execution schema version the engine accepts.
const SupportedVersion = 2

// Constraints limit the blast radius of one execution. They are
// declarative and are checked against observed changes, never against
// intent.
type Constraints struct {
	MaxFilesChanged   int  `json:"max_files_changed"`
	NoNewDependencies bool `json:"no_new_dependencies"`
	NoRefactor        bool `json:"no_refactor"`
}

// ErrorContext links a fix proposal back to the failure it repairs.
type ErrorContext struct {
	OriginalID   string `json:"original_id"`
	ErrorMessage string `json:"error_message"`
	FailedAt     string `json:"failed_at"`
}

// LastExecution is the outcome record the engine writes back onto the
// source proposal after every execution attempt.
type LastExecution struct {
	Status     string `json:"status"`
	ExecutedAt string `json:"executed_at"`
	Notes      string `json:"notes"`
}

// Meta holds the identity and lifecycle fields common to every proposal
// kind. IDs are globally ordered by creation: lexicographic sort on id
// equals creation order.
type Meta struct {
	ID          string
	Project     string
	Title       string
	Description string
	CreatedAt   string
	Status      Status
}

// Proposal is implemented by all proposal variants. Base exposes the
// shared identity and lifecycle fields.
type Proposal interface {
	Base() *Meta
}

// Simple is a proposal with no execution fields: a described change
// awaiting refinement into an executable form.
type Simple struct {
	Meta
}

// Base implements Proposal.
func (s *Simple) Base() *Meta { return &s.Meta }

// ExecSpec holds the execution fields present once a proposal is
// executable. Path and Content are only meaningful for touch_file.
type ExecSpec struct {
	Version      int
	Kind         Kind
	Goal         string
	Instructions []string
	Tool         string
	AllowedPaths []string
	Constraints  *Constraints
	Path         string
	Content      *string
}

// Executable is a proposal the engine can run.
type Executable struct {
	Meta
	Spec          ExecSpec
	LastExecution *LastExecution
}

// Base implements Proposal.
func (e *Executable) Base() *Meta { return &e.Meta }

// Fix is an executable proposal drafted by the reactive pipeline from a
// failed execution. It carries a structured back-reference to the
// proposal it repairs.
type Fix struct {
	Executable
	SourceID     string
	ErrorContext ErrorContext
}
