package engine

import "fmt"

// Category classifies execution failures. dds_error covers business
// rule violations surfaced verbatim to the caller; env_error marks
// infrastructure failures that must never trigger a fix proposal;
// exec_error covers execution-time failures (constraint violations,
// sandbox or diff faults) that are fix-pipeline candidates.
type Category string

const (
	CategoryDDS  Category = "dds_error"
	CategoryEnv  Category = "env_error"
	CategoryExec Category = "exec_error"
)

// Error is the typed failure the engine returns. Match with errors.As
// to read the category.
type Error struct {
	Category Category
	DDSID    string
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Category, e.Msg)
	if e.DDSID != "" {
		s = fmt.Sprintf("[%s] %s: %s", e.Category, e.DDSID, e.Msg)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

func ddsErr(id, format string, args ...any) *Error {
	return &Error{Category: CategoryDDS, DDSID: id, Msg: fmt.Sprintf(format, args...)}
}

func envErr(id, format string, args ...any) *Error {
	return &Error{Category: CategoryEnv, DDSID: id, Msg: fmt.Sprintf(format, args...)}
}

func execErr(id string, err error) *Error {
	return &Error{Category: CategoryExec, DDSID: id, Msg: "execution failed", Err: err}
}

func execErrf(id, format string, args ...any) *Error {
	return &Error{Category: CategoryExec, DDSID: id, Msg: fmt.Sprintf(format, args...)}
}
