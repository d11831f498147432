package dispatch

// Read-only collaborators behind the informational actions. Their
// implementations live outside this system; a nil collaborator makes
// the corresponding action answer "unavailable" rather than fail a
// guard.

// ProjectInfo is the metadata a project directory returns for one
// project.
type ProjectInfo struct {
	Name        string
	Path        string
	Description string
}

// ProjectDirectory resolves project names to metadata.
type ProjectDirectory interface {
	List() ([]ProjectInfo, error)
	Info(name string) (ProjectInfo, error)
}

// MailboxReader exposes recent inbox items as formatted lines.
type MailboxReader interface {
	Recent(count int) ([]string, error)
}

// Summarizer produces a short text summary for a project.
type Summarizer interface {
	Summarize(name string) (string, error)
}

// Todo is a backlog item that can be converted into a proposal.
type Todo struct {
	ID          string
	Project     string
	Title       string
	Description string
}

// TaskSource exposes the backlog.
type TaskSource interface {
	Todos() ([]Todo, error)
}
