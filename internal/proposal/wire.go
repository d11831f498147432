package proposal

// record is the flat on-disk shape shared by every proposal variant.
// Absent execution fields mean a simple proposal; a source_dds
// back-reference means a fix. One shape keeps the store file readable
// and lets mutating operations round-trip fields they do not touch.
type record struct {
	ID          string `json:"id"`
	Project     string `json:"project"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
	Status      Status `json:"status"`

	Version      int          `json:"version,omitempty"`
	Kind         Kind         `json:"kind,omitempty"`
	Goal         string       `json:"goal,omitempty"`
	Instructions []string     `json:"instructions,omitempty"`
	Tool         string       `json:"tool,omitempty"`
	AllowedPaths []string     `json:"allowed_paths,omitempty"`
	Constraints  *Constraints `json:"constraints,omitempty"`
	Path         string       `json:"path,omitempty"`
	Content      *string      `json:"content,omitempty"`

	LastExecution *LastExecution `json:"last_execution,omitempty"`

	SourceDDS    string        `json:"source_dds,omitempty"`
	ErrorContext *ErrorContext `json:"error_context,omitempty"`
}

func encode(p Proposal) record {
	m := p.Base()
	r := record{
		ID:          m.ID,
		Project:     m.Project,
		Title:       m.Title,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
		Status:      m.Status,
	}
	switch v := p.(type) {
	case *Fix:
		r.SourceDDS = v.SourceID
		ec := v.ErrorContext
		r.ErrorContext = &ec
		encodeSpec(&r, &v.Executable)
	case *Executable:
		encodeSpec(&r, v)
	}
	return r
}

func encodeSpec(r *record, e *Executable) {
	r.Version = e.Spec.Version
	r.Kind = e.Spec.Kind
	r.Goal = e.Spec.Goal
	r.Instructions = e.Spec.Instructions
	r.Tool = e.Spec.Tool
	r.AllowedPaths = e.Spec.AllowedPaths
	r.Constraints = e.Spec.Constraints
	r.Path = e.Spec.Path
	r.Content = e.Spec.Content
	r.LastExecution = e.LastExecution
}

func decode(r record) Proposal {
	meta := Meta{
		ID:          r.ID,
		Project:     r.Project,
		Title:       r.Title,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		Status:      r.Status,
	}
	if !r.executable() {
		return &Simple{Meta: meta}
	}
	exec := Executable{
		Meta: meta,
		Spec: ExecSpec{
			Version:      r.Version,
			Kind:         r.Kind,
			Goal:         r.Goal,
			Instructions: r.Instructions,
			Tool:         r.Tool,
			AllowedPaths: r.AllowedPaths,
			Constraints:  r.Constraints,
			Path:         r.Path,
			Content:      r.Content,
		},
		LastExecution: r.LastExecution,
	}
	if r.SourceDDS != "" || r.ErrorContext != nil {
		f := &Fix{Executable: exec, SourceID: r.SourceDDS}
		if r.ErrorContext != nil {
			f.ErrorContext = *r.ErrorContext
		}
		return f
	}
	return &exec
}

func (r record) executable() bool {
	return r.Kind != "" || r.Version != 0 || len(r.Instructions) > 0 || r.Goal != ""
}
