package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ppiankov/ddsgate/internal/contract"
	"github.com/ppiankov/ddsgate/internal/proposal"
)

func stringField(payload map[string]any, key string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func intField(payload map[string]any, key string, fallback int) int {
	v, ok := payload[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return fallback
}

func (d *Dispatcher) handleSystemStatus(context.Context, contract.Request) (string, error) {
	all, err := d.deps.Proposals.List()
	if err != nil {
		return "", err
	}
	counts := map[proposal.Status]int{}
	for _, p := range all {
		counts[p.Base().Status]++
	}
	reports, err := d.deps.Reports.All()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"proposals: %d total (%d proposed, %d approved, %d executed, %d failed, %d rejected); executions recorded: %d",
		len(all), counts[proposal.StatusProposed], counts[proposal.StatusApproved],
		counts[proposal.StatusExecuted], counts[proposal.StatusFailed], counts[proposal.StatusRejected],
		len(reports),
	), nil
}

func (d *Dispatcher) handleProjectList(context.Context, contract.Request) (string, error) {
	if d.deps.Projects == nil {
		return "project directory unavailable", nil
	}
	projects, err := d.deps.Projects.List()
	if err != nil {
		return "", err
	}
	if len(projects) == 0 {
		return "no projects registered", nil
	}
	var b strings.Builder
	for _, p := range projects {
		fmt.Fprintf(&b, "%s\t%s\n", p.Name, p.Description)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (d *Dispatcher) handleProjectInfo(_ context.Context, req contract.Request) (string, error) {
	if d.deps.Projects == nil {
		return "project directory unavailable", nil
	}
	info, err := d.deps.Projects.Info(stringField(req.Payload, "name"))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s (%s): %s", info.Name, info.Path, info.Description), nil
}

func (d *Dispatcher) handleProjectSummary(_ context.Context, req contract.Request) (string, error) {
	if d.deps.Summarizer == nil {
		return "summarizer unavailable", nil
	}
	return d.deps.Summarizer.Summarize(stringField(req.Payload, "name"))
}

func (d *Dispatcher) handleInbox(_ context.Context, req contract.Request) (string, error) {
	if d.deps.Mailbox == nil {
		return "mailbox unavailable", nil
	}
	count := intField(req.Payload, "count", 5)
	if count <= 0 {
		count = 5
	}
	items, err := d.deps.Mailbox.Recent(count)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "inbox empty", nil
	}
	return strings.Join(items, "\n"), nil
}

func (d *Dispatcher) handleDDSList(context.Context, contract.Request) (string, error) {
	all, err := d.deps.Proposals.List()
	if err != nil {
		return "", err
	}
	return formatProposals(all), nil
}

func (d *Dispatcher) handleDDSListProposed(context.Context, contract.Request) (string, error) {
	proposed, err := d.deps.Proposals.ListByStatus(proposal.StatusProposed)
	if err != nil {
		return "", err
	}
	return formatProposals(proposed), nil
}

func formatProposals(ps []proposal.Proposal) string {
	if len(ps) == 0 {
		return "no proposals"
	}
	var b strings.Builder
	for _, p := range ps {
		m := p.Base()
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s\n", m.ID, m.Status, m.Project, m.Title)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (d *Dispatcher) handleExecStatus(_ context.Context, req contract.Request) (string, error) {
	if id := stringField(req.Payload, "dds_id"); id != "" {
		rep, ok, err := d.deps.Reports.LatestFor(id)
		if err != nil {
			return "", err
		}
		if !ok {
			return fmt.Sprintf("no executions recorded for %s", id), nil
		}
		return fmt.Sprintf("%s: %s at %s (%s)", rep.DDSID, rep.Status, rep.Timestamp, rep.Notes), nil
	}
	all, err := d.deps.Reports.All()
	if err != nil {
		return "", err
	}
	if len(all) == 0 {
		return "no executions recorded", nil
	}
	var b strings.Builder
	from := len(all) - 5
	if from < 0 {
		from = 0
	}
	for _, rep := range all[from:] {
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s\n", rep.DDSID, rep.Status, rep.Timestamp, rep.Notes)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (d *Dispatcher) handleTodoList(context.Context, contract.Request) (string, error) {
	if d.deps.Tasks == nil {
		return "task source unavailable", nil
	}
	todos, err := d.deps.Tasks.Todos()
	if err != nil {
		return "", err
	}
	if len(todos) == 0 {
		return "no open todos", nil
	}
	var b strings.Builder
	for _, td := range todos {
		fmt.Fprintf(&b, "%s\t%s\t%s\n", td.ID, td.Project, td.Title)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (d *Dispatcher) handleDDSNew(_ context.Context, req contract.Request) (string, error) {
	p := &proposal.Simple{Meta: proposal.Meta{
		Project:     stringField(req.Payload, "project"),
		Title:       stringField(req.Payload, "title"),
		Description: stringField(req.Payload, "description"),
	}}
	if err := d.deps.Proposals.Add(p); err != nil {
		return "", err
	}
	return fmt.Sprintf("created proposal %s (status proposed)", p.ID), nil
}

func (d *Dispatcher) handleDDSApprove(_ context.Context, req contract.Request) (string, error) {
	id := stringField(req.Payload, "proposal_id")
	if err := d.deps.Proposals.Approve(id); err != nil {
		return "", err
	}
	return fmt.Sprintf("approved %s", id), nil
}

func (d *Dispatcher) handleDDSReject(_ context.Context, req contract.Request) (string, error) {
	id := stringField(req.Payload, "proposal_id")
	if err := d.deps.Proposals.Reject(id); err != nil {
		return "", err
	}
	return fmt.Sprintf("rejected %s", id), nil
}

func (d *Dispatcher) handleExecute(ctx context.Context, req contract.Request) (string, error) {
	if d.deps.Executor == nil {
		return "", fmt.Errorf("execution engine unavailable")
	}
	id := stringField(req.Payload, "dds_id")
	rep, err := d.deps.Executor.Execute(ctx, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("executed %s: %s (%s)", id, rep.Status, rep.Notes), nil
}

func (d *Dispatcher) handleTodoToDDS(_ context.Context, req contract.Request) (string, error) {
	if d.deps.Tasks == nil {
		return "", fmt.Errorf("task source unavailable")
	}
	id := stringField(req.Payload, "todo_id")
	todos, err := d.deps.Tasks.Todos()
	if err != nil {
		return "", err
	}
	for _, td := range todos {
		if td.ID != id {
			continue
		}
		p := &proposal.Simple{Meta: proposal.Meta{
			Project:     td.Project,
			Title:       td.Title,
			Description: td.Description,
		}}
		if err := d.deps.Proposals.Add(p); err != nil {
			return "", err
		}
		return fmt.Sprintf("converted todo %s into proposal %s", id, p.ID), nil
	}
	return "", fmt.Errorf("todo %s not found", id)
}
