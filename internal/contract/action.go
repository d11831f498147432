// Package contract defines the closed action whitelist and the typed
// request/response surface of ddsgate. Every caller — CLI, chat, MCP —
// must construct a Request and go through dispatch; nothing else is a
// valid entry point. Adding an action means updating the enum, the
// read-only/mutating classification, the payload schema table, and the
// per-source permission defaults together.
package contract

// Action identifies one operation in the closed whitelist.
// Unknown values fail closed at dispatch.
type Action string

const (
	// Read-only actions.
	ActionSystemStatus    Action = "system_status"
	ActionProjectList     Action = "project_list"
	ActionProjectInfo     Action = "project_info"
	ActionProjectSummary  Action = "project_summary"
	ActionInbox           Action = "inbox"
	ActionDDSList         Action = "dds_list"
	ActionDDSListProposed Action = "dds_list_proposed"
	ActionExecStatus      Action = "exec_status"
	ActionTodoList        Action = "todo_list"

	// Mutating actions.
	ActionDDSNew     Action = "dds_new"
	ActionDDSApprove Action = "dds_approve"
	ActionDDSReject  Action = "dds_reject"
	ActionExecute    Action = "execute"
	ActionTodoToDDS  Action = "todo_to_dds"
)

// readOnlyActions and mutatingActions must partition the whole enum:
// every action appears in exactly one set. TestActionPartition enforces
// this.
var readOnlyActions = map[Action]bool{
	ActionSystemStatus:    true,
	ActionProjectList:     true,
	ActionProjectInfo:     true,
	ActionProjectSummary:  true,
	ActionInbox:           true,
	ActionDDSList:         true,
	ActionDDSListProposed: true,
	ActionExecStatus:      true,
	ActionTodoList:        true,
}

var mutatingActions = map[Action]bool{
	ActionDDSNew:     true,
	ActionDDSApprove: true,
	ActionDDSReject:  true,
	ActionExecute:    true,
	ActionTodoToDDS:  true,
}

// All returns every action in the whitelist in declaration order.
func All() []Action {
	return []Action{
		ActionSystemStatus,
		ActionProjectList,
		ActionProjectInfo,
		ActionProjectSummary,
		ActionInbox,
		ActionDDSList,
		ActionDDSListProposed,
		ActionExecStatus,
		ActionTodoList,
		ActionDDSNew,
		ActionDDSApprove,
		ActionDDSReject,
		ActionExecute,
		ActionTodoToDDS,
	}
}

// Valid reports whether a is in the whitelist.
func (a Action) Valid() bool {
	return readOnlyActions[a] || mutatingActions[a]
}

// ReadOnly reports whether a does not mutate system state.
func (a Action) ReadOnly() bool {
	return readOnlyActions[a]
}

// Mutating reports whether a mutates system state.
func (a Action) Mutating() bool {
	return mutatingActions[a]
}

// ReadOnlySet returns the read-only subset of the whitelist.
func ReadOnlySet() []Action {
	var out []Action
	for _, a := range All() {
		if a.ReadOnly() {
			out = append(out, a)
		}
	}
	return out
}
