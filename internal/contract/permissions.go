package contract

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Permission is what one source identity may invoke: every action, or an
// explicit subset. In YAML it is either the string "all" or a sequence
// of action names.
type Permission struct {
	All     bool
	Actions map[Action]bool
}

// AllowAll returns a Permission granting the full whitelist.
func AllowAll() Permission {
	return Permission{All: true}
}

// AllowOnly returns a Permission restricted to the given actions.
func AllowOnly(actions ...Action) Permission {
	m := make(map[Action]bool, len(actions))
	for _, a := range actions {
		m[a] = true
	}
	return Permission{Actions: m}
}

// Allows reports whether the permission covers the action.
func (p Permission) Allows(a Action) bool {
	if p.All {
		return true
	}
	return p.Actions[a]
}

// UnmarshalYAML accepts "all" or a sequence of action names.
// Unknown action names are rejected so a permission table cannot drift
// from the whitelist silently.
func (p *Permission) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		if strings.TrimSpace(s) != "all" {
			return fmt.Errorf("permission scalar must be \"all\", got %q", s)
		}
		*p = AllowAll()
		return nil
	}

	var names []string
	if err := value.Decode(&names); err != nil {
		return fmt.Errorf("permission must be \"all\" or a list of actions: %w", err)
	}

	actions := make(map[Action]bool, len(names))
	for _, name := range names {
		a := Action(name)
		if !a.Valid() {
			return fmt.Errorf("permission references unknown action %q", name)
		}
		actions[a] = true
	}
	*p = Permission{Actions: actions}
	return nil
}

// MarshalYAML renders "all" or the sorted action list.
func (p Permission) MarshalYAML() (any, error) {
	if p.All {
		return "all", nil
	}
	names := make([]string, 0, len(p.Actions))
	for a := range p.Actions {
		names = append(names, string(a))
	}
	sort.Strings(names)
	return names, nil
}

// Permissions maps a source identity to what it may invoke.
// Sources absent from the table are rejected outright.
type Permissions map[string]Permission

// DefaultPermissions registers the built-in sources: cli and chat get
// the full whitelist, mcp is read-only.
func DefaultPermissions() Permissions {
	return Permissions{
		"cli":  AllowAll(),
		"chat": AllowAll(),
		"mcp":  AllowOnly(ReadOnlySet()...),
	}
}

// Check validates that source is registered and permitted to invoke the
// action. There is no default-permit: unknown sources fail closed.
func (ps Permissions) Check(source string, action Action) error {
	perm, ok := ps[source]
	if !ok {
		registered := make([]string, 0, len(ps))
		for s := range ps {
			registered = append(registered, s)
		}
		sort.Strings(registered)
		return &Error{Msg: fmt.Sprintf("unknown source %q (registered: %s)", source, strings.Join(registered, ", "))}
	}
	if !perm.Allows(action) {
		return &Error{Msg: fmt.Sprintf("source %q is not allowed to invoke action %q", source, action)}
	}
	return nil
}
