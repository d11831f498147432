package contract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Error is a contract violation: unknown action, denied source, or a
// payload that fails its schema. Guard failures carry this type so
// dispatch can classify them as guard rejects.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

// payloadSchemas declares the required-field schema per action.
// Actions not listed accept any payload, including an empty one.
var payloadSchemas = map[Action]*jsonschema.Schema{
	ActionProjectInfo:    mustSchema("project_info", `{"type":"object","properties":{"name":{"type":"string","minLength":1}},"required":["name"]}`),
	ActionProjectSummary: mustSchema("project_summary", `{"type":"object","properties":{"name":{"type":"string","minLength":1}},"required":["name"]}`),
	ActionInbox:          mustSchema("inbox", `{"type":"object","properties":{"count":{"type":"integer","minimum":1}}}`),
	ActionDDSNew:         mustSchema("dds_new", `{"type":"object","properties":{"project":{"type":"string","minLength":1},"title":{"type":"string","minLength":1},"description":{"type":"string"}},"required":["project","title","description"]}`),
	ActionDDSApprove:     mustSchema("dds_approve", `{"type":"object","properties":{"proposal_id":{"type":"string","minLength":1}},"required":["proposal_id"]}`),
	ActionDDSReject:      mustSchema("dds_reject", `{"type":"object","properties":{"proposal_id":{"type":"string","minLength":1}},"required":["proposal_id"]}`),
	ActionExecute:        mustSchema("execute", `{"type":"object","properties":{"dds_id":{"type":"string","minLength":1}},"required":["dds_id"]}`),
	ActionTodoToDDS:      mustSchema("todo_to_dds", `{"type":"object","properties":{"todo_id":{"type":"string","minLength":1}},"required":["todo_id"]}`),
}

func mustSchema(name, doc string) *jsonschema.Schema {
	return jsonschema.MustCompileString(name+".schema.json", doc)
}

// ValidatePayload checks a payload against the action's declared schema.
// Payloads are normalized through a JSON round-trip so callers may pass
// native Go values (ints, typed slices) without tripping type checks.
func ValidatePayload(action Action, payload map[string]any) error {
	schema, ok := payloadSchemas[action]
	if !ok {
		return nil
	}

	if payload == nil {
		payload = map[string]any{}
	}

	normalized, err := normalize(payload)
	if err != nil {
		return &Error{Msg: fmt.Sprintf("action %s: payload is not JSON-representable: %v", action, err)}
	}

	if err := schema.Validate(normalized); err != nil {
		return &Error{Msg: fmt.Sprintf("action %s: payload schema violation: %v", action, err)}
	}
	return nil
}

func normalize(payload map[string]any) (any, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
