package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/vtcode/agent/pkg/models"
)

// Tool is a single capability the turn engine can expose to the model
// and invoke on its behalf.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Category() models.ToolCategory
	// Mutates reports whether this tool can change state on disk, in a
	// shell, or in an external system. The policy gateway and the
	// parallel-call grouping rule both key off this.
	Mutates() bool
	// ParallelSafe reports whether concurrent invocations of this tool
	// (with different arguments) are safe to run in the same group.
	ParallelSafe() bool
	// Priority is the rate-limiter weighting class for this tool.
	Priority() models.Priority
	Execute(ctx context.Context, args json.RawMessage) (models.ToolResult, error)
}

var schemaCache sync.Map

// compileSchema compiles and caches a tool's JSON schema, keyed on its
// raw bytes, mirroring the teacher's plugin manifest validator.
func compileSchema(name string, schema json.RawMessage) (*jsonschema.Schema, error) {
	key := name + "\x00" + string(schema)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}
	compiled, err := jsonschema.CompileString(name+".schema.json", string(schema))
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", name, err)
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// validateArgs checks raw tool-call arguments against the tool's schema.
// A tool with no schema (empty Schema()) skips validation.
func validateArgs(t Tool, args json.RawMessage) error {
	raw := t.Schema()
	if len(raw) == 0 {
		return nil
	}
	schema, err := compileSchema(t.Name(), raw)
	if err != nil {
		return err
	}
	var decoded any
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, &decoded); err != nil {
		return fmt.Errorf("decode arguments for %s: %w", t.Name(), err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("arguments for %s: %w", t.Name(), err)
	}
	return nil
}
