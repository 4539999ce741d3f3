package providers

import "github.com/vtcode/agent/internal/agent/toolconv"

// toToolSpecs adapts vendor-neutral tool definitions to the toolconv
// package's conversion input, avoiding an import cycle between
// internal/providers and internal/agent/toolconv.
func toToolSpecs(tools []ToolDefinition) []toolconv.ToolSpec {
	specs := make([]toolconv.ToolSpec, len(tools))
	for i, tool := range tools {
		specs[i] = toolconv.ToolSpec{Name: tool.Name, Description: tool.Description, Schema: tool.Schema}
	}
	return specs
}
