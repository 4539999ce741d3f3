// Package toolconv converts the vendor-neutral tool definition shape into
// each provider SDK's own tool/function schema format.
package toolconv

import "encoding/json"

// ToolSpec is the vendor-neutral shape a tool definition is converted from.
// It mirrors providers.ToolDefinition without creating an import cycle
// between internal/providers and internal/agent/toolconv.
type ToolSpec struct {
	Name        string
	Description string
	Schema      json.RawMessage
}
