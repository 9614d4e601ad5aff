package parse

// Node type identifiers shared by all language parsers.
const (
	NodeFunction  = "function"
	NodeMethod    = "method"
	NodeClass     = "class"
	NodeStruct    = "struct"
	NodeInterface = "interface"
	NodeTrait     = "trait"
	NodeModule    = "module"
	NodeType      = "type"
	NodeComponent = "component"
)

// ASTNode is the unified code element representation emitted by every
// language parser. The knowledge graph consumes these without knowing
// which language produced them.
//
// React/Next.js extensions:
//   - Renders: uppercase JSX tag names used in the body
//   - FrameworkRole: Next.js pattern (next_page, next_layout, ...)
//   - Metadata: extensible bag (hooks, props, ...)
//
// API glue extensions:
//   - APICalls: endpoint URLs called via fetch/axios (frontend)
//   - APIRoute: route this handler serves (backend)
type ASTNode struct {
	Name          string                 `json:"name"`
	Type          string                 `json:"node_type"`
	File          string                 `json:"file_path"`
	StartLine     int                    `json:"start_line"`
	EndLine       int                    `json:"end_line"`
	Content       string                 `json:"content"`
	Calls         []string               `json:"calls,omitempty"`
	Inherits      []string               `json:"inherits,omitempty"`
	Renders       []string               `json:"renders,omitempty"`
	FrameworkRole string                 `json:"framework_role,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	APICalls      []string               `json:"api_calls,omitempty"`
	APIRoute      string                 `json:"api_route,omitempty"`
}

// Hooks returns the React hook names recorded in metadata, if any.
func (n *ASTNode) Hooks() []string {
	if n.Metadata == nil {
		return nil
	}
	switch v := n.Metadata["hooks"].(type) {
	case []string:
		return v
	case []interface{}:
		hooks := make([]string, 0, len(v))
		for _, h := range v {
			if s, ok := h.(string); ok {
				hooks = append(hooks, s)
			}
		}
		return hooks
	}
	return nil
}

// IsCallable reports whether the node represents executable code whose
// Calls list is meaningful.
func (n *ASTNode) IsCallable() bool {
	switch n.Type {
	case NodeFunction, NodeMethod, NodeComponent:
		return true
	}
	return false
}
