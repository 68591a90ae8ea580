package tools

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hession/filedesk/internal/workspace"
)

// Predefined dispatch errors
var (
	ErrUnknownTool     = errors.New("unknown tool")
	ErrMissingArgument = errors.New("missing required argument")
)

// Registry tool registry. It is populated once at startup and treated as
// immutable afterwards; Dispatch is safe for concurrent use.
type Registry struct {
	tools map[string]Tool
	mu    sync.RWMutex
}

// NewRegistry creates a new tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register registers a tool
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already exists", name)
	}

	r.tools[name] = tool
	return nil
}

// Get gets a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

// List lists all tools
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	return tools
}

// Dispatch looks up a tool by name, validates that all required arguments
// are present, and executes it. A name not in the registry or a missing
// required argument is reported as an error without touching any handler.
func (r *Registry) Dispatch(name string, args map[string]any) (string, error) {
	tool, exists := r.Get(name)
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	for _, param := range tool.Parameters() {
		if !param.Required {
			continue
		}
		if _, ok := args[param.Name]; !ok {
			return "", fmt.Errorf("%w: %s requires %q", ErrMissingArgument, name, param.Name)
		}
	}

	return tool.Execute(args)
}

// ToolSchema tool schema (for Function Calling)
type ToolSchema struct {
	Type     string         `json:"type"`
	Function FunctionSchema `json:"function"`
}

// FunctionSchema function schema
type FunctionSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// GetSchemas gets all tool schemas for Function Calling
func (r *Registry) GetSchemas() []ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]ToolSchema, 0, len(r.tools))
	for _, tool := range r.tools {
		schema := ToolSchema{
			Type: "function",
			Function: FunctionSchema{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  buildParameterSchema(tool.Parameters()),
			},
		}
		schemas = append(schemas, schema)
	}
	return schemas
}

// buildParameterSchema builds parameter schema
func buildParameterSchema(params []ParameterDef) map[string]interface{} {
	properties := make(map[string]interface{})
	required := make([]string, 0)

	for _, param := range params {
		properties[param.Name] = map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Required {
			required = append(required, param.Name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

// Searcher is the document search capability exposed as a tool when the
// knowledge index is enabled.
type Searcher interface {
	Search(query string, k int) ([]string, error)
}

// NewDefaultRegistry creates the registry with the built-in workspace
// file tools, plus the document search tool when a searcher is provided.
func NewDefaultRegistry(store *workspace.Store, searcher Searcher) *Registry {
	registry := NewRegistry()

	builtins := []Tool{
		NewReadTextFileTool(store),
		NewWriteTextFileTool(store),
	}
	if searcher != nil {
		builtins = append(builtins, NewSearchDocumentsTool(searcher))
	}

	for _, tool := range builtins {
		_ = registry.Register(tool) // Built-in names never conflict
	}

	return registry
}
