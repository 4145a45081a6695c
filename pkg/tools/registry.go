// Package tools provides a registry for executable tools.
//
// Tools are discrete functions exposed by external tool servers or built in
// to the host application. Each tool has a name, a schema defining its
// inputs, and an execution function.
//
// The registry allows tools to be registered, discovered, and executed in a
// type-safe manner.
package tools

import (
	"context"
	"fmt"
	"sync"
)

// Tool represents an executable tool.
type Tool interface {
	// Name returns the unique identifier for this tool
	Name() string

	// Description returns a human-readable description of what the tool does
	Description() string

	// Schema returns the JSON schema defining the tool's inputs and outputs
	Schema() *Schema

	// Execute runs the tool with the given inputs and returns outputs
	Execute(ctx context.Context, inputs map[string]interface{}) (map[string]interface{}, error)
}

// Schema defines the input and output schema for a tool using JSON Schema.
type Schema struct {
	// Inputs defines the expected input parameters
	Inputs *ParameterSchema `json:"inputs"`

	// Outputs defines the structure of returned data
	Outputs *ParameterSchema `json:"outputs"`
}

// ParameterSchema defines a set of parameters using JSON Schema conventions.
type ParameterSchema struct {
	// Type is the JSON type (e.g., "object", "string", "number")
	Type string `json:"type"`

	// Properties defines nested properties (for type="object")
	Properties map[string]*Property `json:"properties,omitempty"`

	// Required lists the required property names
	Required []string `json:"required,omitempty"`

	// Description provides human-readable context
	Description string `json:"description,omitempty"`
}

// Property defines a single property in a parameter schema.
type Property struct {
	// Type is the JSON type of this property
	Type string `json:"type"`

	// Description explains what this property represents
	Description string `json:"description,omitempty"`

	// Enum lists allowed values (for validation)
	Enum []interface{} `json:"enum,omitempty"`

	// Default provides a default value if not specified
	Default interface{} `json:"default,omitempty"`

	// Format specifies a format hint (e.g., "uri", "email", "date-time")
	Format string `json:"format,omitempty"`
}

// Registry maintains a collection of registered tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry.
// Returns an error if a tool with the same name is already registered.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("cannot register nil tool")
	}

	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}

	if tool.Schema() == nil {
		return fmt.Errorf("tool schema cannot be nil: %s", name)
	}

	r.tools[name] = tool
	return nil
}

// Unregister removes a tool from the registry.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return fmt.Errorf("tool not found: %s", name)
	}

	delete(r.tools, name)
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

// List returns all registered tools.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		result = append(result, tool)
	}
	return result
}

// Names returns the names of all registered tools.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute looks up a tool by name and runs it.
func (r *Registry) Execute(ctx context.Context, name string, inputs map[string]interface{}) (map[string]interface{}, error) {
	tool, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return tool.Execute(ctx, inputs)
}
