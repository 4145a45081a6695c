// Copyright 2025 The toolgate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mcp

import (
	"fmt"
	"sync"
)

// ToolRegistry holds the tool set discovered from one server. It is empty
// until the handshake completes, and re-discovery replaces its contents
// wholesale: readers never observe a mix of old and new tool sets.
type ToolRegistry struct {
	mu        sync.RWMutex
	tools     []Tool
	index     map[string]int
	populated bool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		index: make(map[string]int),
	}
}

// Replace atomically swaps the registry contents for the given tool set.
// Tool names must be unique within a server; duplicates reject the whole
// snapshot so a half-valid discovery never becomes visible.
func (r *ToolRegistry) Replace(tools []Tool) error {
	index := make(map[string]int, len(tools))
	for i, t := range tools {
		if t.Name == "" {
			return ErrInvalidConfig(fmt.Sprintf("tool at position %d has no name", i))
		}
		if _, dup := index[t.Name]; dup {
			return ErrInvalidConfig(fmt.Sprintf("duplicate tool name %q in discovery response", t.Name))
		}
		index[t.Name] = i
	}

	snapshot := make([]Tool, len(tools))
	copy(snapshot, tools)

	r.mu.Lock()
	r.tools = snapshot
	r.index = index
	r.populated = true
	r.mu.Unlock()

	return nil
}

// Get returns the tool with the given name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return Tool{}, false
	}
	return r.tools[i], true
}

// List returns a copy of the current tool set.
func (r *ToolRegistry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Names returns the current tool names in discovery order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Name
	}
	return names
}

// Len returns the number of tools.
func (r *ToolRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Populated reports whether a discovery has completed at least once.
func (r *ToolRegistry) Populated() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.populated
}
