package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/m4xw311/pivot/llm"
)

type registration struct {
	tool    Tool
	enabled bool
}

// Registry holds the tools the agent can offer to the model. Registration
// order is preserved: schemas and listings always come back in the order
// tools were first registered.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*registration
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*registration)}
}

// Register adds a tool under its own name, enabled. Registering a name
// again replaces the tool without changing its position in the order.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := t.Name()
	if existing, ok := r.tools[name]; ok {
		existing.tool = t
		existing.enabled = true
		return
	}
	r.tools[name] = &registration{tool: t, enabled: true}
	r.order = append(r.order, name)
}

// Unregister removes a tool. Unknown names are a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; !ok {
		return
	}
	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Enable marks a tool as offered to the model. Unknown names are a no-op.
func (r *Registry) Enable(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.tools[name]; ok {
		reg.enabled = true
	}
}

// Disable keeps a tool registered but stops offering it. Unknown names are
// a no-op.
func (r *Registry) Disable(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.tools[name]; ok {
		reg.enabled = false
	}
}

// Enabled reports whether name is registered and enabled.
func (r *Registry) Enabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.tools[name]
	return ok && reg.enabled
}

// Names lists all registered tools in registration order, enabled or not.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// EnabledSchemas returns the definitions of the enabled tools in
// registration order. This is what goes out with every chat request.
func (r *Registry) EnabledSchemas() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var defs []llm.ToolDefinition
	for _, name := range r.order {
		if reg := r.tools[name]; reg.enabled {
			defs = append(defs, reg.tool.Schema())
		}
	}
	return defs
}

// Execute runs a tool and always returns a result string. Unknown tools,
// disabled tools and executor errors become descriptive results so a bad
// call from the model never breaks the conversation.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) string {
	r.mu.RLock()
	reg, ok := r.tools[name]
	var tool Tool
	var enabled bool
	if ok {
		tool, enabled = reg.tool, reg.enabled
	}
	r.mu.RUnlock()

	if !ok {
		return fmt.Sprintf("Tool not found: %s", name)
	}
	if !enabled {
		return fmt.Sprintf("Tool not available: %s", name)
	}
	result, err := tool.Execute(ctx, args)
	if err != nil {
		return fmt.Sprintf("Error executing %s: %v", name, err)
	}
	return result
}
