package async

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/teranos/autoblog/errors"
)

// TaskHandler executes one task type. Domain packages implement it so the
// pool stays decoupled from domain logic.
type TaskHandler interface {
	// Execute runs the task. Handlers must respect ctx cancellation.
	Execute(ctx context.Context, task *Task) error

	// Name returns the handler name used for routing (e.g. "blog.publish").
	Name() string
}

// HandlerFunc adapts a function to TaskHandler.
type HandlerFunc struct {
	HandlerName string
	Fn          func(ctx context.Context, task *Task) error
}

func (h HandlerFunc) Name() string { return h.HandlerName }

func (h HandlerFunc) Execute(ctx context.Context, task *Task) error {
	return h.Fn(ctx, task)
}

// HandlerRegistry manages task handlers by name.
// Thread-safe for concurrent registration and lookup.
type HandlerRegistry struct {
	handlers map[string]TaskHandler
	mu       sync.RWMutex
}

// NewHandlerRegistry creates an empty handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string]TaskHandler),
	}
}

// Register adds a handler using its name.
// Panics if a handler is already registered with that name.
func (r *HandlerRegistry) Register(handler TaskHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := handler.Name()
	if _, exists := r.handlers[name]; exists {
		panic(fmt.Sprintf("handler already registered for name: %s", name))
	}
	r.handlers[name] = handler
}

// Get retrieves the handler for a name, or nil.
func (r *HandlerRegistry) Get(name string) TaskHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[name]
}

// Has checks if a handler is registered for a name.
func (r *HandlerRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.handlers[name]
	return exists
}

// Names returns all registered handler names, sorted.
func (r *HandlerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute routes a task to its registered handler.
func (r *HandlerRegistry) Execute(ctx context.Context, task *Task) error {
	if task.HandlerName == "" {
		return errors.Newf("task %s missing handler_name", task.ID)
	}
	handler := r.Get(task.HandlerName)
	if handler == nil {
		return errors.Newf("no handler registered for handler name: %s", task.HandlerName)
	}
	return handler.Execute(ctx, task)
}
