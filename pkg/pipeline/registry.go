package pipeline

import (
	"context"
	"sync"
)

// ProgressFunc reports a handler's progress through its stages as an
// absolute percentage in [0,100]
type ProgressFunc func(stage string, percent float64)

// HandlerFunc executes one task. The context is cancelled when the task
// or the whole queue is cancelled; handlers should return promptly once
// it is done. A nil return completes the task, any error fails it.
type HandlerFunc func(ctx context.Context, task ProcessingTask, progress ProgressFunc) error

// Registry maps task types to their handlers
type Registry struct {
	mu       sync.RWMutex
	handlers map[TaskType]HandlerFunc
}

// NewRegistry creates an empty handler registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[TaskType]HandlerFunc)}
}

// Register binds a handler to a task type, replacing any previous one
func (r *Registry) Register(taskType TaskType, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[taskType] = handler
}

// Get returns the handler for a task type
func (r *Registry) Get(taskType TaskType) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[taskType]
	return h, ok
}
