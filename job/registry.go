package job

import (
	"fmt"
	"sync"

	"github.com/hookline/hookline"
)

// Key identifies a handler registration. Handlers are resolved by the
// explicit (Type, Name) pair at registration time — never by reflection
// or name matching at dispatch time.
type Key struct {
	Type Type
	Name string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Type, k.Name)
}

// Registry maps (job type, job name) keys to handlers.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Key]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[Key]Handler),
	}
}

// Register binds a handler to the (jobType, name) key. Registering the same
// key twice is a configuration error and fails so it is caught at startup.
func (r *Registry) Register(jobType Type, name string, h Handler) error {
	key := Key{Type: jobType, Name: name}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[key]; exists {
		return fmt.Errorf("%w: %s", hookline.ErrDuplicateHandler, key)
	}
	r.handlers[key] = h
	return nil
}

// Get returns the handler for the given key.
// Returns false if no handler is registered.
func (r *Registry) Get(jobType Type, name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[Key{Type: jobType, Name: name}]
	return h, ok
}

// Keys returns all registered handler keys.
func (r *Registry) Keys() []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]Key, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	return keys
}
