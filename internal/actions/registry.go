// Package actions holds the closed set of post-actions a routing rule may name.
package actions

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/quantmind-br/releasesync/internal/utils"
)

// Action runs after a file has been placed at path
type Action func(ctx context.Context, path string) error

// Built-in action names
const (
	LoadLib = "loadlib"
	LoadSrc = "loadsrc"
)

// Registry maps action names to implementations
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		actions: make(map[string]Action),
	}
}

// Default returns a registry with the built-in actions
func Default(logger *utils.Logger) *Registry {
	r := NewRegistry()
	r.MustRegister(LoadLib, logAction(logger, "Loaded library and extracted"))
	r.MustRegister(LoadSrc, logAction(logger, "Loaded source files and extracted"))
	return r
}

// Register adds an action under name
func (r *Registry) Register(name string, action Action) error {
	if name == "" {
		return fmt.Errorf("action name cannot be empty")
	}
	if action == nil {
		return fmt.Errorf("action %q is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actions[name]; exists {
		return fmt.Errorf("action %q already registered", name)
	}
	r.actions[name] = action
	return nil
}

// MustRegister is like Register but panics on error
func (r *Registry) MustRegister(name string, action Action) {
	if err := r.Register(name, action); err != nil {
		panic(err)
	}
}

// Lookup returns the action registered under name
func (r *Registry) Lookup(name string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	action, ok := r.actions[name]
	return action, ok
}

// Names returns the registered names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func logAction(logger *utils.Logger, msg string) Action {
	return func(ctx context.Context, path string) error {
		if logger != nil {
			logger.Info().Str("path", path).Msg(msg)
		}
		return nil
	}
}
