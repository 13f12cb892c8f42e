package cipher

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownOperation is returned when a name is not in the registry.
var ErrUnknownOperation = errors.New("unknown operation")

// Registry maps operation names to implementations. It is safe for
// concurrent use.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]Operation
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]Operation)}
}

var defaultRegistry = NewRegistry()

// Default returns the registry populated with the built-in cipher operations.
func Default() *Registry {
	return defaultRegistry
}

// Register adds an operation. Names must be unique.
func (r *Registry) Register(op Operation) error {
	if op == nil {
		return fmt.Errorf("cannot register nil operation")
	}

	name := op.Name()
	if name == "" {
		return fmt.Errorf("operation name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ops[name]; exists {
		return fmt.Errorf("operation %s is already registered", name)
	}

	r.ops[name] = op
	return nil
}

// Get retrieves an operation by name.
func (r *Registry) Get(name string) (Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	op, exists := r.ops[name]
	return op, exists
}

// List returns all registered operations sorted by name.
func (r *Registry) List() []Operation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ops := make([]Operation, 0, len(r.ops))
	for _, op := range r.ops {
		ops = append(ops, op)
	}

	sort.Slice(ops, func(i, j int) bool {
		return ops[i].Name() < ops[j].Name()
	})

	return ops
}

// ListByType returns operations of one type sorted by name.
func (r *Registry) ListByType(opType OperationType) []Operation {
	all := r.List()
	ops := make([]Operation, 0, len(all))
	for _, op := range all {
		if op.Type() == opType {
			ops = append(ops, op)
		}
	}
	return ops
}

// Unregister removes an operation.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.ops, name)
}

// RegisterOperation adds an operation to the default registry.
func RegisterOperation(op Operation) error {
	return defaultRegistry.Register(op)
}

// GetOperation looks up an operation in the default registry.
func GetOperation(name string) (Operation, bool) {
	return defaultRegistry.Get(name)
}

// ListOperations returns every operation in the default registry.
func ListOperations() []Operation {
	return defaultRegistry.List()
}

// ListOperationsByType filters the default registry by type.
func ListOperationsByType(opType OperationType) []Operation {
	return defaultRegistry.ListByType(opType)
}

func mustRegister(ops ...Operation) {
	for _, op := range ops {
		if err := defaultRegistry.Register(op); err != nil {
			panic(err)
		}
	}
}
