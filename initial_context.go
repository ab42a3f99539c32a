package appserver

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// InitialContext manufactures instances by type name. Implementations must fail
// observably: an unresolvable or unconstructable name returns an error, never a
// nil instance.
type InitialContext interface {
	NewInstance(typeName string, args ...any) (any, error)
}

// Constructor builds an instance from positional construction arguments.
type Constructor func(args ...any) (any, error)

// StdInitialContext is a name → constructor registry. It is populated at process
// start and is safe for concurrent use afterwards.
type StdInitialContext struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewStdInitialContext creates an empty registry.
func NewStdInitialContext() *StdInitialContext {
	return &StdInitialContext{constructors: make(map[string]Constructor)}
}

// Register binds typeName to a constructor.
func (ic *StdInitialContext) Register(typeName string, constructor Constructor) error {
	if typeName == "" {
		return fmt.Errorf("%w: type name cannot be empty", ErrInvalidTypeRegistration)
	}
	if constructor == nil {
		return fmt.Errorf("%w: nil constructor for %s", ErrInvalidTypeRegistration, typeName)
	}

	ic.mu.Lock()
	defer ic.mu.Unlock()

	if _, exists := ic.constructors[typeName]; exists {
		return fmt.Errorf("%w: %s", ErrTypeAlreadyRegistered, typeName)
	}
	ic.constructors[typeName] = constructor
	return nil
}

// NewInstance looks up typeName and calls its constructor once with args.
func (ic *StdInitialContext) NewInstance(typeName string, args ...any) (any, error) {
	ic.mu.RLock()
	constructor, exists := ic.constructors[typeName]
	ic.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %w: %q", ErrInstantiation, ErrUnknownType, typeName)
	}

	instance, err := constructor(args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInstantiation, typeName, err)
	}
	if instance == nil {
		return nil, fmt.Errorf("%w: constructor for %s returned nil", ErrInstantiation, typeName)
	}
	return instance, nil
}

// Has reports whether typeName is registered.
func (ic *StdInitialContext) Has(typeName string) bool {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	_, exists := ic.constructors[typeName]
	return exists
}

// Types returns the registered type names, sorted.
func (ic *StdInitialContext) Types() []string {
	ic.mu.RLock()
	defer ic.mu.RUnlock()

	names := make([]string, 0, len(ic.constructors))
	for name := range ic.constructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ReceiverConstructor builds a Receiver from the standard container arguments.
type ReceiverConstructor func(ic InitialContext, container *Container) (Receiver, error)

// ComponentConstructor builds any component (worker, thread strategy, ...) that is
// created with the standard (InitialContext, *Container) argument pair.
type ComponentConstructor[T any] func(ic InitialContext, container *Container) (T, error)

// RegisterReceiver registers a receiver type taking (InitialContext, *Container).
func RegisterReceiver(ic *StdInitialContext, typeName string, fn ReceiverConstructor) error {
	if fn == nil {
		return fmt.Errorf("%w: nil constructor for %s", ErrInvalidTypeRegistration, typeName)
	}
	return RegisterComponent(ic, typeName, ComponentConstructor[Receiver](fn))
}

// RegisterComponent registers a type whose constructor takes the standard
// (InitialContext, *Container) argument pair.
func RegisterComponent[T any](ic *StdInitialContext, typeName string, fn ComponentConstructor[T]) error {
	if fn == nil {
		return fmt.Errorf("%w: nil constructor for %s", ErrInvalidTypeRegistration, typeName)
	}
	return ic.Register(typeName, func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: want 2 arguments, got %d", ErrConstructorArgs, len(args))
		}
		initialContext, err := Arg[InitialContext](args, 0)
		if err != nil {
			return nil, err
		}
		container, err := Arg[*Container](args, 1)
		if err != nil {
			return nil, err
		}
		instance, err := fn(initialContext, container)
		if err != nil {
			return nil, err
		}
		return instance, nil
	})
}

// Arg extracts the i-th constructor argument as T.
func Arg[T any](args []any, i int) (T, error) {
	var zero T
	if i < 0 || i >= len(args) {
		return zero, fmt.Errorf("%w: missing argument %d", ErrConstructorArgs, i)
	}
	v, ok := args[i].(T)
	if !ok {
		return zero, fmt.Errorf("%w: argument %d is %T, want %v", ErrConstructorArgs, i, args[i], reflect.TypeFor[T]())
	}
	return v, nil
}
