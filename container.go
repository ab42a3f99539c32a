package appserver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// ContainerOption configures a Container at construction.
type ContainerOption func(*Container)

// WithContainerName sets the name used in logs and events.
func WithContainerName(name string) ContainerOption {
	return func(c *Container) {
		c.name = name
	}
}

// WithContainerLogger sets the container logger.
func WithContainerLogger(logger Logger) ContainerOption {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Container holds one deployment unit: its configuration, its deployed
// applications and its started state. It resolves the receiver type from
// configuration, builds the receiver through the InitialContext and runs it.
//
// A Container is passive: it never spawns its own goroutine. The Server schedules
// Run on an execution unit it owns.
type Container struct {
	name           string
	initialContext InitialContext
	logger         Logger

	mu            sync.RWMutex
	configuration ContainerConfiguration
	applications  []Application
	server        string
	stopped       <-chan struct{}

	started atomic.Bool
	ran     atomic.Bool
}

// NewContainer stores its arguments verbatim. Nothing is validated until first use.
func NewContainer(ic InitialContext, cfg ContainerConfiguration, apps []Application, opts ...ContainerOption) *Container {
	c := &Container{
		initialContext: ic,
		configuration:  cfg,
		applications:   apps,
		logger:         nopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run resolves and instantiates the receiver, starts it and records whether it
// came up. Resolution and instantiation errors are returned unchanged in kind and
// leave the started flag untouched. A receiver that declines to start is not an
// error: Run returns nil and IsStarted reports false.
//
// Run blocks for as long as the receiver's Start does. It may be called once.
func (c *Container) Run(ctx context.Context) error {
	if !c.ran.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %s", ErrContainerAlreadyRun, c.name)
	}

	receiver, err := c.Receiver()
	if err != nil {
		c.logger.Error("Failed to create receiver", "container", c.name, "error", err)
		return err
	}

	c.logger.Debug("Starting receiver", "container", c.name, "receiver", fmt.Sprintf("%T", receiver))
	started := receiver.Start(ctx)
	c.started.Store(started)

	if bg, ok := receiver.(BackgroundReceiver); ok && started {
		c.mu.Lock()
		c.stopped = bg.Done()
		c.mu.Unlock()
	}

	if started {
		c.logger.Info("Container started", "container", c.name)
	} else {
		c.logger.Warn("Receiver declined to start", "container", c.name)
	}
	return nil
}

// Receiver builds a new receiver of the configured type. Every call yields a fresh
// instance constructed with (InitialContext, container).
func (c *Container) Receiver() (Receiver, error) {
	typeName, err := c.ReceiverType()
	if err != nil {
		return nil, err
	}

	instance, err := c.NewInstance(typeName, c.initialContext, c)
	if err != nil {
		return nil, fmt.Errorf("failed to create receiver %q: %w", typeName, err)
	}

	receiver, ok := instance.(Receiver)
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s is %T", ErrInstantiation, ErrNotAReceiver, typeName, instance)
	}
	return receiver, nil
}

// ReceiverConfiguration returns the first node under ReceiverPath.
func (c *Container) ReceiverConfiguration() (ConfigNode, error) {
	return firstChild(c.Configuration(), ReceiverPath)
}

// WorkerConfiguration returns the first node under WorkerPath.
func (c *Container) WorkerConfiguration() (ConfigNode, error) {
	return firstChild(c.Configuration(), WorkerPath)
}

// ThreadConfiguration returns the first node under ThreadPath.
func (c *Container) ThreadConfiguration() (ConfigNode, error) {
	return firstChild(c.Configuration(), ThreadPath)
}

// ReceiverType returns the type name of the receiver node.
func (c *Container) ReceiverType() (string, error) {
	return resolveType(c.Configuration(), ReceiverPath)
}

// WorkerType returns the type name of the receiver's worker node.
func (c *Container) WorkerType() (string, error) {
	return resolveType(c.Configuration(), WorkerPath)
}

// ThreadType returns the type name of the receiver's thread node.
func (c *Container) ThreadType() (string, error) {
	return resolveType(c.Configuration(), ThreadPath)
}

func resolveType(cfg ContainerConfiguration, path string) (string, error) {
	node, err := firstChild(cfg, path)
	if err != nil {
		return "", err
	}
	return node.Type(), nil
}

// NewInstance delegates to the InitialContext so receivers can build further
// components through the same factory.
func (c *Container) NewInstance(typeName string, args ...any) (any, error) {
	if c.initialContext == nil {
		return nil, fmt.Errorf("%w: %w", ErrInstantiation, ErrInitialContextNil)
	}
	instance, err := c.initialContext.NewInstance(typeName, args...)
	if err != nil {
		return nil, err
	}
	return instance, nil
}

// InitialContext returns the factory the container was created with.
func (c *Container) InitialContext() InitialContext {
	return c.initialContext
}

// Applications returns the deployed applications.
func (c *Container) Applications() []Application {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.applications
}

// SetApplications replaces the deployed applications.
func (c *Container) SetApplications(apps []Application) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applications = apps
}

// Configuration returns the current container configuration.
func (c *Container) Configuration() ContainerConfiguration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.configuration
}

// SetConfiguration replaces the container configuration.
func (c *Container) SetConfiguration(cfg ContainerConfiguration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configuration = cfg
}

// IsStarted reports whether the container has been marked started.
func (c *Container) IsStarted() bool {
	return c.started.Load()
}

// SetStarted unconditionally marks the container as started.
func (c *Container) SetStarted() {
	c.started.Store(true)
}

// Name returns the container name.
func (c *Container) Name() string {
	return c.name
}

// Logger returns the container logger.
func (c *Container) Logger() Logger {
	return c.logger
}

// Server returns the ID of the owning server, or "" when not deployed.
func (c *Container) Server() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.server
}

// stoppedChan returns the Done channel of a started BackgroundReceiver, or nil.
func (c *Container) stoppedChan() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stopped
}

func (c *Container) setServer(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.server = id
}
