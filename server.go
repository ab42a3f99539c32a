package appserver

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerName sets the server name used as the CloudEvents source.
func WithServerName(name string) ServerOption {
	return func(s *Server) {
		if name != "" {
			s.name = name
		}
	}
}

// WithServerLogger sets the logger shared by the server and its containers.
func WithServerLogger(logger Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxWorkers bounds how many containers run at once. 0 (the default) gives
// every container a dedicated execution unit.
func WithMaxWorkers(n int) ServerOption {
	return func(s *Server) {
		if n >= 0 {
			s.maxWorkers = n
		}
	}
}

// WithMetrics records container run outcomes on m.
func WithMetrics(m *Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// observerRegistration is one subscription. An empty eventTypes set matches
// every type; an empty container matches every container and server events.
type observerRegistration struct {
	observer     Observer
	eventTypes   map[string]bool
	container    string
	registeredAt time.Time
	seq          uint64
}

func (r *observerRegistration) matches(event cloudevents.Event) bool {
	if len(r.eventTypes) > 0 && !r.eventTypes[event.Type()] {
		return false
	}
	if r.container == "" {
		return true
	}
	name, _ := event.Extensions()[ContainerExtension].(string)
	return name == r.container
}

// Server owns a set of containers and the pool their Run methods execute on.
// Containers hold only the server's ID, never a pointer back to it.
type Server struct {
	id             string
	name           string
	initialContext InitialContext
	logger         Logger
	metrics        *Metrics
	maxWorkers     int

	mu         sync.RWMutex
	containers []*Container
	byName     map[string]*Container
	pool       *Pool
	ctx        context.Context
	started    bool

	observerMutex sync.RWMutex
	observers     map[string]*observerRegistration
	observerSeq   uint64
}

// NewServer creates a server that builds receivers through ic.
func NewServer(ic InitialContext, opts ...ServerOption) *Server {
	s := &Server{
		id:             newServerID(),
		name:           "appserver",
		initialContext: ic,
		logger:         nopLogger{},
		byName:         make(map[string]*Container),
		observers:      make(map[string]*observerRegistration),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newServerID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// ID returns the server's unique identifier.
func (s *Server) ID() string { return s.id }

// Name returns the server name.
func (s *Server) Name() string { return s.name }

// Logger returns the server logger.
func (s *Server) Logger() Logger { return s.logger }

// Deploy constructs a container for cfg and apps and adds it to the server.
// If the server is already started the container is scheduled immediately.
func (s *Server) Deploy(name string, cfg ContainerConfiguration, apps []Application, opts ...ContainerOption) (*Container, error) {
	if name == "" {
		return nil, ErrContainerNameEmpty
	}

	s.mu.Lock()
	if _, exists := s.byName[name]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrContainerAlreadyDeployed, name)
	}

	base := []ContainerOption{WithContainerName(name), WithContainerLogger(s.logger)}
	c := NewContainer(s.initialContext, cfg, apps, append(base, opts...)...)
	c.setServer(s.id)

	// A container that cannot be scheduled is never registered.
	if s.started {
		if err := s.schedule(c); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	s.containers = append(s.containers, c)
	s.byName[name] = c
	s.mu.Unlock()

	s.logger.Info("Deployed container", "container", name, "applications", len(apps))
	s.emitContainerEvent(context.Background(), EventTypeContainerDeployed, c, nil)
	return c, nil
}

// Container returns the container deployed under name.
func (s *Server) Container(name string) (*Container, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.byName[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, name)
	}
	return c, nil
}

// Containers returns the deployed containers in deploy order.
func (s *Server) Containers() []*Container {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Container, len(s.containers))
	copy(out, s.containers)
	return out
}

// Reconfigure replaces a container's configuration. Calls are serialized by the
// server; the new configuration applies to every later type resolution.
func (s *Server) Reconfigure(name string, cfg ContainerConfiguration) error {
	s.mu.Lock()
	c, exists := s.byName[name]
	if exists {
		c.SetConfiguration(cfg)
	}
	s.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrContainerNotFound, name)
	}

	s.logger.Info("Reconfigured container", "container", name)
	s.emitContainerEvent(context.Background(), EventTypeContainerReconfigured, c, nil)
	return nil
}

// Start schedules every deployed container onto the server's pool. It returns
// once scheduling is done; use Wait to join the containers.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrServerAlreadyStarted
	}
	s.started = true
	s.ctx = ctx
	s.pool = NewPool(s.maxWorkers)

	for _, c := range s.containers {
		if err := s.schedule(c); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	count := len(s.containers)
	s.mu.Unlock()

	s.logger.Info("Server started", "server", s.id, "name", s.name, "containers", count)
	s.emitEvent(ctx, EventTypeServerStarted, map[string]any{"server": s.id, "containers": count})
	return nil
}

// Wait blocks until every scheduled container's Run has returned and every
// started BackgroundReceiver has shut down, then reports the container failures
// joined together. Background receivers stop when the Start context is done.
func (s *Server) Wait() error {
	s.mu.RLock()
	pool := s.pool
	s.mu.RUnlock()

	if pool == nil {
		return ErrServerNotStarted
	}

	err := pool.Wait()
	for _, c := range s.Containers() {
		if stopped := c.stoppedChan(); stopped != nil {
			s.logger.Debug("Waiting for receiver shutdown", "container", c.Name())
			<-stopped
		}
	}
	s.logger.Info("Server stopped", "server", s.id)
	s.emitEvent(context.Background(), EventTypeServerStopped, map[string]any{"server": s.id})
	return err
}

// schedule must be called with s.mu held.
func (s *Server) schedule(c *Container) error {
	if err := s.pool.Submit(s.ctx, func(ctx context.Context) error {
		return s.runContainer(ctx, c)
	}); err != nil {
		return fmt.Errorf("failed to schedule container %s: %w", c.Name(), err)
	}
	return nil
}

func (s *Server) runContainer(ctx context.Context, c *Container) error {
	begin := time.Now()
	err := safeRun(ctx, c)
	elapsed := time.Since(begin)

	if err != nil {
		s.metrics.observeRun(OutcomeFailed, elapsed)
		s.logger.Error("Container failed", "container", c.Name(), "error", err)
		s.emitContainerEvent(ctx, EventTypeContainerFailed, c, err)
		return fmt.Errorf("container %s: %w", c.Name(), err)
	}

	if c.IsStarted() {
		s.metrics.observeRun(OutcomeStarted, elapsed)
		s.emitContainerEvent(ctx, EventTypeContainerStarted, c, nil)
	} else {
		s.metrics.observeRun(OutcomeDeclined, elapsed)
		s.emitContainerEvent(ctx, EventTypeContainerDeclined, c, nil)
	}
	return nil
}

func safeRun(ctx context.Context, c *Container) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrContainerPanicked, r)
		}
	}()
	return c.Run(ctx)
}

func (s *Server) eventData(c *Container, err error) ContainerEventData {
	data := ContainerEventData{
		Container: c.Name(),
		Server:    s.id,
		Started:   c.IsStarted(),
	}
	if typeName, resolveErr := c.ReceiverType(); resolveErr == nil {
		data.ReceiverType = typeName
	}
	for _, app := range c.Applications() {
		data.Applications = append(data.Applications, app.Name())
	}
	if err != nil {
		data.Error = err.Error()
	}
	return data
}

// RegisterObserver subscribes observer to server and container events. With no
// eventTypes it receives every event. Registering an ID again replaces the
// earlier subscription.
func (s *Server) RegisterObserver(observer Observer, eventTypes ...string) error {
	return s.subscribe(observer, "", eventTypes)
}

// ObserveContainer subscribes observer to the events of one container only.
// The container does not need to be deployed yet.
func (s *Server) ObserveContainer(observer Observer, container string, eventTypes ...string) error {
	if container == "" {
		return ErrContainerNameEmpty
	}
	return s.subscribe(observer, container, eventTypes)
}

func (s *Server) subscribe(observer Observer, container string, eventTypes []string) error {
	if observer == nil {
		return ErrObserverNil
	}

	types := make(map[string]bool, len(eventTypes))
	for _, eventType := range eventTypes {
		types[eventType] = true
	}

	s.observerMutex.Lock()
	s.observers[observer.ObserverID()] = &observerRegistration{
		observer:     observer,
		eventTypes:   types,
		container:    container,
		registeredAt: time.Now(),
		seq:          s.observerSeq,
	}
	s.observerSeq++
	s.observerMutex.Unlock()

	s.logger.Debug("Observer registered", "observer", observer.ObserverID(), "container", container, "eventTypes", eventTypes)
	return nil
}

// UnregisterObserver removes observer. Unknown observers are ignored.
func (s *Server) UnregisterObserver(observer Observer) error {
	if observer == nil {
		return ErrObserverNil
	}

	s.observerMutex.Lock()
	_, existed := s.observers[observer.ObserverID()]
	delete(s.observers, observer.ObserverID())
	s.observerMutex.Unlock()

	if existed {
		s.logger.Debug("Observer unregistered", "observer", observer.ObserverID())
	}
	return nil
}

// NotifyObservers validates event and delivers it to each matching observer on
// its own goroutine. Observer errors and panics are logged and dropped.
func (s *Server) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	if event.Time().IsZero() {
		event.SetTime(time.Now())
	}
	if err := ValidateCloudEvent(event); err != nil {
		s.logger.Error("Dropping invalid lifecycle event", "type", event.Type(), "error", err)
		return err
	}

	s.observerMutex.RLock()
	defer s.observerMutex.RUnlock()

	for _, registration := range s.observers {
		if registration.matches(event) {
			go s.deliver(ctx, registration.observer, event)
		}
	}
	return nil
}

func (s *Server) deliver(ctx context.Context, observer Observer, event cloudevents.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Observer panicked", "observer", observer.ObserverID(), "type", event.Type(), "panic", r)
		}
	}()
	if err := observer.OnEvent(ctx, event); err != nil {
		s.logger.Warn("Observer failed", "observer", observer.ObserverID(), "type", event.Type(), "error", err)
	}
}

// GetObservers lists the subscriptions, oldest first.
func (s *Server) GetObservers() []ObserverInfo {
	s.observerMutex.RLock()
	registrations := make([]*observerRegistration, 0, len(s.observers))
	for _, registration := range s.observers {
		registrations = append(registrations, registration)
	}
	s.observerMutex.RUnlock()

	slices.SortFunc(registrations, func(a, b *observerRegistration) int {
		return cmp.Compare(a.seq, b.seq)
	})

	info := make([]ObserverInfo, 0, len(registrations))
	for _, registration := range registrations {
		eventTypes := make([]string, 0, len(registration.eventTypes))
		for eventType := range registration.eventTypes {
			eventTypes = append(eventTypes, eventType)
		}
		slices.Sort(eventTypes)
		info = append(info, ObserverInfo{
			ID:           registration.observer.ObserverID(),
			EventTypes:   eventTypes,
			Container:    registration.container,
			RegisteredAt: registration.registeredAt,
		})
	}
	return info
}

func (s *Server) emitContainerEvent(ctx context.Context, eventType string, c *Container, err error) {
	s.emit(ctx, eventType, s.eventData(c, err), map[string]any{
		ServerExtension:    s.id,
		ContainerExtension: c.Name(),
	})
}

func (s *Server) emitEvent(ctx context.Context, eventType string, data any) {
	s.emit(ctx, eventType, data, map[string]any{ServerExtension: s.id})
}

func (s *Server) emit(ctx context.Context, eventType string, data any, extensions map[string]any) {
	// NotifyObservers already logs rejected events.
	_ = s.NotifyObservers(ctx, NewCloudEvent(eventType, s.name, data, extensions))
}

var _ Subject = (*Server)(nil)
