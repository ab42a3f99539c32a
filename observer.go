package appserver

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Observer is notified of lifecycle events emitted by a Server.
type Observer interface {
	// OnEvent is called for every event the observer subscribed to.
	// Observers should return quickly; they run on their own goroutine.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer.
	ObserverID() string
}

// Subject is implemented by event emitters.
type Subject interface {
	// RegisterObserver adds an observer. With no eventTypes the observer
	// receives every event.
	RegisterObserver(observer Observer, eventTypes ...string) error

	// UnregisterObserver removes an observer. Unknown observers are ignored.
	UnregisterObserver(observer Observer) error

	// NotifyObservers delivers event to all interested observers.
	NotifyObservers(ctx context.Context, event cloudevents.Event) error

	// GetObservers describes the registered observers.
	GetObservers() []ObserverInfo
}

// ObserverInfo describes a registered observer.
type ObserverInfo struct {
	ID           string    `json:"id"`
	EventTypes   []string  `json:"eventTypes"`
	Container    string    `json:"container,omitempty"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// CloudEvents extension attributes set on lifecycle events. Every event carries
// the server ID; container events also carry the container name.
const (
	ServerExtension    = "serverid"
	ContainerExtension = "container"
)

// CloudEvent types emitted by the server.
const (
	EventTypeContainerDeployed     = "com.appserver.container.deployed"
	EventTypeContainerStarted      = "com.appserver.container.started"
	EventTypeContainerDeclined     = "com.appserver.container.declined"
	EventTypeContainerFailed       = "com.appserver.container.failed"
	EventTypeContainerReconfigured = "com.appserver.container.reconfigured"

	EventTypeServerStarted = "com.appserver.server.started"
	EventTypeServerStopped = "com.appserver.server.stopped"
)

// FunctionalObserver turns a function into an Observer.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates an observer backed by handler.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{
		id:      id,
		handler: handler,
	}
}

func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

func (f *FunctionalObserver) ObserverID() string {
	return f.id
}
