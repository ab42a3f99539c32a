package appserver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventCollector records every event it observes.
type eventCollector struct {
	id     string
	mu     sync.Mutex
	events []cloudevents.Event
}

func newEventCollector(id string) *eventCollector {
	return &eventCollector{id: id}
}

func (e *eventCollector) OnEvent(_ context.Context, event cloudevents.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *eventCollector) ObserverID() string { return e.id }

func (e *eventCollector) ofType(eventType string) []cloudevents.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []cloudevents.Event
	for _, ev := range e.events {
		if ev.Type() == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func (e *eventCollector) has(eventType string) func() bool {
	return func() bool { return len(e.ofType(eventType)) > 0 }
}

func newTestContext(t *testing.T) *StdInitialContext {
	t.Helper()
	ic := NewStdInitialContext()
	require.NoError(t, RegisterReceiver(ic, "Up", func(InitialContext, *Container) (Receiver, error) {
		return ReceiverFunc(func(context.Context) bool { return true }), nil
	}))
	require.NoError(t, RegisterReceiver(ic, "Down", func(InitialContext, *Container) (Receiver, error) {
		return ReceiverFunc(func(context.Context) bool { return false }), nil
	}))
	require.NoError(t, RegisterReceiver(ic, "Panics", func(InitialContext, *Container) (Receiver, error) {
		return ReceiverFunc(func(context.Context) bool { panic("start exploded") }), nil
	}))
	return ic
}

func TestServer_Deploy(t *testing.T) {
	s := NewServer(newTestContext(t), WithServerName("test"))

	c, err := s.Deploy("web", receiverConfig("Up"), []Application{NewAppDescriptor("shop", "")})
	require.NoError(t, err)
	assert.Equal(t, "web", c.Name())
	assert.Equal(t, s.ID(), c.Server())
	assert.False(t, c.IsStarted())

	_, err = s.Deploy("web", receiverConfig("Up"), nil)
	assert.ErrorIs(t, err, ErrContainerAlreadyDeployed)

	_, err = s.Deploy("", receiverConfig("Up"), nil)
	assert.ErrorIs(t, err, ErrContainerNameEmpty)

	got, err := s.Container("web")
	require.NoError(t, err)
	assert.Same(t, c, got)

	_, err = s.Container("missing")
	assert.ErrorIs(t, err, ErrContainerNotFound)
}

func TestServer_StartAndWait(t *testing.T) {
	s := NewServer(newTestContext(t))
	up, err := s.Deploy("up", receiverConfig("Up"), nil)
	require.NoError(t, err)
	down, err := s.Deploy("down", receiverConfig("Down"), nil)
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Wait())

	assert.True(t, up.IsStarted())
	assert.False(t, down.IsStarted())
	assert.Equal(t, []*Container{up, down}, s.Containers())
}

func TestServer_StartTwice(t *testing.T) {
	s := NewServer(newTestContext(t))
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrServerAlreadyStarted)
	require.NoError(t, s.Wait())
}

func TestServer_WaitBeforeStart(t *testing.T) {
	s := NewServer(newTestContext(t))
	assert.ErrorIs(t, s.Wait(), ErrServerNotStarted)
}

func TestServer_FailuresAreJoined(t *testing.T) {
	s := NewServer(newTestContext(t), WithMaxWorkers(1))
	_, err := s.Deploy("missing", NewNode("container", ""), nil)
	require.NoError(t, err)
	_, err = s.Deploy("unknown", receiverConfig("Nope"), nil)
	require.NoError(t, err)
	_, err = s.Deploy("panics", receiverConfig("Panics"), nil)
	require.NoError(t, err)
	ok, err := s.Deploy("ok", receiverConfig("Up"), nil)
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	err = s.Wait()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigurationResolution)
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.ErrorIs(t, err, ErrContainerPanicked)
	assert.Contains(t, err.Error(), "container missing")
	assert.True(t, ok.IsStarted())
}

func TestServer_DeployAfterStart(t *testing.T) {
	s := NewServer(newTestContext(t))
	require.NoError(t, s.Start(context.Background()))

	c, err := s.Deploy("late", receiverConfig("Up"), nil)
	require.NoError(t, err)

	require.NoError(t, s.Wait())
	assert.True(t, c.IsStarted())
}

func TestServer_Reconfigure(t *testing.T) {
	s := NewServer(newTestContext(t))
	c, err := s.Deploy("web", receiverConfig("Down"), nil)
	require.NoError(t, err)

	require.NoError(t, s.Reconfigure("web", receiverConfig("Up")))
	typeName, err := c.ReceiverType()
	require.NoError(t, err)
	assert.Equal(t, "Up", typeName)

	assert.ErrorIs(t, s.Reconfigure("missing", receiverConfig("Up")), ErrContainerNotFound)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Wait())
	assert.True(t, c.IsStarted())
}

func TestServer_Events(t *testing.T) {
	s := NewServer(newTestContext(t), WithServerName("events"))
	all := newEventCollector("all")
	failures := newEventCollector("failures")
	require.NoError(t, s.RegisterObserver(all))
	require.NoError(t, s.RegisterObserver(failures, EventTypeContainerFailed))

	_, err := s.Deploy("up", receiverConfig("Up"), []Application{NewAppDescriptor("shop", "")})
	require.NoError(t, err)
	_, err = s.Deploy("down", receiverConfig("Down"), nil)
	require.NoError(t, err)
	_, err = s.Deploy("broken", NewNode("container", ""), nil)
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	require.Error(t, s.Wait())

	for _, eventType := range []string{
		EventTypeContainerDeployed,
		EventTypeServerStarted,
		EventTypeContainerStarted,
		EventTypeContainerDeclined,
		EventTypeContainerFailed,
		EventTypeServerStopped,
	} {
		assert.Eventually(t, all.has(eventType), time.Second, 10*time.Millisecond, eventType)
	}

	assert.Eventually(t, failures.has(EventTypeContainerFailed), time.Second, 10*time.Millisecond)
	assert.Empty(t, failures.ofType(EventTypeContainerStarted))

	started := all.ofType(EventTypeContainerStarted)
	require.Len(t, started, 1)
	assert.Equal(t, "events", started[0].Source())
	assert.Equal(t, s.ID(), started[0].Extensions()[ServerExtension])
	assert.Equal(t, "up", started[0].Extensions()[ContainerExtension])

	var data ContainerEventData
	require.NoError(t, started[0].DataAs(&data))
	assert.Equal(t, "up", data.Container)
	assert.Equal(t, "Up", data.ReceiverType)
	assert.True(t, data.Started)
	assert.Equal(t, []string{"shop"}, data.Applications)

	failed := failures.ofType(EventTypeContainerFailed)
	require.Len(t, failed, 1)
	require.NoError(t, failed[0].DataAs(&data))
	assert.Equal(t, "broken", data.Container)
	assert.NotEmpty(t, data.Error)
}

func TestServer_ObserverRegistry(t *testing.T) {
	s := NewServer(newTestContext(t))
	obs := newEventCollector("one")

	require.NoError(t, s.RegisterObserver(obs, EventTypeContainerStarted))
	infos := s.GetObservers()
	require.Len(t, infos, 1)
	assert.Equal(t, "one", infos[0].ID)
	assert.Equal(t, []string{EventTypeContainerStarted}, infos[0].EventTypes)

	require.NoError(t, s.UnregisterObserver(obs))
	require.NoError(t, s.UnregisterObserver(obs))
	assert.Empty(t, s.GetObservers())
}

func TestServer_ObserverFailuresDoNotPropagate(t *testing.T) {
	s := NewServer(newTestContext(t))
	delivered := newEventCollector("healthy")
	require.NoError(t, s.RegisterObserver(NewFunctionalObserver("erroring", func(context.Context, cloudevents.Event) error {
		return errors.New("observer failed")
	})))
	require.NoError(t, s.RegisterObserver(NewFunctionalObserver("panicking", func(context.Context, cloudevents.Event) error {
		panic("observer panicked")
	})))
	require.NoError(t, s.RegisterObserver(delivered))

	_, err := s.Deploy("up", receiverConfig("Up"), nil)
	require.NoError(t, err)

	assert.Eventually(t, delivered.has(EventTypeContainerDeployed), time.Second, 10*time.Millisecond)
}

func TestServer_NotifyObservers_InvalidEvent(t *testing.T) {
	s := NewServer(newTestContext(t))
	event := cloudevents.NewEvent()
	assert.Error(t, s.NotifyObservers(context.Background(), event))
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	s := NewServer(newTestContext(t), WithMetrics(m))
	_, err = s.Deploy("up", receiverConfig("Up"), nil)
	require.NoError(t, err)
	_, err = s.Deploy("down", receiverConfig("Down"), nil)
	require.NoError(t, err)
	_, err = s.Deploy("broken", receiverConfig("Nope"), nil)
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	require.Error(t, s.Wait())

	assert.InDelta(t, 1, testutil.ToFloat64(m.runs.WithLabelValues(OutcomeStarted)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.runs.WithLabelValues(OutcomeDeclined)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.runs.WithLabelValues(OutcomeFailed)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.started), 0)

	_, err = NewMetrics(reg)
	assert.Error(t, err, "registering the same collectors twice must fail")
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.observeRun(OutcomeStarted, time.Millisecond) })
}

func TestServer_DeployAfterWaitIsNotRegistered(t *testing.T) {
	s := NewServer(newTestContext(t))
	_, err := s.Deploy("web", receiverConfig("Up"), nil)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Wait())

	_, err = s.Deploy("late", receiverConfig("Up"), nil)
	assert.ErrorIs(t, err, ErrPoolClosed)

	_, err = s.Container("late")
	assert.ErrorIs(t, err, ErrContainerNotFound)
	assert.Len(t, s.Containers(), 1)

	_, err = s.Deploy("late", receiverConfig("Up"), nil)
	assert.ErrorIs(t, err, ErrPoolClosed, "a retry must not see a half-registered container")
}

// lingeringReceiver keeps running for a while after its context is cancelled.
type lingeringReceiver struct {
	linger  time.Duration
	stopped atomic.Bool
	done    chan struct{}
}

func (r *lingeringReceiver) Start(ctx context.Context) bool {
	go func() {
		defer close(r.done)
		<-ctx.Done()
		time.Sleep(r.linger)
		r.stopped.Store(true)
	}()
	return true
}

func (r *lingeringReceiver) Done() <-chan struct{} { return r.done }

func TestServer_WaitJoinsBackgroundReceivers(t *testing.T) {
	ic := newTestContext(t)
	receiver := &lingeringReceiver{linger: 50 * time.Millisecond, done: make(chan struct{})}
	require.NoError(t, RegisterReceiver(ic, "Lingering", func(InitialContext, *Container) (Receiver, error) {
		return receiver, nil
	}))
	s := NewServer(ic)
	_, err := s.Deploy("bg", receiverConfig("Lingering"), nil)
	require.NoError(t, err)
	_, err = s.Deploy("down", receiverConfig("Down"), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	require.NoError(t, s.Wait())
	assert.True(t, receiver.stopped.Load())
}

func TestServer_ObserveContainer(t *testing.T) {
	s := NewServer(newTestContext(t))
	web := newEventCollector("web-only")
	webFailures := newEventCollector("web-failures")
	require.NoError(t, s.ObserveContainer(web, "web"))
	require.NoError(t, s.ObserveContainer(webFailures, "web", EventTypeContainerFailed))
	assert.ErrorIs(t, s.ObserveContainer(newEventCollector("x"), ""), ErrContainerNameEmpty)
	assert.ErrorIs(t, s.RegisterObserver(nil), ErrObserverNil)

	_, err := s.Deploy("web", receiverConfig("Up"), nil)
	require.NoError(t, err)
	_, err = s.Deploy("other", receiverConfig("Up"), nil)
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Wait())

	assert.Eventually(t, web.has(EventTypeContainerStarted), time.Second, 10*time.Millisecond)
	for _, event := range append(web.ofType(EventTypeContainerDeployed), web.ofType(EventTypeContainerStarted)...) {
		assert.Equal(t, "web", event.Extensions()[ContainerExtension])
	}
	assert.Len(t, web.ofType(EventTypeContainerStarted), 1)
	assert.Empty(t, web.ofType(EventTypeServerStarted), "server events carry no container")
	assert.Empty(t, webFailures.ofType(EventTypeContainerStarted))

	infos := s.GetObservers()
	require.Len(t, infos, 2)
	assert.Equal(t, "web-only", infos[0].ID)
	assert.Equal(t, "web", infos[0].Container)
	assert.Equal(t, []string{EventTypeContainerFailed}, infos[1].EventTypes)
}
