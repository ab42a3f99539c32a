package receivers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/GoCodeAlone/appserver"
)

// HttpReceiver defaults.
const (
	DefaultHTTPAddress     = "127.0.0.1:0"
	DefaultShutdownTimeout = 5 * time.Second
)

// Status is the body of GET /status.
type Status struct {
	Container    string   `json:"container"`
	Started      bool     `json:"started"`
	Receiver     string   `json:"receiver"`
	Worker       string   `json:"worker,omitempty"`
	Thread       string   `json:"thread,omitempty"`
	Applications []string `json:"applications"`
}

// HttpReceiver serves the container's applications over HTTP. The worker
// configured under the receiver handles /apps/{app}/*, wrapped by the
// configured thread; GET /status reports the container state.
//
// Receiver params: address (default 127.0.0.1:0) and shutdown_timeout
// (a time.Duration string, default 5s).
type HttpReceiver struct {
	container *appserver.Container

	mu     sync.Mutex
	addr   net.Addr
	server *http.Server
	done   chan struct{}
}

// NewHttpReceiver creates an HttpReceiver.
func NewHttpReceiver(_ appserver.InitialContext, c *appserver.Container) (appserver.Receiver, error) {
	return &HttpReceiver{container: c, done: make(chan struct{})}, nil
}

// Start builds the routes, binds the listener and serves in the background
// until ctx is done. It returns false if the worker or thread cannot be built
// or the address cannot be bound.
func (r *HttpReceiver) Start(ctx context.Context) bool {
	logger := r.container.Logger()
	name := r.container.Name()

	handler, err := r.routes()
	if err != nil {
		logger.Error("Failed to build HTTP routes", "container", name, "error", err)
		return false
	}

	node, _ := r.container.ReceiverConfiguration()
	address := param(node, "address", DefaultHTTPAddress)
	shutdownTimeout := DefaultShutdownTimeout
	if raw := param(node, "shutdown_timeout", ""); raw != "" {
		if shutdownTimeout, err = time.ParseDuration(raw); err != nil {
			logger.Error("Invalid shutdown_timeout", "container", name, "value", raw, "error", err)
			return false
		}
	}

	ln, err := net.Listen("tcp", address)
	if err != nil {
		logger.Error("Failed to listen", "container", name, "address", address, "error", err)
		return false
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	r.mu.Lock()
	r.addr = ln.Addr()
	r.server = srv
	r.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "container", name, "error", err)
		}
	}()

	go func() {
		defer close(r.done)
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed", "container", name, "error", err)
			return
		}
		logger.Info("HTTP receiver stopped", "container", name)
	}()

	logger.Info("HTTP receiver listening", "container", name, "address", ln.Addr().String())
	return true
}

// Addr returns the bound address, or "" before Start succeeded.
func (r *HttpReceiver) Addr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.addr == nil {
		return ""
	}
	return r.addr.String()
}

// Done is closed once the server has shut down after ctx was cancelled.
func (r *HttpReceiver) Done() <-chan struct{} {
	return r.done
}

func (r *HttpReceiver) routes() (http.Handler, error) {
	c := r.container

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Get("/status", r.status)

	worker, found, err := build[http.Handler](c, c.WorkerType)
	if err != nil {
		return nil, err
	}
	if !found {
		c.Logger().Warn("No worker configured, serving status only", "container", c.Name())
		return router, nil
	}

	thread, found, err := build[Thread](c, c.ThreadType)
	if err != nil {
		return nil, err
	}
	if !found {
		thread = DirectThread{}
	}

	router.Route("/apps/{"+AppParam+"}", func(apps chi.Router) {
		apps.Use(r.deployedOnly)
		apps.Handle("/*", thread.Wrap(worker))
	})
	return router, nil
}

// deployedOnly answers 404 for applications not deployed in the container.
func (r *HttpReceiver) deployedOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if !slices.Contains(appNames(r.container.Applications()), chi.URLParam(req, AppParam)) {
			http.NotFound(rw, req)
			return
		}
		next.ServeHTTP(rw, req)
	})
}

func (r *HttpReceiver) status(rw http.ResponseWriter, _ *http.Request) {
	c := r.container
	s := Status{
		Container:    c.Name(),
		Started:      c.IsStarted(),
		Applications: appNames(c.Applications()),
	}
	s.Receiver, _ = c.ReceiverType()
	s.Worker, _ = c.WorkerType()
	s.Thread, _ = c.ThreadType()

	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(s); err != nil {
		c.Logger().Error("Failed to encode status", "container", c.Name(), "error", err)
	}
}

var _ appserver.BackgroundReceiver = (*HttpReceiver)(nil)
