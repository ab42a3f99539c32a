package receivers

import (
	"fmt"
	"net/http"
	"reflect"

	"github.com/golobby/cast"

	"github.com/GoCodeAlone/appserver"
)

// Thread decides how a worker's requests are executed.
type Thread interface {
	Wrap(next http.Handler) http.Handler
}

// DirectThread runs every request on the serving goroutine.
type DirectThread struct{}

// NewDirectThread creates a DirectThread.
func NewDirectThread(appserver.InitialContext, *appserver.Container) (*DirectThread, error) {
	return &DirectThread{}, nil
}

func (DirectThread) Wrap(next http.Handler) http.Handler { return next }

// DefaultMaxConcurrency is used when BoundedThread has no max_concurrency param.
const DefaultMaxConcurrency = 16

// BoundedThread admits at most a fixed number of concurrent requests and
// answers 503 to the rest.
type BoundedThread struct {
	slots chan struct{}
}

// NewBoundedThread reads max_concurrency from the thread configuration.
func NewBoundedThread(_ appserver.InitialContext, c *appserver.Container) (*BoundedThread, error) {
	limit := DefaultMaxConcurrency
	if node, err := c.ThreadConfiguration(); err == nil {
		if raw, ok := node.Param("max_concurrency"); ok {
			v, err := cast.FromType(raw, reflect.TypeOf(limit))
			if err != nil {
				return nil, fmt.Errorf("%w: max_concurrency %q: %w", ErrInvalidParam, raw, err)
			}
			limit = v.(int)
		}
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: max_concurrency must be positive, got %d", ErrInvalidParam, limit)
	}
	return &BoundedThread{slots: make(chan struct{}, limit)}, nil
}

// Capacity returns the concurrency limit.
func (t *BoundedThread) Capacity() int { return cap(t.slots) }

func (t *BoundedThread) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		select {
		case t.slots <- struct{}{}:
			defer func() { <-t.slots }()
			next.ServeHTTP(rw, r)
		default:
			http.Error(rw, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
