package receivers

import (
	"fmt"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/GoCodeAlone/appserver"
)

// AppParam is the route parameter carrying the application name.
const AppParam = "app"

// EchoWorker answers HTTP requests with the application name and, as a cron
// job, logs a heartbeat for every application of its container.
type EchoWorker struct {
	container *appserver.Container
}

// NewEchoWorker creates an EchoWorker.
func NewEchoWorker(_ appserver.InitialContext, c *appserver.Container) (*EchoWorker, error) {
	return &EchoWorker{container: c}, nil
}

func (w *EchoWorker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(rw, "%s\n", chi.URLParam(r, AppParam))
}

// Run implements cron.Job.
func (w *EchoWorker) Run() {
	w.container.Logger().Info("Heartbeat",
		"container", w.container.Name(),
		"applications", appNames(w.container.Applications()),
	)
}

// pather is implemented by applications that live on disk.
type pather interface {
	AppPath() string
}

// StaticWorker serves files from the requested application's path.
type StaticWorker struct {
	container *appserver.Container
}

// NewStaticWorker creates a StaticWorker.
func NewStaticWorker(_ appserver.InitialContext, c *appserver.Container) (*StaticWorker, error) {
	return &StaticWorker{container: c}, nil
}

func (w *StaticWorker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, AppParam)
	for _, app := range w.container.Applications() {
		if app.Name() != name {
			continue
		}
		p, ok := app.(pather)
		if !ok || p.AppPath() == "" {
			break
		}
		prefix := path.Join("/apps", name)
		http.StripPrefix(prefix, http.FileServer(http.Dir(p.AppPath()))).ServeHTTP(rw, r)
		return
	}
	http.NotFound(rw, r)
}
