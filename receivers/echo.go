package receivers

import (
	"context"

	"github.com/GoCodeAlone/appserver"
)

// EchoReceiver logs its container and applications and always starts.
type EchoReceiver struct {
	container *appserver.Container
}

// NewEchoReceiver creates an EchoReceiver.
func NewEchoReceiver(_ appserver.InitialContext, c *appserver.Container) (appserver.Receiver, error) {
	return &EchoReceiver{container: c}, nil
}

func (r *EchoReceiver) Start(context.Context) bool {
	r.container.Logger().Info("Echo receiver started",
		"container", r.container.Name(),
		"applications", appNames(r.container.Applications()),
	)
	return true
}
