package receivers

import (
	"errors"

	"github.com/GoCodeAlone/appserver"
)

// Built-in type names.
const (
	EchoReceiverType = "EchoReceiver"
	HttpReceiverType = "HttpReceiver"
	CronReceiverType = "CronReceiver"

	EchoWorkerType   = "EchoWorker"
	StaticWorkerType = "StaticWorker"

	DirectThreadType  = "DirectThread"
	BoundedThreadType = "BoundedThread"
)

// Register adds every built-in type to ic.
func Register(ic *appserver.StdInitialContext) error {
	return errors.Join(
		appserver.RegisterReceiver(ic, EchoReceiverType, NewEchoReceiver),
		appserver.RegisterReceiver(ic, HttpReceiverType, NewHttpReceiver),
		appserver.RegisterReceiver(ic, CronReceiverType, NewCronReceiver),
		appserver.RegisterComponent(ic, EchoWorkerType, NewEchoWorker),
		appserver.RegisterComponent(ic, StaticWorkerType, NewStaticWorker),
		appserver.RegisterComponent(ic, DirectThreadType, NewDirectThread),
		appserver.RegisterComponent(ic, BoundedThreadType, NewBoundedThread),
	)
}
