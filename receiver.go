package appserver

import "context"

// Receiver is the pluggable component a Container resolves from configuration and
// runs. Start reports whether the receiver came up; returning false is a normal
// outcome, not an error.
type Receiver interface {
	Start(ctx context.Context) bool
}

// ReceiverFunc adapts a function to the Receiver interface.
type ReceiverFunc func(ctx context.Context) bool

func (f ReceiverFunc) Start(ctx context.Context) bool {
	return f(ctx)
}

// BackgroundReceiver is a Receiver that keeps serving after Start returned true.
// Done is closed once it has shut down after the Start context was cancelled.
type BackgroundReceiver interface {
	Receiver
	Done() <-chan struct{}
}
