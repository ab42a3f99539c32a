package receivers

import "errors"

// Static errors for the built-in components
var (
	ErrWrongComponentKind = errors.New("component has the wrong kind")
	ErrInvalidParam       = errors.New("invalid component parameter")
	ErrNoWorker           = errors.New("no worker configured")
)
