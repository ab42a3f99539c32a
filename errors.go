package appserver

import (
	"errors"
	"fmt"
)

// Container and server errors
var (
	// Type resolution errors
	ErrConfigurationResolution = errors.New("configuration resolution failed")
	ErrConfigurationNil        = fmt.Errorf("%w: container configuration is nil", ErrConfigurationResolution)

	// Instantiation errors
	ErrInstantiation           = errors.New("instantiation failed")
	ErrUnknownType             = errors.New("unknown type")
	ErrConstructorArgs         = errors.New("constructor argument mismatch")
	ErrNotAReceiver            = errors.New("instance does not implement Receiver")
	ErrInitialContextNil       = errors.New("initial context is nil")
	ErrInvalidTypeRegistration = errors.New("invalid type registration")
	ErrTypeAlreadyRegistered   = errors.New("type already registered")

	// Lifecycle errors
	ErrContainerAlreadyRun      = errors.New("container has already been run")
	ErrContainerPanicked        = errors.New("container panicked while running")
	ErrContainerNotFound        = errors.New("container not found")
	ErrContainerAlreadyDeployed = errors.New("container already deployed")
	ErrContainerNameEmpty       = errors.New("container name cannot be empty")
	ErrServerAlreadyStarted     = errors.New("server already started")
	ErrServerNotStarted         = errors.New("server not started")

	// Pool errors
	ErrTaskNil      = errors.New("task cannot be nil")
	ErrTaskPanicked = errors.New("task panicked")
	ErrPoolClosed   = errors.New("pool is closed")

	// Observer errors
	ErrObserverNil = errors.New("observer cannot be nil")
)
