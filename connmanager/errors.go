package connmanager

import (
	"github.com/pkg/errors"
)

var (
	// ErrDuplicateEndpoint is returned when registering an endpoint whose
	// address is already present.
	ErrDuplicateEndpoint = errors.New("endpoint already registered")

	// ErrUnknownEndpoint is returned when removing an endpoint that is not
	// registered.
	ErrUnknownEndpoint = errors.New("unknown endpoint")

	// ErrUnknownObserver is returned when removing an observer that was
	// never added.
	ErrUnknownObserver = errors.New("unknown observer")

	// ErrInvalidArgument is returned on malformed input, such as a nil
	// endpoint or an endpoint without an address.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotImplemented marks operations that are declared but not
	// supported.
	ErrNotImplemented = errors.New("not implemented")
)
