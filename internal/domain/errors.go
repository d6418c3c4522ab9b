package domain

import "github.com/pkg/errors"

var (
	// ErrInvalidArgument is returned synchronously for arguments the caller must not pass,
	// e.g. a non-positive aggregation step.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrEmptyOrderbook means one side of a depth snapshot had no levels.
	ErrEmptyOrderbook = errors.New("orderbook side is empty")
	// ErrNoSymbols is returned when a stream is requested for an empty symbol set.
	ErrNoSymbols = errors.Wrap(ErrInvalidArgument, "no symbols to subscribe")
)
