package domain

import "errors"

var (
	// ErrMalformedTrade marks input that can never be processed.
	ErrMalformedTrade = errors.New("malformed trade")
	// ErrUnknownSymbol is returned for symbols outside the allow-list.
	ErrUnknownSymbol = errors.New("unknown symbol")
	// ErrSymbolLimit is returned when the worker registry is full.
	ErrSymbolLimit = errors.New("symbol limit reached")
	// ErrMailboxFull is returned when a drop policy rejects an event.
	ErrMailboxFull = errors.New("mailbox full")
	// ErrStateCorruption means derived state holds non-finite or impossible values.
	ErrStateCorruption = errors.New("state corruption")
	// ErrSinkUnavailable wraps sink write failures.
	ErrSinkUnavailable = errors.New("sink unavailable")
	// ErrRouterClosed is returned once the router has been stopped.
	ErrRouterClosed = errors.New("router closed")
	// ErrSymbolNotTracked is returned by introspection for unknown workers.
	ErrSymbolNotTracked = errors.New("symbol not tracked")
)
