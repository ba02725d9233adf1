package coordinator

import "errors"

var (
	// ErrUnknownAgent marks a lookup for an agent the coordinator never spawned or already removed
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrNotInitialized marks a spawn attempted before Initialize discovered entrances
	ErrNotInitialized = errors.New("coordinator not initialized")

	ErrAlreadyInitialized = errors.New("coordinator already initialized")
	ErrNoEntrances        = errors.New("no entrances found")
	ErrInvalidConfig      = errors.New("invalid coordinator config")
)
