package core

import "errors"

var (
	// ErrNotInitialized is returned by every adapter operation except
	// Setup while the adapter has not reached the Ready state.
	ErrNotInitialized = errors.New("adapter is not initialized; call Setup first")

	// ErrRecordNotFound is returned by Get when the id is absent.
	ErrRecordNotFound = errors.New("record not found")

	// ErrCollectionNotRegistered is returned by write operations
	// targeting a model whose table was never registered. Read
	// operations treat the same condition as an empty result instead.
	ErrCollectionNotRegistered = errors.New("collection is not registered")

	// ErrNoBackend is returned when an operation requires a bound
	// backend and none is attached.
	ErrNoBackend = errors.New("no backend adapter is bound")

	// ErrBackendClosed is returned by operations on a closed backend.
	ErrBackendClosed = errors.New("backend is closed")
)
