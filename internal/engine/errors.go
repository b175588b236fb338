package engine

import "errors"

// Errors shared across engine backends.
var (
	// ErrKeyNotFound is returned by Remove for an absent key.
	ErrKeyNotFound = errors.New("key not found")

	// ErrWrongEngine is returned when a data directory was claimed by a
	// different engine kind.
	ErrWrongEngine = errors.New("wrong engine for data directory")

	// ErrLocked is returned when another engine instance already owns
	// the data directory.
	ErrLocked = errors.New("data directory already in use")

	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("engine closed")
)
