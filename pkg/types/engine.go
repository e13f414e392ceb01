package types

import "errors"

// Engine runs migrations against an external store. Callers attach to a
// backend, run migrations, and detach when done.
type Engine interface {
	// Attach connects the engine to the backend described by config.
	// Creates the DataDir if it does not exist. Returns ErrAlreadyAttached
	// if called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent: multiple calls succeed.
	// After Detach, migrations return ErrBackendDetached.
	Detach() error

	// RunDelta computes Δ_F(I) in the store and reads the result back.
	RunDelta(f *Mapping, i *Instance) (*Instance, error)
}

// Engine lifecycle errors.
var (
	ErrAlreadyAttached = errors.New("backend already attached")
	ErrBackendDetached = errors.New("backend is detached")
)
