// Package sqlite provides the public API for the SQLite migration engine.
// This package exposes the factory function for creating SQLite engines
// while keeping the statement planner internal.
package sqlite

import (
	"go.uber.org/zap"

	"github.com/mesh-intelligence/catmig/internal/sqlite"
	"github.com/mesh-intelligence/catmig/pkg/types"
)

// NewBackend creates a new SQLite engine that logs statements to logger.
// The engine is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	engine := sqlite.NewBackend(zap.NewNop())
//	err := engine.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".catmig-db",
//	})
//	defer engine.Detach()
//	out, err := engine.RunDelta(f, acme)
func NewBackend(logger *zap.Logger) types.Engine {
	return sqlite.NewBackend(sqlite.WithLogger(logger))
}
