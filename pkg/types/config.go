package types

import "errors"

// Config holds backend selection and parameters for running migrations
// outside memory.
type Config struct {
	Backend     string `json:"backend" yaml:"backend"`
	DataDir     string `json:"data_dir" yaml:"data_dir"`
	LogLevel    string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	Parallelism int    `json:"parallelism,omitempty" yaml:"parallelism,omitempty"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
	BackendCypher = "cypher"
)

// Config validation errors.
var (
	ErrBackendEmpty        = errors.New("backend must not be empty")
	ErrBackendUnknown      = errors.New("unknown backend")
	ErrLogLevelUnknown     = errors.New("unknown log level")
	ErrParallelismNegative = errors.New("parallelism must not be negative")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
	BackendCypher: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	switch c.LogLevel {
	case "", "info", "debug", "warn", "error":
	default:
		return ErrLogLevelUnknown
	}
	if c.Parallelism < 0 {
		return ErrParallelismNegative
	}
	return nil
}
