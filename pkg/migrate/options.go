// Package migrate implements the data migration operators induced by a
// schema mapping F: S → T. Delta (Δ) pulls an instance of T back to S by
// precomposition. Sigma (Σ) pushes an instance of S forward to T as a left
// Kan extension, computed by congruence closure over tagged copies of the
// input's elements.
//
// Both operators validate their inputs first and seal the input instance;
// the result is a new instance that shares no mutable state with it.
package migrate

import (
	"runtime"

	"go.uber.org/zap"
)

// Option configures a migration.
type Option func(*options)

type options struct {
	logger      *zap.Logger
	parallelism int
}

// WithLogger sets the logger used for debug tracing. Default is a no-op
// logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithParallelism bounds the number of source nodes Δ computes at once.
// Zero or less means GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(o *options) { o.parallelism = n }
}

func collect(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.parallelism <= 0 {
		o.parallelism = runtime.GOMAXPROCS(0)
	}
	return o
}
