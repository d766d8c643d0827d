package vecdb

import (
	"log/slog"

	"github.com/vecdb-io/vecdb/wal"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	walDir           string
	walOptions       []func(o *wal.Options)
	restore          bool
}

func defaultOptions() options {
	return options{
		logger:           NewLogger(nil),
		metricsCollector: NoopMetricsCollector{},
	}
}

// Option configures a DB.
type Option func(*options)

// WithWAL enables write-ahead logging in the given directory. Additional
// option functions are forwarded to the log (compression, durability mode).
func WithWAL(dir string, optFns ...func(o *wal.Options)) Option {
	return func(o *options) {
		o.walDir = dir
		o.walOptions = optFns
	}
}

// WithRestore controls whether New replays an existing WAL to rebuild
// state. It requires WithWAL; without it New returns an error.
func WithRestore(restore bool) Option {
	return func(o *options) {
		o.restore = restore
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLogLevel sets the minimum level on a default text logger.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector MetricsCollector) Option {
	return func(o *options) {
		if collector != nil {
			o.metricsCollector = collector
		}
	}
}

func applyOptions(optFns ...Option) options {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}
