package event

// awaiterOptions holds configuration applied when constructing an Awaiter,
// following the usual functional-options shape: each AwaiterOption mutates
// one field, nil options are skipped by resolveAwaiterOptions, and a logger
// left unset falls back to the package-level default (see SetLogger).
type awaiterOptions struct {
	onIterationError func(error)
	logger           Logger
}

// AwaiterOption configures an Awaiter instance.
type AwaiterOption interface {
	applyAwaiter(*awaiterOptions)
}

type awaiterOptionFunc func(*awaiterOptions)

func (f awaiterOptionFunc) applyAwaiter(o *awaiterOptions) { f(o) }

// WithIterationErrorSink registers fn as the sink that observes any pselect
// error other than "interrupted", and any failure to install a Signal
// trigger's handler, each wrapped in a *PlatformError. fn is called
// synchronously from AwaitEvents on the same goroutine.
func WithIterationErrorSink(fn func(error)) AwaiterOption {
	return awaiterOptionFunc(func(o *awaiterOptions) {
		o.onIterationError = fn
	})
}

// WithLogger overrides the package-level default Logger (see SetLogger) for
// one Awaiter instance.
func WithLogger(l Logger) AwaiterOption {
	return awaiterOptionFunc(func(o *awaiterOptions) {
		o.logger = l
	})
}

func resolveAwaiterOptions(opts []AwaiterOption) *awaiterOptions {
	cfg := &awaiterOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyAwaiter(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger()
	}
	return cfg
}
