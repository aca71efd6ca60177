package dataset

import "github.com/YuminosukeSato/bechdel/pkg/log"

type options struct {
	logger log.Logger
}

// Option configures Load, Normalize and Merge.
type Option func(*options)

// WithLogger sets the logger; records carry whatever fields l already has,
// such as the run id.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.GetLoggerWithName("dataset")
	}
	return o
}
