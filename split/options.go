package split

import "github.com/YuminosukeSato/bechdel/pkg/log"

// Option configures the logging of this package's functions.
type Option func(*options)

type options struct {
	logger log.Logger
}

// WithLogger sets the logger used for stage records.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

func loggerFrom(opts []Option) log.Logger {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		return log.GetLoggerWithName("split")
	}
	return o.logger
}
