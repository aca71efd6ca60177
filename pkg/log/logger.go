package log

import (
	"io"
	"os"
)

// SetupLogger installs the zerolog provider on stderr at the given level.
func SetupLogger(loglevel string) {
	SetupLoggerTo(os.Stderr, loglevel)
}

// SetupLoggerTo is SetupLogger with an explicit destination. Unknown levels
// fall back to info; config validation rejects them earlier.
func SetupLoggerTo(w io.Writer, loglevel string) {
	level, _ := ParseLevel(loglevel)
	SetProvider(NewZerologProvider(w, level))
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)
