package log

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ZerologLogger implements Logger on top of zerolog.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger creates a JSON logger writing to w at the given minimum level.
func NewZerologLogger(w io.Writer, level Level) *ZerologLogger {
	return &ZerologLogger{
		logger: zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger(),
	}
}

// Debug implements Logger.Debug.
func (z *ZerologLogger) Debug(msg string, fields ...any) {
	emit(z.logger.Debug(), msg, fields)
}

// Info implements Logger.Info.
func (z *ZerologLogger) Info(msg string, fields ...any) {
	emit(z.logger.Info(), msg, fields)
}

// Warn implements Logger.Warn.
func (z *ZerologLogger) Warn(msg string, fields ...any) {
	emit(z.logger.Warn(), msg, fields)
}

// Error implements Logger.Error. A leading error value is attached with its
// cockroachdb stack trace.
func (z *ZerologLogger) Error(msg string, fields ...any) {
	event := z.logger.Error()
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			event = event.Err(err)
			if st := extractStacktrace(err); st != "" {
				event = event.Str(StacktraceAttrKey, st)
			}
			if obj, ok := asZerologObject(err); ok {
				event = event.Object("detail", obj)
			}
			fields = fields[1:]
		}
	}
	emit(event, msg, fields)
}

// With implements Logger.With.
func (z *ZerologLogger) With(fields ...any) Logger {
	return &ZerologLogger{logger: z.logger.With().Fields(normalizeFields(fields)).Logger()}
}

// Enabled implements Logger.Enabled.
func (z *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	return toZerologLevel(level) >= z.logger.GetLevel()
}

// Warning logs an error value produced by the errors package warning system.
func (z *ZerologLogger) Warning(w error) {
	event := z.logger.Warn().Str(ErrorTypeKey, "warning")
	if obj, ok := w.(zerolog.LogObjectMarshaler); ok {
		event = event.Object("detail", obj)
	}
	event.Msg(w.Error())
}

func emit(event *zerolog.Event, msg string, fields []any) {
	if event == nil {
		return
	}
	if len(fields) > 0 {
		event = event.Fields(normalizeFields(fields))
	}
	event.Msg(msg)
}

// normalizeFields makes odd-length key-value lists safe for zerolog.
func normalizeFields(fields []any) []interface{} {
	out := make([]interface{}, 0, len(fields)+1)
	out = append(out, fields...)
	if len(out)%2 != 0 {
		out = append(out, "!MISSING")
	}
	return out
}

// extractStacktrace returns the first safe detail cockroachdb/errors
// recorded for err, which holds the stack of the innermost New or Wrap.
func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

func asZerologObject(err error) (zerolog.LogObjectMarshaler, bool) {
	var obj zerolog.LogObjectMarshaler
	if errors.As(err, &obj) {
		return obj, true
	}
	return nil, false
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// ZerologProvider implements LoggerProvider with a shared zerolog root.
type ZerologProvider struct {
	mu   sync.RWMutex
	w    io.Writer
	root *ZerologLogger
}

// NewZerologProvider creates a provider writing JSON lines to w.
func NewZerologProvider(w io.Writer, level Level) *ZerologProvider {
	return &ZerologProvider{w: w, root: NewZerologLogger(w, level)}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *ZerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.root
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	return p.GetLogger().With(ComponentKey, name)
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *ZerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.root = &ZerologLogger{logger: p.root.logger.Level(toZerologLevel(level))}
}

// Root returns the provider's root zerolog-backed logger.
func (p *ZerologProvider) Root() *ZerologLogger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.root
}

var (
	providerMu sync.RWMutex
	provider   LoggerProvider = NewZerologProvider(os.Stderr, LevelInfo)
)

// SetProvider replaces the process-wide logger provider.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	provider = p
}

// GetProvider returns the process-wide logger provider.
func GetProvider() LoggerProvider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider
}

// GetLogger returns the default logger of the process-wide provider.
func GetLogger() Logger {
	return GetProvider().GetLogger()
}

// GetLoggerWithName returns a component logger from the process-wide provider.
func GetLoggerWithName(name string) Logger {
	return GetProvider().GetLoggerWithName(name)
}
