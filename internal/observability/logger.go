package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog for structured logging.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new structured logger.
func NewLogger(service, version, level string, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339

	logger := zerolog.New(output).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Str("host", getHostname()).
		Logger()

	return &Logger{logger: logger}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// ParseLevel maps the configured LOG_LEVEL names onto zerolog levels.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARNING", "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "CRITICAL":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithRequest adds request_id context to logger.
func (l *Logger) WithRequest(requestID string) *Logger {
	return &Logger{logger: l.logger.With().Str("request_id", requestID).Logger()}
}

// WithComponent adds component context to logger.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{logger: l.logger.With().Str("component", name).Logger()}
}

// Zerolog exposes the underlying logger for call sites that need fields.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.logger
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

// Info logs an info message.
func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

// Error logs an error message.
func (l *Logger) Error(err error, msg string) {
	l.logger.Error().Err(err).Msg(msg)
}

// Fatal logs a fatal message and exits.
func (l *Logger) Fatal(err error, msg string) {
	l.logger.Fatal().Err(err).Msg(msg)
}

// BackgroundAttempt logs one outbound image generation call.
func (l *Logger) BackgroundAttempt(size string, attempt int, err error) {
	ev := l.logger.Info()
	if err != nil {
		ev = l.logger.Warn().Err(err)
	}
	ev.Str("size", size).Int("attempt", attempt).Msg("background attempt")
}

// LayoutChosen logs the point size the layout engine settled on.
func (l *Logger) LayoutChosen(pointSize float64, lines int) {
	l.logger.Info().
		Float64("point_size", pointSize).
		Int("lines", lines).
		Msg("title layout chosen")
}

// ExportEncoded logs one JPEG encode of the quality search.
func (l *Logger) ExportEncoded(quality, size, ceiling int) {
	l.logger.Debug().
		Int("quality", quality).
		Int("size_bytes", size).
		Int("ceiling_bytes", ceiling).
		Msg("jpeg encoded")
}

// ThumbnailSaved logs a persisted artifact.
func (l *Logger) ThumbnailSaved(filename string, sizeBytes int64, elapsed time.Duration) {
	l.logger.Info().
		Str("filename", filename).
		Int64("size_bytes", sizeBytes).
		Float64("elapsed_seconds", elapsed.Seconds()).
		Msg("thumbnail generated")
}

// HTTPRequest logs a served request.
func (l *Logger) HTTPRequest(method, path string, status int, latency time.Duration, clientIP string) {
	ev := l.logger.Info()
	if status >= 500 {
		ev = l.logger.Error()
	} else if status >= 400 {
		ev = l.logger.Warn()
	}
	ev.Str("method", method).
		Str("path", path).
		Int("status", status).
		Float64("latency_ms", float64(latency.Microseconds())/1000).
		Str("client_ip", clientIP).
		Msg("http request")
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
