package logx

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger provides structured key/value logging for all wifisurvey components
type Logger struct {
	entry *logrus.Entry
}

// NewLogger creates a logger for a component at the given level.
// Unknown levels fall back to "info".
func NewLogger(level, component string) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	l.SetLevel(parseLevel(level))

	return &Logger{
		entry: l.WithField("component", component),
	}
}

// SetOutput redirects log output (used for log files and tests)
func (lg *Logger) SetOutput(w io.Writer) {
	lg.entry.Logger.SetOutput(w)
}

// SetLevel changes the log level at runtime
func (lg *Logger) SetLevel(level string) {
	lg.entry.Logger.SetLevel(parseLevel(level))
}

// With returns a child logger carrying additional fields
func (lg *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{entry: lg.entry.WithFields(fields(keysAndValues))}
}

func (lg *Logger) Trace(msg string, keysAndValues ...interface{}) {
	lg.entry.WithFields(fields(keysAndValues)).Trace(msg)
}

func (lg *Logger) Debug(msg string, keysAndValues ...interface{}) {
	lg.entry.WithFields(fields(keysAndValues)).Debug(msg)
}

func (lg *Logger) Info(msg string, keysAndValues ...interface{}) {
	lg.entry.WithFields(fields(keysAndValues)).Info(msg)
}

func (lg *Logger) Warn(msg string, keysAndValues ...interface{}) {
	lg.entry.WithFields(fields(keysAndValues)).Warn(msg)
}

func (lg *Logger) Error(msg string, keysAndValues ...interface{}) {
	lg.entry.WithFields(fields(keysAndValues)).Error(msg)
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "verbose":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// fields converts variadic key/value pairs into logrus fields.
// A trailing key without a value is recorded as-is.
func fields(keysAndValues []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keysAndValues[i])
		}
		f[key] = keysAndValues[i+1]
	}
	if len(keysAndValues)%2 == 1 {
		f["arg"] = keysAndValues[len(keysAndValues)-1]
	}
	return f
}
