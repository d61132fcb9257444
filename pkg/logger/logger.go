// Package logger is the process-wide logging facade. It discards everything
// until ReplaceLogger installs a zap core.
package logger

// Logger interface for logging
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
	Fatalf(format string, v ...interface{})

	// With returns a child logger carrying the given key/value pairs.
	With(keysAndValues ...interface{}) Logger
}

var globalLogger Logger = noOpLogger{}

// L returns the current global logger.
func L() Logger {
	return globalLogger
}

// With returns a child of the global logger with extra fields.
func With(keysAndValues ...interface{}) Logger {
	return globalLogger.With(keysAndValues...)
}

// Debugf logs a formatted debug message
func Debugf(format string, v ...interface{}) {
	globalLogger.Debugf(format, v...)
}

// Infof logs a formatted info message
func Infof(format string, v ...interface{}) {
	globalLogger.Infof(format, v...)
}

// Warnf logs a formatted warning message
func Warnf(format string, v ...interface{}) {
	globalLogger.Warnf(format, v...)
}

// Errorf logs a formatted error message
func Errorf(format string, v ...interface{}) {
	globalLogger.Errorf(format, v...)
}

// Fatalf logs a formatted fatal message and exits
func Fatalf(format string, v ...interface{}) {
	globalLogger.Fatalf(format, v...)
}

// Info logs a message at info level
func Info(msg string) {
	globalLogger.Infof("%s", msg)
}

type noOpLogger struct{}

func (noOpLogger) Debugf(string, ...interface{}) {}
func (noOpLogger) Infof(string, ...interface{}) {}
func (noOpLogger) Warnf(string, ...interface{}) {}
func (noOpLogger) Errorf(string, ...interface{}) {}
func (noOpLogger) Fatalf(string, ...interface{}) {}
func (l noOpLogger) With(...interface{}) Logger { return l }
