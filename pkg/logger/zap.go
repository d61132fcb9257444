package logger

import (
	"go.uber.org/zap"
)

var zapLogger *zap.Logger

// ReplaceLogger replaces the global logger with a zap logger
func ReplaceLogger(logger *zap.Logger) {
	zapLogger = logger
	globalLogger = &zapLoggerImpl{sugar: logger.Sugar()}
}

// Sync flushes buffered log entries. Safe to call before ReplaceLogger.
func Sync() error {
	if zapLogger == nil {
		return nil
	}
	return zapLogger.Sync()
}

type zapLoggerImpl struct {
	sugar *zap.SugaredLogger
}

func (l *zapLoggerImpl) Debugf(format string, v ...interface{}) {
	l.sugar.Debugf(format, v...)
}

func (l *zapLoggerImpl) Infof(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

func (l *zapLoggerImpl) Warnf(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

func (l *zapLoggerImpl) Errorf(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

func (l *zapLoggerImpl) Fatalf(format string, v ...interface{}) {
	l.sugar.Fatalf(format, v...)
}

func (l *zapLoggerImpl) With(keysAndValues ...interface{}) Logger {
	return &zapLoggerImpl{sugar: l.sugar.With(keysAndValues...)}
}
