// Package logging adapts zap to the Logger port.
package logging

import (
	"go.uber.org/zap"

	"github.com/pixman/coupon-flow/internal/domain/ports"
)

// ZapLogger adapts zap.Logger to the ports.Logger interface
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger wraps an existing zap logger
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{logger: logger}
}

// NewDevelopment creates a development logger
func NewDevelopment() (*ZapLogger, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return &ZapLogger{logger: logger}, nil
}

// NewProduction creates a production logger
func NewProduction() (*ZapLogger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &ZapLogger{logger: logger}, nil
}

// Info logs an info message
func (z *ZapLogger) Info(msg string, fields ...ports.Field) {
	z.logger.Info(msg, convertFields(fields)...)
}

// Error logs an error message
func (z *ZapLogger) Error(msg string, fields ...ports.Field) {
	z.logger.Error(msg, convertFields(fields)...)
}

// Warn logs a warning message
func (z *ZapLogger) Warn(msg string, fields ...ports.Field) {
	z.logger.Warn(msg, convertFields(fields)...)
}

// Debug logs a debug message
func (z *ZapLogger) Debug(msg string, fields ...ports.Field) {
	z.logger.Debug(msg, convertFields(fields)...)
}

// Sync flushes buffered log entries
func (z *ZapLogger) Sync() error {
	return z.logger.Sync()
}

func convertFields(fields []ports.Field) []zap.Field {
	zapFields := make([]zap.Field, len(fields))
	for i, f := range fields {
		zapFields[i] = zap.Any(f.Key, f.Value)
	}
	return zapFields
}
