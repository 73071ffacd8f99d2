package bus

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
)

// zapAdapter routes watermill's internal logging into zap.
type zapAdapter struct {
	log *zap.Logger
}

func newLogger(log *zap.Logger) watermill.LoggerAdapter {
	return zapAdapter{log: log}
}

func (z zapAdapter) Error(msg string, err error, fields watermill.LogFields) {
	z.log.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (z zapAdapter) Info(msg string, fields watermill.LogFields) {
	z.log.Info(msg, zapFields(fields)...)
}

func (z zapAdapter) Debug(msg string, fields watermill.LogFields) {
	z.log.Debug(msg, zapFields(fields)...)
}

// Trace is folded into debug; zap has no lower level.
func (z zapAdapter) Trace(msg string, fields watermill.LogFields) {
	z.log.Debug(msg, zapFields(fields)...)
}

func (z zapAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return zapAdapter{log: z.log.With(zapFields(fields)...)}
}

func zapFields(fields watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}
