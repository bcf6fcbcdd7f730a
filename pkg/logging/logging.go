package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Common structured log field names.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldType      = "type"
	FieldPort      = "port"
	FieldSignal    = "signal"
	FieldSubject   = "subject"
	FieldReview    = "review"
	FieldBooking   = "booking"
)

// New builds the service logger. Development mode switches to a
// colored console encoder.
func New(serviceName string, development bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String(FieldService, serviceName)), nil
}
