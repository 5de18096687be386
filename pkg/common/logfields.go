package common

import (
	"context"
	"maps"

	"github.com/RyanBlaney/sonido-sonar/logging"
)

// logFieldsKey is the context key logging.Logger.WithContext reads fields from
const logFieldsKey = "logger_fields"

// WithLogFields attaches fields that loggers derived through WithContext will
// carry. Fields already on ctx are kept unless overridden.
func WithLogFields(ctx context.Context, fields logging.Fields) context.Context {
	merged := logging.Fields{}
	if existing, ok := LogFields(ctx); ok {
		maps.Copy(merged, existing)
	}
	maps.Copy(merged, fields)
	return context.WithValue(ctx, logFieldsKey, merged) //nolint:staticcheck // key shared with the logging package
}

// LogFields returns the fields attached to ctx
func LogFields(ctx context.Context) (logging.Fields, bool) {
	fields, ok := ctx.Value(logFieldsKey).(logging.Fields)
	return fields, ok
}
