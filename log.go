package font

import (
	"github.com/npillmayer/schuko/tracing"
)

// Logger receives non-fatal diagnostics. It is satisfied by tracing.Trace.
type Logger interface {
	Debugf(string, ...interface{})
	Infof(string, ...interface{})
	Errorf(string, ...interface{})
}

// tracer is the default logger, silent unless tracing is configured for the "font" key.
func tracer() Logger {
	return tracing.Select("font")
}

func loggerOrDefault(logger Logger) Logger {
	if logger == nil {
		return tracer()
	}
	return logger
}
