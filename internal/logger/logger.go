package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

var logg *logrus.Logger

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(logrus.InfoLevel)
	logg.SetOutput(os.Stdout)
}

// Get returns the process-wide logger.
func Get() *logrus.Logger {
	return logg
}

// SetLevel parses level ("debug", "info", ...) and applies it, keeping the
// current level when the value is not recognised.
func SetLevel(level string) {
	if parsed, err := logrus.ParseLevel(level); err == nil {
		logg.SetLevel(parsed)
	}
}

// LogError writes a structured error entry tagged with where it happened.
func LogError(module string, funcName string, context string, data any, err error) {
	fields := logrus.Fields{
		"module":   module,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	logg.WithFields(fields).Error(err.Error())
}
