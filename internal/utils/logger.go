package utils

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide structured logger. It is usable before InitLogger
// runs so packages and tests never see a nil entry.
var Log = logrus.NewEntry(logrus.StandardLogger())

// InitLogger configures the global logger for a named service.
func InitLogger(service, level string, jsonOutput bool) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if lvl, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	if jsonOutput {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	Log = logger.WithField("service", service)
}
