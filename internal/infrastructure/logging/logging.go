// Package logging builds the JSON logrus logger shared by every binary.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a JSON logger at the given level. An unknown level falls back
// to info and is reported once through the returned logger.
func New(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
		logger.WithError(err).Warn("unknown log level, using info")
		return logger
	}
	logger.SetLevel(parsed)
	return logger
}
