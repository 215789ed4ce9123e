package utils

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

const DefaultLogLevel = "INFO"

// InitLogger parses the level string and configures the global logrus logger.
// An empty level falls back to DefaultLogLevel; an invalid one is an error.
func InitLogger(logLevel string) error {
	if strings.TrimSpace(logLevel) == "" {
		logLevel = DefaultLogLevel
	}
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return err
	}

	log.SetFormatter(&log.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
	})
	log.SetLevel(level)
	return nil
}
