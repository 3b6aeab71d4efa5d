package config

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Apply configures the process-wide logrus logger.
func (l LoggingConfig) Apply() {
	log.SetOutput(os.Stderr)

	switch strings.ToLower(l.Level) {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}

	if l.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
