package logging

import (
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

// Init configures the standard logrus logger used across the service.
// Production-like environments get JSON lines; anything else gets text.
func Init(env, level string) {
	Configure(log.StandardLogger(), os.Stdout, env, level)
}

func Configure(logger *log.Logger, out io.Writer, env, level string) {
	logger.SetOutput(out)

	switch env {
	case "prod", "production", "stage":
		logger.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	default:
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}

	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)
}
