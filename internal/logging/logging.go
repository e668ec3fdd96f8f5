// Package logging configures the process-wide logrus logger.
package logging

import (
	"os"

	"tokenguard/config"

	log "github.com/sirupsen/logrus"
)

// Setup applies level and format. JSON output is used in production or when requested.
func Setup(cfg *config.Config) {
	log.SetOutput(os.Stdout)
	if cfg.Log.JSON || cfg.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.WithField("level", cfg.Log.Level).Warn("unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
