package main

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// InitLogger configures logrus from cfg. verbose and debug raise the level to
// info and debug respectively. Log output never goes to stdout, which carries
// the answer.
func InitLogger(cfg LogConfig, verbose, debug bool) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.Warnf("Invalid log level '%s', using 'warn' instead. Error: %v", cfg.Level, err)
		level = logrus.WarnLevel
	}
	if verbose && level < logrus.InfoLevel {
		level = logrus.InfoLevel
	}
	if debug {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "", "stderr", "stdout":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			logrus.Warnf("Failed to open log file '%s', using 'stderr' instead. Error: %v", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}
	logrus.SetOutput(output)

	logrus.Debugf("Logger initialized at level %s", level)
}
