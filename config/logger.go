package config

import (
	"os"

	"github.com/jbapex/financeiro-api/utils"
	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. It is usable before InitLogger runs.
var Log = logrus.New()

func InitLogger(s *Settings) *logrus.Logger {
	Log.SetOutput(os.Stdout)

	if s.IsProduction() {
		Log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(s.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)

	if s.IsProduction() {
		Log.AddHook(utils.NewMaskingHook())
	}

	return Log
}
