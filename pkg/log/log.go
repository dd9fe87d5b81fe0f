// Package log is errmark's thin logging facade: Debug/Error/Die as the
// teacher's pkg/log exposes them, rebuilt on top of logrus instead of
// raw fmt.Fprintf so debug/verbose output gets a timestamp field for
// free.
package log

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/guyshaw-errmark/errmark/pkg/env"
)

var logger = logrus.New()

func init() {
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000000000",
	})
	logger.SetLevel(logrus.InfoLevel)
	if os.Getenv("ERRMARK_DEBUG") != "" {
		SetDebug(true)
	}
}

// SetDebug toggles whether Debug() records are emitted, the way -d
// enables debug output at runtime.
func SetDebug(on bool) {
	if on {
		logger.SetLevel(logrus.DebugLevel)
	} else if logger.GetLevel() == logrus.DebugLevel {
		logger.SetLevel(logrus.InfoLevel)
	}
}

// IsDebug reports whether debug-level logging is enabled, used to
// bypass building an expensive debug argument when debug is off.
func IsDebug() bool {
	return logger.IsLevelEnabled(logrus.DebugLevel)
}

// Debug logs a formatted debug record.
func Debug(format string, v ...interface{}) {
	logger.Debugf(format, v...)
}

// Error logs a formatted error record without exiting.
func Error(format string, v ...interface{}) {
	logger.Errorf(format, v...)
}

// DieWithCode logs a formatted fatal record and exits with code.
func DieWithCode(code int, format string, v ...interface{}) {
	logger.Errorf(format, v...)
	os.Exit(code)
}

// Die logs a formatted fatal record and exits with env.ExitUsage.
func Die(format string, v ...interface{}) {
	DieWithCode(env.ExitUsage, format, v...)
}
