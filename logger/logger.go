package logger

import (
	"os"
	"strings"
	"time"

	"github.com/FlorianRuen/github-portfolio-proxy/config"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Setup will configure logrus logger
// gin internal messages are redirected to logrus so everything ends up with the same format
func Setup(cfg config.Config) {
	var formatter logrus.Formatter = &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	}

	if cfg.Logs.OutputLogsAsJSON {
		formatter = &logrus.JSONFormatter{TimestampFormat: time.RFC3339}
	}

	logrus.SetOutput(os.Stdout)
	logrus.SetFormatter(formatter)
	logrus.SetLevel(StringToLogrusLogType(cfg.Logs.Level))

	gin.DefaultWriter = logrus.StandardLogger().WriterLevel(logrus.DebugLevel)
	gin.DefaultErrorWriter = logrus.StandardLogger().WriterLevel(logrus.ErrorLevel)
}

// StringToLogrusLogType will convert string to the right logrus level
// unknown values fall back to error to keep production output quiet
func StringToLogrusLogType(logLevel string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "error":
		return logrus.ErrorLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	case "trace":
		return logrus.TraceLevel
	default:
		return logrus.ErrorLevel
	}
}
