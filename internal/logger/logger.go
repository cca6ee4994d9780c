package logger

import (
	"io"
	"time"

	"github.com/natefinch/lumberjack"
	logrus "github.com/sirupsen/logrus"
	gormlogger "gorm.io/gorm/logger"
)

var output io.Writer = logrus.StandardLogger().Out

// Setup points Logrus at a rotating file and returns the configured standard logger.
func Setup(file, level string) *logrus.Logger {
	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    10, // megabytes
		MaxBackups: 7,
		MaxAge:     7, // days
		Compress:   true,
	}
	output = rotator

	logrus.SetOutput(rotator)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	logrus.SetLevel(ParseLevel(level))
	return logrus.StandardLogger()
}

// ParseLevel falls back to debug for unknown names.
func ParseLevel(level string) logrus.Level {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.DebugLevel
	}
	return l
}

// Output is the writer the logs go to, shared with the HTTP access log.
func Output() io.Writer {
	return output
}

// GormLogger routes GORM's SQL log through Logrus.
func GormLogger() gormlogger.Interface {
	level := gormlogger.Warn
	if logrus.GetLevel() >= logrus.DebugLevel {
		level = gormlogger.Info
	}
	return gormlogger.New(logrus.StandardLogger(), gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
