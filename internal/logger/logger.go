package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log = zap.NewNop().Sugar()

// Init builds the process logger. "dev" selects the console encoder,
// anything else is parsed as a zap level for the JSON production logger.
func Init(level string) {
	var (
		l   *zap.Logger
		err error
	)
	dev, lvl, perr := parseLevel(level)
	if dev {
		l, err = zap.NewDevelopment()
	} else {
		if perr != nil {
			lvl = zapcore.InfoLevel
		}
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		l, err = cfg.Build()
	}
	if err != nil {
		panic(err)
	}
	log = l.Sugar()
}

// ValidLevel reports whether Init understands level.
func ValidLevel(level string) bool {
	dev, _, err := parseLevel(level)
	return dev || err == nil
}

func parseLevel(level string) (dev bool, lvl zapcore.Level, err error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "dev" || level == "development" {
		return true, zapcore.DebugLevel, nil
	}
	lvl, err = zapcore.ParseLevel(level)
	return false, lvl, err
}

func Sync() {
	_ = log.Sync()
}

func Debug(msg string, kv ...interface{}) {
	log.Debugw(msg, kv...)
}

func Info(msg string, kv ...interface{}) {
	log.Infow(msg, kv...)
}

func Warn(msg string, kv ...interface{}) {
	log.Warnw(msg, kv...)
}

func Error(msg string, kv ...interface{}) {
	log.Errorw(msg, kv...)
}
