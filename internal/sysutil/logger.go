package sysutil

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu       sync.Mutex
	Log      *zap.Logger
	LogSugar *zap.SugaredLogger
)

func init() {
	InitLogger()
}

// InitLogger installs the default console logger. Warn level: the library is
// quiet in normal operation and only speaks up for the documented warnings
// (stop on a stopped monitor, join timeout, attribute extraction misses).
func InitLogger() {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(config.EncoderConfig),
		zapcore.AddSync(os.Stderr),
		zap.WarnLevel,
	)
	SetLogger(zap.New(core, zap.AddCaller()))
}

// SetLogger replaces the package logger, letting embedding programs route
// library output into their own zap tree.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	Log = l
	LogSugar = l.Sugar()
}
