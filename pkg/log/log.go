package log

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Global variable
var (
	zapLog *zap.Logger
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func init() {
	// Packages may log before Init is called (tests, library use)
	zapLog = zap.NewNop()
}

func Init(debug bool) {
	var config zap.Config
	var encoderConf zapcore.EncoderConfig

	if debug {
		config = zap.NewDevelopmentConfig()
		encoderConf = zap.NewDevelopmentEncoderConfig()

		// Use a human readable time
		encoderConf.EncodeTime = zapcore.ISO8601TimeEncoder
		level.SetLevel(zapcore.DebugLevel)
	} else {
		config = zap.NewProductionConfig()
		encoderConf = zap.NewProductionEncoderConfig()

		// Use unix timestamp millis for production
		encoderConf.EncodeTime = zapcore.EpochMillisTimeEncoder
		level.SetLevel(zapcore.InfoLevel)
	}

	// Assign the config, the level stays adjustable through SetLevel
	config.EncoderConfig = encoderConf
	config.Level = level

	// Build the logger and skip one caller as thats our own log package
	var err error
	zapLog, err = config.Build(zap.AddCallerSkip(1))

	// Panic if we cant log correctly
	if err != nil {
		panic(err)
	}
}

// SetLevel accepts the verbosity names used in the site configuration
// (ERROR, WARNING, INFO, DEBUG) as well as the zap level names.
func SetLevel(name string) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		level.SetLevel(zapcore.DebugLevel)
	case "WARNING", "WARN":
		level.SetLevel(zapcore.WarnLevel)
	case "ERROR", "CRITICAL":
		level.SetLevel(zapcore.ErrorLevel)
	case "", "INFO":
		level.SetLevel(zapcore.InfoLevel)
	default:
		Warn("unknown verbosity, keeping current level", zap.String("verbosity", name))
	}
}

// Replace swaps the underlying logger, tests use this with zaptest/observer
func Replace(l *zap.Logger) {
	zapLog = l.WithOptions(zap.AddCallerSkip(1))
}

// Sync flushes buffered log entries
func Sync() {
	_ = zapLog.Sync()
}

func Debug(message string, fields ...zap.Field) {
	zapLog.Debug(message, fields...)
}

func Info(message string, fields ...zap.Field) {
	zapLog.Info(message, fields...)
}

func Warn(message string, fields ...zap.Field) {
	zapLog.Warn(message, fields...)
}

func Error(message string, fields ...zap.Field) {
	zapLog.Error(message, fields...)
}

func Fatal(message string, fields ...zap.Field) {
	zapLog.Fatal(message, fields...)
}

func Panic(message string, fields ...zap.Field) {
	zapLog.Panic(message, fields...)
}
