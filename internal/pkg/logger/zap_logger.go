package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ILogger is the structured logger every component receives. module names the
// emitting component ("Session", "Executor"); details become a JSON object.
type ILogger interface {
	Debug(module, message string, details map[string]interface{})
	Info(module, message string, details map[string]interface{})
	Warn(module, message string, details map[string]interface{})
	Error(module, message string, details map[string]interface{})
	Sync() error
}

type ZapLogger struct {
	logger *zap.Logger
}

var _ ILogger = (*ZapLogger)(nil)

// NewZapLogger writes JSON to a rotated file at Info and above, and to stdout
// at Debug and above (console format outside production).
func NewZapLogger(logFilePath string, isProd bool) *ZapLogger {
	fileEncoder := zapcore.NewJSONEncoder(fileEncoderConfig())

	consoleEncoder := fileEncoder
	if !isProd {
		consoleEncoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}

	core := zapcore.NewTee(
		zapcore.NewCore(fileEncoder, rotatingFile(logFilePath), zap.InfoLevel),
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), zap.DebugLevel),
	)

	return newZapLogger(core)
}

// NewIsolatedLogger writes only to its own file. The per-stage pipeline trace
// goes here so the main log stays readable.
func NewIsolatedLogger(logFilePath string) *ZapLogger {
	core := zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoderConfig()), rotatingFile(logFilePath), zap.DebugLevel)
	return newZapLogger(core)
}

// NewNopLogger discards everything
func NewNopLogger() *ZapLogger {
	return &ZapLogger{logger: zap.NewNop()}
}

// NewFromZap wraps an existing zap logger, e.g. one built on zaptest/observer
func NewFromZap(l *zap.Logger) *ZapLogger {
	return &ZapLogger{logger: l.WithOptions(zap.AddCallerSkip(2))}
}

func newZapLogger(core zapcore.Core) *ZapLogger {
	// skip write and the level method so callers show up as the source
	return &ZapLogger{logger: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))}
}

func rotatingFile(path string) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // Megabytes
		MaxBackups: 5,
		MaxAge:     30, // Days
		Compress:   true,
	})
}

func fileEncoderConfig() zapcore.EncoderConfig {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "message"
	encoderConfig.LevelKey = "level"
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return encoderConfig
}

func (l *ZapLogger) Debug(module, message string, details map[string]interface{}) {
	l.write(zapcore.DebugLevel, module, message, details)
}

func (l *ZapLogger) Info(module, message string, details map[string]interface{}) {
	l.write(zapcore.InfoLevel, module, message, details)
}

func (l *ZapLogger) Warn(module, message string, details map[string]interface{}) {
	l.write(zapcore.WarnLevel, module, message, details)
}

func (l *ZapLogger) Error(module, message string, details map[string]interface{}) {
	l.write(zapcore.ErrorLevel, module, message, details)
}

func (l *ZapLogger) write(level zapcore.Level, module, message string, details map[string]interface{}) {
	ce := l.logger.Check(level, message)
	if ce == nil {
		return
	}
	if details == nil {
		details = map[string]interface{}{}
	}

	fields := []zap.Field{zap.String("module", module), zap.Any("details", details)}
	// a real error value also gets zap's error encoding (with verbose form for wrapped errors)
	if err, ok := details["error"].(error); ok {
		fields = append(fields, zap.NamedError("cause", err))
	}
	ce.Write(fields...)
}

func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}
