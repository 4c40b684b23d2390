package logger

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"
)

// Level is the logging severity threshold.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel converts a level name to a Level. Unknown names map to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger is a leveled logger writing through the standard log package.
// The zero value logs at INFO.
type Logger struct {
	level atomic.Int32
}

// New creates a Logger with the given level name.
func New(level string) *Logger {
	l := &Logger{}
	l.SetLevel(level)
	return l
}

// SetLevel changes the threshold; safe for concurrent use.
func (l *Logger) SetLevel(level string) {
	l.level.Store(int32(ParseLevel(level)))
}

// GetLevel returns the current threshold name.
func (l *Logger) GetLevel() string {
	return Level(l.level.Load()).String()
}

func (l *Logger) logf(level Level, format string, v ...interface{}) {
	if level < Level(l.level.Load()) {
		return
	}
	log.Printf("[%s] %s", level, fmt.Sprintf(format, v...))
}

func (l *Logger) Debug(format string, v ...interface{}) { l.logf(LevelDebug, format, v...) }
func (l *Logger) Info(format string, v ...interface{})  { l.logf(LevelInfo, format, v...) }
func (l *Logger) Warn(format string, v ...interface{})  { l.logf(LevelWarn, format, v...) }
func (l *Logger) Error(format string, v ...interface{}) { l.logf(LevelError, format, v...) }

var std = func() *Logger {
	l := &Logger{}
	l.level.Store(int32(LevelInfo))
	return l
}()

// SetLevel sets the package-level logger threshold.
func SetLevel(level string) { std.SetLevel(level) }

// Debug logs through the package-level logger.
func Debug(format string, v ...interface{}) { std.Debug(format, v...) }

// Info logs through the package-level logger.
func Info(format string, v ...interface{}) { std.Info(format, v...) }

// Warn logs through the package-level logger.
func Warn(format string, v ...interface{}) { std.Warn(format, v...) }

// Error logs through the package-level logger.
func Error(format string, v ...interface{}) { std.Error(format, v...) }
