// Package logger provides leveled logging for rounds, polls and collaborators.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// Logger provides leveled logging.
type Logger struct {
	level  Level
	logger *log.Logger
}

var defaultLogger = &Logger{
	level:  InfoLevel,
	logger: log.New(os.Stderr, "", log.LstdFlags),
}

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Init initializes the default logger with the specified level and format.
func Init(level string, format string) {
	InitWriter(os.Stderr, level, format)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, level string, format string) {
	flags := log.LstdFlags | log.Lmicroseconds
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}

	defaultLogger = &Logger{
		level:  ParseLevel(level),
		logger: log.New(w, "", flags),
	}
}

// Enabled reports whether messages at l would be written.
func Enabled(l Level) bool {
	return defaultLogger.level <= l
}

func output(l Level, prefix, format string, args ...interface{}) {
	if defaultLogger.level <= l {
		msg := fmt.Sprintf(prefix+format, args...)
		_ = defaultLogger.logger.Output(3, msg)
	}
}

func Debug(format string, args ...interface{}) { output(DebugLevel, "[DEBUG] ", format, args...) }

func Info(format string, args ...interface{}) { output(InfoLevel, "[INFO] ", format, args...) }

func Warn(format string, args ...interface{}) { output(WarnLevel, "[WARN] ", format, args...) }

func Error(format string, args ...interface{}) { output(ErrorLevel, "[ERROR] ", format, args...) }

func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf("[FATAL] "+format, args...)
	_ = defaultLogger.logger.Output(2, msg)
	os.Exit(1)
}
