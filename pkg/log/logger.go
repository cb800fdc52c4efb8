package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel maps a level name (case-insensitive) to a LogLevel.
// Unknown or empty names fall back to LevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

type Logger struct {
	mu     sync.RWMutex
	level  LogLevel
	logger *log.Logger
}

func NewLogger(level LogLevel) *Logger {
	return newLoggerTo(os.Stdout, level)
}

func newLoggerTo(w io.Writer, level LogLevel) *Logger {
	return &Logger{
		level:  level,
		logger: log.New(w, "", 0),
	}
}

// SetLevel changes the minimum level written by the logger.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *Logger) Level() LogLevel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

func (l *Logger) Debug(format string, args ...any) {
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

// Fatal logs and exits the process.
func (l *Logger) Fatal(format string, args ...any) {
	l.log(LevelFatal, format, args...)
	os.Exit(1)
}

func (l *Logger) log(level LogLevel, format string, args ...any) {
	if level < l.Level() {
		return
	}

	// Skip log() and the exported level method.
	_, file, line, ok := runtime.Caller(2)
	fileName := "unknown"
	if ok {
		fileName = filepath.Base(file)
	}

	entry := fmt.Sprintf("[%s] [%s] [%s:%d] %s",
		time.Now().Format("2006-01-02 15:04:05"),
		level,
		fileName,
		line,
		fmt.Sprintf(format, args...))

	l.logger.Println(entry)
}

// FileLogger writes log entries to a file.
type FileLogger struct {
	*Logger
	file *os.File
}

func NewFileLogger(logFile string, level LogLevel) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &FileLogger{
		Logger: newLoggerTo(file, level),
		file:   file,
	}, nil
}

func (l *FileLogger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

var (
	globalMu     sync.Mutex
	globalLogger *Logger
)

// InitLogger replaces the global logger.
func InitLogger(level LogLevel) {
	SetLogger(NewLogger(level))
}

// SetLogger installs l as the global logger, e.g. a FileLogger's embedded Logger.
func SetLogger(l *Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

func GetLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = NewLogger(LevelInfo)
	}
	return globalLogger
}

// Package-level helpers log through the global logger. They call log()
// directly so the caller depth matches the method form.
func Debug(format string, args ...any) {
	GetLogger().log(LevelDebug, format, args...)
}

func Info(format string, args ...any) {
	GetLogger().log(LevelInfo, format, args...)
}

func Warn(format string, args ...any) {
	GetLogger().log(LevelWarn, format, args...)
}

func Error(format string, args ...any) {
	GetLogger().log(LevelError, format, args...)
}

func Fatal(format string, args ...any) {
	GetLogger().log(LevelFatal, format, args...)
	os.Exit(1)
}
