package logger

import (
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	CRITICAL
)

var levelPrefixes = map[LogLevel]string{
	DEBUG:    "[DEBUG] ",
	INFO:     "[INFO] ",
	WARN:     "[WARN] ",
	ERROR:    "[ERROR] ",
	CRITICAL: "[CRITICAL] ",
}

var (
	mu              sync.RWMutex
	currentLogLevel = INFO
	loggers         = newLoggers(os.Stdout)
)

// One logger per level so concurrent callers never swap a shared prefix.
func newLoggers(w io.Writer) map[LogLevel]*log.Logger {
	m := make(map[LogLevel]*log.Logger, len(levelPrefixes))
	for lvl, prefix := range levelPrefixes {
		m[lvl] = log.New(w, prefix, log.Ldate|log.Ltime)
	}
	return m
}

// ParseLevel maps a flag value to a level, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "critical":
		return CRITICAL
	default:
		return INFO
	}
}

func InitLogger(logLevel string) {
	SetLogLevel(ParseLevel(logLevel))
	Debugf("Logger initialised at level %q", logLevel)
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	mu.Lock()
	currentLogLevel = level
	mu.Unlock()
}

// SetOutput redirects every level to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	loggers = newLoggers(w)
	mu.Unlock()
}

func enabled(level LogLevel) (*log.Logger, bool) {
	mu.RLock()
	defer mu.RUnlock()
	if currentLogLevel > level {
		return nil, false
	}
	return loggers[level], true
}

func logln(level LogLevel, v ...interface{}) {
	if l, ok := enabled(level); ok {
		l.Println(v...)
	}
}

func logf(level LogLevel, format string, v ...interface{}) {
	if l, ok := enabled(level); ok {
		l.Printf(format, v...)
	}
}

// Debug logs debug-level messages
func Debug(v ...interface{}) { logln(DEBUG, v...) }

// Debugf logs debug-level formatted messages
func Debugf(format string, v ...interface{}) { logf(DEBUG, format, v...) }

// Info logs info-level messages
func Info(v ...interface{}) { logln(INFO, v...) }

// Infof logs info-level formatted messages
func Infof(format string, v ...interface{}) { logf(INFO, format, v...) }

// Warn logs warning-level messages
func Warn(v ...interface{}) { logln(WARN, v...) }

// Warnf logs warning-level formatted messages
func Warnf(format string, v ...interface{}) { logf(WARN, format, v...) }

// Error logs error-level messages
func Error(v ...interface{}) { logln(ERROR, v...) }

// Errorf logs error-level formatted messages
func Errorf(format string, v ...interface{}) { logf(ERROR, format, v...) }

// Criticalf is reserved for conditions that need a human, such as an open
// position left without protection.
func Criticalf(format string, v ...interface{}) { logf(CRITICAL, format, v...) }
