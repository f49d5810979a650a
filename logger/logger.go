// logger/logger.go
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "debug"
	case INFO:
		return "info"
	case WARN:
		return "warn"
	case ERROR:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel maps a LOG_LEVEL value onto a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "info", "":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", s)
	}
}

type Logger struct {
	console  [4]*log.Logger
	plain    [4]*log.Logger
	file     *os.File
	minLevel LogLevel
}

var (
	defaultLogger *Logger
	once          sync.Once
	mu            sync.RWMutex
)

var prefixes = [4]struct{ color, label string }{
	DEBUG: {colorGray, "[DEBUG] "},
	INFO:  {colorReset, "[INFO]  "},
	WARN:  {colorYellow, "[WARN]  "},
	ERROR: {colorRed, "[ERROR] "},
}

// ensureInitialized creates a console-only logger if Init was never called
func ensureInitialized() {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if defaultLogger == nil {
			defaultLogger = newLogger(os.Stdout, nil, INFO)
		}
	})
}

func newLogger(console, file io.Writer, level LogLevel) *Logger {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	l := &Logger{minLevel: level}
	for lvl, p := range prefixes {
		if console != nil {
			l.console[lvl] = log.New(console, p.color+p.label+colorReset, flags)
		}
		if file != nil {
			l.plain[lvl] = log.New(file, p.label, flags)
		}
	}
	return l
}

// Init configures console output and, when filename is not empty, an
// additional uncoloured log file.
func Init(filename string, console bool, level LogLevel) error {
	var file *os.File
	if filename != "" {
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
	}

	var consoleOut io.Writer
	if console {
		consoleOut = os.Stdout
	}
	if file == nil && consoleOut == nil {
		return fmt.Errorf("no output destination specified")
	}

	var fileOut io.Writer
	if file != nil {
		fileOut = file
	}

	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()
	if defaultLogger.file != nil {
		defaultLogger.file.Close()
	}
	defaultLogger = newLogger(consoleOut, fileOut, level)
	defaultLogger.file = file
	return nil
}

// SetOutput routes all levels to w without colours. Used by tests that
// assert on log content.
func SetOutput(w io.Writer, level LogLevel) {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = newLogger(nil, w, level)
}

// SetLevel sets the minimum level that is written.
func SetLevel(level LogLevel) {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()
	defaultLogger.minLevel = level
}

// Close closes the log file if one is open
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if defaultLogger != nil && defaultLogger.file != nil {
		defaultLogger.file.Close()
		defaultLogger.file = nil
		for i := range defaultLogger.plain {
			defaultLogger.plain[i] = nil
		}
	}
}

func output(level LogLevel, msg string) {
	ensureInitialized()
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()

	if level < l.minLevel {
		return
	}
	if c := l.console[level]; c != nil {
		c.Output(3, msg)
	}
	if p := l.plain[level]; p != nil {
		p.Output(3, msg)
	}
}

func Debug(v ...interface{})                 { output(DEBUG, fmt.Sprint(v...)) }
func Debugf(format string, v ...interface{}) { output(DEBUG, fmt.Sprintf(format, v...)) }
func Info(v ...interface{})                  { output(INFO, fmt.Sprint(v...)) }
func Infof(format string, v ...interface{})  { output(INFO, fmt.Sprintf(format, v...)) }
func Warn(v ...interface{})                  { output(WARN, fmt.Sprint(v...)) }
func Warnf(format string, v ...interface{})  { output(WARN, fmt.Sprintf(format, v...)) }
func Error(v ...interface{})                 { output(ERROR, fmt.Sprint(v...)) }
func Errorf(format string, v ...interface{}) { output(ERROR, fmt.Sprintf(format, v...)) }

// Fatalf logs a formatted error message and exits the program
func Fatalf(format string, v ...interface{}) {
	output(ERROR, fmt.Sprintf(format, v...))
	os.Exit(1)
}

// JobLogger prefixes every line with the job it belongs to, so interleaved
// pipelines stay readable.
type JobLogger struct {
	prefix string
}

// ForJob returns a logger scoped to one job ID.
func ForJob(jobID string) JobLogger {
	return JobLogger{prefix: "[job " + jobID + "] "}
}

func (j JobLogger) Debugf(format string, v ...interface{}) {
	output(DEBUG, j.prefix+fmt.Sprintf(format, v...))
}

func (j JobLogger) Infof(format string, v ...interface{}) {
	output(INFO, j.prefix+fmt.Sprintf(format, v...))
}

func (j JobLogger) Warnf(format string, v ...interface{}) {
	output(WARN, j.prefix+fmt.Sprintf(format, v...))
}

func (j JobLogger) Errorf(format string, v ...interface{}) {
	output(ERROR, j.prefix+fmt.Sprintf(format, v...))
}
