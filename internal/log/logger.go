package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// --- Global Logger State ---

var currentLevel atomic.Uint32

// exit is replaced in tests.
var exit = os.Exit

// logger carries leveled messages, console carries raw diagnostic output
// (prediction tables, feature dumps) without a timestamp prefix.
var (
	logger  = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)
	console = stdlog.New(os.Stdout, "", 0)
)

func init() {
	SetLevel(LevelInfo)
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// SetOutput redirects leveled messages. Tests use it to capture output.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// SetConsole redirects the raw diagnostic sink used by Printf.
func SetConsole(w io.Writer) {
	console.SetOutput(w)
}

func shouldLog(level LogLevel) bool {
	return level >= GetLevel()
}

// output writes one leveled line. Tags are padded to a common width so
// messages line up.
func output(level LogLevel, msg string) {
	if level < LevelFatal && !shouldLog(level) {
		return
	}
	logger.Printf("%-7s %s", "["+level.String()+"]", msg)
}

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...any) {
	if shouldLog(LevelDebug) {
		output(LevelDebug, fmt.Sprintf(format, v...))
	}
}

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...any) {
	if shouldLog(LevelInfo) {
		output(LevelInfo, fmt.Sprintf(format, v...))
	}
}

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...any) {
	if shouldLog(LevelWarn) {
		output(LevelWarn, fmt.Sprintf(format, v...))
	}
}

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...any) {
	if shouldLog(LevelError) {
		output(LevelError, fmt.Sprintf(format, v...))
	}
}

// Fatal logs err, or any other value, regardless of the level and exits
// with status 1.
func Fatal(v ...any) {
	output(LevelFatal, fmt.Sprint(v...))
	exit(1)
}

// --- Diagnostic sink ---

// Printf writes unleveled output to the console sink. It is used for
// prediction tables and debug feature dumps, which are data rather than
// log events.
func Printf(format string, v ...any) {
	console.Printf(format, v...)
}

// FormatFloat renders a feature or score value with five decimals, the
// precision used in every prediction table.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 5, 64)
}
