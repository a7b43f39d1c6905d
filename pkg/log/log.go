package log

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global structured logger instance.
var Logger zerolog.Logger

// Level represents a log severity.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

var levelNames = []struct {
	level Level
	name  string
}{
	{DebugLevel, "DEBUG"},
	{InfoLevel, "INFO"},
	{WarnLevel, "WARN"},
	{ErrorLevel, "ERROR"},
}

func levelName(l Level) string {
	for _, e := range levelNames {
		if e.level == l {
			return e.name
		}
	}
	return "UNKNOWN"
}

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer

	// FilePath, when non-empty, is the plain-text call-site sink opened
	// lazily by Callsite on first use. It is independent from Output,
	// which backs the structured zerolog Logger.
	FilePath string
}

// Init initializes the global structured logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}

	callsiteMu.Lock()
	callsitePath = cfg.FilePath
	callsiteFile = nil
	callsiteMu.Unlock()
}

// WithComponent creates a child logger tagged with a component name.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithHost creates a child logger tagged with a remote host.
func WithHost(host string) zerolog.Logger {
	return Logger.With().Str("host", host).Logger()
}

// WithConnID creates a child logger tagged with a pooled connection id.
func WithConnID(id string) zerolog.Logger {
	return Logger.With().Str("conn_id", id).Logger()
}

func Info(msg string)  { Logger.Info().Msg(msg) }
func Debug(msg string) { Logger.Debug().Msg(msg) }
func Warn(msg string)  { Logger.Warn().Msg(msg) }
func Error(msg string) { Logger.Error().Msg(msg) }

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

func Fatal(msg string) { Logger.Fatal().Msg(msg) }

var (
	callsiteMu   sync.Mutex
	callsitePath string
	callsiteFile *os.File
)

// timestamp renders the fixed "Day, DD Mon YYYY HH:MM:SS +0000" form used by
// the call-site sink, by manual digit emission rather than relying on a
// locale-sensitive layout string.
func timestamp(t time.Time) string {
	t = t.UTC()
	days := [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	months := [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun",
		"Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
	return fmt.Sprintf("%s, %02d %s %04d %02d:%02d:%02d +0000",
		days[t.Weekday()], t.Day(), months[t.Month()-1], t.Year(),
		t.Hour(), t.Minute(), t.Second())
}

// Callsite formats and appends one record to the lazily opened plain-text
// log file, in the manner of the original C client's log(file, function,
// line, level, format, ...) entry point. Opening the sink is attempted once
// per process; if it fails the record is silently dropped since logging
// must never fail the caller. The file is flushed after every record.
func Callsite(level Level, format string, args ...interface{}) {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file, line = "???", 0
	}
	fn := callerFuncName(2)
	writeCallsite(file, fn, line, level, format, args...)
}

func writeCallsite(file, function string, line int, level Level, format string, args ...interface{}) {
	callsiteMu.Lock()
	defer callsiteMu.Unlock()

	if callsitePath == "" {
		return
	}
	if callsiteFile == nil {
		f, err := os.OpenFile(callsitePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			// Logging must never fail the caller: drop silently.
			callsitePath = ""
			return
		}
		callsiteFile = f
	}

	msg := fmt.Sprintf(format, args...)
	line2 := fmt.Sprintf("%s: %s %s:%d %s\n", timestamp(time.Now()), levelName(level), file, line, msg)
	if _, err := callsiteFile.WriteString(line2); err != nil {
		return
	}
	_ = callsiteFile.Sync()
}

func callerFuncName(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return "???"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "???"
	}
	return fn.Name()
}
