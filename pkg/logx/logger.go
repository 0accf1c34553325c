package logx

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

type Level = zerolog.Level

const (
	LevelTrace = zerolog.TraceLevel
	LevelDebug = zerolog.DebugLevel
	LevelInfo  = zerolog.InfoLevel
	LevelWarn  = zerolog.WarnLevel
	LevelError = zerolog.ErrorLevel
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func init() {
	zerolog.ErrorFieldName = "err"
	zerolog.TimeFieldFormat = timeLayout
}

// Logger is cheap to copy. The zero value drops every record.
type Logger struct {
	zl    *zerolog.Logger
	extra []Field
}

func Nop() Logger {
	zl := zerolog.Nop()
	return Logger{zl: &zl}
}

// NewConsole logs human-readable lines to stdout. main uses it until the
// config is loaded.
func NewConsole(level string) Logger {
	zl := zerolog.New(consoleWriter(os.Stdout)).Level(parseLevel(level, LevelInfo)).With().Timestamp().Logger()
	return Logger{zl: &zl}
}

// NewJSON logs one JSON object per line to w, without timestamps.
func NewJSON(w io.Writer, level string) Logger {
	zl := zerolog.New(w).Level(parseLevel(level, LevelDebug))
	return Logger{zl: &zl}
}

func (l Logger) IsZero() bool { return l.zl == nil && len(l.extra) == 0 }

func (l Logger) Enabled(level Level) bool {
	return l.zl != nil && level >= l.zl.GetLevel()
}

// With returns a child logger that stamps fields on every record.
func (l Logger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	child := l
	child.extra = append(append(make([]Field, 0, len(l.extra)+len(fields)), l.extra...), fields...)
	return child
}

func (l Logger) Debug(msg string, fields ...Field) { l.emit(LevelDebug, msg, fields) }
func (l Logger) Info(msg string, fields ...Field)  { l.emit(LevelInfo, msg, fields) }
func (l Logger) Warn(msg string, fields ...Field)  { l.emit(LevelWarn, msg, fields) }
func (l Logger) Error(msg string, fields ...Field) { l.emit(LevelError, msg, fields) }

func (l Logger) emit(level Level, msg string, fields []Field) {
	if l.zl == nil {
		return
	}
	ev := l.zl.WithLevel(level)
	if ev == nil {
		return
	}
	// 0 is emit, 1 is Debug/Info/..., 2 is the call site.
	if _, file, line, ok := runtime.Caller(2); ok {
		ev.Str(zerolog.CallerFieldName, filepath.Base(file)+":"+strconv.Itoa(line))
	}
	for _, f := range l.extra {
		if f != nil {
			f(ev)
		}
	}
	for _, f := range fields {
		if f != nil {
			f(ev)
		}
	}
	ev.Msg(msg)
}

func consoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: timeLayout,
		FormatCaller: func(v any) string {
			s, _ := v.(string)
			return s
		},
	}
}

func parseLevel(s string, fallback Level) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	}
	return fallback
}
