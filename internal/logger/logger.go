package logger

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/data/binding"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ConserveLee/cookie-idle/internal/constants"
)

// AppLogger handles application logging to the console and an optional UI sink
type AppLogger struct {
	sugar *zap.SugaredLogger
}

// New creates a logger writing to stdout at the given level. When sink is not
// nil every formatted line is also handed to it.
func New(level zapcore.Level, sink func(string)) *AppLogger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	encCfg.StacktraceKey = ""

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), level),
	}

	if sink != nil {
		// The UI gets INFO and above regardless of the console level, debug stays on stdout
		uiLevel := zapcore.InfoLevel
		if level > uiLevel {
			uiLevel = level
		}
		uiCfg := encCfg
		uiCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(uiCfg),
			zapcore.AddSync(&lineSinkWriter{sink: sink}),
			uiLevel,
		))
	}

	return &AppLogger{sugar: zap.New(zapcore.NewTee(cores...)).Sugar()}
}

// Nop returns a logger that discards everything
func Nop() *AppLogger {
	return &AppLogger{sugar: zap.NewNop().Sugar()}
}

// ParseLevel maps a level name to a zap level
func ParseLevel(value string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warning", "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q (expected debug|info|warn|error)", value)
	}
}

// Info logs an informational message
func (l *AppLogger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning
func (l *AppLogger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *AppLogger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Debug logs a debug message to stdout only (to keep UI clean)
func (l *AppLogger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Sync flushes buffered entries
func (l *AppLogger) Sync() {
	_ = l.sugar.Sync()
}

// BindingSink appends lines to a fyne string list, keeping the last MaxLogLines
func BindingSink(data binding.StringList) func(string) {
	return func(line string) {
		fyne.Do(func() {
			_ = data.Append(line)

			list, _ := data.Get()
			if len(list) > constants.MaxLogLines {
				_ = data.Set(list[len(list)-constants.MaxLogLines:])
			}
		})
	}
}

// lineSinkWriter splits encoder output into lines for the sink
type lineSinkWriter struct {
	sink  func(line string)
	mu    sync.Mutex
	lines bytes.Buffer
}

func (w *lineSinkWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	total := len(p)
	for len(p) > 0 {
		idx := bytes.IndexByte(p, '\n')
		if idx == -1 {
			_, _ = w.lines.Write(p)
			break
		}
		_, _ = w.lines.Write(p[:idx])
		line := strings.TrimSpace(w.lines.String())
		w.lines.Reset()
		if line != "" {
			w.sink(line)
		}
		p = p[idx+1:]
	}
	return total, nil
}
