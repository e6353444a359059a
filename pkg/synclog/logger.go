// Package synclog provides the engine's logger: a small leveled wrapper
// around the standard logger that still functions if nil (logging simply
// becomes a no-op), with a configurable level and TTY-aware coloring so
// that redirected output and CI logs don't pick up escape codes.
package synclog

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Logger is the main logger type. A nil *Logger is valid and logs nothing,
// so components can hold a Logger field without needing a separate
// "logging enabled" check. It is safe for concurrent use.
type Logger struct {
	prefix string
	level  Level
	color  bool
}

// NewRoot creates a root logger at the given level, writing to os.Stderr.
// Color is enabled only when stderr is an actual terminal.
func NewRoot(level Level) *Logger {
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime)
	return &Logger{
		level: level,
		color: isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()),
	}
}

// Sublogger creates a new logger with the same level and color settings,
// nested under the given name.
func (l *Logger) Sublogger(name string) *Logger {
	if l == nil {
		return nil
	}
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}
	return &Logger{prefix: prefix, level: l.level, color: l.color}
}

func (l *Logger) output(calldepth int, line string) {
	if l.prefix != "" {
		line = fmt.Sprintf("[%s] %s", l.prefix, line)
	}
	log.Output(calldepth, line)
}

func (l *Logger) enabled(level Level) bool {
	return l != nil && l.level >= level
}

func (l *Logger) colorize(paint func(string, ...interface{}) string, format string, v ...interface{}) string {
	if l.color {
		return paint(format, v...)
	}
	return fmt.Sprintf(format, v...)
}

// Error logs error information, in red when writing to a terminal.
func (l *Logger) Error(err error) {
	if !l.enabled(LevelError) {
		return
	}
	l.output(3, l.colorize(color.RedString, "Error: %v", err))
}

// Warn logs non-fatal error information, in yellow when writing to a
// terminal.
func (l *Logger) Warn(err error) {
	if !l.enabled(LevelWarn) {
		return
	}
	l.output(3, l.colorize(color.YellowString, "Warning: %v", err))
}

// Info logs basic cycle information with fmt.Print semantics.
func (l *Logger) Info(v ...interface{}) {
	if !l.enabled(LevelInfo) {
		return
	}
	l.output(3, fmt.Sprint(v...))
}

// Infof logs basic cycle information with fmt.Printf semantics.
func (l *Logger) Infof(format string, v ...interface{}) {
	if !l.enabled(LevelInfo) {
		return
	}
	l.output(3, fmt.Sprintf(format, v...))
}

// Debug logs per-action execution detail with fmt.Print semantics.
func (l *Logger) Debug(v ...interface{}) {
	if !l.enabled(LevelDebug) {
		return
	}
	l.output(3, fmt.Sprint(v...))
}

// Debugf logs per-action execution detail with fmt.Printf semantics.
func (l *Logger) Debugf(format string, v ...interface{}) {
	if !l.enabled(LevelDebug) {
		return
	}
	l.output(3, fmt.Sprintf(format, v...))
}

// Trace logs low-level detail with fmt.Print semantics.
func (l *Logger) Trace(v ...interface{}) {
	if !l.enabled(LevelTrace) {
		return
	}
	l.output(3, fmt.Sprint(v...))
}

// Tracef logs low-level detail with fmt.Printf semantics.
func (l *Logger) Tracef(format string, v ...interface{}) {
	if !l.enabled(LevelTrace) {
		return
	}
	l.output(3, fmt.Sprintf(format, v...))
}

// Writer returns an io.Writer that logs each line it receives at Info
// level. If the logger is nil or Info is disabled, the writer discards its
// input without scanning it for lines.
func (l *Logger) Writer() io.Writer {
	if !l.enabled(LevelInfo) {
		return io.Discard
	}
	return &lineWriter{callback: l.Info}
}

// lineWriter splits a stream into lines and forwards each complete line to
// callback, buffering any trailing partial line.
type lineWriter struct {
	callback func(...interface{})
	buffer   []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buffer = append(w.buffer, p...)
	processed := 0
	remaining := w.buffer
	for {
		index := bytes.IndexByte(remaining, '\n')
		if index == -1 {
			break
		}
		w.callback(string(bytes.TrimSuffix(remaining[:index], []byte{'\r'})))
		processed += index + 1
		remaining = remaining[index+1:]
	}
	if processed > 0 {
		leftover := len(w.buffer) - processed
		if leftover > 0 {
			copy(w.buffer[:leftover], w.buffer[processed:])
		}
		w.buffer = w.buffer[:leftover]
	}
	return len(p), nil
}
