// Package logger provides the diagnostic output channel for pkgcat.
//
// Diagnostics (fatal errors, the binary-file notice) go to stderr and
// never mix with matched entry content, which the scanner writes to
// stdout directly. Output is colorized only when the sink is a
// terminal; the color library's NO_COLOR handling is respected.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

// Logger writes human-readable diagnostics to a single sink. It is
// safe for concurrent use.
type Logger struct {
	writer   io.Writer
	mutex    sync.Mutex
	colorize bool
}

// New creates a Logger writing to w. If w is nil, messages are
// silently discarded. Color is enabled only for os.Stdout/os.Stderr
// when they are terminals.
func New(w io.Writer) *Logger {
	return &Logger{
		writer:   w,
		colorize: isTerminal(w),
	}
}

// isTerminal reports whether w is a color-capable terminal sink.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	if w == os.Stdout || w == os.Stderr {
		// color.NoColor already folds in TTY detection and NO_COLOR.
		return !color.NoColor
	}
	return false
}

// Errorf writes a fatal diagnostic in the tool's canonical
// "error: <message>" form.
func (l *Logger) Errorf(format string, args ...interface{}) {
	if l.writer == nil {
		return
	}

	prefix := "error:"
	if l.colorize {
		prefix = color.New(color.FgRed, color.Bold).Sprint("error:")
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()
	fmt.Fprintf(l.writer, "%s %s\n", prefix, fmt.Sprintf(format, args...))
}

// Warnf writes a non-fatal diagnostic, such as the notice emitted when
// a matched entry is skipped for being binary.
func (l *Logger) Warnf(format string, args ...interface{}) {
	if l.writer == nil {
		return
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()
	fmt.Fprintf(l.writer, format+"\n", args...)
}
