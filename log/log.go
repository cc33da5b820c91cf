// Package log provides the leveled, module-scoped logger used across
// babencoin's services. The shape (module loggers handed out by a
// package-level registry, key/value context pairs, colorized terminal
// output) follows the node's own logging convention.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
)

// Level is a logging severity, ordered from most to least verbose.
type Level int

const (
	LvlTrace Level = iota
	LvlDebug
	LvlInfo
	LvlWarn
	LvlError
	LvlCrit
)

func (l Level) String() string {
	switch l {
	case LvlTrace:
		return "TRACE"
	case LvlDebug:
		return "DEBUG"
	case LvlInfo:
		return "INFO"
	case LvlWarn:
		return "WARN"
	case LvlError:
		return "ERROR"
	case LvlCrit:
		return "CRIT"
	default:
		return "UNKNOWN"
	}
}

func (l Level) color() *color.Color {
	switch l {
	case LvlTrace:
		return color.New(color.FgHiBlack)
	case LvlDebug:
		return color.New(color.FgCyan)
	case LvlInfo:
		return color.New(color.FgGreen)
	case LvlWarn:
		return color.New(color.FgYellow)
	case LvlError:
		return color.New(color.FgRed)
	case LvlCrit:
		return color.New(color.FgHiRed, color.Bold)
	default:
		return color.New()
	}
}

// Module names a subsystem that owns a logger, the way the teacher's
// log.Common/log.NodeCN constants select among module loggers.
type Module string

const (
	PeerService   Module = "PeerService"
	GossipService Module = "GossipService"
	MiningService Module = "MiningService"
	Forest        Module = "Forest"
	CLI           Module = "CLI"
	Common        Module = "Common"
)

var (
	mu       sync.Mutex
	minLevel = LvlInfo
	out      io.Writer = colorable.NewColorableStdout()
)

// SetLevel sets the process-wide minimum level that reaches the output.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = l
}

// SetOutput redirects log output, primarily for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Logger is a module-scoped, leveled logger with key/value context.
type Logger struct {
	module Module
	ctx    []interface{}
}

// NewModuleLogger returns the logger for the given module.
func NewModuleLogger(m Module) *Logger {
	return &Logger{module: m}
}

// New returns a child logger with additional persistent context pairs.
func (lg *Logger) New(ctx ...interface{}) *Logger {
	merged := make([]interface{}, 0, len(lg.ctx)+len(ctx))
	merged = append(merged, lg.ctx...)
	merged = append(merged, ctx...)
	return &Logger{module: lg.module, ctx: merged}
}

func (lg *Logger) Trace(msg string, ctx ...interface{}) { lg.write(LvlTrace, msg, ctx) }
func (lg *Logger) Debug(msg string, ctx ...interface{}) { lg.write(LvlDebug, msg, ctx) }
func (lg *Logger) Info(msg string, ctx ...interface{})  { lg.write(LvlInfo, msg, ctx) }
func (lg *Logger) Warn(msg string, ctx ...interface{})  { lg.write(LvlWarn, msg, ctx) }
func (lg *Logger) Error(msg string, ctx ...interface{}) { lg.write(LvlError, msg, ctx) }
func (lg *Logger) Crit(msg string, ctx ...interface{})  { lg.write(LvlCrit, msg, ctx) }

func (lg *Logger) write(lvl Level, msg string, ctx []interface{}) {
	mu.Lock()
	level, w := minLevel, out
	mu.Unlock()
	if lvl < level {
		return
	}

	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02T15:04:05.000Z07:00"))
	b.WriteByte(' ')
	b.WriteString(lvl.color().Sprint(lvl.String()))
	b.WriteByte(' ')
	b.WriteByte('[')
	b.WriteString(string(lg.module))
	b.WriteByte(']')
	b.WriteByte(' ')
	b.WriteString(msg)

	all := make([]interface{}, 0, len(lg.ctx)+len(ctx))
	all = append(all, lg.ctx...)
	all = append(all, ctx...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(&b, " %v=%v", all[i], all[i+1])
	}

	if lvl >= LvlError {
		// One call-stack frame above the logging call, for triage.
		call := stack.Caller(2)
		fmt.Fprintf(&b, " at=%+v", call)
	}
	b.WriteByte('\n')
	io.WriteString(w, b.String())
}

// root is the default logger, under the Common module, used by the
// package-level functions below for code that has not picked a module
// of its own (mirrors the teacher's package-level `log.Info(...)`
// convenience wrappers).
var root = NewModuleLogger(Common)

func Trace(msg string, ctx ...interface{}) { root.Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { root.Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { root.Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { root.Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { root.Error(msg, ctx...) }
func Crit(msg string, ctx ...interface{})  { root.Crit(msg, ctx...); os.Exit(1) }
