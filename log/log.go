// Package log provides go-ethereum-style leveled, structured logging:
// Logger.Info("message", "key", value, "key2", value2, ...).
package log

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-stack/stack"
)

// Lvl is a log level.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlTrace:
		return "trce"
	case LvlDebug:
		return "dbug"
	case LvlInfo:
		return "info"
	case LvlWarn:
		return "warn"
	case LvlError:
		return "eror"
	case LvlCrit:
		return "crit"
	default:
		return "unkn"
	}
}

// Record is a single log event.
type Record struct {
	Time time.Time
	Lvl  Lvl
	Msg  string
	Ctx  []interface{}
	Call stack.Call
}

// Logger writes leveled, structured log records.
type Logger interface {
	New(ctx ...interface{}) Logger
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
	SetHandler(h Handler)
}

// Handler processes a Record, e.g. by formatting and writing it somewhere.
type Handler interface {
	Log(r *Record) error
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(r *Record) error

func (f HandlerFunc) Log(r *Record) error { return f(r) }

type logger struct {
	ctx []interface{}
	mu  sync.Mutex
	h   Handler
}

// New creates a detached Logger carrying ctx as its base key-value pairs.
func New(ctx ...interface{}) Logger {
	return &logger{ctx: normalize(ctx), h: root.h}
}

func (l *logger) write(msg string, lvl Lvl, ctx []interface{}, skip int) {
	l.mu.Lock()
	h := l.h
	l.mu.Unlock()
	if h == nil {
		return
	}
	r := &Record{
		Time: time.Now(),
		Lvl:  lvl,
		Msg:  msg,
		Ctx:  append(append([]interface{}{}, l.ctx...), normalize(ctx)...),
	}
	if lvl == LvlCrit {
		r.Call = stack.Caller(skip)
	}
	_ = h.Log(r)
}

func (l *logger) New(ctx ...interface{}) Logger {
	child := &logger{ctx: append(append([]interface{}{}, l.ctx...), normalize(ctx)...)}
	l.mu.Lock()
	child.h = l.h
	l.mu.Unlock()
	return child
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(msg, LvlTrace, ctx, 2) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(msg, LvlDebug, ctx, 2) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(msg, LvlInfo, ctx, 2) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(msg, LvlWarn, ctx, 2) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(msg, LvlError, ctx, 2) }
func (l *logger) Crit(msg string, ctx ...interface{}) {
	l.write(msg, LvlCrit, ctx, 2)
	os.Exit(1)
}

func (l *logger) SetHandler(h Handler) {
	l.mu.Lock()
	l.h = h
	l.mu.Unlock()
}

// normalize ensures ctx has an even number of elements, flagging malformed
// call sites instead of panicking on a missing value.
func normalize(ctx []interface{}) []interface{} {
	if len(ctx)%2 != 0 {
		return append(ctx, "LOG_ERROR", fmt.Sprintf("normalized odd number of arguments: %d", len(ctx)))
	}
	return ctx
}

var root = &logger{h: StreamHandler(os.Stderr, TerminalFormat(isTerminal(os.Stderr)))}

// Root returns the process-wide root Logger.
func Root() Logger { return root }

func Trace(msg string, ctx ...interface{}) { root.write(msg, LvlTrace, ctx, 2) }
func Debug(msg string, ctx ...interface{}) { root.write(msg, LvlDebug, ctx, 2) }
func Info(msg string, ctx ...interface{})  { root.write(msg, LvlInfo, ctx, 2) }
func Warn(msg string, ctx ...interface{})  { root.write(msg, LvlWarn, ctx, 2) }
func Error(msg string, ctx ...interface{}) { root.write(msg, LvlError, ctx, 2) }
func Crit(msg string, ctx ...interface{}) {
	root.write(msg, LvlCrit, ctx, 2)
	os.Exit(1)
}
