// Package corelog provides the small leveled logger every other package in
// this module logs through.
package corelog

import (
	"io"
	"log"
	"os"
)

const (
	LevelSilent = iota
	LevelError
	LevelInfo
	LevelDebug
)

// Logger is the logging seam used across the core. Concrete stores,
// signaling, transport, and the orchestrator all take one of these rather
// than reaching for the stdlib log package directly.
type Logger interface {
	Debug(v ...interface{})
	Debugf(f string, v ...interface{})
	Info(v ...interface{})
	Infof(f string, v ...interface{})
	Error(v ...interface{})
	Errorf(f string, v ...interface{})
}

type basicLogger struct {
	debug *log.Logger
	info  *log.Logger
	err   *log.Logger
}

var _ Logger = &basicLogger{}

// New builds a Logger writing to stdout, gated by level, prefixed with
// prepend (typically the component name, e.g. "orchestrator: ").
func New(level int, prepend string) Logger {
	out := os.Stdout

	debugW, infoW, errW := func() (io.Writer, io.Writer, io.Writer) {
		switch {
		case level >= LevelDebug:
			return out, out, out
		case level >= LevelInfo:
			return io.Discard, out, out
		case level >= LevelError:
			return io.Discard, io.Discard, out
		default:
			return io.Discard, io.Discard, io.Discard
		}
	}()

	return &basicLogger{
		debug: log.New(debugW, "DEBUG: "+prepend, log.Ldate|log.Ltime),
		info:  log.New(infoW, "INFO: "+prepend, log.Ldate|log.Ltime),
		err:   log.New(errW, "ERROR: "+prepend, log.Ldate|log.Ltime),
	}
}

// Nop returns a Logger that discards everything, handy for tests.
func Nop() Logger { return New(LevelSilent, "") }

func (l *basicLogger) Debug(v ...interface{})            { l.debug.Println(v...) }
func (l *basicLogger) Debugf(f string, v ...interface{}) { l.debug.Printf(f, v...) }
func (l *basicLogger) Info(v ...interface{})             { l.info.Println(v...) }
func (l *basicLogger) Infof(f string, v ...interface{})  { l.info.Printf(f, v...) }
func (l *basicLogger) Error(v ...interface{})            { l.err.Println(v...) }
func (l *basicLogger) Errorf(f string, v ...interface{}) { l.err.Printf(f, v...) }
