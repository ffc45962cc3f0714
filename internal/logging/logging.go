// Package logging provides logger creation.
package logging

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dekarrin/jellog"
)

// Logger is the logging surface used throughout shelf.
type Logger interface {
	Trace(msg string)
	Tracef(msg string, a ...interface{})
	Debug(msg string)
	Debugf(msg string, a ...interface{})
	Info(msg string)
	Infof(msg string, a ...interface{})
	Warn(msg string)
	Warnf(msg string, a ...interface{})
	Error(msg string)
	Errorf(msg string, a ...interface{})
}

// Provider selects the logging implementation.
type Provider int

const (
	NoLog Provider = iota
	Jellog
	StdLog
)

func (p Provider) String() string {
	switch p {
	case NoLog:
		return "none"
	case Jellog:
		return "jellog"
	case StdLog:
		return "std"
	default:
		return fmt.Sprintf("Provider(%d)", int(p))
	}
}

// ParseProvider parses a provider name. The empty string means NoLog.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(s) {
	case NoLog.String(), "":
		return NoLog, nil
	case Jellog.String():
		return Jellog, nil
	case StdLog.String():
		return StdLog, nil
	default:
		return NoLog, fmt.Errorf("unknown log provider %q", s)
	}
}

// New creates a new logger of the given provider. If filename is blank, it will
// not log to disk, only stderr, and the stderr logger will be configured at
// trace level instead of info level. NoLog returns a NoOpLogger.
func New(p Provider, filename string) (Logger, error) {
	switch p {
	case NoLog:
		return NoOpLogger{}, nil
	case Jellog:
		j := jellog.New(jellog.Defaults[string]().WithComponent("shelf"))
		if filename != "" {
			logOut, err := fileHandler(filename)
			if err != nil {
				return nil, fmt.Errorf("open logfile: %q: %w", filename, err)
			}
			j.AddHandler(jellog.LvTrace, logOut)
			j.AddHandler(jellog.LvInfo, jellog.NewStderrHandler(nil))
		} else {
			j.AddHandler(jellog.LvTrace, jellog.NewStderrHandler(nil))
		}
		return jellogLogger{j: j}, nil
	case StdLog:
		if filename == "" {
			return NewStd(os.Stderr), nil
		}
		fileWriter, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open logfile: %q: %w", filename, err)
		}
		return stdLogger{std: newStdlog(io.MultiWriter(os.Stderr, fileWriter)), file: fileWriter}, nil
	default:
		return nil, fmt.Errorf("unknown provider: %q", p.String())
	}
}

// NewStd returns a Logger writing level-prefixed lines to w with the standard
// library logger.
func NewStd(w io.Writer) Logger {
	return stdLogger{std: newStdlog(w)}
}

func newStdlog(w io.Writer) *stdlog.Logger {
	return stdlog.New(w, "", stdlog.Ldate|stdlog.Ltime|stdlog.LUTC)
}

// Close releases the log file held by l, if any.
func Close(l Logger) error {
	if c, ok := l.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// jellog file handlers have no Close and must not share a file, so one
// handler per log file is opened and kept for the life of the process.
var (
	fileHandlersMu sync.Mutex
	fileHandlers   = map[string]*jellog.FileHandler{}
)

func fileHandler(filename string) (*jellog.FileHandler, error) {
	abs, err := filepath.Abs(filename)
	if err != nil {
		return nil, err
	}
	fileHandlersMu.Lock()
	defer fileHandlersMu.Unlock()

	if h, ok := fileHandlers[abs]; ok {
		return h, nil
	}
	h, err := jellog.OpenFile(abs, nil)
	if err != nil {
		return nil, err
	}
	fileHandlers[abs] = h
	return h, nil
}

// NoOpLogger is a logger that performs no operations.
type NoOpLogger struct{}

func (NoOpLogger) Trace(msg string)                    {}
func (NoOpLogger) Tracef(msg string, a ...interface{}) {}
func (NoOpLogger) Debug(msg string)                    {}
func (NoOpLogger) Debugf(msg string, a ...interface{}) {}
func (NoOpLogger) Info(msg string)                     {}
func (NoOpLogger) Infof(msg string, a ...interface{})  {}
func (NoOpLogger) Warn(msg string)                     {}
func (NoOpLogger) Warnf(msg string, a ...interface{})  {}
func (NoOpLogger) Error(msg string)                    {}
func (NoOpLogger) Errorf(msg string, a ...interface{}) {}

type stdLogger struct {
	std  *stdlog.Logger
	file *os.File
}

// Close closes the log file, if the logger writes to one.
func (log stdLogger) Close() error {
	if log.file == nil {
		return nil
	}
	return log.file.Close()
}

func (log stdLogger) Trace(msg string) {
	log.std.Print("TRACE " + msg)
}

func (log stdLogger) Tracef(msg string, a ...interface{}) {
	log.std.Printf("TRACE "+msg, a...)
}

func (log stdLogger) Debug(msg string) {
	log.std.Print("DEBUG " + msg)
}

func (log stdLogger) Debugf(msg string, a ...interface{}) {
	log.std.Printf("DEBUG "+msg, a...)
}

func (log stdLogger) Info(msg string) {
	log.std.Print("INFO  " + msg)
}

func (log stdLogger) Infof(msg string, a ...interface{}) {
	log.std.Printf("INFO  "+msg, a...)
}

func (log stdLogger) Warn(msg string) {
	log.std.Print("WARN  " + msg)
}

func (log stdLogger) Warnf(msg string, a ...interface{}) {
	log.std.Printf("WARN  "+msg, a...)
}

func (log stdLogger) Error(msg string) {
	log.std.Print("ERROR " + msg)
}

func (log stdLogger) Errorf(msg string, a ...interface{}) {
	log.std.Printf("ERROR "+msg, a...)
}

type jellogLogger struct {
	j jellog.Logger[string]
}

func (log jellogLogger) Trace(msg string) {
	log.j.Trace(msg)
}

func (log jellogLogger) Tracef(msg string, a ...interface{}) {
	log.j.Tracef(msg, a...)
}

func (log jellogLogger) Debug(msg string) {
	log.j.Debug(msg)
}

func (log jellogLogger) Debugf(msg string, a ...interface{}) {
	log.j.Debugf(msg, a...)
}

func (log jellogLogger) Info(msg string) {
	log.j.Info(msg)
}

func (log jellogLogger) Infof(msg string, a ...interface{}) {
	log.j.Infof(msg, a...)
}

func (log jellogLogger) Warn(msg string) {
	log.j.Warn(msg)
}

func (log jellogLogger) Warnf(msg string, a ...interface{}) {
	log.j.Warnf(msg, a...)
}

func (log jellogLogger) Error(msg string) {
	log.j.Error(msg)
}

func (log jellogLogger) Errorf(msg string, a ...interface{}) {
	log.j.Errorf(msg, a...)
}
