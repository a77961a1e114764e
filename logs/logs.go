// Package logs provides per-subsystem loggers over a single rotated backend,
// in the shape of this module's teacher's logger package: a shared backend
// writer, one rotator, and a small set of named subsystem loggers. Loggers
// always write to stdout, and also to the rotated file once InitRotator has
// succeeded.
package logs

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/jrick/logrotate/rotator"
)

// Level is a logging verbosity level.
type Level int

// Levels, most to least verbose.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelOff
)

// Subsystem tags. One Logger is created per tag the first time it is
// requested via Get.
const (
	Value       = "VALU"
	Transaction = "TXNS"
	Pool        = "POOL"
	Block       = "BLKS"
	Merkle      = "MRKL"
	Bloom       = "BLOM"
)

var (
	mu        sync.Mutex
	initiated bool
	rotate    *rotator.Rotator
	loggers   = map[string]*Logger{}
	level     = LevelInfo
)

// InitRotator opens the rotated log file, the counterpart of the teacher's
// logger.InitLogRotators. Lines logged before it is called go to stdout
// only.
func InitRotator(logFile string, maxRolls int) error {
	mu.Lock()
	defer mu.Unlock()
	r, err := rotator.New(logFile, 10*1024, false, maxRolls)
	if err != nil {
		return fmt.Errorf("logs: failed to create rotator: %w", err)
	}
	rotate = r
	initiated = true
	return nil
}

// SetLevel changes the process-wide minimum level for all subsystem loggers.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// Logger is a subsystem-scoped logger. The zero value is not usable; obtain
// one via Get.
type Logger struct {
	tag string
}

// Get returns the Logger for the given subsystem tag, creating it on first
// use.
func Get(tag string) *Logger {
	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[tag]; ok {
		return l
	}
	l := &Logger{tag: tag}
	loggers[tag] = l
	return l
}

func (l *Logger) write(lvl Level, lvlName, format string, args ...interface{}) {
	mu.Lock()
	cur := level
	r := rotate
	init := initiated
	mu.Unlock()

	if lvl < cur {
		return
	}
	line := fmt.Sprintf("%s [%s] %s\n", lvlName, l.tag, fmt.Sprintf(format, args...))
	var w io.Writer = os.Stdout
	_, _ = w.Write([]byte(line))
	if init && r != nil {
		_, _ = r.Write([]byte(line))
	}
}

// Debugf logs at debug level.
func (l *Logger) Debugf(format string, args ...interface{}) { l.write(LevelDebug, "DBG", format, args...) }

// Infof logs at info level.
func (l *Logger) Infof(format string, args ...interface{}) { l.write(LevelInfo, "INF", format, args...) }

// Warnf logs at warn level.
func (l *Logger) Warnf(format string, args ...interface{}) { l.write(LevelWarn, "WRN", format, args...) }

// Errorf logs at error level.
func (l *Logger) Errorf(format string, args ...interface{}) { l.write(LevelError, "ERR", format, args...) }

// Criticalf logs at error level and is used by panics.HandlePanic/Exit to
// mark a fatal condition; the data plane has no level above error.
func (l *Logger) Criticalf(format string, args ...interface{}) {
	l.write(LevelError, "CRT", format, args...)
}

// Dumpf logs a debug-level message followed by a go-spew dump of value,
// for diagnosing malformed pool rows and other structured state that a
// plain %+v would render unreadably.
func (l *Logger) Dumpf(message string, value interface{}) {
	l.write(LevelDebug, "DBG", "%s\n%s", message, spew.Sdump(value))
}

// CloseRotator closes the backing rotator, if one was initialized. Safe to
// call even if InitRotator was never called.
func CloseRotator() error {
	mu.Lock()
	r := rotate
	mu.Unlock()
	if r == nil {
		return nil
	}
	return r.Close()
}
