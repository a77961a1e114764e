// Package panics adapts the teacher's panic-recovery helper to this
// module's own logs package: recover a panic, log it at the data plane's
// Criticalf level, flush the log rotator, and exit.
package panics

import (
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/ezchain/ezchain-core/logs"
)

// HandlePanic recovers a panic, logs it (with an optional captured
// goroutine stack trace), flushes the rotator, and exits the process.
func HandlePanic(log *logs.Logger, goroutineStackTrace []byte) {
	err := recover()
	if err == nil {
		return
	}

	panicHandlerDone := make(chan struct{})
	go func() {
		log.Criticalf("fatal error: %+v", err)
		if goroutineStackTrace != nil {
			log.Criticalf("goroutine stack trace: %s", goroutineStackTrace)
		}
		log.Criticalf("stack trace: %s", debug.Stack())
		_ = logs.CloseRotator()
		close(panicHandlerDone)
	}()

	const panicHandlerTimeout = 5 * time.Second
	select {
	case <-time.After(panicHandlerTimeout):
		fmt.Fprintln(os.Stderr, "couldn't handle a fatal error, exiting")
	case <-panicHandlerDone:
	}
	log.Criticalf("exiting")
	os.Exit(1)
}

// GoroutineWrapperFunc returns a function that launches its argument in a
// goroutine protected by HandlePanic.
func GoroutineWrapperFunc(log *logs.Logger) func(func()) {
	return func(f func()) {
		stackTrace := debug.Stack()
		go func() {
			defer HandlePanic(log, stackTrace)
			f()
		}()
	}
}

// Exit logs reason, flushes the rotator, and exits the process.
func Exit(log *logs.Logger, reason string) {
	exitHandlerDone := make(chan struct{})
	go func() {
		log.Criticalf("exiting: %s", reason)
		_ = logs.CloseRotator()
		close(exitHandlerDone)
	}()

	const exitHandlerTimeout = 5 * time.Second
	select {
	case <-time.After(exitHandlerTimeout):
		fmt.Fprintln(os.Stderr, "couldn't exit gracefully")
	case <-exitHandlerDone:
	}
	os.Exit(1)
}
