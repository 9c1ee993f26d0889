// Package logging is the process-wide diagnostic logger. Output goes through
// Logf, which defaults to log.Printf and can be swapped or muted, and can be
// mirrored into a log file.
package logging

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Logf is the package-level diagnostic logger. Tests or production code can
// redirect or mute it with SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// exit ends the process after Fatalf
var exit = os.Exit

var (
	mu      sync.Mutex
	file    *os.File
	fileBuf *bufio.Writer
)

// SetLogger replaces the package logger. Passing nil sets a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// AlsoToFile tees all subsequent log output into fileName, truncating it.
// A previously opened log file is flushed and closed first.
func AlsoToFile(fileName string) error {
	mu.Lock()
	defer mu.Unlock()

	if err := closeLocked(); err != nil {
		return err
	}

	f, err := os.OpenFile(fileName, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	file = f
	fileBuf = bufio.NewWriter(f)
	log.SetOutput(io.MultiWriter(os.Stderr, &lockedWriter{}))
	return nil
}

// Close flushes and closes the log file, if any, and restores stderr output.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	log.SetOutput(os.Stderr)
	return closeLocked()
}

// Fatalf logs and exits with status 1, flushing the log file first.
// It writes through the standard logger so a muted Logf does not hide it.
func Fatalf(format string, v ...interface{}) {
	log.Printf(format, v...)
	_ = Close()
	exit(1)
}

func closeLocked() error {
	if file == nil {
		return nil
	}
	if err := fileBuf.Flush(); err != nil {
		return err
	}
	err := file.Close()
	file, fileBuf = nil, nil
	return err
}

// lockedWriter writes into the current log file under mu
type lockedWriter struct{}

func (lockedWriter) Write(p []byte) (int, error) {
	mu.Lock()
	defer mu.Unlock()
	if fileBuf == nil {
		return len(p), nil
	}
	return fileBuf.Write(p)
}
