// Package logging writes the ingest log: one line per pipeline event,
// tagged with the phase it happened in (header, body, finalize, assemble,
// publish) so a long bulk load can be grepped per phase after the fact.
// Warnings and errors are mirrored to stderr; everything else goes to the
// log file only, when one is open. The zero state (no Open call) is
// usable: a library caller who never configures logging still sees
// warnings on stderr and nothing else.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level is an event's severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// sink is the process-wide log destination. file may stay nil for the
// whole process lifetime; console is stderr unless a test swaps it.
var sink struct {
	mu      sync.Mutex
	file    io.WriteCloser
	path    string
	floor   Level
	console io.Writer
}

func init() {
	sink.floor = LevelInfo
	sink.console = os.Stderr
}

// Open routes the ingest log to dir/name.log, creating dir as needed.
// Events below floor are discarded. Reopening replaces the previous file.
func Open(dir, name string, floor Level) error {
	if name == "" {
		name = "fwfr"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, name+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.file != nil {
		sink.file.Close()
	}
	sink.file, sink.path, sink.floor = f, path, floor
	return nil
}

// Close flushes and detaches the log file. Warnings keep going to stderr.
func Close() error {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.file == nil {
		return nil
	}
	err := sink.file.Close()
	sink.file, sink.path = nil, ""
	return err
}

// Path returns the open log file's path, or "" when none is open.
func Path() string {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	return sink.path
}

// Event records one phase-tagged line. phase names the pipeline step the
// event belongs to ("header", "body", "assemble", ...); free-form tags
// like "publish" are fine for events outside the read loop.
func Event(level Level, phase, format string, args ...any) {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.file == nil && level < LevelWarn {
		return
	}
	line := fmt.Sprintf("%s %-5s [%s] %s\n",
		time.Now().Format("2006/01/02 15:04:05"), level, phase,
		fmt.Sprintf(format, args...))
	if sink.file != nil && level >= sink.floor {
		io.WriteString(sink.file, line)
	}
	if level >= LevelWarn {
		io.WriteString(sink.console, line)
	}
}
