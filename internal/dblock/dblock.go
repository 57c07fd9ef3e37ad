// Package dblock implements the advisory lock on the class/selector
// database directory: an exclusive lock acquired before any
// modification and held until the process exits or is explicitly
// released, with either an immediate-abort or a once-per-second
// poll-with-indicator behavior when the lock is already held (the
// `-a`/`-u` flags).
//
// The waiting indicator uses the bubbles/spinner frame table
// (spinner.Dot) purely as a data source — this is a one-shot batch
// compiler with no Bubble Tea event loop to drive, so only the frame
// strings are used, advanced by hand in step with the poll interval.
package dblock

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// ErrHeld is returned by Acquire when AbortIfHeld is set and the lock
// is already held by another process.
var ErrHeld = errors.New("dblock: class database lock is already held")

// Lock guards the class/selector database directory. The zero value is
// a usable no-op lock (selected by `-u`): Acquire always
// succeeds immediately and Release is a no-op.
type Lock struct {
	path        string
	f           *os.File
	noop        bool
	abortIfHeld bool
	out         io.Writer
}

// New creates a Lock over the lockfile at path. abortIfHeld mirrors the
// `-a` flag: Acquire returns ErrHeld immediately instead of polling
// when the lock is contended. out receives the "waiting for lock…"
// indicator; nil silences it.
func New(path string, abortIfHeld bool, out io.Writer) *Lock {
	return &Lock{path: path, abortIfHeld: abortIfHeld, out: out}
}

// NoOp creates a Lock that never actually locks anything — the `-u`
// (skip lock) mode.
func NoOp() *Lock { return &Lock{noop: true} }

// Acquire takes the exclusive advisory lock, polling once per second
// with a spinner-style indicator until it succeeds, unless abortIfHeld
// is set, in which case contention returns ErrHeld immediately.
func (l *Lock) Acquire() error {
	if l.noop {
		return nil
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("dblock: open %s: %w", l.path, err)
	}

	frames := spinner.Dot.Frames
	frame := 0
	for {
		err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			l.f = f
			return nil
		}
		if !errors.Is(err, syscall.EWOULDBLOCK) {
			_ = f.Close()
			return fmt.Errorf("dblock: flock %s: %w", l.path, err)
		}
		if l.abortIfHeld {
			_ = f.Close()
			return ErrHeld
		}
		if l.out != nil {
			fmt.Fprintf(l.out, "\r%s waiting for class database lock...", frames[frame%len(frames)])
		}
		frame++
		time.Sleep(time.Second)
	}
}

// Release drops the lock and closes the lockfile. Safe to call on an
// unacquired or no-op Lock.
func (l *Lock) Release() error {
	if l.noop || l.f == nil {
		return nil
	}
	err := syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	cerr := l.f.Close()
	l.f = nil
	if err != nil {
		return err
	}
	return cerr
}
