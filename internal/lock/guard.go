// Package lock keeps one long-running sync watcher per workspace.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/randalmurphal/shelf/internal/util"
)

// PIDFileName is the guard file inside the .shelf directory.
const PIDFileName = "sync.pid"

// PIDGuard is a PID file naming the process that owns the watcher.
type PIDGuard struct {
	dir string
}

// NewPIDGuard creates a guard stored in dir.
func NewPIDGuard(dir string) *PIDGuard {
	return &PIDGuard{dir: dir}
}

func (g *PIDGuard) path() string {
	return filepath.Join(g.dir, PIDFileName)
}

// Holder returns the PID of a live process holding the guard, or 0. A file
// naming a dead process or holding garbage is removed.
func (g *PIDGuard) Holder() (int, error) {
	data, err := os.ReadFile(g.path())
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read pid file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || !processExists(pid) {
		_ = os.Remove(g.path())
		return 0, nil
	}
	return pid, nil
}

// Acquire claims the guard for this process. It fails with
// *AlreadyRunningError when another live process holds it.
func (g *PIDGuard) Acquire() error {
	pid, err := g.Holder()
	if err != nil {
		return err
	}
	if pid != 0 && pid != os.Getpid() {
		return &AlreadyRunningError{PID: pid}
	}
	if err := util.WriteFileAtomic(g.path(), []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// Release removes the guard if this process holds it.
func (g *PIDGuard) Release() {
	if pid, _ := g.Holder(); pid == os.Getpid() {
		_ = os.Remove(g.path())
	}
}

// AlreadyRunningError reports the process already watching.
type AlreadyRunningError struct {
	PID int
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("sync already running (pid %d)", e.PID)
}

// processExists sends signal 0, which checks for the process without
// affecting it.
func processExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
