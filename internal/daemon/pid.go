// Package daemon runs FinTrack's reminder process in the foreground and
// manages it from the CLI.
package daemon

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// Errors
var (
	ErrNotRunning     = errors.New("daemon is not running")
	ErrAlreadyRunning = errors.New("daemon is already running")
)

// PIDFile records which process owns the daemon role. The file doubles as
// the lock: it is created exclusively and only taken over once its owner
// has died.
type PIDFile struct {
	path string
}

// NewPIDFile creates a PID file manager for path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Acquire claims the file for the current process. It returns
// ErrAlreadyRunning while another live process holds it.
func (p *PIDFile) Acquire() error {
	return p.acquire(os.Getpid())
}

func (p *PIDFile) acquire(pid int) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}

	// Two attempts: the second follows removal of a stale file.
	for range 2 {
		f, err := os.OpenFile(p.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(pid))
			if cerr := f.Close(); werr == nil {
				werr = cerr
			}
			if werr != nil {
				os.Remove(p.path)
				return fmt.Errorf("failed to write PID file: %w", werr)
			}
			return nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("failed to create PID file: %w", err)
		}

		if owner := p.RunningPID(); owner != 0 {
			return fmt.Errorf("%w (PID: %d)", ErrAlreadyRunning, owner)
		}
		if err := p.Remove(); err != nil {
			return err
		}
	}
	return ErrAlreadyRunning
}

// Release removes the file if it still names the current process.
func (p *PIDFile) Release() error {
	pid, err := p.Read()
	if err != nil || pid != os.Getpid() {
		return nil
	}
	return p.Remove()
}

// Read returns the PID stored in the file, or ErrNotRunning when there is
// no file.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotRunning
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	return pid, nil
}

// Remove deletes the file regardless of its owner.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// IsRunning checks if the process named in the file is alive.
func (p *PIDFile) IsRunning() bool {
	return p.RunningPID() > 0
}

// RunningPID returns the PID if the daemon is running, or 0 if not.
func (p *PIDFile) RunningPID() int {
	pid, err := p.Read()
	if err != nil || !IsProcessRunning(pid) {
		return 0
	}
	return pid
}

// Signal sends sig to the running daemon.
func (p *PIDFile) Signal(sig os.Signal) error {
	pid := p.RunningPID()
	if pid == 0 {
		return ErrNotRunning
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	return process.Signal(sig)
}

// Path returns the PID file path.
func (p *PIDFile) Path() string {
	return p.path
}

// IsProcessRunning checks if a process with the given PID is running.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// FindProcess always succeeds on Unix; signal 0 probes for existence.
	return process.Signal(syscall.Signal(0)) == nil
}
