// Package relaunch replaces the running kiosk with a fresh instance of the
// same executable.
package relaunch

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
)

// Process implements the controller's process boundary for the current OS
// process.
type Process struct {
	// Path and Args are the program to start. NewProcess fills them from the
	// running executable.
	Path   string
	Args   []string
	Env    []string
	Logger *slog.Logger

	// Flush releases resources the replacement needs, such as the IPC
	// socket and X key grabs. It runs once, before the child starts or
	// before Exit, whichever comes first.
	Flush func()

	flushOnce sync.Once
	exit      func(int)
	start     func(*exec.Cmd) error
}

// NewProcess describes the current process for relaunching.
func NewProcess(logger *slog.Logger) (*Process, error) {
	path, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Process{
		Path:   path,
		Args:   append([]string(nil), os.Args[1:]...),
		Env:    os.Environ(),
		Logger: logger,
	}, nil
}

// Command builds the detached child command.
func (p *Process) Command() *exec.Cmd {
	cmd := exec.Command(p.Path, p.Args...)
	cmd.Env = p.Env
	cmd.Stdin = nil
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = sysProcAttr()
	return cmd
}

// Relaunch starts the new instance. It does not wait for it.
func (p *Process) Relaunch() error {
	p.flush()
	cmd := p.Command()
	start := p.start
	if start == nil {
		start = (*exec.Cmd).Start
	}
	if err := start(cmd); err != nil {
		return fmt.Errorf("failed to relaunch %s: %w", p.Path, err)
	}
	p.Logger.Info("relaunched", "path", p.Path, "args", p.Args, "pid", pid(cmd))
	if cmd.Process != nil {
		_ = cmd.Process.Release()
	}
	return nil
}

// Exit terminates the current process.
func (p *Process) Exit(code int) {
	p.flush()
	exit := p.exit
	if exit == nil {
		exit = os.Exit
	}
	exit(code)
}

func (p *Process) flush() {
	p.flushOnce.Do(func() {
		if p.Flush != nil {
			p.Flush()
		}
	})
}

func pid(cmd *exec.Cmd) int {
	if cmd.Process == nil {
		return 0
	}
	return cmd.Process.Pid
}
