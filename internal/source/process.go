package source

import (
	"fmt"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"
)

// ProcessState tracks the lifecycle of a supervised external process.
type ProcessState int32

const (
	ProcessNotStarted ProcessState = iota
	ProcessRunning
	ProcessStopping
	ProcessStopped
	ProcessFailed
)

func (s ProcessState) String() string {
	switch s {
	case ProcessNotStarted:
		return "not-started"
	case ProcessRunning:
		return "running"
	case ProcessStopping:
		return "stopping"
	case ProcessStopped:
		return "stopped"
	case ProcessFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ManagedProcess supervises a long-running external command with an
// explicit state machine and a bounded-wait termination protocol:
// SIGTERM, a grace period, then SIGKILL.
type ManagedProcess struct {
	name    string
	cmd     *exec.Cmd
	state   atomic.Int32
	done    chan struct{}
	waitErr error
}

// NewManagedProcess prepares a command for supervision. Start must be
// called before Done or Stop.
func NewManagedProcess(name string, arg ...string) *ManagedProcess {
	return &ManagedProcess{
		name: name,
		cmd:  exec.Command(name, arg...),
		done: make(chan struct{}),
	}
}

// Start launches the process and begins monitoring it.
func (p *ManagedProcess) Start() error {
	if err := p.cmd.Start(); err != nil {
		p.state.Store(int32(ProcessFailed))
		return fmt.Errorf("failed to start %s: %w", p.name, err)
	}
	p.state.Store(int32(ProcessRunning))

	go func() {
		err := p.cmd.Wait()
		// waitErr is published before done closes; readers must wait on
		// Done before calling Err.
		p.waitErr = err
		if ProcessState(p.state.Load()) == ProcessStopping || err == nil {
			p.state.Store(int32(ProcessStopped))
		} else {
			p.state.Store(int32(ProcessFailed))
		}
		close(p.done)
	}()
	return nil
}

// Done is closed once the process has exited.
func (p *ManagedProcess) Done() <-chan struct{} {
	return p.done
}

// Err returns the process exit error. Only valid after Done is closed.
func (p *ManagedProcess) Err() error {
	return p.waitErr
}

// State returns the current lifecycle state.
func (p *ManagedProcess) State() ProcessState {
	return ProcessState(p.state.Load())
}

// Stop terminates the process gracefully, waiting up to grace before a
// forced kill. Safe to call if the process has already exited.
func (p *ManagedProcess) Stop(grace time.Duration) error {
	select {
	case <-p.done:
		return nil
	default:
	}

	p.state.Store(int32(ProcessStopping))
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Process may have exited between the check and the signal.
		select {
		case <-p.done:
			return nil
		default:
			return fmt.Errorf("failed to signal %s: %w", p.name, err)
		}
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(grace):
	}

	if err := p.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("failed to kill %s: %w", p.name, err)
	}
	<-p.done
	return nil
}
