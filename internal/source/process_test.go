package source

import (
	"testing"
	"time"
)

func TestManagedProcessCleanExit(t *testing.T) {
	p := NewManagedProcess("true")
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process never exited")
	}
	if got := p.State(); got != ProcessStopped {
		t.Errorf("state = %v, want stopped", got)
	}
	if err := p.Err(); err != nil {
		t.Errorf("Err = %v, want nil for clean exit", err)
	}
}

func TestManagedProcessFailureExit(t *testing.T) {
	p := NewManagedProcess("sh", "-c", "exit 3")
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process never exited")
	}
	if got := p.State(); got != ProcessFailed {
		t.Errorf("state = %v, want failed", got)
	}
	if p.Err() == nil {
		t.Error("Err = nil, want exit error")
	}
}

func TestManagedProcessStopTerminates(t *testing.T) {
	p := NewManagedProcess("sleep", "60")
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if got := p.State(); got != ProcessRunning {
		t.Fatalf("state after Start = %v, want running", got)
	}

	start := time.Now()
	if err := p.Stop(2 * time.Second); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Stop took %v; SIGTERM should end sleep well within the grace period", elapsed)
	}

	// SIGTERM during a requested stop is a stop, not a failure.
	if got := p.State(); got != ProcessStopped {
		t.Errorf("state = %v, want stopped", got)
	}
}

func TestManagedProcessStopKillsIgnoringTerm(t *testing.T) {
	p := NewManagedProcess("sh", "-c", "trap '' TERM; sleep 60")
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// Give the shell a beat to install the trap.
	time.Sleep(100 * time.Millisecond)

	if err := p.Stop(200 * time.Millisecond); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	select {
	case <-p.Done():
	default:
		t.Error("process still running after Stop returned")
	}
}

func TestManagedProcessStopAfterExit(t *testing.T) {
	p := NewManagedProcess("true")
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-p.Done()

	if err := p.Stop(time.Second); err != nil {
		t.Errorf("Stop after exit = %v, want nil", err)
	}
}

func TestManagedProcessStartFailure(t *testing.T) {
	p := NewManagedProcess("/nonexistent/binary")
	if err := p.Start(); err == nil {
		t.Fatal("Start succeeded for a nonexistent binary")
	}
	if got := p.State(); got != ProcessFailed {
		t.Errorf("state = %v, want failed", got)
	}
}
