package supervisor

import (
	"os"
	"os/exec"
	"sync"
)

// Proc is an explicit handle on one child process: start it, signal it,
// and learn of its exit through Done. This replaces any "is something with
// this name running" scanning; the handle can never match an unrelated
// process.
type Proc interface {
	Start() error
	Signal(sig os.Signal) error
	Kill() error
	// Done is closed when the process has exited.
	Done() <-chan struct{}
	// ExitErr reports the exit status; valid once Done is closed.
	ExitErr() error
}

// Launcher produces a fresh Proc for each (re)start. Tests inject
// misbehaving fakes through it.
type Launcher func() Proc

type execProc struct {
	cmd *exec.Cmd

	once    sync.Once
	done    chan struct{}
	exitErr error
}

// ExecLauncher launches bin with args, inheriting stdout/stderr so the
// child's logs land in the same stream as the supervisor's.
func ExecLauncher(bin string, args ...string) Launcher {
	return func() Proc {
		cmd := exec.Command(bin, args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return &execProc{cmd: cmd, done: make(chan struct{})}
	}
}

func (p *execProc) Start() error {
	if err := p.cmd.Start(); err != nil {
		return err
	}
	go func() {
		p.exitErr = p.cmd.Wait()
		p.once.Do(func() { close(p.done) })
	}()
	return nil
}

func (p *execProc) Signal(sig os.Signal) error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Signal(sig)
}

func (p *execProc) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

func (p *execProc) Done() <-chan struct{} { return p.done }
func (p *execProc) ExitErr() error        { return p.exitErr }
