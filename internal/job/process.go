package job

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"syscall"
)

// Process is a handle on a spawned command.
type Process interface {
	// Exited reports whether the process has finished. A non-nil error means
	// the state could not be determined; callers treat that as still running.
	Exited() (bool, error)

	// Terminate asks the process to stop.
	Terminate() error

	// Pid returns the OS process id, or 0 when not applicable.
	Pid() int
}

// Spawner starts processes from an argument vector.
type Spawner interface {
	Spawn(ctx context.Context, argv []string) (Process, error)
}

// ExecSpawner starts real OS processes.
type ExecSpawner struct {
	Dir    string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// Compile-time interface check.
var _ Spawner = (*ExecSpawner)(nil)

// Spawn starts argv[0] with the remaining arguments. The process outlives ctx;
// use Terminate to stop it.
func (s *ExecSpawner) Spawn(_ context.Context, argv []string) (Process, error) {
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}
	cmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec // commands come from the operator's plugin config
	cmd.Dir = s.Dir
	cmd.Env = s.Env
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("job: starting %s: %w", argv[0], err)
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func (p *execProcess) Exited() (bool, error) {
	select {
	case <-p.done:
		return true, nil
	default:
		return false, nil
	}
}

func (p *execProcess) Terminate() error {
	if exited, _ := p.Exited(); exited {
		return nil
	}
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("job: signalling pid %d: %w", p.cmd.Process.Pid, err)
	}
	return nil
}

func (p *execProcess) Pid() int { return p.cmd.Process.Pid }
