// Package child spawns the database shell detached from the controlling
// terminal and exposes its stdin and stdout as a duplex channel.
package child

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Transport selects how the child's stdio is wired.
const (
	TransportPipe = "pipe"
	TransportPTY  = "pty"
)

// ErrSpawn is returned when the child cannot be started.
var ErrSpawn = errors.New("spawn child")

// Options configures the child process.
type Options struct {
	Path      string   // executable
	Args      []string // arguments, not including the program name
	Env       []string // complete environment
	Dir       string   // working directory
	Transport string   // TransportPipe (default) or TransportPTY
	Stderr    io.Writer
}

type deadlineReader interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

// Process is a running child.
type Process struct {
	cmd *exec.Cmd
	in  io.WriteCloser
	out deadlineReader

	closers []io.Closer

	mu         sync.Mutex
	terminated bool
	waitOnce   sync.Once
	waitErr    error
}

// Start spawns the child in a new session.
func Start(opts Options) (*Process, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("%w: no executable", ErrSpawn)
	}

	cmd := exec.Command(opts.Path, opts.Args...)
	cmd.Env = opts.Env
	cmd.Dir = opts.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	var (
		p   *Process
		err error
	)
	switch opts.Transport {
	case "", TransportPipe:
		p, err = startPipes(cmd, opts)
	case TransportPTY:
		p, err = startPTY(cmd)
	default:
		return nil, fmt.Errorf("%w: unknown transport %q", ErrSpawn, opts.Transport)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}
	return p, nil
}

func startPipes(cmd *exec.Cmd, opts Options) (*Process, error) {
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = opts.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		for _, f := range []*os.File{stdinR, stdinW, stdoutR, stdoutW} {
			f.Close()
		}
		return nil, fmt.Errorf("start %s: %w", cmd.Path, err)
	}

	// The child holds its own copies now.
	stdinR.Close()
	stdoutW.Close()

	return &Process{
		cmd:     cmd,
		in:      stdinW,
		out:     stdoutR,
		closers: []io.Closer{stdinW, stdoutR},
	}, nil
}

// Pid returns the child's process id.
func (p *Process) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Read reads child output. A child that has gone away reads as io.EOF.
func (p *Process) Read(b []byte) (int, error) {
	n, err := p.out.Read(b)
	if err != nil && errors.Is(err, syscall.EIO) {
		err = io.EOF
	}
	return n, err
}

// Write writes to the child's input.
func (p *Process) Write(b []byte) (int, error) {
	return p.in.Write(b)
}

// WriteString writes a string to the child's input.
func (p *Process) WriteString(s string) (int, error) {
	return p.in.Write([]byte(s))
}

// SetReadDeadline bounds the next reads. The zero time restores blocking reads.
func (p *Process) SetReadDeadline(t time.Time) error {
	return p.out.SetReadDeadline(t)
}

// Signal sends sig to the child.
func (p *Process) Signal(sig os.Signal) error {
	if p.cmd.Process == nil {
		return fmt.Errorf("process not started")
	}
	if err := p.cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("signal child: %w", err)
	}
	return nil
}

// Interrupt sends SIGINT to the child.
func (p *Process) Interrupt() error {
	return p.Signal(syscall.SIGINT)
}

// Terminate sends SIGTERM to the child once; later calls do nothing.
func (p *Process) Terminate() error {
	p.mu.Lock()
	if p.terminated {
		p.mu.Unlock()
		return nil
	}
	p.terminated = true
	p.mu.Unlock()
	return p.Signal(syscall.SIGTERM)
}

// Wait waits for the child to exit.
func (p *Process) Wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
	})
	return p.waitErr
}

// Close releases the channel, terminates the child if it is still running and
// reaps it.
func (p *Process) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if err := p.Terminate(); err != nil {
		errs = append(errs, err)
	}
	p.Wait()
	return errors.Join(errs...)
}
