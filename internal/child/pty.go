package child

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

func startPTY(cmd *exec.Cmd) (*Process, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("open pty: %w", err)
	}
	if err := rawOutput(tty); err != nil {
		ptmx.Close()
		tty.Close()
		return nil, fmt.Errorf("configure pty: %w", err)
	}

	cmd.Stdin = tty
	cmd.Stdout = tty
	cmd.Stderr = tty
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true, Ctty: 0}

	if err := cmd.Start(); err != nil {
		ptmx.Close()
		tty.Close()
		return nil, fmt.Errorf("start %s: %w", cmd.Path, err)
	}
	tty.Close()

	r := newPump(ptmx)
	return &Process{
		cmd:     cmd,
		in:      ptmx,
		out:     r,
		closers: []io.Closer{r, ptmx},
	}, nil
}

// rawOutput turns off echo and output post-processing on the terminal so the
// child's bytes arrive exactly as a pipe would deliver them.
func rawOutput(tty *os.File) error {
	fd := int(tty.Fd())
	t, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return err
	}
	t.Lflag &^= unix.ECHO | unix.ECHONL
	t.Oflag &^= unix.OPOST
	return unix.IoctlSetTermios(fd, ioctlSetTermios, t)
}

type chunk struct {
	data []byte
	err  error
}

// pump reads a pty master on its own goroutine so that reads can honor a
// deadline on platforms where the master does not support one.
type pump struct {
	ch   chan chunk
	done chan struct{}
	once sync.Once

	mu       sync.Mutex
	deadline time.Time
	pending  []byte
	err      error
}

func newPump(r io.Reader) *pump {
	p := &pump{ch: make(chan chunk, 1), done: make(chan struct{})}
	go p.run(r)
	return p
}

func (p *pump) run(r io.Reader) {
	for {
		buf := make([]byte, 4096)
		n, err := r.Read(buf)
		select {
		case p.ch <- chunk{data: buf[:n], err: err}:
		case <-p.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (p *pump) Read(b []byte) (int, error) {
	p.mu.Lock()
	if len(p.pending) > 0 {
		n := copy(b, p.pending)
		p.pending = p.pending[n:]
		p.mu.Unlock()
		return n, nil
	}
	if p.err != nil {
		err := p.err
		p.mu.Unlock()
		return 0, err
	}
	deadline := p.deadline
	p.mu.Unlock()

	var timeout <-chan time.Time
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d <= 0 {
			return 0, os.ErrDeadlineExceeded
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case c := <-p.ch:
		p.mu.Lock()
		defer p.mu.Unlock()
		if c.err != nil {
			p.err = c.err
		}
		n := copy(b, c.data)
		p.pending = c.data[n:]
		if n == 0 && c.err != nil {
			return 0, c.err
		}
		return n, nil
	case <-timeout:
		return 0, os.ErrDeadlineExceeded
	case <-p.done:
		return 0, os.ErrClosed
	}
}

func (p *pump) SetReadDeadline(t time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deadline = t
	return nil
}

func (p *pump) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
