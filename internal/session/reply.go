package session

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/acolita/gqlplus/internal/buffer"
)

// Poller reads from the child without blocking. It is only valid inside
// Session.Polling.
type Poller struct {
	s *Session
}

// Poll reads whatever arrives within one poll interval. Zero bytes and a nil
// error mean nothing was available. A child that has gone away yields
// ErrChildExited.
func (p *Poller) Poll(b []byte) (int, error) {
	if err := p.s.child.SetReadDeadline(time.Now().Add(p.s.pollInterval)); err != nil {
		return 0, fmt.Errorf("set read deadline: %w", err)
	}
	n, err := p.s.child.Read(b)
	if n > 0 {
		p.s.recordOutput(b[:n])
	}
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, os.ErrDeadlineExceeded):
		return n, nil
	case isExit(err):
		return n, ErrChildExited
	}
	return n, err
}

// Polling runs fn with reads in non-blocking mode. Blocking reads are restored
// on every exit path, including a panic in fn.
func (s *Session) Polling(fn func(p *Poller) error) (err error) {
	defer func() {
		if rerr := s.child.SetReadDeadline(time.Time{}); rerr != nil && err == nil {
			err = fmt.Errorf("restore blocking reads: %w", rerr)
		}
	}()
	return fn(&Poller{s: s})
}

// ReadReply reads one reply without prompt recognition: a blocking read for
// the first bytes, then non-blocking reads until the child stays quiet for the
// configured interval.
func (s *Session) ReadReply() (string, error) {
	reply := buffer.New()
	buf := make([]byte, s.readSize)

	for reply.Len() == 0 {
		n, err := s.child.Read(buf)
		if n > 0 {
			reply.Append(buf[:n])
			s.recordOutput(buf[:n])
		}
		if err != nil {
			if isExit(err) {
				return reply.String(), ErrChildExited
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			s.log.Warn("read reply failed, retrying", slog.String("error", err.Error()))
			s.clock.Sleep(s.pollInterval)
		}
	}

	quietPolls := int(s.replyQuiet / s.pollInterval)
	if quietPolls < 1 {
		quietPolls = 1
	}

	err := s.Polling(func(p *Poller) error {
		idle := 0
		for idle < quietPolls {
			n, err := p.Poll(buf)
			if n > 0 {
				reply.Append(buf[:n])
				idle = 0
			} else {
				idle++
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	return reply.String(), err
}

// Drain waits briefly and shows whatever the child printed last, such as its
// goodbye banner.
func (s *Session) Drain() error {
	s.clock.Sleep(s.drainDelay)

	s.emit(s.engine.Take(), nil)

	buf := make([]byte, s.readSize)
	err := s.Polling(func(p *Poller) error {
		n, err := p.Poll(buf)
		if n > 0 {
			s.emit(buf[:n], nil)
		}
		return err
	})
	if err != nil && !errors.Is(err, ErrChildExited) {
		return err
	}
	return nil
}
