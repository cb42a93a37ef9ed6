package console

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/acolita/gqlplus/internal/lineedit"
	"github.com/acolita/gqlplus/internal/prompt"
	"github.com/acolita/gqlplus/internal/session"
)

// pause drives paginated output. The child prints pages without an idle
// prompt between them and waits for Enter; each page is shown and a line read
// from the keyboard is sent back, until the idle prompt ends the output.
// With first set the child's reply is read before the first keyboard line;
// otherwise the child is waiting for Enter before the first page.
func (c *Console) pause(line string, first bool) error {
	if err := c.sess.SendLine(line); err != nil {
		return err
	}
	kind, idle := c.idlePrompt()
	buf := make([]byte, 4096)

	return c.sess.Polling(func(p *session.Poller) error {
		readReply := first
		for {
			var reply []byte
			for readReply {
				n, err := p.Poll(buf)
				reply = append(reply, buf[:n]...)
				if err != nil {
					c.display(reply)
					return err
				}
				if n == 0 && len(reply) > 0 {
					break
				}
			}
			readReply = true

			if bytes.HasSuffix(reply, []byte(idle)) {
				c.display(reply[:len(reply)-len(idle)])
				c.sess.SetActivePrompt(kind, idle)
				return nil
			}

			// The unterminated last line is the pause text; it serves as the
			// prompt for the keyboard line.
			head, tail := splitLastLine(reply)
			c.display(head)
			answer, err := c.input.ReadLine(tail)
			switch {
			case errors.Is(err, lineedit.ErrInterrupt):
				// Ctrl-C cancels the query; the child returns to its prompt.
				if err := c.sess.Interrupt(); err != nil {
					return err
				}
				continue
			case errors.Is(err, io.EOF):
				c.done = true
				return c.sess.Terminate()
			case err != nil:
				return fmt.Errorf("read input: %w", err)
			}
			if err := c.sess.SendLine(answer); err != nil {
				return err
			}
		}
	})
}

// setSQLPrompt forwards a "set sqlprompt" command and takes the child's
// reply verbatim as the new prompt.
func (c *Console) setSQLPrompt(raw string) error {
	if err := c.sess.SendLine(raw); err != nil {
		return err
	}
	reply, err := c.sess.ReadReply()
	if err != nil {
		c.display([]byte(reply))
		return err
	}

	head, tail := splitLastLine([]byte(reply))
	c.display(head)
	c.sess.SetUserPrompt(tail)
	c.sess.SetActivePrompt(prompt.KindUserDefined, tail)
	c.log.Info("sql prompt redefined", slog.String("prompt", tail))
	return nil
}

// accept handles an "accept" command, which makes the child's next prompt a
// free-form value request. The command line has already been sent.
func (c *Console) accept(lower string) error {
	var text string
	if strings.Contains(lower, " prompt ") {
		reply, err := c.sess.ReadReply()
		if err != nil {
			return err
		}
		// An error message arrives followed by the idle prompt; only its
		// first line is shown.
		if i := strings.IndexByte(reply, '\n'); i >= 0 {
			fmt.Fprint(c.out, reply[:i+1])
			c.restorePrompt(reply[strings.LastIndexByte(reply, '\n')+1:])
			return nil
		}
		text = reply
	}

	c.sess.SetActivePrompt(prompt.KindValue, text)
	hide := strings.Contains(" "+lower+" ", " hide ")

	var (
		answer string
		err    error
	)
	for {
		if hide {
			answer, err = c.input.ReadPassword(text)
		} else {
			answer, err = c.input.ReadLine(text)
		}
		if !errors.Is(err, lineedit.ErrInterrupt) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			c.done = true
			return c.sess.Terminate()
		}
		return fmt.Errorf("read input: %w", err)
	}

	if hide {
		err = c.sess.SendSecret(answer)
	} else {
		err = c.sess.SendLine(answer)
	}
	if err != nil {
		return err
	}
	_, err = c.await()
	return err
}

// restorePrompt makes tail, the last line of a reply read outside the turn
// loop, the active prompt. Text the engine does not recognize falls back to
// the idle prompt.
func (c *Console) restorePrompt(tail string) {
	if c.engine != nil {
		if kind, ok := c.engine.Classify(tail); ok && kind != prompt.KindTerminal {
			c.sess.SetActivePrompt(kind, tail)
			return
		}
	}
	kind, idle := c.idlePrompt()
	c.sess.SetActivePrompt(kind, idle)
}

// display writes child output that bypassed the prompt engine.
func (c *Console) display(p []byte) {
	if len(p) == 0 {
		return
	}
	if _, err := c.out.Write(p); err != nil {
		c.log.Warn("write output failed", slog.String("error", err.Error()))
	}
}

// splitLastLine splits p after its last newline.
func splitLastLine(p []byte) ([]byte, string) {
	i := bytes.LastIndexByte(p, '\n')
	return p[:i+1], string(p[i+1:])
}
