package console

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/acolita/gqlplus/internal/editor"
)

// Statement buffer commands used by the edit round trip.
const (
	listCommand   = "list"
	deleteCommand = "del 1 LAST"
	insertCommand = "i"
)

// edit runs the external editor. "edit <file>" opens the file directly;
// a bare "edit" round-trips the child's statement buffer through the
// scratch file.
func (c *Console) edit(ctx context.Context, line string) error {
	cmd, err := editor.Resolve(c.editorLine, c.lookPath)
	if err != nil {
		c.log.Warn("editor not resolved", slog.String("editor", c.editorLine), slog.String("error", err.Error()))
		fmt.Fprintf(c.out, "Editor executable %s not found.\n", c.editorLine)
		return nil
	}

	if fields := strings.Fields(line); len(fields) > 1 {
		if err := c.runEditor(ctx, cmd, editor.FileName(fields[1], c.extension)); err != nil {
			fmt.Fprintf(c.errw, "gqlplus: %v\n", err)
		}
		return nil
	}

	listing, err := c.sess.Query(listCommand)
	if err != nil {
		return err
	}
	if strings.Contains(listing, editor.NoLines) {
		fmt.Fprintln(c.out, editor.NothingToSave)
		return nil
	}

	if err := c.fs.WriteFile(c.scratchFile, []byte(editor.ScratchContent(listing)), 0644); err != nil {
		c.log.Warn("scratch file not written", slog.String("file", c.scratchFile), slog.String("error", err.Error()))
		fmt.Fprintf(c.out, "Cannot create save file \"%s\"\n", c.scratchFile)
		return nil
	}
	if err := c.runEditor(ctx, cmd, c.scratchFile); err != nil {
		fmt.Fprintf(c.errw, "gqlplus: %v\n", err)
		return nil
	}

	data, err := c.fs.ReadFile(c.scratchFile)
	if err != nil {
		fmt.Fprintf(c.errw, "gqlplus: %v: read %s: %v\n", ErrEditor, c.scratchFile, err)
		return nil
	}
	return c.replay(editor.ReplayLines(string(data)))
}

// replay replaces the child's statement buffer with lines and lists it.
func (c *Console) replay(lines []string) error {
	if _, err := c.sess.Query(deleteCommand); err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := c.sess.Query(insertCommand + " " + line); err != nil {
			return err
		}
	}
	if err := c.sess.SendLine(listCommand); err != nil {
		return err
	}
	_, err := c.await()
	return err
}

// runEditor runs the editor on file. Interrupts are not forwarded to the
// child meanwhile.
func (c *Console) runEditor(ctx context.Context, cmd editor.Command, file string) error {
	c.editing.Store(true)
	defer c.editing.Store(false)

	c.log.Debug("starting editor", slog.String("editor", cmd.String()), slog.String("file", file))
	if err := c.runner.Run(ctx, cmd, file); err != nil {
		return fmt.Errorf("%w: %w", ErrEditor, err)
	}
	return nil
}
