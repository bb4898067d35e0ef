package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/hinshun/vt10x"
)

// VT feeds frames into an in-memory terminal emulator so the screen can be inspected. If Open is
// given a non-nil writer, frames are mirrored to it as well.
type VT struct {
	mu     sync.Mutex
	cols   int
	rows   int
	term   vt10x.Terminal
	mirror io.Writer
}

// NewVT creates a headless terminal of the given size. Non-positive sizes default to 80x24.
func NewVT(cols, rows int) *VT {
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}
	return &VT{cols: cols, rows: rows}
}

func (v *VT) Open(target io.Writer) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.term = vt10x.New(vt10x.WithSize(v.cols, v.rows))
	v.mirror = target
	return nil
}

func (v *VT) Write(text string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.term == nil {
		return ErrNotOpen
	}
	if _, err := v.term.Write([]byte(text)); err != nil {
		return fmt.Errorf("terminal emulator rejected frame: %w", err)
	}
	if v.mirror != nil {
		if _, err := io.WriteString(v.mirror, text); err != nil {
			return err
		}
	}
	return nil
}

// Reset starts over with a blank screen.
func (v *VT) Reset() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.term == nil {
		return ErrNotOpen
	}
	v.term = vt10x.New(vt10x.WithSize(v.cols, v.rows))
	if v.mirror != nil {
		if _, err := io.WriteString(v.mirror, resetSequence); err != nil {
			return err
		}
	}
	return nil
}

func (v *VT) Dispose() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.term = nil
	v.mirror = nil
	return nil
}

// Size returns the emulated terminal size.
func (v *VT) Size() (cols, rows int) {
	return v.cols, v.rows
}

// Text returns the visible screen as plain text, one line per row with trailing blanks removed.
func (v *VT) Text() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.term == nil {
		return ""
	}

	v.term.Lock()
	defer v.term.Unlock()

	cols, rows := v.term.Size()
	lines := make([]string, 0, rows)
	for row := 0; row < rows; row++ {
		var line strings.Builder
		for col := 0; col < cols; col++ {
			ch := v.term.Cell(col, row).Char
			if ch == 0 {
				ch = ' '
			}
			line.WriteRune(ch)
		}
		lines = append(lines, strings.TrimRight(line.String(), " "))
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// Snapshot returns the escape sequences that redraw the current screen, colors and cursor
// position included, on a terminal of the same size.
func (v *VT) Snapshot() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.term == nil {
		return nil
	}

	v.term.Lock()
	defer v.term.Unlock()

	var buf bytes.Buffer
	buf.WriteString("\x1b[2J\x1b[H")

	cols, rows := v.term.Size()
	lastFG, lastBG := vt10x.DefaultFG, vt10x.DefaultBG
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			cell := v.term.Cell(col, row)

			if cell.FG != lastFG || cell.BG != lastBG {
				buf.WriteString("\x1b[0m")
				if cell.FG != vt10x.DefaultFG && cell.FG < 256 {
					fmt.Fprintf(&buf, "\x1b[38;5;%dm", cell.FG)
				}
				if cell.BG != vt10x.DefaultBG && cell.BG < 256 {
					fmt.Fprintf(&buf, "\x1b[48;5;%dm", cell.BG)
				}
				lastFG, lastBG = cell.FG, cell.BG
			}

			if cell.Char == 0 {
				buf.WriteRune(' ')
			} else {
				buf.WriteRune(cell.Char)
			}
		}
		if row < rows-1 {
			buf.WriteString("\r\n")
		}
	}
	buf.WriteString("\x1b[0m")

	cursor := v.term.Cursor()
	fmt.Fprintf(&buf, "\x1b[%d;%dH", cursor.Y+1, cursor.X+1)
	return buf.Bytes()
}
