package render

import (
	"errors"
	"io"
	"sync"
)

// ErrNotOpen is returned by renderers used before Open or after Dispose.
var ErrNotOpen = errors.New("renderer is not open")

// resetSequence is RIS, a full terminal reset.
const resetSequence = "\x1bc"

// ANSI passes frames straight through to a terminal stream.
type ANSI struct {
	mu sync.Mutex
	w  io.Writer
}

func NewANSI() *ANSI {
	return &ANSI{}
}

func (a *ANSI) Open(target io.Writer) error {
	if target == nil {
		return errors.New("ansi renderer needs a target")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.w = target
	return nil
}

func (a *ANSI) Write(text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.w == nil {
		return ErrNotOpen
	}
	_, err := io.WriteString(a.w, text)
	return err
}

func (a *ANSI) Reset() error {
	return a.Write(resetSequence)
}

func (a *ANSI) Dispose() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.w = nil
	return nil
}
