package player

import "io"

// Renderer is the terminal that frames are written to.
type Renderer interface {
	// Open attaches the renderer to its output.
	Open(target io.Writer) error
	// Write renders raw terminal output.
	Write(text string) error
	// Reset returns the terminal to a blank screen.
	Reset() error
	// Dispose releases the renderer. It is not used afterwards.
	Dispose() error
}
