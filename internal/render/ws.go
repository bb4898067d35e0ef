package render

import (
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Frame types sent to browser players.
const (
	FrameOutput = "output"
	FrameReset  = "reset"
)

// Frame is the JSON message carrying terminal output to a browser player.
type Frame struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
}

// Conn serializes writes to a websocket connection. gorilla/websocket allows only one concurrent
// writer, and the player and the control loop both write.
type Conn struct {
	ws           *websocket.Conn
	mu           sync.Mutex
	writeTimeout time.Duration
}

func NewConn(ws *websocket.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{ws: ws, writeTimeout: writeTimeout}
}

// WriteJSON sends v as a single text message.
func (c *Conn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.ws.WriteJSON(v)
}

// Close sends a normal closure frame and closes the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.ws.Close()
}

// WebSocket renders frames to a browser over a websocket. The browser owns the terminal; a
// reset asks it to clear the screen.
type WebSocket struct {
	mu   sync.Mutex
	conn *Conn
	open bool
}

func NewWebSocket(conn *Conn) *WebSocket {
	return &WebSocket{conn: conn}
}

// Open marks the renderer ready. The target is unused; output goes to the connection.
func (w *WebSocket) Open(io.Writer) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.open = true
	return nil
}

func (w *WebSocket) Write(text string) error {
	return w.send(Frame{Type: FrameOutput, Data: text})
}

func (w *WebSocket) Reset() error {
	return w.send(Frame{Type: FrameReset})
}

// Dispose stops sending. Closing the connection is left to its owner.
func (w *WebSocket) Dispose() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.open = false
	return nil
}

func (w *WebSocket) send(f Frame) error {
	w.mu.Lock()
	open := w.open
	w.mu.Unlock()
	if !open {
		return ErrNotOpen
	}
	return w.conn.WriteJSON(f)
}
