package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"castplayd/internal/cast"
	"castplayd/internal/player"
	"castplayd/internal/render"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const wsWriteTimeout = 10 * time.Second

// Server message types, in addition to render.FrameOutput and render.FrameReset.
const (
	msgReady        = "ready"
	msgNotification = "notification"
	msgError        = "error"
	msgCommitted    = "committed"
)

// controlMessage is sent by the browser to drive playback.
type controlMessage struct {
	Action     string  `json:"action"`
	Rate       float64 `json:"rate,omitempty"`
	Position   float64 `json:"position,omitempty"`
	Index      *int    `json:"index,omitempty"`
	EventIndex *int    `json:"eventIndex,omitempty"`
	Text       string  `json:"text,omitempty"`
}

type serverMessage struct {
	Type         string               `json:"type"`
	Session      string               `json:"session,omitempty"`
	Info         *cast.Summary        `json:"info,omitempty"`
	Notification *player.Notification `json:"notification,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// handlePlay opens a playback session streamed over a websocket.
//
// Server to client: {"type":"ready"} once, then "output"/"reset" frames with terminal data,
// "notification" messages for player events, "error" for rejected commands.
// Client to server: {"action": ...} control messages.
func (a *API) handlePlay(w http.ResponseWriter, r *http.Request) {
	id, ok := a.recordingID(w, r)
	if !ok {
		return
	}
	if _, err := a.sessionMgr.Load(r.Context(), id); err != nil {
		a.storeError(w, id, err)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warnf("WebSocket upgrade error: %v", err)
		return
	}
	conn := render.NewConn(ws, wsWriteTimeout)
	defer conn.Close()

	sess, err := a.sessionMgr.Open(r.Context(), id, render.NewWebSocket(conn))
	if err != nil {
		a.logger.Errorf("Session creation error: %v", err)
		_ = conn.WriteJSON(serverMessage{Type: msgError, Error: err.Error()})
		return
	}
	defer a.sessionMgr.Close(sess.ID)

	p := sess.Player
	unsubscribe := p.Subscribe(func(n player.Notification) {
		if err := conn.WriteJSON(serverMessage{Type: msgNotification, Notification: &n}); err != nil {
			a.logger.Debugf("Failed to send notification to session %s: %v", sess.ID, err)
		}
	})
	defer unsubscribe()

	summary := cast.Summarize(p.Recording())
	if err := conn.WriteJSON(serverMessage{Type: msgReady, Session: sess.ID, Info: &summary}); err != nil {
		a.logger.Warnf("Failed to send ready message: %v", err)
		return
	}
	if err := p.Init(nil); err != nil {
		a.logger.Errorf("Failed to initialize player for session %s: %v", sess.ID, err)
		return
	}

	a.logger.Infof("WebSocket connected: session=%s recording=%s", sess.ID, id)
	for {
		var msg controlMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				a.logger.Warnf("WebSocket read error: %v", err)
			}
			a.logger.Infof("WebSocket disconnected: session=%s", sess.ID)
			return
		}

		reply, err := a.dispatch(p, msg)
		if err != nil {
			reply = &serverMessage{Type: msgError, Error: err.Error()}
		}
		if reply != nil {
			if err := conn.WriteJSON(reply); err != nil {
				a.logger.Debugf("Failed to reply to session %s: %v", sess.ID, err)
			}
		}
	}
}

var errMissingField = errors.New("missing field")

// dispatch applies one control message. It returns an optional direct reply.
func (a *API) dispatch(p *player.Player, msg controlMessage) (*serverMessage, error) {
	switch msg.Action {
	case "play":
		p.Play()
	case "pause":
		p.Pause()
	case "reset":
		p.Reset()
	case "rate":
		p.SetRate(msg.Rate)
	case "faster":
		p.Faster()
	case "slower":
		p.Slower()
	case "seek":
		if msg.Index != nil {
			p.JumpToIndex(*msg.Index)
		} else {
			p.JumpToPosition(msg.Position)
		}
	case "seekEvent":
		if msg.EventIndex == nil {
			return nil, fmt.Errorf("%w: eventIndex", errMissingField)
		}
		return nil, p.JumpToEventIndex(*msg.EventIndex)
	case "bookmark":
		if msg.Index != nil {
			p.AddBookmark(*msg.Index, msg.Text)
		} else {
			p.AddBookmarkAtCursor(msg.Text)
		}
	case "unbookmark":
		if msg.Index != nil {
			p.RemoveBookmark(*msg.Index)
		} else {
			p.RemoveBookmarkAtCursor()
		}
	case "commit":
		if err := p.CommitBookmarks(); err != nil {
			return nil, err
		}
		return &serverMessage{Type: msgCommitted}, nil
	default:
		return nil, fmt.Errorf("unknown action %q", msg.Action)
	}
	return nil, nil
}
