package models

import (
	"encoding/json"
	"time"
)

// Env holds the environment descriptors captured with a recording.
type Env struct {
	Shell string
	Term  string
	// Other holds the remaining variables (LANG, ...) exactly as recorded.
	Other map[string]json.RawMessage
}

// UnmarshalJSON decodes SHELL and TERM and keeps every other variable.
func (e *Env) UnmarshalJSON(b []byte) error {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	*e = Env{}
	for k, v := range all {
		var dst *string
		switch k {
		case "SHELL":
			dst = &e.Shell
		case "TERM":
			dst = &e.Term
		}
		if dst == nil || string(v) == "null" {
			if e.Other == nil {
				e.Other = make(map[string]json.RawMessage)
			}
			e.Other[k] = v
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON encodes all variables with sorted keys.
func (e Env) MarshalJSON() ([]byte, error) {
	all := make(map[string]json.RawMessage, len(e.Other)+2)
	for k, v := range e.Other {
		all[k] = v
	}
	for k, v := range map[string]string{"SHELL": e.Shell, "TERM": e.Term} {
		if v == "" {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		all[k] = raw
	}
	return json.Marshal(all)
}

// RecordingHeader is the metadata line at the top of a recording.
type RecordingHeader struct {
	Version   int    `json:"version"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Title     string `json:"title,omitempty"`
	Env       *Env   `json:"env,omitempty"`
}

// TimelineEvent is one output frame of a recording, with its timing and bookmarks.
type TimelineEvent struct {
	// EventIndex is the ordinal of the output record, fixed at parse time.
	EventIndex int
	// EventTime is the offset from the start of the recording.
	EventTime time.Duration
	// EventContent is the raw output written to the terminal for this frame.
	EventContent string
	// FrameDuration is the (clamped) time until the next event. Zero for the last event.
	FrameDuration time.Duration
	// TotalDelay is the sum of the frame durations of all prior events.
	TotalDelay time.Duration
	// Bookmarks are free-text annotation lines attached to this event.
	Bookmarks []string
}

// HasBookmarks reports whether any annotation is attached.
func (e TimelineEvent) HasBookmarks() bool {
	return len(e.Bookmarks) > 0
}

// Position describes where the playhead is. It is the payload of frame-advance and head-jump
// notifications.
type Position struct {
	ElapsedTime      time.Duration `json:"elapsedTime"`
	PlaybackPosition float64       `json:"playbackPosition"`
	Index            int           `json:"index"`
	TerminalTime     time.Time     `json:"terminalTime"`
}

// RateChange is the payload of rate-change and desired-rate-change notifications.
type RateChange struct {
	OldRate float64 `json:"oldRate"`
	NewRate float64 `json:"newRate"`
}
