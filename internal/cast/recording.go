package cast

import (
	"strings"
	"sync"
	"time"

	"castplayd/internal/models"

	"golang.org/x/text/unicode/norm"
)

// Recording is a parsed terminal recording: the header plus the timeline of output frames.
// The timeline's order, count and timing never change after parsing; only bookmarks do.
type Recording struct {
	Header Header
	// Err is set when the content could not be parsed. Such a recording is not playable.
	Err error

	mu       sync.RWMutex
	events   []models.TimelineEvent
	duration time.Duration
}

// Playable reports whether the recording parsed and has at least one frame.
func (r *Recording) Playable() bool {
	return r.Err == nil && r.Len() > 0
}

// Len returns the number of frames.
func (r *Recording) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

// Duration is the total delay of the final frame.
func (r *Recording) Duration() time.Duration {
	return r.duration
}

// StartTime is the wall-clock time the recording started.
func (r *Recording) StartTime() time.Time {
	return time.Unix(r.Header.Timestamp, 0)
}

// TerminalTime is the wall-clock time, to the second, at which frame i was captured.
func (r *Recording) TerminalTime(i int) time.Time {
	evt, ok := r.Event(i)
	if !ok {
		return r.StartTime()
	}
	return r.StartTime().Add(evt.EventTime.Truncate(time.Second))
}

// ClampIndex constrains i to a valid frame position.
func (r *Recording) ClampIndex(i int) int {
	n := r.Len()
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// Event returns a copy of the frame at position i (clamped). ok is false when there are no frames.
func (r *Recording) Event(i int) (models.TimelineEvent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.events) == 0 {
		return models.TimelineEvent{}, false
	}
	return copyEvent(r.events[clampInt(i, 0, len(r.events)-1)]), true
}

// Events returns a copy of the whole timeline.
func (r *Recording) Events() []models.TimelineEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.TimelineEvent, len(r.events))
	for i, evt := range r.events {
		out[i] = copyEvent(evt)
	}
	return out
}

// ContentBefore concatenates the content of all frames before position i.
func (r *Recording) ContentBefore(i int) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i = clampInt(i, 0, len(r.events))
	var sb strings.Builder
	for _, evt := range r.events[:i] {
		sb.WriteString(evt.EventContent)
	}
	return sb.String()
}

// IndexOfEvent finds the position of the frame whose stable EventIndex is id.
func (r *Recording) IndexOfEvent(id int) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, evt := range r.events {
		if evt.EventIndex == id {
			return i, true
		}
	}
	return 0, false
}

// NearestIndex returns the position of the frame whose TotalDelay is closest to offset.
func (r *Recording) NearestIndex(offset time.Duration) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.events) == 0 {
		return 0
	}
	return FindClosest(offset, r.events, 0, len(r.events)-1)
}

// AddBookmark replaces the bookmark lines of frame i (clamped) with text split on newlines.
// Empty text removes the bookmark.
func (r *Recording) AddBookmark(i int, text string) {
	lines := splitBookmark(text)

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return
	}
	r.events[clampInt(i, 0, len(r.events)-1)].Bookmarks = lines
}

// RemoveBookmark clears the bookmark lines of frame i (clamped).
func (r *Recording) RemoveBookmark(i int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return
	}
	r.events[clampInt(i, 0, len(r.events)-1)].Bookmarks = nil
}

// Bookmark returns the bookmark lines of frame i (clamped).
func (r *Recording) Bookmark(i int) []string {
	evt, _ := r.Event(i)
	return evt.Bookmarks
}

// Bookmarks returns, in timeline order, every frame that carries a bookmark.
func (r *Recording) Bookmarks() []models.TimelineEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.TimelineEvent
	for _, evt := range r.events {
		if evt.HasBookmarks() {
			out = append(out, copyEvent(evt))
		}
	}
	return out
}

// Clone returns an independent copy, so bookmark edits on one do not affect the other.
func (r *Recording) Clone() *Recording {
	return &Recording{
		Header:   r.Header,
		Err:      r.Err,
		events:   r.Events(),
		duration: r.duration,
	}
}

func splitBookmark(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = norm.NFC.String(line)
	}
	return lines
}

func copyEvent(evt models.TimelineEvent) models.TimelineEvent {
	if evt.Bookmarks != nil {
		evt.Bookmarks = append([]string(nil), evt.Bookmarks...)
	}
	return evt
}

func clampInt(n, min, max int) int {
	if n > max {
		n = max
	}
	if n < min {
		n = min
	}
	return n
}
