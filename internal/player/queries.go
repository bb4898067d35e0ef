package player

import (
	"time"

	"castplayd/internal/cast"
	"castplayd/internal/models"
)

// IsPlaying reports whether playback is running.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isPlaying()
}

// Rate is the current playback rate, 0 while paused.
func (p *Player) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentRate
}

// DesiredRate is the rate playback runs at when playing.
func (p *Player) DesiredRate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.desiredRate
}

func (p *Player) Duration() time.Duration { return p.rec.Duration() }

// ElapsedTime is the total delay of the frame at the cursor.
func (p *Player) ElapsedTime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	evt, _ := p.rec.Event(p.currentIndex)
	return evt.TotalDelay
}

func (p *Player) CurrentIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentIndex
}

// Err is the parse error of the recording, if any.
func (p *Player) Err() error { return p.rec.Err }

func (p *Player) StartDate() time.Time { return p.rec.StartTime() }

func (p *Player) Header() cast.Header { return p.rec.Header }

// Recording exposes the timeline being played.
func (p *Player) Recording() *cast.Recording { return p.rec }

func (p *Player) EventAtCursor() models.TimelineEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	evt, _ := p.rec.Event(p.currentIndex)
	return evt
}

// NearestEventTime is the wall-clock time of the frame a seek to position would land on.
func (p *Player) NearestEventTime(position float64) time.Time {
	return p.rec.TerminalTime(p.indexForPosition(position))
}
