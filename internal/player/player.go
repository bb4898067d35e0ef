package player

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"castplayd/internal/cast"
	"castplayd/internal/logger"
	"castplayd/internal/models"
	"castplayd/internal/telemetry"

	"github.com/jonboulle/clockwork"
)

// ErrEventNotFound is returned when no frame carries the requested stable event index.
var ErrEventNotFound = errors.New("event not found")

const (
	DefaultMinRate = 0.5
	DefaultMaxRate = 64
)

// SupportedRates are the rates offered by playback controls.
var SupportedRates = []float64{0.5, 1, 2, 4, 8, 16, 32, 64}

// Options configure a Player. Zero values take the defaults.
type Options struct {
	MinRate     float64
	MaxRate     float64
	DefaultRate float64
	// MaxFrameDelay is used by Load when parsing content.
	MaxFrameDelay time.Duration
	Clock         clockwork.Clock
	Metrics       *telemetry.Metrics
	// OnContentUpdate persists the exported recording when bookmark edits are committed. Its error
	// is returned by CommitBookmarks.
	OnContentUpdate func([]byte) error
}

func (o Options) withDefaults() Options {
	if o.MinRate <= 0 {
		o.MinRate = DefaultMinRate
	}
	if o.MaxRate <= 0 {
		o.MaxRate = DefaultMaxRate
	}
	if o.MaxRate < o.MinRate {
		o.MaxRate = o.MinRate
	}
	if o.DefaultRate <= 0 {
		o.DefaultRate = 1
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

// Player replays a recording on a Renderer in real time, at a variable rate, with seeking and
// bookmark editing.
//
// While playing, currentIndex is the next frame to be written. At most one frame is scheduled at
// a time; every scheduling path cancels the previous timer and bumps generation, and a timer
// callback from an older generation does nothing.
type Player struct {
	rec      *cast.Recording
	renderer Renderer
	log      logger.Logger
	opts     Options
	notifier Notifier

	mu            sync.Mutex
	timer         clockwork.Timer
	generation    uint64
	currentIndex  int
	desiredRate   float64
	currentRate   float64
	advanceOnPlay bool
	finished      bool
	closed        bool
}

// New creates a paused player positioned at the first frame.
func New(rec *cast.Recording, renderer Renderer, log logger.Logger, opts Options) *Player {
	opts = opts.withDefaults()
	p := &Player{
		rec:      rec,
		renderer: renderer,
		log:      logger.OrNop(log),
		opts:     opts,
	}
	p.desiredRate = p.clampRate(opts.DefaultRate)
	if rec.Err != nil {
		opts.Metrics.ParseFailed()
	}
	return p
}

// Load parses content and creates a player for it.
func Load(content string, renderer Renderer, log logger.Logger, opts Options) *Player {
	rec := cast.Parse(content, cast.ParseOptions{MaxFrameDelay: opts.MaxFrameDelay})
	return New(rec, renderer, log, opts)
}

// Subscribe registers fn for notifications and returns a function that removes it.
func (p *Player) Subscribe(fn Subscriber) func() {
	return p.notifier.Subscribe(fn)
}

// Init opens the renderer on target. An unplayable recording shows its error instead.
func (p *Player) Init(target io.Writer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.renderer.Open(target); err != nil {
		return fmt.Errorf("failed to open renderer: %w", err)
	}
	if p.rec.Err != nil {
		p.log.Warnf("Recording is not playable: %v", p.rec.Err)
		p.write("Unable to play content. Error encountered:\r\n")
		p.write(p.rec.Err.Error() + "\r\n")
	}
	return nil
}

// Cleanup cancels any scheduled frame and disposes the renderer. Later calls do nothing.
func (p *Player) Cleanup() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.cancel()
	p.currentRate = 0

	if err := p.renderer.Dispose(); err != nil {
		return fmt.Errorf("failed to dispose renderer: %w", err)
	}
	return nil
}

// do runs fn under the player lock, then delivers the notifications it queued.
func (p *Player) do(fn func()) {
	p.mu.Lock()
	fn()
	p.mu.Unlock()
	p.notifier.flush()
}

func (p *Player) active() bool {
	return !p.closed && p.rec.Playable()
}

// Play starts or resumes playback. After the final frame has been shown, playback restarts
// from the first frame.
func (p *Player) Play() {
	p.do(func() {
		if !p.active() || p.isPlaying() {
			return
		}

		if p.advanceOnPlay {
			p.advanceOnPlay = false
			if p.currentIndex < p.lastIndex() {
				p.currentIndex++
			} else {
				p.finished = true
			}
		}
		if p.finished {
			p.finished = false
			p.currentIndex = 0
			p.resetRenderer()
		}

		p.updatePlaybackRate(p.desiredRate)
		p.schedule()
	})
}

// Pause stops playback. No frame is written after Pause returns.
func (p *Player) Pause() {
	p.do(func() {
		p.cancel()
		p.updatePlaybackRate(0)
	})
}

// Reset pauses and redraws the first frame.
func (p *Player) Reset() {
	p.do(func() {
		p.cancel()
		p.updatePlaybackRate(0)
		p.jumpToIndex(0)
	})
}

// SetRate sets the desired rate, clamped to the configured bounds.
func (p *Player) SetRate(rate float64) {
	p.do(func() { p.setDesiredRate(p.clampRate(rate)) })
}

// Faster doubles the desired rate.
func (p *Player) Faster() {
	p.do(func() { p.setDesiredRate(p.clampRate(p.desiredRate * 2)) })
}

// Slower halves the desired rate.
func (p *Player) Slower() {
	p.do(func() { p.setDesiredRate(p.clampRate(p.desiredRate / 2)) })
}

// JumpToPosition seeks to the frame nearest to the fraction p (clamped to [0, 1]) of the duration.
func (p *Player) JumpToPosition(position float64) {
	p.do(func() {
		if !p.active() {
			return
		}
		p.opts.Metrics.Seek("position")
		p.jumpToIndex(p.indexForPosition(position))
	})
}

// JumpToEventIndex seeks to the frame with the given stable event index.
func (p *Player) JumpToEventIndex(id int) error {
	var err error
	p.do(func() {
		if !p.active() {
			err = ErrEventNotFound
			return
		}
		idx, ok := p.rec.IndexOfEvent(id)
		if !ok {
			err = fmt.Errorf("%w: %d", ErrEventNotFound, id)
			return
		}
		p.opts.Metrics.Seek("event")
		p.jumpToIndex(idx)
	})
	return err
}

// JumpToIndex seeks to frame i (clamped), redrawing the screen as it looks at that frame.
func (p *Player) JumpToIndex(i int) {
	p.do(func() {
		if !p.active() {
			return
		}
		p.opts.Metrics.Seek("index")
		p.jumpToIndex(i)
	})
}

func (p *Player) jumpToIndex(i int) {
	if !p.active() {
		return
	}
	p.cancel()
	i = p.rec.ClampIndex(i)
	p.currentIndex = i
	p.finished = false

	p.resetRenderer()
	if i > 0 {
		p.write(p.rec.ContentBefore(i))
	}
	p.writeFrame(i)
	p.notifier.enqueue(positionNotification(HeadJump, p.position(i)))

	if p.isPlaying() {
		p.advanceOnPlay = false
		if i < p.lastIndex() {
			p.currentIndex++
			p.schedule()
		} else {
			p.finished = true
		}
		return
	}
	p.advanceOnPlay = true
}

// schedule arms the timer for currentIndex. The delay is the previous frame's duration divided
// by the current rate.
func (p *Player) schedule() {
	p.cancel()

	var delay time.Duration
	if p.currentIndex > 0 {
		prev, _ := p.rec.Event(p.currentIndex - 1)
		delay = time.Duration(float64(prev.FrameDuration) / p.currentRate)
	}

	gen := p.generation
	p.timer = p.opts.Clock.AfterFunc(delay, func() { p.onFrame(gen) })
}

func (p *Player) cancel() {
	p.generation++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Player) onFrame(gen uint64) {
	p.do(func() {
		if gen != p.generation || !p.active() || !p.isPlaying() {
			return
		}
		p.timer = nil

		i := p.currentIndex
		p.writeFrame(i)
		p.notifier.enqueue(positionNotification(FrameAdvance, p.position(i)))

		if i < p.lastIndex() {
			p.currentIndex++
			p.schedule()
			return
		}
		p.finished = true
	})
}

func (p *Player) writeFrame(i int) {
	evt, ok := p.rec.Event(i)
	if !ok {
		return
	}
	p.write(evt.EventContent)
}

// write is best effort: a frame that fails to render is logged and skipped.
func (p *Player) write(text string) {
	if err := p.renderer.Write(text); err != nil {
		p.opts.Metrics.WriteFailed()
		p.log.Debugf("Renderer write failed, skipping frame: %v", err)
		return
	}
	p.opts.Metrics.FrameWritten()
}

func (p *Player) resetRenderer() {
	if err := p.renderer.Reset(); err != nil {
		p.log.Debugf("Renderer reset failed: %v", err)
	}
}

func (p *Player) updatePlaybackRate(rate float64) {
	old := p.currentRate
	p.currentRate = rate
	if old != rate {
		p.notifier.enqueue(rateNotification(RateChange, old, rate))
	}
}

func (p *Player) setDesiredRate(rate float64) {
	old := p.desiredRate
	p.desiredRate = rate
	if old != rate {
		p.notifier.enqueue(rateNotification(DesiredRateChange, old, rate))
	}
	if p.isPlaying() {
		p.updatePlaybackRate(rate)
	}
}

func (p *Player) clampRate(rate float64) float64 {
	if math.IsNaN(rate) {
		return p.opts.MinRate
	}
	return math.Max(math.Min(rate, p.opts.MaxRate), p.opts.MinRate)
}

func (p *Player) indexForPosition(position float64) int {
	if math.IsNaN(position) {
		position = 0
	}
	position = math.Max(math.Min(position, 1), 0)
	return p.rec.NearestIndex(time.Duration(float64(p.rec.Duration()) * position))
}

func (p *Player) position(i int) models.Position {
	evt, _ := p.rec.Event(i)
	pos := models.Position{
		ElapsedTime:  evt.TotalDelay,
		Index:        i,
		TerminalTime: p.rec.TerminalTime(i),
	}
	if d := p.rec.Duration(); d > 0 {
		pos.PlaybackPosition = float64(evt.TotalDelay) / float64(d)
	}
	return pos
}

func (p *Player) lastIndex() int {
	return p.rec.Len() - 1
}

func (p *Player) isPlaying() bool {
	return p.currentRate != 0
}
