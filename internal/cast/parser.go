package cast

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"castplayd/internal/models"
)

// DefaultMaxFrameDelay is the ceiling applied to the gap between two frames.
const DefaultMaxFrameDelay = 1600 * time.Millisecond

// Record tags understood by the parser.
const (
	TagOutput   = "o"
	TagBookmark = "b"
)

var (
	// ErrMalformedHeader is wrapped by errors about the first line of a recording.
	ErrMalformedHeader = errors.New("malformed recording header")
	// ErrMalformedRecord is wrapped by errors about event lines.
	ErrMalformedRecord = errors.New("malformed recording event")
	// ErrEmptyRecording is reported when the content has no header line.
	ErrEmptyRecording = errors.New("recording is empty")
)

// ParseOptions tune how a recording is turned into a timeline.
type ParseOptions struct {
	// MaxFrameDelay caps every frame duration. Zero means DefaultMaxFrameDelay.
	MaxFrameDelay time.Duration
}

func (o ParseOptions) maxFrameDelay() time.Duration {
	if o.MaxFrameDelay <= 0 {
		return DefaultMaxFrameDelay
	}
	return o.MaxFrameDelay
}

// rawEvent is one decoded event line.
type rawEvent struct {
	offset  time.Duration
	tag     string
	content string
}

// Parse turns interchange text into a Recording. It never fails outright: decode problems are
// captured in Recording.Err, and such a recording has an empty header and no events.
func Parse(content string, opts ParseOptions) *Recording {
	header, raws, err := decode(content)
	if err != nil {
		return &Recording{Header: EmptyHeader(), Err: err}
	}

	events := buildTimeline(raws, opts.maxFrameDelay())
	rec := &Recording{Header: header, events: events}
	if n := len(events); n > 0 {
		rec.duration = events[n-1].TotalDelay
	}
	return rec
}

func decode(content string) (Header, []rawEvent, error) {
	var (
		header    Header
		haveHead  bool
		raws      []rawEvent
		lineIndex int
	)

	for _, line := range strings.Split(content, "\n") {
		lineIndex++
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if !haveHead {
			h, err := decodeHeader([]byte(line))
			if err != nil {
				return Header{}, nil, fmt.Errorf("line %d: %w", lineIndex, err)
			}
			header, haveHead = h, true
			continue
		}

		raw, err := decodeEvent([]byte(line))
		if err != nil {
			return Header{}, nil, fmt.Errorf("line %d: %w", lineIndex, err)
		}
		raws = append(raws, raw)
	}

	if !haveHead {
		return Header{}, nil, ErrEmptyRecording
	}
	return header, raws, nil
}

func decodeEvent(line []byte) (rawEvent, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return rawEvent{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if len(fields) != 3 {
		return rawEvent{}, fmt.Errorf("%w: expected 3 elements, got %d", ErrMalformedRecord, len(fields))
	}

	var (
		seconds float64
		raw     rawEvent
	)
	if err := json.Unmarshal(fields[0], &seconds); err != nil {
		return rawEvent{}, fmt.Errorf("%w: offset: %v", ErrMalformedRecord, err)
	}
	if err := json.Unmarshal(fields[1], &raw.tag); err != nil {
		return rawEvent{}, fmt.Errorf("%w: tag: %v", ErrMalformedRecord, err)
	}
	if err := json.Unmarshal(fields[2], &raw.content); err != nil {
		return rawEvent{}, fmt.Errorf("%w: content: %v", ErrMalformedRecord, err)
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return rawEvent{}, fmt.Errorf("%w: invalid offset %v", ErrMalformedRecord, seconds)
	}
	raw.offset = secondsToDuration(seconds)
	return raw, nil
}

// buildTimeline groups bookmark records onto the preceding output record and computes the
// clamped frame durations and cumulative delays.
func buildTimeline(raws []rawEvent, maxDelay time.Duration) []models.TimelineEvent {
	var events []models.TimelineEvent
	for _, raw := range raws {
		switch raw.tag {
		case TagOutput:
			events = append(events, models.TimelineEvent{
				EventIndex:   len(events),
				EventTime:    raw.offset,
				EventContent: raw.content,
			})
		case TagBookmark:
			if len(events) > 0 {
				last := &events[len(events)-1]
				last.Bookmarks = append(last.Bookmarks, raw.content)
			}
		}
	}

	for i := 1; i < len(events); i++ {
		prev := &events[i-1]
		prev.FrameDuration = clampDuration(events[i].EventTime-prev.EventTime, 0, maxDelay)
		events[i].TotalDelay = prev.TotalDelay + prev.FrameDuration
	}
	return events
}

// secondsToDuration converts fractional seconds to a duration with microsecond resolution.
func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(math.Round(seconds*1e6)) * time.Microsecond
}

func durationToSeconds(d time.Duration) float64 {
	return float64(d/time.Microsecond) / 1e6
}

func clampDuration(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}
