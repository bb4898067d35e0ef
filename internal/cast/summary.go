package cast

import "time"

// BookmarkSummary describes one bookmarked frame.
type BookmarkSummary struct {
	EventIndex int      `json:"eventIndex" yaml:"eventIndex"`
	Time       float64  `json:"time" yaml:"time"`
	Lines      []string `json:"lines" yaml:"lines"`
}

// Summary is the overview of a recording shown by info endpoints.
type Summary struct {
	Header    Header            `json:"header" yaml:"-"`
	Width     int               `json:"-" yaml:"width"`
	Height    int               `json:"-" yaml:"height"`
	Title     string            `json:"-" yaml:"title,omitempty"`
	StartTime *time.Time        `json:"startTime,omitempty" yaml:"startTime,omitempty"`
	Duration  float64           `json:"duration" yaml:"duration"`
	Events    int               `json:"events" yaml:"events"`
	Bookmarks []BookmarkSummary `json:"bookmarks" yaml:"bookmarks"`
	Error     string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// Summarize collects the header, timing and bookmarks of r.
func Summarize(r *Recording) Summary {
	s := Summary{
		Header:    r.Header,
		Width:     r.Header.Width,
		Height:    r.Header.Height,
		Title:     r.Header.Title,
		Duration:  durationToSeconds(r.Duration()),
		Events:    r.Len(),
		Bookmarks: []BookmarkSummary{},
	}
	if r.Header.Timestamp != 0 {
		start := r.StartTime().UTC()
		s.StartTime = &start
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	for _, evt := range r.Bookmarks() {
		s.Bookmarks = append(s.Bookmarks, BookmarkSummary{
			EventIndex: evt.EventIndex,
			Time:       durationToSeconds(evt.EventTime),
			Lines:      evt.Bookmarks,
		})
	}
	return s
}
