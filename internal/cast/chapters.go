package cast

import (
	"fmt"
	"strings"
	"time"
)

// Chapters renders the bookmarks of a recording as a WebVTT chapter track. Each bookmarked frame
// opens a cue that lasts until the next bookmarked frame, or the end of the recording.
func Chapters(r *Recording) string {
	var sb strings.Builder
	sb.WriteString("WEBVTT\n")

	marks := r.Bookmarks()
	for i, evt := range marks {
		start := evt.TotalDelay
		end := r.Duration()
		if i+1 < len(marks) {
			end = marks[i+1].TotalDelay
		}
		if end <= start {
			end = start + time.Millisecond
		}

		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%d\n", evt.EventIndex))
		sb.WriteString(fmt.Sprintf("%s --> %s\n", formatVTTTime(start), formatVTTTime(end)))
		for _, line := range evt.Bookmarks {
			// Cue payloads may not contain blank lines or the cue arrow.
			line = strings.ReplaceAll(line, "-->", "->")
			if strings.TrimSpace(line) == "" {
				continue
			}
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func formatVTTTime(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3600000, (ms/60000)%60, (ms/1000)%60, ms%1000)
}
