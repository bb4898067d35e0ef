package cast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Export serializes the recording, including its current bookmarks, back to interchange text.
// Each frame's output record precedes its bookmark records, which share the frame's offset.
func Export(r *Recording) (string, error) {
	header, err := encodeLine(r.Header)
	if err != nil {
		return "", fmt.Errorf("failed to encode header: %w", err)
	}

	lines := []string{header}
	for _, evt := range r.Events() {
		offset := durationToSeconds(evt.EventTime)

		line, err := encodeLine([]interface{}{offset, TagOutput, evt.EventContent})
		if err != nil {
			return "", fmt.Errorf("failed to encode event %d: %w", evt.EventIndex, err)
		}
		lines = append(lines, line)

		for _, desc := range evt.Bookmarks {
			line, err := encodeLine([]interface{}{offset, TagBookmark, desc})
			if err != nil {
				return "", fmt.Errorf("failed to encode bookmark on event %d: %w", evt.EventIndex, err)
			}
			lines = append(lines, line)
		}
	}

	return strings.Join(lines, "\n"), nil
}

// encodeLine marshals v without HTML escaping, so terminal content is written as recorded.
func encodeLine(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
