package cast_test

import (
	"encoding/json"
	"testing"
	"time"

	"castplayd/internal/cast"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	rec := cast.Parse(recordingText(
		`[0,"o","a"]`,
		`[1.5,"o","b"]`,
		`[1.5,"b","step one"]`,
		`[2,"o","c"]`,
	), cast.ParseOptions{})
	require.NoError(t, rec.Err)

	s := cast.Summarize(rec)
	assert.Equal(t, 100, s.Width)
	assert.Equal(t, 40, s.Height)
	assert.Equal(t, "demo", s.Title)
	assert.Equal(t, 2.0, s.Duration)
	assert.Equal(t, 3, s.Events)
	require.NotNil(t, s.StartTime)
	assert.Equal(t, time.Unix(1600000000, 0).UTC(), *s.StartTime)
	assert.Equal(t, []cast.BookmarkSummary{{EventIndex: 1, Time: 1.5, Lines: []string{"step one"}}}, s.Bookmarks)
	assert.Empty(t, s.Error)

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"header":{"version":2,"width":100,"height":40`)
	assert.Contains(t, string(out), `"bookmarks":[{"eventIndex":1,"time":1.5,"lines":["step one"]}]`)
}

func TestSummarize_Unplayable(t *testing.T) {
	s := cast.Summarize(cast.Parse("garbage", cast.ParseOptions{}))
	assert.NotEmpty(t, s.Error)
	assert.Equal(t, 0, s.Events)
	assert.NotNil(t, s.Bookmarks)
}
