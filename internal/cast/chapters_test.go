package cast_test

import (
	"testing"

	"castplayd/internal/cast"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChapters(t *testing.T) {
	rec := cast.Parse(recordingText(
		`[0,"o","a"]`,
		`[1,"o","b"]`,
		`[1,"b","login"]`,
		`[2.5,"o","c"]`,
		`[3,"o","d"]`,
		`[3,"b","exploit --> root"]`,
		`[3,"b",""]`,
	), cast.ParseOptions{})
	require.NoError(t, rec.Err)

	expected := "WEBVTT\n" +
		"\n" +
		"1\n" +
		"00:00:01.000 --> 00:00:03.000\n" +
		"login\n" +
		"\n" +
		"3\n" +
		"00:00:03.000 --> 00:00:03.001\n" +
		"exploit -> root\n"
	assert.Equal(t, expected, cast.Chapters(rec))
}

func TestChapters_NoBookmarks(t *testing.T) {
	rec := cast.Parse(recordingText(`[0,"o","a"]`), cast.ParseOptions{})
	assert.Equal(t, "WEBVTT\n", cast.Chapters(rec))
}
