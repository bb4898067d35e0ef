package cast_test

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"castplayd/internal/cast"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExport_Layout(t *testing.T) {
	rec := cast.Parse(recordingText(
		`[0,"o","$ ls\r\n"]`,
		`[1.5,"o","<a&b>"]`,
	), cast.ParseOptions{})
	require.NoError(t, rec.Err)
	rec.AddBookmark(1, "look here\nand here")

	out, err := cast.Export(rec)
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 5)
	assert.JSONEq(t, sampleHeader, lines[0])
	assert.Equal(t, `[0,"o","$ ls\r\n"]`, lines[1])
	assert.Equal(t, `[1.5,"o","<a&b>"]`, lines[2])
	assert.Equal(t, `[1.5,"b","look here"]`, lines[3])
	assert.Equal(t, `[1.5,"b","and here"]`, lines[4])
}

func TestExport_PreservesUnknownHeaderFields(t *testing.T) {
	text := `{"version":2,"width":80,"height":24,"duration":12.5,"theme":{"fg":"#fff"}}` + "\n" + `[0,"o","x"]`
	rec := cast.Parse(text, cast.ParseOptions{})
	require.NoError(t, rec.Err)

	raw, ok := rec.Header.Extra("duration")
	require.True(t, ok)
	assert.JSONEq(t, `12.5`, string(raw))

	out, err := cast.Export(rec)
	require.NoError(t, err)
	header := strings.SplitN(out, "\n", 2)[0]
	assert.JSONEq(t, `{"version":2,"width":80,"height":24,"duration":12.5,"theme":{"fg":"#fff"}}`, header)
}

func TestExport_PreservesAllEnvVariables(t *testing.T) {
	headerLine := `{"version":2,"width":80,"height":24,"env":{"SHELL":"/bin/zsh","TERM":"xterm","LANG":"C.UTF-8","COLORTERM":null}}`
	rec := cast.Parse(headerLine+"\n"+`[0,"o","x"]`, cast.ParseOptions{})
	require.NoError(t, rec.Err)
	require.NotNil(t, rec.Header.Env)
	assert.Equal(t, "/bin/zsh", rec.Header.Env.Shell)
	assert.Equal(t, "xterm", rec.Header.Env.Term)

	out, err := cast.Export(rec)
	require.NoError(t, err)
	assert.JSONEq(t, headerLine, strings.SplitN(out, "\n", 2)[0])
}

func TestExport_RoundTrip(t *testing.T) {
	text := recordingText(
		`[0.000001,"o","a"]`,
		`[0.1,"b","mark one"]`,
		`[0.333333,"o","b"]`,
		`[9.75,"o","\u001b[31mred\u001b[0m"]`,
		`[9.75,"b","line 1"]`,
		`[9.75,"b","line 2"]`,
	)
	first := cast.Parse(text, cast.ParseOptions{})
	require.NoError(t, first.Err)

	out, err := cast.Export(first)
	require.NoError(t, err)
	second := cast.Parse(out, cast.ParseOptions{})
	require.NoError(t, second.Err)

	assert.Equal(t, first.Events(), second.Events())
	assert.Equal(t, first.Header, second.Header)
}

// buildCast renders a recording from frame gaps (seconds) and optional bookmark notes.
func buildCast(gaps []float64, notes []string) string {
	lines := []string{sampleHeader}
	offset := 0.0
	for i, gap := range gaps {
		offset += gap
		ts, _ := json.Marshal(offset)
		lines = append(lines, fmt.Sprintf(`[%s,"o","frame %d\r\n"]`, ts, i))
		if i < len(notes) && notes[i] != "" {
			note, _ := json.Marshal(notes[i])
			lines = append(lines, fmt.Sprintf(`[%s,"b",%s]`, ts, note))
		}
	}
	return strings.Join(lines, "\n")
}

func TestProperties_Timeline(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("parse(export(parse(x))) == parse(x)", prop.ForAll(
		func(gaps []float64, notes []string) bool {
			first := cast.Parse(buildCast(gaps, notes), cast.ParseOptions{})
			if first.Err != nil {
				return false
			}
			out, err := cast.Export(first)
			if err != nil {
				return false
			}
			second := cast.Parse(out, cast.ParseOptions{})
			return second.Err == nil && assert.ObjectsAreEqual(first.Events(), second.Events())
		},
		gen.SliceOf(gen.Float64Range(0, 5)),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("total delay is monotonic and ends at the duration", prop.ForAll(
		func(gaps []float64) bool {
			rec := cast.Parse(buildCast(gaps, nil), cast.ParseOptions{})
			events := rec.Events()
			for i := 1; i < len(events); i++ {
				if events[i-1].TotalDelay > events[i].TotalDelay {
					return false
				}
				if events[i-1].FrameDuration > cast.DefaultMaxFrameDelay {
					return false
				}
			}
			if len(events) == 0 {
				return rec.Duration() == 0
			}
			return events[len(events)-1].FrameDuration == 0 && events[len(events)-1].TotalDelay == rec.Duration()
		},
		gen.SliceOf(gen.Float64Range(0, 5)),
	))

	properties.Property("nearest search agrees with a linear scan", prop.ForAll(
		func(stepsMs []int64, needleMs int64) bool {
			if len(stepsMs) == 0 {
				return true
			}
			ms := make([]int, len(stepsMs))
			total := 0
			for i, step := range stepsMs {
				if i > 0 {
					total += int(step)
				}
				ms[i] = total
			}
			list := timelineWithDelays(ms...)
			needle := time.Duration(needleMs) * time.Millisecond

			got := cast.FindClosest(needle, list, 0, len(list)-1)
			best := absDiff(list[0].TotalDelay, needle)
			for _, evt := range list {
				if d := absDiff(evt.TotalDelay, needle); d < best {
					best = d
				}
			}
			return absDiff(list[got].TotalDelay, needle) == best
		},
		gen.SliceOf(gen.Int64Range(0, 2000)),
		gen.Int64Range(-500, 60000),
	))

	properties.TestingRun(t)
}

func absDiff(a, b time.Duration) time.Duration {
	if a > b {
		return a - b
	}
	return b - a
}
