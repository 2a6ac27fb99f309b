package progress

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	events []Event
}

func (r *recorder) OnProgress(_ context.Context, ev Event) {
	r.events = append(r.events, ev)
}

func TestMonotonic(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	m := NewMonotonic(rec)

	_, ok := m.Last()
	assert.False(t, ok)

	for _, v := range []float64{-5, 10, 30, 20, 35, 150, 90} {
		Report(ctx, m, StageProcessing, v, "")
	}
	var got []float64
	for _, ev := range rec.events {
		got = append(got, ev.Progress)
	}
	assert.Equal(t, []float64{0, 10, 30, 30, 35, 100, 100}, got)

	last, ok := m.Last()
	assert.True(t, ok)
	assert.Equal(t, 100.0, last)
}

func TestScale(t *testing.T) {
	assert.Equal(t, 35.0, Scale(35, 80, 0))
	assert.Equal(t, 80.0, Scale(35, 80, 1))
	assert.Equal(t, 57.5, Scale(35, 80, 0.5))
	assert.Equal(t, 80.0, Scale(35, 80, 2))
}

func TestWriter(t *testing.T) {
	ctx := context.Background()
	var out, errOut bytes.Buffer
	w := NewWriter(&out, &errOut)

	w.OnProgress(ctx, Event{Stage: StageLoading, Progress: 0, Message: "Loading audio from: <in.wav>"})
	w.OnProgress(ctx, Event{Stage: StageProcessing, Progress: 57.5, Message: "chunk 1/2"})
	w.ResultSaved(ctx, "/tmp/out.wav")
	w.Error(ctx, "Noise reduction failed:\nboom")

	assert.Equal(t,
		`PROGRESS|{"stage":"loading","progress":0,"message":"Loading audio from: <in.wav>"}`+"\n"+
			`PROGRESS|{"stage":"processing","progress":57.5,"message":"chunk 1/2"}`+"\n"+
			"RESULT_SAVED|/tmp/out.wav\n",
		out.String(),
	)
	assert.Equal(t, "ERROR|Noise reduction failed: boom\n", errOut.String())
}

func TestFormatEvent(t *testing.T) {
	line, err := FormatEvent(Event{Stage: StageComplete, Progress: 100, Message: `say "hi"`})
	require.NoError(t, err)
	assert.Equal(t, `PROGRESS|{"stage":"complete","progress":100,"message":"say \"hi\""}`, line)
}
