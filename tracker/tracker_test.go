package tracker

import (
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/google/uuid"
	"github.com/nvr-ai/narrator/images"
	"github.com/nvr-ai/narrator/models/postprocess"
	"github.com/nvr-ai/narrator/narration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	frame = images.Size{Width: 1280, Height: 720}
	t0    = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

func detection(label string, box images.Rect) postprocess.Detection {
	return postprocess.Detection{Box: box, Confidence: 0.9, Label: label}
}

func newTracker(t *testing.T) *Tracker {
	t.Helper()
	return New(DefaultConfig(), narration.NewNarrator(narration.NewDepthEstimator()), zaptest.NewLogger(t))
}

func TestTracker_NarratesOnceAfterDwell(t *testing.T) {
	tr := newTracker(t)
	r := images.Rect{X1: 100, Y1: 100, X2: 200, Y2: 300}

	assert.Empty(t, tr.Update([]postprocess.Detection{detection("person", r)}, frame, at(0)))
	assert.Empty(t, tr.Update([]postprocess.Detection{detection("person", r.Offset(10, 0))}, frame, at(500)))
	assert.Empty(t, tr.Update([]postprocess.Detection{detection("person", r.Offset(0, 20))}, frame, at(1500)))

	events := tr.Update([]postprocess.Detection{detection("person", r.Offset(30, 30))}, frame, at(2100))
	require.Len(t, events, 1)
	assert.Equal(t, "person", events[0].Label)
	assert.Equal(t, at(2100), events[0].EmittedAt)
	assert.Equal(t, "I see a person at left-top, far, approximately 8.5 meters away.", events[0].Text)
	assert.NotEqual(t, uuid.Nil, events[0].ID)

	_, tracked := tr.State("person")
	assert.False(t, tracked, "narrated label is evicted")
	assert.Equal(t, 0, tr.Len())

	// The next sighting starts a fresh dwell.
	assert.Empty(t, tr.Update([]postprocess.Detection{detection("person", r)}, frame, at(2200)))
	s, ok := tr.State("person")
	require.True(t, ok)
	assert.Equal(t, at(2200), s.FirstSeenAt)
}

func TestTracker_DwellIsNotRefreshedWhileStationary(t *testing.T) {
	tr := newTracker(t)
	r := images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}

	tr.Update([]postprocess.Detection{detection("cup", r)}, frame, at(0))
	tr.Update([]postprocess.Detection{detection("cup", r.Offset(40, 0))}, frame, at(1000))

	s, ok := tr.State("cup")
	require.True(t, ok)
	assert.Equal(t, at(0), s.FirstSeenAt)
	assert.Equal(t, r, s.LastRect, "last rect is only replaced on movement")
}

func TestTracker_MovementResetsDwell(t *testing.T) {
	tr := newTracker(t)
	r := images.Rect{X1: 100, Y1: 100, X2: 300, Y2: 200}

	assert.Empty(t, tr.Update([]postprocess.Detection{detection("car", r)}, frame, at(0)))
	assert.Empty(t, tr.Update([]postprocess.Detection{detection("car", r.Offset(200, 0))}, frame, at(1000)))

	s, ok := tr.State("car")
	require.True(t, ok)
	assert.Equal(t, at(1000), s.FirstSeenAt)

	// 2500ms since t=0 but only 1500ms since the reset.
	assert.Empty(t, tr.Update([]postprocess.Detection{detection("car", r.Offset(200, 0))}, frame, at(2500)))

	events := tr.Update([]postprocess.Detection{detection("car", r.Offset(200, 0))}, frame, at(3000))
	require.Len(t, events, 1)
	assert.Equal(t, "car", events[0].Label)
}

func TestTracker_MovementThresholdIsExclusive(t *testing.T) {
	tr := newTracker(t)
	r := images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}

	tr.Update([]postprocess.Detection{detection("dog", r)}, frame, at(0))
	// Exactly 50px counts as movement.
	tr.Update([]postprocess.Detection{detection("dog", r.Offset(30, 40))}, frame, at(1000))

	s, ok := tr.State("dog")
	require.True(t, ok)
	assert.Equal(t, at(1000), s.FirstSeenAt)
}

func TestTracker_EvictsAbsentLabels(t *testing.T) {
	tr := newTracker(t)
	r := images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}

	for ms := 0; ms <= 1900; ms += 100 {
		assert.Empty(t, tr.Update([]postprocess.Detection{detection("person", r)}, frame, at(ms)))
	}
	assert.Equal(t, 1, tr.Len())

	assert.Empty(t, tr.Update(nil, frame, at(2000)))
	assert.Equal(t, 0, tr.Len())

	// Reappearing starts over rather than narrating.
	assert.Empty(t, tr.Update([]postprocess.Detection{detection("person", r)}, frame, at(2100)))
	s, ok := tr.State("person")
	require.True(t, ok)
	assert.Equal(t, at(2100), s.FirstSeenAt)
}

func TestTracker_MultipleLabelsNarrateIndependently(t *testing.T) {
	tr := newTracker(t)
	person := detection("person", images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 200})
	bike := detection("bicycle", images.Rect{X1: 600, Y1: 300, X2: 700, Y2: 400})
	car := detection("car", images.Rect{X1: 900, Y1: 300, X2: 1200, Y2: 500})

	tr.Update([]postprocess.Detection{person, bike}, frame, at(0))
	tr.Update([]postprocess.Detection{person, bike, car}, frame, at(1000))

	events := tr.Update([]postprocess.Detection{bike, car, person}, frame, at(2000))
	require.Len(t, events, 2)
	assert.Equal(t, "bicycle", events[0].Label)
	assert.Equal(t, "person", events[1].Label)

	_, ok := tr.State("car")
	assert.True(t, ok)
	assert.Equal(t, 1, tr.Len())
}

func TestTracker_DuplicateLabelInFrame(t *testing.T) {
	tr := newTracker(t)
	r := images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}
	other := r.Offset(500, 0)

	tr.Update([]postprocess.Detection{detection("person", r)}, frame, at(0))

	// The first matches and narrates; the second re-registers the label.
	events := tr.Update([]postprocess.Detection{detection("person", r), detection("person", other)}, frame, at(2000))
	require.Len(t, events, 1)

	s, ok := tr.State("person")
	require.True(t, ok)
	assert.Equal(t, other, s.LastRect)
	assert.Equal(t, at(2000), s.FirstSeenAt)
}

func TestTracker_DegenerateInputStaysLive(t *testing.T) {
	tr := newTracker(t)
	flat := images.Rect{X1: 0, Y1: 50, X2: 100, Y2: 50}

	tr.Update([]postprocess.Detection{detection("person", flat)}, frame, at(0))
	events := tr.Update([]postprocess.Detection{detection("person", flat)}, frame, at(3000))
	assert.Empty(t, events, "zero-height box has no depth")

	s, ok := tr.State("person")
	require.True(t, ok, "entry is kept while narration is withheld")
	assert.Equal(t, at(0), s.FirstSeenAt)

	// A NaN box resets the timer instead of faulting.
	nan := images.Rect{X1: math32.NaN(), Y1: 0, X2: 10, Y2: 10}
	assert.Empty(t, tr.Update([]postprocess.Detection{detection("person", nan)}, frame, at(3100)))
	s, ok = tr.State("person")
	require.True(t, ok)
	assert.Equal(t, at(3100), s.FirstSeenAt)

	// A valid box after the NaN one also moves (distance from NaN is NaN).
	valid := images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}
	assert.Empty(t, tr.Update([]postprocess.Detection{detection("person", valid)}, frame, at(3200)))
	events = tr.Update([]postprocess.Detection{detection("person", valid)}, frame, at(5200))
	require.Len(t, events, 1)
}

func TestTracker_Reset(t *testing.T) {
	tr := newTracker(t)
	tr.Update([]postprocess.Detection{
		detection("person", images.Rect{X2: 10, Y2: 10}),
		detection("car", images.Rect{X2: 10, Y2: 10}),
	}, frame, at(0))
	require.Equal(t, 2, tr.Len())

	tr.Reset()
	assert.Equal(t, 0, tr.Len())
}

func TestTracker_NilLogger(t *testing.T) {
	tr := New(DefaultConfig(), narration.NewNarrator(narration.NewDepthEstimator()), nil)
	assert.Empty(t, tr.Update([]postprocess.Detection{detection("person", images.Rect{X2: 10, Y2: 10})}, frame, at(0)))
}

func TestTracker_NilNarratorUsesDefault(t *testing.T) {
	tr := New(DefaultConfig(), nil, zaptest.NewLogger(t))
	r := images.Rect{X1: 100, Y1: 100, X2: 200, Y2: 300}

	assert.Empty(t, tr.Update([]postprocess.Detection{detection("person", r)}, frame, at(0)))
	events := tr.Update([]postprocess.Detection{detection("person", r)}, frame, at(2000))
	require.Len(t, events, 1)
	assert.Equal(t, "I see a person at left-top, far, approximately 8.5 meters away.", events[0].Text)
}
