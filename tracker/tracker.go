// Package tracker - Per-label stability tracking that decides when a detection is narrated.
package tracker

import (
	"sync"
	"time"

	"github.com/chewxy/math32"
	"github.com/google/uuid"
	"github.com/nvr-ai/narrator/images"
	"github.com/nvr-ai/narrator/models/postprocess"
	"github.com/nvr-ai/narrator/narration"
	"go.uber.org/zap"
)

const (
	// DefaultMovementThreshold is the center displacement, in pixels, at or
	// above which a label is considered to have moved.
	DefaultMovementThreshold = 50
	// DefaultStabilityThreshold is how long a label must stay put before it is narrated.
	DefaultStabilityThreshold = 2 * time.Second
)

// Config holds the tracker thresholds.
type Config struct {
	MovementThreshold  float32       `json:"movementThreshold" yaml:"movement_threshold"`
	StabilityThreshold time.Duration `json:"stabilityThreshold" yaml:"stability_threshold"`
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		MovementThreshold:  DefaultMovementThreshold,
		StabilityThreshold: DefaultStabilityThreshold,
	}
}

// Narrator renders the narration text for a detection that became stable.
// It returns false when no sensible text can be produced (e.g. degenerate box).
type Narrator interface {
	Narrate(d postprocess.Detection, frame images.Size) (string, bool)
}

// State is the tracking entry for one label.
type State struct {
	Label       string      `json:"label"`
	FirstSeenAt time.Time   `json:"firstSeenAt"`
	LastRect    images.Rect `json:"lastRect"`
}

// NarrationEvent is emitted when a label has been stationary long enough.
type NarrationEvent struct {
	ID        uuid.UUID             `json:"id"`
	Text      string                `json:"text"`
	Label     string                `json:"label"`
	EmittedAt time.Time             `json:"emittedAt"`
	Detection postprocess.Detection `json:"detection"`
}

// Tracker holds at most one State per label across frames.
//
// A label is Unseen (no entry), Observed (entry with a running dwell timer),
// or Narrated, which drops the entry in the same frame so one dwell can only
// narrate once.
type Tracker struct {
	mu       sync.Mutex
	config   Config
	narrator Narrator
	logger   *zap.Logger
	states   map[string]State
}

// New creates a tracker.
//
// Arguments:
//   - config: The movement and stability thresholds.
//   - narrator: Renders text for labels that become narration-eligible; nil uses
//     narration.NewNarrator with the default depth estimator.
//   - logger: The logger; nil disables logging.
//
// Returns:
//   - *Tracker: An empty tracker.
func New(config Config, narrator Narrator, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if narrator == nil {
		narrator = narration.NewNarrator(narration.NewDepthEstimator())
	}
	return &Tracker{
		config:   config,
		narrator: narrator,
		logger:   logger,
		states:   make(map[string]State),
	}
}

// Update advances the tracker by one frame.
//
// Detections are processed in order. A new label starts a dwell timer. A
// label whose center moved by less than MovementThreshold keeps its timer
// and narrates once now - FirstSeenAt >= StabilityThreshold, which removes
// its entry. A label that moved restarts its timer at the new box. After
// all detections, labels absent from this frame are evicted.
//
// Arguments:
//   - detections: The suppressed detections of this frame.
//   - frame: The frame size, used for the position description.
//   - now: The frame timestamp.
//
// Returns:
//   - []NarrationEvent: The narrations produced by this frame, in detection order.
func (t *Tracker) Update(detections []postprocess.Detection, frame images.Size, now time.Time) []NarrationEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	var events []NarrationEvent
	seen := make(map[string]struct{}, len(detections))

	for _, d := range detections {
		seen[d.Label] = struct{}{}

		prev, ok := t.states[d.Label]
		if !ok {
			t.states[d.Label] = State{Label: d.Label, FirstSeenAt: now, LastRect: d.Box}
			continue
		}

		distance := images.CenterDistance(prev.LastRect, d.Box)
		if math32.IsNaN(distance) || math32.IsInf(distance, 0) || distance >= t.config.MovementThreshold {
			t.states[d.Label] = State{Label: d.Label, FirstSeenAt: now, LastRect: d.Box}
			continue
		}

		if now.Sub(prev.FirstSeenAt) < t.config.StabilityThreshold {
			continue
		}

		text, ok := t.narrator.Narrate(d, frame)
		if !ok {
			t.logger.Debug("withholding narration for degenerate detection",
				zap.String("label", d.Label),
				zap.Stringer("box", d.Box),
			)
			continue
		}

		delete(t.states, d.Label)
		events = append(events, NarrationEvent{
			ID:        uuid.New(),
			Text:      text,
			Label:     d.Label,
			EmittedAt: now,
			Detection: d,
		})
		t.logger.Info("narration", zap.String("label", d.Label), zap.String("text", text))
	}

	for label := range t.states {
		if _, ok := seen[label]; !ok {
			delete(t.states, label)
		}
	}

	return events
}

// Reset drops all tracking state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.states)
}

// Len returns the number of tracked labels.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.states)
}

// State returns the tracking entry for label, if any.
func (t *Tracker) State(label string) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[label]
	return s, ok
}
