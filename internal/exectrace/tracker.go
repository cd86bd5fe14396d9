package exectrace

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tracker owns the ordered step sequence of a single run. Create one per
// concurrent task; Reset starts a new run on the same tracker.
type Tracker struct {
	mu    sync.Mutex
	runID string
	steps []Step
	now   func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker returns an empty tracker with a fresh run id.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		runID: uuid.NewString(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RunID identifies the current run.
func (t *Tracker) RunID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runID
}

// Reset clears all steps, restarts numbering at 1 and assigns a new run id.
func (t *Tracker) Reset() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = nil
	t.runID = uuid.NewString()
	return t.runID
}

// Record appends a step and returns its id. metadata is copied.
func (t *Tracker) Record(kind Kind, content, actor, target string, metadata map[string]interface{}) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	step := Step{
		ID:        len(t.steps) + 1,
		Kind:      kind,
		Timestamp: t.now(),
		Actor:     actor,
		Target:    target,
		Content:   content,
	}
	if metadata != nil {
		step.Metadata = cloneValue(metadata).(map[string]interface{})
	}
	t.steps = append(t.steps, step)
	return step.ID
}

// UpdateDuration sets the duration of a recorded step. Unknown ids are ignored.
func (t *Tracker) UpdateDuration(stepID int, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if stepID < 1 || stepID > len(t.steps) {
		return
	}
	ms := d.Milliseconds()
	t.steps[stepID-1].DurationMS = &ms
}

// Snapshot returns a deep copy of the steps in issuance order.
func (t *Tracker) Snapshot() []Step {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Step, len(t.steps))
	for i, s := range t.steps {
		out[i] = s.clone()
	}
	return out
}

// Len returns the number of recorded steps.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.steps)
}
