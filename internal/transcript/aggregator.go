package transcript

import (
	"log/slog"
	"sync"
)

// Fragment is a single transcribed utterance received from the
// transcription backend. StartTime and EndTime are seconds relative
// to the beginning of the capture session.
type Fragment struct {
	ID           string
	SpeakerLabel string
	Content      string
	StartTime    float64
	EndTime      float64
	Confidence   float64
}

// AggregatorStats holds counters for monitoring.
type AggregatorStats struct {
	Fragments  int
	Duplicates uint64
	Speakers   int
}

// Aggregator collects fragments and keeps them ordered by start time.
// Fragments may arrive out of order after a transcript channel
// reconnect; insertion keeps the view sorted without re-sorting the
// whole slice. Fragments with an already-seen ID are dropped.
type Aggregator struct {
	mu         sync.Mutex
	fragments  []Fragment
	seen       map[string]struct{}
	speakers   map[string]string
	duplicates uint64
	onFragment func(Fragment)
	logger     *slog.Logger
}

// NewAggregator creates an empty aggregator.
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		seen:     make(map[string]struct{}),
		speakers: make(map[string]string),
		logger:   logger.With("component", "transcript"),
	}
}

// SetOnFragment registers a callback invoked for each accepted
// fragment, after it has been inserted. The callback runs on the
// caller's goroutine with the aggregator unlocked.
func (a *Aggregator) SetOnFragment(fn func(Fragment)) {
	a.mu.Lock()
	a.onFragment = fn
	a.mu.Unlock()
}

// Add inserts a fragment in start-time order. It reports whether the
// fragment was accepted; duplicates (same ID) are dropped.
func (a *Aggregator) Add(f Fragment) bool {
	a.mu.Lock()

	if f.ID != "" {
		if _, dup := a.seen[f.ID]; dup {
			a.duplicates++
			a.mu.Unlock()
			a.logger.Debug("Dropped duplicate fragment", "fragment_id", f.ID)
			return false
		}
		a.seen[f.ID] = struct{}{}
	}

	a.insert(f)

	fn := a.onFragment
	a.mu.Unlock()

	if fn != nil {
		fn(f)
	}
	return true
}

// insert places f at the position that keeps fragments sorted by
// StartTime. Equal start times keep arrival order. Caller holds mu.
func (a *Aggregator) insert(f Fragment) {
	i := len(a.fragments)
	for i > 0 && a.fragments[i-1].StartTime > f.StartTime {
		i--
	}
	a.fragments = append(a.fragments, Fragment{})
	copy(a.fragments[i+1:], a.fragments[i:])
	a.fragments[i] = f
}

// Snapshot returns a copy of the current fragments in start-time order.
func (a *Aggregator) Snapshot() []Fragment {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Fragment, len(a.fragments))
	copy(out, a.fragments)
	return out
}

// Len returns the number of accepted fragments.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.fragments)
}

// Reset clears all fragments, dedup state, and speaker names.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.fragments = nil
	a.seen = make(map[string]struct{})
	a.speakers = make(map[string]string)
	a.duplicates = 0
}

// SetSpeakerName assigns a display name to a speaker label
// (e.g. "speaker_0" -> "Juror 4").
func (a *Aggregator) SetSpeakerName(label, name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.speakers[label] = name
}

// SpeakerName resolves a speaker label to its display name,
// falling back to the raw label when none was assigned.
func (a *Aggregator) SpeakerName(label string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if name, ok := a.speakers[label]; ok {
		return name
	}
	return label
}

// GetStats returns aggregator statistics for monitoring.
func (a *Aggregator) GetStats() AggregatorStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return AggregatorStats{
		Fragments:  len(a.fragments),
		Duplicates: a.duplicates,
		Speakers:   len(a.speakers),
	}
}
