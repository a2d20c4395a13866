package sim

// Recorder receives opaque labeled datapoints emitted by simulation
// components. The engine never depends on what a Recorder does with them:
// implementations may keep them in memory, stream them to disk, or drop them.
//
// Category groups datapoints by theme ("received_part", "resource_update"),
// subject identifies the emitting entity (usually a device name).
type Recorder interface {
	Record(category, subject string, payload any)
}

// NopRecorder discards every datapoint.
type NopRecorder struct{}

func (NopRecorder) Record(string, string, any) {}

// Datapoint is a single recorded entry, kept in insertion order.
type Datapoint struct {
	Time     float64
	Category string
	Subject  string
	Payload  any
}

// MemoryRecorder keeps datapoints in memory, indexed by category and subject,
// and additionally preserves the global insertion order for determinism
// checks.
type MemoryRecorder struct {
	env     *Environment
	byLabel map[string]map[string][]Datapoint
	ordered []Datapoint
}

// NewMemoryRecorder creates an empty MemoryRecorder. Bind must be called
// before recording so entries carry simulation timestamps.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{
		byLabel: make(map[string]map[string][]Datapoint),
	}
}

// Bind attaches the recorder to the environment whose clock stamps entries.
func (r *MemoryRecorder) Bind(env *Environment) {
	r.env = env
}

func (r *MemoryRecorder) Record(category, subject string, payload any) {
	now := 0.0
	if r.env != nil {
		now = r.env.Now()
	}
	dp := Datapoint{Time: now, Category: category, Subject: subject, Payload: payload}
	subjects, ok := r.byLabel[category]
	if !ok {
		subjects = make(map[string][]Datapoint)
		r.byLabel[category] = subjects
	}
	subjects[subject] = append(subjects[subject], dp)
	r.ordered = append(r.ordered, dp)
}

// Datapoints returns the recorded entries for a category and subject in the
// order they were recorded.
func (r *MemoryRecorder) Datapoints(category, subject string) []Datapoint {
	return r.byLabel[category][subject]
}

// All returns every recorded datapoint in global insertion order.
func (r *MemoryRecorder) All() []Datapoint {
	return r.ordered
}
