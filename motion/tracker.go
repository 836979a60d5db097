package motion

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// TrackerStatic is the tag of the variant that never moves and never fails.
const TrackerStatic = "Static"

// Tracker is the capability every tracking algorithm variant provides.
// F is the frame type handed over by the Frame Source.
type Tracker[F any] interface {
	// Init seeds the algorithm's visual model with bbox on frame.
	Init(frame F, bbox Rectangle) error
	// Update locates the target on frame.
	Update(frame F) (Rectangle, error)
	// Close releases algorithm resources
	Close() error
}

// Factory constructs a fresh, uninitialized tracker.
type Factory[F any] func() (Tracker[F], error)

// Registry maps tracker type tags to factories.
type Registry[F any] struct {
	mu        sync.RWMutex
	factories map[string]Factory[F]
	smoothing *SmoothingOptions
}

// NewRegistry creates registry with the Static variant already registered.
func NewRegistry[F any]() *Registry[F] {
	r := &Registry[F]{
		factories: make(map[string]Factory[F]),
	}
	r.Register(TrackerStatic, func() (Tracker[F], error) {
		return NewStaticTracker[F](), nil
	})
	return r
}

// Register adds (or replaces) the factory for tag.
func (r *Registry[F]) Register(tag string, factory Factory[F]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[tag] = factory
}

// EnableSmoothing wraps every variant except Static into a Kalman smoothing decorator.
func (r *Registry[F]) EnableSmoothing(opts SmoothingOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.smoothing = &opts
}

// DisableSmoothing stops wrapping new trackers. Trackers already built keep their decorator.
func (r *Registry[F]) DisableSmoothing() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.smoothing = nil
}

// New constructs a tracker for tag.
func (r *Registry[F]) New(tag string) (Tracker[F], error) {
	r.mu.RLock()
	factory, ok := r.factories[tag]
	smoothing := r.smoothing
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTrackerType, "'%s'", tag)
	}
	tracker, err := factory()
	if err != nil {
		return nil, errors.Wrapf(err, "Can't create tracker of type '%s'", tag)
	}
	if smoothing != nil && tag != TrackerStatic {
		return NewSmoothedTracker(tracker, *smoothing), nil
	}
	return tracker, nil
}

// Has reports whether tag is registered.
func (r *Registry[F]) Has(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[tag]
	return ok
}

// Types returns registered tags in sorted order.
func (r *Registry[F]) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.factories))
	for tag := range r.factories {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// StaticTracker keeps returning the box it was initialized with.
// Used for fixed reference points.
type StaticTracker[F any] struct {
	bbox        Rectangle
	initialized bool
}

func NewStaticTracker[F any]() *StaticTracker[F] {
	return &StaticTracker[F]{}
}

func (tracker *StaticTracker[F]) Init(_ F, bbox Rectangle) error {
	tracker.bbox = bbox
	tracker.initialized = true
	return nil
}

func (tracker *StaticTracker[F]) Update(_ F) (Rectangle, error) {
	if !tracker.initialized {
		return Rectangle{}, errors.Wrap(ErrTrackerInit, "static tracker used before Init")
	}
	return tracker.bbox, nil
}

func (tracker *StaticTracker[F]) Close() error {
	return nil
}
