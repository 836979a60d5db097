package motion

import (
	"context"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// TrackerState is the lifecycle state of a tracker's algorithm handle.
type TrackerState int

const (
	TrackerUninitialized TrackerState = iota
	TrackerActive
	TrackerFailed
)

func (state TrackerState) String() string {
	switch state {
	case TrackerUninitialized:
		return "uninitialized"
	case TrackerActive:
		return "active"
	case TrackerFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TrackerInfo is a snapshot of a tracker definition.
type TrackerInfo struct {
	ID          uuid.UUID
	Name        string
	TrackerType string
	Offset      Point
	State       TrackerState
}

type trackerRecord[F any] struct {
	id          uuid.UUID
	name        string
	trackerType string
	offset      Point
	// handle is only touched while algoMu is held
	handle Tracker[F]
	state  TrackerState
	series TrackerSeries
}

type angleRecord struct {
	def    AngleDef
	series AngleSeries
}

type distanceRecord struct {
	def    DistanceDef
	series DistanceSeries
}

// CoordinatorOptions tune the consume loop.
type CoordinatorOptions struct {
	// How long Run waits for a frame before re-checking for stop. Default is 1s.
	ReceiveTimeout time.Duration
	// Capacity of the events channel. Default is 64.
	EventsBuffer int
}

// Coordinator owns every tracker, derived item and time series. It consumes frames
// from the Transport, updates trackers and recomputes derived measurements.
//
// Two locks are used: mu guards the data and is never held across tracker Init/Update;
// algoMu serializes access to algorithm handles. Lock order is algoMu, then mu.
type Coordinator[F Frame[F]] struct {
	log            logs.Log
	registry       *Registry[F]
	transport      *Transport[F]
	receiveTimeout time.Duration
	events         *eventBus

	algoMu sync.Mutex

	mu            sync.Mutex
	frameCount    int
	trackers      map[string]*trackerRecord[F]
	order         []string
	angles        map[string]*angleRecord
	angleOrder    []string
	distances     map[string]*distanceRecord
	distanceOrder []string
	current       Item[F]
	hasCurrent    bool
	reachedEnd    bool

	stopOnce sync.Once
	stop     chan struct{}
}

// NewCoordinator creates a coordinator consuming from transport.
func NewCoordinator[F Frame[F]](log logs.Log, registry *Registry[F], transport *Transport[F], opts CoordinatorOptions) *Coordinator[F] {
	if opts.ReceiveTimeout <= 0 {
		opts.ReceiveTimeout = time.Second
	}
	return &Coordinator[F]{
		log:            log,
		registry:       registry,
		transport:      transport,
		receiveTimeout: opts.ReceiveTimeout,
		events:         newEventBus(log, opts.EventsBuffer),
		trackers:       make(map[string]*trackerRecord[F]),
		angles:         make(map[string]*angleRecord),
		distances:      make(map[string]*distanceRecord),
		stop:           make(chan struct{}),
	}
}

// Events returns the channel AddTrackerFailed, TrackingFailed and ReachedEnd are delivered on.
func (c *Coordinator[F]) Events() <-chan Event {
	return c.events.ch
}

// Configure sets the length of every series allocated from now on.
func (c *Coordinator[F]) Configure(frameCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frameCount = frameCount
	c.reachedEnd = false
}

// FrameCount returns the configured series length.
func (c *Coordinator[F]) FrameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameCount
}

// Clear drops every tracker, derived item and the current frame.
func (c *Coordinator[F]) Clear() {
	c.algoMu.Lock()
	defer c.algoMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range c.trackers {
		closeHandle(rec)
	}
	c.trackers = make(map[string]*trackerRecord[F])
	c.order = nil
	c.angles = make(map[string]*angleRecord)
	c.angleOrder = nil
	c.distances = make(map[string]*distanceRecord)
	c.distanceOrder = nil
	if c.hasCurrent {
		c.current.Frame.Close()
	}
	c.current = Item[F]{}
	c.hasCurrent = false
	c.reachedEnd = false
}

func closeHandle[F any](rec *trackerRecord[F]) {
	if rec.handle != nil {
		rec.handle.Close()
		rec.handle = nil
	}
}

// AddTracker records bbox at the current frame and initializes a tracker of type
// trackerType on the current frame. An existing tracker with the same name is re-seated.
// On failure the tracker is dropped entirely, AddTrackerFailed is emitted and an
// *AddTrackerError is returned.
func (c *Coordinator[F]) AddTracker(name string, bbox Rectangle, offset Point, trackerType string) error {
	c.algoMu.Lock()
	defer c.algoMu.Unlock()

	c.mu.Lock()
	if c.frameCount <= 0 {
		c.mu.Unlock()
		return ErrNotConfigured
	}
	rec, exists := c.trackers[name]
	if !exists {
		rec = &trackerRecord[F]{
			id:     uuid.New(),
			name:   name,
			series: NewTrackerSeries(c.frameCount),
		}
		c.trackers[name] = rec
		c.order = append(c.order, name)
	}
	rec.trackerType = trackerType
	rec.offset = offset
	closeHandle(rec)
	rec.state = TrackerUninitialized
	var reference F
	hasReference := c.hasCurrent
	if hasReference {
		idx := c.current.FrameNo - 1
		if idx >= 0 && idx < rec.series.Len() {
			rec.series.Set(idx, c.current.Timestamp, bbox, offset)
		}
		reference = c.current.Frame.Clone()
	}
	c.mu.Unlock()

	if !hasReference {
		return c.dropFailed(rec, ErrNoReferenceFrame)
	}
	defer reference.Close()

	handle, err := c.initHandle(trackerType, reference, bbox)
	if err != nil {
		return c.dropFailed(rec, err)
	}

	c.mu.Lock()
	rec.handle = handle
	rec.state = TrackerActive
	c.mu.Unlock()
	c.log.Infof("[Coordinator] Tracker '%s' (%s) added", name, trackerType)
	return nil
}

func (c *Coordinator[F]) initHandle(trackerType string, frame F, bbox Rectangle) (Tracker[F], error) {
	handle, err := c.registry.New(trackerType)
	if err != nil {
		return nil, err
	}
	if err := handle.Init(frame, bbox); err != nil {
		handle.Close()
		return nil, err
	}
	return handle, nil
}

// dropFailed removes rec and reports the failure. Requires algoMu.
func (c *Coordinator[F]) dropFailed(rec *trackerRecord[F], cause error) error {
	c.mu.Lock()
	if c.trackers[rec.name] == rec {
		delete(c.trackers, rec.name)
		c.order = removeName(c.order, rec.name)
	}
	c.mu.Unlock()
	closeHandle(rec)
	c.log.Warnf("[Coordinator] Can't add tracker '%s': %v", rec.name, cause)
	c.events.emit(AddTrackerFailed{Name: rec.name, ID: rec.id, Cause: cause})
	return &AddTrackerError{Name: rec.name, Cause: cause}
}

// EditTracker renames a tracker and reconstructs its handle of newType from the bbox
// recorded at the current frame. The rename is propagated into derived items.
// When the current frame has no bbox for the tracker its handle stays uninitialized.
// A failing Init drops the tracker as AddTracker does.
func (c *Coordinator[F]) EditTracker(name, newName, newType string) error {
	c.algoMu.Lock()
	defer c.algoMu.Unlock()

	c.mu.Lock()
	rec, ok := c.trackers[name]
	if !ok {
		c.mu.Unlock()
		return errors.Wrapf(ErrUnknownItem, "tracker '%s'", name)
	}
	if newName != name {
		if _, taken := c.trackers[newName]; taken {
			c.mu.Unlock()
			return errors.Wrapf(ErrNameTaken, "tracker '%s'", newName)
		}
		delete(c.trackers, name)
		c.trackers[newName] = rec
		rec.name = newName
		renameIn(c.order, name, newName)
		for _, angle := range c.angles {
			angle.def.rename(name, newName)
		}
		for _, distance := range c.distances {
			distance.def.rename(name, newName)
		}
	}
	rec.trackerType = newType
	closeHandle(rec)
	rec.state = TrackerUninitialized
	bbox, reference, err := c.currentBBox(rec)
	c.mu.Unlock()
	if err != nil {
		// Nothing to seed from: the tracker waits for AddTracker or ResetTrackers.
		c.log.Debugf("[Coordinator] Tracker '%s' left uninitialized: %v", newName, err)
		return nil
	}
	defer reference.Close()

	handle, err := c.initHandle(newType, reference, bbox)
	if err != nil {
		return c.dropFailed(rec, err)
	}
	c.mu.Lock()
	rec.handle = handle
	rec.state = TrackerActive
	c.mu.Unlock()
	if newName != name {
		c.log.Infof("[Coordinator] Tracker '%s' renamed to '%s'", name, newName)
	}
	return nil
}

// currentBBox returns rec's bbox at the current frame and a clone of that frame. Requires mu.
func (c *Coordinator[F]) currentBBox(rec *trackerRecord[F]) (Rectangle, F, error) {
	var zero F
	if !c.hasCurrent {
		return Rectangle{}, zero, ErrNoReferenceFrame
	}
	idx := c.current.FrameNo - 1
	if idx < 0 || idx >= rec.series.Len() || rec.series.BBox[idx].IsNaN() {
		return Rectangle{}, zero, errors.Wrapf(ErrNoBBox, "frame %d", c.current.FrameNo)
	}
	return rec.series.BBox[idx], c.current.Frame.Clone(), nil
}

// RemoveTracker drops the tracker's series and handle. Derived items referencing
// it are left in place: use DependentsOf to find them.
func (c *Coordinator[F]) RemoveTracker(name string) error {
	c.algoMu.Lock()
	defer c.algoMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.trackers[name]
	if !ok {
		return errors.Wrapf(ErrUnknownItem, "tracker '%s'", name)
	}
	closeHandle(rec)
	delete(c.trackers, name)
	c.order = removeName(c.order, name)
	return nil
}

// ResetTrackers rebuilds the handle of every tracker that has a bbox at the current
// frame, using the current frame. Trackers that fail to rebuild become Failed and
// AddTrackerFailed is emitted for them. Their data is kept.
func (c *Coordinator[F]) ResetTrackers() {
	c.algoMu.Lock()
	defer c.algoMu.Unlock()

	type job struct {
		rec  *trackerRecord[F]
		bbox Rectangle
	}
	c.mu.Lock()
	if !c.hasCurrent {
		c.mu.Unlock()
		return
	}
	idx := c.current.FrameNo - 1
	jobs := make([]job, 0, len(c.order))
	for _, name := range c.order {
		rec := c.trackers[name]
		if idx < 0 || idx >= rec.series.Len() || rec.series.BBox[idx].IsNaN() {
			continue
		}
		jobs = append(jobs, job{rec: rec, bbox: rec.series.BBox[idx]})
	}
	reference := c.current.Frame.Clone()
	c.mu.Unlock()
	defer reference.Close()

	for _, j := range jobs {
		closeHandle(j.rec)
		handle, err := c.initHandle(j.rec.trackerType, reference, j.bbox)
		c.mu.Lock()
		if err != nil {
			j.rec.state = TrackerFailed
		} else {
			j.rec.handle = handle
			j.rec.state = TrackerActive
		}
		c.mu.Unlock()
		if err != nil {
			c.log.Warnf("[Coordinator] Can't reset tracker '%s': %v", j.rec.name, err)
			c.events.emit(AddTrackerFailed{Name: j.rec.name, ID: j.rec.id, Cause: err})
		}
	}
}

// AddAngle creates (or redefines) an angle and computes its full history.
func (c *Coordinator[F]) AddAngle(def AngleDef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	refs, err := c.lookupSeries(def.References())
	if err != nil {
		return err
	}
	rec, ok := c.angles[def.Name]
	if !ok {
		rec = &angleRecord{}
		c.angles[def.Name] = rec
		c.angleOrder = append(c.angleOrder, def.Name)
	}
	rec.def = def
	rec.series = ComputeAngle(refs[0], refs[1], refs[2], refs[3])
	return nil
}

// AddDistance creates (or redefines) a distance and computes its full history.
func (c *Coordinator[F]) AddDistance(def DistanceDef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	refs, err := c.lookupSeries(def.References())
	if err != nil {
		return err
	}
	rec, ok := c.distances[def.Name]
	if !ok {
		rec = &distanceRecord{}
		c.distances[def.Name] = rec
		c.distanceOrder = append(c.distanceOrder, def.Name)
	}
	rec.def = def
	rec.series = ComputeDistance(refs[0], refs[1])
	return nil
}

func (c *Coordinator[F]) lookupSeries(names []string) ([]TrackerSeries, error) {
	out := make([]TrackerSeries, len(names))
	for i, name := range names {
		rec, ok := c.trackers[name]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownItem, "tracker '%s'", name)
		}
		out[i] = rec.series
	}
	return out, nil
}

// EditAngle renames an angle.
func (c *Coordinator[F]) EditAngle(name, newName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.angles[name]
	if !ok {
		return errors.Wrapf(ErrUnknownItem, "angle '%s'", name)
	}
	if name == newName {
		return nil
	}
	if _, taken := c.angles[newName]; taken {
		return errors.Wrapf(ErrNameTaken, "angle '%s'", newName)
	}
	delete(c.angles, name)
	rec.def.Name = newName
	c.angles[newName] = rec
	renameIn(c.angleOrder, name, newName)
	return nil
}

// EditDistance renames a distance.
func (c *Coordinator[F]) EditDistance(name, newName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.distances[name]
	if !ok {
		return errors.Wrapf(ErrUnknownItem, "distance '%s'", name)
	}
	if name == newName {
		return nil
	}
	if _, taken := c.distances[newName]; taken {
		return errors.Wrapf(ErrNameTaken, "distance '%s'", newName)
	}
	delete(c.distances, name)
	rec.def.Name = newName
	c.distances[newName] = rec
	renameIn(c.distanceOrder, name, newName)
	return nil
}

func (c *Coordinator[F]) RemoveAngle(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.angles[name]; !ok {
		return errors.Wrapf(ErrUnknownItem, "angle '%s'", name)
	}
	delete(c.angles, name)
	c.angleOrder = removeName(c.angleOrder, name)
	return nil
}

func (c *Coordinator[F]) RemoveDistance(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.distances[name]; !ok {
		return errors.Wrapf(ErrUnknownItem, "distance '%s'", name)
	}
	delete(c.distances, name)
	c.distanceOrder = removeName(c.distanceOrder, name)
	return nil
}

// SetTrackingData bulk-loads series for already defined trackers. Live handles are
// not touched. Every series must have the configured length. Derived items are recomputed.
func (c *Coordinator[F]) SetTrackingData(data map[string]TrackerSeries) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, series := range data {
		if _, ok := c.trackers[name]; !ok {
			return errors.Wrapf(ErrUnknownItem, "tracker '%s'", name)
		}
		if !series.Valid() || series.Len() != c.frameCount {
			return errors.Wrapf(ErrSeriesLength, "tracker '%s': %d != %d", name, series.Len(), c.frameCount)
		}
	}
	for name, series := range data {
		c.trackers[name].series = series.Clone()
	}
	c.recomputeAllDerived()
	return nil
}

// DefineTracker registers a tracker without data or handle, as loaded from a session.
// Its series is allocated empty. Use ResetTrackers to bring it to life.
func (c *Coordinator[F]) DefineTracker(name string, offset Point, trackerType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frameCount <= 0 {
		return ErrNotConfigured
	}
	if _, ok := c.trackers[name]; ok {
		return errors.Wrapf(ErrNameTaken, "tracker '%s'", name)
	}
	c.trackers[name] = &trackerRecord[F]{
		id:          uuid.New(),
		name:        name,
		trackerType: trackerType,
		offset:      offset,
		series:      NewTrackerSeries(c.frameCount),
	}
	c.order = append(c.order, name)
	return nil
}

// recomputeAllDerived requires mu.
func (c *Coordinator[F]) recomputeAllDerived() {
	for _, rec := range c.angles {
		refs, err := c.lookupSeries(rec.def.References())
		if err != nil {
			continue
		}
		rec.series = ComputeAngle(refs[0], refs[1], refs[2], refs[3])
	}
	for _, rec := range c.distances {
		refs, err := c.lookupSeries(rec.def.References())
		if err != nil {
			continue
		}
		rec.series = ComputeDistance(refs[0], refs[1])
	}
}

// recomputeDerivedAt updates every derived item at index i only. Requires mu.
func (c *Coordinator[F]) recomputeDerivedAt(i int) {
	for _, rec := range c.angles {
		refs, err := c.lookupSeries(rec.def.References())
		if err != nil || i >= len(rec.series.Angle) {
			continue
		}
		rec.series.Angle[i] = angleAt(refs[0], refs[1], refs[2], refs[3], i)
	}
	for _, rec := range c.distances {
		refs, err := c.lookupSeries(rec.def.References())
		if err != nil || i >= len(rec.series.Delta) {
			continue
		}
		rec.series.Delta[i] = distanceAt(refs[0], refs[1], i)
	}
}

// Run consumes the Transport until ctx is done or Stop is called.
func (c *Coordinator[F]) Run(ctx context.Context) {
	c.log.Infof("[Coordinator] Started")
	defer c.log.Infof("[Coordinator] Stopped")
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		default:
		}
		item, ok := c.transport.Receive(ctx, c.receiveTimeout)
		if !ok {
			continue
		}
		c.process(item)
	}
}

// Stop makes Run return after its current receive.
func (c *Coordinator[F]) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// process takes ownership of item.Frame.
func (c *Coordinator[F]) process(item Item[F]) {
	if item.Track {
		if !c.runTrackers(item) {
			item.Frame.Close()
			if n := c.transport.Clear(); n > 0 {
				c.log.Debugf("[Coordinator] Discarded %d queued frame(s) after failure", n)
			}
			return
		}
	}
	c.mu.Lock()
	c.setCurrent(item)
	end := false
	if item.FrameNo < c.frameCount {
		c.reachedEnd = false
	} else if c.frameCount > 0 && !c.reachedEnd {
		c.reachedEnd = true
		end = true
	}
	c.mu.Unlock()
	if end {
		c.events.emit(ReachedEnd{FrameNo: item.FrameNo})
	}
}

// setCurrent requires mu.
func (c *Coordinator[F]) setCurrent(item Item[F]) {
	if c.hasCurrent {
		c.current.Frame.Close()
	}
	c.current = item
	c.hasCurrent = true
}

// runTrackers updates every live handle on item. It stops at the first failure,
// keeping what earlier trackers wrote, and reports whether all succeeded.
func (c *Coordinator[F]) runTrackers(item Item[F]) bool {
	c.algoMu.Lock()
	defer c.algoMu.Unlock()

	c.mu.Lock()
	live := make([]*trackerRecord[F], 0, len(c.order))
	for _, name := range c.order {
		rec := c.trackers[name]
		if rec.handle != nil && rec.state == TrackerActive {
			live = append(live, rec)
		}
	}
	c.mu.Unlock()

	idx := item.FrameNo - 1
	for _, rec := range live {
		bbox, err := rec.handle.Update(item.Frame)
		if err != nil {
			c.mu.Lock()
			rec.state = TrackerFailed
			c.mu.Unlock()
			closeHandle(rec)
			c.log.Warnf("[Coordinator] Tracker '%s' failed at frame %d: %v", rec.name, item.FrameNo, err)
			c.events.emit(TrackingFailed{Name: rec.name, ID: rec.id, FrameNo: item.FrameNo, Cause: &TrackingError{Name: rec.name, FrameNo: item.FrameNo, Cause: err}})
			return false
		}
		c.mu.Lock()
		if idx >= 0 && idx < rec.series.Len() {
			rec.series.Set(idx, item.Timestamp, bbox, rec.offset)
		}
		c.mu.Unlock()
	}

	c.mu.Lock()
	if idx >= 0 && idx < c.frameCount {
		c.recomputeDerivedAt(idx)
	}
	c.mu.Unlock()
	return true
}

// Current returns the frame number and timestamp of the current frame (0 when none).
func (c *Coordinator[F]) Current() (frameNo int, timestamp float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.FrameNo, c.current.Timestamp
}

// CurrentFrame returns a clone of the current frame. The caller must Close it.
func (c *Coordinator[F]) CurrentFrame() (F, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasCurrent {
		var zero F
		return zero, false
	}
	return c.current.Frame.Clone(), true
}

// TrackerSeries returns a copy of a tracker's series.
func (c *Coordinator[F]) TrackerSeries(name string) (TrackerSeries, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.trackers[name]
	if !ok {
		return TrackerSeries{}, false
	}
	return rec.series.Clone(), true
}

// AngleSeries returns a copy of an angle's series.
func (c *Coordinator[F]) AngleSeries(name string) (AngleSeries, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.angles[name]
	if !ok {
		return AngleSeries{}, false
	}
	return rec.series.Clone(), true
}

// DistanceSeries returns a copy of a distance's series.
func (c *Coordinator[F]) DistanceSeries(name string) (DistanceSeries, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.distances[name]
	if !ok {
		return DistanceSeries{}, false
	}
	return rec.series.Clone(), true
}

// TrackingData returns a copy of every tracker series keyed by name.
func (c *Coordinator[F]) TrackingData() map[string]TrackerSeries {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]TrackerSeries, len(c.trackers))
	for name, rec := range c.trackers {
		out[name] = rec.series.Clone()
	}
	return out
}

// Trackers returns tracker definitions in insertion order.
func (c *Coordinator[F]) Trackers() []TrackerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TrackerInfo, 0, len(c.order))
	for _, name := range c.order {
		rec := c.trackers[name]
		out = append(out, TrackerInfo{
			ID:          rec.id,
			Name:        rec.name,
			TrackerType: rec.trackerType,
			Offset:      rec.offset,
			State:       rec.state,
		})
	}
	return out
}

// Angles returns angle definitions in insertion order.
func (c *Coordinator[F]) Angles() []AngleDef {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]AngleDef, 0, len(c.angleOrder))
	for _, name := range c.angleOrder {
		out = append(out, c.angles[name].def)
	}
	return out
}

// Distances returns distance definitions in insertion order.
func (c *Coordinator[F]) Distances() []DistanceDef {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]DistanceDef, 0, len(c.distanceOrder))
	for _, name := range c.distanceOrder {
		out = append(out, c.distances[name].def)
	}
	return out
}

// TrackerState returns the state of a tracker.
func (c *Coordinator[F]) TrackerState(name string) (TrackerState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.trackers[name]
	if !ok {
		return TrackerUninitialized, false
	}
	return rec.state, true
}

// DependentsOf returns the names of angles and distances referencing tracker name.
func (c *Coordinator[F]) DependentsOf(name string) (angles []string, distances []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, angleName := range c.angleOrder {
		if containsName(c.angles[angleName].def.References(), name) {
			angles = append(angles, angleName)
		}
	}
	for _, distanceName := range c.distanceOrder {
		if containsName(c.distances[distanceName].def.References(), name) {
			distances = append(distances, distanceName)
		}
	}
	return angles, distances
}

func removeName(names []string, name string) []string {
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

func renameIn(names []string, oldName, newName string) {
	for i := range names {
		if names[i] == oldName {
			names[i] = newName
		}
	}
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
