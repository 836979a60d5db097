// Package project ties a frame source, a tracking coordinator and session files
// together for a list of videos.
package project

import (
	"context"
	"sync"
	"time"

	"github.com/LdDl/motion2d/calibration"
	"github.com/LdDl/motion2d/config"
	"github.com/LdDl/motion2d/motion"
	"github.com/LdDl/motion2d/session"
	"github.com/cyclopcam/logs"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrNoVideo    = errors.New("no video open")
	ErrNotStarted = errors.New("project not started")
	ErrLastVideo  = errors.New("no more videos")
)

// Backend binds the project to a frame type: how videos are decoded, which
// tracker types exist and how correction stages are built.
type Backend[F motion.Frame[F]] interface {
	Open(path string) (motion.Decoder[F], error)
	RegisterTrackers(registry *motion.Registry[F])
	TransformSet(intrinsic *calibration.Intrinsic, extrinsic *calibration.Extrinsic, orientation motion.Orientation) *motion.TransformSet[F]
}

// calibrationFiles is what the current transform set was built from.
type calibrationFiles struct {
	intrinsic   string
	extrinsic   string
	orientation motion.Orientation
}

// Project owns the Source, the Transport and the Coordinator of one working session.
// Start must be called before a video is opened.
type Project[F motion.Frame[F]] struct {
	id          uuid.UUID
	log         logs.Log
	cfg         config.Settings
	backend     Backend[F]
	registry    *motion.Registry[F]
	transport   *motion.Transport[F]
	coordinator *motion.Coordinator[F]
	source      *motion.Source[F]

	observersMu sync.Mutex
	observers   []func(motion.Event)

	mu             sync.Mutex
	ctx            context.Context
	running        bool
	stopCh         chan struct{}
	wg             sync.WaitGroup
	videos         []string
	videoIdx       int
	videoPath      string
	sessionPath    string
	streamDone     chan struct{}
	palette        *palette
	trackerColors  map[string]session.Color
	angleColors    map[string]session.Color
	distanceColors map[string]session.Color
	calibration    calibrationFiles
	calWatcher     *fsnotify.Watcher
	watched        []string
}

// New creates a project from a snapshot of cfg.
func New[F motion.Frame[F]](log logs.Log, cfg *config.Config, backend Backend[F]) *Project[F] {
	snapshot := cfg.Snapshot()
	registry := motion.NewRegistry[F]()
	backend.RegisterTrackers(registry)
	if opts := snapshot.Tracking.SmoothingOptions(); opts != nil {
		registry.EnableSmoothing(*opts)
	}
	transport := motion.NewTransport[F]()
	p := &Project[F]{
		id:        uuid.New(),
		log:       log,
		cfg:       snapshot,
		backend:   backend,
		registry:  registry,
		transport: transport,
		coordinator: motion.NewCoordinator[F](log, registry, transport, motion.CoordinatorOptions{
			ReceiveTimeout: snapshot.Tracking.ReceiveTimeout,
			EventsBuffer:   snapshot.Tracking.EventsBuffer,
		}),
		source: motion.NewSource[F](log, backend.Open, transport, motion.SourceOptions{
			IdlePoll:     snapshot.Stream.IdlePoll,
			EventsBuffer: snapshot.Tracking.EventsBuffer,
		}),
		videoIdx:       -1,
		palette:        newPalette(),
		trackerColors:  make(map[string]session.Color),
		angleColors:    make(map[string]session.Color),
		distanceColors: make(map[string]session.Color),
		calibration: calibrationFiles{
			intrinsic:   snapshot.Calibration.Intrinsic,
			extrinsic:   snapshot.Calibration.Extrinsic,
			orientation: snapshot.Calibration.Orientation(),
		},
	}
	return p
}

// ApplySettings takes the tracking settings of a reloaded configuration. The default
// tracker type and smoothing apply to trackers added from now on. Everything else
// keeps the values the project was created with.
func (p *Project[F]) ApplySettings(settings config.Settings) {
	p.mu.Lock()
	p.cfg.Tracking.DefaultType = settings.Tracking.DefaultType
	p.cfg.Tracking.Smoothing = settings.Tracking.Smoothing
	p.cfg.Tracking.MinIoU = settings.Tracking.MinIoU
	p.cfg.Tracking.MaxJump = settings.Tracking.MaxJump
	p.mu.Unlock()
	if opts := settings.Tracking.SmoothingOptions(); opts != nil {
		p.registry.EnableSmoothing(*opts)
	} else {
		p.registry.DisableSmoothing()
	}
	p.log.Infof("[Project] Default tracker '%s', smoothing %t", settings.Tracking.DefaultType, settings.Tracking.Smoothing)
}

// Coordinator exposes the tracking state for reads.
func (p *Project[F]) Coordinator() *motion.Coordinator[F] {
	return p.coordinator
}

// Source exposes the frame source.
func (p *Project[F]) Source() *motion.Source[F] {
	return p.source
}

// Registry exposes the tracker types.
func (p *Project[F]) Registry() *motion.Registry[F] {
	return p.registry
}

// OnEvent registers fn to be called with every source and coordinator event after
// the project has handled it. fn runs on the event goroutine and must not block.
func (p *Project[F]) OnEvent(fn func(motion.Event)) {
	p.observersMu.Lock()
	defer p.observersMu.Unlock()
	p.observers = append(p.observers, fn)
}

// Start launches the coordinator, the event loop and, when enabled, autosave and
// calibration file watching. Everything stops with ctx or Shutdown.
func (p *Project[F]) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.ctx = ctx
	p.stopCh = make(chan struct{})
	if p.cfg.Calibration.Watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			p.running = false
			p.mu.Unlock()
			return errors.Wrap(err, "Can't watch calibration files")
		}
		p.calWatcher = watcher
	}
	stopCh := p.stopCh
	watcher := p.calWatcher
	p.mu.Unlock()

	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		p.coordinator.Run(ctx)
	}()
	go func() {
		defer p.wg.Done()
		p.eventLoop(ctx, stopCh)
	}()
	if p.cfg.Session.Autosave {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.autosaveLoop(ctx, stopCh, p.cfg.Session.AutosaveInterval)
		}()
	}
	if watcher != nil {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.watchLoop(ctx, watcher)
		}()
	}
	p.log.Infof("[Project] Started %s", p.id)
	return nil
}

// Shutdown saves and closes the open video, then stops every goroutine.
// A project can't be started again after Shutdown.
func (p *Project[F]) Shutdown() error {
	err := p.CloseVideo()
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return err
	}
	p.running = false
	close(p.stopCh)
	watcher := p.calWatcher
	p.calWatcher = nil
	p.mu.Unlock()

	p.coordinator.Stop()
	if watcher != nil {
		watcher.Close()
	}
	p.wg.Wait()
	p.log.Infof("[Project] Stopped %s", p.id)
	return err
}

func (p *Project[F]) context() (context.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil, ErrNotStarted
	}
	return p.ctx, nil
}

// autosaveLoop saves the open session every interval.
func (p *Project[F]) autosaveLoop(ctx context.Context, stopCh <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if err := p.Save(); err != nil && !errors.Is(err, ErrNoVideo) {
				p.log.Warnf("[Project] Autosave failed: %v", err)
			}
		}
	}
}

// WaitFrame blocks until the coordinator's current frame is frameNo.
func (p *Project[F]) WaitFrame(ctx context.Context, frameNo int, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if current, _ := p.coordinator.Current(); current == frameNo {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return errors.Errorf("frame %d was not shown within %v", frameNo, timeout)
		case <-ticker.C:
		}
	}
}
