package project

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/LdDl/motion2d/motion"
	"github.com/LdDl/motion2d/session"
	"github.com/pkg/errors"
)

// SetVideos replaces the list NextVideo walks through.
func (p *Project[F]) SetVideos(paths []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.videos = append([]string(nil), paths...)
	p.videoIdx = -1
}

// NextVideo opens the video after the current one in the list.
func (p *Project[F]) NextVideo() error {
	p.mu.Lock()
	next := p.videoIdx + 1
	if next >= len(p.videos) {
		p.mu.Unlock()
		return ErrLastVideo
	}
	path := p.videos[next]
	p.mu.Unlock()
	if err := p.OpenVideo(path); err != nil {
		return err
	}
	p.mu.Lock()
	p.videoIdx = next
	p.mu.Unlock()
	return nil
}

// VideoPath returns the open video, empty when none is open.
func (p *Project[F]) VideoPath() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.videoPath
}

// SessionPath returns where the open video's session is saved.
func (p *Project[F]) SessionPath() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionPath
}

// OpenVideo closes the open video and opens path. A session file next to the video
// is loaded and playback resumes at its saved frame. Without one the configured
// calibration is used. The video and its session are checked before the open
// video is closed, so a failure leaves the open video and its trackers in place.
func (p *Project[F]) OpenVideo(path string) error {
	ctx, err := p.context()
	if err != nil {
		return err
	}
	frameCount, err := p.frameCountOf(path)
	if err != nil {
		return err
	}
	sessionPath := session.PathFor(path)
	saved, err := loadSession(sessionPath, frameCount)
	if err != nil {
		return err
	}
	if saved != nil {
		p.log.Infof("[Project] Found session '%s'", sessionPath)
	}

	if err := p.CloseVideo(); err != nil {
		p.log.Warnf("[Project] Can't save previous session: %v", err)
	}
	p.coordinator.Clear()
	p.coordinator.Configure(frameCount)
	p.resetColors()
	resume := 0
	if saved != nil {
		if err := p.restore(saved); err != nil {
			p.coordinator.Clear()
			p.resetColors()
			return errors.Wrapf(err, "Can't restore session '%s'", sessionPath)
		}
		resume = saved.ResumeFrame()
	}

	files := p.defaultCalibration()
	if saved != nil {
		files = calibrationFiles{orientation: saved.Orientation}
		baseDir := filepath.Dir(sessionPath)
		if resolved, ok := saved.Intrinsic.Resolve(baseDir); ok {
			files.intrinsic = resolved
		} else if saved.Intrinsic != nil {
			p.log.Warnf("[Project] Intrinsic calibration '%s' not found", saved.Intrinsic.Absolute)
		}
		if resolved, ok := saved.Extrinsic.Resolve(baseDir); ok {
			files.extrinsic = resolved
		} else if saved.Extrinsic != nil {
			p.log.Warnf("[Project] Extrinsic calibration '%s' not found", saved.Extrinsic.Absolute)
		}
	}
	if err := p.applyCalibration(files); err != nil {
		p.log.Warnf("[Project] %v", err)
	}

	props, err := p.source.Open(path)
	if err != nil {
		p.coordinator.Clear()
		p.resetColors()
		return err
	}
	if props.FrameCount != frameCount {
		p.log.Warnf("[Project] '%s' reported %d frames, then %d", path, frameCount, props.FrameCount)
		p.coordinator.Configure(props.FrameCount)
	}

	p.mu.Lock()
	p.videoPath = path
	p.sessionPath = sessionPath
	p.mu.Unlock()

	shown := 1
	if resume > 1 {
		if err := p.source.SeekTo(ctx, resume, false); err != nil {
			p.log.Warnf("[Project] Can't resume at frame %d: %v", resume, err)
		} else {
			shown = resume
		}
	}
	p.startStream(ctx)
	p.log.Infof("[Project] Opened '%s' (%d frames)", path, props.FrameCount)

	if p.source.Tracking() && len(p.coordinator.Trackers()) > 0 {
		if err := p.WaitFrame(ctx, shown, p.waitTimeout()); err != nil {
			p.log.Warnf("[Project] Trackers not reset: %v", err)
		} else {
			p.coordinator.ResetTrackers()
		}
	}
	if p.cfg.Session.Continue {
		p.source.Play()
	}
	return nil
}

// frameCountOf opens path once to read its frame count.
func (p *Project[F]) frameCountOf(path string) (int, error) {
	decoder, err := p.backend.Open(path)
	if err != nil {
		return 0, errors.Wrapf(motion.ErrOpen, "'%s': %v", path, err)
	}
	defer decoder.Close()
	frameCount := decoder.Props().FrameCount
	if frameCount <= 0 {
		return 0, errors.Wrapf(motion.ErrOpen, "'%s': no frames", path)
	}
	return frameCount, nil
}

// loadSession loads the session at path when it exists. A session written for a
// video with another frame count is rejected.
func loadSession(path string, frameCount int) (*session.Session, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	saved, err := session.Load(path)
	if err != nil {
		return nil, err
	}
	if n := saved.FrameCount(); n != 0 && n != frameCount {
		return nil, errors.Wrapf(session.ErrCorruptSession, "'%s' holds %d frames, video has %d", filepath.Base(path), n, frameCount)
	}
	return saved, nil
}

func (p *Project[F]) resetColors() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.palette = newPalette()
	p.trackerColors = make(map[string]session.Color)
	p.angleColors = make(map[string]session.Color)
	p.distanceColors = make(map[string]session.Color)
}

func (p *Project[F]) startStream(ctx context.Context) {
	done := make(chan struct{})
	p.mu.Lock()
	p.streamDone = done
	p.mu.Unlock()
	go func() {
		defer close(done)
		if err := p.source.Stream(ctx); err != nil {
			p.log.Errorf("[Project] Stream failed: %v", err)
		}
	}()
}

// restore defines the saved trackers and derived items and loads their series.
func (p *Project[F]) restore(saved *session.Session) error {
	for _, def := range saved.Trackers {
		if err := p.coordinator.DefineTracker(def.Name, def.Offset, def.TrackerType); err != nil {
			return err
		}
		p.mu.Lock()
		p.trackerColors[def.Name] = def.Color
		p.mu.Unlock()
	}
	if len(saved.Data) > 0 {
		if err := p.coordinator.SetTrackingData(saved.Data); err != nil {
			return err
		}
	}
	for _, def := range saved.Angles {
		if err := p.coordinator.AddAngle(def.AngleDef); err != nil {
			return err
		}
		p.mu.Lock()
		p.angleColors[def.Name] = def.Color
		p.mu.Unlock()
	}
	for _, def := range saved.Distances {
		if err := p.coordinator.AddDistance(def.DistanceDef); err != nil {
			return err
		}
		p.mu.Lock()
		p.distanceColors[def.Name] = def.Color
		p.mu.Unlock()
	}
	p.mu.Lock()
	p.palette.next = len(saved.Trackers) + len(saved.Angles) + len(saved.Distances)
	p.mu.Unlock()
	return nil
}

// CloseVideo saves the session, stops the stream and clears every tracker.
func (p *Project[F]) CloseVideo() error {
	p.mu.Lock()
	done := p.streamDone
	open := p.videoPath != ""
	p.mu.Unlock()
	if !open {
		return nil
	}
	err := p.Save()
	if errors.Is(err, ErrNoVideo) {
		err = nil
	}
	p.source.Stop()
	if done != nil {
		<-done
	}
	p.coordinator.Clear()
	p.transport.Clear()

	p.mu.Lock()
	p.log.Infof("[Project] Closed '%s'", p.videoPath)
	p.videoPath = ""
	p.sessionPath = ""
	p.streamDone = nil
	p.mu.Unlock()
	return err
}

// Snapshot builds the session of the open video from the current tracking state.
func (p *Project[F]) Snapshot() (*session.Session, error) {
	p.mu.Lock()
	sessionPath := p.sessionPath
	files := p.calibration
	p.mu.Unlock()
	if sessionPath == "" {
		return nil, ErrNoVideo
	}
	baseDir := filepath.Dir(sessionPath)
	frameNo, _ := p.coordinator.Current()
	if frameNo < 1 {
		frameNo = 1
	}
	saved := &session.Session{
		Data:         p.coordinator.TrackingData(),
		CurrentFrame: frameNo,
		Orientation:  files.orientation,
	}
	p.mu.Lock()
	for _, info := range p.coordinator.Trackers() {
		saved.Trackers = append(saved.Trackers, session.TrackerDef{
			Name:        info.Name,
			Offset:      info.Offset,
			Color:       p.trackerColors[info.Name],
			TrackerType: info.TrackerType,
		})
	}
	for _, def := range p.coordinator.Angles() {
		saved.Angles = append(saved.Angles, session.AngleDef{AngleDef: def, Color: p.angleColors[def.Name]})
	}
	for _, def := range p.coordinator.Distances() {
		saved.Distances = append(saved.Distances, session.DistanceDef{DistanceDef: def, Color: p.distanceColors[def.Name]})
	}
	p.mu.Unlock()

	var err error
	if files.intrinsic != "" {
		if saved.Intrinsic, err = session.NewFileRef(files.intrinsic, baseDir); err != nil {
			return nil, err
		}
	}
	if files.extrinsic != "" {
		if saved.Extrinsic, err = session.NewFileRef(files.extrinsic, baseDir); err != nil {
			return nil, err
		}
	}
	return saved, nil
}

// Save writes the session of the open video next to it. Nothing is written while
// there are no trackers.
func (p *Project[F]) Save() error {
	saved, err := p.Snapshot()
	if err != nil {
		return err
	}
	if len(saved.Trackers) == 0 {
		p.log.Debugf("[Project] No trackers, nothing to save")
		return nil
	}
	path := p.SessionPath()
	if err := session.Save(path, saved); err != nil {
		return err
	}
	p.log.Infof("[Project] Saved '%s'", path)
	return nil
}

// Table flattens the tracking state for export.
func (p *Project[F]) Table() *session.Table {
	table := &session.Table{
		Data:         p.coordinator.TrackingData(),
		AngleData:    make(map[string]motion.AngleSeries),
		DistanceData: make(map[string]motion.DistanceSeries),
		Scale:        p.source.Calibration().ScaleFactor(),
	}
	for _, info := range p.coordinator.Trackers() {
		table.Trackers = append(table.Trackers, info.Name)
	}
	for _, def := range p.coordinator.Angles() {
		if series, ok := p.coordinator.AngleSeries(def.Name); ok {
			table.Angles = append(table.Angles, def.Name)
			table.AngleData[def.Name] = series
		}
	}
	for _, def := range p.coordinator.Distances() {
		if series, ok := p.coordinator.DistanceSeries(def.Name); ok {
			table.Distances = append(table.Distances, def.Name)
			table.DistanceData[def.Name] = series
		}
	}
	return table
}

// Export writes the tracking table to path. Empty path means the video's stem with .csv.
func (p *Project[F]) Export(path string) (string, error) {
	if path == "" {
		video := p.VideoPath()
		if video == "" {
			return "", ErrNoVideo
		}
		path = video[:len(video)-len(filepath.Ext(video))] + ".csv"
	}
	if err := session.ExportTable(path, p.Table(), p.cfg.Session.Delimiter()); err != nil {
		return "", err
	}
	p.log.Infof("[Project] Exported '%s'", path)
	return path, nil
}

// Play starts playback.
func (p *Project[F]) Play() {
	p.source.Play()
}

// Pause stops playback and tracking.
func (p *Project[F]) Pause() {
	p.source.Pause()
	p.source.SetTracking(false)
}

// SetTracking turns tracking of played frames on or off. Turning it on rebuilds
// every tracker on the current frame first.
func (p *Project[F]) SetTracking(track bool) {
	if track {
		p.coordinator.ResetTrackers()
	}
	p.source.SetTracking(track)
}

// SeekTo shows frame frameNo without tracking.
func (p *Project[F]) SeekTo(frameNo int) error {
	ctx, err := p.context()
	if err != nil {
		return err
	}
	return p.source.SeekTo(ctx, frameNo, false)
}

func (p *Project[F]) StepForward() error {
	ctx, err := p.context()
	if err != nil {
		return err
	}
	return p.source.StepForward(ctx)
}

func (p *Project[F]) StepBackward() error {
	ctx, err := p.context()
	if err != nil {
		return err
	}
	return p.source.StepBackward(ctx)
}

// waitTimeout bounds how long a caller waits for a frame to reach the coordinator.
func (p *Project[F]) waitTimeout() time.Duration {
	return 5 * p.cfg.Tracking.ReceiveTimeout
}
