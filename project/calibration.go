package project

import (
	"context"
	"path/filepath"
	"time"

	"github.com/LdDl/motion2d/calibration"
	"github.com/LdDl/motion2d/motion"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

func (p *Project[F]) defaultCalibration() calibrationFiles {
	return calibrationFiles{
		intrinsic:   p.cfg.Calibration.Intrinsic,
		extrinsic:   p.cfg.Calibration.Extrinsic,
		orientation: p.cfg.Calibration.Orientation(),
	}
}

// SetCalibration builds the transform set from the given files and orientation and
// shows the current frame again with it. An empty path disables that stage.
func (p *Project[F]) SetCalibration(intrinsicPath, extrinsicPath string, orientation motion.Orientation) error {
	err := p.applyCalibration(calibrationFiles{
		intrinsic:   intrinsicPath,
		extrinsic:   extrinsicPath,
		orientation: orientation,
	})
	p.rerender()
	return err
}

// applyCalibration loads the files and swaps the source's transform set. A file that
// can't be loaded leaves its stage out and is reported, the rest is still applied.
func (p *Project[F]) applyCalibration(files calibrationFiles) error {
	var firstErr error
	var intrinsic *calibration.Intrinsic
	if files.intrinsic != "" {
		loaded, err := calibration.LoadIntrinsic(files.intrinsic)
		if err != nil {
			firstErr = errors.Wrap(err, "Intrinsic calibration not applied")
		} else {
			intrinsic = loaded
			p.log.Infof("[Project] Intrinsic calibration '%s' loaded (fisheye: %t)", files.intrinsic, loaded.Fisheye)
		}
	}
	var extrinsic *calibration.Extrinsic
	if files.extrinsic != "" {
		loaded, err := calibration.LoadExtrinsic(files.extrinsic)
		if err != nil {
			if firstErr == nil {
				firstErr = errors.Wrap(err, "Extrinsic calibration not applied")
			}
		} else {
			extrinsic = loaded
			p.log.Infof("[Project] Extrinsic calibration '%s' loaded: output %dx%d, scale %v", files.extrinsic, loaded.OutputSize[0], loaded.OutputSize[1], loaded.Scale)
		}
	}
	p.source.SetCalibration(p.backend.TransformSet(intrinsic, extrinsic, files.orientation))

	p.mu.Lock()
	p.calibration = files
	p.mu.Unlock()
	p.watchCalibration(files)
	return firstErr
}

// rerender publishes the shown frame again so the new calibration becomes visible.
func (p *Project[F]) rerender() {
	ctx, err := p.context()
	if err != nil || p.source.FrameNo() < 1 {
		return
	}
	if err := p.source.ReadCurrent(ctx); err != nil {
		p.log.Warnf("[Project] Can't show frame again: %v", err)
	}
}

// watchCalibration makes the watcher follow the files in use.
func (p *Project[F]) watchCalibration(files calibrationFiles) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calWatcher == nil {
		return
	}
	for _, path := range p.watched {
		p.calWatcher.Remove(path)
	}
	p.watched = p.watched[:0]
	for _, path := range []string{files.intrinsic, files.extrinsic} {
		if path == "" {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		if err := p.calWatcher.Add(abs); err != nil {
			p.log.Warnf("[Project] Can't watch '%s': %v", abs, err)
			continue
		}
		p.watched = append(p.watched, abs)
	}
}

// watchLoop reloads the calibration when a watched file is written.
func (p *Project[F]) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				time.Sleep(100 * time.Millisecond) // Debounce
				p.log.Infof("[Project] Calibration file '%s' changed", event.Name)
				p.mu.Lock()
				files := p.calibration
				p.mu.Unlock()
				if err := p.applyCalibration(files); err != nil {
					p.log.Warnf("[Project] %v", err)
				}
				p.rerender()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.log.Errorf("[Project] Watch error: %v", err)
		}
	}
}
