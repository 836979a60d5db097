package project

import (
	"context"

	"github.com/LdDl/motion2d/motion"
)

// eventLoop reacts to source and coordinator events, then hands them to observers.
func (p *Project[F]) eventLoop(ctx context.Context, stopCh <-chan struct{}) {
	for {
		var event motion.Event
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case event = <-p.coordinator.Events():
		case event = <-p.source.Events():
		}
		p.handle(ctx, event)
		p.observersMu.Lock()
		observers := p.observers
		p.observersMu.Unlock()
		for _, fn := range observers {
			fn(event)
		}
	}
}

func (p *Project[F]) handle(ctx context.Context, event motion.Event) {
	switch e := event.(type) {
	case motion.StreamOpened:
		p.log.Debugf("[Project] Stream '%s' opened", e.Path)
	case motion.StreamFinished:
		p.log.Debugf("[Project] Stream '%s' finished", e.Path)
	case motion.TrackingFailed:
		// Stop where the operator can fix the tracker: the last frame tracked successfully
		p.log.Warnf("[Project] Tracking failed for '%s' at frame %d: %v", e.Name, e.FrameNo, e.Cause)
		p.Pause()
		p.transport.Clear()
		if e.FrameNo > 1 {
			if err := p.source.SeekTo(ctx, e.FrameNo-1, false); err != nil {
				p.log.Warnf("[Project] Can't step back to frame %d: %v", e.FrameNo-1, err)
			}
		}
	case motion.AddTrackerFailed:
		if _, exists := p.coordinator.TrackerState(e.Name); !exists {
			p.removeDependents(e.Name)
		}
	case motion.ReachedEnd:
		p.log.Infof("[Project] Reached the end at frame %d", e.FrameNo)
		if !p.cfg.Session.Continue {
			return
		}
		// The tracking flag is kept so the next video is tracked as well
		p.source.Pause()
		if err := p.NextVideo(); err != nil {
			p.log.Infof("[Project] Not continuing: %v", err)
		}
	}
}
