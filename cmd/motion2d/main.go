package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/LdDl/motion2d/config"
	"github.com/LdDl/motion2d/cv"
	"github.com/LdDl/motion2d/motion"
	"github.com/LdDl/motion2d/project"
	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/pkg/errors"
)

func check(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func main() {
	parser := argparse.NewParser("motion2d", "Track markers through videos and export their motion")
	configPath := parser.String("c", "config", &argparse.Options{Help: "Path to YAML configuration file", Required: false, Default: ""})
	videos := parser.StringList("i", "input", &argparse.Options{Help: "Input video file (repeat for a batch)", Required: true})
	markers := parser.String("m", "markers", &argparse.Options{Help: "Session file to import markers from when a video has none", Required: false, Default: ""})
	trackerType := parser.Selector("t", "tracker", []string{"", cv.TrackerCSRT, cv.TrackerKCF, cv.TrackerMIL, cv.TrackerBoosting, cv.TrackerMedianFlow, cv.TrackerMOSSE, motion.TrackerStatic}, &argparse.Options{Help: "Default tracker type", Required: false, Default: ""})
	intrinsic := parser.String("", "intrinsic", &argparse.Options{Help: "Intrinsic calibration file", Required: false, Default: ""})
	extrinsic := parser.String("", "extrinsic", &argparse.Options{Help: "Extrinsic calibration file", Required: false, Default: ""})
	rotation := parser.Selector("", "rotate", []string{"", "0", "90", "180", "270"}, &argparse.Options{Help: "Clockwise rotation in degrees", Required: false, Default: ""})
	flip := parser.Selector("", "flip", []string{"", string(motion.NoFlip), string(motion.FlipH), string(motion.FlipV), string(motion.FlipHV)}, &argparse.Options{Help: "Flip after rotation", Required: false, Default: ""})
	export := parser.Flag("e", "export", &argparse.Options{Help: "Export a CSV table next to every video", Required: false})
	smoothing := parser.Flag("s", "smoothing", &argparse.Options{Help: "Smooth visual trackers with a Kalman filter", Required: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	check(err)

	cfg := config.Default()
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		check(err)
	}
	if *trackerType != "" {
		cfg.Tracking.DefaultType = *trackerType
	}
	if *smoothing {
		cfg.Tracking.Smoothing = true
	}
	if *intrinsic != "" {
		cfg.Calibration.Intrinsic = *intrinsic
	}
	if *extrinsic != "" {
		cfg.Calibration.Extrinsic = *extrinsic
	}
	if *rotation != "" {
		cfg.Calibration.Rotation = *rotation
	}
	if *flip != "" {
		cfg.Calibration.Flip = *flip
	}
	// The batch below opens every video itself
	cfg.Session.Continue = false

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := project.New[cv.Frame](logger, cfg, cv.Backend{})
	events := make(chan motion.Event, 64)
	p.OnEvent(func(e motion.Event) {
		select {
		case events <- e:
		default:
		}
	})
	check(p.Start(ctx))

	if *configPath != "" {
		// Command line flags win over the reloaded file
		cfg.OnChange(func(c *config.Config) {
			settings := c.Snapshot()
			if *trackerType != "" {
				settings.Tracking.DefaultType = *trackerType
			}
			if *smoothing {
				settings.Tracking.Smoothing = true
			}
			p.ApplySettings(settings)
		})
		if err := cfg.Watch(logger); err != nil {
			logger.Warnf("Can't watch '%s': %v", *configPath, err)
		}
	}

	failed := 0
	for _, video := range *videos {
		if ctx.Err() != nil {
			break
		}
		if err := processVideo(ctx, logger, p, events, video, *markers, *export); err != nil {
			logger.Errorf("'%s': %v", video, err)
			failed++
		}
	}
	if err := p.Shutdown(); err != nil {
		logger.Errorf("Shutdown: %v", err)
	}
	cfg.Close()
	if failed > 0 {
		os.Exit(2)
	}
}

// processVideo tracks one video from its resume frame to the end, saves the
// session and optionally exports the table.
func processVideo(ctx context.Context, logger logs.Log, p *project.Project[cv.Frame], events <-chan motion.Event, video, markers string, export bool) error {
	drain(events)
	if err := p.OpenVideo(video); err != nil {
		return err
	}
	// Trackers are seeded on the frame the coordinator holds
	shown := p.Source().FrameNo()
	if shown < 1 {
		shown = 1
	}
	if err := p.WaitFrame(ctx, shown, 10*time.Second); err != nil {
		p.CloseVideo()
		return err
	}
	if len(p.Coordinator().Trackers()) == 0 && markers != "" {
		if err := p.ImportMarkers(markers); err != nil {
			return err
		}
	}
	if len(p.Coordinator().Trackers()) == 0 {
		p.CloseVideo()
		return errors.New("no markers to track")
	}

	logger.Infof("Tracking '%s'", filepath.Base(video))
	p.SetTracking(true)
	p.Play()
	err := waitDone(ctx, p, events)
	p.Pause()
	if err != nil {
		p.CloseVideo()
		return err
	}

	if export {
		path, err := p.Export("")
		if err != nil {
			p.CloseVideo()
			return err
		}
		logger.Infof("Exported '%s'", path)
	}
	return p.CloseVideo()
}

// waitDone blocks until the last frame was tracked or a tracker failed.
func waitDone(ctx context.Context, p *project.Project[cv.Frame], events <-chan motion.Event) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	idle := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-events:
			switch e := e.(type) {
			case motion.ReachedEnd:
				return nil
			case motion.TrackingFailed:
				return errors.Wrapf(e.Cause, "tracker '%s' failed at frame %d", e.Name, e.FrameNo)
			}
		case <-ticker.C:
			// The container may report more frames than it decodes
			if p.Source().Playing() {
				idle = 0
				continue
			}
			idle++
			if idle > 1 {
				return nil
			}
		}
	}
}

func drain(events <-chan motion.Event) {
	for {
		select {
		case <-events:
		default:
			return
		}
	}
}
