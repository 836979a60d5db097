// Package session persists tracking sessions next to their videos and exports them as tables.
package session

import (
	"math"
	"os"
	"path/filepath"

	"github.com/LdDl/motion2d/motion"
	"github.com/pkg/errors"
)

// ErrCorruptSession is returned for session files that can't be parsed or fail validation.
var ErrCorruptSession = errors.New("corrupt session file")

// Color is an RGB triple.
type Color [3]int

// TrackerDef is the persisted definition of a tracker.
type TrackerDef struct {
	Name        string
	Offset      motion.Point
	Color       Color
	TrackerType string
}

// AngleDef is an angle definition plus its display color.
type AngleDef struct {
	motion.AngleDef
	Color Color
}

// DistanceDef is a distance definition plus its display color.
type DistanceDef struct {
	motion.DistanceDef
	Color Color
}

// FileRef points to a calibration file. Relative is relative to the session file's
// directory and is empty when no relative path exists (different volume).
type FileRef struct {
	Relative string
	Absolute string
}

// NewFileRef references path from a session stored in baseDir.
func NewFileRef(path, baseDir string) (*FileRef, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't resolve '%s'", path)
	}
	ref := &FileRef{Absolute: abs}
	if baseAbs, err := filepath.Abs(baseDir); err == nil {
		if rel, err := filepath.Rel(baseAbs, abs); err == nil {
			ref.Relative = filepath.ToSlash(rel)
		}
	}
	return ref, nil
}

// Resolve returns the referenced path. The relative path wins when it exists, so a
// project directory that was moved as a whole keeps working.
func (ref *FileRef) Resolve(baseDir string) (string, bool) {
	if ref == nil {
		return "", false
	}
	if ref.Relative != "" {
		candidate := filepath.Join(baseDir, filepath.FromSlash(ref.Relative))
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	if ref.Absolute != "" {
		if _, err := os.Stat(ref.Absolute); err == nil {
			return ref.Absolute, true
		}
	}
	return "", false
}

// Session is everything saved for one video.
type Session struct {
	Trackers  []TrackerDef
	Angles    []AngleDef
	Distances []DistanceDef
	// Series by tracker name. All series have the same length
	Data map[string]motion.TrackerSeries
	// 1-based number of the frame shown when saved
	CurrentFrame int
	Intrinsic    *FileRef
	Extrinsic    *FileRef
	Orientation  motion.Orientation
}

// FrameCount returns the common length of the series.
func (s *Session) FrameCount() int {
	for _, series := range s.Data {
		return series.Len()
	}
	return 0
}

// ResumeFrame returns the frame to continue from. When nothing was recorded for the
// first tracker at the saved frame, the last frame it has data for is used instead.
func (s *Session) ResumeFrame() int {
	n := s.FrameCount()
	if n == 0 || len(s.Trackers) == 0 {
		return s.CurrentFrame
	}
	frameNo := s.CurrentFrame
	if frameNo < 1 {
		frameNo = 1
	}
	if frameNo > n {
		frameNo = n
	}
	first := s.Data[s.Trackers[0].Name]
	if !math.IsNaN(first.Time[frameNo-1]) {
		return frameNo
	}
	if last := first.LastRecorded(); last >= 0 {
		return last + 1
	}
	return frameNo
}

// SeedBBox returns the bbox to re-create tracker name from at frameNo: the bbox
// recorded at that frame, or else the first recorded one.
func (s *Session) SeedBBox(name string, frameNo int) (motion.Rectangle, bool) {
	series, ok := s.Data[name]
	if !ok {
		return motion.Rectangle{}, false
	}
	if i := frameNo - 1; i >= 0 && i < series.Len() && !series.BBox[i].IsNaN() {
		return series.BBox[i], true
	}
	if i := series.FirstBBox(); i >= 0 {
		return series.BBox[i], true
	}
	return motion.Rectangle{}, false
}

// Markers are the definitions of a session without its series, used to start
// tracking a new video with the same set of markers.
type Markers struct {
	Trackers  []TrackerDef
	Seeds     map[string]motion.Rectangle
	Angles    []AngleDef
	Distances []DistanceDef
}

// ImportMarkers loads the definitions from the session at path. Each tracker is
// seeded with its first recorded bbox. Trackers that never had one are skipped.
func ImportMarkers(path string) (*Markers, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	markers := &Markers{
		Seeds: make(map[string]motion.Rectangle, len(s.Trackers)),
	}
	kept := make(map[string]bool, len(s.Trackers))
	for _, def := range s.Trackers {
		bbox, ok := s.SeedBBox(def.Name, 0)
		if !ok {
			continue
		}
		markers.Trackers = append(markers.Trackers, def)
		markers.Seeds[def.Name] = bbox
		kept[def.Name] = true
	}
	for _, def := range s.Angles {
		if allKept(kept, def.References()) {
			markers.Angles = append(markers.Angles, def)
		}
	}
	for _, def := range s.Distances {
		if allKept(kept, def.References()) {
			markers.Distances = append(markers.Distances, def)
		}
	}
	return markers, nil
}

func allKept(kept map[string]bool, names []string) bool {
	for _, name := range names {
		if !kept[name] {
			return false
		}
	}
	return true
}

// PathFor returns the session file path used for a video: same directory and stem, .json extension.
func PathFor(videoPath string) string {
	ext := filepath.Ext(videoPath)
	return videoPath[:len(videoPath)-len(ext)] + ".json"
}
