package session

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/LdDl/motion2d/motion"
	"github.com/pkg/errors"
)

// number is a float written as JSON null when NaN or infinite.
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

func (n *number) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = number(math.NaN())
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*n = number(f)
	return nil
}

type trackerColumns struct {
	Name        []string    `json:"name"`
	Offset      [][2]number `json:"offset"`
	Color       []Color     `json:"color"`
	TrackerType []string    `json:"tracker_type"`
}

type angleColumns struct {
	Name   []string `json:"name"`
	Start1 []string `json:"start1"`
	End1   []string `json:"end1"`
	Start2 []string `json:"start2"`
	End2   []string `json:"end2"`
	Color  []Color  `json:"color"`
}

type distanceColumns struct {
	Name  []string `json:"name"`
	Start []string `json:"start"`
	End   []string `json:"end"`
	Color []Color  `json:"color"`
}

type analysisColumns struct {
	Angle    angleColumns    `json:"angle"`
	Distance distanceColumns `json:"distance"`
}

type seriesColumns struct {
	FrameNo []int       `json:"frame_no"`
	Time    []number    `json:"time"`
	BBox    [][4]number `json:"bbox"`
	Target  [][2]number `json:"target"`
}

type document struct {
	TrackerProperties  trackerColumns           `json:"tracker_properties"`
	AnalysisProperties *analysisColumns         `json:"analysis_properties,omitempty"`
	TrackingData       map[string]seriesColumns `json:"tracking_data"`
	CurrentFrame       int                      `json:"current_frame"`
	Intrinsic          *[2]*string              `json:"intrinsic"`
	Extrinsic          *[2]*string              `json:"extrinsic"`
	Rotation           string                   `json:"rotation"`
	Flip               string                   `json:"flip"`
}

// Encode writes s as indented JSON.
func Encode(w io.Writer, s *Session) error {
	doc := document{
		TrackingData: make(map[string]seriesColumns, len(s.Data)),
		CurrentFrame: s.CurrentFrame,
		Intrinsic:    encodeRef(s.Intrinsic),
		Extrinsic:    encodeRef(s.Extrinsic),
		Rotation:     string(s.Orientation.Rotation),
		Flip:         string(s.Orientation.Flip),
		AnalysisProperties: &analysisColumns{
			Angle: angleColumns{
				Name: []string{}, Start1: []string{}, End1: []string{},
				Start2: []string{}, End2: []string{}, Color: []Color{},
			},
			Distance: distanceColumns{
				Name: []string{}, Start: []string{}, End: []string{}, Color: []Color{},
			},
		},
		TrackerProperties: trackerColumns{
			Name: []string{}, Offset: [][2]number{}, Color: []Color{}, TrackerType: []string{},
		},
	}
	if doc.Rotation == "" {
		doc.Rotation = string(motion.Rotate0)
	}
	if doc.Flip == "" {
		doc.Flip = string(motion.NoFlip)
	}
	for _, def := range s.Trackers {
		tp := &doc.TrackerProperties
		tp.Name = append(tp.Name, def.Name)
		tp.Offset = append(tp.Offset, [2]number{number(def.Offset.X), number(def.Offset.Y)})
		tp.Color = append(tp.Color, def.Color)
		tp.TrackerType = append(tp.TrackerType, def.TrackerType)
	}
	for _, def := range s.Angles {
		ap := &doc.AnalysisProperties.Angle
		ap.Name = append(ap.Name, def.Name)
		ap.Start1 = append(ap.Start1, def.Start1)
		ap.End1 = append(ap.End1, def.End1)
		ap.Start2 = append(ap.Start2, def.Start2)
		ap.End2 = append(ap.End2, def.End2)
		ap.Color = append(ap.Color, def.Color)
	}
	for _, def := range s.Distances {
		dp := &doc.AnalysisProperties.Distance
		dp.Name = append(dp.Name, def.Name)
		dp.Start = append(dp.Start, def.Start)
		dp.End = append(dp.End, def.End)
		dp.Color = append(dp.Color, def.Color)
	}
	for name, series := range s.Data {
		doc.TrackingData[name] = encodeSeries(series)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return errors.Wrap(enc.Encode(doc), "Can't encode session")
}

func encodeRef(ref *FileRef) *[2]*string {
	if ref == nil {
		return nil
	}
	var out [2]*string
	if ref.Relative != "" {
		rel := ref.Relative
		out[0] = &rel
	}
	abs := ref.Absolute
	out[1] = &abs
	return &out
}

func encodeSeries(series motion.TrackerSeries) seriesColumns {
	n := series.Len()
	out := seriesColumns{
		FrameNo: make([]int, n),
		Time:    make([]number, n),
		BBox:    make([][4]number, n),
		Target:  make([][2]number, n),
	}
	for i := 0; i < n; i++ {
		out.FrameNo[i] = i
		out.Time[i] = number(series.Time[i])
		b := series.BBox[i]
		out.BBox[i] = [4]number{number(b.X), number(b.Y), number(b.Width), number(b.Height)}
		p := series.Target[i]
		out.Target[i] = [2]number{number(p.X), number(p.Y)}
	}
	return out
}

// Decode parses and validates a session. Every failure wraps ErrCorruptSession.
func Decode(r io.Reader) (*Session, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "Can't read session")
	}
	var doc document
	if err := json.Unmarshal(nullifyNonFinite(raw), &doc); err != nil {
		return nil, errors.Wrapf(ErrCorruptSession, "%v", err)
	}
	s, err := fromDocument(&doc)
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptSession, "%v", err)
	}
	return s, nil
}

func fromDocument(doc *document) (*Session, error) {
	s := &Session{
		Data:         make(map[string]motion.TrackerSeries, len(doc.TrackingData)),
		CurrentFrame: doc.CurrentFrame,
		Intrinsic:    decodeRef(doc.Intrinsic),
		Extrinsic:    decodeRef(doc.Extrinsic),
	}
	var err error
	if s.Orientation.Rotation, err = motion.ParseRotation(doc.Rotation); err != nil {
		return nil, err
	}
	if s.Orientation.Flip, err = motion.ParseFlip(doc.Flip); err != nil {
		return nil, err
	}

	frameCount := -1
	for name, cols := range doc.TrackingData {
		series, err := decodeSeries(cols)
		if err != nil {
			return nil, errors.Wrapf(err, "tracker '%s'", name)
		}
		if frameCount >= 0 && series.Len() != frameCount {
			return nil, errors.Errorf("tracker '%s' has %d frames, expected %d", name, series.Len(), frameCount)
		}
		frameCount = series.Len()
		s.Data[name] = series
	}

	tp := doc.TrackerProperties
	if !sameLength(len(tp.Name), len(tp.Offset), len(tp.Color), len(tp.TrackerType)) {
		return nil, errors.New("tracker_properties columns differ in length")
	}
	known := make(map[string]bool, len(tp.Name))
	for i, name := range tp.Name {
		if known[name] {
			return nil, errors.Errorf("tracker '%s' defined twice", name)
		}
		if _, ok := s.Data[name]; !ok {
			return nil, errors.Errorf("tracker '%s' has no tracking data", name)
		}
		known[name] = true
		s.Trackers = append(s.Trackers, TrackerDef{
			Name:        name,
			Offset:      motion.NewPoint(float64(tp.Offset[i][0]), float64(tp.Offset[i][1])),
			Color:       tp.Color[i],
			TrackerType: tp.TrackerType[i],
		})
	}
	for name := range s.Data {
		if !known[name] {
			return nil, errors.Errorf("tracking data for undefined tracker '%s'", name)
		}
	}

	if doc.AnalysisProperties == nil {
		return s, nil
	}
	ap := doc.AnalysisProperties.Angle
	if !sameLength(len(ap.Name), len(ap.Start1), len(ap.End1), len(ap.Start2), len(ap.End2), len(ap.Color)) {
		return nil, errors.New("angle columns differ in length")
	}
	for i, name := range ap.Name {
		def := AngleDef{
			AngleDef: motion.AngleDef{Name: name, Start1: ap.Start1[i], End1: ap.End1[i], Start2: ap.Start2[i], End2: ap.End2[i]},
			Color:    ap.Color[i],
		}
		if err := checkRefs(known, "angle", name, def.References()); err != nil {
			return nil, err
		}
		s.Angles = append(s.Angles, def)
	}
	dp := doc.AnalysisProperties.Distance
	if !sameLength(len(dp.Name), len(dp.Start), len(dp.End), len(dp.Color)) {
		return nil, errors.New("distance columns differ in length")
	}
	for i, name := range dp.Name {
		def := DistanceDef{
			DistanceDef: motion.DistanceDef{Name: name, Start: dp.Start[i], End: dp.End[i]},
			Color:       dp.Color[i],
		}
		if err := checkRefs(known, "distance", name, def.References()); err != nil {
			return nil, err
		}
		s.Distances = append(s.Distances, def)
	}
	return s, nil
}

func decodeRef(raw *[2]*string) *FileRef {
	if raw == nil || raw[1] == nil {
		return nil
	}
	ref := &FileRef{Absolute: *raw[1]}
	if raw[0] != nil {
		ref.Relative = *raw[0]
	}
	return ref
}

func decodeSeries(cols seriesColumns) (motion.TrackerSeries, error) {
	n := len(cols.Time)
	if len(cols.BBox) != n || len(cols.Target) != n {
		return motion.TrackerSeries{}, errors.Errorf("columns differ in length: time %d, bbox %d, target %d", n, len(cols.BBox), len(cols.Target))
	}
	series := motion.TrackerSeries{
		Time:   make([]float64, n),
		BBox:   make([]motion.Rectangle, n),
		Target: make([]motion.Point, n),
	}
	for i := 0; i < n; i++ {
		series.Time[i] = float64(cols.Time[i])
		b := cols.BBox[i]
		series.BBox[i] = motion.NewRect(float64(b[0]), float64(b[1]), float64(b[2]), float64(b[3]))
		series.Target[i] = motion.NewPoint(float64(cols.Target[i][0]), float64(cols.Target[i][1]))
	}
	return series, nil
}

func checkRefs(known map[string]bool, kind, name string, refs []string) error {
	for _, ref := range refs {
		if !known[ref] {
			return errors.Errorf("%s '%s' references unknown tracker '%s'", kind, name, ref)
		}
	}
	return nil
}

func sameLength(lengths ...int) bool {
	for _, l := range lengths[1:] {
		if l != lengths[0] {
			return false
		}
	}
	return true
}

// nullifyNonFinite replaces the bare NaN, Infinity and -Infinity tokens some
// writers emit with null. String contents are left alone.
func nullifyNonFinite(data []byte) []byte {
	if !bytes.Contains(data, []byte("NaN")) && !bytes.Contains(data, []byte("Infinity")) {
		return data
	}
	out := make([]byte, 0, len(data))
	inString := false
	for i := 0; i < len(data); i++ {
		ch := data[i]
		if inString {
			out = append(out, ch)
			if ch == '\\' && i+1 < len(data) {
				i++
				out = append(out, data[i])
			} else if ch == '"' {
				inString = false
			}
			continue
		}
		switch {
		case ch == '"':
			inString = true
			out = append(out, ch)
		case bytes.HasPrefix(data[i:], []byte("NaN")):
			out = append(out, "null"...)
			i += len("NaN") - 1
		case bytes.HasPrefix(data[i:], []byte("-Infinity")):
			out = append(out, "null"...)
			i += len("-Infinity") - 1
		case bytes.HasPrefix(data[i:], []byte("Infinity")):
			out = append(out, "null"...)
			i += len("Infinity") - 1
		default:
			out = append(out, ch)
		}
	}
	return out
}

// Save writes s to path atomically.
func Save(path string, s *Session) error {
	var buf bytes.Buffer
	if err := Encode(&buf, s); err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0644); err != nil {
		return errors.Wrapf(err, "Can't write '%s'", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "Can't replace '%s'", path)
	}
	return nil
}

// Load reads the session at path.
func Load(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open '%s'", path)
	}
	defer f.Close()
	s, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "'%s'", filepath.Base(path))
	}
	return s, nil
}
