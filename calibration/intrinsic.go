// Package calibration reads lens (intrinsic) and plane (extrinsic) calibration files.
package calibration

import (
	"bufio"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrCalibration is returned for calibration files that can't be used.
var ErrCalibration = errors.New("invalid calibration")

// Intrinsic is a camera matrix plus distortion coefficients.
// D holds k1,k2,p1,p2,k3 for the pinhole model or k1..k4 for the fisheye model.
type Intrinsic struct {
	K       [3][3]float64
	D       []float64
	Fisheye bool
}

// NewIntrinsic builds K from focal lengths, principal point and skew.
func NewIntrinsic(fx, fy, cx, cy, skew float64, d []float64, fisheye bool) *Intrinsic {
	return &Intrinsic{
		K: [3][3]float64{
			{fx, skew, cx},
			{0, fy, cy},
			{0, 0, 1},
		},
		D:       d,
		Fisheye: fisheye,
	}
}

func (in *Intrinsic) validate() error {
	if in.K[0][0] <= 0 || in.K[1][1] <= 0 {
		return errors.Wrap(ErrCalibration, "focal lengths must be positive")
	}
	if in.Fisheye && len(in.D) != 4 {
		return errors.Wrapf(ErrCalibration, "fisheye model needs 4 coefficients, got %d", len(in.D))
	}
	if !in.Fisheye && len(in.D) != 5 {
		return errors.Wrapf(ErrCalibration, "pinhole model needs 5 coefficients, got %d", len(in.D))
	}
	return nil
}

// LoadIntrinsic reads a .json, .txt, .csv or .xml calibration file.
func LoadIntrinsic(path string) (*Intrinsic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't read intrinsic calibration '%s'", path)
	}
	var in *Intrinsic
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		in, err = ParseIntrinsicJSON(data)
	case ".txt", ".csv":
		in, err = ParseIntrinsicText(data)
	case ".xml":
		in, err = ParseIntrinsicXML(data)
	default:
		return nil, errors.Wrapf(ErrCalibration, "unsupported intrinsic file type '%s'", filepath.Ext(path))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "'%s'", path)
	}
	return in, nil
}

// ParseIntrinsicJSON accepts either K and D, or the individual fx, fy, cx, cy, s and coefficient keys.
func ParseIntrinsicJSON(data []byte) (*Intrinsic, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(ErrCalibration, "%v", err)
	}
	values := func(key string) (float64, bool, error) {
		msg, ok := raw[key]
		if !ok {
			return 0, false, nil
		}
		var v float64
		if err := json.Unmarshal(msg, &v); err != nil {
			return 0, true, errors.Wrapf(ErrCalibration, "key '%s': %v", key, err)
		}
		return v, true, nil
	}

	in := &Intrinsic{}
	if msg, ok := raw["fisheye"]; ok {
		if err := json.Unmarshal(msg, &in.Fisheye); err != nil {
			var v float64
			if json.Unmarshal(msg, &v) != nil {
				return nil, errors.Wrapf(ErrCalibration, "key 'fisheye': %v", err)
			}
			in.Fisheye = v != 0
		}
	}

	if msg, ok := raw["K"]; ok {
		if err := json.Unmarshal(msg, &in.K); err != nil {
			return nil, errors.Wrapf(ErrCalibration, "key 'K': %v", err)
		}
	} else {
		lookup := make(map[string]float64)
		for _, key := range []string{"fx", "fy", "cx", "cy", "s"} {
			v, present, err := values(key)
			if err != nil {
				return nil, err
			}
			if !present && key != "s" {
				return nil, errors.Wrapf(ErrCalibration, "missing key '%s'", key)
			}
			lookup[key] = v
		}
		in.K = NewIntrinsic(lookup["fx"], lookup["fy"], lookup["cx"], lookup["cy"], lookup["s"], nil, false).K
	}

	if msg, ok := raw["D"]; ok {
		d, err := flatten(msg)
		if err != nil {
			return nil, errors.Wrapf(ErrCalibration, "key 'D': %v", err)
		}
		in.D = d
	} else {
		for _, key := range coefficientKeys(in.Fisheye) {
			v, present, err := values(key)
			if err != nil {
				return nil, err
			}
			if !present {
				return nil, errors.Wrapf(ErrCalibration, "missing key '%s'", key)
			}
			in.D = append(in.D, v)
		}
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	return in, nil
}

// flatten decodes either [a, b, ...] or [[a, b, ...]].
func flatten(msg json.RawMessage) ([]float64, error) {
	var flat []float64
	if err := json.Unmarshal(msg, &flat); err == nil {
		return flat, nil
	}
	var nested [][]float64
	if err := json.Unmarshal(msg, &nested); err != nil {
		return nil, err
	}
	for _, row := range nested {
		flat = append(flat, row...)
	}
	return flat, nil
}

func coefficientKeys(fisheye bool) []string {
	if fisheye {
		return []string{"k1", "k2", "k3", "k4"}
	}
	return []string{"k1", "k2", "p1", "p2", "k3"}
}

var textSeparator = regexp.MustCompile(`[,=\t]`)

// ParseIntrinsicText reads one "key=value", "key,value" or tab separated pair per line.
func ParseIntrinsicText(data []byte) (*Intrinsic, error) {
	values := make(map[string]float64)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := textSeparator.Split(line, 2)
		if len(parts) != 2 {
			return nil, errors.Wrapf(ErrCalibration, "line %d: expected key and value", lineNo)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, errors.Wrapf(ErrCalibration, "line %d: %v", lineNo, err)
		}
		values[strings.TrimSpace(parts[0])] = v
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "Can't scan intrinsic calibration")
	}
	return fromValues(values, values["fisheye"] != 0)
}

func fromValues(values map[string]float64, fisheye bool) (*Intrinsic, error) {
	for _, key := range append([]string{"fx", "fy", "cx", "cy"}, coefficientKeys(fisheye)...) {
		if _, ok := values[key]; !ok {
			return nil, errors.Wrapf(ErrCalibration, "missing key '%s'", key)
		}
	}
	skew := values["s"]
	if v, ok := values["skew"]; ok {
		skew = v
	}
	var d []float64
	for _, key := range coefficientKeys(fisheye) {
		d = append(d, values[key])
	}
	in := NewIntrinsic(values["fx"], values["fy"], values["cx"], values["cy"], skew, d, fisheye)
	if err := in.validate(); err != nil {
		return nil, err
	}
	return in, nil
}

type xmlCalibration struct {
	XMLName xml.Name `xml:"calibration"`
	Fisheye string   `xml:"fisheye"`
	Fields  []struct {
		XMLName xml.Name
		Value   string `xml:",chardata"`
	} `xml:",any"`
}

// ParseIntrinsicXML reads a <calibration> element with fisheye, fx, fy, cx, cy, skew and coefficient children.
func ParseIntrinsicXML(data []byte) (*Intrinsic, error) {
	var doc xmlCalibration
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(ErrCalibration, "%v", err)
	}
	values := make(map[string]float64, len(doc.Fields))
	for _, field := range doc.Fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field.Value), 64)
		if err != nil {
			return nil, errors.Wrapf(ErrCalibration, "element <%s>: %v", field.XMLName.Local, err)
		}
		values[field.XMLName.Local] = v
	}
	fisheye := false
	if text := strings.TrimSpace(doc.Fisheye); text != "" {
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, errors.Wrapf(ErrCalibration, "element <fisheye>: %v", err)
		}
		fisheye = b
	}
	return fromValues(values, fisheye)
}
