package session

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/LdDl/motion2d/motion"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Table is the data flattened by export: trackers, angles and distances in column order.
type Table struct {
	Trackers     []string
	Data         map[string]motion.TrackerSeries
	Angles       []string
	AngleData    map[string]motion.AngleSeries
	Distances    []string
	DistanceData map[string]motion.DistanceSeries
	// Pixels per world unit. Targets and distances are divided by it. Zero means 1
	Scale float64
}

// Header returns the column names.
func (t *Table) Header() []string {
	header := []string{"frame_no", "time"}
	for _, name := range t.Trackers {
		header = append(header, name+"-x", name+"-y")
	}
	header = append(header, t.Angles...)
	for _, name := range t.Distances {
		header = append(header, name+"-x", name+"-y")
	}
	return header
}

// Rows returns one row of numbers per frame in Header order. Time is taken from the first tracker.
func (t *Table) Rows() ([][]float64, error) {
	if len(t.Trackers) == 0 {
		return nil, errors.New("nothing to export: no trackers")
	}
	first, ok := t.Data[t.Trackers[0]]
	if !ok {
		return nil, errors.Wrapf(motion.ErrUnknownItem, "tracker '%s'", t.Trackers[0])
	}
	n := first.Len()
	scale := t.Scale
	if scale == 0 {
		scale = 1.0
	}

	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, 0, 2+2*len(t.Trackers)+len(t.Angles)+2*len(t.Distances))
		row = append(row, float64(i+1), first.Time[i])

		spatial := make([]float64, 0, 2*len(t.Trackers))
		for _, name := range t.Trackers {
			series, ok := t.Data[name]
			if !ok || series.Len() != n {
				return nil, errors.Wrapf(motion.ErrSeriesLength, "tracker '%s'", name)
			}
			spatial = append(spatial, series.Target[i].X, series.Target[i].Y)
		}
		floats.Scale(1.0/scale, spatial)
		row = append(row, spatial...)

		for _, name := range t.Angles {
			series, ok := t.AngleData[name]
			if !ok || len(series.Angle) != n {
				return nil, errors.Wrapf(motion.ErrSeriesLength, "angle '%s'", name)
			}
			row = append(row, series.Angle[i])
		}

		deltas := make([]float64, 0, 2*len(t.Distances))
		for _, name := range t.Distances {
			series, ok := t.DistanceData[name]
			if !ok || len(series.Delta) != n {
				return nil, errors.Wrapf(motion.ErrSeriesLength, "distance '%s'", name)
			}
			deltas = append(deltas, series.Delta[i].X, series.Delta[i].Y)
		}
		floats.Scale(1.0/scale, deltas)
		row = append(row, deltas...)
		rows[i] = row
	}
	return rows, nil
}

// WriteTable writes the table as delimited text with four decimals. Missing values are written as nan.
func WriteTable(w io.Writer, t *Table, delimiter rune) error {
	rows, err := t.Rows()
	if err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	if delimiter != 0 {
		writer.Comma = delimiter
	}
	if err := writer.Write(t.Header()); err != nil {
		return errors.Wrap(err, "Can't write header")
	}
	record := make([]string, 0)
	for _, row := range rows {
		record = record[:0]
		for _, v := range row {
			record = append(record, formatCell(v))
		}
		if err := writer.Write(record); err != nil {
			return errors.Wrap(err, "Can't write row")
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "Can't flush table")
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// ExportTable writes the table to path.
func ExportTable(path string, t *Table, delimiter rune) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Can't create '%s'", path)
	}
	if err := WriteTable(f, t, delimiter); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "Can't close '%s'", path)
}
