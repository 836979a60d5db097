package session

import (
	"bytes"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/LdDl/motion2d/motion"
	"github.com/stretchr/testify/require"
)

func sampleTable() *Table {
	a := motion.NewTrackerSeries(3)
	b := motion.NewTrackerSeries(3)
	for i := 0; i < 2; i++ {
		a.Set(i, float64(i)*40, motion.NewRect(-1, -1, 2, 2), motion.Point{})
		b.Set(i, float64(i)*40, motion.NewRect(9, -1, 2, 2), motion.Point{})
	}
	angle := motion.ComputeAngle(a, b, a, b)
	distance := motion.ComputeDistance(a, b)
	return &Table{
		Trackers:     []string{"A", "B"},
		Data:         map[string]motion.TrackerSeries{"A": a, "B": b},
		Angles:       []string{"rot"},
		AngleData:    map[string]motion.AngleSeries{"rot": angle},
		Distances:    []string{"AB"},
		DistanceData: map[string]motion.DistanceSeries{"AB": distance},
		Scale:        2,
	}
}

func TestTableRows(t *testing.T) {
	table := sampleTable()
	require.Equal(t, []string{"frame_no", "time", "A-x", "A-y", "B-x", "B-y", "rot", "AB-x", "AB-y"}, table.Header())

	rows, err := table.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []float64{1, 0, 0, 0, 5, 0, 0, 5, 0}, rows[0])
	require.Equal(t, 2.0, rows[1][0])
	require.Equal(t, 40.0, rows[1][1])
	for _, v := range rows[2][1:] {
		require.True(t, math.IsNaN(v))
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, sampleTable(), ','))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	require.Equal(t, []string{"1.0000", "0.0000", "0.0000", "0.0000", "5.0000", "0.0000", "0.0000", "5.0000", "0.0000"}, records[1])
	require.Equal(t, "3.0000", records[3][0])
	require.Equal(t, "nan", records[3][2])
}

func TestExportTableDelimiter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, ExportTable(path, sampleTable(), ';'))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = ';'
	records, err := reader.ReadAll()
	require.NoError(t, err)
	require.Equal(t, "frame_no", records[0][0])
	require.Len(t, records[0], 9)
}

func TestTableEmpty(t *testing.T) {
	_, err := (&Table{}).Rows()
	require.Error(t, err)
}
