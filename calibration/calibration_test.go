package calibration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/LdDl/motion2d/motion"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadIntrinsicFormats(t *testing.T) {
	want := NewIntrinsic(800, 810, 320, 240, 0, []float64{0.1, -0.2, 0.001, 0.002, 0.05}, false)
	cases := []struct {
		name string
		body string
	}{
		{"matrix.json", `{"K": [[800, 0, 320], [0, 810, 240], [0, 0, 1]], "D": [[0.1, -0.2, 0.001, 0.002, 0.05]]}`},
		{"keys.json", `{"fx": 800, "fy": 810, "cx": 320, "cy": 240, "k1": 0.1, "k2": -0.2, "p1": 0.001, "p2": 0.002, "k3": 0.05}`},
		{"pairs.txt", "# lens\nfx=800\nfy=810\ncx=320\ncy=240\n\nk1=0.1\nk2=-0.2\np1=0.001\np2=0.002\nk3=0.05\n"},
		{"pairs.csv", "fx,800\nfy,810\ncx,320\ncy,240\nk1,0.1\nk2,-0.2\np1,0.001\np2,0.002\nk3,0.05\n"},
		{"lens.xml", `<calibration><fisheye>false</fisheye><fx>800</fx><fy>810</fy><cx>320</cx><cy>240</cy><skew>0</skew>
<k1>0.1</k1><k2>-0.2</k2><p1>0.001</p1><p2>0.002</p2><k3>0.05</k3></calibration>`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LoadIntrinsic(writeFile(t, tc.name, tc.body))
			require.NoError(t, err)
			require.Equal(t, want, got)
		})
	}
}

func TestLoadIntrinsicFisheye(t *testing.T) {
	got, err := LoadIntrinsic(writeFile(t, "fish.txt", "fisheye=1\nfx=500\nfy=500\ncx=320\ncy=240\nk1=0.1\nk2=0.01\nk3=0\nk4=0\n"))
	require.NoError(t, err)
	require.True(t, got.Fisheye)
	require.Equal(t, []float64{0.1, 0.01, 0, 0}, got.D)

	got, err = ParseIntrinsicJSON([]byte(`{"fisheye": true, "fx": 500, "fy": 500, "cx": 1, "cy": 1, "s": 0.5, "D": [1, 2, 3, 4]}`))
	require.NoError(t, err)
	require.True(t, got.Fisheye)
	require.Equal(t, 0.5, got.K[0][1])
}

func TestLoadIntrinsicInvalid(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing.json", `{"fx": 800, "fy": 810, "cx": 320}`},
		{"focal.json", `{"K": [[0, 0, 320], [0, 810, 240], [0, 0, 1]], "D": [0, 0, 0, 0, 0]}`},
		{"coefficients.json", `{"fisheye": true, "K": [[1, 0, 0], [0, 1, 0], [0, 0, 1]], "D": [0, 0, 0, 0, 0]}`},
		{"broken.txt", "fx 800\n"},
		{"value.txt", "fx=abc\n"},
		{"broken.xml", "<calibration><fx>x</fx></calibration>"},
		{"lens.npz", "PK"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadIntrinsic(writeFile(t, tc.name, tc.body))
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrCalibration), "%v", err)
		})
	}
	_, err := LoadIntrinsic(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestHomographyCorners(t *testing.T) {
	in := [][2]float64{{100, 50}, {500, 60}, {520, 400}, {80, 380}}
	out := [][2]float64{{0, 0}, {400, 0}, {400, 300}, {0, 300}}
	ext, err := NewExtrinsic(in, out, [2]int{400, 300}, 0)
	require.NoError(t, err)
	require.Equal(t, 1.0, ext.Scale)
	for i := range in {
		p := ext.MapPoint(motion.NewPoint(in[i][0], in[i][1]))
		require.InDelta(t, out[i][0], p.X, 1e-6)
		require.InDelta(t, out[i][1], p.Y, 1e-6)
	}
	require.Equal(t, 1.0, ext.Matrix()[8])
}

func TestHomographyLeastSquares(t *testing.T) {
	// Pure scaling by 2 observed through five exact pairs
	in := [][2]float64{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {5, 5}}
	out := [][2]float64{{0, 0}, {20, 0}, {20, 20}, {0, 20}, {10, 10}}
	h, err := Homography(in, out)
	require.NoError(t, err)
	require.InDelta(t, 2.0, h.At(0, 0), 1e-9)
	require.InDelta(t, 2.0, h.At(1, 1), 1e-9)
	require.InDelta(t, 0.0, h.At(2, 0), 1e-9)
}

func TestHomographyInvalid(t *testing.T) {
	_, err := Homography([][2]float64{{0, 0}, {1, 0}, {1, 1}}, [][2]float64{{0, 0}, {1, 0}, {1, 1}})
	require.True(t, errors.Is(err, ErrCalibration))
	_, err = Homography([][2]float64{{0, 0}}, nil)
	require.True(t, errors.Is(err, ErrCalibration))
	_, err = NewExtrinsic(nil, nil, [2]int{0, 10}, 1)
	require.True(t, errors.Is(err, ErrCalibration))
}

func TestLoadExtrinsic(t *testing.T) {
	path := writeFile(t, "plane.json", `{
    "corners_in": [[100, 50], [500, 60], [520, 400], [80, 380]],
    "corners_out": [[0, 0], [400, 0], [400, 300], [0, 300]],
    "output_size": [400, 300],
    "scaling": 12.5
}`)
	ext, err := LoadExtrinsic(path)
	require.NoError(t, err)
	require.Equal(t, 12.5, ext.Scale)
	require.Equal(t, [2]int{400, 300}, ext.OutputSize)

	saved := filepath.Join(t.TempDir(), "saved.json")
	require.NoError(t, ext.Save(saved))
	again, err := LoadExtrinsic(saved)
	require.NoError(t, err)
	require.Equal(t, ext.CornersIn, again.CornersIn)
	require.Equal(t, 12.5, again.Scale)
	first, second := ext.Matrix(), again.Matrix()
	require.InDeltaSlice(t, first[:], second[:], 1e-9)

	_, err = LoadExtrinsic(writeFile(t, "bad.json", `{"corners_in": "x"}`))
	require.True(t, errors.Is(err, ErrCalibration))
}
