package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/LdDl/motion2d/motion"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "motion2d.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "tracking:\n  smoothing: true\n  min_iou: 0.2\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "CSRT", cfg.Tracking.DefaultType)
	require.Equal(t, time.Second, cfg.Tracking.ReceiveTimeout)
	require.Equal(t, 300*time.Millisecond, cfg.Stream.IdlePoll)
	require.Equal(t, 30*time.Second, cfg.Session.AutosaveInterval)
	require.Equal(t, ',', cfg.Session.Delimiter())
	require.Equal(t, motion.Orientation{Rotation: motion.Rotate0, Flip: motion.NoFlip}, cfg.Calibration.Orientation())

	opts := cfg.Tracking.SmoothingOptions()
	require.NotNil(t, opts)
	require.Equal(t, 0.2, opts.MinIoU)
	require.Equal(t, path, cfg.GetPath())
}

func TestLoadValues(t *testing.T) {
	body := `
tracking:
  default_type: KCF
  receive_timeout: 250ms
stream:
  idle_poll: 50ms
session:
  autosave: true
  autosave_interval: 1m
  export_delimiter: ";"
  continue: true
calibration:
  intrinsic: cam.json
  rotation: "270"
  flip: hv_flip
`
	cfg, err := Load(writeConfig(t, t.TempDir(), body))
	require.NoError(t, err)
	require.Equal(t, "KCF", cfg.Tracking.DefaultType)
	require.Nil(t, cfg.Tracking.SmoothingOptions())
	require.Equal(t, 250*time.Millisecond, cfg.Tracking.ReceiveTimeout)
	require.Equal(t, 50*time.Millisecond, cfg.Stream.IdlePoll)
	require.True(t, cfg.Session.Autosave)
	require.True(t, cfg.Session.Continue)
	require.Equal(t, time.Minute, cfg.Session.AutosaveInterval)
	require.Equal(t, ';', cfg.Session.Delimiter())
	require.Equal(t, "cam.json", cfg.Calibration.Intrinsic)
	require.Equal(t, motion.Orientation{Rotation: motion.Rotate270, Flip: motion.FlipHV}, cfg.Calibration.Orientation())
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(writeConfig(t, dir, "calibration:\n  rotation: \"45\"\n"))
	require.Error(t, err)
	_, err = Load(writeConfig(t, dir, "tracking:\n  min_iou: 3\n"))
	require.Error(t, err)
	_, err = Load(writeConfig(t, dir, "tracking: [\n"))
	require.ErrorContains(t, err, "Can't parse config file")
	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.ErrorContains(t, err, "Can't read config file")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.SetPath(path)
	cfg.Session.Autosave = true
	cfg.Calibration.Extrinsic = "plane.json"
	require.NoError(t, cfg.Save())

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Snapshot(), loaded.Snapshot())

	require.Error(t, Default().Save(), "config without path can't be saved")
}

func TestWatchReload(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "tracking:\n  default_type: KCF\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	changed := make(chan string, 4)
	cfg.OnChange(func(c *Config) {
		changed <- c.Snapshot().Tracking.DefaultType
	})
	require.NoError(t, cfg.Watch(logs.NewTestingLog(t)))
	defer cfg.Close()

	require.NoError(t, os.WriteFile(path, []byte("tracking:\n  default_type: MIL\n"), 0644))
	select {
	case got := <-changed:
		require.Equal(t, "MIL", got)
	case <-time.After(3 * time.Second):
		t.Fatal("Config change was not observed")
	}
}
