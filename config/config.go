// Package config provides configuration management for motion2d
package config

import (
	"os"
	"sync"
	"time"

	"github.com/LdDl/motion2d/motion"
	"github.com/cyclopcam/logs"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Settings are the values stored in the configuration file
type Settings struct {
	Tracking    TrackingConfig    `yaml:"tracking"`
	Stream      StreamConfig      `yaml:"stream"`
	Session     SessionConfig     `yaml:"session"`
	Calibration CalibrationConfig `yaml:"calibration"`
}

// Config represents the main configuration
type Config struct {
	Settings `yaml:",inline"`

	// Internal fields
	mu       sync.RWMutex      `yaml:"-"`
	path     string            `yaml:"-"`
	watchers []func(*Config)   `yaml:"-"`
	watcher  *fsnotify.Watcher `yaml:"-"`
	log      logs.Log          `yaml:"-"`
}

// TrackingConfig holds coordinator and tracker settings
type TrackingConfig struct {
	// Tracker type used when none is given
	DefaultType string `yaml:"default_type"`
	// Wrap visual trackers into the Kalman smoothing decorator
	Smoothing bool    `yaml:"smoothing"`
	MinIoU    float64 `yaml:"min_iou"`
	MaxJump   float64 `yaml:"max_jump"`
	// Frame receive timeout of the coordinator loop
	ReceiveTimeout time.Duration `yaml:"receive_timeout"`
	EventsBuffer   int           `yaml:"events_buffer"`
}

// StreamConfig holds frame source settings
type StreamConfig struct {
	IdlePoll time.Duration `yaml:"idle_poll"`
}

// SessionConfig holds persistence settings
type SessionConfig struct {
	Autosave         bool          `yaml:"autosave"`
	AutosaveInterval time.Duration `yaml:"autosave_interval"`
	ExportDelimiter  string        `yaml:"export_delimiter"`
	// Open the next video of the batch when the current one reaches its end
	Continue bool `yaml:"continue"`
}

// CalibrationConfig holds the calibration applied to newly opened videos
type CalibrationConfig struct {
	Intrinsic string `yaml:"intrinsic"`
	Extrinsic string `yaml:"extrinsic"`
	Rotation  string `yaml:"rotation"`
	Flip      string `yaml:"flip"`
	// Reload calibration files when they change on disk
	Watch bool `yaml:"watch"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "Can't read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "Can't parse config file")
	}
	cfg.path = path
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save saves the configuration to its YAML file
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.path == "" {
		return errors.New("config has no path")
	}
	data, err := yaml.Marshal(c.Settings)
	if err != nil {
		return errors.Wrap(err, "Can't marshal config")
	}

	header := "# motion2d configuration\n\n"
	data = append([]byte(header), data...)

	// Atomic write
	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return errors.Wrap(err, "Can't write config")
	}
	return errors.Wrap(os.Rename(tmpPath, c.path), "Can't replace config")
}

// Watch starts watching the configuration file for changes
func (c *Config) Watch(log logs.Log) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.watcher = watcher
	c.log = log
	c.mu.Unlock()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					time.Sleep(100 * time.Millisecond) // Debounce
					c.reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Errorf("[Config] Watch error: %v", err)
			}
		}
	}()

	return watcher.Add(c.path)
}

// Close stops watching
func (c *Config) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watcher == nil {
		return nil
	}
	err := c.watcher.Close()
	c.watcher = nil
	return err
}

// OnChange registers a callback for config changes
func (c *Config) OnChange(fn func(*Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, fn)
}

// reload reloads the configuration from disk
func (c *Config) reload() {
	newCfg, err := Load(c.path)
	if err != nil {
		if c.log != nil {
			c.log.Errorf("[Config] Can't reload: %v", err)
		}
		return
	}

	c.mu.Lock()
	c.Settings = newCfg.Settings
	watchers := c.watchers
	log := c.log
	c.mu.Unlock()

	if log != nil {
		log.Infof("[Config] Configuration reloaded")
	}
	for _, fn := range watchers {
		fn(c)
	}
}

// Snapshot returns a copy of the settings safe to read without locking.
func (c *Config) Snapshot() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Settings
}

// SetPath sets the path for the config file (used for saving)
func (c *Config) SetPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.path = path
}

// GetPath returns the current config file path
func (c *Config) GetPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.path
}

// Orientation returns the parsed orientation.
func (c CalibrationConfig) Orientation() motion.Orientation {
	rotation, _ := motion.ParseRotation(c.Rotation)
	flip, _ := motion.ParseFlip(c.Flip)
	return motion.Orientation{Rotation: rotation, Flip: flip}
}

// SmoothingOptions returns the smoothing options, or nil when smoothing is off.
func (t TrackingConfig) SmoothingOptions() *motion.SmoothingOptions {
	if !t.Smoothing {
		return nil
	}
	return &motion.SmoothingOptions{MinIoU: t.MinIoU, MaxJump: t.MaxJump}
}

// Delimiter returns the export delimiter as a rune.
func (s SessionConfig) Delimiter() rune {
	for _, r := range s.ExportDelimiter {
		return r
	}
	return ','
}

// setDefaults sets default values for unset fields
func (c *Config) setDefaults() {
	if c.Tracking.DefaultType == "" {
		c.Tracking.DefaultType = "CSRT"
	}
	if c.Tracking.ReceiveTimeout <= 0 {
		c.Tracking.ReceiveTimeout = time.Second
	}
	if c.Tracking.EventsBuffer <= 0 {
		c.Tracking.EventsBuffer = 64
	}
	if c.Stream.IdlePoll <= 0 {
		c.Stream.IdlePoll = 300 * time.Millisecond
	}
	if c.Session.AutosaveInterval <= 0 {
		c.Session.AutosaveInterval = 30 * time.Second
	}
	if c.Session.ExportDelimiter == "" {
		c.Session.ExportDelimiter = ","
	}
	if c.Calibration.Rotation == "" {
		c.Calibration.Rotation = string(motion.Rotate0)
	}
	if c.Calibration.Flip == "" {
		c.Calibration.Flip = string(motion.NoFlip)
	}
}

func (c *Config) validate() error {
	if _, err := motion.ParseRotation(c.Calibration.Rotation); err != nil {
		return errors.Wrap(err, "calibration")
	}
	if _, err := motion.ParseFlip(c.Calibration.Flip); err != nil {
		return errors.Wrap(err, "calibration")
	}
	if c.Tracking.MinIoU < 0 || c.Tracking.MinIoU > 1 {
		return errors.Errorf("tracking.min_iou must be within [0, 1], got %v", c.Tracking.MinIoU)
	}
	return nil
}
