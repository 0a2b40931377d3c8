// Package config loads the optional JSON settings file shared by the kmviz
// binaries. Every field is optional; accessors fall back to defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Defaults used when a field is unset.
const (
	DefaultSpeed         = 500 * time.Millisecond
	DefaultMaxIterations = 1000
	DefaultOutputDir     = "./results"
	DefaultVideoFPS      = 2
	DefaultPlotWidth     = 8.0
	DefaultPlotHeight    = 6.0
	DefaultDataFile      = "data3.txt"
)

// Config mirrors the JSON file. Nil fields mean "use the default".
type Config struct {
	DataFile      *string  `json:"data_file,omitempty"`
	Speed         *string  `json:"speed,omitempty"` // duration string like "250ms"
	MaxIterations *int     `json:"max_iterations,omitempty"`
	AutoStart     *bool    `json:"auto_start,omitempty"`
	Workers       *int     `json:"workers,omitempty"`
	OutputDir     *string  `json:"output_dir,omitempty"`
	VideoFPS      *int     `json:"video_fps,omitempty"`
	PlotWidth     *float64 `json:"plot_width,omitempty"`  // inches
	PlotHeight    *float64 `json:"plot_height,omitempty"` // inches
	FitAxes       *bool    `json:"fit_axes,omitempty"`
	DBPath        *string  `json:"db_path,omitempty"`
}

// Defaults returns an empty config, so every accessor yields its default.
func Defaults() *Config {
	return &Config{}
}

// Load reads a config file. The file must have a .json extension and be
// under 1MB. Fields omitted from the file keep their defaults.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that are set.
func (c *Config) Validate() error {
	if c.Speed != nil && *c.Speed != "" {
		d, err := time.ParseDuration(*c.Speed)
		if err != nil {
			return fmt.Errorf("invalid speed '%s': %w", *c.Speed, err)
		}
		if d < 0 {
			return fmt.Errorf("speed must be non-negative, got %s", d)
		}
	}
	if c.MaxIterations != nil && *c.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must be non-negative, got %d", *c.MaxIterations)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.VideoFPS != nil && *c.VideoFPS <= 0 {
		return fmt.Errorf("video_fps must be positive, got %d", *c.VideoFPS)
	}
	if c.PlotWidth != nil && *c.PlotWidth <= 0 {
		return fmt.Errorf("plot_width must be positive, got %f", *c.PlotWidth)
	}
	if c.PlotHeight != nil && *c.PlotHeight <= 0 {
		return fmt.Errorf("plot_height must be positive, got %f", *c.PlotHeight)
	}
	return nil
}

// GetDataFile returns the input data path or the default.
func (c *Config) GetDataFile() string {
	if c.DataFile == nil || *c.DataFile == "" {
		return DefaultDataFile
	}
	return *c.DataFile
}

// GetSpeed parses and returns the delay between automatic steps.
func (c *Config) GetSpeed() time.Duration {
	if c.Speed == nil || *c.Speed == "" {
		return DefaultSpeed
	}
	d, err := time.ParseDuration(*c.Speed)
	if err != nil || d < 0 {
		return DefaultSpeed
	}
	return d
}

// GetMaxIterations returns the step cap; zero disables it.
func (c *Config) GetMaxIterations() int {
	if c.MaxIterations == nil {
		return DefaultMaxIterations
	}
	return *c.MaxIterations
}

// GetAutoStart reports whether stepping starts without a command.
func (c *Config) GetAutoStart() bool {
	if c.AutoStart == nil {
		return false
	}
	return *c.AutoStart
}

// GetWorkers returns the render worker count; zero means GOMAXPROCS.
func (c *Config) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetOutputDir returns the export directory or the default.
func (c *Config) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return DefaultOutputDir
	}
	return *c.OutputDir
}

// GetVideoFPS returns the video frame rate or the default.
func (c *Config) GetVideoFPS() int {
	if c.VideoFPS == nil {
		return DefaultVideoFPS
	}
	return *c.VideoFPS
}

// GetPlotSize returns the image size in inches.
func (c *Config) GetPlotSize() (width, height float64) {
	width, height = DefaultPlotWidth, DefaultPlotHeight
	if c.PlotWidth != nil {
		width = *c.PlotWidth
	}
	if c.PlotHeight != nil {
		height = *c.PlotHeight
	}
	return width, height
}

// GetFitAxes reports whether plots fit their axes to the data.
func (c *Config) GetFitAxes() bool {
	if c.FitAxes == nil {
		return false
	}
	return *c.FitAxes
}

// GetDBPath returns the SQLite path; empty disables recording.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// Setters used when command-line flags override file values.

func (c *Config) SetDataFile(v string) { c.DataFile = &v }
func (c *Config) SetMaxIterations(v int) { c.MaxIterations = &v }
func (c *Config) SetAutoStart(v bool) { c.AutoStart = &v }
func (c *Config) SetWorkers(v int) { c.Workers = &v }
func (c *Config) SetOutputDir(v string) { c.OutputDir = &v }
func (c *Config) SetVideoFPS(v int) { c.VideoFPS = &v }
func (c *Config) SetFitAxes(v bool) { c.FitAxes = &v }
func (c *Config) SetDBPath(v string) { c.DBPath = &v }

func (c *Config) SetSpeed(v time.Duration) {
	s := v.String()
	c.Speed = &s
}
