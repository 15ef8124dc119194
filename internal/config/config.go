// Package config loads and persists the tool configuration. The file
// format is a single-section INI so that hand-edited files from earlier
// versions keep working, including ones saved with a leading byte-order
// mark (the INI reader skips it).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// FileName is the default configuration file, looked up in the current
// working directory.
const FileName = "img-compress.ini"

// section is the single INI section holding all keys.
const section = "default"

// Config represents the main configuration structure. It is loaded
// once at startup, validated, and read-only thereafter.
type Config struct {
	InputDir     string
	OutputDir    string // empty means overwrite mode
	Quality      int    // 0-100
	KeepMetadata bool
	Workers      int
	LogFile      string
	LogLevel     string
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Quality:      80,
		KeepMetadata: true,
		Workers:      DefaultWorkers(),
		LogFile:      "img-compress.log",
		LogLevel:     "info",
	}
}

// DefaultWorkers returns the default worker pool size.
func DefaultWorkers() int {
	return runtime.NumCPU()
}

// DefaultPath returns the configuration file path used when none is
// given on the command line.
func DefaultPath() string {
	return FileName
}

// Exists reports whether a configuration file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Load reads the configuration file at path, applies environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	defaults := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")

	v.SetEnvPrefix("IMG_COMPRESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(section+".input_dir", "")
	v.SetDefault(section+".output_dir", "")
	v.SetDefault(section+".quality", defaults.Quality)
	v.SetDefault(section+".keep_metadata", defaults.KeepMetadata)
	v.SetDefault(section+".workers", 0)
	v.SetDefault(section+".log_file", defaults.LogFile)
	v.SetDefault(section+".log_level", defaults.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	cfg := &Config{
		InputDir:     v.GetString(section + ".input_dir"),
		OutputDir:    v.GetString(section + ".output_dir"),
		Quality:      v.GetInt(section + ".quality"),
		KeepMetadata: v.GetBool(section + ".keep_metadata"),
		Workers:      v.GetInt(section + ".workers"),
		LogFile:      v.GetString(section + ".log_file"),
		LogLevel:     v.GetString(section + ".log_level"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate rejects out-of-range values instead of silently clamping
// them or crashing later.
func (c *Config) Validate() error {
	if c.Quality < 0 || c.Quality > 100 {
		return fmt.Errorf("quality must be between 0 and 100, got %d", c.Quality)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers()
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.LogLevel)
	}

	if c.InputDir != "" {
		c.InputDir = filepath.Clean(c.InputDir)
	}
	if c.OutputDir != "" {
		c.OutputDir = filepath.Clean(c.OutputDir)
	}
	return nil
}

// OutputRoot returns the output directory, or the input directory when
// running in overwrite mode.
func (c *Config) OutputRoot() string {
	if c.OutputDir != "" {
		return c.OutputDir
	}
	return c.InputDir
}

// IsOverwriteMode reports whether compressed files replace originals
// in place.
func (c *Config) IsOverwriteMode() bool {
	return c.OutputDir == "" || c.OutputDir == c.InputDir
}

// CreateDefault writes the documented default configuration file to
// path, overwriting any existing file.
func CreateDefault(path string) error {
	content := `[DEFAULT]
# Directory containing the images to compress (recursed into).
input_dir = /path/to/your/images
# Output directory; leave empty to overwrite the originals in place.
output_dir =
# Compression quality, 0-100.
quality = 80
# Preserve EXIF metadata on recompressed JPEGs (needs exiftool).
keep_metadata = true
# Parallel workers; 0 uses the number of CPUs.
workers = 0
# Log file path and level.
log_file = img-compress.log
log_level = info
`
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
