// Package config loads the settings for the fat12fs command line tool.
package config

import (
	"fmt"
	"os"

	"github.com/rzos/fat12fs/disks"
	"github.com/rzos/fat12fs/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

// DefaultPath is where the tool looks for its configuration if no path is
// given, relative to the user's home directory.
const DefaultPath = ".config/fat12fs/config.yml"

// DefaultGeometry is the disk formatted when neither a geometry nor a sector
// count is given.
const DefaultGeometry = "ibm-1440"

// Config is the tool configuration. Command line flags override these values.
type Config struct {
	// Image is the path to the disk image to operate on.
	Image string `yaml:"image"`
	// Geometry is the slug of a predefined disk geometry to format images as.
	Geometry string `yaml:"geometry"`
	// Sectors overrides the sector count used when formatting.
	Sectors uint16 `yaml:"sectors"`
	// LogLevel is a logrus level name, e.g. "debug".
	LogLevel string `yaml:"log_level"`
	// Compressed means the image is stored compressed and must be unpacked
	// into memory before use, and packed again afterwards.
	Compressed bool `yaml:"compressed"`
}

// Default returns the configuration used when there's no file.
func Default() Config {
	return Config{
		Geometry: DefaultGeometry,
		LogLevel: "warning",
	}
}

// Parse decodes a YAML document on top of the defaults and validates it.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	err := yaml.UnmarshalStrict(data, &cfg)
	if err != nil {
		return Config{}, errors.ErrInvalidArgument.Wrap(err)
	}

	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the configuration file at `path` from `fs`. A missing file is not
// an error; the defaults are returned instead.
func Load(fs afero.Fs, path string) (Config, error) {
	data, err := afero.ReadFile(fs, path)
	if os.IsNotExist(err) {
		return Default(), nil
	} else if err != nil {
		return Config{}, errors.ErrIOFailed.Wrap(err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the log level and geometry exist.
func (cfg Config) Validate() error {
	_, err := cfg.Level()
	if err != nil {
		return err
	}

	if cfg.Geometry != "" {
		_, err = disks.GetPredefinedDiskGeometry(cfg.Geometry)
		if err != nil {
			return err
		}
	}
	return nil
}

// Level parses LogLevel.
func (cfg Config) Level() (logrus.Level, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return logrus.PanicLevel, errors.ErrInvalidArgument.Wrap(err)
	}
	return level, nil
}

// FormatSectors gives the number of sectors to format an image with: Sectors
// if it's set, otherwise the size of Geometry.
func (cfg Config) FormatSectors() (uint16, error) {
	if cfg.Sectors != 0 {
		return cfg.Sectors, nil
	}

	geometry, err := disks.GetPredefinedDiskGeometry(cfg.Geometry)
	if err != nil {
		return 0, err
	}
	return geometry.FAT12Sectors()
}
