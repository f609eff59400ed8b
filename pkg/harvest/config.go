package harvest

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"runtime"
	"slices"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config controls a collection pass.
type Config struct {
	// Coordinate family of the device: frame or fuse.
	Family string `yaml:"family" validate:"required,oneof=frame fuse"`

	// Sample loading
	Workers int `yaml:"workers" validate:"gte=0,lte=256"` // Parallel file parsers (default: NumCPU)

	// Pass checks
	StrictLeftovers bool `yaml:"strict_leftovers"` // Fail when samples of collected tiles are left over (default: false)

	// Merging variants
	Neutral bool `yaml:"neutral"` // Fill value for bits a variant lacks (default: false)

	// Output
	Compression string `yaml:"compression" validate:"omitempty,oneof=none zstd lz4"` // Output compression when the path does not say (default: none)

	// Tile filtering
	OnlyTiles       []string `yaml:"only_tiles"`        // If set, only collect these tile kinds
	OnlyTilePattern string   `yaml:"only_tile_pattern"` // If set, only collect tile kinds matching this regex

	tileRegex *regexp.Regexp
}

// DefaultConfig returns a Config for frame-addressed devices.
func DefaultConfig() *Config {
	return &Config{
		Family:          "frame",
		Workers:         runtime.NumCPU(),
		StrictLeftovers: false,
		Neutral:         false,
		Compression:     "none",
	}
}

var validate = validator.New()

// Validate checks the configuration and compiles the tile pattern.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("harvest: invalid config: %w", err)
	}
	if c.Workers < 1 {
		c.Workers = runtime.NumCPU()
	}
	c.tileRegex = nil
	if c.OnlyTilePattern != "" {
		re, err := regexp.Compile(c.OnlyTilePattern)
		if err != nil {
			return fmt.Errorf("harvest: invalid tile pattern: %w", err)
		}
		c.tileRegex = re
	}
	return nil
}

// ShouldCollectTile reports whether a tile kind passes both filters.
func (c *Config) ShouldCollectTile(tile string) bool {
	if len(c.OnlyTiles) > 0 && !slices.Contains(c.OnlyTiles, tile) {
		return false
	}
	if c.tileRegex != nil && !c.tileRegex.MatchString(tile) {
		return false
	}
	return true
}

// LoadConfig reads a YAML config over the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("harvest: failed to read config: %w", err)
	}
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("harvest: failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
