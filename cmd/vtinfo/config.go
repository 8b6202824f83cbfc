package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	log "github.com/sirupsen/logrus"
)

// Config is the vtinfo configuration file.
type Config struct {
	Tile    TileConfig    `toml:"tile"`
	Scan    ScanConfig    `toml:"scan"`
	Logging LoggingConfig `toml:"logging"`
}

type TileConfig struct {
	Size     int    `toml:"size"`     // pixel size tiles are rendered at
	Extent   uint32 `toml:"extent"`   // integer extent of encoded layers
	Buffer   int    `toml:"buffer"`   // pixels kept around a tile when encoding
	SRS      string `toml:"srs"`      // "EPSG:3857" or "EPSG:4326" for dump output
	Encoding string `toml:"encoding"` // "gzip", "zlib" or "raw" for written tiles
}

type ScanConfig struct {
	Workers         int    `toml:"workers"` // 0 = MAX_THREADS or CPU count
	MinFreeMemoryMB uint64 `toml:"min_free_memory_mb"`
	MinZoom         int    `toml:"min_zoom"`
	MaxZoom         int    `toml:"max_zoom"` // -1 = no limit
}

type LoggingConfig struct {
	Level  string `toml:"level"`  // "debug", "info", "warn", "error"
	Format string `toml:"format"` // "text" or "json"
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Tile: TileConfig{
			Size:     256,
			Extent:   4096,
			Buffer:   5,
			SRS:      "EPSG:4326",
			Encoding: "gzip",
		},
		Scan: ScanConfig{
			MinFreeMemoryMB: 256,
			MaxZoom:         -1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads path over the defaults, then applies VTINFO_* environment
// overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(config)
	return config, config.validate()
}

func applyEnvOverrides(config *Config) {
	if level := os.Getenv("VTINFO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("VTINFO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if size := os.Getenv("VTINFO_TILE_SIZE"); size != "" {
		if v, err := strconv.Atoi(size); err == nil {
			config.Tile.Size = v
		}
	}
	if srs := os.Getenv("VTINFO_SRS"); srs != "" {
		config.Tile.SRS = srs
	}
	if workers := os.Getenv("VTINFO_WORKERS"); workers != "" {
		if v, err := strconv.Atoi(workers); err == nil {
			config.Scan.Workers = v
		}
	}
}

func (c *Config) validate() error {
	if c.Tile.Size <= 0 {
		return fmt.Errorf("tile.size must be positive (got %d)", c.Tile.Size)
	}
	if c.Tile.Extent == 0 {
		return fmt.Errorf("tile.extent must be positive")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json (got %q)", c.Logging.Format)
	}
	return nil
}

// SetupLogging configures the global logrus logger.
func (c *Config) SetupLogging() error {
	level, err := log.ParseLevel(c.Logging.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	if strings.ToLower(c.Logging.Format) == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
