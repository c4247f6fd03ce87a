// Package config provides configuration management for the render agent.
// Configuration is loaded from an optional TOML file, with environment
// variable overrides and sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

const (
	// Default values
	DefaultPort      = 8790
	DefaultLogLevel  = "info"
	DefaultDataDir   = ".renderdeck"
	DefaultFrameRate = 30

	// Environment variable names
	EnvConfigFile = "RENDERD_CONFIG"
	EnvPort       = "RENDERD_PORT"
	EnvLogLevel   = "RENDERD_LOG_LEVEL"
	EnvDataDir    = "RENDERD_DATA_DIR"
	EnvFFmpeg     = "RENDERD_FFMPEG"
	EnvFFprobe    = "RENDERD_FFPROBE"
	EnvFrameRate  = "RENDERD_FRAME_RATE"
	EnvWorkers    = "RENDERD_WORKERS"
	EnvAuthToken  = "RENDERD_TOKEN"

	// Database filename
	DBFilename = "renderdeck.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ScratchDir() string
	FFmpegPath() string
	FFprobePath() string
	FrameRate() int
	Workers() int
	AuthToken() string
}

// fileConfig mirrors the TOML config file layout.
type fileConfig struct {
	Port      int    `toml:"port"`
	LogLevel  string `toml:"log_level"`
	DataDir   string `toml:"data_dir"`
	FFmpeg    string `toml:"ffmpeg"`
	FFprobe   string `toml:"ffprobe"`
	FrameRate int    `toml:"frame_rate"`
	Workers   int    `toml:"workers"`
	AuthToken string `toml:"auth_token"`
}

// EnvConfig reads configuration from an optional TOML file plus
// environment variable overrides.
type EnvConfig struct {
	port      int
	logLevel  string
	dataDir   string
	ffmpeg    string
	ffprobe   string
	frameRate int
	workers   int
	authToken string
}

// New creates a new EnvConfig with defaults, TOML file values (if
// RENDERD_CONFIG points at one), and environment variable overrides,
// in that order of increasing precedence.
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:      DefaultPort,
		logLevel:  DefaultLogLevel,
		dataDir:   defaultDataDir(),
		frameRate: DefaultFrameRate,
		workers:   runtime.NumCPU(),
	}

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if f := os.Getenv(EnvFFmpeg); f != "" {
		cfg.ffmpeg = f
	}
	if f := os.Getenv(EnvFFprobe); f != "" {
		cfg.ffprobe = f
	}

	if fr := os.Getenv(EnvFrameRate); fr != "" {
		rate, err := strconv.Atoi(fr)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvFrameRate, err)
		}
		if rate < 1 || rate > 240 {
			return nil, fmt.Errorf("invalid %s: frame rate must be between 1 and 240", EnvFrameRate)
		}
		cfg.frameRate = rate
	}

	if w := os.Getenv(EnvWorkers); w != "" {
		workers, err := strconv.Atoi(w)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvWorkers, err)
		}
		if workers < 1 {
			return nil, fmt.Errorf("invalid %s: workers must be at least 1", EnvWorkers)
		}
		cfg.workers = workers
	}

	if t := os.Getenv(EnvAuthToken); t != "" {
		cfg.authToken = t
	}

	return cfg, nil
}

func (c *EnvConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	if fc.Port != 0 {
		c.port = fc.Port
	}
	if fc.LogLevel != "" {
		c.logLevel = fc.LogLevel
	}
	if fc.DataDir != "" {
		c.dataDir = fc.DataDir
	}
	if fc.FFmpeg != "" {
		c.ffmpeg = fc.FFmpeg
	}
	if fc.FFprobe != "" {
		c.ffprobe = fc.FFprobe
	}
	if fc.FrameRate != 0 {
		c.frameRate = fc.FrameRate
	}
	if fc.Workers != 0 {
		c.workers = fc.Workers
	}
	if fc.AuthToken != "" {
		c.authToken = fc.AuthToken
	}
	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ScratchDir returns the root directory for per-job scratch directories
func (c *EnvConfig) ScratchDir() string {
	return filepath.Join(c.dataDir, "scratch")
}

// FFmpegPath returns the configured ffmpeg binary path, or "" for PATH lookup
func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpeg
}

// FFprobePath returns the configured ffprobe binary path, or "" for PATH lookup
func (c *EnvConfig) FFprobePath() string {
	return c.ffprobe
}

// FrameRate returns the normalized output frame rate for rendered segments
func (c *EnvConfig) FrameRate() int {
	return c.frameRate
}

// Workers returns the size of the clip normalization worker pool
func (c *EnvConfig) Workers() int {
	return c.workers
}

// AuthToken returns the API bearer token; empty disables auth
func (c *EnvConfig) AuthToken() string {
	return c.authToken
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
