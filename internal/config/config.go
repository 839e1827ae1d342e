// Package config loads process configuration from the environment and holds
// the per-invocation detection settings snapshot.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment key read by Load.
const EnvPrefix = "FINDEREYE_"

// Text match modes understood by the text detector.
const (
	TextMatchLine = "line"
	TextMatchSpan = "span"
)

// Config holds process-level configuration.
type Config struct {
	// Logging
	LogLevel  string
	LogFormat string

	// Object detector (ONNX)
	ModelPath      string
	ORTLibraryPath string
	ModelInputSize int
	ModelLabels    []string
	PadColor       string

	// Text detector (Tesseract)
	TessdataPrefix string
	OCRLanguages   string
	TextMatchMode  string

	// Surfaces
	HTTPAddr string

	// Pipeline
	Workers            int
	StaticQuietPeriod  time.Duration
	SliceTTL           time.Duration
	MinTileDimension   int
	IOUThreshold       float64
	ArtifactFilter     bool
	ArtifactEdgeMargin float64
	ArtifactMinSize    float64

	// Initial detection settings
	Defaults Settings
}

// Default returns the configuration used when no environment is set.
func Default() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "console",
		ModelInputSize:     640,
		PadColor:           "#727272",
		OCRLanguages:       "eng",
		TextMatchMode:      TextMatchLine,
		HTTPAddr:           ":8085",
		Workers:            runtime.NumCPU(),
		StaticQuietPeriod:  300 * time.Millisecond,
		SliceTTL:           500 * time.Millisecond,
		MinTileDimension:   1000,
		IOUThreshold:       0.45,
		ArtifactEdgeMargin: 0.02,
		ArtifactMinSize:    0.01,
		Defaults:           DefaultSettings(),
	}
}

// Load reads an optional .env file and then the environment. Variables that
// are already set win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	def := Default()
	cfg := &Config{
		LogLevel:           getEnvOrDefault("LOG_LEVEL", def.LogLevel),
		LogFormat:          getEnvOrDefault("LOG_FORMAT", def.LogFormat),
		ModelPath:          getEnvOrDefault("MODEL_PATH", ""),
		ORTLibraryPath:     getEnvOrDefault("ORT_LIBRARY_PATH", ""),
		ModelInputSize:     getEnvAsIntOrDefault("MODEL_INPUT_SIZE", def.ModelInputSize),
		ModelLabels:        splitList(getEnvOrDefault("MODEL_LABELS", "")),
		PadColor:           getEnvOrDefault("PAD_COLOR", def.PadColor),
		TessdataPrefix:     getEnvOrDefault("TESSDATA_PREFIX", ""),
		OCRLanguages:       getEnvOrDefault("OCR_LANGUAGES", def.OCRLanguages),
		TextMatchMode:      strings.ToLower(getEnvOrDefault("TEXT_MATCH_MODE", def.TextMatchMode)),
		HTTPAddr:           getEnvOrDefault("HTTP_ADDR", def.HTTPAddr),
		Workers:            getEnvAsIntOrDefault("WORKERS", def.Workers),
		StaticQuietPeriod:  getEnvAsDurationOrDefault("STATIC_QUIET_PERIOD", def.StaticQuietPeriod),
		SliceTTL:           getEnvAsDurationOrDefault("SLICE_TTL", def.SliceTTL),
		MinTileDimension:   getEnvAsIntOrDefault("MIN_TILE_DIMENSION", def.MinTileDimension),
		IOUThreshold:       getEnvAsFloatOrDefault("IOU_THRESHOLD", def.IOUThreshold),
		ArtifactFilter:     getEnvAsBoolOrDefault("ARTIFACT_FILTER", def.ArtifactFilter),
		ArtifactEdgeMargin: getEnvAsFloatOrDefault("ARTIFACT_EDGE_MARGIN", def.ArtifactEdgeMargin),
		ArtifactMinSize:    getEnvAsFloatOrDefault("ARTIFACT_MIN_SIZE", def.ArtifactMinSize),
		Defaults: Settings{
			ConfidenceThreshold: getEnvAsFloatOrDefault("CONFIDENCE", def.Defaults.ConfidenceThreshold),
			ScanningFPS:         getEnvAsFloatOrDefault("SCANNING_FPS", def.Defaults.ScanningFPS),
			TrackingFPS:         getEnvAsFloatOrDefault("TRACKING_FPS", def.Defaults.TrackingFPS),
			HighAccuracy:        getEnvAsBoolOrDefault("HIGH_ACCURACY", def.Defaults.HighAccuracy),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges of every numeric field.
func (c *Config) Validate() error {
	if c.ModelInputSize < 32 || c.ModelInputSize > 4096 {
		return fmt.Errorf("MODEL_INPUT_SIZE must be between 32 and 4096, got %d", c.ModelInputSize)
	}
	if c.Workers < 1 || c.Workers > 256 {
		return fmt.Errorf("WORKERS must be between 1 and 256, got %d", c.Workers)
	}
	if c.StaticQuietPeriod < 0 {
		return fmt.Errorf("STATIC_QUIET_PERIOD must not be negative, got %s", c.StaticQuietPeriod)
	}
	if c.SliceTTL <= 0 {
		return fmt.Errorf("SLICE_TTL must be positive, got %s", c.SliceTTL)
	}
	if c.MinTileDimension < 0 {
		return fmt.Errorf("MIN_TILE_DIMENSION must not be negative, got %d", c.MinTileDimension)
	}
	if c.IOUThreshold <= 0 || c.IOUThreshold > 1 {
		return fmt.Errorf("IOU_THRESHOLD must be in (0,1], got %g", c.IOUThreshold)
	}
	if c.ArtifactEdgeMargin < 0 || c.ArtifactEdgeMargin >= 0.5 {
		return fmt.Errorf("ARTIFACT_EDGE_MARGIN must be in [0,0.5), got %g", c.ArtifactEdgeMargin)
	}
	if c.ArtifactMinSize < 0 || c.ArtifactMinSize >= 1 {
		return fmt.Errorf("ARTIFACT_MIN_SIZE must be in [0,1), got %g", c.ArtifactMinSize)
	}
	switch c.TextMatchMode {
	case TextMatchLine, TextMatchSpan:
	default:
		return fmt.Errorf("TEXT_MATCH_MODE must be %q or %q, got %q", TextMatchLine, TextMatchSpan, c.TextMatchMode)
	}
	if err := c.Defaults.Validate(); err != nil {
		return err
	}
	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(EnvPrefix + key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(EnvPrefix + key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(EnvPrefix + key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDurationOrDefault accepts Go durations ("300ms") or bare
// milliseconds ("300").
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(EnvPrefix + key)
	if valueStr == "" {
		return defaultValue
	}
	if ms, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
