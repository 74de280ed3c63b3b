package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the checked-in defaults file.
const DefaultConfigPath = "config/triage.defaults.json"

// Built-in fallbacks used when a field is absent from the loaded file.
const (
	DefaultDownlinkPercentage   = 25
	DefaultWorkers              = 4
	DefaultMaxComponents        = 20000
	DefaultMaxClusterIterations = 500
	DefaultMaxDownlinkAttempts  = 1000
	DefaultDensityWeight        = 0.5
	DefaultAccelerationWeight   = 0.5
	DefaultFramePattern         = "%03d.pgm"
)

// TriageConfig holds the settings for one analysis run. Fields left out of
// the JSON file stay nil and fall back to the defaults above.
type TriageConfig struct {
	// Frame locations
	SourceDir    *string `json:"source_dir,omitempty"`
	ThresholdDir *string `json:"threshold_dir,omitempty"` // empty disables writing binarized frames
	DownlinkDir  *string `json:"downlink_dir,omitempty"`
	FramePattern *string `json:"frame_pattern,omitempty"`

	// Sequence
	StartIndex *int `json:"start_index,omitempty"`
	EndIndex   *int `json:"end_index,omitempty"`

	// Downlink
	DownlinkPercentage  *int     `json:"downlink_percentage,omitempty"`
	DensityWeight       *float64 `json:"density_weight,omitempty"`
	AccelerationWeight  *float64 `json:"acceleration_weight,omitempty"`
	MaxDownlinkAttempts *int     `json:"max_downlink_attempts,omitempty"`

	// Analysis
	Seed                 *uint64 `json:"seed,omitempty"`
	Workers              *int    `json:"workers,omitempty"`
	MaxComponents        *int    `json:"max_components,omitempty"`
	MaxClusterIterations *int    `json:"max_cluster_iterations,omitempty"`

	// Outputs
	OverlayDir *string `json:"overlay_dir,omitempty"`
	ChartPath  *string `json:"chart_path,omitempty"`
	LedgerPath *string `json:"ledger_path,omitempty"`
}

func ptrInt(v int) *int          { return &v }
func ptrString(v string) *string { return &v }

// EmptyConfig returns a TriageConfig with every field nil.
func EmptyConfig() *TriageConfig {
	return &TriageConfig{}
}

// LoadConfig reads a TriageConfig from a JSON file and validates it.
func LoadConfig(path string) (*TriageConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges of the fields that are set.
func (c *TriageConfig) Validate() error {
	if c.DownlinkPercentage != nil && (*c.DownlinkPercentage < 0 || *c.DownlinkPercentage > 100) {
		return fmt.Errorf("downlink_percentage must be in [0,100], got %d", *c.DownlinkPercentage)
	}
	if c.StartIndex != nil && *c.StartIndex < 0 {
		return fmt.Errorf("start_index must be non-negative, got %d", *c.StartIndex)
	}
	if c.StartIndex != nil && c.EndIndex != nil && *c.EndIndex < *c.StartIndex {
		return fmt.Errorf("end_index %d precedes start_index %d", *c.EndIndex, *c.StartIndex)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.MaxComponents != nil && *c.MaxComponents <= 0 {
		return fmt.Errorf("max_components must be positive, got %d", *c.MaxComponents)
	}
	if c.MaxClusterIterations != nil && *c.MaxClusterIterations <= 0 {
		return fmt.Errorf("max_cluster_iterations must be positive, got %d", *c.MaxClusterIterations)
	}
	if c.MaxDownlinkAttempts != nil && *c.MaxDownlinkAttempts <= 0 {
		return fmt.Errorf("max_downlink_attempts must be positive, got %d", *c.MaxDownlinkAttempts)
	}
	if c.DensityWeight != nil && *c.DensityWeight < 0 {
		return fmt.Errorf("density_weight must be non-negative, got %g", *c.DensityWeight)
	}
	if c.AccelerationWeight != nil && *c.AccelerationWeight < 0 {
		return fmt.Errorf("acceleration_weight must be non-negative, got %g", *c.AccelerationWeight)
	}
	return nil
}

func (c *TriageConfig) GetSourceDir() string {
	if c.SourceDir == nil {
		return "data/camera_data"
	}
	return *c.SourceDir
}

func (c *TriageConfig) GetThresholdDir() string {
	if c.ThresholdDir == nil {
		return ""
	}
	return *c.ThresholdDir
}

func (c *TriageConfig) GetDownlinkDir() string {
	if c.DownlinkDir == nil {
		return "data/downlink"
	}
	return *c.DownlinkDir
}

func (c *TriageConfig) GetFramePattern() string {
	if c.FramePattern == nil || *c.FramePattern == "" {
		return DefaultFramePattern
	}
	return *c.FramePattern
}

func (c *TriageConfig) GetStartIndex() int {
	if c.StartIndex == nil {
		return 1
	}
	return *c.StartIndex
}

func (c *TriageConfig) GetEndIndex() int {
	if c.EndIndex == nil {
		return c.GetStartIndex()
	}
	return *c.EndIndex
}

func (c *TriageConfig) GetDownlinkPercentage() int {
	if c.DownlinkPercentage == nil {
		return DefaultDownlinkPercentage
	}
	return *c.DownlinkPercentage
}

func (c *TriageConfig) GetDensityWeight() float64 {
	if c.DensityWeight == nil {
		return DefaultDensityWeight
	}
	return *c.DensityWeight
}

func (c *TriageConfig) GetAccelerationWeight() float64 {
	if c.AccelerationWeight == nil {
		return DefaultAccelerationWeight
	}
	return *c.AccelerationWeight
}

func (c *TriageConfig) GetMaxDownlinkAttempts() int {
	if c.MaxDownlinkAttempts == nil {
		return DefaultMaxDownlinkAttempts
	}
	return *c.MaxDownlinkAttempts
}

// GetSeed returns the clustering seed and whether one was configured.
func (c *TriageConfig) GetSeed() (uint64, bool) {
	if c.Seed == nil {
		return 0, false
	}
	return *c.Seed, true
}

func (c *TriageConfig) GetWorkers() int {
	if c.Workers == nil {
		return DefaultWorkers
	}
	return *c.Workers
}

func (c *TriageConfig) GetMaxComponents() int {
	if c.MaxComponents == nil {
		return DefaultMaxComponents
	}
	return *c.MaxComponents
}

func (c *TriageConfig) GetMaxClusterIterations() int {
	if c.MaxClusterIterations == nil {
		return DefaultMaxClusterIterations
	}
	return *c.MaxClusterIterations
}

func (c *TriageConfig) GetOverlayDir() string {
	if c.OverlayDir == nil {
		return ""
	}
	return *c.OverlayDir
}

func (c *TriageConfig) GetChartPath() string {
	if c.ChartPath == nil {
		return ""
	}
	return *c.ChartPath
}

func (c *TriageConfig) GetLedgerPath() string {
	if c.LedgerPath == nil {
		return ""
	}
	return *c.LedgerPath
}

// SetStringIfNonEmpty and SetInt apply command-line overrides.
func SetStringIfNonEmpty(dst **string, v string) {
	if v != "" {
		*dst = ptrString(v)
	}
}

func SetInt(dst **int, v int) {
	*dst = ptrInt(v)
}
