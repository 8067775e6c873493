package ranking

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeCalibration writes a calibration file into a temp dir and returns its path.
func writeCalibration(t *testing.T, calibration any) string {
	t.Helper()
	data, err := json.MarshalIndent(calibration, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal calibration: %v", err)
	}
	path := filepath.Join(t.TempDir(), "calibration.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write calibration file: %v", err)
	}
	return path
}

// TestDefaultConfig verifies the default tunables.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Quality.DaysHorizon != 356 {
		t.Errorf("expected days_horizon 356, got %f", cfg.Quality.DaysHorizon)
	}
	if cfg.Quality.RelevancyInfluence != 0.025 {
		t.Errorf("expected relevancy_influence 0.025, got %f", cfg.Quality.RelevancyInfluence)
	}
	if cfg.Badges.ImpactInfluence != 2.5 || cfg.Badges.ImpactAdd != 50 {
		t.Errorf("expected impact badge 2.5x+50, got %fx+%f", cfg.Badges.ImpactInfluence, cfg.Badges.ImpactAdd)
	}
	if cfg.Distance.MaxLevelDistance != 8 {
		t.Errorf("expected max_level_distance 8, got %d", cfg.Distance.MaxLevelDistance)
	}
	if cfg.SimilarNameThreshold != 90 {
		t.Errorf("expected similar_name_threshold 90, got %f", cfg.SimilarNameThreshold)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

// TestLoadCalibration_DefaultFile loads the calibration file shipped in configs/.
func TestLoadCalibration_DefaultFile(t *testing.T) {
	configPath := filepath.Join("..", "..", "configs", "ranking.calibration.json")
	if _, err := os.Stat(configPath); err != nil {
		t.Skipf("default calibration file not found: %v", err)
	}

	cfg, err := LoadCalibration(configPath)
	if err != nil {
		t.Fatalf("expected no error loading default calibration file, got: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("loaded config doesn't match defaults:\nloaded: %+v\ndefaults: %+v", cfg, DefaultConfig())
	}
}

func TestLoadCalibration_EmptyPath(t *testing.T) {
	cfg, err := LoadCalibration("")
	if err != nil {
		t.Errorf("expected no error with empty path, got: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Error("expected defaults with empty path")
	}
}

func TestLoadCalibration_Failures(t *testing.T) {
	invalidJSON := filepath.Join(t.TempDir(), "invalid.json")
	if err := os.WriteFile(invalidJSON, []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	overlapping := CalibrationConfig{Version: "bad"}
	overlapping.Ranking.Limits.QualityMax = 5000

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"missing file", "/nonexistent/path/calibration.json", os.ErrNotExist},
		{"invalid json", invalidJSON, nil},
		{"overlapping key terms", writeCalibration(t, overlapping), ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadCalibration(tt.path)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if cfg != DefaultConfig() {
				t.Error("should return defaults on failure")
			}
		})
	}
}

func TestLoadCalibration_PartialOverride(t *testing.T) {
	calibration := CalibrationConfig{Version: "2.0.0"}
	calibration.Ranking.Quality.DaysHorizon = 180
	calibration.Ranking.Seen.Many = 5
	calibration.Ranking.SimilarNameThreshold = 85

	cfg, err := LoadCalibration(writeCalibration(t, calibration))
	if err != nil {
		t.Fatalf("LoadCalibration() error = %v", err)
	}

	want := DefaultConfig()
	want.Quality.DaysHorizon = 180
	want.Seen.Many = 5
	want.SimilarNameThreshold = 85
	if cfg != want {
		t.Errorf("expected %+v, got %+v", want, cfg)
	}
}

func TestMergeCalibration(t *testing.T) {
	override := Config{}
	override.Badges.TopDownAdd = 30
	override.Distance.RootComment = 7

	merged, overrides := mergeCalibration(DefaultConfig(), override)
	if merged.Badges.TopDownAdd != 30 {
		t.Errorf("expected top_down_add 30, got %f", merged.Badges.TopDownAdd)
	}
	if merged.Distance.RootComment != 7 {
		t.Errorf("expected root_comment 7, got %d", merged.Distance.RootComment)
	}
	if merged.Badges.TopDownInfluence != 2 {
		t.Errorf("expected untouched top_down_influence 2, got %f", merged.Badges.TopDownInfluence)
	}
	if len(overrides) != 2 {
		t.Errorf("expected 2 overrides, got %v", overrides)
	}

	if got := MergeCalibration(DefaultConfig(), Config{}); got != DefaultConfig() {
		t.Error("empty override should leave defaults untouched")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero relevancy influence", func(c *Config) { c.Quality.RelevancyInfluence = 0 }},
		{"zero max days", func(c *Config) { c.Quality.RelevancyMaxDays = 0 }},
		{"zero issue divisor", func(c *Config) { c.Quality.IssueRelevancyDivisor = 0 }},
		{"zero level step", func(c *Config) { c.Distance.LevelStep = 0 }},
		{"sub-score limit too wide", func(c *Config) { c.Limits.SubScoreMax = 10 }},
		{"upvotes overlap date term", func(c *Config) { c.Limits.UpvotesMax = 1000 }},
		{"threshold above 100", func(c *Config) { c.SimilarNameThreshold = 120 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
