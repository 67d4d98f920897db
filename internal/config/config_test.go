package config

import (
	"strings"
	"testing"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/input/movie.mkv", "/output", "/log")

	if cfg.InputPath != "/input/movie.mkv" {
		t.Errorf("expected InputPath=/input/movie.mkv, got %s", cfg.InputPath)
	}
	if cfg.OutputDir != "/output" {
		t.Errorf("expected OutputDir=/output, got %s", cfg.OutputDir)
	}
	if cfg.LogDir != "/log" {
		t.Errorf("expected LogDir=/log, got %s", cfg.LogDir)
	}
	if cfg.ChunkExtractionMode != ExtractScriptDriven {
		t.Errorf("expected default extraction mode script-driven, got %v", cfg.ChunkExtractionMode)
	}
	if cfg.ChunkOrderPolicy != OrderLongestFirst {
		t.Errorf("expected default order policy longest-first, got %v", cfg.ChunkOrderPolicy)
	}
	if cfg.Passes != 1 {
		t.Errorf("expected default passes=1, got %d", cfg.Passes)
	}
	if cfg.Workers < 1 {
		t.Errorf("expected default workers >= 1, got %d", cfg.Workers)
	}
}

func TestConfigValidate(t *testing.T) {
	validTarget := 90.0

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "default config is valid",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing input path is invalid",
			modify:  func(c *Config) { c.InputPath = "" },
			wantErr: true,
		},
		{
			name:    "zero workers is invalid",
			modify:  func(c *Config) { c.Workers = 0 },
			wantErr: true,
		},
		{
			name:    "zero threads per worker is invalid",
			modify:  func(c *Config) { c.ThreadsPerWorker = 0 },
			wantErr: true,
		},
		{
			name:    "three passes is invalid",
			modify:  func(c *Config) { c.Passes = 3 },
			wantErr: true,
		},
		{
			name:    "negative extra_splits_len is invalid",
			modify:  func(c *Config) { c.ExtraSplitsLen = -1 },
			wantErr: true,
		},
		{
			name: "target quality with max_probes=0 is invalid",
			modify: func(c *Config) {
				c.TargetQuality = &validTarget
				c.MaxProbes = 0
			},
			wantErr: true,
		},
		{
			name: "target quality with valid range is valid",
			modify: func(c *Config) {
				c.TargetQuality = &validTarget
			},
			wantErr: false,
		},
		{
			name: "target quality with inverted q range is invalid",
			modify: func(c *Config) {
				c.TargetQuality = &validTarget
				c.MinQ = 50
				c.MaxQ = 10
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("/input/movie.mkv", "/output", "/log")
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseChunkExtractionMode(t *testing.T) {
	tests := []struct {
		input   string
		want    ChunkExtractionMode
		wantErr bool
	}{
		{"script-driven", ExtractScriptDriven, false},
		{"select", ExtractSelect, false},
		{"segment", ExtractSegment, false},
		{"hybrid", ExtractHybrid, false},
		{"bogus", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseChunkExtractionMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseChunkExtractionMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseChunkExtractionMode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseChunkOrderPolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    ChunkOrderPolicy
		wantErr bool
	}{
		{"longest-first", OrderLongestFirst, false},
		{"shortest-first", OrderShortestFirst, false},
		{"sequential", OrderSequential, false},
		{"random", OrderRandom, false},
		{"adaptive", OrderAdaptive, false},
		{"bogus", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseChunkOrderPolicy(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseChunkOrderPolicy(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseChunkOrderPolicy(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseTargetQuality(t *testing.T) {
	got, err := ParseTargetQuality("90.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 90.5 {
		t.Errorf("ParseTargetQuality(90.5) = %v, want 90.5", got)
	}

	if _, err := ParseTargetQuality("not-a-number"); err == nil {
		t.Error("expected error for non-numeric target quality")
	}
}

func TestGetTempDir(t *testing.T) {
	cfg := NewConfig("/input/movie.mkv", "/output", "/log")
	first := cfg.GetTempDir()
	if !strings.HasPrefix(first, "/output/chunkcast-") {
		t.Errorf("expected a generated dir under /output, got %s", first)
	}
	if second := cfg.GetTempDir(); second != first {
		t.Errorf("expected GetTempDir to cache its generated name, got %s then %s", first, second)
	}

	cfg.TempDir = "/scratch/run-1"
	if cfg.GetTempDir() != "/scratch/run-1" {
		t.Errorf("expected explicit TempDir, got %s", cfg.GetTempDir())
	}
}
