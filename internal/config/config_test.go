package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ModelInputSize != 640 {
		t.Errorf("ModelInputSize = %d, want 640", cfg.ModelInputSize)
	}
	if cfg.StaticQuietPeriod != 300*time.Millisecond {
		t.Errorf("StaticQuietPeriod = %s, want 300ms", cfg.StaticQuietPeriod)
	}
	if cfg.SliceTTL != 500*time.Millisecond {
		t.Errorf("SliceTTL = %s, want 500ms", cfg.SliceTTL)
	}
	if cfg.MinTileDimension != 1000 {
		t.Errorf("MinTileDimension = %d, want 1000", cfg.MinTileDimension)
	}
	if cfg.ArtifactFilter {
		t.Error("ArtifactFilter should be off by default")
	}
	if cfg.Defaults != DefaultSettings() {
		t.Errorf("Defaults = %+v, want %+v", cfg.Defaults, DefaultSettings())
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FINDEREYE_MODEL_INPUT_SIZE", "320")
	t.Setenv("FINDEREYE_SLICE_TTL", "750")
	t.Setenv("FINDEREYE_STATIC_QUIET_PERIOD", "1s")
	t.Setenv("FINDEREYE_MODEL_LABELS", "cup, bottle ,,keys")
	t.Setenv("FINDEREYE_HIGH_ACCURACY", "false")
	t.Setenv("FINDEREYE_SCANNING_FPS", "2.5")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ModelInputSize != 320 {
		t.Errorf("ModelInputSize = %d, want 320", cfg.ModelInputSize)
	}
	if cfg.SliceTTL != 750*time.Millisecond {
		t.Errorf("SliceTTL = %s, want 750ms", cfg.SliceTTL)
	}
	if cfg.StaticQuietPeriod != time.Second {
		t.Errorf("StaticQuietPeriod = %s, want 1s", cfg.StaticQuietPeriod)
	}
	want := []string{"cup", "bottle", "keys"}
	if len(cfg.ModelLabels) != len(want) {
		t.Fatalf("ModelLabels = %v, want %v", cfg.ModelLabels, want)
	}
	for i := range want {
		if cfg.ModelLabels[i] != want[i] {
			t.Errorf("ModelLabels[%d] = %q, want %q", i, cfg.ModelLabels[i], want[i])
		}
	}
	if cfg.Defaults.HighAccuracy {
		t.Error("HighAccuracy should be false")
	}
	if cfg.Defaults.ScanningFPS != 2.5 {
		t.Errorf("ScanningFPS = %g, want 2.5", cfg.Defaults.ScanningFPS)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("FINDEREYE_HTTP_ADDR=:9999\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("FINDEREYE_HTTP_ADDR") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %q, want :9999", cfg.HTTPAddr)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"tiny input", func(c *Config) { c.ModelInputSize = 8 }, true},
		{"no workers", func(c *Config) { c.Workers = 0 }, true},
		{"zero ttl", func(c *Config) { c.SliceTTL = 0 }, true},
		{"iou above one", func(c *Config) { c.IOUThreshold = 1.5 }, true},
		{"bad match mode", func(c *Config) { c.TextMatchMode = "fuzzy" }, true},
		{"span mode", func(c *Config) { c.TextMatchMode = TextMatchSpan }, false},
		{"huge margin", func(c *Config) { c.ArtifactEdgeMargin = 0.6 }, true},
		{"negative confidence", func(c *Config) { c.Defaults.ConfidenceThreshold = -0.1 }, true},
		{"zero tracking fps", func(c *Config) { c.Defaults.TrackingFPS = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStoreUpdate(t *testing.T) {
	store := NewStore(DefaultSettings())

	conf := 0.6
	got, err := store.Update(SettingsPatch{ConfidenceThreshold: &conf})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got.ConfidenceThreshold != 0.6 || got.ScanningFPS != 5 {
		t.Errorf("Update returned %+v", got)
	}

	bad := 0.0
	if _, err := store.Update(SettingsPatch{TrackingFPS: &bad}); err == nil {
		t.Error("expected error for zero tracking fps")
	}
	if store.Settings().TrackingFPS != 30 {
		t.Errorf("invalid update changed the store: %+v", store.Settings())
	}
}
