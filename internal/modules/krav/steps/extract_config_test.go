package steps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadExtractorConfig_MergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extractor.yaml")
	content := []byte("min_length: 10\ndeny_phrases:\n  - \"endast exempel\"\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadExtractorConfig(path)
	if err != nil {
		t.Fatalf("LoadExtractorConfig: %v", err)
	}
	if cfg.MinLength != 10 {
		t.Fatalf("min_length = %d, want 10", cfg.MinLength)
	}
	if len(cfg.DenyPhrases) != 1 || cfg.DenyPhrases[0] != "endast exempel" {
		t.Fatalf("deny_phrases = %v", cfg.DenyPhrases)
	}
	def := DefaultExtractorConfig()
	if cfg.MaxLength != def.MaxLength {
		t.Fatalf("unset fields must keep defaults: max_length = %d", cfg.MaxLength)
	}
	if len(cfg.Keywords) != len(def.Keywords) {
		t.Fatalf("unset keywords must keep defaults: %v", cfg.Keywords)
	}
}

func TestLoadExtractorConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadExtractorConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatalf("expected an error for a missing file")
	}
	def := DefaultExtractorConfig()
	if cfg.MinLength != def.MinLength || cfg.MaxLength != def.MaxLength {
		t.Fatalf("defaults must come back alongside the error: %+v", cfg)
	}
}
