package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("ENABLE_HYBRID", "")
	t.Setenv("HYBRID_ALPHA", "")
	t.Setenv("VECTOR_BACKEND", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 200 {
		t.Errorf("chunking defaults = %d/%d, want 1000/200", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.TopK != 5 || cfg.SimilarityThreshold != 0.7 {
		t.Errorf("retrieval defaults = %d/%v, want 5/0.7", cfg.TopK, cfg.SimilarityThreshold)
	}
	if !cfg.HybridEnabled || cfg.HybridAlpha != 0.6 {
		t.Errorf("hybrid defaults = %v/%v, want true/0.6", cfg.HybridEnabled, cfg.HybridAlpha)
	}
	if cfg.VectorBackend != "chroma" {
		t.Errorf("vector backend default = %q, want chroma", cfg.VectorBackend)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "chunk_size: 512\nvector_backend: qdrant\nhybrid_alpha: 0.8\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("VECTOR_BACKEND", "")
	t.Setenv("HYBRID_ALPHA", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChunkSize != 512 {
		t.Errorf("chunk size = %d, want file value 512", cfg.ChunkSize)
	}
	if cfg.VectorBackend != "qdrant" {
		t.Errorf("vector backend = %q, want qdrant", cfg.VectorBackend)
	}
	if cfg.HybridAlpha != 0.8 {
		t.Errorf("hybrid alpha = %v, want 0.8", cfg.HybridAlpha)
	}
	// Keys absent from the file keep their defaults.
	if cfg.TopK != 5 {
		t.Errorf("top k = %d, want default 5", cfg.TopK)
	}
}

func TestLoadEnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("chunk_size: 512\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CHUNK_SIZE", "256")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChunkSize != 256 {
		t.Errorf("chunk size = %d, want env value 256", cfg.ChunkSize)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("chunk_size: [broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected parse error for malformed config file")
	}
}
