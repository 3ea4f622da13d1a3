package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "folio.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
db_path: /tmp/test.db
chapter_workers: 8
ocr:
  enabled: true
  api_key: test-key
  timeout: 30s
queue:
  max_attempts: 5
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Listen != ":9090" || cfg.DBPath != "/tmp/test.db" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.ChapterWorkers != 8 {
		t.Fatalf("chapter_workers = %d", cfg.ChapterWorkers)
	}
	// Untouched fields keep their defaults.
	if cfg.MaxFileMB != 200 || cfg.LongChapterWords != 4000 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if !cfg.OCR.Enabled || cfg.OCR.APIKey != "test-key" || cfg.OCR.Timeout != 30*time.Second {
		t.Fatalf("ocr = %+v", cfg.OCR)
	}
	if cfg.OCR.Model != "gemini-1.5-flash" {
		t.Fatalf("ocr model default lost: %q", cfg.OCR.Model)
	}
	if cfg.Queue.MaxAttempts != 5 {
		t.Fatalf("queue = %+v", cfg.Queue)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults ok", func(c *Config) {}, ""},
		{"empty db path", func(c *Config) { c.DBPath = "" }, "db_path"},
		{"empty upload dir", func(c *Config) { c.UploadDir = "" }, "upload_dir"},
		{"zero workers", func(c *Config) { c.ChapterWorkers = 0 }, "chapter_workers"},
		{"threshold too high", func(c *Config) { c.CorruptionThreshold = 1 }, "corruption_threshold"},
		{"ocr enabled without key", func(c *Config) { c.OCR.Enabled = true }, "api_key"},
		{"unknown preference key", func(c *Config) {
			c.Preference = map[string]float64{"magazine": 1}
		}, "unknown source type"},
		{"known preference keys", func(c *Config) {
			c.Preference = map[string]float64{"standalone_chapter": 3, "textbook_chapter": 1}
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}
