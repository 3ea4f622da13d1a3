package ingest

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full folio configuration.
type Config struct {
	Listen    string `yaml:"listen"`
	DBPath    string `yaml:"db_path"`
	UploadDir string `yaml:"upload_dir"`
	MaxFileMB int    `yaml:"max_file_mb"`

	// ChapterWorkers bounds parallel chapter extraction per document.
	ChapterWorkers int `yaml:"chapter_workers"`

	// CorruptionThreshold is the max acceptable replacement-character
	// ratio before the extractor escalates strategies.
	CorruptionThreshold float64 `yaml:"corruption_threshold"`

	// LongChapterWords is the word count above which chapters are chunked.
	LongChapterWords int `yaml:"long_chapter_words"`

	OCR        OCRConfig          `yaml:"ocr"`
	Detection  DetectionConfig    `yaml:"detection"`
	Preference map[string]float64 `yaml:"dedup_preference"`

	Queue QueueConfig `yaml:"queue"`
}

// OCRConfig configures the vision fallback.
type OCRConfig struct {
	Enabled     bool          `yaml:"enabled"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	MaxImageDim int           `yaml:"max_image_dim"`
	MinChars    int           `yaml:"min_chars"`
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// DetectionConfig overrides the per-tier confidence values.
type DetectionConfig struct {
	OutlineConfidence  float64 `yaml:"outline_confidence"`
	PatternConfidence  float64 `yaml:"pattern_confidence"`
	HeadingConfidence  float64 `yaml:"heading_confidence"`
	FallbackConfidence float64 `yaml:"fallback_confidence"`
}

// QueueConfig tunes the ingestion job queue.
type QueueConfig struct {
	Visibility   time.Duration `yaml:"visibility"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:              ":8082",
		DBPath:              "folio.db",
		UploadDir:           "uploads",
		MaxFileMB:           200,
		ChapterWorkers:      4,
		CorruptionThreshold: 0.05,
		LongChapterWords:    4000,
		OCR: OCRConfig{
			Enabled:     false,
			Model:       "gemini-1.5-flash",
			MaxImageDim: 2048,
			MinChars:    100,
			Timeout:     60 * time.Second,
			Concurrency: 2,
			MaxAttempts: 4,
		},
	}
}

// LoadConfig reads and parses a YAML config file, merged over defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.UploadDir == "" {
		return fmt.Errorf("upload_dir is required")
	}
	if c.MaxFileMB <= 0 {
		return fmt.Errorf("max_file_mb must be > 0")
	}
	if c.ChapterWorkers <= 0 {
		return fmt.Errorf("chapter_workers must be > 0")
	}
	if c.CorruptionThreshold <= 0 || c.CorruptionThreshold >= 1 {
		return fmt.Errorf("corruption_threshold must be in (0,1)")
	}
	if c.LongChapterWords <= 0 {
		return fmt.Errorf("long_chapter_words must be > 0")
	}
	if c.OCR.Enabled && c.OCR.APIKey == "" {
		return fmt.Errorf("ocr.api_key is required when ocr.enabled")
	}
	for srcType := range c.Preference {
		switch srcType {
		case "standalone_chapter", "research_paper", "textbook_chapter":
		default:
			return fmt.Errorf("dedup_preference: unknown source type %q", srcType)
		}
	}
	return nil
}
