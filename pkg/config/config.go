package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"imagepress/pkg/pipeline"
)

// Config holds all operator-tunable settings. Byte budgets and upload
// limits are deliberately configuration, not constants: deployments of
// this service run with different targets (300KB/50MB for plain
// compression, 100KB/10MB for the OCR profile).
type Config struct {
	Server struct {
		Addr                string `yaml:"addr"`
		ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	} `yaml:"server"`
	Compression struct {
		TargetKB        int64     `yaml:"target_kb"`
		MaxUploadMB     int64     `yaml:"max_upload_mb"`
		QualityLadder   []int     `yaml:"quality_ladder"`
		FallbackQuality int       `yaml:"fallback_quality"`
		ResizeLadder    []float64 `yaml:"resize_ladder"`
	} `yaml:"compression"`
	OCR struct {
		TargetKB     int64     `yaml:"target_kb"`
		MaxUploadMB  int64     `yaml:"max_upload_mb"`
		LevelLadder  []int     `yaml:"level_ladder"`
		ResizeLadder []float64 `yaml:"resize_ladder"`
	} `yaml:"ocr"`
}

func LoadConfig(path string) (*Config, error) {
	config := &Config{}

	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		config.applyDefaults()
		return config, nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(file, config)
	if err != nil {
		return nil, err
	}

	config.applyDefaults()
	return config, nil
}

// applyDefaults fills any field the file left unset, so a partial
// config only overrides what it names.
func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeoutSeconds <= 0 {
		c.Server.ReadTimeoutSeconds = 60
	}
	if c.Server.WriteTimeoutSeconds <= 0 {
		c.Server.WriteTimeoutSeconds = 60
	}

	if c.Compression.TargetKB <= 0 {
		c.Compression.TargetKB = 300
	}
	if c.Compression.MaxUploadMB <= 0 {
		c.Compression.MaxUploadMB = 50
	}
	if len(c.Compression.QualityLadder) == 0 {
		c.Compression.QualityLadder = []int{75, 65, 55, 45, 35}
	}
	if c.Compression.FallbackQuality <= 0 {
		c.Compression.FallbackQuality = 40
	}
	if len(c.Compression.ResizeLadder) == 0 {
		c.Compression.ResizeLadder = []float64{0.9, 0.8, 0.7, 0.6, 0.5}
	}

	if c.OCR.TargetKB <= 0 {
		c.OCR.TargetKB = 100
	}
	if c.OCR.MaxUploadMB <= 0 {
		c.OCR.MaxUploadMB = 10
	}
	if len(c.OCR.LevelLadder) == 0 {
		c.OCR.LevelLadder = []int{9, 6, 2, 0}
	}
	if len(c.OCR.ResizeLadder) == 0 {
		c.OCR.ResizeLadder = []float64{0.9, 0.8, 0.7, 0.6, 0.5}
	}
}

// CompressionBudget builds the search budget for the plain compression
// endpoint.
func (c *Config) CompressionBudget() pipeline.Budget {
	return pipeline.Budget{
		TargetBytes:     c.Compression.TargetKB * 1024,
		QualityLadder:   c.Compression.QualityLadder,
		FallbackQuality: c.Compression.FallbackQuality,
		ResizeLadder:    c.Compression.ResizeLadder,
	}
}

// OCRBudget builds the search budget for the enhancement endpoint.
func (c *Config) OCRBudget() pipeline.Budget {
	return pipeline.Budget{
		TargetBytes:  c.OCR.TargetKB * 1024,
		LevelLadder:  c.OCR.LevelLadder,
		ResizeLadder: c.OCR.ResizeLadder,
	}
}

// CompressionMaxUpload is the request body cap in bytes for /compress.
func (c *Config) CompressionMaxUpload() int64 {
	return c.Compression.MaxUploadMB * 1024 * 1024
}

// OCRMaxUpload is the request body cap in bytes for /enhance.
func (c *Config) OCRMaxUpload() int64 {
	return c.OCR.MaxUploadMB * 1024 * 1024
}
