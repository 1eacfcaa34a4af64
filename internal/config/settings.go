package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings 由設定頁面保存的快取配置，原樣傳遞，不影響快取行為
// （壓縮與 CDN 從未真正實作）。
type Settings struct {
	MaxSize                   int           `yaml:"max_size" json:"maxSize"`
	DefaultTTL                time.Duration `yaml:"default_ttl" json:"defaultTtl"`
	EnableCompression         bool          `yaml:"enable_compression" json:"enableCompression"`
	CompressionLevel          int           `yaml:"compression_level" json:"compressionLevel"`
	AutoClearThresholdPercent float64       `yaml:"auto_clear_threshold_percent" json:"autoClearThresholdPercent"`
	CDN                       CDNSettings   `yaml:"cdn" json:"cdn"`
}

// CDNSettings 只作為資料保存
type CDNSettings struct {
	Enabled  bool              `yaml:"enabled" json:"enabled"`
	Provider string            `yaml:"provider" json:"provider"`
	BaseURL  string            `yaml:"base_url" json:"baseUrl"`
	Regions  []string          `yaml:"regions" json:"regions"`
	Headers  map[string]string `yaml:"headers" json:"headers"`
}

// LoadSettings decodes a YAML settings document.
func LoadSettings(r io.Reader) (Settings, error) {
	var s Settings
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&s); err != nil {
		if err == io.EOF {
			return s, nil
		}
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// WithSettings 套用設定頁面的值；MaxSize / DefaultTTL / AutoClearThresholdPercent
// 大於零時覆蓋快取配置，其餘欄位原樣保存。
func WithSettings(s Settings) Option {
	return func(c *Config) error {
		c.Settings = s
		if s.MaxSize > 0 {
			c.MaxSize = s.MaxSize
		}
		if s.DefaultTTL > 0 {
			c.DefaultExpiration = s.DefaultTTL
		}
		if s.AutoClearThresholdPercent > 0 {
			c.CacheBehaviorConfig.AutoClearThresholdPercent = s.AutoClearThresholdPercent
		}
		return nil
	}
}

// WithSettingsFile loads a YAML settings document from path.
func WithSettingsFile(path string) Option {
	return func(c *Config) error {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open settings file: %w", err)
		}
		defer f.Close()

		s, err := LoadSettings(f)
		if err != nil {
			return err
		}
		return WithSettings(s)(c)
	}
}
