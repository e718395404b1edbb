package convert

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the converter configuration.
type Config struct {
	OutputDir   string        `yaml:"output_dir"` // "" writes next to the source
	MaxFileMB   int           `yaml:"max_file_mb"`
	Timeout     time.Duration `yaml:"timeout"`
	Creator     string        `yaml:"creator"`
	JournalPath string        `yaml:"journal_path"` // "" disables the journal
	PDF         PDFConfig     `yaml:"pdf"`

	Logger *slog.Logger `yaml:"-"`
}

// PDFConfig controls text-to-PDF rendering.
type PDFConfig struct {
	FontFamily string  `yaml:"font_family"` // core font: Helvetica, Times or Courier
	FontSize   float64 `yaml:"font_size"`   // points
	MarginMM   float64 `yaml:"margin_mm"`
	PageSize   string  `yaml:"page_size"` // A3, A4, A5, Letter or Legal
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxFileMB: 100,
		Timeout:   60 * time.Second,
		Creator:   "docforge",
		PDF: PDFConfig{
			FontFamily: "Helvetica",
			FontSize:   11,
			MarginMM:   15,
			PageSize:   "A4",
		},
	}
}

// LoadConfig reads and parses a YAML config file. Returns DefaultConfig merged with the file.
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

var (
	pdfFonts     = []string{"courier", "helvetica", "arial", "times"}
	pdfPageSizes = []string{"a3", "a4", "a5", "letter", "legal"}
)

// Validate checks that values are sane.
func (c *Config) Validate() error {
	if c.MaxFileMB <= 0 {
		return fmt.Errorf("max_file_mb must be > 0")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0")
	}
	if !contains(pdfFonts, strings.ToLower(c.PDF.FontFamily)) {
		return fmt.Errorf("pdf.font_family %q is not a core font (use Helvetica, Times or Courier)", c.PDF.FontFamily)
	}
	if c.PDF.FontSize < 4 || c.PDF.FontSize > 72 {
		return fmt.Errorf("pdf.font_size must be between 4 and 72")
	}
	if c.PDF.MarginMM < 0 || c.PDF.MarginMM > 50 {
		return fmt.Errorf("pdf.margin_mm must be between 0 and 50")
	}
	if !contains(pdfPageSizes, strings.ToLower(c.PDF.PageSize)) {
		return fmt.Errorf("pdf.page_size %q unsupported (use A3, A4, A5, Letter or Legal)", c.PDF.PageSize)
	}
	return nil
}

// defaults fills zero values so a partially built Config is usable.
func (c *Config) defaults() {
	d := DefaultConfig()
	if c.MaxFileMB <= 0 {
		c.MaxFileMB = d.MaxFileMB
	}
	if c.Creator == "" {
		c.Creator = d.Creator
	}
	if c.PDF.FontFamily == "" {
		c.PDF.FontFamily = d.PDF.FontFamily
	}
	if c.PDF.FontSize == 0 {
		c.PDF.FontSize = d.PDF.FontSize
	}
	if c.PDF.PageSize == "" {
		c.PDF.PageSize = d.PDF.PageSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// MaxFileBytes returns max file size in bytes.
func (c *Config) MaxFileBytes() int64 { return int64(c.MaxFileMB) * 1024 * 1024 }

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
