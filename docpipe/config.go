package docpipe

import "log/slog"

// Config configures the document pipeline.
type Config struct {
	// MaxFileSize is the largest source file read (default: 100 MB).
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// MaxEntrySize caps the decompressed size of one archive entry (default: 100 MB).
	MaxEntrySize int64 `json:"max_entry_size" yaml:"max_entry_size"`

	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 100 * 1024 * 1024
	}
	if c.MaxEntrySize <= 0 {
		c.MaxEntrySize = 100 * 1024 * 1024
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
