// Package config holds operator-tunable knobs for the loader and search
// subsystems. None of its fields change documented behavior at their
// default values; every field here is an optional override, consistent
// with the CLI surface requiring no environment variables.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Loader holds the index-loader worker pool settings. archive.Open does not
// read them: it always loads with the archive.LoaderOptions defaults.
type Loader struct {
	// Workers is the number of decoder goroutines. 0 selects NumCPU().
	Workers int
	// ChannelCapacity is the bound on the line-reader-to-decoder channel.
	ChannelCapacity int
}

// Search configures the full-text indexer and searcher.
type Search struct {
	// WriterBufferBytes is the full-text writer's memory budget; at least
	// 512 MiB is enforced at load time. The full-text indexer does not
	// read it: bleve has no writer-buffer setting.
	WriterBufferBytes int64
	// CacheRoot is the base directory under which one <identity>
	// directory per container is created (cache/<identity> by default).
	CacheRoot string
	// ResultLimit is the top-K cap on search results.
	ResultLimit int
	// ScoreThreshold is the minimum score a hit needs to survive the
	// search-to-predicate adapter. Left unexplained by design; tune per
	// deployment rather than hardcoding.
	ScoreThreshold float64
}

// Config is the full set of tunables. Load returns defaults when no config
// file is present.
type Config struct {
	Loader Loader
	Search Search
}

const minWriterBufferBytes = 512 * 1024 * 1024

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Loader: Loader{
			Workers:         0,
			ChannelCapacity: 4096,
		},
		Search: Search{
			WriterBufferBytes: minWriterBufferBytes,
			CacheRoot:         "cache",
			ResultLimit:       32,
			ScoreThreshold:    10.0,
		},
	}
}

// Load reads configuration from the path named by STORYQUERY_CONFIG, or
// from "storyquery.kdl" in the current directory, falling back to Default
// when neither exists. A present but malformed file is an error.
func Load() (*Config, error) {
	path := os.Getenv("STORYQUERY_CONFIG")
	if path == "" {
		path = "storyquery.kdl"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}

	if cfg.Search.WriterBufferBytes < minWriterBufferBytes {
		cfg.Search.WriterBufferBytes = minWriterBufferBytes
	}
	if cfg.Loader.Workers < 0 {
		cfg.Loader.Workers = 0
	}

	return cfg, nil
}

// WorkerCount resolves Loader.Workers against the host's CPU count.
func (c *Config) WorkerCount() int {
	if c.Loader.Workers > 0 {
		return c.Loader.Workers
	}
	return runtime.NumCPU()
}

// CacheDir returns the directory that should hold the full-text index for
// the given container identity.
func (c *Config) CacheDir(identity string) string {
	return filepath.Join(c.Search.CacheRoot, identity)
}
