// Package config loads the flights server configuration document.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFile         = "cfg-flights.json"
	DefaultDatabaseName = "db"
	DefaultDatabasePath = "db.kv"
	DefaultMaxBodyBytes = 1 << 20
	DefaultMaxSegments  = 10000
	DefaultQueueSize    = 64
)

// Database names one store the server can open
type Database struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
}

// Config is the server configuration document
type Config struct {
	Databases []Database `json:"databases" yaml:"databases"`

	// MaxBodyBytes bounds the request body read by the PUT handler
	MaxBodyBytes int64 `json:"max_body_bytes,omitempty" yaml:"max_body_bytes,omitempty"`

	// MaxSegments bounds the legs accepted in one request
	MaxSegments int `json:"max_segments,omitempty" yaml:"max_segments,omitempty"`

	// StrictTokens rejects bodies with unpaired or unterminated tokens
	StrictTokens bool `json:"strict_tokens,omitempty" yaml:"strict_tokens,omitempty"`

	// QueueSize is the number of jobs that may wait for the worker
	QueueSize int `json:"queue_size,omitempty" yaml:"queue_size,omitempty"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	cfg := &Config{}
	cfg.normalize()
	return cfg
}

// Primary returns the database the server serves.
// Only one database is supported; it is always the first entry.
func (c *Config) Primary() Database {
	return c.Databases[0]
}

// Load reads path. When path is the default file and it does not exist the
// defaults are returned with found=false; any other missing file is an error.
func Load(path string) (cfg *Config, found bool, err error) {
	if path == "" {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && path == DefaultFile {
			return Default(), false, nil
		}
		return nil, false, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg, err = Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, true, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, true, nil
}

// Parse decodes a document; ext ".yaml" or ".yml" selects YAML, anything else JSON
func Parse(data []byte, ext string) (*Config, error) {
	cfg := &Config{}
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

// Validate rejects documents the server cannot run with
func (c *Config) Validate() error {
	for i, db := range c.Databases {
		if strings.TrimSpace(db.Name) == "" {
			return fmt.Errorf("databases[%d]: name is required", i)
		}
		if slices.IndexFunc(c.Databases[:i], func(d Database) bool { return d.Name == db.Name }) >= 0 {
			return fmt.Errorf("databases[%d]: duplicate name %q", i, db.Name)
		}
	}
	if c.MaxBodyBytes < 0 {
		return errors.New("max_body_bytes must not be negative")
	}
	if c.MaxSegments < 0 {
		return errors.New("max_segments must not be negative")
	}
	if c.QueueSize < 0 {
		return errors.New("queue_size must not be negative")
	}
	return nil
}

func (c *Config) normalize() {
	if len(c.Databases) == 0 {
		c.Databases = []Database{{Name: DefaultDatabaseName, Path: DefaultDatabasePath}}
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.MaxSegments == 0 {
		c.MaxSegments = DefaultMaxSegments
	}
	if c.QueueSize == 0 {
		c.QueueSize = DefaultQueueSize
	}
}
