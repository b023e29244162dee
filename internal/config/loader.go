package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/perflog/pkg/jsonschema"
)

// ErrInvalidConfig wraps every schema or semantic validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

var schema = jsonschema.MustCompile("perflog.schema.json", documentSchema)

// Default values applied by ApplyDefaults.
const (
	DefaultDomain           = "perflog"
	DefaultBucketsPerWindow = 60
	DefaultReapHorizon      = 60 * time.Minute
	DefaultListen           = ":9464"
	DefaultLogLevel         = "info"
)

// LoadFile loads a configuration file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data, path)
}

// Parse parses, validates and defaults configuration data.
//
// The format is determined by the file extension in path, or defaults to YAML
// if the path is empty or has an unknown extension.
func Parse(data []byte, path string) (*File, error) {
	var doc interface{}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	// An empty document is an empty configuration.
	if doc == nil {
		doc = map[string]interface{}{}
	}
	if errs := schema.ValidateValue(doc); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, errs.Error())
	}

	var file File
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	ApplyDefaults(&file)
	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &file, nil
}

// ApplyDefaults fills unset fields with their defaults. Enabled and
// Intervals are left nil so "unset" stays distinguishable from "empty".
func ApplyDefaults(f *File) {
	if f.Domain == "" {
		f.Domain = DefaultDomain
	}
	if f.BucketsPerWindow == 0 {
		f.BucketsPerWindow = DefaultBucketsPerWindow
	}
	if f.ReapHorizon == 0 {
		f.ReapHorizon = Duration(DefaultReapHorizon)
	}
	if f.Listen == "" {
		f.Listen = DefaultListen
	}
	if f.Log.Level == "" {
		f.Log.Level = DefaultLogLevel
	}
}

// Default returns a configuration with every default applied.
func Default() *File {
	f := &File{}
	ApplyDefaults(f)
	return f
}
