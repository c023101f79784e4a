package xtraceback

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads a configuration bag from a YAML (.yaml, .yml) or TOML
// (.toml) file. Keys are not validated here; pass the result to [New] or
// [NewOptions].
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data, filepath.Ext(path))
}

// ParseConfig decodes a configuration bag. format is a file extension
// with or without the leading dot.
func ParseConfig(data []byte, format string) (Config, error) {
	cfg := Config{}
	switch strings.TrimPrefix(strings.ToLower(format), ".") {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
	case "toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("parse toml config: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedConfigFormat, format)
	}
	return cfg, nil
}
