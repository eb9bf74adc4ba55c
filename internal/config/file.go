// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileValues holds the raw key/value pairs from an optional YAML config file.
// Values act as defaults beneath environment variables.
type fileValues map[string]any

func loadFile(path string) (fileValues, error) {
	if path == "" {
		return fileValues{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileValues{}, nil
		}
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	var values fileValues
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if values == nil {
		values = fileValues{}
	}
	return values, nil
}

func (f fileValues) str(key, fallback string) string {
	if v, ok := f[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func (f fileValues) num(key string, fallback int) int {
	switch v := f[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return fallback
}

func (f fileValues) dur(key string, fallback time.Duration) time.Duration {
	if v, ok := f[key].(string); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
