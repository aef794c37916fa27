package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML (.yaml, .yml) or JSON (.json) schema file and
// normalizes it.
func LoadFile(path string, logger *zap.Logger) (Schema, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &Error{Source: path, Err: fmt.Errorf("schema file not found: %s", path)}
		}
		return nil, &Error{Source: path, Err: fmt.Errorf("read file: %w", err)}
	}

	logger.Debug("loading schema", zap.String("path", path))

	var tree any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, &Error{Source: path, Err: fmt.Errorf("parse YAML: %w", err)}
		}
	case ".json":
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber()
		if err := decoder.Decode(&tree); err != nil {
			return nil, &Error{Source: path, Err: fmt.Errorf("parse JSON: %w", err)}
		}
		tree = plainNumbers(tree)
	default:
		return nil, &Error{Source: path, Err: fmt.Errorf("unsupported schema file format: %q", ext)}
	}

	s, err := normalize(tree, path, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded schema", zap.String("path", path), zap.Int("fields", len(s)))
	return s, nil
}

// plainNumbers replaces json.Number values with int when integral and
// float64 otherwise.
func plainNumbers(v any) any {
	switch value := v.(type) {
	case json.Number:
		if i, err := value.Int64(); err == nil {
			return int(i)
		}
		if f, err := value.Float64(); err == nil {
			return f
		}
		return value.String()
	case map[string]any:
		for key, item := range value {
			value[key] = plainNumbers(item)
		}
		return value
	case []any:
		for i, item := range value {
			value[i] = plainNumbers(item)
		}
		return value
	default:
		return v
	}
}
