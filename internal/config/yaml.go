package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

var errEmptyConfig = errors.New("config file is empty")

// coerceToJSON hands the strict JSON decoder a single document. YAML files
// (by extension) are converted first; a second YAML document is an error.
func coerceToJSON(path string, data []byte) ([]byte, string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, "", errEmptyConfig
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".yaml" && ext != ".yml" {
		return data, "json", nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	var doc any
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, "yaml", errEmptyConfig
		}
		return nil, "yaml", fmt.Errorf("yaml: %w", err)
	}
	if err := dec.Decode(new(any)); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, "yaml", errors.New("invalid config: multiple yaml documents")
		}
		return nil, "yaml", fmt.Errorf("yaml: %w", err)
	}
	if doc == nil {
		return nil, "yaml", errEmptyConfig
	}

	tree, err := jsonTree(doc)
	if err != nil {
		return nil, "yaml", err
	}
	out, err := json.Marshal(tree)
	if err != nil {
		return nil, "yaml", fmt.Errorf("yaml->json: %w", err)
	}
	return out, "yaml", nil
}

// jsonTree rebuilds a decoded YAML value with string map keys. Non-scalar
// keys have no JSON form and are rejected.
func jsonTree(in any) (any, error) {
	switch x := in.(type) {
	case map[string]any:
		for k, v := range x {
			conv, err := jsonTree(v)
			if err != nil {
				return nil, err
			}
			x[k] = conv
		}
		return x, nil
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			switch k.(type) {
			case map[string]any, map[any]any, []any:
				return nil, fmt.Errorf("yaml: unsupported map key %v", k)
			}
			conv, err := jsonTree(v)
			if err != nil {
				return nil, err
			}
			m[fmt.Sprint(k)] = conv
		}
		return m, nil
	case []any:
		for i := range x {
			conv, err := jsonTree(x[i])
			if err != nil {
				return nil, err
			}
			x[i] = conv
		}
		return x, nil
	default:
		return in, nil
	}
}
