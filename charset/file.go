package charset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LoadFont reads font.json.
func LoadFont(path string) (Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f Font
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// SaveFont writes font.json, UTF-8, indented by two spaces.
func SaveFont(path string, f Font) error {
	return writeJSON(path, f)
}

// LoadEvent reads event.json.
func LoadEvent(path string) (EventMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var e EventMap
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return e, nil
}

// SaveEvent writes event.json, UTF-8, indented by two spaces.
func SaveEvent(path string, e EventMap) error {
	return writeJSON(path, e)
}

func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
