package remap

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

// LoadEventTable reads an event.json file: {"<hex code>": "<char>", ...}.
func LoadEventTable(path string) (EventTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := ParseEventTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ParseEventTable decodes event.json content. Keys are hexadecimal with an optional
// 0x prefix, values hold exactly one character. Empty values leave the code unset.
func ParseEventTable(r io.Reader) (EventTable, error) {
	var raw map[string]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode event table: %w", err)
	}
	t := make(EventTable, len(raw))
	for k, v := range raw {
		code, err := parseHexKey(k)
		if err != nil {
			return nil, err
		}
		if v == "" {
			continue
		}
		c, ok := singleRune(v)
		if !ok {
			return nil, fmt.Errorf("event code %s: %q is not a single character", k, v)
		}
		t[code] = c
	}
	return t, nil
}

func parseHexKey(k string) (int, error) {
	s := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(k), "0x"), "0X")
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid event code %q: %w", k, err)
	}
	return int(n), nil
}

// LoadFontTable reads a font code file: {"<char>": <code>, ...}.
// Font tables in font.json page layout are loaded with package charset instead.
func LoadFontTable(path string) (FontTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := ParseFontTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ParseFontTable decodes {"<char>": <code>} content.
func ParseFontTable(r io.Reader) (FontTable, error) {
	var raw map[string]uint16
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode font table: %w", err)
	}
	t := make(FontTable, len(raw))
	for k, v := range raw {
		c, ok := singleRune(k)
		if !ok {
			return nil, fmt.Errorf("font table key %q is not a single character", k)
		}
		t[c] = v
	}
	return t, nil
}

// singleRune decodes s if it is exactly one valid character. U+FFFD itself is a
// valid character.
func singleRune(s string) (rune, bool) {
	r, size := utf8.DecodeRuneInString(s)
	return r, s != "" && size == len(s) && utf8.ValidString(s)
}
