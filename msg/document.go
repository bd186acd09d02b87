// Package msg converts the game's .msg event scripts to JSON for translation and
// back.
//
// A .msg file is a header comment followed by message blocks:
//
//	E0000_001:
//	[color(3)]Maya[color(0)]
//	[tab]Hello there.[wait][end]
//
// Bracketed markers are control codes and are kept verbatim in a line's format;
// the text between them is what translators see.
package msg

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'p2pt.msg'
func tracer() tracing.Trace {
	return tracing.Select("p2pt.msg")
}

// Line types.
const (
	Speaker  = "speaker"
	Dialogue = "dialogue"
)

// Document is one parsed .msg file.
type Document struct {
	// Comments[0] is the file header, Comments[i] follows the i-th message.
	Comments []string            `json:"comments"`
	Messages map[string]*Message `json:"messages"`
	Order    []string            `json:"order"`
}

// Message is one labelled block.
type Message struct {
	Lines []Line `json:"lines"`
}

// Line is a speaker or dialogue line. Format holds the line's markers with
// {text} or {text0}, {text1}, ... where the text goes.
type Line struct {
	Type   string `json:"type"`
	Text   Text   `json:"text"`
	Format string `json:"format"`
}

// Text is a line's translatable content: a single string, or a list of segments
// when markers split the line. In JSON it is a string or an array accordingly.
type Text struct {
	Parts []string
	Multi bool
}

// Single returns a one-string Text.
func Single(s string) Text {
	return Text{Parts: []string{s}}
}

// Segments returns a segmented Text.
func Segments(parts ...string) Text {
	if parts == nil {
		parts = []string{}
	}
	return Text{Parts: parts, Multi: true}
}

// String returns the single value, or "" for segmented text.
func (t Text) String() string {
	if t.Multi || len(t.Parts) == 0 {
		return ""
	}
	return t.Parts[0]
}

func (t Text) MarshalJSON() ([]byte, error) {
	if t.Multi {
		parts := t.Parts
		if parts == nil {
			parts = []string{}
		}
		return marshalUnescaped(parts)
	}
	return marshalUnescaped(t.String())
}

func marshalUnescaped(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (t *Text) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*t = Single("")
	case string:
		*t = Single(x)
	case []any:
		parts := make([]string, len(x))
		for i, p := range x {
			s, ok := p.(string)
			if !ok {
				return fmt.Errorf("text segment %d is %T, not a string", i, p)
			}
			parts[i] = s
		}
		*t = Segments(parts...)
	default:
		return fmt.Errorf("text is %T, not a string or list", v)
	}
	return nil
}
