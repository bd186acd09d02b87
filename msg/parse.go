package msg

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"
)

var colorMarker = regexp.MustCompile(`^\[color\([^)]+\)\]$`)

// ParseFile parses a .msg file.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse reads a .msg script.
//
// A message block begins at a label line ("Name:", not starting with '#') and runs
// until the first line containing [end]. Lines between blocks are kept as comments.
func Parse(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	doc := &Document{Messages: make(map[string]*Message)}

	i := 0
	for i < len(lines) && !isLabel(lines[i]) {
		i++
	}
	doc.Comments = append(doc.Comments, strings.Join(lines[:i], "\n"))

	for i < len(lines) {
		if !isLabel(lines[i]) {
			i++
			continue
		}
		label := strings.TrimSpace(lines[i])
		name := strings.TrimSpace(label[:len(label)-1])
		i++

		var body []Line
		first := true
		for i < len(lines) {
			if first {
				first = false
				if sp, ok := parseSpeaker(lines[i]); ok {
					body = append(body, sp)
					i++
					if strings.Contains(sp.Format, "[end]") {
						break
					}
					continue
				}
			}
			if l, ok := parseLine(lines[i]); ok {
				body = append(body, l)
				if strings.Contains(l.Format, "[end]") {
					i++
					break
				}
			}
			i++
		}
		if _, dup := doc.Messages[name]; dup {
			tracer().Infof("message %s defined twice, last one wins", name)
		}
		doc.Messages[name] = &Message{Lines: mergeTabs(body)}
		doc.Order = append(doc.Order, name)

		start := i
		for i < len(lines) && !isLabel(lines[i]) {
			i++
		}
		doc.Comments = append(doc.Comments, strings.Join(lines[start:i], "\n"))
	}
	return doc, nil
}

func isLabel(line string) bool {
	s := strings.TrimSpace(line)
	return strings.HasSuffix(s, ":") && !strings.HasPrefix(s, "#")
}

// markerEnd returns the index just past the marker opening at line[i], and false
// if the brackets never balance. Brackets inside parentheses do not count.
func markerEnd(line []rune, i int) (int, bool) {
	depth, parens := 1, 0
	j := i + 1
	for j < len(line) && depth > 0 {
		switch line[j] {
		case '[':
			if parens == 0 {
				depth++
			}
		case ']':
			if parens == 0 {
				depth--
			}
		case '(':
			parens++
		case ')':
			parens--
		}
		j++
	}
	return j, depth == 0
}

// splitMarkers separates a line into its text and the markers before and after the
// first visible character.
func splitMarkers(line string) (text string, before, after []string) {
	runes := []rune(line)
	var sb strings.Builder
	started := false
	for i := 0; i < len(runes); {
		if runes[i] == '[' {
			if j, ok := markerEnd(runes, i); ok {
				m := string(runes[i:j])
				if started {
					after = append(after, m)
				} else {
					before = append(before, m)
				}
				i = j
				continue
			}
		}
		if !unicode.IsSpace(runes[i]) {
			started = true
		}
		sb.WriteRune(runes[i])
		i++
	}
	return strings.TrimSpace(sb.String()), before, after
}

// parseSpeaker recognizes a speaker line: no [tab] and at least two color markers.
// Only the first and last color marker survive in the format.
func parseSpeaker(line string) (Line, bool) {
	if strings.Contains(line, "[tab]") {
		return Line{}, false
	}
	text, before, after := splitMarkers(line)
	var colors []string
	for _, m := range append(before, after...) {
		if colorMarker.MatchString(m) {
			colors = append(colors, m)
		}
	}
	if len(colors) < 2 {
		return Line{}, false
	}
	return Line{
		Type:   Speaker,
		Text:   Single(text),
		Format: colors[0] + "{text}" + colors[len(colors)-1],
	}, true
}

// parseLine splits a line at its markers. Every text run becomes a segment with a
// numbered placeholder; a line with a single run uses the plain {text}.
func parseLine(line string) (Line, bool) {
	line = strings.TrimRightFunc(line, unicode.IsSpace)
	if strings.TrimSpace(line) == "" {
		return Line{}, false
	}
	runes := []rune(line)
	var segments []string
	var format strings.Builder
	var current strings.Builder
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			segments = append(segments, s)
			fmt.Fprintf(&format, "{text%d}", len(segments)-1)
		}
		current.Reset()
	}
	for i := 0; i < len(runes); {
		if runes[i] == '[' {
			if j, ok := markerEnd(runes, i); ok {
				flush()
				format.WriteString(string(runes[i:j]))
				i = j
				continue
			}
		}
		current.WriteRune(runes[i])
		i++
	}
	flush()

	switch len(segments) {
	case 0:
		return Line{Type: Dialogue, Text: Single(""), Format: format.String()}, true
	case 1:
		return Line{
			Type:   Dialogue,
			Text:   Single(segments[0]),
			Format: strings.Replace(format.String(), "{text0}", "{text}", 1),
		}, true
	}
	return Line{Type: Dialogue, Text: Segments(segments...), Format: format.String()}, true
}

// mergeTabs joins runs of consecutive [tab] dialogue lines into one line holding
// all their markers and segments.
func mergeTabs(lines []Line) []Line {
	isTab := func(l Line) bool {
		return l.Type == Dialogue && strings.Contains(l.Format, "[tab]")
	}
	var result []Line
	for i := 0; i < len(lines); {
		if !isTab(lines[i]) {
			result = append(result, lines[i])
			i++
			continue
		}
		var expanded strings.Builder
		var segments []string
		for ; i < len(lines) && isTab(lines[i]); i++ {
			l := lines[i]
			f := l.Format
			if l.Text.Multi {
				segments = append(segments, l.Text.Parts...)
				for idx, seg := range l.Text.Parts {
					f = strings.Replace(f, fmt.Sprintf("{text%d}", idx), seg, 1)
				}
			} else {
				s := l.Text.String()
				if s != "" {
					segments = append(segments, s)
				}
				f = strings.ReplaceAll(f, "{text}", s)
			}
			expanded.WriteString(f)
		}
		// put placeholders back, last segment first
		merged := expanded.String()
		for idx := len(segments) - 1; idx >= 0; idx-- {
			seg := segments[idx]
			pos := strings.LastIndex(merged, seg)
			if pos < 0 {
				continue
			}
			ph := fmt.Sprintf("{text%d}", idx)
			if idx == 0 && len(segments) == 1 {
				ph = "{text}"
			}
			merged = merged[:pos] + ph + merged[pos+len(seg):]
		}
		text := Segments(segments...)
		if len(segments) == 1 {
			text = Single(segments[0])
		}
		result = append(result, Line{Type: Dialogue, Text: text, Format: merged})
	}
	return result
}
