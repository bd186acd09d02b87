package msg

import (
	"fmt"
	"regexp"
	"strings"
)

var numbered = regexp.MustCompile(`\{text\d+\}`)

// Rebuild renders doc back into .msg text. Translations, if any, replace the
// document's own text by id; a missing or empty translation keeps the original.
func Rebuild(doc *Document, tr Texts) string {
	if doc == nil {
		return ""
	}
	var out []string
	if len(doc.Comments) > 0 && doc.Comments[0] != "" {
		out = append(out, doc.Comments[0])
	}
	ci := 1
	for _, name := range doc.Order {
		out = append(out, name+":")
		m := doc.Messages[name]
		if m == nil {
			m = &Message{}
		}
		di := 0
		for _, l := range m.Lines {
			switch l.Type {
			case Speaker:
				text := or(tr.find(name, SpeakerID(name)), l.Text.String())
				out = append(out, strings.ReplaceAll(l.Format, "{text}", text))
			case Dialogue:
				out = append(out, rebuildDialogue(l, name, di, tr))
				di++
			default:
				if l.Format != "" {
					out = append(out, l.Format)
				}
			}
		}
		if ci < len(doc.Comments) {
			out = append(out, doc.Comments[ci])
		} else {
			out = append(out, "")
		}
		ci++
	}
	return strings.Join(out, "\n")
}

func rebuildDialogue(l Line, name string, di int, tr Texts) string {
	f := l.Format
	switch {
	case l.Text.Multi:
		for idx, seg := range l.Text.Parts {
			text := or(tr.find(name, SegmentID(name, di, idx)), seg)
			f = strings.Replace(f, fmt.Sprintf("{text%d}", idx), text, 1)
		}
	case numbered.MatchString(f):
		// single text but numbered placeholders: an edited document
		for idx := 0; ; idx++ {
			ph := fmt.Sprintf("{text%d}", idx)
			if !strings.Contains(f, ph) {
				break
			}
			if seg := tr.find(name, SegmentID(name, di, idx)); seg != "" {
				f = strings.Replace(f, ph, seg, 1)
			} else if idx == 0 {
				text := or(tr.find(name, DialogueID(name, di)), l.Text.String())
				f = strings.Replace(f, ph, text, 1)
			} else {
				f = strings.Replace(f, ph, "", 1)
			}
		}
	default:
		text := or(tr.find(name, DialogueID(name, di)), l.Text.String())
		f = strings.ReplaceAll(f, "{text}", text)
	}
	return numbered.ReplaceAllString(f, "")
}

func or(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
