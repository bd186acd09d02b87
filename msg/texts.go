package msg

import (
	"fmt"
	"strings"
)

// Item is one translatable string of a message.
type Item struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Texts holds items per message name.
type Texts map[string][]Item

func (t Texts) find(msg, id string) string {
	for _, it := range t[msg] {
		if it.ID == id {
			return it.Text
		}
	}
	return ""
}

// Item ids.
func SpeakerID(msg string) string { return msg + "_speaker" }

func DialogueID(msg string, i int) string { return fmt.Sprintf("%s_dialogue_%d", msg, i) }

func SegmentID(msg string, i, seg int) string {
	return fmt.Sprintf("%s_dialogue_%d_seg_%d", msg, i, seg)
}

// ExtractTexts lists the translatable strings of doc. Empty strings are left out,
// but every dialogue line advances the dialogue counter, so ids agree with Rebuild
// and Backfill.
func ExtractTexts(doc *Document) Texts {
	texts := make(Texts)
	if doc == nil {
		return texts
	}
	for _, name := range doc.Order {
		m := doc.Messages[name]
		if m == nil {
			continue
		}
		var items []Item
		di := 0
		for _, l := range m.Lines {
			switch l.Type {
			case Speaker:
				items = append(items, Item{ID: SpeakerID(name), Text: l.Text.String()})
			case Dialogue:
				if l.Text.Multi {
					for idx, seg := range l.Text.Parts {
						if seg != "" {
							items = append(items, Item{ID: SegmentID(name, di, idx), Text: seg})
						}
					}
				} else if s := l.Text.String(); s != "" {
					items = append(items, Item{ID: DialogueID(name, di), Text: s})
				}
				di++
			}
		}
		if len(items) > 0 {
			texts[name] = items
		}
	}
	return texts
}

// Strings returns every text of doc, for coverage checks.
func (doc *Document) Strings() []string {
	var out []string
	if doc == nil {
		return nil
	}
	for _, name := range doc.Order {
		m := doc.Messages[name]
		if m == nil {
			continue
		}
		for _, l := range m.Lines {
			for _, p := range l.Text.Parts {
				if p != "" {
					out = append(out, p)
				}
			}
		}
	}
	return out
}

func isDialogueOf(id, msg string) bool {
	return strings.HasPrefix(id, msg+"_dialogue_")
}
