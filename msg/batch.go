package msg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// All is the content of all.json: every extracted .msg keyed by file base name.
// A key may hold a nil document when all.json has null for it.
type All map[string]*Document

// ErrNoDocument is reported for a file whose all.json entry is null.
var ErrNoDocument = errors.New("no document")

// Keys returns the file keys in sorted order.
func (a All) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entry is one dialogue item of texts.json. A dialogue before any speaker line
// has an empty Speaker, written as null.
type Entry struct {
	Msg     string `json:"msg"`
	Speaker string `json:"speaker"`
	ID      string `json:"id"`
	Text    string `json:"text"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	var speaker *string
	if e.Speaker != "" {
		speaker = &e.Speaker
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(struct {
		Msg     string  `json:"msg"`
		Speaker *string `json:"speaker"`
		ID      string  `json:"id"`
		Text    string  `json:"text"`
	}{e.Msg, speaker, e.ID, e.Text})
	return bytes.TrimRight(buf.Bytes(), "\n"), err
}

// File names inside the texts directory.
const (
	SpeakersFile           = "speakers.json"
	SpeakersTranslatedFile = "speakers_translated.json"
	TextsFile              = "texts.json"
	TextsTranslatedFile    = "texts_translated.json"
)

// FileEntry is a "files" entry of files.json whose value is a source path.
type FileEntry struct {
	Key  string // e.g. E0000.msg
	Path string // relative to the extraction directory
}

// LoadFileEntries reads the path entries of a files.json, in file order. Entries
// whose value is not a string (image slots) are skipped.
func LoadFileEntries(path string) ([]FileEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%s: invalid JSON", path)
	}
	var entries []FileEntry
	gjson.GetBytes(data, "files").ForEach(func(k, v gjson.Result) bool {
		if v.Type == gjson.String {
			entries = append(entries, FileEntry{Key: k.String(), Path: v.String()})
		}
		return true
	})
	return entries, nil
}

// ExtractAll parses every .msg listed in files.json from the extraction directory.
// Files that are missing or fail to parse are returned in failed; the rest are
// still extracted.
func ExtractAll(filesJSON, base string) (All, []string, error) {
	entries, err := LoadFileEntries(filesJSON)
	if err != nil {
		return nil, nil, err
	}
	all := make(All)
	var failed []string
	for _, e := range entries {
		if !strings.HasSuffix(e.Key, ".msg") {
			continue
		}
		path := filepath.Join(base, e.Path)
		doc, err := ParseFile(path)
		if err != nil {
			tracer().Errorf("extract %s: %v", e.Key, err)
			failed = append(failed, e.Key)
			continue
		}
		all[strings.TrimSuffix(e.Key, ".msg")] = doc
	}
	tracer().Infof("extracted %d .msg files, %d failed", len(all), len(failed))
	return all, failed, nil
}

// CollectTexts gathers the strings to translate from all documents: the distinct
// speaker names, and per file the dialogue items tagged with their speaker.
func CollectTexts(all All) (speakers map[string]string, texts map[string][]Entry) {
	speakers = make(map[string]string)
	texts = make(map[string][]Entry)
	for _, key := range all.Keys() {
		doc := all[key]
		if doc == nil {
			continue
		}
		items := ExtractTexts(doc)
		dialogues := []Entry{}
		for _, name := range doc.Order {
			current := ""
			for _, it := range items[name] {
				switch {
				case it.ID == SpeakerID(name):
					if _, ok := speakers[it.Text]; !ok {
						speakers[it.Text] = ""
					}
					current = it.Text
				case isDialogueOf(it.ID, name):
					dialogues = append(dialogues, Entry{Msg: name, Speaker: current, ID: it.ID, Text: it.Text})
				}
			}
		}
		texts[key] = dialogues
	}
	return speakers, texts
}

// Translations is what Backfill needs from the texts directory.
type Translations struct {
	Texts    map[string][]Entry
	Speakers map[string]string // original name -> translated name
	Source   string            // texts file used, "" when none was found
}

// LoadTranslations reads the texts directory. texts_translated.json is preferred
// over texts.json unless original is set; speakers_translated.json is preferred
// over speakers.json. Speaker names start out mapped to themselves, and only
// non-blank translations override them.
func LoadTranslations(dir string, original bool) (Translations, error) {
	tr := Translations{Texts: map[string][]Entry{}, Speakers: map[string]string{}}

	textsPath := filepath.Join(dir, TextsFile)
	if !original {
		if p := filepath.Join(dir, TextsTranslatedFile); exists(p) {
			textsPath = p
		}
	}
	if exists(textsPath) {
		if err := readJSON(textsPath, &tr.Texts); err != nil {
			return tr, err
		}
		tr.Source = textsPath
		for _, key := range sortedKeys(tr.Texts) {
			for _, d := range tr.Texts[key] {
				if d.Speaker != "" {
					if _, ok := tr.Speakers[d.Speaker]; !ok {
						tr.Speakers[d.Speaker] = d.Speaker
					}
				}
			}
		}
	}

	for _, name := range []string{SpeakersTranslatedFile, SpeakersFile} {
		p := filepath.Join(dir, name)
		if !exists(p) {
			continue
		}
		var names map[string]string
		if err := readJSON(p, &names); err != nil {
			return tr, err
		}
		for orig, s := range names {
			if strings.TrimSpace(s) != "" {
				tr.Speakers[orig] = s
			}
		}
		break
	}
	return tr, nil
}

// Backfill writes translations into the documents of all, in place, and returns
// the keys of the documents it touched. A document is skipped when it has no
// translated dialogue and no speaker name is known at all.
func Backfill(all All, tr Translations) []string {
	anySpeaker := false
	for _, s := range tr.Speakers {
		if s != "" {
			anySpeaker = true
			break
		}
	}
	var updated []string
	for _, key := range all.Keys() {
		if all[key] == nil {
			tracer().Errorf("%s: %v, skipped", key, ErrNoDocument)
			continue
		}
		items := tr.Texts[key]
		if len(items) == 0 && !anySpeaker {
			tracer().Infof("no translation for %s, skipped", key)
			continue
		}
		backfillDocument(all[key], tr.Speakers, items)
		updated = append(updated, key)
	}
	return updated
}

func backfillDocument(doc *Document, speakers map[string]string, items []Entry) {
	byMsg := make(map[string]map[string]string)
	for _, d := range items {
		if byMsg[d.Msg] == nil {
			byMsg[d.Msg] = make(map[string]string)
		}
		byMsg[d.Msg][d.ID] = d.Text
	}
	for _, name := range doc.Order {
		m := doc.Messages[name]
		if m == nil {
			continue
		}
		for i := range m.Lines {
			if m.Lines[i].Type != Speaker {
				continue
			}
			if s := speakers[m.Lines[i].Text.String()]; s != "" {
				m.Lines[i].Text = Single(s)
			}
			break
		}
		translated, ok := byMsg[name]
		if !ok {
			continue
		}
		di := 0
		for i := range m.Lines {
			l := &m.Lines[i]
			if l.Type != Dialogue {
				continue
			}
			if l.Text.Multi {
				parts := make([]string, len(l.Text.Parts))
				for idx, seg := range l.Text.Parts {
					parts[idx] = or(translated[SegmentID(name, di, idx)], seg)
				}
				l.Text = Segments(parts...)
			} else if s, ok := translated[DialogueID(name, di)]; ok {
				l.Text = Single(s)
			}
			di++
		}
	}
}

// RebuildResult summarizes RebuildAll.
type RebuildResult struct {
	Rebuilt        []string
	Scripts        int
	MissingScripts []string
	Failed         map[string]error
}

// RebuildAll writes one .msg per document into outDir. Output names come from the
// .msg entries of files.json when given, otherwise "<key>.msg". With an extraction
// directory, the original .script listed in files.json is copied next to each
// rebuilt message file.
func RebuildAll(all All, outDir, filesJSON, extraction string) (RebuildResult, error) {
	res := RebuildResult{Failed: map[string]error{}}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return res, err
	}
	msgNames := map[string]string{}
	scripts := map[string]string{}
	if filesJSON != "" && exists(filesJSON) {
		entries, err := LoadFileEntries(filesJSON)
		if err != nil {
			return res, err
		}
		for _, e := range entries {
			switch {
			case strings.HasSuffix(e.Key, ".msg"):
				msgNames[strings.TrimSuffix(e.Key, ".msg")] = e.Key
			case strings.HasSuffix(e.Key, ".script"):
				scripts[strings.TrimSuffix(e.Key, ".script")] = e.Path
			}
		}
	}
	for _, key := range all.Keys() {
		if all[key] == nil {
			res.Failed[key] = ErrNoDocument
			continue
		}
		name, ok := msgNames[key]
		if !ok {
			name = key + ".msg"
		}
		out := filepath.Join(outDir, name)
		if err := os.WriteFile(out, []byte(Rebuild(all[key], nil)), 0644); err != nil {
			res.Failed[key] = err
			continue
		}
		res.Rebuilt = append(res.Rebuilt, key)

		src, ok := scripts[key]
		if extraction == "" || !ok {
			continue
		}
		from := filepath.Join(extraction, src)
		if !exists(from) {
			res.MissingScripts = append(res.MissingScripts, from)
			continue
		}
		if err := copyFile(from, filepath.Join(outDir, key+".script")); err != nil {
			res.Failed[key] = err
			continue
		}
		res.Scripts++
	}
	return res, nil
}

// copyFile copies src to dst, keeping the modification time.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// LoadAll reads all.json.
func LoadAll(path string) (All, error) {
	var all All
	if err := readJSON(path, &all); err != nil {
		return nil, err
	}
	return all, nil
}

// SaveAll writes all.json.
func SaveAll(path string, all All) error {
	return WriteJSON(path, all)
}

// WriteJSON writes v as UTF-8 JSON indented by two spaces, creating the parent
// directory.
func WriteJSON(path string, v any) error {
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

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
