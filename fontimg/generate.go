package fontimg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/image/font"

	"p2ptloc/charset"
)

// Page range baked into the game's font archive.
const (
	FirstPage = 0
	LastPage  = 31

	gimBase = 5 // font0.png goes to 5.gim$
)

// ErrNoFilesJSON is returned by UpdateFilesJSON when files.json does not exist.
var ErrNoFilesJSON = errors.New("files.json not found")

// Options configures Generate.
type Options struct {
	Font      charset.Font
	Face      font.Face
	OutDir    string // receives font<N>.png and font_info.json
	FilesJSON string // optional; updated in place when set
	First     int
	Last      int
}

// Result summarizes a Generate run.
type Result struct {
	Pages        []int // generated page numbers
	Skipped      []int // pages in range missing from font.json
	Glyphs       int
	FilesUpdated int
	FilesMissing bool
}

// PageFile is the file name of a page image.
func PageFile(page int) string {
	return fmt.Sprintf("font%d.png", page)
}

// Generate renders all pages in [First, Last] that font.json contains, writes
// font_info.json for the rendered glyphs and registers the images in files.json.
// A missing files.json is reported in the result, not as an error.
func Generate(opts Options) (Result, error) {
	var res Result
	if opts.Face == nil {
		return res, errors.New("no font face")
	}
	if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
		return res, err
	}
	var glyphs []Glyph
	for n := opts.First; n <= opts.Last; n++ {
		page, ok := opts.Font[n]
		if !ok {
			tracer().Infof("page %d not in font.json, skipped", n)
			res.Skipped = append(res.Skipped, n)
			continue
		}
		img, g := RenderPage(opts.Face, page)
		path := filepath.Join(opts.OutDir, PageFile(n))
		if err := imgio.Save(path, img, imgio.PNGEncoder()); err != nil {
			return res, fmt.Errorf("save %s: %w", path, err)
		}
		tracer().Infof("generated %s (page %d, %d glyphs)", path, n, len(g))
		glyphs = append(glyphs, g...)
		res.Pages = append(res.Pages, n)
	}
	res.Glyphs = len(glyphs)

	if len(glyphs) > 0 {
		if err := SaveInfo(filepath.Join(opts.OutDir, "font_info.json"), glyphs); err != nil {
			return res, err
		}
	}
	if opts.FilesJSON != "" {
		n, err := UpdateFilesJSON(opts.FilesJSON, res.Pages)
		switch {
		case errors.Is(err, ErrNoFilesJSON):
			res.FilesMissing = true
		case err != nil:
			return res, err
		}
		res.FilesUpdated = n
	}
	return res, nil
}

// SaveInfo writes font_info.json, indented by four spaces.
func SaveInfo(path string, glyphs []Glyph) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(glyphs); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

type gimEntry struct {
	Path string  `json:"path"`
	Args gimArgs `json:"args"`
}

type gimArgs struct {
	UseSourcePalette bool `json:"useSourcePalette"`
	MatchPalette     bool `json:"matchPalette"`
}

// UpdateFilesJSON points files.json entries font<N>.png at their GIM slot
// (<5+N>.gim$/image.png). Entries already listing that path are kept as they are;
// all other content of the file is preserved. It returns the number of entries
// rewritten.
func UpdateFilesJSON(path string, pages []int) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, ErrNoFilesJSON
	} else if err != nil {
		return 0, err
	}
	updated := 0
	for _, n := range pages {
		gim := fmt.Sprintf("%d.gim$/image.png", gimBase+n)
		key := "files." + escapePath(PageFile(n))
		found := false
		gjson.GetBytes(data, key).ForEach(func(_, entry gjson.Result) bool {
			if entry.Get("path").String() == gim {
				found = true
				return false
			}
			return true
		})
		if found {
			continue
		}
		entry := []gimEntry{{Path: gim, Args: gimArgs{UseSourcePalette: true, MatchPalette: true}}}
		if data, err = sjson.SetBytes(data, key, entry); err != nil {
			return updated, fmt.Errorf("%s: set %s: %w", path, key, err)
		}
		updated++
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return updated, fmt.Errorf("%s: %w", path, err)
	}
	buf.WriteByte('\n')
	tracer().Infof("files.json: %d of %d font entries updated", updated, len(pages))
	return updated, os.WriteFile(path, buf.Bytes(), 0644)
}

// escapePath escapes gjson/sjson path metacharacters in a key.
func escapePath(key string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return r.Replace(key)
}
