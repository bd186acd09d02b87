package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pterm/pterm"

	"p2ptloc/charset"
	"p2ptloc/fontimg"
	"p2ptloc/msg"
	"p2ptloc/pipeline"
	"p2ptloc/remap"
)

// --- remap -----------------------------------------------------------------

type remapCmd struct {
	Events    string `arg:"--events" help:"event.json (hex code -> character)"`
	Font      string `arg:"--font" help:"font.json pages"`
	FontTable string `arg:"--font-table" help:"flat character -> font code JSON, instead of --font"`
	Image     string `arg:"--image" help:"file holding the target section"`
	Base      string `arg:"--base" help:"load address of --image when it is a raw dump"`
	ELF       bool   `arg:"--elf" help:"--image is an ELF executable"`
	Section   string `arg:"--section" help:"target section name"`
	Address   string `arg:"--address" help:"target address of the table"`
	Limit     int    `arg:"--limit" help:"number of table entries"`
}

func (c *remapCmd) run(ctx context.Context, cfg pipeline.Config) error {
	events, err := remap.LoadEventTable(or(c.Events, cfg.Paths.EventJSON))
	if err != nil {
		return err
	}
	var fonts remap.FontTable
	if c.FontTable != "" {
		fonts, err = remap.LoadFontTable(c.FontTable)
	} else {
		var f charset.Font
		f, err = charset.LoadFont(or(c.Font, cfg.Paths.FontJSON))
		fonts = f.Codes()
	}
	if err != nil {
		return err
	}

	target := cfg.Target()
	target.Section = or(c.Section, target.Section)
	if c.Address != "" {
		if target.Address, err = parseUint32(c.Address); err != nil {
			return err
		}
	}
	image := cfg.Image()
	if c.Image != "" {
		sec := remap.Section{Path: c.Image, ELF: c.ELF}
		if c.Base != "" {
			if sec.Base, err = parseUint32(c.Base); err != nil {
				return err
			}
		}
		image[target.Section] = sec
	}
	limit := c.Limit
	if limit == 0 {
		limit = cfg.Remap.Limit
	}

	job := remap.Job{
		Events: events,
		Fonts:  fonts,
		Limit:  limit,
		Target: target,
		Image:  image,
		OnMiss: func(m remap.Miss) { pterm.Warning.Println(m.String()) },
	}
	report, err := job.Run()
	if err != nil {
		return err
	}
	pterm.Success.Printf("写入完成 / Wrote %d entries for %s to %s at offset 0x%x\n",
		report.Entries, target, report.Placement.Path, report.Placement.Offset)
	pterm.Info.Printf("未映射 / Unmapped: %d\n", len(report.Misses))
	return nil
}

// --- fonts -----------------------------------------------------------------

type fontJSONCmd struct {
	Out string `arg:"-o,--out" help:"font.json to write"`
}

func (c *fontJSONCmd) run(ctx context.Context, cfg pipeline.Config) error {
	f := charset.Rebuild()
	out := or(c.Out, cfg.Paths.FontJSON)
	if err := charset.SaveFont(out, f); err != nil {
		return err
	}
	pterm.Success.Printf("wrote %s: %d pages, %d characters\n", out, len(f.Pages()), f.Count())
	return nil
}

type fontImagesCmd struct {
	Font  string  `arg:"--font" help:"font.json"`
	TTF   string  `arg:"--ttf" help:"TrueType/OpenType font to render with"`
	Out   string  `arg:"-o,--out" help:"output directory for font<N>.png"`
	Files string  `arg:"--files" help:"files.json to register the pages in"`
	First int     `arg:"--first" default:"0" help:"first page"`
	Last  int     `arg:"--last" default:"31" help:"last page"`
	Size  float64 `arg:"--size" default:"12" help:"font size in pixels"`
}

func (c *fontImagesCmd) run(ctx context.Context, cfg pipeline.Config) error {
	f, err := charset.LoadFont(or(c.Font, cfg.Paths.FontJSON))
	if err != nil {
		return err
	}
	face, err := fontimg.LoadFace(or(c.TTF, cfg.Paths.FontFile), c.Size)
	if err != nil {
		return err
	}
	defer face.Close()
	out := or(c.Out, cfg.Paths.ImageDir)
	res, err := fontimg.Generate(fontimg.Options{
		Font:      f,
		Face:      face,
		OutDir:    out,
		FilesJSON: or(c.Files, cfg.Paths.FilesJSON),
		First:     c.First,
		Last:      c.Last,
	})
	if err != nil {
		return err
	}
	if len(res.Skipped) > 0 {
		pterm.Warning.Printf("pages not in font.json: %v\n", res.Skipped)
	}
	if res.FilesMissing {
		pterm.Warning.Println("files.json not found, page images not registered")
	}
	pterm.Success.Printf("rendered %d pages (%d glyphs) into %s, %d files.json entries updated\n",
		len(res.Pages), res.Glyphs, out, res.FilesUpdated)
	return nil
}

type eventJSONCmd struct {
	Font string `arg:"--font" help:"font.json"`
	Out  string `arg:"-o,--out" help:"event.json to write"`
}

func (c *eventJSONCmd) run(ctx context.Context, cfg pipeline.Config) error {
	f, err := charset.LoadFont(or(c.Font, cfg.Paths.FontJSON))
	if err != nil {
		return err
	}
	ev := charset.SyncEvent(f)
	out := or(c.Out, cfg.Paths.EventJSON)
	if err := charset.SaveEvent(out, ev); err != nil {
		return err
	}
	if lo, hi, ok := ev.Range(); ok {
		pterm.Success.Printf("wrote %s: %d codes, 0x%04x..0x%04x\n", out, len(ev), lo, hi)
	} else {
		pterm.Warning.Printf("wrote %s: no characters in font.json\n", out)
	}
	return nil
}

// --- messages --------------------------------------------------------------

type msgExtractCmd struct {
	Files      string `arg:"--files" help:"files.json listing the .msg files"`
	Extraction string `arg:"--extraction" help:"directory the files.json paths are relative to"`
	Out        string `arg:"-o,--out" help:"all.json to write"`
}

func (c *msgExtractCmd) run(ctx context.Context, cfg pipeline.Config) error {
	all, failed, err := msg.ExtractAll(or(c.Files, cfg.Paths.FilesJSON), or(c.Extraction, cfg.Paths.Extraction))
	if err != nil {
		return err
	}
	for _, f := range failed {
		pterm.Warning.Printf("%s: not extracted\n", f)
	}
	out := or(c.Out, cfg.Paths.AllJSON)
	if err := msg.SaveAll(out, all); err != nil {
		return err
	}
	pterm.Success.Printf("提取完成 / Extracted %d files into %s\n", len(all), out)
	return nil
}

type msgTextsCmd struct {
	All string `arg:"--all" help:"all.json"`
	Out string `arg:"-o,--out" help:"directory for speakers.json and texts.json"`
}

func (c *msgTextsCmd) run(ctx context.Context, cfg pipeline.Config) error {
	all, err := msg.LoadAll(or(c.All, cfg.Paths.AllJSON))
	if err != nil {
		return err
	}
	speakers, texts := msg.CollectTexts(all)
	dir := or(c.Out, cfg.Paths.TextsDir)
	if err := msg.WriteJSON(filepath.Join(dir, msg.SpeakersFile), speakers); err != nil {
		return err
	}
	if err := msg.WriteJSON(filepath.Join(dir, msg.TextsFile), texts); err != nil {
		return err
	}
	n := 0
	for _, d := range texts {
		n += len(d)
	}
	pterm.Success.Printf("%d speakers, %d dialogue texts written to %s\n", len(speakers), n, dir)
	return nil
}

type msgUpdateCmd struct {
	All      string `arg:"--all" help:"all.json"`
	Texts    string `arg:"--texts" help:"directory with the texts and speakers files"`
	Out      string `arg:"-o,--out" help:"translated all.json to write"`
	Original bool   `arg:"--original" help:"use texts.json even if texts_translated.json exists"`
}

func (c *msgUpdateCmd) run(ctx context.Context, cfg pipeline.Config) error {
	all, err := msg.LoadAll(or(c.All, cfg.Paths.AllJSON))
	if err != nil {
		return err
	}
	tr, err := msg.LoadTranslations(or(c.Texts, cfg.Paths.TextsDir), c.Original)
	if err != nil {
		return err
	}
	if tr.Source == "" {
		pterm.Warning.Println("no texts file found, only speaker names are applied")
	}
	updated := msg.Backfill(all, tr)
	out := or(c.Out, cfg.Paths.AllTranslated)
	if err := msg.SaveAll(out, all); err != nil {
		return err
	}
	pterm.Success.Printf("updated %d of %d files into %s\n", len(updated), len(all), out)
	return nil
}

type msgRebuildCmd struct {
	All        string `arg:"--all" help:"all.json (defaults to the translated one when it exists)"`
	Out        string `arg:"-o,--out" help:"output directory for .msg files"`
	Files      string `arg:"--files" help:"files.json naming the .msg and .script files"`
	Extraction string `arg:"--extraction" help:"directory holding the original .script files"`
}

func (c *msgRebuildCmd) run(ctx context.Context, cfg pipeline.Config) error {
	src := c.All
	if src == "" {
		src = cfg.Paths.AllJSON
		if exists(cfg.Paths.AllTranslated) {
			src = cfg.Paths.AllTranslated
		}
	}
	all, err := msg.LoadAll(src)
	if err != nil {
		return err
	}
	out := or(c.Out, cfg.Paths.MsgOut)
	res, err := msg.RebuildAll(all, out, or(c.Files, cfg.Paths.FilesJSON), or(c.Extraction, cfg.Paths.Extraction))
	if err != nil {
		return err
	}
	for _, s := range res.MissingScripts {
		pterm.Warning.Printf("script not found: %s\n", s)
	}
	keys := make([]string, 0, len(res.Failed))
	for k := range res.Failed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pterm.Error.Printf("%s: %v\n", k, res.Failed[k])
	}
	pterm.Success.Printf("重建完成 / Rebuilt %d .msg files and copied %d scripts into %s\n", len(res.Rebuilt), res.Scripts, out)
	if len(keys) > 0 {
		return fmt.Errorf("%d files failed", len(keys))
	}
	return nil
}

// --- checks ----------------------------------------------------------------

type coverageCmd struct {
	Font string `arg:"--font" help:"font.json"`
	All  string `arg:"--all" help:"all.json to check (defaults to the translated one)"`
	Max  int    `arg:"--max" default:"50" help:"list at most this many characters"`
}

func (c *coverageCmd) run(ctx context.Context, cfg pipeline.Config) error {
	f, err := charset.LoadFont(or(c.Font, cfg.Paths.FontJSON))
	if err != nil {
		return err
	}
	all, err := msg.LoadAll(or(c.All, cfg.Paths.AllTranslated))
	if err != nil {
		return err
	}
	codes := f.Codes()
	counts := make(map[rune]int)
	files := make(map[rune]string)
	for _, key := range all.Keys() {
		for _, s := range all[key].Strings() {
			for _, r := range charset.Coverage(codes, s) {
				if counts[r] == 0 {
					files[r] = key
				}
				counts[r]++
			}
		}
	}
	if len(counts) == 0 {
		pterm.Success.Println("every character of the texts is in font.json")
		return nil
	}
	missing := make([]rune, 0, len(counts))
	for r := range counts {
		missing = append(missing, r)
	}
	sort.Slice(missing, func(i, j int) bool {
		if counts[missing[i]] != counts[missing[j]] {
			return counts[missing[i]] > counts[missing[j]]
		}
		return missing[i] < missing[j]
	})
	data := [][]string{{"Char", "Code point", "Uses", "First file"}}
	for i, r := range missing {
		if i == c.Max {
			break
		}
		data = append(data, []string{string(r), fmt.Sprintf("U+%04X", r), strconv.Itoa(counts[r]), files[r]})
	}
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	pterm.Warning.Printf("%d characters missing from font.json\n", len(missing))
	return nil
}

// --- build -----------------------------------------------------------------

type buildCmd struct {
	From string `arg:"--from" help:"start at this step"`
	Only string `arg:"--only" help:"run only this step"`
	List bool   `arg:"--list" help:"list the steps and exit"`

	trace string // trace level handed on to the built-in steps
}

func (c *buildCmd) run(ctx context.Context, cfg pipeline.Config) error {
	self, err := os.Executable()
	if err != nil {
		return err
	}
	var flags []string
	if c.trace != "" {
		flags = []string{"--trace", c.trace}
	}
	steps := pipeline.Steps(cfg, self, flags...)
	if c.List {
		data := [][]string{{"Step", "Command"}}
		for _, s := range steps {
			data = append(data, []string{s.Name, fmt.Sprint(filepath.Base(s.Command), s.Args)})
		}
		pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		return nil
	}
	if len(cfg.ISO.Command) == 0 {
		pterm.Warning.Println("no iso.command configured, the ISO step is left out")
	}
	steps, err = pipeline.Select(steps, c.From, c.Only)
	if err != nil {
		return err
	}
	if err := newRunner(cfg).Run(ctx, steps); err != nil {
		return err
	}
	pterm.Success.Printf("构建完成 / Build completed: %d steps\n", len(steps))
	return nil
}

// newRunner runs the steps in the project directory, where the relative paths of
// iso.command and iso.output point.
func newRunner(cfg pipeline.Config) *pipeline.Runner {
	return &pipeline.Runner{
		Exec:      pipeline.ProcessExecutor{Dir: cfg.Dir(), Stdout: os.Stdout, Stderr: os.Stderr},
		LockDelay: cfg.ISO.LockDelay,
		OnStep:    func(s pipeline.Step) { pterm.Info.Printf("▶ 步骤 / Step: %s\n", s.Name) },
		OnWarn:    func(m string) { pterm.Warning.Println(m) },
	}
}
