/*
Package pipeline runs the localization build: it loads the project file and
drives the ordered build steps, each one a separate process.

The project file is YAML:

	paths:
	  files_json: work/files.json
	  extraction: work/extract
	  font_json: work/font.json
	  event_json: work/event.json
	remap:
	  limit: 0x0D00
	  target: {section: main, address: 0x0021F6E0}
	sections:
	  main: {path: work/EBOOT.BIN, elf: true}
	iso:
	  command: [umdgen, build, work/iso]
	  output: out/game.iso
	  lock_delay: 3s

Relative paths are taken relative to the project file.
*/
package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/npillmayer/schuko/tracing"
	"gopkg.in/yaml.v3"

	"p2ptloc/remap"
)

// tracer traces with key 'p2pt.pipeline'
func tracer() tracing.Trace {
	return tracing.Select("p2pt.pipeline")
}

// DefaultLockDelay is how long the ISO step waits once for a locked output file.
const DefaultLockDelay = 3 * time.Second

// Config is the project file.
type Config struct {
	Paths    Paths                    `yaml:"paths"`
	Remap    Remap                    `yaml:"remap"`
	Sections map[string]SectionConfig `yaml:"sections"`
	ISO      ISO                      `yaml:"iso"`

	path string
}

// Paths locates every artifact of the build.
type Paths struct {
	FilesJSON     string `yaml:"files_json"`
	Extraction    string `yaml:"extraction"`
	AllJSON       string `yaml:"all_json"`
	AllTranslated string `yaml:"all_translated"`
	TextsDir      string `yaml:"texts_dir"`
	FontJSON      string `yaml:"font_json"`
	EventJSON     string `yaml:"event_json"`
	FontFile      string `yaml:"font_file"` // TTF/OTF used for the font pages
	ImageDir      string `yaml:"image_dir"`
	MsgOut        string `yaml:"msg_out"`
}

type Remap struct {
	Limit  int          `yaml:"limit"`
	Target TargetConfig `yaml:"target"`
}

type TargetConfig struct {
	Section string `yaml:"section"`
	Address uint32 `yaml:"address"`
}

type SectionConfig struct {
	Path string `yaml:"path"`
	Base uint32 `yaml:"base"`
	ELF  bool   `yaml:"elf"`
}

// ISO configures the external packaging step.
type ISO struct {
	Command   []string      `yaml:"command"`
	Output    string        `yaml:"output"`
	LockDelay time.Duration `yaml:"lock_delay"`
}

// Default returns the configuration used without a project file.
func Default() Config {
	c := Config{}
	c.applyDefaults()
	return c
}

// Load reads a project file and applies defaults for every field it leaves out.
// The file's path is made absolute, so the configuration stays valid for child
// processes started in another directory.
func Load(path string) (Config, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data, path)
}

// Parse decodes a project file; path anchors relative paths and may be empty.
func Parse(data []byte, path string) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	c.path = path
	c.applyDefaults()
	if path != "" {
		c.resolve(filepath.Dir(path))
	}
	tracer().Debugf("config %s: %+v", path, c)
	return c, nil
}

// Path returns the file the configuration was loaded from, or "".
func (c Config) Path() string {
	return c.path
}

// Dir is the project directory, which relative paths are anchored on and build
// steps run in. It is "" for a configuration not read from a file.
func (c Config) Dir() string {
	if c.path == "" {
		return ""
	}
	return filepath.Dir(c.path)
}

func (c *Config) applyDefaults() {
	p := &c.Paths
	def := func(s *string, v string) {
		if *s == "" {
			*s = v
		}
	}
	def(&p.FilesJSON, "files.json")
	def(&p.Extraction, "extract")
	def(&p.AllJSON, "json/all.json")
	def(&p.AllTranslated, "json/all_translated.json")
	def(&p.TextsDir, "json")
	def(&p.FontJSON, "font.json")
	def(&p.EventJSON, "event.json")
	def(&p.FontFile, "font.ttf")
	def(&p.ImageDir, "font")
	def(&p.MsgOut, "msg")
	def(&c.ISO.Output, "out.iso")
	if c.Remap.Limit == 0 {
		c.Remap.Limit = remap.DefaultLimit
	}
	if c.ISO.LockDelay == 0 {
		c.ISO.LockDelay = DefaultLockDelay
	}
}

func (c *Config) resolve(dir string) {
	abs := func(s *string) {
		if *s != "" && !filepath.IsAbs(*s) {
			*s = filepath.Join(dir, *s)
		}
	}
	p := &c.Paths
	for _, s := range []*string{&p.FilesJSON, &p.Extraction, &p.AllJSON, &p.AllTranslated,
		&p.TextsDir, &p.FontJSON, &p.EventJSON, &p.FontFile, &p.ImageDir, &p.MsgOut, &c.ISO.Output} {
		abs(s)
	}
	for name, s := range c.Sections {
		abs(&s.Path)
		c.Sections[name] = s
	}
}

// Image returns the section table for remap.
func (c Config) Image() remap.Sections {
	img := make(remap.Sections, len(c.Sections))
	for name, s := range c.Sections {
		img[name] = remap.Section{Path: s.Path, Base: s.Base, ELF: s.ELF}
	}
	return img
}

// Target returns the remap table location.
func (c Config) Target() remap.Target {
	return remap.Target{Section: c.Remap.Target.Section, Address: c.Remap.Target.Address}
}
