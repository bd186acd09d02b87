/*
Command p2ptool is the localization build tool.

Every build step is a subcommand; "build" runs them all in order, each as its
own process:

	p2ptool --config p2ptool.yaml build
	p2ptool remap --image EBOOT.BIN --elf --section main --address 0x0021F6E0
	p2ptool msg-extract --files files.json --extraction extract --out json/all.json

Paths not given as flags come from the project file (p2ptool.yaml in the current
directory when --config is not set).
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strconv"

	"github.com/alexflint/go-arg"
	"github.com/npillmayer/schuko/schukonf/testconfig"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"
	"github.com/npillmayer/schuko/tracing/trace2go"
	"github.com/pterm/pterm"

	"p2ptloc/pipeline"
)

// tracer traces with key 'p2pt.cli'
func tracer() tracing.Trace {
	return tracing.Select("p2pt.cli")
}

var traceKeys = []string{"p2pt.cli", "p2pt.remap", "p2pt.charset", "p2pt.fontimg", "p2pt.msg", "p2pt.pipeline"}

// defaultConfig is read when --config is not given and the file exists.
const defaultConfig = "p2ptool.yaml"

type args struct {
	Config string `arg:"-c,--config" help:"project file"`
	Trace  string `arg:"--trace" default:"Error" help:"trace level [Debug|Info|Error]"`

	Remap      *remapCmd      `arg:"subcommand:remap" help:"write the character remap table into the executable"`
	FontJSON   *fontJSONCmd   `arg:"subcommand:font-json" help:"rebuild font.json from the character ranges"`
	FontImages *fontImagesCmd `arg:"subcommand:font-images" help:"render font pages and update files.json"`
	EventJSON  *eventJSONCmd  `arg:"subcommand:event-json" help:"derive event.json from font.json"`
	MsgExtract *msgExtractCmd `arg:"subcommand:msg-extract" help:"parse all .msg files into all.json"`
	MsgTexts   *msgTextsCmd   `arg:"subcommand:msg-texts" help:"collect speakers.json and texts.json from all.json"`
	MsgUpdate  *msgUpdateCmd  `arg:"subcommand:msg-update" help:"write translations back into all.json"`
	MsgRebuild *msgRebuildCmd `arg:"subcommand:msg-rebuild" help:"write .msg files from all.json"`
	Coverage   *coverageCmd   `arg:"subcommand:coverage" help:"list characters of the texts missing from font.json"`
	Build      *buildCmd      `arg:"subcommand:build" help:"run the build steps in order"`
}

func (args) Description() string {
	return "p2ptool builds the localized game data: fonts, event tables, messages and the remap patch.\n"
}

type command interface {
	run(ctx context.Context, cfg pipeline.Config) error
}

func main() {
	initDisplay()
	var a args
	p := arg.MustParse(&a)
	if p.Subcommand() == nil {
		p.Fail("missing subcommand")
	}
	if err := setupTracing(a.Trace); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	cfg, err := loadConfig(a.Config)
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := p.Subcommand().(command)
	if b, ok := cmd.(*buildCmd); ok {
		b.trace = a.Trace
	}
	if err := cmd.run(ctx, cfg); err != nil {
		pterm.Error.Printf("%v\n", err)
		stop()
		os.Exit(1)
	}
}

func initDisplay() {
	pterm.Info.Prefix = pterm.Prefix{
		Text:  " INFO ",
		Style: pterm.NewStyle(pterm.BgCyan, pterm.FgBlack),
	}
	pterm.Error.Prefix = pterm.Prefix{
		Text:  " ERROR ",
		Style: pterm.NewStyle(pterm.BgRed, pterm.FgBlack),
	}
}

func setupTracing(level string) error {
	tracing.RegisterTraceAdapter("go", gologadapter.GetAdapter(), false)
	conf := testconfig.Conf{"tracing.adapter": "go"}
	for _, key := range traceKeys {
		conf["trace."+key] = "Error"
	}
	if err := trace2go.ConfigureRoot(conf, "trace", trace2go.ReplaceTracers(true)); err != nil {
		return fmt.Errorf("configuring tracing: %w", err)
	}
	tracing.SetTraceSelector(trace2go.Selector())
	switch level {
	case "Debug", "Info", "Error":
	default:
		return fmt.Errorf("invalid trace level: %s", level)
	}
	for _, key := range traceKeys {
		t := tracing.Select(key)
		switch level {
		case "Debug":
			t.SetTraceLevel(tracing.LevelDebug)
		case "Info":
			t.SetTraceLevel(tracing.LevelInfo)
		default:
			t.SetTraceLevel(tracing.LevelError)
		}
	}
	tracer().Infof("trace level is %s", level)
	return nil
}

func loadConfig(path string) (pipeline.Config, error) {
	if path == "" {
		if _, err := os.Stat(defaultConfig); errors.Is(err, fs.ErrNotExist) {
			return pipeline.Default(), nil
		}
		path = defaultConfig
	}
	return pipeline.Load(path)
}

// or returns the flag value if set, else the configured one.
func or(flag, configured string) string {
	if flag != "" {
		return flag
	}
	return configured
}

// parseUint32 accepts decimal, 0x hex and 0o octal.
func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return uint32(v), nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
