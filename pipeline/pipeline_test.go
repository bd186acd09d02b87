package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"p2ptloc/remap"
)

const project = `
paths:
  files_json: work/files.json
  font_json: /abs/font.json
remap:
  limit: 0x0C00
  target: {section: main, address: 0x0021F6E0}
sections:
  main: {path: work/EBOOT.BIN, elf: true}
  data: {path: work/data.bin, base: 0x08804000}
iso:
  command: [umdgen, build, iso]
  output: out/game.iso
  lock_delay: 250ms
`

func TestParseConfig(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "p2pt.pipeline")
	defer teardown()
	//
	c, err := Parse([]byte(project), "/proj/p2ptool.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/proj/p2ptool.yaml", c.Path())
	assert.Equal(t, 0x0C00, c.Remap.Limit)
	assert.Equal(t, remap.Target{Section: "main", Address: 0x0021F6E0}, c.Target())
	assert.Equal(t, "/proj/work/files.json", c.Paths.FilesJSON)
	assert.Equal(t, "/abs/font.json", c.Paths.FontJSON)
	assert.Equal(t, "/proj/event.json", c.Paths.EventJSON) // default, resolved
	assert.Equal(t, "/proj/out/game.iso", c.ISO.Output)
	assert.Equal(t, 250*time.Millisecond, c.ISO.LockDelay)
	assert.Equal(t, remap.Sections{
		"main": {Path: "/proj/work/EBOOT.BIN", ELF: true},
		"data": {Path: "/proj/work/data.bin", Base: 0x08804000},
	}, c.Image())
}

func TestConfigDefaults(t *testing.T) {
	c := Default()
	assert.Equal(t, remap.DefaultLimit, c.Remap.Limit)
	assert.Equal(t, DefaultLockDelay, c.ISO.LockDelay)
	assert.Equal(t, "font.json", c.Paths.FontJSON)
	assert.Empty(t, c.Path())
	assert.Empty(t, c.Dir())
}

func TestConfigUnknownField(t *testing.T) {
	_, err := Parse([]byte("remap:\n  lmit: 3\n"), "p.yaml")
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p2ptool.yaml")
	require.NoError(t, os.WriteFile(path, []byte(project), 0644))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "work", "files.json"), c.Paths.FilesJSON)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestStepsOrder(t *testing.T) {
	c, err := Parse([]byte(project), "/proj/p2ptool.yaml")
	require.NoError(t, err)
	steps := Steps(c, "/bin/p2ptool")
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	assert.Equal(t, Order, names)
	assert.Equal(t, Step{Name: Patch, Command: "/bin/p2ptool", Args: []string{"remap", "--config", "/proj/p2ptool.yaml"}}, steps[5])
	assert.Equal(t, Step{Name: BuildISO, Command: "umdgen", Args: []string{"build", "iso"}, Clean: "/proj/out/game.iso"}, steps[6])

	assert.Len(t, Steps(Default(), "p2ptool"), len(Order)-1) // no ISO command
}

func TestSelect(t *testing.T) {
	steps := Steps(Default(), "p2ptool")
	sel, err := Select(steps, MsgRebuild, "")
	require.NoError(t, err)
	assert.Equal(t, []Step{steps[4], steps[5]}, sel)

	sel, err = Select(steps, "", FontImages)
	require.NoError(t, err)
	assert.Equal(t, []Step{steps[2]}, sel)

	sel, err = Select(steps, "", "")
	require.NoError(t, err)
	assert.Equal(t, steps, sel)

	_, err = Select(steps, "bogus", "")
	assert.Error(t, err)
	_, err = Select(steps, FontJSON, FontJSON)
	assert.Error(t, err)
}

type fakeExec struct {
	ran    []string
	failOn string
}

func (f *fakeExec) Exec(ctx context.Context, command string, args ...string) error {
	f.ran = append(f.ran, fmt.Sprint(command, args))
	if len(args) > 0 && args[0] == f.failOn {
		return errors.New("exit status 1")
	}
	return nil
}

func TestRunAbortsOnFailure(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "p2pt.pipeline")
	defer teardown()
	//
	ex := &fakeExec{failOn: "font-images"}
	var started []string
	r := &Runner{Exec: ex, OnStep: func(s Step) { started = append(started, s.Name) }}
	err := r.Run(context.Background(), Steps(Default(), "p2ptool"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step font-images")
	assert.Equal(t, []string{UpdateJSON, FontJSON, FontImages}, started)
	assert.Len(t, ex.ran, 3)
}

func TestRunCleansLockedOutputOnce(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "p2pt.pipeline")
	defer teardown()
	//
	var slept []time.Duration
	var warnings []string
	ex := &fakeExec{}
	r := &Runner{
		Exec:      ex,
		LockDelay: time.Second,
		Remove:    func(string) error { return errors.New("file in use") },
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
		OnWarn: func(msg string) { warnings = append(warnings, msg) },
	}
	err := r.Run(context.Background(), []Step{{Name: BuildISO, Command: "umdgen", Clean: "game.iso"}})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second}, slept)
	assert.Len(t, warnings, 1)
	assert.Equal(t, []string{"umdgen[]"}, ex.ran)
}

func TestRunRemovesOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "game.iso")
	require.NoError(t, os.WriteFile(out, []byte("old"), 0644))
	r := &Runner{Exec: &fakeExec{}}
	require.NoError(t, r.Run(context.Background(), []Step{{Name: BuildISO, Command: "umdgen", Clean: out}}))
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))

	// already gone is fine
	require.NoError(t, r.Run(context.Background(), []Step{{Name: BuildISO, Command: "umdgen", Clean: out}}))
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ex := &fakeExec{}
	err := (&Runner{Exec: ex}).Run(ctx, Steps(Default(), "p2ptool"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ex.ran)
}

func TestExampleProjectFile(t *testing.T) {
	c, err := Load(filepath.Join("..", "p2ptool.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, remap.DefaultLimit, c.Remap.Limit)
	assert.Equal(t, "eboot", c.Target().Section)
	assert.True(t, c.Image()["eboot"].ELF)
	assert.Len(t, Steps(c, "p2ptool"), len(Order))
}

func TestLoadRelativePathIsAnchored(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "p2ptool.yaml"), []byte(project), 0644))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	c, err := Load(filepath.Join("sub", "p2ptool.yaml"))
	require.NoError(t, err)
	sub, err := filepath.Abs("sub")
	require.NoError(t, err)
	assert.Equal(t, sub, c.Dir())
	assert.Equal(t, filepath.Join(sub, "p2ptool.yaml"), c.Path())
	assert.Equal(t, filepath.Join(sub, "out", "game.iso"), c.ISO.Output)
}

func TestStepsForwardFlags(t *testing.T) {
	c, err := Parse([]byte(project), "/proj/p2ptool.yaml")
	require.NoError(t, err)
	steps := Steps(c, "p2ptool", "--trace", "Debug")
	assert.Equal(t, []string{"font-json", "--config", "/proj/p2ptool.yaml", "--trace", "Debug"}, steps[1].Args)
	assert.Equal(t, []string{"build", "iso"}, steps[6].Args) // external command untouched
}

func TestProcessExecutorRunsInDir(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no sh")
	}
	dir := t.TempDir()
	c, err := Parse([]byte("iso:\n  command: [sh, -c, \"echo x > game.iso\"]\n  output: game.iso\n"),
		filepath.Join(dir, "p2ptool.yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(c.ISO.Output, []byte("old"), 0644))
	steps, err := Select(Steps(c, "p2ptool"), "", BuildISO)
	require.NoError(t, err)

	r := &Runner{Exec: ProcessExecutor{Dir: c.Dir()}}
	require.NoError(t, r.Run(context.Background(), steps))
	data, err := os.ReadFile(filepath.Join(dir, "game.iso"))
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(data))
}
