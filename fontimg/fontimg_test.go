package fontimg

import (
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"p2ptloc/charset"
)

// --- Test Suite Preparation ------------------------------------------------

type FontImgTestEnviron struct {
	suite.Suite
	face font.Face
}

func TestFontImg(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "p2pt.fontimg")
	defer teardown()
	suite.Run(t, new(FontImgTestEnviron))
}

func (env *FontImgTestEnviron) SetupSuite() {
	tracing.Select("p2pt.fontimg").SetTraceLevel(tracing.LevelError)
	face, err := NewFace(goregular.TTF, FontSize)
	env.Require().NoError(err)
	env.face = face
	tracing.Select("p2pt.fontimg").SetTraceLevel(tracing.LevelInfo)
}

// --- Tests -----------------------------------------------------------------

func (env *FontImgTestEnviron) TestAnalyzeBlankCell() {
	img := image.NewRGBA(image.Rect(0, 0, PageSize, PageSize))
	left, width := Analyze(img, CellRect(3, 4))
	env.Equal(0, left)
	env.Equal(4, width)
}

func (env *FontImgTestEnviron) TestAnalyzeInk() {
	img := image.NewRGBA(image.Rect(0, 0, PageSize, PageSize))
	cell := CellRect(1, 0)
	for x := 3; x <= 6; x++ {
		img.SetRGBA(cell.Min.X+x, cell.Min.Y+5, color.RGBA{255, 255, 255, 255})
	}
	left, width := Analyze(img, cell)
	env.Equal(3, left)
	env.Equal(5, width)

	for x := 0; x < CellSize; x++ {
		img.SetRGBA(cell.Min.X+x, cell.Min.Y, color.RGBA{255, 255, 255, 10})
	}
	left, width = Analyze(img, cell)
	env.Equal(0, left)
	env.Equal(14, width, "width is capped")
}

func (env *FontImgTestEnviron) TestRenderPageStaysInCells() {
	page := charset.NewPage()
	page[0][0] = "W"
	page[2][5] = "g"
	img, glyphs := RenderPage(env.face, page)
	env.Equal(image.Rect(0, 0, 256, 256), img.Bounds())
	env.Require().Len(glyphs, 2)
	env.Equal("W", glyphs[0].Char)
	env.Equal("g", glyphs[1].Char)
	env.Greater(glyphs[0].Width, 4)

	inked := func(r image.Rectangle) bool {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				if img.RGBAAt(x, y).A > 0 {
					return true
				}
			}
		}
		return false
	}
	env.True(inked(CellRect(0, 0)))
	env.True(inked(CellRect(5, 2)))
	for y := 0; y < charset.GridSize; y++ {
		for x := 0; x < charset.GridSize; x++ {
			if (x == 0 && y == 0) || (x == 5 && y == 2) {
				continue
			}
			env.False(inked(CellRect(x, y)), "cell (%d,%d) must stay transparent", x, y)
		}
	}
}

func (env *FontImgTestEnviron) TestGenerate() {
	dir := env.T().TempDir()
	files := filepath.Join(dir, "files.json")
	env.Require().NoError(os.WriteFile(files, []byte(`{
  "extra": 1,
  "files": {
    "other.png": [{"path": "1.gim$/image.png"}],
    "font2.png": [{"path": "7.gim$/image.png", "args": {"keep": true}}]
  }
}`), 0644))

	f := charset.Font{0: charset.NewPage(), 2: charset.NewPage()}
	f[0][0][1] = "A"
	f[2][0][0] = "B"
	res, err := Generate(Options{
		Font:      f,
		Face:      env.face,
		OutDir:    dir,
		FilesJSON: files,
		First:     0,
		Last:      3,
	})
	env.Require().NoError(err)
	env.Equal([]int{0, 2}, res.Pages)
	env.Equal([]int{1, 3}, res.Skipped)
	env.Equal(2, res.Glyphs)
	env.Equal(1, res.FilesUpdated)
	env.False(res.FilesMissing)

	img, err := imgio.Open(filepath.Join(dir, "font0.png"))
	env.Require().NoError(err)
	env.Equal(256, img.Bounds().Dx())

	var info []Glyph
	data, err := os.ReadFile(filepath.Join(dir, "font_info.json"))
	env.Require().NoError(err)
	env.Require().NoError(json.Unmarshal(data, &info))
	env.Require().Len(info, 2)
	env.Equal("A", info[0].Char)

	out, err := os.ReadFile(files)
	env.Require().NoError(err)
	env.Equal(int64(1), gjson.GetBytes(out, "extra").Int())
	env.Equal("1.gim$/image.png", gjson.GetBytes(out, `files.other\.png.0.path`).String())
	env.Equal("5.gim$/image.png", gjson.GetBytes(out, `files.font0\.png.0.path`).String())
	env.True(gjson.GetBytes(out, `files.font0\.png.0.args.matchPalette`).Bool())
	env.True(gjson.GetBytes(out, `files.font2\.png.0.args.keep`).Bool(), "matching entry untouched")
}

func (env *FontImgTestEnviron) TestMissingFilesJSON() {
	dir := env.T().TempDir()
	f := charset.Font{0: charset.NewPage()}
	f[0][0][0] = "x"
	res, err := Generate(Options{
		Font:      f,
		Face:      env.face,
		OutDir:    dir,
		FilesJSON: filepath.Join(dir, "files.json"),
		First:     FirstPage,
		Last:      LastPage,
	})
	env.Require().NoError(err)
	env.True(res.FilesMissing)
	env.Len(res.Skipped, 31)
}
