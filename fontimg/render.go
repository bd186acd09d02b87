// Package fontimg renders the font pages of font.json into the PNG textures the
// game's GIM packer expects, and measures each glyph for font_info.json.
//
// A page is 256x256 pixels: a 16x16 grid of 16x16 cells, white glyphs on a
// transparent background. Glyphs are drawn left- and top-aligned, the way the
// game's renderer places them.
package fontimg

import (
	"fmt"
	"image"
	"os"

	"github.com/npillmayer/schuko/tracing"
	sfntfont "github.com/tdewolff/font"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"p2ptloc/charset"
)

// tracer traces with key 'p2pt.fontimg'
func tracer() tracing.Trace {
	return tracing.Select("p2pt.fontimg")
}

const (
	CellSize = 16
	PageSize = CellSize * charset.GridSize // 256
	FontSize = 12                          // pixel fonts are designed at 12px

	emptyWidth = 4 // width reported for a blank glyph
	maxWidth   = 14
)

// Glyph is one entry of font_info.json.
type Glyph struct {
	Char  string `json:"char"`
	Left  int    `json:"left"`
	Width int    `json:"width"`
}

// LoadFace opens an OpenType, TrueType, WOFF or WOFF2 font file at the given
// pixel size.
func LoadFace(path string, size float64) (font.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	face, err := NewFace(data, size)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return face, nil
}

// NewFace parses font data into an unhinted face at 72 DPI, so size is in pixels.
func NewFace(data []byte, size float64) (font.Face, error) {
	data, err := unwrap(data)
	if err != nil {
		return nil, err
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// unwrap returns the SFNT data of a WOFF or WOFF2 container, and any other data
// as is.
func unwrap(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return data, nil
	}
	switch string(data[:4]) {
	case "wOFF":
		tracer().Debugf("unpacking WOFF font")
		return sfntfont.ParseWOFF(data)
	case "wOF2":
		tracer().Debugf("unpacking WOFF2 font")
		return sfntfont.ParseWOFF2(data)
	}
	return data, nil
}

// CellRect is the pixel rectangle of cell (x, y) on a page.
func CellRect(x, y int) image.Rectangle {
	return image.Rect(x*CellSize, y*CellSize, (x+1)*CellSize, (y+1)*CellSize)
}

// DrawCell draws char into cell of dst. Nothing is drawn outside the cell.
//
// The pen starts at the cell's left edge on the ascender line. A glyph with
// negative left bearing is shifted right, and one reaching above the ascender is
// shifted down, so neither gets clipped on that side.
func DrawCell(dst *image.RGBA, face font.Face, cell image.Rectangle, char string) {
	if char == "" {
		return
	}
	sub, ok := dst.SubImage(cell).(*image.RGBA)
	if !ok {
		return
	}
	bounds, _ := font.BoundString(face, char)
	ascent := face.Metrics().Ascent

	var dx, dy fixed.Int26_6
	if bounds.Min.X < 0 {
		dx = -bounds.Min.X
	}
	if top := ascent + bounds.Min.Y; top < 0 {
		dy = -top
	}
	d := font.Drawer{
		Dst:  sub,
		Src:  image.White,
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(cell.Min.X) + fixed.I(dx.Ceil()),
			Y: fixed.I(cell.Min.Y) + fixed.I(dy.Ceil()) + ascent,
		},
	}
	d.DrawString(char)
}

// Analyze measures the glyph in cell: the leftmost column holding a visible pixel
// and the advance the game should use, one pixel wider than the ink and at most 14.
// A blank cell measures {0, 4}.
func Analyze(img *image.RGBA, cell image.Rectangle) (left, width int) {
	minX, maxX := CellSize, 0
	for y := cell.Min.Y; y < cell.Max.Y; y++ {
		for x := cell.Min.X; x < cell.Max.X; x++ {
			if img.RGBAAt(x, y).A == 0 {
				continue
			}
			cx := x - cell.Min.X
			if cx < minX {
				minX = cx
			}
			if cx > maxX {
				maxX = cx
			}
		}
	}
	if minX == CellSize {
		return 0, emptyWidth
	}
	return minX, min(maxX-minX+2, maxWidth)
}

// RenderPage draws every non-empty cell of page and returns the image together with
// the metrics of the drawn glyphs, in cell order.
func RenderPage(face font.Face, page charset.Page) (*image.RGBA, []Glyph) {
	img := image.NewRGBA(image.Rect(0, 0, PageSize, PageSize))
	var glyphs []Glyph
	for y := 0; y < charset.GridSize && y < len(page); y++ {
		for x := 0; x < charset.GridSize && x < len(page[y]); x++ {
			char := page[y][x]
			if char == "" {
				continue
			}
			cell := CellRect(x, y)
			DrawCell(img, face, cell, char)
			left, width := Analyze(img, cell)
			glyphs = append(glyphs, Glyph{Char: char, Left: left, Width: width})
		}
	}
	return img, glyphs
}
