// Package charset handles the locale character tables: font.json, the page grid of
// the rebuilt font, and event.json, the event code table derived from it.
package charset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/npillmayer/schuko/tracing"

	"p2ptloc/remap"
)

// tracer traces with key 'p2pt.charset'
func tracer() tracing.Trace {
	return tracing.Select("p2pt.charset")
}

const (
	GridSize     = 16
	CharsPerPage = GridSize * GridSize
)

// Page is a 16x16 grid of characters, indexed [y][x]. "" marks an empty cell.
// Pages read from disk may have short rows; missing cells count as empty.
type Page [][]string

// NewPage returns a page with all cells empty.
func NewPage() Page {
	p := make(Page, GridSize)
	for y := range p {
		p[y] = make([]string, GridSize)
	}
	return p
}

// Cell returns the character at (x, y), "" if absent.
func (p Page) Cell(x, y int) string {
	if y < 0 || y >= len(p) || x < 0 || x >= len(p[y]) {
		return ""
	}
	return p[y][x]
}

// Code is the binary code of cell (x, y) on a page. Event and font codes share it.
func Code(page, x, y int) int {
	return page*CharsPerPage + y*GridSize + x
}

// Font is the content of font.json: pages keyed by page number.
type Font map[int]Page

// Pages returns the page numbers in ascending order.
func (f Font) Pages() []int {
	nums := make([]int, 0, len(f))
	for n := range f {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// Each calls fn for every non-empty cell, in code order.
func (f Font) Each(fn func(code int, char string)) {
	for _, n := range f.Pages() {
		page := f[n]
		for y := 0; y < GridSize && y < len(page); y++ {
			for x := 0; x < GridSize && x < len(page[y]); x++ {
				if c := page[y][x]; c != "" {
					fn(Code(n, x, y), c)
				}
			}
		}
	}
}

// Count returns the number of non-empty cells.
func (f Font) Count() int {
	n := 0
	f.Each(func(int, string) { n++ })
	return n
}

// Codes returns the font code table: character to cell code.
// If a character occupies several cells, the highest code wins.
func (f Font) Codes() remap.FontTable {
	t := make(remap.FontTable)
	f.Each(func(code int, char string) {
		r, ok := singleRune(char)
		if !ok {
			tracer().Infof("font cell 0x%04x holds %q, not a single character", code, char)
			return
		}
		if code > 0xffff {
			tracer().Errorf("font cell 0x%x does not fit 16 bits", code)
			return
		}
		t[r] = uint16(code)
	})
	return t
}

func singleRune(s string) (rune, bool) {
	r, size := utf8.DecodeRuneInString(s)
	return r, s != "" && size == len(s) && utf8.ValidString(s)
}

// MarshalJSON writes pages in numeric order.
func (f Font) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range f.Pages() {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%q:", strconv.Itoa(n))
		page, err := marshalUnescaped(f[n])
		if err != nil {
			return nil, err
		}
		buf.Write(page)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (f *Font) UnmarshalJSON(data []byte) error {
	var raw map[string]Page
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = make(Font, len(raw))
	for k, p := range raw {
		n, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("font.json: invalid page number %q", k)
		}
		(*f)[n] = p
	}
	return nil
}

// marshalUnescaped marshals v without HTML escaping and without trailing newline.
func marshalUnescaped(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
