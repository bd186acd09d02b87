package charset

import "unicode"

// Ranges used by Rebuild.
const (
	cjkFirst  = 0x4E00 // CJK Unified Ideographs
	cjkLast   = 0x9FFF
	cjkPage   = 2
	lastPage  = 31
	latinExtA = 0x0100
	latinEndA = 0x017F
)

// Rebuild generates a fresh font.json in code point order.
//
//	page 0     ASCII 0x20-0x7E
//	page 1     Latin Extended-A 0x0100-0x017F
//	page 2-31  CJK Unified Ideographs from 0x4E00, 256 per page
//
// Unprintable code points keep their cell empty.
func Rebuild() Font {
	f := make(Font)

	page0 := NewPage()
	fillPage(page0, 0x20, 0x7E)
	page0[0][0] = " "
	f[0] = page0

	page1 := NewPage()
	fillPage(page1, latinExtA, latinEndA)
	f[1] = page1

	next := rune(cjkFirst)
	for n := cjkPage; n <= lastPage; n++ {
		page := NewPage()
		_, next = fillPage(page, next, cjkLast)
		f[n] = page
		if next > cjkLast {
			break
		}
	}
	tracer().Infof("rebuilt font.json: %d pages, %d characters", len(f), f.Count())
	return f
}

// fillPage writes consecutive code points from start into the page's cells, row by
// row, until the page is full or end is passed. It returns the number of cells
// filled and the next code point.
func fillPage(p Page, start, end rune) (int, rune) {
	c := start
	filled := 0
	for y := 0; y < GridSize && c <= end; y++ {
		for x := 0; x < GridSize && c <= end; x++ {
			if printable(c) {
				p[y][x] = string(c)
				filled++
			}
			c++
		}
	}
	return filled, c
}

func printable(c rune) bool {
	if c <= 0x1F || c == 0x7F {
		return false
	}
	return unicode.IsPrint(c)
}
