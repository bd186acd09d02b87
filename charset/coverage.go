package charset

import (
	"unicode"

	"golang.org/x/text/unicode/norm"

	"p2ptloc/remap"
)

// Coverage returns the characters of text that the font cannot display, each once,
// in order of first appearance. Text is NFC-normalized first so that decomposed
// input matches precomposed cells. Control characters are ignored.
func Coverage(codes remap.FontCodes, text string) []rune {
	var missing []rune
	seen := make(map[rune]bool)
	for _, r := range norm.NFC.String(text) {
		if unicode.IsControl(r) || seen[r] {
			continue
		}
		seen[r] = true
		if _, ok := codes.Lookup(r); !ok {
			missing = append(missing, r)
		}
	}
	return missing
}

// Encode translates text into font codes, the way the game's text importer expects
// it. Characters without a glyph are returned in missing and skipped in the output.
func Encode(codes remap.FontCodes, text string) (out []uint16, missing []rune) {
	for _, r := range norm.NFC.String(text) {
		if unicode.IsControl(r) {
			continue
		}
		c, ok := codes.Lookup(r)
		if !ok {
			missing = append(missing, r)
			continue
		}
		out = append(out, c)
	}
	return out, missing
}
