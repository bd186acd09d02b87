package remap

import (
	"encoding/binary"
	"fmt"
)

// Limits of the remap table, in entries.
//
// The original event table of the game ends at OriginalLimit. DefaultLimit leaves
// headroom for the extended character set and stays below the data that follows the
// table in memory. The value is curated by hand, nothing checks it against the image.
const (
	OriginalLimit = 2885   // 0x0B45
	ExtendedLimit = 0x0C00 // 3072
	DefaultLimit  = 0x0D00 // 3328
)

// EventCodes maps an event binary code to the character it displays.
type EventCodes interface {
	Lookup(code int) (rune, bool)
}

// FontCodes maps a character to the font binary code of its glyph.
type FontCodes interface {
	Lookup(r rune) (uint16, bool)
}

// EventTable is an in-memory EventCodes.
type EventTable map[int]rune

func (t EventTable) Lookup(code int) (rune, bool) {
	r, ok := t[code]
	return r, ok
}

// FontTable is an in-memory FontCodes.
type FontTable map[rune]uint16

func (t FontTable) Lookup(r rune) (uint16, bool) {
	c, ok := t[r]
	return c, ok
}

// Miss records an event code whose character has no glyph in the font.
type Miss struct {
	Index int
	Char  rune
}

func (m Miss) String() string {
	return fmt.Sprintf("index 0x%04x: U+%04X %q has no font code", m.Index, m.Char, m.Char)
}

// Table is the remap table, indexed by event code.
type Table []uint16

// Build resolves every event code in [0, limit) to a font code.
//
// Unset event codes resolve to 0 silently. Characters missing from the font resolve
// to 0 as well and are returned as misses, in index order. The table always has
// exactly limit entries.
func Build(ev EventCodes, fc FontCodes, limit int) (Table, []Miss) {
	if limit < 0 {
		limit = 0
	}
	table := make(Table, limit)
	var misses []Miss
	for i := 0; i < limit; i++ {
		u, ok := ev.Lookup(i)
		if !ok {
			continue
		}
		v, ok := fc.Lookup(u)
		if !ok {
			misses = append(misses, Miss{Index: i, Char: u})
			continue
		}
		table[i] = v
	}
	return table, misses
}

// Bytes serializes the table as consecutive little-endian uint16 values.
func (t Table) Bytes() []byte {
	buf := make([]byte, len(t)*2)
	for i, v := range t {
		binary.LittleEndian.PutUint16(buf[i*2:], v)
	}
	return buf
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (t Table) MarshalBinary() ([]byte, error) {
	return t.Bytes(), nil
}
