/*
Package remap builds the character remap table of the event system.

The event engine of P2PT addresses glyphs with its own legacy numbering, while the
rebuilt font numbers its bitmap cells page by page. The remap table translates one
into the other:

	event code --EventCodes--> Unicode --FontCodes--> font code

The table holds one little-endian uint16 per event code below a configured limit and
is written into the executable image at a fixed address of a named section.
Event codes whose character has no cell in the font resolve to 0, the blank glyph.
Such gaps are reported as Miss values and never abort the build.
*/
package remap

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'p2pt.remap'
func tracer() tracing.Trace {
	return tracing.Select("p2pt.remap")
}
