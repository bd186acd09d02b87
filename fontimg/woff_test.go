package fontimg

import (
	"bytes"
	"encoding/binary"
	"sort"

	"golang.org/x/image/font/gofont/goregular"

	"p2ptloc/charset"
)

// toWOFF packs SFNT data into an uncompressed WOFF 1.0 container.
func toWOFF(sfnt []byte) []byte {
	type table struct {
		tag  string
		data []byte
	}
	n := int(binary.BigEndian.Uint16(sfnt[4:]))
	tables := make([]table, n)
	for i := range tables {
		rec := sfnt[12+16*i:]
		off := binary.BigEndian.Uint32(rec[8:])
		length := binary.BigEndian.Uint32(rec[12:])
		tables[i] = table{tag: string(rec[:4]), data: sfnt[off : off+length]}
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].tag < tables[j].tag })

	pad := func(b []byte) []byte {
		return append(append([]byte{}, b...), make([]byte, (4-len(b)%4)%4)...)
	}
	checksum := func(tag string, b []byte) uint32 {
		b = pad(b)
		if tag == "head" {
			copy(b[8:12], []byte{0, 0, 0, 0})
		}
		var sum uint32
		for i := 0; i < len(b); i += 4 {
			sum += binary.BigEndian.Uint32(b[i:])
		}
		return sum
	}

	be := binary.BigEndian
	dir := make([]byte, 0, 20*n)
	var body []byte
	offset := uint32(44 + 20*n)
	sfntSize := uint32(12 + 16*n)
	for _, t := range tables {
		dir = be.AppendUint32(dir, be.Uint32([]byte(t.tag)))
		dir = be.AppendUint32(dir, offset)
		dir = be.AppendUint32(dir, uint32(len(t.data))) // stored uncompressed
		dir = be.AppendUint32(dir, uint32(len(t.data)))
		dir = be.AppendUint32(dir, checksum(t.tag, t.data))
		padded := pad(t.data)
		body = append(body, padded...)
		offset += uint32(len(padded))
		sfntSize += uint32(len(padded))
	}

	var hdr []byte
	hdr = append(hdr, "wOFF"...)
	hdr = append(hdr, sfnt[:4]...) // flavor
	hdr = be.AppendUint32(hdr, offset)
	hdr = be.AppendUint16(hdr, uint16(n))
	hdr = be.AppendUint16(hdr, 0)
	hdr = be.AppendUint32(hdr, sfntSize)
	hdr = be.AppendUint16(hdr, 1)
	hdr = be.AppendUint16(hdr, 0)
	hdr = append(hdr, make([]byte, 20)...) // no metadata, no private block
	return bytes.Join([][]byte{hdr, dir, body}, nil)
}

func (env *FontImgTestEnviron) TestNewFaceFromWOFF() {
	woff := toWOFF(goregular.TTF)
	env.Equal("wOFF", string(woff[:4]))
	face, err := NewFace(woff, FontSize)
	env.Require().NoError(err)
	defer face.Close()

	page := charset.NewPage()
	page[0][0] = "W"
	page[1][3] = "g"
	want, wantGlyphs := RenderPage(env.face, page)
	got, gotGlyphs := RenderPage(face, page)
	env.Equal(wantGlyphs, gotGlyphs)
	env.True(bytes.Equal(want.Pix, got.Pix), "WOFF face renders like the TTF it wraps")
}

func (env *FontImgTestEnviron) TestUnwrapKeepsSFNT() {
	data, err := unwrap(goregular.TTF)
	env.Require().NoError(err)
	env.True(bytes.Equal(goregular.TTF, data))

	_, err = NewFace([]byte("wOFF\x00\x01\x00\x00"), FontSize)
	env.Error(err, "truncated WOFF")
	_, err = unwrap([]byte("ab"))
	env.NoError(err)
}
