package remap

import (
	"bytes"
	"strings"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildScenario(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "p2pt.remap")
	defer teardown()
	//
	ev := EventTable{0: 'A', 1: 'B'}
	fc := FontTable{'A': 5}
	table, misses := Build(ev, fc, 3)
	assert.Equal(t, Table{5, 0, 0}, table)
	require.Len(t, misses, 1)
	assert.Equal(t, Miss{Index: 1, Char: 'B'}, misses[0])
}

func TestBuildEmptyEvents(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "p2pt.remap")
	defer teardown()
	//
	table, misses := Build(EventTable{}, FontTable{'A': 1, 'B': 2}, 10)
	assert.Equal(t, make(Table, 10), table)
	assert.Empty(t, misses)
}

func TestBuildLengthIndependentOfInputs(t *testing.T) {
	ev := EventTable{}
	for i := 0; i < 5000; i++ {
		ev[i] = '字'
	}
	fc := FontTable{'字': 0x0300}
	for _, limit := range []int{0, 1, OriginalLimit, ExtendedLimit, DefaultLimit} {
		table, misses := Build(ev, fc, limit)
		assert.Len(t, table, limit)
		assert.Empty(t, misses)
	}
	table, _ := Build(ev, fc, -4)
	assert.Len(t, table, 0)
}

func TestBuildProperties(t *testing.T) {
	ev := EventTable{0: 'あ', 2: '一', 3: '丁', 7: 'Z', 9000: 'A'}
	fc := FontTable{'あ': 0x0211, '一': 0x0200, 'Z': 0x005a, 'A': 0x0041}
	table, misses := Build(ev, fc, 16)
	for i, v := range table {
		u, ok := ev[i]
		if !ok {
			assert.Zero(t, v, "unset event code %d must map to 0", i)
			continue
		}
		if want, ok := fc[u]; ok {
			assert.Equal(t, want, v, "event code %d", i)
		} else {
			assert.Zero(t, v, "unmapped character at %d must map to 0", i)
		}
	}
	// code 9000 is beyond the limit and must not be reported
	assert.Equal(t, []Miss{{Index: 3, Char: '丁'}}, misses)
}

func TestBuildOneMissPerIndex(t *testing.T) {
	ev := EventTable{1: '?', 4: '?', 5: '?'}
	table, misses := Build(ev, FontTable{}, 6)
	assert.Equal(t, make(Table, 6), table)
	require.Len(t, misses, 3)
	assert.Equal(t, []int{1, 4, 5}, []int{misses[0].Index, misses[1].Index, misses[2].Index})
	assert.Contains(t, misses[0].String(), "0x0001")
	assert.Contains(t, misses[0].String(), "U+003F")
}

func TestBuildIdempotent(t *testing.T) {
	ev := EventTable{0: 'a', 1: 'b', 2: 'c', 100: 'd'}
	fc := FontTable{'a': 0x1234, 'c': 0xfffe, 'd': 7}
	t1, _ := Build(ev, fc, 256)
	t2, _ := Build(ev, fc, 256)
	assert.True(t, bytes.Equal(t1.Bytes(), t2.Bytes()))
}

func TestTableBytesLittleEndian(t *testing.T) {
	table := Table{0x0102, 0xa0b0, 0}
	assert.Equal(t, []byte{0x02, 0x01, 0xb0, 0xa0, 0x00, 0x00}, table.Bytes())
	b, err := table.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, b, 6)
}

func TestParseEventTable(t *testing.T) {
	src := `{"0000": " ", "0x0041": "A", "00ff": "", "0200": "一"}`
	ev, err := ParseEventTable(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, EventTable{0: ' ', 0x41: 'A', 0x200: '一'}, ev)

	_, err = ParseEventTable(strings.NewReader(`{"zz": "A"}`))
	assert.Error(t, err)
	_, err = ParseEventTable(strings.NewReader(`{"0001": "AB"}`))
	assert.Error(t, err)
}

func TestParseFontTable(t *testing.T) {
	fc, err := ParseFontTable(strings.NewReader(`{"A": 65, "一": 512}`))
	require.NoError(t, err)
	assert.Equal(t, FontTable{'A': 65, '一': 512}, fc)

	_, err = ParseFontTable(strings.NewReader(`{"AB": 1}`))
	assert.Error(t, err)
	_, err = ParseFontTable(strings.NewReader(`{"A": 70000}`))
	assert.Error(t, err)
}

func TestParseReplacementCharacter(t *testing.T) {
	ev, err := ParseEventTable(strings.NewReader(`{"0010": "�"}`))
	require.NoError(t, err)
	assert.Equal(t, EventTable{0x10: '�'}, ev)

	fc, err := ParseFontTable(strings.NewReader(`{"�": 7}`))
	require.NoError(t, err)
	assert.Equal(t, FontTable{'�': 7}, fc)
}

func TestSingleRune(t *testing.T) {
	for _, s := range []string{"A", "一", "�"} {
		_, ok := singleRune(s)
		assert.True(t, ok, "%q", s)
	}
	for _, s := range []string{"", "AB", "\xff", "\xe4\xb8"} {
		_, ok := singleRune(s)
		assert.False(t, ok, "%q", s)
	}
}
