package charset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"p2ptloc/remap"
)

// EventMap is the content of event.json: event code to character.
type EventMap map[int]string

// SyncEvent derives event.json from font.json alone. Every non-empty cell becomes
// an entry keyed by its cell code; an existing event.json plays no part.
func SyncEvent(f Font) EventMap {
	ev := make(EventMap, CharsPerPage)
	f.Each(func(code int, char string) {
		ev[code] = char
	})
	return ev
}

// Codes returns the event codes in ascending order.
func (e EventMap) Codes() []int {
	codes := make([]int, 0, len(e))
	for c := range e {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	return codes
}

// Range returns the lowest and highest code; ok is false for an empty map.
func (e EventMap) Range() (lo, hi int, ok bool) {
	codes := e.Codes()
	if len(codes) == 0 {
		return 0, 0, false
	}
	return codes[0], codes[len(codes)-1], true
}

// Table converts the map into a remap lookup table. Entries that are not a single
// character are dropped.
func (e EventMap) Table() remap.EventTable {
	t := make(remap.EventTable, len(e))
	for code, char := range e {
		if r, ok := singleRune(char); ok {
			t[code] = r
		}
	}
	return t
}

// MarshalJSON writes {"%04x": char} in code order.
func (e EventMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, code := range e.Codes() {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "\"%04x\":", code)
		v, err := marshalUnescaped(e[code])
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (e *EventMap) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = make(EventMap, len(raw))
	for k, v := range raw {
		s := strings.TrimPrefix(k, "0x")
		code, err := strconv.ParseUint(s, 16, 32)
		if err != nil {
			return fmt.Errorf("event.json: invalid code %q", k)
		}
		(*e)[int(code)] = v
	}
	return nil
}
