package remap

import (
	"fmt"
	"os"
)

// Write stores table at target inside img.
//
// The file must already exist and be large enough to hold the whole table at the
// resolved offset; Write never creates or grows a file. Bytes outside the table's
// range are left untouched.
func Write(img Image, target Target, table Table) (Placement, error) {
	pl, err := img.Resolve(target.Section, target.Address)
	if err != nil {
		return pl, fmt.Errorf("resolve %s: %w", target, err)
	}
	data := table.Bytes()

	f, err := os.OpenFile(pl.Path, os.O_RDWR, 0644)
	if err != nil {
		return pl, fmt.Errorf("open target image: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return pl, fmt.Errorf("stat %s: %w", pl.Path, err)
	}
	if end := pl.Offset + int64(len(data)); end > info.Size() {
		f.Close()
		return pl, fmt.Errorf("table of %d bytes at 0x%x exceeds %s (size 0x%x)",
			len(data), pl.Offset, pl.Path, info.Size())
	}
	if _, err := f.WriteAt(data, pl.Offset); err != nil {
		f.Close()
		return pl, fmt.Errorf("write %s at 0x%x: %w", pl.Path, pl.Offset, err)
	}
	if err := f.Close(); err != nil {
		return pl, fmt.Errorf("close %s: %w", pl.Path, err)
	}
	tracer().Infof("wrote %d entries (%d bytes) to %s at 0x%x", len(table), len(data), pl.Path, pl.Offset)
	return pl, nil
}
