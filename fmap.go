package flashprog

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// fmapSignature is the 8-byte ASCII marker an FMAP structure starts with,
// spec.md §6: "an 8-byte ASCII signature __FMAP__", grounded in
// original_source/fmap.h's FMAP_SIGNATURE.
var fmapSignature = []byte("__FMAP__")

const fmapAlignment = 64

// FMapArea is one {offset, size, name, flags} record, original_source's
// struct fmap_area.
type FMapArea struct {
	Offset uint32
	Size   uint32
	Name   string
	Flags  uint16
}

// FMap is the parsed flash-map binary structure (spec.md §6), original
// source's struct fmap.
type FMap struct {
	VerMajor, VerMinor uint8
	Base               uint64
	Size               uint32
	Name               string
	Areas              []FMapArea
}

// FindFMap scans image at 64-byte-aligned offsets for the __FMAP__
// signature and parses the first match, spec.md §6: "at some 64-byte-aligned
// offset in the image". Returns (nil, false) if none is present — the image
// may legitimately have no FMAP, a chip content builder input rather than a
// mandatory structure.
func FindFMap(image []byte) (*FMap, bool) {
	for off := 0; off+len(fmapSignature) <= len(image); off += fmapAlignment {
		if bytes.Equal(image[off:off+len(fmapSignature)], fmapSignature) {
			if m, err := parseFMapAt(image, off); err == nil {
				return m, true
			}
		}
	}
	return nil, false
}

func readFixedString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// parseFMapAt decodes the fixed header plus nareas records starting at off,
// little-endian throughout per spec.md §6.
func parseFMapAt(image []byte, off int) (*FMap, error) {
	const headerLen = 8 + 1 + 1 + 8 + 4 + 32 + 2
	if off+headerLen > len(image) {
		return nil, fmt.Errorf("%w: fmap header truncated", ErrInvalidLength)
	}
	p := image[off:]
	m := &FMap{
		VerMajor: p[8],
		VerMinor: p[9],
		Base:     binary.LittleEndian.Uint64(p[10:18]),
		Size:     binary.LittleEndian.Uint32(p[18:22]),
		Name:     readFixedString(p[22:54]),
	}
	nareas := binary.LittleEndian.Uint16(p[54:56])

	const areaLen = 4 + 4 + 32 + 2
	areasStart := off + headerLen
	if areasStart+int(nareas)*areaLen > len(image) {
		return nil, fmt.Errorf("%w: fmap areas truncated", ErrInvalidLength)
	}
	m.Areas = make([]FMapArea, nareas)
	for i := 0; i < int(nareas); i++ {
		a := image[areasStart+i*areaLen:]
		m.Areas[i] = FMapArea{
			Offset: binary.LittleEndian.Uint32(a[0:4]),
			Size:   binary.LittleEndian.Uint32(a[4:8]),
			Name:   readFixedString(a[8:40]),
			Flags:  binary.LittleEndian.Uint16(a[40:42]),
		}
	}
	return m, nil
}

// FindFMapArea does a name lookup across an FMap's areas.
func FindFMapArea(m *FMap, name string) (FMapArea, bool) {
	for _, a := range m.Areas {
		if a.Name == name {
			return a, true
		}
	}
	return FMapArea{}, false
}
