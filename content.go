package flashprog

import (
	"fmt"
	"sort"
)

// RegionOverride is one `-i <name>[:<file>]` selector resolved to bytes
// (spec.md §4.7): the source material to splice into newContents at the
// named layout region.
type RegionOverride struct {
	Region LayoutRegion
	Data   []byte
}

// BuildContent merges base (the -w image, or a full read of the current
// chip when no -w was given) with overrides in ascending region order,
// spec.md §4.7: "apply region overrides in ascending region order: for
// every region present in the external layout specification, copy the
// corresponding bytes... into new_contents[region.start..=region.end].
// Overlap between named regions is an error."
func BuildContent(base []byte, overrides []RegionOverride) ([]byte, error) {
	sorted := make([]RegionOverride, len(overrides))
	copy(sorted, overrides)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Region.Start < sorted[j].Region.Start })

	newContents := make([]byte, len(base))
	copy(newContents, base)

	var prevEnd uint32
	havePrev := false
	for _, ov := range sorted {
		r := ov.Region
		if havePrev && r.Start <= prevEnd {
			return nil, fmt.Errorf("%w: region %q overlaps preceding region (starts at 0x%x, preceding ends at 0x%x)",
				ErrInvalidArgument, r.Name, r.Start, prevEnd)
		}
		if int(r.End) >= len(newContents) {
			return nil, fmt.Errorf("%w: region %q end 0x%x exceeds image size", ErrInvalidArgument, r.Name, r.End)
		}
		want := int(r.End-r.Start) + 1
		if len(ov.Data) != want {
			return nil, fmt.Errorf("%w: region %q expects %d bytes, got %d", ErrInvalidLength, r.Name, want, len(ov.Data))
		}
		copy(newContents[r.Start:r.End+1], ov.Data)
		prevEnd = r.End
		havePrev = true
	}

	return newContents, nil
}
