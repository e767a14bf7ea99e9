package flashprog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLayoutFile(t *testing.T) {
	input := "00000000:0000ffff BOOT\n00010000:0001ffff FW_MAIN\n"
	regions, err := ParseLayoutFile(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, regions, 2)
	require.Equal(t, LayoutRegion{Start: 0, End: 0xffff, Name: "BOOT"}, regions[0])
	require.Equal(t, LayoutRegion{Start: 0x10000, End: 0x1ffff, Name: "FW_MAIN"}, regions[1])
}

func TestParseLayoutFileRejectsBlankLines(t *testing.T) {
	input := "00000000:0000ffff BOOT\n\n"
	_, err := ParseLayoutFile(strings.NewReader(input))
	require.Error(t, err)
}

func TestParseLayoutFileRejectsEndBeforeStart(t *testing.T) {
	input := "0000ffff:00000000 BOOT\n"
	_, err := ParseLayoutFile(strings.NewReader(input))
	require.Error(t, err)
}

func TestFindRegionCaseSensitive(t *testing.T) {
	regions := []LayoutRegion{{Start: 0, End: 0xff, Name: "Boot"}}
	_, ok := FindRegion(regions, "boot")
	require.False(t, ok)

	r, ok := FindRegion(regions, "Boot")
	require.True(t, ok)
	require.Equal(t, uint32(0xff), r.End)
}
