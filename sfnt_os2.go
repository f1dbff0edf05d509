package font

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

type os2Table struct {
	Version             uint16
	XAvgCharWidth       int16
	UsWeightClass       uint16
	UsWidthClass        uint16
	FsType              uint16
	YSubscriptXSize     int16
	YSubscriptYSize     int16
	YSubscriptXOffset   int16
	YSubscriptYOffset   int16
	YSuperscriptXSize   int16
	YSuperscriptYSize   int16
	YSuperscriptXOffset int16
	YSuperscriptYOffset int16
	YStrikeoutSize      int16
	YStrikeoutPosition  int16
	SFamilyClass        int16
	Panose              [10]byte
	AchVendID           [4]byte
	FsSelection         uint16
	UsFirstCharIndex    uint16
	UsLastCharIndex     uint16
	STypoAscender       int16
	STypoDescender      int16
	STypoLineGap        int16
	UsWinAscent         uint16
	UsWinDescent        uint16
	SxHeight            int16
	SCapHeight          int16
}

// os2MinLength is the minimum table length per version, version 0 may stop before the typographic metrics.
var os2MinLength = []int{68, 86, 96, 96, 96, 100}

func (sfnt *SFNT) parseOS2() error {
	b, ok := sfnt.Tables["OS/2"]
	if !ok {
		return fmt.Errorf("OS/2: missing table")
	} else if len(b) < 68 {
		return fmt.Errorf("OS/2: bad table")
	}

	r := NewBinaryReader(b)
	os2 := &os2Table{}
	os2.Version = r.ReadUint16()
	if 5 < os2.Version {
		return fmt.Errorf("OS/2: bad version")
	} else if len(b) < os2MinLength[os2.Version] {
		return fmt.Errorf("OS/2: bad table")
	}
	os2.XAvgCharWidth = r.ReadInt16()
	os2.UsWeightClass = r.ReadUint16()
	os2.UsWidthClass = r.ReadUint16()
	os2.FsType = r.ReadUint16()
	os2.YSubscriptXSize = r.ReadInt16()
	os2.YSubscriptYSize = r.ReadInt16()
	os2.YSubscriptXOffset = r.ReadInt16()
	os2.YSubscriptYOffset = r.ReadInt16()
	os2.YSuperscriptXSize = r.ReadInt16()
	os2.YSuperscriptYSize = r.ReadInt16()
	os2.YSuperscriptXOffset = r.ReadInt16()
	os2.YSuperscriptYOffset = r.ReadInt16()
	os2.YStrikeoutSize = r.ReadInt16()
	os2.YStrikeoutPosition = r.ReadInt16()
	os2.SFamilyClass = r.ReadInt16()
	copy(os2.Panose[:], r.ReadBytes(10))
	_ = r.ReadBytes(16) // ulUnicodeRange1-4
	copy(os2.AchVendID[:], r.ReadBytes(4))
	os2.FsSelection = r.ReadUint16()
	os2.UsFirstCharIndex = r.ReadUint16()
	os2.UsLastCharIndex = r.ReadUint16()
	if 78 <= len(b) {
		os2.STypoAscender = r.ReadInt16()
		os2.STypoDescender = r.ReadInt16()
		os2.STypoLineGap = r.ReadInt16()
		os2.UsWinAscent = r.ReadUint16()
		os2.UsWinDescent = r.ReadUint16()
	}
	if 2 <= os2.Version {
		_ = r.ReadBytes(8) // ulCodePageRange1-2
		os2.SxHeight = r.ReadInt16()
		os2.SCapHeight = r.ReadInt16()
	}
	if r.EOF() {
		return fmt.Errorf("OS/2: %w", ErrInvalidFontData)
	}
	sfnt.OS2 = os2
	return nil
}

// os2WidthPercentages are the wdth axis values of usWidthClass 1 to 9.
var os2WidthPercentages = []float64{50.0, 62.5, 75.0, 87.5, 100.0, 112.5, 125.0, 150.0, 200.0}

// os2WeightClass returns usWeightClass for a wght axis value.
func os2WeightClass(wght float64) uint16 {
	return uint16(math.Max(1.0, math.Min(1000.0, math.Round(wght))))
}

// os2WidthClass returns the usWidthClass whose width percentage is closest to the wdth axis value.
func os2WidthClass(wdth float64) uint16 {
	i := sort.SearchFloat64s(os2WidthPercentages, wdth)
	if i == len(os2WidthPercentages) {
		return uint16(len(os2WidthPercentages))
	} else if 0 < i && wdth-os2WidthPercentages[i-1] < os2WidthPercentages[i]-wdth {
		return uint16(i)
	}
	return uint16(i + 1)
}

// updateOS2Classes sets usWeightClass and usWidthClass from the wght and wdth axis values of an instance. Axes that are absent leave their field untouched.
func updateOS2Classes(tables Tables, user map[string]float64) {
	os2, ok := tables["OS/2"]
	if !ok || len(os2) < 8 {
		return
	}
	wght, hasWght := user["wght"]
	wdth, hasWdth := user["wdth"]
	if !hasWght && !hasWdth {
		return
	}

	os2 = append([]byte{}, os2...)
	if hasWght {
		binary.BigEndian.PutUint16(os2[4:], os2WeightClass(wght))
	}
	if hasWdth {
		binary.BigEndian.PutUint16(os2[6:], os2WidthClass(wdth))
	}
	tables["OS/2"] = os2
}
