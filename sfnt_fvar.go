package font

import (
	"fmt"
	"sort"
)

// VariationAxis is an axis record of the fvar table, values are in user space.
type VariationAxis struct {
	Tag     string
	Min     float64
	Default float64
	Max     float64
	Flags   uint16
	NameID  NameID
}

// IsHidden returns true if the axis should not be exposed in user interfaces.
func (axis VariationAxis) IsHidden() bool {
	return axis.Flags&0x0001 != 0
}

// NamedInstance is an instance record of the fvar table.
type NamedInstance struct {
	SubfamilyNameID  NameID
	PostScriptNameID NameID // zero if absent
	Coordinates      []float64
}

// FvarTable is the font variations table.
type FvarTable struct {
	Axes      []VariationAxis
	Instances []NamedInstance
}

// Axis returns the axis with the given tag.
func (fvar *FvarTable) Axis(tag string) (VariationAxis, bool) {
	for _, axis := range fvar.Axes {
		if axis.Tag == tag {
			return axis, true
		}
	}
	return VariationAxis{}, false
}

// AxisIndex returns the index of the axis, or -1.
func (fvar *FvarTable) AxisIndex(tag string) int {
	for i, axis := range fvar.Axes {
		if axis.Tag == tag {
			return i
		}
	}
	return -1
}

// AxisTags returns the axis tags in fvar order.
func (fvar *FvarTable) AxisTags() []string {
	tags := make([]string, len(fvar.Axes))
	for i, axis := range fvar.Axes {
		tags[i] = axis.Tag
	}
	return tags
}

// ParseFvar parses the fvar table.
func ParseFvar(b []byte) (*FvarTable, error) {
	r := NewBinaryReader(b)
	majorVersion := r.ReadUint16()
	minorVersion := r.ReadUint16()
	axesArrayOffset := r.ReadUint16()
	_ = r.ReadUint16() // reserved
	axisCount := r.ReadUint16()
	axisSize := r.ReadUint16()
	instanceCount := r.ReadUint16()
	instanceSize := r.ReadUint16()
	if r.EOF() {
		return nil, fmt.Errorf("fvar: %w", ErrInvalidFontData)
	} else if majorVersion != 1 || minorVersion != 0 {
		return nil, fmt.Errorf("fvar: bad version")
	} else if axisSize != 20 {
		return nil, fmt.Errorf("fvar: bad axis size")
	} else if instanceSize != 4+4*axisCount && instanceSize != 6+4*axisCount {
		return nil, fmt.Errorf("fvar: bad instance size")
	}
	length := uint32(axesArrayOffset) + uint32(axisCount)*uint32(axisSize) + uint32(instanceCount)*uint32(instanceSize)
	if uint32(len(b)) < length {
		return nil, fmt.Errorf("fvar: %w", ErrInvalidFontData)
	}

	fvar := &FvarTable{}
	fvar.Axes = make([]VariationAxis, axisCount)
	r.Seek(uint32(axesArrayOffset))
	for i := range fvar.Axes {
		axis := VariationAxis{}
		axis.Tag = r.ReadString(4)
		axis.Min = r.ReadFixed()
		axis.Default = r.ReadFixed()
		axis.Max = r.ReadFixed()
		axis.Flags = r.ReadUint16()
		axis.NameID = NameID(r.ReadUint16())
		if axis.Default < axis.Min || axis.Max < axis.Default {
			return nil, fmt.Errorf("fvar: bad range for axis %q", axis.Tag)
		}
		fvar.Axes[i] = axis
	}

	hasPostScriptName := instanceSize == 6+4*axisCount
	fvar.Instances = make([]NamedInstance, instanceCount)
	for i := range fvar.Instances {
		instance := NamedInstance{}
		instance.SubfamilyNameID = NameID(r.ReadUint16())
		_ = r.ReadUint16() // flags
		instance.Coordinates = make([]float64, axisCount)
		for j := range instance.Coordinates {
			instance.Coordinates[j] = r.ReadFixed()
		}
		if hasPostScriptName {
			instance.PostScriptNameID = NameID(r.ReadUint16())
			if instance.PostScriptNameID == 0xFFFF {
				instance.PostScriptNameID = 0
			}
		}
		fvar.Instances[i] = instance
	}
	return fvar, nil
}

////////////////////////////////////////////////////////////////

type avarAxisValueMap struct {
	From, To float64
}

// AvarTable is the axis variations table, mapping default normalized coordinates to modified ones per axis.
type AvarTable struct {
	SegmentMaps [][]avarAxisValueMap
}

// ParseAvar parses the avar table. The axis count must match the fvar table.
func ParseAvar(b []byte, axisCount int) (*AvarTable, error) {
	r := NewBinaryReader(b)
	majorVersion := r.ReadUint16()
	_ = r.ReadUint16() // minorVersion
	_ = r.ReadUint16() // reserved
	n := r.ReadUint16()
	if r.EOF() {
		return nil, fmt.Errorf("avar: %w", ErrInvalidFontData)
	} else if majorVersion != 1 {
		return nil, fmt.Errorf("avar: bad version")
	} else if int(n) != axisCount {
		return nil, fmt.Errorf("avar: axis count must match fvar")
	}

	avar := &AvarTable{}
	avar.SegmentMaps = make([][]avarAxisValueMap, n)
	for i := range avar.SegmentMaps {
		positionMapCount := r.ReadUint16()
		if r.Len() < 4*uint32(positionMapCount) {
			return nil, fmt.Errorf("avar: %w", ErrInvalidFontData)
		}
		segments := make([]avarAxisValueMap, positionMapCount)
		for j := range segments {
			segments[j].From = r.ReadF2Dot14()
			segments[j].To = r.ReadF2Dot14()
			if 0 < j && segments[j].From < segments[j-1].From {
				return nil, fmt.Errorf("avar: segment map not sorted")
			}
		}
		avar.SegmentMaps[i] = segments
	}
	if r.EOF() {
		return nil, fmt.Errorf("avar: %w", ErrInvalidFontData)
	}
	return avar, nil
}

// Map maps a normalized coordinate of the axis at the given index through its segment map.
func (avar *AvarTable) Map(axis int, v float64) float64 {
	if avar == nil || axis < 0 || len(avar.SegmentMaps) <= axis {
		return v
	}
	segments := avar.SegmentMaps[axis]
	if len(segments) == 0 {
		return v
	}

	i := sort.Search(len(segments), func(i int) bool {
		return v <= segments[i].From
	})
	if i == len(segments) {
		return segments[len(segments)-1].To + v - segments[len(segments)-1].From
	} else if v == segments[i].From {
		return segments[i].To
	} else if i == 0 {
		return segments[0].To + v - segments[0].From
	}
	prev, next := segments[i-1], segments[i]
	return prev.To + (next.To-prev.To)*(v-prev.From)/(next.From-prev.From)
}

////////////////////////////////////////////////////////////////

// AxisInfo is the metadata of a variation axis.
type AxisInfo struct {
	Min, Default, Max float64
	NameID            NameID
}

// FontAxes returns the axes of a font by tag. A font without fvar table has no axes.
func FontAxes(font TableProvider) (map[string]AxisInfo, error) {
	axes := map[string]AxisInfo{}
	if !font.HasTable("fvar") {
		return axes, nil
	}
	fvar, err := ParseFvar(font.TableData("fvar"))
	if err != nil {
		return nil, err
	}
	for _, axis := range fvar.Axes {
		axes[axis.Tag] = AxisInfo{
			Min:     axis.Min,
			Default: axis.Default,
			Max:     axis.Max,
			NameID:  axis.NameID,
		}
	}
	return axes, nil
}
