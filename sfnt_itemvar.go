package font

import (
	"fmt"
)

// RegionAxis is the start, peak, and end coordinate of a region along one axis, in normalized coordinates.
type RegionAxis struct {
	Start, Peak, End float64
}

// VariationRegion is a region in design space, with one RegionAxis per fvar axis.
type VariationRegion []RegionAxis

// ItemVariationData is a set of delta rows that refer to a subset of the regions.
type ItemVariationData struct {
	RegionIndexes []uint16
	Deltas        [][]int32 // per item, per region index
}

// ItemVariationStore is the shared delta storage of HVAR, VVAR, MVAR, and other tables.
type ItemVariationStore struct {
	AxisCount int
	Regions   []VariationRegion
	Data      []ItemVariationData
}

// ParseItemVariationStore parses an item variation store.
func ParseItemVariationStore(b []byte) (*ItemVariationStore, error) {
	r := NewBinaryReader(b)
	format := r.ReadUint16()
	regionListOffset := r.ReadUint32()
	dataCount := r.ReadUint16()
	if r.EOF() {
		return nil, ErrInvalidFontData
	} else if format != 1 {
		return nil, fmt.Errorf("bad item variation store format")
	}
	dataOffsets := make([]uint32, dataCount)
	for i := range dataOffsets {
		dataOffsets[i] = r.ReadUint32()
	}
	if r.EOF() {
		return nil, ErrInvalidFontData
	}

	store := &ItemVariationStore{}
	r.Seek(regionListOffset)
	store.AxisCount = int(r.ReadUint16())
	regionCount := r.ReadUint16()
	if r.EOF() || r.Len() < 6*uint32(regionCount)*uint32(store.AxisCount) {
		return nil, fmt.Errorf("bad variation region list")
	}
	store.Regions = make([]VariationRegion, regionCount)
	for i := range store.Regions {
		region := make(VariationRegion, store.AxisCount)
		for j := range region {
			region[j].Start = r.ReadF2Dot14()
			region[j].Peak = r.ReadF2Dot14()
			region[j].End = r.ReadF2Dot14()
		}
		store.Regions[i] = region
	}

	store.Data = make([]ItemVariationData, dataCount)
	for i, offset := range dataOffsets {
		r.Seek(offset)
		itemCount := r.ReadUint16()
		wordDeltaCount := r.ReadUint16()
		regionIndexCount := r.ReadUint16()
		longWords := wordDeltaCount&0x8000 != 0
		wordCount := int(wordDeltaCount & 0x7FFF)
		if r.EOF() || int(regionIndexCount) < wordCount {
			return nil, fmt.Errorf("bad item variation data")
		}

		data := ItemVariationData{}
		data.RegionIndexes = make([]uint16, regionIndexCount)
		for j := range data.RegionIndexes {
			data.RegionIndexes[j] = r.ReadUint16()
			if regionCount <= data.RegionIndexes[j] {
				return nil, fmt.Errorf("bad region index")
			}
		}

		rowSize := uint32(wordCount)*2 + uint32(int(regionIndexCount)-wordCount)
		if longWords {
			rowSize *= 2
		}
		if r.Len() < uint32(itemCount)*rowSize {
			return nil, fmt.Errorf("bad item variation data")
		}
		data.Deltas = make([][]int32, itemCount)
		for j := range data.Deltas {
			row := make([]int32, regionIndexCount)
			for k := range row {
				if longWords && k < wordCount {
					row[k] = r.ReadInt32()
				} else if longWords || k < wordCount {
					row[k] = int32(r.ReadInt16())
				} else {
					row[k] = int32(r.ReadInt8())
				}
			}
			data.Deltas[j] = row
		}
		store.Data[i] = data
	}
	if r.EOF() {
		return nil, ErrInvalidFontData
	}
	return store, nil
}

// DeltaSet returns the deltas for an item, expanded so that index i holds the delta for region i. It returns nil for an index out of range.
func (store *ItemVariationStore) DeltaSet(outer, inner uint16) []int32 {
	if store == nil || len(store.Data) <= int(outer) {
		return nil
	}
	data := store.Data[outer]
	if len(data.Deltas) <= int(inner) {
		return nil
	}
	deltas := make([]int32, len(store.Regions))
	for i, regionIndex := range data.RegionIndexes {
		deltas[regionIndex] += data.Deltas[inner][i]
	}
	return deltas
}

////////////////////////////////////////////////////////////////

// VariationIndex refers to an item of an item variation store.
type VariationIndex struct {
	Outer, Inner uint16
}

// DeltaSetIndexMap maps glyph IDs to items of an item variation store.
type DeltaSetIndexMap struct {
	Entries []VariationIndex
}

// ParseDeltaSetIndexMap parses a delta-set index map.
func ParseDeltaSetIndexMap(b []byte) (*DeltaSetIndexMap, error) {
	r := NewBinaryReader(b)
	format := r.ReadUint8()
	entryFormat := r.ReadUint8()
	var mapCount uint32
	if format == 0 {
		mapCount = uint32(r.ReadUint16())
	} else if format == 1 {
		mapCount = r.ReadUint32()
	} else {
		return nil, fmt.Errorf("bad delta-set index map format")
	}

	innerBitCount := uint32(entryFormat&0x0F) + 1
	entrySize := uint32((entryFormat>>4)&0x03) + 1
	if r.EOF() || r.Len()/entrySize < mapCount {
		return nil, ErrInvalidFontData
	}

	m := &DeltaSetIndexMap{}
	m.Entries = make([]VariationIndex, mapCount)
	for i := range m.Entries {
		var entry uint32
		for _, v := range r.ReadBytes(entrySize) {
			entry = entry<<8 | uint32(v)
		}
		m.Entries[i] = VariationIndex{
			Outer: uint16(entry >> innerBitCount),
			Inner: uint16(entry & (1<<innerBitCount - 1)),
		}
	}
	return m, nil
}

// Map returns the item for a glyph. Glyph IDs past the end use the last entry.
func (m *DeltaSetIndexMap) Map(glyphID uint32) (VariationIndex, bool) {
	if m == nil || len(m.Entries) == 0 {
		return VariationIndex{}, false
	} else if uint32(len(m.Entries)) <= glyphID {
		glyphID = uint32(len(m.Entries)) - 1
	}
	return m.Entries[glyphID], true
}

////////////////////////////////////////////////////////////////

// MetricsVarTable is the horizontal (HVAR) or vertical (VVAR) metrics variations table.
// For HVAR the start and end maps are the left and right side bearings, for VVAR the top and bottom side bearings.
type MetricsVarTable struct {
	Store      *ItemVariationStore
	AdvanceMap *DeltaSetIndexMap
	StartMap   *DeltaSetIndexMap
	EndMap     *DeltaSetIndexMap
	OriginMap  *DeltaSetIndexMap // VVAR only
}

// ParseHVAR parses the HVAR table.
func ParseHVAR(b []byte) (*MetricsVarTable, error) {
	return parseMetricsVar(b, "HVAR")
}

// ParseVVAR parses the VVAR table.
func ParseVVAR(b []byte) (*MetricsVarTable, error) {
	return parseMetricsVar(b, "VVAR")
}

func parseMetricsVar(b []byte, tag string) (*MetricsVarTable, error) {
	r := NewBinaryReader(b)
	majorVersion := r.ReadUint16()
	_ = r.ReadUint16() // minorVersion
	storeOffset := r.ReadUint32()
	offsets := []uint32{r.ReadUint32(), r.ReadUint32(), r.ReadUint32()}
	if tag == "VVAR" {
		offsets = append(offsets, r.ReadUint32())
	}
	if r.EOF() {
		return nil, fmt.Errorf("%s: %w", tag, ErrInvalidFontData)
	} else if majorVersion != 1 {
		return nil, fmt.Errorf("%s: bad version", tag)
	} else if storeOffset == 0 || uint32(len(b)) <= storeOffset {
		return nil, fmt.Errorf("%s: bad item variation store offset", tag)
	}

	table := &MetricsVarTable{}
	var err error
	if table.Store, err = ParseItemVariationStore(b[storeOffset:]); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	maps := make([]*DeltaSetIndexMap, len(offsets))
	for i, offset := range offsets {
		if offset == 0 {
			continue
		} else if uint32(len(b)) <= offset {
			return nil, fmt.Errorf("%s: bad delta-set index map offset", tag)
		} else if maps[i], err = ParseDeltaSetIndexMap(b[offset:]); err != nil {
			return nil, fmt.Errorf("%s: %w", tag, err)
		}
	}
	table.AdvanceMap, table.StartMap, table.EndMap = maps[0], maps[1], maps[2]
	if tag == "VVAR" {
		table.OriginMap = maps[3]
	}
	return table, nil
}

////////////////////////////////////////////////////////////////

// MvarRecord maps a metric tag to an item of the MVAR item variation store.
type MvarRecord struct {
	Tag string
	VariationIndex
}

// MvarTable is the metrics variations table for font-wide metrics.
type MvarTable struct {
	Store   *ItemVariationStore
	Records []MvarRecord
}

// ParseMVAR parses the MVAR table.
func ParseMVAR(b []byte) (*MvarTable, error) {
	r := NewBinaryReader(b)
	majorVersion := r.ReadUint16()
	_ = r.ReadUint16() // minorVersion
	_ = r.ReadUint16() // reserved
	valueRecordSize := uint32(r.ReadUint16())
	valueRecordCount := r.ReadUint16()
	storeOffset := uint32(r.ReadUint16())
	if r.EOF() {
		return nil, fmt.Errorf("MVAR: %w", ErrInvalidFontData)
	} else if majorVersion != 1 {
		return nil, fmt.Errorf("MVAR: bad version")
	} else if 0 < valueRecordCount && valueRecordSize < 8 {
		return nil, fmt.Errorf("MVAR: bad value record size")
	}

	mvar := &MvarTable{}
	if storeOffset != 0 {
		if uint32(len(b)) <= storeOffset {
			return nil, fmt.Errorf("MVAR: bad item variation store offset")
		}
		var err error
		if mvar.Store, err = ParseItemVariationStore(b[storeOffset:]); err != nil {
			return nil, fmt.Errorf("MVAR: %w", err)
		}
	}

	mvar.Records = make([]MvarRecord, valueRecordCount)
	for i := range mvar.Records {
		rec := NewBinaryReader(r.ReadBytes(valueRecordSize))
		mvar.Records[i].Tag = rec.ReadString(4)
		mvar.Records[i].Outer = rec.ReadUint16()
		mvar.Records[i].Inner = rec.ReadUint16()
	}
	if r.EOF() {
		return nil, fmt.Errorf("MVAR: %w", ErrInvalidFontData)
	}
	return mvar, nil
}

// Record returns the value record of a metric tag.
func (mvar *MvarTable) Record(tag string) (MvarRecord, bool) {
	for _, record := range mvar.Records {
		if record.Tag == tag {
			return record, true
		}
	}
	return MvarRecord{}, false
}
