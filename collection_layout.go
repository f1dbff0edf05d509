package font

import (
	"fmt"
	"math"
)

const (
	collectionHeaderSize = 12 // ttcf tag, version 1.0, numFonts
	tableDirectoryHeader = 12
	tableRecordSize      = 16
)

// TableRecord is an entry of a font table directory.
type TableRecord struct {
	Tag       string
	Checksum  uint32
	Offset    uint32
	Length    uint32
	Canonical *CanonicalTable
}

// FontTableDirectory is the offset table of one font in a collection.
type FontTableDirectory struct {
	SfntVersion uint32
	Records     []TableRecord // sorted by tag
}

// Size returns the byte size of the directory.
func (dir FontTableDirectory) Size() uint32 {
	return tableDirectoryHeader + tableRecordSize*uint32(len(dir.Records))
}

// OffsetLayout holds the byte offsets of every part of a collection. All offsets are 4-byte aligned.
type OffsetLayout struct {
	HeaderOffset         uint32
	OffsetTableOffset    uint32
	FontDirectoryOffsets []uint32
	TableOffsets         map[string]uint32 // by canonical table ID
	FontTableDirectories []FontTableDirectory
	CanonicalTables      []*CanonicalTable // in file order
	TotalSize            uint32
}

// OffsetCalculator lays out a collection: the header, the offset table, all font directories, then the table data.
type OffsetCalculator struct {
	fonts []TableProvider
}

// NewOffsetCalculator returns a calculator for the fonts.
func NewOffsetCalculator(fonts []TableProvider) *OffsetCalculator {
	return &OffsetCalculator{fonts: fonts}
}

// Calculate assigns offsets to the font directories and the canonical tables. Tables referenced by several fonts get a single offset. The layout only depends on the sharing map and the font order.
func (c *OffsetCalculator) Calculate(sharing SharingMap) (*OffsetLayout, error) {
	if len(sharing) != len(c.fonts) {
		return nil, fmt.Errorf("collection: sharing map does not match fonts: %w", ErrInvalidArgument)
	}

	layout := &OffsetLayout{
		HeaderOffset:         0,
		OffsetTableOffset:    collectionHeaderSize,
		FontDirectoryOffsets: make([]uint32, len(c.fonts)),
		TableOffsets:         map[string]uint32{},
		FontTableDirectories: make([]FontTableDirectory, len(c.fonts)),
	}

	offset := uint64(align4(collectionHeaderSize + 4*uint32(len(c.fonts))))
	for i, font := range c.fonts {
		tags := font.TableNames()
		dir := FontTableDirectory{
			SfntVersion: sfntVersionOf(font),
			Records:     make([]TableRecord, len(tags)),
		}
		for j, tag := range tags {
			table, ok := sharing[i][tag]
			if !ok {
				return nil, fmt.Errorf("font %d: %s: missing from sharing map: %w", i, tag, ErrInvalidArgument)
			}
			dir.Records[j] = TableRecord{
				Tag:       tag,
				Checksum:  table.Checksum,
				Length:    uint32(table.Size()),
				Canonical: table,
			}
		}
		layout.FontDirectoryOffsets[i] = uint32(offset)
		layout.FontTableDirectories[i] = dir
		offset += uint64(dir.Size())
	}

	for i := range layout.FontTableDirectories {
		records := layout.FontTableDirectories[i].Records
		for j, record := range records {
			table := record.Canonical
			if _, ok := layout.TableOffsets[table.ID]; !ok {
				offset = (offset + 3) &^ 3
				layout.TableOffsets[table.ID] = uint32(offset)
				layout.CanonicalTables = append(layout.CanonicalTables, table)
				offset += uint64(table.Size())
			}
			records[j].Offset = layout.TableOffsets[table.ID]
		}
	}
	offset = (offset + 3) &^ 3
	if math.MaxUint32 < offset {
		return nil, fmt.Errorf("collection: exceeds 4GB: %w", ErrInvalidFontData)
	}
	layout.TotalSize = uint32(offset)
	return layout, nil
}

// writeCollection writes the 'ttcf' header, the offset table, the font directories and the padded table data.
func writeCollection(layout *OffsetLayout) []byte {
	w := NewBinaryWriter(make([]byte, 0, layout.TotalSize))
	w.WriteString("ttcf")
	w.WriteUint16(1) // majorVersion
	w.WriteUint16(0) // minorVersion
	w.WriteUint32(uint32(len(layout.FontDirectoryOffsets)))
	for _, offset := range layout.FontDirectoryOffsets {
		w.WriteUint32(offset)
	}

	for _, dir := range layout.FontTableDirectories {
		w.Pad()
		numTables := uint16(len(dir.Records))
		searchRange, entrySelector, rangeShift := sfntSearchFields(numTables)
		w.WriteUint32(dir.SfntVersion)
		w.WriteUint16(numTables)
		w.WriteUint16(searchRange)
		w.WriteUint16(entrySelector)
		w.WriteUint16(rangeShift)
		for _, record := range dir.Records {
			w.WriteString(record.Tag)
			w.WriteUint32(record.Checksum)
			w.WriteUint32(record.Offset)
			w.WriteUint32(record.Length)
		}
	}

	for _, table := range layout.CanonicalTables {
		w.Pad()
		w.WriteBytes(table.Data)
	}
	w.Pad()
	return w.Bytes()
}
