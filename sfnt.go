package font

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// TableProvider gives read-only access to the raw tables of a font.
type TableProvider interface {
	TableData(tag string) []byte // nil if absent
	HasTable(tag string) bool
	TableNames() []string // sorted
}

// Tables is a TableProvider over a plain map from table tag to table data.
type Tables map[string][]byte

// TableData returns the table data or nil.
func (tables Tables) TableData(tag string) []byte {
	return tables[tag]
}

// HasTable returns true if the table exists.
func (tables Tables) HasTable(tag string) bool {
	_, ok := tables[tag]
	return ok
}

// TableNames returns the sorted table tags.
func (tables Tables) TableNames() []string {
	return sortedKeys(tables)
}

func copyTables(font TableProvider) Tables {
	tags := font.TableNames()
	tables := make(Tables, len(tags))
	for _, tag := range tags {
		tables[tag] = font.TableData(tag)
	}
	return tables
}

// sfntVersionOf returns 'OTTO' if CFF outlines are present, else the TrueType version.
func sfntVersionOf(font TableProvider) uint32 {
	if font.HasTable("CFF ") || font.HasTable("CFF2") {
		return 0x4F54544F // OTTO
	}
	return 0x00010000
}

// SFNT is a parsed OpenType font.
type SFNT struct {
	Length            uint32
	Version           string
	IsCFF, IsTrueType bool // only one can be true
	Tables            map[string][]byte

	// required
	Head *headTable
	Maxp *maxpTable

	// optional
	Hhea *hheaTable
	Hmtx *hmtxTable
	Name *nameTable
	OS2  *os2Table
	Vhea *vheaTable
	Vmtx *vmtxTable

	// TrueType
	Glyf *glyfTable
	Loca *locaTable
}

// TableData returns the raw table data or nil.
func (sfnt *SFNT) TableData(tag string) []byte {
	return sfnt.Tables[tag]
}

// HasTable returns true if the font contains the table.
func (sfnt *SFNT) HasTable(tag string) bool {
	_, ok := sfnt.Tables[tag]
	return ok
}

// TableNames returns the sorted table tags.
func (sfnt *SFNT) TableNames() []string {
	return sortedKeys(sfnt.Tables)
}

// NumGlyphs returns the number of glyphs the font contains.
func (sfnt *SFNT) NumGlyphs() uint16 {
	if sfnt.Maxp == nil {
		return 0
	}
	return sfnt.Maxp.NumGlyphs
}

// IsVariable returns true if the font has an fvar table.
func (sfnt *SFNT) IsVariable() bool {
	return sfnt.HasTable("fvar")
}

// GlyphAdvance returns the advance width of the glyph.
func (sfnt *SFNT) GlyphAdvance(glyphID uint16) uint16 {
	if sfnt.Hmtx == nil {
		return 0
	}
	return sfnt.Hmtx.Advance(glyphID)
}

// ParseSFNT parses an OpenType file format (TTF, OTF, TTC, OTC). The index is used for font collections to select a single font.
func ParseSFNT(b []byte, index int) (*SFNT, error) {
	return parseSFNT(b, index)
}

// NumFonts returns the number of fonts in a collection, or 1 for a single font.
func NumFonts(b []byte) (int, error) {
	if len(b) < 12 {
		return 0, ErrInvalidFontData
	}
	r := NewBinaryReader(b)
	if r.ReadString(4) != "ttcf" {
		return 1, nil
	}
	majorVersion := r.ReadUint16()
	_ = r.ReadUint16() // minorVersion
	numFonts := r.ReadUint32()
	if majorVersion != 1 && majorVersion != 2 {
		return 0, fmt.Errorf("bad TTC version")
	} else if r.Len()/4 < numFonts {
		return 0, ErrInvalidFontData
	}
	return int(numFonts), nil
}

// ParseCollection parses all fonts of a collection. A single font is returned as a collection of one.
func ParseCollection(b []byte) ([]*SFNT, error) {
	n, err := NumFonts(b)
	if err != nil {
		return nil, err
	}
	fonts := make([]*SFNT, 0, n)
	for i := 0; i < n; i++ {
		sfnt, err := parseSFNT(b, i)
		if err != nil {
			return nil, fmt.Errorf("font %d: %w", i, err)
		}
		fonts = append(fonts, sfnt)
	}
	return fonts, nil
}

func parseSFNT(b []byte, index int) (*SFNT, error) {
	if len(b) < 12 || uint(math.MaxUint32) < uint(len(b)) {
		return nil, ErrInvalidFontData
	}

	r := NewBinaryReader(b)
	sfntVersion := r.ReadString(4)
	isCollection := sfntVersion == "ttcf"
	if isCollection {
		majorVersion := r.ReadUint16()
		minorVersion := r.ReadUint16()
		if majorVersion != 1 && majorVersion != 2 || minorVersion != 0 {
			return nil, fmt.Errorf("bad TTC version")
		}

		numFonts := r.ReadUint32()
		if index < 0 || numFonts <= uint32(index) {
			return nil, fmt.Errorf("bad font index %d", index)
		}
		if r.Len()/4 < numFonts {
			return nil, ErrInvalidFontData
		}

		_ = r.ReadBytes(uint32(4 * index))
		offset := r.ReadUint32()
		if uint32(len(b))-12 < offset {
			return nil, ErrInvalidFontData
		}

		r.Seek(offset)
		sfntVersion = r.ReadString(4)
	} else if index != 0 {
		return nil, fmt.Errorf("bad font index %d", index)
	}
	if sfntVersion != "OTTO" && sfntVersion != "true" && binary.BigEndian.Uint32([]byte(sfntVersion)) != 0x00010000 {
		return nil, fmt.Errorf("bad SFNT version")
	}
	numTables := r.ReadUint16()
	_ = r.ReadUint16()                  // searchRange
	_ = r.ReadUint16()                  // entrySelector
	_ = r.ReadUint16()                  // rangeShift
	if r.Len() < 16*uint32(numTables) { // can never exceed uint32 as numTables is uint16
		return nil, ErrInvalidFontData
	}

	tables := make(map[string][]byte, numTables)
	for i := 0; i < int(numTables); i++ {
		tag := r.ReadString(4)
		_ = r.ReadUint32() // checksum
		offset := r.ReadUint32()
		length := r.ReadUint32()
		if uint32(len(b)) < offset || uint32(len(b))-offset < length {
			return nil, fmt.Errorf("%s: %w", tag, ErrInvalidFontData)
		} else if tag == "head" && length < 12 {
			return nil, fmt.Errorf("head: %w", ErrInvalidFontData)
		} else if _, ok := tables[tag]; ok {
			return nil, fmt.Errorf("%s: table defined more than once", tag)
		}
		tables[tag] = b[offset : offset+length : offset+length]
	}

	sfnt := &SFNT{}
	sfnt.Length = uint32(len(b))
	sfnt.Version = sfntVersion
	sfnt.IsCFF = sfntVersion == "OTTO"
	sfnt.IsTrueType = sfntVersion == "true" || binary.BigEndian.Uint32([]byte(sfntVersion)) == 0x00010000
	sfnt.Tables = tables

	requiredTables := []string{"head", "maxp"}
	if sfnt.IsTrueType {
		requiredTables = append(requiredTables, "glyf", "loca")
	} else if sfnt.IsCFF {
		_, hasCFF := tables["CFF "]
		_, hasCFF2 := tables["CFF2"]
		if !hasCFF && !hasCFF2 {
			return nil, fmt.Errorf("CFF: missing table")
		} else if hasCFF && hasCFF2 {
			return nil, fmt.Errorf("CFF2: CFF table already exists")
		}
	}
	for _, requiredTable := range requiredTables {
		if _, ok := tables[requiredTable]; !ok {
			return nil, fmt.Errorf("%s: missing table", requiredTable)
		}
	}

	if err := sfnt.parseTables(); err != nil {
		return nil, err
	}
	return sfnt, nil
}

// NewSFNT parses the tables given by a table provider. Unlike ParseSFNT no table is required, tables whose dependencies are missing are left unparsed.
func NewSFNT(font TableProvider) (*SFNT, error) {
	if sfnt, ok := font.(*SFNT); ok {
		return sfnt, nil
	}

	sfnt := &SFNT{}
	sfnt.Tables = copyTables(font)
	sfnt.IsCFF = font.HasTable("CFF ") || font.HasTable("CFF2")
	sfnt.IsTrueType = !sfnt.IsCFF
	sfnt.Version = uint32ToString(sfntVersionOf(font))
	if err := sfnt.parseTables(); err != nil {
		return nil, err
	}
	return sfnt, nil
}

// parseTables parses the known tables, head and maxp before loca, hhea and vhea before their metrics tables.
func (sfnt *SFNT) parseTables() error {
	for _, tag := range []string{"head", "maxp", "loca", "hhea", "vhea", "glyf", "hmtx", "vmtx", "name", "OS/2"} {
		if _, ok := sfnt.Tables[tag]; !ok {
			continue
		} else if sfnt.Maxp == nil && tag != "head" && tag != "maxp" && tag != "name" && tag != "OS/2" {
			continue // number of glyphs unknown
		}

		var err error
		switch tag {
		case "head":
			err = sfnt.parseHead()
		case "maxp":
			err = sfnt.parseMaxp()
		case "loca":
			if sfnt.Head != nil {
				err = sfnt.parseLoca()
			}
		case "hhea":
			err = sfnt.parseHhea()
		case "vhea":
			err = sfnt.parseVhea()
		case "glyf":
			if sfnt.Loca != nil {
				err = sfnt.parseGlyf()
			}
		case "hmtx":
			if sfnt.Hhea != nil {
				err = sfnt.parseHmtx()
			}
		case "vmtx":
			if sfnt.Vhea != nil {
				err = sfnt.parseVmtx()
			}
		case "name":
			err = sfnt.parseName()
		case "OS/2":
			err = sfnt.parseOS2()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Write writes out the SFNT file. The head table is written as is, except for its checkSumAdjustment.
func (sfnt *SFNT) Write() []byte {
	return writeSFNT(sfntVersionOf(sfnt), sfnt.Tables)
}

// sfntSearchFields returns the searchRange, entrySelector, and rangeShift fields of a table directory.
func sfntSearchFields(numTables uint16) (uint16, uint16, uint16) {
	var searchRange uint16 = 1
	var entrySelector uint16
	for searchRange*2 <= numTables {
		searchRange *= 2
		entrySelector++
	}
	searchRange *= 16
	return searchRange, entrySelector, numTables*16 - searchRange
}

// writeSFNT writes a font with table records sorted by tag, every table padded to four bytes, and the head checkSumAdjustment set.
func writeSFNT(version uint32, tables map[string][]byte) []byte {
	tags := sortedKeys(tables)
	numTables := uint16(len(tags))

	size := 12 + 16*uint32(numTables)
	for _, tag := range tags {
		size += align4(uint32(len(tables[tag])))
	}

	w := NewBinaryWriter(make([]byte, 0, size))
	searchRange, entrySelector, rangeShift := sfntSearchFields(numTables)
	w.WriteUint32(version)
	w.WriteUint16(numTables)
	w.WriteUint16(searchRange)
	w.WriteUint16(entrySelector)
	w.WriteUint16(rangeShift)

	// we'll write the table records at the end
	w.WriteBytes(make([]byte, 16*uint32(numTables)))

	checksumAdjustmentPos := -1
	offsets, lengths := make([]uint32, numTables), make([]uint32, numTables)
	for i, tag := range tags {
		offsets[i] = w.Len()
		table := tables[tag]
		if tag == "head" && 12 <= len(table) {
			checksumAdjustmentPos = int(w.Len()) + 8
			w.WriteBytes(table[:8])
			w.WriteUint32(0) // checkSumAdjustment
			w.WriteBytes(table[12:])
		} else {
			w.WriteBytes(table)
		}
		lengths[i] = w.Len() - offsets[i]
		w.Pad()
	}

	buf := w.Bytes()
	for i, tag := range tags {
		pos := 12 + i<<4
		copy(buf[pos:], tag)
		checksum := calcChecksum(buf[offsets[i] : offsets[i]+align4(lengths[i])])
		binary.BigEndian.PutUint32(buf[pos+4:], checksum)
		binary.BigEndian.PutUint32(buf[pos+8:], offsets[i])
		binary.BigEndian.PutUint32(buf[pos+12:], lengths[i])
	}
	if checksumAdjustmentPos != -1 {
		binary.BigEndian.PutUint32(buf[checksumAdjustmentPos:], 0xB1B0AFBA-calcChecksum(buf))
	}
	return buf
}

////////////////////////////////////////////////////////////////

var longDateTimeEpoch = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)

// toLongDateTime converts to seconds since 1904-01-01, i.e. Unix time plus 2082844800.
func toLongDateTime(t time.Time) int64 {
	return t.Unix() + 2082844800
}

func fromLongDateTime(v int64) time.Time {
	return time.Unix(v-2082844800, 0).UTC()
}

type headTable struct {
	FontRevision           uint32
	Flags                  uint16
	UnitsPerEm             uint16
	Created, Modified      time.Time
	XMin, YMin, XMax, YMax int16
	MacStyle               uint16
	LowestRecPPEM          uint16
	FontDirectionHint      int16
	IndexToLocFormat       int16
	GlyphDataFormat        int16
}

func (sfnt *SFNT) parseHead() error {
	b, ok := sfnt.Tables["head"]
	if !ok {
		return fmt.Errorf("head: missing table")
	} else if len(b) != 54 {
		return fmt.Errorf("head: bad table")
	}

	sfnt.Head = &headTable{}
	r := NewBinaryReader(b)
	majorVersion := r.ReadUint16()
	_ = r.ReadUint16() // minorVersion
	if majorVersion != 1 {
		return fmt.Errorf("head: bad version")
	}
	sfnt.Head.FontRevision = r.ReadUint32()
	_ = r.ReadUint32()                // checksumAdjustment
	if r.ReadUint32() != 0x5F0F3CF5 { // magicNumber
		return fmt.Errorf("head: bad magic version")
	}
	sfnt.Head.Flags = r.ReadUint16()
	sfnt.Head.UnitsPerEm = r.ReadUint16()
	created := r.ReadInt64()
	modified := r.ReadInt64()
	sfnt.Head.Created = fromLongDateTime(created)
	sfnt.Head.Modified = fromLongDateTime(modified)
	sfnt.Head.XMin = r.ReadInt16()
	sfnt.Head.YMin = r.ReadInt16()
	sfnt.Head.XMax = r.ReadInt16()
	sfnt.Head.YMax = r.ReadInt16()
	sfnt.Head.MacStyle = r.ReadUint16()
	sfnt.Head.LowestRecPPEM = r.ReadUint16()
	sfnt.Head.FontDirectionHint = r.ReadInt16()
	sfnt.Head.IndexToLocFormat = r.ReadInt16()
	if sfnt.Head.IndexToLocFormat != 0 && sfnt.Head.IndexToLocFormat != 1 {
		return fmt.Errorf("head: bad indexToLocFormat")
	}
	sfnt.Head.GlyphDataFormat = r.ReadInt16()
	return nil
}

////////////////////////////////////////////////////////////////

type hheaTable struct {
	Ascender            int16
	Descender           int16
	LineGap             int16
	AdvanceWidthMax     uint16
	MinLeftSideBearing  int16
	MinRightSideBearing int16
	XMaxExtent          int16
	CaretSlopeRise      int16
	CaretSlopeRun       int16
	CaretOffset         int16
	MetricDataFormat    int16
	NumberOfHMetrics    uint16
}

func (sfnt *SFNT) parseHhea() error {
	b, ok := sfnt.Tables["hhea"]
	if !ok {
		return fmt.Errorf("hhea: missing table")
	} else if len(b) != 36 {
		return fmt.Errorf("hhea: bad table")
	}

	sfnt.Hhea = &hheaTable{}
	r := NewBinaryReader(b)
	majorVersion := r.ReadUint16()
	_ = r.ReadUint16() // minorVersion
	if majorVersion != 1 {
		return fmt.Errorf("hhea: bad version")
	}
	sfnt.Hhea.Ascender = r.ReadInt16()
	sfnt.Hhea.Descender = r.ReadInt16()
	sfnt.Hhea.LineGap = r.ReadInt16()
	sfnt.Hhea.AdvanceWidthMax = r.ReadUint16()
	sfnt.Hhea.MinLeftSideBearing = r.ReadInt16()
	sfnt.Hhea.MinRightSideBearing = r.ReadInt16()
	sfnt.Hhea.XMaxExtent = r.ReadInt16()
	sfnt.Hhea.CaretSlopeRise = r.ReadInt16()
	sfnt.Hhea.CaretSlopeRun = r.ReadInt16()
	sfnt.Hhea.CaretOffset = r.ReadInt16()
	_ = r.ReadBytes(8) // reserved
	sfnt.Hhea.MetricDataFormat = r.ReadInt16()
	sfnt.Hhea.NumberOfHMetrics = r.ReadUint16()
	if sfnt.Maxp.NumGlyphs < sfnt.Hhea.NumberOfHMetrics || sfnt.Hhea.NumberOfHMetrics == 0 {
		return fmt.Errorf("hhea: bad numberOfHMetrics")
	}
	return nil
}

////////////////////////////////////////////////////////////////

type vheaTable struct {
	Ascender             int16
	Descender            int16
	LineGap              int16
	AdvanceHeightMax     int16
	MinTopSideBearing    int16
	MinBottomSideBearing int16
	YMaxExtent           int16
	CaretSlopeRise       int16
	CaretSlopeRun        int16
	CaretOffset          int16
	MetricDataFormat     int16
	NumberOfVMetrics     uint16
}

func (sfnt *SFNT) parseVhea() error {
	b, ok := sfnt.Tables["vhea"]
	if !ok {
		return fmt.Errorf("vhea: missing table")
	} else if len(b) != 36 {
		return fmt.Errorf("vhea: bad table")
	}

	sfnt.Vhea = &vheaTable{}
	r := NewBinaryReader(b)
	_ = r.ReadUint32() // version, either 1.0 or 1.1
	sfnt.Vhea.Ascender = r.ReadInt16()
	sfnt.Vhea.Descender = r.ReadInt16()
	sfnt.Vhea.LineGap = r.ReadInt16()
	sfnt.Vhea.AdvanceHeightMax = r.ReadInt16()
	sfnt.Vhea.MinTopSideBearing = r.ReadInt16()
	sfnt.Vhea.MinBottomSideBearing = r.ReadInt16()
	sfnt.Vhea.YMaxExtent = r.ReadInt16()
	sfnt.Vhea.CaretSlopeRise = r.ReadInt16()
	sfnt.Vhea.CaretSlopeRun = r.ReadInt16()
	sfnt.Vhea.CaretOffset = r.ReadInt16()
	_ = r.ReadBytes(8) // reserved
	sfnt.Vhea.MetricDataFormat = r.ReadInt16()
	sfnt.Vhea.NumberOfVMetrics = r.ReadUint16()
	if sfnt.Maxp.NumGlyphs < sfnt.Vhea.NumberOfVMetrics || sfnt.Vhea.NumberOfVMetrics == 0 {
		return fmt.Errorf("vhea: bad numberOfVMetrics")
	}
	return nil
}

////////////////////////////////////////////////////////////////

type hmtxLongHorMetric struct {
	AdvanceWidth    uint16
	LeftSideBearing int16
}

type hmtxTable struct {
	HMetrics         []hmtxLongHorMetric
	LeftSideBearings []int16
}

func (hmtx *hmtxTable) NumGlyphs() int {
	return len(hmtx.HMetrics) + len(hmtx.LeftSideBearings)
}

func (hmtx *hmtxTable) LeftSideBearing(glyphID uint16) int16 {
	if uint16(len(hmtx.HMetrics)) <= glyphID {
		if int(glyphID)-len(hmtx.HMetrics) < len(hmtx.LeftSideBearings) {
			return hmtx.LeftSideBearings[int(glyphID)-len(hmtx.HMetrics)]
		}
		return 0
	}
	return hmtx.HMetrics[glyphID].LeftSideBearing
}

func (hmtx *hmtxTable) Advance(glyphID uint16) uint16 {
	if len(hmtx.HMetrics) == 0 {
		return 0
	} else if uint16(len(hmtx.HMetrics)) <= glyphID {
		glyphID = uint16(len(hmtx.HMetrics)) - 1
	}
	return hmtx.HMetrics[glyphID].AdvanceWidth
}

// newHmtxTable compacts per-glyph metrics: the trailing run of glyphs sharing the advance width of the last long metric store their left side bearing only.
func newHmtxTable(advances []uint16, lsbs []int16) *hmtxTable {
	numHMetrics := len(advances)
	for 1 < numHMetrics && advances[numHMetrics-1] == advances[numHMetrics-2] {
		numHMetrics--
	}
	hmtx := &hmtxTable{
		HMetrics:         make([]hmtxLongHorMetric, numHMetrics),
		LeftSideBearings: make([]int16, len(advances)-numHMetrics),
	}
	for i := 0; i < numHMetrics; i++ {
		hmtx.HMetrics[i] = hmtxLongHorMetric{advances[i], lsbs[i]}
	}
	copy(hmtx.LeftSideBearings, lsbs[numHMetrics:])
	return hmtx
}

// Write returns the binary hmtx table.
func (hmtx *hmtxTable) Write() []byte {
	w := NewBinaryWriter(make([]byte, 0, 4*len(hmtx.HMetrics)+2*len(hmtx.LeftSideBearings)))
	for _, metric := range hmtx.HMetrics {
		w.WriteUint16(metric.AdvanceWidth)
		w.WriteInt16(metric.LeftSideBearing)
	}
	for _, lsb := range hmtx.LeftSideBearings {
		w.WriteInt16(lsb)
	}
	return w.Bytes()
}

func parseHmtxTable(b []byte, numHMetrics, numGlyphs uint16) (*hmtxTable, error) {
	if numGlyphs < numHMetrics {
		return nil, fmt.Errorf("hmtx: more entries than glyphs")
	}
	length := 4*uint32(numHMetrics) + 2*uint32(numGlyphs-numHMetrics)
	if uint32(len(b)) < length {
		return nil, fmt.Errorf("hmtx: bad table")
	}

	hmtx := &hmtxTable{}
	hmtx.HMetrics = make([]hmtxLongHorMetric, numHMetrics)
	hmtx.LeftSideBearings = make([]int16, numGlyphs-numHMetrics)

	r := NewBinaryReader(b)
	for i := 0; i < int(numHMetrics); i++ {
		hmtx.HMetrics[i].AdvanceWidth = r.ReadUint16()
		hmtx.HMetrics[i].LeftSideBearing = r.ReadInt16()
	}
	for i := 0; i < int(numGlyphs-numHMetrics); i++ {
		hmtx.LeftSideBearings[i] = r.ReadInt16()
	}
	return hmtx, nil
}

func (sfnt *SFNT) parseHmtx() error {
	if sfnt.Hhea == nil {
		return fmt.Errorf("hmtx: missing hhea table")
	}
	hmtx, err := parseHmtxTable(sfnt.Tables["hmtx"], sfnt.Hhea.NumberOfHMetrics, sfnt.Maxp.NumGlyphs)
	if err != nil {
		return err
	}
	sfnt.Hmtx = hmtx
	return nil
}

////////////////////////////////////////////////////////////////

type vmtxLongVerMetric struct {
	AdvanceHeight  uint16
	TopSideBearing int16
}

type vmtxTable struct {
	VMetrics        []vmtxLongVerMetric
	TopSideBearings []int16
}

func (vmtx *vmtxTable) TopSideBearing(glyphID uint16) int16 {
	if uint16(len(vmtx.VMetrics)) <= glyphID {
		if int(glyphID)-len(vmtx.VMetrics) < len(vmtx.TopSideBearings) {
			return vmtx.TopSideBearings[int(glyphID)-len(vmtx.VMetrics)]
		}
		return 0
	}
	return vmtx.VMetrics[glyphID].TopSideBearing
}

func (vmtx *vmtxTable) Advance(glyphID uint16) uint16 {
	if len(vmtx.VMetrics) == 0 {
		return 0
	} else if uint16(len(vmtx.VMetrics)) <= glyphID {
		glyphID = uint16(len(vmtx.VMetrics)) - 1
	}
	return vmtx.VMetrics[glyphID].AdvanceHeight
}

func (sfnt *SFNT) parseVmtx() error {
	if sfnt.Vhea == nil {
		return fmt.Errorf("vmtx: missing vhea table")
	}

	b := sfnt.Tables["vmtx"]
	length := 4*uint32(sfnt.Vhea.NumberOfVMetrics) + 2*uint32(sfnt.Maxp.NumGlyphs-sfnt.Vhea.NumberOfVMetrics)
	if uint32(len(b)) < length {
		return fmt.Errorf("vmtx: bad table")
	}

	sfnt.Vmtx = &vmtxTable{}
	// numberOfVMetrics is smaller than numGlyphs
	sfnt.Vmtx.VMetrics = make([]vmtxLongVerMetric, sfnt.Vhea.NumberOfVMetrics)
	sfnt.Vmtx.TopSideBearings = make([]int16, sfnt.Maxp.NumGlyphs-sfnt.Vhea.NumberOfVMetrics)

	r := NewBinaryReader(b)
	for i := 0; i < int(sfnt.Vhea.NumberOfVMetrics); i++ {
		sfnt.Vmtx.VMetrics[i].AdvanceHeight = r.ReadUint16()
		sfnt.Vmtx.VMetrics[i].TopSideBearing = r.ReadInt16()
	}
	for i := 0; i < int(sfnt.Maxp.NumGlyphs-sfnt.Vhea.NumberOfVMetrics); i++ {
		sfnt.Vmtx.TopSideBearings[i] = r.ReadInt16()
	}
	return nil
}

////////////////////////////////////////////////////////////////

type maxpTable struct {
	NumGlyphs             uint16
	MaxPoints             uint16
	MaxContours           uint16
	MaxCompositePoints    uint16
	MaxCompositeContours  uint16
	MaxZones              uint16
	MaxTwilightPoints     uint16
	MaxStorage            uint16
	MaxFunctionDefs       uint16
	MaxInstructionDefs    uint16
	MaxStackElements      uint16
	MaxSizeOfInstructions uint16
	MaxComponentElements  uint16
	MaxComponentDepth     uint16
}

func (sfnt *SFNT) parseMaxp() error {
	b, ok := sfnt.Tables["maxp"]
	if !ok {
		return fmt.Errorf("maxp: missing table")
	}

	sfnt.Maxp = &maxpTable{}
	r := NewBinaryReader(b)
	version := r.ReadUint32()
	sfnt.Maxp.NumGlyphs = r.ReadUint16()
	if r.EOF() {
		return fmt.Errorf("maxp: bad table")
	} else if version == 0x00005000 {
		return nil
	} else if version == 0x00010000 && len(b) == 32 {
		sfnt.Maxp.MaxPoints = r.ReadUint16()
		sfnt.Maxp.MaxContours = r.ReadUint16()
		sfnt.Maxp.MaxCompositePoints = r.ReadUint16()
		sfnt.Maxp.MaxCompositeContours = r.ReadUint16()
		sfnt.Maxp.MaxZones = r.ReadUint16()
		sfnt.Maxp.MaxTwilightPoints = r.ReadUint16()
		sfnt.Maxp.MaxStorage = r.ReadUint16()
		sfnt.Maxp.MaxFunctionDefs = r.ReadUint16()
		sfnt.Maxp.MaxInstructionDefs = r.ReadUint16()
		sfnt.Maxp.MaxStackElements = r.ReadUint16()
		sfnt.Maxp.MaxSizeOfInstructions = r.ReadUint16()
		sfnt.Maxp.MaxComponentElements = r.ReadUint16()
		sfnt.Maxp.MaxComponentDepth = r.ReadUint16()
		return nil
	}
	return fmt.Errorf("maxp: bad table")
}

////////////////////////////////////////////////////////////////

// PlatformID is the platform identifier of a name record.
type PlatformID uint16

// see PlatformID
const (
	PlatformUnicode   PlatformID = 0
	PlatformMacintosh PlatformID = 1
	PlatformWindows   PlatformID = 3
)

// EncodingID is the platform-specific encoding identifier of a name record.
type EncodingID uint16

// see EncodingID
const (
	EncodingMacintoshRoman    EncodingID = 0
	EncodingWindowsUnicodeBMP EncodingID = 1
)

// NameID is the identifier of a name record.
type NameID uint16

// see NameID
const (
	NameFontFamily         NameID = 1
	NameFontSubfamily      NameID = 2
	NameUniqueIdentifier   NameID = 3
	NameFull               NameID = 4
	NameVersion            NameID = 5
	NamePostScript         NameID = 6
	NamePreferredFamily    NameID = 16
	NamePreferredSubfamily NameID = 17
)

// languageEnglishUS is the Windows language ID for English (United States).
const languageEnglishUS = 0x0409

type nameRecord struct {
	Platform PlatformID
	Encoding EncodingID
	Language uint16
	Name     NameID
	Value    []byte
}

func (record nameRecord) String() string {
	var decoder *encoding.Decoder
	if record.Platform == PlatformUnicode || record.Platform == PlatformWindows {
		decoder = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	} else if record.Platform == PlatformMacintosh && record.Encoding == EncodingMacintoshRoman {
		decoder = charmap.Macintosh.NewDecoder()
	} else {
		return string(record.Value)
	}
	s, _, err := transform.String(decoder, string(record.Value))
	if err == nil {
		return s
	}
	return string(record.Value)
}

type nameTable struct {
	NameRecord []nameRecord
}

func (t *nameTable) Get(name NameID) []nameRecord {
	records := []nameRecord{}
	for _, record := range t.NameRecord {
		if record.Name == name {
			records = append(records, record)
		}
	}
	return records
}

// Find returns the string for the name ID, preferring Windows English (US) records over the first record found.
func (t *nameTable) Find(name NameID) (string, bool) {
	records := t.Get(name)
	if len(records) == 0 {
		return "", false
	}
	for _, record := range records {
		if record.Platform == PlatformWindows && record.Language == languageEnglishUS {
			return record.String(), true
		}
	}
	return records[0].String(), true
}

// All returns all strings for the name ID, English (US) first.
func (t *nameTable) All(name NameID) []string {
	records := t.Get(name)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Platform == PlatformWindows && records[i].Language == languageEnglishUS &&
			!(records[j].Platform == PlatformWindows && records[j].Language == languageEnglishUS)
	})
	strs := make([]string, 0, len(records))
	for _, record := range records {
		strs = append(strs, record.String())
	}
	return strs
}

func parseNameTable(b []byte) (*nameTable, error) {
	if len(b) < 6 {
		return nil, fmt.Errorf("name: bad table")
	}

	name := &nameTable{}
	r := NewBinaryReader(b)
	version := r.ReadUint16()
	if version != 0 && version != 1 {
		return nil, fmt.Errorf("name: bad version")
	}
	count := r.ReadUint16()
	storageOffset := uint32(r.ReadUint16())
	if uint32(len(b)) < 6+12*uint32(count) || uint32(len(b)) < storageOffset {
		return nil, fmt.Errorf("name: bad table")
	}
	name.NameRecord = make([]nameRecord, count)
	for i := 0; i < int(count); i++ {
		name.NameRecord[i].Platform = PlatformID(r.ReadUint16())
		name.NameRecord[i].Encoding = EncodingID(r.ReadUint16())
		name.NameRecord[i].Language = r.ReadUint16()
		name.NameRecord[i].Name = NameID(r.ReadUint16())

		length := uint32(r.ReadUint16())
		offset := uint32(r.ReadUint16())
		if uint32(len(b))-storageOffset < offset || uint32(len(b))-storageOffset-offset < length {
			return nil, fmt.Errorf("name: bad table")
		}
		name.NameRecord[i].Value = b[storageOffset+offset : storageOffset+offset+length]
	}
	return name, nil
}

func (sfnt *SFNT) parseName() error {
	name, err := parseNameTable(sfnt.Tables["name"])
	if err != nil {
		return err
	}
	sfnt.Name = name
	return nil
}
