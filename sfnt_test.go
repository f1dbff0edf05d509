package font

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/tdewolff/test"
	"golang.org/x/text/encoding/unicode"
)

type testName struct {
	id NameID
	s  string
}

// testGlyphs are an empty glyph, a square, a triangle, and a composite of the square offset by (10,0).
func testGlyphs() []*glyfGlyph {
	square := &glyfGlyph{
		NumberOfContours: 1,
		EndPoints:        []uint16{3},
		OnCurve:          []bool{true, true, true, true},
		XCoordinates:     []int16{100, 500, 500, 100},
		YCoordinates:     []int16{0, 0, 700, 700},
	}
	square.UpdateBounds()
	triangle := &glyfGlyph{
		NumberOfContours: 1,
		EndPoints:        []uint16{2},
		OnCurve:          []bool{true, true, true},
		XCoordinates:     []int16{50, 450, 250},
		YCoordinates:     []int16{0, 0, 600},
	}
	triangle.UpdateBounds()
	composite := &glyfGlyph{
		NumberOfContours: -1,
		XMin:             110,
		YMin:             0,
		XMax:             510,
		YMax:             700,
		Components: []glyfComponent{{
			Flags:   compositeArgsAreXYValues,
			GlyphID: 1,
			Arg1:    10,
			Arg2:    0,
		}},
	}
	return []*glyfGlyph{{}, square, triangle, composite}
}

func testHead(indexToLocFormat int16) []byte {
	w := NewBinaryWriter([]byte{})
	w.WriteUint16(1)          // majorVersion
	w.WriteUint16(0)          // minorVersion
	w.WriteUint32(0x00010000) // fontRevision
	w.WriteUint32(0)          // checksumAdjustment
	w.WriteUint32(0x5F0F3CF5)
	w.WriteUint16(0)    // flags
	w.WriteUint16(1000) // unitsPerEm
	w.WriteInt64(toLongDateTime(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
	w.WriteInt64(toLongDateTime(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
	w.WriteInt16(50)  // xMin
	w.WriteInt16(0)   // yMin
	w.WriteInt16(510) // xMax
	w.WriteInt16(700) // yMax
	w.WriteUint16(0)  // macStyle
	w.WriteUint16(8)  // lowestRecPPEM
	w.WriteInt16(2)   // fontDirectionHint
	w.WriteInt16(indexToLocFormat)
	w.WriteInt16(0) // glyphDataFormat
	return w.Bytes()
}

func testHhea(numHMetrics uint16) []byte {
	w := NewBinaryWriter([]byte{})
	w.WriteUint32(0x00010000)
	w.WriteInt16(800)  // ascender
	w.WriteInt16(-200) // descender
	w.WriteInt16(0)    // lineGap
	w.WriteUint16(600) // advanceWidthMax
	w.WriteInt16(0)    // minLeftSideBearing
	w.WriteInt16(0)    // minRightSideBearing
	w.WriteInt16(510)  // xMaxExtent
	w.WriteInt16(1)    // caretSlopeRise
	w.WriteInt16(0)    // caretSlopeRun
	w.WriteInt16(0)    // caretOffset
	w.WriteBytes(make([]byte, 8))
	w.WriteInt16(0) // metricDataFormat
	w.WriteUint16(numHMetrics)
	return w.Bytes()
}

func testMaxp(numGlyphs uint16) []byte {
	w := NewBinaryWriter([]byte{})
	w.WriteUint32(0x00005000)
	w.WriteUint16(numGlyphs)
	return w.Bytes()
}

func testNameTable(names []testName) []byte {
	encoder := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder()
	storage := NewBinaryWriter([]byte{})
	w := NewBinaryWriter([]byte{})
	w.WriteUint16(0)
	w.WriteUint16(uint16(len(names)))
	w.WriteUint16(uint16(6 + 12*len(names)))
	for _, name := range names {
		s, err := encoder.String(name.s)
		if err != nil {
			panic(err)
		}
		w.WriteUint16(uint16(PlatformWindows))
		w.WriteUint16(uint16(EncodingWindowsUnicodeBMP))
		w.WriteUint16(languageEnglishUS)
		w.WriteUint16(uint16(name.id))
		w.WriteUint16(uint16(len(s)))
		w.WriteUint16(uint16(storage.Len()))
		storage.WriteString(s)
	}
	w.WriteBytes(storage.Bytes())
	return w.Bytes()
}

func testOS2() []byte {
	b := make([]byte, 96)
	binary.BigEndian.PutUint16(b[0:], 2)   // version
	binary.BigEndian.PutUint16(b[68:], 800) // sTypoAscender
	binary.BigEndian.PutUint16(b[86:], 500) // sxHeight
	return b
}

func testPost() []byte {
	b := make([]byte, 32)
	binary.BigEndian.PutUint32(b[0:], 0x00030000)
	binary.BigEndian.PutUint16(b[8:], uint16(0xFF9C)) // underlinePosition -100
	binary.BigEndian.PutUint16(b[10:], 50)            // underlineThickness
	return b
}

// testStaticTables returns a minimal TrueType font with four glyphs.
func testStaticTables() Tables {
	glyphs := testGlyphs()
	data := make([][]byte, len(glyphs))
	for i, glyph := range glyphs {
		data[i] = glyph.Write()
	}
	glyf, loca, indexToLocFormat := buildGlyfLoca(data, -1)
	hmtx := &hmtxTable{
		HMetrics: []hmtxLongHorMetric{{500, 0}, {600, 100}, {500, 50}, {600, 110}},
	}
	return Tables{
		"head": testHead(indexToLocFormat),
		"hhea": testHhea(4),
		"maxp": testMaxp(4),
		"hmtx": hmtx.Write(),
		"glyf": glyf,
		"loca": loca,
		"name": testNameTable([]testName{
			{NameFontFamily, "Test"},
			{NameFontSubfamily, "Regular"},
		}),
		"OS/2": testOS2(),
		"post": testPost(),
	}
}

// testVariableTables returns testStaticTables with a wght axis from 100 to 900, default 400.
// At wght=900 the square widens by 100 units on the right, at wght=100 it narrows by 50.
func testVariableTables() Tables {
	tables := testStaticTables()
	tables["name"] = testNameTable([]testName{
		{NameFontFamily, "Test"},
		{NameFontSubfamily, "Regular"},
		{256, "Weight"},
		{257, "Thin"},
		{258, "Black"},
	})

	fvar := NewBinaryWriter([]byte{})
	fvar.WriteUint16(1)  // majorVersion
	fvar.WriteUint16(0)  // minorVersion
	fvar.WriteUint16(16) // axesArrayOffset
	fvar.WriteUint16(2)  // reserved
	fvar.WriteUint16(1)  // axisCount
	fvar.WriteUint16(20) // axisSize
	fvar.WriteUint16(3)  // instanceCount
	fvar.WriteUint16(8)  // instanceSize
	fvar.WriteString("wght")
	fvar.WriteFixed(100.0)
	fvar.WriteFixed(400.0)
	fvar.WriteFixed(900.0)
	fvar.WriteUint16(0)   // flags
	fvar.WriteUint16(256) // axisNameID
	for _, instance := range []struct {
		nameID uint16
		wght   float64
	}{{257, 100.0}, {uint16(NameFontSubfamily), 400.0}, {258, 900.0}} {
		fvar.WriteUint16(instance.nameID)
		fvar.WriteUint16(0) // flags
		fvar.WriteFixed(instance.wght)
	}
	tables["fvar"] = fvar.Bytes()

	gvar := NewBinaryWriter([]byte{})
	gvar.WriteUint16(1)  // majorVersion
	gvar.WriteUint16(0)  // minorVersion
	gvar.WriteUint16(1)  // axisCount
	gvar.WriteUint16(1)  // sharedTupleCount
	gvar.WriteUint32(30) // sharedTuplesOffset
	gvar.WriteUint16(4)  // glyphCount
	gvar.WriteUint16(0)  // flags
	gvar.WriteUint32(32) // glyphVariationDataArrayOffset
	for _, offset := range []uint16{0, 0, 17, 17, 17} {
		gvar.WriteUint16(offset)
	}
	gvar.WriteF2Dot14(1.0) // shared tuple

	// glyph 1, deltas for four points and four phantom points
	gvar.WriteUint16(2)      // tupleVariationCount
	gvar.WriteUint16(14)     // dataOffset
	gvar.WriteUint16(10)     // variationDataSize
	gvar.WriteUint16(0)      // shared tuple 0
	gvar.WriteUint16(10)     // variationDataSize
	gvar.WriteUint16(0x8000) // embedded peak
	gvar.WriteF2Dot14(-1.0)
	gvar.WriteBytes([]byte{0x07, 0, 100, 100, 0, 0, 100, 0, 0, 0x87})
	gvar.WriteBytes([]byte{0x07, 0, 0xCE, 0xCE, 0, 0, 0xCE, 0, 0, 0x87})
	tables["gvar"] = gvar.Bytes()

	tables["HVAR"] = testMetricsVar([][2]int8{{0, 0}, {100, -50}, {0, 0}, {0, 0}})

	mvar := NewBinaryWriter([]byte{})
	mvar.WriteUint16(1) // majorVersion
	mvar.WriteUint16(0) // minorVersion
	mvar.WriteUint16(0) // reserved
	mvar.WriteUint16(8) // valueRecordSize
	mvar.WriteUint16(3) // valueRecordCount
	mvar.WriteUint16(12 + 3*8)
	for _, record := range []struct {
		tag          string
		outer, inner uint16
	}{{"hasc", 0, 0}, {"xhgt", 0, 1}, {"zzzz", 0, 1}} {
		mvar.WriteString(record.tag)
		mvar.WriteUint16(record.outer)
		mvar.WriteUint16(record.inner)
	}
	mvar.WriteBytes(testItemVariationStore([][2]int8{{50, -20}, {30, -10}}))
	tables["MVAR"] = mvar.Bytes()
	return tables
}

// testItemVariationStore has the regions wght=+1 and wght=-1 and one delta row per item.
func testItemVariationStore(rows [][2]int8) []byte {
	w := NewBinaryWriter([]byte{})
	w.WriteUint16(1)  // format
	w.WriteUint32(12) // variationRegionListOffset
	w.WriteUint16(1)  // itemVariationDataCount
	w.WriteUint32(28) // itemVariationDataOffsets
	w.WriteUint16(1)  // axisCount
	w.WriteUint16(2)  // regionCount
	w.WriteF2Dot14(0.0)
	w.WriteF2Dot14(1.0)
	w.WriteF2Dot14(1.0)
	w.WriteF2Dot14(-1.0)
	w.WriteF2Dot14(-1.0)
	w.WriteF2Dot14(0.0)
	w.WriteUint16(uint16(len(rows))) // itemCount
	w.WriteUint16(0)                 // wordDeltaCount
	w.WriteUint16(2)                 // regionIndexCount
	w.WriteUint16(0)
	w.WriteUint16(1)
	for _, row := range rows {
		w.WriteInt8(row[0])
		w.WriteInt8(row[1])
	}
	return w.Bytes()
}

func testMetricsVar(rows [][2]int8) []byte {
	w := NewBinaryWriter([]byte{})
	w.WriteUint16(1)  // majorVersion
	w.WriteUint16(0)  // minorVersion
	w.WriteUint32(20) // itemVariationStoreOffset
	w.WriteUint32(0)  // advanceWidthMappingOffset
	w.WriteUint32(0)  // lsbMappingOffset
	w.WriteUint32(0)  // rsbMappingOffset
	w.WriteBytes(testItemVariationStore(rows))
	return w.Bytes()
}

////////////////////////////////////////////////////////////////

func TestSFNTWriteParse(t *testing.T) {
	b := writeSFNT(0x00010000, testStaticTables())
	test.T(t, len(b)%4, 0)
	test.T(t, calcChecksum(b), uint32(0xB1B0AFBA))

	sfnt, err := ParseSFNT(b, 0)
	test.Error(t, err)
	test.T(t, sfnt.IsTrueType, true)
	test.T(t, sfnt.NumGlyphs(), uint16(4))
	test.T(t, sfnt.Head.UnitsPerEm, uint16(1000))
	test.T(t, sfnt.Hhea.Ascender, int16(800))
	test.T(t, sfnt.GlyphAdvance(1), uint16(600))
	test.T(t, sfnt.Hmtx.LeftSideBearing(3), int16(110))

	family, ok := sfnt.Name.Find(NameFontFamily)
	test.T(t, ok, true)
	test.T(t, family, "Test")

	n, err := NumFonts(b)
	test.Error(t, err)
	test.T(t, n, 1)

	_, err = ParseSFNT(b, 1)
	test.That(t, err != nil, "bad font index")
}

func TestSFNTMissingTable(t *testing.T) {
	tables := testStaticTables()
	delete(tables, "loca")
	_, err := ParseSFNT(writeSFNT(0x00010000, tables), 0)
	test.T(t, err.Error(), "loca: missing table")
}

func TestGlyfGlyph(t *testing.T) {
	sfnt, err := NewSFNT(testStaticTables())
	test.Error(t, err)

	glyph, err := sfnt.Glyf.Glyph(0)
	test.Error(t, err)
	test.T(t, glyph.IsEmpty(), true)

	glyph, err = sfnt.Glyf.Glyph(2)
	test.Error(t, err)
	test.T(t, glyph.NumPoints(), 3)
	test.T(t, glyph.XCoordinates, []int16{50, 450, 250})
	test.T(t, glyph.YCoordinates, []int16{0, 0, 600})
	test.T(t, glyph.XMax, int16(450))

	glyph, err = sfnt.Glyf.Glyph(3)
	test.Error(t, err)
	test.T(t, glyph.IsComposite(), true)
	test.T(t, len(glyph.Components), 1)
	test.T(t, glyph.Components[0].GlyphID, uint16(1))
	test.T(t, glyph.Components[0].Arg1, int32(10))

	deps, err := sfnt.Glyf.Dependencies(3)
	test.Error(t, err)
	test.T(t, deps, []uint16{3, 1})

	contour, err := sfnt.Glyf.Contour(3)
	test.Error(t, err)
	test.T(t, contour.XMin, int16(110))
	test.T(t, contour.XMax, int16(510))
}

func TestGlyfGlyphWrite(t *testing.T) {
	glyph := &glyfGlyph{
		NumberOfContours: 2,
		EndPoints:        []uint16{2, 5},
		OnCurve:          []bool{true, false, true, true, true, true},
		Overlap:          true,
		XCoordinates:     []int16{0, 300, 600, 0, 0, 0},
		YCoordinates:     []int16{0, -1000, 0, 10, 20, 30},
		Instructions:     []byte{0xB0, 0x01},
	}
	glyph.UpdateBounds()
	test.T(t, glyph.XMax, int16(600))
	test.T(t, glyph.YMin, int16(-1000))

	parsed, err := parseGlyfGlyph(glyph.Write())
	test.Error(t, err)
	test.T(t, parsed.EndPoints, glyph.EndPoints)
	test.T(t, parsed.OnCurve, glyph.OnCurve)
	test.T(t, parsed.Overlap, true)
	test.T(t, parsed.XCoordinates, glyph.XCoordinates)
	test.T(t, parsed.YCoordinates, glyph.YCoordinates)
	test.Bytes(t, parsed.Instructions, glyph.Instructions)
}

func TestHmtxCompaction(t *testing.T) {
	hmtx := newHmtxTable([]uint16{120, 120, 120}, []int16{10, 20, 30})
	test.T(t, len(hmtx.HMetrics), 1)
	test.Bytes(t, hmtx.Write(), []byte{0, 120, 0, 10, 0, 20, 0, 30})
	test.T(t, hmtx.Advance(2), uint16(120))
	test.T(t, hmtx.LeftSideBearing(2), int16(30))

	hmtx = newHmtxTable([]uint16{100, 200}, []int16{1, 2})
	test.T(t, len(hmtx.HMetrics), 2)
	test.T(t, len(hmtx.LeftSideBearings), 0)
}

func TestMediaType(t *testing.T) {
	b := writeSFNT(0x00010000, testStaticTables())
	mediatype, err := MediaType(b)
	test.Error(t, err)
	test.T(t, mediatype, "font/truetype")
	test.T(t, Extension(b), ".ttf")

	_, err = MediaType([]byte("unknown font"))
	test.That(t, err != nil)
}

func TestOS2(t *testing.T) {
	sfnt, err := NewSFNT(testStaticTables())
	test.Error(t, err)
	test.T(t, sfnt.OS2.Version, uint16(2))
	test.T(t, sfnt.OS2.STypoAscender, int16(800))
	test.T(t, sfnt.OS2.SxHeight, int16(500))

	tables := testStaticTables()
	tables["OS/2"] = tables["OS/2"][:90]
	_, err = NewSFNT(tables)
	test.That(t, err != nil, "truncated OS/2")

	var weights = []struct {
		wght  float64
		class uint16
	}{
		{400.0, 400},
		{649.6, 650},
		{0.0, 1},
		{1200.0, 1000},
	}
	for _, tt := range weights {
		test.T(t, os2WeightClass(tt.wght), tt.class, tt.wght)
	}

	var widths = []struct {
		wdth  float64
		class uint16
	}{
		{100.0, 5},
		{40.0, 1},
		{80.0, 3},
		{85.0, 4},
		{150.0, 8},
		{200.0, 9},
		{300.0, 9},
	}
	for _, tt := range widths {
		test.T(t, os2WidthClass(tt.wdth), tt.class, tt.wdth)
	}

	tables = testStaticTables()
	updateOS2Classes(tables, map[string]float64{"wdth": 75.0})
	test.T(t, binary.BigEndian.Uint16(tables["OS/2"][4:]), uint16(0))
	test.T(t, binary.BigEndian.Uint16(tables["OS/2"][6:]), uint16(3))
	test.T(t, binary.BigEndian.Uint16(testOS2()[6:]), uint16(0))
}
