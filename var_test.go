package font

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/tdewolff/test"
)

func testInstanceOptions() InstanceOptions {
	options := DefaultInstanceOptions()
	options.Static.Modified = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return options
}

func testAvar(segments [][2]float64) []byte {
	w := NewBinaryWriter([]byte{})
	w.WriteUint16(1) // majorVersion
	w.WriteUint16(0) // minorVersion
	w.WriteUint16(0) // reserved
	w.WriteUint16(1) // axisCount
	w.WriteUint16(uint16(len(segments)))
	for _, segment := range segments {
		w.WriteF2Dot14(segment[0])
		w.WriteF2Dot14(segment[1])
	}
	return w.Bytes()
}

func TestAxisScalar(t *testing.T) {
	var tests = []struct {
		axis RegionAxis
		v    float64
		s    float64
	}{
		{RegionAxis{0.0, 1.0, 1.0}, 0.5, 0.5},
		{RegionAxis{0.0, 1.0, 1.0}, 1.0, 1.0},
		{RegionAxis{0.0, 1.0, 1.0}, 0.0, 0.0},
		{RegionAxis{0.0, 1.0, 1.0}, -0.5, 0.0},
		{RegionAxis{-1.0, -1.0, 0.0}, -0.25, 0.25},
		{RegionAxis{0.2, 0.5, 1.0}, 0.35, 0.5},
		{RegionAxis{0.2, 0.5, 1.0}, 0.75, 0.5},
		{RegionAxis{0.2, 0.5, 1.0}, 0.1, 0.0},
		{RegionAxis{0.0, 0.0, 0.0}, 0.7, 1.0},  // axis does not participate
		{RegionAxis{-0.5, 0.5, 1.0}, 0.2, 1.0}, // malformed, crosses zero
		{RegionAxis{0.8, 0.5, 1.0}, 0.9, 1.0},  // malformed, peak before start
	}
	for _, tt := range tests {
		test.Float(t, axisScalar(tt.axis, tt.v), tt.s, tt.axis, tt.v)
	}
}

func TestRegionMatcher(t *testing.T) {
	regions := []VariationRegion{
		{{0.0, 1.0, 1.0}},
		{{-1.0, -1.0, 0.0}},
		{{0.0, 1.0, 1.0}, {0.0, 1.0, 1.0}},
	}
	m := NewRegionMatcher([]string{"wght", "wdth"}, regions, DefaultRegionMatcherOptions())
	test.T(t, m.RegionCount(), 3)

	scalars := m.Match(NormalizedCoordinates{"wght": 0.5})
	test.T(t, len(scalars), 3)
	test.Float(t, scalars[0], 0.5)
	test.Float(t, scalars[1], 0.0)
	test.Float(t, scalars[2], 0.0) // wdth at default

	scalars = m.Match(NormalizedCoordinates{"wght": 0.5, "wdth": 0.5})
	test.Float(t, scalars[2], 0.25)

	// cached
	again := m.Match(NormalizedCoordinates{"wdth": 0.5, "wght": 0.5})
	test.T(t, &again[0] == &scalars[0], true)

	// below the minimum scalar
	scalars = m.Match(NormalizedCoordinates{"wght": 0.00005})
	test.Float(t, scalars[0], 0.0)

	options := DefaultRegionMatcherOptions()
	options.Cache = false
	options.MinScalar = 0.0
	m = NewRegionMatcher([]string{"wght"}, regions[:2], options)
	scalars = m.Match(NormalizedCoordinates{"wght": 0.00005})
	test.Float(t, scalars[0], 0.00005)
}

func TestRegionMatcherCacheLimit(t *testing.T) {
	options := DefaultRegionMatcherOptions()
	options.MaxCacheEntries = 2
	m := NewRegionMatcher([]string{"wght"}, []VariationRegion{{{0.0, 1.0, 1.0}}}, options)
	for _, v := range []float64{0.1, 0.2, 0.3, 0.4} {
		test.Float(t, m.Match(NormalizedCoordinates{"wght": v})[0], v)
	}
	test.T(t, len(m.cache), 2)
	_, ok := m.cache[NormalizedCoordinates{"wght": 0.1}.Key()]
	test.That(t, ok, "first entry evicted")
	_, ok = m.cache[NormalizedCoordinates{"wght": 0.4}.Key()]
	test.That(t, !ok, "entry stored in a full cache")

	// uncached coordinates are still computed
	test.Float(t, m.Match(NormalizedCoordinates{"wght": 0.4})[0], 0.4)
}

func TestNormalizedCoordinates(t *testing.T) {
	coords := NormalizedCoordinates{"wght": 0.5, "wdth": -1.0}
	test.T(t, coords.Key(), "wdth:-1,wght:0.5")
	test.T(t, coords.IsDefault(), false)
	test.T(t, NormalizedCoordinates{"wght": 0.0}.IsDefault(), true)
}

func TestAxisNormalizer(t *testing.T) {
	fvar, err := ParseFvar(testVariableTables()["fvar"])
	test.Error(t, err)
	n := NewAxisNormalizer(fvar, nil, DefaultNormalizerOptions())

	var tests = []struct {
		wght float64
		v    float64
	}{
		{400.0, 0.0},
		{100.0, -1.0},
		{900.0, 1.0},
		{250.0, -0.5},
		{650.0, 0.5},
		{123.456789, -0.921811},
		{1000.0, 1.0}, // clamped
		{50.0, -1.0},  // clamped
	}
	for _, tt := range tests {
		coords, err := n.Normalize(map[string]float64{"wght": tt.wght})
		test.Error(t, err)
		test.Float(t, coords["wght"], tt.v, tt.wght)
	}

	coords, err := n.Normalize(map[string]float64{})
	test.Error(t, err)
	test.T(t, coords.IsDefault(), true)
	test.T(t, len(coords), 1)

	_, err = n.Normalize(map[string]float64{"wdth": 100.0})
	test.That(t, IsArgumentError(err), err)
	var unknownAxis *UnknownAxisError
	test.That(t, errors.As(err, &unknownAxis))
	test.T(t, unknownAxis.Tag, "wdth")

	options := DefaultNormalizerOptions()
	options.UseAxisDefaults = false
	coords, err = NewAxisNormalizer(fvar, nil, options).Normalize(map[string]float64{})
	test.Error(t, err)
	test.T(t, len(coords), 0)
}

func TestAxisNormalizerAvar(t *testing.T) {
	tables := testVariableTables()
	fvar, err := ParseFvar(tables["fvar"])
	test.Error(t, err)
	avar, err := ParseAvar(testAvar([][2]float64{{-1.0, -1.0}, {0.0, 0.0}, {0.5, 0.8}, {1.0, 1.0}}), len(fvar.Axes))
	test.Error(t, err)

	n := NewAxisNormalizer(fvar, avar, DefaultNormalizerOptions())
	for _, tt := range []struct {
		wght float64
		v    float64
	}{
		{400.0, 0.0},
		{650.0, 0.8},
		{525.0, 0.4},
		{775.0, 0.9},
		{250.0, -0.5},
		{900.0, 1.0},
	} {
		coords, err := n.Normalize(map[string]float64{"wght": tt.wght})
		test.Error(t, err)
		test.Float(t, coords["wght"], tt.v, tt.wght)
	}

	_, err = ParseAvar(testAvar(nil), 2)
	test.That(t, err != nil, "axis count mismatch")
	var nilAvar *AvarTable
	test.Float(t, nilAvar.Map(0, 0.3), 0.3)
}

func TestFvar(t *testing.T) {
	fvar, err := ParseFvar(testVariableTables()["fvar"])
	test.Error(t, err)
	test.T(t, fvar.AxisTags(), []string{"wght"})
	test.T(t, fvar.AxisIndex("wght"), 0)
	test.T(t, fvar.AxisIndex("wdth"), -1)

	axis, ok := fvar.Axis("wght")
	test.T(t, ok, true)
	test.Float(t, axis.Min, 100.0)
	test.Float(t, axis.Default, 400.0)
	test.Float(t, axis.Max, 900.0)
	test.T(t, axis.NameID, NameID(256))
	test.T(t, axis.IsHidden(), false)

	test.T(t, len(fvar.Instances), 3)
	test.T(t, fvar.Instances[2].SubfamilyNameID, NameID(258))
	test.Float(t, fvar.Instances[2].Coordinates[0], 900.0)

	axes, err := FontAxes(testVariableTables())
	test.Error(t, err)
	test.T(t, axes["wght"], AxisInfo{Min: 100.0, Default: 400.0, Max: 900.0, NameID: 256})

	axes, err = FontAxes(testStaticTables())
	test.Error(t, err)
	test.T(t, len(axes), 0)
}

func TestGvar(t *testing.T) {
	gvar, err := ParseGvar(testVariableTables()["gvar"])
	test.Error(t, err)
	test.T(t, gvar.AxisCount, 1)
	test.T(t, gvar.GlyphCount, 4)
	test.T(t, gvar.SharedTuples, [][]float64{{1.0}})
	test.T(t, gvar.HasVariations(0), false)
	test.T(t, gvar.HasVariations(1), true)
	test.T(t, gvar.HasVariations(4), false)

	tuples, err := gvar.Variations(1, 8)
	test.Error(t, err)
	test.T(t, len(tuples), 2)
	test.T(t, tuples[0].SharedIndex, 0)
	test.T(t, tuples[0].Points == nil, true)
	test.T(t, tuples[0].XDeltas, []int32{0, 100, 100, 0, 0, 100, 0, 0})
	test.T(t, tuples[0].YDeltas, []int32{0, 0, 0, 0, 0, 0, 0, 0})
	test.T(t, tuples[1].SharedIndex, -1)
	test.T(t, tuples[1].Region(), VariationRegion{{-1.0, -1.0, 0.0}})
	test.T(t, tuples[1].XDeltas[1], int32(-50))
}

func TestPackedPointsDeltas(t *testing.T) {
	// two runs of point numbers: bytes and words
	points, err := readPackedPoints(NewBinaryReader([]byte{4, 0x01, 2, 3, 0x81, 0x01, 0x00, 0x00, 0x01}))
	test.Error(t, err)
	test.T(t, points, []uint16{2, 5, 261, 262})

	points, err = readPackedPoints(NewBinaryReader([]byte{0}))
	test.Error(t, err)
	test.T(t, points == nil, true)

	deltas, err := readPackedDeltas(NewBinaryReader([]byte{0x81, 0x40, 0x01, 0x00, 0xC0, 0xFF, 0xFF, 0xFF, 0xFE, 0x00, 0xFB}), 5)
	test.Error(t, err)
	test.T(t, deltas, []int32{0, 0, 256, -2, -5})

	_, err = readPackedDeltas(NewBinaryReader([]byte{0x03, 0x01}), 4)
	test.That(t, err != nil, "truncated deltas")
}

func TestItemVariationStore(t *testing.T) {
	hvar, err := ParseHVAR(testVariableTables()["HVAR"])
	test.Error(t, err)
	test.T(t, len(hvar.Store.Regions), 2)
	test.T(t, hvar.Store.Regions[1], VariationRegion{{-1.0, -1.0, 0.0}})
	test.T(t, hvar.Store.DeltaSet(0, 1), []int32{100, -50})
	test.T(t, hvar.Store.DeltaSet(0, 4) == nil, true)
	test.T(t, hvar.Store.DeltaSet(1, 0) == nil, true)
	test.T(t, hvar.AdvanceMap == nil, true)

	mvar, err := ParseMVAR(testVariableTables()["MVAR"])
	test.Error(t, err)
	test.T(t, len(mvar.Records), 3)
	record, ok := mvar.Record("xhgt")
	test.T(t, ok, true)
	test.T(t, record.VariationIndex, VariationIndex{0, 1})
	_, ok = mvar.Record("cpht")
	test.T(t, ok, false)
}

func TestDeltaSetIndexMap(t *testing.T) {
	// format 0, one byte entries with 4 inner bits
	m, err := ParseDeltaSetIndexMap([]byte{0, 0x03, 0, 3, 0x00, 0x12, 0x05})
	test.Error(t, err)
	index, ok := m.Map(1)
	test.T(t, ok, true)
	test.T(t, index, VariationIndex{1, 2})
	index, _ = m.Map(10)
	test.T(t, index, VariationIndex{0, 5})

	var nilMap *DeltaSetIndexMap
	_, ok = nilMap.Map(0)
	test.T(t, ok, false)
}

func TestInterpolateUntouched(t *testing.T) {
	glyph := testGlyphs()[1]
	touched := bitset.New(8)
	touched.Set(0).Set(2)
	dxs := []float64{0, 0, 100, 0, 0, 0, 0, 0}
	dys := []float64{0, 0, 50, 0, 0, 0, 0, 0}
	interpolateUntouched(glyph, touched, dxs, dys)
	test.T(t, dxs[:4], []float64{0, 100, 100, 0})
	test.T(t, dys[:4], []float64{0, 0, 50, 50})

	touched = bitset.New(8)
	touched.Set(1)
	dxs = []float64{0, 7, 0, 0, 0, 0, 0, 0}
	dys = []float64{0, -3, 0, 0, 0, 0, 0, 0}
	interpolateUntouched(glyph, touched, dxs, dys)
	test.T(t, dxs[:4], []float64{7, 7, 7, 7})
	test.T(t, dys[:4], []float64{-3, -3, -3, -3})
}

func TestRoundingMode(t *testing.T) {
	test.T(t, RoundHalfUp.Round(2.5), 3)
	test.T(t, RoundHalfUp.Round(-2.5), -2)
	test.T(t, RoundFloor.Round(-0.2), -1)
	test.T(t, RoundCeil.Round(0.2), 1)
	test.T(t, RoundTruncate.Round(-1.7), -1)
	test.T(t, RoundTruncate.String(), "truncate")
}

func TestDeltaApplicator(t *testing.T) {
	a, err := NewDeltaApplicator(testVariableTables(), DefaultDeltaOptions())
	test.Error(t, err)
	test.T(t, a.AxisTags(), []string{"wght"})
	test.T(t, a.RegionCount(), 2)

	result, err := a.ApplyGlyph(1, map[string]float64{"wght": 900.0})
	test.Error(t, err)
	test.T(t, result.XDeltas, []int{0, 100, 100, 0})
	test.T(t, result.YDeltas, []int{0, 0, 0, 0})
	test.T(t, result.AdvanceWidthDelta(), 100)

	result, err = a.ApplyGlyph(1, map[string]float64{"wght": 650.0})
	test.Error(t, err)
	test.T(t, result.XDeltas, []int{0, 50, 50, 0})

	result, err = a.ApplyGlyph(2, map[string]float64{"wght": 900.0})
	test.Error(t, err)
	test.T(t, result == nil, true)

	advance, err := a.AdvanceWidthDelta(1, map[string]float64{"wght": 100.0})
	test.Error(t, err)
	test.T(t, advance, -50)

	results, err := a.ApplyGlyphs([]uint16{0, 1, 2, 3}, map[string]float64{"wght": 100.0})
	test.Error(t, err)
	test.T(t, len(results), 1)
	test.T(t, results[1].XDeltas, []int{0, -50, -50, 0})

	deltas, err := a.Apply(map[string]float64{"wght": 900.0})
	test.Error(t, err)
	test.Float(t, deltas.Coordinates["wght"], 1.0)
	test.T(t, deltas.RegionScalars, RegionScalars{1.0, 0.0})
	test.T(t, deltas.FontMetrics, map[string]int{"hasc": 50, "xhgt": 30, "zzzz": 30})
	test.T(t, deltas.MetricDeltas[1].Horizontal.AdvanceWidth, 100)
	test.T(t, deltas.MetricDeltas[2].Horizontal.AdvanceWidth, 0)

	deltas, err = a.Apply(map[string]float64{})
	test.Error(t, err)
	test.T(t, deltas.FontMetrics["hasc"], 0)
	test.T(t, deltas.GlyphDeltas[1].XDeltas, []int{0, 0, 0, 0})

	_, err = NewDeltaApplicator(testStaticTables(), DefaultDeltaOptions())
	test.T(t, err, ErrNotVariableFont)
}

func TestDeltaApplicatorAxisMismatch(t *testing.T) {
	tables := testVariableTables()
	gvar := append([]byte{}, tables["gvar"]...)
	binary.BigEndian.PutUint16(gvar[4:], 2)
	tables["gvar"] = gvar
	_, err := NewDeltaApplicator(tables, DefaultDeltaOptions())
	test.That(t, errors.Is(err, ErrInvalidFontData), err)
}

func TestStaticFontBuilder(t *testing.T) {
	options := DefaultStaticOptions()
	options.Modified = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	builder, err := NewStaticFontBuilder(testVariableTables(), options)
	test.Error(t, err)

	advance, lsb := 650, 120
	b, err := builder.Build(map[uint16]HMetricOverride{
		2: {AdvanceWidth: &advance, LSB: &lsb},
	}, map[string]int{"undo": -10, "hcla": -900})
	test.Error(t, err)

	sfnt, err := ParseSFNT(b, 0)
	test.Error(t, err)
	for _, tag := range []string{"fvar", "gvar", "HVAR", "MVAR"} {
		test.That(t, !sfnt.HasTable(tag), tag)
	}
	test.T(t, sfnt.Hmtx.Advance(2), uint16(650))
	test.T(t, sfnt.Hmtx.LeftSideBearing(2), int16(120))
	test.T(t, sfnt.Hmtx.Advance(1), uint16(600))
	test.T(t, sfnt.Hhea.AdvanceWidthMax, uint16(650))
	test.T(t, sfnt.Head.Modified.Equal(options.Modified), true)
	test.T(t, int16(binary.BigEndian.Uint16(sfnt.TableData("post")[8:])), int16(-110))
	test.T(t, binary.BigEndian.Uint16(sfnt.TableData("OS/2")[74:]), uint16(0)) // clamped

	_, err = builder.Build(map[uint16]HMetricOverride{4: {AdvanceWidth: &advance}}, nil)
	test.That(t, IsArgumentError(err), err)
}

func TestInstancer(t *testing.T) {
	in, err := NewInstancer(testVariableTables(), DefaultDeltaOptions())
	test.Error(t, err)
	test.T(t, in.Axes(), map[string]AxisInfo{"wght": {Min: 100.0, Default: 400.0, Max: 900.0, NameID: 256}})

	b, err := in.Instance(map[string]float64{"wght": 900.0}, testInstanceOptions())
	test.Error(t, err)
	sfnt, err := ParseSFNT(b, 0)
	test.Error(t, err)
	test.T(t, sfnt.TableNames(), []string{"OS/2", "glyf", "head", "hhea", "hmtx", "loca", "maxp", "name", "post"})

	test.T(t, sfnt.Hmtx.Advance(1), uint16(700))
	test.T(t, sfnt.Hmtx.LeftSideBearing(1), int16(100))
	test.T(t, sfnt.Hmtx.Advance(2), uint16(500))
	test.T(t, sfnt.Hmtx.LeftSideBearing(3), int16(110))
	test.T(t, sfnt.Hhea.AdvanceWidthMax, uint16(700))
	test.T(t, sfnt.Hhea.Ascender, int16(850))
	test.T(t, int16(binary.BigEndian.Uint16(sfnt.TableData("OS/2")[68:])), int16(850))
	test.T(t, int16(binary.BigEndian.Uint16(sfnt.TableData("OS/2")[86:])), int16(530))
	test.T(t, int16(binary.BigEndian.Uint16(sfnt.TableData("post")[8:])), int16(-100))
	test.T(t, sfnt.OS2.UsWeightClass, uint16(900))
	test.T(t, sfnt.OS2.UsWidthClass, uint16(0))

	glyph, err := sfnt.Glyf.Glyph(1)
	test.Error(t, err)
	test.T(t, glyph.XCoordinates, []int16{100, 600, 600, 100})
	test.T(t, glyph.XMax, int16(600))
	glyph, err = sfnt.Glyf.Glyph(3)
	test.Error(t, err)
	test.T(t, glyph.XMin, int16(110))
	test.T(t, glyph.XMax, int16(610))
	test.T(t, [4]int16{sfnt.Head.XMin, sfnt.Head.YMin, sfnt.Head.XMax, sfnt.Head.YMax}, [4]int16{50, 0, 610, 700})

	b, err = in.Instance(map[string]float64{"wght": 100.0}, testInstanceOptions())
	test.Error(t, err)
	sfnt, err = ParseSFNT(b, 0)
	test.Error(t, err)
	test.T(t, sfnt.Hmtx.Advance(1), uint16(550))
	test.T(t, sfnt.Hhea.Ascender, int16(780))
	test.T(t, sfnt.OS2.UsWeightClass, uint16(100))
	glyph, err = sfnt.Glyf.Glyph(3)
	test.Error(t, err)
	test.T(t, glyph.XMax, int16(460))
}

func TestInstancerDefault(t *testing.T) {
	tables := testVariableTables()
	in, err := NewInstancer(tables, DefaultDeltaOptions())
	test.Error(t, err)

	b, err := in.Instance(nil, testInstanceOptions())
	test.Error(t, err)
	sfnt, err := ParseSFNT(b, 0)
	test.Error(t, err)
	test.T(t, sfnt.Hmtx.Advance(1), uint16(600))
	test.T(t, sfnt.Hhea.Ascender, int16(800))
	test.T(t, sfnt.HasTable("fvar"), false)
	test.T(t, sfnt.OS2.UsWeightClass, uint16(400))
	glyph, err := sfnt.Glyf.Glyph(1)
	test.Error(t, err)
	test.T(t, glyph.XCoordinates, []int16{100, 500, 500, 100})
	glyph, err = sfnt.Glyf.Glyph(3)
	test.Error(t, err)
	test.T(t, glyph.XMax, int16(510))
}

func TestInstancerWithoutOutlines(t *testing.T) {
	tables := testVariableTables()
	in, err := NewInstancer(tables, DefaultDeltaOptions())
	test.Error(t, err)

	options := testInstanceOptions()
	options.Outlines = false
	b, err := in.Instance(map[string]float64{"wght": 900.0}, options)
	test.Error(t, err)
	sfnt, err := ParseSFNT(b, 0)
	test.Error(t, err)
	test.T(t, sfnt.Hmtx.Advance(1), uint16(700))
	test.Bytes(t, sfnt.TableData("glyf"), tables["glyf"])
}

func TestInstancerNamed(t *testing.T) {
	in, err := NewInstancer(testVariableTables(), DefaultDeltaOptions())
	test.Error(t, err)

	instances := in.NamedInstances()
	test.T(t, len(instances), 3)
	test.T(t, instances[0].Name, "Thin")
	test.T(t, instances[1].Name, "Regular")
	test.T(t, instances[2].Name, "Black")
	test.T(t, instances[2].Coordinates, map[string]float64{"wght": 900.0})

	named, err := in.InstanceNamed("Black", testInstanceOptions())
	test.Error(t, err)
	explicit, err := in.Instance(map[string]float64{"wght": 900.0}, testInstanceOptions())
	test.Error(t, err)
	test.Bytes(t, named, explicit)

	_, err = in.InstanceNamed("Heavy", testInstanceOptions())
	test.That(t, IsArgumentError(err), err)
}

func TestInstancerError(t *testing.T) {
	in, err := NewInstancer(testVariableTables(), DefaultDeltaOptions())
	test.Error(t, err)

	_, err = in.Instance(map[string]float64{"wdth": 100.0}, testInstanceOptions())
	test.That(t, IsArgumentError(err), err)
	var unknownAxis *UnknownAxisError
	test.That(t, errors.As(err, &unknownAxis), err)

	_, err = in.Instance(map[string]float64{"wght": 1000.0}, testInstanceOptions())
	test.That(t, IsArgumentError(err), err)
	var invalidCoordinates *InvalidCoordinatesError
	test.That(t, errors.As(err, &invalidCoordinates), err)
	test.Float(t, invalidCoordinates.Max, 900.0)

	_, err = in.Instance(map[string]float64{"wght": math.NaN()}, testInstanceOptions())
	test.That(t, IsArgumentError(err), err)

	options := testInstanceOptions()
	options.Clamp = true
	clamped, err := in.Instance(map[string]float64{"wght": 1000.0}, options)
	test.Error(t, err)
	max, err := in.Instance(map[string]float64{"wght": 900.0}, options)
	test.Error(t, err)
	test.Bytes(t, clamped, max)

	_, err = NewInstancer(testStaticTables(), DefaultDeltaOptions())
	test.T(t, err, ErrNotVariableFont)
}
