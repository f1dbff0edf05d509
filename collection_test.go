package font

import (
	"encoding/binary"
	"testing"

	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/suite"
)

// --- Test Suite Preparation ------------------------------------------------

type CollectionTestEnviron struct {
	suite.Suite
	regular Tables
	bold    Tables
}

func TestCollection(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "font")
	defer teardown()
	suite.Run(t, new(CollectionTestEnviron))
}

func (env *CollectionTestEnviron) SetupSuite() {
	env.T().Log("Setting up test suite")
	tracing.Select("font").SetTraceLevel(tracing.LevelInfo)
	env.regular = testStaticTables()
	env.bold = testStaticTables()
	env.bold["name"] = testNameTable([]testName{
		{NameFontFamily, "Test"},
		{NameFontSubfamily, "Bold"},
	})
}

func tablesSize(tables Tables) int {
	size := 0
	for _, data := range tables {
		size += len(data)
	}
	return size
}

// --- Tests -----------------------------------------------------------------

func (env *CollectionTestEnviron) TestParseCollectionFormat() {
	format, err := ParseCollectionFormat("OTC")
	env.Require().NoError(err)
	env.Equal(CollectionOTC, format)
	format, err = ParseCollectionFormat("ttc")
	env.Require().NoError(err)
	env.Equal(CollectionTTC, format)
	env.Equal("TTC", format.String())

	_, err = ParseCollectionFormat("woff2")
	env.ErrorIs(err, ErrInvalidArgument)
}

func (env *CollectionTestEnviron) TestIdenticalFonts() {
	font := Tables{"head": []byte("shared_head"), "name": []byte("shared_name")}
	analysis := NewTableAnalyzer([]TableProvider{font, font}, nil).Analyze()
	env.Equal(2, analysis.TotalFonts)
	env.Len(analysis.SharedTables, 2)
	env.Len(analysis.UniqueTables, 0)
	env.Equal(22, analysis.SpaceSavings)
	env.InDelta(100.0, analysis.SharingPercentage, 1e-9)
	env.Equal(analysis.TableChecksums[0], analysis.TableChecksums[1])
}

func (env *CollectionTestEnviron) TestSavingsGrowWithCopies() {
	size := tablesSize(env.regular)
	for n := 1; n <= 4; n++ {
		fonts := make([]TableProvider, n)
		for i := range fonts {
			fonts[i] = env.regular
		}
		analysis := NewTableAnalyzer(fonts, nil).Analyze()
		env.Equal((n-1)*size, analysis.SpaceSavings, "%d copies", n)
		if n == 1 {
			env.Len(analysis.SharedTables, 0)
			env.InDelta(0.0, analysis.SharingPercentage, 1e-9)
		} else {
			env.Len(analysis.SharedTables, len(env.regular))
		}
	}
}

func (env *CollectionTestEnviron) TestPartialSharing() {
	analyzer := NewTableAnalyzer([]TableProvider{env.regular, env.bold}, nil)
	analysis := analyzer.Analyze()
	env.Len(analysis.SharedTables, len(env.regular)-1)
	env.Len(analysis.UniqueTables, 2)
	env.Equal(tablesSize(env.regular)-len(env.regular["name"]), analysis.SpaceSavings)
	env.Greater(analysis.SharingPercentage, 0.0)
	env.Less(analysis.SharingPercentage, 100.0)

	names := analyzer.CanonicalTables()["name"]
	env.Require().Len(names, 2)
	env.Equal([]int{0}, names[0].Fonts)
	env.Equal([]int{1}, names[1].Fonts)

	sharing := analyzer.SharingMap()
	env.Same(sharing[0]["glyf"], sharing[1]["glyf"])
	env.NotSame(sharing[0]["name"], sharing[1]["name"])

	stats := analyzer.Statistics()
	env.Equal(2*len(env.regular), stats.TotalTables)
	env.Equal(len(env.regular)+1, stats.CanonicalCount)
	env.Equal(len(env.regular)-1, stats.SharedTables)
	env.Equal(2, stats.UniqueTables)
}

func (env *CollectionTestEnviron) TestGvarNotShared() {
	env.False(IsShareableTable("gvar"))
	env.False(IsShareableTable("CFF2"))
	env.True(IsShareableTable("glyf"))

	font := testVariableTables()
	analyzer := NewTableAnalyzer([]TableProvider{font, font}, nil)
	gvars := analyzer.CanonicalTables()["gvar"]
	env.Require().Len(gvars, 2)
	env.NotEqual(gvars[0].ID, gvars[1].ID)
	env.Equal(gvars[0].Checksum, gvars[1].Checksum)
	env.False(gvars[0].Shared())
	env.True(analyzer.SharingMap()[0]["HVAR"].Shared())
}

func (env *CollectionTestEnviron) TestHeadChecksumAdjustment() {
	head := testHead(0)
	adjusted := append([]byte{}, head...)
	binary.BigEndian.PutUint32(adjusted[8:], 0x12345678)
	env.Equal(tableChecksum("head", head), tableChecksum("head", adjusted))
	env.NotEqual(calcChecksum(head), calcChecksum(adjusted))
	env.Equal(calcChecksum(adjusted), tableChecksum("name", adjusted))

	// equal checksums but different bytes are distinct tables
	a := Tables{"head": head}
	b := Tables{"head": adjusted}
	heads := NewTableAnalyzer([]TableProvider{a, b}, nil).CanonicalTables()["head"]
	env.Require().Len(heads, 2)
	env.Equal(heads[0].ID+"-1", heads[1].ID)
}

func (env *CollectionTestEnviron) TestOffsetLayout() {
	odd := Tables{"head": testHead(0), "glyf": []byte{1, 2, 3}, "name": []byte{4, 5, 6, 7, 8}}
	other := Tables{"head": testHead(0), "glyf": []byte{9}, "name": []byte{4, 5, 6, 7, 8}}
	fonts := []TableProvider{odd, other}
	analyzer := NewTableAnalyzer(fonts, nil)
	layout, err := NewOffsetCalculator(fonts).Calculate(analyzer.SharingMap())
	env.Require().NoError(err)

	env.Equal(uint32(0), layout.HeaderOffset)
	env.Equal(uint32(12), layout.OffsetTableOffset)
	env.Equal([]uint32{20, 20 + 12 + 3*16}, layout.FontDirectoryOffsets)
	for _, offset := range layout.TableOffsets {
		env.Zero(offset%4, "offset %d", offset)
	}
	env.Zero(layout.TotalSize % 4)
	env.Len(layout.CanonicalTables, 4)

	dirs := layout.FontTableDirectories
	env.Equal(uint32(0x00010000), dirs[0].SfntVersion)
	env.Equal("glyf", dirs[0].Records[0].Tag)
	env.Equal(dirs[0].Records[1].Offset, dirs[1].Records[1].Offset) // head
	env.Equal(dirs[0].Records[2].Offset, dirs[1].Records[2].Offset) // name
	env.NotEqual(dirs[0].Records[0].Offset, dirs[1].Records[0].Offset)
	env.Equal(uint32(1), dirs[1].Records[0].Length)

	_, err = NewOffsetCalculator(fonts).Calculate(analyzer.SharingMap()[:1])
	env.ErrorIs(err, ErrInvalidArgument)
}

func (env *CollectionTestEnviron) TestBuild() {
	builder := NewCollectionBuilder(DefaultCollectionOptions())
	builder.Add(env.regular)
	builder.Add(env.bold)
	env.Equal(2, builder.Len())

	result, err := builder.Build()
	env.Require().NoError(err)
	env.Equal(int(result.Layout.TotalSize), len(result.Data))
	env.Equal("ttcf", string(result.Data[:4]))
	env.Equal(uint16(1), binary.BigEndian.Uint16(result.Data[4:]))
	env.Equal(uint32(2), binary.BigEndian.Uint32(result.Data[8:]))
	env.Equal(2*len(env.regular), result.Statistics.TotalTables)

	n, err := NumFonts(result.Data)
	env.Require().NoError(err)
	env.Equal(2, n)

	fonts, err := ParseCollection(result.Data)
	env.Require().NoError(err)
	env.Require().Len(fonts, 2)
	for i, tables := range []Tables{env.regular, env.bold} {
		env.Equal(tables.TableNames(), fonts[i].TableNames())
		for tag, data := range tables {
			env.Equal(data, fonts[i].TableData(tag), "font %d table %s", i, tag)
		}
		env.True(fonts[i].IsTrueType)
	}
	subfamily, _ := fonts[1].Name.Find(NameFontSubfamily)
	env.Equal("Bold", subfamily)

	// the collection fits the unshared fonts minus the savings and the extra directory
	single := len(writeSFNT(0x00010000, env.regular)) + len(writeSFNT(0x00010000, env.bold))
	env.Less(len(result.Data), single)
}

func (env *CollectionTestEnviron) TestBuildOTC() {
	cff := Tables{"head": testHead(0), "maxp": testMaxp(1), "CFF ": []byte{1, 0, 4, 1}}

	builder := NewCollectionBuilder(DefaultCollectionOptions())
	builder.Add(cff)
	env.ErrorIs(builder.Validate(), ErrInvalidArgument)

	builder = NewCollectionBuilder(CollectionOptions{Format: CollectionOTC})
	builder.Add(cff)
	builder.Add(env.regular)
	result, err := builder.Build()
	env.Require().NoError(err)
	env.Equal(uint32(0x4F54544F), result.Layout.FontTableDirectories[0].SfntVersion)
	env.Equal(uint32(0x00010000), result.Layout.FontTableDirectories[1].SfntVersion)
	env.Equal("CFF ", result.Layout.FontTableDirectories[0].Records[0].Tag)
}

func (env *CollectionTestEnviron) TestAddFont() {
	builder := NewCollectionBuilder(DefaultCollectionOptions())
	env.Require().NoError(builder.AddFont(writeSFNT(0x00010000, env.regular)))
	env.Equal(1, builder.Len())

	bold, err := NewSFNT(env.bold)
	env.Require().NoError(err)
	woff2, err := bold.WriteWOFF2()
	env.Require().NoError(err)
	env.Require().NoError(builder.AddFont(woff2))
	env.Equal(2, builder.Len())

	result, err := builder.Build()
	env.Require().NoError(err)
	env.Require().NoError(builder.AddFont(result.Data))
	env.Equal(4, builder.Len())

	env.Error(builder.AddFont([]byte("not a font")))
}

func (env *CollectionTestEnviron) TestValidate() {
	builder := NewCollectionBuilder(DefaultCollectionOptions())
	env.ErrorIs(builder.Validate(), ErrInvalidArgument)

	builder.Add(Tables{"glyf": []byte{}})
	env.ErrorIs(builder.Validate(), ErrInvalidFontData)

	builder = NewCollectionBuilder(DefaultCollectionOptions())
	builder.Add(Tables{"head": testHead(0), "glyf": []byte{}, "bad": []byte{}})
	env.ErrorIs(builder.Validate(), ErrInvalidFontData)

	builder = NewCollectionBuilder(DefaultCollectionOptions())
	builder.Add(Tables{"head": testHead(0)})
	env.ErrorIs(builder.Validate(), ErrInvalidArgument)

	builder = NewCollectionBuilder(CollectionOptions{Format: CollectionFormat(7)})
	builder.Add(env.regular)
	_, err := builder.Build()
	env.ErrorIs(err, ErrInvalidArgument)
	env.Equal("CollectionFormat(7)", CollectionFormat(7).String())
}
