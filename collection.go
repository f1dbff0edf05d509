package font

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// CollectionFormat is the kind of font collection, TrueType (TTC) or OpenType (OTC). Both are written with the 'ttcf' signature.
type CollectionFormat int

// see CollectionFormat
const (
	CollectionTTC CollectionFormat = iota
	CollectionOTC
)

func (format CollectionFormat) String() string {
	switch format {
	case CollectionTTC:
		return "TTC"
	case CollectionOTC:
		return "OTC"
	}
	return fmt.Sprintf("CollectionFormat(%d)", int(format))
}

// ParseCollectionFormat parses "ttc" or "otc", case insensitive.
func ParseCollectionFormat(s string) (CollectionFormat, error) {
	switch strings.ToLower(s) {
	case "ttc":
		return CollectionTTC, nil
	case "otc":
		return CollectionOTC, nil
	}
	return 0, fmt.Errorf("invalid collection format %q: %w", s, ErrInvalidArgument)
}

// unshareableTables hold glyph-indexed variation data and get their own copy per font, even when byte-identical.
var unshareableTables = map[string]bool{
	"gvar": true,
	"CFF2": true,
}

// IsShareableTable returns true if byte-identical tables with this tag may be stored once in a collection.
func IsShareableTable(tag string) bool {
	return !unshareableTables[tag]
}

// CanonicalTable is one physical copy of table data in a collection, referenced by one or more fonts.
type CanonicalTable struct {
	ID       string // tag and checksum, unique within a collection
	Tag      string
	Checksum uint32
	Data     []byte
	Fonts    []int // indices of the referencing fonts, ascending
}

// Size returns the table length in bytes.
func (table *CanonicalTable) Size() int {
	return len(table.Data)
}

// Shared returns true if more than one font references the table.
func (table *CanonicalTable) Shared() bool {
	return 1 < len(table.Fonts)
}

// SharingMap maps for each font the table tags to their canonical table.
type SharingMap []map[string]*CanonicalTable

// tableChecksum is the checksum of a table directory entry, with head.checkSumAdjustment counted as zero.
func tableChecksum(tag string, data []byte) uint32 {
	checksum := calcChecksum(data)
	if tag == "head" && 12 <= len(data) {
		checksum -= binary.BigEndian.Uint32(data[8:])
	}
	return checksum
}

// deduplicate groups the tables of all fonts by tag and content. It returns the sharing map and the canonical tables in order of first reference, fonts in order and tags sorted per font.
func deduplicate(fonts []TableProvider) (SharingMap, []*CanonicalTable) {
	sharing := make(SharingMap, len(fonts))
	canonical := []*CanonicalTable{}
	groups := map[string][]*CanonicalTable{} // by tag and checksum
	ids := map[string]int{}
	for i, font := range fonts {
		sharing[i] = map[string]*CanonicalTable{}
		for _, tag := range font.TableNames() {
			data := font.TableData(tag)
			checksum := tableChecksum(tag, data)
			key := fmt.Sprintf("%s/%08X", tag, checksum)

			var table *CanonicalTable
			if IsShareableTable(tag) {
				for _, candidate := range groups[key] {
					if bytes.Equal(candidate.Data, data) {
						table = candidate
						break
					}
				}
			}
			if table == nil {
				id := key
				if n := ids[key]; 0 < n {
					id = fmt.Sprintf("%s-%d", key, n)
				}
				ids[key]++
				table = &CanonicalTable{
					ID:       id,
					Tag:      tag,
					Checksum: checksum,
					Data:     data,
				}
				groups[key] = append(groups[key], table)
				canonical = append(canonical, table)
			}
			table.Fonts = append(table.Fonts, i)
			sharing[i][tag] = table
		}
	}
	return sharing, canonical
}

////////////////////////////////////////////////////////////////

// CollectionAnalysis describes the table sharing of a set of fonts.
type CollectionAnalysis struct {
	TotalFonts        int
	TableChecksums    []map[string]uint32 // per font
	SharedTables      []*CanonicalTable
	UniqueTables      []*CanonicalTable
	SpaceSavings      int     // bytes saved by storing shared tables once
	SharingPercentage float64 // share of table bytes that are stored in shared tables
}

// CollectionStatistics summarizes a CollectionAnalysis.
type CollectionStatistics struct {
	TotalTables       int // table directory entries over all fonts
	SharedTables      int
	UniqueTables      int
	SharingPercentage float64
	CanonicalCount    int
}

// TableAnalyzer finds the tables that a set of fonts can share in a collection.
type TableAnalyzer struct {
	fonts     []TableProvider
	sharing   SharingMap
	canonical []*CanonicalTable
	logger    Logger
}

// NewTableAnalyzer deduplicates the tables of the fonts. The font tables must not be modified afterwards.
func NewTableAnalyzer(fonts []TableProvider, logger Logger) *TableAnalyzer {
	sharing, canonical := deduplicate(fonts)
	return &TableAnalyzer{
		fonts:     fonts,
		sharing:   sharing,
		canonical: canonical,
		logger:    loggerOrDefault(logger),
	}
}

// SharingMap returns the canonical table of each table of each font.
func (a *TableAnalyzer) SharingMap() SharingMap {
	return a.sharing
}

// CanonicalTables returns the distinct versions of each table tag.
func (a *TableAnalyzer) CanonicalTables() map[string][]*CanonicalTable {
	tables := map[string][]*CanonicalTable{}
	for _, table := range a.canonical {
		tables[table.Tag] = append(tables[table.Tag], table)
	}
	return tables
}

// Analyze computes the shared tables and the space saved by sharing them.
func (a *TableAnalyzer) Analyze() *CollectionAnalysis {
	analysis := &CollectionAnalysis{
		TotalFonts:     len(a.fonts),
		TableChecksums: make([]map[string]uint32, len(a.fonts)),
		SharedTables:   []*CanonicalTable{},
		UniqueTables:   []*CanonicalTable{},
	}
	for i, tables := range a.sharing {
		analysis.TableChecksums[i] = make(map[string]uint32, len(tables))
		for tag, table := range tables {
			analysis.TableChecksums[i][tag] = table.Checksum
		}
	}

	var sharedSize, totalSize int
	for _, table := range a.canonical {
		size := table.Size() * len(table.Fonts)
		totalSize += size
		if table.Shared() {
			sharedSize += size
			analysis.SpaceSavings += (len(table.Fonts) - 1) * table.Size()
			analysis.SharedTables = append(analysis.SharedTables, table)
		} else {
			analysis.UniqueTables = append(analysis.UniqueTables, table)
		}
	}
	if 0 < totalSize {
		analysis.SharingPercentage = math.Max(0.0, math.Min(100.0, float64(sharedSize)/float64(totalSize)*100.0))
	}
	a.logger.Debugf("collection: %d fonts, %d shared and %d unique tables, %d bytes saved (%.1f%%)", analysis.TotalFonts, len(analysis.SharedTables), len(analysis.UniqueTables), analysis.SpaceSavings, analysis.SharingPercentage)
	return analysis
}

// Statistics returns the table counts and the sharing percentage.
func (a *TableAnalyzer) Statistics() CollectionStatistics {
	analysis := a.Analyze()
	stats := CollectionStatistics{
		SharedTables:      len(analysis.SharedTables),
		UniqueTables:      len(analysis.UniqueTables),
		SharingPercentage: analysis.SharingPercentage,
		CanonicalCount:    len(a.canonical),
	}
	for _, tables := range a.sharing {
		stats.TotalTables += len(tables)
	}
	return stats
}

////////////////////////////////////////////////////////////////

// CollectionOptions configures a CollectionBuilder.
type CollectionOptions struct {
	Format CollectionFormat
	Logger Logger
}

// DefaultCollectionOptions returns options for a TrueType collection.
func DefaultCollectionOptions() CollectionOptions {
	return CollectionOptions{
		Format: CollectionTTC,
	}
}

// BuildResult is the output of CollectionBuilder.Build.
type BuildResult struct {
	Data       []byte
	Layout     *OffsetLayout
	Analysis   *CollectionAnalysis
	Statistics CollectionStatistics
}

// CollectionBuilder writes fonts into a TTC or OTC collection, storing byte-identical tables once.
type CollectionBuilder struct {
	fonts   []TableProvider
	options CollectionOptions
	logger  Logger
}

// NewCollectionBuilder returns an empty builder.
func NewCollectionBuilder(options CollectionOptions) *CollectionBuilder {
	return &CollectionBuilder{
		options: options,
		logger:  loggerOrDefault(options.Logger),
	}
}

// Add appends a font to the collection.
func (b *CollectionBuilder) Add(font TableProvider) {
	b.fonts = append(b.fonts, font)
}

// AddFont parses an sfnt or WOFF2 font file and appends it, for collections all member fonts are appended.
func (b *CollectionBuilder) AddFont(data []byte) error {
	sfnt, err := ToSFNT(data)
	if err != nil {
		return err
	}
	fonts, err := ParseCollection(sfnt)
	if err != nil {
		return err
	}
	for _, font := range fonts {
		b.Add(font)
	}
	return nil
}

// Len returns the number of fonts added.
func (b *CollectionBuilder) Len() int {
	return len(b.fonts)
}

// Validate checks that the fonts can be written in the collection format. TTC requires TrueType outlines, OTC accepts TrueType and CFF outlines.
func (b *CollectionBuilder) Validate() error {
	if b.options.Format != CollectionTTC && b.options.Format != CollectionOTC {
		return fmt.Errorf("invalid collection format %v: %w", b.options.Format, ErrInvalidArgument)
	} else if len(b.fonts) == 0 {
		return fmt.Errorf("collection: no fonts: %w", ErrInvalidArgument)
	} else if math.MaxUint16 < len(b.fonts) {
		return fmt.Errorf("collection: too many fonts: %w", ErrInvalidArgument)
	}
	for i, font := range b.fonts {
		if !font.HasTable("head") {
			return fmt.Errorf("font %d: head: missing table: %w", i, ErrInvalidFontData)
		}
		isCFF := font.HasTable("CFF ") || font.HasTable("CFF2")
		hasGlyf := font.HasTable("glyf")
		if b.options.Format == CollectionTTC && (isCFF || !hasGlyf) {
			return fmt.Errorf("font %d: TTC requires TrueType outlines: %w", i, ErrInvalidArgument)
		} else if b.options.Format == CollectionOTC && !isCFF && !hasGlyf {
			return fmt.Errorf("font %d: OTC requires TrueType or CFF outlines: %w", i, ErrInvalidArgument)
		}
		tags := font.TableNames()
		if math.MaxUint16 < len(tags) {
			return fmt.Errorf("font %d: too many tables: %w", i, ErrInvalidFontData)
		}
		for _, tag := range tags {
			if len(tag) != 4 {
				return fmt.Errorf("font %d: bad table tag %q: %w", i, tag, ErrInvalidFontData)
			}
		}
	}
	return nil
}

// Build validates the fonts and writes the collection.
func (b *CollectionBuilder) Build() (*BuildResult, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	analyzer := NewTableAnalyzer(b.fonts, b.logger)
	analysis := analyzer.Analyze()
	layout, err := NewOffsetCalculator(b.fonts).Calculate(analyzer.SharingMap())
	if err != nil {
		return nil, err
	}
	data := writeCollection(layout)
	b.logger.Infof("collection: wrote %v with %d fonts, %d bytes", b.options.Format, len(b.fonts), len(data))
	return &BuildResult{
		Data:       data,
		Layout:     layout,
		Analysis:   analysis,
		Statistics: analyzer.Statistics(),
	}, nil
}
