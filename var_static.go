package font

import (
	"encoding/binary"
	"fmt"
	"time"
)

// variationTables are removed from static instances.
var variationTables = []string{"fvar", "avar", "gvar", "cvar", "HVAR", "VVAR", "MVAR", "STAT"}

// mvarTarget is a font-wide metric field driven by an MVAR tag.
type mvarTarget struct {
	table      string
	offset     int
	unsigned   bool
	minVersion uint16 // of OS/2
}

var mvarTargets = map[string][]mvarTarget{
	"hasc": {{table: "hhea", offset: 4}, {table: "OS/2", offset: 68}},
	"hdsc": {{table: "hhea", offset: 6}, {table: "OS/2", offset: 70}},
	"hlgp": {{table: "hhea", offset: 8}, {table: "OS/2", offset: 72}},
	"hcla": {{table: "OS/2", offset: 74, unsigned: true}},
	"hcld": {{table: "OS/2", offset: 76, unsigned: true}},
	"hcrs": {{table: "hhea", offset: 18}},
	"hcrn": {{table: "hhea", offset: 20}},
	"hcof": {{table: "hhea", offset: 22}},
	"vasc": {{table: "vhea", offset: 4}},
	"vdsc": {{table: "vhea", offset: 6}},
	"vlgp": {{table: "vhea", offset: 8}},
	"vcrs": {{table: "vhea", offset: 18}},
	"vcrn": {{table: "vhea", offset: 20}},
	"vcof": {{table: "vhea", offset: 22}},
	"sbxs": {{table: "OS/2", offset: 10}},
	"sbys": {{table: "OS/2", offset: 12}},
	"sbxo": {{table: "OS/2", offset: 14}},
	"sbyo": {{table: "OS/2", offset: 16}},
	"spxs": {{table: "OS/2", offset: 18}},
	"spys": {{table: "OS/2", offset: 20}},
	"spxo": {{table: "OS/2", offset: 22}},
	"spyo": {{table: "OS/2", offset: 24}},
	"strs": {{table: "OS/2", offset: 26}},
	"stro": {{table: "OS/2", offset: 28}},
	"xhgt": {{table: "OS/2", offset: 86, minVersion: 2}},
	"cpht": {{table: "OS/2", offset: 88, minVersion: 2}},
	"undo": {{table: "post", offset: 8}},
	"unds": {{table: "post", offset: 10}},
}

// StaticOptions configures a StaticFontBuilder.
type StaticOptions struct {
	UpdateModified bool               // set head.modified
	Modified       time.Time          // zero is the current time
	AxisValues     map[string]float64 // user-space location, sets the OS/2 weight and width class
	Logger         Logger
}

// DefaultStaticOptions returns the default options.
func DefaultStaticOptions() StaticOptions {
	return StaticOptions{
		UpdateModified: true,
	}
}

// HMetricOverride sets the absolute advance width and left side bearing of a glyph. Nil fields keep the current value.
type HMetricOverride struct {
	AdvanceWidth *int
	LSB          *int
}

// StaticFontBuilder writes a static font from a variable font with varied metrics and outlines.
type StaticFontBuilder struct {
	sfnt    *SFNT
	options StaticOptions
	logger  Logger
}

// NewStaticFontBuilder returns a builder for the font.
func NewStaticFontBuilder(font TableProvider, options StaticOptions) (*StaticFontBuilder, error) {
	sfnt, err := NewSFNT(font)
	if err != nil {
		return nil, err
	}
	return &StaticFontBuilder{
		sfnt:    sfnt,
		options: options,
		logger:  loggerOrDefault(options.Logger),
	}, nil
}

// Build returns the static font with the metric overrides and the font-wide metric deltas applied.
func (b *StaticFontBuilder) Build(metrics map[uint16]HMetricOverride, fontMetrics map[string]int) ([]byte, error) {
	return b.BuildWithOutlines(metrics, fontMetrics, nil)
}

// BuildWithOutlines is like Build but also applies glyph deltas to the glyf table. Glyphs without overrides take their advance width and left side bearing from the phantom points.
func (b *StaticFontBuilder) BuildWithOutlines(metrics map[uint16]HMetricOverride, fontMetrics map[string]int, outlines map[uint16]*GlyphDeltaResult) ([]byte, error) {
	tables := copyTables(b.sfnt)
	for _, tag := range variationTables {
		delete(tables, tag)
	}

	numGlyphs := b.sfnt.NumGlyphs()
	var advances []uint16
	var lsbs []int16
	if b.sfnt.Hmtx != nil {
		advances = make([]uint16, numGlyphs)
		lsbs = make([]int16, numGlyphs)
		for glyphID := uint16(0); glyphID < numGlyphs; glyphID++ {
			advances[glyphID] = b.sfnt.Hmtx.Advance(glyphID)
			lsbs[glyphID] = b.sfnt.Hmtx.LeftSideBearing(glyphID)
		}
	}

	if 0 < len(outlines) && b.sfnt.Glyf != nil {
		if err := b.instanceOutlines(tables, outlines, advances, lsbs); err != nil {
			return nil, err
		}
	}

	if b.sfnt.Hmtx != nil && (0 < len(metrics) || 0 < len(outlines)) {
		for glyphID, override := range metrics {
			if numGlyphs <= glyphID {
				return nil, fmt.Errorf("hmtx: bad glyphID %v: %w", glyphID, ErrInvalidArgument)
			}
			if override.AdvanceWidth != nil {
				advances[glyphID] = clampUint16(*override.AdvanceWidth)
			}
			if override.LSB != nil {
				lsbs[glyphID] = clampInt16(*override.LSB)
			}
		}
		hmtx := newHmtxTable(advances, lsbs)
		tables["hmtx"] = hmtx.Write()

		var advanceWidthMax uint16
		for _, advance := range advances {
			if advanceWidthMax < advance {
				advanceWidthMax = advance
			}
		}
		hhea := append([]byte{}, tables["hhea"]...)
		binary.BigEndian.PutUint16(hhea[10:], advanceWidthMax)
		binary.BigEndian.PutUint16(hhea[34:], uint16(len(hmtx.HMetrics)))
		tables["hhea"] = hhea
	}

	b.applyFontMetrics(tables, fontMetrics)
	updateOS2Classes(tables, b.options.AxisValues)

	if head := tables["head"]; b.options.UpdateModified && 36 <= len(head) {
		modified := b.options.Modified
		if modified.IsZero() {
			modified = time.Now()
		}
		head = append([]byte{}, head...)
		binary.BigEndian.PutUint64(head[28:], uint64(toLongDateTime(modified)))
		tables["head"] = head
	}
	return writeSFNT(sfntVersionOf(Tables(tables)), tables), nil
}

// instanceOutlines rewrites glyf, loca, and the head bounding box. Varied glyphs and composite glyphs get their left side bearing from the new bounding box and the left origin phantom point, and varied glyphs get their advance from the phantom points.
func (b *StaticFontBuilder) instanceOutlines(tables map[string][]byte, outlines map[uint16]*GlyphDeltaResult, advances []uint16, lsbs []int16) error {
	numGlyphs := b.sfnt.NumGlyphs()
	glyphs := make([]*glyfGlyph, numGlyphs)
	origins := make([]int, numGlyphs) // x of the left origin phantom point
	for glyphID := uint16(0); glyphID < numGlyphs; glyphID++ {
		glyph, err := b.sfnt.Glyf.Glyph(glyphID)
		if err != nil {
			return err
		}
		pp := phantomPoints(b.sfnt, glyphID, glyph)
		origins[glyphID] = pp[0].X
		if result, ok := outlines[glyphID]; ok && result != nil && !glyph.IsEmpty() {
			glyph = applyGlyphDeltas(glyph, result)
			if advances != nil && len(result.PhantomDeltas) == 4 {
				advances[glyphID] = clampUint16(int(advances[glyphID]) + result.AdvanceWidthDelta())
				origins[glyphID] += result.PhantomDeltas[0].X
			}
		}
		glyphs[glyphID] = glyph
	}

	source := func(glyphID uint16) (*glyfGlyph, error) {
		if numGlyphs <= glyphID {
			return nil, fmt.Errorf("glyf: bad glyphID %v", glyphID)
		}
		return glyphs[glyphID], nil
	}
	data := make([][]byte, numGlyphs)
	first := true
	var xMin, yMin, xMax, yMax int16
	for i, glyph := range glyphs {
		glyphID := uint16(i)
		if glyph.IsEmpty() {
			continue
		} else if glyph.IsComposite() {
			contour, err := resolveContour(source, glyphID, 0)
			if err != nil {
				return err
			}
			glyph.XMin, glyph.YMin, glyph.XMax, glyph.YMax = contour.XMin, contour.YMin, contour.XMax, contour.YMax
		}
		if _, ok := outlines[glyphID]; (ok || glyph.IsComposite()) && lsbs != nil {
			lsbs[glyphID] = clampInt16(int(glyph.XMin) - origins[glyphID])
		}
		data[glyphID] = glyph.Write()

		if first {
			xMin, yMin, xMax, yMax = glyph.XMin, glyph.YMin, glyph.XMax, glyph.YMax
			first = false
		} else {
			xMin, yMin = min(xMin, glyph.XMin), min(yMin, glyph.YMin)
			xMax, yMax = max(xMax, glyph.XMax), max(yMax, glyph.YMax)
		}
	}

	glyf, loca, indexToLocFormat := buildGlyfLoca(data, -1)
	tables["glyf"] = glyf
	tables["loca"] = loca

	head := append([]byte{}, tables["head"]...)
	binary.BigEndian.PutUint16(head[36:], uint16(xMin))
	binary.BigEndian.PutUint16(head[38:], uint16(yMin))
	binary.BigEndian.PutUint16(head[40:], uint16(xMax))
	binary.BigEndian.PutUint16(head[42:], uint16(yMax))
	binary.BigEndian.PutUint16(head[50:], uint16(indexToLocFormat))
	tables["head"] = head
	return nil
}

// applyFontMetrics adds the MVAR deltas to the fields they drive. Tags without a known field are skipped.
func (b *StaticFontBuilder) applyFontMetrics(tables map[string][]byte, fontMetrics map[string]int) {
	for _, tag := range sortedKeys(fontMetrics) {
		delta := fontMetrics[tag]
		targets, ok := mvarTargets[tag]
		if !ok {
			b.logger.Debugf("MVAR: skipping unsupported metric %q", tag)
			continue
		} else if delta == 0 {
			continue
		}
		for _, target := range targets {
			data, ok := tables[target.table]
			if !ok || len(data) < target.offset+2 {
				continue
			} else if target.table == "OS/2" && binary.BigEndian.Uint16(data) < target.minVersion {
				continue
			}
			data = append([]byte{}, data...)
			v := binary.BigEndian.Uint16(data[target.offset:])
			if target.unsigned {
				v = clampUint16(int(v) + delta)
			} else {
				v = uint16(clampInt16(int(int16(v)) + delta))
			}
			binary.BigEndian.PutUint16(data[target.offset:], v)
			tables[target.table] = data
		}
	}
}
