package font

import (
	"fmt"
)

// ScalarSet holds the normalized coordinates and the region scalars of every region list of a font at those coordinates.
// A list is nil when its table is absent.
type ScalarSet struct {
	Coords NormalizedCoordinates
	Gvar   RegionScalars // shared tuples
	HVAR   RegionScalars
	VVAR   RegionScalars
	MVAR   RegionScalars
}

// DeltaOptions configures a DeltaApplicator.
type DeltaOptions struct {
	Normalizer NormalizerOptions
	Regions    RegionMatcherOptions
	Glyphs     GlyphDeltaOptions
	Metrics    MetricDeltaOptions
	Logger     Logger
}

// DefaultDeltaOptions returns the default options of all components.
func DefaultDeltaOptions() DeltaOptions {
	return DeltaOptions{
		Normalizer: DefaultNormalizerOptions(),
		Regions:    DefaultRegionMatcherOptions(),
		Glyphs:     DefaultGlyphDeltaOptions(),
		Metrics:    DefaultMetricDeltaOptions(),
	}
}

// DeltaResult holds all deltas of a font at a location in design space.
type DeltaResult struct {
	Coordinates   NormalizedCoordinates
	RegionScalars RegionScalars // of the primary region list, see DeltaApplicator.RegionCount
	Scalars       *ScalarSet
	GlyphDeltas   map[uint16]*GlyphDeltaResult // glyphs without variation data are absent
	MetricDeltas  map[uint16]MetricDeltaResult
	FontMetrics   map[string]int
}

// DeltaApplicator computes glyph and metric deltas from user coordinates.
type DeltaApplicator struct {
	sfnt       *SFNT
	fvar       *FvarTable
	normalizer *AxisNormalizer
	glyphs     *GlyphDeltaProcessor
	metrics    *MetricDeltaProcessor

	hvar, vvar, mvar *RegionMatcher // nil if the table is absent
	logger           Logger
}

// NewDeltaApplicator parses the variation tables of the font. It returns ErrNotVariableFont if the font has no fvar table.
func NewDeltaApplicator(font TableProvider, options DeltaOptions) (*DeltaApplicator, error) {
	if !font.HasTable("fvar") {
		return nil, ErrNotVariableFont
	}
	sfnt, err := NewSFNT(font)
	if err != nil {
		return nil, err
	}
	fvar, err := ParseFvar(sfnt.TableData("fvar"))
	if err != nil {
		return nil, err
	}
	var avar *AvarTable
	if sfnt.HasTable("avar") {
		if avar, err = ParseAvar(sfnt.TableData("avar"), len(fvar.Axes)); err != nil {
			return nil, err
		}
	}
	var gvar *GvarTable
	if sfnt.HasTable("gvar") {
		if gvar, err = ParseGvar(sfnt.TableData("gvar")); err != nil {
			return nil, err
		} else if gvar.AxisCount != len(fvar.Axes) {
			return nil, fmt.Errorf("gvar: axis count does not match fvar: %w", ErrInvalidFontData)
		}
	}
	var hvar, vvar *MetricsVarTable
	if sfnt.HasTable("HVAR") {
		if hvar, err = ParseHVAR(sfnt.TableData("HVAR")); err != nil {
			return nil, err
		}
	}
	if sfnt.HasTable("VVAR") {
		if vvar, err = ParseVVAR(sfnt.TableData("VVAR")); err != nil {
			return nil, err
		}
	}
	var mvar *MvarTable
	if sfnt.HasTable("MVAR") {
		if mvar, err = ParseMVAR(sfnt.TableData("MVAR")); err != nil {
			return nil, err
		}
	}

	axisTags := fvar.AxisTags()
	a := &DeltaApplicator{
		sfnt:       sfnt,
		fvar:       fvar,
		normalizer: NewAxisNormalizer(fvar, avar, options.Normalizer),
		glyphs:     NewGlyphDeltaProcessor(sfnt, gvar, axisTags, options.Glyphs, options.Regions),
		metrics:    NewMetricDeltaProcessor(hvar, vvar, mvar, options.Metrics),
		logger:     loggerOrDefault(options.Logger),
	}
	if hvar != nil {
		a.hvar = NewRegionMatcher(axisTags, hvar.Store.Regions, options.Regions)
	}
	if vvar != nil {
		a.vvar = NewRegionMatcher(axisTags, vvar.Store.Regions, options.Regions)
	}
	if mvar != nil && mvar.Store != nil {
		a.mvar = NewRegionMatcher(axisTags, mvar.Store.Regions, options.Regions)
	}
	return a, nil
}

// SFNT returns the parsed font.
func (a *DeltaApplicator) SFNT() *SFNT {
	return a.sfnt
}

// Fvar returns the parsed fvar table.
func (a *DeltaApplicator) Fvar() *FvarTable {
	return a.fvar
}

// Axes returns the axis metadata by tag.
func (a *DeltaApplicator) Axes() map[string]AxisInfo {
	axes := make(map[string]AxisInfo, len(a.fvar.Axes))
	for _, axis := range a.fvar.Axes {
		axes[axis.Tag] = AxisInfo{
			Min:     axis.Min,
			Default: axis.Default,
			Max:     axis.Max,
			NameID:  axis.NameID,
		}
	}
	return axes
}

// AxisTags returns the axis tags in fvar order.
func (a *DeltaApplicator) AxisTags() []string {
	return a.fvar.AxisTags()
}

// RegionCount returns the number of regions of the primary region list, which is that of HVAR, else MVAR, else VVAR, else the gvar shared tuples.
func (a *DeltaApplicator) RegionCount() int {
	if m := a.primaryMatcher(); m != nil {
		return m.RegionCount()
	}
	return 0
}

func (a *DeltaApplicator) primaryMatcher() *RegionMatcher {
	for _, m := range []*RegionMatcher{a.hvar, a.mvar, a.vvar} {
		if m != nil {
			return m
		}
	}
	return a.glyphs.Matcher()
}

// Normalize converts user coordinates to normalized coordinates.
func (a *DeltaApplicator) Normalize(user map[string]float64) (NormalizedCoordinates, error) {
	return a.normalizer.Normalize(user)
}

// Scalars returns the region scalars of every region list at the normalized coordinates.
func (a *DeltaApplicator) Scalars(coords NormalizedCoordinates) *ScalarSet {
	s := &ScalarSet{
		Coords: coords,
		Gvar:   a.glyphs.Matcher().Match(coords),
	}
	if a.hvar != nil {
		s.HVAR = a.hvar.Match(coords)
	}
	if a.vvar != nil {
		s.VVAR = a.vvar.Match(coords)
	}
	if a.mvar != nil {
		s.MVAR = a.mvar.Match(coords)
	}
	return s
}

func (a *DeltaApplicator) primaryScalars(s *ScalarSet) RegionScalars {
	switch a.primaryMatcher() {
	case a.hvar:
		return s.HVAR
	case a.mvar:
		return s.MVAR
	case a.vvar:
		return s.VVAR
	}
	return s.Gvar
}

func (a *DeltaApplicator) scalars(user map[string]float64) (*ScalarSet, error) {
	coords, err := a.normalizer.Normalize(user)
	if err != nil {
		return nil, err
	}
	return a.Scalars(coords), nil
}

// Apply returns the deltas of all glyphs and metrics at the user coordinates.
func (a *DeltaApplicator) Apply(user map[string]float64) (*DeltaResult, error) {
	s, err := a.scalars(user)
	if err != nil {
		return nil, err
	}
	return a.ApplyScalars(s)
}

// ApplyScalars returns the deltas of all glyphs and metrics for precomputed scalars.
func (a *DeltaApplicator) ApplyScalars(s *ScalarSet) (*DeltaResult, error) {
	result := &DeltaResult{
		Coordinates:   s.Coords,
		RegionScalars: a.primaryScalars(s),
		Scalars:       s,
		GlyphDeltas:   map[uint16]*GlyphDeltaResult{},
		MetricDeltas:  map[uint16]MetricDeltaResult{},
		FontMetrics:   a.metrics.ApplyFontMetrics(s),
	}
	numGlyphs := a.sfnt.NumGlyphs()
	for glyphID := uint16(0); glyphID < numGlyphs; glyphID++ {
		glyphDeltas, err := a.glyphs.ApplyDeltas(glyphID, s)
		if err != nil {
			return nil, fmt.Errorf("glyph %d: %w", glyphID, err)
		} else if glyphDeltas != nil {
			result.GlyphDeltas[glyphID] = glyphDeltas
		}

		metricDeltas := a.metrics.ApplyDeltas(glyphID, s)
		if metricDeltas.Horizontal == nil && glyphDeltas != nil && glyphDeltas.PhantomDeltas != nil {
			metricDeltas.Horizontal = &HorizontalDeltas{
				AdvanceWidth: glyphDeltas.AdvanceWidthDelta(),
			}
		}
		if metricDeltas.Horizontal != nil || metricDeltas.Vertical != nil {
			result.MetricDeltas[glyphID] = metricDeltas
		}
	}
	a.logger.Debugf("deltas at %s: %d glyphs, %d metrics, %d font metrics", s.Coords.Key(), len(result.GlyphDeltas), len(result.MetricDeltas), len(result.FontMetrics))
	return result, nil
}

// ApplyGlyph returns the deltas of a single glyph, or nil if it has no variation data.
func (a *DeltaApplicator) ApplyGlyph(glyphID uint16, user map[string]float64) (*GlyphDeltaResult, error) {
	s, err := a.scalars(user)
	if err != nil {
		return nil, err
	}
	return a.glyphs.ApplyDeltas(glyphID, s)
}

// ApplyGlyphs returns the deltas of the glyphs that have variation data. The coordinates are normalized and matched once for all glyphs.
func (a *DeltaApplicator) ApplyGlyphs(glyphIDs []uint16, user map[string]float64) (map[uint16]*GlyphDeltaResult, error) {
	s, err := a.scalars(user)
	if err != nil {
		return nil, err
	}
	results := make(map[uint16]*GlyphDeltaResult, len(glyphIDs))
	for _, glyphID := range glyphIDs {
		result, err := a.glyphs.ApplyDeltas(glyphID, s)
		if err != nil {
			return nil, fmt.Errorf("glyph %d: %w", glyphID, err)
		} else if result != nil {
			results[glyphID] = result
		}
	}
	return results, nil
}

// AdvanceWidthDelta returns the advance width delta of a glyph from HVAR, or from its phantom points if HVAR is absent.
func (a *DeltaApplicator) AdvanceWidthDelta(glyphID uint16, user map[string]float64) (int, error) {
	s, err := a.scalars(user)
	if err != nil {
		return 0, err
	}
	if a.metrics.HasHorizontal() {
		return a.metrics.ApplyDeltas(glyphID, s).Horizontal.AdvanceWidth, nil
	}
	result, err := a.glyphs.ApplyDeltas(glyphID, s)
	if err != nil || result == nil {
		return 0, err
	}
	return result.AdvanceWidthDelta(), nil
}
