package font

// MetricDeltaOptions configures a MetricDeltaProcessor.
type MetricDeltaOptions struct {
	Rounding RoundingMode
}

// DefaultMetricDeltaOptions returns the default options.
func DefaultMetricDeltaOptions() MetricDeltaOptions {
	return MetricDeltaOptions{
		Rounding: RoundHalfUp,
	}
}

// HorizontalDeltas are the HVAR deltas of a glyph.
type HorizontalDeltas struct {
	AdvanceWidth int
	LSB          int
	RSB          int
}

// VerticalDeltas are the VVAR deltas of a glyph.
type VerticalDeltas struct {
	AdvanceHeight int
	TSB           int
	BSB           int
	VOrigin       int
}

// MetricDeltaResult holds the metric deltas of a glyph. A field is nil when its variations table is absent.
type MetricDeltaResult struct {
	GlyphID    uint16
	Horizontal *HorizontalDeltas
	Vertical   *VerticalDeltas
}

// MetricDeltaProcessor applies HVAR, VVAR, and MVAR deltas. Each table has its own region list and thus its own region scalars.
type MetricDeltaProcessor struct {
	hvar    *MetricsVarTable
	vvar    *MetricsVarTable
	mvar    *MvarTable
	options MetricDeltaOptions
}

// NewMetricDeltaProcessor returns a processor for the given tables, any of which may be nil.
func NewMetricDeltaProcessor(hvar, vvar *MetricsVarTable, mvar *MvarTable, options MetricDeltaOptions) *MetricDeltaProcessor {
	return &MetricDeltaProcessor{
		hvar:    hvar,
		vvar:    vvar,
		mvar:    mvar,
		options: options,
	}
}

// HasHorizontal returns true if HVAR is present.
func (p *MetricDeltaProcessor) HasHorizontal() bool {
	return p.hvar != nil
}

// ApplyDeltas returns the metric deltas of a glyph.
func (p *MetricDeltaProcessor) ApplyDeltas(glyphID uint16, scalars *ScalarSet) MetricDeltaResult {
	result := MetricDeltaResult{GlyphID: glyphID}
	if p.hvar != nil {
		result.Horizontal = &HorizontalDeltas{
			AdvanceWidth: p.advanceDelta(p.hvar, glyphID, scalars.HVAR),
			LSB:          p.mappedDelta(p.hvar, p.hvar.StartMap, glyphID, scalars.HVAR),
			RSB:          p.mappedDelta(p.hvar, p.hvar.EndMap, glyphID, scalars.HVAR),
		}
	}
	if p.vvar != nil {
		result.Vertical = &VerticalDeltas{
			AdvanceHeight: p.advanceDelta(p.vvar, glyphID, scalars.VVAR),
			TSB:           p.mappedDelta(p.vvar, p.vvar.StartMap, glyphID, scalars.VVAR),
			BSB:           p.mappedDelta(p.vvar, p.vvar.EndMap, glyphID, scalars.VVAR),
			VOrigin:       p.mappedDelta(p.vvar, p.vvar.OriginMap, glyphID, scalars.VVAR),
		}
	}
	return result
}

// advanceDelta uses the advance mapping, or the glyph ID as inner index in the first item variation data when there is none.
func (p *MetricDeltaProcessor) advanceDelta(table *MetricsVarTable, glyphID uint16, scalars RegionScalars) int {
	if table.AdvanceMap != nil {
		return p.mappedDelta(table, table.AdvanceMap, glyphID, scalars)
	}
	return p.delta(table.Store.DeltaSet(0, glyphID), scalars)
}

func (p *MetricDeltaProcessor) mappedDelta(table *MetricsVarTable, m *DeltaSetIndexMap, glyphID uint16, scalars RegionScalars) int {
	index, ok := m.Map(uint32(glyphID))
	if !ok {
		return 0
	}
	return p.delta(table.Store.DeltaSet(index.Outer, index.Inner), scalars)
}

func (p *MetricDeltaProcessor) delta(deltaSet []int32, scalars RegionScalars) int {
	return p.options.Rounding.Round(accumulateDeltas(deltaSet, scalars))
}

// accumulateDeltas returns the sum of deltas weighted by their region scalars.
func accumulateDeltas(deltaSet []int32, scalars RegionScalars) float64 {
	n := len(deltaSet)
	if len(scalars) < n {
		n = len(scalars)
	}
	var v float64
	for i := 0; i < n; i++ {
		if scalars[i] != 0.0 {
			v += float64(deltaSet[i]) * scalars[i]
		}
	}
	return v
}

// ApplyFontMetrics returns the MVAR deltas by metric tag. It is empty without MVAR.
func (p *MetricDeltaProcessor) ApplyFontMetrics(scalars *ScalarSet) map[string]int {
	metrics := map[string]int{}
	if p.mvar == nil {
		return metrics
	}
	for _, record := range p.mvar.Records {
		metrics[record.Tag] = p.delta(p.mvar.Store.DeltaSet(record.Outer, record.Inner), scalars.MVAR)
	}
	return metrics
}
