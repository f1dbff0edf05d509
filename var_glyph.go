package font

import (
	"fmt"
	"math"

	"github.com/bits-and-blooms/bitset"
)

// RoundingMode determines how accumulated deltas are rounded to integers.
type RoundingMode int

// see RoundingMode
const (
	RoundHalfUp RoundingMode = iota
	RoundFloor
	RoundCeil
	RoundTruncate
)

func (mode RoundingMode) String() string {
	switch mode {
	case RoundHalfUp:
		return "round"
	case RoundFloor:
		return "floor"
	case RoundCeil:
		return "ceil"
	case RoundTruncate:
		return "truncate"
	}
	return fmt.Sprintf("RoundingMode(%d)", int(mode))
}

// Round rounds v to an integer.
func (mode RoundingMode) Round(v float64) int {
	switch mode {
	case RoundFloor:
		return int(math.Floor(v))
	case RoundCeil:
		return int(math.Ceil(v))
	case RoundTruncate:
		return int(math.Trunc(v))
	}
	return int(math.Floor(v + 0.5))
}

// Point is a point in font units.
type Point struct {
	X, Y int
}

// GlyphDeltaOptions configures a GlyphDeltaProcessor.
type GlyphDeltaOptions struct {
	Rounding      RoundingMode
	PhantomPoints bool // calculate deltas for the four phantom points
	Interpolate   bool // infer deltas of untouched points of simple glyphs
}

// DefaultGlyphDeltaOptions returns the default options.
func DefaultGlyphDeltaOptions() GlyphDeltaOptions {
	return GlyphDeltaOptions{
		Rounding:      RoundHalfUp,
		PhantomPoints: true,
		Interpolate:   true,
	}
}

// GlyphDeltaResult holds the deltas of a glyph. For composite glyphs there is one delta per component.
// PhantomDeltas holds the deltas of the left origin, advance, top origin, and bottom phantom points, or is nil when disabled.
type GlyphDeltaResult struct {
	GlyphID       uint16
	XDeltas       []int
	YDeltas       []int
	PhantomDeltas []Point
}

// AdvanceWidthDelta returns the advance width delta derived from the phantom points.
func (result *GlyphDeltaResult) AdvanceWidthDelta() int {
	if len(result.PhantomDeltas) < 2 {
		return 0
	}
	return result.PhantomDeltas[1].X - result.PhantomDeltas[0].X
}

// AdvanceHeightDelta returns the advance height delta derived from the phantom points.
func (result *GlyphDeltaResult) AdvanceHeightDelta() int {
	if len(result.PhantomDeltas) < 4 {
		return 0
	}
	return result.PhantomDeltas[2].Y - result.PhantomDeltas[3].Y
}

// GlyphDeltaProcessor applies gvar tuple variations to glyph outlines.
type GlyphDeltaProcessor struct {
	sfnt    *SFNT
	gvar    *GvarTable
	matcher *RegionMatcher // regions of the shared tuples
	options GlyphDeltaOptions
}

// NewGlyphDeltaProcessor returns a processor for the glyphs of the font. The gvar table may be nil.
func NewGlyphDeltaProcessor(sfnt *SFNT, gvar *GvarTable, axisTags []string, options GlyphDeltaOptions, matcherOptions RegionMatcherOptions) *GlyphDeltaProcessor {
	var regions []VariationRegion
	if gvar != nil {
		regions = make([]VariationRegion, len(gvar.SharedTuples))
		for i, peak := range gvar.SharedTuples {
			regions[i] = TupleVariation{Peak: peak}.Region()
		}
	}
	return &GlyphDeltaProcessor{
		sfnt:    sfnt,
		gvar:    gvar,
		matcher: NewRegionMatcher(axisTags, regions, matcherOptions),
		options: options,
	}
}

// Matcher returns the region matcher of the shared tuples.
func (p *GlyphDeltaProcessor) Matcher() *RegionMatcher {
	return p.matcher
}

// HasVariations returns true if the glyph has variation data.
func (p *GlyphDeltaProcessor) HasVariations(glyphID uint16) bool {
	return p.gvar != nil && p.sfnt.Glyf != nil && p.gvar.HasVariations(glyphID)
}

// ApplyDeltas returns the deltas of a glyph at the given scalars, or nil if the glyph has no variation data.
// The shared tuple scalars must be those of Matcher.
func (p *GlyphDeltaProcessor) ApplyDeltas(glyphID uint16, scalars *ScalarSet) (*GlyphDeltaResult, error) {
	if !p.HasVariations(glyphID) {
		return nil, nil
	}
	glyph, err := p.sfnt.Glyf.Glyph(glyphID)
	if err != nil {
		return nil, err
	}
	numPoints := glyph.NumPoints()
	tuples, err := p.gvar.Variations(glyphID, numPoints+4)
	if err != nil {
		return nil, err
	}

	xs := make([]float64, numPoints+4)
	ys := make([]float64, numPoints+4)
	for _, tuple := range tuples {
		var scalar float64
		if 0 <= tuple.SharedIndex && !tuple.HasIntermediate() && tuple.SharedIndex < len(scalars.Gvar) {
			scalar = scalars.Gvar[tuple.SharedIndex]
		} else {
			scalar = p.matcher.RegionScalar(tuple.Region(), scalars.Coords)
		}
		if scalar == 0.0 {
			continue
		}

		if tuple.Points == nil {
			for i := range xs {
				xs[i] += float64(tuple.XDeltas[i]) * scalar
				ys[i] += float64(tuple.YDeltas[i]) * scalar
			}
			continue
		}

		dxs := make([]float64, numPoints+4)
		dys := make([]float64, numPoints+4)
		touched := bitset.New(uint(numPoints + 4))
		for i, point := range tuple.Points {
			dxs[point] += float64(tuple.XDeltas[i])
			dys[point] += float64(tuple.YDeltas[i])
			touched.Set(uint(point))
		}
		if p.options.Interpolate && !glyph.IsComposite() && touched.Count() < uint(numPoints+4) {
			interpolateUntouched(glyph, touched, dxs, dys)
		}
		for i := range xs {
			xs[i] += dxs[i] * scalar
			ys[i] += dys[i] * scalar
		}
	}

	result := &GlyphDeltaResult{
		GlyphID: glyphID,
		XDeltas: make([]int, numPoints),
		YDeltas: make([]int, numPoints),
	}
	for i := 0; i < numPoints; i++ {
		result.XDeltas[i] = p.options.Rounding.Round(xs[i])
		result.YDeltas[i] = p.options.Rounding.Round(ys[i])
	}
	if p.options.PhantomPoints {
		result.PhantomDeltas = make([]Point, 4)
		for i := range result.PhantomDeltas {
			result.PhantomDeltas[i].X = p.options.Rounding.Round(xs[numPoints+i])
			result.PhantomDeltas[i].Y = p.options.Rounding.Round(ys[numPoints+i])
		}
	}
	return result, nil
}

// phantomPoints returns the left origin, advance, top origin, and bottom phantom points of a glyph.
func phantomPoints(sfnt *SFNT, glyphID uint16, glyph *glyfGlyph) [4]Point {
	var pp [4]Point
	if sfnt.Hmtx != nil {
		pp[0].X = int(glyph.XMin) - int(sfnt.Hmtx.LeftSideBearing(glyphID))
		pp[1].X = pp[0].X + int(sfnt.Hmtx.Advance(glyphID))
	}
	if sfnt.Vmtx != nil {
		pp[2].Y = int(glyph.YMax) + int(sfnt.Vmtx.TopSideBearing(glyphID))
		pp[3].Y = pp[2].Y - int(sfnt.Vmtx.Advance(glyphID))
	} else if sfnt.Hhea != nil {
		pp[2].Y = int(sfnt.Hhea.Ascender)
		pp[3].Y = int(sfnt.Hhea.Descender)
	}
	return pp
}

// interpolateUntouched infers the deltas of untouched points per contour from the nearest touched points on either side.
func interpolateUntouched(glyph *glyfGlyph, touched *bitset.BitSet, dxs, dys []float64) {
	start := 0
	for _, endPoint := range glyph.EndPoints {
		end := int(endPoint)
		interpolateContour(glyph.XCoordinates, touched, dxs, start, end)
		interpolateContour(glyph.YCoordinates, touched, dys, start, end)
		start = end + 1
	}
}

func interpolateContour(coords []int16, touched *bitset.BitSet, deltas []float64, start, end int) {
	var refs []int
	for i := start; i <= end; i++ {
		if touched.Test(uint(i)) {
			refs = append(refs, i)
		}
	}
	if len(refs) == 0 {
		return
	} else if len(refs) == 1 {
		for i := start; i <= end; i++ {
			deltas[i] = deltas[refs[0]]
		}
		return
	}

	n := end - start + 1
	for k, ref := range refs {
		next := refs[(k+1)%len(refs)]
		for i := ref + 1; ; i++ {
			j := start + (i-start)%n
			if j == next {
				break
			}
			deltas[j] = interpolatePoint(float64(coords[j]), float64(coords[ref]), float64(coords[next]), deltas[ref], deltas[next])
		}
	}
}

func interpolatePoint(v, v1, v2, d1, d2 float64) float64 {
	if v1 == v2 {
		if d1 == d2 {
			return d1
		}
		return 0.0
	} else if v2 < v1 {
		v1, v2 = v2, v1
		d1, d2 = d2, d1
	}
	if v <= v1 {
		return d1
	} else if v2 <= v {
		return d2
	}
	return d1 + (v-v1)*(d2-d1)/(v2-v1)
}

// applyGlyphDeltas returns a copy of the glyph with the deltas applied and its bounding box updated. Composite glyphs move their components, their bounding box is resolved later.
func applyGlyphDeltas(glyph *glyfGlyph, result *GlyphDeltaResult) *glyfGlyph {
	glyph = glyph.Copy()
	if glyph.IsComposite() {
		for i := range glyph.Components {
			if glyph.Components[i].IsOffset() && i < len(result.XDeltas) {
				glyph.Components[i].Arg1 += int32(result.XDeltas[i])
				glyph.Components[i].Arg2 += int32(result.YDeltas[i])
			}
		}
		return glyph
	}
	for i := range glyph.XCoordinates {
		if i < len(result.XDeltas) {
			glyph.XCoordinates[i] = clampInt16(int(glyph.XCoordinates[i]) + result.XDeltas[i])
			glyph.YCoordinates[i] = clampInt16(int(glyph.YCoordinates[i]) + result.YDeltas[i])
		}
	}
	glyph.UpdateBounds()
	return glyph
}
