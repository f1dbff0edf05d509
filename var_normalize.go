package font

import (
	"math"
)

// NormalizerOptions configures an AxisNormalizer.
type NormalizerOptions struct {
	UseAxisDefaults bool // axes missing from the input are set to their default
	Clamp           bool // clamp input to the axis range
	Precision       int  // number of decimals to round to, negative disables rounding
}

// DefaultNormalizerOptions returns the default options.
func DefaultNormalizerOptions() NormalizerOptions {
	return NormalizerOptions{
		UseAxisDefaults: true,
		Clamp:           true,
		Precision:       6,
	}
}

// AxisNormalizer maps user-space axis values to normalized coordinates.
type AxisNormalizer struct {
	axes    []VariationAxis
	avar    *AvarTable
	options NormalizerOptions
}

// NewAxisNormalizer returns a normalizer for the fvar axes. The avar table is optional.
func NewAxisNormalizer(fvar *FvarTable, avar *AvarTable, options NormalizerOptions) *AxisNormalizer {
	return &AxisNormalizer{
		axes:    fvar.Axes,
		avar:    avar,
		options: options,
	}
}

// Normalize converts user coordinates to normalized coordinates. Unknown axes return an UnknownAxisError.
func (n *AxisNormalizer) Normalize(user map[string]float64) (NormalizedCoordinates, error) {
	for tag := range user {
		if !n.hasAxis(tag) {
			return nil, &UnknownAxisError{Tag: tag}
		}
	}

	coords := make(NormalizedCoordinates, len(n.axes))
	for i, axis := range n.axes {
		v, ok := user[axis.Tag]
		if !ok {
			if !n.options.UseAxisDefaults {
				continue
			}
			v = axis.Default
		}
		coords[axis.Tag] = n.round(n.avar.Map(i, n.normalizeAxis(axis, v)))
	}
	return coords, nil
}

func (n *AxisNormalizer) hasAxis(tag string) bool {
	for _, axis := range n.axes {
		if axis.Tag == tag {
			return true
		}
	}
	return false
}

func (n *AxisNormalizer) normalizeAxis(axis VariationAxis, v float64) float64 {
	if n.options.Clamp {
		v = math.Max(axis.Min, math.Min(axis.Max, v))
	}
	if v == axis.Default {
		return 0.0
	} else if axis.Default < v {
		if axis.Max == axis.Default {
			return 0.0
		}
		return (v - axis.Default) / (axis.Max - axis.Default)
	}
	if axis.Default == axis.Min {
		return 0.0
	}
	return (v - axis.Default) / (axis.Default - axis.Min)
}

func (n *AxisNormalizer) round(v float64) float64 {
	if n.options.Precision < 0 {
		return v
	}
	f := math.Pow10(n.options.Precision)
	v = math.Round(v*f) / f
	if v == 0.0 {
		return 0.0 // no negative zero
	}
	return v
}
