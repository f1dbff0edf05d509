package font

import (
	"math"
	"strconv"
	"strings"
	"sync"
)

// NormalizedCoordinates maps axis tags to normalized coordinates in [-1,1].
type NormalizedCoordinates map[string]float64

// Key returns a canonical string for the coordinates, with axes sorted by tag.
func (coords NormalizedCoordinates) Key() string {
	tags := sortedKeys(coords)
	var sb strings.Builder
	for i, tag := range tags {
		if i != 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(tag)
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatFloat(coords[tag], 'g', -1, 64))
	}
	return sb.String()
}

// IsDefault returns true if all coordinates are at the default location.
func (coords NormalizedCoordinates) IsDefault() bool {
	for _, v := range coords {
		if v != 0.0 {
			return false
		}
	}
	return true
}

// RegionScalars holds one scalar per region, index-aligned with a region list.
type RegionScalars []float64

// RegionMatcherOptions configures a RegionMatcher.
type RegionMatcherOptions struct {
	MinScalar       float64 // scalars below are set to zero
	Cache           bool
	MaxCacheEntries int // zero is unbounded, a full cache keeps its entries and stops storing
}

// DefaultRegionMatcherOptions returns the default options.
func DefaultRegionMatcherOptions() RegionMatcherOptions {
	return RegionMatcherOptions{
		MinScalar: 0.0001,
		Cache:     true,
	}
}

// RegionMatcher calculates region scalars for a region list. It is safe for concurrent use.
type RegionMatcher struct {
	axisTags []string // fvar order, region axes are in the same order
	regions  []VariationRegion
	options  RegionMatcherOptions

	mu    sync.Mutex
	cache map[string]RegionScalars
}

// NewRegionMatcher returns a matcher for the regions, where the axis tags give the axis order of the regions.
func NewRegionMatcher(axisTags []string, regions []VariationRegion, options RegionMatcherOptions) *RegionMatcher {
	return &RegionMatcher{
		axisTags: axisTags,
		regions:  regions,
		options:  options,
		cache:    map[string]RegionScalars{},
	}
}

// RegionCount returns the number of regions.
func (m *RegionMatcher) RegionCount() int {
	return len(m.regions)
}

// Regions returns the region list.
func (m *RegionMatcher) Regions() []VariationRegion {
	return m.regions
}

// Match returns the scalar of each region at the coordinates. Axes missing from the coordinates are at their default.
func (m *RegionMatcher) Match(coords NormalizedCoordinates) RegionScalars {
	var key string
	if m.options.Cache {
		key = coords.Key()
		m.mu.Lock()
		scalars, ok := m.cache[key]
		m.mu.Unlock()
		if ok {
			return scalars
		}
	}

	scalars := make(RegionScalars, len(m.regions))
	for i, region := range m.regions {
		scalars[i] = m.RegionScalar(region, coords)
	}

	if m.options.Cache {
		m.mu.Lock()
		if m.options.MaxCacheEntries <= 0 || len(m.cache) < m.options.MaxCacheEntries {
			m.cache[key] = scalars
		}
		m.mu.Unlock()
	}
	return scalars
}

// RegionScalar returns the scalar of a single region at the coordinates.
func (m *RegionMatcher) RegionScalar(region VariationRegion, coords NormalizedCoordinates) float64 {
	scalar := 1.0
	for i, axis := range region {
		var v float64
		if i < len(m.axisTags) {
			v = coords[m.axisTags[i]]
		}
		scalar *= axisScalar(axis, v)
		if scalar == 0.0 {
			return 0.0
		}
	}
	if scalar < m.options.MinScalar {
		return 0.0
	}
	return scalar
}

const scalarEpsilon = 1e-9

// axisScalar returns the contribution of one axis to a region scalar.
func axisScalar(axis RegionAxis, v float64) float64 {
	if axis.Peak == 0.0 || math.Abs(v-axis.Peak) < scalarEpsilon {
		return 1.0
	} else if v < axis.Start || axis.End < v {
		return 0.0
	} else if axis.Peak < axis.Start || axis.End < axis.Peak || axis.Start < 0.0 && 0.0 < axis.End {
		// malformed regions do not restrict
		return 1.0
	} else if v < axis.Peak {
		if axis.Peak-axis.Start < scalarEpsilon {
			return 1.0
		}
		return (v - axis.Start) / (axis.Peak - axis.Start)
	}
	if axis.End-axis.Peak < scalarEpsilon {
		return 1.0
	}
	return (axis.End - v) / (axis.End - axis.Peak)
}
