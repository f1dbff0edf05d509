package font

import (
	"fmt"
	"math"
)

// InstanceOptions configures Instancer.Instance.
type InstanceOptions struct {
	Clamp    bool // clamp out-of-range coordinates instead of failing
	Outlines bool // apply glyph variations to the glyf table
	Static   StaticOptions
}

// DefaultInstanceOptions returns the default options.
func DefaultInstanceOptions() InstanceOptions {
	return InstanceOptions{
		Outlines: true,
		Static:   DefaultStaticOptions(),
	}
}

// NamedInstanceInfo describes a named instance of the fvar table with its coordinates in user space.
type NamedInstanceInfo struct {
	Name           string
	PostScriptName string
	Coordinates    map[string]float64
}

// Instancer produces static fonts from a variable font.
type Instancer struct {
	applicator *DeltaApplicator
	logger     Logger
}

// NewInstancer returns an instancer for the font. It returns ErrNotVariableFont if the font has no fvar table.
func NewInstancer(font TableProvider, options DeltaOptions) (*Instancer, error) {
	applicator, err := NewDeltaApplicator(font, options)
	if err != nil {
		return nil, err
	}
	return &Instancer{
		applicator: applicator,
		logger:     loggerOrDefault(options.Logger),
	}, nil
}

// Axes returns the axis metadata by tag.
func (in *Instancer) Axes() map[string]AxisInfo {
	return in.applicator.Axes()
}

// NamedInstances returns the named instances in fvar order.
func (in *Instancer) NamedInstances() []NamedInstanceInfo {
	fvar := in.applicator.Fvar()
	names := in.applicator.SFNT().Name
	infos := make([]NamedInstanceInfo, 0, len(fvar.Instances))
	for _, instance := range fvar.Instances {
		info := NamedInstanceInfo{
			Coordinates: make(map[string]float64, len(fvar.Axes)),
		}
		if names != nil {
			info.Name, _ = names.Find(instance.SubfamilyNameID)
			if instance.PostScriptNameID != 0 {
				info.PostScriptName, _ = names.Find(instance.PostScriptNameID)
			}
		}
		for i, axis := range fvar.Axes {
			if i < len(instance.Coordinates) {
				info.Coordinates[axis.Tag] = instance.Coordinates[i]
			}
		}
		infos = append(infos, info)
	}
	return infos
}

// InstanceNamed returns the static font of the named instance. The name must match an instance subfamily name exactly.
func (in *Instancer) InstanceNamed(name string, options InstanceOptions) ([]byte, error) {
	fvar := in.applicator.Fvar()
	names := in.applicator.SFNT().Name
	if names != nil {
		for i, instance := range fvar.Instances {
			for _, s := range names.All(instance.SubfamilyNameID) {
				if s == name {
					return in.Instance(in.NamedInstances()[i].Coordinates, options)
				}
			}
		}
	}
	return nil, fmt.Errorf("named instance %q not found: %w", name, ErrInvalidArgument)
}

// Instance returns the static font at the user coordinates. Axes that are not given are at their default.
func (in *Instancer) Instance(user map[string]float64, options InstanceOptions) ([]byte, error) {
	user, err := in.checkCoordinates(user, options.Clamp)
	if err != nil {
		return nil, err
	}
	coords, err := in.applicator.Normalize(user)
	if err != nil {
		return nil, err
	}
	deltas, err := in.applicator.ApplyScalars(in.applicator.Scalars(coords))
	if err != nil {
		return nil, err
	}

	var outlines map[uint16]*GlyphDeltaResult
	if options.Outlines {
		outlines = deltas.GlyphDeltas
	}
	options.Static.AxisValues = in.axisValues(user)
	builder, err := NewStaticFontBuilder(in.applicator.SFNT(), options.Static)
	if err != nil {
		return nil, err
	}
	return builder.BuildWithOutlines(in.glyphMetrics(deltas), deltas.FontMetrics, outlines)
}

// checkCoordinates fails for unknown axes and for coordinates outside the axis range unless clamping.
func (in *Instancer) checkCoordinates(user map[string]float64, clamp bool) (map[string]float64, error) {
	fvar := in.applicator.Fvar()
	checked := make(map[string]float64, len(user))
	for tag, v := range user {
		axis, ok := fvar.Axis(tag)
		if !ok {
			return nil, &UnknownAxisError{Tag: tag}
		} else if math.IsNaN(v) {
			return nil, &InvalidCoordinatesError{Tag: tag, Value: v, Min: axis.Min, Max: axis.Max}
		} else if v < axis.Min || axis.Max < v {
			if !clamp {
				return nil, &InvalidCoordinatesError{Tag: tag, Value: v, Min: axis.Min, Max: axis.Max}
			}
			clamped := math.Max(axis.Min, math.Min(axis.Max, v))
			in.logger.Debugf("instance: clamping %s=%v to %v", tag, v, clamped)
			v = clamped
		}
		checked[tag] = v
	}
	return checked, nil
}

// axisValues returns the user coordinates of every axis, with missing axes at their default.
func (in *Instancer) axisValues(user map[string]float64) map[string]float64 {
	values := map[string]float64{}
	for _, axis := range in.applicator.Fvar().Axes {
		if v, ok := user[axis.Tag]; ok {
			values[axis.Tag] = v
		} else {
			values[axis.Tag] = axis.Default
		}
	}
	return values
}

// glyphMetrics returns the varied metrics of all glyphs, empty if the font lacks hmtx, hhea, or maxp.
func (in *Instancer) glyphMetrics(deltas *DeltaResult) map[uint16]HMetricOverride {
	sfnt := in.applicator.SFNT()
	metrics := map[uint16]HMetricOverride{}
	if sfnt.Hmtx == nil || sfnt.Hhea == nil || sfnt.Maxp == nil {
		return metrics
	}
	for glyphID := uint16(0); glyphID < sfnt.NumGlyphs(); glyphID++ {
		metricDeltas, ok := deltas.MetricDeltas[glyphID]
		if !ok || metricDeltas.Horizontal == nil {
			continue
		}
		var override HMetricOverride
		advance := int(sfnt.Hmtx.Advance(glyphID)) + metricDeltas.Horizontal.AdvanceWidth
		override.AdvanceWidth = &advance
		if metricDeltas.Horizontal.LSB != 0 {
			lsb := int(sfnt.Hmtx.LeftSideBearing(glyphID)) + metricDeltas.Horizontal.LSB
			override.LSB = &lsb
		}
		metrics[glyphID] = override
	}
	return metrics
}
