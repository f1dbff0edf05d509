package font

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

////////////////////////////////////////////////////////////////

// glyfContour is the flattened outline of a glyph, composite glyphs being resolved into their components.
type glyfContour struct {
	GlyphID                uint16
	XMin, YMin, XMax, YMax int16
	EndPoints              []uint16
	Instructions           []byte
	OnCurve                []bool
	XCoordinates           []int16
	YCoordinates           []int16
}

func (contour *glyfContour) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Glyph %v:\n", contour.GlyphID)
	fmt.Fprintf(&b, "  Contours: %v\n", len(contour.EndPoints))
	fmt.Fprintf(&b, "  Bounds: (%v,%v)-(%v,%v)\n", contour.XMin, contour.YMin, contour.XMax, contour.YMax)
	fmt.Fprintf(&b, "  EndPoints: %v\n", contour.EndPoints)
	fmt.Fprintf(&b, "  Instruction length: %v\n", len(contour.Instructions))
	if len(contour.EndPoints) == 0 {
		fmt.Fprintf(&b, "  Empty glyph\n")
		return b.String()
	}
	fmt.Fprintf(&b, "  Coordinates:\n")
	for i := range contour.XCoordinates {
		onCurve := "Off"
		if contour.OnCurve[i] {
			onCurve = "On"
		}
		fmt.Fprintf(&b, "    %8v %8v %3v\n", contour.XCoordinates[i], contour.YCoordinates[i], onCurve)
	}
	return b.String()
}

// pointBounds returns the bounding box of the points, or all zeros for no points.
func pointBounds(xs, ys []int16) (xMin, yMin, xMax, yMax int16) {
	for i := range xs {
		if i == 0 {
			xMin, xMax = xs[i], xs[i]
			yMin, yMax = ys[i], ys[i]
			continue
		}
		if xs[i] < xMin {
			xMin = xs[i]
		} else if xMax < xs[i] {
			xMax = xs[i]
		}
		if ys[i] < yMin {
			yMin = ys[i]
		} else if yMax < ys[i] {
			yMax = ys[i]
		}
	}
	return
}

////////////////////////////////////////////////////////////////

const (
	glyfOnCurve         = 0x01
	glyfXShortVector    = 0x02
	glyfYShortVector    = 0x04
	glyfRepeat          = 0x08
	glyfXSameOrPositive = 0x10
	glyfYSameOrPositive = 0x20
	glyfOverlapSimple   = 0x40
)

const (
	compositeArgsAreWords     = 0x0001
	compositeArgsAreXYValues  = 0x0002
	compositeHaveScale        = 0x0008
	compositeMoreComponents   = 0x0020
	compositeHaveXYScale      = 0x0040
	compositeHaveTwoByTwo     = 0x0080
	compositeHaveInstructions = 0x0100
)

// glyfComponent is a component reference of a composite glyph.
type glyfComponent struct {
	Flags      uint16
	GlyphID    uint16
	Arg1, Arg2 int32  // offsets when ArgsAreXYValues is set, otherwise point numbers
	Transform  []byte // raw scale or 2x2 matrix
}

// IsOffset returns true if the arguments are an x,y offset and not anchor point numbers.
func (component glyfComponent) IsOffset() bool {
	return component.Flags&compositeArgsAreXYValues != 0
}

// glyfGlyph is a single parsed glyph, either simple or composite. An empty glyph has no contours and no components.
type glyfGlyph struct {
	NumberOfContours       int16
	XMin, YMin, XMax, YMax int16
	Instructions           []byte

	// simple glyph
	EndPoints    []uint16
	OnCurve      []bool
	Overlap      bool
	XCoordinates []int16
	YCoordinates []int16

	// composite glyph
	Components []glyfComponent
}

// IsComposite returns true for composite glyphs.
func (glyph *glyfGlyph) IsComposite() bool {
	return glyph.NumberOfContours < 0
}

// IsEmpty returns true for glyphs without an outline.
func (glyph *glyfGlyph) IsEmpty() bool {
	return glyph.NumberOfContours == 0
}

// NumPoints returns the number of points that take variation deltas, excluding the phantom points. For composite glyphs that is the number of components.
func (glyph *glyfGlyph) NumPoints() int {
	if glyph.IsComposite() {
		return len(glyph.Components)
	}
	return len(glyph.XCoordinates)
}

// Copy returns a deep copy of the point and component data.
func (glyph *glyfGlyph) Copy() *glyfGlyph {
	c := *glyph
	c.XCoordinates = append([]int16{}, glyph.XCoordinates...)
	c.YCoordinates = append([]int16{}, glyph.YCoordinates...)
	c.Components = append([]glyfComponent{}, glyph.Components...)
	return &c
}

func parseGlyfGlyph(b []byte) (*glyfGlyph, error) {
	glyph := &glyfGlyph{}
	if len(b) == 0 {
		return glyph, nil
	}

	r := NewBinaryReader(b)
	glyph.NumberOfContours = r.ReadInt16()
	glyph.XMin = r.ReadInt16()
	glyph.YMin = r.ReadInt16()
	glyph.XMax = r.ReadInt16()
	glyph.YMax = r.ReadInt16()
	if r.EOF() {
		return nil, fmt.Errorf("glyf: bad glyph header")
	}

	if 0 <= glyph.NumberOfContours {
		// simple glyph
		if r.Len() < 2*uint32(glyph.NumberOfContours)+2 {
			return nil, fmt.Errorf("glyf: bad glyph")
		}
		glyph.EndPoints = make([]uint16, glyph.NumberOfContours)
		for i := 0; i < int(glyph.NumberOfContours); i++ {
			glyph.EndPoints[i] = r.ReadUint16()
			if 0 < i && glyph.EndPoints[i] < glyph.EndPoints[i-1] {
				return nil, fmt.Errorf("glyf: bad contour end points")
			}
		}
		instructionLength := r.ReadUint16()
		glyph.Instructions = r.ReadBytes(uint32(instructionLength))
		if r.EOF() {
			return nil, fmt.Errorf("glyf: bad instructions")
		}

		numPoints := 0
		if 0 < glyph.NumberOfContours {
			numPoints = int(glyph.EndPoints[glyph.NumberOfContours-1]) + 1
		}
		flags := make([]byte, numPoints)
		glyph.OnCurve = make([]bool, numPoints)
		for i := 0; i < numPoints; i++ {
			flags[i] = r.ReadUint8()
			if flags[i]&glyfRepeat != 0 {
				repeats := int(r.ReadUint8())
				if numPoints <= i+repeats {
					return nil, fmt.Errorf("glyf: bad flag repeat count")
				}
				for j := 1; j <= repeats; j++ {
					flags[i+j] = flags[i]
				}
				i += repeats
			}
		}
		if r.EOF() {
			return nil, fmt.Errorf("glyf: bad flags")
		}
		for i, flag := range flags {
			glyph.OnCurve[i] = flag&glyfOnCurve != 0
		}
		if 0 < numPoints {
			glyph.Overlap = flags[0]&glyfOverlapSimple != 0
		}

		glyph.XCoordinates = readGlyfCoordinates(r, flags, glyfXShortVector, glyfXSameOrPositive)
		glyph.YCoordinates = readGlyfCoordinates(r, flags, glyfYShortVector, glyfYSameOrPositive)
		if r.EOF() {
			return nil, fmt.Errorf("glyf: bad coordinates")
		}
		return glyph, nil
	}

	// composite glyph
	if glyph.NumberOfContours != -1 {
		return nil, fmt.Errorf("glyf: bad numberOfContours")
	}
	hasInstructions := false
	for {
		component := readGlyfComponent(r)
		if r.EOF() {
			return nil, fmt.Errorf("glyf: bad component")
		}
		if component.Flags&compositeHaveInstructions != 0 {
			hasInstructions = true
		}
		glyph.Components = append(glyph.Components, component)
		if component.Flags&compositeMoreComponents == 0 {
			break
		}
	}
	if hasInstructions {
		instructionLength := r.ReadUint16()
		glyph.Instructions = r.ReadBytes(uint32(instructionLength))
		if r.EOF() {
			return nil, fmt.Errorf("glyf: bad instructions")
		}
	}
	return glyph, nil
}

func readGlyfComponent(r *BinaryReader) glyfComponent {
	component := glyfComponent{}
	component.Flags = r.ReadUint16()
	component.GlyphID = r.ReadUint16()
	if component.Flags&compositeArgsAreWords != 0 {
		if component.IsOffset() {
			component.Arg1 = int32(r.ReadInt16())
			component.Arg2 = int32(r.ReadInt16())
		} else {
			component.Arg1 = int32(r.ReadUint16())
			component.Arg2 = int32(r.ReadUint16())
		}
	} else {
		if component.IsOffset() {
			component.Arg1 = int32(r.ReadInt8())
			component.Arg2 = int32(r.ReadInt8())
		} else {
			component.Arg1 = int32(r.ReadUint8())
			component.Arg2 = int32(r.ReadUint8())
		}
	}
	if component.Flags&compositeHaveScale != 0 {
		component.Transform = r.ReadBytes(2)
	} else if component.Flags&compositeHaveXYScale != 0 {
		component.Transform = r.ReadBytes(4)
	} else if component.Flags&compositeHaveTwoByTwo != 0 {
		component.Transform = r.ReadBytes(8)
	}
	return component
}

func readGlyfCoordinates(r *BinaryReader, flags []byte, shortVector, sameOrPositive byte) []int16 {
	var v int16
	coordinates := make([]int16, len(flags))
	for i, flag := range flags {
		if flag&shortVector != 0 {
			if flag&sameOrPositive != 0 {
				v += int16(r.ReadUint8())
			} else {
				v -= int16(r.ReadUint8())
			}
		} else if flag&sameOrPositive == 0 {
			v += r.ReadInt16()
		}
		coordinates[i] = v
	}
	return coordinates
}

// UpdateBounds recalculates the bounding box of a simple glyph from its coordinates.
func (glyph *glyfGlyph) UpdateBounds() {
	if glyph.IsComposite() {
		return
	}
	glyph.XMin, glyph.YMin, glyph.XMax, glyph.YMax = pointBounds(glyph.XCoordinates, glyph.YCoordinates)
}

// Write encodes the glyph in the glyf format. Empty glyphs have no data.
func (glyph *glyfGlyph) Write() []byte {
	if glyph.IsEmpty() && len(glyph.Components) == 0 {
		return nil
	}

	w := NewBinaryWriter([]byte{})
	w.WriteInt16(glyph.NumberOfContours)
	w.WriteInt16(glyph.XMin)
	w.WriteInt16(glyph.YMin)
	w.WriteInt16(glyph.XMax)
	w.WriteInt16(glyph.YMax)
	if glyph.IsComposite() {
		if glyph.writeComponents(w) {
			w.WriteUint16(uint16(len(glyph.Instructions)))
			w.WriteBytes(glyph.Instructions)
		}
		return w.Bytes()
	}

	for _, endPoint := range glyph.EndPoints {
		w.WriteUint16(endPoint)
	}
	w.WriteUint16(uint16(len(glyph.Instructions)))
	w.WriteBytes(glyph.Instructions)

	// encode coordinates as short vectors where possible and compress repeated flags
	n := len(glyph.XCoordinates)
	flags := make([]byte, n)
	xs := NewBinaryWriter([]byte{})
	ys := NewBinaryWriter([]byte{})
	var x, y int16
	for i := 0; i < n; i++ {
		var flag byte
		if glyph.OnCurve[i] {
			flag |= glyfOnCurve
		}
		if i == 0 && glyph.Overlap {
			flag |= glyfOverlapSimple
		}
		flag |= writeGlyfCoordinate(xs, int(glyph.XCoordinates[i])-int(x), glyfXShortVector, glyfXSameOrPositive)
		flag |= writeGlyfCoordinate(ys, int(glyph.YCoordinates[i])-int(y), glyfYShortVector, glyfYSameOrPositive)
		x, y = glyph.XCoordinates[i], glyph.YCoordinates[i]
		flags[i] = flag
	}
	for i := 0; i < n; {
		repeats := 0
		for i+repeats+1 < n && flags[i+repeats+1] == flags[i] && repeats < math.MaxUint8 {
			repeats++
		}
		if 1 < repeats {
			w.WriteByte(flags[i] | glyfRepeat)
			w.WriteByte(byte(repeats))
			i += repeats + 1
		} else {
			w.WriteByte(flags[i])
			i++
		}
	}
	w.WriteBytes(xs.Bytes())
	w.WriteBytes(ys.Bytes())
	return w.Bytes()
}

// writeComponents writes the component records of a composite glyph with the MORE_COMPONENTS and ARGS_ARE_WORDS flags recalculated. It returns true if instructions follow.
func (glyph *glyfGlyph) writeComponents(w *BinaryWriter) bool {
	hasInstructions := false
	for i, component := range glyph.Components {
		flags := component.Flags &^ (compositeMoreComponents | compositeArgsAreWords)
		if i+1 < len(glyph.Components) {
			flags |= compositeMoreComponents
		}
		var words bool
		if component.IsOffset() {
			words = component.Arg1 < math.MinInt8 || math.MaxInt8 < component.Arg1 || component.Arg2 < math.MinInt8 || math.MaxInt8 < component.Arg2
		} else {
			words = math.MaxUint8 < component.Arg1 || math.MaxUint8 < component.Arg2
		}
		if words {
			flags |= compositeArgsAreWords
		}
		if flags&compositeHaveInstructions != 0 {
			hasInstructions = true
		}

		w.WriteUint16(flags)
		w.WriteUint16(component.GlyphID)
		if words {
			w.WriteUint16(uint16(component.Arg1))
			w.WriteUint16(uint16(component.Arg2))
		} else {
			w.WriteUint8(uint8(component.Arg1))
			w.WriteUint8(uint8(component.Arg2))
		}
		w.WriteBytes(component.Transform)
	}
	return hasInstructions
}

func writeGlyfCoordinate(w *BinaryWriter, d int, shortVector, sameOrPositive byte) byte {
	if d == 0 {
		return sameOrPositive
	} else if -256 < d && d < 256 {
		if 0 < d {
			w.WriteUint8(uint8(d))
			return shortVector | sameOrPositive
		}
		w.WriteUint8(uint8(-d))
		return shortVector
	}
	w.WriteInt16(int16(d))
	return 0
}

////////////////////////////////////////////////////////////////

type glyfTable struct {
	data []byte
	loca *locaTable
}

// Get returns the glyph data corresponding to the passed glyphID. It returns nil if the glyph doesn't exist.
func (glyf *glyfTable) Get(glyphID uint16) []byte {
	start, ok1 := glyf.loca.Get(glyphID)
	end, ok2 := glyf.loca.Get(glyphID + 1)
	if !ok1 || !ok2 || end < start || uint32(len(glyf.data)) < end {
		return nil
	}
	return glyf.data[start:end:end]
}

// IsComposite returns true if the glyph is a composite glyph
func (glyf *glyfTable) IsComposite(glyphID uint16) bool {
	b := glyf.Get(glyphID)
	if len(b) < 1 {
		return false
	}
	return b[0]&0x80 != 0 // sign bit is set on numberOfContours
}

// Glyph returns the parsed glyph.
func (glyf *glyfTable) Glyph(glyphID uint16) (*glyfGlyph, error) {
	b := glyf.Get(glyphID)
	if b == nil {
		return nil, fmt.Errorf("glyf: bad glyphID %v", glyphID)
	}
	glyph, err := parseGlyfGlyph(b)
	if err != nil {
		return nil, fmt.Errorf("%w for glyphID %v", err, glyphID)
	}
	return glyph, nil
}

// Dependencies returns all the glyph IDs that a composite glyph uses.
func (glyf *glyfTable) Dependencies(glyphID uint16) ([]uint16, error) {
	return glyf.dependencies(glyphID, 0)
}

func (glyf *glyfTable) dependencies(glyphID uint16, level int) ([]uint16, error) {
	glyph, err := glyf.Glyph(glyphID)
	if err != nil {
		return nil, err
	}
	deps := []uint16{glyphID}
	if glyph.IsComposite() {
		if 7 < level {
			return nil, fmt.Errorf("glyf: compound glyphs too deeply nested")
		}
		for _, component := range glyph.Components {
			subDeps, err := glyf.dependencies(component.GlyphID, level+1)
			if err != nil {
				return nil, err
			}
			deps = append(deps, subDeps...)
		}
	}
	return deps, nil
}

// Contour returns the contours of a glyph. It unpacks composite glyphs into their final shape.
func (glyf *glyfTable) Contour(glyphID uint16) (*glyfContour, error) {
	return resolveContour(glyf.Glyph, glyphID, 0)
}

// resolveContour flattens a glyph given a glyph source, which may be a glyf table or a set of instanced glyphs.
func resolveContour(source func(uint16) (*glyfGlyph, error), glyphID uint16, level int) (*glyfContour, error) {
	glyph, err := source(glyphID)
	if err != nil {
		return nil, err
	}

	contour := &glyfContour{
		GlyphID:      glyphID,
		XMin:         glyph.XMin,
		YMin:         glyph.YMin,
		XMax:         glyph.XMax,
		YMax:         glyph.YMax,
		Instructions: glyph.Instructions,
	}
	if !glyph.IsComposite() {
		contour.EndPoints = glyph.EndPoints
		contour.OnCurve = glyph.OnCurve
		contour.XCoordinates = glyph.XCoordinates
		contour.YCoordinates = glyph.YCoordinates
		return contour, nil
	} else if 7 < level {
		return nil, fmt.Errorf("glyf: compound glyphs too deeply nested")
	}

	for _, component := range glyph.Components {
		if !component.IsOffset() {
			return nil, fmt.Errorf("glyf: composite glyph with anchor points not supported")
		}
		subContour, err := resolveContour(source, component.GlyphID, level+1)
		if err != nil {
			return nil, err
		}

		var txx, txy, tyx, tyy int16 = 1 << 14, 0, 0, 1 << 14
		r := NewBinaryReader(component.Transform)
		if component.Flags&compositeHaveScale != 0 {
			txx = r.ReadInt16()
			tyy = txx
		} else if component.Flags&compositeHaveXYScale != 0 {
			txx = r.ReadInt16()
			tyy = r.ReadInt16()
		} else if component.Flags&compositeHaveTwoByTwo != 0 {
			txx = r.ReadInt16()
			txy = r.ReadInt16()
			tyx = r.ReadInt16()
			tyy = r.ReadInt16()
		}

		var numPoints uint16
		if 0 < len(contour.EndPoints) {
			numPoints = contour.EndPoints[len(contour.EndPoints)-1] + 1
		}
		for _, endPoint := range subContour.EndPoints {
			contour.EndPoints = append(contour.EndPoints, numPoints+endPoint)
		}
		contour.OnCurve = append(contour.OnCurve, subContour.OnCurve...)
		dx, dy := int16(component.Arg1), int16(component.Arg2)
		for i := range subContour.XCoordinates {
			x := subContour.XCoordinates[i]
			y := subContour.YCoordinates[i]
			if component.Flags&(compositeHaveScale|compositeHaveXYScale|compositeHaveTwoByTwo) != 0 {
				const half = 1 << 13
				xt := int16((int64(x)*int64(txx)+half)>>14) + int16((int64(y)*int64(tyx)+half)>>14)
				yt := int16((int64(x)*int64(txy)+half)>>14) + int16((int64(y)*int64(tyy)+half)>>14)
				x, y = xt, yt
			}
			contour.XCoordinates = append(contour.XCoordinates, dx+x)
			contour.YCoordinates = append(contour.YCoordinates, dy+y)
		}
	}
	contour.XMin, contour.YMin, contour.XMax, contour.YMax = pointBounds(contour.XCoordinates, contour.YCoordinates)
	return contour, nil
}

func (sfnt *SFNT) parseGlyf() error {
	if sfnt.Loca == nil {
		return fmt.Errorf("glyf: missing loca table")
	} else if sfnt.Maxp == nil {
		return fmt.Errorf("glyf: missing maxp table")
	}

	b, ok := sfnt.Tables["glyf"]
	if !ok {
		return fmt.Errorf("glyf: missing table")
	} else if length, ok := sfnt.Loca.Get(sfnt.Maxp.NumGlyphs); !ok || uint32(len(b)) < length {
		return fmt.Errorf("glyf: bad table")
	}

	sfnt.Glyf = &glyfTable{
		data: b,
		loca: sfnt.Loca,
	}
	return nil
}

////////////////////////////////////////////////////////////////

type locaTable struct {
	Format int16
	data   []byte
}

func (loca *locaTable) Get(glyphID uint16) (uint32, bool) {
	if loca.Format == 0 && int(glyphID)*2+2 <= len(loca.data) {
		return 2 * uint32(binary.BigEndian.Uint16(loca.data[int(glyphID)*2:])), true
	} else if loca.Format == 1 && int(glyphID)*4+4 <= len(loca.data) {
		return binary.BigEndian.Uint32(loca.data[int(glyphID)*4:]), true
	}
	return 0, false
}

func (sfnt *SFNT) parseLoca() error {
	if sfnt.Head == nil {
		return fmt.Errorf("loca: missing head table")
	}

	b, ok := sfnt.Tables["loca"]
	if !ok {
		return fmt.Errorf("loca: missing table")
	}

	entrySize := uint32(2)
	if sfnt.Head.IndexToLocFormat == 1 {
		entrySize = 4
	}
	if uint32(len(b)) < entrySize*(uint32(sfnt.Maxp.NumGlyphs)+1) {
		return fmt.Errorf("loca: bad table")
	}

	sfnt.Loca = &locaTable{
		Format: sfnt.Head.IndexToLocFormat,
		data:   b,
	}
	return nil
}

// buildGlyfLoca concatenates glyph data, each glyph padded to four bytes, and returns the glyf and loca tables.
// For indexToLocFormat -1 the short format is used if the offsets fit.
func buildGlyfLoca(glyphs [][]byte, indexToLocFormat int16) ([]byte, []byte, int16) {
	var size uint32
	for _, glyph := range glyphs {
		size += align4(uint32(len(glyph)))
	}
	if indexToLocFormat == -1 {
		indexToLocFormat = 0
		if math.MaxUint16 < size/2 {
			indexToLocFormat = 1
		}
	}

	glyf := NewBinaryWriter(make([]byte, 0, size))
	loca := NewBinaryWriter(make([]byte, 0, (len(glyphs)+1)*int(2+2*indexToLocFormat)))
	for _, glyph := range glyphs {
		writeLocaOffset(loca, glyf.Len(), indexToLocFormat)
		glyf.WriteBytes(glyph)
		glyf.Pad()
	}
	writeLocaOffset(loca, glyf.Len(), indexToLocFormat)
	return glyf.Bytes(), loca.Bytes(), indexToLocFormat
}

func writeLocaOffset(w *BinaryWriter, offset uint32, indexToLocFormat int16) {
	if indexToLocFormat == 0 {
		w.WriteUint16(uint16(offset >> 1))
	} else {
		w.WriteUint32(offset)
	}
}
