package font

import (
	"fmt"
	"io"
)

const (
	woff2HmtxNoProportionalLSBs = 0x01 // lsb of the hMetrics array equals glyph xMin
	woff2HmtxNoMonospacedLSBs   = 0x02 // leftSideBearings array equals glyph xMin
)

// TransformHmtx returns the WOFF2 transformed hmtx table of a TrueType font, or nil if no left side bearings can be derived from the glyf table.
func TransformHmtx(font TableProvider) ([]byte, error) {
	sfnt, err := NewSFNT(font)
	if err != nil {
		return nil, err
	} else if sfnt.Glyf == nil || sfnt.Hmtx == nil {
		return nil, fmt.Errorf("hmtx: glyf and hmtx tables required")
	}
	_, xMins, err := transformGlyf(sfnt)
	if err != nil {
		return nil, err
	}
	return transformHmtx(sfnt.Hmtx, xMins), nil
}

// transformHmtx omits the left side bearing arrays that equal the glyph xMin. It returns nil if neither can be omitted.
func transformHmtx(hmtx *hmtxTable, xMins []int16) []byte {
	if len(xMins) < hmtx.NumGlyphs() {
		return nil
	}

	var flags byte = woff2HmtxNoProportionalLSBs | woff2HmtxNoMonospacedLSBs
	for i, metric := range hmtx.HMetrics {
		if metric.LeftSideBearing != xMins[i] {
			flags &^= woff2HmtxNoProportionalLSBs
			break
		}
	}
	for i, lsb := range hmtx.LeftSideBearings {
		if lsb != xMins[len(hmtx.HMetrics)+i] {
			flags &^= woff2HmtxNoMonospacedLSBs
			break
		}
	}
	if flags == 0 {
		return nil
	}

	w := NewBinaryWriter([]byte{})
	w.WriteByte(flags)
	for _, metric := range hmtx.HMetrics {
		w.WriteUint16(metric.AdvanceWidth)
	}
	if flags&woff2HmtxNoProportionalLSBs == 0 {
		for _, metric := range hmtx.HMetrics {
			w.WriteInt16(metric.LeftSideBearing)
		}
	}
	if flags&woff2HmtxNoMonospacedLSBs == 0 {
		for _, lsb := range hmtx.LeftSideBearings {
			w.WriteInt16(lsb)
		}
	}
	return w.Bytes()
}

// ReconstructHmtx decodes a WOFF2 transformed hmtx table. The omitted left side bearings are taken from xMins, which holds the xMin of every glyph. A zero flags byte stores both left side bearing arrays explicitly, in which case xMins may be nil.
func ReconstructHmtx(b []byte, numGlyphs, numHMetrics uint16, xMins []int16) ([]byte, error) {
	if numHMetrics < 1 || numGlyphs < numHMetrics {
		return nil, fmt.Errorf("hmtx: bad number of metrics: %w", ErrInvalidFontData)
	}

	r := NewBinaryReader(b)
	flags := r.ReadByte()
	if r.EOF() {
		return nil, fmt.Errorf("hmtx: %w", io.ErrUnexpectedEOF)
	} else if flags&0xFC != 0 {
		return nil, fmt.Errorf("hmtx: reserved bits in flags must not be set: %w", ErrInvalidFontData)
	} else if flags != 0 && len(xMins) < int(numGlyphs) {
		return nil, fmt.Errorf("hmtx: missing glyph bounds: %w", ErrInvalidFontData)
	}

	hmtx := &hmtxTable{
		HMetrics:         make([]hmtxLongHorMetric, numHMetrics),
		LeftSideBearings: make([]int16, numGlyphs-numHMetrics),
	}
	for i := range hmtx.HMetrics {
		hmtx.HMetrics[i].AdvanceWidth = r.ReadUint16()
	}
	if flags&woff2HmtxNoProportionalLSBs == 0 {
		for i := range hmtx.HMetrics {
			hmtx.HMetrics[i].LeftSideBearing = r.ReadInt16()
		}
	} else {
		for i := range hmtx.HMetrics {
			hmtx.HMetrics[i].LeftSideBearing = xMins[i]
		}
	}
	if flags&woff2HmtxNoMonospacedLSBs == 0 {
		for i := range hmtx.LeftSideBearings {
			hmtx.LeftSideBearings[i] = r.ReadInt16()
		}
	} else {
		for i := range hmtx.LeftSideBearings {
			hmtx.LeftSideBearings[i] = xMins[int(numHMetrics)+i]
		}
	}

	if r.EOF() {
		return nil, fmt.Errorf("hmtx: %w", io.ErrUnexpectedEOF)
	} else if r.Len() != 0 {
		return nil, fmt.Errorf("hmtx: trailing data: %w", ErrInvalidFontData)
	}
	return hmtx.Write(), nil
}
