package font

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/andybalholm/brotli"
)

// Specification:
// https://www.w3.org/TR/WOFF2/

// Validation tests:
// https://github.com/w3c/woff2-tests

const woff2Signature = 0x774F4632 // wOF2

const woff2CustomTag = 0x3F

var woff2TableTags = []string{
	"cmap", "head", "hhea", "hmtx",
	"maxp", "name", "OS/2", "post",
	"cvt ", "fpgm", "glyf", "loca",
	"prep", "CFF ", "VORG", "EBDT",
	"EBLC", "gasp", "hdmx", "kern",
	"LTSH", "PCLT", "VDMX", "vhea",
	"vmtx", "BASE", "GDEF", "GPOS",
	"GSUB", "EBSC", "JSTF", "MATH",
	"CBDT", "CBLC", "COLR", "CPAL",
	"SVG ", "sbix", "acnt", "avar",
	"bdat", "bloc", "bsln", "cvar",
	"fdsc", "feat", "fmtx", "fvar",
	"gvar", "hsty", "just", "lcar",
	"mort", "morx", "opbd", "prop",
	"trak", "Zapf", "Silf", "Glat",
	"Gloc", "Feat", "Sill",
}

// WOFF2TagIndex returns the index of a known table tag, or 0x3F for tags that are written out explicitly.
func WOFF2TagIndex(tag string) int {
	for i, knownTag := range woff2TableTags {
		if knownTag == tag {
			return i
		}
	}
	return woff2CustomTag
}

// WOFF2Header is the fixed 48-byte WOFF2 header.
type WOFF2Header struct {
	Flavor              uint32
	Length              uint32
	NumTables           uint16
	TotalSfntSize       uint32
	TotalCompressedSize uint32
	MajorVersion        uint16
	MinorVersion        uint16
	MetaOffset          uint32
	MetaLength          uint32
	MetaOrigLength      uint32
	PrivOffset          uint32
	PrivLength          uint32
}

// WOFF2TableEntry is an entry of the WOFF2 table directory. The offset is into the decompressed table data.
type WOFF2TableEntry struct {
	Tag              string
	TransformVersion int
	OrigLength       uint32
	TransformLength  uint32
	Offset           uint32
}

// Flags returns the flags byte of the entry, with the known tag index in the low six bits and the transform version in the high two bits.
func (entry WOFF2TableEntry) Flags() byte {
	return byte(entry.TransformVersion)<<6 | byte(WOFF2TagIndex(entry.Tag))
}

// IsTransformed returns true if the table data is stored in a transformed format.
func (entry WOFF2TableEntry) IsTransformed() bool {
	if entry.Tag == "glyf" || entry.Tag == "loca" {
		return entry.TransformVersion == 0
	}
	return entry.Tag == "hmtx" && entry.TransformVersion == 1
}

// length returns the length of the table in the decompressed data stream.
func (entry WOFF2TableEntry) length() uint32 {
	if entry.IsTransformed() {
		return entry.TransformLength
	}
	return entry.OrigLength
}

// WOFF2Options configures WOFF2 parsing.
type WOFF2Options struct {
	Logger Logger
}

// WOFF2 is a parsed WOFF2 font.
type WOFF2 struct {
	Header      WOFF2Header
	Tables      []WOFF2TableEntry
	SFNT        []byte // reconstructed font
	Metadata    []byte // decompressed extended metadata, nil if absent or broken
	PrivateData []byte
}

// ParseWOFF2 parses the WOFF2 font format and returns its contained SFNT font format (TTF or OTF).
func ParseWOFF2(b []byte) ([]byte, error) {
	woff2, err := ParseWOFF2File(b, WOFF2Options{})
	if err != nil {
		return nil, err
	}
	return woff2.SFNT, nil
}

// ParseWOFF2File parses a WOFF2 font including its metadata and private data blocks. A metadata block that fails to decompress is logged and skipped.
func ParseWOFF2File(b []byte, options WOFF2Options) (*WOFF2, error) {
	logger := loggerOrDefault(options.Logger)
	if len(b) < 48 {
		return nil, fmt.Errorf("woff2: %w", ErrInvalidFontData)
	}

	r := NewBinaryReader(b)
	if signature := r.ReadUint32(); signature != woff2Signature {
		return nil, fmt.Errorf("woff2: bad signature 0x%08X: %w", signature, ErrInvalidFontData)
	}
	header := WOFF2Header{}
	header.Flavor = r.ReadUint32()
	header.Length = r.ReadUint32()
	header.NumTables = r.ReadUint16()
	reserved := r.ReadUint16()
	header.TotalSfntSize = r.ReadUint32()
	header.TotalCompressedSize = r.ReadUint32()
	header.MajorVersion = r.ReadUint16()
	header.MinorVersion = r.ReadUint16()
	header.MetaOffset = r.ReadUint32()
	header.MetaLength = r.ReadUint32()
	header.MetaOrigLength = r.ReadUint32()
	header.PrivOffset = r.ReadUint32()
	header.PrivLength = r.ReadUint32()
	if uint32ToString(header.Flavor) == "ttcf" {
		return nil, fmt.Errorf("woff2: collections are unsupported")
	} else if header.Length != uint32(len(b)) {
		return nil, fmt.Errorf("woff2: length in header must match file size")
	} else if header.NumTables == 0 {
		return nil, fmt.Errorf("woff2: numTables in header must not be zero")
	} else if reserved != 0 {
		return nil, fmt.Errorf("woff2: reserved in header must be zero")
	}

	entries, uncompressedSize, err := readWOFF2Directory(r, header.NumTables)
	if err != nil {
		return nil, err
	}

	// decompress font data using Brotli
	compData := r.ReadBytes(header.TotalCompressedSize)
	if r.EOF() {
		return nil, fmt.Errorf("woff2: compressed data: %w", ErrInvalidFontData)
	} else if MaxMemory < uncompressedSize {
		return nil, ErrExceedsMemory
	}
	data, err := decompressBrotli(compData, uncompressedSize)
	if err != nil {
		return nil, fmt.Errorf("woff2: %w", err)
	} else if uint32(len(data)) != uncompressedSize {
		return nil, fmt.Errorf("woff2: sum of table lengths must match decompressed font data size")
	}

	tables, err := reconstructWOFF2Tables(entries, data)
	if err != nil {
		return nil, err
	}

	woff2 := &WOFF2{
		Header: header,
		Tables: entries,
		SFNT:   writeSFNT(header.Flavor, tables),
	}
	if header.MetaOffset != 0 {
		if uint32(len(b)) < header.MetaOffset || uint32(len(b))-header.MetaOffset < header.MetaLength {
			return nil, fmt.Errorf("woff2: metadata block: %w", ErrInvalidFontData)
		}
		var metadata []byte
		var err error
		if MaxMemory < header.MetaOrigLength {
			err = ErrExceedsMemory
		} else {
			metadata, err = decompressBrotli(b[header.MetaOffset:header.MetaOffset+header.MetaLength], header.MetaOrigLength)
		}
		if err == nil && uint32(len(metadata)) != header.MetaOrigLength {
			err = fmt.Errorf("length mismatch")
		}
		if err != nil {
			logger.Errorf("woff2: skipping metadata block: %v", err)
		} else {
			woff2.Metadata = metadata
		}
	}
	if header.PrivOffset != 0 {
		if uint32(len(b)) < header.PrivOffset || uint32(len(b))-header.PrivOffset < header.PrivLength {
			return nil, fmt.Errorf("woff2: private data block: %w", ErrInvalidFontData)
		}
		woff2.PrivateData = b[header.PrivOffset : header.PrivOffset+header.PrivLength : header.PrivOffset+header.PrivLength]
	}
	return woff2, nil
}

func readWOFF2Directory(r *BinaryReader, numTables uint16) ([]WOFF2TableEntry, uint32, error) {
	entries := make([]WOFF2TableEntry, 0, numTables)
	seen := map[string]bool{}
	var uncompressedSize uint32
	for i := 0; i < int(numTables); i++ {
		flags := r.ReadByte()
		entry := WOFF2TableEntry{
			TransformVersion: int(flags >> 6),
		}
		if tagIndex := int(flags & 0x3F); tagIndex == woff2CustomTag {
			entry.Tag = uint32ToString(r.ReadUint32())
		} else if tagIndex < len(woff2TableTags) {
			entry.Tag = woff2TableTags[tagIndex]
		} else {
			return nil, 0, fmt.Errorf("woff2: bad tag index %d: %w", tagIndex, ErrInvalidFontData)
		}

		var err error
		if entry.OrigLength, err = ReadUIntBase128(r); err != nil {
			return nil, 0, fmt.Errorf("%s: origLength: %w", entry.Tag, err)
		}
		if entry.IsTransformed() {
			if entry.TransformLength, err = ReadUIntBase128(r); err != nil {
				return nil, 0, fmt.Errorf("%s: transformLength: %w", entry.Tag, err)
			} else if entry.Tag != "loca" && entry.TransformLength == 0 {
				return nil, 0, fmt.Errorf("%s: transformLength must be set", entry.Tag)
			} else if entry.Tag == "loca" && entry.TransformLength != 0 {
				return nil, 0, fmt.Errorf("loca: transformLength must be zero")
			}
		} else if entry.TransformVersion != 0 && !(entry.TransformVersion == 3 && (entry.Tag == "glyf" || entry.Tag == "loca")) {
			return nil, 0, fmt.Errorf("%s: invalid transformation", entry.Tag)
		}

		if entry.Tag == "loca" && !seen["glyf"] {
			return nil, 0, fmt.Errorf("loca: must come after glyf table")
		} else if seen[entry.Tag] {
			return nil, 0, fmt.Errorf("%s: table defined more than once", entry.Tag)
		}
		seen[entry.Tag] = true

		entry.Offset = uncompressedSize
		if math.MaxUint32-uncompressedSize < entry.length() {
			return nil, 0, ErrInvalidFontData
		}
		uncompressedSize += entry.length()
		entries = append(entries, entry)
	}
	if r.EOF() {
		return nil, 0, fmt.Errorf("woff2: table directory: %w", ErrInvalidFontData)
	}

	glyf, hasGlyf := findWOFF2Entry(entries, "glyf")
	loca, hasLoca := findWOFF2Entry(entries, "loca")
	if hasGlyf != hasLoca || hasGlyf && glyf.IsTransformed() != loca.IsTransformed() {
		return nil, 0, fmt.Errorf("woff2: glyf and loca tables must be both present and either be both transformed or untransformed")
	}
	return entries, uncompressedSize, nil
}

func findWOFF2Entry(entries []WOFF2TableEntry, tag string) (WOFF2TableEntry, bool) {
	for _, entry := range entries {
		if entry.Tag == tag {
			return entry, true
		}
	}
	return WOFF2TableEntry{}, false
}

// reconstructWOFF2Tables splits the decompressed data into tables and reverses the glyf, loca, and hmtx transforms.
func reconstructWOFF2Tables(entries []WOFF2TableEntry, data []byte) (map[string][]byte, error) {
	tables := make(map[string][]byte, len(entries))
	for _, entry := range entries {
		n := entry.length()
		tables[entry.Tag] = data[entry.Offset : entry.Offset+n : entry.Offset+n]
	}

	if _, hasDSIG := tables["DSIG"]; hasDSIG {
		return nil, fmt.Errorf("DSIG: must be removed")
	}
	head, hasHead := tables["head"]
	if !hasHead || len(head) < 54 {
		return nil, fmt.Errorf("head: must be present")
	} else if flags := binary.BigEndian.Uint16(head[16:]); flags&0x0800 == 0 {
		return nil, fmt.Errorf("head: bit 11 in flags must be set")
	}
	indexFormat := int16(binary.BigEndian.Uint16(head[50:]))

	var numGlyphs uint16
	if maxp, ok := tables["maxp"]; ok && 6 <= len(maxp) {
		numGlyphs = binary.BigEndian.Uint16(maxp[4:])
	}

	var xMins []int16
	glyfEntry, hasGlyf := findWOFF2Entry(entries, "glyf")
	locaEntry, _ := findWOFF2Entry(entries, "loca")
	if hasGlyf && glyfEntry.IsTransformed() {
		if _, ok := tables["maxp"]; !ok {
			return nil, fmt.Errorf("glyf: maxp table must be defined in order to rebuild glyf table")
		}
		glyfLoca, err := ReconstructGlyfLoca(tables["glyf"], numGlyphs)
		if err != nil {
			return nil, err
		} else if locaEntry.OrigLength != uint32(len(glyfLoca.Loca)) {
			return nil, fmt.Errorf("loca: invalid value for origLength")
		} else if glyfLoca.IndexFormat != indexFormat {
			return nil, fmt.Errorf("loca: index format must match head table")
		}
		tables["glyf"], tables["loca"] = glyfLoca.Glyf, glyfLoca.Loca
		xMins = glyfLoca.XMins
	}

	if hmtxEntry, ok := findWOFF2Entry(entries, "hmtx"); ok && hmtxEntry.IsTransformed() {
		hhea, ok := tables["hhea"]
		if !ok || len(hhea) < 36 {
			return nil, fmt.Errorf("hmtx: hhea table must be defined in order to rebuild hmtx table")
		}
		if xMins == nil && hasGlyf {
			var err error
			if xMins, err = glyfXMins(tables["glyf"], tables["loca"], indexFormat, numGlyphs); err != nil {
				return nil, err
			}
		}
		numHMetrics := binary.BigEndian.Uint16(hhea[34:])
		hmtx, err := ReconstructHmtx(tables["hmtx"], numGlyphs, numHMetrics, xMins)
		if err != nil {
			return nil, err
		}
		tables["hmtx"] = hmtx
	}
	return tables, nil
}

// glyfXMins returns the xMin of every glyph of an untransformed glyf table, zero for empty glyphs.
func glyfXMins(glyf, loca []byte, indexFormat int16, numGlyphs uint16) ([]int16, error) {
	table := &locaTable{Format: indexFormat, data: loca}
	xMins := make([]int16, numGlyphs)
	for glyphID := uint16(0); glyphID < numGlyphs; glyphID++ {
		start, ok1 := table.Get(glyphID)
		end, ok2 := table.Get(glyphID + 1)
		if !ok1 || !ok2 || end < start || uint32(len(glyf)) < end {
			return nil, fmt.Errorf("loca: %w", ErrInvalidFontData)
		} else if start == end {
			continue
		} else if end-start < 10 {
			return nil, fmt.Errorf("glyf: %w", ErrInvalidFontData)
		}
		xMins[glyphID] = int16(binary.BigEndian.Uint16(glyf[start+2:]))
	}
	return xMins, nil
}

// decompressBrotli decompresses at most size bytes, longer streams are invalid.
func decompressBrotli(b []byte, size uint32) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, size))
	rBrotli := io.LimitReader(brotli.NewReader(bytes.NewReader(b)), int64(size)+1)
	if _, err := io.Copy(buf, rBrotli); err != nil {
		return nil, err
	} else if int64(size) < int64(buf.Len()) {
		return nil, fmt.Errorf("decompressed data exceeds %d bytes: %w", size, ErrInvalidFontData)
	}
	return buf.Bytes(), nil
}

////////////////////////////////////////////////////////////////

// WriteWOFF2 encodes the font as WOFF2, transforming glyf, loca, and hmtx where possible. The DSIG table is dropped.
func (sfnt *SFNT) WriteWOFF2() ([]byte, error) {
	return sfnt.WriteWOFF2WithMetadata(nil, nil)
}

// WriteWOFF2WithMetadata is like WriteWOFF2 and adds an extended metadata block (XML, compressed here) and a private data block.
func (sfnt *SFNT) WriteWOFF2WithMetadata(metadata, privateData []byte) ([]byte, error) {
	tags := make([]string, 0, len(sfnt.Tables))
	for _, tag := range sfnt.TableNames() {
		if tag != "DSIG" {
			tags = append(tags, tag)
		}
	}

	var glyf, hmtx []byte
	if sfnt.Glyf != nil && sfnt.HasTable("loca") {
		var xMins []int16
		var err error
		if glyf, xMins, err = transformGlyf(sfnt); err != nil {
			return nil, err
		}
		if sfnt.Hmtx != nil {
			hmtx = transformHmtx(sfnt.Hmtx, xMins)
		}
	}

	totalSfntSize := 12 + 16*uint32(len(tags))
	entries := make([]WOFF2TableEntry, 0, len(tags))
	for _, tag := range tags {
		entry := WOFF2TableEntry{
			Tag:        tag,
			OrigLength: uint32(len(sfnt.Tables[tag])),
		}
		if tag == "glyf" || tag == "loca" {
			entry.TransformVersion = 3
			if glyf != nil {
				entry.TransformVersion = 0
				if tag == "glyf" {
					entry.TransformLength = uint32(len(glyf))
				}
			}
		} else if tag == "hmtx" && hmtx != nil {
			entry.TransformVersion = 1
			entry.TransformLength = uint32(len(hmtx))
		}
		entries = append(entries, entry)
		totalSfntSize += align4(entry.OrigLength)
	}

	version := sfntVersionOf(sfnt)
	if len(sfnt.Version) == 4 {
		version = binary.BigEndian.Uint32([]byte(sfnt.Version))
	}
	w := NewBinaryWriter(make([]byte, 0, totalSfntSize/2))
	w.WriteUint32(woff2Signature)
	w.WriteUint32(version)           // flavor
	w.WriteUint32(0)                 // length (set later)
	w.WriteUint16(uint16(len(tags))) // numTables
	w.WriteUint16(0)                 // reserved
	w.WriteUint32(totalSfntSize)     // totalSfntSize
	w.WriteUint32(0)                 // totalCompressedSize (set later)
	w.WriteUint16(1)                 // majorVersion
	w.WriteUint16(0)                 // minorVersion
	w.WriteBytes(make([]byte, 5*4))  // metadata and private data (set later)
	for _, entry := range entries {
		w.WriteByte(entry.Flags())
		if WOFF2TagIndex(entry.Tag) == woff2CustomTag {
			w.WriteString(entry.Tag)
		}
		WriteUIntBase128(w, entry.OrigLength)
		if entry.IsTransformed() {
			WriteUIntBase128(w, entry.TransformLength)
		}
	}

	headerLength := w.Len()
	wBrotli := brotli.NewWriterLevel(w, brotli.BestCompression)
	for _, entry := range entries {
		table := sfnt.Tables[entry.Tag]
		if entry.Tag == "head" && 18 <= len(table) {
			head := append([]byte{}, table...)
			flags := binary.BigEndian.Uint16(head[16:])
			flags |= 0x0800 // set bit 11, font is compressed
			binary.BigEndian.PutUint16(head[16:], flags)
			table = head
		} else if entry.Tag == "glyf" && glyf != nil {
			table = glyf
		} else if entry.Tag == "loca" && glyf != nil {
			continue
		} else if entry.Tag == "hmtx" && hmtx != nil {
			table = hmtx
		}
		if _, err := wBrotli.Write(table); err != nil {
			return nil, err
		}
	}
	if err := wBrotli.Close(); err != nil {
		return nil, err
	}
	// should not include the padding (see https://github.com/fontforge/fontforge/issues/5101#issuecomment-1414201810)
	totalCompressedSize := w.Len() - headerLength

	var metaOffset, metaLength, privOffset uint32
	if metadata != nil {
		w.Pad()
		metaOffset = w.Len()
		wMeta := brotli.NewWriterLevel(w, brotli.BestCompression)
		if _, err := wMeta.Write(metadata); err != nil {
			return nil, err
		} else if err := wMeta.Close(); err != nil {
			return nil, err
		}
		metaLength = w.Len() - metaOffset
	}
	if privateData != nil {
		w.Pad()
		privOffset = w.Len()
		w.WriteBytes(privateData)
	}
	// pad to 4-byte boundary, apparently not in the specification, but required by at least Firefox
	if privateData == nil {
		w.Pad()
	}

	b := w.Bytes()
	binary.BigEndian.PutUint32(b[8:], uint32(len(b)))
	binary.BigEndian.PutUint32(b[20:], totalCompressedSize)
	if metadata != nil {
		binary.BigEndian.PutUint32(b[28:], metaOffset)
		binary.BigEndian.PutUint32(b[32:], metaLength)
		binary.BigEndian.PutUint32(b[36:], uint32(len(metadata)))
	}
	if privateData != nil {
		binary.BigEndian.PutUint32(b[40:], privOffset)
		binary.BigEndian.PutUint32(b[44:], uint32(len(privateData)))
	}
	return b, nil
}

////////////////////////////////////////////////////////////////

// ReadUIntBase128 reads a UIntBase128 encoded number of at most five bytes without leading zeros.
func ReadUIntBase128(r *BinaryReader) (uint32, error) {
	var accum uint32
	for i := 0; i < 5; i++ {
		dataByte := r.ReadByte()
		if r.EOF() {
			return 0, fmt.Errorf("UIntBase128: %w", io.ErrUnexpectedEOF)
		} else if i == 0 && dataByte == 0x80 {
			return 0, fmt.Errorf("UIntBase128: must not start with leading zeros: %w", ErrInvalidEncoding)
		} else if accum&0xFE000000 != 0 {
			return 0, fmt.Errorf("UIntBase128: overflow: %w", ErrInvalidEncoding)
		}
		accum = accum<<7 | uint32(dataByte&0x7F)
		if dataByte&0x80 == 0 {
			return accum, nil
		}
	}
	return 0, fmt.Errorf("UIntBase128: exceeds 5 bytes: %w", ErrInvalidEncoding)
}

// WriteUIntBase128 writes a number in the shortest UIntBase128 encoding.
func WriteUIntBase128(w *BinaryWriter, accum uint32) {
	if accum == 0 {
		w.WriteByte(0)
		return
	}
	written := false
	for i := 4; 0 <= i; i-- {
		if v := accum >> (i * 7) & 0x7F; written || v != 0 {
			if i != 0 {
				v |= 0x80
			}
			w.WriteByte(byte(v))
			written = true
		}
	}
}

// Read255UInt16 reads a 255UInt16 encoded number.
func Read255UInt16(r *BinaryReader) (uint16, error) {
	var v uint16
	switch code := r.ReadByte(); code {
	case 253:
		v = r.ReadUint16()
	case 254:
		v = uint16(r.ReadByte()) + 253*2
	case 255:
		v = uint16(r.ReadByte()) + 253
	default:
		v = uint16(code)
	}
	if r.EOF() {
		return 0, fmt.Errorf("255UInt16: %w", io.ErrUnexpectedEOF)
	}
	return v, nil
}

// Write255UInt16 writes a number in the shortest 255UInt16 encoding.
func Write255UInt16(w *BinaryWriter, v uint16) {
	if v < 253 {
		w.WriteByte(byte(v))
	} else if v < 253+256 {
		w.WriteByte(255)
		w.WriteByte(byte(v - 253))
	} else if v < 253*2+256 {
		w.WriteByte(254)
		w.WriteByte(byte(v - 253*2))
	} else {
		w.WriteByte(253)
		w.WriteUint16(v)
	}
}
