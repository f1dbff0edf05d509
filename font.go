package font

import (
	"encoding/binary"
	"fmt"
)

// MediaType returns the media type (MIME) for a given font.
func MediaType(b []byte) (string, error) {
	if len(b) < 4 {
		return "", fmt.Errorf("empty font file")
	}

	tag := string(b[:4])
	switch tag {
	case "wOF2":
		return "font/woff2", nil
	case "wOFF":
		return "font/woff", nil
	case "true", "\x00\x01\x00\x00":
		return "font/truetype", nil
	case "OTTO":
		return "font/opentype", nil
	case "ttcf":
		return collectionMediaType(b), nil
	}
	return "", fmt.Errorf("unrecognized font file format")
}

// collectionMediaType returns font/opentype if any member has CFF outlines.
func collectionMediaType(b []byte) string {
	n, err := NumFonts(b)
	if err != nil {
		return "font/truetype"
	}
	for i := 0; i < n; i++ {
		pos := 12 + 4*i
		offset := binary.BigEndian.Uint32(b[pos:])
		if uint32(len(b))-4 < offset {
			break
		} else if string(b[offset:offset+4]) == "OTTO" {
			return "font/opentype"
		}
	}
	return "font/truetype"
}

// Extension returns the file extension for a given font. An empty string is returned when the font format is unknown.
func Extension(b []byte) string {
	mediatype, err := MediaType(b)
	if err != nil {
		return ""
	}
	collection := 4 <= len(b) && string(b[:4]) == "ttcf"
	switch mediatype {
	case "font/woff2":
		return ".woff2"
	case "font/woff":
		return ".woff"
	case "font/truetype":
		if collection {
			return ".ttc"
		}
		return ".ttf"
	case "font/opentype":
		if collection {
			return ".otc"
		}
		return ".otf"
	}
	return ""
}

// ToSFNT takes a byte slice and transforms it into an SFNT byte slice. That is, given TTF/OTF/TTC/OTC/WOFF2 it will return a TTF/OTF/TTC/OTC font.
func ToSFNT(b []byte) ([]byte, error) {
	tag, err := MediaType(b)
	if err != nil {
		return nil, err
	}
	switch tag {
	case "font/truetype", "font/opentype":
		return b, nil
	case "font/woff2":
		return ParseWOFF2(b)
	}
	return nil, fmt.Errorf("unsupported font format %s", tag)
}
