package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/fontkit/font"
	"github.com/tdewolff/prompt"
)

var extMimetype = map[string]string{
	".ttf":   "font/truetype",
	".ttc":   "font/truetype",
	".otf":   "font/opentype",
	".otc":   "font/opentype",
	".woff2": "font/woff2",
}

// logger prints library diagnostics to stderr.
type logger struct {
	*log.Logger
	debug bool
}

func newLogger(verbose bool) font.Logger {
	return &logger{log.New(os.Stderr, "", 0), verbose}
}

func (l *logger) Debugf(format string, args ...interface{}) {
	if l.debug {
		l.Printf("DEBUG: "+format, args...)
	}
}

func (l *logger) Infof(format string, args ...interface{}) {
	if l.debug {
		l.Printf("INFO: "+format, args...)
	}
}

func (l *logger) Errorf(format string, args ...interface{}) {
	l.Printf("ERROR: "+format, args...)
}

func formatBytes(size uint64) string {
	if size < 10 {
		return fmt.Sprintf("%d B", size)
	}

	units := []string{"B", "kB", "MB", "GB", "TB", "PB", "EB"}
	scale := int(math.Floor((math.Log10(float64(size)) + math.Log10(2.0)) / 3.0))
	value := float64(size) / math.Pow10(scale*3.0)
	format := "%.0f %s"
	if value < 10.0 {
		format = "%.1f %s"
	}
	return fmt.Sprintf(format, value, units[scale])
}

func printRatio(output string, rLen, wLen int) {
	ratio := 1.0
	if 0 < rLen {
		ratio = float64(wLen) / float64(rLen)
	}
	fmt.Printf("%v:  %v => %v (%.1f%%)\n", filepath.Base(output), formatBytes(uint64(rLen)), formatBytes(uint64(wLen)), ratio*100.0)
}

func readFile(filename string) ([]byte, error) {
	var err error
	var r *os.File
	if filename == "-" {
		r = os.Stdin
	} else if r, err = os.Open(filename); err != nil {
		return nil, err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		r.Close()
		return nil, err
	} else if err := r.Close(); err != nil {
		return nil, err
	}
	return b, nil
}

// readFont reads a TTF/OTF/TTC/OTC/WOFF2 file and returns the SFNT data, the original mimetype, and the file size.
func readFont(filename string) ([]byte, string, int, error) {
	b, err := readFile(filename)
	if err != nil {
		return nil, "", 0, err
	}

	n := len(b)
	mimetype, err := font.MediaType(b)
	if err != nil {
		return nil, "", 0, err
	} else if b, err = font.ToSFNT(b); err != nil {
		return nil, "", 0, err
	}
	return b, mimetype, n, nil
}

func writeFile(filename, encoding string, force bool, b []byte) error {
	if encoding == "base64" {
		dst := make([]byte, base64.StdEncoding.EncodedLen(len(b)))
		base64.StdEncoding.Encode(dst, b)
		b = dst
	} else if encoding != "" {
		return fmt.Errorf("unsupported encoding: %v", encoding)
	}

	var err error
	var w io.WriteCloser
	if filename == "-" {
		w = os.Stdout
	} else {
		if _, err := os.Stat(filename); err == nil {
			if !force && !prompt.YesNo(fmt.Sprintf("%s already exists, overwrite?", filename), false) {
				return fmt.Errorf("file already exists")
			}
		}
		if w, err = os.Create(filename); err != nil {
			return err
		}
	}

	if _, err := w.Write(b); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// writeFont writes the font in the format of the mimetype and returns the number of bytes before encoding.
func writeFont(filename, mimetype, encoding string, force bool, sfnt *font.SFNT) (int, error) {
	var b []byte
	var err error
	switch mimetype {
	case "font/truetype":
		if sfnt.IsCFF {
			return 0, fmt.Errorf("cannot convert CFF to TrueType glyph outlines")
		}
		b = sfnt.Write()
	case "font/opentype":
		b = sfnt.Write()
	case "font/woff2":
		if b, err = sfnt.WriteWOFF2(); err != nil {
			return 0, err
		}
	default:
		if mimetype == "" {
			return 0, fmt.Errorf("mimetype not set")
		}
		return 0, fmt.Errorf("unsupported output file type: %v", mimetype)
	}
	if err := writeFile(filename, encoding, force, b); err != nil {
		return 0, err
	}
	return len(b), nil
}
