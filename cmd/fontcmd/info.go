package main

import (
	"fmt"
	"math"
	"sort"

	"github.com/fontkit/font"
)

type Info struct {
	Index int    `short:"i" desc:"Font index for font collections"`
	Input string `index:"0" desc:"Input file"`
}

func (cmd *Info) Run() error {
	b, mimetype, _, err := readFont(cmd.Input)
	if err != nil {
		return err
	}

	r := font.NewBinaryReader(b)
	sfntVersion := r.ReadString(4)
	if sfntVersion == "ttcf" {
		n, err := font.NumFonts(b)
		if err != nil {
			return err
		} else if cmd.Index < 0 || n <= cmd.Index {
			return fmt.Errorf("bad font index %d, collection has %d fonts", cmd.Index, n)
		}
		r.Seek(12 + 4*uint32(cmd.Index))
		r.Seek(r.ReadUint32())
		sfntVersion = r.ReadString(4)
	}
	numTables := int(r.ReadUint16())
	_ = r.ReadBytes(6)

	version := "TrueType"
	if sfntVersion == "OTTO" {
		version = "CFF"
	}
	fmt.Printf("File: %s (%s)\n\n", cmd.Input, mimetype)
	fmt.Printf("sfntVersion: 0x%08X (%s)\n", sfntVersion, version)
	fmt.Printf("\nTable directory:\n")

	nLen := int(math.Log10(float64(len(b))) + 1)
	for i := 0; i < numTables; i++ {
		tag := r.ReadString(4)
		checksum := r.ReadUint32()
		offset := r.ReadUint32()
		length := r.ReadUint32()
		fmt.Printf("  %2d  %s  checksum=0x%08X  offset=%*d  length=%*d\n", i, tag, checksum, nLen, offset, nLen, length)
	}
	if r.EOF() {
		return font.ErrInvalidFontData
	}

	sfnt, err := font.ParseSFNT(b, cmd.Index)
	if err != nil {
		return err
	}
	if sfnt.Name != nil {
		family, _ := sfnt.Name.Find(font.NameFontFamily)
		subfamily, _ := sfnt.Name.Find(font.NameFontSubfamily)
		fmt.Printf("\nName: %s %s\n", family, subfamily)
	}
	if sfnt.OS2 != nil {
		fmt.Printf("Weight class: %d\nWidth class: %d\n", sfnt.OS2.UsWeightClass, sfnt.OS2.UsWidthClass)
	}
	if !sfnt.IsVariable() {
		return nil
	}

	instancer, err := font.NewInstancer(sfnt, font.DefaultDeltaOptions())
	if err != nil {
		return err
	}
	axes := instancer.Axes()
	tags := make([]string, 0, len(axes))
	for tag := range axes {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	fmt.Printf("\nAxes:\n")
	for _, tag := range tags {
		axis := axes[tag]
		var name string
		if sfnt.Name != nil {
			name, _ = sfnt.Name.Find(axis.NameID)
		}
		fmt.Printf("  %s  min=%g  default=%g  max=%g  %s\n", tag, axis.Min, axis.Default, axis.Max, name)
	}
	fmt.Printf("\nNamed instances:\n")
	for _, instance := range instancer.NamedInstances() {
		fmt.Printf("  %-20s %v\n", instance.Name, instance.Coordinates)
	}
	return nil
}
