package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fontkit/font"
)

type WOFF2 struct {
	Quiet    bool   `short:"q" desc:"Suppress output except for errors."`
	Force    bool   `short:"f" desc:"Force overwriting existing files."`
	Index    int    `short:"i" desc:"Index into font collection (used with TTC or OTC)."`
	Metadata string `short:"m" desc:"Extended metadata XML file to embed."`
	Encoding string `short:"e" desc:"Output encoding, either empty of base64."`
	Output   string `short:"o" desc:"Output WOFF2 file, defaults to the input file with the .woff2 extension."`
	Input    string `index:"0" desc:"Input font file."`
}

func (cmd *WOFF2) Run() error {
	b, _, rLen, err := readFont(cmd.Input)
	if err != nil {
		return fmt.Errorf("%v: %v", cmd.Input, err)
	}
	sfnt, err := font.ParseSFNT(b, cmd.Index)
	if err != nil {
		return fmt.Errorf("%v: %v", cmd.Input, err)
	}

	var metadata []byte
	if cmd.Metadata != "" {
		if metadata, err = readFile(cmd.Metadata); err != nil {
			return err
		}
	}
	woff2, err := sfnt.WriteWOFF2WithMetadata(metadata, nil)
	if err != nil {
		return err
	}

	output := cmd.Output
	if output == "" {
		if cmd.Input == "-" {
			output = "-"
		} else {
			output = strings.TrimSuffix(cmd.Input, filepath.Ext(cmd.Input)) + ".woff2"
		}
	}
	if err := writeFile(output, cmd.Encoding, cmd.Force, woff2); err != nil {
		return err
	}
	if !cmd.Quiet && output != "-" {
		printRatio(output, rLen, len(woff2))
	}
	return nil
}

type SFNT struct {
	Quiet    bool   `short:"q" desc:"Suppress output except for errors."`
	Verbose  bool   `short:"v" desc:"Print diagnostics."`
	Force    bool   `short:"f" desc:"Force overwriting existing files."`
	Metadata string `short:"m" desc:"Write the extended metadata XML to this file."`
	Output   string `short:"o" desc:"Output TTF/OTF file, defaults to the input file with the extension of its outline format."`
	Input    string `index:"0" desc:"Input WOFF2 file."`
}

func (cmd *SFNT) Run() error {
	b, err := readFile(cmd.Input)
	if err != nil {
		return err
	}
	woff2, err := font.ParseWOFF2File(b, font.WOFF2Options{Logger: newLogger(cmd.Verbose)})
	if err != nil {
		return fmt.Errorf("%v: %v", cmd.Input, err)
	}

	output := cmd.Output
	if output == "" {
		if cmd.Input == "-" {
			output = "-"
		} else {
			output = strings.TrimSuffix(cmd.Input, filepath.Ext(cmd.Input)) + font.Extension(woff2.SFNT)
		}
	}
	if err := writeFile(output, "", cmd.Force, woff2.SFNT); err != nil {
		return err
	}
	if cmd.Metadata != "" {
		if woff2.Metadata == nil {
			Warning.Printf("%s has no extended metadata", cmd.Input)
		} else if err := writeFile(cmd.Metadata, "", cmd.Force, woff2.Metadata); err != nil {
			return err
		}
	}
	if !cmd.Quiet && output != "-" {
		printRatio(output, len(b), len(woff2.SFNT))
	}
	return nil
}
