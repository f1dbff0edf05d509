package main

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fontkit/font"
)

type Pack struct {
	Quiet    bool     `short:"q" desc:"Suppress output except for errors."`
	Verbose  bool     `short:"v" desc:"Print diagnostics."`
	Force    bool     `short:"f" desc:"Force overwriting existing files."`
	Format   string   `desc:"Collection format, either TTC or OTC. Defaults to the output file extension."`
	Encoding string   `short:"e" desc:"Output encoding, either empty of base64."`
	Output   string   `short:"o" desc:"Output collection file (TTC/OTC)."`
	Inputs   []string `index:"*" desc:"Input font files, collections add all of their fonts."`
}

// readFonts reads all fonts of the input files and returns the total input size.
func readFonts(inputs []string) ([]font.TableProvider, int, error) {
	if len(inputs) == 0 {
		return nil, 0, fmt.Errorf("input file names not set")
	}
	fonts := []font.TableProvider{}
	rLen := 0
	for _, input := range inputs {
		b, _, n, err := readFont(input)
		if err != nil {
			return nil, 0, fmt.Errorf("%v: %v", input, err)
		}
		sfnts, err := font.ParseCollection(b)
		if err != nil {
			return nil, 0, fmt.Errorf("%v: %v", input, err)
		}
		for _, sfnt := range sfnts {
			fonts = append(fonts, sfnt)
		}
		rLen += n
	}
	return fonts, rLen, nil
}

func (cmd *Pack) Run() error {
	if cmd.Quiet {
		Warning = log.New(io.Discard, "", 0)
	}

	if cmd.Output == "" {
		return fmt.Errorf("output file name not set")
	}
	format := cmd.Format
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(cmd.Output), ".")
	}
	collectionFormat, err := font.ParseCollectionFormat(format)
	if err != nil {
		return err
	}

	builder := font.NewCollectionBuilder(font.CollectionOptions{
		Format: collectionFormat,
		Logger: newLogger(cmd.Verbose),
	})
	fonts, rLen, err := readFonts(cmd.Inputs)
	if err != nil {
		return err
	}
	for _, f := range fonts {
		builder.Add(f)
	}
	result, err := builder.Build()
	if err != nil {
		return err
	}
	if err := writeFile(cmd.Output, cmd.Encoding, cmd.Force, result.Data); err != nil {
		return err
	}
	if !cmd.Quiet && cmd.Output != "-" {
		stats := result.Statistics
		fmt.Printf("%v: %d fonts, %d of %d tables shared, %v saved\n", filepath.Base(cmd.Output), builder.Len(), stats.TotalTables-stats.CanonicalCount, stats.TotalTables, formatBytes(uint64(result.Analysis.SpaceSavings)))
		printRatio(cmd.Output, rLen, len(result.Data))
	}
	return nil
}

type Analyze struct {
	Tables bool     `short:"t" desc:"List every canonical table."`
	Inputs []string `index:"*" desc:"Input font files, collections add all of their fonts."`
}

func (cmd *Analyze) Run() error {
	fonts, _, err := readFonts(cmd.Inputs)
	if err != nil {
		return err
	}

	analyzer := font.NewTableAnalyzer(fonts, nil)
	analysis := analyzer.Analyze()
	stats := analyzer.Statistics()
	fmt.Printf("Fonts: %d\n", analysis.TotalFonts)
	fmt.Printf("Tables: %d (%d canonical)\n", stats.TotalTables, stats.CanonicalCount)
	fmt.Printf("Shared tables: %d\n", stats.SharedTables)
	fmt.Printf("Unique tables: %d\n", stats.UniqueTables)
	fmt.Printf("Space savings: %v (%.1f%% of table data is shared)\n", formatBytes(uint64(analysis.SpaceSavings)), analysis.SharingPercentage)

	if cmd.Tables {
		canonical := analyzer.CanonicalTables()
		tags := make([]string, 0, len(canonical))
		for tag := range canonical {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		fmt.Printf("\nCanonical tables:\n")
		for _, tag := range tags {
			for _, table := range canonical[tag] {
				fmt.Printf("  %-16s  size=%-8d  fonts=%v\n", table.ID, table.Size(), table.Fonts)
			}
		}
	}
	return nil
}
