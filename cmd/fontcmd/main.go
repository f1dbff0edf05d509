package main

import (
	"log"
	"os"

	"github.com/tdewolff/argp"
)

var (
	Error   *log.Logger
	Warning *log.Logger
)

func main() {
	Error = log.New(os.Stderr, "ERROR: ", 0)
	Warning = log.New(os.Stderr, "WARNING: ", 0)

	cmd := argp.New("Command line toolkit for variable fonts, WOFF2, and font collections")
	cmd.AddCmd(&Info{}, "info", "Get font info")
	cmd.AddCmd(&Instance{}, "instance", "Create a static instance of a variable font")
	cmd.AddCmd(&WOFF2{}, "woff2", "Compress fonts to WOFF2")
	cmd.AddCmd(&SFNT{}, "sfnt", "Decompress WOFF2 fonts to TTF/OTF")
	cmd.AddCmd(&Pack{}, "pack", "Pack fonts into a TTC/OTC collection")
	cmd.AddCmd(&Analyze{}, "analyze", "Report table sharing between fonts")
	cmd.Parse()
}
