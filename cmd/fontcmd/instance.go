package main

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fontkit/font"
)

type Instance struct {
	Quiet    bool     `short:"q" desc:"Suppress output except for errors."`
	Verbose  bool     `short:"v" desc:"Print diagnostics."`
	Force    bool     `short:"f" desc:"Force overwriting existing files."`
	Axes     []string `short:"a" name:"axis" desc:"Axis coordinate in user space, eg. wght=700. Missing axes are at their default."`
	Named    string   `short:"n" desc:"Named instance, eg. Bold."`
	Clamp    bool     `short:"c" desc:"Clamp coordinates outside the axis range instead of failing."`
	Metrics  bool     `short:"m" desc:"Only apply metric variations, keep the default glyph outlines."`
	Index    int      `short:"i" desc:"Index into font collection (used with TTC or OTC)."`
	Type     string   `short:"t" desc:"Explicitly set output mimetype, eg. font/woff2."`
	Encoding string   `short:"e" desc:"Output encoding, either empty of base64."`
	Outputs  []string `short:"o" desc:"Output font file (only TTF/WOFF2 are supported). Can output multiple file."`
	Input    string   `index:"0" desc:"Input font file."`
}

// parseAxes parses tag=value pairs.
func parseAxes(axes []string) (map[string]float64, error) {
	user := map[string]float64{}
	for _, axis := range axes {
		eq := strings.IndexByte(axis, '=')
		if eq == -1 {
			return nil, fmt.Errorf("invalid axis coordinate %q: expected tag=value", axis)
		}
		tag := axis[:eq]
		if len(tag) != 4 {
			return nil, fmt.Errorf("invalid axis tag %q", tag)
		} else if _, ok := user[tag]; ok {
			return nil, fmt.Errorf("axis %s given more than once", tag)
		}
		v, err := strconv.ParseFloat(axis[eq+1:], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid axis coordinate: %v", err)
		}
		user[tag] = v
	}
	return user, nil
}

func (cmd *Instance) Run() error {
	if cmd.Quiet {
		Warning = log.New(io.Discard, "", 0)
	}

	if len(cmd.Outputs) == 0 {
		return fmt.Errorf("output file names not set")
	} else if cmd.Named != "" && len(cmd.Axes) != 0 {
		return fmt.Errorf("named instance and axis coordinates are mutually exclusive")
	}
	user, err := parseAxes(cmd.Axes)
	if err != nil {
		return err
	}

	b, _, rLen, err := readFont(cmd.Input)
	if err != nil {
		return fmt.Errorf("%v: %v", cmd.Input, err)
	}
	sfnt, err := font.ParseSFNT(b, cmd.Index)
	if err != nil {
		return fmt.Errorf("%v: %v", cmd.Input, err)
	}

	logger := newLogger(cmd.Verbose)
	deltaOptions := font.DefaultDeltaOptions()
	deltaOptions.Logger = logger
	instancer, err := font.NewInstancer(sfnt, deltaOptions)
	if err != nil {
		return fmt.Errorf("%v: %v", cmd.Input, err)
	}

	options := font.DefaultInstanceOptions()
	options.Clamp = cmd.Clamp
	options.Outlines = !cmd.Metrics
	options.Static.Modified = time.Now().UTC()
	options.Static.Logger = logger

	var instance []byte
	if cmd.Named != "" {
		if instance, err = instancer.InstanceNamed(cmd.Named, options); err != nil {
			names := []string{}
			for _, named := range instancer.NamedInstances() {
				names = append(names, named.Name)
			}
			Warning.Printf("available named instances: %s", strings.Join(names, ", "))
			return err
		}
	} else if instance, err = instancer.Instance(user, options); err != nil {
		return err
	}

	static, err := font.ParseSFNT(instance, 0)
	if err != nil {
		return err
	}
	for _, output := range cmd.Outputs {
		mimetype := extMimetype[filepath.Ext(output)]
		if cmd.Type != "" {
			mimetype = cmd.Type
		}
		wLen, err := writeFont(output, mimetype, cmd.Encoding, cmd.Force, static)
		if err != nil {
			return err
		}
		if !cmd.Quiet && output != "-" {
			printRatio(output, rLen, wLen)
		}
	}
	return nil
}
