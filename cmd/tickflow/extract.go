package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/chazu/tickflow/btks"
	"github.com/chazu/tickflow/catalog"
	"github.com/chazu/tickflow/extract"
)

// runExtract processes the `tickflow extract` subcommand.
// Usage:
//
//	tickflow extract [-variant saltwater-us] [-base 0x...] [-legacy] [-o dir] image.bin
//
// Every modded unit becomes <dir>/<name>.btk; tempos found in the image are
// written as <dir>/tempo/<id>.txt.
func runExtract(e *env, args []string) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	variant := fs.String("variant", "", "Image variant (rhmpatch, saltwater-us, saltwater-eu, saltwater-jp, saltwater-kr)")
	baseFlag := fs.String("base", "", "Override the image base address")
	legacy := fs.Bool("legacy", false, "Image has no gate table")
	out := fs.String("o", "", "Output directory")
	bin := fs.Bool("bin", false, "Also write linked .bin files")
	report := fs.String("report", "", "Write a CBOR extraction report")
	var tempoFiles stringList
	fs.Var(&tempoFiles, "tempo", "Tempo text file merged into every container (repeatable)")
	catalogPath := fs.String("catalog", "", "Record outputs in this catalog")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("extract: expected one image file")
	}
	input := fs.Arg(0)

	opts, err := e.extractOptions(*variant, *baseFlag, *legacy)
	if err != nil {
		return err
	}
	writeBin := *bin || (e.manifest != nil && e.manifest.Output.Bin)
	reportPath := *report
	if reportPath == "" && e.manifest != nil {
		reportPath = e.manifest.ReportPath()
	}
	dir := e.outputDir(*out, "out")

	f, err := os.Open(input)
	if err != nil {
		return err
	}
	defer f.Close()
	img, err := extract.ReadImage(f, opts)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}

	extra, err := e.tempos(tempoFiles)
	if err != nil {
		return err
	}
	cat, err := e.openCatalog(*catalogPath)
	if err != nil {
		return err
	}
	if cat != nil {
		defer cat.Close()
	}

	for _, u := range img.Units {
		name := e.unitName(u)
		c, err := btks.FromFunctionSet(u.Set)
		if err != nil {
			return fmt.Errorf("unit %s: %w", u.Name(), err)
		}
		c.Tempos = extra
		path := filepath.Join(dir, name+".btk")
		packed, err := writeContainer(path, c)
		if err != nil {
			return err
		}
		if err := record(cat, catalog.KindContainer, input, int64(u.Index), path, packed); err != nil {
			return err
		}
		if writeBin {
			linked, err := u.Set.Binary(u.Index)
			if err != nil {
				return fmt.Errorf("unit %s: %w", u.Name(), err)
			}
			data, err := linked.MarshalBinary()
			if err != nil {
				return err
			}
			binPath := filepath.Join(dir, name+".bin")
			if err := writeFile(binPath, data); err != nil {
				return err
			}
			if err := record(cat, catalog.KindBinary, input, int64(u.Index), binPath, data); err != nil {
				return err
			}
		}
		note := ""
		if n := len(u.Set.External); n > 0 {
			note = fmt.Sprintf(", %d external calls", n)
		}
		if u.Set.Placeholders > 0 {
			note += fmt.Sprintf(", %d missing strings", u.Set.Placeholders)
		}
		fmt.Fprintf(e.stdout, "%s -> %s (%d functions, %d bytes%s)\n", u.Name(), path, len(u.Set.Functions), len(packed), note)
	}

	for _, tp := range img.Tempos {
		path := filepath.Join(dir, "tempo", fmt.Sprintf("%x.txt", tp.ID))
		if err := writeFile(path, []byte(tp.Text())); err != nil {
			return err
		}
	}

	if reportPath != "" {
		data, err := extract.MarshalReport(img.Report(e.unitName))
		if err != nil {
			return err
		}
		if err := writeFile(reportPath, data); err != nil {
			return err
		}
		if err := record(cat, catalog.KindReport, input, catalog.NoIndex, reportPath, data); err != nil {
			return err
		}
	}
	fmt.Fprintf(e.stdout, "%d units, %d tempos\n", len(img.Units), len(img.Tempos))
	return nil
}

// extractOptions merges command-line flags over the manifest's [image].
func (e *env) extractOptions(variant, base string, legacy bool) (extract.Options, error) {
	var opts extract.Options
	if e.manifest != nil {
		var err error
		if opts, err = e.manifest.ExtractOptions(); err != nil {
			return opts, err
		}
	}
	if variant != "" {
		v, err := extract.ParseVariant(variant)
		if err != nil {
			return opts, err
		}
		opts.Variant = v
	}
	if base != "" {
		b, err := strconv.ParseUint(base, 0, 32)
		if err != nil {
			return opts, fmt.Errorf("invalid base %q: %w", base, err)
		}
		opts.Base = uint32(b)
	}
	if legacy {
		opts.Legacy = true
	}
	return opts, nil
}

func (e *env) unitName(u *extract.Unit) string {
	if e.manifest != nil {
		return e.manifest.UnitName(u)
	}
	return u.Name()
}
