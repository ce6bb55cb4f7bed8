package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chazu/tickflow/btks"
	"github.com/chazu/tickflow/catalog"
	"github.com/chazu/tickflow/pkg/bytecode"
)

// runBTKS processes the `tickflow btks` subcommand.
// Usage:
//
//	tickflow btks [-o out.btk] [-tempo file]... input.bin
func runBTKS(e *env, args []string) error {
	fs := flag.NewFlagSet("btks", flag.ContinueOnError)
	out := fs.String("o", "", "Output file (default: input with .btk extension)")
	var tempoFiles stringList
	fs.Var(&tempoFiles, "tempo", "Tempo text file to include (repeatable)")
	catalogPath := fs.String("catalog", "", "Record the output in this catalog")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("btks: expected one input file")
	}
	input := fs.Arg(0)

	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	bin, err := bytecode.ReadBinary(data)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	c, err := btks.FromBinary(bin)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	if c.Tempos, err = e.tempos(tempoFiles); err != nil {
		return err
	}

	path := *out
	if path == "" {
		path = filepath.Join(filepath.Dir(input), stem(input)+".btk")
	}
	packed, err := writeContainer(path, c)
	if err != nil {
		return err
	}

	cat, err := e.openCatalog(*catalogPath)
	if err != nil {
		return err
	}
	if cat != nil {
		defer cat.Close()
		if err := record(cat, catalog.KindContainer, input, int64(bin.Index), path, packed); err != nil {
			return err
		}
	}
	fmt.Fprintf(e.stdout, "%s -> %s (%d bytes, %d pointers, %d tempos)\n",
		input, path, len(packed), len(c.Pointers), len(c.Tempos))
	return nil
}
