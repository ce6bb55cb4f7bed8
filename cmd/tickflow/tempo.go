package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/chazu/tickflow/tempo"
)

// runTempo processes the `tickflow tempo` subcommand.
// Usage:
//
//	tickflow tempo intro.txt                 # intro.tempo (binary points)
//	tickflow tempo -d -id 10001 intro.tempo  # back to text on stdout
func runTempo(e *env, args []string) error {
	fs := flag.NewFlagSet("tempo", flag.ContinueOnError)
	decode := fs.Bool("d", false, "Decode binary points to text")
	idFlag := fs.String("id", "0", "Tempo id (hex) when decoding")
	out := fs.String("o", "", "Output file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("tempo: expected one input file")
	}
	input := fs.Arg(0)

	f, err := os.Open(input)
	if err != nil {
		return err
	}
	defer f.Close()

	if *decode {
		id, err := strconv.ParseUint(*idFlag, 16, 32)
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", *idFlag, err)
		}
		tp, err := tempo.ReadBinary(f, uint32(id))
		if err != nil {
			return fmt.Errorf("%s: %w", input, err)
		}
		if *out != "" {
			return writeFile(*out, []byte(tp.Text()))
		}
		_, err = fmt.Fprint(e.stdout, tp.Text())
		return err
	}

	tp, err := tempo.ParseText(f)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	data, err := tp.MarshalBinary()
	if err != nil {
		return err
	}
	path := *out
	if path == "" {
		path = filepath.Join(filepath.Dir(input), stem(input)+".tempo")
	}
	if err := writeFile(path, data); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "%s -> %s (id %#x, %d points)\n", input, path, tp.ID, len(tp.Points))
	return nil
}
