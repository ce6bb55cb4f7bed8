package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"

	"github.com/chazu/tickflow/btks"
	"github.com/chazu/tickflow/compiler"
	"github.com/chazu/tickflow/pkg/bytecode"
)

// runDump processes the `tickflow dump` subcommand.
// Usage:
//
//	tickflow dump input.bin            # reassemblable source on stdout
//	tickflow dump -listing input.bin   # offsets, words and pointer kinds
//	tickflow dump -o out.tf input.bin
func runDump(e *env, args []string) error {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	out := fs.String("o", "", "Output file (default: stdout)")
	listing := fs.Bool("listing", false, "Print a raw listing instead of source")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("dump: expected one input file")
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

	var text string
	if *listing {
		text, err = bin.Listing(stem(input))
	} else {
		text, err = compiler.Disassemble(bin)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}

	if *out != "" {
		return writeFile(*out, []byte(text))
	}
	_, err = fmt.Fprint(e.stdout, text)
	return err
}

// runInfo processes the `tickflow info` subcommand.
func runInfo(e *env, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("info: expected at least one file")
	}
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if bytes.HasPrefix(data, btks.Magic[:]) {
			err = describeContainer(e, path, data)
		} else {
			err = describeBinary(e, path, data)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func describeContainer(e *env, path string, data []byte) error {
	h, err := btks.ReadHeader(data)
	if err != nil {
		return err
	}
	c, err := btks.Parse(data)
	if err != nil {
		return err
	}
	var strs, code int
	for _, p := range c.Pointers {
		if p.Kind == bytecode.PointerString {
			strs++
		} else {
			code++
		}
	}
	fmt.Fprintf(e.stdout, "%s: BTKS revision %d, %d bytes, %d sections\n", path, h.Revision, h.TotalSize, h.SectionCount)
	fmt.Fprintf(e.stdout, "  start   %#x\n", c.Start)
	fmt.Fprintf(e.stdout, "  code    %d bytes\n", len(c.Code))
	fmt.Fprintf(e.stdout, "  ptro    %d code, %d string\n", code, strs)
	fmt.Fprintf(e.stdout, "  strings %d bytes\n", len(c.Strings))
	for _, tp := range c.Tempos {
		kind := "sequenced"
		if tp.Streamed() {
			kind = "streamed"
		}
		fmt.Fprintf(e.stdout, "  tempo   %#x (%s, %d points)\n", tp.ID, kind, len(tp.Points))
	}
	return nil
}

func describeBinary(e *env, path string, data []byte) error {
	bin, err := bytecode.ReadBinary(data)
	if err != nil {
		return err
	}
	instrs, err := bin.Decode()
	if err != nil {
		return err
	}
	_, ptrs, err := bin.Relocatable()
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "%s: linked binary, index %#x\n", path, bin.Index)
	fmt.Fprintf(e.stdout, "  start   %#x\n", bin.Start)
	fmt.Fprintf(e.stdout, "  assets  %#x\n", bin.Assets)
	fmt.Fprintf(e.stdout, "  code    %d instructions, %d pointers\n", len(instrs), len(ptrs))
	fmt.Fprintf(e.stdout, "  strings %d bytes\n", len(bin.Strings))
	return nil
}
