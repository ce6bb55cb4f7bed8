package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/tickflow/btks"
	"github.com/chazu/tickflow/catalog"
	"github.com/chazu/tickflow/compiler"
	"github.com/chazu/tickflow/pkg/bytecode"
)

// runCompile processes the `tickflow compile` subcommand.
// Usage:
//
//	tickflow compile a.tf b.tf          # out/a.bin, out/b.bin
//	tickflow compile -btks -o build a.tf
func runCompile(e *env, args []string) error {
	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	out := fs.String("o", "", "Output directory")
	container := fs.Bool("btks", false, "Also write a BTKS container per source")
	jobs := fs.Int("j", runtime.NumCPU(), "Files compiled in parallel")
	var tempoFiles stringList
	fs.Var(&tempoFiles, "tempo", "Tempo text file added to containers (repeatable)")
	catalogPath := fs.String("catalog", "", "Record outputs in this catalog")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("compile: no source files")
	}

	dir := e.outputDir(*out, "out")
	tempos, err := e.tempos(tempoFiles)
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

	// Each source is independent; outputs are collected and reported in
	// argument order.
	results := make([]string, fs.NArg())
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(max(*jobs, 1))
	for i, src := range fs.Args() {
		i, src := i, src
		g.Go(func() error {
			bin, err := compileFile(src)
			if err != nil {
				return fmt.Errorf("%s: %w", src, err)
			}
			data, err := bin.MarshalBinary()
			if err != nil {
				return fmt.Errorf("%s: %w", src, err)
			}
			// Convert before writing anything so a unit that cannot be
			// packaged leaves neither file behind.
			var c *btks.Container
			if *container {
				if c, err = btks.FromBinary(bin); err != nil {
					return fmt.Errorf("%s: %w", src, err)
				}
				c.Tempos = tempos
			}

			binPath := filepath.Join(dir, stem(src)+".bin")
			if err := writeFile(binPath, data); err != nil {
				return err
			}
			line := fmt.Sprintf("%s -> %s (%d bytes)", src, binPath, len(data))
			var packed []byte
			btkPath := filepath.Join(dir, stem(src)+".btk")
			if c != nil {
				if packed, err = writeContainer(btkPath, c); err != nil {
					os.Remove(binPath)
					return err
				}
				line += fmt.Sprintf(", %s (%d bytes)", btkPath, len(packed))
			}

			if err := record(cat, catalog.KindBinary, src, int64(bin.Index), binPath, data); err != nil {
				return err
			}
			if c != nil {
				if err := record(cat, catalog.KindContainer, src, int64(bin.Index), btkPath, packed); err != nil {
					return err
				}
			}

			mu.Lock()
			results[i] = line
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, line := range results {
		fmt.Fprintln(e.stdout, line)
	}
	return nil
}

func compileFile(path string) (*bytecode.Binary, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	prog, err := compiler.Parse(string(src))
	if err != nil {
		return nil, err
	}
	return compiler.Assemble(prog)
}
