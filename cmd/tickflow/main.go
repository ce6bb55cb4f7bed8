// Tickflow CLI - assembles, extracts and packages tickflow bytecode
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/tickflow/manifest"

	_ "github.com/tliron/commonlog/simple"
)

// env is shared by every subcommand.
type env struct {
	manifest *manifest.Manifest // nil when no tickflow.toml was found
	stdout   io.Writer
}

type command struct {
	name  string
	usage string
	run   func(e *env, args []string) error
}

var commands = []command{
	{"compile", "assemble .tf sources into linked binaries", runCompile},
	{"btks", "package a linked binary as a BTKS container", runBTKS},
	{"extract", "extract every modded unit from a patched image", runExtract},
	{"dump", "disassemble a linked binary", runDump},
	{"info", "describe a binary or container", runInfo},
	{"tempo", "convert tempo files between text and binary", runTempo},
	{"catalog", "list recorded artifacts", runCatalog},
}

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	debug := flag.Bool("debug", false, "Debug logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tickflow [options] <command> [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		for _, c := range commands {
			fmt.Fprintf(os.Stderr, "  %-8s %s\n", c.name, c.usage)
		}
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tickflow compile -btks src/*.tf     # Assemble and package\n")
		fmt.Fprintf(os.Stderr, "  tickflow -v extract rhm.bin          # Extract with tickflow.toml settings\n")
		fmt.Fprintf(os.Stderr, "  tickflow dump out/002.bin            # Disassemble\n")
	}
	flag.Parse()

	verbosity := 1
	if *verbose {
		verbosity = 3
	}
	if *debug {
		verbosity = 4
	}
	commonlog.Configure(verbosity, nil)

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading manifest: %v\n", err)
		os.Exit(1)
	}
	e := &env{manifest: m, stdout: os.Stdout}

	name := flag.Arg(0)
	for _, c := range commands {
		if c.name == name {
			if err := c.run(e, flag.Args()[1:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}
	fmt.Fprintf(os.Stderr, "Unknown command: %s\n", name)
	flag.Usage()
	os.Exit(1)
}
