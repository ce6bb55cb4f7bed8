package main

import (
	"flag"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/chazu/tickflow/catalog"
)

// runCatalog processes the `tickflow catalog` subcommand.
// Usage:
//
//	tickflow catalog [-db path] [-kind bin|btk|report]
func runCatalog(e *env, args []string) error {
	fs := flag.NewFlagSet("catalog", flag.ContinueOnError)
	db := fs.String("db", "", "Catalog database (default: [output].catalog)")
	kind := fs.String("kind", "", "Only list artifacts of this kind")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cat, err := e.openCatalog(*db)
	if err != nil {
		return err
	}
	if cat == nil {
		return fmt.Errorf("catalog: no database configured (use -db or [output].catalog in tickflow.toml)")
	}
	defer cat.Close()

	list, err := cat.List(catalog.Kind(*kind))
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tKIND\tUNIT\tSIZE\tSHA256\tNAME\tSOURCE")
	for _, a := range list {
		unit := "-"
		if a.Index != catalog.NoIndex {
			unit = fmt.Sprintf("%03x", a.Index)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.12s\t%s\t%s\n",
			a.Created.Local().Format(time.DateTime), a.Kind, unit, a.Size, a.SHA256, a.Name, a.Source)
	}
	return tw.Flush()
}
