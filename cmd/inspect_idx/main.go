// Inspect a B+ tree index file written by the protocol runner.
// Usage: go run ./cmd/inspect_idx [-stats-only] <path-to-index>
// Example: go run ./cmd/inspect_idx tester
package main

import (
	"BTreeStore/internal/cliui"
	"BTreeStore/internal/harness"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
)

func main() {
	statsOnly := flag.Bool("stats-only", false, "Skip the page dump")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-stats-only] <index>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Example: %s tester\n", os.Args[0])
		os.Exit(1)
	}
	path := flag.Arg(0)
	if err := inspect(os.Stdout, path, !*statsOnly); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func inspect(w io.Writer, path string, dump bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat index file: %w", err)
	}

	tree, err := harness.Open(path)
	if err != nil {
		return err
	}
	defer tree.Close()

	s, err := tree.Stats()
	if err != nil {
		return err
	}

	fmt.Fprintln(w, cliui.TitleStyle.Render("Index "+path))
	cliui.Field(w, "file size", humanize.Bytes(uint64(info.Size())))
	cliui.Field(w, "entries", humanize.Comma(int64(s.Size)))
	cliui.Field(w, "height", s.Height)
	cliui.Field(w, "root page", s.RootPageID)
	cliui.Field(w, "pages", humanize.Comma(int64(s.PageCount)))
	cliui.Field(w, "pool frames", fmt.Sprintf("%d resident / %d", s.Pool.ResidentPages, s.Pool.Capacity))
	fmt.Fprintln(w)

	if !dump {
		return nil
	}
	return tree.Dump(w)
}
