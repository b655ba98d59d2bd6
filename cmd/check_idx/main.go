// check_idx verifies the structural invariants of one or more index files in parallel.
// Usage: go run ./cmd/check_idx [-j 4] <index>...
package main

import (
	"BTreeStore/internal/cliui"
	"BTreeStore/internal/harness"
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

type result struct {
	path    string
	entries int
	pages   int
	elapsed time.Duration
	err     error
}

func main() {
	jobs := flag.Int("j", runtime.NumCPU(), "Files checked concurrently")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-j N] <index>...\n", os.Args[0])
		os.Exit(1)
	}

	results := checkAll(context.Background(), flag.Args(), *jobs)

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Printf("%s %s: %v\n", cliui.FailStyle.Render("FAIL"), r.path, r.err)
			continue
		}
		fmt.Printf("%s %s %s\n", cliui.OKStyle.Render("OK  "), r.path,
			cliui.MutedStyle.Render(fmt.Sprintf("(%s entries, %s pages, %s)",
				humanize.Comma(int64(r.entries)), humanize.Comma(int64(r.pages)), r.elapsed.Round(time.Microsecond))))
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// checkAll opens every file in its own tree and runs CheckIntegrity. A failing
// file does not stop the others; each result carries its own error.
func checkAll(ctx context.Context, paths []string, jobs int) []result {
	results := make([]result, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = result{path: path, err: err}
				return nil
			}
			results[i] = checkOne(path)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func checkOne(path string) result {
	start := time.Now()
	r := result{path: path}
	if _, err := os.Stat(path); err != nil {
		r.err = err
		return r
	}
	tree, err := harness.Open(path)
	if err != nil {
		r.err = err
		return r
	}
	defer tree.Close()

	if r.err = tree.CheckIntegrity(); r.err != nil {
		return r
	}
	s, err := tree.Stats()
	if err != nil {
		r.err = err
		return r
	}
	r.entries, r.pages = s.Size, int(s.PageCount)
	r.elapsed = time.Since(start)
	return r
}
