// Seed program: writes a random protocol workload for the runner.
// Run: go run ./cmd/seed -n 100000 > workload.txt
// Then: go run . -index tester < workload.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/dustin/go-humanize"
)

type workload struct {
	ops     int
	keys    int
	values  int
	seed    uint64
	inserts int
	deletes int
	finds   int
}

func main() {
	var w workload
	flag.IntVar(&w.ops, "n", 10000, "Number of operations")
	flag.IntVar(&w.keys, "keys", 1000, "Distinct string keys")
	flag.IntVar(&w.values, "values", 64, "Distinct values per key")
	flag.Uint64Var(&w.seed, "seed", 1, "Random seed")
	flag.Parse()

	out := bufio.NewWriter(os.Stdout)
	if err := w.generate(out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := out.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Generated %s operations: %s inserts, %s deletes, %s finds\n",
		humanize.Comma(int64(w.ops)), humanize.Comma(int64(w.inserts)),
		humanize.Comma(int64(w.deletes)), humanize.Comma(int64(w.finds)))
}

// generate emits roughly 50% inserts, 25% deletes and 25% finds.
func (w *workload) generate(out io.Writer) error {
	if w.ops < 0 || w.keys <= 0 || w.values <= 0 {
		return fmt.Errorf("invalid workload: n=%d keys=%d values=%d", w.ops, w.keys, w.values)
	}
	r := rand.New(rand.NewPCG(w.seed, w.seed^0x9e3779b97f4a7c15))

	if _, err := fmt.Fprintln(out, w.ops); err != nil {
		return err
	}
	for i := 0; i < w.ops; i++ {
		key := fmt.Sprintf("key%d", r.IntN(w.keys))
		var err error
		switch p := r.IntN(4); {
		case p < 2:
			w.inserts++
			_, err = fmt.Fprintf(out, "insert %s %d\n", key, r.IntN(w.values))
		case p == 2:
			w.deletes++
			_, err = fmt.Fprintf(out, "delete %s %d\n", key, r.IntN(w.values))
		default:
			w.finds++
			_, err = fmt.Fprintf(out, "find %s\n", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
