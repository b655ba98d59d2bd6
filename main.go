// Protocol runner: reads an operation count followed by insert/delete/find
// commands from stdin and answers every find on stdout.
// Usage: go run . [-index tester] [-pool 1200] [-cache 0] < workload.txt
package main

import (
	"BTreeStore/bplustree"
	"BTreeStore/internal/harness"
	"BTreeStore/internal/logging"
	"flag"
	"fmt"
	"os"
)

type Configuration struct {
	IndexName string
	PoolSize  int
	ReplacerK int
	CacheSize int64
	LogLevel  string
	LogPath   string
	Stats     bool
}

func main() {
	config := parseArguments()
	if err := run(config); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseArguments() Configuration {
	var config Configuration

	flag.StringVar(&config.IndexName, "index", "tester", "Index file name")
	flag.IntVar(&config.PoolSize, "pool", 1200, "Buffer pool size in frames")
	flag.IntVar(&config.ReplacerK, "k", 10, "LRU-K history depth")
	flag.Int64Var(&config.CacheSize, "cache", 0, "Point lookup cache entries (0 disables)")
	flag.StringVar(&config.LogLevel, "log-level", os.Getenv("BTREE_LOG_LEVEL"), "DEBUG, INFO, WARN or ERROR")
	flag.StringVar(&config.LogPath, "log", "", "Log file path (stderr when empty)")
	flag.BoolVar(&config.Stats, "stats", false, "Log tree and buffer pool statistics on exit")

	flag.Parse()
	return config
}

func run(config Configuration) error {
	if err := logging.Init(logging.Config{
		Level:      logging.LogLevel(config.LogLevel),
		OutputPath: config.LogPath,
		Format:     "text",
	}); err != nil {
		return err
	}
	defer logging.Close()
	logger := logging.Component("runner")

	tree, err := harness.Open(config.IndexName,
		bplus.WithPoolSize(config.PoolSize),
		bplus.WithReplacerK(config.ReplacerK),
		bplus.WithLookupCache(config.CacheSize),
	)
	if err != nil {
		return fmt.Errorf("open index %s: %w", config.IndexName, err)
	}

	res, runErr := harness.Run(os.Stdin, os.Stdout, tree)
	logger.Info("workload done",
		"inserted", res.Inserted, "duplicates", res.Duplicates,
		"deleted", res.Deleted, "absent", res.Absent, "finds", res.Finds)

	if config.Stats {
		if s, err := tree.Stats(); err == nil {
			logger.Info("index stats",
				"size", s.Size, "height", s.Height, "pages", s.PageCount,
				"hit_rate", s.Pool.HitRate(), "evictions", s.Pool.Evictions)
		}
	}

	if err := tree.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("close index: %w", err)
	}
	return runErr
}
