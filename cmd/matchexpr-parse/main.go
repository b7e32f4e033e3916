// Command matchexpr-parse reads a JSON query predicate and prints the
// match expression tree the library builds for it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/docexpr/matchexpr"
	"github.com/docexpr/matchexpr/bsonval"
)

func main() {
	file := flag.String("f", "", "read the predicate from this file instead of stdin")
	maxDepth := flag.Int("max-depth", 0, "override the default recursion depth limit (0 keeps the default)")
	verbose := flag.Bool("v", false, "log to stderr at debug level instead of warn")
	flag.Parse()

	if err := run(*file, *maxDepth, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(file string, maxDepth int, verbose bool) error {
	r := os.Stdin
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("open %s: %w", file, err)
		}
		defer f.Close()
		r = f
	}

	ctx := context.Background()
	val, err := bsonval.DecodeJSON(ctx, r)
	if err != nil {
		return fmt.Errorf("decode predicate: %w", err)
	}
	doc, ok := val.AsDocument()
	if !ok {
		return fmt.Errorf("predicate must be a JSON object, got %s", val.Type())
	}

	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	cfg := matchexpr.DefaultConfig()
	if maxDepth > 0 {
		cfg.MaxDepth = maxDepth
	}
	p := matchexpr.New(matchexpr.WithConfig(cfg), matchexpr.WithLogger(logger))

	node, err := p.Parse(doc)
	if err != nil {
		return fmt.Errorf("parse predicate: %w", err)
	}

	fmt.Println(node.SExpr())
	return nil
}
