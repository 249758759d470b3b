// Command autoepex-gather walks a directory tree of per-call-site trace
// files and concatenates them into one program log, per spec.md §6's
// external gathering tool.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/rs/zerolog"

	"github.com/autoepex/autoepex/internal/gather"
)

var (
	keep = flag.Bool("keep", false, "keep per-call-site trace files instead of deleting them after gathering")
)

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) != 2 {
		log.Fatal("usage: autoepex-gather <output-log> <input-root-dir>")
	}
	outputLog, inputRoot := args[0], args[1]

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	logger.Info().Str("root", inputRoot).Msg("gathering trace files")
	data, err := gather.Gather(context.Background(), inputRoot, !*keep)
	if err != nil {
		log.Fatalf("autoepex-gather: %v", err)
	}

	if err := os.WriteFile(outputLog, data, 0o644); err != nil {
		log.Fatalf("autoepex-gather: writing %s: %v", outputLog, err)
	}
	logger.Info().Str("output", outputLog).Int("bytes", len(data)).Msg("gather complete")
}
