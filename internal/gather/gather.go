// Package gather implements the log-gathering tool named in spec.md §6:
// walking a directory tree, reading every trace file a checker run left
// behind, and concatenating them into one ordered program log. Grounded on
// the teacher's dependency on golang.org/x/sync/errgroup (present in
// go.mod but unused directly by the teacher itself) and
// original_source/run_analyses.py's per-file gathering loop.
package gather

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"
)

// LogSuffix is the per-call-site trace file extension a checker run
// produces, one file per observed call.
const LogSuffix = ".ae.log"

// Gather walks root, reads every *.ae.log file concurrently (one
// goroutine per file via errgroup — the within-program read fan-out
// spec.md §5 allows, distinct from the cross-program aggregation which
// must stay sequential), and returns their contents concatenated in
// deterministic path order. When remove is true, each file is deleted
// once its contents have been read, so a repeated gather over the same
// tree only ever sees new trace output.
func Gather(ctx context.Context, root string, remove bool) ([]byte, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if hasLogSuffix(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	contents := make([][]byte, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			contents[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for _, c := range contents {
		buf.Write(c)
		if len(c) > 0 && c[len(c)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}

	if remove {
		for _, path := range paths {
			if err := os.Remove(path); err != nil {
				return nil, err
			}
		}
	}

	return buf.Bytes(), nil
}

func hasLogSuffix(path string) bool {
	return len(path) > len(LogSuffix) && path[len(path)-len(LogSuffix):] == LogSuffix
}
