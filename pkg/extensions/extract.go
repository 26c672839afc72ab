package extensions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kernel/extkit/pkg/zipread"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Extract writes every entry of the ZIP archive in data below dest and returns
// the number of files written. Entries under _metadata/ are skipped, and a
// name that appears more than once takes the content of its last entry. All
// directories are created before any file is written; files are then decoded
// and written by up to workers goroutines.
//
// Extract does not clean up on failure.
func Extract(ctx context.Context, data []byte, dest string, workers int) (int, error) {
	entries, err := zipread.Open(data)
	if err != nil {
		return 0, err
	}
	entries = lo.Filter(entries, func(e zipread.Entry, _ int) bool { return !e.IsMetadata() })

	root, err := filepath.Abs(dest)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFilesystemFailure, err)
	}
	if err := os.MkdirAll(root, defaultDirMode); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFilesystemFailure, err)
	}

	targets := make([]string, len(entries))
	for i, e := range entries {
		if targets[i], err = entryPath(root, e.Name); err != nil {
			return 0, err
		}
	}

	dirs := lo.Uniq(lo.Map(entries, func(e zipread.Entry, i int) string {
		if e.IsDir() {
			return targets[i]
		}
		return filepath.Dir(targets[i])
	}))
	for _, d := range dirs {
		if err := os.MkdirAll(d, defaultDirMode); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrFilesystemFailure, err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	// A name listed twice is written once, from its last entry.
	last := make(map[string]int, len(entries))
	for i, e := range entries {
		if !e.IsDir() {
			last[targets[i]] = i
		}
	}

	files := 0
	for i, e := range entries {
		if e.IsDir() || last[targets[i]] != i {
			continue
		}
		target := targets[i]
		files++
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			content, err := zipread.ExtractEntry(ctx, e, data)
			if err != nil {
				return err
			}
			if err := os.WriteFile(target, content, defaultFileMode); err != nil {
				return fmt.Errorf("%w: %w", ErrFilesystemFailure, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return files, nil
}

// entryPath resolves an archive name below root, rejecting names that would
// land outside it.
func entryPath(root, name string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(strings.TrimLeft(name, "/")))
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: illegal file path in archive: %s", ErrFilesystemFailure, name)
	}
	return target, nil
}
