package util

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/boyter/gocodewalker"
)

// DefaultPackExclusions lists what PackDirectory leaves out unless
// PackOptions.ExcludeDefaults is set: development leftovers and the
// _metadata directory the browser writes into installed copies.
var DefaultPackExclusions = struct {
	// ExcludeDirectory: exact directory names (case-sensitive)
	ExcludeDirectory []string
	// ExcludeFilenamePatterns: filepath.Match patterns against the base name
	ExcludeFilenamePatterns []string
}{
	ExcludeDirectory: []string{
		"node_modules",
		".git",
		"__tests__",
		"coverage",
		"_metadata",
	},

	ExcludeFilenamePatterns: []string{
		"*.test.js",
		"*.test.ts",
		"*.spec.js",
		"*.spec.ts",
		"*.log",
		"*.swp",
		".DS_Store",
	},
}

// PackOptions configures PackDirectory.
type PackOptions struct {
	ExcludeDefaults bool // If true, don't apply default exclusions
	Verbose         bool // Track individual excluded files
	Store           bool // Write entries uncompressed
}

// PackStats tracks statistics about a pack run.
type PackStats struct {
	mu            sync.Mutex
	FilesIncluded int
	FilesExcluded int
	BytesIncluded int64
	BytesExcluded int64
	ExcludedPaths []string
}

func (s *PackStats) AddIncluded(bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilesIncluded++
	s.BytesIncluded += bytes
}

func (s *PackStats) AddExcluded(path string, bytes int64, verbose bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilesExcluded++
	s.BytesExcluded += bytes
	if verbose {
		s.ExcludedPaths = append(s.ExcludedPaths, path)
	}
}

// PackDirectory writes the files under srcDir to w as a ZIP archive in sorted
// path order, so the same tree always yields the same entry order. Symlinks
// are skipped and counted as excluded.
func PackDirectory(srcDir string, w io.Writer, opts *PackOptions) (*PackStats, error) {
	if opts == nil {
		opts = &PackOptions{}
	}
	stats := &PackStats{}

	fileQueue := make(chan *gocodewalker.File, 256)
	walker := gocodewalker.NewFileWalker(srcDir, fileQueue)
	walker.IncludeHidden = true
	if !opts.ExcludeDefaults {
		walker.ExcludeDirectory = append(walker.ExcludeDirectory, DefaultPackExclusions.ExcludeDirectory...)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- walker.Start()
	}()

	var files []string
	for f := range fileQueue {
		relPath, err := filepath.Rel(srcDir, f.Location)
		if err != nil {
			// Drain so the walker goroutine can finish.
			for range fileQueue {
			}
			<-errChan
			return stats, err
		}
		files = append(files, filepath.ToSlash(relPath))
	}
	if err := <-errChan; err != nil {
		return stats, fmt.Errorf("directory walk failed: %w", err)
	}
	sort.Strings(files)

	zipWriter := zip.NewWriter(w)
	dirsAdded := make(map[string]struct{})
	for _, relPath := range files {
		location := filepath.Join(srcDir, filepath.FromSlash(relPath))
		fileInfo, err := os.Lstat(location)
		if err != nil {
			return stats, err
		}

		if excludedName(path.Base(relPath), opts) || !fileInfo.Mode().IsRegular() {
			stats.AddExcluded(relPath, fileInfo.Size(), opts.Verbose)
			continue
		}

		if err := addParentDirs(zipWriter, relPath, dirsAdded); err != nil {
			return stats, err
		}

		hdr, err := zip.FileInfoHeader(fileInfo)
		if err != nil {
			return stats, err
		}
		hdr.Name = relPath
		hdr.Method = zip.Deflate
		if opts.Store {
			hdr.Method = zip.Store
		}
		entryWriter, err := zipWriter.CreateHeader(hdr)
		if err != nil {
			return stats, err
		}

		file, err := os.Open(location)
		if err != nil {
			return stats, err
		}
		written, err := io.Copy(entryWriter, file)
		closeErr := file.Close()
		if err != nil {
			return stats, err
		}
		if closeErr != nil {
			return stats, closeErr
		}
		stats.AddIncluded(written)
	}

	if err := zipWriter.Close(); err != nil {
		return stats, err
	}
	return stats, nil
}

// PackDirectoryToFile is PackDirectory writing to a new file at destZip.
func PackDirectoryToFile(srcDir, destZip string, opts *PackOptions) (*PackStats, error) {
	out, err := os.Create(destZip)
	if err != nil {
		return nil, err
	}
	stats, err := PackDirectory(srcDir, out, opts)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(destZip)
		return stats, err
	}
	return stats, nil
}

func excludedName(name string, opts *PackOptions) bool {
	if opts.ExcludeDefaults {
		return false
	}
	for _, pattern := range DefaultPackExclusions.ExcludeFilenamePatterns {
		if matched, err := filepath.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}

// addParentDirs writes a directory entry for every ancestor of relPath not
// yet in the archive.
func addParentDirs(zw *zip.Writer, relPath string, added map[string]struct{}) error {
	dir := path.Dir(relPath)
	if dir == "." {
		return nil
	}
	var current string
	for _, segment := range strings.Split(dir, "/") {
		if current == "" {
			current = segment
		} else {
			current = current + "/" + segment
		}
		if _, exists := added[current+"/"]; exists {
			continue
		}
		if _, err := zw.Create(current + "/"); err != nil {
			return err
		}
		added[current+"/"] = struct{}{}
	}
	return nil
}
