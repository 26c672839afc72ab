// Package extensions downloads packaged browser extensions and keeps them
// unpacked in an on-disk cache keyed by extension id.
package extensions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/kernel/extkit/pkg/crx"
	"github.com/kernel/extkit/pkg/util"
	"github.com/kernel/extkit/pkg/zipread"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

const (
	defaultDirMode  = 0755
	defaultFileMode = 0644

	// ReactDevToolsID is served from a pinned mirror instead of the web store.
	ReactDevToolsID  = "fmkadmapgofadopljbjfkapdkoienihi"
	reactDevToolsURL = "https://raw.githubusercontent.com/Vendicated/random-files/f6f550e4c58ac5f2012095a130406c2ab25b984d/fmkadmapgofadopljbjfkapdkoienihi.zip"

	webStoreURL = "https://clients2.google.com/service/update2/crx?response=redirect&acceptformat=crx2,crx3&x=id%%3D%s%%26uc&prodversion=%s"
)

var (
	// ErrFilesystemFailure is returned when the cache cannot be written.
	ErrFilesystemFailure = errors.New("filesystem failure")
	// ErrInvalidID is returned for ids that cannot name a cache directory.
	ErrInvalidID = errors.New("invalid extension id")
)

// CacheConfig configures a Cache.
type CacheConfig struct {
	Root          string
	ChromeVersion string
	// Sources overrides the download URL per extension id.
	Sources map[string]string
	// Workers bounds concurrent entry extraction. Zero means runtime.NumCPU().
	Workers int
}

// Cache maps extension ids to unpacked directories under Root.
//
// A directory under its canonical name is always complete. Extraction happens
// in a temporary sibling that is renamed into place, so concurrent Ensure
// calls for one id may both download, and the last rename wins.
//
// Replacing an installed directory (a racing Ensure, or Import over a cached
// id) moves the old copy aside and deletes it. Readers holding a path from an
// earlier call can see files vanish mid-read; they should call Ensure again.
type Cache struct {
	Root          string
	ChromeVersion string
	Sources       map[string]string
	Workers       int

	downloader Downloader
	log        *logrus.Entry
}

// NewCache returns a Cache that downloads through d.
func NewCache(cfg CacheConfig, d Downloader) *Cache {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Cache{
		Root:          cfg.Root,
		ChromeVersion: cfg.ChromeVersion,
		Sources:       cfg.Sources,
		Workers:       workers,
		downloader:    d,
		log:           logrus.WithField("pkg", "extensions"),
	}
}

// CachedExtension describes one unpacked extension in the cache.
type CachedExtension struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
	Size    int64  `json:"size"`
}

// ValidateID rejects ids that are empty or would escape the cache root.
func ValidateID(id string) error {
	if id == "" || id == "." || id == ".." || strings.HasPrefix(id, ".") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// Path returns the canonical directory for id. The directory may not exist.
func (c *Cache) Path(id string) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", err
	}
	return filepath.Join(c.Root, id), nil
}

// SourceURL returns where id is downloaded from.
func (c *Cache) SourceURL(id string) string {
	if u, ok := c.Sources[id]; ok && u != "" {
		return u
	}
	if id == ReactDevToolsID {
		return reactDevToolsURL
	}
	return fmt.Sprintf(webStoreURL, id, c.ChromeVersion)
}

// Ensure returns the unpacked directory for id, downloading and extracting it
// first when it is not cached. A cache hit does no network access.
func (c *Cache) Ensure(ctx context.Context, id string) (string, error) {
	dir, err := c.Path(id)
	if err != nil {
		return "", err
	}
	log := c.log.WithFields(logrus.Fields{"method": "Ensure", "id": id})

	if st, err := os.Stat(dir); err == nil && st.IsDir() {
		log.Debug("cache hit")
		return dir, nil
	}

	src := c.SourceURL(id)
	log.WithField("url", src).Debug("downloading")
	data, err := c.downloader.Get(ctx, src)
	if err != nil {
		if !errors.Is(err, ErrNetworkFailure) {
			err = fmt.Errorf("%w: %w", ErrNetworkFailure, err)
		}
		return "", err
	}

	archive, err := crx.Unwrap(data)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(c.Root, defaultDirMode); err != nil {
		return "", fmt.Errorf("%w: %w", ErrFilesystemFailure, err)
	}
	tmp, err := os.MkdirTemp(c.Root, "."+id+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFilesystemFailure, err)
	}

	n, err := Extract(ctx, archive, tmp, c.Workers)
	if err != nil {
		os.RemoveAll(tmp)
		return "", err
	}
	if err := install(tmp, dir); err != nil {
		os.RemoveAll(tmp)
		return "", err
	}
	log.WithField("files", n).Debug("installed")
	return dir, nil
}

// Import copies an unpacked extension from srcDir into the cache under id,
// replacing any cached copy. Entries under _metadata/ are left out.
func (c *Cache) Import(id, srcDir string) (string, error) {
	dir, err := c.Path(id)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(c.Root, defaultDirMode); err != nil {
		return "", fmt.Errorf("%w: %w", ErrFilesystemFailure, err)
	}
	tmp, err := os.MkdirTemp(c.Root, "."+id+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFilesystemFailure, err)
	}

	skipMetadata := func(rel string, d fs.DirEntry) bool {
		return d.IsDir() && rel+"/" == zipread.MetadataDir
	}
	if err := util.CopyDir(srcDir, tmp, skipMetadata); err != nil {
		os.RemoveAll(tmp)
		return "", fmt.Errorf("%w: %w", ErrFilesystemFailure, err)
	}
	if err := install(tmp, dir); err != nil {
		os.RemoveAll(tmp)
		return "", err
	}
	c.log.WithFields(logrus.Fields{"method": "Import", "id": id, "src": srcDir}).Debug("imported")
	return dir, nil
}

// install moves a complete extraction to its canonical name. If another
// writer installed first, its copy is moved aside and removed.
func install(tmp, dir string) error {
	err := os.Rename(tmp, dir)
	if err == nil {
		return nil
	}
	if _, statErr := os.Stat(dir); statErr != nil {
		return fmt.Errorf("%w: %w", ErrFilesystemFailure, err)
	}

	stale := tmp + ".stale"
	if err := os.Rename(dir, stale); err == nil {
		defer os.RemoveAll(stale)
	}
	if err := os.Rename(tmp, dir); err != nil {
		// Lost the race to a third writer; its copy is just as complete.
		if st, statErr := os.Stat(dir); statErr == nil && st.IsDir() {
			os.RemoveAll(tmp)
			return nil
		}
		return fmt.Errorf("%w: %w", ErrFilesystemFailure, err)
	}
	return nil
}

// List returns the cached extensions sorted by id. Temporary directories of
// in-flight extractions are skipped.
func (c *Cache) List() ([]CachedExtension, error) {
	entries, err := os.ReadDir(c.Root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrFilesystemFailure, err)
	}

	dirs := lo.Filter(entries, func(e os.DirEntry, _ int) bool {
		return e.IsDir() && ValidateID(e.Name()) == nil
	})
	out := make([]CachedExtension, 0, len(dirs))
	for _, e := range dirs {
		path := filepath.Join(c.Root, e.Name())
		size, err := dirSize(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFilesystemFailure, err)
		}
		ext := CachedExtension{ID: e.Name(), Path: path, Size: size}
		ext.Name, ext.Version = readManifest(path)
		out = append(out, ext)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Remove deletes the cached copy of id. Removing an id that is not cached is
// not an error.
func (c *Cache) Remove(id string) error {
	dir, err := c.Path(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: %w", ErrFilesystemFailure, err)
	}
	c.log.WithFields(logrus.Fields{"method": "Remove", "id": id}).Debug("removed")
	return nil
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}

func readManifest(dir string) (name, version string) {
	raw, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return "", ""
	}
	var m struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if json.Unmarshal(raw, &m) != nil {
		return "", ""
	}
	return m.Name, m.Version
}
