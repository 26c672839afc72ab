package extensions

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kernel/extkit/pkg/extensions"
	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	info, success, warning, perr := pterm.Info, pterm.Success, pterm.Warning, pterm.Error
	pterm.SetDefaultOutput(&buf)
	pterm.DisableColor()
	// Prefix printers carry their own writer.
	pterm.Info.Writer = &buf
	pterm.Success.Writer = &buf
	pterm.Warning.Writer = &buf
	pterm.Error.Writer = &buf
	t.Cleanup(func() {
		pterm.Info, pterm.Success, pterm.Warning, pterm.Error = info, success, warning, perr
		pterm.SetDefaultOutput(os.Stdout)
		pterm.EnableColor()
	})
	return &buf
}

// FakeCache implements ExtensionCache with func fields.
type FakeCache struct {
	EnsureFunc func(ctx context.Context, id string) (string, error)
	ImportFunc func(id, srcDir string) (string, error)
	PathFunc   func(id string) (string, error)
	ListFunc   func() ([]extensions.CachedExtension, error)
	RemoveFunc func(id string) error
}

func (f *FakeCache) Ensure(ctx context.Context, id string) (string, error) {
	return f.EnsureFunc(ctx, id)
}

func (f *FakeCache) Import(id, srcDir string) (string, error) { return f.ImportFunc(id, srcDir) }

func (f *FakeCache) Path(id string) (string, error) { return f.PathFunc(id) }

func (f *FakeCache) List() ([]extensions.CachedExtension, error) { return f.ListFunc() }

func (f *FakeCache) Remove(id string) error { return f.RemoveFunc(id) }

func (f *FakeCache) SourceURL(id string) string { return "https://example.com/" + id }

func TestEnsure_PrintsPaths(t *testing.T) {
	buf := captureOutput(t)

	var opened []string
	e := ExtCmd{
		cache: &FakeCache{EnsureFunc: func(ctx context.Context, id string) (string, error) {
			return "/cache/" + id, nil
		}},
		out:  buf,
		open: func(p string) error { opened = append(opened, p); return nil },
	}
	err := e.Ensure(context.Background(), EnsureInput{IDs: []string{"aaa", "bbb"}, Open: true})

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "/cache/aaa")
	assert.Contains(t, out, "/cache/bbb")
	assert.Contains(t, out, "2 extension(s) ready")
	assert.Equal(t, []string{"/cache/aaa", "/cache/bbb"}, opened)
}

func TestEnsure_JSON(t *testing.T) {
	var out bytes.Buffer
	captureOutput(t)

	e := ExtCmd{
		cache: &FakeCache{EnsureFunc: func(ctx context.Context, id string) (string, error) {
			return "/cache/" + id, nil
		}},
		out: &out,
	}
	require.NoError(t, e.Ensure(context.Background(), EnsureInput{IDs: []string{"aaa"}, Output: "json"}))

	var got []ensureResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, []ensureResult{{ID: "aaa", Path: "/cache/aaa", Source: "https://example.com/aaa"}}, got)
}

func TestEnsure_StopsOnError(t *testing.T) {
	captureOutput(t)

	calls := 0
	e := ExtCmd{cache: &FakeCache{EnsureFunc: func(ctx context.Context, id string) (string, error) {
		calls++
		return "", extensions.ErrNetworkFailure
	}}}
	err := e.Ensure(context.Background(), EnsureInput{IDs: []string{"aaa", "bbb"}})

	assert.ErrorIs(t, err, extensions.ErrNetworkFailure)
	assert.Contains(t, err.Error(), "aaa")
	assert.Equal(t, 1, calls)
}

func TestList_Empty(t *testing.T) {
	buf := captureOutput(t)

	e := ExtCmd{cache: &FakeCache{ListFunc: func() ([]extensions.CachedExtension, error) { return nil, nil }}}
	require.NoError(t, e.List(context.Background(), ListInput{}))
	assert.Contains(t, buf.String(), "No cached extensions")
}

func TestList_ShowsRows(t *testing.T) {
	buf := captureOutput(t)

	e := ExtCmd{cache: &FakeCache{ListFunc: func() ([]extensions.CachedExtension, error) {
		return []extensions.CachedExtension{
			{ID: "aaa", Path: "/cache/aaa", Name: "React Developer Tools", Version: "6.1.1", Size: 2048},
			{ID: "bbb", Path: "/cache/bbb", Size: 10},
		}, nil
	}}}
	require.NoError(t, e.List(context.Background(), ListInput{}))

	out := buf.String()
	assert.Contains(t, out, "React Developer Tools")
	assert.Contains(t, out, "2.0 KB")
	assert.Contains(t, out, "2 extension(s), 2.0 KB total")
}

func TestPath_NotCached(t *testing.T) {
	root := t.TempDir()
	e := ExtCmd{cache: &FakeCache{PathFunc: func(id string) (string, error) {
		return filepath.Join(root, id), nil
	}}, out: &bytes.Buffer{}}

	err := e.Path(context.Background(), PathInput{ID: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extkit extensions ensure missing")
}

func TestPath_Cached(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "aaa"), 0755))

	var out bytes.Buffer
	e := ExtCmd{cache: &FakeCache{PathFunc: func(id string) (string, error) {
		return filepath.Join(root, id), nil
	}}, out: &out}

	require.NoError(t, e.Path(context.Background(), PathInput{ID: "aaa"}))
	assert.Equal(t, filepath.Join(root, "aaa")+"\n", out.String())
}

func TestRemove(t *testing.T) {
	buf := captureOutput(t)

	var removed []string
	e := ExtCmd{cache: &FakeCache{RemoveFunc: func(id string) error {
		if id == "bad" {
			return errors.New("boom")
		}
		removed = append(removed, id)
		return nil
	}}}

	require.NoError(t, e.Remove(context.Background(), RemoveInput{IDs: []string{"a", "b"}}))
	assert.Equal(t, []string{"a", "b"}, removed)
	assert.Contains(t, buf.String(), "Removed b")

	assert.Error(t, e.Remove(context.Background(), RemoveInput{IDs: []string{"bad"}}))
}

func newRealExtCmd(t *testing.T) (ExtCmd, *extensions.Cache) {
	t.Helper()
	cache := extensions.NewCache(extensions.CacheConfig{Root: t.TempDir()}, nil)
	return ExtCmd{cache: cache, out: &bytes.Buffer{}}, cache
}

func TestPackAndExport(t *testing.T) {
	captureOutput(t)
	e, cache := newRealExtCmd(t)

	cached := filepath.Join(cache.Root, "aaa")
	require.NoError(t, os.MkdirAll(filepath.Join(cached, "js"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cached, "manifest.json"), []byte(`{"name":"A"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(cached, "js", "main.js"), []byte("main"), 0644))

	zipPath := filepath.Join(t.TempDir(), "aaa.zip")
	require.NoError(t, e.Pack(context.Background(), PackInput{Source: "aaa", Output: zipPath}))

	r, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	r.Close()
	assert.ElementsMatch(t, []string{"js/", "js/main.js", "manifest.json"}, names)

	dest := filepath.Join(t.TempDir(), "out")
	require.NoError(t, e.Export(context.Background(), ExportInput{ID: "aaa", Dest: dest}))
	got, err := os.ReadFile(filepath.Join(dest, "js", "main.js"))
	require.NoError(t, err)
	assert.Equal(t, "main", string(got))

	// A non-empty destination is refused.
	err = e.Export(context.Background(), ExportInput{ID: "aaa", Dest: dest})
	assert.ErrorContains(t, err, "must be empty")
}

func TestImportFromChromeProfile(t *testing.T) {
	buf := captureOutput(t)
	e, cache := newRealExtCmd(t)

	userData := t.TempDir()
	installed := filepath.Join(userData, "Profile 1", "Extensions", "aaa", "1.2.0_0")
	require.NoError(t, os.MkdirAll(installed, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(installed, "manifest.json"), []byte(`{"name":"A"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(userData, "Profile 1", "Preferences"), []byte("{}"), 0644))

	require.NoError(t, e.Import(context.Background(), ImportInput{ID: "aaa", Profile: "Profile 1", UserDataDir: userData}))
	assert.FileExists(t, filepath.Join(cache.Root, "aaa", "manifest.json"))
	assert.Contains(t, buf.String(), "Imported aaa")

	buf.Reset()
	require.NoError(t, e.Import(context.Background(), ImportInput{UserDataDir: userData, ListProfiles: true}))
	assert.Contains(t, buf.String(), "Profile 1")

	err := e.Import(context.Background(), ImportInput{ID: "zzz", UserDataDir: userData})
	assert.Error(t, err)
}
