package chrome

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindLatestVersionDir(t *testing.T) {
	tempDir := t.TempDir()

	// 10.0.0 must beat 9.0.0 even though it sorts lower as a string.
	versions := []string{"1.0.0_0", "9.0.0_0", "10.0.0_0", "1.5.0_0"}
	for _, v := range versions {
		require.NoError(t, os.MkdirAll(filepath.Join(tempDir, v), 0755))
	}

	latest, err := findLatestVersionDir(tempDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tempDir, "10.0.0_0"), latest)
}

func TestFindLatestVersionDirFourParts(t *testing.T) {
	tempDir := t.TempDir()
	for _, v := range []string{"5.2.1.9_0", "5.2.1.10_0", "not-a-version"} {
		require.NoError(t, os.MkdirAll(filepath.Join(tempDir, v), 0755))
	}

	latest, err := findLatestVersionDir(tempDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tempDir, "5.2.1.10_0"), latest)
}

func TestFindLatestVersionDirEmpty(t *testing.T) {
	_, err := findLatestVersionDir(t.TempDir())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no version directories")
}

func TestFindLatestVersionDirSkipsHidden(t *testing.T) {
	tempDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tempDir, ".hidden"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(tempDir, "1.0.0_0"), 0755))

	latest, err := findLatestVersionDir(tempDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tempDir, "1.0.0_0"), latest)
}

func TestInstalledExtensionPath(t *testing.T) {
	userData := t.TempDir()
	versionDir := filepath.Join(userData, "Profile 1", "Extensions", "abc", "2.0.0_0")
	require.NoError(t, os.MkdirAll(versionDir, 0755))

	got, err := InstalledExtensionPath(userData, "Profile 1", "abc")
	require.NoError(t, err)
	assert.Equal(t, versionDir, got)

	_, err = InstalledExtensionPath(userData, "", "abc")
	assert.Error(t, err)
}

func TestUserDataDirOverride(t *testing.T) {
	dir := t.TempDir()
	got, err := UserDataDir(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	_, err = UserDataDir(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestListProfiles(t *testing.T) {
	userData := t.TempDir()
	for _, p := range []string{"Default", "Profile 2", "System Profile", "Profile 3"} {
		require.NoError(t, os.MkdirAll(filepath.Join(userData, p), 0755))
	}
	for _, p := range []string{"Default", "Profile 2", "System Profile"} {
		require.NoError(t, os.WriteFile(filepath.Join(userData, p, "Preferences"), []byte("{}"), 0644))
	}

	profiles, err := ListProfiles(userData)
	require.NoError(t, err)
	assert.Equal(t, []string{"Default", "Profile 2"}, profiles)
}
