// Package chrome locates extensions installed in a local Chrome profile.
package chrome

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

const DefaultProfile = "Default"

// UserDataDir returns the Chrome user data directory. A non-empty override is
// used as is; otherwise the per-OS default location is returned.
func UserDataDir(override string) (string, error) {
	userDataDir := override
	if userDataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}

		switch runtime.GOOS {
		case "darwin":
			userDataDir = filepath.Join(homeDir, "Library", "Application Support", "Google", "Chrome")
		case "linux":
			userDataDir = filepath.Join(homeDir, ".config", "google-chrome")
		case "windows":
			localAppData := os.Getenv("LOCALAPPDATA")
			if localAppData == "" {
				localAppData = filepath.Join(homeDir, "AppData", "Local")
			}
			userDataDir = filepath.Join(localAppData, "Google", "Chrome", "User Data")
		default:
			return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
		}
	}

	if _, err := os.Stat(userDataDir); os.IsNotExist(err) {
		return "", fmt.Errorf("Chrome user data directory not found at %s", userDataDir)
	}
	return userDataDir, nil
}

// InstalledExtensionPath returns the newest installed version directory of
// extension id in profile.
func InstalledExtensionPath(userDataDir, profile, id string) (string, error) {
	if profile == "" {
		profile = DefaultProfile
	}

	extDir := filepath.Join(userDataDir, profile, "Extensions", id)
	if _, err := os.Stat(extDir); os.IsNotExist(err) {
		return "", fmt.Errorf("extension %s not installed in profile %q", id, profile)
	}

	versionDir, err := findLatestVersionDir(extDir)
	if err != nil {
		return "", fmt.Errorf("failed to find extension version: %w", err)
	}
	return versionDir, nil
}

// findLatestVersionDir picks the highest "<version>_<n>" subdirectory.
func findLatestVersionDir(extDir string) (string, error) {
	entries, err := os.ReadDir(extDir)
	if err != nil {
		return "", fmt.Errorf("failed to read extension directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() && entry.Name() != "" && entry.Name()[0] != '.' {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no version directories found in %s", extDir)
	}

	sort.Slice(names, func(i, j int) bool {
		return versionLess(names[i], names[j])
	})
	return filepath.Join(extDir, names[len(names)-1]), nil
}

type dirVersion struct {
	ver   *semver.Version
	build int
}

// parseVersionDir reads "1.2.3.4_0" style names. Chrome versions have up to
// four numeric parts; the fourth is compared after the semver triple.
func parseVersionDir(name string) *dirVersion {
	v, _, _ := strings.Cut(name, "_")
	parts := strings.Split(v, ".")
	dv := &dirVersion{}
	if len(parts) == 4 {
		n, err := strconv.Atoi(parts[3])
		if err != nil {
			return nil
		}
		dv.build = n
		parts = parts[:3]
	}
	ver, err := semver.NewVersion(strings.Join(parts, "."))
	if err != nil {
		return nil
	}
	dv.ver = ver
	return dv
}

// versionLess orders version directories. Names that are not versions sort
// below all versions, lexicographically.
func versionLess(a, b string) bool {
	va, vb := parseVersionDir(a), parseVersionDir(b)
	switch {
	case va == nil && vb == nil:
		return a < b
	case va == nil:
		return true
	case vb == nil:
		return false
	}
	if c := va.ver.Compare(vb.ver); c != 0 {
		return c < 0
	}
	if va.build != vb.build {
		return va.build < vb.build
	}
	return a < b
}

// ListProfiles returns the profiles in userDataDir that have a Preferences
// file.
func ListProfiles(userDataDir string) ([]string, error) {
	entries, err := os.ReadDir(userDataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read Chrome user data directory: %w", err)
	}

	var profiles []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name == DefaultProfile || strings.HasPrefix(name, "Profile ") {
			if _, err := os.Stat(filepath.Join(userDataDir, name, "Preferences")); err == nil {
				profiles = append(profiles, name)
			}
		}
	}
	return profiles, nil
}
