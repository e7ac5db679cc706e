// Package artifact resolves server jars: supported-version manifests,
// the local jar cache, and download triggering.
package artifact

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Manifest lists the versions known to work per software family.
type Manifest struct {
	Versions map[Software][]string `json:"versions"`
}

// LoadManifest reads a manifest JSON file.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("artifact: read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("artifact: parse manifest: %w", err)
	}
	return m, nil
}

// Supports reports whether version is known for the software. Families
// whose installers resolve versions themselves are always supported,
// and a host without any manifest configured accepts every version.
func (m Manifest) Supports(sw Software, version string) bool {
	if !sw.ManifestChecked() {
		return true
	}
	if m.Versions == nil {
		return true
	}
	for _, v := range m.Versions[sw] {
		if v == version {
			return true
		}
	}
	return false
}

// Downloader fetches a server jar or installer for a software/version
// pair into the destination path. Implementations wrap the upstream
// distribution channels.
type Downloader interface {
	Fetch(sw Software, version, dest string) error
}

// RefreshInterval is how long a cached installer is trusted before the
// downloader is asked again.
const RefreshInterval = 72 * time.Hour

// Resolver locates, and when necessary downloads, server artifacts in
// the shared versions directory.
type Resolver struct {
	Dir        string
	Manifest   Manifest
	Downloader Downloader
}

// CachePath is where the artifact for a software/version pair lives.
func (r *Resolver) CachePath(sw Software, version string) string {
	return filepath.Join(r.Dir, fmt.Sprintf("%s-%s.jar", strings.ToLower(string(sw)), version))
}

// Ensure returns the path to a local artifact for the pair, downloading
// it when absent. Installer artifacts are re-fetched when the cached
// copy is older than RefreshInterval.
func (r *Resolver) Ensure(sw Software, version string) (string, error) {
	if !r.Manifest.Supports(sw, version) {
		return "", fmt.Errorf("artifact: %s %s is not supported", sw, version)
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", fmt.Errorf("artifact: versions dir: %w", err)
	}
	path := r.CachePath(sw, version)
	if _, err := os.Stat(path); err == nil {
		if !sw.UsesInstaller() || !r.shouldRefresh(sw, version) {
			return path, nil
		}
		slog.Debug("refreshing installer", "software", sw, "version", version)
	}
	if r.Downloader == nil {
		return "", fmt.Errorf("artifact: %s-%s.jar missing and no downloader configured", strings.ToLower(string(sw)), version)
	}
	if err := r.Downloader.Fetch(sw, version, path); err != nil {
		return "", fmt.Errorf("artifact: fetch %s %s: %w", sw, version, err)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("artifact: fetch %s %s produced no file: %w", sw, version, err)
	}
	r.touchLastCheck(sw, version)
	return path, nil
}

func (r *Resolver) lastCheckPath(sw Software, version string) string {
	return filepath.Join(r.Dir, fmt.Sprintf(".%s-%s.lastcheck", strings.ToLower(string(sw)), version))
}

// shouldRefresh consults the last-check marker so the downloader is not
// hammered on every world creation.
func (r *Resolver) shouldRefresh(sw Software, version string) bool {
	info, err := os.Stat(r.lastCheckPath(sw, version))
	if err != nil {
		return true
	}
	return time.Since(info.ModTime()) > RefreshInterval
}

func (r *Resolver) touchLastCheck(sw Software, version string) {
	p := r.lastCheckPath(sw, version)
	if err := os.WriteFile(p, []byte(time.Now().Format(time.RFC3339)+"\n"), 0o644); err != nil {
		slog.Warn("last-check marker", "path", p, "error", err)
	}
}

// ClosestJarFile picks the best match for pattern among names. An exact
// case-insensitive match always wins; the pattern may name the jar with
// or without its ".jar" suffix. Otherwise earlier and longer substring
// matches score higher. Empty string when nothing matches.
func ClosestJarFile(names []string, pattern string) string {
	best := ""
	bestScore := -1
	lp := strings.ToLower(pattern)
	for _, name := range names {
		ln := strings.ToLower(name)
		score := -1
		if ln == lp || ln == lp+".jar" {
			score = math.MaxInt
		} else if i := strings.Index(ln, lp); i >= 0 {
			score = 1000 - i
			if score < 0 {
				score = 0
			}
			score += 10 * len(pattern)
		}
		if score > bestScore {
			bestScore = score
			best = name
		}
	}
	if bestScore < 0 {
		return ""
	}
	return best
}

// FindVersionJar scans dir for a jar named <anything>-<version>.jar.
func FindVersionJar(dir, version string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	want := "-" + version + ".jar"
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), want) {
			return filepath.Join(dir, e.Name()), true
		}
	}
	return "", false
}

// ListJars returns the jar file names directly under dir.
func ListJars(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".jar") {
			out = append(out, e.Name())
		}
	}
	return out
}
