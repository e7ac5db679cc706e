package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/worldsmith/worldsmith/internal/fsops"
)

// HeapUsage is a point-in-time JVM heap sample.
type HeapUsage struct {
	UsedBytes int64
	MaxBytes  int64
}

// HeapSampler reads heap usage from a managed server. The concrete
// implementation shells out to an external management query tool; the
// interface keeps callers testable.
type HeapSampler interface {
	Sample(ctx context.Context, worldNumber string) (HeapUsage, error)
}

// SampleTimeout caps how long a heap query may take.
const SampleTimeout = 3 * time.Second

// WorldSize returns the on-disk size of a world directory in bytes.
func WorldSize(worldDir string) (int64, error) {
	return fsops.DirSize(worldDir)
}

// Uptime reads the startup marker written when a server reached ready
// state and returns how long the server has been up.
func Uptime(startupTimeFile string) (time.Duration, error) {
	data, err := os.ReadFile(startupTimeFile)
	if err != nil {
		return 0, fmt.Errorf("telemetry: startup marker: %w", err)
	}
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("telemetry: startup marker: %w", err)
	}
	return time.Since(ts), nil
}

// ConsoleLogPath locates the server's console log inside a world
// directory. Newer servers write logs/latest.log, older ones
// server.log; failing both, any .log file at the top level counts.
func ConsoleLogPath(worldDir string) (string, bool) {
	latest := filepath.Join(worldDir, "logs", "latest.log")
	if _, err := os.Stat(latest); err == nil {
		return latest, true
	}
	legacy := filepath.Join(worldDir, "server.log")
	if _, err := os.Stat(legacy); err == nil {
		return legacy, true
	}
	entries, err := os.ReadDir(worldDir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".log") {
			return filepath.Join(worldDir, e.Name()), true
		}
	}
	return "", false
}
