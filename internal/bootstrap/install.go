package bootstrap

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// installMarkers maps installer console output to coarse progress
// percentages. The values are purely informational; completion is
// judged by the installer's exit code alone.
var installMarkers = []struct {
	Substr string
	Pct    int
}{
	{"Extracting main jar", 10},
	{"Downloading library from", 30},
	{"Checksum validated", 50},
	{"EXTRACT_FILES", 70},
	{"BUNDLER_EXTRACT", 85},
	{"The server installed successfully", 100},
}

// InstallProgress reports installer progress for UI surfaces.
type InstallProgress func(pct int, line string)

// classifyInstallLine returns the progress percentage a line maps to,
// or -1.
func classifyInstallLine(line string) int {
	for _, m := range installMarkers {
		if strings.Contains(line, m.Substr) {
			return m.Pct
		}
	}
	return -1
}

// runInstaller executes an installer jar inside dir, streaming its
// output to the progress callback. A non-zero exit fails the install.
func runInstaller(ctx context.Context, javaBin, dir, jar string, args []string, progress InstallProgress) error {
	argv := append([]string{"-jar", jar}, args...)
	cmd := exec.CommandContext(ctx, javaBin, argv...)
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("bootstrap: installer pipe: %w", err)
	}
	cmd.Stdout = w
	cmd.Stderr = w
	if err := cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		return fmt.Errorf("bootstrap: installer spawn: %w", err)
	}
	_ = w.Close()
	defer func() { _ = r.Close() }()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		slog.Debug("installer", "line", line)
		if pct := classifyInstallLine(line); pct >= 0 && progress != nil {
			progress(pct, line)
		}
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("bootstrap: installer: %w", err)
	}
	return nil
}
