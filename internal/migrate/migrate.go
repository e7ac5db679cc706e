// Package migrate changes a world's server software or version, with
// optional preservation of the generated dimension data.
package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/worldsmith/worldsmith/internal/artifact"
	"github.com/worldsmith/worldsmith/internal/bootstrap"
	"github.com/worldsmith/worldsmith/internal/fsops"
	"github.com/worldsmith/worldsmith/internal/store"
)

// dimensionPaths lists the world data worth carrying across a
// migration. Standard distributions keep all dimensions under world/;
// the Bukkit-derived ones split them into world_nether and
// world_the_end.
var dimensionPaths = []struct {
	Standard string
	Bukkit   string
}{
	{Standard: "world/region", Bukkit: "world/region"},
	{Standard: "world/DIM-1", Bukkit: "world_nether/DIM-1"},
	{Standard: "world/DIM1", Bukkit: "world_the_end/DIM1"},
}

// subPath picks the dimension path column for a software family.
func subPath(sw artifact.Software, i int) string {
	if sw.BukkitFamily() {
		return dimensionPaths[i].Bukkit
	}
	return dimensionPaths[i].Standard
}

// Request describes a version or software change for one world.
type Request struct {
	WorldNumber string
	Software    string
	Version     string
	// KeepWorld carries the dimension data into the rebuilt world.
	KeepWorld bool
	Progress  bootstrap.InstallProgress
}

// Controller rebuilds worlds on new server software.
type Controller struct {
	Store     store.Store
	Bootstrap *bootstrap.Orchestrator
	TempDir   string
}

// ChangeVersion rebuilds the world under its existing number. Without
// KeepWorld the directory is simply cleared and re-provisioned; with
// it, the dimension data is held aside during the rebuild and restored
// after. Every hold/restore step is best effort; a failed rebuild
// aborts the migration.
func (c *Controller) ChangeVersion(ctx context.Context, req Request) bootstrap.Result {
	w, err := c.Store.Get(ctx, req.WorldNumber)
	if err != nil {
		return bootstrap.Result{Status: bootstrap.StatusError, Message: err.Error(), WorldNumber: req.WorldNumber}
	}
	currentSW, err := artifact.ParseSoftware(w.Software)
	if err != nil {
		return bootstrap.Result{Status: bootstrap.StatusError, Message: err.Error(), WorldNumber: req.WorldNumber}
	}
	targetSW, err := artifact.ParseSoftware(req.Software)
	if err != nil {
		return bootstrap.Result{Status: bootstrap.StatusError, Message: err.Error(), WorldNumber: req.WorldNumber}
	}
	// refuse before touching the world; a cleared directory cannot be
	// rebuilt on an unsupported target
	if !c.Bootstrap.Resolver.Manifest.Supports(targetSW, req.Version) {
		return bootstrap.Result{
			Status:      bootstrap.StatusError,
			Message:     fmt.Sprintf("%s %s is not supported!", targetSW, req.Version),
			WorldNumber: req.WorldNumber,
		}
	}

	worldDir := c.Bootstrap.Paths.WorldDir(req.WorldNumber)

	var hold string
	if req.KeepWorld {
		hold, err = os.MkdirTemp(c.TempDir, "migrate-"+req.WorldNumber+"-")
		if err != nil {
			return bootstrap.Result{Status: bootstrap.StatusError, Message: fmt.Sprintf("holding dir: %v", err), WorldNumber: req.WorldNumber}
		}
		for i := range dimensionPaths {
			src := filepath.Join(worldDir, subPath(currentSW, i))
			dst := filepath.Join(hold, strconv.Itoa(i))
			if _, statErr := os.Stat(src); statErr != nil {
				continue
			}
			if copyErr := fsops.CopyDir(src, dst); copyErr != nil {
				slog.Warn("dimension data not held", "path", src, "error", copyErr)
			}
		}
	}

	if err := fsops.ClearDir(worldDir); err != nil {
		return bootstrap.Result{Status: bootstrap.StatusError, Message: err.Error(), WorldNumber: req.WorldNumber}
	}

	w.Software = string(targetSW)
	w.Version = req.Version
	if err := c.Store.Update(ctx, w); err != nil {
		return bootstrap.Result{Status: bootstrap.StatusError, Message: fmt.Sprintf("update record: %v", err), WorldNumber: req.WorldNumber}
	}

	res := c.Bootstrap.CreateWorld(ctx, bootstrap.CreateRequest{
		Name:         w.Name,
		Software:     string(targetSW),
		Version:      req.Version,
		MaxPlayers:   w.MaxPlayers,
		ServerPort:   w.ServerPort,
		RCONPort:     w.RCONPort,
		JMXPort:      w.JMXPort,
		RMIPort:      w.RMIPort,
		WorldNumber:  req.WorldNumber,
		InsertIntoDB: false,
		Progress:     req.Progress,
	})
	if res.Status != bootstrap.StatusSuccess {
		if hold != "" {
			res.Message = fmt.Sprintf("%s (held world data left in %s)", res.Message, hold)
		}
		return res
	}

	if req.KeepWorld {
		for i := range dimensionPaths {
			src := filepath.Join(hold, strconv.Itoa(i))
			if _, statErr := os.Stat(src); statErr != nil {
				continue
			}
			dst := filepath.Join(worldDir, subPath(targetSW, i))
			if copyErr := fsops.CopyDir(src, dst); copyErr != nil {
				slog.Warn("dimension data not restored", "path", dst, "error", copyErr)
			}
		}
		if err := os.RemoveAll(hold); err != nil {
			slog.Warn("holding dir not removed", "path", hold, "error", err)
		}
	}
	slog.Info("world migrated", "world", req.WorldNumber, "software", targetSW, "version", req.Version)
	return res
}
