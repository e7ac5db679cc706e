// Package bootstrap provisions new worlds end to end: identifier and
// secret generation, artifact placement, installer runs, properties
// patching, license acceptance and the verification server passes.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/worldsmith/worldsmith/internal/artifact"
	"github.com/worldsmith/worldsmith/internal/config"
	"github.com/worldsmith/worldsmith/internal/fsops"
	"github.com/worldsmith/worldsmith/internal/props"
	"github.com/worldsmith/worldsmith/internal/store"
	"github.com/worldsmith/worldsmith/internal/supervisor"
)

// Result is the outcome of a provisioning run.
type Result struct {
	Status      string
	Message     string
	WorldNumber string
}

const (
	StatusSuccess = "Success"
	StatusError   = "Error"
)

func success(number string) Result {
	return Result{Status: StatusSuccess, Message: "World Created Successfully", WorldNumber: number}
}

func failure(number, msg string) Result {
	return Result{Status: StatusError, Message: msg, WorldNumber: number}
}

// CreateRequest describes a world to provision.
type CreateRequest struct {
	Name       string
	Software   string
	Version    string
	MaxPlayers int
	ServerPort int
	RCONPort   int
	JMXPort    int
	RMIPort    int
	MemoryMB   int
	// WorldNumber reuses an existing identifier instead of generating
	// one. Version migration re-provisions under the old number.
	WorldNumber string
	// InsertIntoDB records the world in the credential store once
	// provisioning fully succeeds.
	InsertIntoDB bool
	Progress     InstallProgress
}

// Orchestrator wires the provisioning collaborators together.
type Orchestrator struct {
	Paths      config.Paths
	Store      store.Store
	Resolver   *artifact.Resolver
	Supervisor *supervisor.Supervisor
	HostIP     string
	MemoryMB   int
	// JavaBin runs installers; empty means "java".
	JavaBin string
}

func (o *Orchestrator) java() string {
	if o.JavaBin != "" {
		return o.JavaBin
	}
	return "java"
}

// Provisioning pass states. The verification servers run with port
// auto-reclaim: the first pass exists to trip the license refusal and
// generate the base files, the second to prove the world boots.
type passState int

const (
	passAwaitingEulaAcceptance passState = iota
	passAwaitingFirstReady
	passDone
)

// CreateWorld provisions a world and returns a Result; it never
// returns an error across the API boundary.
func (o *Orchestrator) CreateWorld(ctx context.Context, req CreateRequest) Result {
	if req.Software == "" {
		return failure("", "no server software selected")
	}
	sw, err := artifact.ParseSoftware(req.Software)
	if err != nil {
		return failure("", fmt.Sprintf("%s is not a supported server software", req.Software))
	}
	if !o.Resolver.Manifest.Supports(sw, req.Version) {
		return failure("", fmt.Sprintf("%s %s is not supported!", sw, req.Version))
	}
	name := req.Name
	if name == "" {
		name = fmt.Sprintf("%s Server", sw)
	}
	memory := req.MemoryMB
	if memory <= 0 {
		memory = o.MemoryMB
	}

	artifactPath, err := o.Resolver.Ensure(sw, req.Version)
	if err != nil {
		return failure("", err.Error())
	}

	number := req.WorldNumber
	if number == "" {
		number, err = GenerateWorldNumber(ctx, o.Paths.WorldsDir, o.Store)
		if err != nil {
			return failure("", err.Error())
		}
	}
	worldDir := o.Paths.WorldDir(number)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		return failure(number, fmt.Sprintf("world directory: %v", err))
	}

	rconPassword, err := o.rconPassword(ctx, req.WorldNumber)
	if err != nil {
		return failure(number, err.Error())
	}

	if err := o.placeArtifact(ctx, sw, req.Version, artifactPath, worldDir, req.Progress); err != nil {
		return failure(number, err.Error())
	}

	if err := o.writeProperties(worldDir, name, req, rconPassword); err != nil {
		return failure(number, err.Error())
	}

	if res := o.verifyPasses(ctx, sw, req, number, worldDir, memory); res != nil {
		return *res
	}

	if req.InsertIntoDB {
		_, err := o.Store.Create(ctx, store.World{
			WorldNumber:  number,
			Name:         name,
			Version:      req.Version,
			Software:     string(sw),
			MaxPlayers:   req.MaxPlayers,
			ServerPort:   req.ServerPort,
			JMXPort:      req.JMXPort,
			RCONPort:     req.RCONPort,
			RMIPort:      req.RMIPort,
			RCONPassword: rconPassword,
		})
		if err != nil {
			return failure(number, fmt.Sprintf("record world: %v", err))
		}
	}
	if err := o.Store.ClearTransient(ctx, number); err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Warn("transient fields not cleared", "world", number, "error", err)
	}
	slog.Info("world created", "world", number, "software", sw, "version", req.Version)
	return success(number)
}

// rconPassword reuses the stored secret when re-provisioning an
// existing world, and generates a fresh one otherwise.
func (o *Orchestrator) rconPassword(ctx context.Context, existingNumber string) (string, error) {
	if existingNumber != "" {
		w, err := o.Store.Get(ctx, existingNumber)
		if err == nil {
			return w.RCONPassword, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("look up remote console secret: %w", err)
		}
	}
	return GeneratePassword(RCONPasswordLength), nil
}

// placeArtifact puts a runnable server into the world directory:
// direct distributions as <version>.jar, installer distributions by
// executing their installer.
func (o *Orchestrator) placeArtifact(ctx context.Context, sw artifact.Software, version, artifactPath, worldDir string, progress InstallProgress) error {
	if !sw.UsesInstaller() {
		return fsops.CopyFile(artifactPath, filepath.Join(worldDir, version+".jar"))
	}

	installDir := worldDir
	if sw == artifact.Quilt {
		// the quilt installer scaffolds into its working directory, so
		// it runs in scratch space and the result is copied over
		tmp, err := os.MkdirTemp(o.Paths.TempDir, "quilt-install-")
		if err != nil {
			tmp, err = os.MkdirTemp("", "quilt-install-")
			if err != nil {
				return fmt.Errorf("install scratch dir: %w", err)
			}
		}
		defer func() { _ = os.RemoveAll(tmp) }()
		installDir = tmp
	}

	installerJar := filepath.Join(installDir, "installer.jar")
	if err := fsops.CopyFile(artifactPath, installerJar); err != nil {
		return err
	}
	if err := runInstaller(ctx, o.java(), installDir, "installer.jar", sw.InstallerArgs(version), progress); err != nil {
		return err
	}
	_ = os.Remove(installerJar)

	if sw == artifact.Quilt {
		if err := fsops.CopyDir(installDir, worldDir); err != nil {
			return fmt.Errorf("relocate quilt install: %w", err)
		}
	}
	if sw == artifact.Fabric || sw == artifact.Quilt {
		produced := filepath.Join(worldDir, "server.jar")
		if _, err := os.Stat(produced); err == nil {
			if err := os.Rename(produced, filepath.Join(worldDir, version+".jar")); err != nil {
				return fmt.Errorf("rename server jar: %w", err)
			}
		}
	}
	return nil
}

// writeProperties seeds server.properties from the template and patches
// the world and remote console settings.
func (o *Orchestrator) writeProperties(worldDir, name string, req CreateRequest, rconPassword string) error {
	propsPath := filepath.Join(worldDir, "server.properties")
	if _, err := os.Stat(propsPath); os.IsNotExist(err) {
		if o.Paths.DefaultProperties != "" {
			if err := fsops.CopyFile(o.Paths.DefaultProperties, propsPath); err != nil {
				return err
			}
		} else if err := os.WriteFile(propsPath, nil, 0o644); err != nil {
			return fmt.Errorf("server.properties: %w", err)
		}
	}
	settings := []props.Setting{
		{Key: "motd", Value: name},
		{Key: "server-port", Value: strconv.Itoa(req.ServerPort)},
		{Key: "max-players", Value: strconv.Itoa(req.MaxPlayers)},
		{Key: "enable-rcon", Value: "true"},
		{Key: "rcon.password", Value: rconPassword},
		{Key: "rcon.port", Value: strconv.Itoa(req.RCONPort)},
		{Key: "enable-query", Value: "true"},
	}
	return props.Apply(propsPath, settings, true)
}

// verifyPasses runs the supervised auto-stop server passes. A nil
// return means the world booted and was reclaimed cleanly.
func (o *Orchestrator) verifyPasses(ctx context.Context, sw artifact.Software, req CreateRequest, number, worldDir string, memory int) *Result {
	spec := supervisor.StartSpec{
		WorldNumber: number,
		Dir:         worldDir,
		Software:    sw,
		Version:     req.Version,
		MemoryMB:    memory,
		HostIP:      o.HostIP,
		ServerPort:  req.ServerPort,
		RCONPort:    req.RCONPort,
		JMXPort:     req.JMXPort,
		RMIPort:     req.RMIPort,
		AutoStop:    true,
	}

	state := passAwaitingEulaAcceptance
	for state != passDone {
		code, msg := o.Supervisor.Start(ctx, spec)
		if code != 0 {
			r := failure(number, fmt.Sprintf("verification server failed: %s", msg))
			return &r
		}
		switch state {
		case passAwaitingEulaAcceptance:
			if err := writeEula(worldDir); err != nil {
				r := failure(number, err.Error())
				return &r
			}
			state = passAwaitingFirstReady
		case passAwaitingFirstReady:
			state = passDone
		}
	}
	return nil
}

func writeEula(worldDir string) error {
	p := filepath.Join(worldDir, "eula.txt")
	if err := os.WriteFile(p, []byte("eula=true\n"), 0o644); err != nil {
		return fmt.Errorf("eula: %w", err)
	}
	return nil
}

// DeleteWorld removes a world's store record and its directory.
func (o *Orchestrator) DeleteWorld(ctx context.Context, worldNumber string) error {
	if err := o.Store.Delete(ctx, worldNumber); err != nil {
		return fmt.Errorf("bootstrap: delete record: %w", err)
	}
	dir := o.Paths.WorldDir(worldNumber)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("bootstrap: delete directory: %w", err)
	}
	slog.Info("world deleted", "world", worldNumber)
	return nil
}
