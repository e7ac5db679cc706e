// Package worldsmith orchestrates the full lifecycle of game-server
// worlds: provisioning, supervised runs, graceful shutdown, version
// migration and telemetry. This file is the public facade; the heavy
// lifting lives in the internal packages.
package worldsmith

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/worldsmith/worldsmith/internal/artifact"
	"github.com/worldsmith/worldsmith/internal/bootstrap"
	"github.com/worldsmith/worldsmith/internal/config"
	"github.com/worldsmith/worldsmith/internal/console"
	"github.com/worldsmith/worldsmith/internal/logger"
	"github.com/worldsmith/worldsmith/internal/metrics"
	"github.com/worldsmith/worldsmith/internal/migrate"
	"github.com/worldsmith/worldsmith/internal/netguard"
	"github.com/worldsmith/worldsmith/internal/server"
	"github.com/worldsmith/worldsmith/internal/shutdown"
	"github.com/worldsmith/worldsmith/internal/store"
	"github.com/worldsmith/worldsmith/internal/store/factory"
	"github.com/worldsmith/worldsmith/internal/supervisor"
	"github.com/worldsmith/worldsmith/internal/telemetry"
)

// Re-exported types so callers do not import internal packages.
type (
	Config       = config.Config
	Result       = bootstrap.Result
	World        = store.World
	CreateParams = server.CreateParams
	Status       = server.Status
)

// LoadConfig reads and validates a TOML config file.
func LoadConfig(path string) (Config, error) { return config.Load(path) }

// App wires the lifecycle controllers over one config and store.
type App struct {
	cfg        Config
	store      store.Store
	guard      *netguard.Guard
	supervisor *supervisor.Supervisor
	bootstrap  *bootstrap.Orchestrator
	shutdown   *shutdown.Controller
	migrate    *migrate.Controller
	pinger     telemetry.Pinger
	heap       telemetry.HeapSampler
}

// New builds an App from config: opens the store, ensures the schema
// and constructs the controllers.
func New(cfg Config) (*App, error) {
	logger.Setup(cfg.LogLevel)

	if err := os.MkdirAll(cfg.Paths.WorldsDir, 0o755); err != nil {
		return nil, fmt.Errorf("worldsmith: worlds dir: %w", err)
	}
	dsn := cfg.Store.DSN
	if dsn == "" {
		dsn = filepath.Join(cfg.Paths.WorldsDir, "worlds.db")
	}
	st, err := factory.New(cfg.Store.Type, dsn)
	if err != nil {
		return nil, fmt.Errorf("worldsmith: open store: %w", err)
	}
	if err := st.EnsureSchema(context.Background()); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("worldsmith: ensure schema: %w", err)
	}

	var manifest artifact.Manifest
	if cfg.Artifacts.Manifest != "" {
		manifest, err = artifact.LoadManifest(cfg.Artifacts.Manifest)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
	}
	var downloader artifact.Downloader
	if cfg.Artifacts.URLTemplate != "" {
		downloader = &artifact.HTTPDownloader{URLTemplate: cfg.Artifacts.URLTemplate}
	}

	guard := &netguard.Guard{JMXDir: cfg.Paths.JMXDir}
	sup := &supervisor.Supervisor{Store: st, Guard: guard, Log: cfg.Log}
	boot := &bootstrap.Orchestrator{
		Paths:      cfg.Paths,
		Store:      st,
		Resolver:   &artifact.Resolver{Dir: cfg.Paths.VersionsDir, Manifest: manifest, Downloader: downloader},
		Supervisor: sup,
		HostIP:     cfg.HostIP,
		MemoryMB:   cfg.MemoryMB,
	}
	var heap telemetry.HeapSampler
	if cfg.HeapTool != "" {
		heap = &telemetry.CommandHeapSampler{
			Tool: cfg.HeapTool,
			Resolve: func(worldNumber string) (string, string, string, error) {
				w, err := st.Get(context.Background(), worldNumber)
				if err != nil {
					return "", "", "", err
				}
				return telemetry.ServiceURL(cfg.HostIP, w.JMXPort), w.ServerUser, w.ServerTempPsw, nil
			},
		}
	}

	return &App{
		cfg:        cfg,
		store:      st,
		guard:      guard,
		supervisor: sup,
		bootstrap:  boot,
		shutdown:   &shutdown.Controller{Store: st, Dialer: console.RCONDialer{}},
		migrate:    &migrate.Controller{Store: st, Bootstrap: boot, TempDir: cfg.Paths.TempDir},
		heap:       heap,
	}, nil
}

// Close releases the store.
func (a *App) Close() error { return a.store.Close() }

// CreateWorld provisions a new world.
func (a *App) CreateWorld(ctx context.Context, p CreateParams) Result {
	res := a.bootstrap.CreateWorld(ctx, bootstrap.CreateRequest{
		Name:         p.Name,
		Software:     p.Software,
		Version:      p.Version,
		MaxPlayers:   p.MaxPlayers,
		ServerPort:   p.ServerPort,
		RCONPort:     p.RCONPort,
		JMXPort:      p.JMXPort,
		RMIPort:      p.RMIPort,
		MemoryMB:     p.MemoryMB,
		InsertIntoDB: true,
	})
	metrics.IncBootstrap(res.Status)
	return res
}

// StartWorld runs a world's server in the foreground of the calling
// goroutine until the process exits.
func (a *App) StartWorld(ctx context.Context, worldNumber string) (int, string) {
	w, err := a.store.Get(ctx, worldNumber)
	if err != nil {
		return -1, err.Error()
	}
	sw, err := artifact.ParseSoftware(w.Software)
	if err != nil {
		return -1, err.Error()
	}
	metrics.IncStart(worldNumber)
	metrics.AddRunning(1)
	defer metrics.AddRunning(-1)
	return a.supervisor.Start(ctx, supervisor.StartSpec{
		WorldNumber: w.WorldNumber,
		Dir:         a.cfg.Paths.WorldDir(w.WorldNumber),
		Software:    sw,
		Version:     w.Version,
		MemoryMB:    a.cfg.MemoryMB,
		HostIP:      a.cfg.HostIP,
		ServerPort:  w.ServerPort,
		RCONPort:    w.RCONPort,
		JMXPort:     w.JMXPort,
		RMIPort:     w.RMIPort,
	})
}

// StopWorld gracefully stops a running world after the grace countdown
// ("MM:SS", empty for immediate).
func (a *App) StopWorld(ctx context.Context, worldNumber, grace string) string {
	msg := a.shutdown.Stop(ctx, shutdown.StopRequest{
		WorldNumber: worldNumber,
		Host:        a.cfg.HostIP,
		Grace:       grace,
	})
	metrics.IncStop(worldNumber)
	return msg
}

// RestartWorld stops the world and starts it again.
func (a *App) RestartWorld(ctx context.Context, worldNumber, grace string) string {
	return a.shutdown.Restart(ctx, shutdown.StopRequest{
		WorldNumber: worldNumber,
		Host:        a.cfg.HostIP,
		Grace:       grace,
	}, func(ctx context.Context) (int, string) {
		return a.StartWorld(ctx, worldNumber)
	})
}

// ChangeVersion rebuilds a world on different server software,
// optionally preserving its dimension data.
func (a *App) ChangeVersion(ctx context.Context, worldNumber, software, version string, keepWorld bool) Result {
	res := a.migrate.ChangeVersion(ctx, migrate.Request{
		WorldNumber: worldNumber,
		Software:    software,
		Version:     version,
		KeepWorld:   keepWorld,
	})
	metrics.IncMigration(res.Status)
	return res
}

// DeleteWorld removes a world's record and directory.
func (a *App) DeleteWorld(ctx context.Context, worldNumber string) error {
	return a.bootstrap.DeleteWorld(ctx, worldNumber)
}

// ListWorlds returns every recorded world.
func (a *App) ListWorlds(ctx context.Context) ([]World, error) {
	return a.store.List(ctx)
}

// WorldStatus reports the record, the supervisor state and, for a
// running world, the current player count.
func (a *App) WorldStatus(ctx context.Context, worldNumber string) (Status, error) {
	w, err := a.store.Get(ctx, worldNumber)
	if err != nil {
		return Status{}, err
	}
	st := Status{World: w, State: a.supervisor.StateOf(worldNumber).String()}
	if size, err := telemetry.WorldSize(a.cfg.Paths.WorldDir(worldNumber)); err == nil {
		st.WorldSizeBytes = size
	}
	if st.State == supervisor.StateRunning.String() {
		online, err := a.pinger.OnlinePlayers(a.cfg.HostIP, w.ServerPort, w.Version)
		if err != nil {
			slog.Debug("player count unavailable", "world", worldNumber, "error", err)
		} else {
			st.OnlinePlayers = online
		}
		if up, err := telemetry.Uptime(a.cfg.Paths.StartupTimeFile(worldNumber)); err == nil {
			st.UptimeSeconds = int64(up.Seconds())
		}
		if a.heap != nil {
			if hu, err := a.heap.Sample(ctx, worldNumber); err != nil {
				slog.Debug("heap sample unavailable", "world", worldNumber, "error", err)
			} else {
				st.HeapUsedBytes = hu.UsedBytes
				st.HeapMaxBytes = hu.MaxBytes
			}
		}
	}
	return st, nil
}

// NewHTTPServer starts the REST surface on the configured listen
// address.
func (a *App) NewHTTPServer() (*http.Server, error) {
	if a.cfg.Server.Listen == "" {
		return nil, fmt.Errorf("worldsmith: server.listen not configured")
	}
	return server.NewServer(a.cfg.Server.Listen, a.cfg.Server.BasePath, a)
}

// ServeMetrics registers the collectors and serves them on the
// configured metrics address.
func (a *App) ServeMetrics() (*http.Server, error) {
	if a.cfg.Metrics.Listen == "" {
		return nil, fmt.Errorf("worldsmith: metrics.listen not configured")
	}
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: a.cfg.Metrics.Listen, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv, nil
}
