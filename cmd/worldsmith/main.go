package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/worldsmith/worldsmith"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds the persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
}

// CreateFlags holds flags for the create command.
type CreateFlags struct {
	Name       string
	Software   string
	Version    string
	MaxPlayers int
	ServerPort int
	RCONPort   int
	JMXPort    int
	RMIPort    int
	MemoryMB   int
}

// StopFlags holds flags for stop and restart.
type StopFlags struct {
	Grace string
}

// MigrateFlags holds flags for change-version.
type MigrateFlags struct {
	Software  string
	Version   string
	KeepWorld bool
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	createFlags := &CreateFlags{}
	stopFlags := &StopFlags{}
	migrateFlags := &MigrateFlags{}

	root := &cobra.Command{
		Use:   "worldsmith",
		Short: "Game-server world lifecycle orchestrator",
		Long: `Worldsmith provisions, runs and migrates game-server worlds.

Examples:
  worldsmith create --software=Vanilla --version=1.21 --server-port=25565
  worldsmith start 123456789012
  worldsmith stop 123456789012 --grace=05:00
  worldsmith serve                  # REST API and metrics`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&globalFlags.ConfigPath, "config", "c", "worldsmith.toml", "path to TOML config file")

	root.AddCommand(
		createCreateCommand(globalFlags, createFlags),
		createStartCommand(globalFlags),
		createStopCommand(globalFlags, stopFlags),
		createRestartCommand(globalFlags, stopFlags),
		createDeleteCommand(globalFlags),
		createChangeVersionCommand(globalFlags, migrateFlags),
		createListCommand(globalFlags),
		createStatusCommand(globalFlags),
		createServeCommand(globalFlags),
	)
	return root
}

func openApp(flags *GlobalFlags) (*worldsmith.App, error) {
	cfg, err := worldsmith.LoadConfig(flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	return worldsmith.New(cfg)
}

func createCreateCommand(g *GlobalFlags, f *CreateFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Provision a new world",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(g)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			res := app.CreateWorld(cmd.Context(), worldsmith.CreateParams{
				Name:       f.Name,
				Software:   f.Software,
				Version:    f.Version,
				MaxPlayers: f.MaxPlayers,
				ServerPort: f.ServerPort,
				RCONPort:   f.RCONPort,
				JMXPort:    f.JMXPort,
				RMIPort:    f.RMIPort,
				MemoryMB:   f.MemoryMB,
			})
			fmt.Printf("%s: %s (%s)\n", res.Status, res.Message, res.WorldNumber)
			if res.Status != "Success" {
				return fmt.Errorf("create failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&f.Name, "name", "", "world display name (default '<software> Server')")
	cmd.Flags().StringVar(&f.Software, "software", "", "server software (Vanilla, Paper, Forge, ...)")
	cmd.Flags().StringVar(&f.Version, "version", "", "game version")
	cmd.Flags().IntVar(&f.MaxPlayers, "max-players", 20, "player limit")
	cmd.Flags().IntVar(&f.ServerPort, "server-port", 25565, "game port")
	cmd.Flags().IntVar(&f.RCONPort, "rcon-port", 25575, "remote console port")
	cmd.Flags().IntVar(&f.JMXPort, "jmx-port", 25585, "management port")
	cmd.Flags().IntVar(&f.RMIPort, "rmi-port", 25586, "management registry port")
	cmd.Flags().IntVar(&f.MemoryMB, "memory-mb", 0, "JVM heap size (0 uses the config default)")
	_ = cmd.MarkFlagRequired("software")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}

func createStartCommand(g *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "start <world-number>",
		Short: "Run a world's server until it exits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(g)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			code, msg := app.StartWorld(cmd.Context(), args[0])
			if code != 0 {
				return fmt.Errorf("start: %s", msg)
			}
			return nil
		},
	}
}

func createStopCommand(g *GlobalFlags, f *StopFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop <world-number>",
		Short: "Gracefully stop a running world",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(g)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			fmt.Println(app.StopWorld(cmd.Context(), args[0], f.Grace))
			return nil
		},
	}
	cmd.Flags().StringVar(&f.Grace, "grace", "", "countdown before stopping, as MM:SS")
	return cmd
}

func createRestartCommand(g *GlobalFlags, f *StopFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart <world-number>",
		Short: "Stop a world and start it again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(g)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			fmt.Println(app.RestartWorld(cmd.Context(), args[0], f.Grace))
			return nil
		},
	}
	cmd.Flags().StringVar(&f.Grace, "grace", "", "countdown before restarting, as MM:SS")
	return cmd
}

func createDeleteCommand(g *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <world-number>",
		Short: "Remove a world's record and directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(g)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			if err := app.DeleteWorld(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("deleted", args[0])
			return nil
		},
	}
}

func createChangeVersionCommand(g *GlobalFlags, f *MigrateFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "change-version <world-number>",
		Short: "Rebuild a world on different software or version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(g)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			res := app.ChangeVersion(cmd.Context(), args[0], f.Software, f.Version, f.KeepWorld)
			fmt.Printf("%s: %s (%s)\n", res.Status, res.Message, res.WorldNumber)
			if res.Status != "Success" {
				return fmt.Errorf("change-version failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&f.Software, "software", "", "target server software")
	cmd.Flags().StringVar(&f.Version, "version", "", "target game version")
	cmd.Flags().BoolVar(&f.KeepWorld, "keep-world", true, "carry the dimension data into the rebuilt world")
	_ = cmd.MarkFlagRequired("software")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}

func createListCommand(g *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded worlds",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(g)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			worlds, err := app.ListWorlds(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NUMBER\tNAME\tSOFTWARE\tVERSION\tPORT")
			for _, wd := range worlds {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", wd.WorldNumber, wd.Name, wd.Software, wd.Version, wd.ServerPort)
			}
			return w.Flush()
		},
	}
}

func createStatusCommand(g *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status <world-number>",
		Short: "Show a world's record and live state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(g)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			st, err := app.WorldStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			st.World.RCONPassword = ""
			st.World.ServerTempPsw = ""
			out, err := json.MarshalIndent(st, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func createServeCommand(g *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and metrics until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(g)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			httpSrv, err := app.NewHTTPServer()
			if err != nil {
				return err
			}
			metricsSrv, err := app.ServeMetrics()
			if err != nil {
				fmt.Fprintln(os.Stderr, "metrics disabled:", err)
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig

			ctx := context.Background()
			_ = httpSrv.Shutdown(ctx)
			if metricsSrv != nil {
				_ = metricsSrv.Shutdown(ctx)
			}
			return nil
		},
	}
}
