package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/rolloutkv/internal/cli/config"
	"github.com/yndnr/rolloutkv/internal/cli/connection"
	"github.com/yndnr/rolloutkv/internal/cli/output"
	"github.com/yndnr/rolloutkv/internal/infra/buildinfo"
	"github.com/yndnr/rolloutkv/internal/telemetry/logger"
)

const (
	metaConnMgr = "connMgr"
	metaConfig  = "cliConfig"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "rolloutkv-cli",
		Usage:   "rolloutkv command-line client",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			GetCommand(),
			SetCommand(),
			GetSetCommand(),
			DelCommand(),
			KeysCommand(),
			MGetCommand(),
			IncrCommand(),
			DecrCommand(),
			SIsMemberCommand(),
			SAddCommand(),
			SRemCommand(),
			SMembersCommand(),
			AdminCommand(),
			HealthCommand(),
			ConfigCommand(),
		},
		Before: before,
		After:  after,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "CLI configuration file",
			EnvVars: []string{"ROLLOUTKV_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"p"},
			Usage:   "Saved connection profile (defaults to the current profile)",
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "Server address (e.g., 127.0.0.1:7380)",
			EnvVars: []string{"ROLLOUTKV_SERVER"},
		},
		&cli.StringFlag{
			Name:    "instance",
			Aliases: []string{"i"},
			Usage:   "Engine instance name",
			EnvVars: []string{"ROLLOUTKV_INSTANCE"},
		},
		&cli.StringFlag{
			Name:    "transport",
			Aliases: []string{"t"},
			Usage:   "Transport: http, connect",
		},
		&cli.StringFlag{
			Name:    "admin-key",
			Usage:   "Admin key for admin commands",
			EnvVars: []string{"ROLLOUTKV_ADMIN_KEY"},
		},
		&cli.StringFlag{
			Name:  "ca-cert",
			Usage: "PEM file of an extra CA to trust for https servers",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Per-request timeout",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Log requests to stderr",
		},
	}
}

// GlobalFlags holds the resolved global settings of one invocation.
type GlobalFlags struct {
	ConfigPath string
	Profile    string
	Connection connection.Connection
	Output     output.Format
	Verbose    bool
}

// ParseGlobalFlags resolves the global flags over the CLI configuration.
// Explicit flags win over the profile, which wins over the defaults.
func ParseGlobalFlags(c *cli.Context, cfg *config.CLIConfig) (*GlobalFlags, error) {
	profileName := c.String("profile")
	if profileName == "" {
		profileName = cfg.CurrentProfile
	}
	if c.IsSet("profile") {
		if _, ok := cfg.Profiles[profileName]; !ok {
			return nil, fmt.Errorf("unknown profile %q", profileName)
		}
	}
	p, _ := cfg.Profile(profileName)

	if c.IsSet("server") {
		p.Server = c.String("server")
	}
	if c.IsSet("instance") {
		p.Instance = c.String("instance")
	}
	if c.IsSet("transport") {
		p.Transport = c.String("transport")
	}
	if c.IsSet("admin-key") {
		p.AdminKey = c.String("admin-key")
	}
	if c.IsSet("ca-cert") {
		p.CACert = c.String("ca-cert")
	}
	if c.IsSet("timeout") {
		p.Timeout = c.Duration("timeout")
	}

	formatName := cfg.Output
	if c.IsSet("output") {
		formatName = c.String("output")
	}
	format, err := output.ParseFormat(formatName)
	if err != nil {
		return nil, err
	}

	return &GlobalFlags{
		ConfigPath: c.String("config"),
		Profile:    profileName,
		Connection: connection.Connection{
			Name:      profileName,
			Server:    p.Server,
			Instance:  p.Instance,
			Transport: p.Transport,
			AdminKey:  p.AdminKey,
			Timeout:   p.Timeout,
			CACert:    p.CACert,
		},
		Output:  format,
		Verbose: c.Bool("verbose"),
	}, nil
}

func before(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("load cli config: %w", err)
	}

	flags, err := ParseGlobalFlags(c, cfg)
	if err != nil {
		return err
	}

	log := newLogger(c.App.ErrWriter, flags.Verbose)
	mgr := connection.NewManager(log)

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[metaConfig] = cfg
	c.App.Metadata[metaConnMgr] = mgr
	c.App.Metadata["flags"] = flags

	return mgr.Connect(c.Context, &flags.Connection)
}

func after(c *cli.Context) error {
	mgr := GetConnectionManager(c)
	if mgr == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := mgr.Disconnect(ctx); err != nil {
		return fmt.Errorf("pending writes: %w", err)
	}
	return nil
}

// newLogger returns a text logger on w. Without verbose only errors are
// shown.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := "error"
	if verbose {
		level = "debug"
	}
	l, err := logger.New(logger.Config{Level: level, Format: "text", Output: w})
	if err != nil {
		return slog.Default()
	}
	return l
}

// GetConnectionManager retrieves the connection manager from context.
func GetConnectionManager(c *cli.Context) *connection.Manager {
	if mgr, ok := c.App.Metadata[metaConnMgr].(*connection.Manager); ok {
		return mgr
	}
	return nil
}

func getFlags(c *cli.Context) *GlobalFlags {
	if f, ok := c.App.Metadata["flags"].(*GlobalFlags); ok {
		return f
	}
	return &GlobalFlags{Output: output.FormatTable}
}

func getConfig(c *cli.Context) *config.CLIConfig {
	if cfg, ok := c.App.Metadata[metaConfig].(*config.CLIConfig); ok {
		return cfg
	}
	return config.Default()
}

// printResult writes data in the selected output format.
func printResult(c *cli.Context, data any) error {
	w := c.App.Writer
	if w == nil {
		w = os.Stdout
	}
	return output.NewFormatter(getFlags(c).Output).Format(w, data)
}

// commandContext returns the context commands send requests with.
func commandContext(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}
