package command

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/rolloutkv/internal/cli/config"
	"github.com/yndnr/rolloutkv/internal/cli/output"
	"github.com/yndnr/rolloutkv/internal/telemetry/logger"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage connection profiles",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective connection and saved profiles",
				Action: configShow,
			},
			{
				Name:      "save",
				Usage:     "Save the effective connection as profile NAME",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "use",
						Usage: "Also make NAME the current profile",
					},
				},
				Action: configSave,
			},
			{
				Name:      "use",
				Usage:     "Make profile NAME the current profile",
				ArgsUsage: "NAME",
				Action:    configUse,
			},
		},
	}
}

// profileView is one profile as shown by config show.
type profileView struct {
	Name      string `json:"name"`
	Current   bool   `json:"current"`
	Server    string `json:"server"`
	Instance  string `json:"instance"`
	Transport string `json:"transport"`
	Timeout   string `json:"timeout"`
	AdminKey  string `json:"admin_key,omitempty"`
	CACert    string `json:"ca_cert,omitempty"`
}

// configView is the output of config show.
type configView struct {
	Path      string        `json:"path"`
	Output    string        `json:"output"`
	Effective profileView   `json:"effective"`
	Profiles  []profileView `json:"profiles"`
}

// Table implements output.Tabular.
func (v configView) Table() *output.Table {
	t := output.NewTable("PROFILE", "SERVER", "INSTANCE", "TRANSPORT", "TIMEOUT", "ADMIN_KEY")
	rows := append([]profileView{v.Effective}, v.Profiles...)
	for i, p := range rows {
		name := p.Name
		if i == 0 {
			name = "(effective)"
		} else if p.Current {
			name += " *"
		}
		t.AddRow(name, p.Server, p.Instance, p.Transport, p.Timeout, p.AdminKey)
	}
	return t
}

func newProfileView(name string, current bool, p config.Profile) profileView {
	return profileView{
		Name:      name,
		Current:   current,
		Server:    p.Server,
		Instance:  p.Instance,
		Transport: p.Transport,
		Timeout:   p.Timeout.String(),
		AdminKey:  logger.Mask(p.AdminKey),
		CACert:    p.CACert,
	}
}

func configShow(c *cli.Context) error {
	cfg := getConfig(c)
	flags := getFlags(c)

	conn := flags.Connection
	view := configView{
		Path:   flags.ConfigPath,
		Output: string(flags.Output),
		Effective: newProfileView(flags.Profile, true, config.Profile{
			Server:    conn.Server,
			Instance:  conn.Instance,
			Transport: conn.Transport,
			Timeout:   conn.Timeout,
			AdminKey:  conn.AdminKey,
			CACert:    conn.CACert,
		}),
		Profiles: []profileView{},
	}
	for _, name := range cfg.ProfileNames() {
		view.Profiles = append(view.Profiles, newProfileView(name, name == cfg.CurrentProfile, cfg.Profiles[name]))
	}
	return printResult(c, view)
}

func configSave(c *cli.Context) error {
	args, err := requireArgs(c, 1)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(args[0])
	if name == "" {
		return fmt.Errorf("profile name required")
	}

	cfg := getConfig(c)
	flags := getFlags(c)
	conn := flags.Connection
	cfg.SetProfile(name, config.Profile{
		Server:    conn.Server,
		Instance:  conn.Instance,
		Transport: conn.Transport,
		Timeout:   conn.Timeout,
		AdminKey:  conn.AdminKey,
		CACert:    conn.CACert,
	})
	if c.Bool("use") {
		cfg.CurrentProfile = name
	}

	if err := config.Save(cfg, flags.ConfigPath); err != nil {
		return err
	}
	return printResult(c, StatusResult{Op: "config save", Key: name, Status: "saved"})
}

func configUse(c *cli.Context) error {
	args, err := requireArgs(c, 1)
	if err != nil {
		return err
	}
	cfg := getConfig(c)
	if _, ok := cfg.Profiles[args[0]]; !ok {
		return fmt.Errorf("unknown profile %q (known: %s)", args[0], strings.Join(cfg.ProfileNames(), ", "))
	}
	cfg.CurrentProfile = args[0]

	if err := config.Save(cfg, getFlags(c).ConfigPath); err != nil {
		return err
	}
	return printResult(c, StatusResult{Op: "config use", Key: args[0], Status: "current"})
}
