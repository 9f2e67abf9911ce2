package command

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/rolloutkv/internal/cli/output"
	"github.com/yndnr/rolloutkv/internal/core/domain"
	"github.com/yndnr/rolloutkv/internal/infra/buildinfo"
	"github.com/yndnr/rolloutkv/pkg/token"
)

// AdminCommand returns the admin subcommand group.
func AdminCommand() *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "Administrative commands (require --admin-key)",
		Subcommands: []*cli.Command{
			{
				Name:  "clear-all",
				Usage: "Remove every entry of the instance",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Skip the confirmation prompt",
					},
				},
				Action: adminClearAll,
			},
			{
				Name:   "status",
				Usage:  "Show the server status summary",
				Action: adminStatus,
			},
			{
				Name:      "hash-key",
				Usage:     "Hash an admin key for security.admin_key_hash",
				ArgsUsage: "[KEY]",
				Description: "Reads the key from the argument, or from stdin when omitted.\n" +
					"Use --generate to create a new random key instead.",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "generate",
						Usage: "Generate a new admin key",
					},
				},
				Action: adminHashKey,
			},
		},
	}
}

func adminClearAll(c *cli.Context) error {
	conn := getFlags(c).Connection
	if !c.Bool("yes") {
		ok, err := confirm(c, fmt.Sprintf("Remove every entry of instance %q on %s?", conn.Instance, conn.Server))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("aborted")
		}
	}

	mgr := GetConnectionManager(c)
	if mgr == nil {
		return fmt.Errorf("connection manager not initialized")
	}
	maint, err := mgr.Maintenance()
	if err != nil {
		return err
	}
	if err := maint.ClearAll(commandContext(c)); err != nil {
		return err
	}
	return printResult(c, StatusResult{Op: string(domain.OpClearAll), Status: "cleared"})
}

// statusSummary mirrors the admin status response.
type statusSummary struct {
	Status        string         `json:"status"`
	Build         buildinfo.Info `json:"build"`
	StartedAt     time.Time      `json:"started_at"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	InstanceCount int            `json:"instance_count"`
	Instances     []string       `json:"instances"`
}

// Table implements output.Tabular.
func (s statusSummary) Table() *output.Table {
	return output.NewTable("FIELD", "VALUE").
		AddRow("status", s.Status).
		AddRow("version", s.Build.Version).
		AddRow("commit", s.Build.Commit).
		AddRow("go", s.Build.GoVersion).
		AddRow("started", s.StartedAt.Format(time.RFC3339)).
		AddRow("uptime", (time.Duration(s.UptimeSeconds) * time.Second).String()).
		AddRow("instances", fmt.Sprintf("%d", s.InstanceCount)).
		AddRow("names", strings.Join(s.Instances, ", "))
}

func adminStatus(c *cli.Context) error {
	mgr := GetConnectionManager(c)
	if mgr == nil {
		return fmt.Errorf("connection manager not initialized")
	}
	client, err := mgr.HTTPClient()
	if err != nil {
		return err
	}
	if getFlags(c).Connection.AdminKey == "" {
		return domain.ErrAdminKeyRequired
	}

	var summary statusSummary
	if err := client.Get(commandContext(c), "/admin/v1/status/summary", &summary); err != nil {
		return err
	}
	return printResult(c, summary)
}

// hashedKey is the output of admin hash-key.
type hashedKey struct {
	Key  string `json:"key,omitempty"`
	Hash string `json:"hash"`
}

// Table implements output.Tabular.
func (h hashedKey) Table() *output.Table {
	t := output.NewTable("FIELD", "VALUE")
	if h.Key != "" {
		t.AddRow("key", h.Key)
	}
	return t.AddRow("hash", h.Hash)
}

func adminHashKey(c *cli.Context) error {
	var (
		key       string
		generated bool
		err       error
	)
	switch {
	case c.Bool("generate"):
		if c.NArg() > 0 {
			return fmt.Errorf("--generate takes no argument")
		}
		key, err = token.GenerateAdminKey()
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		generated = true
	case c.NArg() == 1:
		key = c.Args().First()
	case c.NArg() == 0:
		key, err = readLine(stdin(c))
		if err != nil {
			return fmt.Errorf("read key: %w", err)
		}
	default:
		return fmt.Errorf("expected at most 1 argument, got %d", c.NArg())
	}
	if key == "" {
		return fmt.Errorf("empty key")
	}

	hash, err := token.Hash(key)
	if err != nil {
		return fmt.Errorf("hash key: %w", err)
	}

	result := hashedKey{Hash: hash}
	if generated {
		result.Key = key
	}
	return printResult(c, result)
}

// confirm asks a yes/no question on the app writer and reads the answer
// from stdin.
func confirm(c *cli.Context, question string) (bool, error) {
	w := c.App.Writer
	if w == nil {
		w = os.Stdout
	}
	fmt.Fprintf(w, "%s [y/N]: ", question)
	answer, err := readLine(stdin(c))
	if err != nil && err != io.EOF {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

func stdin(c *cli.Context) io.Reader {
	if c.App.Reader != nil {
		return c.App.Reader
	}
	return os.Stdin
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	line = strings.TrimSpace(line)
	if err == io.EOF && line != "" {
		err = nil
	}
	return line, err
}
