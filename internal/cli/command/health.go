package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/rolloutkv/internal/cli/output"
)

// HealthCommand returns the health command.
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check server liveness and readiness",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "ready",
				Usage: "Also require the server to be ready",
			},
		},
		Action: healthAction,
	}
}

// healthResult reports the server health check.
type healthResult struct {
	Server string `json:"server"`
	Status string `json:"status"`
	Ready  *bool  `json:"ready,omitempty"`
}

// Table implements output.Tabular.
func (h healthResult) Table() *output.Table {
	t := output.NewTable("SERVER", "STATUS", "READY")
	ready := ""
	if h.Ready != nil {
		ready = fmt.Sprintf("%t", *h.Ready)
	}
	return t.AddRow(h.Server, h.Status, ready)
}

func healthAction(c *cli.Context) error {
	mgr := GetConnectionManager(c)
	if mgr == nil {
		return fmt.Errorf("connection manager not initialized")
	}
	client, err := mgr.HTTPClient()
	if err != nil {
		return err
	}
	ctx := commandContext(c)

	var reply struct {
		Status string `json:"status"`
	}
	if err := client.Get(ctx, "/health", &reply); err != nil {
		return fmt.Errorf("server unhealthy: %w", err)
	}
	result := healthResult{Server: client.BaseURL(), Status: reply.Status}

	if c.Bool("ready") {
		ready := client.Get(ctx, "/ready", nil) == nil
		result.Ready = &ready
		if err := printResult(c, result); err != nil {
			return err
		}
		if !ready {
			return fmt.Errorf("server not ready")
		}
		return nil
	}
	return printResult(c, result)
}
