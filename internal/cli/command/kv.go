package command

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/rolloutkv/internal/adapter"
	"github.com/yndnr/rolloutkv/internal/core/domain"
)

func intFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "int",
		Usage: "Store the value as a 64-bit integer",
	}
}

func modeFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "mode",
		Usage: "Write mode: confirmed, best-effort",
		Value: "confirmed",
	}
}

func byFlag() cli.Flag {
	return &cli.Int64Flag{
		Name:  "by",
		Usage: "Amount to add or subtract",
		Value: 1,
	}
}

// GetCommand returns the get command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Read the scalar at KEY",
		ArgsUsage: "KEY",
		Action:    getAction,
	}
}

func getAction(c *cli.Context) error {
	key, err := requireArgs(c, 1)
	if err != nil {
		return err
	}
	store, err := storage(c)
	if err != nil {
		return err
	}

	v, err := store.Get(commandContext(c), key[0])
	if err != nil {
		return err
	}
	return printResult(c, ValueResult{Key: key[0], Value: v})
}

// SetCommand returns the set command.
func SetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Store VALUE at KEY",
		ArgsUsage: "KEY VALUE",
		Flags:     []cli.Flag{intFlag(), modeFlag()},
		Action:    setAction,
	}
}

func setAction(c *cli.Context) error {
	args, err := requireArgs(c, 2)
	if err != nil {
		return err
	}
	value, err := parseValue(args[1], c.Bool("int"))
	if err != nil {
		return err
	}
	opts, err := writeOptions(c)
	if err != nil {
		return err
	}
	store, err := storage(c)
	if err != nil {
		return err
	}

	if err := store.SetWith(commandContext(c), args[0], value, opts); err != nil {
		return err
	}
	return printResult(c, StatusResult{Op: string(domain.OpSet), Key: args[0], Status: writeStatus(opts)})
}

// GetSetCommand returns the getset command.
func GetSetCommand() *cli.Command {
	return &cli.Command{
		Name:      "getset",
		Usage:     "Store VALUE at KEY and print the previous value",
		ArgsUsage: "KEY VALUE",
		Flags:     []cli.Flag{intFlag()},
		Action:    getSetAction,
	}
}

func getSetAction(c *cli.Context) error {
	args, err := requireArgs(c, 2)
	if err != nil {
		return err
	}
	value, err := parseValue(args[1], c.Bool("int"))
	if err != nil {
		return err
	}
	store, err := storage(c)
	if err != nil {
		return err
	}

	prev, err := store.GetAndSet(commandContext(c), args[0], value)
	if err != nil {
		return err
	}
	return printResult(c, GetSetResult{Key: args[0], Previous: prev, Value: value})
}

// DelCommand returns the del command.
func DelCommand() *cli.Command {
	return &cli.Command{
		Name:      "del",
		Usage:     "Delete KEY, scalar or set",
		ArgsUsage: "KEY",
		Action:    delAction,
	}
}

func delAction(c *cli.Context) error {
	args, err := requireArgs(c, 1)
	if err != nil {
		return err
	}
	store, err := storage(c)
	if err != nil {
		return err
	}

	if err := store.Delete(commandContext(c), args[0]); err != nil {
		return err
	}
	return printResult(c, StatusResult{Op: string(domain.OpDelete), Key: args[0], Status: "ok"})
}

// KeysCommand returns the keys command.
func KeysCommand() *cli.Command {
	return &cli.Command{
		Name:      "keys",
		Usage:     "List keys starting with PREFIX (all keys when omitted)",
		ArgsUsage: "[PREFIX]",
		Action:    keysAction,
	}
}

func keysAction(c *cli.Context) error {
	if c.NArg() > 1 {
		return fmt.Errorf("expected at most 1 argument, got %d", c.NArg())
	}
	prefix := c.Args().First()
	store, err := storage(c)
	if err != nil {
		return err
	}

	keys, err := store.GetKeysByPrefix(commandContext(c), prefix)
	if err != nil {
		return err
	}
	return printResult(c, KeysResult{Prefix: prefix, Keys: keys})
}

// MGetCommand returns the mget command.
func MGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "mget",
		Usage:     "Read several scalars in one snapshot",
		ArgsUsage: "KEY [KEY...]",
		Action:    mgetAction,
	}
}

func mgetAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one key required")
	}
	keys := c.Args().Slice()
	store, err := storage(c)
	if err != nil {
		return err
	}

	values, err := store.GetMany(commandContext(c), keys)
	if err != nil {
		return err
	}
	result := make(ValuesResult, len(keys))
	for i, k := range keys {
		result[i] = ValueResult{Key: k, Value: values[i]}
	}
	return printResult(c, result)
}

// IncrCommand returns the incr command.
func IncrCommand() *cli.Command {
	return &cli.Command{
		Name:      "incr",
		Usage:     "Add to the integer at KEY, starting from 0",
		ArgsUsage: "KEY",
		Flags:     []cli.Flag{byFlag()},
		Action:    counterAction(false),
	}
}

// DecrCommand returns the decr command.
func DecrCommand() *cli.Command {
	return &cli.Command{
		Name:      "decr",
		Usage:     "Subtract from the integer at KEY, starting from 0",
		ArgsUsage: "KEY",
		Flags:     []cli.Flag{byFlag()},
		Action:    counterAction(true),
	}
}

func counterAction(decrement bool) cli.ActionFunc {
	return func(c *cli.Context) error {
		args, err := requireArgs(c, 1)
		if err != nil {
			return err
		}
		store, err := storage(c)
		if err != nil {
			return err
		}

		var n int64
		if decrement {
			n, err = store.Decrement(commandContext(c), args[0], c.Int64("by"))
		} else {
			n, err = store.Increment(commandContext(c), args[0], c.Int64("by"))
		}
		if err != nil {
			return err
		}
		return printResult(c, CounterResult{Key: args[0], Value: n})
	}
}

func storage(c *cli.Context) (*adapter.Adapter, error) {
	mgr := GetConnectionManager(c)
	if mgr == nil {
		return nil, fmt.Errorf("connection manager not initialized")
	}
	return mgr.Storage()
}

// requireArgs returns exactly n positional arguments.
func requireArgs(c *cli.Context, n int) ([]string, error) {
	if c.NArg() != n {
		return nil, fmt.Errorf("expected %d argument(s), got %d (usage: %s %s)", n, c.NArg(), c.Command.Name, c.Command.ArgsUsage)
	}
	return c.Args().Slice(), nil
}

// parseValue builds a scalar from a command argument.
func parseValue(s string, asInt bool) (domain.Value, error) {
	if !asInt {
		return domain.String(s), nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return domain.Absent(), domain.ErrInvalidValue.WithDetails(fmt.Sprintf("%q is not a 64-bit integer", s))
	}
	return domain.Int(n), nil
}

func writeOptions(c *cli.Context) (adapter.WriteOptions, error) {
	mode, err := adapter.ParseWriteMode(c.String("mode"))
	if err != nil {
		return adapter.WriteOptions{}, err
	}
	return adapter.WriteOptions{Mode: mode}, nil
}

func writeStatus(opts adapter.WriteOptions) string {
	if opts.Mode == adapter.WriteBestEffort {
		return "queued"
	}
	return "ok"
}
