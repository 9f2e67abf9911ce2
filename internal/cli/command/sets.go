package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/rolloutkv/internal/core/domain"
)

// SIsMemberCommand returns the sismember command.
func SIsMemberCommand() *cli.Command {
	return &cli.Command{
		Name:      "sismember",
		Usage:     "Check whether MEMBER belongs to the set at KEY",
		ArgsUsage: "KEY MEMBER",
		Action:    sIsMemberAction,
	}
}

func sIsMemberAction(c *cli.Context) error {
	args, err := requireArgs(c, 2)
	if err != nil {
		return err
	}
	store, err := storage(c)
	if err != nil {
		return err
	}

	ok, err := store.SetContains(commandContext(c), args[0], args[1])
	if err != nil {
		return err
	}
	return printResult(c, MembershipResult{Key: args[0], Member: args[1], IsMember: ok})
}

// SAddCommand returns the sadd command.
func SAddCommand() *cli.Command {
	return &cli.Command{
		Name:      "sadd",
		Usage:     "Add members to the set at KEY",
		ArgsUsage: "KEY MEMBER [MEMBER...]",
		Flags:     []cli.Flag{modeFlag()},
		Action:    setMembersAction(domain.OpSetAdd),
	}
}

// SRemCommand returns the srem command.
func SRemCommand() *cli.Command {
	return &cli.Command{
		Name:      "srem",
		Usage:     "Remove members from the set at KEY",
		ArgsUsage: "KEY MEMBER [MEMBER...]",
		Flags:     []cli.Flag{modeFlag()},
		Action:    setMembersAction(domain.OpSetRemove),
	}
}

func setMembersAction(op domain.Op) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() < 2 {
			return fmt.Errorf("usage: %s %s", c.Command.Name, c.Command.ArgsUsage)
		}
		key, members := c.Args().First(), c.Args().Tail()
		opts, err := writeOptions(c)
		if err != nil {
			return err
		}
		store, err := storage(c)
		if err != nil {
			return err
		}

		if op == domain.OpSetAdd {
			err = store.SetAddWith(commandContext(c), key, members, opts)
		} else {
			err = store.SetRemoveWith(commandContext(c), key, members, opts)
		}
		if err != nil {
			return err
		}
		return printResult(c, StatusResult{Op: string(op), Key: key, Status: writeStatus(opts)})
	}
}

// SMembersCommand returns the smembers command.
func SMembersCommand() *cli.Command {
	return &cli.Command{
		Name:      "smembers",
		Usage:     "List the members of the set at KEY",
		ArgsUsage: "KEY",
		Action:    sMembersAction,
	}
}

func sMembersAction(c *cli.Context) error {
	args, err := requireArgs(c, 1)
	if err != nil {
		return err
	}
	store, err := storage(c)
	if err != nil {
		return err
	}

	members, err := store.SetMembers(commandContext(c), args[0])
	if err != nil {
		return err
	}
	return printResult(c, MembersResult{Key: args[0], Members: members})
}
