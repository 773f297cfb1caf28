package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// CatCmd returns the cat command.
func CatCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("cat", flag.ContinueOnError),
		Usage: "cat <file>",
		Short: "Print a file under a shared lock",
		Long: `Print the committed content of a file.

The file is read under a shared lock, so a concurrent writer's pending
transaction is never visible.`,
		Args: 1,
		Exec: func(_ context.Context, o *IO, args []string) error {
			da, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer da.Close()

			data, err := da.Load()
			if err != nil {
				return err
			}

			_, err = o.Write(data)

			return err
		},
	}
}
