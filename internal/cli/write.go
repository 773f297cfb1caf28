package cli

import (
	"context"
	"fmt"
	"io"

	flag "github.com/spf13/pflag"
)

// WriteCmd returns the write command.
func WriteCmd(a *app) *Command {
	fs := flag.NewFlagSet("write", flag.ContinueOnError)
	appendMode := fs.BoolP("append", "a", false, "Append instead of replacing the content")

	return &Command{
		Flags: fs,
		Usage: "write [--append] <file>",
		Short: "Replace or extend a file with stdin",
		Long: `Read standard input and save it to a file as one transaction.

In atomic mode readers see either the old or the new content, never a
mix. With --append the input is added after the current content.`,
		Args: 1,
		Exec: func(_ context.Context, o *IO, args []string) error {
			data, err := io.ReadAll(o.In())
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}

			da, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer da.Close()

			if *appendMode {
				return da.Append(data)
			}

			return da.Save(data)
		},
	}
}
