package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command is one txfile subcommand. Usage starts with the command name,
// e.g. "write [--append] <file>".
type Command struct {
	Flags *flag.FlagSet
	Usage string
	Short string
	Long  string

	// Args is the exact number of positional arguments.
	Args int

	Exec func(ctx context.Context, o *IO, args []string) error
}

// Name returns the first word of Usage.
func (c *Command) Name() string {
	return strings.Fields(c.Usage)[0]
}

// help writes "txfile <cmd> --help" output to w.
func (c *Command) help(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Usage: txfile %s\n\n%s\n", c.Usage, c.Long)

	if c.Flags.HasFlags() {
		_, _ = fmt.Fprintf(w, "\nFlags:\n%s", c.Flags.FlagUsages())
	}
}

// Run parses args and calls Exec. It returns the process exit code.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(io.Discard)

	err := c.Flags.Parse(args)
	if errors.Is(err, flag.ErrHelp) {
		c.help(o)

		return 0
	}

	if err == nil && c.Flags.NArg() != c.Args {
		err = fmt.Errorf("%w: %s wants %d, got %d", ErrArgCount, c.Name(), c.Args, c.Flags.NArg())
	}

	if err != nil {
		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.help(o.errOut)

		return 1
	}

	if err := c.Exec(ctx, o, c.Flags.Args()); err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	return o.Finish()
}
