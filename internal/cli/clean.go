package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/txfile/pkg/fs"
	"github.com/calvinalkan/txfile/pkg/txfile"
)

// CleanCmd returns the clean command.
func CleanCmd(a *app) *Command {
	flags := flag.NewFlagSet("clean", flag.ContinueOnError)
	dryRun := flags.BoolP("dry-run", "n", false, "List stale files without removing them")

	return &Command{
		Flags: flags,
		Usage: "clean [--dry-run] <dir>",
		Short: "Remove leftover lock and edit files",
		Long: `Remove .~<name>.lock and .~<name>.edit files in dir that no process
holds a lock on, such as the leftovers of a crashed writer.

Files in use are left alone.`,
		Args: 1,
		Exec: func(_ context.Context, o *IO, args []string) error {
			dir := a.abs(args[0])
			fsys := fs.NewReal()

			if *dryRun {
				stale, err := txfile.FindStale(fsys, dir)
				if err != nil {
					return err
				}

				for _, s := range stale {
					o.Printf("stale %s %s\n", s.Kind, s.Path)
				}

				return nil
			}

			removed, err := txfile.RemoveStale(fsys, dir, a.log)
			for _, s := range removed {
				o.Printf("removed %s %s\n", s.Kind, s.Path)
			}

			if err != nil {
				o.Warn("some stale files could not be removed", err.Error())
			}

			return nil
		},
	}
}
