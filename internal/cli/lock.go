package cli

import (
	"context"
	"time"

	flag "github.com/spf13/pflag"
)

// LockCmd returns the lock command.
func LockCmd(a *app) *Command {
	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	shared := fs.BoolP("shared", "s", false, "Take a shared lock instead of an exclusive one")
	hold := fs.Duration("hold", 0, "Keep the lock for `d` (negative = until interrupted)")

	return &Command{
		Flags: fs,
		Usage: "lock [--shared] [--hold d] <file>",
		Short: "Acquire a file lock and optionally hold it",
		Long: `Acquire the same lock a reader (--shared) or writer takes on a file.

Waiting is bounded by --lock-timeout and --retries. With --hold the lock
is kept for the given time, which blocks other writers meanwhile.`,
		Args: 1,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			da, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer da.Close()

			if *shared {
				err = da.LockShared()
			} else {
				err = da.LockExclusive()
			}

			if err != nil {
				return err
			}

			o.Printf("locked %s %s\n", da.LockType(), a.abs(args[0]))

			if err := wait(ctx, *hold); err != nil {
				a.log.Debug("lock hold interrupted", "err", err)
			}

			if err := da.Unlock(); err != nil {
				return err
			}

			o.Println("released")

			return nil
		},
	}
}

// wait blocks for d, forever when d is negative, or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d == 0 {
		return nil
	}

	var timeout <-chan time.Time

	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()

		timeout = timer.C
	}

	select {
	case <-timeout:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
