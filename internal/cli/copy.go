package cli

import (
	"context"
	"io"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/txfile/pkg/dataaccess"
)

// CopyCmd returns the copy command.
func CopyCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("copy", flag.ContinueOnError),
		Usage: "copy <src> <dst>",
		Short: "Copy content between files or stdio",
		Long: `Load src and save it to dst. Either side may be "-" for standard
input or output.

Files are read under a shared lock and written as one transaction.`,
		Args: 2,
		Exec: func(_ context.Context, o *IO, args []string) error {
			src, err := a.endpoint(o, args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			dst, err := a.endpoint(o, args[1])
			if err != nil {
				return err
			}
			defer dst.Close()

			data, err := src.Load()
			if err != nil {
				return err
			}

			return dst.Save(data)
		},
	}
}

// endpoint returns a DataAccess for a file, or for stdio when name is "-".
func (a *app) endpoint(o *IO, name string) (*dataaccess.Access, error) {
	if name != "-" {
		return a.open(name)
	}

	return dataaccess.NewStream(
		func() (io.ReadCloser, error) { return io.NopCloser(o.In()), nil },
		func() (io.WriteCloser, error) { return nopWriteCloser{o}, nil },
	), nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
