package cli

import (
	"context"
	"encoding/json"

	flag "github.com/spf13/pflag"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			return execPrintConfig(io, a)
		},
	}
}

func execPrintConfig(io *IO, a *app) error {
	data, err := json.MarshalIndent(a.cfg, "", "  ")
	if err != nil {
		return err
	}

	io.Println(string(data))
	io.Println("")
	io.Println("# sources")

	if a.cfg.Sources.Global == "" && a.cfg.Sources.Project == "" {
		io.Println("(defaults only)")
	} else {
		if a.cfg.Sources.Global != "" {
			io.Println("global_config=" + a.cfg.Sources.Global)
		}

		if a.cfg.Sources.Project != "" {
			io.Println("project_config=" + a.cfg.Sources.Project)
		}
	}

	return nil
}
