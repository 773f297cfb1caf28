// Package cli implements the txfile command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/txfile/internal/config"
	"github.com/calvinalkan/txfile/pkg/dataaccess"
	"github.com/calvinalkan/txfile/pkg/txfile"
	"github.com/calvinalkan/txfile/pkg/txmetrics"
)

var (
	ErrArgCount       = errors.New("wrong number of arguments")
	ErrUnknownCommand = errors.New("unknown command")
)

// app is the state shared by all commands of one invocation.
type app struct {
	cfg     config.Config
	workDir string
	log     *slog.Logger
	metrics *txmetrics.Metrics
	reg     *prometheus.Registry
}

// options returns the handler options for every file the command opens.
func (a *app) options() []txfile.Option {
	opts := append(a.cfg.Options(), txfile.WithLogger(a.log))
	if a.metrics != nil {
		opts = append(opts, txfile.WithMetrics(a.metrics))
	}

	return opts
}

// open returns a file-backed DataAccess for path, relative to the working
// directory.
func (a *app) open(path string) (*dataaccess.Access, error) {
	return dataaccess.NewFile(a.abs(path), a.options()...)
}

func (a *app) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(a.workDir, path)
}

type globalFlags struct {
	set        *flag.FlagSet
	workDir    string
	configPath string
	atomic     bool
	syncMode   string
	timeout    time.Duration
	retries    int
	logLevel   string
	metrics    bool
}

func newGlobalFlags() *globalFlags {
	g := &globalFlags{set: flag.NewFlagSet("txfile", flag.ContinueOnError)}
	def := config.Default()

	fs := g.set
	fs.SetInterspersed(false)
	fs.SetOutput(io.Discard)
	fs.StringVarP(&g.workDir, "cwd", "C", "", "Run as if started in `dir`")
	fs.StringVarP(&g.configPath, "config", "c", "", "Use specified config `file`")
	fs.BoolVar(&g.atomic, "atomic", def.Atomic, "Write through a shadow edit file and commit by rename")
	fs.StringVar(&g.syncMode, "sync", def.SyncMode, "Durability: none, data or meta")
	fs.DurationVar(&g.timeout, "lock-timeout", time.Duration(def.LockTimeout), "Give up waiting for a lock after `d`")
	fs.IntVar(&g.retries, "retries", def.MaxRetries, "Bound lock retries to `n` (0 = bounded by time only)")
	fs.StringVar(&g.logLevel, "log-level", def.LogLevel, "Log level: debug, info, warn or error")
	fs.BoolVar(&g.metrics, "metrics", def.Metrics, "Print Prometheus metrics to stderr on exit")

	return g
}

// overrides returns the config overrides for flags set on the command line.
func (g *globalFlags) overrides() config.Overrides {
	var o config.Overrides

	if g.set.Changed("atomic") {
		o.Atomic = &g.atomic
	}

	if g.set.Changed("sync") {
		o.SyncMode = &g.syncMode
	}

	if g.set.Changed("lock-timeout") {
		o.LockTimeout = &g.timeout
	}

	if g.set.Changed("retries") {
		o.MaxRetries = &g.retries
	}

	if g.set.Changed("log-level") {
		o.LogLevel = &g.logLevel
	}

	if g.set.Changed("metrics") {
		o.Metrics = &g.metrics
	}

	return o
}

// Run is the main entry point. Returns exit code.
//
// A signal on sigCh cancels the context passed to commands; it may be nil.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	g := newGlobalFlags()
	a := &app{}
	commands := []*Command{
		CatCmd(a),
		WriteCmd(a),
		CopyCmd(a),
		LockCmd(a),
		ShellCmd(a),
		CleanCmd(a),
		PrintConfigCmd(a),
	}

	if err := g.set.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(out, g, commands)

			return 0
		}

		fprintln(errOut, "error:", err)
		printUsage(errOut, g, commands)

		return 1
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDir:    g.workDir,
		ConfigPath: g.configPath,
		Env:        env,
		Overrides:  g.overrides(),
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	workDir := g.workDir
	if workDir == "" {
		workDir, err = os.Getwd()
		if err != nil {
			fprintln(errOut, "error: cannot get working directory:", err)

			return 1
		}
	}

	a.cfg = cfg
	a.workDir = workDir
	a.log = slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: cfg.Level()}))

	if cfg.Metrics {
		a.reg = prometheus.NewRegistry()
		a.metrics = txmetrics.New(a.reg)
	}

	rest := g.set.Args()
	if len(rest) == 0 {
		printUsage(out, g, commands)

		return 0
	}

	var cmd *Command

	for _, c := range commands {
		if c.Name() == rest[0] {
			cmd = c

			break
		}
	}

	if cmd == nil {
		fprintln(errOut, "error:", fmt.Errorf("%w: %s", ErrUnknownCommand, rest[0]))
		printUsage(errOut, g, commands)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	code := cmd.Run(ctx, NewIO(in, out, errOut), rest[1:])

	txfile.SweepPendingRemovals(a.log)

	if a.reg != nil {
		if err := dumpMetrics(errOut, a.reg); err != nil {
			fprintln(errOut, "error: writing metrics:", err)
		}
	}

	return code
}

// dumpMetrics writes reg in the Prometheus text exposition format.
func dumpMetrics(w io.Writer, reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}

	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}

	return nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, g *globalFlags, commands []*Command) {
	fprintln(w, `txfile - transactional file access

Usage: txfile [options] <command> [args]

Options:`)

	var buf strings.Builder
	g.set.SetOutput(&buf)
	g.set.PrintDefaults()
	g.set.SetOutput(io.Discard)
	fprintln(w, strings.TrimRight(buf.String(), "\n"))

	fprintln(w)
	fprintln(w, "Commands:")

	for _, c := range commands {
		_, _ = fmt.Fprintf(w, "  %-34s %s\n", c.Usage, c.Short)
	}
}
