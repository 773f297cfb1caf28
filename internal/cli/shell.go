package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/txfile/pkg/dataaccess"
	"github.com/calvinalkan/txfile/pkg/txfile"
)

const shellHelp = `Commands:
  status                     Show lock, mode and transaction state
  lock shared|exclusive      Acquire a lock
  unlock                     Release the lock (pending writes are reverted)
  begin overwrite|append     Start a write transaction
  write <text>               Write text at the current position
  commit | revert            Finish the pending transaction
  load                       Print the whole content
  save <text>                Replace the content
  append <text>              Append to the content
  pos | len                  Print position or length
  seek <n>|start|end         Move the position
  truncate <n>               Set the length
  atomic on|off              Toggle atomic mode (unlocked only)
  sync none|data|meta        Set the sync mode (unlocked only)
  help                       Show this help
  quit                       Leave the shell`

// ShellCmd returns the shell command.
func ShellCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("shell", flag.ContinueOnError),
		Usage: "shell <file>",
		Short: "Interactive session over one file",
		Long: `Start an interactive session over a single file.

The session keeps one handle open, so locks and transactions span
commands. Leaving the shell reverts anything not committed.`,
		Args: 1,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			da, err := a.open(args[0])
			if err != nil {
				return err
			}

			s := &shell{da: da, o: o, lines: newLineReader(o.In())}

			runErr := s.run(ctx)

			return errors.Join(runErr, s.lines.Close(), da.Close())
		},
	}
}

// lineReader is the part of [liner.State] the shell uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// newLineReader uses liner for a real stdin and plain line reading otherwise.
func newLineReader(in io.Reader) lineReader {
	if f, ok := in.(*os.File); ok && f == os.Stdin {
		l := liner.NewLiner()
		l.SetCtrlCAborts(true)
		l.SetCompleter(completeShell)

		return l
	}

	return &scanLines{sc: bufio.NewScanner(in)}
}

type scanLines struct {
	sc *bufio.Scanner
}

func (s *scanLines) Prompt(string) (string, error) {
	if !s.sc.Scan() {
		if err := s.sc.Err(); err != nil {
			return "", err
		}

		return "", io.EOF
	}

	return s.sc.Text(), nil
}

func (s *scanLines) AppendHistory(string) {}

func (s *scanLines) Close() error { return nil }

var shellCommands = []string{
	"status", "lock", "unlock", "begin", "write", "commit", "revert", "load", "save",
	"append", "pos", "len", "seek", "truncate", "atomic", "sync", "help", "quit",
}

func completeShell(line string) []string {
	var out []string

	for _, c := range shellCommands {
		if strings.HasPrefix(c, strings.ToLower(line)) {
			out = append(out, c)
		}
	}

	return out
}

type shell struct {
	da    *dataaccess.Access
	o     *IO
	lines lineReader
}

func (s *shell) run(ctx context.Context) error {
	for ctx.Err() == nil {
		line, err := s.lines.Prompt("txfile> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		s.lines.AppendHistory(line)

		cmd, rest, _ := strings.Cut(line, " ")
		cmd = strings.ToLower(cmd)

		if cmd == "quit" || cmd == "exit" || cmd == "q" {
			return nil
		}

		if err := s.exec(cmd, rest); err != nil {
			s.o.Println("error:", err)
		}
	}

	return nil
}

var errShellUsage = errors.New("invalid arguments (type 'help' for commands)")

func (s *shell) exec(cmd, rest string) error {
	args := strings.Fields(rest)
	da := s.da

	switch cmd {
	case "help", "?":
		s.o.Println(shellHelp)
	case "status":
		s.status()
	case "lock":
		switch one(args) {
		case "shared":
			return da.LockShared()
		case "exclusive":
			return da.LockExclusive()
		default:
			return errShellUsage
		}
	case "unlock":
		return da.Unlock()
	case "begin":
		switch one(args) {
		case "overwrite":
			return da.BeginOverwrite()
		case "append":
			return da.BeginAppend()
		default:
			return errShellUsage
		}
	case "write":
		return s.write(rest)
	case "commit":
		return da.Commit()
	case "revert":
		return da.Revert()
	case "load":
		data, err := da.Load()
		if err != nil {
			return err
		}

		s.o.Println(string(data))
	case "save":
		return da.Save([]byte(rest))
	case "append":
		return da.Append([]byte(rest))
	case "pos":
		return s.printInt(da.Position())
	case "len":
		return s.printInt(da.Length())
	case "seek":
		return s.seek(one(args))
	case "truncate":
		n, err := strconv.ParseInt(one(args), 10, 64)
		if err != nil {
			return errShellUsage
		}

		return da.SetLength(n)
	case "atomic":
		switch one(args) {
		case "on":
			return da.SetAtomicMode(true)
		case "off":
			return da.SetAtomicMode(false)
		default:
			return errShellUsage
		}
	case "sync":
		m, err := txfile.ParseSyncMode(one(args))
		if err != nil || len(args) != 1 {
			return errShellUsage
		}

		return da.SetSyncMode(m)
	default:
		return fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
	}

	return nil
}

func (s *shell) status() {
	write := txfile.WriteNone
	if fb, ok := s.da.Backend().(*dataaccess.FileBackend); ok {
		write = fb.Handler().WriteMode()
	}

	s.o.Printf("lock=%s atomic=%t sync=%s write=%s\n",
		s.da.LockType(), s.da.AtomicMode(), s.da.SyncMode(), write)
}

func (s *shell) write(text string) error {
	w, err := s.da.Output()
	if err != nil {
		return err
	}

	_, writeErr := io.WriteString(w, text)

	return errors.Join(writeErr, w.Close())
}

func (s *shell) seek(arg string) error {
	switch arg {
	case "start":
		return s.da.SeekStart()
	case "end":
		return s.da.SeekEnd()
	}

	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return errShellUsage
	}

	return s.da.Seek(n)
}

func (s *shell) printInt(n int64, err error) error {
	if err != nil {
		return err
	}

	s.o.Println(n)

	return nil
}

func one(args []string) string {
	if len(args) != 1 {
		return ""
	}

	return args[0]
}
