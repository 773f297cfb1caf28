package cli_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/txfile/internal/cli"
	"github.com/calvinalkan/txfile/pkg/txfile"
)

func dirNames(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: err=%v", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	return names
}

func Test_Write_Then_Cat_Round_Trips_Content_When_Invoked(t *testing.T) {
	t.Parallel()

	for _, mode := range []string{"--atomic=true", "--atomic=false"} {
		t.Run(mode, func(t *testing.T) {
			t.Parallel()

			c := cli.NewCLI(t)
			c.MustRunWithInput("hello\nworld\n", mode, "write", "data.txt")

			if got := c.MustRun(mode, "cat", "data.txt"); got != "hello\nworld" {
				t.Fatalf("cat=%q, want %q", got, "hello\nworld")
			}

			if diff := cmp.Diff([]string{"data.txt"}, dirNames(t, c.Dir)); diff != "" {
				t.Fatalf("leftover files (-want +got):\n%s", diff)
			}
		})
	}
}

func Test_Write_Replaces_Longer_Content_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("data.txt", "a much longer previous content")
	c.MustRunWithInput("short", "write", "data.txt")

	if got := c.ReadFile("data.txt"); got != "short" {
		t.Fatalf("content=%q, want %q", got, "short")
	}
}

func Test_Write_Appends_When_Append_Flag_Set(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("log.txt", "one\n")
	c.MustRunWithInput("two\n", "write", "--append", "log.txt")
	c.MustRunWithInput("three\n", "--atomic=false", "write", "-a", "log.txt")

	if got := c.ReadFile("log.txt"); got != "one\ntwo\nthree\n" {
		t.Fatalf("content=%q", got)
	}
}

func Test_Copy_Streams_Between_Stdio_And_Files_When_Dash_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRunWithInput("from stdin", "copy", "-", "a.txt")
	c.MustRun("copy", "a.txt", "b.txt")

	if got := c.MustRun("copy", "b.txt", "-"); got != "from stdin" {
		t.Fatalf("copy to stdout=%q, want %q", got, "from stdin")
	}
}

func Test_Cat_Fails_When_File_Missing(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("cat", "missing.txt")
	cli.AssertContains(t, stderr, "error:")
	cli.AssertContains(t, stderr, "no such file")

	if names := dirNames(t, c.Dir); len(names) != 0 {
		t.Fatalf("leftover files: %v", names)
	}
}

func Test_Write_Fails_With_Lock_Timeout_When_File_Held(t *testing.T) {
	t.Parallel()

	for _, atomic := range []bool{true, false} {
		mode := fmt.Sprintf("--atomic=%t", atomic)

		t.Run(mode, func(t *testing.T) {
			t.Parallel()

			c := cli.NewCLI(t)
			c.WriteFile("data.txt", "original")

			h, err := txfile.New(c.Path("data.txt"), txfile.WithAtomicMode(atomic))
			if err != nil {
				t.Fatalf("New: err=%v", err)
			}

			if err := h.OpenWritable(); err != nil {
				t.Fatalf("OpenWritable: err=%v", err)
			}
			defer h.Close()

			_, stderr, code := c.RunWithInput("new", mode, "--lock-timeout=50ms", "write", "data.txt")
			if code != 1 {
				t.Fatalf("exit=%d, want 1", code)
			}

			cli.AssertContains(t, stderr, "lock timeout")

			if got := c.ReadFile("data.txt"); got != "original" {
				t.Fatalf("content=%q, want original", got)
			}
		})
	}
}

func Test_Lock_Reports_Lock_Type_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("data.txt", "x")

	out := c.MustRun("lock", "--shared", "data.txt")
	cli.AssertContains(t, out, "locked shared "+c.Path("data.txt"))
	cli.AssertContains(t, out, "released")

	out = c.MustRun("lock", "--hold=10ms", "data.txt")
	cli.AssertContains(t, out, "locked exclusive")

	if diff := cmp.Diff([]string{"data.txt"}, dirNames(t, c.Dir)); diff != "" {
		t.Fatalf("leftover files (-want +got):\n%s", diff)
	}
}

func Test_Clean_Removes_Stale_Shadow_Files_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("data.txt", "x")
	c.WriteFile(".~data.txt.edit", "half written")
	c.WriteFile(".~other.lock", "")

	out := c.MustRun("clean", "--dry-run", ".")
	cli.AssertContains(t, out, "stale edit "+c.Path(".~data.txt.edit"))
	cli.AssertContains(t, out, "stale lock "+c.Path(".~other.lock"))

	if len(dirNames(t, c.Dir)) != 3 {
		t.Fatalf("dry run removed files: %v", dirNames(t, c.Dir))
	}

	out = c.MustRun("clean", ".")
	cli.AssertContains(t, out, "removed edit")
	cli.AssertContains(t, out, "removed lock")

	if diff := cmp.Diff([]string{"data.txt"}, dirNames(t, c.Dir)); diff != "" {
		t.Fatalf("files after clean (-want +got):\n%s", diff)
	}
}

func Test_Clean_Keeps_Shadow_Files_When_Target_Locked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("data.txt", "x")

	h, err := txfile.New(c.Path("data.txt"), txfile.WithAtomicMode(true))
	if err != nil {
		t.Fatalf("New: err=%v", err)
	}

	if err := h.OpenWritable(); err != nil {
		t.Fatalf("OpenWritable: err=%v", err)
	}
	defer h.Close()

	if out := c.MustRun("clean", "."); out != "" {
		t.Fatalf("clean output=%q, want nothing removed", out)
	}

	if _, err := os.Stat(h.LockPath()); err != nil {
		t.Fatalf("lock file removed while held: err=%v", err)
	}
}

func Test_Shell_Runs_Transaction_When_Script_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("data.txt", "old")

	script := strings.Join([]string{
		"lock exclusive",
		"begin overwrite",
		"write abc",
		"pos",
		"status",
		"commit",
		"unlock",
		"load",
		"save replaced",
		"bogus",
		"quit",
		"load",
	}, "\n")

	out := c.MustRunWithInput(script, "shell", "data.txt")

	want := strings.Join([]string{
		"3",
		"lock=exclusive atomic=true sync=meta write=overwrite",
		"abc",
		"error: unknown command: bogus (type 'help' for commands)",
	}, "\n")

	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("shell output (-want +got):\n%s", diff)
	}

	if got := c.ReadFile("data.txt"); got != "replaced" {
		t.Fatalf("content=%q, want replaced", got)
	}
}

func Test_Shell_Reverts_Uncommitted_Write_When_Input_Ends(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("data.txt", "keep")

	c.MustRunWithInput("lock exclusive\nbegin append\nwrite more\n", "shell", "data.txt")

	if got := c.ReadFile("data.txt"); got != "keep" {
		t.Fatalf("content=%q, want keep", got)
	}

	if diff := cmp.Diff([]string{"data.txt"}, dirNames(t, c.Dir)); diff != "" {
		t.Fatalf("leftover files (-want +got):\n%s", diff)
	}
}

func Test_Print_Config_Shows_Defaults_When_No_Config(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	out := c.MustRun("print-config")

	cli.AssertContains(t, out, `"atomic": true`)
	cli.AssertContains(t, out, `"sync_mode": "meta"`)
	cli.AssertContains(t, out, `"lock_timeout": "30s"`)
	cli.AssertContains(t, out, "(defaults only)")
}

func Test_Print_Config_Applies_File_And_Flags_When_Both_Set(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(".txfile.json", `{
		// project settings
		"atomic": false,
		"sync_mode": "data",
	}`)

	out := c.MustRun("--sync=none", "print-config")

	cli.AssertContains(t, out, `"atomic": false`)
	cli.AssertContains(t, out, `"sync_mode": "none"`)
	cli.AssertContains(t, out, "project_config="+filepath.Join(c.Dir, ".txfile.json"))
}

func Test_Run_Fails_When_Config_Invalid(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(".txfile.json", `{"sync_mode": "sometimes"}`)

	stderr := c.MustFail("print-config")
	cli.AssertContains(t, stderr, "invalid config")
}

func Test_Run_Reports_Usage_Errors_When_Invoked_Wrongly(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name       string
		args       []string
		wantStderr string
	}{
		{name: "unknown command", args: []string{"frobnicate"}, wantStderr: "unknown command: frobnicate"},
		{name: "missing argument", args: []string{"cat"}, wantStderr: "wrong number of arguments"},
		{name: "extra argument", args: []string{"cat", "a", "b"}, wantStderr: "wrong number of arguments"},
		{name: "unknown flag", args: []string{"write", "--bogus", "a"}, wantStderr: "unknown flag"},
		{name: "unknown global flag", args: []string{"--bogus", "cat", "a"}, wantStderr: "unknown flag"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := cli.NewCLI(t)
			_, stderr, code := c.Run(tt.args...)

			if code != 1 {
				t.Errorf("exitCode=%d, want=1", code)
			}

			cli.AssertContains(t, stderr, tt.wantStderr)
		})
	}
}

func Test_Run_Prints_Usage_When_No_Command(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	out := c.MustRun()

	cli.AssertContains(t, out, "Usage: txfile")
	cli.AssertContains(t, out, "write [--append] <file>")
	cli.AssertContains(t, out, "--lock-timeout")
}

func Test_Command_Help_Shows_Flags_When_Help_Flag_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	out := c.MustRun("lock", "--help")

	cli.AssertContains(t, out, "Usage: txfile lock [--shared] [--hold d] <file>")
	cli.AssertContains(t, out, "--shared")
}

func Test_Command_Prints_Help_To_Stderr_When_Arguments_Are_Wrong(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout, stderr, code := c.Run("write", "a", "b")

	if code != 1 {
		t.Fatalf("exit=%d, want 1", code)
	}

	if stdout != "" {
		t.Fatalf("stdout=%q, want empty", stdout)
	}

	cli.AssertContains(t, stderr, "write wants 1, got 2")
	cli.AssertContains(t, stderr, "Usage: txfile write [--append] <file>")
	cli.AssertContains(t, stderr, "--append")
}

func Test_Metrics_Flag_Dumps_Prometheus_Text_When_Set(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	_, stderr, code := c.RunWithInput("data", "--metrics", "write", "data.txt")

	if code != 0 {
		t.Fatalf("exit=%d stderr=%s", code, stderr)
	}

	cli.AssertContains(t, stderr, `txfile_commits_total{method="rename",status="success"} 1`)
	cli.AssertContains(t, stderr, `txfile_lock_acquisitions_total{lock="exclusive",status="success"} 1`)
}
