package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/calvinalkan/txfile/internal/config"
	"github.com/calvinalkan/txfile/pkg/txfile"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func load(t *testing.T, in config.LoadInput) config.Config {
	t.Helper()

	cfg, err := config.Load(in)
	if err != nil {
		t.Fatalf("Load: err=%v", err)
	}

	return cfg
}

func ptr[T any](v T) *T { return &v }

var ignoreSources = cmpopts.IgnoreFields(config.Config{}, "Sources")

func Test_Load_Returns_Defaults_When_No_Files_Exist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := load(t, config.LoadInput{WorkDir: dir, Env: map[string]string{"HOME": dir}})

	if diff := cmp.Diff(config.Default(), cfg, ignoreSources); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}

	if cfg.Sources != (config.Sources{}) {
		t.Fatalf("sources=%+v, want none", cfg.Sources)
	}
}

func Test_Load_Applies_Precedence_When_All_Layers_Set(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	xdg := filepath.Join(dir, "xdg")

	writeFile(t, filepath.Join(xdg, "txfile", "config.json"), `{
		// global
		"atomic": false,
		"sync_mode": "data",
		"log_level": "debug",
	}`)
	writeFile(t, filepath.Join(dir, ".txfile.json"), `{"sync_mode": "none", "max_retries": 3}`)

	cfg := load(t, config.LoadInput{
		WorkDir:   dir,
		Env:       map[string]string{"XDG_CONFIG_HOME": xdg},
		Overrides: config.Overrides{MaxRetries: ptr(7), Metrics: ptr(true)},
	})

	want := config.Config{
		Atomic:      false,
		SyncMode:    "none",
		LockTimeout: config.Duration(30 * time.Second),
		MaxRetries:  7,
		LogLevel:    "debug",
		Metrics:     true,
		Sources: config.Sources{
			Global:  filepath.Join(xdg, "txfile", "config.json"),
			Project: filepath.Join(dir, ".txfile.json"),
		},
	}

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func Test_Load_Uses_Explicit_File_Instead_Of_Project_File_When_Config_Path_Set(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".txfile.json"), `{"lock_timeout": "1s"}`)
	writeFile(t, filepath.Join(dir, "custom.json"), `{"lock_timeout": "250ms"}`)

	cfg := load(t, config.LoadInput{WorkDir: dir, ConfigPath: "custom.json"})

	if got := time.Duration(cfg.LockTimeout); got != 250*time.Millisecond {
		t.Fatalf("lock_timeout=%s, want 250ms", got)
	}

	if cfg.Sources.Project != filepath.Join(dir, "custom.json") {
		t.Fatalf("project source=%q", cfg.Sources.Project)
	}
}

func Test_Load_Fails_When_Explicit_File_Missing(t *testing.T) {
	t.Parallel()

	_, err := config.Load(config.LoadInput{WorkDir: t.TempDir(), ConfigPath: "nope.json"})
	if !errors.Is(err, config.ErrFileNotFound) {
		t.Fatalf("err=%v, want ErrFileNotFound", err)
	}
}

func Test_Load_Fails_When_File_Is_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "syntax", content: `{"atomic": `},
		{name: "unknown key", content: `{"atomik": true}`},
		{name: "bad duration", content: `{"lock_timeout": "soon"}`},
		{name: "numeric duration", content: `{"lock_timeout": 5}`},
		{name: "bad sync mode", content: `{"sync_mode": "always"}`},
		{name: "negative retries", content: `{"max_retries": -1}`},
		{name: "bad log level", content: `{"log_level": "loud"}`},
		{name: "negative timeout", content: `{"lock_timeout": "-1s"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, ".txfile.json"), tt.content)

			_, err := config.Load(config.LoadInput{WorkDir: dir})
			if !errors.Is(err, config.ErrInvalid) {
				t.Fatalf("err=%v, want ErrInvalid", err)
			}
		})
	}
}

func Test_Load_Normalizes_Case_When_Values_Are_Uppercase(t *testing.T) {
	t.Parallel()

	cfg := load(t, config.LoadInput{
		WorkDir:   t.TempDir(),
		Overrides: config.Overrides{SyncMode: ptr("DATA"), LogLevel: ptr("ERROR")},
	})

	if cfg.Sync() != txfile.SyncData {
		t.Fatalf("sync=%s, want data", cfg.Sync())
	}

	if cfg.Level() != slog.LevelError {
		t.Fatalf("level=%s, want ERROR", cfg.Level())
	}
}

func Test_RetryPolicy_Maps_Bounds_When_Set(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.LockTimeout = config.Duration(2 * time.Second)
	cfg.MaxRetries = 5

	p := cfg.RetryPolicy()
	if p.Timeout != 2*time.Second || p.MaxRetries != 5 {
		t.Fatalf("policy timeout=%s retries=%d, want 2s/5", p.Timeout, p.MaxRetries)
	}

	if p.Retryable == nil {
		t.Fatal("policy has no contention classifier")
	}
}

func Test_RetryPolicy_Does_Not_Wait_When_Both_Bounds_Zero(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.LockTimeout = 0

	calls := 0
	start := time.Now()

	_ = cfg.RetryPolicy().WithRetryable(nil).Do(t.Context(), func() error {
		calls++

		return errors.New("held")
	})

	if calls != 1 {
		t.Fatalf("calls=%d, want 1", calls)
	}

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("elapsed=%s, want no waiting", elapsed)
	}
}
