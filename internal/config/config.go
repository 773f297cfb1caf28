// Package config loads the txfile command configuration from JSONC files
// and command-line overrides.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tailscale/hujson"

	"github.com/calvinalkan/txfile/pkg/retry"
	"github.com/calvinalkan/txfile/pkg/txfile"
)

// FileName is the project config file looked up in the working directory.
const FileName = ".txfile.json"

var (
	ErrFileNotFound = errors.New("config file not found")
	ErrFileRead     = errors.New("cannot read config file")
	ErrInvalid      = errors.New("invalid config")
)

// Config holds the resolved configuration.
type Config struct {
	Atomic      bool     `json:"atomic"`
	SyncMode    string   `json:"sync_mode"    validate:"oneof=none nosync data meta data+meta"`
	LockTimeout Duration `json:"lock_timeout" validate:"min=0"`
	MaxRetries  int      `json:"max_retries"  validate:"min=0"`
	LogLevel    string   `json:"log_level"    validate:"oneof=debug info warn error"`
	Metrics     bool     `json:"metrics"`

	// Sources tracks which config files were loaded (for diagnostics)
	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string
	Project string
}

// Overrides are values set on the command line. Nil fields are unset.
type Overrides struct {
	Atomic      *bool
	SyncMode    *string
	LockTimeout *time.Duration
	MaxRetries  *int
	LogLevel    *string
	Metrics     *bool
}

// fileConfig is the on-disk shape. Pointers distinguish "absent" from a
// zero value so a later file can turn a flag off again.
type fileConfig struct {
	Atomic      *bool     `json:"atomic"`
	SyncMode    *string   `json:"sync_mode"`
	LockTimeout *Duration `json:"lock_timeout"`
	MaxRetries  *int      `json:"max_retries"`
	LogLevel    *string   `json:"log_level"`
	Metrics     *bool     `json:"metrics"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Atomic:      true,
		SyncMode:    "meta",
		LockTimeout: Duration(retry.DefaultTimeout),
		MaxRetries:  0,
		LogLevel:    "warn",
	}
}

// LoadInput holds the inputs for [Load].
type LoadInput struct {
	WorkDir    string            // if empty, os.Getwd() is used
	ConfigPath string            // -c/--config flag value
	Env        map[string]string // environment variables
	Overrides  Overrides
}

// Load resolves configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/txfile/config.json or ~/.config/txfile/config.json)
// 3. Project config file (.txfile.json in the working directory, if it exists)
// 4. Explicit config file via ConfigPath
// 5. Command-line overrides.
func Load(in LoadInput) (Config, error) {
	workDir := in.WorkDir
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := Default()

	if path := globalPath(in.Env); path != "" {
		fc, loaded, err := loadFile(path, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg = merge(cfg, fc)
			cfg.Sources.Global = path
		}
	}

	projectPath := filepath.Join(workDir, FileName)
	mustExist := false

	if in.ConfigPath != "" {
		projectPath = in.ConfigPath
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(workDir, projectPath)
		}

		mustExist = true
	}

	fc, loaded, err := loadFile(projectPath, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg = merge(cfg, fc)
		cfg.Sources.Project = projectPath
	}

	cfg = applyOverrides(cfg, in.Overrides)
	cfg.SyncMode = strings.ToLower(cfg.SyncMode)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// globalPath returns the global config path, or "" when no home is known.
func globalPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "txfile", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "txfile", "config.json")
	}

	return ""
}

func loadFile(path string, mustExist bool) (fileConfig, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !mustExist && errors.Is(err, os.ErrNotExist) {
			return fileConfig{}, false, nil
		}

		if errors.Is(err, os.ErrNotExist) {
			return fileConfig{}, false, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}

		return fileConfig{}, false, fmt.Errorf("%w %s: %w", ErrFileRead, path, err)
	}

	fc, err := parse(data)
	if err != nil {
		return fileConfig{}, false, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
	}

	return fc, true, nil
}

func parse(data []byte) (fileConfig, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var fc fileConfig

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&fc); err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return fc, nil
}

func merge(base Config, overlay fileConfig) Config {
	if overlay.Atomic != nil {
		base.Atomic = *overlay.Atomic
	}

	if overlay.SyncMode != nil {
		base.SyncMode = *overlay.SyncMode
	}

	if overlay.LockTimeout != nil {
		base.LockTimeout = *overlay.LockTimeout
	}

	if overlay.MaxRetries != nil {
		base.MaxRetries = *overlay.MaxRetries
	}

	if overlay.LogLevel != nil {
		base.LogLevel = *overlay.LogLevel
	}

	if overlay.Metrics != nil {
		base.Metrics = *overlay.Metrics
	}

	return base
}

func applyOverrides(cfg Config, o Overrides) Config {
	var lockTimeout *Duration

	if o.LockTimeout != nil {
		d := Duration(*o.LockTimeout)
		lockTimeout = &d
	}

	return merge(cfg, fileConfig{
		Atomic:      o.Atomic,
		SyncMode:    o.SyncMode,
		LockTimeout: lockTimeout,
		MaxRetries:  o.MaxRetries,
		LogLevel:    o.LogLevel,
		Metrics:     o.Metrics,
	})
}

// RetryPolicy returns the lock contention policy for cfg. With both
// lock_timeout and max_retries zero a conflict fails the first attempt.
func (c Config) RetryPolicy() retry.Policy {
	p := retry.Default()
	p.Timeout = time.Duration(c.LockTimeout)
	p.MaxRetries = uint64(c.MaxRetries)

	if p.Timeout == 0 && p.MaxRetries == 0 {
		p.Timeout = time.Nanosecond
	}

	return p
}

// Sync returns the parsed sync mode. Load has already validated it.
func (c Config) Sync() txfile.SyncMode {
	m, err := txfile.ParseSyncMode(c.SyncMode)
	if err != nil {
		return txfile.SyncDataAndMeta
	}

	return m
}

// Level returns the slog level for log_level.
func (c Config) Level() slog.Level {
	var l slog.Level

	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelWarn
	}

	return l
}

// Options returns the handler options for cfg.
func (c Config) Options() []txfile.Option {
	return []txfile.Option{
		txfile.WithAtomicMode(c.Atomic),
		txfile.WithSyncMode(c.Sync()),
		txfile.WithRetryPolicy(c.RetryPolicy()),
	}
}

var validate = validator.New()

// Validate checks cfg against its struct tags.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]

		return fmt.Errorf("%w: %s: must satisfy '%s %s' (value: %v)",
			ErrInvalid, jsonName(e.StructField()), e.Tag(), e.Param(), e.Value())
	}

	return fmt.Errorf("%w: %w", ErrInvalid, err)
}

func jsonName(field string) string {
	f, ok := typeOfConfig.FieldByName(field)
	if !ok {
		return field
	}

	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")

	return name
}
