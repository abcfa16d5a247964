// Package config carries the environment/config surface of spec §6:
// connection parameters, request/var/file size ceilings, the input
// update time/frequency pair, transaction-storage key, internals-storage
// time, and the auth lockout knobs (max_auth_time, max_login_failure).
// Grounded on the teacher's split of database.Config (connection
// parameters) from database.GeneratorConfig (behaviour knobs) — this
// package keeps the same split as Connection/Runtime, loaded from one
// YAML document via gopkg.in/yaml.v3 and overridable by environment
// variables the way util.InitSlog reads LOG_LEVEL.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Connection holds the parameters needed to dial a backend, grounded on
// database.Config's DbName/User/Password/Host/Port/Socket fields,
// generalized from a MySQL/Postgres-specific struct to a driver.Kind-
// tagged one since this engine supports Postgres and SQLite only.
type Connection struct {
	Kind     string `yaml:"kind"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DBName   string `yaml:"dbname"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"` // SQLite file path
}

// Runtime holds the behaviour knobs of spec §6, most expressed as
// humanize-parseable size strings in YAML ("10MB") and duration strings
// ("30s") for operator readability, resolved to machine types at load
// time.
type Runtime struct {
	MaxRequestSize string `yaml:"max_request_size"`
	MaxVarSize     string `yaml:"max_var_size"`
	MaxFileSize    string `yaml:"max_file_size"`

	InputUpdateTime      string `yaml:"input_update_time"`
	InputUpdateFrequency string `yaml:"input_update_frequency"`

	TransactionStorageKey string `yaml:"transaction_storage_key"`
	InternalsStorageTime  string `yaml:"internals_storage_time"`

	MaxAuthTime     string `yaml:"max_auth_time"`
	MaxLoginFailure int    `yaml:"max_login_failure"`

	resolved resolvedRuntime
}

type resolvedRuntime struct {
	maxRequestSize       uint64
	maxVarSize           uint64
	maxFileSize          uint64
	inputUpdateTime      time.Duration
	inputUpdateFrequency time.Duration
	internalsStorageTime time.Duration
	maxAuthTime          time.Duration
}

// Config is the top-level document: one Connection plus one Runtime.
type Config struct {
	Connection Connection `yaml:"connection"`
	Runtime    Runtime    `yaml:"runtime"`
}

// Load reads path (YAML), applies STELLATOR_*-prefixed environment
// overrides the way the teacher's util.InitSlog reads LOG_LEVEL, then
// resolves Runtime's human-readable fields into machine types. A
// missing path returns defaults with only environment overrides
// applied, matching migrate.ParseConfig's "empty config is a no-op"
// stance.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Runtime.resolve(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("STELLATOR_DB_HOST"); ok {
		c.Connection.Host = v
	}
	if v, ok := os.LookupEnv("STELLATOR_DB_PORT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Connection.Port = n
		}
	}
	if v, ok := os.LookupEnv("STELLATOR_DB_NAME"); ok {
		c.Connection.DBName = v
	}
	if v, ok := os.LookupEnv("STELLATOR_DB_USER"); ok {
		c.Connection.User = v
	}
	if v, ok := os.LookupEnv("STELLATOR_DB_PASSWORD"); ok {
		c.Connection.Password = v
	}
	if v, ok := os.LookupEnv("STELLATOR_DB_PATH"); ok {
		c.Connection.Path = v
	}
	if v, ok := os.LookupEnv("STELLATOR_MAX_REQUEST_SIZE"); ok {
		c.Runtime.MaxRequestSize = v
	}
}

// defaults mirror the original implementation's compiled-in constants
// (resolved via original_source/ where the distillation was silent).
const (
	defaultMaxRequestSize       = "2MB"
	defaultMaxVarSize           = "100KB"
	defaultMaxFileSize          = "500MB"
	defaultInputUpdateTime      = "1s"
	defaultInputUpdateFrequency = "100ms"
	defaultInternalsStorageTime = "8760h" // one year
	defaultMaxAuthTime          = "720h"  // 30 days
	defaultMaxLoginFailure      = 4
)

func (r *Runtime) resolve() error {
	if r.MaxRequestSize == "" {
		r.MaxRequestSize = defaultMaxRequestSize
	}
	if r.MaxVarSize == "" {
		r.MaxVarSize = defaultMaxVarSize
	}
	if r.MaxFileSize == "" {
		r.MaxFileSize = defaultMaxFileSize
	}
	if r.InputUpdateTime == "" {
		r.InputUpdateTime = defaultInputUpdateTime
	}
	if r.InputUpdateFrequency == "" {
		r.InputUpdateFrequency = defaultInputUpdateFrequency
	}
	if r.InternalsStorageTime == "" {
		r.InternalsStorageTime = defaultInternalsStorageTime
	}
	if r.MaxAuthTime == "" {
		r.MaxAuthTime = defaultMaxAuthTime
	}
	if r.MaxLoginFailure == 0 {
		r.MaxLoginFailure = defaultMaxLoginFailure
	}

	var err error
	if r.resolved.maxRequestSize, err = humanize.ParseBytes(r.MaxRequestSize); err != nil {
		return fmt.Errorf("config: max_request_size: %w", err)
	}
	if r.resolved.maxVarSize, err = humanize.ParseBytes(r.MaxVarSize); err != nil {
		return fmt.Errorf("config: max_var_size: %w", err)
	}
	if r.resolved.maxFileSize, err = humanize.ParseBytes(r.MaxFileSize); err != nil {
		return fmt.Errorf("config: max_file_size: %w", err)
	}
	if r.resolved.inputUpdateTime, err = time.ParseDuration(r.InputUpdateTime); err != nil {
		return fmt.Errorf("config: input_update_time: %w", err)
	}
	if r.resolved.inputUpdateFrequency, err = time.ParseDuration(r.InputUpdateFrequency); err != nil {
		return fmt.Errorf("config: input_update_frequency: %w", err)
	}
	if r.resolved.internalsStorageTime, err = time.ParseDuration(r.InternalsStorageTime); err != nil {
		return fmt.Errorf("config: internals_storage_time: %w", err)
	}
	if r.resolved.maxAuthTime, err = time.ParseDuration(r.MaxAuthTime); err != nil {
		return fmt.Errorf("config: max_auth_time: %w", err)
	}
	return nil
}

func (r Runtime) MaxRequestBytes() uint64            { return r.resolved.maxRequestSize }
func (r Runtime) MaxVarBytes() uint64                { return r.resolved.maxVarSize }
func (r Runtime) MaxFileBytes() uint64               { return r.resolved.maxFileSize }
func (r Runtime) InputUpdateEvery() time.Duration    { return r.resolved.inputUpdateFrequency }
func (r Runtime) InputUpdateWindow() time.Duration   { return r.resolved.inputUpdateTime }
func (r Runtime) InternalsStorageFor() time.Duration { return r.resolved.internalsStorageTime }
func (r Runtime) MaxAuthWindow() time.Duration       { return r.resolved.maxAuthTime }
