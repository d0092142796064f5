package util

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ddlkit/ddlkit/ddlkit"
	"github.com/ddlkit/ddlkit/internal/ddl"
	"github.com/ddlkit/ddlkit/internal/logger"
)

// AppFs is the filesystem every command reads and writes through.
var AppFs afero.Fs = afero.NewOsFs()

// DefaultConfigFile is read from the working directory when --config is
// not given.
const DefaultConfigFile = "ddlkit.yaml"

// Config holds the project configuration
type Config struct {
	Dialect          string
	Schema           string
	Out              string
	URL              string
	Breakpoints      bool
	Strict           bool
	Verbose          bool
	MigrationsTable  string
	MigrationsSchema string
	MigrationsPrefix string
}

// flagBindings maps config keys to the command flags that override them.
var flagBindings = map[string]string{
	"dialect":           "dialect",
	"schema":            "schema",
	"out":               "out",
	"dbCredentials.url": "url",
	"breakpoints":       "breakpoints",
	"strict":            "strict",
	"verbose":           "verbose",
	"migrations.table":  "migrations-table",
	"migrations.schema": "migrations-schema",
	"migrations.prefix": "prefix",
}

var current = &Config{Out: "drizzle", Breakpoints: true}

// Current returns the configuration loaded for the running command.
func Current() *Config { return current }

// LoadConfig reads path, the DDLKIT_* environment and the flags of cmd, in
// increasing priority. A missing file is an error only when required.
func LoadConfig(cmd *cobra.Command, path string, required bool) (*Config, error) {
	v := viper.New()
	v.SetFs(AppFs)
	v.SetEnvPrefix("DDLKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("out", "drizzle")
	v.SetDefault("breakpoints", true)

	if path == "" {
		path = DefaultConfigFile
	}
	if _, err := AppFs.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		logger.Get().Debug("Loaded config", "path", path)
	} else if !errors.Is(err, os.ErrNotExist) || required {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if cmd != nil {
		for key, name := range flagBindings {
			if f := cmd.Flags().Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		Dialect:          v.GetString("dialect"),
		Schema:           v.GetString("schema"),
		Out:              v.GetString("out"),
		URL:              v.GetString("dbCredentials.url"),
		Breakpoints:      v.GetBool("breakpoints"),
		Strict:           v.GetBool("strict"),
		Verbose:          v.GetBool("verbose"),
		MigrationsTable:  v.GetString("migrations.table"),
		MigrationsSchema: v.GetString("migrations.schema"),
		MigrationsPrefix: v.GetString("migrations.prefix"),
	}
	if cfg.URL == "" {
		cfg.URL = DatabaseURLFromEnv()
	}
	current = cfg
	return cfg, nil
}

// ParsedDialect validates the configured dialect.
func (c *Config) ParsedDialect() (ddl.Dialect, error) {
	if c.Dialect == "" {
		return "", fmt.Errorf("dialect is required, set --dialect or dialect in %s", DefaultConfigFile)
	}
	return ddl.ParseDialect(c.Dialect)
}

// Folder returns the migration folder options of the configuration. The
// dialect is optional for folder commands.
func (c *Config) Folder() ddlkit.FolderOptions {
	d, _ := ddl.ParseDialect(c.Dialect)
	return ddlkit.FolderOptions{Fs: AppFs, Out: c.Out, Dialect: d}
}
