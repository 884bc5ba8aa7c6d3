package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

var AppFs = afero.NewOsFs()

// Config holds the CLI configuration
type Config struct {
	Driver string
	DSN    string
	Debug  bool
}

// Options tell Load where to look.
type Options struct {
	// ConfigFile, when set, is read instead of searching for .datamap.yaml.
	ConfigFile string
	// Dir holds the .env files. Defaults to the working directory.
	Dir string
}

// Load reads configuration from, in increasing priority: defaults, the
// config file, .env, .env.local and DATAMAP_* environment variables.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	v.SetFs(AppFs)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return nil, err
		}
		v.SetConfigName(".datamap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(home)
		v.AddConfigPath(filepath.Join(home, ".config", "datamap"))
	}

	v.SetEnvPrefix("DATAMAP")
	v.AutomaticEnv()

	v.SetDefault("driver", "sqlite3")
	v.SetDefault("dsn", ":memory:")
	v.SetDefault("debug", false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	// .env.local wins over .env; neither overrides the real environment.
	fromFile := make(map[string]bool)
	if err := loadEnv(filepath.Join(dir, ".env"), fromFile, false); err != nil {
		return nil, err
	}
	if err := loadEnv(filepath.Join(dir, ".env.local"), fromFile, true); err != nil {
		return nil, err
	}

	cfg := &Config{
		Driver: v.GetString("driver"),
		DSN:    v.GetString("dsn"),
		Debug:  v.GetBool("debug"),
	}
	if cfg.DSN == ":memory:" {
		if url := os.Getenv("DATABASE_URL"); url != "" {
			cfg.DSN = url
		}
	}
	return cfg, nil
}

// loadEnv sets the variables of an env file that are not already in the
// process environment. With local set, it also overrides values that an
// earlier env file introduced, as recorded in fromFile.
func loadEnv(path string, fromFile map[string]bool, local bool) error {
	if _, err := AppFs.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: %w", err)
	}
	data, err := afero.ReadFile(AppFs, path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	vars, err := godotenv.Parse(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}
	for k, val := range vars {
		if _, set := os.LookupEnv(k); set && !(local && fromFile[k]) {
			continue
		}
		if err := os.Setenv(k, val); err != nil {
			return err
		}
		fromFile[k] = true
	}
	return nil
}
