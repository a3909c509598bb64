// Package config reads the server configuration from flags, falling back to
// GESTIONEAU_* environment variables and then to built in defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "GESTIONEAU_"

const (
	SearchSQLite  = "sqlite"
	SearchElastic = "elastic"
)

type Config struct {
	// Server
	Port            int
	BasePath        string
	AppName         string
	ShutdownTimeout time.Duration

	// Primary store
	DBPath string

	// Search mirror
	Search         string
	SearchDSN      string
	ElasticURLs    []string
	ElasticUser    string
	ElasticPass    string
	ElasticRefresh bool
	MirrorAsync    bool
	MirrorWorkers  int

	// Logging
	LogLevel  string
	LogFormat string
}

// Parse reads args (without the program name). Flags win over the
// environment, the environment wins over defaults.
func Parse(args []string) (*Config, error) {
	return parse(args, os.Getenv, os.Stderr)
}

func parse(args []string, getenv func(string) string, output io.Writer) (*Config, error) {
	flagSet := flag.NewFlagSet("gestioneau", flag.ContinueOnError)
	flagSet.SetOutput(output)

	env := func(key, def string) string {
		if v := getenv(envPrefix + key); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{}
	var (
		port            = flagSet.String("port", env("PORT", "8081"), "HTTP port")
		elasticURL      = flagSet.String("elastic-url", env("ELASTIC_URL", "http://localhost:9200"), "Comma separated Elasticsearch addresses")
		elasticRefresh  = flagSet.String("elastic-refresh", env("ELASTIC_REFRESH", "false"), "Refresh the index on every write")
		mirrorAsync     = flagSet.String("mirror-async", env("MIRROR_ASYNC", "false"), "Mirror writes in the background")
		mirrorWorkers   = flagSet.String("mirror-workers", env("MIRROR_WORKERS", "4"), "Maximum concurrent background mirror writes")
		shutdownTimeout = flagSet.String("shutdown-timeout", env("SHUTDOWN_TIMEOUT", "5s"), "Graceful shutdown timeout")
	)
	flagSet.StringVar(&cfg.BasePath, "base-path", env("BASE_PATH", ""), "Path prefix for every route")
	flagSet.StringVar(&cfg.AppName, "app-name", env("APP_NAME", "gestioneauApp"), "Application name used in alert headers")
	flagSet.StringVar(&cfg.DBPath, "db", env("DB", "gestioneau.db"), "Primary store (bbolt) file")
	flagSet.StringVar(&cfg.Search, "search", env("SEARCH", SearchSQLite), "Search mirror: sqlite or elastic")
	flagSet.StringVar(&cfg.SearchDSN, "search-dsn", env("SEARCH_DSN", "gestioneau-search.db"), "SQLite search mirror DSN")
	flagSet.StringVar(&cfg.ElasticUser, "elastic-user", env("ELASTIC_USER", ""), "Elasticsearch user")
	flagSet.StringVar(&cfg.ElasticPass, "elastic-pass", env("ELASTIC_PASS", ""), "Elasticsearch password")
	flagSet.StringVar(&cfg.LogLevel, "log-level", env("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flagSet.StringVar(&cfg.LogFormat, "log-format", env("LOG_FORMAT", "text"), "Log format: text or json")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if flagSet.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(flagSet.Args(), " "))
	}

	var errs []error
	var err error

	if cfg.Port, err = strconv.Atoi(*port); err != nil || cfg.Port <= 0 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port: %s", *port))
	}
	if cfg.ElasticRefresh, err = strconv.ParseBool(*elasticRefresh); err != nil {
		errs = append(errs, fmt.Errorf("invalid elastic-refresh: %s", *elasticRefresh))
	}
	if cfg.MirrorAsync, err = strconv.ParseBool(*mirrorAsync); err != nil {
		errs = append(errs, fmt.Errorf("invalid mirror-async: %s", *mirrorAsync))
	}
	if cfg.MirrorWorkers, err = strconv.Atoi(*mirrorWorkers); err != nil || cfg.MirrorWorkers <= 0 {
		errs = append(errs, fmt.Errorf("invalid mirror-workers: %s", *mirrorWorkers))
	}
	if cfg.ShutdownTimeout, err = time.ParseDuration(*shutdownTimeout); err != nil {
		errs = append(errs, fmt.Errorf("invalid shutdown-timeout: %s", *shutdownTimeout))
	}

	for _, u := range strings.Split(*elasticURL, ",") {
		if u = strings.TrimSpace(u); u != "" {
			cfg.ElasticURLs = append(cfg.ElasticURLs, u)
		}
	}

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Search {
	case SearchSQLite:
		if c.SearchDSN == "" {
			return errors.New("search-dsn is required for the sqlite mirror")
		}
	case SearchElastic:
		if len(c.ElasticURLs) == 0 {
			return errors.New("elastic-url is required for the elastic mirror")
		}
	default:
		return fmt.Errorf("invalid search mirror: %s (must be 'sqlite' or 'elastic')", c.Search)
	}
	if c.DBPath == "" {
		return errors.New("db path is required")
	}
	if c.AppName == "" {
		return errors.New("app-name is required")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.LogFormat)
	}
	return nil
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}
