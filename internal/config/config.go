// Package config builds a Plotnik run's Config from CLI flags and
// PLOTNIK_* environment overrides, the way the teacher's LoadConfig reads
// MORFX_* env vars and BuildConfigFromFlags reads CLI flags.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/termfx/plotnik/internal/vm"
)

// Config is the fully resolved configuration for one plotnik invocation.
type Config struct {
	QueryFile string // path to a query source file
	Query     string // inline query text, used if QueryFile is empty

	SourceFile string // target source file to match against
	Batch      string // doublestar glob; when set, every matched file runs instead of SourceFile

	Grammar    string // grammar name: go, python, typescript, php
	Entrypoint string // entrypoint def name; "" selects the query's own entry point

	CachePath string // modcache sqlite path; "" disables the cache, ":memory:" is valid

	ExecFuel      int
	RecursionFuel int

	JSON     bool
	DiffWith string // path to a previous JSON render to diff against
}

// LoadDotEnv loads a .env file from the current directory if one exists.
// A missing file is not an error; a malformed one is.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	return godotenv.Load()
}

// Flags registers every plotnik flag on fs.
func Flags(fs *pflag.FlagSet) {
	fs.String("query-file", "", "path to a query source file")
	fs.String("query", "", "inline query text, overridden by --query-file when both are set")
	fs.String("source", "", "target source file to match the query against")
	fs.String("batch", "", "doublestar glob; match every file it expands instead of --source")
	fs.String("grammar", "go", "grammar name (go, python, typescript, php)")
	fs.String("entry", "", "entrypoint definition name (default: the query's own entry point)")
	fs.String("cache", "", `modcache sqlite path ("" disables caching, ":memory:" is valid)`)
	fs.Int("exec-fuel", 0, "execution fuel override (0 uses PLOTNIK_EXEC_FUEL or the built-in default)")
	fs.Int("recursion-fuel", 0, "recursion fuel override (0 uses PLOTNIK_RECURSION_FUEL or the built-in default)")
	fs.Bool("json", false, "print the materialized result as JSON instead of a human-readable form")
	fs.String("diff", "", "path to a previous JSON render to diff the new one against")
}

// Load resolves a Config from fs, falling back to PLOTNIK_EXEC_FUEL and
// PLOTNIK_RECURSION_FUEL when the matching flag was never set. Call
// LoadDotEnv once before Load so those env vars can come from a .env file
// as well as the process environment.
func Load(fs *pflag.FlagSet) (*Config, error) {
	cfg := &Config{}

	cfg.QueryFile, _ = fs.GetString("query-file")
	cfg.Query, _ = fs.GetString("query")
	cfg.SourceFile, _ = fs.GetString("source")
	cfg.Batch, _ = fs.GetString("batch")
	cfg.Grammar, _ = fs.GetString("grammar")
	cfg.Entrypoint, _ = fs.GetString("entry")
	cfg.CachePath, _ = fs.GetString("cache")
	cfg.JSON, _ = fs.GetBool("json")
	cfg.DiffWith, _ = fs.GetString("diff")

	cfg.ExecFuel, _ = fs.GetInt("exec-fuel")
	if cfg.ExecFuel <= 0 {
		cfg.ExecFuel = envInt("PLOTNIK_EXEC_FUEL", vm.DefaultExecFuel)
	}
	cfg.RecursionFuel, _ = fs.GetInt("recursion-fuel")
	if cfg.RecursionFuel <= 0 {
		cfg.RecursionFuel = envInt("PLOTNIK_RECURSION_FUEL", vm.DefaultRecursionFuel)
	}

	return cfg, nil
}

// RequireQuery reports an error if neither --query-file nor --query was
// set. Only subcommands that read a query (check, compile, run) call this;
// link operates on an already-compiled module file instead.
func (c *Config) RequireQuery() error {
	if c.QueryFile == "" && c.Query == "" {
		return fmt.Errorf("one of --query-file or --query is required")
	}
	return nil
}

// RequireSource reports an error if neither --source nor --batch was set.
// Only Runner.Run calls this; check and compile never touch source files.
func (c *Config) RequireSource() error {
	if c.SourceFile == "" && c.Batch == "" {
		return fmt.Errorf("one of --source or --batch is required")
	}
	return nil
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
