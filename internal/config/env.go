package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Env holds the process-wide knobs a run reads from the environment, the
// same dotenv-plus-os.Getenv pattern the rest of this tree's ambient config
// uses.
type Env struct {
	MaxWorkers    int
	MaxFileBytes  int
	NoGitignore   bool
	SkipDirs      []string
	RulesPath     string
}

// LoadEnv reads a .env file if present (ignored when absent) and then
// applies STRUCTGREP_* environment variables over the defaults.
func LoadEnv() *Env {
	_ = godotenv.Load()

	cfg := &Env{
		MaxWorkers:   8,
		MaxFileBytes: 5 * 1024 * 1024,
		NoGitignore:  false,
		SkipDirs:     []string{".git", "vendor", "node_modules", "dist", "build", ".structgrep"},
		RulesPath:    os.Getenv("STRUCTGREP_RULES_PATH"),
	}

	if v := os.Getenv("STRUCTGREP_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxWorkers = n
		}
	}

	if v := os.Getenv("STRUCTGREP_MAX_FILE_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxFileBytes = n
		}
	}

	if v := os.Getenv("STRUCTGREP_NO_GITIGNORE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.NoGitignore = b
		}
	}

	return cfg
}
