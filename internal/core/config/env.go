package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override config file values.
const (
	EnvEngine       = "TEXTUBE_ENGINE"
	EnvTier         = "TEXTUBE_TIER"
	EnvWorkDir      = "TEXTUBE_WORK_DIR"
	EnvPort         = "TEXTUBE_PORT"
	EnvAPIKey       = "TEXTUBE_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment. Variables already set are left alone, and missing files
// are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// ApplyEnv overrides config fields from the environment. Empty variables
// and an unparsable port are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv(EnvEngine); v != "" {
		c.Transcribe.Engine = v
	}
	if v := getenv(EnvTier); v != "" {
		c.Transcribe.Tier = v
	}
	if v := getenv(EnvWorkDir); v != "" {
		c.WorkDir = expandPath(v)
	}
	if v := getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
	if v := getenv(EnvAPIKey); v != "" {
		c.Server.APIKey = v
	}
	if v := getenv(EnvOpenAIAPIKey); v != "" && c.Transcribe.OpenAI.APIKey == "" {
		c.Transcribe.OpenAI.APIKey = v
	}
}
