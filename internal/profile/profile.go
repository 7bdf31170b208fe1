package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the metadata service.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Data is the data directory
	Data string
	// DSN points to where convmeta stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of the service
	Version string

	// StrictDefault is the strict-mode flag applied to newly created
	// conversations.
	StrictDefault bool
	// RetentionDays is how long archived conversations are kept before
	// vacuum removes them.
	RetentionDays int

	// Cache configuration
	CacheRedisAddr     string // CONVMETA_CACHE_REDIS_ADDR (empty: memory cache only)
	CacheRedisPassword string // CONVMETA_CACHE_REDIS_PASSWORD
	CacheRedisDB       int    // CONVMETA_CACHE_REDIS_DB

	// Keyword extraction configuration
	KeywordsEnabled bool   // CONVMETA_KEYWORDS_ENABLED (default: false)
	KeywordsUseLLM  bool   // CONVMETA_KEYWORDS_USE_LLM (default: false)
	OpenAIAPIKey    string // CONVMETA_OPENAI_API_KEY
	OpenAIBaseURL   string // CONVMETA_OPENAI_BASE_URL (default: https://api.openai.com/v1)
	OpenAIModel     string // CONVMETA_OPENAI_MODEL (default: gpt-4o-mini)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsKeywordLLMEnabled returns true when the LLM keyword layer is both
// enabled and configured with an API key.
func (p *Profile) IsKeywordLLMEnabled() bool {
	return p.KeywordsEnabled && p.KeywordsUseLLM && p.OpenAIAPIKey != ""
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "true" || v == "1" || v == "yes"
}

func getIntEnv(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

// FromEnv loads configuration from CONVMETA_* environment variables.
func (p *Profile) FromEnv() {
	p.Mode = getEnvOrDefault("CONVMETA_MODE", p.Mode)
	p.Data = getEnvOrDefault("CONVMETA_DATA", p.Data)
	p.DSN = getEnvOrDefault("CONVMETA_DSN", p.DSN)
	p.Driver = getEnvOrDefault("CONVMETA_DRIVER", p.Driver)

	if os.Getenv("CONVMETA_STRICT_DEFAULT") != "" {
		p.StrictDefault = getBoolEnv("CONVMETA_STRICT_DEFAULT")
	}
	p.RetentionDays = getIntEnv("CONVMETA_RETENTION_DAYS", p.RetentionDays)

	p.CacheRedisAddr = getEnvOrDefault("CONVMETA_CACHE_REDIS_ADDR", p.CacheRedisAddr)
	p.CacheRedisPassword = getEnvOrDefault("CONVMETA_CACHE_REDIS_PASSWORD", p.CacheRedisPassword)
	p.CacheRedisDB = getIntEnv("CONVMETA_CACHE_REDIS_DB", p.CacheRedisDB)

	if os.Getenv("CONVMETA_KEYWORDS_ENABLED") != "" {
		p.KeywordsEnabled = getBoolEnv("CONVMETA_KEYWORDS_ENABLED")
	}
	if os.Getenv("CONVMETA_KEYWORDS_USE_LLM") != "" {
		p.KeywordsUseLLM = getBoolEnv("CONVMETA_KEYWORDS_USE_LLM")
	}
	p.OpenAIAPIKey = getEnvOrDefault("CONVMETA_OPENAI_API_KEY", p.OpenAIAPIKey)
	p.OpenAIBaseURL = getEnvOrDefault("CONVMETA_OPENAI_BASE_URL", p.OpenAIBaseURL)
	p.OpenAIModel = getEnvOrDefault("CONVMETA_OPENAI_MODEL", p.OpenAIModel)
}

// Validate normalizes the profile and fills defaults.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Data == "" {
		p.Data = "."
	}
	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return errors.Wrapf(err, "invalid data directory: %s", p.Data)
	}
	p.Data = dataDir

	switch p.Driver {
	case "":
		p.Driver = "sqlite"
	case "sqlite", "postgres":
	default:
		return errors.Errorf("unsupported driver %q: only 'sqlite' and 'postgres' are supported", p.Driver)
	}

	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("convmeta_%s.db", p.Mode)
		p.DSN = filepath.Join(p.Data, dbFile)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for the postgres driver")
	}

	if p.RetentionDays <= 0 {
		p.RetentionDays = 30
	}
	if p.OpenAIBaseURL == "" {
		p.OpenAIBaseURL = "https://api.openai.com/v1"
	}
	if p.OpenAIModel == "" {
		p.OpenAIModel = "gpt-4o-mini"
	}

	return nil
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}
	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")

	if fi, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrap(err, "unable to access data directory")
	} else if !fi.IsDir() {
		return "", errors.Errorf("data path is not a directory: %s", dataDir)
	}

	return dataDir, nil
}
