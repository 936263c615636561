package config

import (
	"os"
	"path/filepath"

	"emperror.dev/errors"
	"github.com/CIDgravity/snakelet"
)

// DefaultOwner is the GitHub account the proxy reports on
const DefaultOwner = "FlorianRuen"

// environment variables taking precedence over the config file
const (
	EnvGithubClientID     = "GITHUB_CLIENT_ID"
	EnvGithubClientSecret = "GITHUB_CLIENT_SECRET"
	EnvListenPort         = "PORT"
)

// config structure
type Config struct {
	API       APIConfig       `mapstructure:"API"`
	Github    GithubConfig    `mapstructure:"GITHUB"`
	Cache     CacheConfig     `mapstructure:"CACHE"`
	Tasks     TasksConfig     `mapstructure:"TASKS"`
	Languages LanguagesConfig `mapstructure:"LANGUAGES"`
	Logs      LogsConfig      `mapstructure:"LOGS"`
}

type APIConfig struct {
	ListenPort             string `mapstructure:"ListenPort"`
	ShutdownTimeoutSeconds int    `mapstructure:"ShutdownTimeoutSeconds"`
}

type GithubConfig struct {
	Owner        string `mapstructure:"Owner"`
	ClientID     string `mapstructure:"ClientID"`
	ClientSecret string `mapstructure:"ClientSecret"`
	UserAgent    string `mapstructure:"UserAgent"`
	MediaType    string `mapstructure:"MediaType"`

	// 0 means no timeout on upstream calls
	RequestTimeoutSeconds int `mapstructure:"RequestTimeoutSeconds"`

	// budget used for the local rate limiter until it is synced with github
	RateLimitPerHour int `mapstructure:"RateLimitPerHour"`
}

type CacheConfig struct {
	MaxSizeBytes int64 `mapstructure:"MaxSizeBytes"`
	TTLSeconds   int   `mapstructure:"TTLSeconds"`
}

type TasksConfig struct {
	MaxParallelTasksAllowed int `mapstructure:"MaxParallelTasksAllowed"`
}

type LanguagesConfig struct {
	// when true, a repository answering 404 on its languages is skipped
	// instead of failing the whole aggregation
	SkipMissingRepositories bool `mapstructure:"SkipMissingRepositories"`
}

type LogsConfig struct {
	Level            string `mapstructure:"Level"` // error | warn | info | debug - case insensitive
	OutputLogsAsJSON bool   `mapstructure:"OutputLogsAsJSON"`
}

// Load will read the config file if one is found, apply it on top of the defaults
// and finally apply the environment overrides
func Load() (*Config, error) {
	cfg := GetDefault()

	configFilePath, err := findConfigFile()
	if err != nil {
		return nil, err
	}

	if configFilePath != "" {
		if _, err := snakelet.InitAndLoad(cfg, configFilePath); err != nil {
			return nil, errors.WrapIf(err, "unable to load config file "+configFilePath)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// findConfigFile look for config/config.toml next to the binary, then in the working directory
// an empty path without error means no file was found
func findConfigFile() (string, error) {
	dir, err := filepath.Abs(filepath.Dir(os.Args[0]))
	if err != nil {
		return "", errors.WrapIf(err, "unable to resolve binary directory")
	}

	for _, candidate := range []string{filepath.Join(dir, "config", "config.toml"), filepath.Join("config", "config.toml")} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", errors.WrapIf(err, "unable to stat config file "+candidate)
		}
	}

	return "", nil
}

// ApplyEnv override credentials and listen port with the environment
// lookup is os.LookupEnv outside of tests
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvGithubClientID); ok && v != "" {
		c.Github.ClientID = v
	}

	if v, ok := lookup(EnvGithubClientSecret); ok && v != "" {
		c.Github.ClientSecret = v
	}

	if v, ok := lookup(EnvListenPort); ok && v != "" {
		c.API.ListenPort = v
	}
}

// GetDefault
func GetDefault() *Config {
	return &Config{
		API: APIConfig{
			ListenPort:             "8080",
			ShutdownTimeoutSeconds: 15,
		},
		Github: GithubConfig{
			Owner:                 DefaultOwner,
			UserAgent:             DefaultOwner,
			MediaType:             "application/vnd.github.v3.raw",
			RequestTimeoutSeconds: 10,
			RateLimitPerHour:      5000,
		},
		Cache: CacheConfig{
			MaxSizeBytes: 10 * 1024 * 1024,
			TTLSeconds:   7200,
		},
		Tasks: TasksConfig{
			MaxParallelTasksAllowed: 8,
		},
		Languages: LanguagesConfig{
			SkipMissingRepositories: false,
		},
		Logs: LogsConfig{
			Level:            "info",
			OutputLogsAsJSON: false,
		},
	}
}
