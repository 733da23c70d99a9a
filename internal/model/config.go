package model

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// envPrefix is prepended to every environment override, e.g.
// JIRA_IMPORT_JIRA_BASE_URL for jira.base_url.
const envPrefix = "JIRA_IMPORT"

// JiraConfig holds the connection settings for the JIRA instance.
type JiraConfig struct {
	// BaseURL is the root URL of the JIRA server.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Username switches the client to basic auth when set. Otherwise the
	// token is sent as a bearer Personal Access Token.
	Username string `mapstructure:"username" yaml:"username"`

	// CommentField is the name of the custom field whose value becomes
	// the comment block of imported test cases.
	CommentField string `mapstructure:"comment_field" yaml:"comment_field"`

	// PageSize is the number of issues requested per search page.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`
}

// ProjectConfig locates the test project.
type ProjectConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// StoreConfig locates the local index database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig controls the file logger.
type LogConfig struct {
	File  string `mapstructure:"file" yaml:"file"`
	Level string `mapstructure:"level" yaml:"level"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Jira    JiraConfig    `mapstructure:"jira" yaml:"jira"`
	Project ProjectConfig `mapstructure:"project" yaml:"project"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// ConfigDir returns ~/.config/jira-import, falling back to the working
// directory when the home directory is unknown.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "jira-import")
}

// DefaultConfigPath returns the default path for the configuration file.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := ConfigDir()
	return &AppConfig{
		Jira: JiraConfig{
			CommentField: "Test Script",
			PageSize:     50,
		},
		Project: ProjectConfig{Dir: "."},
		Store:   StoreConfig{Path: filepath.Join(dir, "index.db")},
		Log: LogConfig{
			File:  filepath.Join(dir, "import.log"),
			Level: "info",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("jira.base_url", d.Jira.BaseURL)
	v.SetDefault("jira.username", d.Jira.Username)
	v.SetDefault("jira.comment_field", d.Jira.CommentField)
	v.SetDefault("jira.page_size", d.Jira.PageSize)
	v.SetDefault("project.dir", d.Project.Dir)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.level", d.Log.Level)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A missing file is not an error; defaults and environment overrides still
// apply. When flags is non-nil, set flags override file and environment
// values; the "project" and "base-url" flags map to project.dir and
// jira.base_url.
func LoadConfig(path string, flags *pflag.FlagSet) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		bindings := map[string]string{
			"project.dir":   "project",
			"jira.base_url": "base-url",
		}
		for key, name := range bindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Jira.PageSize < 1 {
		cfg.Jira.PageSize = 50
	}
	cfg.Jira.BaseURL = strings.TrimRight(cfg.Jira.BaseURL, "/")

	return cfg, nil
}

// Validate reports configuration that makes an import impossible.
func (c *AppConfig) Validate() error {
	if c.Jira.BaseURL == "" {
		return fmt.Errorf("jira.base_url is not set")
	}
	if !strings.HasPrefix(c.Jira.BaseURL, "http://") &&
		!strings.HasPrefix(c.Jira.BaseURL, "https://") {
		return fmt.Errorf("jira.base_url %q must start with http:// or https://", c.Jira.BaseURL)
	}
	if c.Project.Dir == "" {
		return fmt.Errorf("project.dir is not set")
	}
	return nil
}

// LogLevel maps the configured level name to a slog level. Unknown
// names resolve to info.
func (c *AppConfig) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("jira", cfg.Jira)
	v.Set("project", cfg.Project)
	v.Set("store", cfg.Store)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
