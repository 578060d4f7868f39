// Package config provides configuration management for the twig support layer
// using Viper for loading from files, environment variables, and command-line
// flags.
//
// The configuration system supports YAML files, environment variable overrides
// with the TWIG_SUPPORT_ prefix, defaults, and validation. It carries the
// loader switch, the per-name skip list, the cache lifetime and backend, the
// installed packages in declared order and the known theme folders.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/heimrichhannot/contao-twig-support-bundle/internal/types"
	"github.com/spf13/viper"
)

// Environment names.
const (
	EnvironmentProd = "prod"
	EnvironmentDev  = "dev"
)

// Cache backends.
const (
	CacheBackendFile   = "file"
	CacheBackendSQLite = "sqlite"
	CacheBackendMemory = "memory"
)

type Config struct {
	EnableTemplateLoader  bool            `mapstructure:"enable_template_loader" yaml:"enable_template_loader"`
	SkipTemplates         []string        `mapstructure:"skip_templates" yaml:"skip_templates"`
	TemplateCacheLifetime int             `mapstructure:"template_cache_lifetime" yaml:"template_cache_lifetime"`
	Environment           string          `mapstructure:"environment" yaml:"environment"`
	DebugMode             bool            `mapstructure:"debug_mode" yaml:"debug_mode"`
	ProjectDir            string          `mapstructure:"project_dir" yaml:"project_dir"`
	Templates             TemplatesConfig `mapstructure:"templates" yaml:"templates"`
	Packages              []types.Package `mapstructure:"packages" yaml:"packages"`
	Themes                []types.Theme   `mapstructure:"themes" yaml:"themes"`
	Cache                 CacheConfig     `mapstructure:"cache" yaml:"cache"`
	Watch                 WatchConfig     `mapstructure:"watch" yaml:"watch"`
	Log                   LogConfig       `mapstructure:"log" yaml:"log"`
}

type TemplatesConfig struct {
	// Pattern selects template files below every scan root (doublestar syntax).
	Pattern string `mapstructure:"pattern" yaml:"pattern"`
	// SkipSuffixes lists non-primary suffixes whose files are never indexed.
	SkipSuffixes []string `mapstructure:"skip_suffixes" yaml:"skip_suffixes"`
	// Dir is the project template root, relative to ProjectDir.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

type CacheConfig struct {
	Backend  string `mapstructure:"backend" yaml:"backend"`
	Dir      string `mapstructure:"dir" yaml:"dir"`
	Compress bool   `mapstructure:"compress" yaml:"compress"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
	Ignore   []string      `mapstructure:"ignore" yaml:"ignore"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from the given viper instance, applies
// defaults and validates the result.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Handle skip_templates set via env or flags (workaround for viper slice handling)
	if v.IsSet("skip_templates") && len(config.SkipTemplates) == 0 {
		config.SkipTemplates = v.GetStringSlice("skip_templates")
	}

	applyDefaults(v, &config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns a configuration with every default applied. It is the
// configuration used by tests and by embedders that do not load files.
func Default() *Config {
	config := &Config{}
	applyDefaults(viper.New(), config)
	return config
}

func applyDefaults(v *viper.Viper, config *Config) {
	if config.Environment == "" {
		config.Environment = EnvironmentProd
	}
	if config.ProjectDir == "" {
		config.ProjectDir = "."
	}
	if config.Templates.Pattern == "" {
		config.Templates.Pattern = "**/*.twig"
	}
	if !v.IsSet("templates.skip_suffixes") && len(config.Templates.SkipSuffixes) == 0 {
		config.Templates.SkipSuffixes = []string{".html5.twig"}
	}
	if config.Templates.Dir == "" {
		config.Templates.Dir = "templates"
	}
	if config.Cache.Backend == "" {
		config.Cache.Backend = CacheBackendFile
	}
	if config.Cache.Dir == "" {
		config.Cache.Dir = filepath.Join("var", "cache", "twig-support")
	}
	if !v.IsSet("cache.compress") {
		config.Cache.Compress = true
	}
	if config.Watch.Debounce == 0 {
		config.Watch.Debounce = 300 * time.Millisecond
	}
	if len(config.Watch.Ignore) == 0 {
		config.Watch.Ignore = []string{"**/.git/**", "**/node_modules/**"}
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

// IsDev reports whether the index must be rebuilt on every query.
func (c *Config) IsDev() bool {
	return c.Environment == EnvironmentDev
}

// CacheLifetime returns the advisory TTL of cached indexes; zero means indefinite.
func (c *Config) CacheLifetime() time.Duration {
	return time.Duration(c.TemplateCacheLifetime) * time.Second
}

// TemplateRoot returns the project template directory.
func (c *Config) TemplateRoot() string {
	if filepath.IsAbs(c.Templates.Dir) {
		return c.Templates.Dir
	}
	return filepath.Join(c.ProjectDir, c.Templates.Dir)
}

// CacheDir returns the cache directory, resolved against the project directory.
func (c *Config) CacheDir() string {
	if filepath.IsAbs(c.Cache.Dir) {
		return c.Cache.Dir
	}
	return filepath.Join(c.ProjectDir, c.Cache.Dir)
}

// IsSkipped reports whether a template name is on the skip list.
func (c *Config) IsSkipped(name string) bool {
	for _, skipped := range c.SkipTemplates {
		if skipped == name {
			return true
		}
	}
	return false
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if config.TemplateCacheLifetime < 0 {
		return fmt.Errorf("template_cache_lifetime must not be negative: %d", config.TemplateCacheLifetime)
	}

	switch config.Environment {
	case EnvironmentProd, EnvironmentDev:
	default:
		return fmt.Errorf("unknown environment %q", config.Environment)
	}

	if err := validateTemplatesConfig(&config.Templates); err != nil {
		return fmt.Errorf("templates config: %w", err)
	}

	if err := validatePackages(config.Packages); err != nil {
		return fmt.Errorf("packages config: %w", err)
	}

	if err := validateThemes(config.Themes); err != nil {
		return fmt.Errorf("themes config: %w", err)
	}

	if err := validateCacheConfig(&config.Cache); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	return nil
}

func validateTemplatesConfig(config *TemplatesConfig) error {
	if err := validateRelativePath(config.Dir); err != nil {
		return fmt.Errorf("invalid template dir '%s': %w", config.Dir, err)
	}
	for _, suffix := range config.SkipSuffixes {
		if !strings.HasPrefix(suffix, ".") {
			return fmt.Errorf("skip suffix %q must start with a dot", suffix)
		}
	}
	return nil
}

func validatePackages(packages []types.Package) error {
	seen := make(map[string]struct{}, len(packages))
	for _, pkg := range packages {
		if pkg.Name == "" {
			return fmt.Errorf("package with path %q has no name", pkg.Path)
		}
		if strings.ContainsAny(pkg.Name, "/@\\") {
			return fmt.Errorf("package name %q contains a reserved character", pkg.Name)
		}
		if pkg.Path == "" {
			return fmt.Errorf("package %q has no path", pkg.Name)
		}
		if _, dup := seen[pkg.Name]; dup {
			return fmt.Errorf("duplicate package %q", pkg.Name)
		}
		seen[pkg.Name] = struct{}{}
	}
	return nil
}

func validateThemes(themes []types.Theme) error {
	for _, theme := range themes {
		if theme.Folder == "" {
			continue
		}
		if err := validateRelativePath(theme.Folder); err != nil {
			return fmt.Errorf("invalid folder for theme '%s': %w", theme.Name, err)
		}
	}
	return nil
}

func validateCacheConfig(config *CacheConfig) error {
	switch config.Backend {
	case CacheBackendFile, CacheBackendSQLite, CacheBackendMemory:
	default:
		return fmt.Errorf("unknown cache backend %q", config.Backend)
	}
	return nil
}

// validateRelativePath rejects traversal and dangerous characters.
func validateRelativePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
