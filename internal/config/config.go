package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override (TRIBUNAL_MODEL, ...).
const EnvPrefix = "TRIBUNAL"

// Config represents the tribunal configuration.
type Config struct {
	Provider        string        `mapstructure:"provider" yaml:"provider"`
	Model           string        `mapstructure:"model" yaml:"model"`
	Format          string        `mapstructure:"format" yaml:"format"`
	RulesFile       string        `mapstructure:"rulesFile" yaml:"rulesFile,omitempty"`
	Lenses          []string      `mapstructure:"lenses" yaml:"lenses"`
	Exclude         []string      `mapstructure:"exclude" yaml:"exclude"`
	MaxFileBytes    int64         `mapstructure:"maxFileBytes" yaml:"maxFileBytes"`
	MaxContextFiles int           `mapstructure:"maxContextFiles" yaml:"maxContextFiles"`
	MaxTokens       int           `mapstructure:"maxTokens" yaml:"maxTokens"`
	Dedup           DedupConfig   `mapstructure:"dedup" yaml:"dedup"`
	Chunk           ChunkConfig   `mapstructure:"chunk" yaml:"chunk"`
	Cache           CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Privacy         PrivacyConfig `mapstructure:"privacy" yaml:"privacy"`
	Log             LogConfig     `mapstructure:"log" yaml:"log"`
	Session         SessionConfig `mapstructure:"session" yaml:"session"`
	Metrics         MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Tracing         TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// DedupConfig tunes finding deduplication.
type DedupConfig struct {
	Similarity float64 `mapstructure:"similarity" yaml:"similarity"`
}

// ChunkConfig controls chunked review of large diffs.
type ChunkConfig struct {
	ThresholdBytes int `mapstructure:"thresholdBytes" yaml:"thresholdBytes"`
	MaxConcurrency int `mapstructure:"maxConcurrency" yaml:"maxConcurrency"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir        string `mapstructure:"dir" yaml:"dir,omitempty"`
	TTLSeconds int    `mapstructure:"ttlSeconds" yaml:"ttlSeconds"`
}

// PrivacyConfig controls privacy/redaction behavior.
type PrivacyConfig struct {
	RedactSecrets bool     `mapstructure:"redactSecrets" yaml:"redactSecrets"`
	RedactPaths   []string `mapstructure:"redactPaths" yaml:"redactPaths,omitempty"`
}

// LogConfig controls the diagnostic logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SessionConfig controls the transcript store. An empty DB disables it.
type SessionConfig struct {
	DB string `mapstructure:"db" yaml:"db,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr,omitempty"`
}

// TracingConfig controls OpenTelemetry span collection.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Default returns a Config with all defaults applied. Provider and model are
// empty: the provider is auto-detected from credentials and the model
// follows the provider.
func Default() Config {
	return Config{
		Format:          "text",
		Lenses:          []string{"quality", "security_performance"},
		Exclude:         []string{"vendor/**", "**/*.gen.go", "**/dist/**"},
		MaxFileBytes:    50 * 1024,
		MaxContextFiles: 10,
		MaxTokens:       16384,
		Dedup:           DedupConfig{Similarity: 0.85},
		Chunk:           ChunkConfig{ThresholdBytes: 100000, MaxConcurrency: 4},
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: 86400,
		},
		Privacy: PrivacyConfig{
			RedactSecrets: true,
			RedactPaths:   []string{"**/.env", "**/*secrets*"},
		},
		Log: LogConfig{Level: "warn", Format: "text"},
	}
}

// Formats lists the supported output formats; md and yml are aliases.
var Formats = []string{"text", "markdown", "md", "json", "yaml", "yml", "sarif"}

// Validate checks values viper cannot type-check.
func (c Config) Validate() error {
	if !contains(Formats, c.Format) {
		return fmt.Errorf("invalid format %q (valid: %s)", c.Format, strings.Join(Formats, ", "))
	}
	if c.Dedup.Similarity <= 0 || c.Dedup.Similarity > 1 {
		return fmt.Errorf("dedup.similarity must be in (0, 1], got %v", c.Dedup.Similarity)
	}
	if !contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Log.Level)) {
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	if !contains([]string{"text", "json"}, c.Log.Format) {
		return fmt.Errorf("invalid log.format %q", c.Log.Format)
	}
	if c.MaxFileBytes <= 0 {
		return errors.New("maxFileBytes must be positive")
	}
	return nil
}

// ConfigDir returns the platform-appropriate config directory for tribunal.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tribunal"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "tribunal"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "tribunal"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "tribunal"), nil
	default:
		return filepath.Join(home, ".config", "tribunal"), nil
	}
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// newViper layers defaults, the config file and the environment. An explicit
// path must exist; the default path is optional.
func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		dir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("provider", d.Provider)
	v.SetDefault("model", d.Model)
	v.SetDefault("format", d.Format)
	v.SetDefault("rulesFile", d.RulesFile)
	v.SetDefault("lenses", d.Lenses)
	v.SetDefault("exclude", d.Exclude)
	v.SetDefault("maxFileBytes", d.MaxFileBytes)
	v.SetDefault("maxContextFiles", d.MaxContextFiles)
	v.SetDefault("maxTokens", d.MaxTokens)
	v.SetDefault("dedup.similarity", d.Dedup.Similarity)
	v.SetDefault("chunk.thresholdBytes", d.Chunk.ThresholdBytes)
	v.SetDefault("chunk.maxConcurrency", d.Chunk.MaxConcurrency)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.ttlSeconds", d.Cache.TTLSeconds)
	v.SetDefault("privacy.redactSecrets", d.Privacy.RedactSecrets)
	v.SetDefault("privacy.redactPaths", d.Privacy.RedactPaths)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("session.db", d.Session.DB)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
}

// Load builds the effective config by merging: defaults <- file <- env <- overrides.
// The overrides map comes from CLI flags; only flags the user set should be
// present. An empty path selects the default config file, if any.
func Load(path string, overrides map[string]any) (Config, error) {
	v, err := newViper(path)
	if err != nil {
		return Config{}, err
	}
	for key, val := range overrides {
		v.Set(key, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Setting is one effective config value and where it came from.
type Setting struct {
	Key    string
	Value  string
	Source string
	EnvVar string
}

// Describe reports every known key with its effective value and source
// (env, file or default).
func Describe(path string) ([]Setting, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	out := make([]Setting, 0, len(keys))
	for _, k := range keys {
		source := "default"
		if v.InConfig(k.Name) {
			source = "file"
		}
		env := EnvVar(k.Name)
		if _, ok := os.LookupEnv(env); ok {
			source = "env"
		}
		out = append(out, Setting{Key: k.Name, Value: formatValue(v.Get(k.Name)), Source: source, EnvVar: env})
	}
	return out, nil
}

// EnvVar returns the environment variable that overrides key.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func formatValue(val any) string {
	switch v := val.(type) {
	case []string:
		return strings.Join(v, ",")
	case []any:
		parts := make([]string, len(v))
		for i, p := range v {
			parts[i] = fmt.Sprint(p)
		}
		return strings.Join(parts, ",")
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

type kind int

const (
	kindString kind = iota
	kindInt
	kindFloat
	kindBool
	kindList
)

type key struct {
	Name string
	Kind kind
}

var keys = []key{
	{"provider", kindString},
	{"model", kindString},
	{"format", kindString},
	{"rulesFile", kindString},
	{"lenses", kindList},
	{"exclude", kindList},
	{"maxFileBytes", kindInt},
	{"maxContextFiles", kindInt},
	{"maxTokens", kindInt},
	{"dedup.similarity", kindFloat},
	{"chunk.thresholdBytes", kindInt},
	{"chunk.maxConcurrency", kindInt},
	{"cache.enabled", kindBool},
	{"cache.dir", kindString},
	{"cache.ttlSeconds", kindInt},
	{"privacy.redactSecrets", kindBool},
	{"privacy.redactPaths", kindList},
	{"log.level", kindString},
	{"log.format", kindString},
	{"session.db", kindString},
	{"metrics.addr", kindString},
	{"tracing.enabled", kindBool},
}

// Keys returns the names of every settable key, sorted.
func Keys() []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.Name
	}
	sort.Strings(out)
	return out
}

func lookupKey(name string) (key, bool) {
	for _, k := range keys {
		if strings.EqualFold(k.Name, name) {
			return k, true
		}
	}
	return key{}, false
}

// Init writes the default config to path. An existing file is only
// replaced when force is set.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	header := "# tribunal configuration\n# Every key can be overridden with " + EnvPrefix + "_<KEY> (dots become underscores).\n\n"
	return writeFile(path, append([]byte(header), data...))
}

// SetField sets a single key in the config file at path, creating the file
// if needed. Values are parsed according to the key's type.
func SetField(path, name, value string) error {
	k, ok := lookupKey(name)
	if !ok {
		return fmt.Errorf("unknown config key: %s", name)
	}
	parsed, err := parseValue(k, value)
	if err != nil {
		return err
	}

	doc := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}

	setNested(doc, strings.Split(k.Name, "."), parsed)

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return writeFile(path, data)
}

func parseValue(k key, value string) (any, error) {
	switch k.Kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer: %w", k.Name, err)
		}
		return n, nil
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a number: %w", k.Name, err)
		}
		return f, nil
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false: %w", k.Name, err)
		}
		return b, nil
	case kindList:
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return items, nil
	default:
		return value, nil
	}
}

func setNested(doc map[string]any, path []string, val any) {
	if len(path) == 1 {
		doc[path[0]] = val
		return
	}
	child, ok := doc[path[0]].(map[string]any)
	if !ok {
		child = map[string]any{}
		doc[path[0]] = child
	}
	setNested(child, path[1:], val)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
