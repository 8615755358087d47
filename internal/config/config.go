package config

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileNames are the optional config files looked up in the repository
// root, in order. An extensionless "docgraph" (the built binary) is ignored.
var FileNames = []string{"docgraph.yaml", "docgraph.yml"}

// EnvPrefix prefixes every environment override, e.g. DOCGRAPH_OUTPUT.
const EnvPrefix = "DOCGRAPH"

type Config struct {
	RepoRoot   string   `mapstructure:"repo_root"`
	DocsDirs   []string `mapstructure:"docs_dirs"`
	SourceDirs []string `mapstructure:"source_dirs"`

	// Output files, relative to RepoRoot unless absolute.
	Output string `mapstructure:"output"`
	Report string `mapstructure:"report"`

	RootID  string   `mapstructure:"root_id"`
	Exclude []string `mapstructure:"exclude"`
	Include []string `mapstructure:"include"`

	// Stage switches
	AnalyzeCode bool `mapstructure:"analyze_code"`
	SuggestOnly bool `mapstructure:"suggest_only"`
	AutoLink    bool `mapstructure:"auto_link"`

	ReadConcurrency int `mapstructure:"read_concurrency"`

	// HTTP
	Port   string `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		RepoRoot:        ".",
		DocsDirs:        []string{"docs"},
		SourceDirs:      []string{"src", "lib", "app"},
		Output:          "docs/tree.json",
		RootID:          "root",
		ReadConcurrency: 16,
		Port:            "8090",
		LogLevel:        "info",
		LogFormat:       "json",
		WatchDebounce:   300 * time.Millisecond,
	}
}

// flagKeys maps CLI flag names onto config keys.
var flagKeys = map[string]string{
	"root":             "repo_root",
	"docs":             "docs_dirs",
	"src":              "source_dirs",
	"output":           "output",
	"report":           "report",
	"root-id":          "root_id",
	"exclude":          "exclude",
	"include":          "include",
	"analyze-code":     "analyze_code",
	"suggest-only":     "suggest_only",
	"auto-link":        "auto_link",
	"read-concurrency": "read_concurrency",
	"port":             "port",
	"api-key":          "api_key",
	"log-level":        "log_level",
	"log-format":       "log_format",
	"debounce":         "watch_debounce",
}

// Load layers defaults, the optional docgraph.yaml, DOCGRAPH_* environment
// variables and any changed flags, in increasing precedence. configFile
// overrides the file lookup; flags may be nil.
func Load(configFile string, flags *pflag.FlagSet) (Config, error) {
	def := Default()
	v := viper.New()

	v.SetDefault("repo_root", def.RepoRoot)
	v.SetDefault("docs_dirs", def.DocsDirs)
	v.SetDefault("source_dirs", def.SourceDirs)
	v.SetDefault("output", def.Output)
	v.SetDefault("report", def.Report)
	v.SetDefault("root_id", def.RootID)
	v.SetDefault("exclude", []string{})
	v.SetDefault("include", []string{})
	v.SetDefault("analyze_code", false)
	v.SetDefault("suggest_only", false)
	v.SetDefault("auto_link", false)
	v.SetDefault("read_concurrency", def.ReadConcurrency)
	v.SetDefault("port", def.Port)
	v.SetDefault("api_key", "")
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)
	v.SetDefault("watch_debounce", def.WatchDebounce)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if configFile == "" {
		configFile = findConfigFile(v.GetString("repo_root"))
	}
	// No config file: defaults, env and flags only.
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.RepoRoot == "" {
		cfg.RepoRoot = def.RepoRoot
	}
	if cfg.ReadConcurrency <= 0 {
		cfg.ReadConcurrency = def.ReadConcurrency
	}
	if cfg.WatchDebounce <= 0 {
		cfg.WatchDebounce = def.WatchDebounce
	}
	if cfg.Output == "" {
		cfg.Output = def.Output
	}
	if cfg.Port == "" {
		cfg.Port = def.Port
	}
	cfg.DocsDirs = cleanDirs(cfg.DocsDirs)
	cfg.SourceDirs = cleanDirs(cfg.SourceDirs)

	return cfg, nil
}

func (c Config) Validate() error {
	if len(c.DocsDirs) == 0 {
		return fmt.Errorf("docs_dirs must name at least one directory")
	}
	for _, d := range append(append([]string{}, c.DocsDirs...), c.SourceDirs...) {
		if path.IsAbs(d) || filepath.IsAbs(d) {
			return fmt.Errorf("directory %q must be relative to repo_root", d)
		}
		if d == ".." || strings.HasPrefix(d, "../") {
			return fmt.Errorf("directory %q escapes repo_root", d)
		}
	}
	if c.SuggestOnly && !c.AnalyzeCode {
		return fmt.Errorf("suggest_only requires analyze_code")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log_format must be json or text, got %q", c.LogFormat)
	}
	return nil
}

func findConfigFile(root string) string {
	for _, name := range FileNames {
		p := filepath.Join(root, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// ParseLevel maps a level name onto a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log_level %q", s)
}

// Resolve returns p joined onto the repository root unless p is absolute.
func (c Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.RepoRoot, filepath.FromSlash(p))
}

// cleanDirs normalizes directory lists to clean slash paths, dropping
// blanks and duplicates.
func cleanDirs(dirs []string) []string {
	seen := make(map[string]bool, len(dirs))
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		for _, part := range strings.Split(d, ",") {
			part = strings.TrimSpace(filepath.ToSlash(part))
			if part == "" {
				continue
			}
			part = path.Clean(part)
			if seen[part] {
				continue
			}
			seen[part] = true
			out = append(out, part)
		}
	}
	return out
}
