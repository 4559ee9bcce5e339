package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// ErrConfiguration marks a missing or invalid setting. It is fatal: the run
// aborts before any work starts.
var ErrConfiguration = errors.New("configuration error")

type Config struct {
	Sources   Sources   `yaml:"sources"`
	Fetch     Fetch     `yaml:"fetch"`
	Browser   Browser   `yaml:"browser"`
	Chunking  Chunking  `yaml:"chunking"`
	Embedding Embedding `yaml:"embedding"`
	Store     Store     `yaml:"store"`
	Loader    Loader    `yaml:"loader"`
	Output    Output    `yaml:"output"`
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
}

type Sources struct {
	Feeds  []Feed  `yaml:"feeds"`
	Crawls []Crawl `yaml:"crawls"`
}

type Feed struct {
	URL        string `yaml:"url"`
	Name       string `yaml:"name"`
	SourceType string `yaml:"source_type"`
	MaxEntries int    `yaml:"max_entries"`
}

type Crawl struct {
	Name           string        `yaml:"name"`
	Root           string        `yaml:"root"`
	SourceType     string        `yaml:"source_type"`
	Topics         []string      `yaml:"topics"`
	ArticlePattern string        `yaml:"article_pattern"`
	MinExpected    int           `yaml:"min_expected"`
	Selectors      []SelectorSet `yaml:"selectors"`
}

// SelectorSet is one generation of a site's markup. Empty selectors are
// skipped.
type SelectorSet struct {
	Name     string `yaml:"name"`
	Title    string `yaml:"title"`
	Author   string `yaml:"author"`
	Content  string `yaml:"content"`
	Date     string `yaml:"date"`
	DateAttr string `yaml:"date_attr"`
}

type Fetch struct {
	UserAgent      string `yaml:"user_agent"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	DelayMS        int    `yaml:"delay_ms"`
}

type Browser struct {
	Headless       bool   `yaml:"headless"`
	ExecPath       string `yaml:"exec_path"`
	SettleMS       int    `yaml:"settle_ms"`
	PageDelayMS    int    `yaml:"page_delay_ms"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Chunking struct {
	Strategy             string  `yaml:"strategy"`
	Size                 int     `yaml:"size"`
	Overlap              int     `yaml:"overlap"`
	BreakpointPercentile float64 `yaml:"breakpoint_percentile"`
}

type Embedding struct {
	Provider       string `yaml:"provider"`
	Model          string `yaml:"model"`
	Dimension      int    `yaml:"dimension"`
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	RetryAttempts  int    `yaml:"retry_attempts"`
	RetryDelayMS   int    `yaml:"retry_delay_ms"`
}

type Store struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	DSNEnv  string `yaml:"dsn_env"`
	Table   string `yaml:"table"`
	Metric  string `yaml:"metric"`
}

type Loader struct {
	Workers int `yaml:"workers"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
	LogFile string `yaml:"log_file"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for newsjuice.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "newsjuice")
}

// DataDir returns the XDG data directory for newsjuice.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "newsjuice")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/newsjuice/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: config file not found: %s", ErrConfiguration, explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"%w: no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'newsjuice init' to create a default config",
		ErrConfiguration, xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Fetch: Fetch{
			UserAgent:      "newsjuice-scraper/0.2 (+https://newsjuiceapp.com)",
			TimeoutSeconds: 10,
			DelayMS:        200,
		},
		Browser: Browser{
			Headless:       true,
			SettleMS:       1000,
			PageDelayMS:    200,
			TimeoutSeconds: 30,
		},
		Chunking: Chunking{
			Strategy:             "fixed",
			Size:                 350,
			Overlap:              20,
			BreakpointPercentile: 95,
		},
		Embedding: Embedding{
			Provider:       "hashing",
			Model:          "nomic-embed-text",
			Dimension:      768,
			APIKeyEnv:      "OPENAI_API_KEY",
			TimeoutSeconds: 60,
			RetryAttempts:  3,
			RetryDelayMS:   500,
		},
		Store: Store{
			Backend: "sqlite",
			DSNEnv:  "NEWSJUICE_PG_DSN",
			Table:   "chunks_vector",
			Metric:  "cosine",
		},
		Loader:  Loader{Workers: 4},
		Output:  Output{LogFile: "news.jsonl"},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks the settings a run cannot start without. Every returned
// error wraps ErrConfiguration.
func (c *Config) Validate() error {
	var problems []string

	if len(c.Sources.Feeds) == 0 && len(c.Sources.Crawls) == 0 {
		problems = append(problems, "no sources configured")
	}
	for i, f := range c.Sources.Feeds {
		if f.URL == "" {
			problems = append(problems, fmt.Sprintf("sources.feeds[%d]: url is required", i))
		}
	}
	for i, cr := range c.Sources.Crawls {
		if cr.Root == "" {
			problems = append(problems, fmt.Sprintf("sources.crawls[%d]: root is required", i))
		}
		if len(cr.Topics) == 0 {
			problems = append(problems, fmt.Sprintf("sources.crawls[%d]: at least one topic is required", i))
		}
		if cr.ArticlePattern == "" {
			problems = append(problems, fmt.Sprintf("sources.crawls[%d]: article_pattern is required", i))
		}
	}

	switch c.Chunking.Strategy {
	case "fixed", "recursive", "semantic":
	default:
		problems = append(problems, fmt.Sprintf("chunking.strategy: unknown strategy %q", c.Chunking.Strategy))
	}
	if c.Chunking.Size <= 0 {
		problems = append(problems, "chunking.size must be positive")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		problems = append(problems, "chunking.overlap must be in [0, size)")
	}

	switch c.Embedding.Provider {
	case "hashing", "ollama", "openai":
	default:
		problems = append(problems, fmt.Sprintf("embedding.provider: unknown provider %q", c.Embedding.Provider))
	}
	if c.Embedding.Dimension <= 0 {
		problems = append(problems, "embedding.dimension must be positive")
	}

	switch c.Store.Backend {
	case "sqlite", "postgres", "badger":
	default:
		problems = append(problems, fmt.Sprintf("store.backend: unknown backend %q", c.Store.Backend))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// LogPath returns the interchange log location. Relative names live in the
// data directory.
func (c *Config) LogPath() string {
	name := c.Output.LogFile
	if name == "" {
		name = "news.jsonl"
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.GetDataDir(), name)
}

// StorePath returns the on-disk location for file-backed stores.
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	if c.Store.Backend == "badger" {
		return filepath.Join(c.GetDataDir(), "newsjuice.badger")
	}
	return filepath.Join(c.GetDataDir(), "newsjuice.db")
}

// FetchTimeout returns the per-request HTTP timeout.
func (c *Config) FetchTimeout() time.Duration {
	return seconds(c.Fetch.TimeoutSeconds, 10)
}

// FetchDelay returns the pause between consecutive HTTP requests.
func (c *Config) FetchDelay() time.Duration {
	return time.Duration(c.Fetch.DelayMS) * time.Millisecond
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
