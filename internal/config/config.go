package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/dshills/treeindex/internal/indexer"
	"github.com/dshills/treeindex/internal/scheduler"
	"github.com/dshills/treeindex/internal/search"
	"github.com/dshills/treeindex/pkg/types"
)

// Environment variables consulted by Load
const (
	EnvConfigPath = "TREEINDEX_CONFIG"
	EnvMeiliURL   = "MEILISEARCH_URL"
	EnvMeiliKey   = "MEILISEARCH_API_KEY"
)

// Defaults
const (
	DefaultPath      = "config.toml"
	DefaultMeiliURL  = "http://127.0.0.1:7700"
	DefaultDBPath    = "~/.treeindex/state.db"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

var (
	// ErrNoProjects is returned when the configuration declares no project
	ErrNoProjects = errors.New("no projects configured")
	// ErrUnknownKeys is returned when the file contains keys Load does not know
	ErrUnknownKeys = errors.New("unknown configuration keys")
)

// Config is the whole treeindex configuration
type Config struct {
	Meilisearch MeilisearchConfig `toml:"meilisearch"`
	Scheduler   SchedulerConfig   `toml:"scheduler"`
	State       StateConfig       `toml:"state"`
	Metrics     MetricsConfig     `toml:"metrics"`
	Log         LogConfig         `toml:"log"`
	Projects    []ProjectConfig   `toml:"projects"`

	// Path of the file the configuration was read from; empty when built in code
	Path string `toml:"-"`
}

// MeilisearchConfig is the [meilisearch] section
type MeilisearchConfig struct {
	URL              string   `toml:"url"`
	APIKey           string   `toml:"api_key"`
	IndexName        string   `toml:"index_name"`
	BatchSize        int      `toml:"batch_size"`
	RequestTimeout   Duration `toml:"request_timeout"`
	TaskTimeout      Duration `toml:"task_timeout"`
	TaskPollInterval Duration `toml:"task_poll_interval"`
}

// SchedulerConfig is the [scheduler] section
type SchedulerConfig struct {
	Guard                string   `toml:"guard"`    // "project" or "global"
	Timezone             string   `toml:"timezone"` // IANA name; empty means local time
	HousekeepingInterval Duration `toml:"housekeeping_interval"`
	ShutdownGrace        Duration `toml:"shutdown_grace"`
	HistoryKeep          *int     `toml:"history_keep"` // 0 disables pruning
}

// StateConfig is the [state] section
type StateConfig struct {
	DBPath string `toml:"db_path"`
}

// MetricsConfig is the [metrics] section
type MetricsConfig struct {
	Listen string `toml:"listen"` // e.g. ":9090"; empty disables the listener
}

// LogConfig is the [log] section
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json"
}

// ProjectConfig is one [[projects]] entry
type ProjectConfig struct {
	ID             string `toml:"id"`
	Root           string `toml:"root"`
	Schedule       string `toml:"schedule"`
	MaxDepth       int    `toml:"max_depth"`
	IgnoreFile     string `toml:"ignore_file"`
	IndexHidden    bool   `toml:"index_hidden"`
	FollowSymlinks bool   `toml:"follow_symlinks"`
}

// Duration decodes TOML strings such as "30s" or "5m"
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q (use Go syntax: 30s, 5m, 1h)", text)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// ResolvePath returns the configuration file to read: explicit if set,
// otherwise $TREEINDEX_CONFIG, otherwise config.toml
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	return DefaultPath
}

// Load reads, normalizes and validates the configuration file at path
func Load(path string) (*Config, error) {
	path = ResolvePath(path)

	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("%s: %w: %s", path, ErrUnknownKeys, strings.Join(keys, ", "))
	}
	cfg.Path = path

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Parse decodes configuration from TOML text. Relative project roots are
// resolved against the working directory.
func Parse(data string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize applies environment overrides and defaults, expands ~ and
// derives missing project ids
func (c *Config) normalize() error {
	if v := os.Getenv(EnvMeiliURL); v != "" {
		c.Meilisearch.URL = v
	}
	if v := os.Getenv(EnvMeiliKey); v != "" {
		c.Meilisearch.APIKey = v
	}

	if c.Meilisearch.URL == "" {
		c.Meilisearch.URL = DefaultMeiliURL
	}
	if c.Meilisearch.IndexName == "" {
		c.Meilisearch.IndexName = indexer.DefaultIndexName
	}
	if c.Meilisearch.BatchSize == 0 {
		c.Meilisearch.BatchSize = indexer.DefaultBatchSize
	}
	if c.Meilisearch.RequestTimeout.Duration == 0 {
		c.Meilisearch.RequestTimeout.Duration = search.DefaultRequestTimeout
	}
	if c.Meilisearch.TaskTimeout.Duration == 0 {
		c.Meilisearch.TaskTimeout.Duration = search.DefaultTaskTimeout
	}
	if c.Meilisearch.TaskPollInterval.Duration == 0 {
		c.Meilisearch.TaskPollInterval.Duration = search.DefaultTaskPollInterval
	}

	if c.Scheduler.Guard == "" {
		c.Scheduler.Guard = indexer.ScopeProject
	}
	if c.Scheduler.HousekeepingInterval.Duration == 0 {
		c.Scheduler.HousekeepingInterval.Duration = scheduler.DefaultHousekeepingInterval
	}
	if c.Scheduler.ShutdownGrace.Duration == 0 {
		c.Scheduler.ShutdownGrace.Duration = scheduler.DefaultShutdownGrace
	}
	if c.Scheduler.HistoryKeep == nil {
		keep := scheduler.DefaultHistoryKeep
		c.Scheduler.HistoryKeep = &keep
	}

	if c.State.DBPath == "" {
		c.State.DBPath = DefaultDBPath
	}
	dbPath, err := expandHome(c.State.DBPath)
	if err != nil {
		return err
	}
	c.State.DBPath = dbPath

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	base := ""
	if c.Path != "" {
		base = filepath.Dir(c.Path)
	}
	for i := range c.Projects {
		p := &c.Projects[i]
		if p.Root == "" {
			continue
		}
		root, err := expandHome(p.Root)
		if err != nil {
			return err
		}
		if !filepath.IsAbs(root) {
			if base != "" {
				root = filepath.Join(base, root)
			}
			if root, err = filepath.Abs(root); err != nil {
				return fmt.Errorf("project root %q: %w", p.Root, err)
			}
		}
		p.Root = filepath.Clean(root)
		if p.ID == "" {
			p.ID = types.DefaultProjectID(p.Root)
		}
	}
	return nil
}

// Validate checks the configuration. Every problem is reported, not just
// the first.
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.Meilisearch.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("meilisearch.url %q: expected http(s)://host[:port]", c.Meilisearch.URL))
	}
	if c.Meilisearch.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("meilisearch.batch_size must be positive, got %d", c.Meilisearch.BatchSize))
	}
	for name, d := range map[string]Duration{
		"meilisearch.request_timeout":     c.Meilisearch.RequestTimeout,
		"meilisearch.task_timeout":        c.Meilisearch.TaskTimeout,
		"meilisearch.task_poll_interval":  c.Meilisearch.TaskPollInterval,
		"scheduler.housekeeping_interval": c.Scheduler.HousekeepingInterval,
		"scheduler.shutdown_grace":        c.Scheduler.ShutdownGrace,
	} {
		if d.Duration < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}

	if c.Scheduler.Guard != indexer.ScopeProject && c.Scheduler.Guard != indexer.ScopeGlobal {
		errs = append(errs, fmt.Errorf("scheduler.guard %q: expected %q or %q",
			c.Scheduler.Guard, indexer.ScopeProject, indexer.ScopeGlobal))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
	}
	if c.Scheduler.HistoryKeep != nil && *c.Scheduler.HistoryKeep < 0 {
		errs = append(errs, errors.New("scheduler.history_keep must not be negative"))
	}

	if _, err := parseLogLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format %q: expected json or text", c.Log.Format))
	}

	if len(c.Projects) == 0 {
		errs = append(errs, ErrNoProjects)
	}
	seen := make(map[string]bool, len(c.Projects))
	for i, pc := range c.Projects {
		p := pc.Project()
		label := fmt.Sprintf("projects[%d]", i)
		if p.ID != "" {
			label = fmt.Sprintf("project %q", p.ID)
		}
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
			continue
		}
		if seen[p.ID] {
			errs = append(errs, fmt.Errorf("%s: duplicate project id", label))
		}
		seen[p.ID] = true
		if _, err := scheduler.ParseSchedule(p.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
		}
	}

	return errors.Join(errs...)
}

// Project converts the entry into the domain type
func (pc ProjectConfig) Project() types.Project {
	return types.Project{
		ID:             pc.ID,
		Root:           pc.Root,
		Schedule:       pc.Schedule,
		MaxDepth:       pc.MaxDepth,
		IgnoreFile:     pc.IgnoreFile,
		IndexHidden:    pc.IndexHidden,
		FollowSymlinks: pc.FollowSymlinks,
	}
}

// ProjectList returns every configured project in file order
func (c *Config) ProjectList() []types.Project {
	out := make([]types.Project, 0, len(c.Projects))
	for _, pc := range c.Projects {
		out = append(out, pc.Project())
	}
	return out
}

// Location returns the time zone cron expressions are evaluated in
func (c *Config) Location() (*time.Location, error) {
	if c.Scheduler.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Scheduler.Timezone)
}

// ClientConfig returns the settings of the Meilisearch client
func (c *Config) ClientConfig() search.ClientConfig {
	return search.ClientConfig{
		URL:              c.Meilisearch.URL,
		APIKey:           c.Meilisearch.APIKey,
		RequestTimeout:   c.Meilisearch.RequestTimeout.Duration,
		TaskTimeout:      c.Meilisearch.TaskTimeout.Duration,
		TaskPollInterval: c.Meilisearch.TaskPollInterval.Duration,
	}
}

// IndexerConfig returns the settings of the batch synchronizer
func (c *Config) IndexerConfig() indexer.Config {
	return indexer.Config{
		IndexName: c.Meilisearch.IndexName,
		BatchSize: c.Meilisearch.BatchSize,
	}
}

// SchedulerOptions returns the scheduler settings. Runtime collaborators
// (history, recorder, logger) are left for the caller to fill in.
func (c *Config) SchedulerOptions() (scheduler.Options, error) {
	loc, err := c.Location()
	if err != nil {
		return scheduler.Options{}, err
	}
	keep := scheduler.DefaultHistoryKeep
	if c.Scheduler.HistoryKeep != nil {
		keep = *c.Scheduler.HistoryKeep
	}
	return scheduler.Options{
		Guard:                c.Scheduler.Guard,
		Location:             loc,
		HousekeepingInterval: c.Scheduler.HousekeepingInterval.Duration,
		ShutdownGrace:        c.Scheduler.ShutdownGrace.Duration,
		HistoryKeep:          keep,
	}, nil
}

// Summary renders the effective configuration for logging, with the API
// key masked
func (c *Config) Summary() []any {
	projects := make([]string, 0, len(c.Projects))
	for _, p := range c.Projects {
		projects = append(projects, p.ID)
	}
	sort.Strings(projects)

	return []any{
		slog.String("meilisearch_url", c.Meilisearch.URL),
		slog.String("api_key", maskSecret(c.Meilisearch.APIKey)),
		slog.String("index", c.Meilisearch.IndexName),
		slog.Int("batch_size", c.Meilisearch.BatchSize),
		slog.String("guard", c.Scheduler.Guard),
		slog.String("timezone", c.Scheduler.Timezone),
		slog.String("db_path", c.State.DBPath),
		slog.String("metrics_listen", c.Metrics.Listen),
		slog.Any("projects", projects),
	}
}

// SetupLogger builds the process logger. Output goes to w (stderr in the
// CLI) so stdout stays free for the MCP stdio transport. levelOverride, when
// non-empty, wins over log.level.
func (c *Config) SetupLogger(w io.Writer, levelOverride string) (*slog.Logger, error) {
	name := c.Log.Level
	if levelOverride != "" {
		name = levelOverride
	}
	level, err := parseLogLevel(name)
	if err != nil {
		return nil, err
	}
	return NewLogger(w, c.Log.Format, level), nil
}

// NewLogger builds a slog logger writing format ("json" or "text") to w
func NewLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLogLevel converts a level name into a slog.Level
func ParseLogLevel(level string) (slog.Level, error) {
	return parseLogLevel(level)
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid level %q, expected debug, info, warn or error", level)
	}
}

func maskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "****"
	default:
		return s[:4] + "****"
	}
}

// expandHome replaces a leading ~ with the user's home directory
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
