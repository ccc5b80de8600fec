// Package config loads and validates the service configuration from a YAML
// file, expanding environment references so credentials stay out of the file
// itself.
package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "12h" parse.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the whole service configuration.
type Config struct {
	Server struct {
		Listen          string   `yaml:"listen"`
		ReadTimeout     Duration `yaml:"read_timeout"`
		WriteTimeout    Duration `yaml:"write_timeout"`
		ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Cache struct {
		RendersDir    string   `yaml:"renders_dir"`
		ImagesDir     string   `yaml:"images_dir"`
		ImageIdleTTL  Duration `yaml:"image_idle_ttl"`
		PruneInterval Duration `yaml:"prune_interval"`
	} `yaml:"cache"`

	Upstream struct {
		BaseURL    string   `yaml:"base_url"`
		Username   string   `yaml:"username"`
		Password   string   `yaml:"password"`
		TOTPSecret string   `yaml:"totp_secret"`
		UserAgent  string   `yaml:"user_agent"`
		CacheTTL   Duration `yaml:"cache_ttl"`
		StorePath  string   `yaml:"store_path"`
	} `yaml:"upstream"`

	Render struct {
		RasterizerCommand string `yaml:"rasterizer_command"`
		MaxConcurrent     int64  `yaml:"max_concurrent"`
		FontsDir          string `yaml:"fonts_dir"`
	} `yaml:"render"`

	Observe struct {
		LogLevel string `yaml:"log_level"`
		Metrics  bool   `yaml:"metrics"`
		Tracing  bool   `yaml:"tracing"`
	} `yaml:"observe"`
}

// Load reads the file at path, expands ${VAR} references against the
// environment, unmarshals and validates.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse loads configuration from raw YAML bytes.
func Parse(raw []byte) (*Config, error) {
	expanded, err := expandEnvStrict(string(raw))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// Default returns a usable configuration for local runs, with no upstream
// credentials set.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(10 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		// PNG renders can take a while on a cold cache.
		c.Server.WriteTimeout = Duration(60 * time.Second)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if c.Cache.RendersDir == "" {
		c.Cache.RendersDir = "data/renders"
	}
	if c.Cache.ImageIdleTTL == 0 {
		c.Cache.ImageIdleTTL = Duration(12 * time.Hour)
	}
	if c.Cache.PruneInterval == 0 {
		c.Cache.PruneInterval = Duration(time.Hour)
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = "https://api.vrchat.cloud/api/1"
	}
	if c.Upstream.CacheTTL == 0 {
		c.Upstream.CacheTTL = Duration(time.Minute)
	}
	if c.Upstream.StorePath == "" {
		c.Upstream.StorePath = "data/profiles.db"
	}
	if c.Render.MaxConcurrent == 0 {
		c.Render.MaxConcurrent = 2
	}
	if c.Observe.LogLevel == "" {
		c.Observe.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	if (c.Upstream.Username == "") != (c.Upstream.Password == "") {
		return fmt.Errorf("upstream credentials must set both username and password")
	}
	if c.Upstream.TOTPSecret != "" && c.Upstream.Username == "" {
		return fmt.Errorf("upstream.totp_secret requires credentials")
	}
	if c.Render.MaxConcurrent < 0 {
		return fmt.Errorf("render.max_concurrent must not be negative")
	}
	for _, d := range []struct {
		name string
		val  Duration
	}{
		{"server.read_timeout", c.Server.ReadTimeout},
		{"server.write_timeout", c.Server.WriteTimeout},
		{"server.shutdown_timeout", c.Server.ShutdownTimeout},
		{"cache.image_idle_ttl", c.Cache.ImageIdleTTL},
		{"cache.prune_interval", c.Cache.PruneInterval},
		{"upstream.cache_ttl", c.Upstream.CacheTTL},
	} {
		if d.val < 0 {
			return fmt.Errorf("%s must not be negative", d.name)
		}
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvStrict expands environment variables in s.
//
// Semantics:
//   - `$VAR` and `${VAR}` are expanded via os.ExpandEnv.
//   - If `${VAR}` is present but VAR is missing from the environment, it errors.
//   - `$$` emits a literal `$` (escape hatch).
func expandEnvStrict(s string) (string, error) {
	const dollarSentinel = "\x00VRCEMBED_CONFIG_DOLLAR\x00"
	s = strings.ReplaceAll(s, "$$", dollarSentinel)

	missing := make(map[string]struct{})
	for _, match := range envVarPattern.FindAllStringSubmatch(s, -1) {
		key := match[1]
		if _, ok := os.LookupEnv(key); !ok {
			missing[key] = struct{}{}
		}
	}
	if len(missing) > 0 {
		keys := make([]string, 0, len(missing))
		for k := range missing {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", fmt.Errorf("missing required environment variables: %s", strings.Join(keys, ", "))
	}

	s = os.ExpandEnv(s)
	s = strings.ReplaceAll(s, dollarSentinel, "$")
	return s, nil
}
