package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
)

const (
	// DefaultBaseDir is the directory below $HOME holding per-app configs.
	DefaultBaseDir = ".giztoy"

	// DefaultConfigFile is the config file name inside the app directory.
	DefaultConfigFile = "config.yaml"
)

// ErrNoContext is returned when no context is named and none is current.
var ErrNoContext = errors.New("cli: no current context set")

// Config is the on-disk configuration of an app.
type Config struct {
	CurrentContext string              `yaml:"current_context,omitempty"`
	Contexts       map[string]*Context `yaml:"contexts,omitempty"`

	path string
}

// Context is one named realtime endpoint configuration.
type Context struct {
	Name string `yaml:"name"`

	APIKey string `yaml:"api_key,omitempty"`

	// BaseURL overrides the websocket endpoint.
	BaseURL string `yaml:"base_url,omitempty"`

	// WebRTCURL overrides the WebRTC endpoint.
	WebRTCURL string `yaml:"webrtc_url,omitempty"`

	Organization string `yaml:"organization,omitempty"`
	Project      string `yaml:"project,omitempty"`

	Model string `yaml:"model,omitempty"`

	// Transport is "websocket" or "webrtc".
	Transport    string `yaml:"transport,omitempty"`
	Voice        string `yaml:"voice,omitempty"`
	Instructions string `yaml:"instructions,omitempty"`

	// ServerVAD enables server-side turn detection.
	ServerVAD bool `yaml:"server_vad,omitempty"`

	// RecordDir stores transcripts when set.
	RecordDir string `yaml:"record_dir,omitempty"`

	// S3Bucket stores recorded audio in S3 instead of RecordDir.
	S3Bucket string `yaml:"s3_bucket,omitempty"`
	S3Prefix string `yaml:"s3_prefix,omitempty"`
}

// LoadConfig loads the config of app from path, or from
// ~/.giztoy/<app>/config.yaml when path is empty. A missing file yields an
// empty config that is written on the first Save.
func LoadConfig(app, path string) (*Config, error) {
	if path == "" {
		p, err := NewPaths(app)
		if err != nil {
			return nil, fmt.Errorf("cli: locate config: %w", err)
		}
		path = p.ConfigFile()
	}
	cfg := &Config{Contexts: make(map[string]*Context), path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cli: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cli: parse config %s: %w", path, err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}
	for name, c := range cfg.Contexts {
		c.Name = name
	}
	return cfg, nil
}

// Save writes the config, creating its directory if needed.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("cli: marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("cli: create config dir: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("cli: write config: %w", err)
	}
	return nil
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

// AddContext stores ctx under name, replacing any existing context, and
// saves. The first context added becomes current.
func (c *Config) AddContext(name string, ctx *Context) error {
	if name == "" {
		return errors.New("cli: context name is required")
	}
	ctx.Name = name
	c.Contexts[name] = ctx
	if c.CurrentContext == "" {
		c.CurrentContext = name
	}
	return c.Save()
}

// DeleteContext removes a context and saves.
func (c *Config) DeleteContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("cli: context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// UseContext makes name current and saves.
func (c *Config) UseContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("cli: context %q not found", name)
	}
	c.CurrentContext = name
	return c.Save()
}

// GetContext returns the named context.
func (c *Config) GetContext(name string) (*Context, error) {
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("cli: context %q not found", name)
	}
	return ctx, nil
}

// ResolveContext returns the named context, or the current one when name is
// empty.
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name == "" {
		name = c.CurrentContext
	}
	if name == "" {
		return nil, ErrNoContext
	}
	return c.GetContext(name)
}

// ListContexts returns the context names in sorted order.
func (c *Config) ListContexts() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// MaskAPIKey hides all but the first and last four characters of key.
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
