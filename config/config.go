package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/m4xw311/aide/errors"
)

// ProviderConfig enables one completion backend and names its default model.
type ProviderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url,omitempty"` // ollama only
}

// AgentConfig declares one agent as a flat capability set: role, task type,
// system prompt, and toolset. Model optionally pins a "provider:name" pair;
// when empty the model is selected per task type from the catalog.
type AgentConfig struct {
	Role         string `yaml:"role"`
	Type         string `yaml:"type"`
	SystemPrompt string `yaml:"system_prompt"`
	Toolset      string `yaml:"toolset"`
	Model        string `yaml:"model,omitempty"`
}

// ClassifierConfig tunes the two-stage classifier.
type ClassifierConfig struct {
	Model            string  `yaml:"model"`
	AcceptThreshold  float64 `yaml:"accept_threshold"`
	ClarifyThreshold float64 `yaml:"clarify_threshold"`
}

// EngineConfig bounds the tool-calling loop.
type EngineConfig struct {
	MaxIterations      int `yaml:"max_iterations"`
	HistoryWindow      int `yaml:"history_window"`
	CallTimeoutSeconds int `yaml:"call_timeout_seconds"`
}

// CallTimeout returns the per-call deadline for provider and tool calls.
func (e EngineConfig) CallTimeout() time.Duration {
	return time.Duration(e.CallTimeoutSeconds) * time.Second
}

// MemoryConfig selects the journal driver.
type MemoryConfig struct {
	Driver        string `yaml:"driver"` // "memory" or "redis"
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// MCPServer declares an external MCP tool server to launch and attach.
type MCPServer struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// Toolset names a set of tool patterns available to an agent. Patterns may
// use wildcards, e.g. "memory_*" or "calc:*".
type Toolset struct {
	Name  string   `yaml:"name"`
	Tools []string `yaml:"tools"`
}

type Config struct {
	DefaultProvider      string                    `yaml:"default_provider"`
	Providers            map[string]ProviderConfig `yaml:"providers"`
	Agents               []AgentConfig             `yaml:"agents"`
	Toolsets             []Toolset                 `yaml:"toolsets"`
	AdditionalMCPServers []MCPServer               `yaml:"additional_mcp_servers"`
	Classifier           ClassifierConfig          `yaml:"classifier"`
	Engine               EngineConfig              `yaml:"engine"`
	Memory               MemoryConfig              `yaml:"memory"`
}

// LoadConfig loads configuration from the user's home directory and the
// current working directory, with the latter taking precedence.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	// Load user-level config first
	home, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(home, ".aide", "config.yaml")
		if _, err := os.Stat(userConfigPath); err == nil {
			if err := loadFromFile(userConfigPath, cfg); err != nil {
				return nil, errors.Wrapf(err, "error loading user config")
			}
		}
	}

	// Load project-level config, overriding user-level
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrapf(err, "could not get working directory")
	}
	projectConfigPath := filepath.Join(wd, ".aide", "config.yaml")
	if _, err := os.Stat(projectConfigPath); err == nil {
		if err := loadFromFile(projectConfigPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading project config")
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Note: Unmarshal will overwrite fields present in the YAML. This provides
	// a simple merge where project-level config replaces user-level.
	return yaml.Unmarshal(data, cfg)
}

func (c *Config) applyDefaults() {
	if c.Engine.MaxIterations == 0 {
		c.Engine.MaxIterations = 10
	}
	if c.Engine.HistoryWindow == 0 {
		c.Engine.HistoryWindow = 10
	}
	if c.Engine.CallTimeoutSeconds == 0 {
		c.Engine.CallTimeoutSeconds = 120
	}
	if c.Classifier.AcceptThreshold == 0 {
		c.Classifier.AcceptThreshold = 0.8
	}
	if c.Classifier.ClarifyThreshold == 0 {
		c.Classifier.ClarifyThreshold = 0.5
	}
	if c.Memory.Driver == "" {
		c.Memory.Driver = "memory"
	}
}

// GetToolset finds a toolset by name. Returns the "default" toolset if the
// named one is not found or if an empty name is provided.
func (c *Config) GetToolset(name string) (*Toolset, error) {
	if name == "" {
		name = "default"
	}
	for i := range c.Toolsets {
		if c.Toolsets[i].Name == name {
			return &c.Toolsets[i], nil
		}
	}
	if name == "default" {
		return nil, errors.New("mandatory 'default' toolset not found in configuration")
	}
	// Fallback to default if a specific toolset was requested but not found
	return c.GetToolset("default")
}
