package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var (
	// configDir is the configuration directory path
	// Can be set via SetConfigDir before loading config
	configDir     string
	configDirInit bool
)

// SetConfigDir sets a custom configuration directory
// Must be called before any config loading functions
func SetConfigDir(dir string) {
	configDir = dir
	configDirInit = true
}

// GetConfigDir returns the configuration directory
// Priority: 1. Manually set via SetConfigDir, 2. ./config in current directory
func GetConfigDir() string {
	if !configDirInit {
		cwd, err := os.Getwd()
		if err == nil {
			configDir = filepath.Join(cwd, "config")
		}
		configDirInit = true
	}
	return configDir
}

// Config application configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Model     ModelConfig     `yaml:"model"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Agent     AgentConfig     `yaml:"agent"`
	Auth      AuthConfig      `yaml:"auth"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
}

// ServerConfig HTTP server configuration
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	TemplateGlob string `yaml:"template_glob"`
}

// ModelConfig LLM model configuration
type ModelConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// WorkspaceConfig sandboxed file workspace configuration
type WorkspaceConfig struct {
	Root string `yaml:"root"`
}

// AgentConfig turn orchestration configuration
type AgentConfig struct {
	MaxToolRounds      int `yaml:"max_tool_rounds"`
	TurnTimeoutSeconds int `yaml:"turn_timeout_seconds"`
}

// AuthConfig account and session configuration
type AuthConfig struct {
	DBPath            string `yaml:"db_path"`
	SessionTTLMinutes int    `yaml:"session_ttl_minutes"`
}

// KnowledgeConfig local document index configuration
type KnowledgeConfig struct {
	Enabled       bool            `yaml:"enabled"`
	DocsDir       string          `yaml:"docs_dir"`
	DBPath        string          `yaml:"db_path"`
	TopK          int             `yaml:"top_k"`
	MinSimilarity float64         `yaml:"min_similarity"`
	Embedding     EmbeddingConfig `yaml:"embedding"`
}

// EmbeddingConfig embedding endpoint configuration
type EmbeddingConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	Dimension      int    `yaml:"dimension"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".filedesk")
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			TemplateGlob: "web/templates/*.html",
		},
		Model: ModelConfig{
			APIKey:      "",
			BaseURL:     "https://api.deepseek.com",
			Model:       "deepseek-chat",
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Workspace: WorkspaceConfig{
			Root: filepath.Join(dataDir, "agent_files"),
		},
		Agent: AgentConfig{
			MaxToolRounds:      5,
			TurnTimeoutSeconds: 120,
		},
		Auth: AuthConfig{
			DBPath:            filepath.Join(dataDir, "users.db"),
			SessionTTLMinutes: 720,
		},
		Knowledge: KnowledgeConfig{
			Enabled:       false,
			DocsDir:       "docs",
			DBPath:        filepath.Join(dataDir, "knowledge.db"),
			TopK:          4,
			MinSimilarity: 0.2,
			Embedding: EmbeddingConfig{
				BaseURL:        "https://api.deepseek.com",
				Model:          "text-embedding",
				Dimension:      1024,
				TimeoutSeconds: 30,
				MaxRetries:     3,
			},
		},
	}
}

// ConfigDir returns the configuration directory path
func ConfigDir() (string, error) {
	dir := GetConfigDir()
	if dir == "" {
		return "", fmt.Errorf("failed to determine config directory")
	}
	return dir, nil
}

// LogDir returns the log directory path
func LogDir() string {
	dir := GetConfigDir()
	if dir == "" {
		return "logs"
	}
	return filepath.Join(dir, "logs")
}

// ConfigPath returns the configuration file path
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads configuration from file and merges with secrets
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Config file doesn't exist, create default config
		cfg := DefaultConfig()
		cfg.mergeSecrets()

		if err := Save(cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse config
	cfg := DefaultConfig() // Use default values as base
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.mergeSecrets()

	// Validate config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// mergeSecrets fills API keys from the .secrets file when the config
// leaves them empty
func (c *Config) mergeSecrets() {
	secrets, _ := LoadSecrets()
	if secrets == nil {
		return
	}
	if c.Model.APIKey == "" {
		c.Model.APIKey = secrets.GetModelAPIKey()
	}
	if c.Knowledge.Embedding.APIKey == "" {
		if key := secrets.GetEmbeddingAPIKey(); key != "" {
			c.Knowledge.Embedding.APIKey = key
		} else {
			// The embedding endpoint usually shares credentials with
			// the chat endpoint.
			c.Knowledge.Embedding.APIKey = c.Model.APIKey
		}
	}
}

// Save saves configuration to file
func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	// Ensure config directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Serialize config
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	// Add header comment
	content := "# FileDesk Configuration File\n# For more info: https://github.com/hession/filedesk\n\n" + string(data)

	// Write file
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Addr == "" {
		return fmt.Errorf("config error: server.addr cannot be empty")
	}

	// Validate model config
	if c.Model.BaseURL == "" {
		return fmt.Errorf("config error: model.base_url cannot be empty")
	}
	if c.Model.Model == "" {
		return fmt.Errorf("config error: model.model cannot be empty")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("config error: model.temperature must be between 0 and 2")
	}
	if c.Model.MaxTokens <= 0 {
		return fmt.Errorf("config error: model.max_tokens must be greater than 0")
	}

	// Validate workspace config
	if c.Workspace.Root == "" {
		return fmt.Errorf("config error: workspace.root cannot be empty")
	}

	// Validate agent config
	if c.Agent.MaxToolRounds <= 0 {
		return fmt.Errorf("config error: agent.max_tool_rounds must be greater than 0")
	}
	if c.Agent.TurnTimeoutSeconds <= 0 {
		return fmt.Errorf("config error: agent.turn_timeout_seconds must be greater than 0")
	}

	// Validate auth config
	if c.Auth.DBPath == "" {
		return fmt.Errorf("config error: auth.db_path cannot be empty")
	}
	if c.Auth.SessionTTLMinutes <= 0 {
		return fmt.Errorf("config error: auth.session_ttl_minutes must be greater than 0")
	}

	// Validate knowledge config
	if c.Knowledge.Enabled {
		if c.Knowledge.DocsDir == "" {
			return fmt.Errorf("config error: knowledge.docs_dir cannot be empty")
		}
		if c.Knowledge.DBPath == "" {
			return fmt.Errorf("config error: knowledge.db_path cannot be empty")
		}
		if c.Knowledge.TopK <= 0 {
			return fmt.Errorf("config error: knowledge.top_k must be greater than 0")
		}
		if c.Knowledge.Embedding.BaseURL == "" {
			return fmt.Errorf("config error: knowledge.embedding.base_url cannot be empty")
		}
		if c.Knowledge.Embedding.Dimension <= 0 {
			return fmt.Errorf("config error: knowledge.embedding.dimension must be greater than 0")
		}
	}

	return nil
}

// IsAPIKeyConfigured checks if API key is configured
func (c *Config) IsAPIKeyConfigured() bool {
	return c.Model.APIKey != ""
}

// String returns string representation of config (hides sensitive info)
func (c *Config) String() string {
	return fmt.Sprintf(`FileDesk Configuration:
  Server:
    Addr: %s
    Template Glob: %s
  Model:
    API Key: %s
    Base URL: %s
    Model: %s
    Temperature: %.1f
    Max Tokens: %d
  Workspace:
    Root: %s
  Agent:
    Max Tool Rounds: %d
    Turn Timeout Seconds: %d
  Auth:
    DB Path: %s
    Session TTL Minutes: %d
  Knowledge:
    Enabled: %v
    Docs Dir: %s
    DB Path: %s
    Embedding Model: %s`,
		c.Server.Addr,
		c.Server.TemplateGlob,
		redactAPIKey(c.Model.APIKey),
		c.Model.BaseURL,
		c.Model.Model,
		c.Model.Temperature,
		c.Model.MaxTokens,
		c.Workspace.Root,
		c.Agent.MaxToolRounds,
		c.Agent.TurnTimeoutSeconds,
		c.Auth.DBPath,
		c.Auth.SessionTTLMinutes,
		c.Knowledge.Enabled,
		c.Knowledge.DocsDir,
		c.Knowledge.DBPath,
		c.Knowledge.Embedding.Model,
	)
}

func redactAPIKey(value string) string {
	if value == "" {
		return "(not configured)"
	}
	if len(value) > 8 {
		return value[:8] + "..."
	}
	return "***"
}
