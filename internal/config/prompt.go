package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PromptConfig prompt configuration structure
type PromptConfig struct {
	Language string                     `yaml:"language"`
	Prompts  map[string]LanguagePrompts `yaml:"prompts"`
}

// LanguagePrompts prompts for a specific language
type LanguagePrompts struct {
	System      string `yaml:"system"`
	ErrorPrefix string `yaml:"error_prefix"`
}

// DefaultPromptConfig returns default prompt configuration
func DefaultPromptConfig() *PromptConfig {
	return &PromptConfig{
		Language: "en",
		Prompts: map[string]LanguagePrompts{
			"en": {
				System: `You are FileDesk, an assistant that answers user questions and manages text files inside a dedicated workspace on the user's behalf.

You have access to these tools:
- read_text_file(filename): read the full content of a workspace text file.
- write_text_file(filename, content): create or overwrite a workspace text file.
- search_documents(query, k): search the locally indexed reference documents for relevant text segments (only when the knowledge index is available).

Guidelines:
- Filenames are always relative to the workspace root (e.g. notes.txt or data/report.txt). Never use absolute paths.
- When a tool reports an error, explain the problem to the user or retry with corrected input; do not invent file contents.
- Ground factual answers about reference material in retrieved segments, and say so when the segments do not contain the answer.
- Reply in clear, concise prose. Return only the final answer, without tool call syntax.`,
				ErrorPrefix: "Error",
			},
		},
	}
}

// PromptConfigPath returns the prompt config file path
func PromptConfigPath() (string, error) {
	// First check if there's a config/prompt.yaml in current working directory
	cwd, err := os.Getwd()
	if err == nil {
		localPath := filepath.Join(cwd, "config", "prompt.yaml")
		if _, err := os.Stat(localPath); err == nil {
			return localPath, nil
		}
	}

	// Fall back to user config directory
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "prompt.yaml"), nil
}

// LoadPromptConfig loads prompt configuration from file
func LoadPromptConfig() (*PromptConfig, error) {
	configPath, err := PromptConfigPath()
	if err != nil {
		return DefaultPromptConfig(), nil
	}

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultPromptConfig(), nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt config: %w", err)
	}

	// Parse config
	cfg := DefaultPromptConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse prompt config: %w", err)
	}

	return cfg, nil
}

// GetPrompts returns prompts for the configured language
func (p *PromptConfig) GetPrompts() LanguagePrompts {
	if prompts, ok := p.Prompts[p.Language]; ok {
		return prompts
	}
	// Fall back to English if configured language not found
	if prompts, ok := p.Prompts["en"]; ok {
		return prompts
	}
	return LanguagePrompts{}
}

// GetSystemPrompt returns the system prompt for the configured language
func (p *PromptConfig) GetSystemPrompt() string {
	return p.GetPrompts().System
}

// GetErrorPrefix returns the error prefix for the configured language
func (p *PromptConfig) GetErrorPrefix() string {
	return p.GetPrompts().ErrorPrefix
}
