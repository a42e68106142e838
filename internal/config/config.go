package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all configuration for B3S Chat
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Database DatabaseConfig `mapstructure:"database"`
	History  HistoryConfig  `mapstructure:"history"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Models   []ModelConfig  `mapstructure:"models"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"`
}

// AdminConfig holds API key configuration for session management routes
type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// HistoryConfig controls chat-history persistence
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// UpstreamConfig holds inference endpoint configuration
type UpstreamConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	ChatPath string `mapstructure:"chat_path"`
}

// ChatConfig holds chat defaults
type ChatConfig struct {
	DefaultModel string `mapstructure:"default_model"`
}

// ModelConfig is one selectable model entry
type ModelConfig struct {
	ID          string `mapstructure:"id"`
	DisplayName string `mapstructure:"display_name"`
	Provider    string `mapstructure:"provider"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file if specified
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("B3S")
	v.AutomaticEnv()

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Models) == 0 {
		cfg.Models = defaultModels()
	}
	if cfg.Chat.DefaultModel == "" {
		cfg.Chat.DefaultModel = cfg.Models[0].ID
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")

	v.SetDefault("admin.api_key", "")

	v.SetDefault("database.path", "./data/b3s-chat.db")
	v.SetDefault("history.enabled", true)

	v.SetDefault("upstream.base_url", "http://localhost:11434")
	v.SetDefault("upstream.chat_path", "/api/chat")
}

func defaultModels() []ModelConfig {
	return []ModelConfig{
		{ID: "gemini-3-flash-preview:cloud", DisplayName: "Gemini 3 Flash", Provider: "google"},
		{ID: "gemini-3-pro-preview:latest", DisplayName: "Gemini 3 Pro", Provider: "google"},
		{ID: "gpt-oss:120b-cloud", DisplayName: "GPT-OSS 120B", Provider: "openai"},
		{ID: "gpt-oss:20b-cloud", DisplayName: "GPT-OSS 20B", Provider: "openai"},
		{ID: "kimi-k2-thinking:cloud", DisplayName: "Kimi K2 Thinking", Provider: "moonshot"},
		{ID: "qwen3-vl:235b-cloud", DisplayName: "Qwen3 VL 235B", Provider: "alibaba"},
		{ID: "devstral-2:123b-cloud", DisplayName: "Devstral 2", Provider: "mistral"},
	}
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
