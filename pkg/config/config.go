package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig                 `yaml:"app"`
	Gateways  map[string]GatewayConfig  `yaml:"gateways"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Memory    MemoryConfig              `yaml:"memory"`
	Prompts   PromptsConfig             `yaml:"prompts"`
	Wizard    WizardConfig              `yaml:"wizard"`
}

type AppConfig struct {
	Name      string `yaml:"name"`
	Workspace string `yaml:"workspace"`
}

type GatewayConfig struct {
	Token   string `yaml:"token"`
	Enabled bool   `yaml:"enabled"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url,omitempty"`
}

type MemoryConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

type PromptsConfig struct {
	Directory string `yaml:"directory"`
}

type WizardConfig struct {
	// StepBudget caps generation rounds per fallback-engine turn.
	StepBudget int `yaml:"step_budget"`
}

func LoadConfig(path string) *Config {
	file, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer file.Close()

	var cfg Config
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		log.Fatalf("failed to decode config file: %v", err)
	}

	if cfg.Wizard.StepBudget <= 0 {
		cfg.Wizard.StepBudget = 8
	}
	if cfg.Prompts.Directory == "" {
		cfg.Prompts.Directory = "./prompts"
	}

	return &cfg
}

// GetTier returns the provider config for a backend tier ("default" or
// "escalated"). The escalated tier falls back to the default tier when it is
// not configured, so single-provider deployments still retry.
func (c *Config) GetTier(name string) (ProviderConfig, bool) {
	p, ok := c.Providers[name]
	if !ok && name == "escalated" {
		p, ok = c.Providers["default"]
	}
	return p, ok
}

// GetTelegramConfig returns telegram config if enabled
func (c *Config) GetTelegramConfig() (GatewayConfig, bool) {
	tg, ok := c.Gateways["telegram"]
	if ok && tg.Enabled {
		return tg, true
	}
	return GatewayConfig{}, false
}

// GetDiscordConfig returns discord config if enabled
func (c *Config) GetDiscordConfig() (GatewayConfig, bool) {
	dc, ok := c.Gateways["discord"]
	if ok && dc.Enabled {
		return dc, true
	}
	return GatewayConfig{}, false
}
