package config

import (
	"fmt"
	"time"
)

// Config is the main configuration structure for CoverBridge.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	LLM          LLMConfig          `yaml:"llm"`
	Rendezvous   RendezvousConfig   `yaml:"rendezvous"`
	Tools        ToolsConfig        `yaml:"tools"`
	Conversation ConversationConfig `yaml:"conversation"`
	Workflows    WorkflowsConfig    `yaml:"workflows"`
	Logging      LoggingConfig      `yaml:"logging"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
}

type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	MaxTokens       int                          `yaml:"max_tokens"`
	MaxIterations   int                          `yaml:"max_iterations"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`
}

type LLMProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`
}

// RendezvousConfig bounds how long tool calls wait on the extension.
type RendezvousConfig struct {
	ActionTimeout   time.Duration `yaml:"action_timeout"`
	ApprovalTimeout time.Duration `yaml:"approval_timeout"`
}

type ToolsConfig struct {
	FMCSA     FMCSAConfig     `yaml:"fmcsa"`
	Close     CloseConfig     `yaml:"close"`
	NowCerts  NowCertsConfig  `yaml:"nowcerts"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	PDF       PDFConfig       `yaml:"pdf"`
}

type FMCSAConfig struct {
	Enabled bool   `yaml:"enabled"`
	WebKey  string `yaml:"web_key"`
	BaseURL string `yaml:"base_url"`
}

type CloseConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type NowCertsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id"`
	BaseURL  string `yaml:"base_url"`
	TokenURL string `yaml:"token_url"`
}

type KnowledgeConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type PDFConfig struct {
	Enabled  bool `yaml:"enabled"`
	MaxPages int  `yaml:"max_pages"`
}

type ConversationConfig struct {
	LogDir     string `yaml:"log_dir"`
	IndexLimit int    `yaml:"index_limit"`
}

type WorkflowsConfig struct {
	RenewalWindowDays int    `yaml:"renewal_window_days"`
	SweepSchedule     string `yaml:"sweep_schedule"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads, merges, and parses the configuration file, resolving
// $include directives and expanding environment variables.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8765
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}
	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "anthropic"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 4096
	}
	if cfg.LLM.MaxIterations == 0 {
		cfg.LLM.MaxIterations = 10
	}
	if cfg.Rendezvous.ActionTimeout == 0 {
		cfg.Rendezvous.ActionTimeout = 120 * time.Second
	}
	if cfg.Rendezvous.ApprovalTimeout == 0 {
		cfg.Rendezvous.ApprovalTimeout = 300 * time.Second
	}
	if cfg.Tools.FMCSA.BaseURL == "" {
		cfg.Tools.FMCSA.BaseURL = "https://mobile.fmcsa.dot.gov/qc/services"
	}
	if cfg.Tools.Close.BaseURL == "" {
		cfg.Tools.Close.BaseURL = "https://api.close.com/api/v1"
	}
	if cfg.Tools.NowCerts.BaseURL == "" {
		cfg.Tools.NowCerts.BaseURL = "https://api.nowcerts.com/api"
	}
	if cfg.Tools.NowCerts.TokenURL == "" {
		cfg.Tools.NowCerts.TokenURL = "https://api.nowcerts.com/api/token"
	}
	if cfg.Tools.PDF.MaxPages == 0 {
		cfg.Tools.PDF.MaxPages = 50
	}
	if cfg.Conversation.LogDir == "" {
		cfg.Conversation.LogDir = "logs/conversations"
	}
	if cfg.Conversation.IndexLimit == 0 {
		cfg.Conversation.IndexLimit = 1000
	}
	if cfg.Workflows.RenewalWindowDays == 0 {
		cfg.Workflows.RenewalWindowDays = 30
	}
	if cfg.Workflows.SweepSchedule == "" {
		cfg.Workflows.SweepSchedule = "0 7 * * *"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
