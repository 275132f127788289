package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment  string             `toml:"environment"` // "development" or "production"
	Server       ServerConfig       `toml:"server"`
	Logging      LoggingConfig      `toml:"logging"`
	Storage      StorageConfig      `toml:"storage"`
	Tools        ToolsConfig        `toml:"tools"`
	Providers    []ProviderConfig   `toml:"providers"`
	Gateway      GatewayConfig      `toml:"gateway"`
	Orchestrator OrchestratorConfig `toml:"orchestrator"`
	Personas     PersonasConfig     `toml:"personas"`
	Session      SessionConfig      `toml:"session"`
	WebSocket    WebSocketConfig    `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gt=0,lte=65535"`
	Host string `toml:"host" validate:"required"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// ToolsConfig configures the two backend tool clients
type ToolsConfig struct {
	DocumentSearch ToolEndpointConfig `toml:"document_search"`
	StructuredData ToolEndpointConfig `toml:"structured_data"`
}

// ToolEndpointConfig describes one external tool backend endpoint
type ToolEndpointConfig struct {
	BaseURL    string        `toml:"base_url" validate:"required,url"`
	Timeout    time.Duration `toml:"timeout"`
	MaxResults int           `toml:"max_results"` // result cap forwarded to the backend
	APIKey     string        `toml:"api_key"`     // optional bearer token
}

// ProviderConfig describes one entry in the generation fallback chain.
// Priority order must be total: no two providers may share a priority.
type ProviderConfig struct {
	ID        string        `toml:"id" validate:"required"`
	Type      string        `toml:"type" validate:"required,oneof=llama openai claude gemini"`
	Priority  int           `toml:"priority" validate:"gte=0"`
	BaseURL   string        `toml:"base_url"` // required for llama/openai types
	Model     string        `toml:"model" validate:"required"`
	APIKey    string        `toml:"api_key"`
	Timeout   time.Duration `toml:"timeout"`
	RateLimit time.Duration `toml:"rate_limit"` // minimum interval between requests
}

// GatewayConfig tunes the fallback/health policy
type GatewayConfig struct {
	Cooldown       time.Duration `toml:"cooldown"`         // how long a Down provider rests before re-attempt
	DownTimeout    time.Duration `toml:"down_timeout"`     // reduced per-attempt timeout for a Down provider past cooldown
	ProbeSchedule  string        `toml:"probe_schedule"`   // cron spec for background health probes ("" disables)
	ProbeTimeout   time.Duration `toml:"probe_timeout"`    // timeout for one background probe
	DefaultTimeout time.Duration `toml:"default_timeout"`  // per-attempt timeout when a provider declares none
	ProbeOnStartup bool          `toml:"probe_on_startup"` // probe all providers once during initialization
}

// OrchestratorConfig tunes prompt assembly and evidence grading
type OrchestratorConfig struct {
	MaxHistoryTurns      int           `toml:"max_history_turns"` // bounded session suffix included in prompts
	ToolTimeout          time.Duration `toml:"tool_timeout"`      // shared deadline for the tool fan-out
	MinConcordantSources int           `toml:"min_concordant_sources"`
	Temperature          float32       `toml:"temperature"`
}

// PersonasConfig points at optional persona definition files
type PersonasConfig struct {
	Dir     string `toml:"dir"`     // directory containing persona YAML files ("" = built-ins only)
	Default string `toml:"default"` // persona id used when neither hint nor intent decides
}

// SessionConfig bounds session history growth
type SessionConfig struct {
	MaxTurns int `toml:"max_turns"` // stored turns per session before old reads are ignored
}

// WebSocketConfig contains configuration for the progress event stream
type WebSocketConfig struct {
	ThrottleInterval time.Duration `toml:"throttle_interval"` // min interval between stage events per client
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability;
// only user-facing settings belong in consilium.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Tools: ToolsConfig{
			DocumentSearch: ToolEndpointConfig{
				BaseURL:    "http://localhost:9001",
				Timeout:    15 * time.Second,
				MaxResults: 5,
			},
			StructuredData: ToolEndpointConfig{
				BaseURL:    "http://localhost:9002",
				Timeout:    20 * time.Second,
				MaxResults: 50,
			},
		},
		Providers: []ProviderConfig{
			{
				ID:       "local-llama",
				Type:     "llama",
				Priority: 0, // offline-first: never leaves the machine
				BaseURL:  "http://127.0.0.1:11434",
				Model:    "mistral",
				Timeout:  30 * time.Second,
			},
			{
				ID:        "deepseek",
				Type:      "openai",
				Priority:  1,
				BaseURL:   "https://api.deepseek.com",
				Model:     "deepseek-chat",
				Timeout:   60 * time.Second,
				RateLimit: 1 * time.Second,
			},
			{
				ID:        "claude",
				Type:      "claude",
				Priority:  2,
				Model:     "claude-haiku-3-5-20241022",
				Timeout:   60 * time.Second,
				RateLimit: 1 * time.Second,
			},
			{
				ID:        "gemini",
				Type:      "gemini",
				Priority:  3,
				Model:     "gemini-3-flash-preview",
				Timeout:   60 * time.Second,
				RateLimit: 4 * time.Second, // 15 RPM free tier
			},
		},
		Gateway: GatewayConfig{
			Cooldown:       2 * time.Minute,
			DownTimeout:    5 * time.Second,
			ProbeSchedule:  "@every 1m",
			ProbeTimeout:   5 * time.Second,
			DefaultTimeout: 60 * time.Second,
			ProbeOnStartup: true,
		},
		Orchestrator: OrchestratorConfig{
			MaxHistoryTurns:      6,
			ToolTimeout:          25 * time.Second,
			MinConcordantSources: 2,
			Temperature:          0.1, // grounded answers, low creativity
		},
		Personas: PersonasConfig{
			Dir:     "./personas",
			Default: "clinical",
		},
		Session: SessionConfig{
			MaxTurns: 50,
		},
		WebSocket: WebSocketConfig{
			ThrottleInterval: 250 * time.Millisecond,
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("CONSILIUM_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("CONSILIUM_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("CONSILIUM_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Logging configuration
	if level := os.Getenv("CONSILIUM_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("CONSILIUM_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Storage configuration
	if badgerPath := os.Getenv("CONSILIUM_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Tool backends
	if url := os.Getenv("CONSILIUM_DOCSEARCH_URL"); url != "" {
		config.Tools.DocumentSearch.BaseURL = url
	}
	if key := os.Getenv("CONSILIUM_DOCSEARCH_API_KEY"); key != "" {
		config.Tools.DocumentSearch.APIKey = key
	}
	if url := os.Getenv("CONSILIUM_STRUCTURED_URL"); url != "" {
		config.Tools.StructuredData.BaseURL = url
	}
	if key := os.Getenv("CONSILIUM_STRUCTURED_API_KEY"); key != "" {
		config.Tools.StructuredData.APIKey = key
	}

	// Provider API keys: CONSILIUM_PROVIDER_<ID>_API_KEY overrides the file value
	// so credentials never need to live in consilium.toml
	for i := range config.Providers {
		envKey := "CONSILIUM_PROVIDER_" + strings.ToUpper(strings.ReplaceAll(config.Providers[i].ID, "-", "_")) + "_API_KEY"
		if key := os.Getenv(envKey); key != "" {
			config.Providers[i].APIKey = key
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		for i := range config.Providers {
			if config.Providers[i].Type == "claude" && config.Providers[i].APIKey == "" {
				config.Providers[i].APIKey = key
			}
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		for i := range config.Providers {
			if config.Providers[i].Type == "gemini" && config.Providers[i].APIKey == "" {
				config.Providers[i].APIKey = key
			}
		}
	}

	// Persona directory
	if dir := os.Getenv("CONSILIUM_PERSONAS_DIR"); dir != "" {
		config.Personas.Dir = dir
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks structural constraints the TOML decoder cannot express:
// struct tags via validator, plus total provider priority order.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if len(c.Providers) == 0 {
		return fmt.Errorf("invalid configuration: at least one provider is required")
	}

	seenID := make(map[string]bool)
	seenPriority := make(map[int]string)
	for _, p := range c.Providers {
		if seenID[p.ID] {
			return fmt.Errorf("invalid configuration: duplicate provider id %q", p.ID)
		}
		seenID[p.ID] = true

		if other, ok := seenPriority[p.Priority]; ok {
			// ties would make fallback order non-deterministic
			return fmt.Errorf("invalid configuration: providers %q and %q share priority %d", other, p.ID, p.Priority)
		}
		seenPriority[p.Priority] = p.ID

		if (p.Type == "llama" || p.Type == "openai") && p.BaseURL == "" {
			return fmt.Errorf("invalid configuration: provider %q (type %s) requires base_url", p.ID, p.Type)
		}
	}

	return nil
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
