package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain/prompt"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain/relevance"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/memory"
)

// Defaults taken over from the indexing scripts.
const (
	DefaultNamespace      = "research-papers"
	DefaultTopK           = 5
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultPersona        = "study-1"
)

// Config holds the ragchat configuration.
type Config struct {
	HTTP        HTTPConfig               `yaml:"http"`
	Auth        AuthConfig               `yaml:"auth"`
	Logging     LoggingConfig            `yaml:"logging"`
	OpenAI      OpenAIConfig             `yaml:"openai"`
	VectorIndex VectorIndexConfig        `yaml:"vector_index"`
	Cache       CacheConfig              `yaml:"cache"`
	Audit       AuditConfig              `yaml:"audit"`
	Chat        ChatConfig               `yaml:"chat"`
	Personas    map[string]PersonaConfig `yaml:"personas"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// OpenAIConfig holds embedding and chat-completion provider settings.
type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	EmbeddingModel string `yaml:"embedding_model"`
	ChatModel      string `yaml:"chat_model"`
	TimeoutSec     int    `yaml:"timeout_sec"`
	MaxBatchSize   int    `yaml:"max_batch_size"` // texts per embeddings request; 0 = 256
	KeepNewlines   bool   `yaml:"keep_newlines"`
}

// VectorIndexConfig holds vector index (Pinecone) settings.
type VectorIndexConfig struct {
	APIKey          string `yaml:"api_key"`
	Name            string `yaml:"name"`
	Host            string `yaml:"host"`              // data-plane host; resolved from the control plane when empty
	ControlPlaneURL string `yaml:"control_plane_url"` // default: https://api.pinecone.io
	Dimension       int    `yaml:"dimension"`         // 0 = read from describe_index_stats
	TimeoutSec      int    `yaml:"timeout_sec"`
}

// CacheConfig holds the Redis-backed embedding cache settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	TTLSec           int      `yaml:"ttl_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	WriteTimeoutMs   int      `yaml:"write_timeout_ms"`
}

// AuditConfig holds chat log (Supabase/Postgres) settings.
type AuditConfig struct {
	Enabled         bool   `yaml:"enabled"`
	DSN             string `yaml:"dsn"`
	Table           string `yaml:"table"`
	BufferSize      int    `yaml:"buffer_size"`
	Workers         int    `yaml:"workers"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
}

// ChatConfig holds orchestrator and session settings.
type ChatConfig struct {
	TurnTimeoutSec   int `yaml:"turn_timeout_sec"`
	HistoryWindow    int `yaml:"history_window"`
	MemoryCapacity   int `yaml:"memory_capacity"` // -1 = unbounded
	SessionTTLMin    int `yaml:"session_ttl_min"`
	SweepIntervalSec int `yaml:"sweep_interval_sec"`
	DefaultPageSize  int `yaml:"default_page_size"`
	MaxPageSize      int `yaml:"max_page_size"`
}

// PersonaConfig parameterizes the retrieval pipeline for one conversation context.
type PersonaConfig struct {
	DisplayName    string            `yaml:"display_name"`
	Index          string            `yaml:"index"`
	Namespace      string            `yaml:"namespace"`
	TopK           int               `yaml:"top_k"`
	MetadataFilter map[string]string `yaml:"metadata_filter"`
	ScoreThreshold *float64          `yaml:"score_threshold"`
	EmbeddingModel string            `yaml:"embedding_model"`
	SystemPrompt   string            `yaml:"system_prompt"`
	ChatModel      string            `yaml:"chat_model"`
	Temperature    *float32          `yaml:"temperature"`
	MaxTokens      int               `yaml:"max_tokens"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, if present, is loaded into the process
// environment first; variables already set win.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands ${VAR} references, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 90
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.OpenAI.EmbeddingModel == "" {
		c.OpenAI.EmbeddingModel = DefaultEmbeddingModel
	}
	if c.OpenAI.ChatModel == "" {
		c.OpenAI.ChatModel = prompt.DefaultModel
	}
	if c.OpenAI.TimeoutSec <= 0 {
		c.OpenAI.TimeoutSec = 60
	}
	if c.VectorIndex.ControlPlaneURL == "" {
		c.VectorIndex.ControlPlaneURL = "https://api.pinecone.io"
	}
	if c.VectorIndex.TimeoutSec <= 0 {
		c.VectorIndex.TimeoutSec = 30
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 7 * 24 * 3600
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Audit.Table == "" {
		c.Audit.Table = "chat_logs"
	}
	if c.Audit.BufferSize <= 0 {
		c.Audit.BufferSize = 1000
	}
	if c.Audit.Workers <= 0 {
		c.Audit.Workers = 2
	}
	if c.Audit.WriteTimeoutSec <= 0 {
		c.Audit.WriteTimeoutSec = 5
	}
	if c.Chat.TurnTimeoutSec <= 0 {
		c.Chat.TurnTimeoutSec = 60
	}
	if c.Chat.HistoryWindow <= 0 {
		c.Chat.HistoryWindow = prompt.DefaultHistoryWindow
	}
	if c.Chat.MemoryCapacity < 0 {
		c.Chat.MemoryCapacity = 0
	} else if c.Chat.MemoryCapacity == 0 {
		c.Chat.MemoryCapacity = memory.DefaultCapacity
	}
	if c.Chat.SessionTTLMin <= 0 {
		c.Chat.SessionTTLMin = 60
	}
	if c.Chat.SweepIntervalSec <= 0 {
		c.Chat.SweepIntervalSec = 60
	}
	if c.Chat.DefaultPageSize <= 0 {
		c.Chat.DefaultPageSize = 50
	}
	if c.Chat.MaxPageSize <= 0 {
		c.Chat.MaxPageSize = 200
	}
	if len(c.Personas) == 0 {
		c.Personas = map[string]PersonaConfig{DefaultPersona: {DisplayName: "Research Papers"}}
	}
}

// Validate checks the configuration for structural problems.
// Missing credentials are reported per request by MissingCredentials instead.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required when cache is enabled")
	}
	if c.Cache.DB < 0 {
		return fmt.Errorf("cache.db must not be negative, got %d", c.Cache.DB)
	}
	if c.Audit.Enabled && c.Audit.DSN == "" {
		return fmt.Errorf("audit.dsn is required when audit is enabled")
	}
	if !tableNameRegex.MatchString(c.Audit.Table) {
		return fmt.Errorf("audit.table %q is not a valid table name", c.Audit.Table)
	}
	for id, p := range c.Personas {
		if p.TopK < 0 {
			return fmt.Errorf("personas.%s.top_k must not be negative, got %d", id, p.TopK)
		}
		if p.MaxTokens < 0 {
			return fmt.Errorf("personas.%s.max_tokens must not be negative, got %d", id, p.MaxTokens)
		}
		if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2) {
			return fmt.Errorf("personas.%s.temperature must be between 0 and 2, got %v", id, *p.Temperature)
		}
	}
	return nil
}

// MissingCredentials returns a *domain.ConfigurationError naming every absent
// credential, or nil when all are present.
func (c *Config) MissingCredentials() error {
	var missing []string
	if c.OpenAI.APIKey == "" {
		missing = append(missing, "openai.api_key")
	}
	if c.VectorIndex.APIKey == "" {
		missing = append(missing, "vector_index.api_key")
	}
	if c.VectorIndex.Name == "" {
		missing = append(missing, "vector_index.name")
	}
	if len(missing) == 0 {
		return nil
	}
	return &domain.ConfigurationError{Missing: missing}
}

// PersonaList resolves every persona against the global defaults, sorted by ID.
func (c *Config) PersonaList() []domain.Persona {
	ids := make([]string, 0, len(c.Personas))
	for id := range c.Personas {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]domain.Persona, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.Persona(id))
	}
	return out
}

// Persona resolves one persona against the global defaults. Unknown IDs resolve to
// the defaults alone.
func (c *Config) Persona(id string) domain.Persona {
	pc := c.Personas[id]

	p := domain.Persona{
		ID:             id,
		DisplayName:    pc.DisplayName,
		Index:          pc.Index,
		Namespace:      pc.Namespace,
		TopK:           pc.TopK,
		Filter:         pc.MetadataFilter,
		MinScore:       relevance.DefaultMinScore,
		EmbeddingModel: pc.EmbeddingModel,
		SystemPrompt:   pc.SystemPrompt,
		ChatModel:      pc.ChatModel,
		Temperature:    prompt.DefaultTemperature,
		MaxTokens:      pc.MaxTokens,
	}
	if p.DisplayName == "" {
		p.DisplayName = id
	}
	if p.Index == "" {
		p.Index = c.VectorIndex.Name
	}
	if p.Namespace == "" {
		p.Namespace = DefaultNamespace
	}
	if p.TopK == 0 {
		p.TopK = DefaultTopK
	}
	if pc.ScoreThreshold != nil {
		p.MinScore = *pc.ScoreThreshold
	}
	if p.EmbeddingModel == "" {
		p.EmbeddingModel = c.OpenAI.EmbeddingModel
	}
	if p.SystemPrompt == "" {
		p.SystemPrompt = prompt.DefaultSystemPrompt
	}
	if p.ChatModel == "" {
		p.ChatModel = c.OpenAI.ChatModel
	}
	if pc.Temperature != nil {
		p.Temperature = *pc.Temperature
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = prompt.DefaultMaxTokens
	}
	return p
}

// TurnTimeout returns the per-turn deadline.
func (c *Config) TurnTimeout() time.Duration {
	return time.Duration(c.Chat.TurnTimeoutSec) * time.Second
}

// SessionTTL returns the idle time after which a session is torn down.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Chat.SessionTTLMin) * time.Minute
}

var tableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
