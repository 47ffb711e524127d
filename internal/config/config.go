// Package config loads the pragma configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tsawler/pragma"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"

	TaggerPerceptron = "perceptron"
	TaggerRule       = "rule"

	DefaultProvider    = ProviderAnthropic
	DefaultModel       = "claude-sonnet-4-5-20250929"
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.2
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "console"

	// GeminiBaseURL is Google's OpenAI-compatible endpoint.
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
)

// providerModels are the default models of the non-Anthropic providers.
var providerModels = map[string]string{
	ProviderOpenAI: "gpt-4o-mini",
	ProviderGemini: "gemini-2.5-flash",
}

// ErrMissingAPIKey is returned by RequireProvider when no key was configured.
var ErrMissingAPIKey = errors.New("missing API key")

type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Batch    BatchConfig    `yaml:"batch"`
	Generate GenerateConfig `yaml:"generate"`
	Store    StoreConfig    `yaml:"store"`
	Log      LogConfig      `yaml:"log"`
}

type ProviderConfig struct {
	Type        string  `yaml:"type"` // "anthropic" (default), "openai" or "gemini"
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"apiKey"`
	BaseURL     string  `yaml:"baseUrl,omitempty"`
	MaxTokens   int     `yaml:"maxTokens"`
	Temperature float64 `yaml:"temperature"`
}

type AnalysisConfig struct {
	Tagger  string `yaml:"tagger"` // "perceptron" (default) or "rule"
	Window  int    `yaml:"window"`
	Model   string `yaml:"model,omitempty"`   // Directory holding *.exc and an optional lemmas.txt.
	Lexicon string `yaml:"lexicon,omitempty"` // Extra base forms, one per line.
}

type BatchConfig struct {
	ChunkSize  int      `yaml:"chunkSize"`
	Labels     []string `yaml:"labels"`
	CallDelay  Duration `yaml:"callDelay"`
	RetryDelay Duration `yaml:"retryDelay"`
}

type GenerateConfig struct {
	Source    string   `yaml:"source"`
	CEFRLevel string   `yaml:"cefrLevel"`
	Delay     Duration `yaml:"delay"`
}

type StoreConfig struct {
	Path string `yaml:"path"` // Empty disables the run archive.
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// Duration is a time.Duration written as a string ("500ms") in YAML.
type Duration time.Duration

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func DefaultConfig() *Config {
	batch := pragma.DefaultBatchConfig()
	gen := pragma.DefaultGeneratorConfig()
	return &Config{
		Provider: ProviderConfig{
			Type:        DefaultProvider,
			Model:       DefaultModel,
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
		},
		Analysis: AnalysisConfig{
			Tagger: TaggerPerceptron,
			Window: pragma.DefaultWindowSize,
		},
		Batch: BatchConfig{
			ChunkSize:  batch.ChunkSize,
			Labels:     append([]string(nil), batch.Labels...),
			CallDelay:  Duration(batch.CallDelay),
			RetryDelay: Duration(batch.RetryDelay),
		},
		Generate: GenerateConfig{
			Source:    gen.Source,
			CEFRLevel: gen.CEFRLevel,
			Delay:     Duration(gen.Delay),
		},
		Store: StoreConfig{
			Path: filepath.Join(ConfigDir(), "runs.db"),
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".pragma")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LoadConfig reads path (ConfigPath when empty) over the defaults and applies
// environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PRAGMA_PROVIDER"); v != "" {
		c.Provider.Type = strings.ToLower(v)
	}
	if v := os.Getenv("PRAGMA_MODEL"); v != "" {
		c.Provider.Model = v
	}
	if v := os.Getenv("PRAGMA_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("PRAGMA_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("PRAGMA_TAGGER"); v != "" {
		c.Analysis.Tagger = strings.ToLower(v)
	}
	if v := os.Getenv("PRAGMA_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Batch.ChunkSize = n
		}
	}
	if v := os.Getenv("PRAGMA_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("PRAGMA_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}

	// Provider-specific keys fill in only when no explicit key was set.
	if c.Provider.APIKey == "" {
		switch c.Provider.Type {
		case ProviderAnthropic:
			c.Provider.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case ProviderOpenAI:
			c.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
		case ProviderGemini:
			c.Provider.APIKey = os.Getenv("GOOGLE_API_KEY")
		}
	}
	if m, ok := providerModels[c.Provider.Type]; ok && c.Provider.Model == DefaultModel {
		c.Provider.Model = m
	}
	if c.Provider.Type == ProviderGemini && c.Provider.BaseURL == "" {
		c.Provider.BaseURL = GeminiBaseURL
	}
}

// Validate checks the settings every command relies on.
func (c *Config) Validate() error {
	switch c.Analysis.Tagger {
	case TaggerPerceptron, TaggerRule:
	default:
		return fmt.Errorf("analysis.tagger: unknown tagger %q", c.Analysis.Tagger)
	}
	if c.Analysis.Window < 0 {
		return fmt.Errorf("analysis.window: must not be negative, got %d", c.Analysis.Window)
	}
	if c.Batch.ChunkSize < 1 {
		return fmt.Errorf("batch.chunkSize: must be positive, got %d", c.Batch.ChunkSize)
	}
	if len(c.Batch.Labels) == 0 {
		return errors.New("batch.labels: at least one label is required")
	}
	if c.Batch.CallDelay < 0 || c.Batch.RetryDelay < 0 || c.Generate.Delay < 0 {
		return errors.New("delays must not be negative")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	return nil
}

// RequireProvider checks the settings needed to call a model.
func (c *Config) RequireProvider() error {
	switch c.Provider.Type {
	case ProviderAnthropic, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("provider.type: unknown provider %q", c.Provider.Type)
	}
	if strings.TrimSpace(c.Provider.Model) == "" {
		return errors.New("provider.model: required")
	}
	if strings.TrimSpace(c.Provider.APIKey) == "" {
		return fmt.Errorf("%s: %w", c.Provider.Type, ErrMissingAPIKey)
	}
	return nil
}

// BatchConfig returns the chunking settings for a pragma.BatchValidator.
func (c *Config) BatchConfig() pragma.BatchConfig {
	return pragma.BatchConfig{
		ChunkSize:  c.Batch.ChunkSize,
		Labels:     c.Batch.Labels,
		CallDelay:  time.Duration(c.Batch.CallDelay),
		RetryDelay: time.Duration(c.Batch.RetryDelay),
	}
}

// GeneratorConfig returns the settings for a pragma.Generator. The model name
// is appended to the source label.
func (c *Config) GeneratorConfig() pragma.GeneratorConfig {
	gen := pragma.DefaultGeneratorConfig()
	gen.Source = fmt.Sprintf("%s (%s)", c.Generate.Source, c.Provider.Model)
	gen.CEFRLevel = c.Generate.CEFRLevel
	gen.Delay = time.Duration(c.Generate.Delay)
	return gen
}

// LoadModel returns the lemmatizer model (the embedded default, or the one
// in Analysis.Model) and the English dictionary joined with the model's
// lexicon and Analysis.Lexicon.
func (c *Config) LoadModel() (*pragma.Model, pragma.Lexicon, error) {
	model := pragma.DefaultModel()
	if c.Analysis.Model != "" {
		m, err := pragma.ModelFromDisk(c.Analysis.Model)
		if err != nil {
			return nil, nil, fmt.Errorf("load model: %w", err)
		}
		model = m
	}
	if c.Analysis.Lexicon == "" {
		return model, pragma.DefaultLexicon(model), nil
	}

	extra, err := pragma.LoadWordList(c.Analysis.Lexicon)
	if err != nil {
		return nil, nil, fmt.Errorf("load lexicon: %w", err)
	}
	return model, append(pragma.DefaultLexicon(model), extra), nil
}
