package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/tradeprep/internal/llm"
	"github.com/cognicore/tradeprep/pkg/tradeprep/chunk"
	"github.com/cognicore/tradeprep/pkg/tradeprep/crosswalk"
	"github.com/cognicore/tradeprep/pkg/tradeprep/internalerr"
	"github.com/cognicore/tradeprep/pkg/tradeprep/scrape"
	"github.com/cognicore/tradeprep/pkg/tradeprep/summarize"
)

// LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Stage cache backends.
const (
	CacheBackendDir   = "dir"
	CacheBackendStore = "store"
)

// DefaultStopwords are dropped from taxonomy titles and case titles before
// keyword matching.
var DefaultStopwords = []string{
	"products", "goods", "services", "materials", "articles", "items",
	"certain", "other", "related", "various", "and", "the", "a", "or",
	"not", "from", "for", "with", "as", "such", "including", "whether",
	"apparatus", "equipment", "machinery", "device", "system", "tool",
	"supplement", "manufacturing", "production", "use", "used", "based",
	"made", "manufactured", "component", "components", "part", "parts",
	"of", "in", "on", "by", "at", "to",
}

// DefaultPrioritySectors are the two-digit NAICS sectors with large US
// employment.
func DefaultPrioritySectors() map[string]string {
	return map[string]string{
		"31": "Manufacturing",
		"42": "Wholesale Trade",
		"44": "Retail Trade",
		"51": "Information",
		"52": "Finance & Insurance",
		"54": "Professional Services",
		"72": "Accommodation & Food",
	}
}

// Config is the tradeprep configuration file.
type Config struct {
	Taxonomy  TaxonomyConfig  `yaml:"taxonomy"`
	Title     TitleConfig     `yaml:"title"`
	Scrape    ScrapeConfig    `yaml:"scrape"`
	LLM       LLMConfig       `yaml:"llm"`
	Summarize SummarizeConfig `yaml:"summarize"`
	Store     StoreConfig     `yaml:"store"`
	Log       LogConfig       `yaml:"log"`
}

// TaxonomyConfig locates the crosswalk table and the keyword filters.
type TaxonomyConfig struct {
	Path        string   `yaml:"path"`
	CodeColumn  string   `yaml:"code_column"`
	TitleColumn string   `yaml:"title_column"`
	Stopwords   []string `yaml:"stopwords"`
	// Stoplist is an optional YAML file whose terms extend Stopwords.
	Stoplist        string            `yaml:"stoplist"`
	PrioritySectors map[string]string `yaml:"priority_sectors"`
}

// TitleConfig controls case title cleaning.
type TitleConfig struct {
	StripPrefix    string `yaml:"strip_prefix"`
	TrailingMarker string `yaml:"trailing_marker"`
}

type ScrapeConfig struct {
	BaseURL      string            `yaml:"base_url"`
	Params       map[string]string `yaml:"params"`
	Headers      map[string]string `yaml:"headers"`
	CacheDir     string            `yaml:"cache_dir"`
	MaxPages     int               `yaml:"max_pages"`
	MaxAttempts  int               `yaml:"max_attempts"`
	RequestDelay time.Duration     `yaml:"request_delay"`
	RetryDelay   time.Duration     `yaml:"retry_delay"`
	Timeout      time.Duration     `yaml:"timeout"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	// APIKeyEnv names the environment variable read when APIKey is empty.
	APIKeyEnv   string        `yaml:"api_key_env"`
	Model       string        `yaml:"model"`
	// Temperature and TopP are pointers so an explicit 0 survives defaults.
	Temperature *float64      `yaml:"temperature"`
	TopP        *float64      `yaml:"top_p"`
	Timeout     time.Duration `yaml:"timeout"`
}

type SummarizeConfig struct {
	MaxTokens     int    `yaml:"max_tokens"`
	Overlap       int    `yaml:"overlap"`
	SkipThreshold int    `yaml:"skip_threshold"`
	CharsPerToken int    `yaml:"chars_per_token"`
	// TokenizerFile is a HuggingFace tokenizer.json; when set it replaces
	// the character estimate.
	TokenizerFile string        `yaml:"tokenizer_file"`
	Workers       int           `yaml:"workers"`
	MaxAttempts   int           `yaml:"max_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	CacheDir      string        `yaml:"cache_dir"`
	// CacheBackend selects where stage outputs are kept: "dir" (files under
	// CacheDir) or "store" (the SQLite store). Locks always use CacheDir.
	CacheBackend  string        `yaml:"cache_backend"`
	OutputDir     string        `yaml:"output_dir"`
	Force         bool          `yaml:"force"`
	Prompts       PromptsConfig `yaml:"prompts"`
}

// PromptsConfig overrides the summarize prompt templates. Each template
// takes one %s for the text.
type PromptsConfig struct {
	System string `yaml:"system"`
	Map    string `yaml:"map"`
	Reduce string `yaml:"reduce"`
	Direct string `yaml:"direct"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads a YAML configuration file. Unknown keys are rejected. An empty
// file yields the defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a YAML configuration, applies defaults and validates it.
func Decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: parse config: %v", internalerr.ErrInvalidConfig, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults populates zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.Taxonomy.Path == "" {
		c.Taxonomy.Path = "data/sic_naics_crosswalk.csv"
	}
	if c.Taxonomy.CodeColumn == "" {
		c.Taxonomy.CodeColumn = crosswalk.DefaultCodeColumn
	}
	if c.Taxonomy.TitleColumn == "" {
		c.Taxonomy.TitleColumn = crosswalk.DefaultTitleColumn
	}
	if c.Taxonomy.Stopwords == nil {
		c.Taxonomy.Stopwords = append([]string(nil), DefaultStopwords...)
	}
	if c.Taxonomy.PrioritySectors == nil {
		c.Taxonomy.PrioritySectors = DefaultPrioritySectors()
	}

	if c.Title.StripPrefix == "" {
		c.Title.StripPrefix = crosswalk.DefaultStripPrefix
	}
	if c.Title.TrailingMarker == "" {
		c.Title.TrailingMarker = crosswalk.DefaultTrailingMarker
	}

	def := scrape.DefaultConfig()
	if c.Scrape.BaseURL == "" {
		c.Scrape.BaseURL = def.BaseURL
	}
	if c.Scrape.Params == nil {
		c.Scrape.Params = def.Params
	}
	if c.Scrape.Headers == nil {
		c.Scrape.Headers = def.Headers
	}
	if c.Scrape.CacheDir == "" {
		c.Scrape.CacheDir = "data/html_cache"
	}
	if c.Scrape.MaxAttempts <= 0 {
		c.Scrape.MaxAttempts = def.MaxAttempts
	}
	if c.Scrape.RequestDelay == 0 {
		c.Scrape.RequestDelay = def.RequestDelay
	}
	if c.Scrape.RetryDelay == 0 {
		c.Scrape.RetryDelay = def.RetryDelay
	}
	if c.Scrape.Timeout == 0 {
		c.Scrape.Timeout = def.Timeout
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderOpenAI
	}
	if c.LLM.Provider == ProviderOpenAI && c.LLM.BaseURL == "" {
		c.LLM.BaseURL = llm.DefaultBaseURL
	}
	if c.LLM.Model == "" {
		if c.LLM.Provider == ProviderGemini {
			c.LLM.Model = llm.DefaultGeminiModel
		} else {
			c.LLM.Model = "gpt-oss:20b"
		}
	}
	if c.LLM.APIKey == "" && c.LLM.APIKeyEnv != "" {
		c.LLM.APIKey = os.Getenv(c.LLM.APIKeyEnv)
	}
	if c.LLM.Temperature == nil {
		c.LLM.Temperature = llm.Float(summarize.DefaultTemperature)
	}
	if c.LLM.TopP == nil {
		c.LLM.TopP = llm.Float(summarize.DefaultTopP)
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 5 * time.Minute
	}

	if c.Summarize.MaxTokens <= 0 {
		c.Summarize.MaxTokens = chunk.DefaultMaxTokens
	}
	if c.Summarize.Overlap <= 0 {
		c.Summarize.Overlap = chunk.DefaultOverlap
	}
	if c.Summarize.SkipThreshold <= 0 {
		c.Summarize.SkipThreshold = chunk.DefaultSkipThreshold
	}
	if c.Summarize.CharsPerToken <= 0 {
		c.Summarize.CharsPerToken = chunk.DefaultCharsPerToken
	}
	if c.Summarize.Workers <= 0 {
		c.Summarize.Workers = summarize.DefaultWorkers
	}
	if c.Summarize.MaxAttempts <= 0 {
		c.Summarize.MaxAttempts = summarize.DefaultMaxAttempts
	}
	if c.Summarize.RetryDelay == 0 {
		c.Summarize.RetryDelay = summarize.DefaultRetryDelay
	}
	if c.Summarize.CacheDir == "" {
		c.Summarize.CacheDir = "data/stage_cache"
	}
	if c.Summarize.CacheBackend == "" {
		c.Summarize.CacheBackend = CacheBackendDir
	}
	if c.Summarize.OutputDir == "" {
		c.Summarize.OutputDir = "notes"
	}

	if c.Store.Path == "" {
		c.Store.Path = "data/tradeprep.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate reports settings that no component can run with.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("%w: unknown llm provider %q", internalerr.ErrInvalidConfig, c.LLM.Provider)
	}
	if c.Summarize.Overlap >= c.Summarize.MaxTokens {
		return fmt.Errorf("%w: summarize overlap %d must be below max_tokens %d",
			internalerr.ErrInvalidConfig, c.Summarize.Overlap, c.Summarize.MaxTokens)
	}
	switch c.Summarize.CacheBackend {
	case CacheBackendDir, CacheBackendStore:
	default:
		return fmt.Errorf("%w: unknown summarize cache_backend %q", internalerr.ErrInvalidConfig, c.Summarize.CacheBackend)
	}
	if t := c.LLM.Temperature; t != nil && *t < 0 {
		return fmt.Errorf("%w: llm sampling out of range", internalerr.ErrInvalidConfig)
	}
	if p := c.LLM.TopP; p != nil && (*p < 0 || *p > 1) {
		return fmt.Errorf("%w: llm sampling out of range", internalerr.ErrInvalidConfig)
	}
	return nil
}

// Stoplist is a list of extra stopwords.
type Stoplist struct {
	Terms []string `yaml:"terms"`
}

// LoadStoplist loads stopwords from a YAML file.
func LoadStoplist(path string) (*Stoplist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sl Stoplist
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, err
	}

	return &sl, nil
}
