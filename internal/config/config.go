// Package config assembles runtime settings from defaults, a YAML file, the
// environment and an optional SSM parameter, in that order of precedence
// (later sources win).
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"hint-agent/internal/integrations/paramstore"
	"hint-agent/internal/usecase"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Models names the model per generation step. Empty values fall back to the
// provider's default model.
type Models struct {
	Classifier string `yaml:"classifier"`
	Hint       string `yaml:"hint"`
	Verifier   string `yaml:"verifier"`
	Persona    string `yaml:"persona"`
	Error      string `yaml:"error"`
}

type Config struct {
	Provider        string `yaml:"provider"`
	// ProviderBaseURL points the provider SDK at a proxy or compatible API.
	ProviderBaseURL string `yaml:"provider_base_url"`
	Models          Models `yaml:"models"`

	MaxSessions     int           `yaml:"max_sessions"`
	MaxHistory      int           `yaml:"max_history"`
	RepeatThreshold int           `yaml:"repeat_threshold"`
	RetrievalK      int           `yaml:"retrieval_k"`
	CallTimeout     time.Duration `yaml:"call_timeout"`
	CacheSize       int           `yaml:"cache_size"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	MaxMessageLen   int           `yaml:"max_message_length"`

	SmalltalkPatterns  []string        `yaml:"smalltalk_patterns"`
	EscalationPatterns []string        `yaml:"escalation_patterns"`
	Denylist           []string        `yaml:"denylist"`
	Persona            usecase.Persona `yaml:"persona"`

	LogLevel string `yaml:"log_level"`

	StateTable      string `yaml:"state_table"`
	ParamPrefix     string `yaml:"param_prefix"`
	RetrievalURL    string `yaml:"retrieval_url"`
	RetrievalAPIKey string `yaml:"-"` // environment only
	ChunksFile      string `yaml:"chunks_file"`
	SQLitePath      string `yaml:"sqlite_path"`
}

func Default() Config {
	return Config{
		Provider:        ProviderOpenAI,
		MaxSessions:     500,
		MaxHistory:      20,
		RepeatThreshold: 2,
		RetrievalK:      5,
		CallTimeout:     20 * time.Second,
		CacheSize:       256,
		CacheTTL:        10 * time.Minute,
		MaxMessageLen:   5000,
		LogLevel:        "info",
	}
}

// LoadFile overlays the YAML document at path onto c. Keys absent from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables read through lookup (os.LookupEnv
// in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = splitList(v)
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
			return
		}
		*dst = n
	}
	dur := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
			return
		}
		*dst = d
	}

	str("HINT_PROVIDER", &c.Provider)
	str("HINT_PROVIDER_BASE_URL", &c.ProviderBaseURL)
	str("HINT_MODEL_CLASSIFIER", &c.Models.Classifier)
	str("HINT_MODEL_HINT", &c.Models.Hint)
	str("HINT_MODEL_VERIFIER", &c.Models.Verifier)
	str("HINT_MODEL_PERSONA", &c.Models.Persona)
	str("HINT_MODEL_ERROR", &c.Models.Error)
	num("MAX_SESSIONS", &c.MaxSessions)
	num("HINT_MAX_HISTORY", &c.MaxHistory)
	num("HINT_REPEAT_THRESHOLD", &c.RepeatThreshold)
	num("HINT_RETRIEVAL_K", &c.RetrievalK)
	dur("HINT_CALL_TIMEOUT", &c.CallTimeout)
	num("HINT_CACHE_SIZE", &c.CacheSize)
	dur("HINT_CACHE_TTL", &c.CacheTTL)
	num("MAX_MESSAGE_LENGTH", &c.MaxMessageLen)
	list("HINT_SMALLTALK_PATTERNS", &c.SmalltalkPatterns)
	list("HINT_ESCALATION_PATTERNS", &c.EscalationPatterns)
	list("HINT_DENYLIST", &c.Denylist)
	str("HINT_LOG_LEVEL", &c.LogLevel)
	str("STATE_TABLE", &c.StateTable)
	str("PARAM_PREFIX", &c.ParamPrefix)
	str("RETRIEVAL_URL", &c.RetrievalURL)
	str("RETRIEVAL_API_KEY", &c.RetrievalAPIKey)
	str("HINT_CHUNKS_FILE", &c.ChunksFile)
	str("HINT_SQLITE_PATH", &c.SQLitePath)

	return errors.Join(errs...)
}

// ApplyParams overlays the YAML (or JSON) document stored at
// {ParamPrefix}/config. A missing parameter leaves c unchanged.
func (c *Config) ApplyParams(ctx context.Context, getter paramstore.Getter) error {
	if c.ParamPrefix == "" {
		return nil
	}
	raw, err := getter.GetParameter(ctx, c.ParamName("config"))
	if errors.Is(err, paramstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: load remote overlay: %w", err)
	}
	if err := yaml.Unmarshal([]byte(raw), c); err != nil {
		return fmt.Errorf("config: parse remote overlay: %w", err)
	}
	return nil
}

// ParamName joins ParamPrefix and name into an SSM parameter path.
func (c Config) ParamName(name string) string {
	return strings.TrimRight(c.ParamPrefix, "/") + "/" + name
}

// TokenParam is the parameter holding the provider's {"token": "..."} secret.
func (c Config) TokenParam() string {
	return c.ParamName(c.Provider + "-token")
}

func (c Config) Validate() error {
	var errs []error
	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("config: unknown provider %q", c.Provider))
	}
	positive := map[string]int{
		"max_sessions":       c.MaxSessions,
		"max_history":        c.MaxHistory,
		"repeat_threshold":   c.RepeatThreshold,
		"retrieval_k":        c.RetrievalK,
		"max_message_length": c.MaxMessageLen,
	}
	for name, v := range positive {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("config: %s must be positive, got %d", name, v))
		}
	}
	if c.MaxHistory%2 != 0 {
		errs = append(errs, fmt.Errorf("config: max_history must be even, got %d", c.MaxHistory))
	}
	if c.CallTimeout <= 0 {
		errs = append(errs, errors.New("config: call_timeout must be positive"))
	}
	return errors.Join(errs...)
}

// ServiceOptions maps the engine settings onto usecase.Options.
func (c Config) ServiceOptions() usecase.Options {
	return usecase.Options{
		Models: usecase.Models{
			Classifier: c.Models.Classifier,
			Hint:       c.Models.Hint,
			Verifier:   c.Models.Verifier,
			Persona:    c.Models.Persona,
			Error:      c.Models.Error,
		},
		RetrievalK:         c.RetrievalK,
		CallTimeout:        c.CallTimeout,
		RepeatThreshold:    c.RepeatThreshold,
		MaxHistory:         c.MaxHistory,
		MaxMessageLen:      c.MaxMessageLen,
		SmalltalkPatterns:  c.SmalltalkPatterns,
		EscalationPatterns: c.EscalationPatterns,
		Denylist:           c.Denylist,
		Persona:            c.Persona,
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
