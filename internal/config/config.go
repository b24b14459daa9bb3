package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pratyushraj/noticebazaar-sub008/internal/llm"
)

type Config struct {
	HTTP struct {
		Addr         string `yaml:"addr"`
		RateLimitRPM int    `yaml:"rate_limit_rpm"`
	} `yaml:"http"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	ObjectStore struct {
		Endpoint  string `yaml:"endpoint"`
		Bucket    string `yaml:"bucket"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		UseSSL    bool   `yaml:"use_ssl"`
	} `yaml:"object_store"`
	Extractor struct {
		URL     string        `yaml:"url"`
		Token   string        `yaml:"token"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"extractor"`
	LLM struct {
		Provider   string        `yaml:"provider"`
		Model      string        `yaml:"model"`
		APIKey     string        `yaml:"api_key"`
		BaseURL    string        `yaml:"base_url"`
		ProjectID  string        `yaml:"project_id"`
		Region     string        `yaml:"region"`
		Timeout    time.Duration `yaml:"timeout"`
		MaxRetries int           `yaml:"max_retries"`
		MaxBackoff time.Duration `yaml:"max_backoff"`

		VerifierProvider string `yaml:"verifier_provider"`
		VerifierModel    string `yaml:"verifier_model"`
		VerifierAPIKey   string `yaml:"verifier_api_key"`
	} `yaml:"llm"`
	Classify struct {
		MinTextLength  int    `yaml:"min_text_length"`
		MaxPromptChars int    `yaml:"max_prompt_chars"`
		RulesPath      string `yaml:"rules_path"`
	} `yaml:"classify"`
	Analysis struct {
		MaxPromptChars int `yaml:"max_prompt_chars"`
	} `yaml:"analysis"`
	Worker struct {
		Concurrency int           `yaml:"concurrency"`
		PollTimeout time.Duration `yaml:"poll_timeout"`
		Embedded    bool          `yaml:"embedded"`
	} `yaml:"worker"`
}

func Default() Config {
	var cfg Config
	cfg.HTTP.Addr = ":8090"
	cfg.HTTP.RateLimitRPM = 30
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.ObjectStore.Bucket = "contracts"
	cfg.Extractor.Timeout = 60 * time.Second
	cfg.LLM.Provider = string(llm.KindNoop)
	cfg.LLM.Timeout = 30 * time.Second
	cfg.LLM.MaxRetries = 2
	cfg.LLM.MaxBackoff = 20 * time.Second
	cfg.Classify.MinTextLength = 100
	cfg.Classify.MaxPromptChars = 6000
	cfg.Analysis.MaxPromptChars = 12000
	cfg.Worker.Concurrency = 4
	cfg.Worker.PollTimeout = 5 * time.Second
	return cfg
}

func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, err
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		}
	}

	applyEnv(&cfg)

	if _, err := llm.ParseKind(cfg.LLM.Provider); err != nil {
		return cfg, fmt.Errorf("llm.provider (or NB_LLM_PROVIDER): %w", err)
	}
	if cfg.LLM.VerifierProvider != "" {
		if _, err := llm.ParseKind(cfg.LLM.VerifierProvider); err != nil {
			return cfg, fmt.Errorf("llm.verifier_provider (or NB_LLM_VERIFIER_PROVIDER): %w", err)
		}
	}
	return cfg, nil
}

// ProviderConfig returns the gateway settings for the primary model.
func (c Config) ProviderConfig() llm.ProviderConfig {
	kind, _ := llm.ParseKind(c.LLM.Provider)
	return llm.ProviderConfig{
		Provider:  kind,
		Model:     c.LLM.Model,
		APIKey:    c.LLM.APIKey,
		BaseURL:   c.LLM.BaseURL,
		ProjectID: c.LLM.ProjectID,
		Region:    c.LLM.Region,
	}
}

// VerifierConfig returns the gateway settings for the confidence check. It
// reports false when the confidence check shares the primary gateway.
func (c Config) VerifierConfig() (llm.ProviderConfig, bool) {
	if c.LLM.VerifierProvider == "" {
		return llm.ProviderConfig{}, false
	}
	kind, _ := llm.ParseKind(c.LLM.VerifierProvider)
	pc := llm.ProviderConfig{
		Provider:  kind,
		Model:     c.LLM.VerifierModel,
		APIKey:    c.LLM.VerifierAPIKey,
		ProjectID: c.LLM.ProjectID,
		Region:    c.LLM.Region,
	}
	if pc.APIKey == "" && kind == c.ProviderConfig().Provider {
		pc.APIKey = c.LLM.APIKey
	}
	return pc, true
}

func (c Config) Policy() llm.Policy {
	return llm.Policy{
		Timeout:    c.LLM.Timeout,
		MaxRetries: c.LLM.MaxRetries,
		MaxBackoff: c.LLM.MaxBackoff,
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("NB_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("NB_HTTP_RATE_LIMIT_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimitRPM = n
		}
	}
	if v := os.Getenv("NB_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("NB_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("NB_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("NB_REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("NB_OBJECT_STORE_ENDPOINT"); v != "" {
		cfg.ObjectStore.Endpoint = v
	}
	if v := os.Getenv("NB_OBJECT_STORE_BUCKET"); v != "" {
		cfg.ObjectStore.Bucket = v
	}
	if v := os.Getenv("NB_OBJECT_STORE_ACCESS_KEY"); v != "" {
		cfg.ObjectStore.AccessKey = v
	}
	if v := os.Getenv("NB_OBJECT_STORE_SECRET_KEY"); v != "" {
		cfg.ObjectStore.SecretKey = v
	}
	if v := os.Getenv("NB_OBJECT_STORE_USE_SSL"); v != "" {
		cfg.ObjectStore.UseSSL = parseBool(v, cfg.ObjectStore.UseSSL)
	}
	if v := os.Getenv("NB_EXTRACTOR_URL"); v != "" {
		cfg.Extractor.URL = v
	}
	if v := os.Getenv("NB_EXTRACTOR_TOKEN"); v != "" {
		cfg.Extractor.Token = v
	}
	if v := os.Getenv("NB_EXTRACTOR_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Extractor.Timeout = d
		}
	}
	if v := os.Getenv("NB_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("NB_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("NB_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("NB_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("NB_LLM_PROJECT_ID"); v != "" {
		cfg.LLM.ProjectID = v
	}
	if v := os.Getenv("NB_LLM_REGION"); v != "" {
		cfg.LLM.Region = v
	}
	if v := os.Getenv("NB_LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LLM.Timeout = d
		}
	}
	if v := os.Getenv("NB_LLM_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LLM.MaxRetries = n
		}
	}
	if v := os.Getenv("NB_LLM_MAX_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LLM.MaxBackoff = d
		}
	}
	if v := os.Getenv("NB_LLM_VERIFIER_PROVIDER"); v != "" {
		cfg.LLM.VerifierProvider = v
	}
	if v := os.Getenv("NB_LLM_VERIFIER_MODEL"); v != "" {
		cfg.LLM.VerifierModel = v
	}
	if v := os.Getenv("NB_LLM_VERIFIER_API_KEY"); v != "" {
		cfg.LLM.VerifierAPIKey = v
	}
	if v := os.Getenv("NB_CLASSIFY_MIN_TEXT_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Classify.MinTextLength = n
		}
	}
	if v := os.Getenv("NB_CLASSIFY_MAX_PROMPT_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Classify.MaxPromptChars = n
		}
	}
	if v := os.Getenv("NB_CLASSIFY_RULES_PATH"); v != "" {
		cfg.Classify.RulesPath = v
	}
	if v := os.Getenv("NB_ANALYSIS_MAX_PROMPT_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.MaxPromptChars = n
		}
	}
	if v := os.Getenv("NB_WORKER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Worker.Concurrency = n
		}
	}
	if v := os.Getenv("NB_WORKER_POLL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Worker.PollTimeout = d
		}
	}
	if v := os.Getenv("NB_WORKER_EMBEDDED"); v != "" {
		cfg.Worker.Embedded = parseBool(v, cfg.Worker.Embedded)
	}
}

func parseBool(input string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
