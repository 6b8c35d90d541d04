// Package config loads the bridge configuration from the environment.
// Configuration is read once at startup and never mutated afterwards;
// changing any value requires a process restart.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults for the tunable knobs.
const (
	DefaultBaseURL      = "https://api.openai.com/v1"
	DefaultPollTimeout  = 90 * time.Second
	DefaultPollInterval = 500 * time.Millisecond
	DefaultMaxRetries   = 3
	DefaultMaxCacheSize = 100
)

// Specialist binds an exposed tool name to the env var carrying its
// assistant identity.
type Specialist struct {
	Tool        string
	Description string
	EnvVar      string
	AssistantID string
}

// Specialists is the fixed set of exposed specialist tools.
var Specialists = []Specialist{
	{
		Tool:        "consult_accessibility",
		Description: "Consult the accessibility specialist. Reviews content, markup, or designs against accessibility criteria and reports issues with severity, WCAG criterion, and recommendations.",
		EnvVar:      "ACCESSIBILITY_ASSISTANT_ID",
	},
	{
		Tool:        "consult_security",
		Description: "Consult the security specialist. Reviews code or designs for vulnerabilities and insecure patterns.",
		EnvVar:      "SECURITY_ASSISTANT_ID",
	},
	{
		Tool:        "consult_performance",
		Description: "Consult the performance specialist. Reviews code or architecture for bottlenecks and wasteful patterns.",
		EnvVar:      "PERFORMANCE_ASSISTANT_ID",
	},
	{
		Tool:        "consult_code_quality",
		Description: "Consult the code quality specialist. Reviews code for maintainability, correctness, and style issues.",
		EnvVar:      "CODE_QUALITY_ASSISTANT_ID",
	},
	{
		Tool:        "consult_ux",
		Description: "Consult the UX specialist. Reviews flows, copy, and designs for usability problems.",
		EnvVar:      "UX_ASSISTANT_ID",
	},
}

// Config holds the process-wide bridge settings.
type Config struct {
	APIKey  string
	BaseURL string

	PollTimeout  time.Duration
	PollInterval time.Duration
	MaxRetries   int
	MaxCacheSize int

	LogEnabled   bool
	DebugEnabled bool

	// Assistants maps tool name to assistant identity.
	Assistants map[string]string
}

// Load reads configuration from the environment. Missing required values
// (API key, any specialist binding) are an error; the process must not
// start without them.
func Load() (*Config, error) {
	cfg := &Config{
		APIKey:       os.Getenv("OPENAI_API_KEY"),
		BaseURL:      envOr("OPENAI_BASE_URL", DefaultBaseURL),
		PollTimeout:  envDuration("CONSULT_POLL_TIMEOUT_MS", DefaultPollTimeout),
		PollInterval: envDuration("CONSULT_POLL_INTERVAL_MS", DefaultPollInterval),
		MaxRetries:   envInt("CONSULT_MAX_RETRIES", DefaultMaxRetries),
		MaxCacheSize: envInt("CONSULT_MAX_CACHE_SIZE", DefaultMaxCacheSize),
		LogEnabled:   envBool("CONSULT_LOG", true),
		DebugEnabled: envBool("CONSULT_DEBUG", false),
		Assistants:   make(map[string]string),
	}

	var missing []string
	if cfg.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	for _, s := range Specialists {
		id := os.Getenv(s.EnvVar)
		if id == "" {
			missing = append(missing, s.EnvVar)
			continue
		}
		cfg.Assistants[s.Tool] = id
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
