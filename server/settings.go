package server

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"promptbench/internal/api"
	"promptbench/internal/benchmark"
	"promptbench/internal/catalog"
	"promptbench/internal/report"
)

const (
	DefaultModel = "deepseek/deepseek-chat-v3.1:free"
	DefaultRuns  = 5
	MaxRuns      = benchmark.MaxRuns
	DefaultPort  = "8080"
)

// Settings is the service configuration read from environment variables
type Settings struct {
	APIKey         string
	BaseURL        string
	ModelsURL      string
	FreeModelsOnly bool
	MaxParallel    int
	MaxTokens      int
	RequestTimeout time.Duration
	ResultsDir     string
	Port           string
	CORSOrigin     string
	ModelCacheTTL  time.Duration

	// values that were set but could not be parsed
	problems []string
}

// LoadSettings reads the service configuration. Unparsable values fall back to their defaults
// and are reported by ValidateSettings.
func LoadSettings() Settings {
	s := Settings{
		APIKey:     strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")),
		BaseURL:    envOr("OPENROUTER_BASE_URL", api.DefaultBaseURL),
		ResultsDir: envOr("RESULTS_DIR", report.DefaultResultsDir),
		Port:       envOr("PORT", DefaultPort),
		CORSOrigin: os.Getenv("CORS_ORIGIN"),
	}
	if s.APIKey == "" {
		s.applyBinding()
	}
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")
	s.ModelsURL = envOr("MODELS_URL", s.BaseURL+"/models")

	s.FreeModelsOnly = s.boolEnv("FREE_MODELS_ONLY", true)
	s.MaxParallel = s.intEnv("MAX_PARALLEL_REQUESTS", benchmark.DefaultConcurrency)
	s.MaxTokens = s.intEnv("MAX_TOKENS", benchmark.DefaultMaxTokens)
	s.RequestTimeout = s.durationEnv("REQUEST_TIMEOUT", benchmark.DefaultTimeout)
	s.ModelCacheTTL = s.durationEnv("MODEL_CACHE_TTL", catalog.DefaultTTL)
	return s
}

// ValidateSettings returns human-readable configuration problems
func ValidateSettings(s Settings) []string {
	problems := append([]string(nil), s.problems...)

	if !isValidURL(s.BaseURL) {
		problems = append(problems, fmt.Sprintf("Invalid OPENROUTER_BASE_URL: %s", s.BaseURL))
	}
	if !isValidURL(s.ModelsURL) {
		problems = append(problems, fmt.Sprintf("Invalid MODELS_URL: %s", s.ModelsURL))
	}
	if s.MaxParallel < 1 {
		problems = append(problems, fmt.Sprintf("MAX_PARALLEL_REQUESTS must be positive, got %d", s.MaxParallel))
	}
	if s.MaxTokens < 1 {
		problems = append(problems, fmt.Sprintf("MAX_TOKENS must be positive, got %d", s.MaxTokens))
	}
	if s.RequestTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("REQUEST_TIMEOUT must be positive, got %s", s.RequestTimeout))
	}
	if s.ModelCacheTTL <= 0 {
		problems = append(problems, fmt.Sprintf("MODEL_CACHE_TTL must be positive, got %s", s.ModelCacheTTL))
	}
	if port, err := strconv.Atoi(s.Port); err != nil || port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("Invalid PORT: %s", s.Port))
	}
	if s.APIKey == "" {
		problems = append(problems, "OPENROUTER_API_KEY is not set; /benchmark and /generate will fail")
	}

	return problems
}

// DispatchOptions converts the settings into dispatcher options
func (s Settings) DispatchOptions() benchmark.Options {
	return benchmark.Options{
		Concurrency: s.MaxParallel,
		MaxTokens:   s.MaxTokens,
		Timeout:     s.RequestTimeout,
	}
}

// applyBinding takes credentials from a Cloud Foundry service binding.
// An explicit OPENROUTER_BASE_URL still wins over the bound one.
func (s *Settings) applyBinding() {
	binding, err := LookupBinding()
	if err != nil {
		if !errors.Is(err, ErrNoBinding) {
			s.problems = append(s.problems, err.Error())
		}
		return
	}

	s.APIKey = binding.APIKey
	if binding.BaseURL != "" && strings.TrimSpace(os.Getenv("OPENROUTER_BASE_URL")) == "" {
		s.BaseURL = binding.BaseURL
	}
	AppLogger.InfoWithFields("Using OpenRouter credentials from service binding", map[string]interface{}{
		"serviceName": binding.Name,
	})
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (s *Settings) intEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		s.problems = append(s.problems, fmt.Sprintf("Invalid %s: %q is not an integer", key, raw))
		return fallback
	}
	return n
}

func (s *Settings) boolEnv(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		s.problems = append(s.problems, fmt.Sprintf("Invalid %s: %q is not a boolean", key, raw))
		return fallback
	}
	return b
}

func (s *Settings) durationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		s.problems = append(s.problems, fmt.Sprintf("Invalid %s: %q is not a duration", key, raw))
		return fallback
	}
	return d
}

// isValidURL validates if a URL is properly formatted
func isValidURL(urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	// Check if it has a scheme and host
	return parsedURL.Scheme != "" && parsedURL.Host != ""
}
