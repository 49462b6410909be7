package server

import (
	"strings"
	"testing"
	"time"
)

// clearSettingsEnv blanks every variable LoadSettings reads
func clearSettingsEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENROUTER_API_KEY", "OPENROUTER_BASE_URL", "MODELS_URL", "FREE_MODELS_ONLY",
		"MAX_PARALLEL_REQUESTS", "MAX_TOKENS", "REQUEST_TIMEOUT", "RESULTS_DIR",
		"PORT", "CORS_ORIGIN", "MODEL_CACHE_TTL", "VCAP_SERVICES",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadSettings_Defaults(t *testing.T) {
	clearSettingsEnv(t)

	s := LoadSettings()

	if s.BaseURL != "https://openrouter.ai/api/v1" {
		t.Errorf("Expected default base URL, got '%s'", s.BaseURL)
	}
	if s.ModelsURL != "https://openrouter.ai/api/v1/models" {
		t.Errorf("Expected models URL derived from base URL, got '%s'", s.ModelsURL)
	}
	if !s.FreeModelsOnly {
		t.Error("Expected free models only by default")
	}
	if s.MaxParallel != 6 {
		t.Errorf("Expected 6 parallel requests, got %d", s.MaxParallel)
	}
	if s.MaxTokens != 512 {
		t.Errorf("Expected 512 max tokens, got %d", s.MaxTokens)
	}
	if s.RequestTimeout != 30*time.Second {
		t.Errorf("Expected 30s timeout, got %s", s.RequestTimeout)
	}
	if s.ResultsDir != "benchmark_results" {
		t.Errorf("Expected default results dir, got '%s'", s.ResultsDir)
	}
	if s.Port != "8080" {
		t.Errorf("Expected port 8080, got '%s'", s.Port)
	}

	problems := ValidateSettings(s)
	if len(problems) != 1 || !strings.Contains(problems[0], "OPENROUTER_API_KEY") {
		t.Errorf("Expected only the missing key to be reported, got %v", problems)
	}
}

func TestLoadSettings_Overrides(t *testing.T) {
	clearSettingsEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "  sk-or-test  ")
	t.Setenv("OPENROUTER_BASE_URL", "http://localhost:9000/v1/")
	t.Setenv("FREE_MODELS_ONLY", "false")
	t.Setenv("MAX_PARALLEL_REQUESTS", "3")
	t.Setenv("MAX_TOKENS", "128")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("MODEL_CACHE_TTL", "1m")
	t.Setenv("PORT", "9090")

	s := LoadSettings()

	if s.APIKey != "sk-or-test" {
		t.Errorf("Expected trimmed API key, got '%s'", s.APIKey)
	}
	if s.BaseURL != "http://localhost:9000/v1" {
		t.Errorf("Expected trailing slash trimmed, got '%s'", s.BaseURL)
	}
	if s.ModelsURL != "http://localhost:9000/v1/models" {
		t.Errorf("Unexpected models URL '%s'", s.ModelsURL)
	}
	if s.FreeModelsOnly {
		t.Error("Expected FREE_MODELS_ONLY=false to be honoured")
	}

	opts := s.DispatchOptions()
	if opts.Concurrency != 3 || opts.MaxTokens != 128 || opts.Timeout != 5*time.Second {
		t.Errorf("Unexpected dispatch options %+v", opts)
	}
	if s.ModelCacheTTL != time.Minute {
		t.Errorf("Expected 1m cache TTL, got %s", s.ModelCacheTTL)
	}

	if problems := ValidateSettings(s); len(problems) != 0 {
		t.Errorf("Expected valid settings, got %v", problems)
	}
}

func TestValidateSettings_InvalidValues(t *testing.T) {
	clearSettingsEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test")
	t.Setenv("MAX_PARALLEL_REQUESTS", "many")
	t.Setenv("FREE_MODELS_ONLY", "sometimes")
	t.Setenv("REQUEST_TIMEOUT", "-1s")
	t.Setenv("MODELS_URL", "not a url")
	t.Setenv("PORT", "70000")

	s := LoadSettings()
	if s.MaxParallel != 6 {
		t.Errorf("Expected unparsable value to fall back to 6, got %d", s.MaxParallel)
	}

	problems := strings.Join(ValidateSettings(s), "\n")
	for _, want := range []string{
		"MAX_PARALLEL_REQUESTS",
		"FREE_MODELS_ONLY",
		"REQUEST_TIMEOUT must be positive",
		"Invalid MODELS_URL",
		"Invalid PORT",
	} {
		if !strings.Contains(problems, want) {
			t.Errorf("Expected problem mentioning %q, got:\n%s", want, problems)
		}
	}
}

func TestLoadSettings_ServiceBinding(t *testing.T) {
	clearSettingsEnv(t)
	t.Setenv("VCAP_SERVICES", `{
		"user-provided": [
			{
				"name": "bench-llm",
				"instance_name": "bench-llm",
				"tags": ["OpenRouter"],
				"credentials": {
					"api_key": "sk-or-bound",
					"api_base": "https://proxy.example.com/api/v1/"
				}
			}
		]
	}`)

	s := LoadSettings()
	if s.APIKey != "sk-or-bound" {
		t.Errorf("Expected key from binding, got '%s'", s.APIKey)
	}
	if s.BaseURL != "https://proxy.example.com/api/v1" {
		t.Errorf("Expected base URL from binding, got '%s'", s.BaseURL)
	}

	// an explicit key skips the binding entirely
	t.Setenv("OPENROUTER_API_KEY", "sk-or-env")
	s = LoadSettings()
	if s.APIKey != "sk-or-env" || s.BaseURL != "https://openrouter.ai/api/v1" {
		t.Errorf("Expected environment to win, got key '%s' base '%s'", s.APIKey, s.BaseURL)
	}
}
