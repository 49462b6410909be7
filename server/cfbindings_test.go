package server

import (
	"errors"
	"testing"
)

func TestParseBinding_EndpointCredentials(t *testing.T) {
	binding, err := parseBinding(`{
		"openrouter": [
			{
				"instance_name": "my-openrouter",
				"label": "openrouter",
				"credentials": {
					"endpoint": {
						"api_key": "sk-or-endpoint",
						"api_base": "https://openrouter.ai/api/v1"
					}
				}
			}
		]
	}`)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if binding.Name != "my-openrouter" {
		t.Errorf("Expected name 'my-openrouter', got '%s'", binding.Name)
	}
	if binding.APIKey != "sk-or-endpoint" {
		t.Errorf("Expected key from endpoint, got '%s'", binding.APIKey)
	}
	if binding.BaseURL != "https://openrouter.ai/api/v1" {
		t.Errorf("Unexpected base URL '%s'", binding.BaseURL)
	}
}

func TestParseBinding_LegacyBaseURL(t *testing.T) {
	binding, err := parseBinding(`{
		"user-provided": [
			{"name": "unrelated-db", "credentials": {"api_key": "nope"}},
			{"name": "openrouter-creds", "credentials": {"api_key": "sk-or-legacy", "base_url": "https://gw.example.com/v1"}}
		]
	}`)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if binding.APIKey != "sk-or-legacy" {
		t.Errorf("Expected only the openrouter binding to match, got key '%s'", binding.APIKey)
	}
	if binding.BaseURL != "https://gw.example.com/v1" {
		t.Errorf("Expected base_url fallback, got '%s'", binding.BaseURL)
	}
}

func TestParseBinding_NoUsableBinding(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no services", `{}`},
		{"no match", `{"user-provided": [{"name": "postgres", "credentials": {"uri": "postgres://"}}]}`},
		{"missing key", `{"user-provided": [{"name": "openrouter", "credentials": {"api_base": "https://x"}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseBinding(tt.raw)
			if !errors.Is(err, ErrNoBinding) {
				t.Errorf("Expected ErrNoBinding, got %v", err)
			}
		})
	}
}

func TestParseBinding_InvalidJSON(t *testing.T) {
	_, err := parseBinding(`{not json`)
	if err == nil || errors.Is(err, ErrNoBinding) {
		t.Errorf("Expected parse error, got %v", err)
	}
}

func TestLookupBinding_Unset(t *testing.T) {
	t.Setenv("VCAP_SERVICES", "")
	if _, err := LookupBinding(); !errors.Is(err, ErrNoBinding) {
		t.Errorf("Expected ErrNoBinding, got %v", err)
	}
}
