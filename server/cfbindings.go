package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoBinding is returned when VCAP_SERVICES holds no usable OpenRouter credentials
var ErrNoBinding = errors.New("no OpenRouter service binding")

// VCAPService represents a Cloud Foundry service binding
type VCAPService struct {
	InstanceGUID string                 `json:"instance_guid"`
	InstanceName string                 `json:"instance_name"`
	Name         string                 `json:"name"`
	Credentials  map[string]interface{} `json:"credentials"`
	Tags         []string               `json:"tags"`
	Label        string                 `json:"label"`
}

// ServiceBinding is the OpenRouter account found in a service binding
type ServiceBinding struct {
	Name    string
	APIKey  string `json:"-"`
	BaseURL string
}

// LookupBinding finds OpenRouter credentials in VCAP_SERVICES. Bindings are matched by an
// "openrouter" tag, label or name; credentials may be flat or nested under "endpoint".
func LookupBinding() (ServiceBinding, error) {
	raw := os.Getenv("VCAP_SERVICES")
	if raw == "" {
		return ServiceBinding{}, ErrNoBinding
	}
	return parseBinding(raw)
}

func parseBinding(raw string) (ServiceBinding, error) {
	var offerings map[string][]VCAPService
	if err := json.Unmarshal([]byte(raw), &offerings); err != nil {
		return ServiceBinding{}, fmt.Errorf("failed to parse VCAP_SERVICES: %w", err)
	}

	for offering, services := range offerings {
		for _, service := range services {
			if !isOpenRouterService(offering, service) {
				continue
			}

			name := service.InstanceName
			if name == "" {
				name = service.Name
			}

			binding := ServiceBinding{Name: name}
			binding.APIKey, binding.BaseURL = parseCredentials(service.Credentials)
			if binding.APIKey == "" {
				AppLogger.WarnWithFields("Service binding has no api_key, skipping", map[string]interface{}{
					"serviceName": name,
				})
				continue
			}
			return binding, nil
		}
	}
	return ServiceBinding{}, ErrNoBinding
}

func isOpenRouterService(offering string, service VCAPService) bool {
	if strings.Contains(strings.ToLower(offering), "openrouter") ||
		strings.Contains(strings.ToLower(service.Label), "openrouter") ||
		strings.Contains(strings.ToLower(service.Name), "openrouter") {
		return true
	}
	for _, tag := range service.Tags {
		if strings.EqualFold(tag, "openrouter") {
			return true
		}
	}
	return false
}

// parseCredentials reads api_key and api_base (or base_url), preferring an "endpoint" object
func parseCredentials(credentials map[string]interface{}) (apiKey, baseURL string) {
	if endpoint, ok := credentials["endpoint"].(map[string]interface{}); ok {
		credentials = endpoint
	}

	apiKey, _ = credentials["api_key"].(string)
	if url, ok := credentials["api_base"].(string); ok {
		baseURL = url
	} else if url, ok := credentials["base_url"].(string); ok {
		baseURL = url
	}
	return strings.TrimSpace(apiKey), strings.TrimRight(strings.TrimSpace(baseURL), "/")
}
