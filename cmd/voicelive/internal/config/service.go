package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Service is the per-context YAML schema. Exactly one of the three
// credential styles should be populated: endpoint+api_key for direct
// resource access, endpoint+agent_* for agent-bound sessions, or
// proxy_url for a credential-holding intermediary.
type Service struct {
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	APIVersion string `yaml:"api_version"`

	AgentID          string `yaml:"agent_id"`
	ProjectName      string `yaml:"project_name"`
	AgentAccessToken string `yaml:"agent_access_token"`

	ProxyURL string `yaml:"proxy_url"`
}

// LoadService reads the service credentials from a context file.
func LoadService(path string) (*Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var svc Service
	if err := yaml.Unmarshal(data, &svc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &svc, nil
}

// LoadRaw reads a context file as a raw key-value map. Used by the
// 'config set' and 'config get' commands.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// SaveRaw writes a raw key-value map back to a context file.
func SaveRaw(path string, m map[string]any) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
