// Package config provides the configuration system for the voicelive CLI.
//
// Configuration is stored under os.UserConfigDir()/voicelive/:
//
//	~/Library/Application Support/voicelive/   (macOS)
//	~/.config/voicelive/                       (Linux)
//	%AppData%/voicelive/                       (Windows)
//
// Layout:
//
//	voicelive/
//	├── current-context          # plain text: name of current context
//	└── contexts/
//	    ├── dev.yaml
//	    └── staging.yaml
//
// Each context is one YAML file holding the service credentials for one
// deployment (resource endpoint + key, agent binding, or proxy URL).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// appDir is the directory name under os.UserConfigDir().
	appDir = "voicelive"

	// currentContextFile stores the name of the current context.
	currentContextFile = "current-context"

	// contextsDir is the subdirectory holding the context files.
	contextsDir = "contexts"
)

// Config holds the root configuration state.
type Config struct {
	// Dir is the root configuration directory.
	Dir string

	// CurrentContext is the name of the active context.
	CurrentContext string
}

// Load loads the configuration from the default location.
func Load() (*Config, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine config directory: %w", err)
	}
	return LoadFrom(filepath.Join(base, appDir))
}

// LoadFrom loads the configuration from a specific root directory.
func LoadFrom(dir string) (*Config, error) {
	cfg := &Config{Dir: dir}

	// Read current-context file (optional — may not exist yet).
	data, err := os.ReadFile(filepath.Join(dir, currentContextFile))
	if err == nil {
		cfg.CurrentContext = strings.TrimSpace(string(data))
	}

	return cfg, nil
}

// ContextsDir returns the path to the contexts directory.
func (c *Config) ContextsDir() string {
	return filepath.Join(c.Dir, contextsDir)
}

// ContextPath returns the YAML file path for a named context.
func (c *Config) ContextPath(name string) string {
	return filepath.Join(c.Dir, contextsDir, name+".yaml")
}

// ResolveContext returns the file path for the given context name, or the
// current context if name is empty.
func (c *Config) ResolveContext(name string) (string, error) {
	if name == "" {
		if c.CurrentContext == "" {
			return "", fmt.Errorf("no current context set; use 'voicelive config use-context <name>'")
		}
		name = c.CurrentContext
	}
	path := c.ContextPath(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("context %q not found", name)
	}
	return path, nil
}

// ListContexts returns the names of all available contexts.
func (c *Config) ListContexts() ([]string, error) {
	entries, err := os.ReadDir(c.ContextsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list contexts: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, name[:len(name)-len(ext)])
		}
	}
	return names, nil
}

// AddContext creates a new empty context file.
func (c *Config) AddContext(name string) error {
	if err := ValidateContextName(name); err != nil {
		return err
	}

	path := c.ContextPath(name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("context %q already exists", name)
	}

	if err := os.MkdirAll(c.ContextsDir(), 0755); err != nil {
		return fmt.Errorf("create contexts dir: %w", err)
	}
	if err := os.WriteFile(path, []byte("# voicelive context: "+name+"\n"), 0600); err != nil {
		return fmt.Errorf("create context %q: %w", name, err)
	}
	return nil
}

// DeleteContext removes a context file.
func (c *Config) DeleteContext(name string) error {
	if err := ValidateContextName(name); err != nil {
		return err
	}

	path := c.ContextPath(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("context %q not found", name)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete context %q: %w", name, err)
	}

	// Clear current context if it was the deleted one.
	if c.CurrentContext == name {
		c.CurrentContext = ""
		return c.saveCurrentContext()
	}
	return nil
}

// UseContext sets the current context.
func (c *Config) UseContext(name string) error {
	if err := ValidateContextName(name); err != nil {
		return err
	}

	if _, err := os.Stat(c.ContextPath(name)); os.IsNotExist(err) {
		return fmt.Errorf("context %q not found", name)
	}

	c.CurrentContext = name
	return c.saveCurrentContext()
}

// saveCurrentContext writes the current-context file.
func (c *Config) saveCurrentContext() error {
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	path := filepath.Join(c.Dir, currentContextFile)
	return os.WriteFile(path, []byte(c.CurrentContext+"\n"), 0644)
}

// ValidateContextName checks that a context name is non-empty and safe for
// use as a filename.
func ValidateContextName(name string) error {
	if name == "" {
		return fmt.Errorf("context name cannot be empty")
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("context name %q must not contain path separators", name)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("context name %q must not start with '.'", name)
	}
	return nil
}
