package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings holds state remembered between sessions, such as the tag names
// offered for autocompletion
type Settings struct {
	path string
	Tags []string `yaml:"tags"`
}

// NewSettings creates settings backed by path, loading it if it exists
func NewSettings(path string) (*Settings, error) {
	s := &Settings{path: path, Tags: []string{}}

	if _, err := os.Stat(path); err == nil {
		if err := s.Load(); err != nil {
			return nil, fmt.Errorf("failed to load settings: %w", err)
		}
	}

	return s, nil
}

// Load loads settings from the YAML file
func (s *Settings) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("failed to parse settings: %w", err)
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}

	return nil
}

// Save saves settings to the YAML file
func (s *Settings) Save() error {
	if s.path == "" {
		return nil
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// AddTags records tag names not seen before and reports whether any were new
func (s *Settings) AddTags(tags ...string) bool {
	known := make(map[string]bool, len(s.Tags))
	for _, t := range s.Tags {
		known[t] = true
	}

	added := false
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || known[t] {
			continue
		}
		known[t] = true
		s.Tags = append(s.Tags, t)
		added = true
	}
	if added {
		sort.Strings(s.Tags)
	}
	return added
}

// Complete returns the known tags starting with prefix, ignoring case
func (s *Settings) Complete(prefix string) []string {
	prefix = strings.ToLower(prefix)
	var out []string
	for _, t := range s.Tags {
		if strings.HasPrefix(strings.ToLower(t), prefix) {
			out = append(out, t)
		}
	}
	return out
}
