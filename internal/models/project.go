package models

import "time"

// ProjectHistoryEntry is a project opened in an earlier session
type ProjectHistoryEntry struct {
	ID         string    `yaml:"id"`
	Name       string    `yaml:"name"`
	Root       string    `yaml:"root"`
	LastUsed   time.Time `yaml:"last_used"`
	UsageCount int       `yaml:"usage_count"`
	CreatedAt  time.Time `yaml:"created_at"`
}
