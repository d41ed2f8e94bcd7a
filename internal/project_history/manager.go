package project_history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/rebeliceyang/listinsight/internal/models"
)

const (
	// FileName is the history file kept next to the settings file
	FileName = "project_history.yaml"

	// MaxEntries bounds the history; the least recently used project is
	// evicted first.
	MaxEntries = 50
)

var ErrNotFound = errors.New("project not in history")

// Manager keeps track of the projects opened on this machine
type Manager struct {
	path     string
	projects []models.ProjectHistoryEntry
}

// NewManager reads the history stored in configDir. A missing file is an
// empty history.
func NewManager(configDir string) (*Manager, error) {
	m := &Manager{path: filepath.Join(configDir, FileName)}

	if err := m.Load(); err != nil {
		return nil, err
	}
	return m, nil
}

// Load replaces the in-memory history with the file content
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		m.projects = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read project history: %w", err)
	}

	var projects []models.ProjectHistoryEntry
	if err := yaml.Unmarshal(data, &projects); err != nil {
		return fmt.Errorf("failed to parse project history %s: %w", m.path, err)
	}
	m.projects = projects
	return nil
}

// Save writes the history, creating the config directory when needed
func (m *Manager) Save() error {
	data, err := yaml.Marshal(m.projects)
	if err != nil {
		return fmt.Errorf("failed to marshal project history: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write project history: %w", err)
	}
	return nil
}

func (m *Manager) find(root string) int {
	return slices.IndexFunc(m.projects, func(p models.ProjectHistoryEntry) bool {
		return p.Root == root
	})
}

// Add records an opening of the project under root. Projects are matched on
// their absolute root; name only overrides the stored name when non-empty.
func (m *Manager) Add(root, name string) error {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	now := time.Now()

	if i := m.find(root); i >= 0 {
		p := &m.projects[i]
		p.LastUsed = now
		p.UsageCount++
		if name != "" {
			p.Name = name
		}
		return m.Save()
	}

	if name == "" {
		name = filepath.Base(root)
	}
	m.projects = append(m.projects, models.ProjectHistoryEntry{
		ID:         uuid.NewString(),
		Name:       name,
		Root:       root,
		LastUsed:   now,
		UsageCount: 1,
		CreatedAt:  now,
	})
	m.evict()
	return m.Save()
}

func (m *Manager) evict() {
	for len(m.projects) > MaxEntries {
		oldest := 0
		for i, p := range m.projects {
			if p.LastUsed.Before(m.projects[oldest].LastUsed) {
				oldest = i
			}
		}
		m.projects = slices.Delete(m.projects, oldest, oldest+1)
	}
}

// GetAll returns the projects in the order they were first opened
func (m *Manager) GetAll() []models.ProjectHistoryEntry {
	return slices.Clone(m.projects)
}

// GetRecent returns up to limit projects, most recently opened first.
// A limit <= 0 returns all of them.
func (m *Manager) GetRecent(limit int) []models.ProjectHistoryEntry {
	return m.ranked(limit, func(a, b models.ProjectHistoryEntry) int {
		return b.LastUsed.Compare(a.LastUsed)
	})
}

// GetMostUsed returns up to limit projects, most opened first
func (m *Manager) GetMostUsed(limit int) []models.ProjectHistoryEntry {
	return m.ranked(limit, func(a, b models.ProjectHistoryEntry) int {
		return b.UsageCount - a.UsageCount
	})
}

func (m *Manager) ranked(limit int, cmp func(a, b models.ProjectHistoryEntry) int) []models.ProjectHistoryEntry {
	out := slices.Clone(m.projects)
	slices.SortStableFunc(out, cmp)
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// Prune forgets projects whose root no longer contains a project directory
// named dirName. It returns the number of entries removed.
func (m *Manager) Prune(dirName string) (int, error) {
	before := len(m.projects)
	m.projects = slices.DeleteFunc(m.projects, func(p models.ProjectHistoryEntry) bool {
		info, err := os.Stat(filepath.Join(p.Root, dirName))
		return err != nil || !info.IsDir()
	})

	removed := before - len(m.projects)
	if removed == 0 {
		return 0, nil
	}
	return removed, m.Save()
}

// Delete forgets a project. Its files are left alone.
func (m *Manager) Delete(id string) error {
	i := slices.IndexFunc(m.projects, func(p models.ProjectHistoryEntry) bool {
		return p.ID == id
	})
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.projects = slices.Delete(m.projects, i, i+1)
	return m.Save()
}
