// Package shortlist stores rows of interest together with the analyst's
// notes, keyed by title.
package shortlist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rebeliceyang/listinsight/internal/models"
)

var (
	ErrEmptyTitle     = errors.New("shortlist title cannot be empty")
	ErrDuplicateTitle = errors.New("shortlist title already exists")
	ErrNotFound       = errors.New("shortlist item not found")
)

// Manager manages the shortlist of one project
type Manager struct {
	path  string
	items []models.ShortlistItem
}

// NewManager creates a shortlist backed by path, loading it if it exists
func NewManager(path string) (*Manager, error) {
	m := &Manager{
		path:  path,
		items: []models.ShortlistItem{},
	}

	if _, err := os.Stat(path); err == nil {
		if err := m.Load(); err != nil {
			return nil, fmt.Errorf("failed to load shortlist: %w", err)
		}
	}

	return m, nil
}

// Path returns the backing file
func (m *Manager) Path() string { return m.path }

// Load reads the shortlist file. Items are ordered by title.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("failed to read shortlist file: %w", err)
	}

	m.items = []models.ShortlistItem{}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	var doc map[string]models.ShortlistItem
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse shortlist: %w", err)
	}

	for title, item := range doc {
		item.Title = title
		m.items = append(m.items, item)
	}
	sort.Slice(m.items, func(i, j int) bool {
		return m.items[i].Title < m.items[j].Title
	})
	return nil
}

// Save writes the shortlist file
func (m *Manager) Save() error {
	doc := make(map[string]models.ShortlistItem, len(m.items))
	for _, item := range m.items {
		doc[item.Title] = item
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal shortlist: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create shortlist directory: %w", err)
	}

	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write shortlist file: %w", err)
	}

	return nil
}

func (m *Manager) find(title string) int {
	for i, item := range m.items {
		if strings.EqualFold(item.Title, title) {
			return i
		}
	}
	return -1
}

// Add appends a new item. Titles are unique, ignoring case.
func (m *Manager) Add(title, body string, tags []string) (*models.ShortlistItem, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if m.find(title) >= 0 {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateTitle, title)
	}

	item := models.ShortlistItem{
		Title: title,
		Body:  strings.TrimSpace(body),
		Tags:  append([]string{}, tags...),
	}
	m.items = append(m.items, item)

	if err := m.Save(); err != nil {
		return nil, fmt.Errorf("failed to save shortlist item: %w", err)
	}

	return &item, nil
}

// Update replaces the body and tags of an item
func (m *Manager) Update(title, body string, tags []string) error {
	i := m.find(title)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, title)
	}

	m.items[i].Body = strings.TrimSpace(body)
	m.items[i].Tags = append([]string{}, tags...)
	if err := m.Save(); err != nil {
		return fmt.Errorf("failed to save shortlist item: %w", err)
	}
	return nil
}

// SetFinding marks or unmarks an item as a finding
func (m *Manager) SetFinding(title string, finding bool) error {
	i := m.find(title)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, title)
	}

	m.items[i].Finding = finding
	if err := m.Save(); err != nil {
		return fmt.Errorf("failed to save shortlist item: %w", err)
	}
	return nil
}

// Remove deletes an item
func (m *Manager) Remove(title string) error {
	i := m.find(title)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, title)
	}

	m.items = append(m.items[:i], m.items[i+1:]...)
	if err := m.Save(); err != nil {
		return fmt.Errorf("failed to save shortlist after deletion: %w", err)
	}
	return nil
}

// Get returns an item by title
func (m *Manager) Get(title string) (*models.ShortlistItem, error) {
	i := m.find(title)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, title)
	}
	item := m.items[i]
	return &item, nil
}

// All returns every item in display order
func (m *Manager) All() []models.ShortlistItem {
	return append([]models.ShortlistItem(nil), m.items...)
}

// Findings returns the items marked as findings
func (m *Manager) Findings() []models.ShortlistItem {
	var results []models.ShortlistItem
	for _, item := range m.items {
		if item.Finding {
			results = append(results, item)
		}
	}
	return results
}

// Search returns items whose title, body or tags contain query, ignoring case
func (m *Manager) Search(query string) []models.ShortlistItem {
	if query == "" {
		return m.All()
	}

	query = strings.ToLower(query)
	var results []models.ShortlistItem

	for _, item := range m.items {
		if strings.Contains(strings.ToLower(item.Title), query) ||
			strings.Contains(strings.ToLower(item.Body), query) {
			results = append(results, item)
			continue
		}

		for _, tag := range item.Tags {
			if strings.Contains(strings.ToLower(tag), query) {
				results = append(results, item)
				break
			}
		}
	}

	return results
}
