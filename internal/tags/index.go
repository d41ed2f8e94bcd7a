// Package tags keeps the tag index: for each tag, the primary key values of
// the rows carrying it.
package tags

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Index maps tag names to sets of row keys
type Index struct {
	tags map[string]map[string]struct{}
}

// NewIndex creates an empty index
func NewIndex() *Index {
	return &Index{tags: make(map[string]map[string]struct{})}
}

// Add records key under tag. Blank tags or keys are ignored.
func (x *Index) Add(tag, key string) {
	tag = strings.TrimSpace(tag)
	key = strings.TrimSpace(key)
	if tag == "" || key == "" {
		return
	}
	keys, ok := x.tags[tag]
	if !ok {
		keys = make(map[string]struct{})
		x.tags[tag] = keys
	}
	keys[key] = struct{}{}
}

// Remove drops key from tag. A tag left without keys is kept.
func (x *Index) Remove(tag, key string) {
	if keys, ok := x.tags[tag]; ok {
		delete(keys, key)
	}
}

// Delete removes a tag and all its keys
func (x *Index) Delete(tag string) {
	delete(x.tags, tag)
}

// Has reports whether key is recorded under tag
func (x *Index) Has(tag, key string) bool {
	_, ok := x.tags[tag][key]
	return ok
}

// Tags returns every tag name, sorted
func (x *Index) Tags() []string {
	names := make([]string, 0, len(x.tags))
	for tag := range x.tags {
		names = append(names, tag)
	}
	sort.Strings(names)
	return names
}

// Keys returns the keys under tag, sorted
func (x *Index) Keys(tag string) []string {
	return sortedKeys(x.tags[tag])
}

// TagsFor returns the tags that contain key, sorted
func (x *Index) TagsFor(key string) []string {
	var names []string
	for tag, keys := range x.tags {
		if _, ok := keys[key]; ok {
			names = append(names, tag)
		}
	}
	sort.Strings(names)
	return names
}

// Len returns the number of tags
func (x *Index) Len() int { return len(x.tags) }

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Load reads an index from a JSON file shaped {"tag": ["key", ...]}.
// A missing or empty file yields an empty index.
func Load(path string) (*Index, error) {
	x := NewIndex()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return x, nil
		}
		return nil, fmt.Errorf("failed to read tags file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return x, nil
	}

	var doc map[string][]string
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse tags: %w", err)
	}
	for tag, keys := range doc {
		if _, ok := x.tags[tag]; !ok {
			x.tags[tag] = make(map[string]struct{})
		}
		for _, key := range keys {
			x.Add(tag, key)
		}
	}
	return x, nil
}

// Save writes the index to path as JSON
func (x *Index) Save(path string) error {
	doc := make(map[string][]string, len(x.tags))
	for tag, keys := range x.tags {
		doc[tag] = sortedKeys(keys)
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create tags directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write tags file: %w", err)
	}
	return nil
}

// Split parses a comma separated tag list, trimming blanks and duplicates
func Split(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}
