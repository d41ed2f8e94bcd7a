// Package project persists a ListInsight project: the project document with
// per-dataset metadata and filter records, plus the locations of the
// shortlist, tag index and dataset parquet files.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rebeliceyang/listinsight/internal/models"
)

const (
	DirName       = "ListInsight"
	ProjectFile   = "project.json"
	ShortlistFile = "shortlist.json"
	TaggedFile    = "tagged.json"
	ParquetDir    = "parquets"
)

var (
	ErrMalformedProject = errors.New("malformed project file")
	ErrDatasetNotFound  = errors.New("dataset not found in project")
	ErrDuplicateDataset = errors.New("dataset already in project")
)

// Metadata describes one dataset registered in the project
type Metadata struct {
	ID              string `json:"dataset_id"`
	Name            string `json:"dataset_name"`
	Parquet         string `json:"parquet"`
	PrimaryKeyIndex int    `json:"primary_key_index"`
	PrimaryKeyName  string `json:"primary_key_name"`
}

// PrimaryKey returns the stored primary key
func (m Metadata) PrimaryKey() models.PrimaryKey {
	if m.PrimaryKeyName == "" {
		return models.NoPrimaryKey
	}
	return models.PrimaryKey{Name: m.PrimaryKeyName, Index: m.PrimaryKeyIndex}
}

// Entry is a dataset with its filter records
type Entry struct {
	Metadata Metadata              `json:"metadata"`
	Filters  []models.FilterRecord `json:"filters"`
}

// Files lists the companion files of a project
type Files struct {
	Shortlist string `json:"shortlist"`
	Tagged    string `json:"tagged"`
}

// Document is the content of project.json
type Document struct {
	Name     string  `json:"project_name"`
	RootPath string  `json:"project_rootpath"`
	Files    Files   `json:"project_files"`
	Datasets []Entry `json:"datasets"`
}

// Store reads and writes a project document
type Store struct {
	dir string
	doc Document
}

// Open opens the project under root, creating its directory layout and an
// empty document when missing. The name is only used for new projects.
func Open(root, name string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("project root cannot be empty")
	}

	dir := filepath.Join(root, DirName)
	if err := os.MkdirAll(filepath.Join(dir, ParquetDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create project directory: %w", err)
	}

	s := &Store{dir: dir}
	path := s.Path()

	if _, err := os.Stat(path); err == nil {
		if err := s.load(); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		s.doc = Document{
			Name:     name,
			RootPath: dir,
			Files: Files{
				Shortlist: filepath.Join(dir, ShortlistFile),
				Tagged:    filepath.Join(dir, TaggedFile),
			},
			Datasets: []Entry{},
		}
		if err := s.Save(); err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("failed to stat project file: %w", err)
	}

	for _, file := range []string{s.ShortlistPath(), s.TaggedPath()} {
		if err := touch(file); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return fmt.Errorf("failed to read project file: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedProject, err)
	}
	if err := validate(doc); err != nil {
		return err
	}
	if doc.Datasets == nil {
		doc.Datasets = []Entry{}
	}

	s.doc = doc
	return nil
}

func validate(doc Document) error {
	if doc.Name == "" {
		return fmt.Errorf("%w: missing project_name", ErrMalformedProject)
	}
	seen := make(map[string]bool)
	for i, e := range doc.Datasets {
		if e.Metadata.ID == "" {
			return fmt.Errorf("%w: dataset %d has no dataset_id", ErrMalformedProject, i)
		}
		if seen[e.Metadata.ID] {
			return fmt.Errorf("%w: duplicate dataset_id %s", ErrMalformedProject, e.Metadata.ID)
		}
		seen[e.Metadata.ID] = true
	}
	return nil
}

// Save writes the project document
func (s *Store) Save() error {
	data, err := json.MarshalIndent(s.doc, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}
	if err := os.WriteFile(s.Path(), data, 0644); err != nil {
		return fmt.Errorf("failed to write project file: %w", err)
	}
	return nil
}

// Name returns the project name
func (s *Store) Name() string { return s.doc.Name }

// Dir returns the project directory
func (s *Store) Dir() string { return s.dir }

// Path returns the project document path
func (s *Store) Path() string { return filepath.Join(s.dir, ProjectFile) }

// ShortlistPath returns the shortlist file of the project
func (s *Store) ShortlistPath() string { return s.resolve(s.doc.Files.Shortlist, ShortlistFile) }

// TaggedPath returns the tag index file of the project
func (s *Store) TaggedPath() string { return s.resolve(s.doc.Files.Tagged, TaggedFile) }

// ParquetPath returns where the parquet copy of a dataset named name lives
func (s *Store) ParquetPath(name string) string {
	return filepath.Join(s.dir, ParquetDir, sanitize(name)+".parquet")
}

// ResolveParquet returns the absolute location of a stored parquet path
func (s *Store) ResolveParquet(meta Metadata) string {
	return s.resolve(meta.Parquet, filepath.Join(ParquetDir, sanitize(meta.Name)+".parquet"))
}

func (s *Store) resolve(path, fallback string) string {
	if path == "" {
		return filepath.Join(s.dir, fallback)
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.dir, path)
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}

// Datasets returns the registered datasets in insertion order
func (s *Store) Datasets() []Entry {
	out := make([]Entry, len(s.doc.Datasets))
	copy(out, s.doc.Datasets)
	return out
}

func (s *Store) find(id string) int {
	for i, e := range s.doc.Datasets {
		if e.Metadata.ID == id {
			return i
		}
	}
	return -1
}

// Dataset returns the entry for id
func (s *Store) Dataset(id string) (Entry, bool) {
	i := s.find(id)
	if i < 0 {
		return Entry{}, false
	}
	return s.doc.Datasets[i], true
}

// DatasetByName returns the first entry with the given dataset name
func (s *Store) DatasetByName(name string) (Entry, bool) {
	for _, e := range s.doc.Datasets {
		if e.Metadata.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// AddDataset registers a dataset with an empty filter list
func (s *Store) AddDataset(meta Metadata) error {
	if meta.ID == "" {
		return fmt.Errorf("dataset id cannot be empty")
	}
	if s.find(meta.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateDataset, meta.ID)
	}
	if meta.PrimaryKeyName == "" {
		meta.PrimaryKeyIndex = -1
	}
	s.doc.Datasets = append(s.doc.Datasets, Entry{Metadata: meta, Filters: []models.FilterRecord{}})
	return nil
}

// RemoveDataset unregisters a dataset together with its filters
func (s *Store) RemoveDataset(id string) error {
	i := s.find(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrDatasetNotFound, id)
	}
	s.doc.Datasets = append(s.doc.Datasets[:i], s.doc.Datasets[i+1:]...)
	return nil
}

// SetPrimaryKey stores the primary key of a dataset
func (s *Store) SetPrimaryKey(id string, pk models.PrimaryKey) error {
	i := s.find(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrDatasetNotFound, id)
	}
	s.doc.Datasets[i].Metadata.PrimaryKeyName = pk.Name
	s.doc.Datasets[i].Metadata.PrimaryKeyIndex = pk.Index
	return nil
}

// SetFilters replaces the filter records of a dataset
func (s *Store) SetFilters(id string, records []models.FilterRecord) error {
	i := s.find(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrDatasetNotFound, id)
	}
	stored := make([]models.FilterRecord, len(records))
	copy(stored, records)
	s.doc.Datasets[i].Filters = stored
	return nil
}

// Filters returns the filter records of a dataset
func (s *Store) Filters(id string) ([]models.FilterRecord, error) {
	i := s.find(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, id)
	}
	return append([]models.FilterRecord(nil), s.doc.Datasets[i].Filters...), nil
}
