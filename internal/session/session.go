// Package session is the workspace of open datasets. It ties each dataset to
// its filter set and view, keeps the project document in step with every
// change, and carries the cross-dataset features: selection sync by primary
// key, row tagging and the shortlist.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rebeliceyang/listinsight/internal/config"
	"github.com/rebeliceyang/listinsight/internal/dataset"
	"github.com/rebeliceyang/listinsight/internal/events"
	"github.com/rebeliceyang/listinsight/internal/filter"
	"github.com/rebeliceyang/listinsight/internal/history"
	"github.com/rebeliceyang/listinsight/internal/models"
	"github.com/rebeliceyang/listinsight/internal/project"
	"github.com/rebeliceyang/listinsight/internal/shortlist"
	"github.com/rebeliceyang/listinsight/internal/tags"
	"github.com/rebeliceyang/listinsight/internal/view"
)

// Session owns the open datasets of one project
type Session struct {
	project   *project.Store
	views     []*view.View
	tags      *tags.Index
	shortlist *shortlist.Manager
	settings  *config.Settings
	history   *history.Store
	loadOpts  []dataset.LoadOption
	bus       *events.Bus
	logger    *zap.SugaredLogger
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithBus sets the bus change notifications are published on
func WithBus(bus *events.Bus) Option {
	return func(s *Session) { s.bus = bus }
}

// WithSettings sets the settings that remember tag names
func WithSettings(settings *config.Settings) Option {
	return func(s *Session) { s.settings = settings }
}

// WithHistory records every filter application in store
func WithHistory(store *history.Store) Option {
	return func(s *Session) { s.history = store }
}

// WithLoadOptions sets the options used to read imported files
func WithLoadOptions(opts ...dataset.LoadOption) Option {
	return func(s *Session) { s.loadOpts = append(s.loadOpts, opts...) }
}

// New creates a session over an opened project, loading its tag index and
// shortlist. Datasets are opened with LoadProject or Import.
func New(store *project.Store, opts ...Option) (*Session, error) {
	s := &Session{
		project: store,
		logger:  zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = events.NewBus()
	}
	if s.settings == nil {
		s.settings = &config.Settings{Tags: []string{}}
	}

	index, err := tags.Load(store.TaggedPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open tag index: %w", err)
	}
	s.tags = index

	list, err := shortlist.NewManager(store.ShortlistPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open shortlist: %w", err)
	}
	s.shortlist = list

	return s, nil
}

// Project returns the project store
func (s *Session) Project() *project.Store { return s.project }

// Bus returns the change notification bus
func (s *Session) Bus() *events.Bus { return s.bus }

// Tags returns the tag index
func (s *Session) Tags() *tags.Index { return s.tags }

// Shortlist returns the shortlist
func (s *Session) Shortlist() *shortlist.Manager { return s.shortlist }

// Settings returns the settings
func (s *Session) Settings() *config.Settings { return s.settings }

// Views returns the open views in the order they were opened
func (s *Session) Views() []*view.View {
	return append([]*view.View(nil), s.views...)
}

// View returns the open view of a dataset
func (s *Session) View(id string) (*view.View, error) {
	for _, v := range s.views {
		if v.Dataset().ID() == id {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDatasetNotOpen, id)
}

// ViewByName returns the open view of the dataset with the given name
func (s *Session) ViewByName(name string) (*view.View, error) {
	for _, v := range s.views {
		if strings.EqualFold(v.Dataset().Name(), name) {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDatasetNotOpen, name)
}

func (s *Session) isOpen(name string) bool {
	_, err := s.ViewByName(name)
	return err == nil
}

// Import loads a data file and opens every dataset it contains. New datasets
// get a Tags column, a parquet copy in the project and a project entry.
// Datasets whose name is already open are skipped.
func (s *Session) Import(ctx context.Context, path string) ([]*view.View, error) {
	datasets, err := dataset.Load(ctx, path, s.loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to import %s: %w", path, err)
	}

	var opened []*view.View
	for i, ds := range datasets {
		if s.isOpen(ds.Name()) {
			s.logger.Infow("dataset already open, skipping", "dataset", ds.Name(), "file", path)
			_ = ds.Close()
			continue
		}

		v, err := s.register(ctx, ds)
		if err != nil {
			for _, rest := range datasets[i:] {
				_ = rest.Close()
			}
			return opened, err
		}
		opened = append(opened, v)
	}

	if err := s.project.Save(); err != nil {
		return opened, err
	}
	return opened, nil
}

func (s *Session) register(ctx context.Context, ds *dataset.Dataset) (*view.View, error) {
	if err := ds.EnsureColumn(ctx, dataset.TagsColumn); err != nil {
		return nil, err
	}

	// A dataset imported again under a known name keeps its project entry
	if entry, ok := s.project.DatasetByName(ds.Name()); ok {
		ds.SetID(entry.Metadata.ID)
		ds.SetSource(s.project.ResolveParquet(entry.Metadata))
		return s.open(ctx, ds, entry)
	}

	parquet := s.project.ParquetPath(ds.Name())
	if err := dataset.WriteParquet(ds, parquet); err != nil {
		return nil, err
	}
	ds.SetSource(parquet)

	meta := project.Metadata{
		ID:              ds.ID(),
		Name:            ds.Name(),
		Parquet:         parquet,
		PrimaryKeyIndex: -1,
	}
	if err := s.project.AddDataset(meta); err != nil {
		return nil, err
	}

	s.logger.Infow("dataset imported",
		"dataset", ds.Name(),
		"id", ds.ID(),
		"rows", ds.RowCount(),
		"columns", len(ds.Columns()))
	return s.open(ctx, ds, project.Entry{Metadata: meta})
}

// open restores the primary key and filters of entry onto ds and shows it
func (s *Session) open(ctx context.Context, ds *dataset.Dataset, entry project.Entry) (*view.View, error) {
	if name := entry.Metadata.PrimaryKeyName; name != "" {
		if ds.SetPrimaryKey(name) < 0 {
			s.logger.Warnw("primary key column not found, unsetting",
				"dataset", ds.Name(), "key", name)
			if err := s.project.SetPrimaryKey(ds.ID(), models.NoPrimaryKey); err != nil {
				return nil, err
			}
		} else if err := s.project.SetPrimaryKey(ds.ID(), ds.PrimaryKey()); err != nil {
			return nil, err
		}
	}

	set := filter.FromRecords(ds.ID(), ds, entry.Filters)
	set.SetBus(s.bus)
	v := view.New(ds, set, view.WithBus(s.bus), view.WithLogger(s.logger))
	s.views = append(s.views, v)

	if len(set.Enabled()) > 0 {
		if err := v.Apply(ctx); err != nil {
			s.logger.Warnw("stored filters could not be applied", "dataset", ds.Name(), "error", err)
		}
		if err := s.saveFilters(v); err != nil {
			return v, err
		}
	}
	return v, nil
}

// LoadProject opens every dataset registered in the project from its parquet
// copy. Missing parquet files are logged and skipped.
func (s *Session) LoadProject(ctx context.Context) ([]*view.View, error) {
	var opened []*view.View

	for _, entry := range s.project.Datasets() {
		if _, err := s.View(entry.Metadata.ID); err == nil {
			continue
		}

		path := s.project.ResolveParquet(entry.Metadata)
		if _, err := os.Stat(path); err != nil {
			s.logger.Warnw("dataset file missing, skipping",
				"dataset", entry.Metadata.Name, "file", path, "error", err)
			continue
		}

		ds, err := dataset.LoadParquet(ctx, path)
		if err != nil {
			return opened, fmt.Errorf("failed to open dataset %s: %w", entry.Metadata.Name, err)
		}
		ds.SetID(entry.Metadata.ID)
		ds.SetName(entry.Metadata.Name)
		if err := ds.EnsureColumn(ctx, dataset.TagsColumn); err != nil {
			_ = ds.Close()
			return opened, err
		}

		v, err := s.open(ctx, ds, entry)
		if err != nil {
			return opened, err
		}
		opened = append(opened, v)
	}

	s.logger.Infow("project loaded", "project", s.project.Name(), "datasets", len(opened))
	return opened, s.project.Save()
}

// RemoveDataset closes a dataset and removes it, with its filters, from the
// project
func (s *Session) RemoveDataset(id string) error {
	for i, v := range s.views {
		if v.Dataset().ID() == id {
			s.views = append(s.views[:i], s.views[i+1:]...)
			_ = v.Dataset().Close()
			break
		}
	}
	if err := s.project.RemoveDataset(id); err != nil {
		return err
	}
	s.bus.Publish(events.Event{Kind: events.FiltersChanged, DatasetID: id, Index: -1})
	return s.project.Save()
}

// SetPrimaryKey selects the primary key column of a dataset. An empty column
// unsets it.
func (s *Session) SetPrimaryKey(id, column string) error {
	v, err := s.View(id)
	if err != nil {
		return err
	}
	ds := v.Dataset()

	if ds.SetPrimaryKey(column) < 0 && column != "" {
		return fmt.Errorf("%w: %s", dataset.ErrColumnNotFound, column)
	}
	if err := s.project.SetPrimaryKey(id, ds.PrimaryKey()); err != nil {
		return err
	}

	s.bus.Publish(events.Event{Kind: events.PrimaryKeyChanged, DatasetID: id, Index: ds.PrimaryKey().Index})
	return s.project.Save()
}

func (s *Session) saveFilters(v *view.View) error {
	if err := s.project.SetFilters(v.Dataset().ID(), v.Filters().Records()); err != nil {
		return err
	}
	return s.project.Save()
}

// applyAndSave reapplies the filters of v and persists them, failure flags
// included. A filter error is returned after the records are saved.
func (s *Session) applyAndSave(ctx context.Context, v *view.View) error {
	start := time.Now()
	applyErr := v.Apply(ctx)
	s.record(ctx, v, time.Since(start), applyErr)

	if err := s.saveFilters(v); err != nil {
		return err
	}
	return applyErr
}

// record adds an application to the history. Failures are only logged.
func (s *Session) record(ctx context.Context, v *view.View, elapsed time.Duration, applyErr error) {
	if s.history == nil {
		return
	}

	set := v.Filters()
	var parts []string
	for _, pos := range set.Enabled() {
		parts = append(parts, set.At(pos).String())
	}

	entry := history.Entry{
		DatasetID:   v.Dataset().ID(),
		DatasetName: v.Dataset().Name(),
		Filters:     strings.Join(parts, " AND "),
		Duration:    elapsed,
		RowsVisible: v.Len(),
		Success:     applyErr == nil,
	}
	if applyErr != nil {
		entry.ErrorMessage = applyErr.Error()
	}
	if err := s.history.Add(ctx, entry); err != nil {
		s.logger.Warnw("failed to record filter history", "dataset", v.Dataset().Name(), "error", err)
	}
}

// AddFilter appends a filter to a dataset and reapplies its filters
func (s *Session) AddFilter(ctx context.Context, id, attribute string, op models.FilterOperator, value string) (int, error) {
	v, err := s.View(id)
	if err != nil {
		return -1, err
	}
	set := v.Filters()
	pos := set.Add(set.Build(attribute, op, value))
	return pos, s.applyAndSave(ctx, v)
}

// UpdateFilter edits the filter at pos and reapplies the filters
func (s *Session) UpdateFilter(ctx context.Context, id string, pos int, attribute string, op models.FilterOperator, value string) error {
	v, err := s.View(id)
	if err != nil {
		return err
	}
	if err := v.Filters().Update(pos, attribute, op, value); errors.Is(err, filter.ErrPositionOutOfRange) {
		return err
	} else if err != nil {
		s.logger.Debugw("filter value does not fit column", "dataset", v.Dataset().Name(), "index", pos, "error", err)
	}
	return s.applyAndSave(ctx, v)
}

// RemoveFilter deletes the filter at pos and reapplies the rest
func (s *Session) RemoveFilter(ctx context.Context, id string, pos int) error {
	v, err := s.View(id)
	if err != nil {
		return err
	}
	v.Filters().RemoveAt(pos)
	return s.applyAndSave(ctx, v)
}

// ToggleFilter flips the filter at pos and reapplies every enabled filter.
// It returns the new enabled state.
func (s *Session) ToggleFilter(ctx context.Context, id string, pos int) (bool, error) {
	v, err := s.View(id)
	if err != nil {
		return false, err
	}
	if pos < 0 || pos >= v.Filters().Len() {
		return false, fmt.Errorf("%w: %d", filter.ErrPositionOutOfRange, pos)
	}
	enabled := v.Filters().Toggle(pos)
	return enabled, s.applyAndSave(ctx, v)
}

// ApplyFilters reapplies the enabled filters of a dataset
func (s *Session) ApplyFilters(ctx context.Context, id string) error {
	v, err := s.View(id)
	if err != nil {
		return err
	}
	return s.applyAndSave(ctx, v)
}

// ValidateFilters checks every filter of a dataset against its columns,
// marking the ones that cannot be built without touching the visible rows
func (s *Session) ValidateFilters(id string) ([]error, error) {
	v, err := s.View(id)
	if err != nil {
		return nil, err
	}
	errs := v.Filters().Validate()
	return errs, s.saveFilters(v)
}

// SyncEnabled reports whether selection sync is possible: at least one
// dataset is open and every open dataset has a primary key
func (s *Session) SyncEnabled() bool {
	if len(s.views) == 0 {
		return false
	}
	for _, v := range s.views {
		if !v.Dataset().PrimaryKey().IsSet() {
			return false
		}
	}
	return true
}

// KeyValue returns the primary key value of a visible row
func (s *Session) KeyValue(id string, row int) (string, error) {
	v, err := s.View(id)
	if err != nil {
		return "", err
	}
	return keyValue(v, row)
}

func keyValue(v *view.View, row int) (string, error) {
	ds := v.Dataset()
	pk := ds.PrimaryKey()
	if !pk.IsSet() {
		return "", fmt.Errorf("%w: %s", ErrNoPrimaryKey, ds.Name())
	}
	pos, err := v.Position(row)
	if err != nil {
		return "", err
	}
	value, err := ds.Cell(pos, pk.Name)
	if err != nil {
		return "", err
	}
	return dataset.FormatValue(value), nil
}

// SyncSelection shows, in every other open dataset, the rows whose primary
// key equals the key of the given visible row of the source dataset
func (s *Session) SyncSelection(ctx context.Context, sourceID string, row int) error {
	source, err := s.View(sourceID)
	if err != nil {
		return err
	}
	key, err := keyValue(source, row)
	if err != nil {
		return err
	}
	return s.SyncKey(ctx, sourceID, key)
}

// SyncKey shows, in every open dataset except skipID, the rows whose primary
// key equals key
func (s *Session) SyncKey(ctx context.Context, skipID, key string) error {
	var errs []error
	for _, v := range s.views {
		if v.Dataset().ID() == skipID {
			continue
		}
		if err := v.FilterByKey(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", v.Dataset().Name(), err))
		}
	}
	s.logger.Debugw("selection synced", "key", key, "datasets", len(s.views))
	return errors.Join(errs...)
}

// ResetAll shows every row of every open dataset. Filters are kept but not
// reapplied.
func (s *Session) ResetAll() {
	for _, v := range s.views {
		v.Reset()
	}
}

// TagRow adds tags to a visible row. The row's Tags cell holds the comma
// joined list and the tag index records the row's primary key under each tag.
func (s *Session) TagRow(ctx context.Context, id string, row int, names []string) error {
	current, err := s.RowTags(id, row)
	if err != nil {
		return err
	}
	return s.writeRowTags(ctx, id, row, append(current, names...))
}

// SetRowTags replaces the tags of a visible row. Tags no longer on the row
// stop listing the row's primary key; an empty list clears the row.
func (s *Session) SetRowTags(ctx context.Context, id string, row int, names []string) error {
	return s.writeRowTags(ctx, id, row, names)
}

func (s *Session) writeRowTags(ctx context.Context, id string, row int, names []string) error {
	v, err := s.View(id)
	if err != nil {
		return err
	}
	key, err := keyValue(v, row)
	if err != nil {
		return err
	}
	pos, _ := v.Position(row)
	ds := v.Dataset()

	current, err := ds.Cell(pos, dataset.TagsColumn)
	if err != nil {
		return err
	}
	previous := tags.Split(dataset.FormatValue(current))
	next := tags.Split(strings.Join(names, ","))

	var cell any
	if len(next) > 0 {
		cell = strings.Join(next, ", ")
	}
	if err := ds.SetCell(ctx, pos, dataset.TagsColumn, cell); err != nil {
		return err
	}

	for _, name := range previous {
		if !slices.Contains(next, name) {
			s.tags.Remove(name, key)
		}
	}
	for _, name := range next {
		s.tags.Add(name, key)
	}
	if err := s.tags.Save(s.project.TaggedPath()); err != nil {
		return err
	}
	if s.settings.AddTags(next...) {
		if err := s.settings.Save(); err != nil {
			s.logger.Warnw("failed to save settings", "error", err)
		}
	}

	s.bus.Publish(events.Event{Kind: events.TagsChanged, DatasetID: id, Index: pos})
	return nil
}

// RowTags returns the tags stored in a visible row
func (s *Session) RowTags(id string, row int) ([]string, error) {
	v, err := s.View(id)
	if err != nil {
		return nil, err
	}
	pos, err := v.Position(row)
	if err != nil {
		return nil, err
	}
	value, err := v.Dataset().Cell(pos, dataset.TagsColumn)
	if err != nil {
		return nil, err
	}
	return tags.Split(dataset.FormatValue(value)), nil
}

// ShortlistRow adds a visible row to the shortlist. The title defaults to the
// dataset name and key, and the item takes the row's tags.
func (s *Session) ShortlistRow(id string, row int, title, body string) (*models.ShortlistItem, error) {
	v, err := s.View(id)
	if err != nil {
		return nil, err
	}
	key, err := keyValue(v, row)
	if err != nil {
		return nil, err
	}
	rowTags, err := s.RowTags(id, row)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(title) == "" {
		title = fmt.Sprintf("%s %s", v.Dataset().Name(), key)
	}
	item, err := s.shortlist.Add(title, body, rowTags)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(events.Event{Kind: events.ShortlistChanged, DatasetID: id, Index: row})
	return item, nil
}

// Close writes every open dataset back to its parquet copy, saves the
// project and releases the datasets
func (s *Session) Close() error {
	var errs []error
	for _, v := range s.views {
		ds := v.Dataset()
		if entry, ok := s.project.Dataset(ds.ID()); ok {
			if err := dataset.WriteParquet(ds, s.project.ResolveParquet(entry.Metadata)); err != nil {
				errs = append(errs, err)
			}
		}
		if err := s.project.SetFilters(ds.ID(), v.Filters().Records()); err != nil {
			errs = append(errs, err)
		}
		if err := ds.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.views = nil

	if err := s.project.Save(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
