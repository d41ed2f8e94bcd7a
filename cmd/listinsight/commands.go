package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/rebeliceyang/listinsight/internal/config"
	"github.com/rebeliceyang/listinsight/internal/history"
	"github.com/rebeliceyang/listinsight/internal/models"
	"github.com/rebeliceyang/listinsight/internal/session"
	"github.com/rebeliceyang/listinsight/internal/tags"
	"github.com/rebeliceyang/listinsight/internal/ui/components"
	"github.com/rebeliceyang/listinsight/internal/ui/theme"
	"github.com/rebeliceyang/listinsight/internal/view"
)

// removeDataset drops a dataset by name, whether or not it could be opened
func removeDataset(sess *session.Session, name string) error {
	if v, err := sess.ViewByName(name); err == nil {
		return sess.RemoveDataset(v.Dataset().ID())
	}
	entry, ok := sess.Project().DatasetByName(name)
	if !ok {
		return fmt.Errorf("dataset %s is not part of the project", name)
	}
	return sess.RemoveDataset(entry.Metadata.ID)
}

// operate runs the filter and selection flags against target. Filter
// positions refer to the list as stored before this run: updates and toggles
// go first, then removals, then new filters are appended.
func operate(ctx context.Context, sess *session.Session, target *view.View, opts *options, logger *zap.SugaredLogger, out io.Writer) error {
	needsTarget := opts.primaryKey != "" || len(opts.filters) > 0 || len(opts.toggles) > 0 ||
		len(opts.updateFilters) > 0 || len(opts.removeFilters) > 0 || opts.validate
	if needsTarget && target == nil {
		return fmt.Errorf("no dataset open; use --import or --dataset")
	}

	// A failing filter is kept and marked, the run goes on
	warn := func(err error, keysAndValues ...any) error {
		if err == nil || !view.IsFilterError(err) {
			return err
		}
		logger.Warnw("filters not applied", append(keysAndValues, "error", err)...)
		return nil
	}

	if opts.primaryKey != "" {
		if err := sess.SetPrimaryKey(target.Dataset().ID(), opts.primaryKey); err != nil {
			return err
		}
	}

	for _, text := range opts.updateFilters {
		pos, attr, op, value, err := parseIndexedFilter(text)
		if err != nil {
			return err
		}
		if err := warn(sess.UpdateFilter(ctx, target.Dataset().ID(), pos, attr, op, value), "updated", pos); err != nil {
			return err
		}
	}

	for _, pos := range opts.toggles {
		_, err := sess.ToggleFilter(ctx, target.Dataset().ID(), pos)
		if err := warn(err, "toggled", pos); err != nil {
			return err
		}
	}

	removals := slices.Clone(opts.removeFilters)
	slices.Sort(removals)
	removals = slices.Compact(removals)
	for i := len(removals) - 1; i >= 0; i-- {
		if err := warn(sess.RemoveFilter(ctx, target.Dataset().ID(), removals[i]), "removed", removals[i]); err != nil {
			return err
		}
	}

	for _, text := range opts.filters {
		attr, op, value, err := parseFilter(text)
		if err != nil {
			return err
		}
		_, err = sess.AddFilter(ctx, target.Dataset().ID(), attr, op, value)
		if err := warn(err, "filter", text); err != nil {
			return err
		}
	}

	if opts.validate {
		problems, err := sess.ValidateFilters(target.Dataset().ID())
		if err != nil {
			return err
		}
		for _, p := range problems {
			fmt.Fprintf(out, "invalid filter: %v\n", p)
		}
		if len(problems) == 0 {
			fmt.Fprintf(out, "all filters of %s are valid\n", target.Dataset().Name())
		}
	}

	if opts.reset {
		sess.ResetAll()
	}

	if opts.syncKey != "" {
		if !sess.SyncEnabled() {
			logger.Warnw("not every dataset has a primary key, some datasets are not synced")
		}
		if err := sess.SyncKey(ctx, "", opts.syncKey); err != nil {
			return err
		}
	}

	return nil
}

// curate runs the tagging and shortlist flags
func curate(ctx context.Context, sess *session.Session, target *view.View, opts *options) error {
	needsRow := opts.tagList != "" || opts.setTagsGiven || opts.shortlist != ""
	if needsRow && target == nil {
		return fmt.Errorf("no dataset open; use --import or --dataset")
	}

	if opts.setTagsGiven {
		if err := sess.SetRowTags(ctx, target.Dataset().ID(), opts.tagRow, tags.Split(opts.setTags)); err != nil {
			return err
		}
	}
	if opts.tagList != "" {
		if err := sess.TagRow(ctx, target.Dataset().ID(), opts.tagRow, tags.Split(opts.tagList)); err != nil {
			return err
		}
	}

	if opts.shortlist != "" {
		if _, err := sess.ShortlistRow(target.Dataset().ID(), opts.tagRow, opts.shortlist, opts.note); err != nil {
			return err
		}
	}
	for _, title := range opts.findings {
		if err := sess.Shortlist().SetFinding(title, true); err != nil {
			return err
		}
	}

	return nil
}

// parseFilter splits "ATTR OP VALUE" into its parts. The value is the rest
// of the text and may contain spaces.
func parseFilter(text string) (string, models.FilterOperator, string, error) {
	parts := strings.SplitN(strings.TrimSpace(text), " ", 3)
	if len(parts) < 2 {
		return "", "", "", fmt.Errorf("invalid filter %q, expected \"ATTR OP VALUE\"", text)
	}
	op, err := models.ParseOperator(parts[1])
	if err != nil {
		return "", "", "", err
	}
	value := ""
	if len(parts) == 3 {
		value = strings.TrimSpace(parts[2])
	}
	return parts[0], op, value, nil
}

// parseIndexedFilter splits "POS ATTR OP VALUE"
func parseIndexedFilter(text string) (int, string, models.FilterOperator, string, error) {
	head, rest, ok := strings.Cut(strings.TrimSpace(text), " ")
	if !ok {
		return 0, "", "", "", fmt.Errorf("invalid filter update %q, expected \"POS ATTR OP VALUE\"", text)
	}
	pos, err := strconv.Atoi(head)
	if err != nil || pos < 0 {
		return 0, "", "", "", fmt.Errorf("invalid filter position %q", head)
	}
	attr, op, value, err := parseFilter(rest)
	if err != nil {
		return 0, "", "", "", err
	}
	return pos, attr, op, value, nil
}

func render(out io.Writer, sess *session.Session, target *view.View, opts *options, cfg *config.Config) {
	th := theme.GetTheme(cfg.UI.Theme)

	views := sess.Views()
	if opts.datasetName != "" && target != nil {
		views = []*view.View{target}
	}

	for _, v := range views {
		if opts.showInfo {
			iv := components.NewInfoView(th)
			iv.SetDataset(v.Dataset())
			fmt.Fprintln(out, iv.View())
			fmt.Fprintln(out)
		}

		fmt.Fprintln(out, components.NewFilterList(v.Dataset().Name(), v.Filters(), th).View())
		fmt.Fprintln(out)

		tv := components.NewTableView(th)
		tv.MaxCellWidth = cfg.Data.MaxCellDisplayLength
		tv.SetView(v, cfg.Data.MaxDisplayRows)
		fmt.Fprintln(out, tv.View())
		fmt.Fprintln(out)
	}

	var items []models.ShortlistItem
	switch {
	case opts.searchShortlist != "":
		items = sess.Shortlist().Search(opts.searchShortlist)
	case opts.showShortlist:
		// Findings first
		items = append(sess.Shortlist().Findings(), nonFindings(sess.Shortlist().All())...)
	default:
		return
	}
	sv := &components.ShortlistView{
		Items:     items,
		BodyWidth: cfg.Data.MaxCellDisplayLength * 2,
		Theme:     th,
	}
	fmt.Fprintln(out, sv.View())
}

func nonFindings(items []models.ShortlistItem) []models.ShortlistItem {
	return slices.DeleteFunc(items, func(item models.ShortlistItem) bool { return item.Finding })
}

func printHistory(out io.Writer, entries []history.Entry) {
	for _, e := range entries {
		status := "ok"
		if !e.Success {
			status = "failed: " + e.ErrorMessage
		}
		fmt.Fprintf(out, "%s  %-12s %6d rows  %s  (%s)\n",
			e.AppliedAt.Local().Format("2006-01-02 15:04:05"), e.DatasetName, e.RowsVisible, e.Filters, status)
	}
}

func printRecent(out io.Writer, entries []models.ProjectHistoryEntry) {
	for _, e := range entries {
		fmt.Fprintf(out, "%s  %-20s %s  (opened %d times, last %s)\n",
			e.ID, e.Name, e.Root, e.UsageCount, e.LastUsed.Format("2006-01-02 15:04"))
	}
}
