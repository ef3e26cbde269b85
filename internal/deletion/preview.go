package deletion

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"eduprima/internal/common/metrics"
	"eduprima/internal/common/observability"
	"eduprima/internal/store"
)

// PreviewSource tells an authoritative aggregate preview apart from a manual one.
type PreviewSource string

const (
	SourceAuthoritative PreviewSource = "authoritative"
	SourceManual        PreviewSource = "manual"
)

// Entry is one table's share of a preview.
type Entry struct {
	Table    string `json:"table"`
	Count    int64  `json:"count"`
	DataType string `json:"dataType"`
}

// Preview lists the rows a delete of RecordID would remove. It reflects the
// store at GeneratedAt and is not held valid until confirmation.
type Preview struct {
	RecordID    string                  `json:"recordId"`
	Entries     []Entry                 `json:"entries"`
	Source      PreviewSource           `json:"source"`
	Warning     *PreviewDegradedWarning `json:"warning,omitempty"`
	GeneratedAt time.Time               `json:"generatedAt"`
}

// TotalRows sums the entry counts.
func (p *Preview) TotalRows() int64 {
	var n int64
	for _, e := range p.Entries {
		n += e.Count
	}
	return n
}

// PreviewDeletion reports, per dependent table, how many rows a delete of id
// would remove. Tables with no rows are left out.
func (o *Orchestrator) PreviewDeletion(ctx context.Context, id string) (preview *Preview, err error) {
	if id == "" {
		return nil, &ValidationError{Field: "recordId", Reason: "must not be empty"}
	}

	ctx, span := observability.StartSpan(ctx, "deletion.preview", attribute.String("record.id", id))
	defer func() { observability.EndSpan(span, err) }()

	preview, _, err = o.preview(ctx, id)
	return preview, err
}

func (o *Orchestrator) preview(ctx context.Context, id string) (*Preview, store.Row, error) {
	o.transition(id, StatePreviewRequested)

	core, err := o.loadCore(ctx, id)
	if err != nil {
		o.transition(id, StatePreviewFailed)
		return nil, nil, err
	}

	p := &Preview{RecordID: id, GeneratedAt: o.clock().UTC()}
	entries, aggErr := o.aggregatePreview(ctx, id)
	if aggErr == nil {
		p.Entries = entries
		p.Source = SourceAuthoritative
	} else {
		o.logger.Warn("aggregate preview unavailable, counting tables manually", map[string]interface{}{
			"recordId": id,
			"error":    aggErr.Error(),
		})
		entries, err := o.manualPreview(ctx, id)
		if err != nil {
			o.transition(id, StatePreviewFailed)
			return nil, nil, &PreviewFailedError{ID: id, Err: err}
		}
		p.Entries = entries
		p.Source = SourceManual
		p.Warning = &PreviewDegradedWarning{Reason: aggErr.Error()}
	}

	metrics.DeletionPreviews.WithLabelValues(string(p.Source)).Inc()
	o.transition(id, StatePreviewReady)
	return p, core, nil
}

func (o *Orchestrator) loadCore(ctx context.Context, id string) (store.Row, error) {
	rows, err := o.store.Select(ctx, CoreTable, []string{"id", "email", "user_code"},
		store.SelectOptions{Limit: 1}, store.Eq("id", id))
	if err != nil {
		return nil, &PreviewFailedError{ID: id, Err: err}
	}
	if len(rows) == 0 {
		return nil, &NotFoundError{Table: CoreTable, ID: id}
	}
	return rows[0], nil
}

var errNoAggregate = errors.New("store does not provide an aggregate preview")

func (o *Orchestrator) aggregatePreview(ctx context.Context, id string) ([]Entry, error) {
	previewer, ok := o.store.(store.CascadePreviewer)
	if !ok {
		return nil, errNoAggregate
	}
	counts, err := previewer.PreviewCascade(ctx, CoreTable, id)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(counts))
	for _, c := range counts {
		if c.Count <= 0 {
			continue
		}
		label := c.DataType
		if label == "" {
			label = labelFor(c.Table)
		}
		entries = append(entries, Entry{Table: c.Table, Count: c.Count, DataType: label})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return orderOf(entries[i].Table) < orderOf(entries[j].Table)
	})
	return entries, nil
}

// manualPreview counts each dependent table concurrently and assembles the
// results in DependentTables order.
func (o *Orchestrator) manualPreview(ctx context.Context, id string) ([]Entry, error) {
	counts := make([]int64, len(DependentTables))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.fanOut)
	for i, dt := range DependentTables {
		i, dt := i, dt
		g.Go(func() error {
			n, err := o.store.Count(gctx, dt.Table, store.Eq(dt.Column, id))
			if err != nil {
				return err
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var entries []Entry
	for i, dt := range DependentTables {
		if counts[i] > 0 {
			entries = append(entries, Entry{Table: dt.Table, Count: counts[i], DataType: dt.Label})
		}
	}
	return entries, nil
}
