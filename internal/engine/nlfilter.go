package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"paylens-backend/internal/dataset"
	"paylens-backend/internal/metadata"
)

// ModelProvider is the structured-output contract consumed by the natural
// language pipeline. Implementations are external and non-deterministic;
// malformed output is handled by the same error paths as caller JSON.
type ModelProvider interface {
	// ClassifyFilterIntent reports whether the query expresses a
	// filtering request.
	ClassifyFilterIntent(ctx context.Context, query string) (bool, error)
	// SelectGroupColumn picks the grouping entity-id column from the
	// candidate menu, or returns "" when none applies.
	SelectGroupColumn(ctx context.Context, query string, candidates []string) (string, error)
	// ExtractFilter converts the query into a filter expression given a
	// schema description, or returns (nil, nil) for "no filter".
	ExtractFilter(ctx context.Context, query, schema string) (*Expr, error)
}

// NLFilter translates a natural language query into a structured filter and
// applies it. Intent classification and grouping-column selection are
// independent, so both calls are issued before either is awaited; the
// pipeline proceeds only when both have resolved, and either failing fails
// the whole request. There are no retries.
func NLFilter(ctx context.Context, t *dataset.Table, query string, reg *metadata.Registry, provider ModelProvider, timeout time.Duration) ([]map[string]any, error) {
	var (
		isFilter bool
		groupCol string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		callCtx, cancel := context.WithTimeout(gctx, timeout)
		defer cancel()
		ok, err := provider.ClassifyFilterIntent(callCtx, query)
		if err != nil {
			return ModelUnavailableError("intent classification", err)
		}
		isFilter = ok
		return nil
	})
	g.Go(func() error {
		callCtx, cancel := context.WithTimeout(gctx, timeout)
		defer cancel()
		col, err := provider.SelectGroupColumn(callCtx, query, reg.IDColumns())
		if err != nil {
			return ModelUnavailableError("grouping column selection", err)
		}
		groupCol = col
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !isFilter {
		return nil, IntentNotRecognizedError()
	}

	entity := reg.FindByIDColumn(groupCol)
	if entity == nil {
		return nil, GroupColumnNotIdentifiedError(groupCol)
	}

	enriched := Enrich(t, entity)

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	expr, err := provider.ExtractFilter(callCtx, query, SchemaPrompt(enriched))
	if err != nil {
		// A structurally invalid filter object from the model is the
		// caller-visible invalid-request path, not an upstream failure.
		var appErr *AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, ModelUnavailableError("filter extraction", err)
	}
	if expr == nil {
		return nil, FilterNotExtractedError()
	}

	return FilterEntities(t, expr, entity)
}

// SchemaPrompt renders the table's columns as one "- name (type)" line per
// column for inclusion in the extraction system prompt.
func SchemaPrompt(t *dataset.Table) string {
	var b strings.Builder
	b.WriteString("Columns:")
	for _, col := range t.Columns {
		b.WriteString("\n- ")
		b.WriteString(col.Name)
		b.WriteString(" (")
		b.WriteString(col.Kind.String())
		b.WriteString(")")
	}
	return b.String()
}
