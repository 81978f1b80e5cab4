package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"paylens-backend/internal/metadata"
)

type fakeProvider struct {
	intent       bool
	intentErr    error
	groupCol     string
	groupErr     error
	expr         *Expr
	extractErr   error
	extractCalls int
}

func (f *fakeProvider) ClassifyFilterIntent(ctx context.Context, query string) (bool, error) {
	return f.intent, f.intentErr
}

func (f *fakeProvider) SelectGroupColumn(ctx context.Context, query string, candidates []string) (string, error) {
	return f.groupCol, f.groupErr
}

func (f *fakeProvider) ExtractFilter(ctx context.Context, query, schema string) (*Expr, error) {
	f.extractCalls++
	return f.expr, f.extractErr
}

const testTimeout = time.Second

func TestNLFilterHappyPath(t *testing.T) {
	provider := &fakeProvider{
		intent:   true,
		groupCol: metadata.ColMerchantID,
		expr:     Cmp(metadata.ColTotalTransactions, OpGreaterThan, 2),
	}
	results, err := NLFilter(context.Background(), testTable(), "merchants with more than 2 transactions",
		metadata.NewRegistry(), provider, testTimeout)
	if err != nil {
		t.Fatalf("nl filter: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 merchant, got %d", len(results))
	}
	if results[0][metadata.ColMerchantID] != "M1" {
		t.Errorf("expected M1, got %v", results[0][metadata.ColMerchantID])
	}
}

func TestNLFilterIntentNotRecognized(t *testing.T) {
	provider := &fakeProvider{intent: false, groupCol: metadata.ColMerchantID}
	_, err := NLFilter(context.Background(), testTable(), "hello",
		metadata.NewRegistry(), provider, testTimeout)

	appErr := asAppError(t, err)
	if appErr.Code != "INTENT_NOT_RECOGNIZED" {
		t.Errorf("expected INTENT_NOT_RECOGNIZED, got %s", appErr.Code)
	}
	if provider.extractCalls != 0 {
		t.Error("extraction must not run when intent is not recognized")
	}
}

func TestNLFilterModelFailureIs502(t *testing.T) {
	provider := &fakeProvider{
		intent:    true,
		intentErr: errors.New("connection refused"),
		groupCol:  metadata.ColMerchantID,
	}
	_, err := NLFilter(context.Background(), testTable(), "big merchants",
		metadata.NewRegistry(), provider, testTimeout)

	appErr := asAppError(t, err)
	if appErr.Code != "MODEL_UNAVAILABLE" {
		t.Errorf("expected MODEL_UNAVAILABLE, got %s", appErr.Code)
	}
	if appErr.Status != 502 {
		t.Errorf("expected status 502, got %d", appErr.Status)
	}
	if !strings.Contains(appErr.Message, "intent classification") {
		t.Errorf("error should name the failing stage, got %q", appErr.Message)
	}
}

func TestNLFilterGroupColumnNotIdentified(t *testing.T) {
	for _, col := range []string{"", "favorite_color"} {
		provider := &fakeProvider{intent: true, groupCol: col}
		_, err := NLFilter(context.Background(), testTable(), "big merchants",
			metadata.NewRegistry(), provider, testTimeout)

		appErr := asAppError(t, err)
		if appErr.Code != "GROUP_COLUMN_NOT_IDENTIFIED" {
			t.Errorf("col %q: expected GROUP_COLUMN_NOT_IDENTIFIED, got %s", col, appErr.Code)
		}
		if provider.extractCalls != 0 {
			t.Errorf("col %q: extraction must not run without a grouping column", col)
		}
	}
}

func TestNLFilterNoFilterExtracted(t *testing.T) {
	provider := &fakeProvider{intent: true, groupCol: metadata.ColMerchantID, expr: nil}
	_, err := NLFilter(context.Background(), testTable(), "big merchants",
		metadata.NewRegistry(), provider, testTimeout)

	appErr := asAppError(t, err)
	if appErr.Code != "FILTER_NOT_EXTRACTED" {
		t.Errorf("expected FILTER_NOT_EXTRACTED, got %s", appErr.Code)
	}
}

func TestNLFilterMalformedExtractionIsCallerError(t *testing.T) {
	provider := &fakeProvider{
		intent:     true,
		groupCol:   metadata.ColMerchantID,
		extractErr: MalformedFilterError("node must be exactly one of and/or/not/comparison"),
	}
	_, err := NLFilter(context.Background(), testTable(), "big merchants",
		metadata.NewRegistry(), provider, testTimeout)

	appErr := asAppError(t, err)
	if appErr.Code != "INVALID_FILTER" {
		t.Errorf("expected INVALID_FILTER, got %s", appErr.Code)
	}
	if appErr.Status != 400 {
		t.Errorf("expected status 400, got %d", appErr.Status)
	}
}

func TestSchemaPromptListsEnrichedColumns(t *testing.T) {
	enriched := Enrich(testTable(), entity(t, "merchants"))
	schema := SchemaPrompt(enriched)

	for _, want := range []string{
		"- amount (float)",
		"- date (datetime)",
		"- channel (string)",
		"- avg_transaction_amount (float)",
		"- unique_customers (float)",
	} {
		if !strings.Contains(schema, want) {
			t.Errorf("schema missing %q:\n%s", want, schema)
		}
	}
}

func asAppError(t *testing.T, err error) *AppError {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T (%v)", err, err)
	}
	return appErr
}
