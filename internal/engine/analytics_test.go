package engine

import (
	"math"
	"testing"

	"paylens-backend/internal/metadata"
)

func TestTransactionVolumeOverTime(t *testing.T) {
	gd := TransactionVolumeOverTime(testTable(), GranularityMonthly, "")
	points := gd.Data

	if len(points.Labels) != 1 || points.Labels[0] != "2021-03" {
		t.Fatalf("expected single 2021-03 bucket, got %v", points.Labels)
	}
	if points.Values[0] != 400 {
		t.Errorf("expected volume 400, got %v", points.Values[0])
	}
	if gd.Metric != "Monthly Transaction Volume" {
		t.Errorf("unexpected metric label %q", gd.Metric)
	}
}

func TestTransactionCountDailyBucketsSorted(t *testing.T) {
	gd := TransactionCountOverTime(testTable(), GranularityDaily, "")
	points := gd.Data

	// One transaction per day; the null-amount row still has a date but
	// contributes no amount, so its daily count is 0.
	want := []string{"2021-03-01", "2021-03-02", "2021-03-03", "2021-03-04", "2021-03-05"}
	if len(points.Labels) != len(want) {
		t.Fatalf("expected %d buckets, got %d", len(want), len(points.Labels))
	}
	for i, label := range want {
		if points.Labels[i] != label {
			t.Errorf("bucket %d: expected %s, got %s", i, label, points.Labels[i])
		}
	}
	for i, v := range points.Values[:4] {
		if v != 1 {
			t.Errorf("bucket %d: expected count 1, got %v", i, v)
		}
	}
	if points.Values[4] != 0 {
		t.Errorf("null-amount day should count 0, got %v", points.Values[4])
	}
}

func TestAverageTransactionOverTime(t *testing.T) {
	gd := AverageTransactionOverTime(testTable(), GranularityYearly, "")
	points := gd.Data

	if len(points.Labels) != 1 || points.Labels[0] != "2021" {
		t.Fatalf("expected single 2021 bucket, got %v", points.Labels)
	}
	if points.Values[0] != 100 {
		t.Errorf("expected average 100, got %v", points.Values[0])
	}
}

func TestTopEntitiesByAmount(t *testing.T) {
	td := TopEntities(testTable(), metadata.ColMerchantID, metadata.ColCustomerID, "amount", 1, "")
	rows := td.Data.([]map[string]any)

	// Per merchant, one top customer: M1's is C1 (200 vs 90), M2's is C2.
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][metadata.ColMerchantID] != "M1" || rows[0][metadata.ColCustomerID] != "C1" {
		t.Errorf("expected M1/C1, got %v/%v", rows[0][metadata.ColMerchantID], rows[0][metadata.ColCustomerID])
	}
	if rows[0]["total_amount"] != 200.0 {
		t.Errorf("expected total 200, got %v", rows[0]["total_amount"])
	}
	if rows[1][metadata.ColMerchantID] != "M2" || rows[1][metadata.ColCustomerID] != "C2" {
		t.Errorf("expected M2/C2, got %v/%v", rows[1][metadata.ColMerchantID], rows[1][metadata.ColCustomerID])
	}
}

func TestTopEntitiesByCount(t *testing.T) {
	td := TopEntities(testTable(), metadata.ColMerchantID, metadata.ColCustomerID, "count", 10, "")
	rows := td.Data.([]map[string]any)

	// M1 pairs: (C1, 2 txns), (C2, 1). M2 pairs: (C2, 1), (C3, 0 non-null).
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[0][metadata.ColCustomerID] != "C1" || rows[0]["transaction_count"] != 2 {
		t.Errorf("expected C1 with 2 transactions first, got %v", rows[0])
	}
}

func TestTransactionOutliers(t *testing.T) {
	tbl := testTable()
	// Pair sums: C1/M1=200, C2/M1=90, C2/M2=110, C3/M2=0.
	// Mean 100, sample std ~81.65; with multiplier 1 the bounds are
	// (18.35, 181.65) so 200 and 0 are outliers.
	td := TransactionOutliers(tbl, metadata.ColMerchantID, metadata.ColCustomerID, 1.0, "")
	rows := td.Data.([]map[string]any)

	if len(rows) != 2 {
		t.Fatalf("expected 2 outliers, got %d", len(rows))
	}
	if rows[0]["amount"] != 200.0 {
		t.Errorf("expected highest outlier first, got %v", rows[0]["amount"])
	}
	if rows[1]["amount"] != 0.0 {
		t.Errorf("expected zero-sum outlier last, got %v", rows[1]["amount"])
	}
}

func TestTransactionOutliersSinglePair(t *testing.T) {
	tbl := testTable()
	mask, err := Evaluate(tbl, Cmp(metadata.ColCustomerID, OpEquals, "C1"))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	td := TransactionOutliers(tbl.Select(mask), metadata.ColMerchantID, metadata.ColCustomerID, 1.0, "")
	rows := td.Data.([]map[string]any)
	if len(rows) != 0 {
		t.Errorf("a single pair has no spread, expected no outliers, got %d", len(rows))
	}
}

func TestDaysBetweenTransactions(t *testing.T) {
	td := DaysBetweenTransactions(testTable(), metadata.ColMerchantID, "")
	rows := td.Data.([]map[string]any)

	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}
	// Sorted by merchant, customer, date: M1/C1 (Mar 1), M1/C1 (Mar 2),
	// M1/C2, M2/C2, M2/C3.
	if rows[0]["days_since"] != nil {
		t.Errorf("first transaction of a pair must have a null gap, got %v", rows[0]["days_since"])
	}
	if rows[1]["days_since"] != 1.0 {
		t.Errorf("expected 1 day gap, got %v", rows[1]["days_since"])
	}
	if rows[2]["days_since"] != nil || rows[3]["days_since"] != nil || rows[4]["days_since"] != nil {
		t.Error("pair boundaries must reset the gap")
	}
}

func TestUniqueCount(t *testing.T) {
	tbl := testTable()
	if n := UniqueCount(tbl, metadata.ColCustomerID); n != 3 {
		t.Errorf("expected 3 unique customers, got %d", n)
	}
	if n := UniqueCount(tbl, metadata.ColMerchantID); n != 2 {
		t.Errorf("expected 2 unique merchants, got %d", n)
	}
	if n := UniqueCount(tbl, "missing"); n != 0 {
		t.Errorf("expected 0 for a missing column, got %d", n)
	}
}

func TestRound2(t *testing.T) {
	if got := round2(3.14159); got != 3.14 {
		t.Errorf("expected 3.14, got %v", got)
	}
	if got := round2(2.005); math.Abs(got-2.01) > 0.01 {
		t.Errorf("expected ~2.01, got %v", got)
	}
}
