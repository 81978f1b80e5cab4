package metadata

import (
	"testing"
)

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()

	e := r.GetEntity("merchants")
	if e == nil {
		t.Fatal("merchants not registered")
	}
	if e.IDColumn != ColMerchantID {
		t.Errorf("expected %s, got %s", ColMerchantID, e.IDColumn)
	}
	if r.GetEntity("planets") != nil {
		t.Error("expected nil for unregistered entity")
	}
}

func TestRegistryIDColumns(t *testing.T) {
	cols := NewRegistry().IDColumns()
	want := map[string]bool{
		ColCustomerID: true, ColMerchantID: true, ColTerminalID: true,
		ColBranchAdminID: true, ColAgentID: true,
	}
	if len(cols) != len(want) {
		t.Fatalf("expected %d id columns, got %d", len(want), len(cols))
	}
	for _, c := range cols {
		if !want[c] {
			t.Errorf("unexpected id column %s", c)
		}
	}
}

func TestRegistryFindByIDColumn(t *testing.T) {
	r := NewRegistry()
	e := r.FindByIDColumn(ColTerminalID)
	if e == nil || e.Name != "terminals" {
		t.Errorf("expected terminals, got %v", e)
	}
	if r.FindByIDColumn("channel") != nil {
		t.Error("channel is not an id column")
	}
}

func TestCustomersHaveNoSelfCount(t *testing.T) {
	e := NewRegistry().GetEntity("customers")
	if len(e.UniqueCounts) != 0 {
		t.Errorf("customers should have no unique counts, got %v", e.UniqueCounts)
	}
}

func TestAggregateColumns(t *testing.T) {
	e := NewRegistry().GetEntity("merchants")
	cols := e.AggregateColumns()

	has := map[string]bool{}
	for _, c := range cols {
		has[c] = true
	}
	for _, want := range []string{
		ColAvgAmount, ColTotalTransactions, ColSumAmount,
		ColMinAmount, ColMaxAmount, ColStdAmount,
		ColUniqueCustomers, ColUniqueBranchAdmins, ColUniqueTerminals,
	} {
		if !has[want] {
			t.Errorf("missing aggregate column %s", want)
		}
	}
	if has[ColUniqueMerchants] {
		t.Error("merchants must not count themselves")
	}
}
