package metadata

// Entity describes one analyzable dimension of the transaction dataset:
// the column that identifies it, the derived unique-dimension counts its
// aggregation produces, and the columns projected into filter results.
type Entity struct {
	Name              string
	IDColumn          string
	UniqueCounts      []UniqueCount
	ProjectionColumns []string
}

// UniqueCount maps a source id column onto the name of the derived
// distinct-count attribute computed when grouping by the owning entity.
type UniqueCount struct {
	Source string
	Output string
}

// Transaction column names shared across packages.
const (
	ColTransactionID = "transaction_id"
	ColCustomerID    = "customer_id"
	ColMerchantID    = "merchant_id"
	ColTerminalID    = "terminal_id"
	ColBranchAdminID = "branch_admin_id"
	ColAgentID       = "agent_id"
	ColAmount        = "amount"
	ColDate          = "date"
	ColChannel       = "channel"
	ColMerchantName  = "merchant_name"
)

// Derived attribute column names produced by aggregation.
const (
	ColAvgAmount          = "avg_transaction_amount"
	ColTotalTransactions  = "total_transactions"
	ColSumAmount          = "sum_transaction_amount"
	ColMinAmount          = "min_transaction_amount"
	ColMaxAmount          = "max_transaction_amount"
	ColStdAmount          = "std_transaction_amount"
	ColUniqueCustomers    = "unique_customers"
	ColUniqueMerchants    = "unique_merchants"
	ColUniqueBranchAdmins = "unique_branch_admins"
	ColUniqueTerminals    = "unique_terminals"
)

// aggregateColumns are the fixed numeric aggregates every grouping produces.
var aggregateColumns = []string{
	ColAvgAmount, ColTotalTransactions, ColSumAmount,
	ColMinAmount, ColMaxAmount, ColStdAmount,
}

// AggregateColumns returns the numeric aggregate names plus the entity's
// unique-count outputs, i.e. every derived column Enrich can add for it.
func (e *Entity) AggregateColumns() []string {
	cols := make([]string, 0, len(aggregateColumns)+len(e.UniqueCounts))
	cols = append(cols, aggregateColumns...)
	for _, uc := range e.UniqueCounts {
		cols = append(cols, uc.Output)
	}
	return cols
}
