package metadata

// Registry holds the entity dimensions the API can group, filter and
// aggregate on. Adding a dimension is a data change here, not a code
// change in the aggregation layer.
type Registry struct {
	entities []*Entity
	byName   map[string]*Entity
}

func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]*Entity)}
	for _, e := range defaultEntities() {
		r.entities = append(r.entities, e)
		r.byName[e.Name] = e
	}
	return r
}

// GetEntity returns the entity registered under the given route name, or nil.
func (r *Registry) GetEntity(name string) *Entity {
	return r.byName[name]
}

// AllEntities returns all registered entities in registration order.
func (r *Registry) AllEntities() []*Entity {
	return r.entities
}

// IDColumns returns the id columns of every registered entity. This is the
// candidate menu handed to the grouping-column extraction model call.
func (r *Registry) IDColumns() []string {
	cols := make([]string, 0, len(r.entities))
	for _, e := range r.entities {
		cols = append(cols, e.IDColumn)
	}
	return cols
}

// FindByIDColumn returns the entity whose IDColumn matches, or nil.
func (r *Registry) FindByIDColumn(col string) *Entity {
	for _, e := range r.entities {
		if e.IDColumn == col {
			return e
		}
	}
	return nil
}

func defaultEntities() []*Entity {
	return []*Entity{
		{
			Name:     "customers",
			IDColumn: ColCustomerID,
			// unique_customers would be self-referential here.
			ProjectionColumns: []string{
				ColCustomerID,
				ColAvgAmount, ColTotalTransactions, ColSumAmount,
				ColMinAmount, ColMaxAmount, ColStdAmount,
			},
		},
		{
			Name:     "merchants",
			IDColumn: ColMerchantID,
			UniqueCounts: []UniqueCount{
				{Source: ColCustomerID, Output: ColUniqueCustomers},
				{Source: ColBranchAdminID, Output: ColUniqueBranchAdmins},
				{Source: ColTerminalID, Output: ColUniqueTerminals},
			},
			ProjectionColumns: []string{
				ColMerchantID, ColMerchantName,
				ColAvgAmount, ColTotalTransactions, ColSumAmount,
				ColMinAmount, ColMaxAmount, ColStdAmount,
				ColUniqueCustomers, ColUniqueBranchAdmins, ColUniqueTerminals,
			},
		},
		{
			Name:     "terminals",
			IDColumn: ColTerminalID,
			UniqueCounts: []UniqueCount{
				{Source: ColCustomerID, Output: ColUniqueCustomers},
			},
			ProjectionColumns: []string{
				ColTerminalID, ColMerchantID,
				ColAvgAmount, ColTotalTransactions, ColSumAmount,
				ColMinAmount, ColMaxAmount, ColStdAmount,
				ColUniqueCustomers,
			},
		},
		{
			Name:     "branch-admins",
			IDColumn: ColBranchAdminID,
			UniqueCounts: []UniqueCount{
				{Source: ColCustomerID, Output: ColUniqueCustomers},
				{Source: ColTerminalID, Output: ColUniqueTerminals},
			},
			ProjectionColumns: []string{
				ColBranchAdminID, ColMerchantID,
				ColAvgAmount, ColTotalTransactions, ColSumAmount,
				ColMinAmount, ColMaxAmount, ColStdAmount,
				ColUniqueCustomers, ColUniqueTerminals,
			},
		},
		{
			Name:     "agents",
			IDColumn: ColAgentID,
			UniqueCounts: []UniqueCount{
				{Source: ColCustomerID, Output: ColUniqueCustomers},
				{Source: ColMerchantID, Output: ColUniqueMerchants},
				{Source: ColBranchAdminID, Output: ColUniqueBranchAdmins},
				{Source: ColTerminalID, Output: ColUniqueTerminals},
			},
			ProjectionColumns: []string{
				ColAgentID,
				ColAvgAmount, ColTotalTransactions, ColSumAmount,
				ColMinAmount, ColMaxAmount, ColStdAmount,
				ColUniqueCustomers, ColUniqueMerchants,
				ColUniqueBranchAdmins, ColUniqueTerminals,
			},
		},
	}
}
