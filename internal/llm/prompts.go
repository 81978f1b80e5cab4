package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"paylens-backend/internal/engine"
)

const intentSystem = `You are a classification assistant. Your task is to analyze a user's natural language query and determine if it is a data filter request.

Return a JSON object: {"filter_intent": true} or {"filter_intent": false}`

const groupColumnSystem = `You are an assistant that identifies the most relevant column to group by when computing aggregated or filtered metrics from a natural language query.

Your task:
- Given the user's natural language query and the available entity ID columns, identify which column should be used to group the data.

Available entity ID columns:
%s

Return a JSON object: {"group_by_column": "<entity_id_column>"} if a grouping column is found, otherwise {"group_by_column": null}.`

const filterExtractionSystem = `You are a data filter extraction assistant. Your goal is to analyze a user's natural language query and convert it into a structured JSON filter object.

**Data Schema:**
%s

**Filter Object Structure:**
- Logical operators: "and", "or", "not"
- Logical operators can contain any number of sub-filters or conditions (not limited to two).
- Leaf comparison expressions: { "column": "<column_name>", "operator": "<operator>", "value": <value> }
- The filter object can be infinitely nested to represent any level of logical complexity implied by the query.
- Use ONLY columns from the schema above.

**Supported operators:**
equals, not_equals, greater_than, greater_than_equals, less_than, less_than_equals, between, in, not_in

**Examples:**

{"filter_object": {"and": [
  {"column": "amount", "operator": "greater_than", "value": 100},
  {"or": [
    {"column": "date", "operator": "between", "value": ["2021-01-01", "2021-01-31"]},
    {"column": "channel", "operator": "equals", "value": "Online"}
  ]}
]}}

{"filter_object": {"not": {"and": [
  {"column": "merchant_id", "operator": "equals", "value": "M-001"},
  {"column": "amount", "operator": "less_than", "value": 50}
]}}}

If no filtering criteria are present in the query, return {"filter_object": null}.`

// ClassifyFilterIntent asks the model whether the query expresses a
// filtering request.
func (c *Client) ClassifyFilterIntent(ctx context.Context, query string) (bool, error) {
	var out struct {
		FilterIntent bool `json:"filter_intent"`
	}
	user := fmt.Sprintf("User query:\n%s\n\nIs this a data filter request?", query)
	if err := c.completeJSON(ctx, intentSystem, user, &out); err != nil {
		return false, err
	}
	return out.FilterIntent, nil
}

// SelectGroupColumn asks the model to pick the grouping entity-id column
// from the candidate menu. Returns "" when the model finds none.
func (c *Client) SelectGroupColumn(ctx context.Context, query string, candidates []string) (string, error) {
	var out struct {
		GroupByColumn *string `json:"group_by_column"`
	}
	system := fmt.Sprintf(groupColumnSystem, "- "+strings.Join(candidates, "\n- "))
	user := fmt.Sprintf("User query:\n%s\n\nWhat is the column to group by for this query?", query)
	if err := c.completeJSON(ctx, system, user, &out); err != nil {
		return "", err
	}
	if out.GroupByColumn == nil {
		return "", nil
	}
	return *out.GroupByColumn, nil
}

// ExtractFilter asks the model for a structured filter object given the
// query and a schema description of the enriched table. Returns (nil, nil)
// when the model signals there is no filter to extract. A structurally
// invalid filter object fails exactly like caller-supplied filter JSON.
func (c *Client) ExtractFilter(ctx context.Context, query, schema string) (*engine.Expr, error) {
	var out struct {
		FilterObject json.RawMessage `json:"filter_object"`
	}
	system := fmt.Sprintf(filterExtractionSystem, schema)
	user := fmt.Sprintf("User query:\n%s\n\nGenerate the structured filter object.", query)
	if err := c.completeJSON(ctx, system, user, &out); err != nil {
		return nil, err
	}

	if len(out.FilterObject) == 0 || string(out.FilterObject) == "null" {
		return nil, nil
	}

	var expr engine.Expr
	if err := json.Unmarshal(out.FilterObject, &expr); err != nil {
		return nil, err
	}
	return &expr, nil
}
