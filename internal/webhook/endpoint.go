// Package webhook registers delivery endpoints and pushes product change
// events to them with retries.
package webhook

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"product-importer/internal/event"
)

// Endpoint is one registered webhook target.
type Endpoint struct {
	ID        string   `json:"id"`
	URL       string   `json:"url"`
	Events    []string `json:"events"`
	Secret    string   `json:"secret,omitempty"`
	Condition string   `json:"condition,omitempty"`
	Active    bool     `json:"active"`

	compiledCondition *vm.Program
}

// Subscribed reports whether the endpoint listens for the given event type.
// An empty Events list subscribes to everything.
func (e *Endpoint) Subscribed(t event.Type) bool {
	if len(e.Events) == 0 {
		return true
	}
	for _, ev := range e.Events {
		if ev == string(t) {
			return true
		}
	}
	return false
}

// Matches evaluates the endpoint's optional condition expression against the
// event. The expression sees "type", "sku", "product", and "job_id". No
// condition means match.
func (e *Endpoint) Matches(ev event.ChangeEvent) (bool, error) {
	if e.Condition == "" {
		return true, nil
	}

	env := map[string]any{
		"type":   string(ev.Type),
		"sku":    ev.SKU,
		"job_id": ev.JobID,
		"product": map[string]any{
			"sku":         ev.Product.SKU,
			"name":        ev.Product.Name,
			"description": ev.Product.Description,
			"price":       ev.Product.Price,
			"status":      string(ev.Product.Status),
		},
	}

	// Lazy-compile and cache the condition program
	if e.compiledCondition == nil {
		prog, err := expr.Compile(e.Condition, expr.AsBool())
		if err != nil {
			return false, fmt.Errorf("compile webhook condition: %w", err)
		}
		e.compiledCondition = prog
	}
	result, err := expr.Run(e.compiledCondition, env)
	if err != nil {
		return false, fmt.Errorf("evaluate webhook condition: %w", err)
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("webhook condition did not return bool")
	}
	return b, nil
}
