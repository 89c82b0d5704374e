package domain

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Built-in comparison operators.
const (
	OperatorGreaterThan = "greater_than"
	OperatorLessThan    = "less_than"
	OperatorEqualTo     = "equal_to"
)

// Operator compares a current metric value against a rule threshold.
type Operator interface {
	Name() string
	Compare(value, threshold decimal.Decimal) bool
}

// OperatorFunc adapts a plain function to Operator.
type OperatorFunc struct {
	OpName string
	Fn     func(value, threshold decimal.Decimal) bool
}

func (o OperatorFunc) Name() string { return o.OpName }

func (o OperatorFunc) Compare(value, threshold decimal.Decimal) bool { return o.Fn(value, threshold) }

var operatorRegistry = struct {
	mu  sync.RWMutex
	ops map[string]Operator
}{
	ops: map[string]Operator{
		OperatorGreaterThan: OperatorFunc{OpName: OperatorGreaterThan, Fn: func(v, t decimal.Decimal) bool { return v.GreaterThan(t) }},
		OperatorLessThan:    OperatorFunc{OpName: OperatorLessThan, Fn: func(v, t decimal.Decimal) bool { return v.LessThan(t) }},
		// exact match, no tolerance
		OperatorEqualTo: OperatorFunc{OpName: OperatorEqualTo, Fn: func(v, t decimal.Decimal) bool { return v.Equal(t) }},
	},
}

// RegisterOperator adds or replaces an operator under op.Name().
func RegisterOperator(op Operator) error {
	if op == nil || op.Name() == "" {
		return fmt.Errorf("operator name cannot be empty")
	}
	operatorRegistry.mu.Lock()
	defer operatorRegistry.mu.Unlock()
	operatorRegistry.ops[op.Name()] = op
	return nil
}

// LookupOperator returns the operator registered under name.
func LookupOperator(name string) (Operator, bool) {
	operatorRegistry.mu.RLock()
	defer operatorRegistry.mu.RUnlock()
	op, ok := operatorRegistry.ops[name]
	return op, ok
}

// Operators returns the registered operator names, sorted.
func Operators() []string {
	operatorRegistry.mu.RLock()
	names := make([]string, 0, len(operatorRegistry.ops))
	for name := range operatorRegistry.ops {
		names = append(names, name)
	}
	operatorRegistry.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Compare applies the named operator. Unknown operators yield a ValidationError.
func Compare(operator string, value, threshold decimal.Decimal) (bool, error) {
	op, ok := LookupOperator(operator)
	if !ok {
		return false, &ValidationError{Field: "comparison_operator", Message: fmt.Sprintf("unknown operator %q", operator)}
	}
	return op.Compare(value, threshold), nil
}
