// compare.go -- Shared comparison primitive for trigger parts.
package rules

import "strings"

// Comparison operators.
const (
	OpEquals      = "Equals"
	OpContains    = "Contains"
	OpEqualsAny   = "EqualsAny"
	OpContainsAny = "ContainsAny"
)

// wildcard in a Contains value matches any non-empty subject.
const wildcard = "*"

// Comparison is the operator and operands shared by every validator kind.
// ValueToCompare is used by Equals/Contains, ValuesToCompare by the *Any operators.
type Comparison struct {
	Operator        string
	ValueToCompare  string
	ValuesToCompare []string
	Negate          bool
	IgnoreCase      bool
}

// Evaluate applies the comparison to subject. Unknown operators never match.
// For the *Any operators each element is compared without negation and
// Negate is applied once to the aggregate, so EqualsAny over no values with
// Negate set is true.
func (c Comparison) Evaluate(subject string) bool {
	switch c.Operator {
	case OpEquals:
		return equals(subject, c.ValueToCompare, c.Negate, c.IgnoreCase)
	case OpContains:
		return contains(subject, c.ValueToCompare, c.Negate, c.IgnoreCase)
	case OpEqualsAny:
		for _, v := range c.ValuesToCompare {
			if equals(subject, v, false, c.IgnoreCase) {
				return !c.Negate
			}
		}
		return c.Negate
	case OpContainsAny:
		for _, v := range c.ValuesToCompare {
			if contains(subject, v, false, c.IgnoreCase) {
				return !c.Negate
			}
		}
		return c.Negate
	default:
		return false
	}
}

func equals(subject, value string, negate, ignoreCase bool) bool {
	var match bool
	if ignoreCase {
		match = strings.EqualFold(subject, value)
	} else {
		match = subject == value
	}
	return match != negate
}

// contains returns true for a "*" value and a non-empty subject before negation
// is considered.
func contains(subject, value string, negate, ignoreCase bool) bool {
	if value == wildcard && subject != "" {
		return true
	}
	var match bool
	if ignoreCase {
		match = strings.Contains(strings.ToUpper(subject), strings.ToUpper(value))
	} else {
		match = strings.Contains(subject, value)
	}
	return match != negate
}
