// Package match decides field equivalence between a reference record and an
// extracted candidate, applies the business acceptance rule and scores a pair.
package match

import (
	"github.com/joseph-ayodele/invoice-bench/constants"
	"github.com/joseph-ayodele/invoice-bench/internal/canon"
	"github.com/joseph-ayodele/invoice-bench/internal/entity"
)

// IsMatch reports whether actual is equivalent to expected under the rules of
// field's category.
//
// A blank expected value (absent, empty or "null") matches only a blank actual
// value. This is checked before any category rule.
func IsMatch(field constants.Field, expected, actual entity.Value) bool {
	if expected.IsBlank() {
		return actual.IsBlank()
	}
	if actual.IsBlank() {
		return false
	}

	switch constants.CategoryOf(field) {
	case constants.CategoryName:
		return IsNameMatch(expected.Text(), actual.Text())
	case constants.CategoryMoney:
		return moneyMatch(expected, actual)
	case constants.CategoryIdentifier:
		return canon.ID(expected.Text()) == canon.ID(actual.Text())
	case constants.CategoryDate:
		return dateMatch(expected.Text(), actual.Text())
	default:
		return canon.Text(expected.Text()) == canon.Text(actual.Text())
	}
}

// IsNameMatch accepts a partial name: every token of actual must occur in expected.
// Legal-entity suffixes count as tokens, so an extracted name that is longer than
// the reference does not match.
func IsNameMatch(expected, actual string) bool {
	exp, act := canon.Tokens(expected), canon.Tokens(actual)
	if len(exp) == 0 || len(act) == 0 {
		return len(exp) == 0 && len(act) == 0
	}
	for tok := range act {
		if _, ok := exp[tok]; !ok {
			return false
		}
	}
	return true
}

func moneyMatch(expected, actual entity.Value) bool {
	e, eok := canon.Money(expected)
	a, aok := canon.Money(actual)
	switch {
	case eok && aok:
		return e == a
	case !eok && !aok:
		return canon.Text(expected.Text()) == canon.Text(actual.Text())
	default:
		return false
	}
}

func dateMatch(expected, actual string) bool {
	e, eok := canon.Date(expected)
	a, aok := canon.Date(actual)
	if eok && aok {
		return e == a
	}
	return canon.Text(expected) == canon.Text(actual)
}
