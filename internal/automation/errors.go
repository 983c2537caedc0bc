package automation

import "errors"

var (
	// ErrRuleNotFound is returned when a rule name has no match.
	ErrRuleNotFound = errors.New("automation: rule not found")

	// ErrRuleExists is returned when creating a rule whose name is taken.
	ErrRuleExists = errors.New("automation: rule already exists")

	// ErrRuleInvalid wraps validation failures.
	ErrRuleInvalid = errors.New("automation: invalid rule")
)
