package synth

import (
	"errors"
	"fmt"
)

// ErrConfiguration is matched by every error caused by a malformed rule
// table or a name missing from one of the lookup tables.
var ErrConfiguration = errors.New("synth: configuration error")

// ConfigError identifies the rule and field that made generation or
// validation fail. Index is -1 when the problem concerns the table as a whole.
type ConfigError struct {
	Index    int
	Activity string
	Field    string
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("synth: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("synth: rule %d (%q): %s: %s", e.Index, e.Activity, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

func ruleError(idx int, rule *ActivityRule, field, format string, args ...any) *ConfigError {
	return &ConfigError{
		Index:    idx,
		Activity: rule.Activity,
		Field:    field,
		Reason:   fmt.Sprintf(format, args...),
	}
}

func tableError(field, reason string) *ConfigError {
	return &ConfigError{Index: -1, Field: field, Reason: reason}
}
