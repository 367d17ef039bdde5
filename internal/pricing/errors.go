package pricing

import (
	"fmt"
	"strings"
)

// FieldError names one offending input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Reason)
	}
	return "invalid pricing input: " + strings.Join(parts, "; ")
}

// Has reports whether field is among the offending fields.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// MarginViolation is returned when a requested final price is below total cost.
// It is recoverable: RecomputedUSD is the formula price that replaced the request.
type MarginViolation struct {
	RequestedUSD  float64 `json:"requested_usd"`
	MinimumUSD    float64 `json:"minimum_usd"`
	RecomputedUSD float64 `json:"recomputed_usd"`
}

func (e *MarginViolation) Error() string {
	return fmt.Sprintf("final price %.2f USD is below total cost %.2f USD; using %.2f USD", e.RequestedUSD, e.MinimumUSD, e.RecomputedUSD)
}

// ConflictingMarginMode records that a supplied margin value was not used. Either both a
// percentage and a fixed PEN margin were supplied and the threshold rule kept one, or an
// explicit mode discarded the value of the other mode.
type ConflictingMarginMode struct {
	BasePrice float64    `json:"base_price"`
	Chosen    MarginMode `json:"chosen"`
	Explicit  bool       `json:"explicit,omitempty"`
}

func (c *ConflictingMarginMode) String() string {
	if c.Explicit {
		return fmt.Sprintf("margin mode %s was chosen explicitly; the supplied %s margin value is ignored", c.Chosen, c.Chosen.other())
	}
	return fmt.Sprintf("both margin values supplied; base price %.2f selects %s margin", c.BasePrice, c.Chosen)
}
