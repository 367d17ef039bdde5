package pricing

import "fmt"

// Field names an editable input of a quotation draft.
type Field string

const (
	FieldBasePrice        Field = "base_price"
	FieldWeight           Field = "weight"
	FieldExchangeRate     Field = "exchange_rate"
	FieldMarginMode       Field = "margin_mode"
	FieldMarginPercentage Field = "margin_percentage"
	FieldMarginPEN        Field = "margin_pen"
	FieldTaxPercentage    Field = "tax_percentage"
)

// Draft is a quotation being edited field by field. Unset optional values fall back to the policy.
type Draft struct {
	BasePrice        float64    `json:"base_price"`
	Weight           float64    `json:"weight"`
	ExchangeRate     float64    `json:"exchange_rate,omitempty"`
	MarginMode       MarginMode `json:"margin_mode,omitempty"`
	MarginPercentage *float64   `json:"margin_percentage,omitempty"`
	MarginPEN        *float64   `json:"margin_pen,omitempty"`
	TaxPercentage    *float64   `json:"tax_percentage,omitempty"`
}

// DraftValues carries the new values of a partial update. Only touched fields are read.
type DraftValues struct {
	BasePrice        float64    `json:"base_price"`
	Weight           float64    `json:"weight"`
	ExchangeRate     float64    `json:"exchange_rate"`
	MarginMode       MarginMode `json:"margin_mode"`
	MarginPercentage float64    `json:"margin_percentage"`
	MarginPEN        float64    `json:"margin_pen"`
	TaxPercentage    float64    `json:"tax_percentage"`
}

// DraftUpdate is a partial edit: the set of touched fields and their values.
type DraftUpdate struct {
	Fields []Field     `json:"fields"`
	Values DraftValues `json:"values"`
}

// Touches reports whether the update changes f.
func (u DraftUpdate) Touches(f Field) bool {
	for _, field := range u.Fields {
		if field == f {
			return true
		}
	}
	return false
}

// Apply returns a copy of d with the touched fields replaced. Unknown field names are rejected
// and leave the draft unchanged.
func (d Draft) Apply(u DraftUpdate) (Draft, error) {
	next := d
	for _, f := range u.Fields {
		switch f {
		case FieldBasePrice:
			next.BasePrice = u.Values.BasePrice
		case FieldWeight:
			next.Weight = u.Values.Weight
		case FieldExchangeRate:
			next.ExchangeRate = u.Values.ExchangeRate
		case FieldMarginMode:
			next.MarginMode = u.Values.MarginMode
		case FieldMarginPercentage:
			v := u.Values.MarginPercentage
			next.MarginPercentage = &v
		case FieldMarginPEN:
			v := u.Values.MarginPEN
			next.MarginPEN = &v
		case FieldTaxPercentage:
			v := u.Values.TaxPercentage
			next.TaxPercentage = &v
		default:
			return d, fmt.Errorf("unknown draft field %q", f)
		}
	}
	return next, nil
}

// Request resolves the draft against the policy.
func (d Draft) Request(policy Policy) (Request, *ConflictingMarginMode) {
	return NewRequest(d.BasePrice, d.Weight, d.ExchangeRate, MarginInput{
		Mode:       d.MarginMode,
		Percentage: d.MarginPercentage,
		FixedPEN:   d.MarginPEN,
	}, d.TaxPercentage, policy)
}
