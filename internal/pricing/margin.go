package pricing

import "fmt"

// MarginMode selects how the seller margin is expressed.
type MarginMode int

const (
	// MarginPercentage expresses the margin as a percentage of the base price.
	MarginPercentage MarginMode = iota + 1
	// MarginFixedPEN expresses the margin as a fixed amount in PEN.
	MarginFixedPEN
)

func (m MarginMode) String() string {
	switch m {
	case MarginPercentage:
		return "percentage"
	case MarginFixedPEN:
		return "fixed_pen"
	default:
		return ""
	}
}

func (m MarginMode) other() MarginMode {
	if m == MarginPercentage {
		return MarginFixedPEN
	}
	return MarginPercentage
}

// MarshalText implements encoding.TextMarshaler.
func (m MarginMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty value leaves the mode unset.
func (m *MarginMode) UnmarshalText(text []byte) error {
	mode, err := ParseMarginMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ParseMarginMode parses "percentage" or "fixed_pen". An empty string yields the zero mode.
func ParseMarginMode(raw string) (MarginMode, error) {
	switch raw {
	case "":
		return 0, nil
	case "percentage":
		return MarginPercentage, nil
	case "fixed_pen":
		return MarginFixedPEN, nil
	default:
		return 0, fmt.Errorf("margin mode %q is not one of percentage, fixed_pen", raw)
	}
}

// Margin is the resolved margin: a percentage in MarginPercentage mode, an amount in PEN otherwise.
type Margin struct {
	Mode  MarginMode `json:"mode"`
	Value float64    `json:"value" validate:"finite,gte=0"`
}

// Percent builds a percentage margin.
func Percent(value float64) Margin {
	return Margin{Mode: MarginPercentage, Value: value}
}

// FixedPEN builds a fixed PEN margin.
func FixedPEN(amount float64) Margin {
	return Margin{Mode: MarginFixedPEN, Value: amount}
}

// AmountUSD normalizes the margin to USD.
func (m Margin) AmountUSD(basePrice, exchangeRate float64) float64 {
	switch m.Mode {
	case MarginPercentage:
		return basePrice * m.Value / 100
	case MarginFixedPEN:
		return m.Value / exchangeRate
	default:
		return 0
	}
}

// MarginInput is the caller's margin selection. Mode, when set, is an explicit override.
// A nil value means the field was not supplied.
type MarginInput struct {
	Mode       MarginMode
	Percentage *float64
	FixedPEN   *float64
}

// DefaultMarginMode picks percentage margin for prices at or below the policy threshold.
func DefaultMarginMode(basePrice float64, policy Policy) MarginMode {
	if basePrice <= policy.PercentageMarginThreshold {
		return MarginPercentage
	}
	return MarginFixedPEN
}

// ResolveMargin turns the caller's input into a single margin.
//
// An explicit Mode always wins; a supplied value of the other mode is ignored and reported in
// the returned notice. A single supplied value selects its own mode. When both values are
// supplied the threshold rule decides, and the notice records the conflict.
// With nothing supplied the threshold rule picks the mode and the policy supplies the value.
func ResolveMargin(basePrice float64, in MarginInput, policy Policy) (Margin, *ConflictingMarginMode) {
	var notice *ConflictingMarginMode

	mode := in.Mode
	if mode == 0 {
		switch {
		case in.Percentage != nil && in.FixedPEN != nil:
			mode = DefaultMarginMode(basePrice, policy)
			notice = &ConflictingMarginMode{BasePrice: basePrice, Chosen: mode}
		case in.Percentage != nil:
			mode = MarginPercentage
		case in.FixedPEN != nil:
			mode = MarginFixedPEN
		default:
			mode = DefaultMarginMode(basePrice, policy)
		}
	} else if (mode == MarginPercentage && in.FixedPEN != nil) || (mode == MarginFixedPEN && in.Percentage != nil) {
		notice = &ConflictingMarginMode{BasePrice: basePrice, Chosen: mode, Explicit: true}
	}

	if mode == MarginPercentage {
		if in.Percentage != nil {
			return Percent(*in.Percentage), notice
		}
		return Percent(policy.DefaultMarginPercentage), notice
	}
	if in.FixedPEN != nil {
		return FixedPEN(*in.FixedPEN), notice
	}
	return FixedPEN(policy.DefaultMarginPEN), notice
}
