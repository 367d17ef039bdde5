package pricing

// Policy holds the rates, fees and thresholds that parameterize every calculation.
// Amounts are USD unless the field name says otherwise; percentages are 0-100.
type Policy struct {
	ShippingRatePerKg         float64 `json:"shipping_rate_per_kg" validate:"finite,gte=0"`
	MinimumShippingCost       float64 `json:"minimum_shipping_cost" validate:"finite,gte=0"`
	ProcessingFee             float64 `json:"processing_fee" validate:"finite,gte=0"`
	HandlingFee               float64 `json:"handling_fee" validate:"finite,gte=0"`
	SalesTaxPercentage        float64 `json:"sales_tax_percentage" validate:"finite,gte=0"`
	ImportTaxPercentage       float64 `json:"import_tax_percentage" validate:"finite,gte=0"`
	ImportTaxThreshold        float64 `json:"import_tax_threshold" validate:"finite,gte=0"`
	DefaultMarginPercentage   float64 `json:"default_margin_percentage" validate:"finite,gte=0"`
	DefaultMarginPEN          float64 `json:"default_margin_pen" validate:"finite,gte=0"`
	PercentageMarginThreshold float64 `json:"percentage_margin_threshold" validate:"finite,gte=0"`
	DefaultExchangeRate       float64 `json:"default_exchange_rate" validate:"finite,gt=0"`
}

const (
	defaultShippingRatePerKg         = 7.00
	defaultMinimumShippingCost       = 7.00
	defaultProcessingFee             = 7.00
	defaultHandlingFee               = 5.00
	defaultSalesTaxPercentage        = 7.0
	defaultImportTaxPercentage       = 22.0
	defaultImportTaxThreshold        = 200.00
	defaultMarginPercentage          = 10.0
	defaultMarginPEN                 = 0.0
	defaultPercentageMarginThreshold = 50.00
	defaultExchangeRate              = 3.70
)

// DefaultPolicy returns the standard policy table.
func DefaultPolicy() Policy {
	return Policy{
		ShippingRatePerKg:         defaultShippingRatePerKg,
		MinimumShippingCost:       defaultMinimumShippingCost,
		ProcessingFee:             defaultProcessingFee,
		HandlingFee:               defaultHandlingFee,
		SalesTaxPercentage:        defaultSalesTaxPercentage,
		ImportTaxPercentage:       defaultImportTaxPercentage,
		ImportTaxThreshold:        defaultImportTaxThreshold,
		DefaultMarginPercentage:   defaultMarginPercentage,
		DefaultMarginPEN:          defaultMarginPEN,
		PercentageMarginThreshold: defaultPercentageMarginThreshold,
		DefaultExchangeRate:       defaultExchangeRate,
	}
}

// Validate reports every field that breaks the policy invariants.
func (p Policy) Validate() error {
	return validateStruct(p)
}
