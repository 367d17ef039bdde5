package pricing

// Request is the input of a single quotation.
type Request struct {
	BasePrice     float64 `json:"base_price" validate:"finite,gte=0"`
	Weight        float64 `json:"weight" validate:"finite,gte=0"`
	ExchangeRate  float64 `json:"exchange_rate" validate:"finite,gt=0"`
	Margin        Margin  `json:"margin"`
	TaxPercentage float64 `json:"tax_percentage" validate:"finite,gte=0"`
}

// NewRequest fills the defaults a caller left out. A zero exchange rate or nil tax takes the policy value.
func NewRequest(basePrice, weight, exchangeRate float64, margin MarginInput, taxPercentage *float64, policy Policy) (Request, *ConflictingMarginMode) {
	if exchangeRate == 0 {
		exchangeRate = policy.DefaultExchangeRate
	}
	tax := policy.SalesTaxPercentage
	if taxPercentage != nil {
		tax = *taxPercentage
	}

	resolved, notice := ResolveMargin(basePrice, margin, policy)
	return Request{
		BasePrice:     basePrice,
		Weight:        weight,
		ExchangeRate:  exchangeRate,
		Margin:        resolved,
		TaxPercentage: tax,
	}, notice
}

// Breakdown contains every line of a quotation plus the totals in both currencies.
type Breakdown struct {
	ShippingCost       float64 `json:"shipping_cost"`
	ProcessingFee      float64 `json:"processing_fee"`
	HandlingFee        float64 `json:"handling_fee"`
	TaxAmount          float64 `json:"tax_amount"`
	ImportTax          float64 `json:"import_tax"`
	HasImportTax       bool    `json:"has_import_tax"`
	MarginAmount       float64 `json:"margin_amount"`
	TotalUSD           float64 `json:"total_usd"`
	TotalPEN           float64 `json:"total_pen"`
	TotalWithMarginUSD float64 `json:"total_with_margin_usd"`
	TotalWithMarginPEN float64 `json:"total_with_margin_pen"`
}

// ComputeBreakdown derives the full cost breakdown of a request.
//
// A percentage margin is folded into TotalUSD. A fixed PEN margin is not: it only shows up in
// the TotalWithMargin fields. Inputs are not validated here; see ValidateRequest.
func ComputeBreakdown(req Request, policy Policy) Breakdown {
	shipping := ShippingCost(req.Weight, policy)
	taxAmount := req.BasePrice * req.TaxPercentage / 100
	duty := ImportTax(req.BasePrice, req.TaxPercentage, policy)
	marginUSD := req.Margin.AmountUSD(req.BasePrice, req.ExchangeRate)

	totalUSD := req.BasePrice + shipping + taxAmount + policy.ProcessingFee + policy.HandlingFee
	if duty.Applies {
		totalUSD += duty.Amount
	}
	if req.Margin.Mode == MarginPercentage {
		totalUSD += marginUSD
	}
	totalPEN := totalUSD * req.ExchangeRate

	withMarginUSD, withMarginPEN := totalUSD, totalPEN
	if req.Margin.Mode == MarginFixedPEN {
		withMarginPEN = totalPEN + req.Margin.Value
		withMarginUSD = totalUSD + marginUSD
	}

	return Breakdown{
		ShippingCost:       shipping,
		ProcessingFee:      policy.ProcessingFee,
		HandlingFee:        policy.HandlingFee,
		TaxAmount:          taxAmount,
		ImportTax:          duty.Amount,
		HasImportTax:       duty.Applies,
		MarginAmount:       marginUSD,
		TotalUSD:           totalUSD,
		TotalPEN:           totalPEN,
		TotalWithMarginUSD: withMarginUSD,
		TotalWithMarginPEN: withMarginPEN,
	}
}
