package pricing

// LineItem is one product of a purchase request.
type LineItem struct {
	Name            string  `json:"name,omitempty"`
	Price           float64 `json:"price" validate:"finite,gte=0"`
	Weight          float64 `json:"weight" validate:"finite,gte=0"`
	ProfitAmountPEN float64 `json:"profit_amount_pen" validate:"finite,gte=0"`
}

// LineItemTotals is the simplified request quote over a set of line items.
// Unlike ComputeBreakdown it carries no sales tax and no import tax.
type LineItemTotals struct {
	BasePrice           float64 `json:"base_price"`
	Weight              float64 `json:"weight"`
	ShippingCost        float64 `json:"shipping_cost"`
	ExchangeRate        float64 `json:"exchange_rate"`
	ProductsProfitUSD   float64 `json:"products_profit_usd"`
	AdditionalProfitUSD float64 `json:"additional_profit_usd"`
	TotalProfitUSD      float64 `json:"total_profit_usd"`
	FinalPriceUSD       float64 `json:"final_price_usd"`
}

// AggregateLineItems sums prices, weights and per-product profits and prices the request.
func AggregateLineItems(items []LineItem, policy Policy, exchangeRate, additionalProfitUSD float64) LineItemTotals {
	var basePrice, weight, profitPEN float64
	for _, item := range items {
		basePrice += item.Price
		weight += item.Weight
		profitPEN += item.ProfitAmountPEN
	}

	shipping := ShippingCost(weight, policy)
	productsProfitUSD := profitPEN / exchangeRate

	return LineItemTotals{
		BasePrice:           basePrice,
		Weight:              weight,
		ShippingCost:        shipping,
		ExchangeRate:        exchangeRate,
		ProductsProfitUSD:   productsProfitUSD,
		AdditionalProfitUSD: additionalProfitUSD,
		TotalProfitUSD:      productsProfitUSD + additionalProfitUSD,
		FinalPriceUSD:       basePrice + shipping + productsProfitUSD + additionalProfitUSD,
	}
}

// TotalCostUSD is the floor the final price may never go below.
func (t LineItemTotals) TotalCostUSD() float64 {
	return t.BasePrice + t.ShippingCost
}

// FinalPricePEN converts the final price at the request's exchange rate.
func (t LineItemTotals) FinalPricePEN() float64 {
	return t.FinalPriceUSD * t.ExchangeRate
}

// ResolveFinalPrice applies a caller-supplied final price. Without an override the formula price is
// used. An override below the total cost is discarded; the formula price is returned together
// with a *MarginViolation describing the rejected value.
func (t LineItemTotals) ResolveFinalPrice(override *float64) (float64, error) {
	if override == nil {
		return t.FinalPriceUSD, nil
	}
	if floor := t.TotalCostUSD(); *override < floor {
		return t.FinalPriceUSD, &MarginViolation{
			RequestedUSD:  *override,
			MinimumUSD:    floor,
			RecomputedUSD: t.FinalPriceUSD,
		}
	}
	return *override, nil
}

// Request re-expresses the summed line items as a single quotation for ComputeBreakdown.
func (t LineItemTotals) Request(margin Margin, taxPercentage float64) Request {
	return Request{
		BasePrice:     t.BasePrice,
		Weight:        t.Weight,
		ExchangeRate:  t.ExchangeRate,
		Margin:        margin,
		TaxPercentage: taxPercentage,
	}
}
