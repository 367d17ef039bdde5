package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	require.InDeltaf(t, want, got, 1e-9, "%s = %v, want %v", name, got, want)
}

func ptr(v float64) *float64 { return &v }

func TestShippingCost_FloorBelowOneKilogram(t *testing.T) {
	policy := DefaultPolicy()
	for _, weight := range []float64{0, 0.25, 0.5, 0.999, -3} {
		nearlyEqual(t, "shipping", ShippingCost(weight, policy), 7.00)
	}
}

func TestShippingCost_LinearAboveFloor(t *testing.T) {
	policy := DefaultPolicy()
	for _, weight := range []float64{1, 1.5, 2, 10} {
		nearlyEqual(t, "shipping", ShippingCost(weight, policy), weight*7.00)
	}
}

func TestImportTax_ThresholdIsStrict(t *testing.T) {
	policy := DefaultPolicy()

	atThreshold := ImportTax(200.00, 7, policy)
	require.False(t, atThreshold.Applies)
	nearlyEqual(t, "amount at threshold", atThreshold.Amount, 0)

	above := ImportTax(200.01, 7, policy)
	require.True(t, above.Applies)
	require.Greater(t, above.Amount, 0.0)
}

func TestImportTax_CompoundsOnTaxInclusivePrice(t *testing.T) {
	duty := ImportTax(300, 7, DefaultPolicy())

	require.True(t, duty.Applies)
	nearlyEqual(t, "import tax", duty.Amount, 70.62)
}

func TestDefaultMarginMode_Boundary(t *testing.T) {
	policy := DefaultPolicy()

	require.Equal(t, MarginPercentage, DefaultMarginMode(50, policy))
	require.Equal(t, MarginFixedPEN, DefaultMarginMode(50.01, policy))
}

func TestResolveMargin(t *testing.T) {
	policy := DefaultPolicy()

	t.Run("nothing supplied uses policy defaults", func(t *testing.T) {
		low, notice := ResolveMargin(20, MarginInput{}, policy)
		require.Nil(t, notice)
		require.Equal(t, Percent(10), low)

		high, notice := ResolveMargin(80, MarginInput{}, policy)
		require.Nil(t, notice)
		require.Equal(t, FixedPEN(0), high)
	})

	t.Run("single value selects its own mode", func(t *testing.T) {
		m, notice := ResolveMargin(500, MarginInput{Percentage: ptr(15)}, policy)
		require.Nil(t, notice)
		require.Equal(t, Percent(15), m)

		m, notice = ResolveMargin(10, MarginInput{FixedPEN: ptr(25)}, policy)
		require.Nil(t, notice)
		require.Equal(t, FixedPEN(25), m)
	})

	t.Run("both values resolved by threshold", func(t *testing.T) {
		in := MarginInput{Percentage: ptr(12), FixedPEN: ptr(30)}

		low, notice := ResolveMargin(50, in, policy)
		require.NotNil(t, notice)
		require.Equal(t, MarginPercentage, notice.Chosen)
		require.Equal(t, Percent(12), low)

		high, notice := ResolveMargin(50.01, in, policy)
		require.NotNil(t, notice)
		require.Equal(t, MarginFixedPEN, notice.Chosen)
		require.Equal(t, FixedPEN(30), high)
	})

	t.Run("explicit mode wins", func(t *testing.T) {
		m, notice := ResolveMargin(10, MarginInput{Mode: MarginFixedPEN, FixedPEN: ptr(30)}, policy)
		require.Nil(t, notice)
		require.Equal(t, FixedPEN(30), m)

		m, notice = ResolveMargin(900, MarginInput{Mode: MarginPercentage}, policy)
		require.Nil(t, notice)
		require.Equal(t, Percent(10), m)
	})

	t.Run("explicit mode reports the ignored value", func(t *testing.T) {
		m, notice := ResolveMargin(10, MarginInput{Mode: MarginFixedPEN, Percentage: ptr(12)}, policy)
		require.Equal(t, FixedPEN(policy.DefaultMarginPEN), m)
		require.NotNil(t, notice)
		require.True(t, notice.Explicit)
		require.Equal(t, MarginFixedPEN, notice.Chosen)
		require.Contains(t, notice.String(), "percentage margin value is ignored")

		m, notice = ResolveMargin(900, MarginInput{Mode: MarginPercentage, Percentage: ptr(8), FixedPEN: ptr(30)}, policy)
		require.Equal(t, Percent(8), m)
		require.NotNil(t, notice)
		require.Contains(t, notice.String(), "fixed_pen margin value is ignored")
	})
}

func TestComputeBreakdown_PercentageMarginWithoutImportTax(t *testing.T) {
	req := Request{
		BasePrice:     30,
		Weight:        0.5,
		ExchangeRate:  3.7,
		Margin:        Percent(10),
		TaxPercentage: 7,
	}

	b := ComputeBreakdown(req, DefaultPolicy())

	nearlyEqual(t, "shipping", b.ShippingCost, 7.00)
	nearlyEqual(t, "tax", b.TaxAmount, 2.10)
	nearlyEqual(t, "margin", b.MarginAmount, 3.00)
	require.False(t, b.HasImportTax)
	nearlyEqual(t, "import tax", b.ImportTax, 0)
	nearlyEqual(t, "totalUSD", b.TotalUSD, 54.10)
	require.InDelta(t, 200.17, b.TotalPEN, 0.005)
	require.Equal(t, b.TotalUSD, b.TotalWithMarginUSD)
	require.Equal(t, b.TotalPEN, b.TotalWithMarginPEN)
}

func TestComputeBreakdown_FixedMarginWithImportTax(t *testing.T) {
	req := Request{
		BasePrice:     250,
		Weight:        2,
		ExchangeRate:  3.7,
		Margin:        FixedPEN(20),
		TaxPercentage: 7,
	}

	b := ComputeBreakdown(req, DefaultPolicy())

	nearlyEqual(t, "shipping", b.ShippingCost, 14.00)
	nearlyEqual(t, "tax", b.TaxAmount, 17.50)
	require.True(t, b.HasImportTax)
	nearlyEqual(t, "import tax", b.ImportTax, 58.85)
	nearlyEqual(t, "totalUSD", b.TotalUSD, 352.35)
	require.InDelta(t, 1303.70, b.TotalPEN, 0.005)
	require.InDelta(t, 1323.70, b.TotalWithMarginPEN, 0.005)
	require.InDelta(t, 357.76, b.TotalWithMarginUSD, 0.005)
	nearlyEqual(t, "margin", b.MarginAmount, 20/3.7)
}

func TestComputeBreakdown_TotalPENIsExactConversion(t *testing.T) {
	policy := DefaultPolicy()
	cases := []Request{
		{BasePrice: 12.34, Weight: 0.2, ExchangeRate: 3.81, Margin: Percent(10), TaxPercentage: 7},
		{BasePrice: 199.99, Weight: 3.3, ExchangeRate: 3.75, Margin: FixedPEN(40), TaxPercentage: 18},
		{BasePrice: 1234.5, Weight: 12, ExchangeRate: 3.69, Margin: Percent(5), TaxPercentage: 0},
	}
	for _, req := range cases {
		b := ComputeBreakdown(req, policy)
		require.Equal(t, b.TotalUSD*req.ExchangeRate, b.TotalPEN)
	}
}

func TestComputeBreakdown_ZeroTaxOverride(t *testing.T) {
	req, notice := NewRequest(300, 1, 0, MarginInput{Percentage: ptr(0)}, ptr(0), DefaultPolicy())
	require.Nil(t, notice)
	require.Equal(t, 3.70, req.ExchangeRate)

	b := ComputeBreakdown(req, DefaultPolicy())

	nearlyEqual(t, "tax", b.TaxAmount, 0)
	nearlyEqual(t, "import tax", b.ImportTax, 66)
	nearlyEqual(t, "totalUSD", b.TotalUSD, 300+7+7+5+66)
}

func TestComputeBreakdown_IsIdempotent(t *testing.T) {
	req := Request{BasePrice: 80, Weight: 1.2, ExchangeRate: 3.7, Margin: FixedPEN(15), TaxPercentage: 7}
	require.Equal(t, ComputeBreakdown(req, DefaultPolicy()), ComputeBreakdown(req, DefaultPolicy()))
}

func TestAggregateLineItems(t *testing.T) {
	items := []LineItem{
		{Price: 40, Weight: 0.4, ProfitAmountPEN: 18.5},
		{Price: 60, Weight: 0.9, ProfitAmountPEN: 18.5},
	}

	totals := AggregateLineItems(items, DefaultPolicy(), 3.7, 2)

	nearlyEqual(t, "base", totals.BasePrice, 100)
	nearlyEqual(t, "weight", totals.Weight, 1.3)
	nearlyEqual(t, "shipping", totals.ShippingCost, 1.3*7)
	nearlyEqual(t, "products profit", totals.ProductsProfitUSD, 10)
	nearlyEqual(t, "total profit", totals.TotalProfitUSD, 12)
	nearlyEqual(t, "final", totals.FinalPriceUSD, 100+1.3*7+10+2)
	nearlyEqual(t, "final pen", totals.FinalPricePEN(), totals.FinalPriceUSD*3.7)
}

func TestAggregateLineItems_OmitsSalesAndImportTax(t *testing.T) {
	totals := AggregateLineItems([]LineItem{{Price: 500, Weight: 2}}, DefaultPolicy(), 3.7, 0)

	nearlyEqual(t, "final", totals.FinalPriceUSD, 514)

	full := ComputeBreakdown(totals.Request(Percent(0), 7), DefaultPolicy())
	require.True(t, full.HasImportTax)
	require.Greater(t, full.TotalUSD, totals.FinalPriceUSD)
}

func TestResolveFinalPrice_CostFloorGuard(t *testing.T) {
	totals := AggregateLineItems([]LineItem{{Price: 100, Weight: 2, ProfitAmountPEN: 37}}, DefaultPolicy(), 3.7, 0)
	floor := totals.TotalCostUSD()
	nearlyEqual(t, "floor", floor, 114)

	price, err := totals.ResolveFinalPrice(nil)
	require.NoError(t, err)
	nearlyEqual(t, "formula", price, 124)

	price, err = totals.ResolveFinalPrice(ptr(floor))
	require.NoError(t, err)
	nearlyEqual(t, "at floor", price, floor)

	price, err = totals.ResolveFinalPrice(ptr(150))
	require.NoError(t, err)
	nearlyEqual(t, "above floor", price, 150)

	price, err = totals.ResolveFinalPrice(ptr(100))
	var violation *MarginViolation
	require.ErrorAs(t, err, &violation)
	nearlyEqual(t, "recomputed", price, 124)
	nearlyEqual(t, "violation minimum", violation.MinimumUSD, 114)
	nearlyEqual(t, "violation requested", violation.RequestedUSD, 100)
}

func TestValidateRequest(t *testing.T) {
	valid := Request{BasePrice: 10, Weight: 1, ExchangeRate: 3.7, Margin: Percent(10), TaxPercentage: 7}
	require.NoError(t, ValidateRequest(valid))

	bad := Request{BasePrice: -1, Weight: math.NaN(), ExchangeRate: 0, Margin: FixedPEN(math.Inf(1)), TaxPercentage: 7}
	err := ValidateRequest(bad)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.True(t, verr.Has("base_price"))
	require.True(t, verr.Has("weight"))
	require.True(t, verr.Has("exchange_rate"))
	require.True(t, verr.Has("margin.value"))
	require.False(t, verr.Has("tax_percentage"))
}

func TestValidateLineItems(t *testing.T) {
	require.NoError(t, ValidateLineItems([]LineItem{{Price: 1}}, 3.7, 0))

	err := ValidateLineItems([]LineItem{{Price: 1}, {Price: -5}}, -1, 0)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.True(t, verr.Has("items[1].price"))
	require.True(t, verr.Has("exchange_rate"))

	err = ValidateLineItems(nil, 3.7, 0)
	require.ErrorAs(t, err, &verr)
	require.True(t, verr.Has("items"))
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	policy := DefaultPolicy()
	policy.DefaultExchangeRate = 0
	policy.HandlingFee = -1

	var verr *ValidationError
	require.ErrorAs(t, policy.Validate(), &verr)
	require.Len(t, verr.Fields, 2)
}
