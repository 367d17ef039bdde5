package quotes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/cotizador/internal/obs"
	"github.com/Simplici0/cotizador/internal/pricing"
)

type failingPersister struct{ err error }

func (p failingPersister) Persist(context.Context, Snapshot) error { return p.err }

func TestServiceCalculate_FixedMarginScenario(t *testing.T) {
	svc := newTestService(t, newTestStore(t), nil)

	res, err := svc.Calculate(context.Background(), CalcInput{
		BasePrice:     250,
		Weight:        2,
		ExchangeRate:  3.7,
		MarginPEN:     ptr(20),
		TaxPercentage: ptr(7),
	})
	require.NoError(t, err)

	require.Equal(t, pricing.MarginFixedPEN, res.Request.Margin.Mode)
	require.InDelta(t, 352.35, res.Breakdown.TotalUSD, 1e-9)
	require.Equal(t, "$352.35", res.Display.TotalUSD)
	require.Equal(t, "S/. 1,303.70", res.Display.TotalPEN)
	require.Equal(t, "S/. 1,323.70", res.Display.TotalWithMarginPEN)
	require.Equal(t, "$357.76", res.Display.TotalWithMarginUSD)
	require.Empty(t, res.Notices)
}

func TestServiceCalculate_DefaultsAndConflictNotice(t *testing.T) {
	svc := newTestService(t, newTestStore(t), nil)

	res, err := svc.Calculate(context.Background(), CalcInput{
		BasePrice:        30,
		Weight:           0.5,
		MarginPercentage: ptr(10),
		MarginPEN:        ptr(15),
	})
	require.NoError(t, err)

	require.Equal(t, 3.70, res.Request.ExchangeRate)
	require.Equal(t, 7.0, res.Request.TaxPercentage)
	require.Equal(t, pricing.Percent(10), res.Request.Margin)
	require.InDelta(t, 54.10, res.Breakdown.TotalUSD, 1e-9)
	require.Equal(t, "S/. 200.17", res.Display.TotalPEN)
	require.Len(t, res.Notices, 1)
}

func TestServiceCalculate_RejectsInvalidInput(t *testing.T) {
	svc := newTestService(t, newTestStore(t), nil)

	_, err := svc.Calculate(context.Background(), CalcInput{BasePrice: -10, ExchangeRate: -1})

	var verr *pricing.ValidationError
	require.ErrorAs(t, err, &verr)
	require.True(t, verr.Has("base_price"))
	require.True(t, verr.Has("exchange_rate"))
}

func TestServiceQuoteRequest_PersistsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := newTestService(t, store, nil)

	res, err := svc.QuoteRequest(ctx, "pr-42", QuoteInput{
		Title: "Pedido Lima",
		Items: []pricing.LineItem{
			{Name: "Audífonos", Price: 40, Weight: 0.4, ProfitAmountPEN: 18.5},
			{Name: "Funda", Price: 60, Weight: 0.9, ProfitAmountPEN: 18.5},
		},
		AdditionalProfitUSD: 2,
	})
	require.NoError(t, err)
	require.Empty(t, res.Warnings)
	require.Nil(t, res.MarginViolation)

	snap := res.Quotation
	require.NotEmpty(t, snap.ID)
	require.Equal(t, 3.70, snap.ExchangeRate)
	require.InDelta(t, 100+1.3*7+10+2, snap.FinalPriceUSD, 1e-9)
	require.InDelta(t, snap.FinalPriceUSD*3.7, snap.FinalPricePEN, 1e-9)
	require.Equal(t, pricing.MarginFixedPEN, snap.Margin.Mode)
	require.InDelta(t, 12*3.7, snap.Margin.Value, 1e-9)
	require.InDelta(t, 12, snap.Breakdown.TotalWithMarginUSD-snap.Breakdown.TotalUSD, 1e-9)

	stored, err := svc.Latest(ctx, "pr-42")
	require.NoError(t, err)
	require.Equal(t, snap.ID, stored.ID)
	require.Equal(t, snap.FinalPriceUSD, stored.FinalPriceUSD)
	require.Equal(t, "Pedido Lima", stored.Title)
}

func TestServiceQuoteRequest_FinalPriceBelowCostIsRecomputed(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics := obs.NewQuoteMetrics("test", reg)

	store := newTestStore(t)
	svc, err := NewService(ServiceConfig{Store: store, Metrics: metrics, Logger: zerolog.Nop()})
	require.NoError(t, err)

	res, err := svc.QuoteRequest(ctx, "pr-1", QuoteInput{
		Items:         []pricing.LineItem{{Price: 100, Weight: 2, ProfitAmountPEN: 37}},
		FinalPriceUSD: ptr(90),
	})
	require.NoError(t, err)

	require.NotNil(t, res.MarginViolation)
	require.Len(t, res.Warnings, 1)
	require.InDelta(t, 124, res.Quotation.FinalPriceUSD, 1e-9)
	require.InDelta(t, 114, res.MarginViolation.MinimumUSD, 1e-9)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.MarginViolations))

	stored, err := store.Latest(ctx, "pr-1")
	require.NoError(t, err)
	require.InDelta(t, 124, stored.FinalPriceUSD, 1e-9)
}

func TestServiceQuoteRequest_AcceptsOverrideAboveCost(t *testing.T) {
	svc := newTestService(t, newTestStore(t), nil)

	res, err := svc.QuoteRequest(context.Background(), "pr-1", QuoteInput{
		Items:         []pricing.LineItem{{Price: 100, Weight: 2}},
		FinalPriceUSD: ptr(150),
	})
	require.NoError(t, err)
	require.Nil(t, res.MarginViolation)
	require.Equal(t, 150.0, res.Quotation.FinalPriceUSD)
	require.Equal(t, "$150.00", res.FinalPriceUSD)
}

func TestServiceQuoteRequest_Validation(t *testing.T) {
	svc := newTestService(t, newTestStore(t), nil)
	ctx := context.Background()

	var verr *pricing.ValidationError

	_, err := svc.QuoteRequest(ctx, "", QuoteInput{Items: []pricing.LineItem{{Price: 1}}})
	require.ErrorAs(t, err, &verr)

	_, err = svc.QuoteRequest(ctx, "pr-1", QuoteInput{})
	require.ErrorAs(t, err, &verr)
	require.True(t, verr.Has("items"))

	_, err = svc.QuoteRequest(ctx, "pr-1", QuoteInput{Items: []pricing.LineItem{{Price: 1}}, FinalPriceUSD: ptr(-1)})
	require.ErrorAs(t, err, &verr)
	require.True(t, verr.Has("final_price_usd"))

	_, err = svc.QuoteRequest(ctx, "pr-1", QuoteInput{Items: []pricing.LineItem{{Price: 1}}, TaxPercentage: ptr(-7)})
	require.ErrorAs(t, err, &verr)
	require.True(t, verr.Has("tax_percentage"))
}

func TestServiceQuoteRequest_PersistFailure(t *testing.T) {
	boom := errors.New("redis down")
	svc := newTestService(t, newTestStore(t), failingPersister{err: boom})

	_, err := svc.QuoteRequest(context.Background(), "pr-1", QuoteInput{Items: []pricing.LineItem{{Price: 10}}})
	require.ErrorIs(t, err, boom)
}

func TestServiceUpdatePolicy(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newTestStore(t), nil)

	p := pricing.DefaultPolicy()
	p.DefaultExchangeRate = 0
	var verr *pricing.ValidationError
	require.ErrorAs(t, svc.UpdatePolicy(ctx, p), &verr)

	p.DefaultExchangeRate = 4
	require.NoError(t, svc.UpdatePolicy(ctx, p))

	res, err := svc.Calculate(ctx, CalcInput{BasePrice: 10})
	require.NoError(t, err)
	require.Equal(t, 4.0, res.Request.ExchangeRate)
}

func TestServiceDrafts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := newTestService(t, store, nil)

	res, err := svc.ApplyDraft(ctx, "d-1", pricing.DraftUpdate{
		Fields: []pricing.Field{pricing.FieldBasePrice, pricing.FieldWeight, pricing.FieldMarginPercentage},
		Values: pricing.DraftValues{BasePrice: 30, Weight: 0.5, MarginPercentage: 10},
	})
	require.NoError(t, err)
	require.InDelta(t, 54.10, res.Breakdown.TotalUSD, 1e-9)

	_, err = svc.ApplyDraft(ctx, "d-1", pricing.DraftUpdate{
		Fields: []pricing.Field{pricing.FieldBasePrice},
		Values: pricing.DraftValues{BasePrice: -5},
	})
	var verr *pricing.ValidationError
	require.ErrorAs(t, err, &verr)

	current, err := svc.Draft(ctx, "d-1")
	require.NoError(t, err)
	require.Equal(t, 30.0, current.Draft.BasePrice)

	require.Eventually(t, func() bool {
		_, err := store.Draft(ctx, "d-1")
		return err == nil
	}, time.Second, 10*time.Millisecond)
}

func TestServiceCalculate_ExplicitModeReportsIgnoredValue(t *testing.T) {
	svc := newTestService(t, newTestStore(t), nil)

	res, err := svc.Calculate(context.Background(), CalcInput{
		BasePrice:        30,
		Weight:           0.5,
		MarginMode:       pricing.MarginFixedPEN,
		MarginPercentage: ptr(10),
	})
	require.NoError(t, err)
	require.Equal(t, pricing.FixedPEN(0), res.Request.Margin)
	require.Len(t, res.Notices, 1)
	require.Contains(t, res.Notices[0], "ignored")
}
