package quotes

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Simplici0/cotizador/internal/money"
	"github.com/Simplici0/cotizador/internal/obs"
	"github.com/Simplici0/cotizador/internal/pricing"
)

const (
	kindSingle  = "single"
	kindRequest = "request"
	kindDraft   = "draft"
)

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Store         *Store
	Persister     Persister
	Metrics       *obs.QuoteMetrics
	Logger        zerolog.Logger
	DraftDebounce time.Duration
	Now           func() time.Time
}

// Service prices quotations against the stored policy and hands results to persistence.
type Service struct {
	store     *Store
	persister Persister
	metrics   *obs.QuoteMetrics
	logger    zerolog.Logger
	drafts    *DraftBook
	now       func() time.Time
}

// NewService validates the configuration and returns a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("quotes: store is required")
	}
	if cfg.Persister == nil {
		cfg.Persister = SyncPersister{Store: cfg.Store}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:     cfg.Store,
		persister: cfg.Persister,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		drafts:    NewDraftBook(cfg.Store, cfg.DraftDebounce, cfg.Logger),
		now:       cfg.Now,
	}, nil
}

// Display holds the formatted totals shown to users.
type Display struct {
	TotalUSD           string `json:"total_usd"`
	TotalPEN           string `json:"total_pen"`
	TotalWithMarginUSD string `json:"total_with_margin_usd"`
	TotalWithMarginPEN string `json:"total_with_margin_pen"`
}

func displayOf(b pricing.Breakdown) Display {
	return Display{
		TotalUSD:           money.FormatUSD(b.TotalUSD),
		TotalPEN:           money.FormatPEN(b.TotalPEN),
		TotalWithMarginUSD: money.FormatUSD(b.TotalWithMarginUSD),
		TotalWithMarginPEN: money.FormatPEN(b.TotalWithMarginPEN),
	}
}

// CalcInput is a single-product pricing request. Nil pointers mean "not supplied".
type CalcInput struct {
	BasePrice        float64            `json:"base_price"`
	Weight           float64            `json:"weight"`
	ExchangeRate     float64            `json:"exchange_rate"`
	MarginMode       pricing.MarginMode `json:"margin_mode"`
	MarginPercentage *float64           `json:"margin_percentage"`
	MarginPEN        *float64           `json:"margin_pen"`
	TaxPercentage    *float64           `json:"tax_percentage"`
}

// CalcResult is the priced single-product request.
type CalcResult struct {
	Request   pricing.Request   `json:"request"`
	Breakdown pricing.Breakdown `json:"breakdown"`
	Display   Display           `json:"display"`
	Notices   []string          `json:"notices,omitempty"`
}

// Policy returns the stored pricing policy.
func (s *Service) Policy(ctx context.Context) (pricing.Policy, error) {
	return s.store.Policy(ctx)
}

// UpdatePolicy validates and stores a new pricing policy.
func (s *Service) UpdatePolicy(ctx context.Context, p pricing.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := s.store.UpdatePolicy(ctx, p); err != nil {
		return err
	}
	s.logger.Info().Float64("default_exchange_rate", p.DefaultExchangeRate).Msg("pricing policy updated")
	return nil
}

// Calculate prices one product with the full breakdown.
func (s *Service) Calculate(ctx context.Context, in CalcInput) (CalcResult, error) {
	policy, err := s.store.Policy(ctx)
	if err != nil {
		return CalcResult{}, err
	}

	req, notice := pricing.NewRequest(in.BasePrice, in.Weight, in.ExchangeRate, pricing.MarginInput{
		Mode:       in.MarginMode,
		Percentage: in.MarginPercentage,
		FixedPEN:   in.MarginPEN,
	}, in.TaxPercentage, policy)
	if err := pricing.ValidateRequest(req); err != nil {
		s.reject(kindSingle)
		return CalcResult{}, err
	}

	b := pricing.ComputeBreakdown(req, policy)
	s.count(kindSingle)

	return CalcResult{
		Request:   req,
		Breakdown: b,
		Display:   displayOf(b),
		Notices:   s.notices(notice),
	}, nil
}

// QuoteInput is a multi-product purchase request quotation.
type QuoteInput struct {
	Title               string             `json:"title"`
	Notes               string             `json:"notes"`
	Items               []pricing.LineItem `json:"items"`
	ExchangeRate        float64            `json:"exchange_rate"`
	AdditionalProfitUSD float64            `json:"additional_profit_usd"`
	FinalPriceUSD       *float64           `json:"final_price_usd"`
	TaxPercentage       *float64           `json:"tax_percentage"`
}

// QuoteResult is the stored quotation plus anything the user should be warned about.
type QuoteResult struct {
	Quotation       Snapshot                 `json:"quotation"`
	Display         Display                  `json:"display"`
	FinalPriceUSD   string                   `json:"final_price_usd_display"`
	FinalPricePEN   string                   `json:"final_price_pen_display"`
	Warnings        []string                 `json:"warnings,omitempty"`
	MarginViolation *pricing.MarginViolation `json:"margin_violation,omitempty"`
}

// QuoteRequest prices a purchase request's line items and persists the snapshot.
//
// The final price follows the simplified line-item formula, which carries no sales or import
// tax. The full breakdown over the summed items is stored next to it for reference. A final
// price override below total cost is replaced by the formula price and reported as a warning.
func (s *Service) QuoteRequest(ctx context.Context, purchaseRequestID string, in QuoteInput) (QuoteResult, error) {
	if purchaseRequestID == "" {
		return QuoteResult{}, &pricing.ValidationError{Fields: []pricing.FieldError{{Field: "purchase_request_id", Reason: "is required"}}}
	}

	policy, err := s.store.Policy(ctx)
	if err != nil {
		return QuoteResult{}, err
	}

	rate := in.ExchangeRate
	if rate == 0 {
		rate = policy.DefaultExchangeRate
	}
	if err := pricing.ValidateLineItems(in.Items, rate, in.AdditionalProfitUSD); err != nil {
		s.reject(kindRequest)
		return QuoteResult{}, err
	}
	if p := in.FinalPriceUSD; p != nil && (math.IsNaN(*p) || math.IsInf(*p, 0) || *p < 0) {
		s.reject(kindRequest)
		return QuoteResult{}, &pricing.ValidationError{Fields: []pricing.FieldError{{Field: "final_price_usd", Reason: "must be a non-negative number"}}}
	}

	totals := pricing.AggregateLineItems(in.Items, policy, rate, in.AdditionalProfitUSD)

	tax := policy.SalesTaxPercentage
	if in.TaxPercentage != nil {
		tax = *in.TaxPercentage
	}
	margin := pricing.FixedPEN(totals.TotalProfitUSD * rate)
	full := totals.Request(margin, tax)
	if err := pricing.ValidateRequest(full); err != nil {
		s.reject(kindRequest)
		return QuoteResult{}, err
	}

	result := QuoteResult{}
	final, err := totals.ResolveFinalPrice(in.FinalPriceUSD)
	if err != nil {
		var violation *pricing.MarginViolation
		if !errors.As(err, &violation) {
			return QuoteResult{}, err
		}
		result.MarginViolation = violation
		result.Warnings = append(result.Warnings, violation.Error())
		if s.metrics != nil {
			s.metrics.MarginViolations.Inc()
		}
		s.logger.Warn().
			Str("purchase_request_id", purchaseRequestID).
			Float64("requested_usd", violation.RequestedUSD).
			Float64("minimum_usd", violation.MinimumUSD).
			Msg("final price below total cost; recomputed")
	}

	breakdown := pricing.ComputeBreakdown(full, policy)

	snap := Snapshot{
		ID:                uuid.NewString(),
		PurchaseRequestID: purchaseRequestID,
		CreatedAt:         s.now().UTC(),
		Title:             in.Title,
		Notes:             in.Notes,
		ExchangeRate:      rate,
		Margin:            margin,
		Items:             in.Items,
		Totals:            totals,
		Breakdown:         breakdown,
		FinalPriceUSD:     final,
		FinalPricePEN:     final * rate,
	}

	if err := s.persister.Persist(ctx, snap); err != nil {
		s.persisted("error")
		return QuoteResult{}, fmt.Errorf("persist quotation: %w", err)
	}
	s.persisted("ok")
	s.count(kindRequest)

	result.Quotation = snap
	result.Display = displayOf(breakdown)
	result.FinalPriceUSD = money.FormatUSD(snap.FinalPriceUSD)
	result.FinalPricePEN = money.FormatPEN(snap.FinalPricePEN)
	return result, nil
}

// Latest returns the stored snapshot of a purchase request without recalculating it.
func (s *Service) Latest(ctx context.Context, purchaseRequestID string) (Snapshot, error) {
	return s.store.Latest(ctx, purchaseRequestID)
}

// List returns stored quotations, newest first.
func (s *Service) List(ctx context.Context, query string) ([]ListItem, error) {
	return s.store.List(ctx, query)
}

// ApplyDraft edits a live draft and returns its fresh breakdown.
func (s *Service) ApplyDraft(ctx context.Context, id string, u pricing.DraftUpdate) (DraftResult, error) {
	policy, err := s.store.Policy(ctx)
	if err != nil {
		return DraftResult{}, err
	}
	res, err := s.drafts.Apply(ctx, id, policy, u)
	if err != nil {
		s.reject(kindDraft)
		return DraftResult{}, err
	}
	s.count(kindDraft)
	if res.Conflict != nil && s.metrics != nil {
		s.metrics.MarginConflicts.Inc()
	}
	return res, nil
}

// Draft returns the current state of a draft.
func (s *Service) Draft(ctx context.Context, id string) (DraftResult, error) {
	policy, err := s.store.Policy(ctx)
	if err != nil {
		return DraftResult{}, err
	}
	return s.drafts.Get(ctx, id, policy)
}

// Close writes out pending draft saves.
func (s *Service) Close() {
	s.drafts.Close()
}

func (s *Service) notices(notice *pricing.ConflictingMarginMode) []string {
	if notice == nil {
		return nil
	}
	if s.metrics != nil {
		s.metrics.MarginConflicts.Inc()
	}
	return []string{notice.String()}
}

func (s *Service) count(kind string) {
	if s.metrics != nil {
		s.metrics.Calculations.WithLabelValues(kind).Inc()
	}
}

func (s *Service) reject(kind string) {
	if s.metrics != nil {
		s.metrics.Rejected.WithLabelValues(kind).Inc()
	}
}

func (s *Service) persisted(result string) {
	if s.metrics != nil {
		s.metrics.Persisted.WithLabelValues(result).Inc()
	}
}
