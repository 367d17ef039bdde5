package quotes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Simplici0/cotizador/internal/pricing"
)

// ErrNotFound is returned when no quotation, draft or policy row matches.
var ErrNotFound = errors.New("quotes: not found")

const timestampLayout = "2006-01-02 15:04:05.000"

// Store persists policies, quotation snapshots and drafts in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore wraps an already migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Policy loads the singleton pricing policy.
func (s *Store) Policy(ctx context.Context) (pricing.Policy, error) {
	var p pricing.Policy
	err := s.db.QueryRowContext(ctx, `
		SELECT
			shipping_rate_per_kg,
			minimum_shipping_cost,
			processing_fee,
			handling_fee,
			sales_tax_percentage,
			import_tax_percentage,
			import_tax_threshold,
			default_margin_percentage,
			default_margin_pen,
			percentage_margin_threshold,
			default_exchange_rate
		FROM pricing_policy
		WHERE id = 1
	`).Scan(
		&p.ShippingRatePerKg,
		&p.MinimumShippingCost,
		&p.ProcessingFee,
		&p.HandlingFee,
		&p.SalesTaxPercentage,
		&p.ImportTaxPercentage,
		&p.ImportTaxThreshold,
		&p.DefaultMarginPercentage,
		&p.DefaultMarginPEN,
		&p.PercentageMarginThreshold,
		&p.DefaultExchangeRate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pricing.Policy{}, fmt.Errorf("pricing_policy singleton: %w", ErrNotFound)
		}
		return pricing.Policy{}, fmt.Errorf("query pricing_policy: %w", err)
	}
	return p, nil
}

// UpdatePolicy replaces the singleton pricing policy. The policy must already be valid.
func (s *Store) UpdatePolicy(ctx context.Context, p pricing.Policy) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE pricing_policy
		SET
			shipping_rate_per_kg = ?,
			minimum_shipping_cost = ?,
			processing_fee = ?,
			handling_fee = ?,
			sales_tax_percentage = ?,
			import_tax_percentage = ?,
			import_tax_threshold = ?,
			default_margin_percentage = ?,
			default_margin_pen = ?,
			percentage_margin_threshold = ?,
			default_exchange_rate = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`,
		p.ShippingRatePerKg,
		p.MinimumShippingCost,
		p.ProcessingFee,
		p.HandlingFee,
		p.SalesTaxPercentage,
		p.ImportTaxPercentage,
		p.ImportTaxThreshold,
		p.DefaultMarginPercentage,
		p.DefaultMarginPEN,
		p.PercentageMarginThreshold,
		p.DefaultExchangeRate,
	)
	if err != nil {
		return fmt.Errorf("update pricing_policy: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update pricing_policy: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("pricing_policy singleton: %w", ErrNotFound)
	}
	return nil
}

// Save writes a snapshot and its line items. Saving the same snapshot ID twice is a no-op,
// so a retried write cannot duplicate a quotation.
func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	totalsJSON, err := json.Marshal(snap.Totals)
	if err != nil {
		return fmt.Errorf("encode totals: %w", err)
	}
	breakdownJSON, err := json.Marshal(snap.Breakdown)
	if err != nil {
		return fmt.Errorf("encode breakdown: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save quotation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO quotations (
			id, purchase_request_id, created_at, title, notes, exchange_rate, margin_mode, margin_value,
			base_price, weight, final_price_usd, final_price_pen, totals_json, breakdown_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		snap.ID,
		snap.PurchaseRequestID,
		snap.CreatedAt.UTC().Format(timestampLayout),
		snap.Title,
		snap.Notes,
		snap.ExchangeRate,
		snap.Margin.Mode.String(),
		snap.Margin.Value,
		snap.Totals.BasePrice,
		snap.Totals.Weight,
		snap.FinalPriceUSD,
		snap.FinalPricePEN,
		string(totalsJSON),
		string(breakdownJSON),
	)
	if err != nil {
		return fmt.Errorf("insert quotation: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert quotation: %w", err)
	}
	if inserted == 0 {
		return nil
	}

	for i, item := range snap.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO quotation_items (quotation_id, position, name, price, weight, profit_amount_pen)
			VALUES (?, ?, ?, ?, ?, ?)
		`, snap.ID, i, item.Name, item.Price, item.Weight, item.ProfitAmountPEN); err != nil {
			return fmt.Errorf("insert quotation item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit quotation: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot of a purchase request.
func (s *Store) Latest(ctx context.Context, purchaseRequestID string) (Snapshot, error) {
	var (
		snap          Snapshot
		createdAt     string
		title, notes  string
		modeRaw       string
		totalsJSON    string
		breakdownJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			id,
			purchase_request_id,
			created_at,
			COALESCE(title, ''),
			COALESCE(notes, ''),
			exchange_rate,
			margin_mode,
			margin_value,
			final_price_usd,
			final_price_pen,
			totals_json,
			breakdown_json
		FROM quotations
		WHERE purchase_request_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, purchaseRequestID).Scan(
		&snap.ID,
		&snap.PurchaseRequestID,
		&createdAt,
		&title,
		&notes,
		&snap.ExchangeRate,
		&modeRaw,
		&snap.Margin.Value,
		&snap.FinalPriceUSD,
		&snap.FinalPricePEN,
		&totalsJSON,
		&breakdownJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, fmt.Errorf("quotation for %q: %w", purchaseRequestID, ErrNotFound)
		}
		return Snapshot{}, fmt.Errorf("query quotation: %w", err)
	}
	snap.Title = title
	snap.Notes = notes

	if snap.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return Snapshot{}, err
	}
	if snap.Margin.Mode, err = pricing.ParseMarginMode(modeRaw); err != nil {
		return Snapshot{}, fmt.Errorf("decode margin mode: %w", err)
	}
	if err := json.Unmarshal([]byte(totalsJSON), &snap.Totals); err != nil {
		return Snapshot{}, fmt.Errorf("decode totals: %w", err)
	}
	if err := json.Unmarshal([]byte(breakdownJSON), &snap.Breakdown); err != nil {
		return Snapshot{}, fmt.Errorf("decode breakdown: %w", err)
	}

	if snap.Items, err = s.items(ctx, snap.ID); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *Store) items(ctx context.Context, quotationID string) ([]pricing.LineItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(name, ''), price, weight, profit_amount_pen
		FROM quotation_items
		WHERE quotation_id = ?
		ORDER BY position
	`, quotationID)
	if err != nil {
		return nil, fmt.Errorf("query quotation items: %w", err)
	}
	defer rows.Close()

	items := make([]pricing.LineItem, 0)
	for rows.Next() {
		var item pricing.LineItem
		if err := rows.Scan(&item.Name, &item.Price, &item.Weight, &item.ProfitAmountPEN); err != nil {
			return nil, fmt.Errorf("scan quotation item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quotation items: %w", err)
	}
	return items, nil
}

// likeEscaper makes search text match literally inside a LIKE ... ESCAPE '\' pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List returns stored quotations, newest first. A non-empty query filters on title, notes
// and purchase request ID.
func (s *Store) List(ctx context.Context, query string) ([]ListItem, error) {
	search := "%" + likeEscaper.Replace(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			id,
			purchase_request_id,
			created_at,
			COALESCE(title, ''),
			final_price_usd,
			final_price_pen
		FROM quotations
		WHERE (? = ''
			OR COALESCE(title, '') LIKE ? ESCAPE '\'
			OR COALESCE(notes, '') LIKE ? ESCAPE '\'
			OR purchase_request_id LIKE ? ESCAPE '\')
		ORDER BY created_at DESC, rowid DESC
	`, query, search, search, search)
	if err != nil {
		return nil, fmt.Errorf("query quotations: %w", err)
	}
	defer rows.Close()

	list := make([]ListItem, 0)
	for rows.Next() {
		var item ListItem
		var createdAt string
		if err := rows.Scan(&item.ID, &item.PurchaseRequestID, &createdAt, &item.Title, &item.FinalPriceUSD, &item.FinalPricePEN); err != nil {
			return nil, fmt.Errorf("scan quotation: %w", err)
		}
		if item.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		list = append(list, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quotations: %w", err)
	}
	return list, nil
}

// SaveDraft upserts the last computed state of a draft.
func (s *Store) SaveDraft(ctx context.Context, id string, d pricing.Draft, b pricing.Breakdown) error {
	draftJSON, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	breakdownJSON, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode draft breakdown: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO quote_drafts (id, draft_json, breakdown_json, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			draft_json = excluded.draft_json,
			breakdown_json = excluded.breakdown_json,
			updated_at = CURRENT_TIMESTAMP
	`, id, string(draftJSON), string(breakdownJSON)); err != nil {
		return fmt.Errorf("upsert draft: %w", err)
	}
	return nil
}

// Draft loads a stored draft.
func (s *Store) Draft(ctx context.Context, id string) (pricing.Draft, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT draft_json FROM quote_drafts WHERE id = ?`, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pricing.Draft{}, fmt.Errorf("draft %q: %w", id, ErrNotFound)
		}
		return pricing.Draft{}, fmt.Errorf("query draft: %w", err)
	}

	var d pricing.Draft
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return pricing.Draft{}, fmt.Errorf("decode draft: %w", err)
	}
	return d, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range []string{timestampLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q", raw)
}
