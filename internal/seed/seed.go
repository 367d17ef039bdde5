package seed

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Simplici0/cotizador/internal/pricing"
)

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

// Run executes the startup seed in an idempotent way. The policy is only written
// when no policy row exists; an edited policy is never overwritten.
func Run(ctx context.Context, db *sql.DB, policy pricing.Policy) (Stats, error) {
	if err := policy.Validate(); err != nil {
		return Stats{}, fmt.Errorf("seed policy: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := ensurePolicy(ctx, tx, policy, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func ensurePolicy(ctx context.Context, tx *sql.Tx, p pricing.Policy, stats *Stats) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM pricing_policy WHERE id = 1)`).Scan(&exists); err != nil {
		return fmt.Errorf("check pricing policy existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pricing_policy (
			id,
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
		)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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
	); err != nil {
		return fmt.Errorf("insert pricing policy singleton: %w", err)
	}
	stats.Inserts++
	return nil
}
