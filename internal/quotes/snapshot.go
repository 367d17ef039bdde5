// Package quotes prices purchase requests, stores the resulting snapshots and keeps live drafts.
package quotes

import (
	"time"

	"github.com/Simplici0/cotizador/internal/pricing"
)

// Snapshot is a finalized quotation of a purchase request. It is stored as computed and
// never recalculated on read.
type Snapshot struct {
	ID                string                 `json:"id"`
	PurchaseRequestID string                 `json:"purchase_request_id"`
	CreatedAt         time.Time              `json:"created_at"`
	Title             string                 `json:"title,omitempty"`
	Notes             string                 `json:"notes,omitempty"`
	ExchangeRate      float64                `json:"exchange_rate"`
	Margin            pricing.Margin         `json:"margin"`
	Items             []pricing.LineItem     `json:"items"`
	Totals            pricing.LineItemTotals `json:"totals"`
	Breakdown         pricing.Breakdown      `json:"breakdown"`
	FinalPriceUSD     float64                `json:"final_price_usd"`
	FinalPricePEN     float64                `json:"final_price_pen"`
}

// ListItem is the summary row of a stored quotation.
type ListItem struct {
	ID                string    `json:"id"`
	PurchaseRequestID string    `json:"purchase_request_id"`
	CreatedAt         time.Time `json:"created_at"`
	Title             string    `json:"title"`
	FinalPriceUSD     float64   `json:"final_price_usd"`
	FinalPricePEN     float64   `json:"final_price_pen"`
}
