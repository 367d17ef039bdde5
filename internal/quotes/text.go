package quotes

import (
	"fmt"
	"strings"

	"github.com/Simplici0/cotizador/internal/money"
)

// RenderText renders the client-facing totals of a snapshot as plain text.
// Only final totals are included; no breakdown lines leave through this format.
func RenderText(snap Snapshot) string {
	var b strings.Builder

	title := snap.Title
	if title == "" {
		title = "Cotización"
	}
	fmt.Fprintf(&b, "%s\n", title)
	fmt.Fprintf(&b, "Solicitud: %s\n", snap.PurchaseRequestID)
	fmt.Fprintf(&b, "Fecha: %s\n", snap.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Total: %s\n", money.FormatUSD(snap.FinalPriceUSD))
	fmt.Fprintf(&b, "Total: %s\n", money.FormatPEN(snap.FinalPricePEN))
	fmt.Fprintf(&b, "Tipo de cambio: %.2f\n", snap.ExchangeRate)

	if len(snap.Items) > 0 {
		b.WriteString("\nProductos:\n")
		for i, item := range snap.Items {
			name := item.Name
			if name == "" {
				name = fmt.Sprintf("Producto %d", i+1)
			}
			fmt.Fprintf(&b, "- %s\n", name)
		}
	}

	if snap.Notes != "" {
		fmt.Fprintf(&b, "\nNotas: %s\n", snap.Notes)
	}
	return b.String()
}
