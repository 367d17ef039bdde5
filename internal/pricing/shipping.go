package pricing

// ShippingCost maps a weight in kg to a shipping fee in USD.
// Anything under one kilogram, including an unset weight, pays the minimum.
func ShippingCost(weight float64, policy Policy) float64 {
	if weight < 1 {
		return policy.MinimumShippingCost
	}
	return weight * policy.ShippingRatePerKg
}
