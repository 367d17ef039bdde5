package pricing

// ImportDuty is the outcome of the import tax rule for a single base price.
type ImportDuty struct {
	Applies bool
	Amount  float64
}

// ImportTax applies the import duty to prices strictly above the policy threshold.
// The duty is levied on the tax-inclusive base price.
func ImportTax(basePrice, taxPercentage float64, policy Policy) ImportDuty {
	if basePrice <= policy.ImportTaxThreshold {
		return ImportDuty{}
	}

	taxed := basePrice + basePrice*taxPercentage/100
	return ImportDuty{
		Applies: true,
		Amount:  taxed * policy.ImportTaxPercentage / 100,
	}
}
