package weather

import "github.com/shopspring/decimal"

// PrecipitationPeriodHours is the accumulation window of the rain and snow
// channels the provider reports.
const PrecipitationPeriodHours = 3

// AggregatePrecipitation sums the rain and snow accumulations of the last
// PrecipitationPeriodHours. When neither channel is present both results are
// nil; otherwise both are set.
//
// The sum is computed in decimal so that 2.0 + 1.5 is 3.5 and 0.1 + 0.2 is 0.3.
func AggregatePrecipitation(rainMm, snowMm *float64) (*float64, *int) {
	if rainMm == nil && snowMm == nil {
		return nil, nil
	}

	total := decimal.Zero
	if rainMm != nil {
		total = total.Add(decimal.NewFromFloat(*rainMm))
	}
	if snowMm != nil {
		total = total.Add(decimal.NewFromFloat(*snowMm))
	}

	sum := total.InexactFloat64()
	period := PrecipitationPeriodHours
	return &sum, &period
}
