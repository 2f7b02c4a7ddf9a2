package acquisition

import (
	"math"
	"math/rand/v2"
	"time"
)

// assetProfile is the annual drift and volatility of a simulated asset, and
// its loading on volatility-index shocks.
type assetProfile struct {
	drift, vol, volBeta float64
}

var profiles = map[string]assetProfile{
	"SPY": {drift: 0.07, vol: 0.17, volBeta: -0.006},
	"TLT": {drift: 0.03, vol: 0.14, volBeta: 0.002},
	"GLD": {drift: 0.06, vol: 0.15, volBeta: 0.001},
}

var defaultProfile = assetProfile{drift: 0.05, vol: 0.15}

// SimulateOptions controls the synthetic data generator.
type SimulateOptions struct {
	Start, End time.Time
	Assets     []string
	Seed       int64
}

// Simulate generates a synthetic macro series for every calendar day and a
// market series for every weekday between Start and End. The same options
// always produce the same data.
//
// The policy rate follows a piecewise path of historical fed funds levels
// by year with daily noise; the long yield trades about 150bp above it.
// The volatility index mean-reverts around 18 with rare jumps, and asset
// prices follow geometric random walks tilted by volatility shocks.
func Simulate(opts SimulateOptions) ([]MacroRow, []MarketRow) {
	rng := rand.New(rand.NewPCG(uint64(opts.Seed), 0x9e3779b97f4a7c15))
	start, end := dayOf(opts.Start), dayOf(opts.End)

	var macro []MacroRow
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		policy := math.Max(0, fedFundsBase(d)+rng.NormFloat64()*0.15)
		yield := math.Max(0.5, policy+1.5+rng.NormFloat64()*0.4)
		macro = append(macro, MacroRow{Date: d, PolicyRate: policy, LongYield: yield})
	}

	prices := make(map[string]float64, len(opts.Assets))
	for _, asset := range opts.Assets {
		prices[asset] = 100
	}
	vix := 18.0
	const dt = 1.0 / 252

	var market []MarketRow
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		shock := rng.NormFloat64() * 1.2
		if rng.Float64() < 0.004 {
			shock += 12 + 8*rng.Float64()
		}
		prev := vix
		vix = math.Max(9, vix+0.08*(18-vix)+shock)
		dv := vix - prev

		row := MarketRow{Date: d, Volatility: vix, Prices: make(map[string]float64, len(opts.Assets))}
		for _, asset := range opts.Assets {
			p, ok := profiles[asset]
			if !ok {
				p = defaultProfile
			}
			r := p.drift*dt + p.vol*math.Sqrt(dt)*rng.NormFloat64() + p.volBeta*dv
			prices[asset] *= math.Max(0.5, 1+r)
			row.Prices[asset] = prices[asset]
		}
		market = append(market, row)
	}
	return macro, market
}

// fedFundsBase is the simulated policy-rate level for d's year.
func fedFundsBase(d time.Time) float64 {
	year, month := float64(d.Year()), float64(d.Month())
	switch {
	case year <= 2003:
		return 2.5
	case year <= 2006:
		return 1.0 + (year-2003)*1.2
	case year <= 2008:
		return 5.0 - (year-2006)*0.5
	case year <= 2015:
		return 0.25
	case year <= 2019:
		return 0.25 + (year-2015)*0.5
	case year <= 2021:
		return 0.10
	default:
		return 0.10 + (year-2021)*1.8 + (month/12)*0.3
	}
}
