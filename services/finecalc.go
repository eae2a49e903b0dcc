package services

import (
	"fmt"

	"speed-enforcement-api/config"
)

// FineCalculator maps speed excess to a monetary amount through one
// canonical tier table. The table is configuration, not code: the
// legal schedule changes without a deploy.
type FineCalculator struct {
	tiers    []config.FineTier
	overflow float64
}

func NewFineCalculator(cfg config.FinesConfig) (*FineCalculator, error) {
	if len(cfg.Tiers) == 0 {
		return nil, fmt.Errorf("fine tier table is empty")
	}
	for i := 1; i < len(cfg.Tiers); i++ {
		if cfg.Tiers[i].MaxExcess <= cfg.Tiers[i-1].MaxExcess {
			return nil, fmt.Errorf("fine tiers not strictly increasing at index %d", i)
		}
		if cfg.Tiers[i].Amount < cfg.Tiers[i-1].Amount {
			return nil, fmt.Errorf("fine amounts decrease at index %d", i)
		}
	}
	if cfg.OverflowAmount < cfg.Tiers[len(cfg.Tiers)-1].Amount {
		return nil, fmt.Errorf("overflow amount %v below top tier", cfg.OverflowAmount)
	}
	return &FineCalculator{tiers: cfg.Tiers, overflow: cfg.OverflowAmount}, nil
}

// Amount returns the fine for the given speed excess in km/h.
// Non-positive excess is not a violation and costs nothing.
func (f *FineCalculator) Amount(speedExcess int) float64 {
	if speedExcess <= 0 {
		return 0
	}
	for _, tier := range f.tiers {
		if speedExcess <= tier.MaxExcess {
			return tier.Amount
		}
	}
	return f.overflow
}
