package access

import (
	"fmt"
	"sort"

	"github.com/repspheres/repcore/internal/models"
)

// limitAtLeast reports whether limit b grants at least as much as limit a,
// treating the unlimited sentinel as larger than any finite value.
func limitAtLeast(a, b int64) bool {
	if a == models.UnlimitedLimit {
		return b == models.UnlimitedLimit
	}
	if b == models.UnlimitedLimit {
		return true
	}
	return b >= a
}

// ValidateTierOrder checks that limits and capability flags never shrink as
// rank increases across the enabled tier ladder. It returns an error naming
// the first offending tier and feature.
func ValidateTierOrder(tiers []models.Tier) error {
	ladder := make([]models.Tier, 0, len(tiers))
	for _, t := range tiers {
		if t.IsEnabled {
			ladder = append(ladder, t)
		}
	}
	sort.Slice(ladder, func(i, j int) bool { return ladder[i].Rank < ladder[j].Rank })

	for i := 1; i < len(ladder); i++ {
		prev, cur := &ladder[i-1], &ladder[i]
		for feature, rule := range countedRules {
			if !limitAtLeast(rule.limit(prev), rule.limit(cur)) {
				return fmt.Errorf("access: tier %q lowers %s limit below tier %q", cur.Slug, feature, prev.Slug)
			}
		}
		for feature, rule := range capabilityRules {
			if rule.flag(prev) && !rule.flag(cur) {
				return fmt.Errorf("access: tier %q drops %s granted by tier %q", cur.Slug, feature, prev.Slug)
			}
		}
	}
	return nil
}
