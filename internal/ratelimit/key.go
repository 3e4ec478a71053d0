package ratelimit

import "fmt"

// KeyForDecision builds a limiter key for the resolved scope.
func KeyForDecision(repID uint64, decision Decision) string {
	if repID == 0 || decision.Limit <= 0 {
		return ""
	}
	switch decision.Scope {
	case ScopeRep:
		return fmt.Sprintf("rep:%d", repID)
	default:
		return ""
	}
}
