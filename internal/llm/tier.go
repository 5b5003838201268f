package llm

import "widgetrag/internal/model"

var tierRank = map[string]int{
	model.SubscriptionFree:    1,
	model.SubscriptionBasic:   2,
	model.SubscriptionPremium: 3,
}

// TierAllows reports whether a subscription level may use a model gated at
// tier. Unknown levels get no access.
func TierAllows(level, tier string) bool {
	have, ok := tierRank[level]
	if !ok {
		return false
	}
	need, ok := tierRank[tier]
	if !ok {
		return false
	}
	return have >= need
}

// ValidTier reports whether tier is one of the known subscription levels.
func ValidTier(tier string) bool {
	_, ok := tierRank[tier]
	return ok
}
