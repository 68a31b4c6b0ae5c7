package core

import (
	"math"
	"strconv"
)

// Tier is the feedback bucket a classification falls into.
type Tier string

const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierUncertain Tier = "uncertain"
	TierPoor      Tier = "poor"
)

// Reward constants.
const (
	BaseReward      int64 = 5
	ExcellentBonus  int64 = 2
	confidenceScale       = 10
)

// Tier thresholds are exclusive lower bounds, checked in descending order.
const (
	ExcellentThreshold = 0.85
	GoodThreshold      = 0.70
	UncertainThreshold = 0.50
)

// RewardOutcome is derived from a ClassificationResult and applied at once.
type RewardOutcome struct {
	CoinDelta            int64 `json:"coin_delta"`
	Tier                 Tier  `json:"tier"`
	CountsTowardProgress bool  `json:"counts_toward_progress"`
}

// FullReward is the base reward plus the confidence bonus, in [5, 15].
func FullReward(confidence float64) int64 {
	return BaseReward + int64(math.Floor(confidence*confidenceScale))
}

// ComputeReward maps a classification result to coins and a tier.
func ComputeReward(result ClassificationResult) RewardOutcome {
	c := result.Confidence
	full := FullReward(c)
	switch {
	case c > ExcellentThreshold:
		return RewardOutcome{CoinDelta: full + ExcellentBonus, Tier: TierExcellent, CountsTowardProgress: true}
	case c > GoodThreshold:
		return RewardOutcome{CoinDelta: full, Tier: TierGood, CountsTowardProgress: true}
	case c > UncertainThreshold:
		return RewardOutcome{CoinDelta: full / 2, Tier: TierUncertain, CountsTowardProgress: true}
	default:
		return RewardOutcome{CoinDelta: 0, Tier: TierPoor, CountsTowardProgress: false}
	}
}

// Feedback is the user-facing message for a tier.
type Feedback struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Celebrate   bool   `json:"celebrate"`
}

// FeedbackFor renders the message shown after a scan. categoryName is the
// display name of the detected category.
func FeedbackFor(outcome RewardOutcome, categoryName string) Feedback {
	switch outcome.Tier {
	case TierExcellent:
		return Feedback{
			Title:       "Amazing! +" + strconv.FormatInt(outcome.CoinDelta, 10) + " coins",
			Description: "Perfect! That's definitely " + categoryName + " waste!",
			Celebrate:   true,
		}
	case TierGood:
		return Feedback{
			Title:       "Great job! +" + strconv.FormatInt(outcome.CoinDelta, 10) + " coins",
			Description: "You correctly identified " + categoryName + " waste!",
			Celebrate:   true,
		}
	case TierUncertain:
		return Feedback{
			Title:       "Good try!",
			Description: "I think this might be " + categoryName + " waste, but I'm not entirely sure.",
		}
	default:
		return Feedback{
			Title:       "Try again",
			Description: "I couldn't identify that clearly. Try a different angle or better lighting.",
		}
	}
}
