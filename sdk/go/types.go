package sdk

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"wastewise/core"
)

// Progress is the /progress response.
type Progress struct {
	Progress core.UserProgress  `json:"progress"`
	Level    core.LevelProgress `json:"level"`
}

// ScanOutcome mirrors the server's scan response.
type ScanOutcome struct {
	Result          core.ClassificationResult `json:"result"`
	Category        core.WasteCategory        `json:"category"`
	Reward          core.RewardOutcome        `json:"reward"`
	Feedback        core.Feedback             `json:"feedback"`
	Progress        core.UserProgress         `json:"progress"`
	LevelUp         bool                      `json:"level_up"`
	NewAchievements []string                  `json:"new_achievements,omitempty"`
}

// ShopItem is a purchasable badge or sticker.
type ShopItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon,omitempty"`
	Cost  int64  `json:"cost"`
	Owned bool   `json:"owned"`
}

// Shop is the /catalog/rewards response.
type Shop struct {
	Coins    int64      `json:"coins"`
	Badges   []ShopItem `json:"badges"`
	Stickers []ShopItem `json:"stickers"`
}

// CategoryCount is one row of the category ranking.
type CategoryCount struct {
	Key   string `json:"key"`
	Score int64  `json:"score"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string         `json:"status"`
	Checks map[string]any `json:"checks"`
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed: status %d", e.Status)
	}
	return fmt.Sprintf("request failed: status %d: %s: %s", e.Status, e.Code, e.Message)
}

// Is lets callers match server error codes against core and engine sentinels.
func (e *APIError) Is(target error) bool {
	want, ok := codeErrors[e.Code]
	return ok && want == target
}

var codeErrors = map[string]error{
	"already_unlocked":    core.ErrAlreadyUnlocked,
	"insufficient_funds":  core.ErrInsufficientFunds,
	"unknown_reward":      core.ErrUnknownReward,
	"invalid_reward_kind": core.ErrInvalidRewardKind,
	"invalid_amount":      core.ErrInvalidAmount,
	"no_result":           ErrNoResult,
	"scan_in_progress":    ErrScanInProgress,
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(apiErr)
		return apiErr
	}
	return json.NewDecoder(resp.Body).Decode(target)
}
