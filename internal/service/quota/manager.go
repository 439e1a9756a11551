package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/ad-tracker/upload-scheduler-go/internal/db"
	"github.com/ad-tracker/upload-scheduler-go/internal/db/models"
	"github.com/ad-tracker/upload-scheduler-go/pkg/logger"
	"go.uber.org/zap"
)

// ProfileSource loads profiles. service.Service satisfies it.
type ProfileSource interface {
	GetProfile(ctx context.Context, id int64) (*models.Profile, error)
}

// Budget is a profile's push allowance in its current window.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Budget struct {
	ProfileID   int64      `json:"profileId"`
	Used        int        `json:"used"`
	Limit       int        `json:"limit"`
	Threshold   int        `json:"threshold"`
	Remaining   int        `json:"remaining"`
	WindowStart *time.Time `json:"windowStart"`
	ResetsAt    *time.Time `json:"resetsAt"`
	Exhausted   bool       `json:"exhausted"`
}

// Manager handles per-profile push budgets
type Manager struct {
	source           ProfileSource
	dailyLimit       int
	thresholdPercent int // Stop pushing when this % of the limit is used
	now              func() time.Time
}

// NewManager creates a new budget manager
func NewManager(source ProfileSource, dailyLimit int, thresholdPercent int) *Manager {
	if dailyLimit <= 0 {
		dailyLimit = 10
	}
	if thresholdPercent <= 0 || thresholdPercent > 100 {
		thresholdPercent = 100
	}

	return &Manager{
		source:           source,
		dailyLimit:       dailyLimit,
		thresholdPercent: thresholdPercent,
		now:              time.Now,
	}
}

// Compute derives the budget of p at now. A window older than 24 hours
// counts as empty, matching the reset rule applied on the next push.
func (m *Manager) Compute(p *models.Profile, now time.Time) *Budget {
	threshold := (m.dailyLimit * m.thresholdPercent) / 100
	if threshold < 1 {
		threshold = 1
	}
	used := p.PushesInWindow(now)

	b := &Budget{
		ProfileID: p.ID,
		Used:      used,
		Limit:     m.dailyLimit,
		Threshold: threshold,
		Remaining: threshold - used,
	}
	if b.Remaining < 0 {
		b.Remaining = 0
	}
	b.Exhausted = b.Remaining == 0

	if used > 0 && p.LastPushReset != nil {
		start := *p.LastPushReset
		resets := start.Add(models.PushWindow)
		b.WindowStart = &start
		b.ResetsAt = &resets
	}
	return b
}

// GetBudget returns the profile's current budget.
func (m *Manager) GetBudget(ctx context.Context, profileID int64) (*Budget, error) {
	p, err := m.source.GetProfile(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("get budget for profile %d: %w", profileID, db.ErrNotFound)
	}
	return m.Compute(p, m.now()), nil
}

// CheckPushAvailable checks if the profile may push once more
// Returns true if budget is available, false otherwise
func (m *Manager) CheckPushAvailable(ctx context.Context, profileID int64) (bool, *Budget, error) {
	b, err := m.GetBudget(ctx, profileID)
	if err != nil {
		return false, nil, err
	}

	if b.Exhausted {
		logger.Log.Info("Push budget exhausted",
			zap.Int64("profileId", profileID),
			zap.Int("used", b.Used),
			zap.Int("threshold", b.Threshold),
			zap.Int("limit", b.Limit),
		)
		return false, b, nil
	}

	return true, b, nil
}

// GetUsagePercentage returns the percentage of the daily limit used
func (m *Manager) GetUsagePercentage(ctx context.Context, profileID int64) (float64, error) {
	b, err := m.GetBudget(ctx, profileID)
	if err != nil {
		return 0, err
	}

	return float64(b.Used) / float64(m.dailyLimit) * 100, nil
}
