package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pario-ai/vendorsearch/pkg/models"
	"github.com/pario-ai/vendorsearch/pkg/tracker"
)

// ErrBudgetExceeded is returned when provider spend has reached a policy cap.
var ErrBudgetExceeded = errors.New("budget exceeded")

// Enforcer checks provider spend against budget policies.
type Enforcer struct {
	policies []models.BudgetPolicy
	tracker  tracker.Tracker
	now      func() time.Time
}

// New creates an Enforcer with the given policies and tracker.
func New(policies []models.BudgetPolicy, t tracker.Tracker) *Enforcer {
	return &Enforcer{policies: policies, tracker: t, now: time.Now}
}

// Check returns ErrBudgetExceeded if spend in any policy period has reached its cap.
func (e *Enforcer) Check(ctx context.Context) error {
	for _, p := range e.policies {
		spent, err := e.tracker.TotalSince(ctx, periodStart(p.Period, e.now()))
		if err != nil {
			return fmt.Errorf("budget check: %w", err)
		}
		if spent >= p.MaxCost {
			return fmt.Errorf("%w: spent $%.2f of $%.2f %s", ErrBudgetExceeded, spent, p.MaxCost, p.Period)
		}
	}
	return nil
}

// Status returns current spend against every policy.
func (e *Enforcer) Status(ctx context.Context) ([]models.BudgetStatus, error) {
	statuses := make([]models.BudgetStatus, 0, len(e.policies))
	for _, p := range e.policies {
		spent, err := e.tracker.TotalSince(ctx, periodStart(p.Period, e.now()))
		if err != nil {
			return nil, fmt.Errorf("budget status: %w", err)
		}
		remaining := p.MaxCost - spent
		if remaining < 0 {
			remaining = 0
		}
		statuses = append(statuses, models.BudgetStatus{
			Policy:    p,
			Spent:     spent,
			Remaining: remaining,
		})
	}
	return statuses, nil
}

func periodStart(period models.BudgetPeriod, now time.Time) time.Time {
	now = now.UTC()
	switch period {
	case models.BudgetMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default: // daily
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
}
