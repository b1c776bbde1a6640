package budget

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pario-ai/vendorsearch/pkg/models"
	"github.com/pario-ai/vendorsearch/pkg/tracker"
)

func setup(t *testing.T) (tracker.Tracker, context.Context) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "budget_test.db")
	tr, err := tracker.New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr, context.Background()
}

func TestCheckUnderBudget(t *testing.T) {
	tr, ctx := setup(t)

	_ = tr.Record(ctx, models.SpendRecord{CacheKey: "k", Query: "q", Cost: 0.05, CreatedAt: time.Now().UTC()})

	e := New([]models.BudgetPolicy{{MaxCost: 1, Period: models.BudgetDaily}}, tr)
	if err := e.Check(ctx); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCheckExceeded(t *testing.T) {
	tr, ctx := setup(t)

	for range 3 {
		_ = tr.Record(ctx, models.SpendRecord{CacheKey: "k", Query: "q", Cost: 0.5, CreatedAt: time.Now().UTC()})
	}

	e := New([]models.BudgetPolicy{{MaxCost: 1, Period: models.BudgetDaily}}, tr)
	if err := e.Check(ctx); !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("expected ErrBudgetExceeded, got %v", err)
	}
}

func TestCheckIgnoresPreviousPeriod(t *testing.T) {
	tr, ctx := setup(t)
	now := time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)

	_ = tr.Record(ctx, models.SpendRecord{CacheKey: "k", Query: "q", Cost: 5, CreatedAt: now.AddDate(0, -1, 0)})

	e := New([]models.BudgetPolicy{{MaxCost: 1, Period: models.BudgetMonthly}}, tr)
	e.now = func() time.Time { return now }
	if err := e.Check(ctx); err != nil {
		t.Errorf("last month's spend should not count, got %v", err)
	}
}

func TestStatus(t *testing.T) {
	tr, ctx := setup(t)

	_ = tr.Record(ctx, models.SpendRecord{CacheKey: "k", Query: "q", Cost: 0.25, CreatedAt: time.Now().UTC()})

	e := New([]models.BudgetPolicy{
		{MaxCost: 1, Period: models.BudgetDaily},
		{MaxCost: 0.1, Period: models.BudgetMonthly},
	}, tr)

	statuses, err := e.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].Spent != 0.25 || statuses[0].Remaining != 0.75 {
		t.Errorf("unexpected daily status: %+v", statuses[0])
	}
	if statuses[1].Remaining != 0 {
		t.Errorf("remaining must not go negative: %+v", statuses[1])
	}
}

func TestPeriodStart(t *testing.T) {
	now := time.Date(2026, 5, 20, 15, 4, 5, 0, time.UTC)
	if got := periodStart(models.BudgetDaily, now); !got.Equal(time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected daily start %v", got)
	}
	if got := periodStart(models.BudgetMonthly, now); !got.Equal(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected monthly start %v", got)
	}
}
