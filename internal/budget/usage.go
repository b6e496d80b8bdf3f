package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	appErrors "github.com/Kasis11/budgetly/errors"
)

// AlertRatio is the share of a limit at which a usage alert fires.
var AlertRatio = decimal.RequireFromString("0.5")

var ErrNoBudget = appErrors.NotFound("No budget set.")

func (bt *Tracker) ListBudgets(ctx context.Context, userID string) ([]Budget, error) {
	budgets, err := bt.storage.ListBudgets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	return budgets, nil
}

func (bt *Tracker) GetBudgetByID(ctx context.Context, userID string, budgetID string) (Budget, error) {
	b, err := bt.storage.GetBudgetByID(ctx, userID, budgetID)
	if err != nil {
		return Budget{}, fmt.Errorf("failed to get budget: %w", err)
	}
	return b, nil
}

// SetBudget overwrites the limit for one period, leaving the other two as
// they were. The budget is created with zero limits on first use.
func (bt *Tracker) SetBudget(ctx context.Context, userID string, req BudgetRequest) (Budget, error) {
	if !req.Period.Valid() {
		return Budget{}, appErrors.Invalid("Invalid period.")
	}
	amount := req.Amount.Round(2)
	if err := validateMoney("amount", amount, MaxBalanceAmount, true); err != nil {
		return Budget{}, err
	}
	notify := true
	if req.Notify != nil {
		notify = *req.Notify
	}

	b, err := bt.storage.UpsertBudget(ctx, userID, uuid.New().String(), req.Period, amount, notify)
	if err != nil {
		return Budget{}, fmt.Errorf("failed to save budget: %w", err)
	}
	return b, nil
}

// UpdateBudget edits a budget the caller owns. Limits are rounded to cents
// the same way SetBudget does.
func (bt *Tracker) UpdateBudget(ctx context.Context, userID string, budgetID string, patch BudgetPatch) (Budget, error) {
	b, err := bt.storage.GetBudgetByID(ctx, userID, budgetID)
	if err != nil {
		return Budget{}, fmt.Errorf("failed to get budget: %w", err)
	}

	limits := []struct {
		field string
		value *decimal.Decimal
		dst   *decimal.Decimal
	}{
		{field: "daily_budget", value: patch.DailyBudget, dst: &b.DailyBudget},
		{field: "monthly_budget", value: patch.MonthlyBudget, dst: &b.MonthlyBudget},
		{field: "yearly_budget", value: patch.YearlyBudget, dst: &b.YearlyBudget},
	}
	for _, l := range limits {
		if l.value == nil {
			continue
		}
		amount := l.value.Round(2)
		if err := validateMoney(l.field, amount, MaxBalanceAmount, true); err != nil {
			return Budget{}, err
		}
		*l.dst = amount
	}
	if patch.NotifyOnThreshold != nil {
		b.NotifyOnThreshold = *patch.NotifyOnThreshold
	}

	if err := bt.storage.UpdateBudget(ctx, b); err != nil {
		return Budget{}, fmt.Errorf("failed to update budget: %w", err)
	}
	return b, nil
}

// DeleteBudget removes the caller's budget. CheckUsage reports ErrNoBudget
// until a new one is set.
func (bt *Tracker) DeleteBudget(ctx context.Context, userID string, budgetID string) error {
	if err := bt.storage.DeleteBudget(ctx, userID, budgetID); err != nil {
		return fmt.Errorf("failed to delete budget: %w", err)
	}
	return nil
}

type window struct {
	period Period
	from   time.Time
}

// windows returns today, month-to-date and year-to-date start days for now.
func (bt *Tracker) windows() (today time.Time, ws []window) {
	today = CivilDate(bt.now().In(bt.loc))
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	yearStart := time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	return today, []window{
		{period: PeriodDaily, from: today},
		{period: PeriodMonthly, from: monthStart},
		{period: PeriodYearly, from: yearStart},
	}
}

// CheckUsage sums spend for each window and warns for every window whose
// spend reached AlertRatio of a non-zero limit. Nothing is reported while
// notifications are off.
func (bt *Tracker) CheckUsage(ctx context.Context, userID string) (UsageReport, error) {
	b, err := bt.storage.GetBudget(ctx, userID)
	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrNotFound) {
			return UsageReport{}, ErrNoBudget
		}
		return UsageReport{}, fmt.Errorf("failed to get budget: %w", err)
	}

	report := UsageReport{
		Alerts: make(map[Period]string),
		Spent:  make(map[Period]decimal.Decimal),
	}

	today, ws := bt.windows()
	for _, w := range ws {
		spent, err := bt.storage.SumExpenses(ctx, userID, w.from, today)
		if err != nil {
			return UsageReport{}, fmt.Errorf("failed to sum %s expenses: %w", w.period, err)
		}
		report.Spent[w.period] = spent

		if !b.NotifyOnThreshold {
			continue
		}
		if msg, ok := thresholdAlert(w.period, spent, b.Limit(w.period)); ok {
			report.Alerts[w.period] = msg
		}
	}
	return report, nil
}

func thresholdAlert(p Period, spent decimal.Decimal, limit decimal.Decimal) (string, bool) {
	if limit.IsZero() {
		return "", false
	}
	if spent.LessThan(limit.Mul(AlertRatio)) {
		return "", false
	}
	return fmt.Sprintf("⚠️ You have used ₹%s, which is over 50%% of your %s budget ₹%s.",
		spent.StringFixed(2), p, limit.StringFixed(2)), true
}

// MonthlySummary compares month-to-date spend with the monthly limit. A
// user without a budget gets a zero limit.
func (bt *Tracker) MonthlySummary(ctx context.Context, userID string) (MonthlySummary, error) {
	limit := decimal.Zero
	b, err := bt.storage.GetBudget(ctx, userID)
	switch {
	case err == nil:
		limit = b.MonthlyBudget
	case appErrors.HasCode(err, appErrors.ErrNotFound):
	default:
		return MonthlySummary{}, fmt.Errorf("failed to get budget: %w", err)
	}

	today, ws := bt.windows()
	spent, err := bt.storage.SumExpenses(ctx, userID, ws[1].from, today)
	if err != nil {
		return MonthlySummary{}, fmt.Errorf("failed to sum monthly expenses: %w", err)
	}

	return MonthlySummary{
		Budget:    limit,
		Expenses:  spent,
		Remaining: limit.Sub(spent),
	}, nil
}
