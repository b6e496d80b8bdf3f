package budget

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryBreakfast Category = "Breakfast"
	CategoryLunch     Category = "Lunch"
	CategoryDinner    Category = "Dinner"
	CategoryPetrol    Category = "Petrol"
	CategoryOther     Category = "Other"
)

var Categories = []Category{CategoryBreakfast, CategoryLunch, CategoryDinner, CategoryPetrol, CategoryOther}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

func (p Period) Valid() bool {
	return p == PeriodDaily || p == PeriodMonthly || p == PeriodYearly
}

// MODELS:

type Wallet struct {
	ID      string
	UserID  string
	Balance decimal.Decimal
}

type Expense struct {
	ID       string
	UserID   string
	Amount   decimal.Decimal
	Category Category
	Note     string
	// Date is a calendar day; only year, month and day are meaningful.
	Date      time.Time
	CreatedAt time.Time
}

type Budget struct {
	ID                string
	UserID            string
	DailyBudget       decimal.Decimal
	MonthlyBudget     decimal.Decimal
	YearlyBudget      decimal.Decimal
	NotifyOnThreshold bool
}

// Limit returns the configured ceiling for p.
func (b Budget) Limit(p Period) decimal.Decimal {
	switch p {
	case PeriodDaily:
		return b.DailyBudget
	case PeriodMonthly:
		return b.MonthlyBudget
	case PeriodYearly:
		return b.YearlyBudget
	}
	return decimal.Zero
}

// REQUESTS:

type ExpenseRequest struct {
	Amount   decimal.Decimal
	Category Category
	Note     string
	Date     time.Time
}

// ExpensePatch carries the fields of a partial update; nil means unchanged.
type ExpensePatch struct {
	Amount   *decimal.Decimal
	Category *Category
	Note     *string
	Date     *time.Time
}

type BudgetRequest struct {
	Period Period
	Amount decimal.Decimal
	// Notify defaults to true when nil.
	Notify *bool
}

// BudgetPatch carries new values for an existing budget; nil means unchanged.
type BudgetPatch struct {
	DailyBudget       *decimal.Decimal
	MonthlyBudget     *decimal.Decimal
	YearlyBudget      *decimal.Decimal
	NotifyOnThreshold *bool
}

// RESPONSES:

type UsageReport struct {
	Alerts map[Period]string
	Spent  map[Period]decimal.Decimal
}

type MonthlySummary struct {
	Budget    decimal.Decimal
	Expenses  decimal.Decimal
	Remaining decimal.Decimal
}
