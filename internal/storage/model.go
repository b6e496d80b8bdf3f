package storage

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	appErrors "github.com/Kasis11/budgetly/errors"
	budgetModel "github.com/Kasis11/budgetly/internal/budget"
)

const dateLayout = "2006-01-02"

// errBalanceOutOfRange is returned by both backends when a wallet update
// would overflow DECIMAL(10,2).
var errBalanceOutOfRange = appErrors.Invalid("balance: Ensure that there are no more than 10 digits in total.")

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

type dbExpense struct {
	ID        string
	UserID    string
	Amount    decimal.Decimal
	Category  string
	Note      string
	Date      time.Time
	CreatedAt time.Time
}

const expenseColumns = "id, user_id, amount, category, note, date, created_at"

func scanExpense(row rowScanner) (budgetModel.Expense, error) {
	var dbE dbExpense
	if err := row.Scan(&dbE.ID, &dbE.UserID, &dbE.Amount, &dbE.Category, &dbE.Note, &dbE.Date, &dbE.CreatedAt); err != nil {
		return budgetModel.Expense{}, err
	}
	return budgetModel.Expense{
		ID:        dbE.ID,
		UserID:    dbE.UserID,
		Amount:    dbE.Amount,
		Category:  budgetModel.Category(dbE.Category),
		Note:      dbE.Note,
		Date:      budgetModel.CivilDate(dbE.Date),
		CreatedAt: dbE.CreatedAt.UTC(),
	}, nil
}

const walletColumns = "id, user_id, balance"

func scanWallet(row rowScanner) (budgetModel.Wallet, error) {
	var w budgetModel.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Balance)
	return w, err
}

const budgetColumns = "id, user_id, daily_budget, monthly_budget, yearly_budget, notify_on_threshold"

func scanBudget(row rowScanner) (budgetModel.Budget, error) {
	var b budgetModel.Budget
	err := row.Scan(&b.ID, &b.UserID, &b.DailyBudget, &b.MonthlyBudget, &b.YearlyBudget, &b.NotifyOnThreshold)
	return b, err
}

// budgetColumn maps a period onto its limit column. Only these names are
// ever interpolated into SQL.
var budgetColumn = map[budgetModel.Period]string{
	budgetModel.PeriodDaily:   "daily_budget",
	budgetModel.PeriodMonthly: "monthly_budget",
	budgetModel.PeriodYearly:  "yearly_budget",
}

func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}
