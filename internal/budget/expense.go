package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/Kasis11/budgetly/errors"
	"github.com/Kasis11/budgetly/internal/contextutil"
	"github.com/Kasis11/budgetly/logging"
)

// CreateExpense records the expense and debits the caller's wallet by its
// amount. The wallet is created first when the user has none.
func (bt *Tracker) CreateExpense(ctx context.Context, userID string, req ExpenseRequest) (Expense, error) {
	e := Expense{
		ID:        uuid.New().String(),
		UserID:    userID,
		Amount:    req.Amount,
		Category:  req.Category,
		Note:      req.Note,
		Date:      CivilDate(req.Date),
		CreatedAt: bt.now().UTC(),
	}
	if err := validateExpense(e); err != nil {
		return Expense{}, err
	}

	if err := bt.storage.SaveExpense(ctx, e, uuid.New().String()); err != nil {
		return Expense{}, fmt.Errorf("failed to save expense: %w", err)
	}

	logging.Logger.Debugf("[TraceID=%s] | expense %s of %s debited from wallet of user %s",
		contextutil.TraceIDFromContext(ctx), e.ID, e.Amount.StringFixed(2), userID)
	return e, nil
}

// ListExpenses returns the user's expenses, newest date first.
func (bt *Tracker) ListExpenses(ctx context.Context, userID string) ([]Expense, error) {
	expenses, err := bt.storage.ListExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	return expenses, nil
}

func (bt *Tracker) GetExpense(ctx context.Context, userID string, expenseID string) (Expense, error) {
	e, err := bt.storage.GetExpense(ctx, userID, expenseID)
	if err != nil {
		return Expense{}, fmt.Errorf("failed to get expense: %w", err)
	}
	return e, nil
}

// UpdateExpense applies patch to the stored expense. The wallet is not
// adjusted for a changed amount.
func (bt *Tracker) UpdateExpense(ctx context.Context, userID string, expenseID string, patch ExpensePatch) (Expense, error) {
	e, err := bt.storage.GetExpense(ctx, userID, expenseID)
	if err != nil {
		return Expense{}, fmt.Errorf("failed to get expense: %w", err)
	}

	if patch.Amount != nil {
		e.Amount = *patch.Amount
	}
	if patch.Category != nil {
		e.Category = *patch.Category
	}
	if patch.Note != nil {
		e.Note = *patch.Note
	}
	if patch.Date != nil {
		e.Date = CivilDate(*patch.Date)
	}
	if err := validateExpense(e); err != nil {
		return Expense{}, err
	}

	if err := bt.storage.UpdateExpense(ctx, e); err != nil {
		return Expense{}, fmt.Errorf("failed to update expense: %w", err)
	}
	return e, nil
}

// DeleteExpense removes the expense. With refund the amount goes back to
// the wallet; without it the balance is left as is.
func (bt *Tracker) DeleteExpense(ctx context.Context, userID string, expenseID string, refund bool) error {
	if err := bt.storage.DeleteExpense(ctx, userID, expenseID, refund); err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return nil
}

func validateExpense(e Expense) error {
	if err := validateMoney("amount", e.Amount, MaxExpenseAmount, false); err != nil {
		return err
	}
	if !e.Category.Valid() {
		return appErrors.Invalid("category: \"%s\" is not a valid choice.", e.Category)
	}
	if len(e.Note) > MAX_EXPENSE_NOTE_LENGTH {
		return appErrors.Invalid("note: Ensure this field has no more than %d characters.", MAX_EXPENSE_NOTE_LENGTH)
	}
	if e.Date.IsZero() {
		return appErrors.Invalid("date: This field is required.")
	}
	return nil
}

// CivilDate truncates t to midnight UTC of its own calendar day.
func CivilDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
