package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	appErrors "github.com/Kasis11/budgetly/errors"
	authModel "github.com/Kasis11/budgetly/internal/auth"
	budgetModel "github.com/Kasis11/budgetly/internal/budget"
)

// InMemoryStorage keeps everything in process memory. A single mutex makes
// each operation atomic, matching the row-level guarantees of MySQLStorage.
type InMemoryStorage struct {
	mu       sync.Mutex
	users    map[string]authModel.User
	wallets  map[string]budgetModel.Wallet // by user id
	expenses map[string]budgetModel.Expense
	budgets  map[string]budgetModel.Budget // by user id
}

func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		users:    make(map[string]authModel.User),
		wallets:  make(map[string]budgetModel.Wallet),
		expenses: make(map[string]budgetModel.Expense),
		budgets:  make(map[string]budgetModel.Budget),
	}
}

func (inMem *InMemoryStorage) GetStorageType() string {
	return "inmemory"
}

func (inMem *InMemoryStorage) SaveUserWithWallet(ctx context.Context, user authModel.User, wallet budgetModel.Wallet) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	if _, ok := inMem.findUser(user.UserName); ok {
		return appErrors.Invalid("username: A user with that username already exists.")
	}
	inMem.users[user.ID] = user
	inMem.wallets[user.ID] = wallet
	return nil
}

func (inMem *InMemoryStorage) findUser(username string) (authModel.User, bool) {
	for _, user := range inMem.users {
		if strings.EqualFold(user.UserName, username) {
			return user, true
		}
	}
	return authModel.User{}, false
}

func (inMem *InMemoryStorage) IsUserExists(ctx context.Context, username string) (bool, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	_, ok := inMem.findUser(username)
	return ok, nil
}

func (inMem *InMemoryStorage) GetUserByUsername(ctx context.Context, username string) (authModel.User, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	user, ok := inMem.findUser(username)
	if !ok {
		return authModel.User{}, appErrors.NotFound("User not found.")
	}
	return user, nil
}

func (inMem *InMemoryStorage) GetUserByID(ctx context.Context, userID string) (authModel.User, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	user, ok := inMem.users[userID]
	if !ok {
		return authModel.User{}, appErrors.NotFound("User not found.")
	}
	return user, nil
}

func (inMem *InMemoryStorage) ListWallets(ctx context.Context, userID string) ([]budgetModel.Wallet, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	wallets := []budgetModel.Wallet{}
	if w, ok := inMem.wallets[userID]; ok {
		wallets = append(wallets, w)
	}
	return wallets, nil
}

func (inMem *InMemoryStorage) GetWallet(ctx context.Context, userID string, walletID string) (budgetModel.Wallet, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	w, ok := inMem.wallets[userID]
	if !ok || w.ID != walletID {
		return budgetModel.Wallet{}, appErrors.NotFound("Not found.")
	}
	return w, nil
}

func (inMem *InMemoryStorage) SaveWallet(ctx context.Context, wallet budgetModel.Wallet) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	if _, ok := inMem.wallets[wallet.UserID]; ok {
		return appErrors.New(appErrors.ErrConflict, "Wallet already exists for this user.")
	}
	inMem.wallets[wallet.UserID] = wallet
	return nil
}

// adjustWallet must be called with mu held. Like the DECIMAL(10,2) column,
// it refuses a balance beyond MaxBalanceAmount either way.
func (inMem *InMemoryStorage) adjustWallet(userID string, newWalletID string, delta decimal.Decimal) (budgetModel.Wallet, error) {
	w, ok := inMem.wallets[userID]
	if !ok {
		w = budgetModel.Wallet{ID: newWalletID, UserID: userID, Balance: decimal.Zero}
	}
	balance := w.Balance.Add(delta)
	if balance.Abs().GreaterThan(budgetModel.MaxBalanceAmount) {
		return budgetModel.Wallet{}, errBalanceOutOfRange
	}
	w.Balance = balance
	inMem.wallets[userID] = w
	return w, nil
}

func (inMem *InMemoryStorage) CreditWallet(ctx context.Context, userID string, newWalletID string, amount decimal.Decimal) (budgetModel.Wallet, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	return inMem.adjustWallet(userID, newWalletID, amount)
}

func (inMem *InMemoryStorage) SaveExpense(ctx context.Context, e budgetModel.Expense, newWalletID string) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	if _, err := inMem.adjustWallet(e.UserID, newWalletID, e.Amount.Neg()); err != nil {
		return err
	}
	inMem.expenses[e.ID] = e
	return nil
}

func (inMem *InMemoryStorage) ListExpenses(ctx context.Context, userID string) ([]budgetModel.Expense, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	result := []budgetModel.Expense{}
	for _, e := range inMem.expenses {
		if e.UserID == userID {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (inMem *InMemoryStorage) GetExpense(ctx context.Context, userID string, expenseID string) (budgetModel.Expense, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	e, ok := inMem.expenses[expenseID]
	if !ok || e.UserID != userID {
		return budgetModel.Expense{}, appErrors.NotFound("Not found.")
	}
	return e, nil
}

func (inMem *InMemoryStorage) UpdateExpense(ctx context.Context, e budgetModel.Expense) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	current, ok := inMem.expenses[e.ID]
	if !ok || current.UserID != e.UserID {
		return appErrors.NotFound("Not found.")
	}
	inMem.expenses[e.ID] = e
	return nil
}

func (inMem *InMemoryStorage) DeleteExpense(ctx context.Context, userID string, expenseID string, refund bool) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	e, ok := inMem.expenses[expenseID]
	if !ok || e.UserID != userID {
		return appErrors.NotFound("Not found.")
	}
	if refund {
		if _, ok := inMem.wallets[userID]; ok {
			if _, err := inMem.adjustWallet(userID, "", e.Amount); err != nil {
				return err
			}
		}
	}
	delete(inMem.expenses, expenseID)
	return nil
}

func (inMem *InMemoryStorage) SumExpenses(ctx context.Context, userID string, from time.Time, to time.Time) (decimal.Decimal, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	total := decimal.Zero
	for _, e := range inMem.expenses {
		if e.UserID != userID || e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		total = total.Add(e.Amount)
	}
	return total, nil
}

func (inMem *InMemoryStorage) ListBudgets(ctx context.Context, userID string) ([]budgetModel.Budget, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	budgets := []budgetModel.Budget{}
	if b, ok := inMem.budgets[userID]; ok {
		budgets = append(budgets, b)
	}
	return budgets, nil
}

func (inMem *InMemoryStorage) GetBudget(ctx context.Context, userID string) (budgetModel.Budget, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	b, ok := inMem.budgets[userID]
	if !ok {
		return budgetModel.Budget{}, appErrors.NotFound("No budget set.")
	}
	return b, nil
}

func (inMem *InMemoryStorage) GetBudgetByID(ctx context.Context, userID string, budgetID string) (budgetModel.Budget, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	b, ok := inMem.budgets[userID]
	if !ok || b.ID != budgetID {
		return budgetModel.Budget{}, appErrors.NotFound("Not found.")
	}
	return b, nil
}

func (inMem *InMemoryStorage) UpsertBudget(ctx context.Context, userID string, newBudgetID string, period budgetModel.Period, amount decimal.Decimal, notify bool) (budgetModel.Budget, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	b, ok := inMem.budgets[userID]
	if !ok {
		b = budgetModel.Budget{ID: newBudgetID, UserID: userID}
	}
	switch period {
	case budgetModel.PeriodDaily:
		b.DailyBudget = amount
	case budgetModel.PeriodMonthly:
		b.MonthlyBudget = amount
	case budgetModel.PeriodYearly:
		b.YearlyBudget = amount
	default:
		return budgetModel.Budget{}, appErrors.Invalid("Invalid period.")
	}
	b.NotifyOnThreshold = notify
	inMem.budgets[userID] = b
	return b, nil
}

func (inMem *InMemoryStorage) UpdateBudget(ctx context.Context, b budgetModel.Budget) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	current, ok := inMem.budgets[b.UserID]
	if !ok || current.ID != b.ID {
		return appErrors.NotFound("Not found.")
	}
	inMem.budgets[b.UserID] = b
	return nil
}

func (inMem *InMemoryStorage) DeleteBudget(ctx context.Context, userID string, budgetID string) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	b, ok := inMem.budgets[userID]
	if !ok || b.ID != budgetID {
		return appErrors.NotFound("Not found.")
	}
	delete(inMem.budgets, userID)
	return nil
}
