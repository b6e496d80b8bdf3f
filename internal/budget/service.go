package budget

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	appErrors "github.com/Kasis11/budgetly/errors"
	"github.com/Kasis11/budgetly/internal/auth"
	"github.com/Kasis11/budgetly/internal/contextutil"
	"github.com/Kasis11/budgetly/logging"
)

var (
	// DECIMAL(8,2) on expense.amount
	MaxExpenseAmount = decimal.RequireFromString("999999.99")
	// DECIMAL(10,2) on wallet.balance and the budget limits
	MaxBalanceAmount = decimal.RequireFromString("99999999.99")
)

const MAX_EXPENSE_NOTE_LENGTH = 1000

type Storage interface {
	SaveUserWithWallet(ctx context.Context, user auth.User, wallet Wallet) error
	IsUserExists(ctx context.Context, username string) (bool, error)
	GetUserByUsername(ctx context.Context, username string) (auth.User, error)
	GetUserByID(ctx context.Context, userID string) (auth.User, error)

	ListWallets(ctx context.Context, userID string) ([]Wallet, error)
	GetWallet(ctx context.Context, userID string, walletID string) (Wallet, error)
	SaveWallet(ctx context.Context, wallet Wallet) error
	// CreditWallet adds amount to the user's wallet, creating it under
	// newWalletID when missing, and returns the updated wallet.
	CreditWallet(ctx context.Context, userID string, newWalletID string, amount decimal.Decimal) (Wallet, error)

	// SaveExpense inserts e and debits the owner's wallet in one transaction.
	SaveExpense(ctx context.Context, e Expense, newWalletID string) error
	ListExpenses(ctx context.Context, userID string) ([]Expense, error)
	GetExpense(ctx context.Context, userID string, expenseID string) (Expense, error)
	UpdateExpense(ctx context.Context, e Expense) error
	// DeleteExpense removes the expense and, when refund is set, credits its
	// amount back to the wallet in the same transaction.
	DeleteExpense(ctx context.Context, userID string, expenseID string, refund bool) error
	// SumExpenses totals amounts dated within [from, to], both inclusive.
	SumExpenses(ctx context.Context, userID string, from time.Time, to time.Time) (decimal.Decimal, error)

	ListBudgets(ctx context.Context, userID string) ([]Budget, error)
	GetBudget(ctx context.Context, userID string) (Budget, error)
	GetBudgetByID(ctx context.Context, userID string, budgetID string) (Budget, error)
	// UpsertBudget creates the user's budget with zero limits when missing,
	// then sets the limit for period and the notify flag.
	UpsertBudget(ctx context.Context, userID string, newBudgetID string, period Period, amount decimal.Decimal, notify bool) (Budget, error)
	UpdateBudget(ctx context.Context, b Budget) error
	DeleteBudget(ctx context.Context, userID string, budgetID string) error

	GetStorageType() string
}

type Tracker struct {
	storage     Storage
	tokens      *auth.TokenManager
	now         func() time.Time
	loc         *time.Location
	StorageType string
}

type Option func(*Tracker)

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLocation sets the zone that decides which calendar day "today" is.
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) { t.loc = loc }
}

func NewTracker(s Storage, tokens *auth.TokenManager, opts ...Option) *Tracker {
	t := &Tracker{
		storage:     s,
		tokens:      tokens,
		now:         time.Now,
		loc:         time.UTC,
		StorageType: s.GetStorageType(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Register creates the user together with an empty wallet.
func (bt *Tracker) Register(ctx context.Context, newUser auth.NewUser) (auth.User, error) {
	newUser.UserName = strings.TrimSpace(newUser.UserName)
	newUser.Email = strings.ToLower(strings.TrimSpace(newUser.Email))
	if err := newUser.ValidateUserFields(); err != nil {
		return auth.User{}, err
	}

	exists, err := bt.storage.IsUserExists(ctx, newUser.UserName)
	if err != nil {
		return auth.User{}, fmt.Errorf("failed to check username availability: %w", err)
	}
	if exists {
		return auth.User{}, appErrors.Invalid("username: A user with that username already exists.")
	}

	hashed, err := auth.HashPassword(newUser.PasswordPlain)
	if err != nil {
		return auth.User{}, err
	}

	user := auth.User{
		ID:             uuid.New().String(),
		UserName:       newUser.UserName,
		Email:          newUser.Email,
		PasswordHashed: hashed,
		JoinedAt:       bt.now().UTC(),
	}
	wallet := Wallet{
		ID:      uuid.New().String(),
		UserID:  user.ID,
		Balance: decimal.Zero,
	}

	if err := bt.storage.SaveUserWithWallet(ctx, user, wallet); err != nil {
		return auth.User{}, fmt.Errorf("failed to register user: %w", err)
	}

	logging.Logger.Infof("[TraceID=%s] | registered user %s", contextutil.TraceIDFromContext(ctx), user.ID)
	return user, nil
}

// ObtainTokens checks the credentials and issues an access/refresh pair.
func (bt *Tracker) ObtainTokens(ctx context.Context, credentials auth.UserCredentialsPure) (auth.TokenPair, error) {
	if err := credentials.Validate(); err != nil {
		return auth.TokenPair{}, err
	}

	noAccount := appErrors.ErrorResponse{
		Code:    appErrors.ErrAuth,
		Message: "No active account found with the given credentials",
	}

	user, err := bt.storage.GetUserByUsername(ctx, credentials.UserName)
	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrNotFound) {
			return auth.TokenPair{}, noAccount
		}
		return auth.TokenPair{}, fmt.Errorf("failed to load user: %w", err)
	}
	if err := auth.CheckPassword(user.PasswordHashed, credentials.PasswordPlain); err != nil {
		return auth.TokenPair{}, noAccount
	}

	pair, err := bt.tokens.IssuePair(user.ID)
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("failed to issue tokens: %w", err)
	}
	return pair, nil
}

func (bt *Tracker) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", appErrors.Invalid("refresh: This field is required.")
	}
	return bt.tokens.Refresh(refreshToken)
}

// Authenticate resolves an access token to the id of an existing user.
func (bt *Tracker) Authenticate(ctx context.Context, accessToken string) (string, error) {
	userID, err := bt.tokens.Verify(accessToken, auth.TokenTypeAccess)
	if err != nil {
		return "", err
	}
	if _, err := bt.storage.GetUserByID(ctx, userID); err != nil {
		if appErrors.HasCode(err, appErrors.ErrNotFound) {
			return "", appErrors.ErrorResponse{Code: appErrors.ErrAuth, Message: "User not found"}
		}
		return "", fmt.Errorf("failed to load user: %w", err)
	}
	return userID, nil
}

func (bt *Tracker) ListWallets(ctx context.Context, userID string) ([]Wallet, error) {
	wallets, err := bt.storage.ListWallets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	return wallets, nil
}

func (bt *Tracker) GetWallet(ctx context.Context, userID string, walletID string) (Wallet, error) {
	w, err := bt.storage.GetWallet(ctx, userID, walletID)
	if err != nil {
		return Wallet{}, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

// CreateWallet makes the caller's wallet when registration did not.
func (bt *Tracker) CreateWallet(ctx context.Context, userID string, balance decimal.Decimal) (Wallet, error) {
	if err := validateMoney("balance", balance, MaxBalanceAmount, true); err != nil {
		return Wallet{}, err
	}
	w := Wallet{
		ID:      uuid.New().String(),
		UserID:  userID,
		Balance: balance,
	}
	if err := bt.storage.SaveWallet(ctx, w); err != nil {
		return Wallet{}, fmt.Errorf("failed to create wallet: %w", err)
	}
	return w, nil
}

// AddAmount credits the caller's wallet, creating it if needed.
func (bt *Tracker) AddAmount(ctx context.Context, userID string, amount decimal.Decimal) (Wallet, error) {
	if err := validateMoney("amount", amount, MaxBalanceAmount, false); err != nil {
		return Wallet{}, err
	}
	w, err := bt.storage.CreditWallet(ctx, userID, uuid.New().String(), amount)
	if err != nil {
		return Wallet{}, fmt.Errorf("failed to add amount: %w", err)
	}
	return w, nil
}

// validateMoney enforces the column precision: at most two decimal places
// and no more than max. Zero passes only when allowZero.
func validateMoney(field string, amount decimal.Decimal, max decimal.Decimal, allowZero bool) error {
	if amount.IsNegative() || (!allowZero && amount.IsZero()) {
		if allowZero {
			return appErrors.Invalid("%s: Ensure this value is greater than or equal to 0.", field)
		}
		return appErrors.Invalid("%s: Ensure this value is greater than 0.", field)
	}
	if !amount.Equal(amount.Round(2)) {
		return appErrors.Invalid("%s: Ensure that there are no more than 2 decimal places.", field)
	}
	if amount.GreaterThan(max) {
		return appErrors.Invalid("%s: Ensure this value is less than or equal to %s.", field, max.StringFixed(2))
	}
	return nil
}
