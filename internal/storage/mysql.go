package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	appErrors "github.com/Kasis11/budgetly/errors"
	authModel "github.com/Kasis11/budgetly/internal/auth"
	budgetModel "github.com/Kasis11/budgetly/internal/budget"
	"github.com/Kasis11/budgetly/internal/contextutil"
	"github.com/Kasis11/budgetly/logging"
)

const (
	mysqlErrDuplicateEntry = 1062
	mysqlErrOutOfRange     = 1264
)

// --- INIT START --- //

// Init creates the database when missing, runs the migrations and returns a
// handle to it. The server is polled until it answers or ctx ends.
func Init(ctx context.Context, dsn string) (*sql.DB, error) {
	cfg, err := applicationConfig(dsn)
	if err != nil {
		return nil, err
	}
	dsn = cfg.FormatDSN()
	dbname := cfg.DBName
	if dbname == "" {
		return nil, fmt.Errorf("database name missing from dsn")
	}

	adminCfg := cfg.Clone()
	adminCfg.DBName = ""

	logging.Logger.Info("Connecting to MySQL server for initialization...")
	adminDb, err := sql.Open("mysql", adminCfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open admin mysql handle: %w", err)
	}
	defer adminDb.Close()

	if err := waitForServer(ctx, adminDb, 15, 3*time.Second); err != nil {
		return nil, err
	}

	var dbnameExistence string
	checkDbnameExistQuery := "SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?"
	err = adminDb.QueryRowContext(ctx, checkDbnameExistQuery, dbname).Scan(&dbnameExistence)
	if errors.Is(err, sql.ErrNoRows) {
		logging.Logger.Infof("Database '%s' does not exist, creating...", dbname)
		createDbSql := fmt.Sprintf("CREATE DATABASE `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_general_ci", dbname)
		if _, err := adminDb.ExecContext(ctx, createDbSql); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %w", err)
	}

	logging.Logger.Info("Running migrations...")
	if err := RunMigrations(dsn); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database handle: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logging.Logger.Info("Connected to database successfully")
	return db, nil
}

// applicationConfig parses dsn and forces the options the row scanners
// depend on: DATE and DATETIME columns are read into time.Time in UTC.
func applicationConfig(dsn string) (*mysql.Config, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg, nil
}

func waitForServer(ctx context.Context, db *sql.DB, attempts int, delay time.Duration) error {
	for i := 0; i < attempts; i++ {
		if err := db.PingContext(ctx); err == nil {
			return nil
		}
		logging.Logger.Warnf("Database not ready, retrying... (%d/%d)", i+1, attempts)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("database unreachable after multiple attempts")
}

// --- INIT END --- //

type MySQLStorage struct {
	db *sql.DB
}

func NewMySQLStorage(db *sql.DB) *MySQLStorage {
	return &MySQLStorage{db: db}
}

func (mySql *MySQLStorage) GetStorageType() string {
	return "MySQL"
}

// internalError logs the driver error and hides it behind message.
func internalError(ctx context.Context, where string, err error, message string) error {
	logging.Logger.Errorf("[TraceID=%s] | failed in Storage.%s() | Error: %v", contextutil.TraceIDFromContext(ctx), where, err)
	return appErrors.Internal(message)
}

func isMySQLError(err error, number uint16) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == number
}

// --- USERS --- //

func (mySql *MySQLStorage) SaveUserWithWallet(ctx context.Context, user authModel.User, wallet budgetModel.Wallet) error {
	tx, err := mySql.db.BeginTx(ctx, nil)
	if err != nil {
		return internalError(ctx, "SaveUserWithWallet", err, "Registration failed, try again later.")
	}
	defer rollback(tx)

	query := "INSERT INTO user (id, username, email, hashed_password, joined_at) VALUES (?, ?, ?, ?, ?)"
	if _, err := tx.ExecContext(ctx, query, user.ID, user.UserName, user.Email, user.PasswordHashed, user.JoinedAt); err != nil {
		if isMySQLError(err, mysqlErrDuplicateEntry) {
			return appErrors.Invalid("username: A user with that username already exists.")
		}
		return internalError(ctx, "SaveUserWithWallet", err, "Registration failed, try again later.")
	}

	walletQuery := "INSERT INTO wallet (id, user_id, balance) VALUES (?, ?, ?)"
	if _, err := tx.ExecContext(ctx, walletQuery, wallet.ID, wallet.UserID, wallet.Balance); err != nil {
		return internalError(ctx, "SaveUserWithWallet", err, "Registration failed, try again later.")
	}

	if err := tx.Commit(); err != nil {
		return internalError(ctx, "SaveUserWithWallet", err, "Registration failed, try again later.")
	}
	return nil
}

func (mySql *MySQLStorage) IsUserExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := mySql.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM user WHERE username = ?)", username).Scan(&exists)
	if err != nil {
		return false, internalError(ctx, "IsUserExists", err, "Failed to check username, try again later.")
	}
	return exists, nil
}

func (mySql *MySQLStorage) getUser(ctx context.Context, where string, column string, value string) (authModel.User, error) {
	query := "SELECT id, username, email, hashed_password, joined_at FROM user WHERE " + column + " = ?"
	var user authModel.User
	err := mySql.db.QueryRowContext(ctx, query, value).Scan(&user.ID, &user.UserName, &user.Email, &user.PasswordHashed, &user.JoinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return authModel.User{}, appErrors.NotFound("User not found.")
		}
		return authModel.User{}, internalError(ctx, where, err, "Failed to load user, try again later.")
	}
	return user, nil
}

func (mySql *MySQLStorage) GetUserByUsername(ctx context.Context, username string) (authModel.User, error) {
	return mySql.getUser(ctx, "GetUserByUsername", "username", username)
}

func (mySql *MySQLStorage) GetUserByID(ctx context.Context, userID string) (authModel.User, error) {
	return mySql.getUser(ctx, "GetUserByID", "id", userID)
}

// --- WALLETS --- //

func (mySql *MySQLStorage) ListWallets(ctx context.Context, userID string) ([]budgetModel.Wallet, error) {
	rows, err := mySql.db.QueryContext(ctx, "SELECT "+walletColumns+" FROM wallet WHERE user_id = ?", userID)
	if err != nil {
		return nil, internalError(ctx, "ListWallets", err, "Failed to get wallets, try again later.")
	}
	defer rows.Close()

	wallets := []budgetModel.Wallet{}
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, internalError(ctx, "ListWallets", err, "Failed to get wallets, try again later.")
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, internalError(ctx, "ListWallets", err, "Failed to get wallets, try again later.")
	}
	return wallets, nil
}

func (mySql *MySQLStorage) GetWallet(ctx context.Context, userID string, walletID string) (budgetModel.Wallet, error) {
	row := mySql.db.QueryRowContext(ctx, "SELECT "+walletColumns+" FROM wallet WHERE id = ? AND user_id = ?", walletID, userID)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return budgetModel.Wallet{}, appErrors.NotFound("Not found.")
		}
		return budgetModel.Wallet{}, internalError(ctx, "GetWallet", err, "Failed to get wallet, try again later.")
	}
	return w, nil
}

func (mySql *MySQLStorage) SaveWallet(ctx context.Context, wallet budgetModel.Wallet) error {
	query := "INSERT INTO wallet (id, user_id, balance) VALUES (?, ?, ?)"
	if _, err := mySql.db.ExecContext(ctx, query, wallet.ID, wallet.UserID, wallet.Balance); err != nil {
		if isMySQLError(err, mysqlErrDuplicateEntry) {
			return appErrors.New(appErrors.ErrConflict, "Wallet already exists for this user.")
		}
		return internalError(ctx, "SaveWallet", err, "Failed to create wallet, try again later.")
	}
	return nil
}

// adjustWallet moves the balance by delta in one statement, creating the
// wallet when the user has none.
func adjustWallet(ctx context.Context, tx *sql.Tx, userID string, newWalletID string, delta decimal.Decimal) error {
	query := `INSERT INTO wallet (id, user_id, balance) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE balance = balance + ?`
	_, err := tx.ExecContext(ctx, query, newWalletID, userID, delta, delta)
	return err
}

func walletWriteError(ctx context.Context, where string, err error) error {
	if isMySQLError(err, mysqlErrOutOfRange) {
		return errBalanceOutOfRange
	}
	return internalError(ctx, where, err, "Failed to update wallet, try again later.")
}

func (mySql *MySQLStorage) CreditWallet(ctx context.Context, userID string, newWalletID string, amount decimal.Decimal) (budgetModel.Wallet, error) {
	tx, err := mySql.db.BeginTx(ctx, nil)
	if err != nil {
		return budgetModel.Wallet{}, internalError(ctx, "CreditWallet", err, "Failed to update wallet, try again later.")
	}
	defer rollback(tx)

	if err := adjustWallet(ctx, tx, userID, newWalletID, amount); err != nil {
		return budgetModel.Wallet{}, walletWriteError(ctx, "CreditWallet", err)
	}

	w, err := scanWallet(tx.QueryRowContext(ctx, "SELECT "+walletColumns+" FROM wallet WHERE user_id = ?", userID))
	if err != nil {
		return budgetModel.Wallet{}, internalError(ctx, "CreditWallet", err, "Failed to update wallet, try again later.")
	}

	if err := tx.Commit(); err != nil {
		return budgetModel.Wallet{}, internalError(ctx, "CreditWallet", err, "Failed to update wallet, try again later.")
	}
	return w, nil
}

// --- EXPENSES --- //

func (mySql *MySQLStorage) SaveExpense(ctx context.Context, e budgetModel.Expense, newWalletID string) error {
	tx, err := mySql.db.BeginTx(ctx, nil)
	if err != nil {
		return internalError(ctx, "SaveExpense", err, "Failed to save expense, try again later.")
	}
	defer rollback(tx)

	if err := adjustWallet(ctx, tx, e.UserID, newWalletID, e.Amount.Neg()); err != nil {
		return walletWriteError(ctx, "SaveExpense", err)
	}

	query := "INSERT INTO expense (" + expenseColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?)"
	_, err = tx.ExecContext(ctx, query, e.ID, e.UserID, e.Amount, string(e.Category), e.Note, e.Date.Format(dateLayout), e.CreatedAt)
	if err != nil {
		return internalError(ctx, "SaveExpense", err, "Failed to save expense, try again later.")
	}

	if err := tx.Commit(); err != nil {
		return internalError(ctx, "SaveExpense", err, "Failed to save expense, try again later.")
	}
	return nil
}

func (mySql *MySQLStorage) ListExpenses(ctx context.Context, userID string) ([]budgetModel.Expense, error) {
	query := "SELECT " + expenseColumns + " FROM expense WHERE user_id = ? ORDER BY date DESC, created_at DESC"
	rows, err := mySql.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, internalError(ctx, "ListExpenses", err, "Failed to get expenses, try again later.")
	}
	defer rows.Close()

	expenses := []budgetModel.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, internalError(ctx, "ListExpenses", err, "Failed to get expenses, try again later.")
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, internalError(ctx, "ListExpenses", err, "Failed to get expenses, try again later.")
	}
	return expenses, nil
}

func (mySql *MySQLStorage) GetExpense(ctx context.Context, userID string, expenseID string) (budgetModel.Expense, error) {
	query := "SELECT " + expenseColumns + " FROM expense WHERE id = ? AND user_id = ?"
	e, err := scanExpense(mySql.db.QueryRowContext(ctx, query, expenseID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return budgetModel.Expense{}, appErrors.NotFound("Not found.")
		}
		return budgetModel.Expense{}, internalError(ctx, "GetExpense", err, "Failed to get expense, try again later.")
	}
	return e, nil
}

func (mySql *MySQLStorage) UpdateExpense(ctx context.Context, e budgetModel.Expense) error {
	query := "UPDATE expense SET amount = ?, category = ?, note = ?, date = ? WHERE id = ? AND user_id = ?"
	res, err := mySql.db.ExecContext(ctx, query, e.Amount, string(e.Category), e.Note, e.Date.Format(dateLayout), e.ID, e.UserID)
	if err != nil {
		return internalError(ctx, "UpdateExpense", err, "Failed to update expense, try again later.")
	}

	// MySQL reports zero affected rows for an unchanged row, so only a
	// missing row is treated as not found.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := mySql.GetExpense(ctx, e.UserID, e.ID); err != nil {
			return err
		}
	}
	return nil
}

func (mySql *MySQLStorage) DeleteExpense(ctx context.Context, userID string, expenseID string, refund bool) error {
	tx, err := mySql.db.BeginTx(ctx, nil)
	if err != nil {
		return internalError(ctx, "DeleteExpense", err, "Failed to delete expense, try again later.")
	}
	defer rollback(tx)

	var amount decimal.Decimal
	err = tx.QueryRowContext(ctx, "SELECT amount FROM expense WHERE id = ? AND user_id = ? FOR UPDATE", expenseID, userID).Scan(&amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.NotFound("Not found.")
		}
		return internalError(ctx, "DeleteExpense", err, "Failed to delete expense, try again later.")
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM expense WHERE id = ? AND user_id = ?", expenseID, userID); err != nil {
		return internalError(ctx, "DeleteExpense", err, "Failed to delete expense, try again later.")
	}

	if refund {
		if _, err := tx.ExecContext(ctx, "UPDATE wallet SET balance = balance + ? WHERE user_id = ?", amount, userID); err != nil {
			return walletWriteError(ctx, "DeleteExpense", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return internalError(ctx, "DeleteExpense", err, "Failed to delete expense, try again later.")
	}
	return nil
}

func (mySql *MySQLStorage) SumExpenses(ctx context.Context, userID string, from time.Time, to time.Time) (decimal.Decimal, error) {
	query := "SELECT IFNULL(SUM(amount), 0) FROM expense WHERE user_id = ? AND date BETWEEN ? AND ?"
	var total decimal.Decimal
	err := mySql.db.QueryRowContext(ctx, query, userID, from.Format(dateLayout), to.Format(dateLayout)).Scan(&total)
	if err != nil {
		return decimal.Zero, internalError(ctx, "SumExpenses", err, "Failed to get total amount of expenses, try again later.")
	}
	return total, nil
}

// --- BUDGETS --- //

func (mySql *MySQLStorage) ListBudgets(ctx context.Context, userID string) ([]budgetModel.Budget, error) {
	rows, err := mySql.db.QueryContext(ctx, "SELECT "+budgetColumns+" FROM budget WHERE user_id = ?", userID)
	if err != nil {
		return nil, internalError(ctx, "ListBudgets", err, "Failed to get budgets, try again later.")
	}
	defer rows.Close()

	budgets := []budgetModel.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, internalError(ctx, "ListBudgets", err, "Failed to get budgets, try again later.")
		}
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, internalError(ctx, "ListBudgets", err, "Failed to get budgets, try again later.")
	}
	return budgets, nil
}

func (mySql *MySQLStorage) GetBudget(ctx context.Context, userID string) (budgetModel.Budget, error) {
	b, err := scanBudget(mySql.db.QueryRowContext(ctx, "SELECT "+budgetColumns+" FROM budget WHERE user_id = ?", userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return budgetModel.Budget{}, appErrors.NotFound("No budget set.")
		}
		return budgetModel.Budget{}, internalError(ctx, "GetBudget", err, "Failed to get budget, try again later.")
	}
	return b, nil
}

func (mySql *MySQLStorage) GetBudgetByID(ctx context.Context, userID string, budgetID string) (budgetModel.Budget, error) {
	query := "SELECT " + budgetColumns + " FROM budget WHERE id = ? AND user_id = ?"
	b, err := scanBudget(mySql.db.QueryRowContext(ctx, query, budgetID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return budgetModel.Budget{}, appErrors.NotFound("Not found.")
		}
		return budgetModel.Budget{}, internalError(ctx, "GetBudgetByID", err, "Failed to get budget, try again later.")
	}
	return b, nil
}

func (mySql *MySQLStorage) UpsertBudget(ctx context.Context, userID string, newBudgetID string, period budgetModel.Period, amount decimal.Decimal, notify bool) (budgetModel.Budget, error) {
	column, ok := budgetColumn[period]
	if !ok {
		return budgetModel.Budget{}, appErrors.Invalid("Invalid period.")
	}

	limits := map[string]decimal.Decimal{
		"daily_budget":   decimal.Zero,
		"monthly_budget": decimal.Zero,
		"yearly_budget":  decimal.Zero,
	}
	limits[column] = amount

	tx, err := mySql.db.BeginTx(ctx, nil)
	if err != nil {
		return budgetModel.Budget{}, internalError(ctx, "UpsertBudget", err, "Failed to save budget, try again later.")
	}
	defer rollback(tx)

	query := `INSERT INTO budget (` + budgetColumns + `) VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE ` + column + ` = ?, notify_on_threshold = ?`
	_, err = tx.ExecContext(ctx, query,
		newBudgetID, userID, limits["daily_budget"], limits["monthly_budget"], limits["yearly_budget"], notify,
		amount, notify)
	if err != nil {
		if isMySQLError(err, mysqlErrOutOfRange) {
			return budgetModel.Budget{}, appErrors.Invalid("amount: Ensure that there are no more than 10 digits in total.")
		}
		return budgetModel.Budget{}, internalError(ctx, "UpsertBudget", err, "Failed to save budget, try again later.")
	}

	b, err := scanBudget(tx.QueryRowContext(ctx, "SELECT "+budgetColumns+" FROM budget WHERE user_id = ?", userID))
	if err != nil {
		return budgetModel.Budget{}, internalError(ctx, "UpsertBudget", err, "Failed to save budget, try again later.")
	}

	if err := tx.Commit(); err != nil {
		return budgetModel.Budget{}, internalError(ctx, "UpsertBudget", err, "Failed to save budget, try again later.")
	}
	return b, nil
}

func (mySql *MySQLStorage) UpdateBudget(ctx context.Context, b budgetModel.Budget) error {
	query := `UPDATE budget SET daily_budget = ?, monthly_budget = ?, yearly_budget = ?, notify_on_threshold = ?
		WHERE id = ? AND user_id = ?`
	res, err := mySql.db.ExecContext(ctx, query, b.DailyBudget, b.MonthlyBudget, b.YearlyBudget, b.NotifyOnThreshold, b.ID, b.UserID)
	if err != nil {
		if isMySQLError(err, mysqlErrOutOfRange) {
			return appErrors.Invalid("amount: Ensure that there are no more than 10 digits in total.")
		}
		return internalError(ctx, "UpdateBudget", err, "Failed to update budget, try again later.")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := mySql.GetBudgetByID(ctx, b.UserID, b.ID); err != nil {
			return err
		}
	}
	return nil
}

func (mySql *MySQLStorage) DeleteBudget(ctx context.Context, userID string, budgetID string) error {
	res, err := mySql.db.ExecContext(ctx, "DELETE FROM budget WHERE id = ? AND user_id = ?", budgetID, userID)
	if err != nil {
		return internalError(ctx, "DeleteBudget", err, "Failed to delete budget, try again later.")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return internalError(ctx, "DeleteBudget", err, "Failed to delete budget, try again later.")
	}
	if n == 0 {
		return appErrors.NotFound("Not found.")
	}
	return nil
}
