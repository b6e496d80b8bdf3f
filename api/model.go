package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	appErrors "github.com/Kasis11/budgetly/errors"
	"github.com/Kasis11/budgetly/internal/auth"
	"github.com/Kasis11/budgetly/internal/budget"
)

const dateLayout = "2006-01-02"

// REQUESTS START:

type RegisterRequest struct {
	UserName string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenRequest struct {
	UserName string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// Amounts are accepted both as JSON numbers and numeric strings.
type AddAmountRequest struct {
	Amount any `json:"amount"`
}

type CreateWalletRequest struct {
	Balance any `json:"balance"`
}

type ExpenseBody struct {
	Amount   any     `json:"amount"`
	Category *string `json:"category"`
	Note     *string `json:"note"`
	Date     *string `json:"date"`
}

type SetBudgetRequest struct {
	Amount any    `json:"amount"`
	Period string `json:"period"`
	Notify *bool  `json:"notify_on_threshold"`
}

// BudgetBody is the PUT/PATCH form of a budget. Every field has a
// default, so omitted fields are left as they are.
type BudgetBody struct {
	DailyBudget   any   `json:"daily_budget"`
	MonthlyBudget any   `json:"monthly_budget"`
	YearlyBudget  any   `json:"yearly_budget"`
	Notify        *bool `json:"notify_on_threshold"`
}

// REQUESTS END:

// RESPONSES:

type ErrorDetail struct {
	Detail string `json:"detail"`
}

type UserResponse struct {
	ID       string `json:"id"`
	UserName string `json:"username"`
	Email    string `json:"email"`
}

type TokenPairResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type AccessResponse struct {
	Access string `json:"access"`
}

type WalletItem struct {
	ID      string `json:"id"`
	Balance string `json:"balance"`
}

type AddAmountResponse struct {
	Message    string `json:"message"`
	NewBalance string `json:"new_balance"`
}

type ExpenseItem struct {
	ID       string `json:"id"`
	Note     string `json:"note"`
	Amount   string `json:"amount"`
	Category string `json:"category"`
	Date     string `json:"date"`
}

type BudgetItem struct {
	ID                string `json:"id"`
	DailyBudget       string `json:"daily_budget"`
	MonthlyBudget     string `json:"monthly_budget"`
	YearlyBudget      string `json:"yearly_budget"`
	NotifyOnThreshold bool   `json:"notify_on_threshold"`
}

type UsageResponse struct {
	Alerts map[string]string `json:"alerts"`
}

type MonthlySummaryResponse struct {
	Budget    string `json:"budget"`
	Expenses  string `json:"expenses"`
	Remaining string `json:"remaining"`
}

func UserToHttp(u auth.User) UserResponse {
	return UserResponse{ID: u.ID, UserName: u.UserName, Email: u.Email}
}

func WalletToHttp(w budget.Wallet) WalletItem {
	return WalletItem{ID: w.ID, Balance: w.Balance.StringFixed(2)}
}

func ExpenseToHttp(e budget.Expense) ExpenseItem {
	return ExpenseItem{
		ID:       e.ID,
		Note:     e.Note,
		Amount:   e.Amount.StringFixed(2),
		Category: string(e.Category),
		Date:     e.Date.Format(dateLayout),
	}
}

func BudgetToHttp(b budget.Budget) BudgetItem {
	return BudgetItem{
		ID:                b.ID,
		DailyBudget:       b.DailyBudget.StringFixed(2),
		MonthlyBudget:     b.MonthlyBudget.StringFixed(2),
		YearlyBudget:      b.YearlyBudget.StringFixed(2),
		NotifyOnThreshold: b.NotifyOnThreshold,
	}
}

// decodeBody reads a JSON object into v. An empty body leaves v untouched.
func decodeBody(body io.Reader, v any) error {
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return appErrors.Invalid("JSON parse error - %s", err.Error())
	}
	return nil
}

var errMissingAmount = errors.New("amount missing")

// parseAmount converts a JSON number or numeric string to a decimal.
func parseAmount(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero, errMissingAmount
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return decimal.Zero, errMissingAmount
		}
		return decimal.NewFromString(v)
	default:
		return decimal.Zero, fmt.Errorf("unsupported amount type %T", raw)
	}
}

// fieldAmount parses a required money field, reporting errors per field.
func fieldAmount(field string, raw any) (decimal.Decimal, error) {
	amount, err := parseAmount(raw)
	if errors.Is(err, errMissingAmount) {
		return decimal.Zero, appErrors.Invalid("%s: This field is required.", field)
	}
	if err != nil {
		return decimal.Zero, appErrors.Invalid("%s: A valid number is required.", field)
	}
	return amount, nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, appErrors.Invalid("date: Date has wrong format. Use one of these formats instead: YYYY-MM-DD.")
	}
	return d, nil
}

// toPatch converts body into a patch. With full set every field except
// note must be present, as for create and PUT.
func (body ExpenseBody) toPatch(full bool) (budget.ExpensePatch, error) {
	var patch budget.ExpensePatch

	if body.Amount != nil || full {
		amount, err := fieldAmount("amount", body.Amount)
		if err != nil {
			return patch, err
		}
		patch.Amount = &amount
	}
	if body.Category != nil {
		category := budget.Category(*body.Category)
		patch.Category = &category
	} else if full {
		return patch, appErrors.Invalid("category: This field is required.")
	}
	if body.Note != nil {
		patch.Note = body.Note
	}
	if body.Date != nil {
		d, err := parseDate(*body.Date)
		if err != nil {
			return patch, err
		}
		patch.Date = &d
	} else if full {
		return patch, appErrors.Invalid("date: This field is required.")
	}
	return patch, nil
}

func (body BudgetBody) toPatch() (budget.BudgetPatch, error) {
	patch := budget.BudgetPatch{NotifyOnThreshold: body.Notify}

	fields := []struct {
		name string
		raw  any
		dst  **decimal.Decimal
	}{
		{name: "daily_budget", raw: body.DailyBudget, dst: &patch.DailyBudget},
		{name: "monthly_budget", raw: body.MonthlyBudget, dst: &patch.MonthlyBudget},
		{name: "yearly_budget", raw: body.YearlyBudget, dst: &patch.YearlyBudget},
	}
	for _, f := range fields {
		if f.raw == nil {
			continue
		}
		amount, err := fieldAmount(f.name, f.raw)
		if err != nil {
			return patch, err
		}
		*f.dst = &amount
	}
	return patch, nil
}

func httpStatusFromError(err error) int {
	switch appErrors.CodeOf(err) {
	case appErrors.ErrNotFound:
		return http.StatusNotFound
	case appErrors.ErrInvalidInput:
		return http.StatusBadRequest
	case appErrors.ErrAuth:
		return http.StatusUnauthorized
	case appErrors.ErrAccessDenied:
		return http.StatusForbidden
	case appErrors.ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// detailFromError returns the client-facing message carried by err.
func detailFromError(err error) string {
	var appErr appErrors.ErrorResponse
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return "Internal server error."
}
