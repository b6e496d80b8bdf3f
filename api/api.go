package api

import (
	"errors"
	"strconv"

	"github.com/0xcafe-io/iz"

	appErrors "github.com/Kasis11/budgetly/errors"
	"github.com/Kasis11/budgetly/internal/auth"
	"github.com/Kasis11/budgetly/internal/budget"
	"github.com/Kasis11/budgetly/internal/contextutil"
	"github.com/Kasis11/budgetly/logging"
)

type Api struct {
	Service *budget.Tracker
}

func NewApi(service *budget.Tracker) *Api {
	return &Api{
		Service: service,
	}
}

// fail writes err as {"detail": ...}. Internal errors are logged since their
// message is generic.
func (api *Api) fail(r *iz.Request, err error) iz.Responder {
	status := httpStatusFromError(err)
	if status >= 500 {
		logging.Logger.Errorf("[TraceID=%s] | %s %s failed: %v", contextutil.TraceIDFromContext(r.Context()), r.Method, r.URL.Path, err)
	}
	return iz.Respond().Status(status).JSON(ErrorDetail{Detail: detailFromError(err)})
}

// USER ENDPOINTS.

func (api *Api) RegisterHandler(r *iz.Request) iz.Responder {
	var req RegisterRequest
	if err := decodeBody(r.Body, &req); err != nil {
		return api.fail(r, err)
	}

	user, err := api.Service.Register(r.Context(), auth.NewUser{
		UserName:      req.UserName,
		Email:         req.Email,
		PasswordPlain: req.Password,
	})
	if err != nil {
		return api.fail(r, err)
	}
	return iz.Respond().Status(201).JSON(UserToHttp(user))
}

func (api *Api) ObtainTokenHandler(r *iz.Request) iz.Responder {
	var req TokenRequest
	if err := decodeBody(r.Body, &req); err != nil {
		return api.fail(r, err)
	}

	pair, err := api.Service.ObtainTokens(r.Context(), auth.UserCredentialsPure{
		UserName:      req.UserName,
		PasswordPlain: req.Password,
	})
	if err != nil {
		return api.fail(r, err)
	}
	return iz.Respond().Status(200).JSON(TokenPairResponse{Access: pair.Access, Refresh: pair.Refresh})
}

func (api *Api) RefreshTokenHandler(r *iz.Request) iz.Responder {
	var req RefreshRequest
	if err := decodeBody(r.Body, &req); err != nil {
		return api.fail(r, err)
	}

	access, err := api.Service.RefreshToken(r.Context(), req.Refresh)
	if err != nil {
		return api.fail(r, err)
	}
	return iz.Respond().Status(200).JSON(AccessResponse{Access: access})
}

// WALLET ENDPOINTS.

func (api *Api) ListWalletsHandler(r *iz.Request) iz.Responder {
	userID, resp := api.caller(r)
	if resp != nil {
		return resp
	}
	items := []WalletItem{}
	if userID == "" {
		return iz.Respond().Status(200).JSON(items)
	}

	wallets, err := api.Service.ListWallets(r.Context(), userID)
	if err != nil {
		return api.fail(r, err)
	}
	for _, w := range wallets {
		items = append(items, WalletToHttp(w))
	}
	return iz.Respond().Status(200).JSON(items)
}

func (api *Api) GetWalletHandler(r *iz.Request) iz.Responder {
	userID, resp := api.caller(r)
	if resp != nil {
		return resp
	}
	if userID == "" {
		return api.fail(r, appErrors.NotFound("Not found."))
	}

	w, err := api.Service.GetWallet(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		return api.fail(r, err)
	}
	return iz.Respond().Status(200).JSON(WalletToHttp(w))
}

func (api *Api) CreateWalletHandler(r *iz.Request) iz.Responder {
	userID, resp := api.requireUser(r, msgNotAuthenticated)
	if resp != nil {
		return resp
	}

	var req CreateWalletRequest
	if err := decodeBody(r.Body, &req); err != nil {
		return api.fail(r, err)
	}
	// balance defaults to zero when omitted
	balance, err := parseAmount(req.Balance)
	if err != nil && !errors.Is(err, errMissingAmount) {
		return api.fail(r, appErrors.Invalid("balance: A valid number is required."))
	}

	w, err := api.Service.CreateWallet(r.Context(), userID, balance)
	if err != nil {
		return api.fail(r, err)
	}
	return iz.Respond().Status(201).JSON(WalletToHttp(w))
}

func (api *Api) AddAmountHandler(r *iz.Request) iz.Responder {
	userID, resp := api.requireUser(r, msgNotAuthenticated)
	if resp != nil {
		return resp
	}

	var req AddAmountRequest
	if err := decodeBody(r.Body, &req); err != nil {
		return api.fail(r, err)
	}
	amount, err := fieldAmount("amount", req.Amount)
	if err != nil {
		return api.fail(r, err)
	}

	w, err := api.Service.AddAmount(r.Context(), userID, amount)
	if err != nil {
		return api.fail(r, err)
	}
	return iz.Respond().Status(200).JSON(AddAmountResponse{
		Message:    "Amount added",
		NewBalance: w.Balance.StringFixed(2),
	})
}

// EXPENSE ENDPOINTS.

func (api *Api) ListExpensesHandler(r *iz.Request) iz.Responder {
	userID, resp := api.caller(r)
	if resp != nil {
		return resp
	}
	items := []ExpenseItem{}
	if userID == "" {
		return iz.Respond().Status(200).JSON(items)
	}

	expenses, err := api.Service.ListExpenses(r.Context(), userID)
	if err != nil {
		return api.fail(r, err)
	}
	for _, e := range expenses {
		items = append(items, ExpenseToHttp(e))
	}
	return iz.Respond().Status(200).JSON(items)
}

func (api *Api) GetExpenseHandler(r *iz.Request) iz.Responder {
	userID, resp := api.caller(r)
	if resp != nil {
		return resp
	}
	if userID == "" {
		return api.fail(r, appErrors.NotFound("Not found."))
	}

	e, err := api.Service.GetExpense(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		return api.fail(r, err)
	}
	return iz.Respond().Status(200).JSON(ExpenseToHttp(e))
}

func (api *Api) CreateExpenseHandler(r *iz.Request) iz.Responder {
	userID, resp := api.requireUser(r, msgNotAuthenticated)
	if resp != nil {
		return resp
	}

	var body ExpenseBody
	if err := decodeBody(r.Body, &body); err != nil {
		return api.fail(r, err)
	}
	patch, err := body.toPatch(true)
	if err != nil {
		return api.fail(r, err)
	}

	req := budget.ExpenseRequest{
		Amount:   *patch.Amount,
		Category: *patch.Category,
		Date:     *patch.Date,
	}
	if patch.Note != nil {
		req.Note = *patch.Note
	}

	e, err := api.Service.CreateExpense(r.Context(), userID, req)
	if err != nil {
		return api.fail(r, err)
	}
	return iz.Respond().Status(201).JSON(ExpenseToHttp(e))
}

// UpdateExpenseHandler serves PUT, which needs every field, and PATCH,
// which takes any subset.
func (api *Api) UpdateExpenseHandler(r *iz.Request) iz.Responder {
	userID, resp := api.requireUser(r, msgNotAuthenticated)
	if resp != nil {
		return resp
	}

	var body ExpenseBody
	if err := decodeBody(r.Body, &body); err != nil {
		return api.fail(r, err)
	}
	patch, err := body.toPatch(r.Method == "PUT")
	if err != nil {
		return api.fail(r, err)
	}

	e, err := api.Service.UpdateExpense(r.Context(), userID, r.PathValue("id"), patch)
	if err != nil {
		return api.fail(r, err)
	}
	return iz.Respond().Status(200).JSON(ExpenseToHttp(e))
}

func (api *Api) DeleteExpenseHandler(r *iz.Request) iz.Responder {
	userID, resp := api.requireUser(r, msgNotAuthenticated)
	if resp != nil {
		return resp
	}

	refund := false
	if raw := r.URL.Query().Get("refund"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return api.fail(r, appErrors.Invalid("refund: Must be a valid boolean."))
		}
		refund = parsed
	}

	if err := api.Service.DeleteExpense(r.Context(), userID, r.PathValue("id"), refund); err != nil {
		return api.fail(r, err)
	}
	return iz.Respond().Status(204).Text("")
}

// BUDGET ENDPOINTS.

func (api *Api) ListBudgetsHandler(r *iz.Request) iz.Responder {
	userID, resp := api.caller(r)
	if resp != nil {
		return resp
	}
	items := []BudgetItem{}
	if userID == "" {
		return iz.Respond().Status(200).JSON(items)
	}

	budgets, err := api.Service.ListBudgets(r.Context(), userID)
	if err != nil {
		return api.fail(r, err)
	}
	for _, b := range budgets {
		items = append(items, BudgetToHttp(b))
	}
	return iz.Respond().Status(200).JSON(items)
}

func (api *Api) GetBudgetHandler(r *iz.Request) iz.Responder {
	userID, resp := api.caller(r)
	if resp != nil {
		return resp
	}
	if userID == "" {
		return api.fail(r, appErrors.NotFound("Not found."))
	}

	b, err := api.Service.GetBudgetByID(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		return api.fail(r, err)
	}
	return iz.Respond().Status(200).JSON(BudgetToHttp(b))
}

func (api *Api) SetBudgetHandler(r *iz.Request) iz.Responder {
	userID, resp := api.requireUser(r, msgNotAuthenticated)
	if resp != nil {
		return resp
	}

	var req SetBudgetRequest
	if err := decodeBody(r.Body, &req); err != nil {
		return api.fail(r, err)
	}
	amount, err := parseAmount(req.Amount)
	if errors.Is(err, errMissingAmount) || req.Period == "" {
		return api.fail(r, appErrors.Invalid("Both amount and period are required."))
	}
	if err != nil {
		return api.fail(r, appErrors.Invalid("Amount must be a number."))
	}

	b, err := api.Service.SetBudget(r.Context(), userID, budget.BudgetRequest{
		Period: budget.Period(req.Period),
		Amount: amount,
		Notify: req.Notify,
	})
	if err != nil {
		return api.fail(r, err)
	}
	return iz.Respond().Status(200).JSON(BudgetToHttp(b))
}

// UpdateBudgetHandler serves both PUT and PATCH.
func (api *Api) UpdateBudgetHandler(r *iz.Request) iz.Responder {
	userID, resp := api.requireUser(r, msgNotAuthenticated)
	if resp != nil {
		return resp
	}

	var body BudgetBody
	if err := decodeBody(r.Body, &body); err != nil {
		return api.fail(r, err)
	}
	patch, err := body.toPatch()
	if err != nil {
		return api.fail(r, err)
	}

	b, err := api.Service.UpdateBudget(r.Context(), userID, r.PathValue("id"), patch)
	if err != nil {
		return api.fail(r, err)
	}
	return iz.Respond().Status(200).JSON(BudgetToHttp(b))
}

func (api *Api) DeleteBudgetHandler(r *iz.Request) iz.Responder {
	userID, resp := api.requireUser(r, msgNotAuthenticated)
	if resp != nil {
		return resp
	}

	if err := api.Service.DeleteBudget(r.Context(), userID, r.PathValue("id")); err != nil {
		return api.fail(r, err)
	}
	return iz.Respond().Status(204).Text("")
}

func (api *Api) CheckUsageHandler(r *iz.Request) iz.Responder {
	userID, resp := api.requireUser(r, msgAuthRequired)
	if resp != nil {
		return resp
	}

	report, err := api.Service.CheckUsage(r.Context(), userID)
	if err != nil {
		return api.fail(r, err)
	}

	alerts := make(map[string]string, len(report.Alerts))
	for period, msg := range report.Alerts {
		alerts[string(period)] = msg
	}
	return iz.Respond().Status(200).JSON(UsageResponse{Alerts: alerts})
}

func (api *Api) MonthlySummaryHandler(r *iz.Request) iz.Responder {
	userID, resp := api.requireUser(r, msgAuthRequired)
	if resp != nil {
		return resp
	}

	summary, err := api.Service.MonthlySummary(r.Context(), userID)
	if err != nil {
		return api.fail(r, err)
	}
	return iz.Respond().Status(200).JSON(MonthlySummaryResponse{
		Budget:    summary.Budget.StringFixed(2),
		Expenses:  summary.Expenses.StringFixed(2),
		Remaining: summary.Remaining.StringFixed(2),
	})
}
