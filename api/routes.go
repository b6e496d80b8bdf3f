package api

import (
	"net/http"

	"github.com/0xcafe-io/iz"
)

// Handler returns every endpoint under /api, wrapped with trace ids and
// request logging.
func (api *Api) Handler() http.Handler {
	server := http.NewServeMux()

	// USER ENDPOINTS.
	server.HandleFunc("POST /api/register/{$}", iz.Bind(api.RegisterHandler))          // Create User with Wallet
	server.HandleFunc("POST /api/token/{$}", iz.Bind(api.ObtainTokenHandler))          // Obtain access/refresh pair
	server.HandleFunc("POST /api/token/refresh/{$}", iz.Bind(api.RefreshTokenHandler)) // Exchange refresh for access

	// WALLET ENDPOINTS.
	server.HandleFunc("GET /api/wallet/{$}", iz.Bind(api.ListWalletsHandler))           // List own Wallets
	server.HandleFunc("POST /api/wallet/{$}", iz.Bind(api.CreateWalletHandler))         // Create Wallet
	server.HandleFunc("GET /api/wallet/{id}/{$}", iz.Bind(api.GetWalletHandler))        // Get Wallet by ID
	server.HandleFunc("POST /api/wallet/add-amount/{$}", iz.Bind(api.AddAmountHandler)) // Credit Wallet

	// EXPENSE ENDPOINTS.
	server.HandleFunc("GET /api/expenses/{$}", iz.Bind(api.ListExpensesHandler))          // List Expenses, newest first
	server.HandleFunc("POST /api/expenses/{$}", iz.Bind(api.CreateExpenseHandler))        // Create Expense, debits Wallet
	server.HandleFunc("GET /api/expenses/{id}/{$}", iz.Bind(api.GetExpenseHandler))       // Get Expense by ID
	server.HandleFunc("PUT /api/expenses/{id}/{$}", iz.Bind(api.UpdateExpenseHandler))    // Replace Expense
	server.HandleFunc("PATCH /api/expenses/{id}/{$}", iz.Bind(api.UpdateExpenseHandler))  // Update Expense fields
	server.HandleFunc("DELETE /api/expenses/{id}/{$}", iz.Bind(api.DeleteExpenseHandler)) // Delete Expense, ?refund=true credits it back

	// BUDGET ENDPOINTS.
	server.HandleFunc("GET /api/budget/{$}", iz.Bind(api.ListBudgetsHandler))             // List own Budgets
	server.HandleFunc("POST /api/budget/{$}", iz.Bind(api.SetBudgetHandler))              // Upsert one period limit
	server.HandleFunc("GET /api/budget/check_usage/{$}", iz.Bind(api.CheckUsageHandler))  // Threshold alerts
	server.HandleFunc("GET /api/budget/{id}/{$}", iz.Bind(api.GetBudgetHandler))          // Get Budget by ID
	server.HandleFunc("PUT /api/budget/{id}/{$}", iz.Bind(api.UpdateBudgetHandler))       // Replace Budget limits
	server.HandleFunc("PATCH /api/budget/{id}/{$}", iz.Bind(api.UpdateBudgetHandler))     // Update Budget fields
	server.HandleFunc("DELETE /api/budget/{id}/{$}", iz.Bind(api.DeleteBudgetHandler))    // Delete Budget
	server.HandleFunc("GET /api/monthly-summary/{$}", iz.Bind(api.MonthlySummaryHandler)) // Month-to-date spend vs limit

	return withTraceID(logRequests(server))
}
