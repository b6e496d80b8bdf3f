package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Kasis11/budgetly/internal/auth"
	"github.com/Kasis11/budgetly/internal/budget"
	"github.com/Kasis11/budgetly/internal/storage"
)

var fixedNow = time.Date(2025, time.March, 15, 9, 0, 0, 0, time.UTC)

func init() {
	auth.PasswordCost = bcrypt.MinCost
}

func newHandler(t *testing.T) http.Handler {
	t.Helper()
	clock := func() time.Time { return fixedNow }
	tokens := auth.NewTokenManager("api-test-secret", 5*time.Minute, 24*time.Hour).WithClock(clock)
	tracker := budget.NewTracker(storage.NewInMemoryStorage(), tokens, budget.WithClock(clock))
	return NewApi(tracker).Handler()
}

func do(t *testing.T, h http.Handler, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// login registers username and returns its access token.
func login(t *testing.T, h http.Handler, username string) string {
	t.Helper()
	rec := do(t, h, "POST", "/api/register/", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "pass-1234",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, "POST", "/api/token/", "", map[string]string{"username": username, "password": "pass-1234"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeMap(t, rec)["access"].(string)
}

func walletBalance(t *testing.T, h http.Handler, token string) string {
	t.Helper()
	rec := do(t, h, "GET", "/api/wallet/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	wallets := decodeList(t, rec)
	require.Len(t, wallets, 1)
	return wallets[0]["balance"].(string)
}

func TestAnonymousAccess(t *testing.T) {
	h := newHandler(t)

	tests := []struct {
		method     string
		path       string
		body       any
		wantStatus int
		wantDetail string
	}{
		{method: "GET", path: "/api/expenses/", wantStatus: 200},
		{method: "GET", path: "/api/wallet/", wantStatus: 200},
		{method: "GET", path: "/api/budget/", wantStatus: 200},
		{method: "GET", path: "/api/expenses/abc/", wantStatus: 404, wantDetail: "Not found."},
		{method: "GET", path: "/api/wallet/abc/", wantStatus: 404, wantDetail: "Not found."},
		{method: "GET", path: "/api/budget/abc/", wantStatus: 404, wantDetail: "Not found."},
		{method: "POST", path: "/api/expenses/", body: map[string]any{"amount": 1}, wantStatus: 403, wantDetail: msgNotAuthenticated},
		{method: "PATCH", path: "/api/expenses/abc/", body: map[string]any{"note": "x"}, wantStatus: 403, wantDetail: msgNotAuthenticated},
		{method: "DELETE", path: "/api/expenses/abc/", wantStatus: 403, wantDetail: msgNotAuthenticated},
		{method: "POST", path: "/api/wallet/", wantStatus: 403, wantDetail: msgNotAuthenticated},
		{method: "POST", path: "/api/wallet/add-amount/", body: map[string]any{"amount": 5}, wantStatus: 403, wantDetail: msgNotAuthenticated},
		{method: "POST", path: "/api/budget/", body: map[string]any{"amount": 5, "period": "daily"}, wantStatus: 403, wantDetail: msgNotAuthenticated},
		{method: "GET", path: "/api/budget/check_usage/", wantStatus: 403, wantDetail: msgAuthRequired},
		{method: "GET", path: "/api/monthly-summary/", wantStatus: 403, wantDetail: msgAuthRequired},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, "", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantDetail == "" {
				list := decodeList(t, rec)
				assert.NotNil(t, list)
				assert.Empty(t, list)
				return
			}
			assert.Equal(t, tt.wantDetail, decodeMap(t, rec)["detail"])
		})
	}
}

func TestInvalidToken(t *testing.T) {
	h := newHandler(t)

	for _, path := range []string{"/api/expenses/", "/api/budget/check_usage/"} {
		rec := do(t, h, "GET", path, "not-a-jwt", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Given token not valid for any token type", decodeMap(t, rec)["detail"])
	}
}

func TestRegisterAndTokens(t *testing.T) {
	h := newHandler(t)

	rec := do(t, h, "POST", "/api/register/", "", map[string]string{
		"username": "john", "email": "John@Example.com", "password": "pass-1234",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decodeMap(t, rec)
	assert.NotEmpty(t, user["id"])
	assert.Equal(t, "john", user["username"])
	assert.Equal(t, "john@example.com", user["email"])
	assert.NotContains(t, user, "password")

	rec = do(t, h, "POST", "/api/register/", "", map[string]string{
		"username": "john", "email": "other@example.com", "password": "pass-1234",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "username: A user with that username already exists.", decodeMap(t, rec)["detail"])

	rec = do(t, h, "POST", "/api/token/", "", map[string]string{"username": "john", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, "POST", "/api/token/", "", map[string]string{"username": "john", "password": "pass-1234"})
	require.Equal(t, http.StatusOK, rec.Code)
	pair := decodeMap(t, rec)
	access, refresh := pair["access"].(string), pair["refresh"].(string)

	rec = do(t, h, "GET", "/api/expenses/", refresh, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "refresh token is not an access token")

	rec = do(t, h, "POST", "/api/token/refresh/", "", map[string]string{"refresh": access})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "access token cannot refresh")

	rec = do(t, h, "POST", "/api/token/refresh/", "", map[string]string{"refresh": refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	newAccess := decodeMap(t, rec)["access"].(string)

	assert.Equal(t, "0.00", walletBalance(t, h, newAccess), "registration creates an empty wallet")
}

func TestWalletEndpoints(t *testing.T) {
	h := newHandler(t)
	token := login(t, h, "john")

	rec := do(t, h, "POST", "/api/wallet/", token, map[string]any{"balance": "10"})
	require.Equal(t, http.StatusConflict, rec.Code)

	tests := []struct {
		amount     any
		wantStatus int
		wantBody   string
	}{
		{amount: "100", wantStatus: 200, wantBody: "100.00"},
		{amount: 25.5, wantStatus: 200, wantBody: "125.50"},
		{amount: "abc", wantStatus: 400, wantBody: "amount: A valid number is required."},
		{amount: nil, wantStatus: 400, wantBody: "amount: This field is required."},
		{amount: 0, wantStatus: 400, wantBody: "amount: Ensure this value is greater than 0."},
	}
	for _, tt := range tests {
		rec := do(t, h, "POST", "/api/wallet/add-amount/", token, map[string]any{"amount": tt.amount})
		require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		body := decodeMap(t, rec)
		if tt.wantStatus == 200 {
			assert.Equal(t, "Amount added", body["message"])
			assert.Equal(t, tt.wantBody, body["new_balance"])
		} else {
			assert.Equal(t, tt.wantBody, body["detail"])
		}
	}

	rec = do(t, h, "GET", "/api/wallet/", token, nil)
	wallets := decodeList(t, rec)
	require.Len(t, wallets, 1)
	id := wallets[0]["id"].(string)

	rec = do(t, h, "GET", "/api/wallet/"+id+"/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "125.50", decodeMap(t, rec)["balance"])

	other := login(t, h, "anna")
	rec = do(t, h, "GET", "/api/wallet/"+id+"/", other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExpenseEndpoints(t *testing.T) {
	h := newHandler(t)
	token := login(t, h, "john")
	do(t, h, "POST", "/api/wallet/add-amount/", token, map[string]any{"amount": 100})

	rec := do(t, h, "POST", "/api/expenses/", token, map[string]any{
		"amount": 12.5, "category": "Lunch", "note": "noodles", "date": "2025-03-14",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeMap(t, rec)
	assert.Equal(t, "12.50", created["amount"])
	assert.Equal(t, "2025-03-14", created["date"])
	id := created["id"].(string)

	rec = do(t, h, "POST", "/api/expenses/", token, map[string]any{
		"amount": "7.50", "category": "Petrol", "date": "2025-03-15",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "", decodeMap(t, rec)["note"])
	assert.Equal(t, "80.00", walletBalance(t, h, token))

	rec = do(t, h, "GET", "/api/expenses/", token, nil)
	list := decodeList(t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "2025-03-15", list[0]["date"], "newest date first")

	invalid := []struct {
		name       string
		body       map[string]any
		wantDetail string
	}{
		{name: "missing amount", body: map[string]any{"category": "Lunch", "date": "2025-03-15"}, wantDetail: "amount: This field is required."},
		{name: "missing category", body: map[string]any{"amount": 1, "date": "2025-03-15"}, wantDetail: "category: This field is required."},
		{name: "missing date", body: map[string]any{"amount": 1, "category": "Lunch"}, wantDetail: "date: This field is required."},
		{name: "bad date", body: map[string]any{"amount": 1, "category": "Lunch", "date": "15/03/2025"}, wantDetail: "date: Date has wrong format. Use one of these formats instead: YYYY-MM-DD."},
		{name: "bad category", body: map[string]any{"amount": 1, "category": "Tea", "date": "2025-03-15"}, wantDetail: `category: "Tea" is not a valid choice.`},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, "POST", "/api/expenses/", token, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantDetail, decodeMap(t, rec)["detail"])
		})
	}

	rec = do(t, h, "PATCH", "/api/expenses/"+id+"/", token, map[string]any{"note": "ramen"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ramen", decodeMap(t, rec)["note"])

	rec = do(t, h, "PUT", "/api/expenses/"+id+"/", token, map[string]any{"amount": 1, "category": "Lunch"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, "PUT", "/api/expenses/"+id+"/", token, map[string]any{"amount": "30", "category": "Dinner", "date": "2025-03-14"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeMap(t, rec)
	assert.Equal(t, "30.00", updated["amount"])
	assert.Equal(t, "Dinner", updated["category"])
	assert.Equal(t, "80.00", walletBalance(t, h, token), "update does not move money")

	other := login(t, h, "anna")
	rec = do(t, h, "DELETE", "/api/expenses/"+id+"/", other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, "DELETE", "/api/expenses/"+id+"/?refund=maybe", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, "DELETE", "/api/expenses/"+id+"/?refund=true", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "110.00", walletBalance(t, h, token), "refund credits the stored amount")

	rec = do(t, h, "GET", "/api/expenses/"+id+"/", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBudgetEndpoints(t *testing.T) {
	h := newHandler(t)
	token := login(t, h, "john")

	rec := do(t, h, "GET", "/api/budget/check_usage/", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No budget set.", decodeMap(t, rec)["detail"])

	invalid := []struct {
		body       map[string]any
		wantDetail string
	}{
		{body: map[string]any{"period": "daily"}, wantDetail: "Both amount and period are required."},
		{body: map[string]any{"amount": 10}, wantDetail: "Both amount and period are required."},
		{body: map[string]any{"amount": "ten", "period": "daily"}, wantDetail: "Amount must be a number."},
		{body: map[string]any{"amount": 10, "period": "weekly"}, wantDetail: "Invalid period."},
	}
	for _, tt := range invalid {
		rec := do(t, h, "POST", "/api/budget/", token, tt.body)
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.Equal(t, tt.wantDetail, decodeMap(t, rec)["detail"])
	}

	rec = do(t, h, "POST", "/api/budget/", token, map[string]any{"amount": "100", "period": "daily"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b := decodeMap(t, rec)
	assert.Equal(t, "100.00", b["daily_budget"])
	assert.Equal(t, "0.00", b["monthly_budget"])
	assert.Equal(t, true, b["notify_on_threshold"])

	rec = do(t, h, "POST", "/api/budget/", token, map[string]any{"amount": 400, "period": "monthly"})
	require.Equal(t, http.StatusOK, rec.Code)
	b = decodeMap(t, rec)
	assert.Equal(t, "100.00", b["daily_budget"], "monthly upsert keeps daily")
	assert.Equal(t, "400.00", b["monthly_budget"])

	rec = do(t, h, "GET", "/api/budget/"+b["id"].(string)+"/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, "GET", "/api/budget/check_usage/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeMap(t, rec)["alerts"])

	rec = do(t, h, "POST", "/api/expenses/", token, map[string]any{"amount": 50, "category": "Lunch", "date": "2025-03-15"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, "GET", "/api/budget/check_usage/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	alerts := decodeMap(t, rec)["alerts"].(map[string]any)
	assert.Equal(t, map[string]any{
		"daily": "⚠️ You have used ₹50.00, which is over 50% of your daily budget ₹100.00.",
	}, alerts)

	rec = do(t, h, "GET", "/api/monthly-summary/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"budget": "400.00", "expenses": "50.00", "remaining": "350.00"}, decodeMap(t, rec))
}

func TestBudgetUpdateAndDelete(t *testing.T) {
	h := newHandler(t)
	token := login(t, h, "john")
	other := login(t, h, "jane")

	rec := do(t, h, "POST", "/api/budget/", token, map[string]any{"amount": "100", "period": "daily"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	path := "/api/budget/" + decodeMap(t, rec)["id"].(string) + "/"

	rec = do(t, h, "PATCH", path, "", map[string]any{"daily_budget": 5})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, msgNotAuthenticated, decodeMap(t, rec)["detail"])

	rec = do(t, h, "PATCH", path, other, map[string]any{"daily_budget": 5})
	require.Equal(t, http.StatusNotFound, rec.Code, "budget of another user must not be editable")

	rec = do(t, h, "PATCH", path, token, map[string]any{"monthly_budget": "2500", "notify_on_threshold": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b := decodeMap(t, rec)
	assert.Equal(t, "100.00", b["daily_budget"], "omitted field is kept")
	assert.Equal(t, "2500.00", b["monthly_budget"])
	assert.Equal(t, false, b["notify_on_threshold"])

	rec = do(t, h, "PUT", path, token, map[string]any{"daily_budget": 10, "monthly_budget": 20, "yearly_budget": 30})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b = decodeMap(t, rec)
	assert.Equal(t, "10.00", b["daily_budget"])
	assert.Equal(t, "20.00", b["monthly_budget"])
	assert.Equal(t, "30.00", b["yearly_budget"])

	invalid := []struct {
		body       map[string]any
		wantDetail string
	}{
		{body: map[string]any{"daily_budget": "ten"}, wantDetail: "daily_budget: A valid number is required."},
		{body: map[string]any{"yearly_budget": -1}, wantDetail: "yearly_budget: Ensure this value is greater than or equal to 0."},
		{body: map[string]any{"monthly_budget": "100000000"}, wantDetail: "monthly_budget: Ensure this value is less than or equal to 99999999.99."},
	}
	for _, tt := range invalid {
		rec := do(t, h, "PATCH", path, token, tt.body)
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.Equal(t, tt.wantDetail, decodeMap(t, rec)["detail"])
	}

	rec = do(t, h, "DELETE", path, other, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, "DELETE", path, token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, "GET", path, token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, "GET", "/api/budget/check_usage/", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No budget set.", decodeMap(t, rec)["detail"])
}

func TestRegisterLongPassword(t *testing.T) {
	h := newHandler(t)

	rec := do(t, h, "POST", "/api/register/", "", map[string]string{
		"username": "anna", "email": "anna@example.com", "password": strings.Repeat("é", 40),
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "password: Ensure this field has no more than 72 bytes.", decodeMap(t, rec)["detail"])
}

func TestTraceIDHeader(t *testing.T) {
	h := newHandler(t)

	rec := do(t, h, "GET", "/api/expenses/", "", nil)
	assert.NotEmpty(t, rec.Header().Get(traceHeader))

	req := httptest.NewRequest("GET", "/api/expenses/", nil)
	req.Header.Set(traceHeader, "trace-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "trace-123", rec.Header().Get(traceHeader))
}
