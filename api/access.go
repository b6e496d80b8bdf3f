package api

import (
	"strings"

	"github.com/0xcafe-io/iz"

	appErrors "github.com/Kasis11/budgetly/errors"
)

const (
	msgNotAuthenticated = "Authentication credentials were not provided."
	msgAuthRequired     = "Authentication required."
)

// caller resolves the Authorization header. A request without a bearer
// header is anonymous and yields an empty id with a nil responder; a bearer
// header with a bad token is answered with 401.
func (api *Api) caller(r *iz.Request) (string, iz.Responder) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", nil
	}

	parts := strings.Fields(header)
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", nil
	}
	if len(parts) != 2 {
		return "", api.fail(r, appErrors.ErrorResponse{
			Code:    appErrors.ErrAuth,
			Message: "Authorization header must contain two space-delimited values",
		})
	}

	userID, err := api.Service.Authenticate(r.Context(), parts[1])
	if err != nil {
		return "", api.fail(r, err)
	}
	return userID, nil
}

// requireUser is caller for endpoints closed to anonymous requests, which
// are refused with 403 and message.
func (api *Api) requireUser(r *iz.Request, message string) (string, iz.Responder) {
	userID, resp := api.caller(r)
	if resp != nil {
		return "", resp
	}
	if userID == "" {
		return "", api.fail(r, appErrors.New(appErrors.ErrAccessDenied, message))
	}
	return userID, nil
}
