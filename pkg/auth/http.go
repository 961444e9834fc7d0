package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
)

// ExtractBearerToken returns the token from an "Authorization: Bearer"
// header. The empty string means no usable credential was presented.
func ExtractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Middleware authenticates every request and places the user and claims in
// the request context. Any failure yields the same 401 body regardless of
// cause.
func Middleware(authenticator *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, claims, err := authenticator.Authenticate(r.Context(), ExtractBearerToken(r))
			if err != nil {
				WriteError(w, err)
				return
			}

			ctx := ContextWithUser(r.Context(), user)
			ctx = ContextWithClaims(ctx, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// errorResponse is the uniform error body. Only the code and message leave
// the service; error details stay in the logs.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError serializes a coded error with its mapped HTTP status. Errors
// without a code render as a generic 500.
func WriteError(w http.ResponseWriter, err error) {
	cerr, ok := cberr.AsError(err)
	if !ok {
		cerr = cberr.Wrap(err, cberr.CodeInternal, "internal error")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(cerr.HTTPStatus())
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{Code: cerr.Code.String(), Message: cerr.Message},
	})
}

// WriteJSON serializes a success payload.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
