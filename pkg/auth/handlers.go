package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/cookbase/cookbase-auth/pkg/account"
	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
)

// AccountDirectory is the user-store surface the password endpoints need.
// Satisfied by *account.UserStore.
type AccountDirectory interface {
	Create(ctx context.Context, p account.CreateUserParams) (*account.LocalUser, error)
	GetByEmail(ctx context.Context, email string) (*account.LocalUser, error)
}

var _ AccountDirectory = (*account.UserStore)(nil)

// Handlers exposes the authentication HTTP surface: federated login,
// authorization-code login, password sign-up and login, refresh, link, and
// logout.
//
// Response bodies carry structured account objects and the opaque bearer
// token only; raw provider token material never leaves the service beyond
// the claims already embedded in it.
type Handlers struct {
	nonces    *NonceStore
	exchanger *Exchanger
	linker    *Linker
	issuer    *Issuer
	rotator   *Rotator
	denylist  Revoker
	accounts  AccountDirectory
	logger    *slog.Logger
}

// NewHandlers wires the handler set. A nil logger falls back to
// slog.Default.
func NewHandlers(nonces *NonceStore, exchanger *Exchanger, linker *Linker, issuer *Issuer, rotator *Rotator, denylist Revoker, accounts AccountDirectory, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		nonces:    nonces,
		exchanger: exchanger,
		linker:    linker,
		issuer:    issuer,
		rotator:   rotator,
		denylist:  denylist,
		accounts:  accounts,
		logger:    logger,
	}
}

// Register mounts the public and protected routes on the mux. The
// protected routes are wrapped with the given middleware (built from
// [Middleware]).
func (h *Handlers) Register(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	mux.HandleFunc("POST /v1/auth/nonce", h.Nonce)
	mux.HandleFunc("POST /v1/auth/login", h.Login)
	mux.HandleFunc("POST /v1/auth/login/code", h.LoginWithCode)
	mux.HandleFunc("POST /v1/auth/signup", h.SignUp)
	mux.HandleFunc("POST /v1/auth/login/password", h.LoginWithPassword)
	mux.HandleFunc("POST /v1/auth/refresh", h.Refresh)

	mux.Handle("POST /v1/auth/link", protect(http.HandlerFunc(h.Link)))
	mux.Handle("POST /v1/auth/logout", protect(http.HandlerFunc(h.Logout)))
	mux.Handle("GET /v1/auth/me", protect(http.HandlerFunc(h.Me)))
}

// sessionResponse is the success body of every token-minting endpoint.
type sessionResponse struct {
	Token     string                    `json:"token"`
	ExpiresAt time.Time                 `json:"expires_at"`
	User      *account.LocalUser        `json:"user"`
	Identity  *account.ExternalIdentity `json:"identity,omitempty"`
}

// Nonce issues an anti-replay nonce for a login attempt.
//
//	Request:  {"session_handle": "..."}
//	Response: {"nonce": "..."}
func (h *Handlers) Nonce(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionHandle string `json:"session_handle"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	nonce, err := h.nonces.Issue(r.Context(), req.SessionHandle)
	if err != nil {
		h.fail(w, r, "issuing nonce", err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"nonce": nonce})
}

// Login authenticates with a provider-issued identity token.
//
//	Request: {"id_token": "...", "session_handle": "..."}
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken       string `json:"id_token"`
		SessionHandle string `json:"session_handle"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.IDToken == "" {
		WriteError(w, cberr.New(cberr.CodeValidationRequired, "id_token is required"))
		return
	}

	nonce, err := h.expectedNonce(r.Context(), req.SessionHandle)
	if err != nil {
		h.fail(w, r, "resolving nonce", err)
		return
	}

	h.completeFederatedLogin(w, r, req.IDToken, nonce, req.SessionHandle)
}

// LoginWithCode exchanges an authorization code, then authenticates with
// the resulting identity token.
//
//	Request: {"code": "...", "redirect_uri": "...", "session_handle": "..."}
func (h *Handlers) LoginWithCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code          string `json:"code"`
		RedirectURI   string `json:"redirect_uri"`
		SessionHandle string `json:"session_handle"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	nonce, err := h.expectedNonce(r.Context(), req.SessionHandle)
	if err != nil {
		h.fail(w, r, "resolving nonce", err)
		return
	}

	result, err := h.exchanger.Exchange(r.Context(), req.Code, req.RedirectURI)
	if err != nil {
		h.fail(w, r, "exchanging authorization code", err)
		return
	}

	h.completeFederatedLogin(w, r, result.IDToken, nonce, req.SessionHandle)
}

// completeFederatedLogin verifies, links, clears the nonce, and mints the
// session token.
func (h *Handlers) completeFederatedLogin(w http.ResponseWriter, r *http.Request, idToken, nonce, sessionHandle string) {
	user, identity, err := h.linker.AuthenticateWithIDToken(r.Context(), idToken, nonce)
	if err != nil {
		h.fail(w, r, "federated login", err)
		return
	}

	// The nonce is spent regardless of what happens next; a second login
	// attempt needs a fresh one.
	if sessionHandle != "" {
		if err := h.nonces.Clear(r.Context(), sessionHandle); err != nil {
			h.logger.WarnContext(r.Context(), "clearing nonce failed",
				"session_handle", sessionHandle, "error", err)
		}
	}

	token, claims, err := h.issuer.Issue(r.Context(), user.ID)
	if err != nil {
		h.fail(w, r, "issuing session token", err)
		return
	}

	WriteJSON(w, http.StatusOK, sessionResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt,
		User:      user,
		Identity:  identity,
	})
}

// SignUp creates a local account with a password and signs it in.
//
//	Request: {"email": "...", "password": "...", "display_name": "..."}
func (h *Handlers) SignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.Email == "" {
		WriteError(w, cberr.New(cberr.CodeValidationRequired, "email is required"))
		return
	}

	hash, err := account.HashPassword(req.Password)
	if err != nil {
		h.fail(w, r, "hashing password", err)
		return
	}

	user, err := h.accounts.Create(r.Context(), account.CreateUserParams{
		Email:        req.Email,
		PasswordHash: hash,
		DisplayName:  req.DisplayName,
	})
	if err != nil {
		h.fail(w, r, "creating account", err)
		return
	}

	token, claims, err := h.issuer.Issue(r.Context(), user.ID)
	if err != nil {
		h.fail(w, r, "issuing session token", err)
		return
	}

	WriteJSON(w, http.StatusCreated, sessionResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt,
		User:      user,
	})
}

// LoginWithPassword authenticates a local account. Unknown email and wrong
// password are indistinguishable to the caller.
//
//	Request: {"email": "...", "password": "..."}
func (h *Handlers) LoginWithPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.accounts.GetByEmail(r.Context(), req.Email)
	if err != nil {
		h.logger.InfoContext(r.Context(), "password login rejected",
			"reason", "account lookup failed", "error", err)
		WriteError(w, cberr.New(cberr.CodeAuthentication, "invalid credentials"))
		return
	}

	if err := account.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		h.logger.InfoContext(r.Context(), "password login rejected",
			"reason", "password verification failed", "user", user.ID)
		WriteError(w, cberr.New(cberr.CodeAuthentication, "invalid credentials"))
		return
	}

	token, claims, err := h.issuer.Issue(r.Context(), user.ID)
	if err != nil {
		h.fail(w, r, "issuing session token", err)
		return
	}

	WriteJSON(w, http.StatusOK, sessionResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt,
		User:      user,
	})
}

// Refresh rotates the presented bearer token. The old token is dead before
// the new one exists.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.rotator.Refresh(r.Context(), ExtractBearerToken(r))
	if err != nil {
		h.fail(w, r, "refreshing session token", err)
		return
	}

	WriteJSON(w, http.StatusOK, sessionResponse{
		Token:     result.Token,
		ExpiresAt: result.Claims.ExpiresAt,
		User:      result.User,
	})
}

// Link binds a federated identity to the authenticated user.
//
//	Request: {"id_token": "...", "session_handle": "..."}
func (h *Handlers) Link(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		WriteError(w, cberr.New(cberr.CodeAuthentication, "auth: unauthenticated"))
		return
	}

	var req struct {
		IDToken       string `json:"id_token"`
		SessionHandle string `json:"session_handle"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.IDToken == "" {
		WriteError(w, cberr.New(cberr.CodeValidationRequired, "id_token is required"))
		return
	}

	nonce, err := h.expectedNonce(r.Context(), req.SessionHandle)
	if err != nil {
		h.fail(w, r, "resolving nonce", err)
		return
	}

	identity, err := h.linker.LinkUser(r.Context(), user.ID, req.IDToken, nonce)
	if err != nil {
		h.fail(w, r, "linking identity", err)
		return
	}

	if req.SessionHandle != "" {
		if err := h.nonces.Clear(r.Context(), req.SessionHandle); err != nil {
			h.logger.WarnContext(r.Context(), "clearing nonce failed",
				"session_handle", req.SessionHandle, "error", err)
		}
	}

	WriteJSON(w, http.StatusOK, map[string]*account.ExternalIdentity{"identity": identity})
}

// Logout revokes the presented token's jti. The user's other sessions stay
// active.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		WriteError(w, cberr.New(cberr.CodeAuthentication, "auth: unauthenticated"))
		return
	}

	if err := h.denylist.Revoke(r.Context(), claims.ID, claims.ExpiresAt); err != nil {
		h.fail(w, r, "revoking session token", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		WriteError(w, cberr.New(cberr.CodeAuthentication, "auth: unauthenticated"))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]*account.LocalUser{"user": user})
}

// expectedNonce loads the nonce bound to the session handle. An empty
// handle means the client opted out of nonce binding; a handle that holds
// no nonce (expired or never issued) is a nonce failure.
func (h *Handlers) expectedNonce(ctx context.Context, sessionHandle string) (string, error) {
	if sessionHandle == "" {
		return "", nil
	}
	nonce, ok, err := h.nonces.Peek(ctx, sessionHandle)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", cberr.New(cberr.CodeAuthenticationNonce,
			"auth: no nonce issued for this login attempt")
	}
	return nonce, nil
}

// decode parses the JSON request body, answering 400 on malformed input.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		WriteError(w, cberr.Wrap(err, cberr.CodeValidationFormat,
			"request body is not valid JSON"))
		return false
	}
	return true
}

// fail logs the full error server-side and writes the coded response.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	attrs := []any{"op", op, "error", err}
	if cerr, ok := cberr.AsError(err); ok && len(cerr.Details) > 0 {
		attrs = append(attrs, "details", cerr.Details)
	}
	h.logger.InfoContext(r.Context(), "request failed", attrs...)
	WriteError(w, err)
}
