package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
)

// ---------------------------------------------------------------------------
// Exchange
// ---------------------------------------------------------------------------

func TestExchanger_Exchange(t *testing.T) {
	t.Parallel()
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"grant_type":    r.PostFormValue("grant_type"),
			"code":          r.PostFormValue("code"),
			"redirect_uri":  r.PostFormValue("redirect_uri"),
			"client_id":     r.PostFormValue("client_id"),
			"client_secret": r.PostFormValue("client_secret"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id_token":"header.payload.sig","access_token":"at","token_type":"Bearer","expires_in":2592000}`))
	}))
	t.Cleanup(srv.Close)

	e := NewExchanger(srv.URL, "channel-123", Secret("s3cret"), srv.Client())
	result, err := e.Exchange(context.Background(), "auth-code", "https://app.cookbase.app/callback")
	require.NoError(t, err)

	assert.Equal(t, "header.payload.sig", result.IDToken)
	assert.Equal(t, "Bearer", result.TokenType)
	assert.NotEmpty(t, result.Raw)

	assert.Equal(t, map[string]string{
		"grant_type":    "authorization_code",
		"code":          "auth-code",
		"redirect_uri":  "https://app.cookbase.app/callback",
		"client_id":     "channel-123",
		"client_secret": "s3cret",
	}, form)
}

func TestExchanger_Exchange_EmptyCode(t *testing.T) {
	t.Parallel()
	e := NewExchanger("http://unused.invalid", "channel-123", "", nil)

	_, err := e.Exchange(context.Background(), "", "https://app.cookbase.app/callback")
	require.Error(t, err)
	assert.True(t, cberr.HasCode(err, cberr.CodeValidationRequired))
}

// TestExchanger_Exchange_ProviderRejects verifies a non-2xx answer is
// AUTH_008 and the provider payload lands in the error details, not the
// message.
func TestExchanger_Exchange_ProviderRejects(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"authorization code expired"}`))
	}))
	t.Cleanup(srv.Close)

	e := NewExchanger(srv.URL, "channel-123", "", srv.Client())
	_, err := e.Exchange(context.Background(), "stale-code", "https://app.cookbase.app/callback")
	require.Error(t, err)

	cerr, ok := cberr.AsError(err)
	require.True(t, ok)
	assert.Equal(t, cberr.CodeAuthenticationExchange, cerr.Code)
	assert.Contains(t, cerr.Details["provider_response"], "invalid_grant")
	assert.NotContains(t, cerr.Message, "invalid_grant")
}

func TestExchanger_Exchange_MissingIDToken(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"at"}`))
	}))
	t.Cleanup(srv.Close)

	e := NewExchanger(srv.URL, "channel-123", "", srv.Client())
	_, err := e.Exchange(context.Background(), "auth-code", "https://app.cookbase.app/callback")
	require.Error(t, err)
	assert.True(t, cberr.HasCode(err, cberr.CodeAuthenticationExchange))
}

func TestExchanger_Exchange_MalformedResponse(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>gateway error</html>"))
	}))
	t.Cleanup(srv.Close)

	e := NewExchanger(srv.URL, "channel-123", "", srv.Client())
	_, err := e.Exchange(context.Background(), "auth-code", "https://app.cookbase.app/callback")
	require.Error(t, err)
	assert.True(t, cberr.HasCode(err, cberr.CodeAuthenticationExchange))
}

func TestExchanger_Exchange_NetworkError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	e := NewExchanger(srv.URL, "channel-123", "", nil)
	_, err := e.Exchange(context.Background(), "auth-code", "https://app.cookbase.app/callback")
	require.Error(t, err)
	assert.True(t, cberr.HasCode(err, cberr.CodeAuthenticationExchange))
}
