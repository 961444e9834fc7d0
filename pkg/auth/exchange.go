package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
)

// maxExchangeBytes caps the provider token response body.
const maxExchangeBytes = 1 << 20

// ExchangeResult is the provider's answer to a successful code exchange.
// Raw holds the full response payload for server-side logging; it is never
// echoed to end users.
type ExchangeResult struct {
	IDToken     string `json:"id_token"`
	AccessToken string `json:"access_token,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`

	Raw string `json:"-"`
}

// Exchanger trades an authorization code for an identity token at the
// provider's token endpoint. Any failure is AUTH_008 with the provider
// payload attached as error detail for logging.
type Exchanger struct {
	http         *http.Client
	endpoint     string
	clientID     string
	clientSecret Secret
}

// NewExchanger creates an Exchanger for the provider token endpoint. A nil
// httpClient falls back to a client with [DefaultProviderTimeout]; the
// timeout bounds the whole server-to-server call and a timeout is a
// transient failure, never retried here.
func NewExchanger(endpoint, clientID string, clientSecret Secret, httpClient *http.Client) *Exchanger {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultProviderTimeout}
	}
	return &Exchanger{
		http:         httpClient,
		endpoint:     endpoint,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// Exchange posts the authorization code and returns the provider response.
// The redirectURI must be byte-identical to the one used in the original
// authorization request or the provider rejects the exchange.
func (e *Exchanger) Exchange(ctx context.Context, code, redirectURI string) (*ExchangeResult, error) {
	if code == "" {
		return nil, cberr.New(cberr.CodeValidationRequired,
			"auth: authorization code is required")
	}

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"client_id":     {e.clientID},
		"client_secret": {e.clientSecret.Value()},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, cberr.Wrap(err, cberr.CodeAuthenticationExchange,
			"auth: building exchange request failed")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, cberr.Wrap(err, cberr.CodeAuthenticationExchange,
			"auth: code exchange request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxExchangeBytes))
	if err != nil {
		return nil, cberr.Wrap(err, cberr.CodeAuthenticationExchange,
			"auth: reading exchange response failed")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, cberr.Newf(cberr.CodeAuthenticationExchange,
			"auth: code exchange returned status %d", resp.StatusCode).
			WithDetail("provider_response", string(body))
	}

	result := &ExchangeResult{Raw: string(body)}
	if err := json.Unmarshal(body, result); err != nil {
		return nil, cberr.Wrap(err, cberr.CodeAuthenticationExchange,
			"auth: parsing exchange response failed")
	}
	if result.IDToken == "" {
		return nil, cberr.New(cberr.CodeAuthenticationExchange,
			"auth: exchange response carries no id_token").
			WithDetail("provider_response", string(body))
	}
	return result, nil
}
