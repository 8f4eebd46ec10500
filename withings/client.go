package withings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/wgsync/wgsync/config"
)

const (
	defaultBaseURL = "https://wbsapi.withings.net"
	authorizeURL   = "https://account.withings.com/oauth2_user/authorize2"
	scopeMetrics   = "user.metrics"

	tokenPath   = "/v2/oauth2"
	getmeasPath = "/measure"
)

// ErrNotAuthorized is returned when no access token is stored and the
// one-time authorization-code flow has not been completed.
var ErrNotAuthorized = errors.New("withings account not authorized")

// Client talks to the Withings measure API on behalf of one user.
type Client struct {
	cfg     config.Withings
	http    *http.Client
	store   *tokenStore
	limiter *rate.Limiter
	clock   clock.Clock
	logger  golog.Logger

	baseURL string
}

// NewClient returns a client using tokens persisted at tokenFile. It does
// not hit the network; authorization state is checked lazily per call.
func NewClient(cfg config.Withings, tokenFile string, logger golog.Logger) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("withings client id and secret are required")
	}
	store, err := newTokenStore(tokenFile)
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: 30 * time.Second},
		store: store,
		// The measure API allows 120 requests per minute per client.
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		clock:   clock.New(),
		logger:  logger,
		baseURL: defaultBaseURL,
	}, nil
}

// NeedsAuthorization reports whether the one-time code flow must be run
// before any API call can succeed.
func (c *Client) NeedsAuthorization() bool {
	return c.store.token() == nil
}

// AuthCodeURL is the URL the user must open in a browser to grant access.
// The returned code expires roughly thirty seconds after it is issued.
func (c *Client) AuthCodeURL() string {
	oc := oauth2.Config{
		ClientID:    c.cfg.ClientID,
		RedirectURL: c.cfg.CallbackURL,
		Scopes:      []string{scopeMetrics},
		Endpoint:    oauth2.Endpoint{AuthURL: authorizeURL},
	}
	return oc.AuthCodeURL("OK")
}

// Authorize exchanges an authorization code for tokens and persists them.
func (c *Client) Authorize(ctx context.Context, code string) error {
	return c.requestToken(ctx, url.Values{
		"action":        {"requesttoken"},
		"grant_type":    {"authorization_code"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"code":          {code},
		"redirect_uri":  {c.cfg.CallbackURL},
	})
}

// refresh rotates the stored token. Withings access tokens are short lived,
// so this runs before every sync; a failed refresh keeps the current token
// in case it is still valid.
func (c *Client) refresh(ctx context.Context) {
	tok := c.store.token()
	if tok == nil || tok.RefreshToken == "" {
		return
	}
	err := c.requestToken(ctx, url.Values{
		"action":        {"requesttoken"},
		"grant_type":    {"refresh_token"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"refresh_token": {tok.RefreshToken},
	})
	if err != nil {
		c.logger.Warnw("token refresh failed; keeping existing token", "error", err)
	}
}

// tokenEnvelope is Withings' response shape for the token endpoint. It does
// not follow RFC 6749; the OAuth payload is nested under body with an
// API-level status code, which is why the exchange is done by hand instead
// of through oauth2.Config.Exchange.
type tokenEnvelope struct {
	Status int `json:"status"`
	Body   struct {
		AccessToken  string      `json:"access_token"`
		RefreshToken string      `json:"refresh_token"`
		ExpiresIn    int64       `json:"expires_in"`
		UserID       json.Number `json:"userid"`
	} `json:"body"`
	Error string `json:"error"`
}

func (c *Client) requestToken(ctx context.Context, form url.Values) error {
	var envelope tokenEnvelope
	if err := c.postForm(ctx, tokenPath, form, &envelope); err != nil {
		return err
	}
	if envelope.Status != 0 {
		return errors.Errorf("token request failed: status %d %s", envelope.Status, envelope.Error)
	}
	tok := &oauth2.Token{
		AccessToken:  envelope.Body.AccessToken,
		RefreshToken: envelope.Body.RefreshToken,
	}
	if envelope.Body.ExpiresIn > 0 {
		tok.Expiry = c.clock.Now().Add(time.Duration(envelope.Body.ExpiresIn) * time.Second)
	}
	return c.store.setToken(tok, envelope.Body.UserID.String())
}

// ensureToken refreshes when possible and returns the current access token.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	if c.store.token() == nil {
		return "", ErrNotAuthorized
	}
	c.refresh(ctx)
	return c.store.token().AccessToken, nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "POST %s", path)
	}
	defer utils.UncheckedErrorFunc(resp.Body.Close)

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("POST %s: unexpected status %d", path, resp.StatusCode)
	}
	return errors.Wrapf(json.NewDecoder(resp.Body).Decode(out), "decoding %s response", path)
}
