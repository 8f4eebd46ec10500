// Package garmin uploads FIT files to Garmin Connect, keeping the session
// token on disk so repeated runs skip the login round trip.
package garmin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/wgsync/wgsync/config"
)

const (
	defaultBaseURL = "https://connectapi.garmin.com"
	loginPath      = "/auth-service/login"
	uploadPath     = "/upload-service/upload/.fit"
)

// session is the on-disk session file.
type session struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Client uploads files to Garmin Connect for one account.
type Client struct {
	cfg         config.Garmin
	http        *http.Client
	sessionPath string
	logger      golog.Logger

	baseURL string
	token   string
}

// NewClient returns a client for the configured account, reusing a session
// persisted at sessionFile when one exists.
func NewClient(cfg config.Garmin, sessionFile string, logger golog.Logger) (*Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("garmin username and password are required")
	}
	c := &Client{
		cfg:         cfg,
		http:        &http.Client{Timeout: 60 * time.Second},
		sessionPath: sessionFile,
		logger:      logger,
		baseURL:     defaultBaseURL,
	}
	if err := c.loadSession(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) loadSession() error {
	data, err := os.ReadFile(c.sessionPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "reading session file")
	}
	var s session
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrapf(err, "parsing session file %s", c.sessionPath)
	}
	if s.Username == c.cfg.Username {
		c.token = s.Token
		c.logger.Debug("loaded existing Garmin session")
	}
	return nil
}

func (c *Client) saveSession() error {
	data, err := json.MarshalIndent(session{Token: c.token, Username: c.cfg.Username}, "", "  ")
	if err != nil {
		return err
	}
	return errors.Wrap(os.WriteFile(c.sessionPath, data, 0o600), "writing session file")
}

// login authenticates with username and password and persists the returned
// session token.
func (c *Client) login(ctx context.Context) error {
	form := url.Values{
		"username": {c.cfg.Username},
		"password": {c.cfg.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "logging into Garmin Connect")
	}
	defer utils.UncheckedErrorFunc(resp.Body.Close)

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("Garmin login failed with status %d", resp.StatusCode)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return errors.Wrap(err, "decoding login response")
	}
	if body.Token == "" {
		return errors.New("Garmin login returned no session token")
	}

	c.token = body.Token
	c.logger.Info("authenticated with Garmin Connect")
	return c.saveSession()
}

// Upload sends a finished FIT file. A stale persisted session is retried
// once after a fresh login.
func (c *Client) Upload(ctx context.Context, data []byte, filename string) error {
	if c.token == "" {
		if err := c.login(ctx); err != nil {
			return err
		}
	}

	status, err := c.upload(ctx, data, filename)
	if err == nil && status == http.StatusUnauthorized {
		c.logger.Debug("session expired; logging in again")
		if err = c.login(ctx); err != nil {
			return err
		}
		status, err = c.upload(ctx, data, filename)
	}
	if err != nil {
		return err
	}

	switch {
	case status >= 200 && status < 300:
		c.logger.Infow("uploaded to Garmin Connect", "file", filename, "bytes", len(data))
		return nil
	case status == http.StatusConflict:
		// Garmin reports conflict when the same measurements were uploaded
		// before. Nothing left to do.
		c.logger.Infow("file already uploaded", "file", filename)
		return nil
	default:
		return errors.Errorf("upload failed with status %d", status)
	}
}

func (c *Client) upload(ctx context.Context, data []byte, filename string) (int, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return 0, err
	}
	if _, err := part.Write(data); err != nil {
		return 0, err
	}
	if err := form.Close(); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, &body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "uploading to Garmin Connect")
	}
	defer utils.UncheckedErrorFunc(resp.Body.Close)

	// Drain so the connection can be reused across the retry.
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
