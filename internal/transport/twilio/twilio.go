// Package twilio sends SMS through the Twilio Messages REST API.
package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	logx "agrisms/pkg/logx"
)

const defaultBaseURL = "https://api.twilio.com"

type Config struct {
	AccountSID string
	AuthToken  string
	FromNumber string

	// BaseURL overrides the API endpoint (tests).
	BaseURL string
}

type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.AccountSID) == "" || strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, errors.New("twilio account sid and auth token are required")
	}
	if strings.TrimSpace(cfg.FromNumber) == "" {
		return nil, errors.New("twilio from number is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg: cfg,
		// The per-send deadline comes from the caller's context; this
		// is only a safety net.
		http: &http.Client{Timeout: 30 * time.Second},
		log:  log,
	}, nil
}

// createResponse is the subset of the Messages resource we care about.
type createResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Send posts one message to the Messages endpoint and reports carrier
// acceptance. Rejections carry Twilio's own error message.
func (c *Client) Send(ctx context.Context, address, body string) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.cfg.BaseURL, url.PathEscape(c.cfg.AccountSID))

	form := url.Values{}
	form.Set("To", address)
	form.Set("From", c.cfg.FromNumber)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	var payload createResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if payload.Message != "" {
			return fmt.Errorf("rejected: %s", payload.Message)
		}
		return fmt.Errorf("rejected: unexpected status %s", resp.Status)
	}

	c.log.Debug("sms accepted",
		logx.String("to", address),
		logx.String("sid", payload.SID),
		logx.String("status", payload.Status),
	)
	return nil
}
