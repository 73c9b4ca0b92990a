package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTwilioBaseURL = "https://api.twilio.com"

// HTTPClient describes an HTTP client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// SMS sends text messages through the Twilio Messages REST API.
type SMS struct {
	baseURL    string
	httpClient HTTPClient
	accountSID string
	authToken  string
	from       string
	to         string
}

// SMSOption configures an SMS channel.
type SMSOption func(*SMS)

// WithSMSBaseURL overrides the Twilio API base URL.
func WithSMSBaseURL(baseURL string) SMSOption {
	return func(s *SMS) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithSMSHTTPClient sets the HTTP client.
func WithSMSHTTPClient(c HTTPClient) SMSOption {
	return func(s *SMS) {
		s.httpClient = c
	}
}

// NewSMS creates an SMS channel. A channel missing any credential reports
// ErrDisabled on Send.
func NewSMS(accountSID, authToken, from, to string, opts ...SMSOption) *SMS {
	s := &SMS{
		baseURL:    defaultTwilioBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		to:         to,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Channel.
func (s *SMS) Name() string { return "sms" }

// Enabled reports whether all credentials are present.
func (s *SMS) Enabled() bool {
	return s.accountSID != "" && s.authToken != "" && s.from != "" && s.to != ""
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type twilioMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// Send implements Channel. Subject is prepended to the body since SMS has
// no subject line.
func (s *SMS) Send(ctx context.Context, msg Message) error {
	if !s.Enabled() {
		return fmt.Errorf("sms: %w", ErrDisabled)
	}

	body := msg.Body
	if msg.Subject != "" {
		body = msg.Subject + "\n" + msg.Body
	}
	form := url.Values{}
	form.Set("To", s.to)
	form.Set("From", s.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, url.PathEscape(s.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create sms request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send sms: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("failed to read sms response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var te twilioError
		if json.Unmarshal(raw, &te) == nil && te.Message != "" {
			return fmt.Errorf("twilio error %d (status %d): %s", te.Code, resp.StatusCode, te.Message)
		}
		return fmt.Errorf("twilio returned status %d", resp.StatusCode)
	}

	var tm twilioMessage
	if err := json.Unmarshal(raw, &tm); err != nil {
		return fmt.Errorf("failed to decode sms response: %w", err)
	}
	if tm.Status == "failed" || tm.Status == "undelivered" {
		return fmt.Errorf("twilio message %s status %s", tm.SID, tm.Status)
	}
	return nil
}
