package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/vibevideos/client/internal/identity"
	"github.com/vibevideos/client/internal/logging"
	"github.com/vibevideos/client/internal/models"
)

// Config controls Client construction.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond throttles outgoing calls. Zero disables throttling.
	RequestsPerSecond float64
	Logger            *slog.Logger
}

// Client talks to the video library service. It is safe for use from a
// single goroutine at a time, which is all the client application needs.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New constructs a Client for the service at cfg.BaseURL.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
		logger:  logger,
	}
}

// SignupReceipt is the server's answer to a successful signup.
type SignupReceipt struct {
	// OTPHint carries the demo verification code the server surfaces so
	// the account can be verified without an SMS or email channel.
	OTPHint string
}

type contactPayload struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func contactOf(contact identity.Contact) contactPayload {
	return contactPayload{Email: contact.Email(), Phone: contact.Phone()}
}

type detailResponse struct {
	Detail string `json:"detail"`
}

// Signup registers a new account for the contact identity.
func (c *Client) Signup(ctx context.Context, contact identity.Contact, password string) (SignupReceipt, error) {
	ctx, span := logging.StartSpan(ctx, "api.signup")
	defer span.End()

	body := struct {
		contactPayload
		Password string `json:"password"`
	}{contactOf(contact), password}

	var out struct {
		OTP string `json:"otp"`
	}
	status, detail, err := c.postJSON(ctx, "/auth/signup", body, &out)
	if err != nil {
		return SignupReceipt{}, err
	}
	switch {
	case status == http.StatusConflict:
		return SignupReceipt{}, wrap(ErrConflict, detail)
	case status == http.StatusBadRequest:
		return SignupReceipt{}, wrap(ErrValidation, detail)
	case status >= 300:
		return SignupReceipt{}, unexpected("signup", status, detail)
	}
	return SignupReceipt{OTPHint: out.OTP}, nil
}

// Verify proves ownership of the contact identity with a one-time code.
func (c *Client) Verify(ctx context.Context, contact identity.Contact, code string) error {
	ctx, span := logging.StartSpan(ctx, "api.verify")
	defer span.End()

	body := struct {
		contactPayload
		Code string `json:"code"`
	}{contactOf(contact), code}

	status, detail, err := c.postJSON(ctx, "/auth/verify", body, nil)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusGone:
		return wrap(ErrExpiredCode, detail)
	case status == http.StatusBadRequest, status == http.StatusUnauthorized:
		return wrap(ErrInvalidCode, detail)
	case status >= 300:
		return unexpected("verify", status, detail)
	}
	return nil
}

// Login exchanges verified credentials for a session.
func (c *Client) Login(ctx context.Context, contact identity.Contact, password string) (models.Session, error) {
	ctx, span := logging.StartSpan(ctx, "api.login")
	defer span.End()

	body := struct {
		contactPayload
		Password string `json:"password"`
	}{contactOf(contact), password}

	var out struct {
		Token  string `json:"token"`
		UserID string `json:"user_id"`
	}
	status, detail, err := c.postJSON(ctx, "/auth/login", body, &out)
	if err != nil {
		return models.Session{}, err
	}
	switch {
	case status == http.StatusUnauthorized:
		return models.Session{}, wrap(ErrAuthentication, detail)
	case status == http.StatusForbidden:
		return models.Session{}, wrap(ErrUnverifiedAccount, detail)
	case status == http.StatusBadRequest:
		return models.Session{}, wrap(ErrValidation, detail)
	case status >= 300:
		return models.Session{}, unexpected("login", status, detail)
	}
	return models.Session{Token: out.Token, UserID: out.UserID}, nil
}

// List fetches the account's video library in server order.
func (c *Client) List(ctx context.Context, session models.Session) ([]models.VideoRecord, error) {
	ctx, span := logging.StartSpan(ctx, "api.list")
	defer span.End()

	req, err := c.newRequest(ctx, http.MethodGet, "/videos/list", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+session.Token)

	var out struct {
		Videos []struct {
			ID           string `json:"id"`
			OriginalName string `json:"original_name"`
			ContentType  string `json:"content_type"`
		} `json:"videos"`
	}
	status, detail, err := c.do(req, &out)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusUnauthorized:
		return nil, wrap(ErrUnauthorized, detail)
	case status >= 300:
		return nil, unexpected("list", status, detail)
	}

	records := make([]models.VideoRecord, 0, len(out.Videos))
	for _, v := range out.Videos {
		records = append(records, models.VideoRecord{
			ID:          v.ID,
			DisplayName: v.OriginalName,
			MediaType:   v.ContentType,
		})
	}
	return records, nil
}

// Upload submits one video file as a multipart request under the session.
func (c *Client) Upload(ctx context.Context, session models.Session, filename, contentType string, file io.Reader) error {
	ctx, span := logging.StartSpan(ctx, "api.upload")
	defer span.End()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("read upload payload: %w", err)
	}
	if contentType != "" {
		if err := mw.WriteField("content_type", contentType); err != nil {
			return fmt.Errorf("build multipart body: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/videos/upload", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+session.Token)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	status, detail, err := c.do(req, nil)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusUnauthorized:
		return wrap(ErrUnauthorized, detail)
	case status == http.StatusBadRequest,
		status == http.StatusRequestEntityTooLarge,
		status == http.StatusUnsupportedMediaType,
		status == http.StatusUnprocessableEntity:
		return wrap(ErrPayload, detail)
	case status >= 300:
		return unexpected("upload", status, detail)
	}
	return nil
}

// StreamURL returns the playback URL for a stored video.
func (c *Client) StreamURL(videoID string) string {
	return c.baseURL + "/videos/stream/" + url.PathEscape(videoID)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) (int, string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

// do executes the request and decodes either the success shape into out or
// the server's {detail} failure shape. It returns the status code so each
// operation can map failures onto its own slice of the taxonomy.
func (c *Client) do(req *http.Request, out any) (int, string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return 0, "", fmt.Errorf("%w: %v", ErrNetwork, err)
		}
	}

	logger := logging.FromContext(req.Context())
	logger.Debug("service call", "method", req.Method, "path", req.URL.Path)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		var failure detailResponse
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		return resp.StatusCode, failure.Detail, nil
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, "", fmt.Errorf("%w: decode response: %v", ErrNetwork, err)
		}
	}
	return resp.StatusCode, "", nil
}

func wrap(sentinel error, detail string) error {
	if detail == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, detail)
}

func unexpected(op string, status int, detail string) error {
	if detail == "" {
		return fmt.Errorf("%s: unexpected status %d", op, status)
	}
	return fmt.Errorf("%s: unexpected status %d: %s", op, status, detail)
}
