package sessionclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrInvalidCredentials is returned by Login when the server rejects the email/password pair
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned by Signup when the email is already registered
	ErrEmailTaken = errors.New("email already registered")
)

// APIError is a non-success response from the auth API
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("auth api returned %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("auth api returned %d (%s)", e.Status, e.Code)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

type userPayload struct {
	User SessionUser `json:"user"`
}

// Client drives the auth API with its own cookie jar
type Client struct {
	baseURL    string
	httpClient *http.Client
	verifier   *Verifier
	logger     *zap.Logger
}

// ClientOption configures a Client
type ClientOption func(*clientOptions)

type clientOptions struct {
	timeout      time.Duration
	logger       *zap.Logger
	verifierOpts []VerifierOption
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.timeout = d }
}

// WithLogger sets the client logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = logger }
}

// WithVerifierOptions configures the post-login session verification
func WithVerifierOptions(opts ...VerifierOption) ClientOption {
	return func(o *clientOptions) { o.verifierOpts = append(o.verifierOpts, opts...) }
}

// NewClient creates a client for the API at baseURL
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	o := clientOptions{timeout: 10 * time.Second, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	httpClient := &http.Client{
		Jar:     jar,
		Timeout: o.timeout,
		// gate redirects must surface to the caller, not be followed silently
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}

	baseURL = strings.TrimRight(baseURL, "/")
	verifierOpts := append([]VerifierOption{WithVerifierLogger(o.logger)}, o.verifierOpts...)
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		verifier:   NewVerifier(httpClient, baseURL, verifierOpts...),
		logger:     o.logger,
	}, nil
}

// HTTPClient returns the underlying cookie-carrying HTTP client
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Login signs in and waits until the new session is readable
func (c *Client) Login(ctx context.Context, email, password string) (*SessionUser, error) {
	body := map[string]string{"email": email, "password": password}
	user, err := c.authenticate(ctx, "/api/auth/login", body)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return c.verifier.VerifySubject(ctx, user.ID)
}

// Signup registers an account and waits until the new session is readable
func (c *Client) Signup(ctx context.Context, email, password, name string) (*SessionUser, error) {
	body := map[string]string{"email": email, "password": password}
	if name != "" {
		body["name"] = name
	}
	user, err := c.authenticate(ctx, "/api/auth/signup", body)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return c.verifier.VerifySubject(ctx, user.ID)
}

// Logout clears the session cookie
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	return nil
}

// Session returns the current session state without retrying
func (c *Client) Session(ctx context.Context) (*SessionState, error) {
	return c.verifier.read(ctx)
}

func (c *Client) authenticate(ctx context.Context, path string, payload any) (*SessionUser, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, path, data)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, decodeAPIError(resp)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode auth response: %w", err)
	}
	var payloadUser userPayload
	if err := json.Unmarshal(env.Data, &payloadUser); err != nil {
		return nil, fmt.Errorf("failed to decode auth user: %w", err)
	}
	if payloadUser.User.ID == "" {
		return nil, fmt.Errorf("auth response carried no user id")
	}

	c.logger.Debug("auth_request_succeeded",
		zap.String("path", path),
		zap.String("user_id", payloadUser.User.ID),
	)
	return &payloadUser.User, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err == nil {
		apiErr.Code = env.Error
		apiErr.Message = env.Message
	}
	return apiErr
}
