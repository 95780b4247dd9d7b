package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tyemirov/helpdesk/internal/metrics"
	"github.com/tyemirov/helpdesk/internal/session"
	"go.uber.org/zap"
)

const (
	loginPath = "/auth/login"

	defaultTimeout = 30 * time.Second

	metricLoginSuccess = "apiclient.login.success"
	metricLoginFailure = "apiclient.login.failure"
)

// Config configures the authenticated client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
	Logger    *zap.Logger
	Metrics   metrics.Recorder
}

// Request describes one outbound call. Body is encoded as JSON when non-nil.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header
}

// LoginPayload is the data returned by the login endpoint.
type LoginPayload struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         session.User `json:"user"`
}

// SavedCookie is a cookie exported for persistence between processes.
type SavedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path"`
	Expires time.Time `json:"expires,omitempty"`
}

// Client sends authenticated requests to the backend API.
type Client struct {
	baseURL     *url.URL
	credentials *session.Store
	jar         *Jar
	api         *exchanger
	auth        *exchanger
	refresher   *Refresher
	logger      *zap.Logger
	metrics     metrics.Recorder
}

// New constructs a Client bound to the supplied credential store.
func New(configuration Config, credentials *session.Store) (*Client, error) {
	if credentials == nil {
		return nil, fmt.Errorf("apiclient.new: %w", ErrMissingCredentialStore)
	}
	rawBaseURL := strings.TrimSpace(configuration.BaseURL)
	if rawBaseURL == "" {
		return nil, fmt.Errorf("apiclient.new: %w", ErrMissingBaseURL)
	}
	baseURL, parseErr := url.Parse(rawBaseURL)
	if parseErr != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("apiclient.new: %w: %s", ErrInvalidBaseURL, rawBaseURL)
	}
	if baseURL.Path == "" {
		baseURL.Path = "/"
	}
	timeout := configuration.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := configuration.Metrics
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	base := configuration.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	jar := NewJar()
	auth := &exchanger{
		httpClient: &http.Client{Transport: base, Jar: jar, Timeout: timeout},
		baseURL:    baseURL,
	}
	refresher := newRefresher(auth, credentials, logger, recorder)
	transport := NewTransport(base, credentials, refresher, logger, recorder)
	api := &exchanger{
		httpClient: &http.Client{Transport: transport, Jar: jar, Timeout: timeout},
		baseURL:    baseURL,
	}

	return &Client{
		baseURL:     baseURL,
		credentials: credentials,
		jar:         jar,
		api:         api,
		auth:        auth,
		refresher:   refresher,
		logger:      logger,
		metrics:     recorder,
	}, nil
}

// Credentials exposes the credential store the client reads and writes.
func (client *Client) Credentials() *session.Store {
	return client.credentials
}

// Do sends an authenticated request and decodes the envelope data into out.
func (client *Client) Do(ctx context.Context, request Request, out any) error {
	var body []byte
	contentType := ""
	if request.Body != nil {
		encoded, err := json.Marshal(request.Body)
		if err != nil {
			return fmt.Errorf("apiclient.request.encode: %w", err)
		}
		body = encoded
		contentType = "application/json"
	}
	method := request.Method
	if method == "" {
		method = http.MethodGet
	}
	return client.api.send(ctx, method, request.Path, request.Query, request.Header, body, contentType, out)
}

// Upload posts content as the multipart form field fieldName. The form is
// buffered so the request can be replayed after a refresh.
func (client *Client) Upload(ctx context.Context, path string, fieldName string, fileName string, content io.Reader, out any) error {
	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)
	part, err := writer.CreateFormFile(fieldName, fileName)
	if err != nil {
		return fmt.Errorf("apiclient.upload.form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("apiclient.upload.copy: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("apiclient.upload.close: %w", err)
	}
	return client.api.send(ctx, http.MethodPost, path, nil, nil, buffer.Bytes(), writer.FormDataContentType(), out)
}

// Login authenticates with email and password and starts a new session.
func (client *Client) Login(ctx context.Context, email string, password string) (session.User, error) {
	credentials := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password}
	body, err := json.Marshal(credentials)
	if err != nil {
		return session.User{}, fmt.Errorf("apiclient.login.encode: %w", err)
	}
	var payload LoginPayload
	if err := client.auth.send(ctx, http.MethodPost, loginPath, nil, nil, body, "application/json", &payload); err != nil {
		client.metrics.Increment(metricLoginFailure)
		client.logger.Info("login rejected",
			zap.String("code", "apiclient.login.failed"),
			zap.Int("status", StatusCode(err)))
		return session.User{}, fmt.Errorf("apiclient.login: %w", err)
	}
	if _, err := client.credentials.Login(payload.AccessToken, payload.User); err != nil {
		client.metrics.Increment(metricLoginFailure)
		return session.User{}, fmt.Errorf("apiclient.login: %w", err)
	}
	client.metrics.Increment(metricLoginSuccess)
	client.logger.Info("logged in",
		zap.String("code", "apiclient.login.success"),
		zap.Int64("user_id", payload.User.ID))
	return payload.User, nil
}

// Refresh runs the refresh operation for the current session.
func (client *Client) Refresh(ctx context.Context) (string, error) {
	return client.refresher.Refresh(ctx, client.credentials.Epoch())
}

// Logout clears the credential store and forgets the refresh cookie. No
// network call is made.
func (client *Client) Logout() {
	client.credentials.Logout()
	client.jar.Reset()
	client.logger.Info("logged out", zap.String("code", "apiclient.logout"))
}

// ExportCookies returns the cookies the backend set for the API origin,
// including those scoped to the auth path.
func (client *Client) ExportCookies() []SavedCookie {
	scopes := []struct {
		probe *url.URL
		path  string
	}{
		{probe: client.baseURL, path: client.baseURL.Path},
		{probe: client.baseURL.JoinPath(refreshPath), path: client.baseURL.JoinPath("/auth").Path},
	}
	seen := make(map[string]struct{})
	var saved []SavedCookie
	for _, scope := range scopes {
		for _, cookie := range client.jar.Cookies(scope.probe) {
			key := cookie.Name + "=" + cookie.Value
			if _, exists := seen[key]; exists {
				continue
			}
			seen[key] = struct{}{}
			saved = append(saved, SavedCookie{Name: cookie.Name, Value: cookie.Value, Path: scope.path})
		}
	}
	return saved
}

// ImportCookies loads previously exported cookies into the jar.
func (client *Client) ImportCookies(saved []SavedCookie) {
	cookies := make([]*http.Cookie, 0, len(saved))
	for _, entry := range saved {
		if strings.TrimSpace(entry.Name) == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{
			Name:    entry.Name,
			Value:   entry.Value,
			Path:    entry.Path,
			Expires: entry.Expires,
		})
	}
	if len(cookies) > 0 {
		client.jar.SetCookies(client.baseURL, cookies)
	}
}
