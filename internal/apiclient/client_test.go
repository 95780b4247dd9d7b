package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tyemirov/helpdesk/internal/metrics"
	"github.com/tyemirov/helpdesk/internal/session"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func writeEnvelope(w http.ResponseWriter, status int, message any, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"statusCode": status,
		"message":    message,
		"data":       data,
	})
}

func adminUser() session.User {
	return session.User{
		ID:    1,
		Email: "admin@gmail.com",
		Name:  "Admin",
		Role:  session.Role{ID: 1, Name: "SUPER_ADMIN", Active: true},
	}
}

func newTestClient(t *testing.T, serverURL string, logger *zap.Logger) (*Client, *session.Store, *metrics.Counter) {
	t.Helper()
	store := session.NewStore()
	counter := metrics.NewCounter()
	client, err := New(Config{BaseURL: serverURL, Timeout: 5 * time.Second, Logger: logger, Metrics: counter}, store)
	if err != nil {
		t.Fatalf("unexpected client error: %v", err)
	}
	return client, store, counter
}

func TestNewRejectsInvalidConfiguration(t *testing.T) {
	testCases := []struct {
		name        string
		baseURL     string
		store       *session.Store
		expectedErr error
	}{
		{name: "missing store", baseURL: "http://localhost", store: nil, expectedErr: ErrMissingCredentialStore},
		{name: "missing base url", baseURL: "  ", store: session.NewStore(), expectedErr: ErrMissingBaseURL},
		{name: "relative base url", baseURL: "/api", store: session.NewStore(), expectedErr: ErrInvalidBaseURL},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := New(Config{BaseURL: testCase.baseURL}, testCase.store)
			if !errors.Is(err, testCase.expectedErr) {
				t.Fatalf("expected %v, got %v", testCase.expectedErr, err)
			}
		})
	}
}

func TestClientAttachesBearerTokenOnlyWhenPresent(t *testing.T) {
	var (
		mutex   sync.Mutex
		headers []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mutex.Lock()
		headers = append(headers, r.Header.Get("Authorization"))
		mutex.Unlock()
		writeEnvelope(w, http.StatusOK, "ok", []any{})
	}))
	defer server.Close()

	client, store, _ := newTestClient(t, server.URL, zaptest.NewLogger(t))
	if _, err := store.Login("token-1", adminUser()); err != nil {
		t.Fatalf("login: %v", err)
	}
	request := Request{Path: "/users", Header: http.Header{"Authorization": []string{"Bearer stale"}}}
	if err := client.Do(context.Background(), request, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	client.Logout()
	if err := client.Do(context.Background(), Request{Path: "/users"}, nil); err != nil {
		t.Fatalf("unexpected error after logout: %v", err)
	}

	mutex.Lock()
	defer mutex.Unlock()
	if len(headers) != 2 {
		t.Fatalf("expected two requests, got %d", len(headers))
	}
	if headers[0] != "Bearer token-1" {
		t.Fatalf("expected bearer header to overwrite caller value, got %q", headers[0])
	}
	if headers[1] != "" {
		t.Fatalf("expected no authorization header after logout, got %q", headers[1])
	}
}

func TestClientRefreshesOnceAndRetriesWithNewToken(t *testing.T) {
	var (
		refreshCalls int32
		userCalls    int32
		requestIDs   sync.Map
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			atomic.AddInt32(&refreshCalls, 1)
			writeEnvelope(w, http.StatusOK, "ok", map[string]string{"access_token": "token-2"})
		case "/users":
			call := atomic.AddInt32(&userCalls, 1)
			requestIDs.Store(call, r.Header.Get(requestIDHeader))
			body, _ := io.ReadAll(r.Body)
			if string(body) != `{"name":"Printer"}` {
				writeEnvelope(w, http.StatusBadRequest, "unexpected body "+string(body), nil)
				return
			}
			if r.Header.Get("Authorization") != "Bearer token-2" {
				writeEnvelope(w, http.StatusUnauthorized, "Unauthorized", nil)
				return
			}
			writeEnvelope(w, http.StatusCreated, "created", map[string]any{"id": 9, "name": "Printer"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client, store, counter := newTestClient(t, server.URL, zaptest.NewLogger(t))
	if _, err := store.Login("token-1", adminUser()); err != nil {
		t.Fatalf("login: %v", err)
	}

	var created struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	err := client.Do(context.Background(), Request{Method: http.MethodPost, Path: "/users", Body: map[string]string{"name": "Printer"}}, &created)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID != 9 || created.Name != "Printer" {
		t.Fatalf("unexpected payload: %#v", created)
	}
	if got := atomic.LoadInt32(&refreshCalls); got != 1 {
		t.Fatalf("expected one refresh, got %d", got)
	}
	if got := atomic.LoadInt32(&userCalls); got != 2 {
		t.Fatalf("expected original plus one retry, got %d", got)
	}
	firstID, _ := requestIDs.Load(int32(1))
	secondID, _ := requestIDs.Load(int32(2))
	if firstID == "" || firstID != secondID {
		t.Fatalf("expected request id preserved across retry, got %v and %v", firstID, secondID)
	}
	if store.AccessToken() != "token-2" {
		t.Fatalf("expected refreshed token in store, got %q", store.AccessToken())
	}
	if user := store.User(); user == nil || user.Email != "admin@gmail.com" {
		t.Fatalf("expected user record untouched, got %#v", user)
	}
	if counter.Count(metricRefreshSuccess) != 1 || counter.Count(metricRequestRetry) != 1 {
		t.Fatalf("unexpected metrics: %#v", counter.Snapshot())
	}
}

func TestClientRefreshFailureClearsCredentials(t *testing.T) {
	var userCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			writeEnvelope(w, http.StatusUnauthorized, "Refresh token expired", nil)
		default:
			atomic.AddInt32(&userCalls, 1)
			writeEnvelope(w, http.StatusUnauthorized, "Unauthorized", nil)
		}
	}))
	defer server.Close()

	client, store, counter := newTestClient(t, server.URL, zaptest.NewLogger(t))
	if _, err := store.Login("token-1", adminUser()); err != nil {
		t.Fatalf("login: %v", err)
	}

	err := client.Do(context.Background(), Request{Path: "/devices"}, nil)
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}
	if !errors.Is(err, ErrRefreshFailed) {
		t.Fatalf("expected refresh failure cause, got %v", err)
	}
	if store.AccessToken() != "" || store.User() != nil || store.Snapshot().IsAuthenticated {
		t.Fatalf("expected cleared credentials, got %#v", store.Snapshot())
	}
	if got := atomic.LoadInt32(&userCalls); got != 1 {
		t.Fatalf("expected no retry after failed refresh, got %d calls", got)
	}
	if counter.Count(metricRefreshFailure) != 1 {
		t.Fatalf("expected refresh failure metric, got %#v", counter.Snapshot())
	}
}

func TestClientDoesNotRefreshTwice(t *testing.T) {
	var refreshCalls, userCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			call := atomic.AddInt32(&refreshCalls, 1)
			writeEnvelope(w, http.StatusOK, "ok", map[string]string{"access_token": "token-" + string(rune('1'+call))})
		default:
			atomic.AddInt32(&userCalls, 1)
			writeEnvelope(w, http.StatusUnauthorized, "Unauthorized", nil)
		}
	}))
	defer server.Close()

	client, store, counter := newTestClient(t, server.URL, zaptest.NewLogger(t))
	if _, err := store.Login("token-1", adminUser()); err != nil {
		t.Fatalf("login: %v", err)
	}

	err := client.Do(context.Background(), Request{Path: "/roles"}, nil)
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("expected HTTPError 401, got %v", err)
	}
	if errors.Is(err, ErrAuthExpired) {
		t.Fatalf("a 401 after retry is not an expired session: %v", err)
	}
	if got := atomic.LoadInt32(&refreshCalls); got != 1 {
		t.Fatalf("expected exactly one refresh, got %d", got)
	}
	if got := atomic.LoadInt32(&userCalls); got != 2 {
		t.Fatalf("expected exactly two attempts, got %d", got)
	}
	if store.AccessToken() != "token-2" {
		t.Fatalf("expected refreshed token kept, got %q", store.AccessToken())
	}
	if counter.Count(metricRetryExhausted) != 1 {
		t.Fatalf("expected retry exhausted metric, got %#v", counter.Snapshot())
	}
}

func TestClientServerErrorIsNotRefreshed(t *testing.T) {
	var refreshCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			atomic.AddInt32(&refreshCalls, 1)
		}
		writeEnvelope(w, http.StatusInternalServerError, "database unavailable", nil)
	}))
	defer server.Close()

	client, store, _ := newTestClient(t, server.URL, zaptest.NewLogger(t))
	if _, err := store.Login("token-1", adminUser()); err != nil {
		t.Fatalf("login: %v", err)
	}

	err := client.Do(context.Background(), Request{Path: "/issues"}, nil)
	var httpError *HTTPError
	if !errors.As(err, &httpError) || httpError.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected HTTPError 500, got %v", err)
	}
	if ErrorMessage(err) != "database unavailable" {
		t.Fatalf("unexpected message %q", ErrorMessage(err))
	}
	if atomic.LoadInt32(&refreshCalls) != 0 {
		t.Fatalf("expected no refresh on 500")
	}
	if store.AccessToken() != "token-1" {
		t.Fatalf("expected credentials untouched")
	}
}

func TestClientNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	client, _, _ := newTestClient(t, serverURL, zaptest.NewLogger(t))
	err := client.Do(context.Background(), Request{Path: "/users"}, nil)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if StatusCode(err) != 0 {
		t.Fatalf("network errors carry no status")
	}
}

func TestClientCoalescesConcurrentRefreshes(t *testing.T) {
	var refreshCalls int32
	started := make(chan struct{})
	release := make(chan struct{})
	var startOnce sync.Once
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		startOnce.Do(func() { close(started) })
		<-release
		writeEnvelope(w, http.StatusOK, "ok", map[string]string{"access_token": "token-2"})
	}))
	defer server.Close()

	client, store, counter := newTestClient(t, server.URL, zap.NewNop())
	if _, err := store.Login("token-1", adminUser()); err != nil {
		t.Fatalf("login: %v", err)
	}

	const callers = 4
	results := make(chan string, callers)
	errorsChannel := make(chan error, callers)
	var waitGroup sync.WaitGroup
	for index := 0; index < callers; index++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			token, err := client.Refresh(context.Background())
			if err != nil {
				errorsChannel <- err
				return
			}
			results <- token
		}()
	}
	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	waitGroup.Wait()
	close(results)
	close(errorsChannel)

	for err := range errorsChannel {
		t.Fatalf("unexpected refresh error: %v", err)
	}
	for token := range results {
		if token != "token-2" {
			t.Fatalf("unexpected token %q", token)
		}
	}
	if got := atomic.LoadInt32(&refreshCalls); got != 1 {
		t.Fatalf("expected a single refresh call, got %d", got)
	}
	if counter.Count(metricRefreshCoalesced) == 0 {
		t.Fatalf("expected coalesced metric, got %#v", counter.Snapshot())
	}
}

func TestClientCancelledRequestKeepsCredentials(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			close(started)
			<-release
			writeEnvelope(w, http.StatusOK, "ok", map[string]string{"access_token": "token-2"})
			return
		}
		writeEnvelope(w, http.StatusUnauthorized, "Unauthorized", nil)
	}))
	defer server.Close()
	defer close(release)

	client, store, _ := newTestClient(t, server.URL, zap.NewNop())
	if _, err := store.Login("token-1", adminUser()); err != nil {
		t.Fatalf("login: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	err := client.Do(ctx, Request{Path: "/mails"}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if errors.Is(err, ErrAuthExpired) {
		t.Fatalf("cancellation must not end the session: %v", err)
	}
	if store.User() == nil {
		t.Fatalf("expected credentials kept after cancellation")
	}
}

func TestClientLogoutDuringRefreshDoesNotReuseToken(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var (
		mutex        sync.Mutex
		retryHeaders []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			close(started)
			<-release
			writeEnvelope(w, http.StatusOK, "ok", map[string]string{"access_token": "token-2"})
			return
		}
		mutex.Lock()
		retryHeaders = append(retryHeaders, r.Header.Get("Authorization"))
		mutex.Unlock()
		writeEnvelope(w, http.StatusUnauthorized, "Unauthorized", nil)
	}))
	defer server.Close()

	client, store, _ := newTestClient(t, server.URL, zap.NewNop())
	if _, err := store.Login("token-1", adminUser()); err != nil {
		t.Fatalf("login: %v", err)
	}

	go func() {
		<-started
		store.Logout()
		_, _ = store.Login("token-other", session.User{ID: 2, Email: "tech@gmail.com"})
		close(release)
	}()
	err := client.Do(context.Background(), Request{Path: "/files"}, nil)
	if !errors.Is(err, ErrAuthExpired) || !errors.Is(err, session.ErrSessionEnded) {
		t.Fatalf("expected ended session error, got %v", err)
	}
	if store.AccessToken() != "token-other" {
		t.Fatalf("expected newer login kept, got %q", store.AccessToken())
	}
	mutex.Lock()
	defer mutex.Unlock()
	if len(retryHeaders) != 1 {
		t.Fatalf("expected no retry after logout, got %v", retryHeaders)
	}
}

func TestClientUploadReplaysMultipartBody(t *testing.T) {
	var uploads []string
	var mutex sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			writeEnvelope(w, http.StatusOK, "ok", map[string]string{"access_token": "token-2"})
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeEnvelope(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		content, _ := io.ReadAll(file)
		mutex.Lock()
		uploads = append(uploads, header.Filename+":"+string(content))
		mutex.Unlock()
		if r.Header.Get("Authorization") != "Bearer token-2" {
			writeEnvelope(w, http.StatusUnauthorized, "Unauthorized", nil)
			return
		}
		writeEnvelope(w, http.StatusCreated, "uploaded", map[string]any{"id": 1, "fileName": header.Filename})
	}))
	defer server.Close()

	client, store, _ := newTestClient(t, server.URL, zaptest.NewLogger(t))
	if _, err := store.Login("token-1", adminUser()); err != nil {
		t.Fatalf("login: %v", err)
	}

	var uploaded struct {
		FileName string `json:"fileName"`
	}
	if err := client.Upload(context.Background(), "/files/upload", "file", "report.txt", strings.NewReader("printer jam"), &uploaded); err != nil {
		t.Fatalf("unexpected upload error: %v", err)
	}
	if uploaded.FileName != "report.txt" {
		t.Fatalf("unexpected upload payload: %#v", uploaded)
	}
	mutex.Lock()
	defer mutex.Unlock()
	if len(uploads) != 2 || uploads[0] != uploads[1] || uploads[1] != "report.txt:printer jam" {
		t.Fatalf("expected identical replayed uploads, got %v", uploads)
	}
}

func TestClientLoginAndCookieRoundTrip(t *testing.T) {
	var refreshCookies []string
	var mutex sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			var credentials struct {
				Email    string `json:"email"`
				Password string `json:"password"`
			}
			_ = json.NewDecoder(r.Body).Decode(&credentials)
			if credentials.Email != "admin@gmail.com" || credentials.Password != "123456" {
				writeEnvelope(w, http.StatusUnauthorized, "Invalid credentials", nil)
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "refresh-1", Path: "/auth", HttpOnly: true})
			writeEnvelope(w, http.StatusOK, "ok", LoginPayload{AccessToken: "token-1", RefreshToken: "refresh-1", User: adminUser()})
		case "/auth/refresh":
			cookie, err := r.Cookie("refresh_token")
			mutex.Lock()
			if err == nil {
				refreshCookies = append(refreshCookies, cookie.Value)
			}
			mutex.Unlock()
			if err != nil {
				writeEnvelope(w, http.StatusUnauthorized, "missing refresh token", nil)
				return
			}
			writeEnvelope(w, http.StatusOK, "ok", map[string]string{"access_token": "token-2"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client, store, counter := newTestClient(t, server.URL, zaptest.NewLogger(t))
	if _, err := client.Login(context.Background(), "admin@gmail.com", "wrong"); StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad credentials, got %v", err)
	} else if ErrorMessage(err) != "Invalid credentials" {
		t.Fatalf("unexpected message %q", ErrorMessage(err))
	}
	if store.Snapshot().IsAuthenticated {
		t.Fatalf("expected no session after rejected login")
	}

	user, err := client.Login(context.Background(), "admin@gmail.com", "123456")
	if err != nil {
		t.Fatalf("unexpected login error: %v", err)
	}
	if user.Role.Name != "SUPER_ADMIN" || store.AccessToken() != "token-1" {
		t.Fatalf("unexpected session after login: %#v", store.Snapshot())
	}
	if counter.Count(metricLoginSuccess) != 1 || counter.Count(metricLoginFailure) != 1 {
		t.Fatalf("unexpected login metrics: %#v", counter.Snapshot())
	}

	saved := client.ExportCookies()
	if len(saved) != 1 || saved[0].Name != "refresh_token" || saved[0].Path != "/auth" {
		t.Fatalf("unexpected exported cookies: %#v", saved)
	}

	restored, restoredStore, _ := newTestClient(t, server.URL, zaptest.NewLogger(t))
	restoredStore.Restore(store.Snapshot())
	restored.ImportCookies(saved)
	token, err := restored.Refresh(context.Background())
	if err != nil {
		t.Fatalf("unexpected refresh error: %v", err)
	}
	if token != "token-2" || restoredStore.AccessToken() != "token-2" {
		t.Fatalf("unexpected refreshed token %q", token)
	}

	restored.Logout()
	if cookies := restored.ExportCookies(); len(cookies) != 0 {
		t.Fatalf("expected logout to drop cookies, got %#v", cookies)
	}
	mutex.Lock()
	defer mutex.Unlock()
	if len(refreshCookies) != 1 || refreshCookies[0] != "refresh-1" {
		t.Fatalf("unexpected refresh cookies %v", refreshCookies)
	}
}

func TestErrorMessage(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil", err: nil, expected: unexpectedErrorMessage},
		{name: "string message", err: newHTTPError(400, []byte(`{"statusCode":400,"message":"Email already exists"}`)), expected: "Email already exists"},
		{name: "list message", err: newHTTPError(400, []byte(`{"statusCode":400,"message":["name is required","email is invalid"]}`)), expected: "name is required; email is invalid"},
		{name: "no envelope", err: newHTTPError(502, []byte("Bad Gateway")), expected: "apiclient.http_status.502"},
		{name: "plain error", err: errors.New("boom"), expected: "boom"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := ErrorMessage(testCase.err); got != testCase.expected {
				t.Fatalf("expected %q, got %q", testCase.expected, got)
			}
		})
	}
}
