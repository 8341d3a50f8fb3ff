package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/warbler/internal/auth"
	"github.com/sakif/warbler/internal/handler"
	"github.com/sakif/warbler/internal/model"
	"github.com/sakif/warbler/internal/repository/sqlstore"
	"github.com/sakif/warbler/internal/service"
	"github.com/sakif/warbler/internal/session"
	"github.com/sakif/warbler/web"
)

const testPassword = "password"

// testApp is the full router over an in-memory store, served by httptest.
type testApp struct {
	srv    *httptest.Server
	svc    handler.Services
	tokens *auth.TokenService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, err := sqlstore.New("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	require.NoError(t, err)
	passwords := auth.NewPasswordService(bcrypt.MinCost)

	svc := handler.Services{
		Auth:     service.NewAuthService(db, passwords, tokens, logger),
		Users:    service.NewUserService(db, passwords, logger),
		Follows:  service.NewFollowService(db, logger),
		Messages: service.NewMessageService(db, logger),
	}
	sessions := session.NewManager(session.Options{Secret: "session-secret-for-tests"}, logger)

	views, err := handler.NewViews(web.Templates(), sessions, svc, logger)
	require.NoError(t, err)
	api := handler.NewAPI(svc, tokens, logger)

	r := chi.NewRouter()
	r.Route("/api", api.Routes)
	r.Group(views.Routes)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testApp{srv: srv, svc: svc, tokens: tokens}
}

// signup creates a user directly through the service.
func (a *testApp) signup(t *testing.T, username string) *model.User {
	t.Helper()
	u, err := a.svc.Auth.Signup(context.Background(), service.SignupInput{
		Email:    username + "@test.com",
		Username: username,
		Password: testPassword,
	})
	require.NoError(t, err)
	return u
}

// browser is an HTTP client with a cookie jar that follows redirects.
type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func (a *testApp) browser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, base: a.srv.URL, client: &http.Client{Jar: jar}}
}

// get returns the final status and body after redirects, plus the final path.
func (b *browser) get(path string) (int, string, string) {
	b.t.Helper()
	resp, err := b.client.Get(b.base + path)
	require.NoError(b.t, err)
	return readPage(b.t, resp)
}

func (b *browser) post(path string, form url.Values) (int, string, string) {
	b.t.Helper()
	resp, err := b.client.PostForm(b.base+path, form)
	require.NoError(b.t, err)
	return readPage(b.t, resp)
}

// login signs the browser in through the login form.
func (b *browser) login(username string) {
	b.t.Helper()
	status, body, _ := b.post("/login", url.Values{"username": {username}, "password": {testPassword}})
	require.Equal(b.t, http.StatusOK, status)
	require.Contains(b.t, body, "Hello, "+username+"!")
}

func readPage(t *testing.T, resp *http.Response) (int, string, string) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body), resp.Request.URL.Path
}

// apiCall sends a JSON request with an optional bearer token and decodes
// the response into out when out is non-nil.
func (a *testApp) apiCall(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var r io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, a.srv.URL+"/api"+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out), "body: %s", strings.TrimSpace(string(raw)))
	}
	return resp.StatusCode
}
