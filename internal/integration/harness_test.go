package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aliuyar1234/cartshare/internal/app"
	"github.com/aliuyar1234/cartshare/internal/config"
	"github.com/aliuyar1234/cartshare/internal/identity"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/aliuyar1234/cartshare/internal/store/memstore"
	"github.com/aliuyar1234/cartshare/internal/store/pgstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type envelopeResponse struct {
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

type harness struct {
	srv      *httptest.Server
	services *app.Services
}

func testConfig(storeKind string) *config.Config {
	return &config.Config{
		Env:            "dev",
		HTTPAddr:       ":0",
		BaseURL:        "http://localhost",
		Store:          storeKind,
		DBDSN:          "unused",
		JWTSecret:      testSecret,
		LogLevel:       "error",
		RateLimitRPM:   1000,
		InviteTTLHours: 168,
		PushTimeoutMS:  2000,
		ExpirySchedule: "*/15 * * * *",
	}
}

func newHarness(t *testing.T, cfg *config.Config, st store.Store) *harness {
	t.Helper()

	services := app.NewServices(cfg, st)
	srv := httptest.NewServer(app.NewRouter(cfg, st, services))
	t.Cleanup(func() {
		srv.Close()
		services.Notifier.Wait()
	})
	return &harness{srv: srv, services: services}
}

func newMemoryHarness(t *testing.T) *harness {
	t.Helper()
	st := memstore.New()
	t.Cleanup(st.Close)
	return newHarness(t, testConfig(config.StoreMemory), st)
}

func newPostgresHarness(t *testing.T) *harness {
	t.Helper()
	pool, cleanup := newTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st, err := pgstore.New(ctx, pool)
	require.NoError(t, err)

	// registered first so it runs last, after the server is gone
	t.Cleanup(func() {
		st.Close()
		cleanup()
	})
	return newHarness(t, testConfig(config.StorePostgres), st)
}

// apiClient acts as one signed-in user.
type apiClient struct {
	t       *testing.T
	baseURL string
	token   string
	user    identity.User
}

func (h *harness) signIn(t *testing.T, name, email string) *apiClient {
	t.Helper()

	user := identity.User{ID: uuid.New(), Email: email, DisplayName: name}
	token, err := identity.IssueToken(user, testSecret, time.Hour)
	require.NoError(t, err)
	return &apiClient{t: t, baseURL: h.srv.URL, token: token, user: user}
}

// do sends payload as JSON and decodes the success envelope's data into out.
func (c *apiClient) do(method, path string, payload any, wantStatus int, out any) {
	c.t.Helper()

	body := c.raw(method, path, payload, wantStatus)

	var env envelopeResponse
	require.NoError(c.t, json.Unmarshal(body, &env))
	require.NotEmpty(c.t, env.RequestID)
	if out != nil {
		require.NoError(c.t, json.Unmarshal(env.Data, out))
	}
}

func (c *apiClient) expectError(method, path string, payload any, wantStatus int) errorEnvelope {
	c.t.Helper()

	body := c.raw(method, path, payload, wantStatus)

	var env errorEnvelope
	require.NoError(c.t, json.Unmarshal(body, &env))
	require.NotEmpty(c.t, env.Error.RequestID)
	return env
}

func (c *apiClient) raw(method, path string, payload any, wantStatus int) []byte {
	c.t.Helper()

	var bodyReader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(c.t, err)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	require.NoError(c.t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	require.Equal(c.t, wantStatus, resp.StatusCode, "%s %s body: %s", method, path, string(body))
	return body
}
