package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humifortis/keycloak-connector/internal/config"
	"github.com/humifortis/keycloak-connector/internal/saas"
)

func testConfig(apiURL string, fallbackAllow bool) *config.Config {
	return &config.Config{
		Port:          "8180",
		Env:           "test",
		LogLevel:      "error",
		APIURL:        apiURL,
		APIKey:        "hk_test",
		Timeout:       2 * time.Second,
		FallbackAllow: fallbackAllow,
	}
}

// newTestServer builds a connector server backed by the given fake SaaS
// handler, with delivered telemetry reported on the returned channel.
func newTestServer(t *testing.T, fallbackAllow bool, saasHandler http.HandlerFunc) (*Server, chan error) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := httptest.NewServer(saasHandler)
	t.Cleanup(backend.Close)

	cfg := testConfig(backend.URL, fallbackAllow)

	delivered := make(chan error, 16)
	client := saas.NewClient(saas.Config{
		APIURL:  cfg.APIURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
	}, saas.WithSendObserver(func(eventType string, err error) {
		delivered <- err
	}))

	srv, err := New(cfg, WithClient(client))
	require.NoError(t, err)
	return srv, delivered
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func decisionBackend(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/risk/"):
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"entity_id": strings.TrimPrefix(r.URL.Path, "/risk/"),
				"action":    action,
				"reason":    "test reason",
				"metadata":  map[string]any{"risk_score": 77},
			})
		case r.URL.Path == "/events":
			w.WriteHeader(http.StatusAccepted)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

const authBody = `{"realm":"acme","user":{"id":"u-1","username":"alice","email":"alice@example.com"}}`

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, true, decisionBackend("ALLOW"))

	w := doJSON(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Checks["config"])
	assert.Equal(t, "healthy", health.Checks["saas"])

	w = doJSON(t, srv, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, w.Code)

	// Readiness flips only once Run has started serving.
	w = doJSON(t, srv, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestInfoEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, true, decisionBackend("ALLOW"))

	w := doJSON(t, srv, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "keycloak-connector")
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, true, decisionBackend("ALLOW"))

	// One request through the middleware so counters exist.
	doJSON(t, srv, http.MethodGet, "/health", "")

	w := doJSON(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "humifortis_http_requests_total")
}

func TestAuthHook_Allow(t *testing.T) {
	srv, _ := newTestServer(t, true, decisionBackend("ALLOW"))

	w := doJSON(t, srv, http.MethodPost, "/v1/hooks/auth", authBody)
	require.Equal(t, http.StatusOK, w.Code)

	var result struct {
		Outcome string          `json:"outcome"`
		Page    json.RawMessage `json:"page"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "success", result.Outcome)
	assert.Empty(t, result.Page)
}

func TestAuthHook_Challenge(t *testing.T) {
	srv, _ := newTestServer(t, true, decisionBackend("CHALLENGE_MFA"))

	w := doJSON(t, srv, http.MethodPost, "/v1/hooks/auth", authBody)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"challenge"`)
}

func TestAuthHook_Block(t *testing.T) {
	srv, delivered := newTestServer(t, true, decisionBackend("BLOCK"))

	w := doJSON(t, srv, http.MethodPost, "/v1/hooks/auth", authBody)
	require.Equal(t, http.StatusOK, w.Code)

	var result struct {
		Outcome string `json:"outcome"`
		Page    *struct {
			Status    int    `json:"status"`
			Message   string `json:"message"`
			Reason    string `json:"reason"`
			RiskScore *int   `json:"risk_score"`
		} `json:"page"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "denied", result.Outcome)
	require.NotNil(t, result.Page)
	assert.Equal(t, http.StatusForbidden, result.Page.Status)
	assert.Equal(t, "test reason", result.Page.Reason)
	require.NotNil(t, result.Page.RiskScore)
	assert.Equal(t, 77, *result.Page.RiskScore)

	// The block emits a telemetry event, detached from the verdict.
	select {
	case err := <-delivered:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for block event delivery")
	}
}

func TestAuthHook_FallbackClosed(t *testing.T) {
	srv, _ := newTestServer(t, false, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	w := doJSON(t, srv, http.MethodPost, "/v1/hooks/auth", authBody)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"denied"`)
	assert.Contains(t, w.Body.String(), `"status":503`)
}

func TestAuthHook_FallbackOpen(t *testing.T) {
	srv, _ := newTestServer(t, true, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	w := doJSON(t, srv, http.MethodPost, "/v1/hooks/auth", authBody)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"success"`)
}

func TestAuthHook_NoUserPassesThrough(t *testing.T) {
	saasCalled := false
	srv, _ := newTestServer(t, false, func(w http.ResponseWriter, r *http.Request) {
		saasCalled = true
		w.WriteHeader(http.StatusInternalServerError)
	})

	w := doJSON(t, srv, http.MethodPost, "/v1/hooks/auth", `{"realm":"acme"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"success"`)
	assert.False(t, saasCalled)
}

func TestAuthHook_InvalidBody(t *testing.T) {
	srv, _ := newTestServer(t, true, decisionBackend("ALLOW"))

	w := doJSON(t, srv, http.MethodPost, "/v1/hooks/auth", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHook_InvalidRealm(t *testing.T) {
	srv, _ := newTestServer(t, true, decisionBackend("ALLOW"))

	w := doJSON(t, srv, http.MethodPost, "/v1/hooks/auth",
		`{"realm":"bad/realm","user":{"id":"u-1","username":"alice"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/v1/hooks/auth", `{"user":{"id":"u-1","username":"alice"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventsHook(t *testing.T) {
	srv, delivered := newTestServer(t, true, decisionBackend("ALLOW"))

	w := doJSON(t, srv, http.MethodPost, "/v1/hooks/events",
		`{"time":1741944413589,"type":"LOGOUT","realmId":"acme","userId":"u-1"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	select {
	case err := <-delivered:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event delivery")
	}
}

func TestEventsHook_UnmonitoredStillAccepted(t *testing.T) {
	srv, delivered := newTestServer(t, true, decisionBackend("ALLOW"))

	w := doJSON(t, srv, http.MethodPost, "/v1/hooks/events",
		`{"time":1,"type":"CODE_TO_TOKEN","realmId":"acme","userId":"u-1"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	// Filtered before translation: nothing reaches the SaaS.
	select {
	case <-delivered:
		t.Fatal("unmonitored event should not be delivered")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestEventsHook_MissingType(t *testing.T) {
	srv, _ := newTestServer(t, true, decisionBackend("ALLOW"))

	w := doJSON(t, srv, http.MethodPost, "/v1/hooks/events", `{"time":1,"realmId":"acme"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminEventsHook(t *testing.T) {
	srv, delivered := newTestServer(t, true, decisionBackend("ALLOW"))

	w := doJSON(t, srv, http.MethodPost, "/v1/hooks/admin-events",
		`{"time":1,"realmId":"acme","operationType":"UPDATE","resourceType":"GROUP","resourcePath":"groups/g-1","includeRepresentation":false}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	select {
	case err := <-delivered:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for admin event delivery")
	}
}

func TestAdminEventsHook_MissingOperation(t *testing.T) {
	srv, _ := newTestServer(t, true, decisionBackend("ALLOW"))

	w := doJSON(t, srv, http.MethodPost, "/v1/hooks/admin-events", `{"time":1,"realmId":"acme"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t, true, decisionBackend("ALLOW"))

	w := doJSON(t, srv, http.MethodGet, "/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSecurityHeadersApplied(t *testing.T) {
	srv, _ := newTestServer(t, true, decisionBackend("ALLOW"))

	w := doJSON(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestProductionRejectsPrivateUpstream(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:9000", true)
	cfg.Env = "production"

	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsafe HUMIFORTIS_API_URL")
}
