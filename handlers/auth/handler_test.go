package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/loginguard/config"
	"github.com/tech-arch1tect/loginguard/internal/credentials"
	"github.com/tech-arch1tect/loginguard/middleware/ratelimit"
	"github.com/tech-arch1tect/loginguard/services/anomaly"
	"github.com/tech-arch1tect/loginguard/services/geoip"
	"github.com/tech-arch1tect/loginguard/services/jwt"
	"github.com/tech-arch1tect/loginguard/services/refreshtoken"
	"github.com/tech-arch1tect/loginguard/session"
	"github.com/tech-arch1tect/loginguard/testutils"
)

type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, _ string) *geoip.Location {
	return nil
}

func getTestConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			SecretKey:    "test-secret-key-at-least-32-chars!",
			Issuer:       "loginguard-test",
			AccessExpiry: 15 * time.Minute,
		},
		RateLimit: config.RateLimitConfig{
			AuthRate:      10,
			AuthPeriod:    15 * time.Minute,
			MutateRate:    10,
			MutatePeriod:  time.Minute,
			GeneralRate:   100,
			GeneralPeriod: time.Minute,
		},
		Session: config.SessionConfig{
			MaxConcurrent: 5,
		},
		RefreshToken: config.RefreshTokenConfig{
			TokenLength:       32,
			Expiry:            720 * time.Hour,
			ExpiredRetention:  168 * time.Hour,
			ConsumedRetention: 720 * time.Hour,
		},
		Anomaly: config.AnomalyConfig{
			FailedLoginWindow:    15 * time.Minute,
			FailedLoginMedium:    5,
			FailedLoginCritical:  10,
			MinTravelDistanceKm:  100,
			MinTravelElapsed:     5 * time.Minute,
			MaxPlausibleSpeedKmh: 800,
			SameCountryCutoffKm:  2000,
		},
	}
}

type testEnv struct {
	echo    *echo.Echo
	users   *credentials.Store
	engine  *anomaly.Engine
	tokens  *refreshtoken.Service
	handler *Handler
}

func setupEnv(t *testing.T) *testEnv {
	db := testutils.SetupTestDB(t,
		&credentials.AdminUser{},
		&session.Session{},
		&refreshtoken.RefreshToken{},
		&anomaly.Record{},
	)
	cfg := getTestConfig()

	users := credentials.NewStore(db, nil)
	registry := session.NewRegistry(db, cfg, nil)
	jwtService := jwt.NewService(cfg, nil)
	counter := anomaly.NewFailedLoginCounter(cfg.Anomaly.FailedLoginWindow)
	engine := anomaly.NewEngine(db, counter, registry, stubResolver{}, nil, cfg, nil)
	tokens := refreshtoken.NewService(db, cfg, jwtService, engine, nil)
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), &cfg.RateLimit, nil)

	handler := NewHandler(users, registry, tokens, jwtService, engine, limiter, nil, nil)

	e := echo.New()
	handler.RegisterRoutes(e)

	return &testEnv{
		echo:    e,
		users:   users,
		engine:  engine,
		tokens:  tokens,
		handler: handler,
	}
}

func (env *testEnv) request(t *testing.T, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) login(t *testing.T, email, password string) (loginResponse, int) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	rec := env.request(t, http.MethodPost, "/auth/login", body, "")

	var resp loginResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return resp, rec.Code
}

func TestLogin_Success(t *testing.T) {
	env := setupEnv(t)
	_, err := env.users.Create("ops@example.com", "correct horse battery")
	require.NoError(t, err)

	resp, code := env.login(t, "ops@example.com", "correct horse battery")
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.NotEmpty(t, resp.SessionToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, 900, resp.ExpiresIn)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := setupEnv(t)
	_, err := env.users.Create("ops@example.com", "correct horse battery")
	require.NoError(t, err)

	_, code := env.login(t, "ops@example.com", "wrong")
	assert.Equal(t, http.StatusUnauthorized, code)

	_, code = env.login(t, "nobody@example.com", "wrong")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLogin_MissingFields(t *testing.T) {
	env := setupEnv(t)

	rec := env.request(t, http.MethodPost, "/auth/login", `{"email":"ops@example.com"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_FirstLoginReportsNewDeviceAndLocation(t *testing.T) {
	env := setupEnv(t)
	_, err := env.users.Create("ops@example.com", "correct horse battery")
	require.NoError(t, err)

	resp, code := env.login(t, "ops@example.com", "correct horse battery")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, resp.Anomalies, "new_device")
	assert.Contains(t, resp.Anomalies, "new_location")

	// Same device and address again: nothing new.
	resp, code = env.login(t, "ops@example.com", "correct horse battery")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, resp.Anomalies)
}

func TestLogin_FailedAttemptsReachMediumThreshold(t *testing.T) {
	env := setupEnv(t)
	_, err := env.users.Create("ops@example.com", "correct horse battery")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, code := env.login(t, "ops@example.com", "wrong")
		require.Equal(t, http.StatusUnauthorized, code)
	}

	records, total, err := env.engine.ListUnacknowledged(1, 20)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, anomaly.KindFailedLogins, records[0].Kind)
	assert.Equal(t, anomaly.SeverityMedium, records[0].Severity)
}

func TestLogin_RateLimited(t *testing.T) {
	env := setupEnv(t)

	var last int
	for i := 0; i < 11; i++ {
		_, last = env.login(t, "ops@example.com", "wrong")
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestLogin_SuccessResetsAuthQuota(t *testing.T) {
	env := setupEnv(t)
	_, err := env.users.Create("ops@example.com", "correct horse battery")
	require.NoError(t, err)

	for i := 0; i < 9; i++ {
		_, code := env.login(t, "ops@example.com", "wrong")
		require.Equal(t, http.StatusUnauthorized, code)
	}

	_, code := env.login(t, "ops@example.com", "correct horse battery")
	require.Equal(t, http.StatusOK, code)

	// The successful login cleared the client's auth budget, so the next
	// attempts are not within one request of the ceiling.
	for i := 0; i < 9; i++ {
		_, code = env.login(t, "ops@example.com", "wrong")
		require.Equal(t, http.StatusUnauthorized, code)
	}
}

func TestRefresh_RotatesToken(t *testing.T) {
	env := setupEnv(t)
	_, err := env.users.Create("ops@example.com", "correct horse battery")
	require.NoError(t, err)

	login, code := env.login(t, "ops@example.com", "correct horse battery")
	require.Equal(t, http.StatusOK, code)

	body := fmt.Sprintf(`{"refresh_token":%q}`, login.RefreshToken)
	rec := env.request(t, http.MethodPost, "/auth/refresh", body, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp refreshResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEqual(t, login.RefreshToken, resp.RefreshToken)

	// The spent token is now rejected with the same 401 as any other
	// invalid token.
	rec = env.request(t, http.MethodPost, "/auth/refresh", body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefresh_UnknownToken(t *testing.T) {
	env := setupEnv(t)

	rec := env.request(t, http.MethodPost, "/auth/refresh", `{"refresh_token":"bogus"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_RevokesSession(t *testing.T) {
	env := setupEnv(t)
	_, err := env.users.Create("ops@example.com", "correct horse battery")
	require.NoError(t, err)

	login, code := env.login(t, "ops@example.com", "correct horse battery")
	require.Equal(t, http.StatusOK, code)

	body := fmt.Sprintf(`{"refresh_token":%q}`, login.RefreshToken)
	rec := env.request(t, http.MethodPost, "/auth/logout", body, login.AccessToken)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Session list is empty and the refresh token no longer rotates.
	rec = env.request(t, http.MethodGet, "/auth/sessions", "", login.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Sessions []sessionView `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Empty(t, listed.Sessions)

	rec = env.request(t, http.MethodPost, "/auth/refresh", body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_RequiresToken(t *testing.T) {
	env := setupEnv(t)

	rec := env.request(t, http.MethodPost, "/auth/logout", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.request(t, http.MethodPost, "/auth/logout", "", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListSessions_MarksCurrent(t *testing.T) {
	env := setupEnv(t)
	_, err := env.users.Create("ops@example.com", "correct horse battery")
	require.NoError(t, err)

	_, code := env.login(t, "ops@example.com", "correct horse battery")
	require.Equal(t, http.StatusOK, code)
	second, code := env.login(t, "ops@example.com", "correct horse battery")
	require.Equal(t, http.StatusOK, code)

	rec := env.request(t, http.MethodGet, "/auth/sessions", "", second.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Sessions []sessionView `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Sessions, 2)

	var current int
	for _, s := range listed.Sessions {
		if s.Current {
			current++
		}
	}
	assert.Equal(t, 1, current)
}

func TestRevokeAllSessions(t *testing.T) {
	env := setupEnv(t)
	_, err := env.users.Create("ops@example.com", "correct horse battery")
	require.NoError(t, err)

	first, code := env.login(t, "ops@example.com", "correct horse battery")
	require.Equal(t, http.StatusOK, code)
	second, code := env.login(t, "ops@example.com", "correct horse battery")
	require.Equal(t, http.StatusOK, code)

	rec := env.request(t, http.MethodDelete, "/auth/sessions", "", second.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		RevokedSessions int64 `json:"revoked_sessions"`
		RevokedTokens   int64 `json:"revoked_tokens"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.RevokedSessions)
	assert.Equal(t, int64(2), resp.RevokedTokens)

	// Both refresh tokens are dead.
	for _, token := range []string{first.RefreshToken, second.RefreshToken} {
		body := fmt.Sprintf(`{"refresh_token":%q}`, token)
		rec = env.request(t, http.MethodPost, "/auth/refresh", body, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestAnomalies_ListAndAcknowledge(t *testing.T) {
	env := setupEnv(t)
	_, err := env.users.Create("ops@example.com", "correct horse battery")
	require.NoError(t, err)

	login, code := env.login(t, "ops@example.com", "correct horse battery")
	require.Equal(t, http.StatusOK, code)

	rec := env.request(t, http.MethodGet, "/security/anomalies", "", login.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Anomalies []anomaly.Record `json:"anomalies"`
		Total     int64            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Equal(t, int64(2), listed.Total, "first login records new device and new location")

	ackPath := fmt.Sprintf("/security/anomalies/%d/ack", listed.Anomalies[0].ID)
	rec = env.request(t, http.MethodPost, ackPath, "", login.AccessToken)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.request(t, http.MethodGet, "/security/anomalies", "", login.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Equal(t, int64(1), listed.Total)
	require.Len(t, listed.Anomalies, 1)
}

func TestAcknowledgeAnomaly_NotFound(t *testing.T) {
	env := setupEnv(t)
	_, err := env.users.Create("ops@example.com", "correct horse battery")
	require.NoError(t, err)

	login, code := env.login(t, "ops@example.com", "correct horse battery")
	require.Equal(t, http.StatusOK, code)

	rec := env.request(t, http.MethodPost, "/security/anomalies/9999/ack", "", login.AccessToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.request(t, http.MethodPost, "/security/anomalies/not-a-number/ack", "", login.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
