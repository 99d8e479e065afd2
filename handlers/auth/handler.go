package auth

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/loginguard/internal/credentials"
	"github.com/tech-arch1tect/loginguard/internal/fingerprint"
	"github.com/tech-arch1tect/loginguard/middleware/authtoken"
	"github.com/tech-arch1tect/loginguard/middleware/ratelimit"
	"github.com/tech-arch1tect/loginguard/services/anomaly"
	"github.com/tech-arch1tect/loginguard/services/jwt"
	"github.com/tech-arch1tect/loginguard/services/logging"
	"github.com/tech-arch1tect/loginguard/services/metrics"
	"github.com/tech-arch1tect/loginguard/services/refreshtoken"
	"github.com/tech-arch1tect/loginguard/session"
	"go.uber.org/zap"
)

type Handler struct {
	users    *credentials.Store
	sessions *session.Registry
	tokens   *refreshtoken.Service
	jwt      *jwt.Service
	engine   *anomaly.Engine
	limiter  *ratelimit.Limiter
	metrics  *metrics.Service
	logger   *logging.Service
}

func NewHandler(users *credentials.Store, sessions *session.Registry, tokens *refreshtoken.Service, jwtService *jwt.Service, engine *anomaly.Engine, limiter *ratelimit.Limiter, metricsService *metrics.Service, logger *logging.Service) *Handler {
	return &Handler{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		jwt:      jwtService,
		engine:   engine,
		limiter:  limiter,
		metrics:  metricsService,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	authGroup := e.Group("/auth")
	authGroup.POST("/login", h.Login, ratelimit.Middleware(h.limiter, ratelimit.RouteAuth))
	authGroup.POST("/refresh", h.Refresh, ratelimit.Middleware(h.limiter, ratelimit.RouteAuth))

	protected := authGroup.Group("", authtoken.RequireAccessToken(h.jwt))
	protected.POST("/logout", h.Logout)
	protected.GET("/sessions", h.ListSessions, ratelimit.Middleware(h.limiter, ratelimit.RouteGeneral))
	protected.DELETE("/sessions", h.RevokeAllSessions, ratelimit.Middleware(h.limiter, ratelimit.RouteMutate))

	security := e.Group("/security", authtoken.RequireAccessToken(h.jwt))
	security.GET("/anomalies", h.ListAnomalies, ratelimit.Middleware(h.limiter, ratelimit.RouteGeneral))
	security.POST("/anomalies/:id/ack", h.AcknowledgeAnomaly, ratelimit.Middleware(h.limiter, ratelimit.RouteMutate))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int      `json:"expires_in"`
	RefreshToken string   `json:"refresh_token"`
	SessionToken string   `json:"session_token"`
	Anomalies    []string `json:"anomalies,omitempty"`
}

// Login verifies credentials, runs the post-authentication anomaly checks,
// registers a session and issues the token pair. Anomaly checks run before
// the session insert so the registry still reflects only prior logins.
func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	address := c.RealIP()
	userAgent := c.Request().UserAgent()

	user, err := h.users.Verify(req.Email, req.Password)
	if err != nil {
		h.engine.RecordFailedLogin(req.Email, address)
		h.metrics.RecordLogin("failure")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	kinds := h.engine.RunLoginChecks(c.Request().Context(), user.ID, user.Email,
		fingerprint.Derive(userAgent), address, userAgent)

	created, err := h.sessions.Create(user.ID, address, userAgent)
	if err != nil {
		h.logger.Error("login failed at session create", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}

	issued, err := h.tokens.Issue(user.ID, created.Session.ID, address, userAgent)
	if err != nil {
		h.logger.Error("login failed at token issue", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}

	accessToken, err := h.jwt.GenerateAccessToken(user.ID, created.Session.ID)
	if err != nil {
		h.logger.Error("login failed at access token mint", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}

	h.limiter.Forget(address, ratelimit.RouteAuth)
	h.metrics.RecordLogin("success")

	resp := loginResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    h.jwt.AccessExpirySeconds(),
		RefreshToken: issued.Token,
		SessionToken: created.Session.Token,
	}
	for _, kind := range kinds {
		resp.Anomalies = append(resp.Anomalies, string(kind))
	}

	return c.JSON(http.StatusOK, resp)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// Refresh rotates a refresh token. Every rejection maps to the same 401 so
// the response does not reveal whether a token exists, is expired, or was
// purged after a reuse event.
func (h *Handler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "refresh_token is required")
	}

	rotated, err := h.tokens.Rotate(req.RefreshToken, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		h.metrics.RecordRotation(rotationOutcome(err))
		switch {
		case errors.Is(err, refreshtoken.ErrRefreshTokenNotFound),
			errors.Is(err, refreshtoken.ErrRefreshTokenExpired),
			errors.Is(err, refreshtoken.ErrRefreshTokenRevoked),
			errors.Is(err, refreshtoken.ErrRefreshTokenReused):
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
		default:
			h.logger.Error("token rotation failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "token refresh failed")
		}
	}

	h.metrics.RecordRotation("success")

	// Rotation counts as session activity.
	if rotated.SessionID != 0 {
		if err := h.sessions.Touch(rotated.SessionID); err != nil {
			h.logger.Warn("failed to touch session on rotation", zap.Error(err))
		}
	}

	return c.JSON(http.StatusOK, refreshResponse{
		AccessToken:  rotated.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    h.jwt.AccessExpirySeconds(),
		RefreshToken: rotated.RefreshToken,
	})
}

func rotationOutcome(err error) string {
	switch {
	case errors.Is(err, refreshtoken.ErrRefreshTokenReused):
		return "reuse_detected"
	case errors.Is(err, refreshtoken.ErrRefreshTokenExpired):
		return "expired"
	case errors.Is(err, refreshtoken.ErrRefreshTokenRevoked):
		return "revoked"
	case errors.Is(err, refreshtoken.ErrRefreshTokenNotFound):
		return "not_found"
	default:
		return "error"
	}
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Logout revokes the caller's session and, when supplied, the outstanding
// refresh token.
func (h *Handler) Logout(c echo.Context) error {
	claims := authtoken.GetClaims(c)
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
	}

	var req logoutRequest
	if err := c.Bind(&req); err == nil && req.RefreshToken != "" {
		if err := h.tokens.Revoke(req.RefreshToken, refreshtoken.ReasonLogout); err != nil {
			h.logger.Warn("refresh token revoke on logout failed", zap.Error(err))
		}
	}

	if err := h.sessions.RevokeByID(claims.UserID, claims.SessionID, session.ReasonLogout); err != nil {
		h.logger.Error("session revoke on logout failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "logout failed")
	}

	return c.NoContent(http.StatusNoContent)
}

type sessionView struct {
	ID           uint   `json:"id"`
	Device       string `json:"device"`
	IPAddress    string `json:"ip_address"`
	CreatedAt    string `json:"created_at"`
	LastActivity string `json:"last_activity"`
	Current      bool   `json:"current"`
}

func (h *Handler) ListSessions(c echo.Context) error {
	claims := authtoken.GetClaims(c)
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
	}

	active, err := h.sessions.ListActive(claims.UserID)
	if err != nil {
		h.logger.Error("failed to list sessions", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list sessions")
	}

	views := make([]sessionView, 0, len(active))
	for _, s := range active {
		views = append(views, sessionView{
			ID:           s.ID,
			Device:       fingerprint.Describe(s.UserAgent),
			IPAddress:    s.IPAddress,
			CreatedAt:    s.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			LastActivity: s.LastActivity.UTC().Format("2006-01-02T15:04:05Z"),
			Current:      s.ID == claims.SessionID,
		})
	}

	return c.JSON(http.StatusOK, map[string]any{"sessions": views})
}

// RevokeAllSessions is the self-service panic button: it terminates every
// session and refresh token the user holds, including the current ones.
func (h *Handler) RevokeAllSessions(c echo.Context) error {
	claims := authtoken.GetClaims(c)
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
	}

	revokedSessions, err := h.sessions.RevokeAll(claims.UserID, session.ReasonUserRequest)
	if err != nil {
		h.logger.Error("failed to revoke sessions", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to revoke sessions")
	}

	revokedTokens, err := h.tokens.RevokeAllUserTokens(claims.UserID, refreshtoken.ReasonUserRequest)
	if err != nil {
		h.logger.Error("failed to revoke refresh tokens", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to revoke refresh tokens")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"revoked_sessions": revokedSessions,
		"revoked_tokens":   revokedTokens,
	})
}

func (h *Handler) ListAnomalies(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))

	records, total, err := h.engine.ListUnacknowledged(page, perPage)
	if err != nil {
		h.logger.Error("failed to list anomalies", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list anomalies")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"anomalies": records,
		"total":     total,
	})
}

func (h *Handler) AcknowledgeAnomaly(c echo.Context) error {
	claims := authtoken.GetClaims(c)
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
	}

	recordID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid anomaly id")
	}

	actor := strconv.FormatUint(uint64(claims.UserID), 10)
	if user, err := h.users.GetByID(claims.UserID); err == nil {
		actor = user.Email
	}

	if err := h.engine.Acknowledge(uint(recordID), actor); err != nil {
		if errors.Is(err, anomaly.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "anomaly not found")
		}
		h.logger.Error("failed to acknowledge anomaly", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to acknowledge anomaly")
	}

	return c.NoContent(http.StatusNoContent)
}
