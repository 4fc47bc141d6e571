package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/playmatatu/poolsim/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authConfig() *config.Config {
	return &config.Config{JWTSecret: "test-secret", SessionTokenTTLMin: 5}
}

func TestSessionTokenRoundTrip(t *testing.T) {
	cfg := authConfig()
	signed, exp, err := IssueSessionToken(cfg, "abc123")
	require.NoError(t, err)
	assert.False(t, exp.IsZero())

	session, err := ParseSessionToken(cfg, signed)
	require.NoError(t, err)
	assert.Equal(t, "abc123", session)

	_, err = ParseSessionToken(&config.Config{JWTSecret: "other"}, signed)
	assert.Error(t, err)
}

func TestParseSessionTokenRejectsMissingClaim(t *testing.T) {
	cfg := authConfig()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"player_id": 7})
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)

	_, err = ParseSessionToken(cfg, signed)
	assert.Error(t, err)
}

func TestSessionAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := authConfig()

	router := gin.New()
	router.POST("/sessions/:token/tick", SessionAuth(cfg), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextSessionToken))
	})

	good, _, err := IssueSessionToken(cfg, "s1")
	require.NoError(t, err)
	other, _, err := IssueSessionToken(cfg, "s2")
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"other session", "Bearer " + other, http.StatusForbidden},
		{"granted", "Bearer " + good, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/sessions/s1/tick", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestAdminAuthWithoutDatabase(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/admin/runs", AdminAuth(nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/runs", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
