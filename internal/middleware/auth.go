package middleware

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/poolsim/internal/admin"
	"github.com/playmatatu/poolsim/internal/config"
)

// Context keys set by the auth middlewares.
const (
	ContextSessionToken = "session_token"
	ContextAdminPhone   = "admin_phone"
)

var ErrTokenSessionMismatch = errors.New("token does not grant this session")

// IssueSessionToken signs a control token for one session.
func IssueSessionToken(cfg *config.Config, sessionToken string) (string, time.Time, error) {
	exp := time.Now().Add(cfg.SessionTokenTTL())
	claims := jwt.MapClaims{
		"session": sessionToken,
		"exp":     exp.Unix(),
		"iat":     time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, exp, nil
}

// ParseSessionToken verifies a control token and returns the session it grants.
func ParseSessionToken(cfg *config.Config, signed string) (string, error) {
	token, err := jwt.Parse(signed, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}
	session, _ := claims["session"].(string)
	if session == "" {
		return "", errors.New("token has no session claim")
	}
	return session, nil
}

// SessionAuth requires a Bearer token granting the :token session.
func SessionAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		session, err := ParseSessionToken(cfg, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		if session != c.Param("token") {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": ErrTokenSessionMismatch.Error()})
			return
		}

		c.Set(ContextSessionToken, session)
		c.Next()
	}
}

// AdminAuth checks X-Admin-Phone and X-Admin-Token against admin_accounts
// and writes an audit row for every attempt.
func AdminAuth(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "admin requires a database"})
			return
		}

		phone := c.GetHeader("X-Admin-Phone")
		token := c.GetHeader("X-Admin-Token")
		if phone == "" || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin credentials required"})
			return
		}

		if _, err := admin.ValidateAdminPhoneAndToken(db, phone, token); err != nil {
			admin.LogAdminAction(db, phone, c.ClientIP(), c.FullPath(), "auth", map[string]interface{}{"error": err.Error()}, false)
			if errors.Is(err, admin.ErrAccountNotFound) || errors.Is(err, admin.ErrInvalidToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin credentials"})
				return
			}
			log.Printf("[ADMIN] Auth error for %s: %v", phone, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.Set(ContextAdminPhone, phone)
		c.Next()

		admin.LogAdminAction(db, phone, c.ClientIP(), c.FullPath(), c.Request.Method, map[string]interface{}{"status": c.Writer.Status()}, c.Writer.Status() < 400)
	}
}
