package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/playmatatu/poolsim/internal/config"
	"github.com/playmatatu/poolsim/internal/middleware"
	"github.com/playmatatu/poolsim/internal/session"
)

// CreateSession builds a world from the request body and returns its token
// plus a control token for the mutating endpoints. An empty body yields the
// single-ball world at rest.
func CreateSession(m *session.Manager, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req session.CreateRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
				return
			}
		}

		s, err := m.CreateSession(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}

		access, exp, err := middleware.IssueSessionToken(cfg, s.Token)
		if err != nil {
			respondError(c, err)
			return
		}

		c.Header("X-Session-ID", s.ID)
		c.JSON(http.StatusCreated, gin.H{
			"session":      s.Info(),
			"access_token": access,
			"expires_at":   exp,
		})
	}
}

// GetSession returns the session's current state.
func GetSession(m *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := m.Get(c.Request.Context(), c.Param("token"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, s.Info())
	}
}

type ballView struct {
	Index  int     `json:"index"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// ListBalls returns ball_count and every ball's position and radius.
func ListBalls(m *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := m.Get(c.Request.Context(), c.Param("token"))
		if err != nil {
			respondError(c, err)
			return
		}

		snap := s.Snapshot()
		balls := make([]ballView, len(snap.Balls))
		for i, b := range snap.Balls {
			balls[i] = ballView{Index: b.Index, X: b.X, Y: b.Y, Radius: b.Radius}
		}
		c.JSON(http.StatusOK, gin.H{
			"count": len(balls),
			"tick":  snap.Tick,
			"balls": balls,
		})
	}
}

// GetBall returns one ball. Any index outside [0, count) is 404.
func GetBall(m *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		index, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
			return
		}

		s, err := m.Get(c.Request.Context(), c.Param("token"))
		if err != nil {
			respondError(c, err)
			return
		}

		b, err := s.Ball(index)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"index":  index,
			"x":      b.X(),
			"y":      b.Y(),
			"vx":     b.Velocity.X,
			"vy":     b.Velocity.Y,
			"radius": b.Radius,
		})
	}
}

// TickSession advances the session by dt seconds, steps times.
func TickSession(m *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Dt    float64 `json:"dt"`
			Steps int     `json:"steps"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request. dt required."})
			return
		}

		snap, events, err := m.Tick(c.Request.Context(), c.Param("token"), req.Dt, req.Steps)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"state":  snap,
			"events": events,
		})
	}
}

// StartSession starts the session's host loop.
func StartSession(m *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Param("token")
		if err := m.StartLoop(c.Request.Context(), token); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": session.StatusRunning})
	}
}

// StopSession stops the session's host loop.
func StopSession(m *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Param("token")
		if err := m.StopLoop(c.Request.Context(), token); err != nil {
			respondError(c, err)
			return
		}
		s, err := m.Get(c.Request.Context(), token)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, s.Info())
	}
}

// DeleteSession ends a session.
func DeleteSession(m *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := m.Delete(c.Request.Context(), c.Param("token")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
