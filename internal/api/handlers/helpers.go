package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/playmatatu/poolsim/internal/game"
	"github.com/playmatatu/poolsim/internal/session"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrInvalidTimestep),
		errors.Is(err, game.ErrInvalidTable),
		errors.Is(err, game.ErrInvalidBall),
		errors.Is(err, game.ErrInvalidRestitution),
		errors.Is(err, session.ErrTooManyBalls),
		errors.Is(err, session.ErrInvalidSteps):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrIndexOutOfRange),
		errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrAlreadyRunning),
		errors.Is(err, session.ErrNotRunning):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Internal errors are logged
// and not echoed to the client.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[ERROR] %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// queryInt reads a bounded integer query parameter.
func queryInt(c *gin.Context, key string, def, max int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(def)))
	if err != nil || v < 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}
