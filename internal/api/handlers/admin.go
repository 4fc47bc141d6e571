package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/poolsim/internal/admin"
	"github.com/playmatatu/poolsim/internal/session"
)

// GetAdminRuns returns a page of recorded simulation runs.
func GetAdminRuns(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := queryInt(c, "limit", 25, 200)
		offset := queryInt(c, "offset", 0, 0)

		runs, err := admin.ListRuns(db, limit, offset)
		if err != nil {
			log.Printf("[ADMIN] Failed to list runs: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list runs"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"runs":   runs,
			"limit":  limit,
			"offset": offset,
		})
	}
}

// GetAdminRunSteps returns the logged steps of one run.
func GetAdminRunSteps(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		runID, err := strconv.Atoi(c.Param("id"))
		if err != nil || runID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}
		limit := queryInt(c, "limit", 500, 5000)

		steps, err := admin.ListRunSteps(db, runID, limit)
		if err != nil {
			log.Printf("[ADMIN] Failed to list steps for run %d: %v", runID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list steps"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"run_id": runID, "steps": steps})
	}
}

// GetAdminSessions lists the sessions live in this process.
func GetAdminSessions(m *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		live := m.List()
		out := make([]session.Info, 0, len(live))
		for _, s := range live {
			out = append(out, s.Info())
		}
		c.JSON(http.StatusOK, gin.H{"sessions": out, "count": len(out)})
	}
}
