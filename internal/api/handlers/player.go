package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/mergeball/internal/accounts"
	"github.com/playmatatu/mergeball/internal/auth"
	"github.com/playmatatu/mergeball/internal/models"
)

// GetMe returns the authenticated player's profile and stats
func GetMe(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		player, err := accounts.GetPlayerByID(db, auth.PlayerID(c))
		if errors.Is(err, accounts.ErrPlayerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "player not found"})
			return
		}
		if err != nil {
			log.Printf("[ERROR] GetMe: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, player)
	}
}

// GetMySessions returns the authenticated player's recent sessions
func GetMySessions(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history unavailable"})
			return
		}
		limit := parseLimit(c.Query("limit"), 20, 100)
		sessions := []models.GameSession{}
		err := db.Select(&sessions, `SELECT id, session_token, player_id, status, final_score, merges, end_reason, duration_ms, created_at, completed_at
			FROM game_sessions WHERE player_id=$1 ORDER BY created_at DESC LIMIT $2`, auth.PlayerID(c), limit)
		if err != nil {
			log.Printf("[ERROR] GetMySessions: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
	}
}
