package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/playmatatu/mergeball/internal/auth"
	"github.com/playmatatu/mergeball/internal/config"
	"github.com/playmatatu/mergeball/internal/game"
	"github.com/playmatatu/mergeball/internal/room"
)

// CreateSession starts a new game for the authenticated player
func CreateSession(mgr *room.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := auth.PlayerID(c)
		name := c.GetString(auth.KeyDisplayName)

		r, err := mgr.CreateSession(c.Request.Context(), playerID, name)
		if err != nil {
			log.Printf("[ERROR] CreateSession - player %d: %v", playerID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start session"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"session_token": r.Token,
			"ws_url":        "/api/v1/sessions/" + r.Token + "/ws",
		})
	}
}

// GetSession returns the current snapshot of a live or recently ended session
func GetSession(mgr *room.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := mgr.Snapshot(c.Request.Context(), c.Param("token"))
		if errors.Is(err, room.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		if errors.Is(err, room.ErrRoomBusy) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session busy"})
			return
		}
		if err != nil {
			log.Printf("[ERROR] GetSession - %s: %v", c.Param("token"), err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

// EndSession quits a session owned by the authenticated player
func EndSession(mgr *room.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Param("token")
		r, err := mgr.Get(token)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		if r.PlayerID != auth.PlayerID(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not your session"})
			return
		}
		if err := mgr.End(c.Request.Context(), token, game.ReasonQuit); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "ending"})
	}
}

// GetLeaderboard returns the best scores
func GetLeaderboard(mgr *room.Manager, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		size := cfg.LeaderboardSize
		if size <= 0 {
			size = 100
		}
		limit := parseLimit(c.Query("limit"), 10, size)
		entries, err := mgr.Leaderboard(c.Request.Context(), limit)
		if err != nil {
			log.Printf("[ERROR] GetLeaderboard: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	}
}
