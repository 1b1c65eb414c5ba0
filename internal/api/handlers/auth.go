package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/mergeball/internal/accounts"
	"github.com/playmatatu/mergeball/internal/auth"
	"github.com/playmatatu/mergeball/internal/config"
	"github.com/playmatatu/mergeball/internal/models"
)

type credentials struct {
	DisplayName string `json:"display_name" binding:"required"`
	PIN         string `json:"pin" binding:"required"`
}

// Register creates a player with a display name and PIN and returns a JWT
func Register(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentials
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "display_name and pin required"})
			return
		}
		name := normalizeDisplayName(req.DisplayName)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "display name must be 3-24 letters, digits, _ or -"})
			return
		}
		if !auth.ValidPIN(req.PIN) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "PIN must be 4-6 digits"})
			return
		}

		hash, err := auth.HashPIN(req.PIN)
		if err != nil {
			log.Printf("[AUTH] Failed to hash PIN: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		player, err := accounts.CreatePlayer(db, name, hash, cfg.StartingAssistCredits)
		if errors.Is(err, accounts.ErrNameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "display name already taken"})
			return
		}
		if err != nil {
			log.Printf("[AUTH] Failed to create player %s: %v", name, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		issueToken(c, cfg, http.StatusCreated, player)
	}
}

// Login checks a display name and PIN and returns a JWT
func Login(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentials
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "display_name and pin required"})
			return
		}
		player, err := accounts.GetPlayerByName(db, req.DisplayName)
		if errors.Is(err, accounts.ErrPlayerNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if err != nil {
			log.Printf("[AUTH] Failed to load player %s: %v", req.DisplayName, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !player.IsActive || !player.PinHash.Valid || !auth.CheckPIN(player.PinHash.String, req.PIN) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		issueToken(c, cfg, http.StatusOK, player)
	}
}

func issueToken(c *gin.Context, cfg *config.Config, status int, player *models.Player) {
	ttl := time.Duration(cfg.SessionTimeoutMin) * time.Minute
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	signed, exp, err := auth.IssueToken(cfg.JWTSecret, player.ID, player.DisplayName, ttl)
	if err != nil {
		log.Printf("Failed to sign token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"token": signed, "expires_at": exp.Unix(), "player": player})
}
