package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/playmatatu/mergeball/internal/config"
	"github.com/playmatatu/mergeball/internal/game"
)

// GetConfig returns the playfield rules and rank table the client renders with
func GetConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		t := cfg.Tuning()
		table := game.DefaultRankTable()
		ranks := make([]game.Rank, table.Len())
		for i := range ranks {
			ranks[i] = table.At(i)
		}
		c.JSON(http.StatusOK, gin.H{
			"width":              t.Width,
			"height":             t.Height,
			"floor_y":            t.FloorY,
			"game_over_line_y":   t.GameOverLineY,
			"warning_offset":     t.WarningOffset(),
			"drop_y":             t.DropY,
			"drop_cooldown_ms":   t.DropCooldown.Milliseconds(),
			"game_over_delay_ms": t.GameOverDelay.Milliseconds(),
			"queue_length":       t.QueueLength,
			"tick_hz":            cfg.TickHz,
			"ranks":              ranks,
		})
	}
}
