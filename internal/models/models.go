package models

import (
	"database/sql"
	"time"
)

// Player represents a registered player
type Player struct {
	ID               int            `db:"id" json:"id"`
	DisplayName      string         `db:"display_name" json:"display_name"`
	PinHash          sql.NullString `db:"pin_hash" json:"-"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	TotalGamesPlayed int            `db:"total_games_played" json:"total_games_played"`
	BestScore        int            `db:"best_score" json:"best_score"`
	TotalMerges      int            `db:"total_merges" json:"total_merges"`
	AssistCredits    int            `db:"assist_credits" json:"assist_credits"`
	IsActive         bool           `db:"is_active" json:"is_active"`
	LastActive       sql.NullTime   `db:"last_active" json:"last_active,omitempty"`
}

// GameSession represents one played session
type GameSession struct {
	ID           int            `db:"id" json:"id"`
	SessionToken string         `db:"session_token" json:"session_token"`
	PlayerID     int            `db:"player_id" json:"player_id"`
	Status       string         `db:"status" json:"status"`
	FinalScore   sql.NullInt64  `db:"final_score" json:"final_score,omitempty"`
	Merges       int            `db:"merges" json:"merges"`
	EndReason    sql.NullString `db:"end_reason" json:"end_reason,omitempty"`
	DurationMs   sql.NullInt64  `db:"duration_ms" json:"duration_ms,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	CompletedAt  sql.NullTime   `db:"completed_at" json:"completed_at,omitempty"`
}

// AssistLedger records every change to a player's assist credits
type AssistLedger struct {
	ID           int           `db:"id" json:"id"`
	PlayerID     int           `db:"player_id" json:"player_id"`
	SessionID    sql.NullInt64 `db:"session_id" json:"session_id,omitempty"`
	EntryType    string        `db:"entry_type" json:"entry_type"`
	Amount       int           `db:"amount" json:"amount"`
	BalanceAfter int           `db:"balance_after" json:"balance_after"`
	Description  string        `db:"description" json:"description,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// LeaderboardEntry is one row of the high-score table
type LeaderboardEntry struct {
	Rank        int    `db:"-" json:"rank"`
	PlayerID    int    `db:"id" json:"player_id"`
	DisplayName string `db:"display_name" json:"display_name"`
	Score       int    `db:"best_score" json:"score"`
}
