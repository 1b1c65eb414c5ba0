package accounts

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/mergeball/internal/database"
	"github.com/playmatatu/mergeball/internal/models"
)

// Ledger entry types
const (
	EntryConsume = "CONSUME"
	EntryRefund  = "REFUND"
	EntryGrant   = "GRANT"
)

var (
	ErrNoCredits      = errors.New("no assist credits left")
	ErrPlayerNotFound = errors.New("player not found")
	ErrNameTaken      = errors.New("display name already taken")
)

const playerColumns = `id, display_name, pin_hash, created_at, total_games_played, best_score, total_merges, assist_credits, is_active, last_active`

// CreatePlayer inserts a new player with the starting assist credits.
func CreatePlayer(db *sqlx.DB, displayName, pinHash string, credits int) (*models.Player, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if _, err := GetPlayerByName(db, displayName); err == nil {
		return nil, ErrNameTaken
	} else if !errors.Is(err, ErrPlayerNotFound) {
		return nil, err
	}

	var p models.Player
	err := database.WithTx(db, func(tx *sqlx.Tx) error {
		q := `INSERT INTO players (display_name, pin_hash, assist_credits, created_at, last_active)
		      VALUES ($1, $2, $3, NOW(), NOW()) RETURNING ` + playerColumns
		if err := tx.Get(&p, q, displayName, pinHash, credits); err != nil {
			return err
		}
		if credits > 0 {
			return insertLedger(tx, p.ID, sql.NullInt64{}, EntryGrant, credits, credits, "starting credits")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create player: %w", err)
	}
	log.Printf("[ACCT] Player created: id=%d name=%s credits=%d", p.ID, p.DisplayName, credits)
	return &p, nil
}

// GetPlayerByName looks a player up by display name.
func GetPlayerByName(db *sqlx.DB, displayName string) (*models.Player, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	var p models.Player
	err := db.Get(&p, `SELECT `+playerColumns+` FROM players WHERE display_name=$1`, displayName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPlayerByID looks a player up by id.
func GetPlayerByID(db *sqlx.DB, id int) (*models.Player, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	var p models.Player
	err := db.Get(&p, `SELECT `+playerColumns+` FROM players WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ConsumeAssist debits one assist credit and returns the new balance.
// Returns ErrNoCredits when the player has none left.
func ConsumeAssist(db *sqlx.DB, playerID int, sessionID sql.NullInt64) (int, error) {
	return adjust(db, playerID, -1, EntryConsume, sessionID, "assisted merge")
}

// RefundAssist credits back a credit consumed by an assisted merge that
// found no pair.
func RefundAssist(db *sqlx.DB, playerID int, sessionID sql.NullInt64) (int, error) {
	return adjust(db, playerID, 1, EntryRefund, sessionID, "assisted merge refund")
}

// GrantAssist adds amount credits to a player.
func GrantAssist(db *sqlx.DB, playerID, amount int, description string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("grant amount must be positive, got %d", amount)
	}
	return adjust(db, playerID, amount, EntryGrant, sql.NullInt64{}, description)
}

// adjust changes a player's credit balance under a row lock and records the
// change in the ledger.
func adjust(db *sqlx.DB, playerID, delta int, entryType string, sessionID sql.NullInt64, description string) (int, error) {
	var balance int
	err := database.WithTx(db, func(tx *sqlx.Tx) error {
		var current int
		err := tx.Get(&current, `SELECT assist_credits FROM players WHERE id=$1 FOR UPDATE`, playerID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPlayerNotFound
		}
		if err != nil {
			return err
		}
		balance = current + delta
		if balance < 0 {
			return ErrNoCredits
		}
		if _, err := tx.Exec(`UPDATE players SET assist_credits=$1 WHERE id=$2`, balance, playerID); err != nil {
			return err
		}
		return insertLedger(tx, playerID, sessionID, entryType, delta, balance, description)
	})
	if err != nil {
		return 0, err
	}
	log.Printf("[ACCT] Assist credits %s: player=%d delta=%d balance=%d session=%v", entryType, playerID, delta, balance, sessionID)
	return balance, nil
}

func insertLedger(tx *sqlx.Tx, playerID int, sessionID sql.NullInt64, entryType string, amount, balanceAfter int, description string) error {
	_, err := tx.Exec(`INSERT INTO assist_ledger (player_id, session_id, entry_type, amount, balance_after, description, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW())`, playerID, sessionID, entryType, amount, balanceAfter, description)
	return err
}
