package main

import (
	"flag"
	"log"

	"github.com/joho/godotenv"
	"github.com/playmatatu/mergeball/internal/accounts"
	"github.com/playmatatu/mergeball/internal/config"
	"github.com/playmatatu/mergeball/internal/database"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	name := flag.String("player", "", "display name of the player")
	amount := flag.Int("amount", 1, "assist credits to grant")
	reason := flag.String("reason", "manual grant", "ledger description")
	flag.Parse()

	if *name == "" || *amount <= 0 {
		log.Fatal("usage: grant-credits -player NAME [-amount N] [-reason TEXT]")
	}

	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	player, err := accounts.GetPlayerByName(db, *name)
	if err != nil {
		log.Fatalf("Failed to find player %s: %v", *name, err)
	}

	balance, err := accounts.GrantAssist(db, player.ID, *amount, *reason)
	if err != nil {
		log.Fatalf("Failed to grant credits: %v", err)
	}

	log.Printf("Granted %d assist credits to %s (id=%d)", *amount, player.DisplayName, player.ID)
	log.Printf("  Balance: %d", balance)
}
