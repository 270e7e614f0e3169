package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string
	TurnTimeout time.Duration
	GraceDelay  time.Duration
	MaxPlayers  int
	Points      int
	CodeLength  int
}

// Load reads .env (if present) and the environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:        getString("ADDR", ":8080"),
		TurnTimeout: time.Duration(getInt("TURN_SECONDS", 30)) * time.Second,
		GraceDelay:  time.Duration(getInt("GRACE_SECONDS", 3)) * time.Second,
		MaxPlayers:  getInt("MAX_PLAYERS", 4),
		Points:      getInt("POINTS_PER_CORRECT", 10),
		CodeLength:  getInt("ROOM_CODE_LEN", 4),
	}
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
