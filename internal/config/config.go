package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	// Addr is the listen address for the HTTP/WS server.
	Addr string
	// DatabaseURL is the Postgres DSN; empty means in-memory store.
	DatabaseURL string
	// RedisAddr is host:port for presence; empty means in-memory tracking.
	RedisAddr string
	LogLevel  string
}

// Load reads .env if present, then the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading environment variables")
	}

	return Config{
		Addr:        getenv("ARCADIA_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
