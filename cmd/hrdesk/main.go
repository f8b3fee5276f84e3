package main

import (
	"log"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	if err := Execute(); err != nil {
		log.Fatalf("hrdesk: %v", err)
	}
}
