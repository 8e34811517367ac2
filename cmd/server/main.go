package main

import (
	"log"

	"github.com/thereayou/guildchat/internal/config"
)

func main() {
	config.LoadEnv()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	srv, err := NewServer(cfg)
	if err != nil {
		log.Fatalf("Server init failed: %v", err)
	}

	srv.Run()
}
