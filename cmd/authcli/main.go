package main

import (
	"context"
	"log"

	"github.com/taskmith/authkit/internal/cli"
	"github.com/taskmith/authkit/internal/config"
)

func main() {
	cfg := config.LoadConfig()

	app, err := cli.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(context.Background())
}
