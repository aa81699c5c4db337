package main

import (
	"context"
	"log"
	"os"

	"github.com/bily-amin/habitica/internal/client/cli"
	"github.com/bily-amin/habitica/internal/client/config"
)

func main() {

	ctx := context.Background()
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := cli.NewApp(cfg).Run(ctx, os.Args[1:]); err != nil {
		log.Fatalf("%v", err)
	}
}
