package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"homelink/internal/config"
	"homelink/internal/db"
	"homelink/internal/engine"
	"homelink/internal/logging"
	homemcp "homelink/internal/mcp"
	"homelink/internal/models"
	"homelink/internal/queue"
	"homelink/internal/registry"
)

func main() {
	username := flag.String("user", "", "Account the tools act as")
	configDir := flag.String("config", ".", "Directory holding config.yaml")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	// stdout is the MCP transport; logging already goes to stderr
	logging.InitLogging(cfg.Log.Level, cfg.Log.Format)
	log := logging.Component("mcp")

	if *username == "" {
		log.Fatal().Msg("-user is required")
	}
	if cfg.Database.Driver != "postgres" {
		log.Fatal().Str("driver", cfg.Database.Driver).Msg("the MCP server needs the shared postgres store")
	}

	ctx := context.Background()
	database, err := db.NewDB(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer database.Close()
	if err := database.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run database migrations")
	}

	user, err := database.GetUserByUsername(ctx, *username)
	if err != nil {
		log.Fatal().Err(err).Str("user", *username).Msg("unknown account")
	}

	reg := registry.NewRegistry(database)
	q := queue.NewQueue(database, reg, cfg.Queue)
	q.SetResolver(engine.NewEngine(database, q, cfg.Engine))
	links := engine.NewLinkService(database, reg)

	server := homemcp.NewServer(reg, q, links, models.CallerFor(user))
	log.Info().Str("user", user.Username).Msg("starting MCP server on stdio")
	if err := server.ServeStdio(); err != nil {
		log.Fatal().Err(err).Msg("MCP server failed")
	}
}
