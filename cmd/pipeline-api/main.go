package main

import (
	"flag"
	"os"

	"cbp-establishments/internal/api"
	"cbp-establishments/internal/api/handler"
	"cbp-establishments/internal/config"
	"cbp-establishments/internal/store"
	"cbp-establishments/pkg/router"
	"cbp-establishments/pkg/utils"

	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := utils.InitLogger(os.Getenv("LOG_LEVEL")); err != nil {
		log.Fatalf("invalid LOG_LEVEL: %v", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}

	// Init DB
	if err := store.InitDB(cfg.Store.Path); err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer store.Close()

	r := router.New()
	api.RegisterRoutes(r, handler.NewRunsHandler(cfg))

	if err := r.Start(cfg.Server.Addr); err != nil {
		log.WithError(err).Error("server stopped")
	}
}
