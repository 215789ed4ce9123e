package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"cbp-establishments/internal/config"
	"cbp-establishments/internal/pipeline"
	"cbp-establishments/internal/store"
	"cbp-establishments/pkg/utils"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to the YAML config file")
	startYear := flag.Int("start", 0, "first year to fetch (overrides config)")
	noStore := flag.Bool("no-store", false, "do not record the run in SQLite")
	flag.Parse()

	if err := utils.InitLogger(os.Getenv("LOG_LEVEL")); err != nil {
		log.WithError(err).Error("invalid LOG_LEVEL")
		return 1
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("❌ configuration")
		return 1
	}
	if *startYear != 0 {
		cfg.Years.Start = *startYear
	}

	if !*noStore {
		if err := store.InitDB(cfg.Store.Path); err != nil {
			log.WithError(err).Warn("run tracking disabled")
		} else {
			defer store.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := pipeline.New(uuid.New().String(), cfg).Run(ctx)
	switch {
	case errors.Is(err, pipeline.ErrInsufficientData):
		log.Warn("🛑 Not enough data to compute changes. Nothing written.")
		return 0
	case err != nil:
		log.WithError(err).Error("❌ pipeline failed")
		return 1
	}

	log.WithFields(log.Fields{
		"years":          len(summary.SuccessfulYears),
		"skipped":        len(summary.Skipped),
		"municipalities": summary.Municipalities,
	}).Infof("💾 Saved: %s", summary.ArtifactPath)
	return 0
}
