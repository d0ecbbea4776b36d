package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"ai-thunderdome/server/store"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	_ = godotenv.Load()
	cfg := LoadConfig()

	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watchSignals(cancel)

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			log.WithError(err).Fatal("migrate")
		}
		log.Info("migrated")
	}

	app := &App{
		DB:      db,
		Metrics: NewMetrics(),
		Log:     log,
		Config:  cfg,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if cfg.ExpirySweepInterval > 0 {
		go runExpirySweep(ctx, db, log, time.Duration(cfg.ExpirySweepInterval)*time.Second)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      Router(app),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("listening on http://localhost:%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server stopped")
	}
}

// runExpirySweep periodically marks stale ISSUED battles EXPIRED. Off by
// default (ARENA_EXPIRY_SWEEP_INTERVAL=0) since expires_at_utc is never
// set by NEXT_BATTLE today; present for operators who configure a TTL.
func runExpirySweep(ctx context.Context, db *store.DB, log *logrus.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.SweepExpiredBattles(ctx)
			if err != nil {
				log.WithError(err).Warn("expiry sweep failed")
				continue
			}
			if n > 0 {
				log.WithField("count", n).Info("expired stale battles")
			}
		}
	}
}

func watchSignals(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c
	cancel()
}
