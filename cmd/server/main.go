package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"attendance-backend/internal/clock"
	"attendance-backend/internal/config"
	"attendance-backend/internal/db"
	"attendance-backend/internal/notify"
	"attendance-backend/internal/routes"
	"attendance-backend/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("timezone error: %v", err)
	}

	database, err := db.Open(cfg.DbDsn)
	if err != nil {
		log.Fatalf("db error: %v", err)
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	deps := routes.Deps{
		DB:    database,
		Cfg:   cfg,
		Clock: clock.New(loc),
		Hub:   notify.NewHub(),
	}
	reconciler := routes.Register(router, deps)

	cronRunner, err := scheduler.Start(cfg.ReconcileSpec, loc, reconciler)
	if err != nil {
		log.Fatalf("scheduler error: %v", err)
	}
	defer cronRunner.Stop()

	if err := router.Run(cfg.Addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
