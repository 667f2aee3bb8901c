package main

import (
	"context"
	"log"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/savings-circle/backend/internal/chain"
	"github.com/savings-circle/backend/internal/config"
	"github.com/savings-circle/backend/internal/db"
	"github.com/savings-circle/backend/internal/models"
	"github.com/savings-circle/backend/internal/services"
)

// One-shot circle refresh against an in-memory Redis, for checking RPC and
// contract reads without touching the shared cache.
func main() {
	log.Println("Starting manual circle refresh...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	pgDB, err := db.ConnectPostgres(cfg)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}

	mr, err := miniredis.Run()
	if err != nil {
		log.Fatalf("failed to start in-memory redis: %v", err)
	}
	defer mr.Close()

	eth, err := chain.Dial(cfg.Chain.RPCURL)
	if err != nil {
		log.Fatalf("failed to dial chain rpc: %v", err)
	}
	reader, err := chain.NewCircleReader(eth, cfg.Chain.ReadTimeout)
	if err != nil {
		log.Fatalf("failed to build circle reader: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	groups := services.NewGroupService(pgDB)
	service := services.NewCircleService(pgDB, groups, services.NewParticipantService(pgDB), reader, redisClient, services.CircleServiceOptions{
		TokenDecimals: cfg.Chain.TokenDecimals,
	})

	ctx := context.Background()

	refreshed, err := service.RefreshAll(ctx)
	if err != nil {
		log.Fatalf("circle refresh failed: %v", err)
	}

	var total int64
	if err := pgDB.Model(&models.Group{}).Count(&total).Error; err == nil {
		log.Printf("Circles refreshed: %d of %d groups", refreshed, total)
	} else {
		log.Printf("Failed to count groups: %v", err)
	}

	log.Println("Manual circle refresh completed.")
}
