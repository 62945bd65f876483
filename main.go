// brightwheel-agent answers `brightwheel` / `bw` chat commands with a
// guardian's recent Brightwheel activity (check-ins, photos, videos, potty
// events, naps, meals, kudos).
//
// Configuration (env, `.env` supported):
//
//	BRIGHTWHEEL_EMAIL       login email (required)
//	BRIGHTWHEEL_PASSWORD    login password (required)
//	BRIGHTWHEEL_MAX_COUNT   max records per query (default: 5)
//	BRIGHTWHEEL_CARD_OUTPUT reply with structured cards instead of plain text
//	MEW_BOT_TOKEN           bot access token (required)
//	MEW_URL / MEW_API_BASE  chat platform location
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"mew/plugins/brightwheel-agent/internal/config"
)

const logPrefix = "[brightwheel-agent]"

func main() {
	config.LoadDotEnv(logPrefix)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("%s config: %v", logPrefix, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("%s %v", logPrefix, err)
	}
	log.Printf("%s shutdown complete", logPrefix)
}
