package main

import (
	"context"
	"log"
	"time"

	"mew/plugins/brightwheel-agent/internal/bot"
	"mew/plugins/brightwheel-agent/internal/brightwheel"
	"mew/plugins/brightwheel-agent/internal/config"
	"mew/plugins/brightwheel-agent/internal/format"
	"mew/plugins/brightwheel-agent/pkg/httpx"
)

func run(ctx context.Context, cfg config.Config) error {
	bwHTTP, err := httpx.NewClient(httpx.ClientOptions{
		Timeout: 15 * time.Second,
		Proxy:   cfg.Proxy,
	})
	if err != nil {
		return err
	}
	feed := brightwheel.NewClient(bwHTTP, cfg.BaseURL, brightwheel.Credentials{
		Email:    cfg.Email,
		Password: cfg.Password,
	}, cfg.MaxRecordCount)

	mewHTTP, err := httpx.NewClient(httpx.ClientOptions{
		Timeout: 15 * time.Second,
		Proxy:   cfg.MewProxy,
	})
	if err != nil {
		return err
	}

	mode := format.ModeText
	if cfg.CardOutput {
		mode = format.ModeCard
	}

	runner, err := bot.NewRunner(bot.Options{
		BotToken:   cfg.BotToken,
		MewURL:     cfg.MewURL,
		APIBase:    cfg.APIBase,
		HTTPClient: mewHTTP,
		Feed:       feed,
		Mode:       mode,
		LogPrefix:  logPrefix,
	})
	if err != nil {
		return err
	}

	log.Printf("%s starting: maxCount=%d cardOutput=%t", logPrefix, cfg.MaxRecordCount, cfg.CardOutput)
	return runner.Run(ctx)
}
