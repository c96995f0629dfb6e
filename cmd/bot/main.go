package main

import (
	"log"

	"github.com/themaden/copperx-telegram-bot/core/bootstrap"
	corecmd "github.com/themaden/copperx-telegram-bot/core/cmd"
	"github.com/themaden/copperx-telegram-bot/internal/bot"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config/bot.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return bot.LoadConfig(path)
		},
		Bootstrap: func(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg := carrier.(*bot.Config)
			result, err := bootstrap.Run(bootstrap.Options{
				Config:   cfg.CoreConfig(),
				Database: cfg.Database,
			})
			if err != nil {
				return nil, err
			}
			return bot.New(cfg, result.DB)
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
